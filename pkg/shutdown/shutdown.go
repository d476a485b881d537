// Package shutdown handles the two ways the process stops: orderly (SIGINT,
// SIGTERM cancel the run context) and fatal (Abort writes a crash dump plus
// a machine-readable abort request, then exits).
package shutdown

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"runtime"
	"syscall"
	"time"

	"resultdb/pkg/logger"
	"resultdb/pkg/state"
)

// abortRequest is the machine-readable companion of a crash dump, picked up
// by supervisors that watch the abort directory.
type abortRequest struct {
	Time      string            `json:"time"`
	Reason    string            `json:"reason"`
	CrashPath string            `json:"crash_path,omitempty"`
	Meta      map[string]string `json:"meta,omitempty"`
}

// SetupSignalHandler returns a context canceled on SIGINT or SIGTERM.
// SIGPIPE additionally dumps all goroutine stacks to the log before
// canceling, since it usually means the log sink or a peer vanished.
func SetupSignalHandler(parent context.Context) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(parent)

	sigc := make(chan os.Signal, 1)
	signal.Notify(sigc, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		s := <-sigc
		logger.Info("signal_received", "signal", s.String())
		cancel()
	}()

	sigpipe := make(chan os.Signal, 1)
	signal.Notify(sigpipe, syscall.SIGPIPE)
	go func() {
		s := <-sigpipe
		buf := make([]byte, 1<<20)
		n := runtime.Stack(buf, true)
		logger.Warn("signal_received", "signal", s.String(), "stacks", string(buf[:n]))
		cancel()
	}()

	return ctx, cancel
}

// Abort writes diagnostics and terminates the process with exit code 2.
// The short sleep gives file log sinks time to flush.
func Abort(contextMsg string, err error) {
	logger.Error("fatal", "msg", contextMsg, "err", err)
	dumpPath, reqPath, derr := WriteCrashDump(contextMsg, err)
	if derr != nil {
		logger.Error("crash_dump_failed", "err", derr)
		fmt.Fprintf(os.Stderr, "FAILED TO WRITE CRASH DUMP: %v\n", derr)
	} else {
		logger.Error("crash_dump_written", "dump", dumpPath, "request", reqPath)
		fmt.Fprintf(os.Stderr, "CRASH DUMP WRITTEN: %s\n", dumpPath)
	}
	time.Sleep(2 * time.Second)
	os.Exit(2)
}

// WriteCrashDump writes a human-readable dump (environment plus goroutine
// stacks) into the crash dir and an abort request referencing it into the
// abort dir. Both are written to temp files first and renamed into place so
// watchers never see partial content.
func WriteCrashDump(reason string, cause error) (string, string, error) {
	crashDir := state.PathsVar.Crash
	abortDir := state.PathsVar.Abort
	if crashDir == "" {
		crashDir = "./crash"
	}
	if abortDir == "" {
		abortDir = "./abort"
	}
	if err := os.MkdirAll(crashDir, 0o700); err != nil {
		return "", "", fmt.Errorf("create crash dir: %w", err)
	}
	if err := os.MkdirAll(abortDir, 0o700); err != nil {
		return "", "", fmt.Errorf("create abort dir: %w", err)
	}

	ts := time.Now().UnixNano()
	dumpPath := filepath.Join(crashDir, fmt.Sprintf("crash-%d.log", ts))

	f, err := os.CreateTemp(crashDir, ".crash-*.tmp")
	if err != nil {
		return "", "", fmt.Errorf("create temp crash file: %w", err)
	}
	tmpName := f.Name()
	defer os.Remove(tmpName)

	fmt.Fprintf(f, "time: %s\n", time.Now().UTC().Format(time.RFC3339))
	fmt.Fprintf(f, "reason: %s\n", reason)
	fmt.Fprintf(f, "error: %v\n", cause)
	fmt.Fprintf(f, "\n--- environ ---\n")
	for _, e := range os.Environ() {
		fmt.Fprintln(f, e)
	}
	fmt.Fprintf(f, "\n--- goroutine stacks ---\n")
	buf := make([]byte, 1<<20)
	n := runtime.Stack(buf, true)
	_, _ = f.Write(buf[:n])
	_ = f.Sync()
	_ = f.Close()

	if err := os.Rename(tmpName, dumpPath); err != nil {
		return "", "", fmt.Errorf("move crash dump into place: %w", err)
	}
	_ = os.Chmod(dumpPath, 0o600)

	req := abortRequest{
		Time:      time.Now().UTC().Format(time.RFC3339),
		Reason:    reason,
		CrashPath: dumpPath,
		Meta:      map[string]string{"pid": fmt.Sprintf("%d", os.Getpid())},
	}
	rtmp, err := os.CreateTemp(abortDir, ".req-*.tmp")
	if err != nil {
		return dumpPath, "", fmt.Errorf("create temp abort request: %w", err)
	}
	rname := rtmp.Name()
	enc := json.NewEncoder(rtmp)
	enc.SetIndent("", "  ")
	if err := enc.Encode(req); err != nil {
		rtmp.Close()
		_ = os.Remove(rname)
		return dumpPath, "", fmt.Errorf("encode abort request: %w", err)
	}
	_ = rtmp.Sync()
	_ = rtmp.Close()

	reqPath := filepath.Join(abortDir, fmt.Sprintf("req-%d.json", ts))
	if err := os.Rename(rname, reqPath); err != nil {
		_ = os.Remove(rname)
		return dumpPath, "", fmt.Errorf("move abort request into place: %w", err)
	}
	_ = os.Chmod(reqPath, 0o600)

	return dumpPath, reqPath, nil
}
