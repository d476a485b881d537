// inspect prints a read-only snapshot of a resultdb database: row counts,
// status mix, file sizes and free space on the volume.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/dustin/go-humanize"

	"resultdb/pkg/config"
	"resultdb/pkg/sensor"
	"resultdb/pkg/store"
)

func main() {
	var dbPath string
	flag.StringVar(&dbPath, "db", "", "path to the resultdb SQLite file")
	flag.Parse()
	if dbPath == "" {
		fmt.Fprintln(os.Stderr, "-db required")
		os.Exit(2)
	}

	st, err := store.Open(config.DatabaseConfig{URL: dbPath, MaxConnections: 1, WAL: true})
	if err != nil {
		fmt.Fprintf(os.Stderr, "open %s: %v\n", dbPath, err)
		os.Exit(1)
	}
	defer st.Close()

	stats, err := st.CollectStats(context.Background())
	if err != nil {
		fmt.Fprintf(os.Stderr, "collect stats: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("database:    %s\n", dbPath)
	fmt.Printf("executions:  %s\n", humanize.Comma(stats.Executions))
	fmt.Printf("results:     %s\n", humanize.Comma(stats.Results))
	fmt.Printf("  passed:    %s\n", humanize.Comma(stats.Passed))
	fmt.Printf("  failed:    %s\n", humanize.Comma(stats.Failed))
	fmt.Printf("  ignored:   %s\n", humanize.Comma(stats.Ignored))
	if stats.OldestRun > 0 {
		fmt.Printf("oldest run:  %s\n", humanize.Time(time.Unix(stats.OldestRun, 0)))
		fmt.Printf("newest run:  %s\n", humanize.Time(time.Unix(stats.NewestRun, 0)))
	}

	if fi, err := os.Stat(dbPath); err == nil {
		fmt.Printf("file size:   %s\n", humanize.Bytes(uint64(fi.Size())))
	}
	if fi, err := os.Stat(dbPath + "-wal"); err == nil {
		fmt.Printf("wal size:    %s\n", humanize.Bytes(uint64(fi.Size())))
	}

	if snap := sensor.Read(filepath.Dir(dbPath)); snap.DiskTotal > 0 {
		fmt.Printf("volume free: %s of %s\n", humanize.Bytes(snap.DiskFree), humanize.Bytes(snap.DiskTotal))
	}
}
