// Package retention purges aged rows on a cron schedule. Each configured
// table gets its own scheduler loop; sweeps for a table run inline in that
// loop, so they never overlap and a trigger that fires mid-sweep is skipped
// rather than queued.
package retention

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/adhocore/gronx"

	"resultdb/pkg/config"
	"resultdb/pkg/logger"
	"resultdb/pkg/store"
)

// deleteFunc removes rows stamped before the cutoff and reports the count.
type deleteFunc func(ctx context.Context, cutoff int64) (int64, error)

type loop struct {
	table string
	cfg   config.RetentionConfig
	del   deleteFunc
}

// Sweeper owns the retention loops for every enabled data_retention entry.
type Sweeper struct {
	loops  []loop
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// New maps each enabled data_retention entry to its delete statement.
// Unknown table names are an error so a typo cannot silently keep rows
// forever.
func New(st *store.Store, cfgs map[string]config.RetentionConfig) (*Sweeper, error) {
	s := &Sweeper{}
	for table, rc := range cfgs {
		if !rc.Enabled {
			logger.Info("retention_disabled", "table", table)
			continue
		}
		var del deleteFunc
		switch table {
		case "test_result":
			del = st.DeleteResultsBefore
		case "execution":
			del = st.DeleteExecutionsBefore
		default:
			return nil, fmt.Errorf("data_retention: unknown table %q", table)
		}
		if !gronx.IsValid(rc.Cron) {
			return nil, fmt.Errorf("data_retention.%s: invalid cron %q", table, rc.Cron)
		}
		s.loops = append(s.loops, loop{table: table, cfg: rc, del: del})
	}
	return s, nil
}

// Start launches one scheduler goroutine per table and returns immediately.
func (s *Sweeper) Start(ctx context.Context) {
	ctx, s.cancel = context.WithCancel(ctx)
	for _, l := range s.loops {
		s.wg.Add(1)
		go func(l loop) {
			defer s.wg.Done()
			s.run(ctx, l)
		}(l)
		logger.Info("retention_enabled", "table", l.table, "cron", l.cfg.Cron, "period_in_day", l.cfg.Days())
	}
}

// Stop cancels the schedulers and waits for any in-flight sweep to finish.
func (s *Sweeper) Stop() {
	if s.cancel != nil {
		s.cancel()
	}
	s.wg.Wait()
}

func (s *Sweeper) run(ctx context.Context, l loop) {
	for {
		next, err := gronx.NextTickAfter(l.cfg.Cron, time.Now().UTC(), false)
		if err != nil {
			logger.Error("retention_next_tick_failed", "table", l.table, "cron", l.cfg.Cron, "err", err)
			select {
			case <-time.After(30 * time.Second):
				continue
			case <-ctx.Done():
				return
			}
		}
		select {
		case <-time.After(time.Until(next)):
			sweep(ctx, l)
		case <-ctx.Done():
			logger.Info("retention_scheduler_stopping", "table", l.table)
			return
		}
	}
}

// SweepNow runs every configured sweep once, outside the schedule.
func (s *Sweeper) SweepNow(ctx context.Context) {
	for _, l := range s.loops {
		sweep(ctx, l)
	}
}

func sweep(ctx context.Context, l loop) {
	cutoff := time.Now().UTC().Unix() - int64(l.cfg.Days())*86400
	start := time.Now()
	n, err := l.del(ctx, cutoff)
	if err != nil {
		logger.Error("retention_sweep_failed", "table", l.table, "cutoff", cutoff, "err", err)
		return
	}
	logger.Info("retention_sweep_done",
		"table", l.table,
		"deleted", n,
		"cutoff", cutoff,
		"elapsed", time.Since(start).String())
}
