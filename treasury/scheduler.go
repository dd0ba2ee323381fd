/*
scheduler.go - Periodic integrity sweep

PURPOSE:
  Runs CheckIntegrity for a fixed set of tenants on an interval and logs
  every discrepancy. Nothing is repaired automatically; drift is an
  operator decision.

DESIGN:
  - Background goroutine driven by a ticker
  - First sweep runs immediately on Start
  - Tenants are checked concurrently, bounded by Parallelism
  - Each sweep is recorded as the last run (for the CLI and health output)

USAGE:
  sched := treasury.NewIntegrityScheduler(svc, []ledger.TenantID{"org-1"})
  sched.Start()
  defer sched.Stop()

SEE ALSO:
  - integrity.go: the check itself
  - cmd/server/serve.go: wiring from INTEGRITY_* settings
*/
package treasury

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/latidos/ledger-engine/ledger"
	"github.com/latidos/ledger-engine/logger"
)

// SweepResult summarizes one pass over all tenants.
type SweepResult struct {
	StartedAt     time.Time
	Duration      time.Duration
	Tenants       int
	Discrepancies int
	Failed        int
}

// IntegrityScheduler sweeps tenants for balance drift.
type IntegrityScheduler struct {
	Service       *Service
	Tenants       []ledger.TenantID
	CheckInterval time.Duration
	Parallelism   int

	ticker *time.Ticker
	stop   chan struct{}
	wg     sync.WaitGroup
	mu     sync.Mutex
	last   *SweepResult
	log    zerolog.Logger
}

func NewIntegrityScheduler(svc *Service, tenants []ledger.TenantID) *IntegrityScheduler {
	return &IntegrityScheduler{
		Service:       svc,
		Tenants:       tenants,
		CheckInterval: time.Hour,
		Parallelism:   4,
		log:           logger.WithComponent("integrity-scheduler"),
	}
}

// Start begins the sweep loop. It is a no-op without tenants or when
// already running.
func (is *IntegrityScheduler) Start() {
	is.mu.Lock()
	defer is.mu.Unlock()

	if len(is.Tenants) == 0 {
		is.log.Info().Msg("no tenants configured, not starting")
		return
	}
	if is.ticker != nil {
		return
	}

	is.ticker = time.NewTicker(is.CheckInterval)
	is.stop = make(chan struct{})
	is.wg.Add(1)
	go is.run(is.ticker, is.stop)

	is.log.Info().Dur("interval", is.CheckInterval).Int("tenants", len(is.Tenants)).Msg("started")
}

// Stop halts the loop and waits for an in-flight sweep.
func (is *IntegrityScheduler) Stop() {
	is.mu.Lock()
	if is.ticker == nil {
		is.mu.Unlock()
		return
	}
	is.ticker.Stop()
	close(is.stop)
	is.ticker = nil
	is.mu.Unlock()

	is.wg.Wait()
	is.log.Info().Msg("stopped")
}

func (is *IntegrityScheduler) run(ticker *time.Ticker, stop <-chan struct{}) {
	defer is.wg.Done()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() {
		<-stop
		cancel()
	}()

	is.RunNow(ctx)
	for {
		select {
		case <-ticker.C:
			is.RunNow(ctx)
		case <-stop:
			return
		}
	}
}

// RunNow sweeps every tenant once and records the result.
func (is *IntegrityScheduler) RunNow(ctx context.Context) SweepResult {
	res := SweepResult{StartedAt: time.Now(), Tenants: len(is.Tenants)}

	var mu sync.Mutex
	g, gctx := errgroup.WithContext(ctx)
	if is.Parallelism > 0 {
		g.SetLimit(is.Parallelism)
	}
	for _, tenant := range is.Tenants {
		g.Go(func() error {
			report, err := is.Service.CheckIntegrity(gctx, tenant)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				// One tenant failing does not abort the others
				res.Failed++
				is.log.Error().Err(err).Str("tenant_id", string(tenant)).Msg("integrity check failed")
				return nil
			}
			res.Discrepancies += len(report.Discrepancies)
			return nil
		})
	}
	g.Wait()
	res.Duration = time.Since(res.StartedAt)

	is.mu.Lock()
	is.last = &res
	is.mu.Unlock()

	ev := is.log.Info()
	if res.Discrepancies > 0 || res.Failed > 0 {
		ev = is.log.Warn()
	}
	ev.Int("tenants", res.Tenants).
		Int("discrepancies", res.Discrepancies).
		Int("failed", res.Failed).
		Dur("duration", res.Duration).
		Msg("integrity sweep completed")
	return res
}

// LastRun returns the most recent sweep, if any.
func (is *IntegrityScheduler) LastRun() (SweepResult, bool) {
	is.mu.Lock()
	defer is.mu.Unlock()
	if is.last == nil {
		return SweepResult{}, false
	}
	return *is.last, true
}
