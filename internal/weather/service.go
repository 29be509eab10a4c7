package weather

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/agroclima/weather-collector/pkg/logger"
	"github.com/agroclima/weather-collector/pkg/metrics"
)

const (
	defaultWorkers            = 4
	defaultHistoricalMaxYears = 15
)

// Engine is the acquisition orchestrator. It drives the primary-to-backup
// failover policy across regions and windows, owns the per-run outcome set,
// and writes accepted rows through the store.
type Engine struct {
	primary SourceClient
	backup  SourceClient
	store   Store

	workers            int
	historicalMaxYears int
	log                logger.Logger

	mu         sync.Mutex
	lastReport *Report
}

// EngineOption adjusts engine construction.
type EngineOption func(*Engine)

// WithWorkers bounds the number of regions processed concurrently.
func WithWorkers(n int) EngineOption {
	return func(e *Engine) {
		if n > 0 {
			e.workers = n
		}
	}
}

// WithHistoricalMaxYears bounds the span of historical windows.
func WithHistoricalMaxYears(years int) EngineOption {
	return func(e *Engine) {
		if years > 0 {
			e.historicalMaxYears = years
		}
	}
}

// WithLogger sets a custom logger.
func WithLogger(l logger.Logger) EngineOption {
	return func(e *Engine) {
		if l != nil {
			e.log = l
		}
	}
}

// NewEngine creates an orchestrator over the primary and backup clients.
func NewEngine(primary, backup SourceClient, store Store, opts ...EngineOption) *Engine {
	e := &Engine{
		primary:            primary,
		backup:             backup,
		store:              store,
		workers:            defaultWorkers,
		historicalMaxYears: defaultHistoricalMaxYears,
		log:                logger.Named("engine"),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Run collects observations for every region over the window and returns the
// per-region outcomes. Regions are processed concurrently up to the worker
// bound; within one region the primary attempt strictly precedes the backup
// attempt. Cancellation takes effect between regions; rows already written
// stay valid under the dedup invariant.
func (e *Engine) Run(ctx context.Context, regions []Region, window Window) (map[string]Outcome, error) {
	if err := window.Validate(time.Now().UTC(), e.historicalMaxYears); err != nil {
		return nil, fmt.Errorf("invalid collection window: %w", err)
	}

	started := time.Now().UTC()
	metrics.RunsTotal.WithLabelValues(string(window.Mode)).Inc()
	e.log.Info(ctx, "starting collection run",
		logger.String("mode", string(window.Mode)),
		logger.String("start", window.Start.Format(DateLayout)),
		logger.String("end", window.End.Format(DateLayout)),
		logger.Int("regions", len(regions)))

	index := NewIndex()
	regionIDs := make([]string, 0, len(regions))
	for _, r := range regions {
		regionIDs = append(regionIDs, r.ID)
	}
	persisted, err := e.store.Keys(regionIDs, Sources(), window)
	if err != nil {
		return nil, fmt.Errorf("rebuilding dedup index: %w", err)
	}
	index.Preload(persisted)

	chunkDays := e.primary.MaxSpanDays()
	if b := e.backup.MaxSpanDays(); b > 0 && (chunkDays == 0 || b < chunkDays) {
		chunkDays = b
	}

	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		outcomes = make(map[string]Outcome, len(regions))
	)
	regionCh := make(chan Region)
	for i := 0; i < e.workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for region := range regionCh {
				out := e.collectRegion(ctx, region, window, chunkDays, index)
				mu.Lock()
				outcomes[region.ID] = out
				mu.Unlock()
			}
		}()
	}

	var runErr error
feed:
	for _, region := range regions {
		select {
		case <-ctx.Done():
			runErr = ctx.Err()
			break feed
		case regionCh <- region:
		}
	}
	close(regionCh)
	wg.Wait()

	report := &Report{
		RunID:      uuid.NewString(),
		Window:     window,
		StartedAt:  started,
		FinishedAt: time.Now().UTC(),
		Outcomes:   outcomes,
	}
	e.mu.Lock()
	e.lastReport = report
	e.mu.Unlock()

	metrics.RunDuration.Observe(report.FinishedAt.Sub(started).Seconds())
	e.log.Info(ctx, "collection run finished",
		logger.String("run_id", report.RunID),
		logger.Int("regions_processed", len(outcomes)))
	return outcomes, runErr
}

// LastReport returns the report of the most recent run, or nil before the
// first run completes.
func (e *Engine) LastReport() *Report {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.lastReport
}

// collectRegion walks the window's sub-windows for one region, applying the
// failover policy per sub-window and tallying the outcome. A hard failure on
// one sub-window does not prevent other sub-windows from succeeding.
func (e *Engine) collectRegion(ctx context.Context, region Region, window Window, chunkDays int, index *Index) Outcome {
	var (
		out       Outcome
		fetched   int
		anyFailed bool
		ioFailed  bool
	)

	for _, sub := range window.Chunks(chunkDays) {
		if ctx.Err() != nil {
			anyFailed = true
			out.Error = ctx.Err().Error()
			break
		}

		records, source, ferr := e.fetchWithFailover(ctx, region, sub)
		if ferr != nil {
			anyFailed = true
			if out.Source == "" {
				out.Source = SourceINMET // last source attempted
			}
			out.Error = ferr.Error()
			continue
		}
		out.Source = source
		fetched += len(records)

		collectedAt := time.Now().UTC()
		stop := false
		for _, raw := range records {
			obs, nerr := Normalize(raw, collectedAt)
			if nerr != nil {
				out.RejectedInvalid++
				metrics.RowsRejected.WithLabelValues("malformed").Inc()
				e.log.Warn(ctx, "dropping malformed row",
					logger.String("region", region.ID), logger.Error(nerr))
				continue
			}

			if aerr := index.Admit(obs); aerr != nil {
				var rej *RejectionError
				if errors.As(aerr, &rej) && rej.Reason == ReasonDuplicate {
					out.RejectedDuplicate++
					metrics.RowsRejected.WithLabelValues(string(ReasonDuplicate)).Inc()
				} else {
					out.RejectedInvalid++
					metrics.RowsRejected.WithLabelValues(string(ReasonOutOfRange)).Inc()
					e.log.Warn(ctx, "dropping implausible row",
						logger.String("region", region.ID), logger.Error(aerr))
				}
				continue
			}

			if werr := e.store.Append(obs); werr != nil {
				// The row never reached disk; release its key so a re-run can
				// collect it again.
				index.Forget(obs.Key())
				anyFailed = true
				ioFailed = true
				out.Error = fmt.Sprintf("storage append failed: %v", werr)
				e.log.Error(ctx, "storage append failed",
					logger.String("region", region.ID), logger.Error(werr))
				stop = true
				break
			}
			out.Accepted++
			metrics.RowsAccepted.WithLabelValues(string(obs.Source)).Inc()
		}
		if stop {
			break
		}
	}

	out.Status = resolveStatus(out.Accepted, out.RejectedDuplicate+out.RejectedInvalid, fetched, anyFailed)
	if ioFailed && out.Accepted == 0 {
		// A storage failure is fatal for the region/window even when rows
		// were fetched.
		out.Status = StatusFailed
	}
	return out
}

// fetchWithFailover attempts the primary client and, on any fetch error,
// the backup exactly once. The backup's error supersedes the primary's in
// the reported detail; the primary failure is logged.
func (e *Engine) fetchWithFailover(ctx context.Context, region Region, window Window) ([]RawRecord, Source, *FetchError) {
	records, err := e.primary.Fetch(ctx, region, window)
	if err == nil {
		return records, SourceOpenWeather, nil
	}

	ferr := AsFetchError(err)
	metrics.FetchFailures.WithLabelValues(e.primary.Name(), string(ferr.Kind)).Inc()
	if ferr.Kind == KindAuthInvalid {
		e.log.Error(ctx, "primary credentials rejected, check configuration",
			logger.String("region", region.ID), logger.Error(ferr))
	} else {
		e.log.Warn(ctx, "primary fetch failed, activating failover",
			logger.String("region", region.ID), logger.Error(ferr))
	}

	records, err = e.backup.Fetch(ctx, region, window)
	if err == nil {
		return records, SourceINMET, nil
	}

	berr := AsFetchError(err)
	metrics.FetchFailures.WithLabelValues(e.backup.Name(), string(berr.Kind)).Inc()
	e.log.Error(ctx, "backup fetch failed, region window lost",
		logger.String("region", region.ID), logger.Error(berr))
	return nil, SourceINMET, berr
}

// resolveStatus maps the tallies of a region's sub-windows onto a terminal
// status. Success requires at least one accepted row, no rejections and no
// hard failures; any rejection or failure alongside accepted rows downgrades
// to partial; failed means nothing was fetched at all.
func resolveStatus(accepted, rejected, fetched int, anyFailed bool) Status {
	switch {
	case accepted > 0 && rejected == 0 && !anyFailed:
		return StatusSuccess
	case accepted > 0:
		return StatusPartial
	case fetched == 0 && anyFailed:
		return StatusFailed
	default:
		return StatusPartial
	}
}
