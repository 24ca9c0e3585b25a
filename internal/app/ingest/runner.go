// Package ingest loads upstream exports into the outlook store. Dimension
// data is written first, then the program catalog, then outlooks in parallel.
// Re-running an ingest is safe: rows the store already holds count as
// duplicates rather than failures.
package ingest

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"outlook_service/internal/app/apperr"
	"outlook_service/internal/app/config"
	"outlook_service/internal/app/logger"
	"outlook_service/internal/app/metrics"
	"outlook_service/internal/app/model"
	"outlook_service/internal/app/store"
)

const (
	EntityUnitGroup      = "unit_group"
	EntitySection        = "section"
	EntityEconomicRegion = "economic_region"
	EntityProgramArea    = "program_area"
	EntityProgram        = "program"
	EntityOutlook        = "outlook"

	ResultStored    = "stored"
	ResultDuplicate = "duplicate"
	ResultFailed    = "failed"
)

// Sink is the subset of the store the ingester writes to.
type Sink interface {
	UpsertUnitGroup(ctx context.Context, noc, occupation string) (*model.UnitGroup, error)
	AddSection(ctx context.Context, noc, title string, items []string) (*model.Section, error)
	UpsertEconomicRegion(ctx context.Context, code, name string) (*model.EconomicRegion, error)
	UpsertProgramArea(ctx context.Context, in store.ProgramAreaInput) (*model.ProgramArea, error)
	UpsertProgram(ctx context.Context, in store.ProgramInput) (*model.Program, error)
	RecordOutlook(ctx context.Context, in store.OutlookInput) (*model.Outlook, error)
}

type Counts struct {
	Stored    int `json:"stored"`
	Duplicate int `json:"duplicate"`
	Failed    int `json:"failed"`
}

// Summary reports one run. Errors holds one entry per failed record.
type Summary struct {
	RunID    string             `json:"run_id"`
	Entities map[string]*Counts `json:"entities"`
	Errors   []error            `json:"-"`
	Elapsed  time.Duration      `json:"elapsed"`

	mu sync.Mutex
}

func (s *Summary) Failed() int {
	n := 0
	for _, c := range s.Entities {
		n += c.Failed
	}
	return n
}

func (s *Summary) record(entity, result string, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.Entities[entity]
	if !ok {
		c = &Counts{}
		s.Entities[entity] = c
	}
	switch result {
	case ResultStored:
		c.Stored++
	case ResultDuplicate:
		c.Duplicate++
	default:
		c.Failed++
		s.Errors = append(s.Errors, err)
	}
}

type Runner struct {
	sink         Sink
	log          *logger.Logger
	metrics      *metrics.Metrics
	concurrency  int
	maxRetries   int
	initialDelay time.Duration
}

func NewRunner(sink Sink, cfg config.IngestConfig, log *logger.Logger, m *metrics.Metrics) *Runner {
	r := &Runner{
		sink:         sink,
		log:          log.With("service", "Ingest"),
		metrics:      m,
		concurrency:  cfg.Concurrency,
		maxRetries:   cfg.MaxRetries,
		initialDelay: cfg.InitialDelay,
	}
	if r.concurrency < 1 {
		r.concurrency = 1
	}
	if r.initialDelay <= 0 {
		r.initialDelay = 200 * time.Millisecond
	}
	return r
}

// RunBundle writes every record of b. It only fails when ctx ends; record
// level failures are counted in the summary.
func (r *Runner) RunBundle(ctx context.Context, b *Bundle) (*Summary, error) {
	sum, log := r.start("bundle", "records", b.Len())
	start := time.Now()
	defer func() { r.finish(log, sum, start) }()

	for _, ug := range b.UnitGroups {
		ug := ug
		ok := r.write(ctx, sum, log, EntityUnitGroup, ug.NOC, func(ctx context.Context) error {
			_, err := r.sink.UpsertUnitGroup(ctx, ug.NOC, ug.Occupation)
			return err
		})
		for _, sec := range ug.Sections {
			sec := sec
			if !ok {
				sum.record(EntitySection, ResultFailed, fmt.Errorf("section %s/%s: unit group not written", ug.NOC, sec.Title))
				r.metrics.ObserveIngest(EntitySection, ResultFailed)
				continue
			}
			r.write(ctx, sum, log, EntitySection, ug.NOC+"/"+sec.Title, func(ctx context.Context) error {
				_, err := r.sink.AddSection(ctx, ug.NOC, sec.Title, sec.Items)
				return err
			})
		}
	}
	for _, er := range b.EconomicRegions {
		er := er
		r.write(ctx, sum, log, EntityEconomicRegion, er.Code, func(ctx context.Context) error {
			_, err := r.sink.UpsertEconomicRegion(ctx, er.Code, er.Name)
			return err
		})
	}

	areas := make(map[string]uint, len(b.ProgramAreas))
	failedAreas := map[string]bool{}
	for _, pa := range b.ProgramAreas {
		pa := pa
		failedAreas[pa.Title] = !r.write(ctx, sum, log, EntityProgramArea, pa.Title, func(ctx context.Context) error {
			row, err := r.sink.UpsertProgramArea(ctx, store.ProgramAreaInput{ID: pa.ID, Title: pa.Title})
			if err == nil {
				areas[row.Title] = row.ID
			}
			return err
		})
	}
	for _, p := range b.Programs {
		in := store.ProgramInput{
			NID:            p.NID,
			Title:          p.Title,
			Duration:       p.Duration,
			Keywords:       p.Keywords,
			NOC:            p.NOC,
			KnownNOCGroups: p.KnownNOCGroups,
			Credential:     p.Credential,
			ProgramAreaID:  p.ProgramAreaID,
		}
		if p.ProgramArea != "" && failedAreas[p.ProgramArea] {
			sum.record(EntityProgram, ResultFailed, fmt.Errorf("program %d: program area %q not written", p.NID, p.ProgramArea))
			r.metrics.ObserveIngest(EntityProgram, ResultFailed)
			continue
		}
		if p.ProgramArea != "" {
			// 未登録のタイトルは0のままにしてストアにReferenceエラーを返させる
			in.ProgramAreaID = areas[p.ProgramArea]
		}
		r.write(ctx, sum, log, EntityProgram, fmt.Sprint(p.NID), func(ctx context.Context) error {
			_, err := r.sink.UpsertProgram(ctx, in)
			return err
		})
	}
	if ctx.Err() != nil {
		return sum, ctx.Err()
	}

	return sum, r.outlooks(ctx, sum, log, b.Outlooks)
}

// RunOutlooks records outlooks only, for sources that carry no dimension data.
func (r *Runner) RunOutlooks(ctx context.Context, source string, recs []OutlookRecord) (*Summary, error) {
	sum, log := r.start(source, "records", len(recs))
	start := time.Now()
	defer func() { r.finish(log, sum, start) }()
	return sum, r.outlooks(ctx, sum, log, recs)
}

func (r *Runner) outlooks(ctx context.Context, sum *Summary, log *logger.Logger, recs []OutlookRecord) error {
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(r.concurrency)
	for i := range recs {
		rec := recs[i]
		g.Go(func() error {
			if gctx.Err() != nil {
				return gctx.Err()
			}
			key := fmt.Sprintf("%s/%s/%s/%s", rec.NOC, rec.EconomicRegionCode, rec.Province, rec.Title)
			r.write(gctx, sum, log, EntityOutlook, key, func(ctx context.Context) error {
				_, err := r.sink.RecordOutlook(ctx, store.OutlookInput{
					NOC:                rec.NOC,
					EconomicRegionCode: rec.EconomicRegionCode,
					Title:              rec.Title,
					Category:           rec.Outlook,
					Trends:             rec.Trends,
					ReleaseDate:        rec.ReleaseDate,
					Province:           rec.Province,
					Lang:               rec.Lang,
					ProgramNID:         rec.ProgramNID,
				})
				return err
			})
			return nil
		})
	}
	return g.Wait()
}

// insertOnly lists the entities whose conflict means the same row is already
// stored. Upserted entities only conflict when the request disagrees with
// stored data, which is a failure.
var insertOnly = map[string]bool{
	EntitySection: true,
	EntityOutlook: true,
}

// write runs fn with retries on transient failures and records the outcome.
func (r *Runner) write(ctx context.Context, sum *Summary, log *logger.Logger, entity, key string, fn func(ctx context.Context) error) bool {
	err := r.retry(ctx, func() error { return fn(ctx) })

	result := ResultStored
	switch {
	case err == nil:
	case insertOnly[entity] && errors.Is(err, apperr.ErrConflict):
		result = ResultDuplicate
		log.Debug("already ingested", "entity", entity, "key", key)
	default:
		result = ResultFailed
		err = fmt.Errorf("%s %s: %w", entity, key, err)
		log.Warn("ingest failed", "entity", entity, "key", key, "kind", apperr.KindOf(err), "error", err)
	}
	sum.record(entity, result, err)
	r.metrics.ObserveIngest(entity, result)
	return result != ResultFailed
}

func (r *Runner) retry(ctx context.Context, fn func() error) error {
	eb := backoff.NewExponentialBackOff()
	eb.InitialInterval = r.initialDelay
	eb.MaxElapsedTime = 0
	b := backoff.WithContext(backoff.WithMaxRetries(eb, uint64(r.maxRetries)), ctx)

	var last error
	err := backoff.Retry(func() error {
		last = fn()
		if last == nil || !apperr.IsRetryable(last) {
			return backoff.Permanent(last)
		}
		return last
	}, b)
	if err == nil || last == nil {
		return err
	}
	// a cancelled context ends the loop with ctx.Err(); the store error says more
	return last
}

func (r *Runner) start(source, countKey string, n int) (*Summary, *logger.Logger) {
	sum := &Summary{RunID: uuid.NewString(), Entities: map[string]*Counts{}}
	log := r.log.With("run_id", sum.RunID, "source", source)
	log.Info("ingest started", countKey, n, "concurrency", r.concurrency)
	return sum, log
}

func (r *Runner) finish(log *logger.Logger, sum *Summary, start time.Time) {
	sum.Elapsed = time.Since(start)
	for entity, c := range sum.Entities {
		log.Info("ingest finished", "entity", entity, "stored", c.Stored, "duplicate", c.Duplicate, "failed", c.Failed)
	}
	if n := sum.Failed(); n > 0 {
		log.Warn("ingest completed with failures", "failed", n, "elapsed", sum.Elapsed)
	}
}
