package usecase

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/google/uuid"

	"BTCPulse/internal/domain/models"
	domrepo "BTCPulse/internal/domain/repository"
	"BTCPulse/internal/services/analytics"
	"BTCPulse/internal/services/series"
	"BTCPulse/internal/services/validation"
	"BTCPulse/pkg/cache"
	"BTCPulse/pkg/config"
	"BTCPulse/pkg/logger"
	"BTCPulse/pkg/util"
)

type Mode string

const (
	ModeFull      Mode = "full"
	ModeIncrement Mode = "increment"
)

// ParseMode accepts "full" or "increment", case-insensitively.
func ParseMode(s string) (Mode, error) {
	switch m := Mode(strings.ToLower(strings.TrimSpace(s))); m {
	case ModeFull, ModeIncrement:
		return m, nil
	}
	return "", fmt.Errorf("unknown mode %q", s)
}

const pipelineLockKey = "pipeline:lock"

var ErrPipelineLocked = errors.New("pipeline already running")

type PipelineConfig struct {
	FullStart time.Time
	LockTTL   time.Duration
	Timeout   time.Duration
}

// PipelineConfigFrom maps fetch config onto the pipeline. A malformed
// full_start falls back to 2017-07-01.
func PipelineConfigFrom(c config.FetchConfig) PipelineConfig {
	start, err := util.ParseDay(c.FullStart)
	if err != nil {
		start = time.Date(2017, 7, 1, 0, 0, 0, 0, time.UTC)
	}
	return PipelineConfig{FullStart: start, LockTTL: c.LockTTL, Timeout: c.Timeout}
}

// Pipeline runs fetch, merge, validate, audit, reconcile, analyze and persist,
// then mirrors and announces the result.
type Pipeline struct {
	cfg       PipelineConfig
	fetcher   *FetchOrchestrator
	validator *validation.Validator
	auditor   *validation.Auditor
	series    domrepo.SeriesStore
	reports   domrepo.ReportStore
	mirror    domrepo.CandleMirror
	publisher domrepo.EventPublisher
	lock      cache.Service
	metrics   domrepo.Metrics
	log       *logger.Logger
	now       func() time.Time
}

type PipelineOption func(*Pipeline)

func WithMirror(m domrepo.CandleMirror) PipelineOption {
	return func(p *Pipeline) { p.mirror = m }
}

func WithPublisher(pub domrepo.EventPublisher) PipelineOption {
	return func(p *Pipeline) { p.publisher = pub }
}

// WithLock guards runs with a cache lock so only one writer touches the data directory.
func WithLock(c cache.Service) PipelineOption {
	return func(p *Pipeline) { p.lock = c }
}

func WithPipelineMetrics(m domrepo.Metrics) PipelineOption {
	return func(p *Pipeline) { p.metrics = m }
}

func WithPipelineLogger(l *logger.Logger) PipelineOption {
	return func(p *Pipeline) { p.log = l }
}

func WithClock(now func() time.Time) PipelineOption {
	return func(p *Pipeline) { p.now = now }
}

// SeriesRepository is what the pipeline needs from persistence.
type SeriesRepository interface {
	domrepo.SeriesStore
	domrepo.ReportStore
}

func NewPipeline(cfg PipelineConfig, fetcher *FetchOrchestrator, v *validation.Validator, a *validation.Auditor, store SeriesRepository, opts ...PipelineOption) *Pipeline {
	p := &Pipeline{
		cfg:       cfg,
		fetcher:   fetcher,
		validator: v,
		auditor:   a,
		series:    store,
		reports:   store,
		log:       logger.Nop(),
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// RunResult describes one pipeline run.
type RunResult struct {
	RunID        string
	Mode         Mode
	Start        time.Time
	End          time.Time
	Fetched      map[string]int
	SourceErrors map[string]string
	FreshDays    int
	ValidDays    int
	TotalDays    int
	Coverage     map[string]int
	Anomalies    map[string]int
	UpToDate     bool
	Mirrored     bool
	Published    bool
	Duration     time.Duration
}

// Summary renders the run as a few human readable lines.
func (r RunResult) Summary() string {
	var b strings.Builder
	fmt.Fprintf(&b, "run %s (%s) %s..%s in %s\n", r.RunID, r.Mode,
		util.DayOf(r.Start), util.DayOf(r.End), r.Duration.Round(time.Millisecond))
	if r.UpToDate {
		b.WriteString("series already up to date\n")
		return b.String()
	}
	for _, ex := range sortedKeys(r.Fetched) {
		line := fmt.Sprintf("  %-8s %s records", ex, humanize.Comma(int64(r.Fetched[ex])))
		if msg, ok := r.SourceErrors[ex]; ok {
			line += " (failed: " + msg + ")"
		}
		b.WriteString(line + "\n")
	}
	fmt.Fprintf(&b, "fresh days %s, valid %s, series total %s\n",
		humanize.Comma(int64(r.FreshDays)), humanize.Comma(int64(r.ValidDays)), humanize.Comma(int64(r.TotalDays)))
	if r.FreshDays > 0 {
		for _, ex := range sortedKeys(r.Coverage) {
			pct := float64(r.Coverage[ex]) / float64(r.FreshDays) * 100
			fmt.Fprintf(&b, "  coverage %-8s %s%%\n", ex, humanize.FtoaWithDigits(pct, 2))
		}
	}
	for _, kind := range sortedKeys(r.Anomalies) {
		fmt.Fprintf(&b, "  anomalies %-13s %d\n", kind, r.Anomalies[kind])
	}
	return b.String()
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Run executes one pipeline pass. Increment mode starts the day after the last
// persisted date and falls back to a full run when nothing is persisted yet.
// The run fails only when every source returned zero records.
func (p *Pipeline) Run(ctx context.Context, mode Mode) (RunResult, error) {
	began := p.now()
	res := RunResult{RunID: uuid.NewString(), Mode: mode}
	log := p.log.With(logger.String("run_id", res.RunID), logger.String("mode", string(mode)))

	if p.cfg.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.cfg.Timeout)
		defer cancel()
	}

	if p.lock != nil {
		ok, err := p.lock.TryLock(ctx, pipelineLockKey, p.cfg.LockTTL)
		switch {
		case err != nil:
			log.Warn("pipeline lock unavailable, continuing without it", logger.Error(err))
		case !ok:
			return res, ErrPipelineLocked
		default:
			defer func() {
				if err := p.lock.Unlock(context.WithoutCancel(ctx), pipelineLockKey); err != nil {
					log.Warn("release pipeline lock", logger.Error(err))
				}
			}()
		}
	}

	existing, err := p.resolveExisting(ctx, &res, log)
	if err != nil {
		return res, err
	}
	res.End = began.UTC()
	if res.Start.After(res.End) {
		res.UpToDate = true
		res.TotalDays = len(existing)
		res.Duration = p.now().Sub(began)
		log.Info("series up to date", logger.String("last_date", existing.LastDate()))
		return res, nil
	}

	log.Info("pipeline started", logger.Time("start", res.Start), logger.Time("end", res.End))
	fetched := p.fetcher.FetchAll(ctx, res.Start, res.End)
	res.Fetched = make(map[string]int, len(fetched.Series))
	for ex, cs := range fetched.Series {
		res.Fetched[ex] = len(cs)
		if n := len(cs); n > 0 && p.metrics != nil {
			p.metrics.RecordLastClose(ex, cs[n-1].Close)
		}
	}
	if len(fetched.Errors) > 0 {
		res.SourceErrors = make(map[string]string, len(fetched.Errors))
		for ex, e := range fetched.Errors {
			res.SourceErrors[ex] = e.Error()
		}
	}
	if fetched.TotalRecords() == 0 {
		p.recordError("pipeline_no_data")
		return res, fmt.Errorf("fetch %s..%s: every source returned zero records: %w",
			util.DayOf(res.Start), util.DayOf(res.End), models.ErrNoData)
	}

	merged := series.Merge(fetched.Series)
	vr := p.validator.Validate(merged)
	res.FreshDays = vr.Stats.TotalDays
	res.ValidDays = vr.Stats.ValidDays
	res.Coverage = vr.Stats.ExchangeCoverage
	res.Anomalies = vr.Anomalies.Counts()
	if p.metrics != nil {
		for kind, n := range res.Anomalies {
			p.metrics.RecordAnomalies(kind, n)
		}
	}

	full := vr.Valid
	if len(existing) > 0 {
		full = series.Reconcile(existing, vr.Valid)
	}
	res.TotalDays = len(full)

	if err := p.persist(ctx, full, vr.Anomalies); err != nil {
		p.recordError("pipeline_persist")
		return res, err
	}

	if p.mirror != nil {
		if err := p.mirror.StoreSeries(ctx, vr.Valid); err != nil {
			p.recordError("pipeline_mirror")
			log.Warn("mirror series failed", logger.Error(err))
		} else {
			res.Mirrored = true
		}
	}

	if p.publisher != nil {
		ev := models.SeriesEvent{
			ID:        res.RunID,
			Type:      models.EventSeriesUpdated,
			Mode:      string(res.Mode),
			FirstDate: full.FirstDate(),
			LastDate:  full.LastDate(),
			Days:      len(full),
			Anomalies: res.Anomalies,
			At:        p.now().UTC(),
		}
		if err := p.publisher.PublishSeriesEvent(ctx, ev); err != nil {
			p.recordError("pipeline_publish")
			log.Warn("publish series event failed", logger.Error(err))
		} else {
			res.Published = true
		}
	}

	res.Duration = p.now().Sub(began)
	if p.metrics != nil {
		p.metrics.RecordLatency("pipeline_"+string(res.Mode), res.Duration.Seconds())
	}
	log.Info("pipeline finished",
		logger.Int("fresh_days", res.FreshDays),
		logger.Int("valid_days", res.ValidDays),
		logger.Int("total_days", res.TotalDays),
		logger.Duration("took", res.Duration),
	)
	return res, nil
}

func (p *Pipeline) resolveExisting(ctx context.Context, res *RunResult, log *logger.Logger) (models.Series, error) {
	res.Start = p.cfg.FullStart
	if res.Mode != ModeIncrement {
		return nil, nil
	}
	existing, err := p.series.LoadSeries(ctx)
	switch {
	case errors.Is(err, models.ErrPersistenceMissing), errors.Is(err, models.ErrNoData):
		log.Info("no persisted series, running full fetch", logger.Time("start", p.cfg.FullStart))
		res.Mode = ModeFull
		return nil, nil
	case err != nil:
		return nil, fmt.Errorf("load persisted series: %w", err)
	}
	res.Start = existing.LastDay().AddDate(0, 0, 1)
	log.Info("incremental fetch", logger.String("last_date", existing.LastDate()), logger.Int("days", len(existing)))
	return existing, nil
}

func (p *Pipeline) persist(ctx context.Context, full models.Series, anomalies models.AnomalyReport) error {
	if err := p.series.SaveSeries(ctx, full); err != nil {
		return fmt.Errorf("save series: %w", err)
	}
	if err := p.reports.SaveAnomalies(ctx, anomalies); err != nil {
		return fmt.Errorf("save anomalies: %w", err)
	}
	if err := p.reports.SaveAnalysis(ctx, analytics.Analyze(full)); err != nil {
		return fmt.Errorf("save analysis: %w", err)
	}
	if p.auditor != nil {
		if err := p.reports.SaveAudit(ctx, p.auditor.Audit(full, p.now())); err != nil {
			return fmt.Errorf("save audit: %w", err)
		}
	}
	return nil
}

func (p *Pipeline) recordError(kind string) {
	if p.metrics != nil {
		p.metrics.RecordError(kind)
	}
}
