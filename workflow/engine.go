package workflow

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/mmdatafocus/indicator_monitor/config"
	"github.com/mmdatafocus/indicator_monitor/models"
	"github.com/mmdatafocus/indicator_monitor/utils"
	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"
	"gorm.io/gorm"
)

const (
	TriggerFact     = "fact"
	TriggerSweep    = "sweep"
	TriggerExternal = "external"
	TriggerManual   = "manual"
)

const (
	skipInactive = "inactive"
	skipUnbound  = "no family binding"
	skipNoValue  = "no external value yet"
)

const maxRetryBackoff = 5 * time.Second

type IndicatorStore interface {
	GetByCode(ctx context.Context, code string) (*models.Indicator, error)
	ListActive(ctx context.Context) ([]models.Indicator, error)
	SaveValue(ctx context.Context, code string, value float64, computedAt time.Time) error
}

// RunResult describes one pipeline run for one indicator.
type RunResult struct {
	Code     string                `json:"code"`
	Value    *float64              `json:"value,omitempty"`
	Decision BreachDecision        `json:"decision"`
	Created  *models.NonConformity `json:"created,omitempty"`
	Skipped  string                `json:"skipped,omitempty"`
}

type SweepResult struct {
	StartedAt    time.Time         `json:"started_at"`
	Duration     time.Duration     `json:"duration"`
	Total        int               `json:"total"`
	Processed    int               `json:"processed"`
	Breached     int               `json:"breached"`
	Materialized int               `json:"materialized"`
	Skipped      int               `json:"skipped"`
	Failed       int               `json:"failed"`
	Failures     map[string]string `json:"failures,omitempty"`
}

func (r *SweepResult) record(run RunResult, err error) {
	switch {
	case err != nil:
		r.Failed++
		r.Failures[run.Code] = err.Error()
	case run.Skipped != "":
		r.Skipped++
	default:
		r.Processed++
		if run.Decision.IsBreach {
			r.Breached++
		}
		if run.Created != nil {
			r.Materialized++
		}
	}
}

// Engine runs recompute -> evaluate -> materialize -> notify for indicators.
// Runs for the same code are serialized by Locker; different codes run in parallel.
type Engine struct {
	Indicators   IndicatorStore
	Facts        FactSource
	Bindings     *Bindings
	Materializer *Materializer
	Notifier     *Notifier
	Locker       *IndicatorLocker
	Logger       *logrus.Logger

	IndicatorTimeout time.Duration
	Concurrency      int
	RetryAttempts    int
	RetryBackoff     time.Duration
	Now              func() time.Time

	sweeping atomic.Bool
}

func NewEngine(db *gorm.DB, logger *logrus.Logger, bindings *Bindings, notifier *Notifier) *Engine {
	store := models.NewStore(db)
	return &Engine{
		Indicators:       store,
		Facts:            store,
		Bindings:         bindings,
		Materializer:     NewMaterializer(db, logger),
		Notifier:         notifier,
		Locker:           NewIndicatorLocker(nil, 30*time.Second, logger),
		Logger:           logger,
		IndicatorTimeout: 20 * time.Second,
		Concurrency:      4,
		RetryAttempts:    3,
		RetryBackoff:     200 * time.Millisecond,
		Now:              time.Now,
	}
}

// ApplySettings copies the sweep tunables onto the engine.
func (e *Engine) ApplySettings(s config.MonitorSettings) {
	e.IndicatorTimeout = s.IndicatorTimeout
	e.Concurrency = s.SweepConcurrency
	e.RetryAttempts = s.SweepRetryAttempts
	e.RetryBackoff = s.SweepRetryBackoff
	if e.Locker != nil {
		e.Locker.TTL = s.LockTTL
	}
}

// OnFactWritten is the synchronous hook called after a fact affecting code was written.
func (e *Engine) OnFactWritten(ctx context.Context, code string) (RunResult, error) {
	return e.run(utils.SetTriggerInContext(ctx, TriggerFact), code, nil)
}

// OnExternalValue stores a collaborator-computed value for an EXTERNAL indicator and evaluates it.
func (e *Engine) OnExternalValue(ctx context.Context, code string, value float64) (RunResult, error) {
	return e.run(utils.SetTriggerInContext(ctx, TriggerExternal), code, &value)
}

func (e *Engine) run(ctx context.Context, code string, external *float64) (result RunResult, err error) {
	trigger, _ := utils.GetTriggerFromContext(ctx)
	ctx, span := tracer.Start(ctx, "indicator.run", trace.WithAttributes(
		attribute.String("indicator.code", code),
		attribute.String("indicator.trigger", trigger),
	))
	defer func() {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		span.End()
	}()

	result.Code = code
	unlock, err := e.Locker.Lock(ctx, code)
	if err != nil {
		indicatorRuns.WithLabelValues(trigger, "error").Inc()
		return result, fmt.Errorf("%w: lock indicator %s: %w", ErrTransientStore, code, err)
	}
	note, err := func() (*Notification, error) {
		defer unlock()
		return e.runLocked(ctx, code, external, &result)
	}()
	if err != nil {
		indicatorRuns.WithLabelValues(trigger, "error").Inc()
		return result, err
	}

	if note != nil {
		e.Notifier.Notify(ctx, *note)
	}
	indicatorRuns.WithLabelValues(trigger, runLabel(result)).Inc()
	return result, nil
}

func (e *Engine) runLocked(ctx context.Context, code string, external *float64, result *RunResult) (*Notification, error) {
	ind, err := e.Indicators.GetByCode(ctx, code)
	if err != nil {
		if errors.Is(err, ErrIndicatorNotFound) {
			return nil, fmt.Errorf("%w: %s", ErrIndicatorNotFound, code)
		}
		return nil, fmt.Errorf("%w: load indicator %s: %w", ErrTransientStore, code, err)
	}
	if !ind.Active() {
		result.Skipped = skipInactive
		return nil, nil
	}

	binding, ok := e.Bindings.Lookup(code)
	var family Family
	if ok {
		family, ok = FamilyFor(binding)
	}
	if !ok {
		e.configurationWarning(code, skipUnbound)
		if external != nil {
			if err := e.saveValue(ctx, code, *external); err != nil {
				return nil, err
			}
			result.Value = external
		}
		result.Skipped = skipUnbound
		return nil, nil
	}

	var comp Computation
	switch {
	case family.IsExternal() && external != nil:
		comp = Computation{Value: *external, Sample: 1}
		if err := e.saveValue(ctx, code, comp.Value); err != nil {
			return nil, err
		}
	case family.IsExternal():
		// sweep or fact trigger: nothing to compute, judge the last stored value
		if ind.CurrentValue == nil {
			result.Skipped = skipNoValue
			return nil, nil
		}
		comp = Computation{Value: *ind.CurrentValue, Sample: 1}
	case external != nil:
		return nil, fmt.Errorf("%w: indicator %s is computed by %s and does not accept external values",
			ErrConfiguration, code, family.Name)
	default:
		comp, err = family.compute(ctx, e.Facts, binding, e.now())
		if err != nil {
			return nil, fmt.Errorf("%w: compute %s: %w", ErrTransientStore, code, err)
		}
		if err := e.saveValue(ctx, code, comp.Value); err != nil {
			return nil, err
		}
	}

	value := comp.Value
	result.Value = &value
	ind.CurrentValue = &value

	decision := Evaluate(*ind, family, comp)
	result.Decision = decision
	if decision.Reason == decisionNoTarget {
		e.configurationWarning(code, decisionNoTarget)
	}
	if !decision.IsBreach {
		return nil, nil
	}

	nc, err := e.Materializer.MaterializeIfNeeded(ctx, *ind, family.Name, decision)
	if err != nil || nc == nil {
		return nil, err
	}
	result.Created = nc
	return &Notification{
		Subject:         fmt.Sprintf("Indicator %s breached its target", code),
		Message:         nc.Description,
		Category:        string(family.Name),
		IndicatorCode:   code,
		NonConformityId: nc.ID,
		CreatedAt:       nc.CreatedAt,
	}, nil
}

func (e *Engine) saveValue(ctx context.Context, code string, value float64) error {
	if err := e.Indicators.SaveValue(ctx, code, value, e.now()); err != nil {
		if errors.Is(err, ErrIndicatorNotFound) {
			return fmt.Errorf("%w: %s", ErrIndicatorNotFound, code)
		}
		return fmt.Errorf("%w: save value for %s: %w", ErrTransientStore, code, err)
	}
	return nil
}

func (e *Engine) configurationWarning(code string, reason string) {
	e.Logger.WithFields(logrus.Fields{
		"field":          "Engine",
		"indicator_code": code,
		"reason":         reason,
	}).Warn(ErrConfiguration.Error() + "; threshold evaluation skipped")
}

// RecomputeAll runs the pipeline for every active indicator. A call made while another
// sweep is running returns ErrSweepInProgress immediately.
func (e *Engine) RecomputeAll(ctx context.Context) (SweepResult, error) {
	if !e.sweeping.CompareAndSwap(false, true) {
		sweeps.WithLabelValues("skipped").Inc()
		return SweepResult{}, ErrSweepInProgress
	}
	defer e.sweeping.Store(false)

	ctx = utils.SetTriggerInContext(ctx, TriggerSweep)
	ctx, span := tracer.Start(ctx, "indicator.sweep")
	defer span.End()

	started := time.Now()
	result := SweepResult{StartedAt: e.now(), Failures: map[string]string{}}

	indicators, err := e.Indicators.ListActive(ctx)
	if err != nil {
		sweeps.WithLabelValues("error").Inc()
		config.LogError(e.Logger, "Engine", "RecomputeAll", "list active indicators", nil, err)
		return result, fmt.Errorf("%w: list indicators: %w", ErrTransientStore, err)
	}
	result.Total = len(indicators)

	var mu sync.Mutex
	var g errgroup.Group
	g.SetLimit(max(e.Concurrency, 1))
	for _, ind := range indicators {
		code := ind.Code
		g.Go(func() error {
			run, err := e.sweepOne(ctx, code)
			mu.Lock()
			defer mu.Unlock()
			result.record(run, err)
			return nil
		})
	}
	_ = g.Wait()

	result.Duration = time.Since(started)
	sweepDuration.Observe(result.Duration.Seconds())
	sweeps.WithLabelValues("completed").Inc()
	span.SetAttributes(
		attribute.Int("sweep.total", result.Total),
		attribute.Int("sweep.failed", result.Failed),
	)
	e.Logger.WithFields(logrus.Fields{
		"field":        "Engine",
		"total":        result.Total,
		"processed":    result.Processed,
		"breached":     result.Breached,
		"materialized": result.Materialized,
		"skipped":      result.Skipped,
		"failed":       result.Failed,
		"duration_ms":  result.Duration.Milliseconds(),
	}).Info("indicator sweep finished")
	return result, nil
}

// sweepOne retries transient failures with capped exponential backoff. IndicatorTimeout
// bounds all attempts and backoff together, so a slow code holds a worker at most that long.
// Any other failure, including a panic or the deadline, is reported for this code only.
func (e *Engine) sweepOne(ctx context.Context, code string) (RunResult, error) {
	if e.IndicatorTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.IndicatorTimeout)
		defer cancel()
	}
	for attempt := 0; ; attempt++ {
		run, err := e.attempt(ctx, code)
		if err == nil {
			return run, nil
		}
		if !retryable(err) || attempt >= e.RetryAttempts || ctx.Err() != nil {
			config.LogError(e.Logger, "Engine", "sweepOne", "recompute indicator", code, err)
			return run, err
		}
		e.Logger.WithFields(logrus.Fields{
			"field":          "Engine",
			"indicator_code": code,
			"attempt":        attempt + 1,
		}).Warn("transient failure, retrying: " + err.Error())
		if !sleepCtx(ctx, e.backoff(attempt)) {
			return run, err
		}
	}
}

func retryable(err error) bool {
	return errors.Is(err, ErrTransientStore) && !errors.Is(err, context.DeadlineExceeded)
}

func (e *Engine) attempt(ctx context.Context, code string) (run RunResult, err error) {
	run.Code = code
	defer func() {
		if r := recover(); r != nil {
			indicatorRuns.WithLabelValues(TriggerSweep, "panic").Inc()
			err = fmt.Errorf("panic while recomputing %s: %v", code, r)
		}
	}()
	return e.run(ctx, code, nil)
}

func (e *Engine) backoff(attempt int) time.Duration {
	if e.RetryBackoff <= 0 {
		return 0
	}
	if attempt >= 30 {
		return maxRetryBackoff
	}
	d := e.RetryBackoff << attempt
	if d <= 0 || d > maxRetryBackoff {
		return maxRetryBackoff
	}
	return d
}

func sleepCtx(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return ctx.Err() == nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return true
	case <-ctx.Done():
		return false
	}
}

func (e *Engine) now() time.Time {
	if e.Now == nil {
		return time.Now()
	}
	return e.Now()
}

func runLabel(r RunResult) string {
	switch {
	case r.Skipped != "":
		return "skipped"
	case r.Created != nil:
		return "materialized"
	case r.Decision.IsBreach:
		return "breach"
	default:
		return "ok"
	}
}
