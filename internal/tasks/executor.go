package tasks

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"math/rand/v2"
	"time"

	"github.com/oklog/ulid/v2"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/taiagent/taiagent/internal/store"
	"github.com/taiagent/taiagent/internal/telemetry"
)

// ErrNoSteps is returned by Execute for a nil step list.
var ErrNoSteps = errors.New("tasks: no steps")

// Step outcome states.
const (
	StatusSucceeded = "succeeded"
	StatusSkipped   = "skipped"
)

// StepRunner performs one step.
type StepRunner interface {
	RunStep(ctx context.Context, step Step) (string, error)
}

// StepRunnerFunc adapts a function to StepRunner.
type StepRunnerFunc func(ctx context.Context, step Step) (string, error)

func (f StepRunnerFunc) RunStep(ctx context.Context, step Step) (string, error) { return f(ctx, step) }

// BackoffPolicy bounds the attempts per step and the pause between them.
type BackoffPolicy struct {
	Attempts   int
	Delay      time.Duration
	Multiplier float64 // 1 keeps the delay fixed
	Jitter     float64 // fraction in [0,1]; the delay varies by up to ±Jitter
	MaxDelay   time.Duration
}

// DefaultBackoff is three attempts twenty seconds apart.
func DefaultBackoff() BackoffPolicy {
	return BackoffPolicy{Attempts: 3, Delay: 20 * time.Second, Multiplier: 1}
}

func (p BackoffPolicy) normalized() BackoffPolicy {
	if p.Attempts <= 0 {
		p.Attempts = 1
	}
	if p.Delay < 0 {
		p.Delay = 0
	}
	if p.Multiplier < 1 {
		p.Multiplier = 1
	}
	p.Jitter = math.Max(0, math.Min(p.Jitter, 1))
	return p
}

// DelayFor returns the pause after the given failed attempt (1-based).
// rnd yields values in [0,1).
func (p BackoffPolicy) DelayFor(attempt int, rnd func() float64) time.Duration {
	p = p.normalized()
	d := float64(p.Delay) * math.Pow(p.Multiplier, float64(attempt-1))
	if p.MaxDelay > 0 && d > float64(p.MaxDelay) {
		d = float64(p.MaxDelay)
	}
	if p.Jitter > 0 && rnd != nil {
		d *= 1 + p.Jitter*(2*rnd()-1)
	}
	return time.Duration(d)
}

// StepOutcome is what happened to one step.
type StepOutcome struct {
	Step
	Status   string
	Attempts int
	Output   string
	Err      error
}

// Report is the result of a run.
type Report struct {
	RunID string
	Steps []StepOutcome
}

// Succeeded counts succeeded steps.
func (r *Report) Succeeded() int {
	n := 0
	for _, s := range r.Steps {
		if s.Status == StatusSucceeded {
			n++
		}
	}
	return n
}

// Status summarizes the run as completed, partial or failed.
func (r *Report) Status() string {
	switch ok := r.Succeeded(); {
	case ok == len(r.Steps):
		return store.RunCompleted
	case ok == 0:
		return store.RunFailed
	default:
		return store.RunPartial
	}
}

// Recorder persists runs. *store.DB implements it.
type Recorder interface {
	CreateTaskRun(ctx context.Context, id, request string) error
	RecordStep(ctx context.Context, rec store.StepRecord) error
	FinishTaskRun(ctx context.Context, id, status string) error
}

// Executor runs steps in order, retrying each under Policy. A step that
// exhausts its attempts is skipped and later steps still run.
type Executor struct {
	Runner   StepRunner
	Policy   BackoffPolicy
	Logger   *slog.Logger
	Tracer   trace.Tracer
	Recorder Recorder // optional
	Sleep    func(ctx context.Context, d time.Duration) error
	Rand     func() float64
}

func (e *Executor) logger() *slog.Logger {
	if e.Logger == nil {
		return slog.Default()
	}
	return e.Logger
}

func (e *Executor) tracer() trace.Tracer {
	if e.Tracer == nil {
		return telemetry.Tracer()
	}
	return e.Tracer
}

func (e *Executor) sleep(ctx context.Context, d time.Duration) error {
	if e.Sleep != nil {
		return e.Sleep(ctx, d)
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// Execute runs steps in the given order. It returns an error only for a nil
// step list or a cancelled context; step failures are reported per step.
func (e *Executor) Execute(ctx context.Context, steps []Step) (*Report, error) {
	return e.execute(ctx, "", steps)
}

// ExecutePlan is Execute with the plan's request recorded alongside the run.
func (e *Executor) ExecutePlan(ctx context.Context, p Plan) (*Report, error) {
	return e.execute(ctx, p.Request, p.Steps)
}

func (e *Executor) execute(ctx context.Context, request string, steps []Step) (*Report, error) {
	if steps == nil {
		return nil, ErrNoSteps
	}
	if e.Runner == nil {
		return nil, errors.New("tasks: no step runner")
	}
	policy := e.Policy.normalized()
	report := &Report{RunID: ulid.Make().String(), Steps: make([]StepOutcome, 0, len(steps))}
	log := e.logger().With("run_id", report.RunID)
	// Records survive cancellation of the run itself.
	rctx := context.WithoutCancel(ctx)

	if e.Recorder != nil {
		if err := e.Recorder.CreateTaskRun(rctx, report.RunID, request); err != nil {
			log.Warn("task run not recorded", "error", err)
		}
	}

	var runErr error
	for _, step := range steps {
		var out StepOutcome
		if runErr = ctx.Err(); runErr != nil {
			out = StepOutcome{Step: step, Status: StatusSkipped, Err: runErr}
		} else {
			out = e.runStep(ctx, log, step, policy)
		}
		report.Steps = append(report.Steps, out)
		e.record(rctx, log, report.RunID, out)
	}
	if runErr == nil {
		runErr = ctx.Err()
	}

	status := report.Status()
	if runErr != nil {
		status = store.RunCancelled
	}
	if e.Recorder != nil {
		if err := e.Recorder.FinishTaskRun(rctx, report.RunID, status); err != nil {
			log.Warn("task run finish not recorded", "error", err)
		}
	}
	log.Info("task run finished", "status", status, "succeeded", report.Succeeded(), "steps", len(report.Steps))
	return report, runErr
}

func (e *Executor) runStep(ctx context.Context, log *slog.Logger, step Step, policy BackoffPolicy) StepOutcome {
	ctx, span := e.tracer().Start(ctx, "tasks.step", trace.WithAttributes(attribute.Int("index", step.Index)))
	defer span.End()

	out := StepOutcome{Step: step}
	for attempt := 1; attempt <= policy.Attempts; attempt++ {
		out.Attempts = attempt
		log.Info("step started", "index", step.Index, "attempt", attempt, "attempts", policy.Attempts)
		text, err := e.Runner.RunStep(ctx, step)
		if err == nil {
			out.Status, out.Output, out.Err = StatusSucceeded, text, nil
			span.SetAttributes(attribute.Int("attempts", attempt))
			log.Info("step succeeded", "index", step.Index, "attempt", attempt)
			return out
		}
		out.Err = err
		log.Warn("step attempt failed", "index", step.Index, "attempt", attempt, "attempts", policy.Attempts, "error", err)
		if ctx.Err() != nil || attempt == policy.Attempts {
			break
		}
		if serr := e.sleep(ctx, policy.DelayFor(attempt, e.rand())); serr != nil {
			out.Err = serr
			break
		}
	}

	out.Status = StatusSkipped
	span.SetAttributes(attribute.Int("attempts", out.Attempts))
	span.RecordError(out.Err)
	span.SetStatus(codes.Error, out.Err.Error())
	log.Warn("step skipped", "index", step.Index, "attempts", out.Attempts, "error", out.Err)
	return out
}

func (e *Executor) rand() func() float64 {
	if e.Rand != nil {
		return e.Rand
	}
	return rand.Float64
}

func (e *Executor) record(ctx context.Context, log *slog.Logger, runID string, out StepOutcome) {
	if e.Recorder == nil {
		return
	}
	rec := store.StepRecord{
		RunID:       runID,
		Index:       out.Index,
		Description: out.Description,
		Status:      out.Status,
		Attempts:    out.Attempts,
		Output:      out.Output,
	}
	if out.Err != nil {
		rec.Error = out.Err.Error()
	}
	if err := e.Recorder.RecordStep(ctx, rec); err != nil {
		log.Warn("step not recorded", "index", out.Index, "error", fmt.Errorf("record: %w", err))
	}
}
