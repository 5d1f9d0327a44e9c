package operations

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"skuforecast/internal/config"
	"skuforecast/internal/errors"
	"skuforecast/internal/features"
	"skuforecast/internal/infrastructure"
)

// Runner orchestrates forecasting runs
type Runner struct {
	cfg      *config.Config
	registry *Registry
	tracer   *RunTracer
	logger   *slog.Logger
}

// NewRunner builds the five pipeline steps from cfg
func NewRunner(cfg *config.Config, opts Options) (*Runner, error) {
	if cfg == nil {
		return nil, errors.NewConfigError(nil, "nil configuration")
	}
	opts = opts.withDefaults(cfg.Forecast.Precision)

	calendar, err := features.NewCalendar(cfg.Forecast.HolidayCountry, cfg.Forecast.ExtraHolidays)
	if err != nil {
		return nil, errors.NewConfigError(err, "invalid holiday calendar")
	}

	tracer, err := NewRunTracer(opts.Telemetry)
	if err != nil {
		return nil, fmt.Errorf("failed to create run metrics: %w", err)
	}

	logger := opts.Logger
	registry := NewRegistry()
	steps := []Step{
		NewLoadStage(cfg.Forecast, tracer, logger),
		NewFeatureStage(cfg.Forecast, cfg.Model.LoadPath, calendar, tracer, logger),
		NewFitStage(cfg.Model, logger),
		NewPredictStage(cfg.Forecast, tracer, logger),
		NewWriteStage(opts.Writer, cfg.Model, cfg.Forecast, tracer, logger),
	}
	for _, step := range steps {
		if err := registry.Register(step); err != nil {
			return nil, err
		}
	}

	return &Runner{
		cfg:      cfg,
		registry: registry,
		tracer:   tracer,
		logger:   logger,
	}, nil
}

// GetRegistry returns the registry holding the run's steps
func (r *Runner) GetRegistry() *Registry {
	return r.registry
}

// Execute runs every step once, in dependency order. The first failing
// step aborts the run; its error is returned unchanged apart from the
// recorded stage.
func (r *Runner) Execute(ctx context.Context, req RunRequest) (*RunResponse, error) {
	if req.ID == "" {
		req.ID = infrastructure.GetRunID(ctx)
	}
	if req.ID == "" {
		req.ID = infrastructure.NewRunID()
	}
	ctx = infrastructure.WithRunID(ctx, req.ID)

	state := NewRunState(req.ID, req)

	if req.InputPath == "" || req.OutputPath == "" {
		err := errors.NewConfigError(nil, "input and output paths are required")
		state.Fail(err)
		return r.createResponse(state), err
	}

	steps, err := r.registry.GetDependencyOrder()
	if err != nil {
		state.Fail(err)
		return r.createResponse(state), err
	}
	for _, step := range steps {
		state.SetStage(step.ID(), NewStepState(step.ID(), step.Name()))
	}

	ctx, span := r.tracer.TraceRun(ctx, state)

	r.logger.InfoContext(ctx, "forecast run started",
		slog.String("input", req.InputPath),
		slog.String("output", req.OutputPath),
		slog.Int("step_count", len(steps)))

	state.Start()
	err = r.executeSequential(ctx, state, steps)

	switch {
	case err == nil:
		state.Complete()
		r.logger.InfoContext(ctx, "forecast run completed",
			slog.Int("forecasts", len(state.Results)),
			slog.Duration("duration", state.Duration()))
	case ctx.Err() != nil:
		state.Cancel(err)
		r.logger.WarnContext(ctx, "forecast run cancelled",
			slog.String("error", err.Error()))
	default:
		state.Fail(err)
		r.logger.ErrorContext(ctx, "forecast run failed",
			slog.String("step", errors.StageOf(err)),
			slog.String("kind", string(errors.KindOf(err))),
			slog.String("error", err.Error()))
	}

	r.tracer.RecordRunCompletion(ctx, span, state, err)
	return r.createResponse(state), err
}

// executeSequential executes steps one by one
func (r *Runner) executeSequential(ctx context.Context, state *RunState, steps []Step) error {
	for i, step := range steps {
		stepState := state.GetStage(step.ID())
		if stepState.GetStatus() == StepStatusSkipped {
			continue
		}

		if err := ctx.Err(); err != nil {
			r.skipRemaining(state, steps[i:], "run cancelled")
			return fmt.Errorf("run cancelled before step %s: %w", step.ID(), err)
		}

		r.logger.DebugContext(ctx, "executing step",
			slog.String("step", step.ID()),
			slog.Int("step_number", i+1),
			slog.Int("total_steps", len(steps)))

		if err := r.executeStep(ctx, state, step); err != nil {
			r.skipDependentStages(state, step.ID())
			return err
		}
	}
	return nil
}

// executeStep executes a single step inside its own span
func (r *Runner) executeStep(ctx context.Context, state *RunState, step Step) error {
	stepState := state.GetStage(step.ID())
	stepCtx, span := r.tracer.TraceStep(ctx, state.ID, step)

	stepState.Start()
	start := time.Now()
	err := step.Execute(stepCtx, state)
	duration := time.Since(start)

	if err != nil {
		err = errors.WithStage(err, step.ID())
		stepState.Fail(err)
		r.logger.ErrorContext(stepCtx, "step failed",
			slog.String("step", step.ID()),
			slog.Duration("duration", duration),
			slog.String("error", err.Error()))
	} else {
		stepState.Complete()
		r.logger.InfoContext(stepCtx, "step completed",
			slog.String("step", step.ID()),
			slog.Duration("duration", duration),
			slog.Any("metadata", stepState.Metadata))
	}

	r.tracer.RecordStepCompletion(stepCtx, span, step.ID(), duration, err)
	return err
}

// skipDependentStages marks every step that transitively depends on the
// failed step as skipped
func (r *Runner) skipDependentStages(state *RunState, failedStageID string) {
	for _, step := range r.registry.GetDependents(failedStageID) {
		stepState := state.GetStage(step.ID())
		if stepState != nil && stepState.GetStatus() == StepStatusPending {
			stepState.Skip(fmt.Sprintf("dependency %s did not complete", failedStageID))
			r.skipDependentStages(state, step.ID())
		}
	}
}

func (r *Runner) skipRemaining(state *RunState, steps []Step, reason string) {
	for _, step := range steps {
		if stepState := state.GetStage(step.ID()); stepState != nil && stepState.GetStatus() == StepStatusPending {
			stepState.Skip(reason)
		}
	}
}

// createResponse creates a run response from state
func (r *Runner) createResponse(state *RunState) *RunResponse {
	resp := &RunResponse{
		ID:       state.ID,
		Status:   state.Status,
		Duration: state.Duration(),
		Order:    state.Order,
		Steps:    state.Steps,
		Results:  state.Results,
	}
	if state.Error != nil {
		resp.Error = state.Error.Error()
	}
	return resp
}
