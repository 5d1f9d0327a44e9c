package operations

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"time"

	"skuforecast/internal/config"
	"skuforecast/internal/dataprocessing"
	"skuforecast/internal/errors"
	"skuforecast/internal/exporter"
	"skuforecast/internal/features"
	"skuforecast/internal/files"
	"skuforecast/internal/model"
	"skuforecast/pkg/contracts/domain"
)

// LoadStage reads the sales history, aggregates it per SKU and fixes the
// forecast horizon
type LoadStage struct {
	BaseStage
	cfg        config.ForecastConfig
	discovery  *files.Discovery
	summarizer *dataprocessing.Summarizer
	tracer     *RunTracer
	logger     *slog.Logger
}

// NewLoadStage creates the load step
func NewLoadStage(cfg config.ForecastConfig, tracer *RunTracer, logger *slog.Logger) *LoadStage {
	return &LoadStage{
		BaseStage: NewBaseStage(StageIDLoad, StageNameLoad, nil),
		cfg:       cfg,
		discovery: files.NewDiscovery(""),
		summarizer: dataprocessing.NewSummarizer(logger, dataprocessing.SummarizerConfig{
			RareThreshold: cfg.RareSKUThreshold,
			RecentDays:    dataprocessing.DefaultSummarizerConfig().RecentDays,
		}),
		tracer: tracer,
		logger: logger,
	}
}

// Execute loads the input file, or every sales file of an input
// directory, into state.Series
func (s *LoadStage) Execute(ctx context.Context, state *RunState) error {
	stepState := state.GetStage(s.ID())

	inputs, err := s.discovery.ResolveInputs(state.Request.InputPath)
	if err != nil {
		return err
	}

	records, err := loadAll(ctx, s.logger, inputs)
	if err != nil {
		return err
	}
	s.tracer.AddCount(ctx, s.tracer.Metrics().RecordsLoaded, len(records))

	series := dataprocessing.GroupBySKU(records)
	if s.cfg.FillGaps {
		var stats dataprocessing.GridStatistics
		series, stats = dataprocessing.ExpandGrid(series)
		stepState.SetMetadata(MetaGridAdded, stats.AddedRecords)
		s.logger.InfoContext(ctx, "expanded sales grid",
			slog.Int("skus", stats.SKUs),
			slog.Int("days", stats.Days),
			slog.Int("added", stats.AddedRecords))
	}
	state.Series = series
	state.Summaries = s.summarizer.Summarize(ctx, series)

	horizon := state.Request.Horizon
	if horizon <= 0 {
		horizon = s.cfg.Horizon
	}
	if _, last, ok := series.DateRange(); ok {
		state.Horizon = domain.NewForecastHorizon(last, horizon)
	}

	rare := 0
	for _, summary := range state.Summaries {
		if summary.Rare {
			rare++
		}
	}

	stepState.SetMetadata(MetaInputFiles, len(inputs))
	stepState.SetMetadata(MetaRecords, len(records))
	stepState.SetMetadata(MetaSKUs, len(series))
	stepState.SetMetadata(MetaRareSKUs, rare)
	stepState.SetMessage(fmt.Sprintf("loaded %d records for %d SKUs", len(records), len(series)))
	return nil
}

// loadAll reads every input file in order and concatenates the records
func loadAll(ctx context.Context, logger *slog.Logger, inputs []string) ([]domain.SalesRecord, error) {
	var records []domain.SalesRecord
	for _, input := range inputs {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		loaded, err := dataprocessing.LoadSales(logger, input)
		if err != nil {
			return nil, err
		}
		records = append(records, loaded...)
	}
	return records, nil
}

// FeatureStage builds the training feature matrix
type FeatureStage struct {
	BaseStage
	cfg      config.ForecastConfig
	loadPath string
	calendar *features.Calendar
	tracer   *RunTracer
	logger   *slog.Logger
}

// NewFeatureStage creates the feature step
func NewFeatureStage(cfg config.ForecastConfig, loadPath string, calendar *features.Calendar, tracer *RunTracer, logger *slog.Logger) *FeatureStage {
	return &FeatureStage{
		BaseStage: NewBaseStage(StageIDFeatures, StageNameFeatures, []string{StageIDLoad}),
		cfg:       cfg,
		loadPath:  loadPath,
		calendar:  calendar,
		tracer:    tracer,
		logger:    logger,
	}
}

// Execute fills state.Builder and, unless a saved model is used, state.Training
func (s *FeatureStage) Execute(ctx context.Context, state *RunState) error {
	stepState := state.GetStage(s.ID())

	if state.Series.Len() == 0 {
		return errors.NewTrainingError("no sales history in %s", state.Request.InputPath)
	}

	state.Builder = features.NewBuilder(s.cfg, s.calendar).WithLogger(s.logger)
	if s.loadPath != "" {
		stepState.SetMessage("training features not built: model loaded from " + s.loadPath)
		return nil
	}

	ds, err := state.Builder.BuildTraining(state.Series)
	if err != nil {
		return err
	}
	state.Training = ds
	s.tracer.AddCount(ctx, s.tracer.Metrics().FeatureRows, ds.Len())

	stepState.SetMetadata(MetaTrainingRows, ds.Len())
	stepState.SetMetadata(MetaColumns, ds.Schema.Width())
	return nil
}

// FitStage trains the regressor, or loads a saved one
type FitStage struct {
	BaseStage
	cfg    config.ModelConfig
	logger *slog.Logger
}

// NewFitStage creates the fit step
func NewFitStage(cfg config.ModelConfig, logger *slog.Logger) *FitStage {
	return &FitStage{
		BaseStage: NewBaseStage(StageIDFit, StageNameFit, []string{StageIDFeatures}),
		cfg:       cfg,
		logger:    logger,
	}
}

// Execute fills state.Model
func (s *FitStage) Execute(ctx context.Context, state *RunState) error {
	stepState := state.GetStage(s.ID())

	if s.cfg.LoadPath != "" {
		m, schema, err := model.LoadFile(s.cfg.LoadPath)
		if err != nil {
			return err
		}
		if err := state.Builder.UseSchema(schema); err != nil {
			return err
		}
		state.Model = m
		stepState.SetMetadata(MetaModelKind, m.Kind())
		stepState.SetMetadata(MetaModelSource, s.cfg.LoadPath)
		stepState.SetMetadata(MetaColumns, schema.Width())
		return nil
	}

	if state.Training == nil {
		return errors.NewTrainingError("no training features")
	}

	m, err := model.New(s.cfg)
	if err != nil {
		return err
	}
	y, err := state.Training.Targets()
	if err != nil {
		return err
	}

	start := time.Now()
	if err := m.Fit(state.Training.Matrix(), y); err != nil {
		return err
	}
	state.Model = m

	s.logger.InfoContext(ctx, "model fitted",
		slog.String("kind", m.Kind()),
		slog.Int("rows", len(y)),
		slog.Duration("duration", time.Since(start)))

	stepState.SetMetadata(MetaModelKind, m.Kind())
	stepState.SetMetadata(MetaModelSource, "trained")
	stepState.SetMetadata(MetaTrainingRows, len(y))
	return nil
}

// PredictStage forecasts every SKU over the horizon
type PredictStage struct {
	BaseStage
	cfg    config.ForecastConfig
	tracer *RunTracer
	logger *slog.Logger
}

// NewPredictStage creates the predict step
func NewPredictStage(cfg config.ForecastConfig, tracer *RunTracer, logger *slog.Logger) *PredictStage {
	return &PredictStage{
		BaseStage: NewBaseStage(StageIDPredict, StageNamePredict, []string{StageIDFit}),
		cfg:       cfg,
		tracer:    tracer,
		logger:    logger,
	}
}

// Execute fills state.Results
func (s *PredictStage) Execute(ctx context.Context, state *RunState) error {
	stepState := state.GetStage(s.ID())
	if state.Model == nil || state.Builder == nil {
		return errors.NewPredictionError("model is not fitted")
	}

	post := newPostProcessor(s.cfg, state.Summaries)

	var (
		results []domain.ForecastResult
		err     error
	)
	if s.cfg.Recursive {
		results, err = s.predictRecursive(ctx, state, post)
	} else {
		results, err = s.predictDirect(ctx, state, post)
	}
	if err != nil {
		return err
	}
	state.Results = results

	stepState.SetMetadata(MetaPredictions, len(results))
	stepState.SetMetadata(MetaFallbacks, post.fallbacks)
	stepState.SetMetadata(MetaClamped, post.clamped)
	if post.clamped > 0 {
		s.logger.InfoContext(ctx, "negative predictions clamped to zero",
			slog.Int("count", post.clamped))
	}
	return nil
}

// predictDirect featurizes the whole horizon from observed history only
func (s *PredictStage) predictDirect(ctx context.Context, state *RunState, post *postProcessor) ([]domain.ForecastResult, error) {
	ds, err := state.Builder.BuildFuture(state.Series, state.Horizon.Dates)
	if err != nil {
		return nil, err
	}
	s.tracer.AddCount(ctx, s.tracer.Metrics().FeatureRows, ds.Len())

	preds, err := state.Model.Predict(ds.Matrix())
	if err != nil {
		return nil, err
	}

	results := make([]domain.ForecastResult, 0, len(preds))
	for i, row := range ds.Rows {
		value, err := post.apply(row.SKU, row.Date, preds[i])
		if err != nil {
			return nil, err
		}
		results = append(results, domain.ForecastResult{SKU: row.SKU, Date: row.Date, PredictedQuantity: value})
	}
	return results, nil
}

// predictRecursive predicts one day at a time and appends each forecast to
// the SKU's history before featurizing the next day
func (s *PredictStage) predictRecursive(ctx context.Context, state *RunState, post *postProcessor) ([]domain.ForecastResult, error) {
	if state.Horizon.Len() == 0 {
		return nil, errors.NewFeatureError("empty forecast horizon")
	}

	series := state.Series
	results := make([]domain.ForecastResult, 0, len(series)*state.Horizon.Len())
	for _, date := range state.Horizon.Dates {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		ds, err := state.Builder.BuildFuture(series, []time.Time{date})
		if err != nil {
			return nil, err
		}
		s.tracer.AddCount(ctx, s.tracer.Metrics().FeatureRows, ds.Len())

		preds, err := state.Model.Predict(ds.Matrix())
		if err != nil {
			return nil, err
		}

		for i, row := range ds.Rows {
			value, err := post.apply(row.SKU, row.Date, preds[i])
			if err != nil {
				return nil, err
			}
			results = append(results, domain.ForecastResult{SKU: row.SKU, Date: row.Date, PredictedQuantity: value})
			series = series.Append(domain.SalesRecord{
				SKU:      row.SKU,
				Date:     row.Date,
				Quantity: value,
				Category: row.Category,
				Added:    true,
			})
		}
	}
	return results, nil
}

// postProcessor applies the rare-SKU policy and clamping to raw predictions
type postProcessor struct {
	clamp     bool
	fallback  map[string]float64 // rare SKUs forecast by category/global mean
	fallbacks int
	clamped   int
}

func newPostProcessor(cfg config.ForecastConfig, summaries []dataprocessing.SKUSummary) *postProcessor {
	p := &postProcessor{clamp: cfg.ClampNegative, fallback: make(map[string]float64)}
	if cfg.RareSKUPolicy != "fallback" {
		return p
	}

	type acc struct {
		total float64
		n     int
	}
	byCategory := make(map[string]*acc)
	var global acc
	for _, summary := range summaries {
		global.total += summary.Total
		global.n += summary.Observations
		if summary.Category == "" {
			continue
		}
		a, ok := byCategory[summary.Category]
		if !ok {
			a = &acc{}
			byCategory[summary.Category] = a
		}
		a.total += summary.Total
		a.n += summary.Observations
	}

	globalMean := 0.0
	if global.n > 0 {
		globalMean = global.total / float64(global.n)
	}
	for _, summary := range summaries {
		if !summary.Rare {
			continue
		}
		value := globalMean
		if a, ok := byCategory[summary.Category]; ok && a.n > 0 {
			value = a.total / float64(a.n)
		}
		p.fallback[summary.SKU] = value
	}
	return p
}

func (p *postProcessor) apply(sku string, date time.Time, pred float64) (float64, error) {
	if value, ok := p.fallback[sku]; ok {
		p.fallbacks++
		pred = value
	}
	if math.IsNaN(pred) || math.IsInf(pred, 0) {
		return 0, errors.NewPredictionError("non-finite prediction for %s on %s",
			sku, date.Format(domain.DateLayout)).With("sku", sku)
	}
	if p.clamp && pred < 0 {
		p.clamped++
		pred = 0
	}
	return pred, nil
}

// WriteStage persists the forecasts and, when configured, the model and
// SKU summaries
type WriteStage struct {
	BaseStage
	writer     ResultWriter
	savePath   string
	summarizer *dataprocessing.Summarizer
	tracer     *RunTracer
	logger     *slog.Logger
}

// NewWriteStage creates the write step
func NewWriteStage(writer ResultWriter, modelCfg config.ModelConfig, cfg config.ForecastConfig, tracer *RunTracer, logger *slog.Logger) *WriteStage {
	savePath := modelCfg.SavePath
	if modelCfg.LoadPath != "" {
		savePath = ""
	}
	return &WriteStage{
		BaseStage: NewBaseStage(StageIDWrite, StageNameWrite, []string{StageIDPredict}),
		writer:    writer,
		savePath:  savePath,
		summarizer: dataprocessing.NewSummarizer(logger, dataprocessing.SummarizerConfig{
			RareThreshold: cfg.RareSKUThreshold,
		}),
		tracer: tracer,
		logger: logger,
	}
}

// Execute writes state.Results to the requested output path together with
// the optional model and summary files. All of them are staged first and
// renamed into place only when every write succeeded; the forecast file is
// the last to appear.
func (s *WriteStage) Execute(ctx context.Context, state *RunState) error {
	stepState := state.GetStage(s.ID())
	output := state.Request.OutputPath

	staging := exporter.NewStaging()
	defer staging.Discard()

	if err := staging.Stage(output, func(path string) error {
		return s.writer.Write(path, state.Results)
	}); err != nil {
		return err
	}

	if s.savePath != "" {
		if err := staging.Stage(s.savePath, func(path string) error {
			return model.SaveFile(path, state.Model, state.Builder.Schema())
		}); err != nil {
			return err
		}
	}

	summaryPath := state.Request.SummaryPath
	if summaryPath != "" {
		if err := staging.Stage(summaryPath, func(path string) error {
			return s.summarizer.WriteJSON(ctx, path, state.Summaries)
		}); err != nil {
			return err
		}
	}

	if err := staging.Commit(); err != nil {
		return err
	}

	s.tracer.AddCount(ctx, s.tracer.Metrics().ForecastsWritten, len(state.Results))
	stepState.SetMetadata(MetaOutputPath, output)
	if s.savePath != "" {
		s.logger.InfoContext(ctx, "model saved", slog.String("path", s.savePath))
	}
	if summaryPath != "" {
		s.logger.InfoContext(ctx, "sku summaries saved", slog.String("path", summaryPath))
	}
	return nil
}
