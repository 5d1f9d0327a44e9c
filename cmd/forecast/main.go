package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"skuforecast/internal/config"
	"skuforecast/internal/errors"
	"skuforecast/internal/infrastructure"
	"skuforecast/internal/operations"
	"skuforecast/internal/validation"
	"skuforecast/pkg/contracts"
)

// cliFlags holds the command line overrides; zero values leave the
// configuration untouched
type cliFlags struct {
	configFile  string
	input       string
	output      string
	horizon     int
	modelKind   string
	recursive   bool
	fillGaps    bool
	saveModel   string
	loadModel   string
	metricsFile string
	summary     string
	version     bool

	set map[string]bool
}

func main() {
	os.Exit(run(os.Args[1:], os.Stdout))
}

func parseFlags(args []string, output io.Writer) (*cliFlags, error) {
	f := &cliFlags{set: make(map[string]bool)}

	fs := flag.NewFlagSet("forecast", flag.ContinueOnError)
	fs.SetOutput(output)
	fs.StringVar(&f.configFile, "config", "", "path to a YAML config file (defaults to forecast.yaml or configs/forecast.yaml)")
	fs.StringVar(&f.input, "in", "", "sales history CSV or xlsx, or a directory of them (defaults to data/raw/sales.csv)")
	fs.StringVar(&f.output, "out", "", "forecast output file, .csv or .xlsx (defaults to data/results/forecast.csv)")
	fs.IntVar(&f.horizon, "horizon", 0, "number of days to forecast after the latest date in the data")
	fs.StringVar(&f.modelKind, "model", "", "regressor kind: gbm or ridge")
	fs.BoolVar(&f.recursive, "recursive", false, "feed each day's forecast back into the history")
	fs.BoolVar(&f.fillGaps, "fill-gaps", false, "expand every SKU to a daily grid with zero sales on missing days")
	fs.StringVar(&f.saveModel, "save-model", "", "write the fitted model to this path")
	fs.StringVar(&f.loadModel, "load-model", "", "forecast with a previously saved model instead of training")
	fs.StringVar(&f.metricsFile, "metrics-file", "", "write run metrics in Prometheus textfile format to this path")
	fs.StringVar(&f.summary, "summary", "", "write per-SKU history statistics as JSON to this path")
	fs.BoolVar(&f.version, "version", false, "print version information and exit")

	if err := fs.Parse(args); err != nil {
		return nil, err
	}
	if fs.NArg() > 0 {
		return nil, fmt.Errorf("unexpected arguments: %v", fs.Args())
	}
	fs.Visit(func(fl *flag.Flag) { f.set[fl.Name] = true })
	return f, nil
}

// applyFlags overlays explicitly set flags onto cfg
func applyFlags(cfg *config.Config, f *cliFlags) {
	if f.input != "" {
		cfg.Paths.InputFile = f.input
	}
	if f.output != "" {
		cfg.Paths.OutputFile = f.output
	}
	if f.horizon > 0 {
		cfg.Forecast.Horizon = f.horizon
	}
	if f.modelKind != "" {
		cfg.Model.Kind = f.modelKind
	}
	if f.set["recursive"] {
		cfg.Forecast.Recursive = f.recursive
	}
	if f.set["fill-gaps"] {
		cfg.Forecast.FillGaps = f.fillGaps
	}
	if f.saveModel != "" {
		cfg.Model.SavePath = f.saveModel
	}
	if f.loadModel != "" {
		cfg.Model.LoadPath = f.loadModel
	}
	if f.metricsFile != "" {
		cfg.Telemetry.Enabled = true
		cfg.Telemetry.MetricsFile = f.metricsFile
	}
}

func run(args []string, stdout io.Writer) int {
	flags, err := parseFlags(args, stdout)
	if err != nil {
		if err == flag.ErrHelp {
			return 0
		}
		return 2
	}
	if flags.version {
		fmt.Fprintln(stdout, contracts.GetFullVersionString())
		return 0
	}

	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		slog.Warn("Failed to load .env file", "error", err)
	}

	cfg, err := config.Load(flags.configFile)
	if err != nil {
		slog.Error("Failed to load configuration", "error", err)
		return 1
	}
	applyFlags(cfg, flags)
	if err := cfg.Validate(); err != nil {
		slog.Error("Invalid configuration", "error", err)
		return 1
	}

	paths, err := config.GetPaths(cfg.Paths)
	if err != nil {
		slog.Error("Failed to initialize paths", "error", err)
		return 1
	}
	if err := paths.EnsureDirectories(); err != nil {
		slog.Error("Failed to create required directories", "error", err)
		return 1
	}
	placeOutputs(cfg, paths, flags)

	logger, err := infrastructure.InitializeLogger(cfg.Logging)
	if err != nil {
		slog.Warn("Failed to initialize logger, using default", "error", err)
		logger = slog.Default()
	}
	defer infrastructure.CloseLogFile()

	telemetry, err := infrastructure.InitializeOTel(cfg.Telemetry, logger)
	if err != nil {
		logger.Warn("Failed to initialize telemetry, continuing without it", slog.String("error", err.Error()))
		telemetry = infrastructure.NoopTelemetry()
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := telemetry.Shutdown(shutdownCtx); err != nil {
			logger.Warn("Telemetry shutdown failed", slog.String("error", err.Error()))
		}
	}()

	validator := validation.NewFileValidator(logger)
	if err := validateRun(validator, cfg, paths, flags); err != nil {
		logger.Error("Run validation failed",
			slog.String("kind", string(errors.KindOf(err))),
			slog.String("error", err.Error()))
		return 1
	}

	runner, err := operations.NewRunner(cfg, operations.Options{
		Logger:    logger,
		Telemetry: telemetry,
	})
	if err != nil {
		logger.Error("Failed to create forecast runner", slog.String("error", err.Error()))
		return 1
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx = infrastructure.EnsureRunID(ctx)

	resp, runErr := runner.Execute(ctx, operations.RunRequest{
		InputPath:   paths.SalesCSV,
		OutputPath:  paths.ForecastCSV,
		SummaryPath: flags.summary,
	})

	if metricsFile := cfg.Telemetry.MetricsFile; metricsFile != "" {
		if err := telemetry.WriteMetricsFile(metricsFile); err != nil {
			logger.WarnContext(ctx, "Failed to write metrics file",
				slog.String("path", metricsFile),
				slog.String("error", err.Error()))
		}
	}

	if runErr != nil {
		logger.ErrorContext(ctx, "Forecast failed",
			slog.String("step", errors.StageOf(runErr)),
			slog.String("kind", string(errors.KindOf(runErr))),
			slog.String("error", runErr.Error()))
		return 1
	}

	fmt.Fprintf(stdout, "wrote %d forecasts to %s (run %s)\n", len(resp.Results), paths.ForecastCSV, resp.ID)
	return 0
}

// placeOutputs puts bare file names into the standard layout: models under
// data/models, summaries and metrics under data/results, logs under logs
func placeOutputs(cfg *config.Config, paths *config.Paths, flags *cliFlags) {
	cfg.Model.SavePath = underDir(cfg.Model.SavePath, paths.GetModelPath)
	cfg.Model.LoadPath = underDir(cfg.Model.LoadPath, paths.GetModelPath)
	cfg.Telemetry.MetricsFile = underDir(cfg.Telemetry.MetricsFile, paths.GetResultPath)
	flags.summary = underDir(flags.summary, paths.GetResultPath)
	if p := cfg.Logging.FilePath; p != "" && !filepath.IsAbs(p) {
		cfg.Logging.FilePath = paths.GetLogPath(filepath.Base(p))
	}
}

func underDir(p string, join func(string) string) string {
	if p == "" || filepath.Base(p) != p {
		return p
	}
	return join(p)
}

// validateRun checks every path the run touches before any work starts
func validateRun(v *validation.FileValidator, cfg *config.Config, paths *config.Paths, flags *cliFlags) error {
	if err := v.ValidateInput(paths.SalesCSV); err != nil {
		return err
	}
	if err := v.ValidateOutput(paths.ForecastCSV); err != nil {
		return err
	}
	if cfg.Model.LoadPath != "" {
		if err := v.ValidateFile(cfg.Model.LoadPath); err != nil {
			return err
		}
	}
	for _, p := range []string{cfg.Model.SavePath, flags.summary, cfg.Telemetry.MetricsFile} {
		if p == "" {
			continue
		}
		if err := v.ValidateOutputDirectory(filepath.Dir(p)); err != nil {
			return err
		}
	}
	return nil
}
