package dataprocessing

import (
	"context"
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"gonum.org/v1/gonum/stat"

	"skuforecast/internal/errors"
	"skuforecast/pkg/contracts/domain"
)

// Summarizer computes per-SKU history statistics. The runner uses them to
// classify rare SKUs and to derive fallback forecasts.
type Summarizer struct {
	logger        *slog.Logger
	rareThreshold int
	recentDays    int
}

// SummarizerConfig holds configuration options for the Summarizer.
type SummarizerConfig struct {
	RareThreshold int // SKUs with fewer observed days are rare
	RecentDays    int // Trailing observations averaged into RecentMean
}

// DefaultSummarizerConfig returns the summarizer defaults
func DefaultSummarizerConfig() SummarizerConfig {
	return SummarizerConfig{
		RareThreshold: 14,
		RecentDays:    7,
	}
}

// SKUSummary describes one SKU's sales history
type SKUSummary struct {
	SKU          string  `json:"sku_id"`
	Category     string  `json:"category,omitempty"`
	FirstDate    string  `json:"first_date"`
	LastDate     string  `json:"last_date"`
	Observations int     `json:"observations"`
	AddedDays    int     `json:"added_days,omitempty"`
	ZeroDays     int     `json:"zero_days"`
	Total        float64 `json:"total"`
	Mean         float64 `json:"mean"`
	StdDev       float64 `json:"std_dev"`
	RecentMean   float64 `json:"recent_mean"`
	LastQuantity float64 `json:"last_quantity"`
	Rare         bool    `json:"rare"`
}

// NewSummarizer creates a new summarizer with the given configuration.
func NewSummarizer(logger *slog.Logger, config SummarizerConfig) *Summarizer {
	if logger == nil {
		logger = slog.Default()
	}
	if config.RareThreshold < 0 {
		config.RareThreshold = 0
	}
	if config.RecentDays <= 0 {
		config.RecentDays = 7
	}

	return &Summarizer{
		logger:        logger,
		rareThreshold: config.RareThreshold,
		recentDays:    config.RecentDays,
	}
}

// Summarize returns one summary per SKU ordered by SKU id. Rows added by
// grid expansion count towards AddedDays but not Observations.
func (s *Summarizer) Summarize(ctx context.Context, series Series) []SKUSummary {
	summaries := make([]SKUSummary, 0, len(series))
	rare := 0

	for _, sku := range series.SKUs() {
		summary := s.summarizeSKU(sku, series[sku])
		if summary.Rare {
			rare++
		}
		summaries = append(summaries, summary)
	}

	s.logger.DebugContext(ctx, "summarized sku histories",
		slog.Int("sku_count", len(summaries)),
		slog.Int("rare_count", rare))

	return summaries
}

func (s *Summarizer) summarizeSKU(sku string, records []domain.SalesRecord) SKUSummary {
	summary := SKUSummary{
		SKU:      sku,
		Category: Series{sku: records}.Category(sku),
	}
	if len(records) == 0 {
		summary.Rare = s.rareThreshold > 0
		return summary
	}

	summary.FirstDate = records[0].DateKey()
	summary.LastDate = records[len(records)-1].DateKey()

	quantities := make([]float64, 0, len(records))
	for _, r := range records {
		if r.Added {
			summary.AddedDays++
			continue
		}
		quantities = append(quantities, r.Quantity)
		summary.Total += r.Quantity
		if r.Quantity == 0 {
			summary.ZeroDays++
		}
	}
	summary.Observations = len(quantities)
	summary.Rare = summary.Observations < s.rareThreshold

	if len(quantities) == 0 {
		return summary
	}

	summary.LastQuantity = quantities[len(quantities)-1]
	if len(quantities) > 1 {
		summary.Mean, summary.StdDev = stat.MeanStdDev(quantities, nil)
	} else {
		summary.Mean = quantities[0]
	}

	recent := quantities
	if len(recent) > s.recentDays {
		recent = recent[len(recent)-s.recentDays:]
	}
	summary.RecentMean = stat.Mean(recent, nil)

	return summary
}

// WriteJSON writes SKU summaries to a JSON file with metadata.
func (s *Summarizer) WriteJSON(ctx context.Context, path string, summaries []SKUSummary) error {
	s.logger.InfoContext(ctx, "writing sku summaries to JSON",
		slog.String("path", path),
		slog.Int("summary_count", len(summaries)))

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return errors.NewIOError("create directory for", path, err)
	}

	jsonData := map[string]interface{}{
		"skus":           summaries,
		"count":          len(summaries),
		"rare_threshold": s.rareThreshold,
		"generated_at":   time.Now().UTC().Format(time.RFC3339),
		"format":         "sku_summary_v1",
	}

	file, err := os.Create(path)
	if err != nil {
		return errors.NewIOError("create", path, err)
	}
	defer file.Close()

	encoder := json.NewEncoder(file)
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(jsonData); err != nil {
		return errors.NewIOError("encode", path, err)
	}

	return nil
}
