package domain

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strconv"
	"time"

	"github.com/stationcalyx/calyx/pkg/config"
	"github.com/stationcalyx/calyx/pkg/types"
)

const (
	// tesWindow is how many trailing TES samples feed the summary
	tesWindow = 20

	// summaryCacheAge is how long a summary stays fresh
	summaryCacheAge = time.Hour
)

// tesSummary is the JSON body written to state/tes_summary.json
type tesSummary struct {
	Count       int       `json:"count"`
	Mean        float64   `json:"mean"`
	Min         float64   `json:"min"`
	Max         float64   `json:"max"`
	GeneratedAt time.Time `json:"generated_at"`
}

// MetricsSummary aggregates the trailing TES samples from the metrics CSV
// into a cached summary file
type MetricsSummary struct {
	layout config.Layout
	now    func() time.Time
}

// NewMetricsSummary creates the metrics_summary domain for a station layout
func NewMetricsSummary(layout config.Layout) *MetricsSummary {
	return &MetricsSummary{
		layout: layout,
		now:    time.Now,
	}
}

// Name returns the capability name
func (d *MetricsSummary) Name() string { return "metrics_summary" }

// CanExecute reports whether the summary file is absent or stale
func (d *MetricsSummary) CanExecute(st types.SystemState) bool {
	info, err := os.Stat(d.layout.TESSummaryFile())
	if err != nil {
		return true
	}
	return d.now().Sub(info.ModTime()) > summaryCacheAge
}

// Execute computes mean/min/max over the trailing TES samples and writes
// the summary file
func (d *MetricsSummary) Execute(intent types.Intent) types.DomainResult {
	samples, result := d.readSamples()
	if result != nil {
		return *result
	}

	summary := tesSummary{
		Count:       len(samples),
		Min:         samples[0],
		Max:         samples[0],
		GeneratedAt: d.now(),
	}
	sum := 0.0
	for _, v := range samples {
		sum += v
		if v < summary.Min {
			summary.Min = v
		}
		if v > summary.Max {
			summary.Max = v
		}
	}
	summary.Mean = sum / float64(len(samples))

	if err := d.writeSummary(summary); err != nil {
		return errorResult(fmt.Sprintf("failed to write tes summary: %v", err))
	}

	return doneResult(map[string]interface{}{
		"count": summary.Count,
		"mean":  summary.Mean,
		"min":   summary.Min,
		"max":   summary.Max,
		"path":  d.layout.TESSummaryFile(),
	})
}

// VerifySuccess re-reads the summary file and checks it parses
func (d *MetricsSummary) VerifySuccess(result types.DomainResult) bool {
	if result.Status != types.StatusDone {
		return false
	}
	data, err := os.ReadFile(d.layout.TESSummaryFile())
	if err != nil {
		return false
	}
	var summary tesSummary
	if err := json.Unmarshal(data, &summary); err != nil {
		return false
	}
	return summary.Count > 0
}

// Rollback removes the summary file so the next pulse recomputes it
func (d *MetricsSummary) Rollback(result types.DomainResult) types.DomainResult {
	if err := os.Remove(d.layout.TESSummaryFile()); err != nil && !os.IsNotExist(err) {
		return errorResult(fmt.Sprintf("failed to remove tes summary: %v", err))
	}
	return doneResult(map[string]interface{}{"removed": d.layout.TESSummaryFile()})
}

// readSamples returns the trailing TES values from the metrics CSV, or a
// skipped/error result when there is nothing to aggregate.
func (d *MetricsSummary) readSamples() ([]float64, *types.DomainResult) {
	f, err := os.Open(d.layout.MetricsCSV())
	if err != nil {
		r := skippedResult("metrics csv not found")
		return nil, &r
	}
	defer f.Close()

	reader := csv.NewReader(f)
	reader.FieldsPerRecord = -1

	header, err := reader.Read()
	if err != nil {
		r := skippedResult("metrics csv is empty")
		return nil, &r
	}
	tesCol := -1
	for i, col := range header {
		if col == "tes" {
			tesCol = i
			break
		}
	}
	if tesCol < 0 {
		r := skippedResult("metrics csv has no tes column")
		return nil, &r
	}

	var samples []float64
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil || len(record) <= tesCol {
			continue
		}
		v, err := strconv.ParseFloat(record[tesCol], 64)
		if err != nil {
			continue
		}
		samples = append(samples, v)
		if len(samples) > tesWindow {
			samples = samples[1:]
		}
	}
	if len(samples) == 0 {
		r := skippedResult("no tes samples recorded")
		return nil, &r
	}
	return samples, nil
}

// writeSummary writes the summary file via temp file and rename
func (d *MetricsSummary) writeSummary(summary tesSummary) error {
	data, err := json.MarshalIndent(summary, "", "  ")
	if err != nil {
		return err
	}
	tmp := d.layout.TESSummaryFile() + ".tmp"
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		return err
	}
	return os.Rename(tmp, d.layout.TESSummaryFile())
}
