package telemetry

import (
	"encoding/csv"
	"encoding/json"
	"io"
	"os"
	"strconv"
	"time"

	"github.com/stationcalyx/calyx/pkg/config"
	"github.com/stationcalyx/calyx/pkg/log"
	"github.com/stationcalyx/calyx/pkg/types"
)

const (
	// envelopeVersion tags every envelope this reader produces
	envelopeVersion = "e1"

	// sourceOverseer and sourceMetrics name the two intake channels
	sourceOverseer = "cbo"
	sourceMetrics  = "agent_metrics"

	// metricsTailRows bounds how many CSV rows one pulse ingests
	metricsTailRows = 5

	heartbeatConfidence = 1.0
	metricConfidence    = 0.9
)

// numericColumns are CSV columns coerced to float64. A row whose numeric
// cell fails to parse is dropped entirely.
var numericColumns = map[string]bool{
	"tes":           true,
	"duration_s":    true,
	"changed_files": true,
}

// Reader converts on-disk telemetry artifacts into event envelopes. It
// never returns errors: unreadable files yield empty results, malformed
// rows are skipped.
type Reader struct {
	layout config.Layout
	window time.Duration
}

// NewReader creates a telemetry reader. window bounds heartbeat freshness
// by file mtime (payload timestamps are not consulted).
func NewReader(layout config.Layout, window time.Duration) *Reader {
	return &Reader{
		layout: layout,
		window: window,
	}
}

// IngestRecent reads the overseer heartbeat and the metrics CSV tail and
// returns the normalized envelopes, heartbeat first.
func (r *Reader) IngestRecent() []types.EventEnvelope {
	events := []types.EventEnvelope{}

	if ev, ok := r.readOverseer(); ok {
		events = append(events, ev)
	}
	events = append(events, r.readMetricsTail()...)

	return events
}

// readOverseer reads outgoing/cbo.lock when its mtime is within the
// window. The window is wall-clock mtime, not the payload ts.
func (r *Reader) readOverseer() (types.EventEnvelope, bool) {
	logger := log.WithComponent("telemetry")
	path := r.layout.OverseerHeartbeat()

	info, err := os.Stat(path)
	if err != nil {
		logger.Debug().Str("path", path).Msg("overseer heartbeat absent")
		return types.EventEnvelope{}, false
	}
	if time.Since(info.ModTime()) > r.window {
		logger.Debug().Str("path", path).Time("mtime", info.ModTime()).Msg("overseer heartbeat stale")
		return types.EventEnvelope{}, false
	}

	data, err := os.ReadFile(path)
	if err != nil {
		logger.Debug().Err(err).Msg("overseer heartbeat unreadable")
		return types.EventEnvelope{}, false
	}

	var hb map[string]interface{}
	if err := json.Unmarshal(data, &hb); err != nil {
		logger.Debug().Err(err).Msg("overseer heartbeat malformed")
		return types.EventEnvelope{}, false
	}

	payload := map[string]interface{}{}
	for _, key := range []string{"metrics", "gates", "locks", "capacity"} {
		if v, ok := hb[key]; ok {
			payload[key] = v
		}
	}

	return types.EventEnvelope{
		Timestamp:  info.ModTime(),
		Source:     sourceOverseer,
		Category:   types.CategoryStatus,
		Payload:    payload,
		Confidence: heartbeatConfidence,
		Version:    envelopeVersion,
	}, true
}

// readMetricsTail reads the last rows of logs/agent_metrics.csv. Header
// order drives the column mapping; numeric parse failures and short rows
// drop the row, never the batch.
func (r *Reader) readMetricsTail() []types.EventEnvelope {
	logger := log.WithComponent("telemetry")

	f, err := os.Open(r.layout.MetricsCSV())
	if err != nil {
		logger.Debug().Err(err).Msg("metrics csv absent")
		return nil
	}
	defer f.Close()

	reader := csv.NewReader(f)
	reader.FieldsPerRecord = -1

	header, err := reader.Read()
	if err != nil {
		logger.Debug().Err(err).Msg("metrics csv header unreadable")
		return nil
	}

	var rows [][]string
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			// one bad record drops that record only
			continue
		}
		rows = append(rows, record)
		if len(rows) > metricsTailRows {
			rows = rows[1:]
		}
	}

	events := make([]types.EventEnvelope, 0, len(rows))
	for _, row := range rows {
		if ev, ok := r.rowToEnvelope(header, row); ok {
			events = append(events, ev)
		}
	}
	return events
}

// rowToEnvelope maps one CSV row onto an envelope. Returns false when the
// row is short or a numeric column fails to parse.
func (r *Reader) rowToEnvelope(header, row []string) (types.EventEnvelope, bool) {
	if len(row) < len(header) {
		return types.EventEnvelope{}, false
	}

	payload := make(map[string]interface{}, len(header))
	for i, col := range header {
		val := row[i]
		if numericColumns[col] {
			f, err := strconv.ParseFloat(val, 64)
			if err != nil {
				return types.EventEnvelope{}, false
			}
			payload[col] = f
			continue
		}
		payload[col] = val
	}

	ts := time.Now()
	if iso, ok := payload["iso_ts"].(string); ok {
		if parsed, err := time.Parse(time.RFC3339, iso); err == nil {
			ts = parsed
		}
	}

	return types.EventEnvelope{
		Timestamp:  ts,
		Source:     sourceMetrics,
		Category:   types.CategoryMetric,
		Payload:    payload,
		Confidence: metricConfidence,
		Version:    envelopeVersion,
	}, true
}
