package main

import (
	"encoding/json"
	"os"
	"time"

	"github.com/pkg/errors"
	"gonum.org/v1/gonum/stat"
)

// ===========================================================================
// Rolling metrics
// ===========================================================================
//
// The tracker keeps a bounded window of recent loss values, flushed every
// report interval, plus a single smoothed average interval duration used for
// the time-to-completion estimate.
//
// The duration smoother is a cumulative running mean:
//
//   avg <- avg + (1/n)(elapsed - avg)    n = reports emitted so far
//
// This is deliberately not a fixed-decay EMA. The cumulative mean converges
// slower but is unbiased, and the exact update rule is load-bearing: ETA
// reports must stay bit-comparable across reimplementations.
//
// Nothing here is persisted; metrics exist only for reporting.
// ===========================================================================

// Report is the structured summary emitted once per report interval.
type Report struct {
	Step               int     `json:"step"`
	MeanLoss           float64 `json:"mean_loss"`
	WindowSize         int     `json:"window_size"`
	ElapsedMinutes     float64 `json:"elapsed_minutes"`
	AvgIntervalMinutes float64 `json:"avg_interval_minutes"`
	ETAHours           float64 `json:"eta_hours"`
}

// MetricsTracker accumulates losses between reports and estimates time to
// completion from the smoothed interval duration.
type MetricsTracker struct {
	interval int
	endStep  int

	window        []float64
	intervalStart time.Time
	avgMinutes    float64
	reportCount   int

	now func() time.Time
}

// NewMetricsTracker tracks losses for a run ending at endStep, reporting
// every interval steps.
func NewMetricsTracker(interval, endStep int) *MetricsTracker {
	t := &MetricsTracker{
		interval: interval,
		endStep:  endStep,
		now:      time.Now,
	}
	t.intervalStart = t.now()
	return t
}

// Record appends one loss value to the rolling window.
func (t *MetricsTracker) Record(loss float64) {
	t.window = append(t.window, loss)
}

// FlushIfDue returns a report when step falls on a report boundary,
// clearing the window and refining the average interval duration.
// Between boundaries it returns nil.
func (t *MetricsTracker) FlushIfDue(step int) *Report {
	if step%t.interval != 0 || len(t.window) == 0 {
		return nil
	}

	meanLoss := stat.Mean(t.window, nil)
	windowSize := len(t.window)
	t.window = t.window[:0]

	end := t.now()
	elapsedMinutes := end.Sub(t.intervalStart).Minutes()
	t.intervalStart = end

	t.reportCount++
	t.avgMinutes += (1.0 / float64(t.reportCount)) * (elapsedMinutes - t.avgMinutes)

	remaining := clamp(t.endStep-step, 0, t.endStep)
	remainingIntervals := float64(remaining) / float64(t.interval)
	etaHours := t.avgMinutes * remainingIntervals / 60.0

	return &Report{
		Step:               step,
		MeanLoss:           meanLoss,
		WindowSize:         windowSize,
		ElapsedMinutes:     elapsedMinutes,
		AvgIntervalMinutes: t.avgMinutes,
		ETAHours:           etaHours,
	}
}

// summaryRecord is one line of the JSONL summary stream: the report plus the
// run id, so interleaved streams from restarted runs can be told apart.
type summaryRecord struct {
	RunID string `json:"run_id"`
	Report
}

// SummaryWriter appends one structured record per report to a JSONL file.
// It is write-only: nothing in the control flow reads it back.
type SummaryWriter struct {
	runID string
	f     *os.File
	enc   *json.Encoder
}

// NewSummaryWriter opens (appending) the summary file for a run.
func NewSummaryWriter(path, runID string) (*SummaryWriter, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, errors.Wrapf(err, "opening summary file %s", path)
	}
	return &SummaryWriter{runID: runID, f: f, enc: json.NewEncoder(f)}, nil
}

// Append writes one report record.
func (w *SummaryWriter) Append(r *Report) error {
	rec := summaryRecord{RunID: w.runID, Report: *r}
	if err := w.enc.Encode(&rec); err != nil {
		return errors.Wrap(err, "appending summary record")
	}
	return nil
}

// Close flushes and closes the summary file.
func (w *SummaryWriter) Close() error {
	return w.f.Close()
}
