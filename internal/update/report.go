package update

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"
)

// Outcome is one instrument's result within a run.
type Outcome struct {
	Instrument string `json:"instrument"`
	Source     string `json:"source,omitempty"` // source that served the instrument
	Inserted   int    `json:"inserted,omitempty"`
	Malformed  int    `json:"malformed,omitempty"`
	Skipped    bool   `json:"skipped,omitempty"`
	Error      string `json:"error,omitempty"`
}

// Report summarizes one update run. Outcomes are keyed by instrument so the
// report is identical regardless of completion order.
type Report struct {
	RunID      string             `json:"run_id"`
	StartedAt  time.Time          `json:"started_at"`
	FinishedAt time.Time          `json:"finished_at"`
	Updated    int                `json:"updated"`
	Skipped    int                `json:"skipped"`
	Failed     int                `json:"failed"`
	Outcomes   map[string]Outcome `json:"outcomes"`
}

func (r *Report) add(o Outcome) {
	r.Outcomes[o.Instrument] = o
	switch {
	case o.Error != "":
		r.Failed++
	case o.Skipped:
		r.Skipped++
	default:
		r.Updated++
	}
}

// Failures returns failed outcomes sorted by instrument.
func (r *Report) Failures() []Outcome {
	var failed []Outcome
	for _, k := range r.Keys() {
		if o := r.Outcomes[k]; o.Error != "" {
			failed = append(failed, o)
		}
	}
	return failed
}

// writeFiles persists the last run's result lists next to the data, one file
// for succeeded instruments and one for failures. An empty list removes the
// corresponding file so a clean run never leaves a stale failure report.
func (r *Report) writeFiles(dir string) error {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return err
	}

	var succeeded []Outcome
	for _, k := range r.Keys() {
		if o := r.Outcomes[k]; o.Error == "" {
			succeeded = append(succeeded, o)
		}
	}
	if err := writeOrClear(filepath.Join(dir, ".lastrun.success.json"), succeeded); err != nil {
		return err
	}

	failed := r.Failures()
	if err := writeOrClear(filepath.Join(dir, ".lastrun.failed.json"), failed); err != nil {
		return err
	}
	if len(failed) > 0 {
		slog.Info("run report saved", "succeeded", len(succeeded), "failed", len(failed))
	}
	return nil
}

func writeOrClear(path string, outcomes []Outcome) error {
	if len(outcomes) == 0 {
		if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
			return err
		}
		return nil
	}
	return writeJSON(path, outcomes)
}

func writeJSON(path string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal report: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("write report: %w", err)
	}
	return nil
}
