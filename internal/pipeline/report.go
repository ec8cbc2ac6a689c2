package pipeline

import (
	"encoding/json"
	"os"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/corpusforge/docrefine/internal/refine"
)

// Document outcome statuses.
const (
	StatusCompleted = "completed"
	StatusFailed    = "failed"
	StatusSkipped   = "skipped"
)

// DocumentReport records one document's outcome.
type DocumentReport struct {
	Name     string        `json:"name"`
	Source   string        `json:"source,omitempty"`
	Status   string        `json:"status"`
	Stage    string        `json:"stage,omitempty"` // stage that failed or skipped
	Error    string        `json:"error,omitempty"`
	Language string        `json:"language,omitempty"`
	Trimmed  bool          `json:"trimmed,omitempty"`
	Refine   *refine.Stats `json:"refine,omitempty"`
}

// RunReport summarizes a full pipeline run. It is written to report.json in
// the work directory.
type RunReport struct {
	RunID      string           `json:"run_id"`
	SourceDir  string           `json:"source_dir"`
	WorkDir    string           `json:"work_dir"`
	StartedAt  time.Time        `json:"started_at"`
	FinishedAt time.Time        `json:"finished_at"`
	Completed  int              `json:"completed"`
	Failed     int              `json:"failed"`
	Skipped    int              `json:"skipped"`
	Documents  []DocumentReport `json:"documents"`

	mu sync.Mutex
}

func newRunReport(sourceDir, workDir string) *RunReport {
	return &RunReport{
		RunID:     uuid.New().String(),
		SourceDir: sourceDir,
		WorkDir:   workDir,
		StartedAt: time.Now().UTC(),
	}
}

func (r *RunReport) add(docs ...DocumentReport) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, doc := range docs {
		r.Documents = append(r.Documents, doc)
		switch doc.Status {
		case StatusCompleted:
			r.Completed++
		case StatusFailed:
			r.Failed++
		case StatusSkipped:
			r.Skipped++
		}
	}
}

func (r *RunReport) finish() {
	r.FinishedAt = time.Now().UTC()
}

func (r *RunReport) write(path string) error {
	data, err := json.MarshalIndent(r, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, append(data, '\n'), 0o644)
}
