package scheduler

import (
	"context"
	"time"
)

// historyLimit bounds how many results are kept per job
const historyLimit = 100

// Job is a unit of recurring work (model re-estimation, cache warm-up)
// ⭐ SSOT: 스케줄 작업 인터페이스는 여기서만 정의
type Job interface {
	Name() string
	Run(ctx context.Context) error

	// Schedule is a cron expression with seconds, e.g. "0 0 3 * * *" (03:00 daily).
	// Descriptors such as "@daily" or "@every 6h" are accepted too.
	Schedule() string
}

// JobResult is one execution of a job
type JobResult struct {
	JobName   string        `json:"job_name"`
	StartTime time.Time     `json:"start_time"`
	EndTime   time.Time     `json:"end_time"`
	Duration  time.Duration `json:"duration"`
	Success   bool          `json:"success"`
	Attempts  int           `json:"attempts"`
	Skipped   bool          `json:"skipped,omitempty"` // previous run still in progress
	Error     string        `json:"error,omitempty"`
}

// JobHistory keeps the most recent results of one job, oldest first
type JobHistory struct {
	Results []JobResult
}

// AddResult appends a result, dropping the oldest beyond historyLimit
func (h *JobHistory) AddResult(result JobResult) {
	h.Results = append(h.Results, result)
	if over := len(h.Results) - historyLimit; over > 0 {
		h.Results = append([]JobResult(nil), h.Results[over:]...)
	}
}

// GetLatestResults returns up to n of the newest results
func (h *JobHistory) GetLatestResults(n int) []JobResult {
	if n > len(h.Results) {
		n = len(h.Results)
	}
	if n <= 0 {
		return []JobResult{}
	}
	return h.Results[len(h.Results)-n:]
}

// GetFailedResults returns the results that did not succeed.
// Skipped overlaps are not failures.
func (h *JobHistory) GetFailedResults() []JobResult {
	var failed []JobResult
	for _, r := range h.Results {
		if !r.Success && !r.Skipped {
			failed = append(failed, r)
		}
	}
	return failed
}

// GetSuccessRate is the share of executed (not skipped) runs that succeeded
func (h *JobHistory) GetSuccessRate() float64 {
	var ran, ok int
	for _, r := range h.Results {
		if r.Skipped {
			continue
		}
		ran++
		if r.Success {
			ok++
		}
	}
	if ran == 0 {
		return 0
	}
	return float64(ok) / float64(ran)
}
