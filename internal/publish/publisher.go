// Package publish hands completed scenarios to downstream collaborators
// (Kafka consumers, the dashboard webhook and websocket subscribers).
package publish

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/wonny/rgm/internal/contracts"
	"github.com/wonny/rgm/pkg/metrics"
)

// Publisher is a named sink for scenario results
type Publisher interface {
	contracts.RecommendationPublisher
	Name() string
}

// Summary is the compact scenario notification sent to the webhook and websocket feed
type Summary struct {
	ScenarioID      string                   `json:"scenario_id"`
	Status          contracts.ScenarioStatus `json:"status"`
	SubmittedAt     time.Time                `json:"submitted_at"`
	CompletedAt     time.Time                `json:"completed_at"`
	ConfigHash      string                   `json:"config_hash,omitempty"`
	Recommendations int                      `json:"recommendations"`
	Actionable      int                      `json:"actionable"`
	Diagnostics     int                      `json:"diagnostics"`
	Violations      int                      `json:"violations"`
}

// Summarize builds the notification for a result
func Summarize(result *contracts.ScenarioResult) Summary {
	s := Summary{
		ScenarioID:      result.ScenarioID,
		Status:          result.Status,
		SubmittedAt:     result.SubmittedAt,
		CompletedAt:     result.CompletedAt,
		ConfigHash:      result.ConfigHash,
		Recommendations: len(result.Recommendations),
		Diagnostics:     len(result.Diagnostics),
		Violations:      len(result.Violations),
	}
	for _, r := range result.Recommendations {
		if r.Actionable {
			s.Actionable++
		}
	}
	return s
}

// Multi fans a result out to every sink. A failing sink does not stop the others.
type Multi struct {
	sinks   []Publisher
	metrics *metrics.Recorder
	log     zerolog.Logger
}

// NewMulti creates a fan-out publisher
func NewMulti(rec *metrics.Recorder, log zerolog.Logger, sinks ...Publisher) *Multi {
	return &Multi{
		sinks:   sinks,
		metrics: rec,
		log:     log.With().Str("component", "publish.multi").Logger(),
	}
}

// Add registers another sink
func (m *Multi) Add(p Publisher) {
	m.sinks = append(m.sinks, p)
}

// Len returns the number of sinks
func (m *Multi) Len() int {
	return len(m.sinks)
}

// Publish sends the result to every sink and joins their errors
func (m *Multi) Publish(ctx context.Context, result *contracts.ScenarioResult) error {
	if result == nil {
		return fmt.Errorf("nil scenario result")
	}
	var errs []error
	for _, sink := range m.sinks {
		err := sink.Publish(ctx, result)
		m.metrics.RecordPublish(sink.Name(), err)
		if err != nil {
			m.log.Warn().Err(err).
				Str("sink", sink.Name()).
				Str("scenario_id", result.ScenarioID).
				Msg("publish failed")
			errs = append(errs, fmt.Errorf("%s: %w", sink.Name(), err))
		}
	}
	return errors.Join(errs...)
}
