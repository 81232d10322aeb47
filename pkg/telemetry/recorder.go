package telemetry

import (
	"context"
	"time"

	"github.com/cockroachdb/errors"
)

// Outcome labels a finished request.
type Outcome string

const (
	OutcomeSuccess Outcome = "success"
	OutcomeError   Outcome = "error"
)

// RequestRecord is one usage event with its duration.
type RequestRecord struct {
	Event    string
	Method   string
	Target   string
	Duration time.Duration
	Outcome  Outcome
	ErrorID  string
}

// Recorder receives usage events from the request executor.
type Recorder interface {
	RecordRequest(ctx context.Context, record RequestRecord) error
}

// MultiRecorder fans a record out to several recorders and joins their errors.
type MultiRecorder []Recorder

func (m MultiRecorder) RecordRequest(ctx context.Context, record RequestRecord) error {
	var errs []error
	for _, r := range m {
		if r == nil {
			continue
		}
		if err := r.RecordRequest(ctx, record); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
