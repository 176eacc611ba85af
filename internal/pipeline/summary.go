package pipeline

import (
	"time"

	"github.com/hashicorp/go-multierror"

	"labprov/internal/discovery"
	"labprov/internal/domain"
)

// StageSummary is the outcome of generating and deploying one template
type StageSummary struct {
	Template       string
	Generated      int
	Skipped        int
	GenerateFailed int
	Applied        int
	ApplyFailed    int
	Failures       []domain.DeviceError
	// Err is set when the template was aborted before deployment
	Err error
}

// Summary is the outcome of one labprov invocation
type Summary struct {
	RunID     string
	StartedAt time.Time
	Duration  time.Duration
	Discovery *discovery.Report
	Stages    []StageSummary
}

// Failures counts per-device failures and aborted templates
func (s *Summary) Failures() int {
	n := 0
	if s.Discovery != nil {
		n += s.Discovery.Failed
	}
	for _, st := range s.Stages {
		n += st.GenerateFailed + st.ApplyFailed
		if st.Err != nil {
			n++
		}
	}
	return n
}

// Err aggregates every recorded failure, or nil when there were none
func (s *Summary) Err() error {
	var result *multierror.Error
	if s.Discovery != nil {
		for _, f := range s.Discovery.Failures {
			result = multierror.Append(result, f)
		}
	}
	for _, st := range s.Stages {
		if st.Err != nil {
			result = multierror.Append(result, st.Err)
		}
		for _, f := range st.Failures {
			result = multierror.Append(result, f)
		}
	}
	return result.ErrorOrNil()
}
