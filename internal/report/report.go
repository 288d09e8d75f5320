// Package report aggregates per-row outcomes into the run summary.
package report

import (
	"fmt"
	"time"

	"github.com/matta/gmailmerge/internal/message"
)

// SkippedRow names a recipient that was never transmitted and why.
type SkippedRow struct {
	Recipient string
	Reason    string
}

// FailedRow names a recipient whose transmission failed and why.
type FailedRow struct {
	Recipient string
	Reason    string
}

// Summary is the aggregate result of one run.
type Summary struct {
	Sent    int
	Drafted int
	Skipped []SkippedRow
	Failed  []FailedRow
}

// Summarize folds outcomes into a Summary. Pure aggregation, no side
// effects.
func Summarize(outcomes []message.Outcome) Summary {
	var s Summary
	for _, o := range outcomes {
		switch o.Status {
		case message.StatusSent:
			s.Sent++
		case message.StatusDrafted:
			s.Drafted++
		case message.StatusSkipped:
			s.Skipped = append(s.Skipped, SkippedRow{Recipient: o.Recipient, Reason: o.Detail})
		case message.StatusFailed:
			s.Failed = append(s.Failed, FailedRow{Recipient: o.Recipient, Reason: o.Detail})
		}
	}
	return s
}

func (s Summary) String() string {
	return fmt.Sprintf("sent %d, drafted %d, skipped %d, failed %d",
		s.Sent, s.Drafted, len(s.Skipped), len(s.Failed))
}

// Estimate bounds the wall-clock duration of a run. With ±10% jitter
// per send the true duration lands between Min and Max.
type Estimate struct {
	Min time.Duration
	Avg time.Duration
	Max time.Duration
}

// EstimateDuration projects how long sending n rows with the given
// target delay will take.
func EstimateDuration(n int, delaySeconds float64) Estimate {
	avg := time.Duration(float64(n) * delaySeconds * float64(time.Second))
	return Estimate{
		Min: time.Duration(float64(avg) * 0.9),
		Avg: avg,
		Max: time.Duration(float64(avg) * 1.1),
	}
}
