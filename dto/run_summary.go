package dto

import (
	"fmt"
	"time"

	"github.com/fakturo/invoicestack/internal/enum"
)

// RunSummary aggregates per-message terminal states for one batch run.
type RunSummary struct {
	RunID      string
	StartedAt  time.Time
	FinishedAt time.Time

	Total            int
	Stored           int
	Duplicates       int
	Skipped          int
	FetchFailed      int
	ExtractionFailed int
	StoreFailed      int
	NotifyFailed     int
	MarkedRead       int
	MarkReadFailed   int
}

func (s *RunSummary) Record(outcome enum.MessageOutcome) {
	s.Total++
	switch outcome {
	case enum.OutcomeStored:
		s.Stored++
	case enum.OutcomeDuplicate:
		s.Duplicates++
	case enum.OutcomeSkipped:
		s.Skipped++
	case enum.OutcomeFetchFailed:
		s.FetchFailed++
	case enum.OutcomeExtractionFailed:
		s.ExtractionFailed++
	case enum.OutcomeStoreFailed:
		s.StoreFailed++
	}
}

func (s *RunSummary) Failed() int {
	return s.FetchFailed + s.ExtractionFailed + s.StoreFailed
}

func (s *RunSummary) String() string {
	return fmt.Sprintf(
		"total=%d stored=%d duplicates=%d skipped=%d fetch_failed=%d extraction_failed=%d store_failed=%d notify_failed=%d marked_read=%d mark_read_failed=%d",
		s.Total, s.Stored, s.Duplicates, s.Skipped, s.FetchFailed, s.ExtractionFailed, s.StoreFailed, s.NotifyFailed, s.MarkedRead, s.MarkReadFailed,
	)
}
