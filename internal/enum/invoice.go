package enum

type InvoiceStatus string

const (
	InvoiceStatusExtracted        InvoiceStatus = "extracted"
	InvoiceStatusExtractionFailed InvoiceStatus = "extraction_failed"
	InvoiceStatusStored           InvoiceStatus = "stored"
	InvoiceStatusNotifyFailed     InvoiceStatus = "notify_failed"
)

func (t InvoiceStatus) String() string {
	return string(t)
}

// MessageOutcome is the terminal state of one mailbox message in a batch run.
type MessageOutcome string

const (
	OutcomeStored           MessageOutcome = "stored"
	OutcomeDuplicate        MessageOutcome = "duplicate"
	OutcomeSkipped          MessageOutcome = "skipped"
	OutcomeFetchFailed      MessageOutcome = "fetch_failed"
	OutcomeExtractionFailed MessageOutcome = "extraction_failed"
	OutcomeStoreFailed      MessageOutcome = "store_failed"
)

func (t MessageOutcome) String() string {
	return string(t)
}
