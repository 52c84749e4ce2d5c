package dto

type InvoiceEvent struct {
	Event    InvoiceEventDetails  `json:"event"`
	Metadata InvoiceEventMetadata `json:"metadata"`
}

type InvoiceEventDetails struct {
	Id        string      `json:"id"`
	EntityId  string      `json:"entityId"`
	EventType string      `json:"eventType"`
	Data      interface{} `json:"data"`
}

type InvoiceEventMetadata struct {
	UberTraceId string `json:"uber-trace-id"`
	RunId       string `json:"runId"`
	Source      string `json:"source"`
	Timestamp   string `json:"timestamp"`
}

// InvoiceStored is the event payload published after a new row lands.
type InvoiceStored struct {
	MessageID     string  `json:"messageId"`
	Sender        string  `json:"sender"`
	Subject       string  `json:"subject"`
	Amount        float64 `json:"amount,omitempty"`
	AmountRaw     string  `json:"amountRaw,omitempty"`
	Currency      string  `json:"currency,omitempty"`
	InvoiceNumber string  `json:"invoiceNumber,omitempty"`
	ReceivedAt    string  `json:"receivedAt"`
}
