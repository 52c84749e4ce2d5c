package dto

import "time"

// InboundMessage is one fetched mailbox message. It lives for a single
// pipeline iteration, only the invoice record derived from it is persisted.
type InboundMessage struct {
	UID        uint32
	MessageID  string
	Sender     string
	SenderName string
	Subject    string
	ReceivedAt time.Time
	Raw        []byte
}
