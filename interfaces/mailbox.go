package interfaces

import (
	"context"

	"github.com/fakturo/invoicestack/dto"
)

// MailboxClient is the batch-scoped IMAP session. Connect is called once per
// run and Disconnect released on every exit path.
type MailboxClient interface {
	Connect(ctx context.Context) error
	Disconnect() error
	ListUnread(ctx context.Context) ([]uint32, error)
	Fetch(ctx context.Context, uid uint32) (*dto.InboundMessage, error)
	MarkRead(ctx context.Context, uid uint32) error
}
