package pipeline

import (
	"context"
	"fmt"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fakturo/invoicestack/dto"
	"github.com/fakturo/invoicestack/internal/enum"
	er "github.com/fakturo/invoicestack/internal/errors"
	"github.com/fakturo/invoicestack/internal/logger"
	"github.com/fakturo/invoicestack/internal/models"
)

func getLogger() logger.Logger {
	appLogger := logger.NewAppLogger(&logger.Config{
		DevMode: true,
	})
	appLogger.InitLogger()
	return appLogger
}

type fakeMailbox struct {
	uids        []uint32
	messages    map[uint32]*dto.InboundMessage
	connectErr  error
	listErr     error
	fetchErrs   map[uint32]error
	markReadErr error

	fetches     []uint32
	marked      []uint32
	disconnects int
}

func (f *fakeMailbox) Connect(ctx context.Context) error {
	return f.connectErr
}

func (f *fakeMailbox) Disconnect() error {
	f.disconnects++
	return nil
}

func (f *fakeMailbox) ListUnread(ctx context.Context) ([]uint32, error) {
	if f.listErr != nil {
		return nil, f.listErr
	}
	return f.uids, nil
}

func (f *fakeMailbox) Fetch(ctx context.Context, uid uint32) (*dto.InboundMessage, error) {
	f.fetches = append(f.fetches, uid)
	if err, ok := f.fetchErrs[uid]; ok {
		return nil, err
	}
	return f.messages[uid], nil
}

func (f *fakeMailbox) MarkRead(ctx context.Context, uid uint32) error {
	if f.markReadErr != nil {
		return f.markReadErr
	}
	f.marked = append(f.marked, uid)
	return nil
}

type fakeExtractor struct {
	errs map[string]error
}

func (f *fakeExtractor) Extract(ctx context.Context, message *dto.InboundMessage) (*models.Invoice, error) {
	if err, ok := f.errs[message.MessageID]; ok {
		return nil, err
	}
	return &models.Invoice{
		MessageID: message.MessageID,
		Sender:    message.Sender,
		Subject:   message.Subject,
		Status:    enum.InvoiceStatusExtracted,
	}, nil
}

type fakeRepository struct {
	createErrs map[string]error
	updateErr  error

	rows          map[string]string
	created       []string
	statusUpdates map[string]enum.InvoiceStatus
}

func newFakeRepository() *fakeRepository {
	return &fakeRepository{
		createErrs:    map[string]error{},
		rows:          map[string]string{},
		statusUpdates: map[string]enum.InvoiceStatus{},
	}
}

func (f *fakeRepository) Create(ctx context.Context, invoice *models.Invoice) (string, bool, error) {
	if err, ok := f.createErrs[invoice.MessageID]; ok {
		return "", false, err
	}
	if id, ok := f.rows[invoice.MessageID]; ok {
		return id, false, nil
	}
	id := "invoice_" + invoice.MessageID
	f.rows[invoice.MessageID] = id
	f.created = append(f.created, id)
	return id, true, nil
}

func (f *fakeRepository) GetByID(ctx context.Context, id string) (*models.Invoice, error) {
	return nil, nil
}

func (f *fakeRepository) GetByMessageID(ctx context.Context, messageID string) (*models.Invoice, error) {
	return nil, nil
}

func (f *fakeRepository) UpdateStatus(ctx context.Context, id string, status enum.InvoiceStatus) error {
	if f.updateErr != nil {
		return f.updateErr
	}
	f.statusUpdates[id] = status
	return nil
}

func (f *fakeRepository) Count(ctx context.Context) (int64, error) {
	return int64(len(f.rows)), nil
}

type fakeNotifier struct {
	invoiceErr error

	invoiceCalls []string
	summaryCalls int
}

func (f *fakeNotifier) NotifyInvoice(ctx context.Context, invoice *models.Invoice) error {
	f.invoiceCalls = append(f.invoiceCalls, invoice.MessageID)
	return f.invoiceErr
}

func (f *fakeNotifier) NotifyRunSummary(ctx context.Context, summary *dto.RunSummary) error {
	f.summaryCalls++
	return nil
}

type fakePublisher struct {
	publishErr error
	published  []string
	closed     bool
}

func (f *fakePublisher) PublishInvoiceStored(ctx context.Context, invoice *models.Invoice) error {
	if f.publishErr != nil {
		return f.publishErr
	}
	f.published = append(f.published, invoice.MessageID)
	return nil
}

func (f *fakePublisher) Close() error {
	f.closed = true
	return nil
}

type pipelineFixture struct {
	mailbox   *fakeMailbox
	extractor *fakeExtractor
	repo      *fakeRepository
	notifier  *fakeNotifier
	publisher *fakePublisher
	pipeline  *pipelineService
}

func newFixture(uids ...uint32) *pipelineFixture {
	mailbox := &fakeMailbox{
		uids:      uids,
		messages:  map[uint32]*dto.InboundMessage{},
		fetchErrs: map[uint32]error{},
	}
	for _, uid := range uids {
		mailbox.messages[uid] = &dto.InboundMessage{
			UID:       uid,
			MessageID: fmt.Sprintf("msg-%d@acme.com", uid),
			Sender:    "billing@acme.com",
			Subject:   "Invoice #123",
		}
	}

	f := &pipelineFixture{
		mailbox:   mailbox,
		extractor: &fakeExtractor{errs: map[string]error{}},
		repo:      newFakeRepository(),
		notifier:  &fakeNotifier{},
		publisher: &fakePublisher{},
	}
	f.pipeline = NewPipelineService(f.mailbox, f.extractor, f.repo, f.notifier, f.publisher, getLogger()).(*pipelineService)
	return f
}

func TestRun_StoresNotifiesAndMarksRead(t *testing.T) {
	// Arrange
	f := newFixture(1)

	// Act
	summary, err := f.pipeline.Run(context.Background())

	// Assert
	require.NoError(t, err)
	require.NotNil(t, summary)
	assert.NotEmpty(t, summary.RunID)
	assert.Equal(t, 1, summary.Total)
	assert.Equal(t, 1, summary.Stored)
	assert.Equal(t, 1, summary.MarkedRead)
	assert.Equal(t, []uint32{1}, f.mailbox.marked)
	assert.Equal(t, []string{"msg-1@acme.com"}, f.notifier.invoiceCalls)
	assert.Equal(t, []string{"msg-1@acme.com"}, f.publisher.published)
	assert.Equal(t, 1, f.notifier.summaryCalls)
	assert.Equal(t, 1, f.mailbox.disconnects)
}

func TestRun_ConnectFailure(t *testing.T) {
	f := newFixture()
	f.mailbox.connectErr = errors.Wrapf(er.ErrConnectionFailed, "dial tcp: connection refused")

	summary, err := f.pipeline.Run(context.Background())

	assert.ErrorIs(t, err, er.ErrConnectionFailed)
	assert.Nil(t, summary)
	assert.Zero(t, f.mailbox.disconnects)
}

func TestRun_ListFailure(t *testing.T) {
	f := newFixture()
	f.mailbox.listErr = errors.Wrapf(er.ErrConnectionFailed, "search failed: connection closed")

	summary, err := f.pipeline.Run(context.Background())

	assert.ErrorIs(t, err, er.ErrConnectionFailed)
	assert.Nil(t, summary)
	assert.Equal(t, 1, f.mailbox.disconnects)
}

func TestRun_EmptyMailbox(t *testing.T) {
	f := newFixture()

	summary, err := f.pipeline.Run(context.Background())

	require.NoError(t, err)
	assert.Zero(t, summary.Total)
	// nothing processed means no summary notification either
	assert.Zero(t, f.notifier.summaryCalls)
}

func TestRun_NonInvoiceLeftUnread(t *testing.T) {
	f := newFixture(1)
	f.extractor.errs["msg-1@acme.com"] = er.ErrNoInvoiceFound

	summary, err := f.pipeline.Run(context.Background())

	require.NoError(t, err)
	assert.Equal(t, 1, summary.Total)
	assert.Equal(t, 1, summary.Skipped)
	assert.Zero(t, summary.Stored)
	assert.Empty(t, f.mailbox.marked)
}

func TestRun_ExtractionFailureLeavesUnread(t *testing.T) {
	f := newFixture(1)
	f.extractor.errs["msg-1@acme.com"] = errors.Wrapf(er.ErrNotImplemented, "pdf extraction for invoice.pdf (9 bytes)")

	summary, err := f.pipeline.Run(context.Background())

	require.NoError(t, err)
	assert.Equal(t, 1, summary.ExtractionFailed)
	assert.Empty(t, f.mailbox.marked)
}

func TestRun_DuplicateMarkedReadWithoutNotify(t *testing.T) {
	// Arrange - the row already exists from an earlier run
	f := newFixture(1)
	f.repo.rows["msg-1@acme.com"] = "invoice_existing"

	// Act
	summary, err := f.pipeline.Run(context.Background())

	// Assert - no second notification, but the message leaves the unread set
	require.NoError(t, err)
	assert.Equal(t, 1, summary.Duplicates)
	assert.Zero(t, summary.Stored)
	assert.Empty(t, f.notifier.invoiceCalls)
	assert.Empty(t, f.publisher.published)
	assert.Equal(t, []uint32{1}, f.mailbox.marked)
}

func TestRun_NotifyFailureFlagsInvoice(t *testing.T) {
	f := newFixture(1)
	f.notifier.invoiceErr = errors.Wrapf(er.ErrNotifyFailed, "request failed with status code 500")

	summary, err := f.pipeline.Run(context.Background())

	require.NoError(t, err)
	assert.Equal(t, 1, summary.Stored)
	assert.Equal(t, 1, summary.NotifyFailed)
	assert.Equal(t, enum.InvoiceStatusNotifyFailed, f.repo.statusUpdates["invoice_msg-1@acme.com"])
	// the invoice is durable, the message still gets marked read
	assert.Equal(t, []uint32{1}, f.mailbox.marked)
}

func TestRun_StoreFailureSkipsMessage(t *testing.T) {
	f := newFixture(1, 2)
	f.repo.createErrs["msg-1@acme.com"] = errors.New("disk I/O error")

	summary, err := f.pipeline.Run(context.Background())

	require.NoError(t, err)
	assert.Equal(t, 2, summary.Total)
	assert.Equal(t, 1, summary.StoreFailed)
	assert.Equal(t, 1, summary.Stored)
	assert.Equal(t, []uint32{2}, f.mailbox.marked)
}

func TestRun_FetchFailureSkipsMessage(t *testing.T) {
	f := newFixture(1, 2)
	f.mailbox.fetchErrs[1] = errors.Wrapf(er.ErrMessageUnavailable, "no envelope returned")

	summary, err := f.pipeline.Run(context.Background())

	require.NoError(t, err)
	assert.Equal(t, 2, summary.Total)
	assert.Equal(t, 1, summary.FetchFailed)
	assert.Equal(t, 1, summary.Stored)
	assert.Equal(t, []uint32{2}, f.mailbox.marked)
}

func TestRun_ConnectionLostStopsRun(t *testing.T) {
	// Arrange - the connection dies while fetching the second of three
	f := newFixture(1, 2, 3)
	f.mailbox.fetchErrs[2] = errors.Wrapf(er.ErrConnectionFailed, "fetch failed: connection closed")

	// Act
	summary, err := f.pipeline.Run(context.Background())

	// Assert - the rest of the batch is left for the next run
	require.NoError(t, err)
	assert.Equal(t, 2, summary.Total)
	assert.Equal(t, 1, summary.Stored)
	assert.Equal(t, 1, summary.FetchFailed)
	assert.Equal(t, []uint32{1, 2}, f.mailbox.fetches)
	assert.Equal(t, []uint32{1}, f.mailbox.marked)
}

func TestRun_MarkReadFailureCounted(t *testing.T) {
	f := newFixture(1)
	f.mailbox.markReadErr = errors.Wrapf(er.ErrMessageUnavailable, "store failed: connection closed")

	summary, err := f.pipeline.Run(context.Background())

	require.NoError(t, err)
	assert.Equal(t, 1, summary.Stored)
	assert.Zero(t, summary.MarkedRead)
	assert.Equal(t, 1, summary.MarkReadFailed)
}

func TestRun_NilPublisher(t *testing.T) {
	f := newFixture(1)
	p := NewPipelineService(f.mailbox, f.extractor, f.repo, f.notifier, nil, getLogger())

	summary, err := p.Run(context.Background())

	require.NoError(t, err)
	assert.Equal(t, 1, summary.Stored)
}

func TestRun_PublishFailureDoesNotAffectOutcome(t *testing.T) {
	f := newFixture(1)
	f.publisher.publishErr = errors.Wrapf(er.ErrPublishFailed, "channel closed")

	summary, err := f.pipeline.Run(context.Background())

	require.NoError(t, err)
	assert.Equal(t, 1, summary.Stored)
	assert.Equal(t, []uint32{1}, f.mailbox.marked)
}
