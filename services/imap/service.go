package imap

import (
	"crypto/tls"
	"fmt"
	"net"
	"strings"
	"sync"
	"time"

	"github.com/emersion/go-imap"
	"github.com/emersion/go-imap/client"
	"github.com/opentracing/opentracing-go"
	tracingLog "github.com/opentracing/opentracing-go/log"
	"github.com/pkg/errors"
	"golang.org/x/net/context"

	"github.com/fakturo/invoicestack/config"
	"github.com/fakturo/invoicestack/interfaces"
	er "github.com/fakturo/invoicestack/internal/errors"
	"github.com/fakturo/invoicestack/internal/logger"
	"github.com/fakturo/invoicestack/internal/tracing"
)

const (
	DIAL_TIMEOUT    = 30 * time.Second
	COMMAND_TIMEOUT = 30 * time.Second
	FETCH_TIMEOUT   = 60 * time.Second
	LOGOUT_TIMEOUT  = 5 * time.Second
)

// IMAPService holds one authenticated session against the configured mailbox.
// It is not safe for concurrent use, the pipeline drives it sequentially.
type IMAPService struct {
	config *config.MailboxConfig
	log    logger.Logger

	clientMutex sync.Mutex
	client      *client.Client
}

func NewIMAPService(cfg *config.MailboxConfig, log logger.Logger) interfaces.MailboxClient {
	return &IMAPService{
		config: cfg,
		log:    log,
	}
}

// Connect dials the IMAP server over TLS, logs in and selects the configured
// folder. Any failure here is connection-class and aborts the run.
func (s *IMAPService) Connect(ctx context.Context) error {
	span, ctx := opentracing.StartSpanFromContext(ctx, "IMAPService.Connect")
	defer span.Finish()
	tracing.SetDefaultServiceSpanTags(ctx, span)

	serverAddr := fmt.Sprintf("%s:%d", s.config.Host, s.config.Port)
	span.LogFields(tracingLog.String("server", serverAddr))

	dialer := &net.Dialer{
		Timeout:   DIAL_TIMEOUT,
		KeepAlive: 30 * time.Second,
	}

	tlsConfig := &tls.Config{
		ServerName: s.config.Host,
	}

	c, err := client.DialWithDialerTLS(dialer, serverAddr, tlsConfig)
	if err != nil {
		err = errors.Wrapf(er.ErrConnectionFailed, "dial %s: %v", serverAddr, err)
		tracing.TraceErr(span, err)
		return err
	}

	c.Timeout = COMMAND_TIMEOUT

	err = c.Login(s.config.Username, s.config.Password)
	if err != nil {
		c.Logout()
		err = errors.Wrapf(er.ErrConnectionFailed, "login %s: %v", s.config.Username, err)
		tracing.TraceErr(span, err)
		return err
	}

	mbox, err := c.Select(s.config.Folder, false)
	if err != nil {
		c.Logout()
		err = errors.Wrapf(er.ErrConnectionFailed, "select folder %s: %v", s.config.Folder, err)
		tracing.TraceErr(span, err)
		return err
	}

	c.Timeout = 0

	s.log.Infof("Connected to %s, folder %s holds %d messages (%d unseen)",
		serverAddr, s.config.Folder, mbox.Messages, mbox.Unseen)

	s.clientMutex.Lock()
	if existing := s.client; existing != nil {
		existing.Timeout = LOGOUT_TIMEOUT
		go existing.Logout()
	}
	s.client = c
	s.clientMutex.Unlock()

	return nil
}

// Disconnect logs out with a bounded wait so a wedged server cannot hold the
// process open past the batch.
func (s *IMAPService) Disconnect() error {
	s.clientMutex.Lock()
	c := s.client
	s.client = nil
	s.clientMutex.Unlock()

	if c == nil {
		return nil
	}

	done := make(chan error, 1)
	go func() {
		c.Timeout = LOGOUT_TIMEOUT
		done <- c.Logout()
	}()

	select {
	case err := <-done:
		if err != nil {
			s.log.Warnf("IMAP logout failed: %v", err)
			return err
		}
		return nil
	case <-time.After(LOGOUT_TIMEOUT + time.Second):
		s.log.Warn("IMAP logout timed out, dropping connection")
		return nil
	}
}

// ListUnread searches the selected folder for messages without the \Seen
// flag. An empty result is a normal outcome, not an error.
func (s *IMAPService) ListUnread(ctx context.Context) ([]uint32, error) {
	span, ctx := opentracing.StartSpanFromContext(ctx, "IMAPService.ListUnread")
	defer span.Finish()
	tracing.SetDefaultServiceSpanTags(ctx, span)

	c, err := s.conn()
	if err != nil {
		tracing.TraceErr(span, err)
		return nil, err
	}

	criteria := imap.NewSearchCriteria()
	criteria.WithoutFlags = []string{imap.SeenFlag}

	c.Timeout = COMMAND_TIMEOUT
	uids, err := c.UidSearch(criteria)
	c.Timeout = 0
	if err != nil {
		err = errors.Wrapf(er.ErrConnectionFailed, "search unread: %v", err)
		tracing.TraceErr(span, err)
		return nil, err
	}

	span.LogFields(tracingLog.Int("result.count", len(uids)))
	s.log.Infof("Found %d unread message(s) in %s", len(uids), s.config.Folder)

	return uids, nil
}

// MarkRead sets \Seen on a single message. Callers only reach this after the
// invoice row is durably stored.
func (s *IMAPService) MarkRead(ctx context.Context, uid uint32) error {
	span, ctx := opentracing.StartSpanFromContext(ctx, "IMAPService.MarkRead")
	defer span.Finish()
	tracing.SetDefaultServiceSpanTags(ctx, span)
	span.LogFields(tracingLog.Uint32("uid", uid))

	c, err := s.conn()
	if err != nil {
		tracing.TraceErr(span, err)
		return err
	}

	seqSet := new(imap.SeqSet)
	seqSet.AddNum(uid)

	item := imap.FormatFlagsOp(imap.AddFlags, true)
	flags := []interface{}{imap.SeenFlag}

	c.Timeout = COMMAND_TIMEOUT
	err = c.UidStore(seqSet, item, flags, nil)
	c.Timeout = 0
	if err != nil {
		err = errors.Wrapf(er.ErrMessageUnavailable, "mark read uid %d: %v", uid, err)
		tracing.TraceErr(span, err)
		return err
	}

	return nil
}

func (s *IMAPService) conn() (*client.Client, error) {
	s.clientMutex.Lock()
	defer s.clientMutex.Unlock()

	if s.client == nil {
		return nil, errors.Wrap(er.ErrConnectionFailed, "not connected")
	}
	return s.client, nil
}

// isConnectionError checks if an error is related to connectivity
func isConnectionError(err error) bool {
	if err == nil {
		return false
	}

	errorMsg := err.Error()
	return strings.Contains(errorMsg, "connection closed") ||
		strings.Contains(errorMsg, "i/o timeout") ||
		strings.Contains(errorMsg, "EOF") ||
		strings.Contains(errorMsg, "connection reset")
}
