package ingest

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"strings"
	"time"

	"github.com/emersion/go-imap"
	"github.com/emersion/go-imap/client"
	_ "github.com/emersion/go-message/charset" // decode non-UTF-8 bodies
	"github.com/emersion/go-message/mail"

	"github.com/Veraticus/spice-tally/internal/common"
	"github.com/Veraticus/spice-tally/internal/model"
	"github.com/Veraticus/spice-tally/internal/service"
)

// ErrNoTextBody is returned for a mail without a text/plain part.
var ErrNoTextBody = errors.New("no text/plain body")

const (
	defaultMailbox    = "INBOX"
	defaultIMAPServer = "imap.gmail.com:993"
	defaultIMAPSPort  = "993"
	fetchBufferSize   = 10
)

// IMAPConfig holds mailbox connection settings.
type IMAPConfig struct {
	Server   string
	Username string
	Password string
	Mailbox  string
}

// mailClient is the subset of the IMAP client used by the fetcher.
type mailClient interface {
	Login(username, password string) error
	Select(name string, readOnly bool) (*imap.MailboxStatus, error)
	Search(criteria *imap.SearchCriteria) ([]uint32, error)
	Fetch(seqset *imap.SeqSet, items []imap.FetchItem, ch chan *imap.Message) error
	Logout() error
}

// IMAPFetcher reads notification mails from a mailbox over TLS.
type IMAPFetcher struct {
	dial   func(server string) (mailClient, error)
	logger *slog.Logger
	cfg    IMAPConfig
}

var _ service.MessageSource = (*IMAPFetcher)(nil)

// NewIMAPFetcher creates a fetcher. Credentials are required.
func NewIMAPFetcher(cfg IMAPConfig, logger *slog.Logger) (*IMAPFetcher, error) {
	if cfg.Username == "" || cfg.Password == "" {
		return nil, fmt.Errorf("%w: imap username and password", common.ErrMissingConfig)
	}
	if cfg.Server == "" {
		cfg.Server = defaultIMAPServer
	}
	if _, _, err := net.SplitHostPort(cfg.Server); err != nil {
		cfg.Server = net.JoinHostPort(cfg.Server, defaultIMAPSPort)
	}
	if cfg.Mailbox == "" {
		cfg.Mailbox = defaultMailbox
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &IMAPFetcher{
		cfg:    cfg,
		logger: logger,
		dial: func(server string) (mailClient, error) {
			return client.DialTLS(server, &tls.Config{MinVersion: tls.VersionTLS12})
		},
	}, nil
}

// Fetch returns one message per mail received on or after since.
// Mails that cannot be parsed are logged and skipped.
func (f *IMAPFetcher) Fetch(ctx context.Context, since time.Time) ([]model.Message, error) {
	c, err := f.dial(f.cfg.Server)
	if err != nil {
		return nil, fmt.Errorf("%w: dial %s: %w", common.ErrMailTransport, f.cfg.Server, err)
	}
	defer func() {
		if err := c.Logout(); err != nil {
			f.logger.Debug("imap logout failed", "error", err)
		}
	}()

	if err := c.Login(f.cfg.Username, f.cfg.Password); err != nil {
		return nil, fmt.Errorf("%w: login: %w", common.ErrMailTransport, err)
	}

	if _, err := c.Select(f.cfg.Mailbox, true); err != nil {
		return nil, fmt.Errorf("%w: select %s: %w", common.ErrMailTransport, f.cfg.Mailbox, err)
	}

	criteria := imap.NewSearchCriteria()
	criteria.Since = since

	seqNums, err := c.Search(criteria)
	if err != nil {
		return nil, fmt.Errorf("%w: search: %w", common.ErrMailTransport, err)
	}

	f.logger.Info("found mails",
		"mailbox", f.cfg.Mailbox,
		"since", since.Format(model.DateLayout),
		"count", len(seqNums))

	if len(seqNums) == 0 {
		return nil, nil
	}

	seqset := new(imap.SeqSet)
	seqset.AddNum(seqNums...)

	section := &imap.BodySectionName{Peek: true}
	items := []imap.FetchItem{section.FetchItem()}

	ch := make(chan *imap.Message, fetchBufferSize)
	done := make(chan error, 1)
	go func() {
		done <- c.Fetch(seqset, items, ch)
	}()

	var messages []model.Message
	skipped := 0
	for msg := range ch {
		if ctx.Err() != nil {
			// Drain so the fetch goroutine can finish.
			continue
		}

		body := msg.GetBody(section)
		if body == nil {
			skipped++
			f.logger.Warn("mail has no body", "seq", msg.SeqNum)
			continue
		}

		parsed, err := parseMail(body)
		if err != nil {
			skipped++
			f.logger.Warn("skipping mail", "seq", msg.SeqNum, "error", err)
			continue
		}
		messages = append(messages, parsed)
	}

	if err := <-done; err != nil {
		return nil, fmt.Errorf("%w: fetch: %w", common.ErrMailTransport, err)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	f.logger.Info("fetched mails",
		"messages", len(messages),
		"skipped", skipped)

	return messages, nil
}

// parseMail converts a raw RFC 5322 mail into a message dated by its Date
// header and holding its first text/plain part.
func parseMail(r io.Reader) (model.Message, error) {
	mr, err := mail.CreateReader(r)
	if err != nil {
		return model.Message{}, fmt.Errorf("failed to read mail: %w", err)
	}
	defer func() { _ = mr.Close() }()

	date, err := mr.Header.Date()
	if err != nil || date.IsZero() {
		return model.Message{}, fmt.Errorf("%w: mail date header", model.ErrUnparseableDate)
	}

	for {
		part, err := mr.NextPart()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return model.Message{}, fmt.Errorf("failed to read mail part: %w", err)
		}

		h, ok := part.Header.(*mail.InlineHeader)
		if !ok {
			continue
		}

		contentType, _, err := h.ContentType()
		if err != nil {
			contentType = "text/plain"
		}
		if contentType != "text/plain" {
			continue
		}

		text, err := io.ReadAll(part.Body)
		if err != nil {
			return model.Message{}, fmt.Errorf("failed to read mail body: %w", err)
		}

		return model.Message{
			Date:    date.Format(model.DateLayout),
			Content: strings.TrimSpace(string(text)),
			Source:  model.SourceIMAP,
		}, nil
	}

	return model.Message{}, ErrNoTextBody
}
