// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package mail

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	netmail "net/mail"
	"os"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"
	"google.golang.org/api/gmail/v1"
	"google.golang.org/api/option"

	"github.com/pdiddy/paper-curator/pkg/types"
)

const (
	gmailUser        = "me"
	gmailInbox       = "INBOX"
	gmailConcurrency = 4
)

// GmailSource lists and fetches messages from a Gmail inbox.
type GmailSource struct {
	svc     *gmail.Service
	sender  string
	query   string
	max     int
	limiter *rate.Limiter
	logger  *zap.Logger
}

// NewGmailService builds a Gmail client from an OAuth client credentials
// file and a previously saved token file. No interactive consent flow is
// run; the token must already exist.
func NewGmailService(ctx context.Context, cfg types.MailConfig, httpCfg types.HTTPConfig) (*gmail.Service, error) {
	creds, err := os.ReadFile(cfg.CredentialsFile)
	if err != nil {
		return nil, fmt.Errorf("reading gmail credentials: %w", err)
	}
	oauthCfg, err := google.ConfigFromJSON(creds, gmail.GmailReadonlyScope)
	if err != nil {
		return nil, fmt.Errorf("parsing gmail credentials: %w", err)
	}

	tokData, err := os.ReadFile(cfg.TokenFile)
	if err != nil {
		return nil, fmt.Errorf("reading gmail token: %w", err)
	}
	var tok oauth2.Token
	if err := json.Unmarshal(tokData, &tok); err != nil {
		return nil, fmt.Errorf("parsing gmail token: %w", err)
	}

	base := &http.Client{Timeout: httpCfg.Timeout}
	ctx = context.WithValue(ctx, oauth2.HTTPClient, base)
	svc, err := gmail.NewService(ctx,
		option.WithHTTPClient(oauthCfg.Client(ctx, &tok)),
		option.WithUserAgent(httpCfg.UserAgent))
	if err != nil {
		return nil, fmt.Errorf("creating gmail service: %w", err)
	}
	return svc, nil
}

// NewGmailSource returns a source over svc. The query defaults to the
// sender filter; MaxMessages caps the number of messages fetched.
func NewGmailSource(svc *gmail.Service, cfg types.MailConfig, logger *zap.Logger) *GmailSource {
	if logger == nil {
		logger = zap.NewNop()
	}
	limit := rate.Inf
	if cfg.RatePerSecond > 0 {
		limit = rate.Limit(cfg.RatePerSecond)
	}
	query := cfg.Query
	if query == "" && cfg.Sender != "" {
		query = "from:" + cfg.Sender
	}
	return &GmailSource{
		svc:     svc,
		sender:  strings.ToLower(cfg.Sender),
		query:   query,
		max:     cfg.MaxMessages,
		limiter: rate.NewLimiter(limit, 1),
		logger:  logger,
	}
}

// Fetch lists inbox messages matching the query and downloads them in
// parallel. The result keeps the listing order (newest first).
func (s *GmailSource) Fetch(ctx context.Context) ([]Message, error) {
	ids, err := s.list(ctx)
	if err != nil {
		return nil, err
	}
	s.logger.Debug("listed gmail messages", zap.Int("count", len(ids)), zap.String("query", s.query))

	msgs := make([]Message, len(ids))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(gmailConcurrency)
	for i, id := range ids {
		g.Go(func() error {
			if err := s.limiter.Wait(gctx); err != nil {
				return err
			}
			m, err := s.svc.Users.Messages.Get(gmailUser, id).Format("full").Context(gctx).Do()
			if err != nil {
				return fmt.Errorf("fetching message %s: %w", id, err)
			}
			msg, err := convertGmail(m)
			if err != nil {
				return fmt.Errorf("decoding message %s: %w", id, err)
			}
			msgs[i] = msg
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	return FilterSender(msgs, s.sender), nil
}

func (s *GmailSource) list(ctx context.Context) ([]string, error) {
	call := s.svc.Users.Messages.List(gmailUser).LabelIds(gmailInbox)
	if s.query != "" {
		call = call.Q(s.query)
	}

	var ids []string
	err := call.Pages(ctx, func(page *gmail.ListMessagesResponse) error {
		for _, m := range page.Messages {
			if s.max > 0 && len(ids) >= s.max {
				return errStopPaging
			}
			ids = append(ids, m.Id)
		}
		return nil
	})
	if err != nil && !errors.Is(err, errStopPaging) {
		return nil, fmt.Errorf("listing gmail messages: %w", err)
	}
	return ids, nil
}

var errStopPaging = errors.New("stop paging")

func convertGmail(m *gmail.Message) (Message, error) {
	msg := Message{ID: m.Id}
	if m.InternalDate > 0 {
		msg.Date = time.UnixMilli(m.InternalDate).UTC()
	}
	if m.Payload == nil {
		return msg, nil
	}

	for _, h := range m.Payload.Headers {
		switch strings.ToLower(h.Name) {
		case "from":
			msg.From = h.Value
		case "subject":
			msg.Subject = h.Value
		case "date":
			if d, err := netmail.ParseDate(h.Value); err == nil {
				msg.Date = d
			}
		}
	}

	plain, html, err := walkGmailParts(m.Payload)
	if err != nil {
		return Message{}, err
	}
	msg.Body, err = pickBody(plain, html)
	if err != nil {
		return Message{}, err
	}
	return msg, nil
}

// walkGmailParts mirrors walkParts over Gmail's pre-parsed MIME tree.
func walkGmailParts(p *gmail.MessagePart) (plain, html string, err error) {
	if strings.HasPrefix(p.MimeType, "multipart/") {
		for _, child := range p.Parts {
			cp, ch, err := walkGmailParts(child)
			if err != nil {
				return "", "", err
			}
			if plain == "" {
				plain = cp
			}
			if html == "" {
				html = ch
			}
		}
		return plain, html, nil
	}
	if p.Body == nil || p.Body.Data == "" {
		return "", "", nil
	}

	switch p.MimeType {
	case "text/plain":
		plain, err = decodeBase64URL(p.Body.Data)
	case "text/html":
		html, err = decodeBase64URL(p.Body.Data)
	}
	return plain, html, err
}
