package mailbox

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"strings"
	"time"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	"google.golang.org/api/gmail/v1"
	"google.golang.org/api/option"

	"github.com/chiayu-tsai/uber-receipts-sync/internal/common"
)

const gmailUser = "me"

// GmailSource lists label threads through the Gmail API.
type GmailSource struct {
	srv    *gmail.Service
	logger *slog.Logger

	labelIDs map[string]string // label name -> id, filled by ResolveLabel
}

// NewGmailSource builds a Source from an OAuth credentials file and a cached
// token file. A missing token triggers the interactive exchange once; the
// token is then reused across invocations.
func NewGmailSource(ctx context.Context, cfg common.GmailConfig, logger *slog.Logger) (*GmailSource, error) {
	if logger == nil {
		logger = slog.Default()
	}
	b, err := os.ReadFile(cfg.CredentialsFile)
	if err != nil {
		return nil, fmt.Errorf("read client secret file: %w", err)
	}
	oauthConfig, err := google.ConfigFromJSON(b, gmail.GmailReadonlyScope)
	if err != nil {
		return nil, fmt.Errorf("parse client secret file: %w", err)
	}
	httpClient, err := oauthClient(ctx, oauthConfig, cfg.TokenFile)
	if err != nil {
		return nil, err
	}
	srv, err := gmail.NewService(ctx, option.WithHTTPClient(httpClient))
	if err != nil {
		return nil, fmt.Errorf("create gmail service: %w", err)
	}
	return &GmailSource{srv: srv, logger: logger, labelIDs: make(map[string]string)}, nil
}

func oauthClient(ctx context.Context, config *oauth2.Config, tokenFile string) (*http.Client, error) {
	tok, err := tokenFromFile(tokenFile)
	if err != nil {
		tok, err = tokenFromWeb(ctx, config)
		if err != nil {
			return nil, err
		}
		if err := saveToken(tokenFile, tok); err != nil {
			return nil, err
		}
	}
	return config.Client(ctx, tok), nil
}

func tokenFromWeb(ctx context.Context, config *oauth2.Config) (*oauth2.Token, error) {
	authURL := config.AuthCodeURL("state-token", oauth2.AccessTypeOffline)
	fmt.Printf("Go to the following link in your browser then type the authorization code:\n%v\n", authURL)
	var authCode string
	if _, err := fmt.Scan(&authCode); err != nil {
		return nil, fmt.Errorf("read authorization code: %w", err)
	}
	tok, err := config.Exchange(ctx, authCode)
	if err != nil {
		return nil, fmt.Errorf("exchange authorization code: %w", err)
	}
	return tok, nil
}

func tokenFromFile(file string) (*oauth2.Token, error) {
	f, err := os.Open(file)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	tok := &oauth2.Token{}
	err = json.NewDecoder(f).Decode(tok)
	return tok, err
}

func saveToken(path string, token *oauth2.Token) error {
	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE|os.O_TRUNC, 0600)
	if err != nil {
		return fmt.Errorf("save oauth token: %w", err)
	}
	defer f.Close()
	return json.NewEncoder(f).Encode(token)
}

// ResolveLabel looks up the label by name and caches its ID.
func (s *GmailSource) ResolveLabel(ctx context.Context, name string) error {
	if _, ok := s.labelIDs[name]; ok {
		return nil
	}
	resp, err := s.srv.Users.Labels.List(gmailUser).Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("list labels: %w", err)
	}
	for _, l := range resp.Labels {
		if l.Name == name {
			s.labelIDs[name] = l.Id
			return nil
		}
	}
	return common.NewAppError("LABEL_NOT_FOUND", fmt.Sprintf("label %q does not exist", name), common.ErrNotFound)
}

// Page lists up to size threads starting at offset. Gmail paginates with
// opaque tokens, so the listing is replayed from the start of the label to
// reach the offset; listing is cheap relative to per-message fetches and the
// checkpoint stays a plain integer.
func (s *GmailSource) Page(ctx context.Context, label string, offset, size int) ([]Thread, error) {
	if err := s.ResolveLabel(ctx, label); err != nil {
		return nil, err
	}
	labelID := s.labelIDs[label]

	var (
		refs      []*gmail.Thread
		pageToken string
		index     int
	)
	for len(refs) < size {
		call := s.srv.Users.Threads.List(gmailUser).
			LabelIds(labelID).
			MaxResults(int64(size)).
			Context(ctx)
		if pageToken != "" {
			call = call.PageToken(pageToken)
		}
		resp, err := call.Do()
		if err != nil {
			return nil, fmt.Errorf("list threads: %w", err)
		}
		for _, t := range resp.Threads {
			if index >= offset && len(refs) < size {
				refs = append(refs, t)
			}
			index++
		}
		if resp.NextPageToken == "" || len(refs) >= size {
			break
		}
		pageToken = resp.NextPageToken
	}

	threads := make([]Thread, 0, len(refs))
	for _, ref := range refs {
		thread, err := s.fetchThread(ctx, ref.Id)
		if err != nil {
			return nil, err
		}
		threads = append(threads, thread)
	}
	return threads, nil
}

func (s *GmailSource) fetchThread(ctx context.Context, id string) (Thread, error) {
	full, err := s.srv.Users.Threads.Get(gmailUser, id).Format("full").Context(ctx).Do()
	if err != nil {
		return Thread{}, fmt.Errorf("get thread %s: %w", id, err)
	}
	out := Thread{ID: id}
	for _, m := range full.Messages {
		out.Messages = append(out.Messages, decodeMessage(m))
	}
	return out, nil
}

func decodeMessage(m *gmail.Message) Message {
	msg := Message{
		ID:       m.Id,
		Received: time.UnixMilli(m.InternalDate),
	}
	if m.Payload == nil {
		return msg
	}
	for _, h := range m.Payload.Headers {
		if h.Name == "Subject" {
			msg.Subject = h.Value
			break
		}
	}
	msg.PlainBody = partBody(m.Payload, "text/plain")
	msg.HTMLBody = partBody(m.Payload, "text/html")
	return msg
}

// partBody walks the MIME tree for the first part of the wanted type and
// decodes its base64url body.
func partBody(payload *gmail.MessagePart, mimeType string) string {
	if payload.MimeType == mimeType && payload.Body != nil && payload.Body.Data != "" {
		data, err := base64.URLEncoding.DecodeString(payload.Body.Data)
		if err == nil {
			return string(data)
		}
	}
	for _, part := range payload.Parts {
		if strings.HasPrefix(strings.ToLower(part.MimeType), "text/") ||
			strings.HasPrefix(strings.ToLower(part.MimeType), "multipart/") {
			if body := partBody(part, mimeType); body != "" {
				return body
			}
		}
	}
	return ""
}
