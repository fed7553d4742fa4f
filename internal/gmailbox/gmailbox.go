// Package gmailbox reads recruitment mail through the Gmail API.
package gmailbox

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"os"
	"regexp"
	"strings"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	gmail "google.golang.org/api/gmail/v1"
	"google.golang.org/api/option"

	"github.com/pmontanari/screenops/internal/apiclient"
	"github.com/pmontanari/screenops/internal/config"
)

// additionalInfoMarker delimits the free-text section of the application
// form; everything before it is boilerplate we never copy into notes.
const additionalInfoMarker = "Informazioni aggiuntive:"

// Message is the slice of a recruitment email the pipeline cares about.
type Message struct {
	Subject string
	Body    string
}

type Mailbox struct {
	service     *gmail.Service
	searchAfter string
	maxResults  int64
}

// New authenticates against the Gmail API with the cached token file.
// There is no interactive consent flow here: runs execute headless, so
// a missing or unreadable token is a configuration error and the
// operator must produce the token out of band.
func New(ctx context.Context, cfg config.Gmail) (*Mailbox, error) {
	credJSON, err := os.ReadFile(cfg.CredentialsFile)
	if err != nil {
		return nil, fmt.Errorf("read oauth credentials: %w", err)
	}
	oc, err := google.ConfigFromJSON(credJSON, gmail.GmailReadonlyScope)
	if err != nil {
		return nil, fmt.Errorf("parse oauth credentials: %w", err)
	}
	tok, err := tokenFromFile(cfg.TokenFile)
	if err != nil {
		return nil, fmt.Errorf("read cached token %s (run the consent flow to create it): %w", cfg.TokenFile, err)
	}

	srv, err := gmail.NewService(ctx, option.WithHTTPClient(oc.Client(ctx, tok)))
	if err != nil {
		return nil, fmt.Errorf("gmail service: %w", err)
	}

	maxResults := int64(cfg.MaxResults)
	if maxResults <= 0 {
		maxResults = 5
	}
	return &Mailbox{
		service:     srv,
		searchAfter: cfg.SearchAfter,
		maxResults:  maxResults,
	}, nil
}

func tokenFromFile(path string) (*oauth2.Token, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	tok := &oauth2.Token{}
	if err := json.NewDecoder(f).Decode(tok); err != nil {
		return nil, fmt.Errorf("decode token: %w", err)
	}
	return tok, nil
}

// Profile returns the authenticated mailbox address, useful as a
// connectivity probe.
func (m *Mailbox) Profile(ctx context.Context) (string, error) {
	p, err := m.service.Users.GetProfile("me").Context(ctx).Do()
	if err != nil {
		return "", fmt.Errorf("gmail profile: %w", err)
	}
	return p.EmailAddress, nil
}

// SearchRecruitmentMail finds the application email a candidate sent us
// and returns its subject plus the free-text section of the body.
// No matching message wraps apiclient.ErrNotFound.
func (m *Mailbox) SearchRecruitmentMail(ctx context.Context, senderEmail, subjectPrefix string) (*Message, error) {
	query := fmt.Sprintf("from:%s subject:%q", senderEmail, subjectPrefix)
	if m.searchAfter != "" {
		query += " after:" + m.searchAfter
	}

	list, err := m.service.Users.Messages.List("me").Q(query).MaxResults(m.maxResults).Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("gmail search for %s: %w", senderEmail, err)
	}
	for _, meta := range list.Messages {
		msg, err := m.service.Users.Messages.Get("me", meta.Id).Format("full").Context(ctx).Do()
		if err != nil {
			return nil, fmt.Errorf("gmail fetch %s: %w", meta.Id, err)
		}
		subject := headerValue(msg.Payload, "Subject")
		if !strings.HasPrefix(subject, subjectPrefix) {
			continue
		}
		body, ok := cutAdditionalInfo(decodeBody(msg.Payload))
		if !ok {
			continue
		}
		return &Message{Subject: subject, Body: body}, nil
	}
	return nil, fmt.Errorf("no recruitment mail from %s: %w", senderEmail, apiclient.ErrNotFound)
}

func headerValue(payload *gmail.MessagePart, name string) string {
	if payload == nil {
		return ""
	}
	for _, h := range payload.Headers {
		if strings.EqualFold(h.Name, name) {
			return h.Value
		}
	}
	return ""
}

// decodeBody extracts the plain-text body of a message, preferring
// text/plain over text/html and recursing into nested multiparts.
func decodeBody(payload *gmail.MessagePart) string {
	if payload == nil {
		return ""
	}
	if payload.MimeType == "text/plain" && payload.Body != nil && payload.Body.Data != "" {
		return decodePart(payload.Body.Data)
	}

	var plain, html string
	for _, part := range payload.Parts {
		switch {
		case part.MimeType == "text/plain" && part.Body != nil && part.Body.Data != "":
			plain = decodePart(part.Body.Data)
		case part.MimeType == "text/html" && part.Body != nil && part.Body.Data != "":
			html = decodePart(part.Body.Data)
		case strings.HasPrefix(part.MimeType, "multipart/"):
			if nested := decodeBody(part); nested != "" {
				return nested
			}
		}
	}
	if plain != "" {
		return plain
	}
	return html
}

func decodePart(data string) string {
	raw, err := base64.URLEncoding.WithPadding(base64.NoPadding).DecodeString(strings.TrimRight(data, "="))
	if err != nil {
		return ""
	}
	return string(raw)
}

// cutAdditionalInfo trims the body to the free-text section following
// the form marker. A body without the marker is not usable.
func cutAdditionalInfo(body string) (string, bool) {
	idx := strings.Index(body, additionalInfoMarker)
	if idx == -1 {
		return "", false
	}
	return strings.TrimSpace(body[idx+len(additionalInfoMarker):]), true
}

var addrPattern = regexp.MustCompile(`<([^>]+)>`)

// ExtractAddress pulls the bare address out of a From header such as
// "Ada Lovelace <ada@example.com>".
func ExtractAddress(from string) string {
	if m := addrPattern.FindStringSubmatch(from); m != nil {
		return strings.ToLower(m[1])
	}
	return strings.ToLower(strings.TrimSpace(from))
}
