package notify

import (
	"context"
	"encoding/base64"
	"fmt"
	"os"
	"time"

	"golang.org/x/oauth2/google"
	"google.golang.org/api/gmail/v1"
	"google.golang.org/api/option"

	"taskviewer/pkg/user"
)

// Gmail sends messages through the Gmail API as a single sender mailbox.
type Gmail struct {
	srv  *gmail.Service
	from string
}

// NewGmail authenticates with a service-account key that has domain-wide
// delegation and impersonates sender.
func NewGmail(ctx context.Context, credentialsFile, sender string) (*Gmail, error) {
	b, err := os.ReadFile(credentialsFile)
	if err != nil {
		return nil, fmt.Errorf("unable to read credentials file %s: %w", credentialsFile, err)
	}
	cfg, err := google.JWTConfigFromJSON(b, gmail.GmailSendScope)
	if err != nil {
		return nil, fmt.Errorf("unable to parse credentials file: %w", err)
	}
	cfg.Subject = sender

	srv, err := gmail.NewService(ctx, option.WithHTTPClient(cfg.Client(ctx)))
	if err != nil {
		return nil, fmt.Errorf("unable to create Gmail client: %w", err)
	}
	return NewGmailService(srv, sender), nil
}

// NewGmailService wraps an already configured Gmail service.
func NewGmailService(srv *gmail.Service, sender string) *Gmail {
	return &Gmail{srv: srv, from: sender}
}

// Send delivers the message to to's email address.
func (g *Gmail) Send(ctx context.Context, to user.User, subject, body string) error {
	if to.Email == "" {
		return fmt.Errorf("gmail: user %s has no email", to.Username)
	}
	raw := compose(g.from, to.Email, subject, body, time.Now())
	msg := &gmail.Message{Raw: base64.URLEncoding.EncodeToString(raw)}
	if _, err := g.srv.Users.Messages.Send("me", msg).Context(ctx).Do(); err != nil {
		return fmt.Errorf("gmail send to %s: %w", to.Email, err)
	}
	return nil
}
