package notify

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/natefinch/atomic"

	"taskviewer/pkg/user"
)

// Spool writes each message as an .eml file into a directory, for a mail
// relay to pick up or for local development. Files appear atomically.
type Spool struct {
	dir  string
	from string
}

// NewSpool creates a Spool writing into dir, creating it if needed.
func NewSpool(dir, from string) (*Spool, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("spool dir: %w", err)
	}
	return &Spool{dir: dir, from: from}, nil
}

// Send writes the message for to into the spool directory.
func (s *Spool) Send(ctx context.Context, to user.User, subject, body string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if to.Email == "" {
		return fmt.Errorf("spool: user %s has no email", to.Username)
	}
	now := time.Now().UTC()
	msg := compose(s.from, to.Email, subject, body, now)
	name := fmt.Sprintf("%s-%s.eml", now.Format("20060102T150405Z"), uuid.Must(uuid.NewV7()).String())
	if err := atomic.WriteFile(filepath.Join(s.dir, name), bytes.NewReader(msg)); err != nil {
		return fmt.Errorf("spool %s: %w", name, err)
	}
	return nil
}
