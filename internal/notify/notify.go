// Package notify tells the requesting operator how a clone ended.
package notify

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/vbp1/pgdbcopy/internal/clone"
)

// ErrNoAddress means neither the user nor the configuration provides a
// destination address.
var ErrNoAddress = errors.New("no notification address")

// Mailer delivers one plain text message.
type Mailer interface {
	Send(ctx context.Context, from string, to []string, subject, body string) error
}

// Directory maps a requesting user to an email address.
type Directory interface {
	Email(user string) string
}

// Users is a static Directory.
type Users map[string]string

func (u Users) Email(user string) string { return u[user] }

// Config holds addresses used for every notification.
type Config struct {
	// From is the sender, and the recipient of last resort.
	From string
	// OpsMailbox, if set, receives a copy of every message.
	OpsMailbox string
}

// Service formats outcomes and hands them to a Mailer.
type Service struct {
	cfg    Config
	dir    Directory
	mailer Mailer
}

// New returns a Service. dir may be nil.
func New(cfg Config, dir Directory, mailer Mailer) *Service {
	if dir == nil {
		dir = Users{}
	}
	return &Service{cfg: cfg, dir: dir, mailer: mailer}
}

// Resolve returns sender and recipients for user. The user's own address is
// preferred, the configured From address is the fallback.
func (s *Service) Resolve(user string) (from string, to []string, err error) {
	addr := s.dir.Email(user)
	if addr == "" {
		addr = s.cfg.From
	}
	if addr == "" {
		return "", nil, fmt.Errorf("%w for user %q", ErrNoAddress, user)
	}
	to = []string{addr}
	if s.cfg.OpsMailbox != "" && s.cfg.OpsMailbox != addr {
		to = append(to, s.cfg.OpsMailbox)
	}
	from = s.cfg.From
	if from == "" {
		from = addr
	}
	return from, to, nil
}

// Notify sends the message for o. It never retries and never returns an
// error: a failed delivery is logged and the outcome stays what it was.
func (s *Service) Notify(ctx context.Context, user string, o clone.Outcome) {
	from, to, err := s.Resolve(user)
	if err != nil {
		slog.Error("notification not sent", "user", user, "outcome", o.String(), "err", err)
		return
	}
	subject, body := Format(o)
	if err := s.mailer.Send(ctx, from, to, subject, body); err != nil {
		slog.Error("notification delivery failed", "to", to, "outcome", o.String(), "err", err)
		return
	}
	slog.Info("notification sent", "to", to, "success", o.Succeeded())
}

// Format renders the subject and plain text body for o.
func Format(o clone.Outcome) (subject, body string) {
	subject = fmt.Sprintf("pgdbcopy: result of clone of database %s", o.Source)

	var b strings.Builder
	switch o.Stage {
	case "":
		fmt.Fprintf(&b, "Database %s cloned successfully into %s.\n", o.Source, o.Target)
		b.WriteString("Now you can connect to the new database.\n")
		return subject, b.String()
	case clone.StagePostProcess:
		fmt.Fprintf(&b, "Database %s was cloned into %s, but post-processing failed.\n", o.Source, o.Target)
		b.WriteString("The data is complete. Scheduled jobs copied from the source may still be active\n")
		b.WriteString("in the new database; deactivate them manually before using it.\n")
	default:
		b.WriteString(headline(o))
		b.WriteString("\n")
	}
	if o.Detail != "" {
		b.WriteString("\n")
		b.WriteString(o.Detail)
		b.WriteString("\n")
	}
	return subject, b.String()
}

func headline(o clone.Outcome) string {
	switch o.Stage {
	case clone.StageDropTarget:
		return fmt.Sprintf("Error dropping database %s.", o.Target)
	case clone.StageCreateTarget:
		return fmt.Sprintf("Error creating database %s.", o.Target)
	case clone.StageDumpSource:
		return fmt.Sprintf("Error dumping database %s.", o.Source)
	case clone.StageRestoreTarget:
		return fmt.Sprintf("Error restoring database %s.", o.Target)
	}
	return fmt.Sprintf("Clone of %s into %s failed at %s.", o.Source, o.Target, o.Stage)
}
