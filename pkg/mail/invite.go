// Package mail composes and sends iCalendar meeting invites over SMTP.
package mail

import (
	"context"
	"encoding/base64"
	"fmt"
	"log/slog"
	"net/smtp"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Invite describes one calendar invitation. Floating marks a start time
// that carried no zone information; it is interpreted in the sender's
// configured timezone instead of the UTC that zone-less parsing lands in.
type Invite struct {
	Recipient     string
	Subject       string
	Description   string
	Location      string
	StartTime     time.Time
	DurationHours float64
	Floating      bool
}

type SenderConfig struct {
	Host     string
	Port     int
	From     string
	Password string
	// Timezone used when a start time arrives without zone information and
	// for the human-readable body. Defaults to Asia/Kolkata.
	Timezone string
}

type Sender struct {
	cfg    SenderConfig
	tz     *time.Location
	logger *slog.Logger
	now    func() time.Time
	send   func(addr string, auth smtp.Auth, from string, to []string, msg []byte) error
	newUID func() string
}

func NewSender(cfg SenderConfig, logger *slog.Logger) (*Sender, error) {
	if strings.TrimSpace(cfg.From) == "" || strings.TrimSpace(cfg.Password) == "" {
		return nil, fmt.Errorf("sender email and password must be configured")
	}
	if cfg.Host == "" {
		cfg.Host = "smtp.gmail.com"
	}
	if cfg.Port <= 0 {
		cfg.Port = 587
	}
	if cfg.Timezone == "" {
		cfg.Timezone = "Asia/Kolkata"
	}
	tz, err := time.LoadLocation(cfg.Timezone)
	if err != nil {
		return nil, fmt.Errorf("load invite timezone %q: %w", cfg.Timezone, err)
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Sender{
		cfg:    cfg,
		tz:     tz,
		logger: logger,
		now:    time.Now,
		send:   smtp.SendMail,
		newUID: uuid.NewString,
	}, nil
}

// SendInvite delivers a REQUEST-method calendar invite that renders with
// accept/decline buttons in Gmail, Outlook, and Apple Mail.
func (s *Sender) SendInvite(ctx context.Context, inv Invite) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if inv.DurationHours <= 0 {
		inv.DurationHours = 1.0
	}

	start := inv.StartTime
	if inv.Floating && s.tz != nil {
		start = time.Date(start.Year(), start.Month(), start.Day(), start.Hour(), start.Minute(), start.Second(), 0, s.tz)
	}

	ics := s.buildICS(inv, start)
	msg := s.buildMessage(inv, start, ics)

	addr := fmt.Sprintf("%s:%d", s.cfg.Host, s.cfg.Port)
	auth := smtp.PlainAuth("", s.cfg.From, s.cfg.Password, s.cfg.Host)
	if err := s.send(addr, auth, s.cfg.From, []string{inv.Recipient}, msg); err != nil {
		return fmt.Errorf("send invite to %s: %w", inv.Recipient, err)
	}

	s.logger.Info("calendar invite sent", "recipient", inv.Recipient, "subject", inv.Subject)
	return nil
}

func (s *Sender) buildICS(inv Invite, start time.Time) string {
	end := start.Add(time.Duration(inv.DurationHours * float64(time.Hour)))
	stamp := s.now().UTC()

	lines := []string{
		"BEGIN:VCALENDAR",
		"PRODID:-//VoxBridge//Invite//EN",
		"VERSION:2.0",
		"METHOD:REQUEST",
		"BEGIN:VEVENT",
		"SUMMARY:" + escapeICS(inv.Subject),
		"DESCRIPTION:" + escapeICS(inv.Description),
		"LOCATION:" + escapeICS(inv.Location),
		"DTSTART:" + icsTime(start),
		"DTEND:" + icsTime(end),
		"DTSTAMP:" + icsTime(stamp),
		"UID:" + s.newUID(),
		"ORGANIZER:MAILTO:" + s.cfg.From,
		"ATTENDEE;RSVP=TRUE;ROLE=REQ-PARTICIPANT:MAILTO:" + inv.Recipient,
		"SEQUENCE:0",
		"STATUS:CONFIRMED",
		"TRANSP:OPAQUE",
		"BEGIN:VALARM",
		"ACTION:DISPLAY",
		"DESCRIPTION:Reminder",
		"TRIGGER:-PT15M",
		"END:VALARM",
		"END:VEVENT",
		"END:VCALENDAR",
	}
	return strings.Join(lines, "\r\n") + "\r\n"
}

// buildMessage assembles the MIME structure mail clients expect for
// invites: an alternative part holding the plain body and the inline
// text/calendar part, plus an .ics attachment as a fallback.
func (s *Sender) buildMessage(inv Invite, start time.Time, ics string) []byte {
	altBoundary := "voxbridge-alt-" + s.newUID()
	mixedBoundary := "voxbridge-mixed-" + s.newUID()

	body := fmt.Sprintf(
		"You have an invitation for: %s\r\n\r\n%s\r\n\r\nLocation: %s\r\nTime: %s",
		inv.Subject, inv.Description, inv.Location, start.Format("2006-01-02 15:04 MST"),
	)

	var b strings.Builder
	write := func(line string) {
		b.WriteString(line)
		b.WriteString("\r\n")
	}

	write("From: " + s.cfg.From)
	write("To: " + inv.Recipient)
	write("Subject: " + inv.Subject)
	write("MIME-Version: 1.0")
	write("Content-Class: urn:content-classes:calendarmessage")
	write(`Content-Type: multipart/mixed; boundary="` + mixedBoundary + `"`)
	write("")

	write("--" + mixedBoundary)
	write(`Content-Type: multipart/alternative; boundary="` + altBoundary + `"`)
	write("")

	write("--" + altBoundary)
	write(`Content-Type: text/plain; charset="utf-8"`)
	write("")
	write(body)

	write("--" + altBoundary)
	write(`Content-Type: text/calendar; method=REQUEST; charset="utf-8"`)
	write("Content-Class: urn:content-classes:calendarmessage")
	write("")
	write(ics)
	write("--" + altBoundary + "--")

	write("--" + mixedBoundary)
	write(`Content-Type: text/calendar; method=REQUEST; name="invite.ics"`)
	write("Content-Transfer-Encoding: base64")
	write(`Content-Disposition: attachment; filename="invite.ics"`)
	write("")
	write(base64.StdEncoding.EncodeToString([]byte(ics)))
	write("--" + mixedBoundary + "--")

	return []byte(b.String())
}

func icsTime(t time.Time) string {
	return t.UTC().Format("20060102T150405Z")
}

func escapeICS(text string) string {
	replacer := strings.NewReplacer(
		`\`, `\\`,
		";", `\;`,
		",", `\,`,
		"\n", `\n`,
	)
	return replacer.Replace(text)
}
