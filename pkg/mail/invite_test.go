package mail

import (
	"context"
	"net/smtp"
	"strings"
	"testing"
	"time"
)

type capturedSend struct {
	addr string
	from string
	to   []string
	msg  string
}

func newTestSender(t *testing.T) (*Sender, *capturedSend) {
	t.Helper()
	sender, err := NewSender(SenderConfig{
		Host:     "smtp.example.com",
		Port:     587,
		From:     "agent@example.com",
		Password: "secret",
		Timezone: "Asia/Kolkata",
	}, nil)
	if err != nil {
		t.Fatalf("new sender: %v", err)
	}

	captured := &capturedSend{}
	sender.send = func(addr string, auth smtp.Auth, from string, to []string, msg []byte) error {
		captured.addr = addr
		captured.from = from
		captured.to = to
		captured.msg = string(msg)
		return nil
	}
	sender.now = func() time.Time {
		return time.Date(2026, 8, 24, 10, 0, 0, 0, time.UTC)
	}
	uid := 0
	sender.newUID = func() string {
		uid++
		return "uid-" + string(rune('0'+uid))
	}
	return sender, captured
}

func testInvite() Invite {
	return Invite{
		Recipient:     "priya@example.com",
		Subject:       "Intro call",
		Description:   "Scoping chat; bring questions",
		Location:      "Zoom",
		StartTime:     time.Date(2026, 9, 1, 14, 0, 0, 0, time.UTC),
		DurationHours: 1.5,
		Floating:      true,
	}
}

func TestSendInviteHeadersAndRouting(t *testing.T) {
	sender, captured := newTestSender(t)

	if err := sender.SendInvite(context.Background(), testInvite()); err != nil {
		t.Fatalf("send invite: %v", err)
	}

	if captured.addr != "smtp.example.com:587" {
		t.Fatalf("smtp addr = %q", captured.addr)
	}
	if captured.from != "agent@example.com" {
		t.Fatalf("from = %q", captured.from)
	}
	if len(captured.to) != 1 || captured.to[0] != "priya@example.com" {
		t.Fatalf("to = %v", captured.to)
	}
	for _, want := range []string{
		"From: agent@example.com\r\n",
		"To: priya@example.com\r\n",
		"Subject: Intro call\r\n",
		"MIME-Version: 1.0\r\n",
		"Content-Type: multipart/mixed;",
	} {
		if !strings.Contains(captured.msg, want) {
			t.Fatalf("message missing %q:\n%s", want, captured.msg)
		}
	}
}

func TestSendInviteICSContent(t *testing.T) {
	sender, captured := newTestSender(t)

	if err := sender.SendInvite(context.Background(), testInvite()); err != nil {
		t.Fatalf("send invite: %v", err)
	}

	for _, want := range []string{
		"METHOD:REQUEST",
		"SUMMARY:Intro call",
		"LOCATION:Zoom",
		"ORGANIZER:MAILTO:agent@example.com",
		"ATTENDEE;RSVP=TRUE;ROLE=REQ-PARTICIPANT:MAILTO:priya@example.com",
		"TRIGGER:-PT15M",
		"ACTION:DISPLAY",
		"STATUS:CONFIRMED",
	} {
		if !strings.Contains(captured.msg, want) {
			t.Fatalf("ics missing %q:\n%s", want, captured.msg)
		}
	}

	// Description contains a semicolon, which must be escaped in ICS.
	if !strings.Contains(captured.msg, `DESCRIPTION:Scoping chat\; bring questions`) {
		t.Fatalf("ics description not escaped:\n%s", captured.msg)
	}
}

func TestSendInviteReinterpretsZonelessStart(t *testing.T) {
	sender, captured := newTestSender(t)

	inv := testInvite()
	// A floating 14:00 carries no zone; the sender treats it as IST, which
	// is 08:30 UTC.
	if err := sender.SendInvite(context.Background(), inv); err != nil {
		t.Fatalf("send invite: %v", err)
	}
	if !strings.Contains(captured.msg, "DTSTART:20260901T083000Z") {
		t.Fatalf("start not reinterpreted as local time:\n%s", captured.msg)
	}
	// 1.5 hours later.
	if !strings.Contains(captured.msg, "DTEND:20260901T100000Z") {
		t.Fatalf("end time wrong:\n%s", captured.msg)
	}
}

func TestSendInviteKeepsExplicitZone(t *testing.T) {
	sender, captured := newTestSender(t)

	ist, err := time.LoadLocation("Asia/Kolkata")
	if err != nil {
		t.Fatalf("load tz: %v", err)
	}
	inv := testInvite()
	inv.StartTime = time.Date(2026, 9, 1, 14, 0, 0, 0, ist)
	inv.Floating = false

	if err := sender.SendInvite(context.Background(), inv); err != nil {
		t.Fatalf("send invite: %v", err)
	}
	if !strings.Contains(captured.msg, "DTSTART:20260901T083000Z") {
		t.Fatalf("zoned start mishandled:\n%s", captured.msg)
	}
}

func TestSendInviteKeepsExplicitUTC(t *testing.T) {
	sender, captured := newTestSender(t)

	// 14:00Z with an explicit zone must not be shifted into the sender's
	// timezone.
	inv := testInvite()
	inv.Floating = false

	if err := sender.SendInvite(context.Background(), inv); err != nil {
		t.Fatalf("send invite: %v", err)
	}
	if !strings.Contains(captured.msg, "DTSTART:20260901T140000Z") {
		t.Fatalf("explicit UTC start was shifted:\n%s", captured.msg)
	}
}

func TestSendInviteDefaultsDuration(t *testing.T) {
	sender, captured := newTestSender(t)

	inv := testInvite()
	inv.DurationHours = 0

	if err := sender.SendInvite(context.Background(), inv); err != nil {
		t.Fatalf("send invite: %v", err)
	}
	if !strings.Contains(captured.msg, "DTEND:20260901T093000Z") {
		t.Fatalf("duration did not default to one hour:\n%s", captured.msg)
	}
}

func TestSendInviteCanceledContext(t *testing.T) {
	sender, captured := newTestSender(t)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := sender.SendInvite(ctx, testInvite()); err == nil {
		t.Fatalf("expected context error")
	}
	if captured.msg != "" {
		t.Fatalf("message sent despite canceled context")
	}
}

func TestNewSenderValidation(t *testing.T) {
	if _, err := NewSender(SenderConfig{Password: "x"}, nil); err == nil {
		t.Fatalf("expected error without sender email")
	}
	if _, err := NewSender(SenderConfig{From: "a@b.c"}, nil); err == nil {
		t.Fatalf("expected error without password")
	}
	if _, err := NewSender(SenderConfig{From: "a@b.c", Password: "x", Timezone: "Not/AZone"}, nil); err == nil {
		t.Fatalf("expected error for bad timezone")
	}
}

func TestEscapeICS(t *testing.T) {
	got := escapeICS("a;b,c\nd\\e")
	want := `a\;b\,c\nd\\e`
	if got != want {
		t.Fatalf("escapeICS = %q, want %q", got, want)
	}
}
