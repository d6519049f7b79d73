package agent

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/voxbridge/voxbridge/pkg/cards"
	"github.com/voxbridge/voxbridge/pkg/kb"
	"github.com/voxbridge/voxbridge/pkg/mail"
	"github.com/voxbridge/voxbridge/pkg/maps"
	"github.com/voxbridge/voxbridge/pkg/room"
)

// KnowledgeBase is the vector-search collaborator.
type KnowledgeBase interface {
	Search(ctx context.Context, query string, k int) ([]kb.Document, error)
}

// CardGenerator produces the lazy UI card sequence and tracks the frontend's
// viewport context.
type CardGenerator interface {
	UpdateContext(ctx context.Context, ui cards.UIContext) error
	GenerateStream(ctx context.Context, req cards.Request) (<-chan cards.Card, error)
}

// RoutePlanner is the maps collaborator.
type RoutePlanner interface {
	ReverseGeocode(ctx context.Context, lat, lng float64) (string, error)
	ComputeRoute(ctx context.Context, originLat, originLng float64, destination string) (*maps.Route, error)
}

// InviteSender delivers calendar invites.
type InviteSender interface {
	SendInvite(ctx context.Context, inv mail.Invite) error
}

// Runtime is the conversational-agent runtime: the controller keeps its
// instructions in sync with session state and drives one Respond turn per
// inbound user message.
type Runtime interface {
	UpdateInstructions(ctx context.Context, instructions string) error
	Respond(ctx context.Context, userText string) (string, error)
}

// Recorder persists session activity. All recording is best-effort; the
// controller logs failures and moves on.
type Recorder interface {
	RecordUser(ctx context.Context, userID, name, email string) error
	RecordCardShown(ctx context.Context, cardType string, payload map[string]any, displayOrder int) error
}

type Config struct {
	KBFetchSize         int
	LocationTimeout     time.Duration
	ContactPreviewDelay time.Duration
	ContactSubmitDelay  time.Duration
}

type Deps struct {
	Logger    *slog.Logger
	Publisher room.Publisher
	KB        KnowledgeBase
	Cards     CardGenerator
	Maps      RoutePlanner
	Mail      InviteSender
	Runtime   Runtime
	Recorder  Recorder
	Config    Config
}

// Controller owns all state for one room session: user identity, the active
// UI element list, the last knowledge-base result, and the location
// rendezvous slot. One controller per room; nothing is shared across rooms.
type Controller struct {
	logger   *slog.Logger
	pub      room.Publisher
	kb       KnowledgeBase
	cards    CardGenerator
	maps     RoutePlanner
	mail     InviteSender
	recorder Recorder
	cfg      Config

	baseInstructions string

	mu      sync.Mutex
	runtime Runtime

	userID    string
	userName  string
	userEmail string
	userPhone string

	activeElements []string
	dbResults      string

	locStatus   string
	locLat      float64
	locLng      float64
	locAccuracy float64
	locHasFix   bool
	locWake     chan struct{}
	locFired    bool
	locWaiting  bool
}

func NewController(deps Deps) *Controller {
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	cfg := deps.Config
	if cfg.KBFetchSize <= 0 {
		cfg.KBFetchSize = 10
	}
	if cfg.LocationTimeout <= 0 {
		cfg.LocationTimeout = 15 * time.Second
	}
	if cfg.ContactPreviewDelay <= 0 {
		cfg.ContactPreviewDelay = 2 * time.Second
	}
	if cfg.ContactSubmitDelay <= 0 {
		cfg.ContactSubmitDelay = 500 * time.Millisecond
	}

	return &Controller{
		logger:           logger,
		pub:              deps.Publisher,
		kb:               deps.KB,
		cards:            deps.Cards,
		maps:             deps.Maps,
		mail:             deps.Mail,
		runtime:          deps.Runtime,
		recorder:         deps.Recorder,
		cfg:              cfg,
		baseInstructions: conciergePrompt + ttsHumanization,
		locWake:          make(chan struct{}),
	}
}

// AttachRuntime wires the conversational runtime after construction. The
// runtime needs the controller's tool registry, so the two are built in
// sequence.
func (c *Controller) AttachRuntime(rt Runtime) {
	c.mu.Lock()
	c.runtime = rt
	c.mu.Unlock()
}

// HandleData routes one inbound frontend packet. Unknown topics are ignored;
// malformed payloads are logged and dropped. This method never fails: a bad
// packet must not take down the session.
func (c *Controller) HandleData(ctx context.Context, pkt room.DataPacket) {
	switch pkt.Topic {
	case room.TopicUIContext, room.TopicUserContext, room.TopicUserLocation, room.TopicUserMessage:
	default:
		return
	}

	if len(pkt.Payload) == 0 || !utf8.Valid(pkt.Payload) {
		c.logger.Warn("dropping packet with undecodable payload", "topic", pkt.Topic)
		return
	}

	switch pkt.Topic {
	case room.TopicUIContext:
		var payload room.UIContextPayload
		if err := json.Unmarshal(pkt.Payload, &payload); err != nil {
			c.logger.Warn("invalid payload, JSON parse failed", "topic", pkt.Topic, "error", err)
			return
		}
		c.logger.Info("ui context sync received")
		c.applyUIContext(ctx, payload)
		c.spawnRebuild(ctx)

	case room.TopicUserContext:
		var payload room.UserContextPayload
		if err := json.Unmarshal(pkt.Payload, &payload); err != nil {
			c.logger.Warn("invalid payload, JSON parse failed", "topic", pkt.Topic, "error", err)
			return
		}
		c.applyUserContext(ctx, payload)

	case room.TopicUserLocation:
		var payload room.UserLocationPayload
		if err := json.Unmarshal(pkt.Payload, &payload); err != nil {
			c.logger.Warn("invalid payload, JSON parse failed", "topic", pkt.Topic, "error", err)
			return
		}
		c.applyUserLocation(payload)

	case room.TopicUserMessage:
		var payload room.UserMessagePayload
		if err := json.Unmarshal(pkt.Payload, &payload); err != nil {
			c.logger.Warn("invalid payload, JSON parse failed", "topic", pkt.Topic, "error", err)
			return
		}
		c.applyUserMessage(ctx, payload)
	}
}

// applyUserMessage drives one conversation turn. Respond can block for the
// length of a tool call (the location rendezvous waits up to its full
// timeout), so the turn runs on a detached goroutine: the reader must stay
// free to deliver the user.location packet that unblocks it.
func (c *Controller) applyUserMessage(ctx context.Context, payload room.UserMessagePayload) {
	text := strings.TrimSpace(payload.Text)
	if text == "" {
		return
	}

	c.mu.Lock()
	rt := c.runtime
	c.mu.Unlock()
	if rt == nil {
		c.logger.Warn("user message arrived before the runtime was attached")
		return
	}

	go func() {
		reply, err := rt.Respond(ctx, text)
		if err != nil {
			c.logger.Error("conversation turn failed", "error", err)
			return
		}
		if reply == "" {
			return
		}
		c.publish(ctx, room.TopicAgentMessage, room.AgentMessage{Text: reply})
	}()
}

// applyUIContext replaces the active element list and forwards the
// normalized viewport to the card generator.
func (c *Controller) applyUIContext(ctx context.Context, payload room.UIContextPayload) {
	ui := cards.UIContext{
		Screen:          payload.Viewport.Screen,
		Theme:           payload.Viewport.Theme,
		MaxVisibleCards: payload.Viewport.Capabilities.MaxVisibleCards,
		ActiveElements:  payload.ActiveElements,
	}
	if ui.Screen == "" {
		ui.Screen = "desktop"
	}
	if ui.Theme == "" {
		ui.Theme = "light"
	}
	if ui.MaxVisibleCards <= 0 {
		ui.MaxVisibleCards = 4
	}
	if ui.ActiveElements == nil {
		ui.ActiveElements = []string{}
	}

	if c.cards != nil {
		if err := c.cards.UpdateContext(ctx, ui); err != nil {
			c.logger.Warn("card generator context update failed", "error", err)
		}
	}

	c.mu.Lock()
	c.activeElements = ui.ActiveElements
	c.mu.Unlock()
}

func (c *Controller) applyUserContext(ctx context.Context, payload room.UserContextPayload) {
	info := payload.UserInfo
	c.logger.Info("user context sync received", "user_name", info.UserName)

	c.mu.Lock()
	c.userID = info.UserID
	c.userName = info.UserName
	c.userEmail = info.UserEmail
	c.userPhone = info.UserPhone
	c.mu.Unlock()

	if c.recorder != nil && info.UserID != "" {
		if err := c.recorder.RecordUser(ctx, info.UserID, info.UserName, info.UserEmail); err != nil {
			c.logger.Warn("user record failed", "error", err)
		}
	}

	if info.UserName != "" && !strings.EqualFold(info.UserName, "guest") {
		c.spawnRebuild(ctx)
	}
}

func (c *Controller) applyUserLocation(payload room.UserLocationPayload) {
	c.logger.Info("location packet received", "status", payload.Status)

	c.mu.Lock()
	c.locStatus = payload.Status
	if payload.Status == room.LocationStatusSuccess {
		c.locLat = payload.Latitude
		c.locLng = payload.Longitude
		c.locAccuracy = payload.Accuracy
		c.locHasFix = true
	} else if payload.Error != "" {
		c.logger.Warn("location not available", "error", payload.Error)
	}
	// Wake the pending rendezvous whatever the status was; a waiting tool
	// call must never be left hanging on a denied or malformed reply.
	if !c.locFired {
		close(c.locWake)
		c.locFired = true
	}
	c.mu.Unlock()
}

// spawnRebuild recomputes instructions on a detached goroutine. Two rapid
// triggers can race; the last rebuild to complete wins.
func (c *Controller) spawnRebuild(ctx context.Context) {
	go func() {
		if err := c.Rebuild(ctx); err != nil {
			c.logger.Error("instruction rebuild failed", "error", err)
		}
	}()
}

// SearchKnowledgeBase answers a question from the vector knowledge base and
// caches the formatted result for the next card stream.
func (c *Controller) SearchKnowledgeBase(ctx context.Context, question string) string {
	c.logger.Info("searching knowledge base", "question", question)

	docs, err := c.kb.Search(ctx, question, c.cfg.KBFetchSize)
	if err != nil {
		c.logger.Error("knowledge base search failed", "error", err)
		return "The knowledge base is unavailable right now. Please try again in a moment."
	}

	formatted := FormatResults(docs)

	c.mu.Lock()
	c.dbResults = formatted
	c.mu.Unlock()

	return formatted
}

// PublishUIStream schedules the card stream in the background so the voice
// response is not delayed, and acknowledges immediately.
func (c *Controller) PublishUIStream(ctx context.Context, userInput, agentResponse string) string {
	c.logger.Info("publishing ui stream", "user_input", userInput)

	c.mu.Lock()
	dbResults := c.dbResults
	c.mu.Unlock()

	go c.publishCardStream(ctx, userInput, dbResults, agentResponse)
	return "UI stream published."
}

// PreviewContactForm shows the collected form on the frontend for review.
func (c *Controller) PreviewContactForm(ctx context.Context, data room.ContactFormData) string {
	c.logger.Info("sending contact form preview", "user_name", data.UserName, "user_email", data.UserEmail)

	if !c.sleep(ctx, c.cfg.ContactPreviewDelay) {
		return "Contact form preview canceled."
	}
	c.publish(ctx, room.TopicUIContactForm, room.ContactForm{Type: "contact_form", Data: data})

	return "Contact form displayed on UI. Please ask the user to review the details and confirm before submission."
}

// SubmitContactForm submits the confirmed form.
func (c *Controller) SubmitContactForm(ctx context.Context, data room.ContactFormData) string {
	c.logger.Info("submitting contact form", "user_name", data.UserName, "user_email", data.UserEmail)

	if !c.sleep(ctx, c.cfg.ContactSubmitDelay) {
		return "Contact form submission canceled."
	}
	c.publish(ctx, room.TopicUIContactForm, room.ContactForm{Type: "contact_form_submit", Data: data})

	return "Contact form submitted successfully. A consultant will reach out soon."
}

// PublishUserDetails pushes captured identity fields to the frontend.
func (c *Controller) PublishUserDetails(ctx context.Context, name, email, phone string) string {
	c.mu.Lock()
	userID := c.userID
	c.mu.Unlock()

	c.publish(ctx, room.TopicUserDetails, room.UserDetails{
		UserName:  name,
		UserEmail: email,
		UserPhone: phone,
		UserID:    userID,
	})
	return "User information published."
}

// ScheduleMeeting sends a calendar invite for the requested slot.
func (c *Controller) ScheduleMeeting(ctx context.Context, recipientEmail, subject, description, location, startISO string, durationHours float64) string {
	c.logger.Info("scheduling meeting", "recipient", recipientEmail, "subject", subject)

	start, hadZone, err := parseISOTime(startISO)
	if err != nil {
		return "Invalid date format. Please use ISO format (YYYY-MM-DDTHH:MM:SS)."
	}
	if durationHours <= 0 {
		durationHours = 1.0
	}

	inv := mail.Invite{
		Recipient:     recipientEmail,
		Subject:       subject,
		Description:   description,
		Location:      location,
		StartTime:     start,
		DurationHours: durationHours,
		Floating:      !hadZone,
	}
	if err := c.mail.SendInvite(ctx, inv); err != nil {
		c.logger.Error("calendar invite failed", "error", err)
		return "Failed to send the meeting invite. Please check the logs."
	}

	return fmt.Sprintf("Meeting '%s' scheduled and invite sent to %s.", subject, recipientEmail)
}

// CalculateDistanceToDestination computes the driving route from the last
// successful location fix. It refuses to call out before a fix exists.
func (c *Controller) CalculateDistanceToDestination(ctx context.Context, destination string) string {
	c.mu.Lock()
	hasFix := c.locStatus == room.LocationStatusSuccess && c.locHasFix
	lat, lng := c.locLat, c.locLng
	c.mu.Unlock()

	if !hasFix {
		return "I don't have the user's location yet. Please call request_user_location first and ensure access was granted."
	}

	c.logger.Info("calculating distance", "destination", destination, "lat", lat, "lng", lng)

	route, err := c.maps.ComputeRoute(ctx, lat, lng, destination)
	if err != nil {
		c.logger.Error("distance calculation failed", "error", err)
		return "An error occurred while calculating the distance. Please try again."
	}
	if route == nil {
		return fmt.Sprintf("Could not geocode '%s'. Please check the address and try again.", destination)
	}
	if route.RouteError != "" {
		return fmt.Sprintf("The destination '%s' was found, but: %s.", route.FormattedAddress, route.RouteError)
	}

	c.logger.Info("route computed", "destination", route.FormattedAddress, "distance", route.DistanceText, "duration", route.DurationText)
	c.publish(ctx, room.TopicUILocationRequest, room.NewMapPolyline(route.Polyline))

	return fmt.Sprintf(
		"The destination '%s' is approximately %s away and will take around %s by car from your current location.",
		route.FormattedAddress, route.DistanceText, route.DurationText,
	)
}

// publish is the best-effort outbound path shared by the tool surface:
// failures are logged, never escalated to the caller.
func (c *Controller) publish(ctx context.Context, topic string, payload any) bool {
	if c.pub == nil {
		return false
	}
	if err := c.pub.Publish(ctx, topic, payload); err != nil {
		c.logger.Error("failed to publish data packet", "topic", topic, "error", err)
		return false
	}
	return true
}

func (c *Controller) sleep(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return true
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return true
	case <-ctx.Done():
		return false
	}
}

// parseISOTime accepts ISO-8601 timestamps with or without a zone offset.
// The second return reports whether the input carried zone information, so
// a zone-less ("floating") start can be localized downstream while an
// explicit offset, UTC included, is honored as given.
func parseISOTime(raw string) (time.Time, bool, error) {
	raw = strings.TrimSpace(raw)
	if t, err := time.Parse(time.RFC3339, raw); err == nil {
		return t, true, nil
	}
	t, err := time.Parse("2006-01-02T15:04:05", raw)
	return t, false, err
}
