// Package cards generates the streamed UI flashcards that accompany spoken
// answers.
package cards

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"google.golang.org/genai"
)

// Card is one UI card payload. Beyond a title the fields are free-form; the
// frontend renders whatever display fields the generator emits.
type Card map[string]any

// UIContext is the normalized viewport state forwarded from the frontend.
type UIContext struct {
	Screen          string
	Theme           string
	MaxVisibleCards int
	ActiveElements  []string
}

// Request carries the conversation snapshot the cards are generated from.
type Request struct {
	UserInput     string
	DBResults     string
	AgentResponse string
}

const cardSystemPrompt = `You generate UI flashcards for a company-website voice assistant. Given the
visitor's question, the knowledge-base results, and the assistant's spoken
answer, emit the cards that best support the answer visually.

Output one JSON object per line and nothing else. Each object must have a
"title" field plus any display fields ("body", "icon", "cta", "image_hint").
Do not repeat content already visible on screen. Never emit more cards than
the maximum the viewport can show.`

type Generator struct {
	client *genai.Client
	model  string
	logger *slog.Logger

	mu sync.Mutex
	ui UIContext
}

func NewGenerator(client *genai.Client, model string, logger *slog.Logger) *Generator {
	if model == "" {
		model = "gemini-2.0-flash"
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Generator{
		client: client,
		model:  model,
		logger: logger,
		ui:     UIContext{Screen: "desktop", Theme: "light", MaxVisibleCards: 4},
	}
}

// UpdateContext replaces the viewport context used by subsequent streams.
func (g *Generator) UpdateContext(ctx context.Context, ui UIContext) error {
	g.mu.Lock()
	g.ui = ui
	g.mu.Unlock()
	return nil
}

// GenerateStream starts card generation and returns a lazy, finite card
// sequence. The channel closes when the model output is exhausted or the
// stream fails; the sequence is not restartable.
func (g *Generator) GenerateStream(ctx context.Context, req Request) (<-chan Card, error) {
	if g == nil || g.client == nil {
		return nil, fmt.Errorf("card generator is not configured")
	}

	g.mu.Lock()
	ui := g.ui
	g.mu.Unlock()

	prompt := buildCardPrompt(req, ui)
	contents := []*genai.Content{
		genai.NewContentFromText(prompt, genai.RoleUser),
	}
	config := &genai.GenerateContentConfig{
		SystemInstruction: &genai.Content{
			Parts: []*genai.Part{{Text: cardSystemPrompt}},
		},
	}

	out := make(chan Card)
	go func() {
		defer close(out)

		scanner := newCardScanner()
		emit := func(cardList []Card) bool {
			for _, card := range cardList {
				select {
				case out <- card:
				case <-ctx.Done():
					return false
				}
			}
			return true
		}

		for resp, err := range g.client.Models.GenerateContentStream(ctx, g.model, contents, config) {
			if err != nil {
				g.logger.Error("card stream failed", "error", err)
				return
			}
			if !emit(scanner.Feed(resp.Text())) {
				return
			}
		}
		emit(scanner.Flush())
	}()

	return out, nil
}

func buildCardPrompt(req Request, ui UIContext) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Viewport: screen=%s theme=%s max_visible_cards=%d\n", ui.Screen, ui.Theme, ui.MaxVisibleCards)
	if len(ui.ActiveElements) > 0 {
		fmt.Fprintf(&b, "Already visible on screen: %s\n", strings.Join(ui.ActiveElements, ", "))
	}
	fmt.Fprintf(&b, "\nVisitor question:\n%s\n", req.UserInput)
	if req.DBResults != "" {
		fmt.Fprintf(&b, "\nKnowledge-base results:\n%s\n", req.DBResults)
	}
	fmt.Fprintf(&b, "\nSpoken answer:\n%s\n", req.AgentResponse)
	return b.String()
}
