package cards

import (
	"encoding/json"
	"strings"
)

// cardScanner incrementally extracts newline-delimited JSON card objects
// from streamed model text. Code fences and blank or non-JSON lines are
// skipped; a trailing partial line stays buffered until more text arrives.
type cardScanner struct {
	buf strings.Builder
}

func newCardScanner() *cardScanner {
	return &cardScanner{}
}

// Feed appends streamed text and returns every card completed by it.
func (s *cardScanner) Feed(text string) []Card {
	s.buf.WriteString(text)

	raw := s.buf.String()
	idx := strings.LastIndexByte(raw, '\n')
	if idx < 0 {
		return nil
	}

	complete := raw[:idx]
	s.buf.Reset()
	s.buf.WriteString(raw[idx+1:])

	return parseCardLines(complete)
}

// Flush parses whatever remains buffered once the stream ends.
func (s *cardScanner) Flush() []Card {
	remainder := s.buf.String()
	s.buf.Reset()
	return parseCardLines(remainder)
}

func parseCardLines(text string) []Card {
	var out []Card
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "```") {
			continue
		}
		if !strings.HasPrefix(line, "{") {
			continue
		}
		var card Card
		if err := json.Unmarshal([]byte(line), &card); err != nil {
			continue
		}
		if len(card) == 0 {
			continue
		}
		out = append(out, card)
	}
	return out
}
