package agent

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/voxbridge/voxbridge/pkg/cards"
	"github.com/voxbridge/voxbridge/pkg/room"
)

type recordedCard struct {
	cardType string
	payload  map[string]any
	order    int
}

type fakeRecorder struct {
	mu    sync.Mutex
	users []string
	cards []recordedCard
}

func (f *fakeRecorder) RecordUser(ctx context.Context, userID, name, email string) error {
	f.mu.Lock()
	f.users = append(f.users, userID)
	f.mu.Unlock()
	return nil
}

func (f *fakeRecorder) RecordCardShown(ctx context.Context, cardType string, payload map[string]any, displayOrder int) error {
	f.mu.Lock()
	f.cards = append(f.cards, recordedCard{cardType: cardType, payload: payload, order: displayOrder})
	f.mu.Unlock()
	return nil
}

func TestPublishUIStreamEmitsIndexedCardsAndMarker(t *testing.T) {
	c, pub, _ := testController(t)
	rec := &fakeRecorder{}
	c.recorder = rec
	c.cards = &fakeCards{stream: []cards.Card{
		{"title": "Voice Agents", "type": "service"},
		{"title": "Case Study"},
		{"title": "Contact Us"},
	}}

	got := c.PublishUIStream(context.Background(), "what do you build", "We build voice agents.")
	if got != "UI stream published." {
		t.Fatalf("ack = %q", got)
	}

	var streamID string
	for i := 0; i < 3; i++ {
		sent := pub.wait(t, time.Second)
		if sent.topic != room.TopicUIFlashcard {
			t.Fatalf("card %d published to %q", i, sent.topic)
		}
		card, ok := sent.payload.(cards.Card)
		if !ok {
			t.Fatalf("card %d payload = %#v", i, sent.payload)
		}
		if idx, _ := card["card_index"].(int); idx != i {
			t.Fatalf("card_index = %v, want %d", card["card_index"], i)
		}
		id, _ := card["stream_id"].(string)
		if id == "" {
			t.Fatalf("card %d missing stream_id", i)
		}
		if streamID == "" {
			streamID = id
		} else if id != streamID {
			t.Fatalf("stream_id changed mid-stream: %q vs %q", id, streamID)
		}
	}

	sent := pub.wait(t, time.Second)
	marker, ok := sent.payload.(room.EndOfStream)
	if !ok {
		t.Fatalf("final payload = %#v, want end-of-stream marker", sent.payload)
	}
	if marker.Type != "end_of_stream" || marker.StreamID != streamID || marker.CardCount != 3 {
		t.Fatalf("marker = %+v, want type=end_of_stream stream_id=%s card_count=3", marker, streamID)
	}

	rec.mu.Lock()
	defer rec.mu.Unlock()
	if len(rec.cards) != 3 {
		t.Fatalf("recorded %d cards, want 3", len(rec.cards))
	}
	if rec.cards[0].cardType != "service" {
		t.Fatalf("typed card recorded as %q", rec.cards[0].cardType)
	}
	if rec.cards[1].cardType != "flashcard" {
		t.Fatalf("untyped card recorded as %q, want flashcard", rec.cards[1].cardType)
	}
}

func TestPublishUIStreamEmptyStream(t *testing.T) {
	c, pub, _ := testController(t)
	c.cards = &fakeCards{}

	c.PublishUIStream(context.Background(), "q", "a")

	sent := pub.wait(t, time.Second)
	marker, ok := sent.payload.(room.EndOfStream)
	if !ok || marker.CardCount != 0 {
		t.Fatalf("empty stream marker = %#v, want card_count=0", sent.payload)
	}
}

func TestPublishUIStreamForwardsCachedResults(t *testing.T) {
	c, pub, _ := testController(t)
	fc := &fakeCards{stream: []cards.Card{{"title": "x"}}}
	c.cards = fc

	c.mu.Lock()
	c.dbResults = "### Result 1\n\ncached"
	c.mu.Unlock()

	c.PublishUIStream(context.Background(), "q", "a")
	pub.wait(t, time.Second)
	pub.wait(t, time.Second)

	fc.mu.Lock()
	defer fc.mu.Unlock()
	if fc.lastReq.DBResults != "### Result 1\n\ncached" {
		t.Fatalf("card request db results = %q", fc.lastReq.DBResults)
	}
	if fc.lastReq.UserInput != "q" || fc.lastReq.AgentResponse != "a" {
		t.Fatalf("card request = %+v", fc.lastReq)
	}
}
