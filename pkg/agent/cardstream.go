package agent

import (
	"context"

	"github.com/google/uuid"

	"github.com/voxbridge/voxbridge/pkg/cards"
	"github.com/voxbridge/voxbridge/pkg/room"
)

// publishCardStream fans the generated card sequence out to the frontend.
// Every card carries the same stream_id and a strictly increasing
// card_index; the end-of-stream marker carries the final count so the
// receiver can verify it saw the whole stream. A receiver that never gets
// the marker must treat the stream as interrupted.
func (c *Controller) publishCardStream(ctx context.Context, userInput, dbResults, agentResponse string) {
	if c.cards == nil {
		return
	}

	streamID := uuid.NewString()

	stream, err := c.cards.GenerateStream(ctx, cards.Request{
		UserInput:     userInput,
		DBResults:     dbResults,
		AgentResponse: agentResponse,
	})
	if err != nil {
		c.logger.Error("card stream generation failed to start", "stream_id", streamID, "error", err)
		return
	}

	cardIndex := 0
	for payload := range stream {
		payload["stream_id"] = streamID
		payload["card_index"] = cardIndex

		if c.publish(ctx, room.TopicUIFlashcard, payload) {
			title, _ := payload["title"].(string)
			c.logger.Info("card published", "title", title, "stream_id", streamID, "card_index", cardIndex)
			c.recordCard(ctx, payload, cardIndex)
		}

		cardIndex++
	}

	marker := room.EndOfStream{
		Type:      "end_of_stream",
		StreamID:  streamID,
		CardCount: cardIndex,
	}
	if c.publish(ctx, room.TopicUIFlashcard, marker) {
		c.logger.Info("end-of-stream marker sent", "stream_id", streamID, "card_count", cardIndex)
	}
}

func (c *Controller) recordCard(ctx context.Context, payload cards.Card, displayOrder int) {
	if c.recorder == nil {
		return
	}
	cardType, _ := payload["type"].(string)
	if cardType == "" {
		cardType = "flashcard"
	}
	if err := c.recorder.RecordCardShown(ctx, cardType, payload, displayOrder); err != nil {
		c.logger.Warn("card record failed", "error", err)
	}
}
