package room

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Data-channel topics. Inbound topics are published by the frontend,
// outbound topics by the agent worker.
const (
	TopicUIContext    = "ui.context"
	TopicUserContext  = "user.context"
	TopicUserLocation = "user.location"
	TopicUserMessage  = "user.message"

	TopicUIFlashcard       = "ui.flashcard"
	TopicUIContactForm     = "ui.contact_form"
	TopicUILocationRequest = "ui.location_request"
	TopicUserDetails       = "user.details"
	TopicAgentMessage      = "agent.message"
)

type DecodeError struct {
	Code    string
	Message string
	Param   string
}

func (e *DecodeError) Error() string {
	if e == nil {
		return ""
	}
	if strings.TrimSpace(e.Param) == "" {
		return e.Message
	}
	return fmt.Sprintf("%s (%s)", e.Message, e.Param)
}

func badPacket(message, param string) *DecodeError {
	return &DecodeError{Code: "bad_packet", Message: message, Param: param}
}

// DataPacket is one topic-addressed message on the room data channel. The
// payload is kept raw; each handler decides how (and whether) to parse it.
type DataPacket struct {
	Topic   string
	Payload []byte
}

type envelope struct {
	Topic string          `json:"topic"`
	Data  json.RawMessage `json:"data"`
}

// DecodePacket decodes one wire frame into a DataPacket.
func DecodePacket(data []byte) (DataPacket, error) {
	var env envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return DataPacket{}, badPacket("invalid json frame", "")
	}
	topic := strings.TrimSpace(env.Topic)
	if topic == "" {
		return DataPacket{}, badPacket("missing topic", "topic")
	}
	return DataPacket{Topic: topic, Payload: env.Data}, nil
}

// EncodePacket builds the wire frame for an outbound payload.
func EncodePacket(topic string, payload any) ([]byte, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal payload for topic %q: %w", topic, err)
	}
	return json.Marshal(envelope{Topic: topic, Data: data})
}

// UIContextPayload mirrors the frontend's ui.context sync message.
type UIContextPayload struct {
	Viewport struct {
		Screen       string `json:"screen"`
		Theme        string `json:"theme"`
		Capabilities struct {
			MaxVisibleCards int `json:"maxVisibleCards"`
		} `json:"capabilities"`
	} `json:"viewport"`
	ActiveElements []string `json:"active_elements"`
}

// UserContextPayload mirrors the frontend's user.context sync message.
type UserContextPayload struct {
	UserInfo struct {
		UserID    string `json:"user_id"`
		UserName  string `json:"user_name"`
		UserEmail string `json:"user_email"`
		UserPhone string `json:"user_phone"`
	} `json:"user_info"`
}

// UserMessagePayload carries one user utterance into the conversation loop.
type UserMessagePayload struct {
	Text string `json:"text"`
}

// AgentMessage is the agent's reply to a user message.
type AgentMessage struct {
	Text string `json:"text"`
}

const (
	LocationStatusSuccess     = "success"
	LocationStatusDenied      = "denied"
	LocationStatusUnsupported = "unsupported"
)

// UserLocationPayload is the frontend's reply to a location request. On a
// non-success status only Error is meaningful.
type UserLocationPayload struct {
	Status    string  `json:"status"`
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
	Accuracy  float64 `json:"accuracy"`
	Error     string  `json:"error"`
}

// LocationRequest tells the frontend to fire the browser Geolocation API.
type LocationRequest struct {
	Type string `json:"type"`
}

// MapPolyline carries an encoded route polyline for the frontend map.
type MapPolyline struct {
	Type string `json:"type"`
	Data struct {
		Polyline string `json:"polyline"`
	} `json:"data"`
}

func NewMapPolyline(polyline string) MapPolyline {
	p := MapPolyline{Type: "map.polyline"}
	p.Data.Polyline = polyline
	return p
}

type ContactFormData struct {
	UserName       string `json:"user_name"`
	UserEmail      string `json:"user_email"`
	UserPhone      string `json:"user_phone"`
	ContactDetails string `json:"contact_details"`
}

// ContactForm is published for review (type "contact_form") and again on
// submission (type "contact_form_submit").
type ContactForm struct {
	Type string          `json:"type"`
	Data ContactFormData `json:"data"`
}

// UserDetails publishes captured user identity back to the frontend.
type UserDetails struct {
	UserName  string `json:"user_name"`
	UserEmail string `json:"user_email"`
	UserPhone string `json:"user_phone"`
	UserID    string `json:"user_id"`
}

// EndOfStream terminates one flashcard stream. CardCount lets the receiver
// verify it observed every index.
type EndOfStream struct {
	Type      string `json:"type"`
	StreamID  string `json:"stream_id"`
	CardCount int    `json:"card_count"`
}
