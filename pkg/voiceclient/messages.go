package voiceclient

import (
	"encoding/json"
	"errors"
)

type ControlType string

const (
	ControlStartSession   ControlType = "start_session"
	ControlUserTranscript ControlType = "user_transcript"
	// Ends the user's turn: the server commits buffered audio and responds.
	ControlStopSpeaking ControlType = "stop_speaking"
	ControlEndSession   ControlType = "end_session"
)

type controlMessage struct {
	Type ControlType `json:"type"`
	Text string      `json:"text,omitempty"`
}

type EventType string

const (
	EventAudioFormat EventType = "audio_format"
	EventTextDelta   EventType = "ai_text_delta"
	// Binary audio from the server. Not a JSON message type.
	EventAudio EventType = "audio"
)

// A message from the server.
// Only the fields belonging to Type are set.
type Event struct {
	Type EventType `json:"type"`

	// audio_format
	SampleRate int `json:"sample_rate,omitempty"`
	Channels   int `json:"channels,omitempty"`

	// ai_text_delta
	Text    string `json:"text,omitempty"`
	IsFinal bool   `json:"is_final,omitempty"`

	Audio []byte `json:"-"`
}

type AudioFormat struct {
	SampleRate int
	Channels   int
}

var (
	errMissingType = errors.New("server message has no type")
)

func decodeEvent(data []byte) (Event, error) {
	var event Event
	if err := json.Unmarshal(data, &event); err != nil {
		return Event{}, err
	}
	if event.Type == "" {
		return Event{}, errMissingType
	}
	return event, nil
}
