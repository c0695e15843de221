package controller

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/piwi3910/SlabNest/internal/model"
)

// MessageType names a request or a notification.
type MessageType string

// Requests.
const (
	StartNesting MessageType = "START_NESTING"
	StopNesting  MessageType = "STOP_NESTING"
	AnalyzeSheet MessageType = "ANALYZE_SHEET"
)

// Notifications.
const (
	Progress MessageType = "PROGRESS"
	Complete MessageType = "COMPLETE"
	Stopped  MessageType = "STOPPED"
	Error    MessageType = "ERROR"
)

// Message is a request envelope. Payloads stay encoded until the controller
// decodes them, so callers never share memory with a run.
type Message struct {
	Type    MessageType     `json:"type"`
	Payload json.RawMessage `json:"payload,omitempty"`

	reply chan<- Ack
}

// Ack is the immediate answer to a submitted request. RunID names the run
// that was started, stopped or analyzed; Payload holds the analysis of an
// ANALYZE_SHEET request.
type Ack struct {
	RunID   string
	Payload any
	Err     error
}

func (m Message) ack(a Ack) {
	if m.reply != nil {
		m.reply <- a
	}
}

// AnalyzePayload is the payload of an ANALYZE_SHEET request.
type AnalyzePayload struct {
	Sheet model.Sheet `json:"sheet"`
}

// ErrorPayload is the payload of an ERROR notification.
type ErrorPayload struct {
	Kind    string `json:"kind"`
	Message string `json:"message"`
}

// Notification is emitted by the controller. Payload holds a percentage for
// PROGRESS, a model.NestResult or model.SheetAnalysis for COMPLETE, an
// ErrorPayload for ERROR and nothing for STOPPED. Err carries the original
// error of an ERROR notification for errors.Is matching.
type Notification struct {
	Type    MessageType `json:"type"`
	RunID   string      `json:"runId,omitempty"`
	Payload any         `json:"payload,omitempty"`
	Err     error       `json:"-"`
}

// NewStartMessage encodes a START_NESTING request.
func NewStartMessage(job model.NestJob) (Message, error) {
	return newMessage(StartNesting, job)
}

// NewAnalyzeMessage encodes an ANALYZE_SHEET request.
func NewAnalyzeMessage(sheet model.Sheet) (Message, error) {
	return newMessage(AnalyzeSheet, AnalyzePayload{Sheet: sheet})
}

// NewStopMessage returns a STOP_NESTING request.
func NewStopMessage() Message {
	return Message{Type: StopNesting}
}

func newMessage(t MessageType, payload any) (Message, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return Message{}, fmt.Errorf("failed to encode %s payload: %w", t, err)
	}
	return Message{Type: t, Payload: raw}, nil
}

func errorNotification(runID string, err error) Notification {
	return Notification{
		Type:    Error,
		RunID:   runID,
		Payload: ErrorPayload{Kind: ErrorKind(err), Message: err.Error()},
		Err:     err,
	}
}

// ErrorKind classifies an error by the sentinel it wraps.
func ErrorKind(err error) string {
	switch {
	case errors.Is(err, model.ErrProtocol):
		return "protocol"
	case errors.Is(err, model.ErrBusy):
		return "busy"
	case errors.Is(err, model.ErrConfiguration):
		return "configuration"
	case errors.Is(err, model.ErrGeometry):
		return "geometry"
	case errors.Is(err, model.ErrPlacement):
		return "placement"
	}
	return "internal"
}
