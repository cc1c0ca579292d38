// Package notify delivers smile status messages to a websocket endpoint.
package notify

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"strconv"
	"time"
)

// EventName is the event field of every smile status notification.
const EventName = "smile_status"

// Notification is the JSON payload pushed on a smile transition.
type Notification struct {
	Event     string `json:"event"`
	Timestamp string `json:"timestamp"`
	Detected  bool   `json:"detected"`
	Image     string `json:"image,omitempty"`
}

// NewSmileStatus builds a notification for a transition at monotonic time at.
// jpeg may be nil, in which case no image is attached.
func NewSmileStatus(detected bool, at time.Duration, jpeg []byte) Notification {
	n := Notification{
		Event:     EventName,
		Timestamp: FormatTimestamp(at),
		Detected:  detected,
	}
	if len(jpeg) > 0 {
		n.Image = EncodeImage(jpeg)
	}
	return n
}

// FormatTimestamp renders a monotonic offset as decimal seconds.
func FormatTimestamp(at time.Duration) string {
	return strconv.FormatFloat(at.Seconds(), 'f', -1, 64)
}

// EncodeImage returns the standard base64 encoding of JPEG bytes.
func EncodeImage(jpeg []byte) string {
	return base64.StdEncoding.EncodeToString(jpeg)
}

// DecodeImage reverses EncodeImage.
func DecodeImage(s string) ([]byte, error) {
	return base64.StdEncoding.DecodeString(s)
}

var errEmptyMessage = errors.New("empty message")

// Message is one queued item: either a structured notification or raw text.
type Message struct {
	Notification *Notification
	Text         string
}

// Structured wraps a notification as a Message.
func Structured(n Notification) Message {
	return Message{Notification: &n}
}

// Text wraps a raw text payload as a Message.
func Text(s string) Message {
	return Message{Text: s}
}

// Encode serializes the message for the wire. Notifications are sent as
// JSON text frames, raw text as-is.
func (m Message) Encode() ([]byte, error) {
	if m.Notification != nil {
		return json.Marshal(m.Notification)
	}
	if m.Text == "" {
		return nil, errEmptyMessage
	}
	return []byte(m.Text), nil
}
