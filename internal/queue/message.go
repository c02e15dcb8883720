package queue

import (
	"encoding/json"
	"time"
)

const (
	EventRunFinished = "run.finished"
	messageVersion   = 1
)

// Message is the payload sent to downstream queue consumers after a run.
type Message struct {
	Type       string `json:"type"`
	RunID      string `json:"runId"`
	SessionID  string `json:"sessionId,omitempty"`
	Workflow   string `json:"workflow"`
	OK         bool   `json:"ok"`
	ErrorCode  string `json:"errorCode,omitempty"`
	RequestID  string `json:"requestId,omitempty"`
	FinishedAt string `json:"finishedAt"`
	Version    int    `json:"version"`
}

// EncodeMessage returns the JSON representation of a message.
func EncodeMessage(msg Message) ([]byte, error) {
	return json.Marshal(msg)
}

// DecodeMessage parses a JSON payload into a Message.
func DecodeMessage(payload []byte) (Message, error) {
	var msg Message
	if err := json.Unmarshal(payload, &msg); err != nil {
		return Message{}, err
	}
	return msg, nil
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339)
}
