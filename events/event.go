// Package events carries session and tenancy notifications over a gocloud pubsub topic
// so that other parts of the process, or other processes sharing a broker, can react
// to logins, business switches and translation reloads.
package events

import (
	"encoding/json"
	"time"
)

// Kind identifies what happened.
type Kind string

const (
	KindLogin              Kind = "session.login"
	KindLogout             Kind = "session.logout"
	KindBusinessSelected   Kind = "business.selected"
	KindBusinessCleared    Kind = "business.cleared"
	KindTranslationsLoaded Kind = "translations.reloaded"
)

// metadata keys attached to every message alongside the trace propagation headers.
const (
	metadataKind = "event_kind"
)

// Event is the payload published on the events topic.
type Event struct {
	Kind       Kind      `json:"kind"`
	Email      string    `json:"email,omitempty"`
	BusinessID int64     `json:"business_id,omitempty"`
	Language   string    `json:"language,omitempty"`
	At         time.Time `json:"at"`
}

// New stamps an event of the given kind with the current time.
func New(kind Kind) Event {
	return Event{Kind: kind, At: time.Now().UTC()}
}

func (e Event) marshal() ([]byte, error) {
	return json.Marshal(e)
}

func unmarshal(body []byte) (*Event, error) {
	var e Event
	if err := json.Unmarshal(body, &e); err != nil {
		return nil, err
	}
	return &e, nil
}
