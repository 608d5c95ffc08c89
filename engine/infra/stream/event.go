// Package stream carries content change events over a Redis stream consumed by
// a consumer group.
package stream

import (
	"fmt"
	"strconv"
	"time"
)

type Action string

const (
	ActionCreated Action = "created"
	ActionUpdated Action = "updated"
	ActionDeleted Action = "deleted"
)

const (
	CollectionRules = "rules"
	noVersion       = "none"
)

// ChangeEvent announces a mutation of one document in the content store.
type ChangeEvent struct {
	Collection     string
	DocumentID     string
	Action         Action
	Status         string
	Version        string
	Timestamp      int64
	IdempotencyKey string
}

// NewChangeEvent stamps the event time and idempotency key.
func NewChangeEvent(collection, documentID string, action Action, version string, now time.Time) ChangeEvent {
	ev := ChangeEvent{
		Collection: collection,
		DocumentID: documentID,
		Action:     action,
		Version:    version,
		Timestamp:  now.UnixMilli(),
	}
	ev.IdempotencyKey = ev.Key()
	return ev
}

// Key returns collection:document_id:action:version, with "none" for a missing version.
func (e ChangeEvent) Key() string {
	version := e.Version
	if version == "" {
		version = noVersion
	}
	return fmt.Sprintf("%s:%s:%s:%s", e.Collection, e.DocumentID, e.Action, version)
}

// Values encodes the event as stream entry fields.
func (e ChangeEvent) Values() map[string]any {
	key := e.IdempotencyKey
	if key == "" {
		key = e.Key()
	}
	version := e.Version
	if version == "" {
		version = noVersion
	}
	values := map[string]any{
		"collection":      e.Collection,
		"document_id":     e.DocumentID,
		"action":          string(e.Action),
		"version":         version,
		"timestamp":       strconv.FormatInt(e.Timestamp, 10),
		"idempotency_key": key,
	}
	if e.Status != "" {
		values["status"] = e.Status
	}
	return values
}

// ParseChangeEvent decodes stream entry fields. Unknown or missing fields stay empty.
func ParseChangeEvent(values map[string]any) ChangeEvent {
	ev := ChangeEvent{
		Collection:     field(values, "collection"),
		DocumentID:     field(values, "document_id"),
		Action:         Action(field(values, "action")),
		Status:         field(values, "status"),
		Version:        field(values, "version"),
		IdempotencyKey: field(values, "idempotency_key"),
	}
	if ts, err := strconv.ParseInt(field(values, "timestamp"), 10, 64); err == nil {
		ev.Timestamp = ts
	}
	return ev
}

func field(values map[string]any, key string) string {
	switch v := values[key].(type) {
	case string:
		return v
	case nil:
		return ""
	default:
		return fmt.Sprint(v)
	}
}
