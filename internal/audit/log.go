// Package audit implements the append-only protocol message log: one
// document per JSON-RPC frame, written to a dedicated MongoDB
// collection. Append-only writes, no updates, no deletes.
package audit

import (
	"context"
	"encoding/json"
	"log"
	"time"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"

	"league-coordinator/internal/protocol"
)

// Direction distinguishes an inbound request from the matching outbound
// response.
type Direction string

const (
	DirectionRequest  Direction = "request"
	DirectionResponse Direction = "response"
)

// Record is one audit log line. auth_token fields are redacted before a
// record is ever built, never after.
type Record struct {
	LogID          string          `bson:"log_id"`
	Timestamp      time.Time       `bson:"timestamp"`
	Direction      Direction       `bson:"direction"`
	Source         string          `bson:"source"`
	Destination    string          `bson:"destination"`
	ConversationID string          `bson:"conversation_id"`
	Message        json.RawMessage `bson:"message"`
}

// Log is the process-wide audit log, initialized at startup and passed
// by reference.
type Log struct {
	collection *mongo.Collection
	logger     *log.Logger
}

func New(db *mongo.Database, logger *log.Logger) *Log {
	return &Log{collection: db.Collection("audit_log"), logger: logger}
}

// Append writes one audit record. Every validated inbound and every
// outbound frame is logged before the corresponding state mutation
// commits — callers must invoke Append ahead of their own
// transaction, not after.
func (l *Log) Append(ctx context.Context, direction Direction, source, destination, conversationID string, frame interface{}) error {
	raw, err := json.Marshal(redact(frame))
	if err != nil {
		return err
	}
	rec := Record{
		LogID:          uuid.New().String(),
		Timestamp:      time.Now().UTC(),
		Direction:      direction,
		Source:         source,
		Destination:    destination,
		ConversationID: conversationID,
		Message:        raw,
	}
	if _, err := l.collection.InsertOne(ctx, rec); err != nil {
		l.logger.Printf("audit append failed (conversation_id=%s): %v", conversationID, err)
		return err
	}
	return nil
}

// Count returns the total number of recorded frames. Audit log size
// equals the count of validated JSON-RPC frames, so this doubles as a
// consistency check.
func (l *Log) Count(ctx context.Context) (int64, error) {
	return l.collection.CountDocuments(ctx, bson.M{})
}

// redact copies a request/response frame, blanking auth_token so it is
// never persisted in the audit trail.
func redact(frame interface{}) interface{} {
	b, err := json.Marshal(frame)
	if err != nil {
		return frame
	}
	var generic map[string]interface{}
	if err := json.Unmarshal(b, &generic); err != nil {
		return frame
	}
	redactField(generic, "auth_token")
	if params, ok := generic["params"].(map[string]interface{}); ok {
		if env, ok := params["envelope"].(map[string]interface{}); ok {
			redactField(env, "auth_token")
		}
	}
	return generic
}

func redactField(m map[string]interface{}, field string) {
	if _, ok := m[field]; ok {
		m[field] = "[redacted]"
	}
}

// Source derives the "source"/"destination" label for an envelope's
// sender, falling back to the message type when the sender is absent
// (malformed frames that failed validation before sender could be read).
func Source(env *protocol.Envelope) string {
	if env == nil {
		return "unknown"
	}
	if env.Sender == "" {
		return env.MessageType
	}
	return env.Sender
}
