package protocol

import (
	"encoding/json"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"
)

// senderPattern matches "league_manager" or "referee:<id>" / "player:<id>".
var senderPattern = regexp.MustCompile(`^league_manager$|^(referee|player):[A-Za-z0-9_-]+$`)

// IDResolver checks whether a non-conversation ID field refers to a
// registered entity rather than requiring UUID v4 shape. Callers that
// only need the envelope validated independent of persistence may pass
// nil, in which case step 7 accepts only UUID v4 values for these fields.
type IDResolver interface {
	KnownID(field, value string) bool
}

// Decode runs the full envelope validation order against a
// raw HTTP request body. It returns as much as it could parse alongside
// the first violation encountered, so callers can still audit-log a
// partially-decoded frame.
func Decode(body []byte, resolver IDResolver) (*Request, *Envelope, *CodedError) {
	// Step 1: JSON parse.
	var req Request
	if err := json.Unmarshal(body, &req); err != nil {
		return nil, nil, NewCodedError(CodeParseError, "malformed JSON-RPC body").Wrap(err)
	}

	// Step 2: jsonrpc/method.
	if req.JSONRPC != "2.0" || req.Method != Method {
		return &req, nil, NewCodedError(CodeInvalidRequest, "jsonrpc must be \"2.0\" and method must be \"league.handle\"")
	}

	env := req.Params.Envelope

	// Step 3: protocol version.
	if env.Protocol != ProtocolVersion {
		return &req, &env, NewCodedError(CodeProtocolVersionMismatch, "unsupported envelope protocol version").
			WithData(map[string]interface{}{"protocol": env.Protocol})
	}

	// Step 4: required base fields.
	if missing := firstMissingBaseField(&env); missing != "" {
		return &req, &env, NewCodedError(CodeMissingRequiredField, "missing required envelope field").
			WithData(map[string]interface{}{"field": missing})
	}

	// Step 5: sender format.
	if !senderPattern.MatchString(env.Sender) {
		return &req, &env, NewCodedError(CodeInvalidSenderFormat, "sender does not match required format").
			WithData(map[string]interface{}{"sender": env.Sender})
	}

	// Step 6: timestamp.
	if _, err := ParseTimestamp(env.Timestamp); err != nil {
		return &req, &env, NewCodedError(CodeInvalidTimestamp, "timestamp must be ISO-8601 UTC with explicit zero offset").Wrap(err)
	}

	// Step 7: conversation_id (always UUID v4) and other ID fields.
	if !isUUIDv4(env.ConversationID) {
		return &req, &env, NewCodedError(CodeInvalidUUID, "conversation_id must be a UUID v4").
			WithData(map[string]interface{}{"field": "conversation_id"})
	}
	for _, f := range []struct{ name, value string }{
		{"league_id", env.LeagueID},
		{"round_id", env.RoundID},
		{"match_id", env.MatchID},
	} {
		if f.value == "" {
			continue
		}
		if isUUIDv4(f.value) {
			continue
		}
		if resolver != nil && resolver.KnownID(f.name, f.value) {
			continue
		}
		return &req, &env, NewCodedError(CodeInvalidUUID, "field is neither a UUID v4 nor a registered id").
			WithData(map[string]interface{}{"field": f.name})
	}

	// Step 8: known message type.
	if !IsKnownMessageType(env.MessageType) {
		return &req, &env, NewCodedError(CodeUnknownMessageType, "unrecognized message_type").
			WithData(map[string]interface{}{"message_type": env.MessageType})
	}

	// Step 9: contextual fields for this message type.
	for _, field := range RequiredContextFields(env.MessageType) {
		if env.Field(field) == "" {
			return &req, &env, NewCodedError(CodeMissingRequiredField, "missing contextual field required by message_type").
				WithData(map[string]interface{}{"field": field, "message_type": env.MessageType})
		}
	}

	return &req, &env, nil
}

func firstMissingBaseField(e *Envelope) string {
	switch {
	case e.Protocol == "":
		return "protocol"
	case e.MessageType == "":
		return "message_type"
	case e.Sender == "":
		return "sender"
	case e.Timestamp == "":
		return "timestamp"
	case e.ConversationID == "":
		return "conversation_id"
	default:
		return ""
	}
}

// ParseTimestamp accepts only ISO-8601 with an explicit UTC zero offset
// ("Z" or "+00:00"); any other offset is rejected rather than
// normalized to UTC.
func ParseTimestamp(s string) (time.Time, error) {
	if !strings.HasSuffix(s, "Z") && !strings.HasSuffix(s, "+00:00") {
		return time.Time{}, errInvalidTimestampOffset
	}
	return time.Parse(time.RFC3339Nano, s)
}

var errInvalidTimestampOffset = &timestampOffsetError{}

type timestampOffsetError struct{}

func (*timestampOffsetError) Error() string {
	return "timestamp must carry an explicit UTC zero offset (Z or +00:00)"
}

func isUUIDv4(s string) bool {
	id, err := uuid.Parse(s)
	if err != nil {
		return false
	}
	return id.Version() == 4
}
