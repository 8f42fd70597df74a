package transport

import (
	"context"
	"encoding/json"
	"io"
	"log"
	"net/http"

	"github.com/gin-gonic/gin"

	"league-coordinator/internal/audit"
	"league-coordinator/internal/protocol"
)

// HandlerFunc answers one message_type. It returns the response payload
// (marshaled into the JSON-RPC result) or a *protocol.CodedError — any
// other error is a programmer mistake and degrades to CodeInternalError
// at the response-building step, never echoing its text to the peer.
type HandlerFunc func(ctx context.Context, req *protocol.Request, env *protocol.Envelope) (interface{}, error)

// Dispatcher routes a decoded envelope to the HandlerFunc registered
// for its message_type and wraps the whole exchange with the audit
// trail. One Dispatcher is built per role process; the League
// Manager's carries a real *audit.Log, Referee/Player processes pass
// nil since they hold no league-visible state to audit against.
type Dispatcher struct {
	Role     string // envelope sender string this process answers as, e.g. "league_manager"
	Handlers map[string]HandlerFunc
	Resolver protocol.IDResolver
	Audit    *audit.Log
	Logger   *log.Logger
}

// ServeMCP is the gin.HandlerFunc bound to POST /mcp. It runs the
// full envelope decode, audits the inbound frame ahead of whatever
// mutation the handler commits, dispatches, audits the outbound frame,
// and writes the JSON-RPC response. Malformed bytes are the one case
// that gets a non-200 HTTP status.
func (d *Dispatcher) ServeMCP(c *gin.Context) {
	ctx := c.Request.Context()

	body, err := io.ReadAll(c.Request.Body)
	if err != nil {
		c.JSON(http.StatusBadRequest, protocol.NewErrorResponse(nil, nil, protocol.NewCodedError(protocol.CodeParseError, "could not read request body")))
		return
	}

	req, env, decodeErr := protocol.Decode(body, d.Resolver)
	if env != nil {
		c.Set("sender", env.Sender)
		c.Set("message_type", env.MessageType)
		c.Set("conversation_id", env.ConversationID)
	}
	if decodeErr != nil {
		var id json.RawMessage
		if req != nil {
			id = req.ID
		}
		resp := protocol.NewErrorResponse(id, env, decodeErr)
		if decodeErr.Code == protocol.CodeParseError {
			d.auditRaw(ctx, body)
			c.JSON(http.StatusBadRequest, resp)
			return
		}
		d.auditFrame(ctx, audit.DirectionRequest, env, req)
		d.auditResponse(ctx, env, resp)
		c.JSON(http.StatusOK, resp)
		return
	}

	d.auditFrame(ctx, audit.DirectionRequest, env, req)

	handler, ok := d.Handlers[env.MessageType]
	if !ok {
		resp := protocol.NewErrorResponse(req.ID, env, protocol.NewCodedError(protocol.CodeUnknownMessageType, "this role does not handle this message_type"))
		d.auditResponse(ctx, env, resp)
		c.JSON(http.StatusOK, resp)
		return
	}

	result, handlerErr := handler(ctx, req, env)
	var resp *protocol.Response
	if handlerErr != nil {
		resp = protocol.NewErrorResponse(req.ID, env, handlerErr)
		if coded, ok := handlerErr.(*protocol.CodedError); !ok || coded.Code == protocol.CodeInternalError {
			d.Logger.Printf("handler error for %s (conversation_id=%s): %v", env.MessageType, env.ConversationID, handlerErr)
		}
	} else {
		resp, err = protocol.NewResultResponse(req.ID, result)
		if err != nil {
			resp = protocol.NewErrorResponse(req.ID, env, protocol.NewCodedError(protocol.CodeInternalError, "could not encode response"))
		}
	}

	d.auditResponse(ctx, env, resp)
	c.JSON(http.StatusOK, resp)
}

func (d *Dispatcher) auditFrame(ctx context.Context, direction audit.Direction, env *protocol.Envelope, frame interface{}) {
	if d.Audit == nil {
		return
	}
	source, destination := audit.Source(env), d.Role
	if direction == audit.DirectionResponse {
		source, destination = d.Role, audit.Source(env)
	}
	convID := ""
	if env != nil {
		convID = env.ConversationID
	}
	if err := d.Audit.Append(ctx, direction, source, destination, convID, frame); err != nil {
		d.Logger.Printf("audit append failed: %v", err)
	}
}

func (d *Dispatcher) auditResponse(ctx context.Context, env *protocol.Envelope, resp *protocol.Response) {
	d.auditFrame(ctx, audit.DirectionResponse, env, resp)
}

// auditRaw logs a body that failed to even parse as JSON-RPC, so
// non-JSON POSTs still leave an audit record.
func (d *Dispatcher) auditRaw(ctx context.Context, body []byte) {
	if d.Audit == nil {
		return
	}
	if err := d.Audit.Append(ctx, audit.DirectionRequest, "unknown", d.Role, "", json.RawMessage(body)); err != nil {
		d.Logger.Printf("audit append failed for malformed body: %v", err)
	}
}
