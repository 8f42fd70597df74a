package transport

import (
	"bytes"
	"context"
	"encoding/json"
	"log"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"

	"league-coordinator/internal/protocol"
)

func discardLogger() *log.Logger {
	return log.New(bytes.NewBuffer(nil), "", 0)
}

func adminStatusEnvelope() protocol.Envelope {
	return protocol.Envelope{
		Protocol:       protocol.ProtocolVersion,
		MessageType:    protocol.MsgAdminGetStatusRequest,
		Sender:         "league_manager",
		Timestamp:      "2026-01-01T00:00:00Z",
		ConversationID: uuid.New().String(),
	}
}

func postEnvelope(t *testing.T, d *protocol.Envelope, payload interface{}) []byte {
	t.Helper()
	req, err := protocol.NewRequest(uuid.New().String(), *d, payload)
	if err != nil {
		t.Fatalf("NewRequest: %v", err)
	}
	body, err := json.Marshal(req)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	return body
}

func TestServeMCPDispatchesKnownMessageType(t *testing.T) {
	env := adminStatusEnvelope()
	called := false
	d := &Dispatcher{
		Role: "league_manager",
		Handlers: map[string]HandlerFunc{
			protocol.MsgAdminGetStatusRequest: func(ctx context.Context, req *protocol.Request, e *protocol.Envelope) (interface{}, error) {
				called = true
				return StatusCountersPayload{LeagueStatus: "ACTIVE"}, nil
			},
		},
		Resolver: PermissiveResolver{},
		Logger:   discardLogger(),
	}

	body := postEnvelope(t, &env, nil)
	rec := httptest.NewRecorder()
	c, _ := ginTestContext(rec, body)
	d.ServeMCP(c)

	if !called {
		t.Fatal("expected handler to be invoked")
	}
	var resp protocol.Response
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("response unmarshal: %v", err)
	}
	if resp.Error != nil {
		t.Fatalf("unexpected error response: %+v", resp.Error)
	}
	var out StatusCountersPayload
	if err := json.Unmarshal(resp.Result, &out); err != nil {
		t.Fatalf("result unmarshal: %v", err)
	}
	if out.LeagueStatus != "ACTIVE" {
		t.Errorf("league_status = %s", out.LeagueStatus)
	}
}

func TestServeMCPUnknownMessageTypeReturnsCodedError(t *testing.T) {
	env := adminStatusEnvelope()
	d := &Dispatcher{
		Role:     "league_manager",
		Handlers: map[string]HandlerFunc{},
		Resolver: PermissiveResolver{},
		Logger:   discardLogger(),
	}

	body := postEnvelope(t, &env, nil)
	rec := httptest.NewRecorder()
	c, _ := ginTestContext(rec, body)
	d.ServeMCP(c)

	var resp protocol.Response
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("response unmarshal: %v", err)
	}
	if resp.Error == nil || resp.Error.Code != protocol.CodeUnknownMessageType {
		t.Fatalf("expected CodeUnknownMessageType, got %+v", resp.Error)
	}
}

func TestServeMCPMalformedBodyReturns400(t *testing.T) {
	d := &Dispatcher{
		Role:     "league_manager",
		Handlers: map[string]HandlerFunc{},
		Resolver: PermissiveResolver{},
		Logger:   discardLogger(),
	}

	rec := httptest.NewRecorder()
	c, _ := ginTestContext(rec, []byte("not json"))
	d.ServeMCP(c)

	if rec.Code != 400 {
		t.Errorf("expected HTTP 400 for malformed body, got %d", rec.Code)
	}
}

func TestServeMCPHandlerErrorIsCoded(t *testing.T) {
	env := adminStatusEnvelope()
	d := &Dispatcher{
		Role: "league_manager",
		Handlers: map[string]HandlerFunc{
			protocol.MsgAdminGetStatusRequest: func(ctx context.Context, req *protocol.Request, e *protocol.Envelope) (interface{}, error) {
				return nil, protocol.NewCodedError(protocol.CodeValidationError, "bad input")
			},
		},
		Resolver: PermissiveResolver{},
		Logger:   discardLogger(),
	}

	body := postEnvelope(t, &env, nil)
	rec := httptest.NewRecorder()
	c, _ := ginTestContext(rec, body)
	d.ServeMCP(c)

	var resp protocol.Response
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("response unmarshal: %v", err)
	}
	if resp.Error == nil || resp.Error.Code != protocol.CodeValidationError {
		t.Fatalf("expected CodeValidationError, got %+v", resp.Error)
	}
}
