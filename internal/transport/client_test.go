package transport

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"league-coordinator/internal/config"
	"league-coordinator/internal/protocol"
)

func testEnvelope(messageType string) protocol.Envelope {
	return protocol.Envelope{
		Protocol:    protocol.ProtocolVersion,
		MessageType: messageType,
		Sender:      "player:p1",
	}
}

func TestClientSendRoundTripsResult(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req protocol.Request
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Fatalf("server decode: %v", err)
		}
		resp, _ := protocol.NewResultResponse(req.ID, MatchAssignmentAckPayload{Accepted: true})
		json.NewEncoder(w).Encode(resp)
	}))
	defer srv.Close()

	client := NewClient(time.Second, config.RetryConfig{MaxAttempts: 1, BackoffMS: 10})
	resp, err := client.Send(context.Background(), srv.URL, testEnvelope(protocol.MsgMatchAssignment), MatchAssignmentPayload{MatchID: "m1"})
	if err != nil {
		t.Fatalf("send: %v", err)
	}
	var ack MatchAssignmentAckPayload
	if err := unmarshalResult(resp, &ack); err != nil {
		t.Fatalf("unmarshalResult: %v", err)
	}
	if !ack.Accepted {
		t.Error("expected accepted=true")
	}
}

func TestClientSendIdempotentRetriesOnTransportFailure(t *testing.T) {
	attempts := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts++
		if attempts < 3 {
			// simulate a connection-level failure by hanging up without a response.
			hj, ok := w.(http.Hijacker)
			if !ok {
				t.Fatal("expected hijackable ResponseWriter")
			}
			conn, _, _ := hj.Hijack()
			conn.Close()
			return
		}
		var req protocol.Request
		json.NewDecoder(r.Body).Decode(&req)
		resp, _ := protocol.NewResultResponse(req.ID, struct{}{})
		json.NewEncoder(w).Encode(resp)
	}))
	defer srv.Close()

	client := NewClient(time.Second, config.RetryConfig{MaxAttempts: 5, BackoffMS: 1})
	resp, err := client.SendIdempotent(context.Background(), srv.URL, testEnvelope(protocol.MsgAgentReadyRequest), nil)
	if err != nil {
		t.Fatalf("send idempotent: %v", err)
	}
	if resp.Error != nil {
		t.Fatalf("unexpected error: %+v", resp.Error)
	}
	if attempts < 3 {
		t.Errorf("expected at least 3 attempts, got %d", attempts)
	}
}

func TestClientSendIdempotentExhaustsRetries(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hj, _ := w.(http.Hijacker)
		conn, _, _ := hj.Hijack()
		conn.Close()
	}))
	defer srv.Close()

	client := NewClient(time.Second, config.RetryConfig{MaxAttempts: 2, BackoffMS: 1})
	_, err := client.SendIdempotent(context.Background(), srv.URL, testEnvelope(protocol.MsgAgentReadyRequest), nil)
	if err == nil {
		t.Fatal("expected error after exhausting retries")
	}
}
