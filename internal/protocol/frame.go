package protocol

import "encoding/json"

// Request is the JSON-RPC 2.0 frame every role sends to POST /mcp.
type Request struct {
	JSONRPC string          `json:"jsonrpc"`
	Method  string          `json:"method"`
	Params  Params          `json:"params"`
	ID      json.RawMessage `json:"id"`
}

// Params is the JSON-RPC params object: the envelope plus an optional
// message-type-specific payload.
type Params struct {
	Envelope Envelope        `json:"envelope"`
	Payload  json.RawMessage `json:"payload,omitempty"`
}

// Response mirrors the request id.
type Response struct {
	JSONRPC string          `json:"jsonrpc"`
	Result  json.RawMessage `json:"result,omitempty"`
	Error   *RPCError       `json:"error,omitempty"`
	ID      json.RawMessage `json:"id"`
}

// RPCError is the JSON-RPC error object. code/message/data map directly
// from a CodedError at the transport boundary.
type RPCError struct {
	Code    int                    `json:"code"`
	Message string                 `json:"message"`
	Data    map[string]interface{} `json:"data,omitempty"`
}

// NewRequest builds an outbound request frame with the caller-supplied id.
func NewRequest(id string, env Envelope, payload interface{}) (*Request, error) {
	var raw json.RawMessage
	if payload != nil {
		b, err := json.Marshal(payload)
		if err != nil {
			return nil, err
		}
		raw = b
	}
	idBytes, err := json.Marshal(id)
	if err != nil {
		return nil, err
	}
	return &Request{
		JSONRPC: "2.0",
		Method:  Method,
		Params:  Params{Envelope: env, Payload: raw},
		ID:      idBytes,
	}, nil
}

// NewResultResponse builds a successful response mirroring id.
func NewResultResponse(id json.RawMessage, result interface{}) (*Response, error) {
	var raw json.RawMessage
	if result != nil {
		b, err := json.Marshal(result)
		if err != nil {
			return nil, err
		}
		raw = b
	}
	return &Response{JSONRPC: "2.0", Result: raw, ID: id}, nil
}

// NewErrorResponse builds an error response from a CodedError, falling
// back to CodeInternalError for any other error type — unknown causes
// never echo their detail to peers.
func NewErrorResponse(id json.RawMessage, env *Envelope, err error) *Response {
	var coded *CodedError
	if ce, ok := err.(*CodedError); ok {
		coded = ce
	} else {
		coded = NewCodedError(CodeInternalError, "internal error")
	}
	return &Response{
		JSONRPC: "2.0",
		Error: &RPCError{
			Code:    coded.Code,
			Message: coded.Message,
			Data:    envelopeData(env, coded.Data),
		},
		ID: id,
	}
}

// DecodePayload unmarshals the request payload into dest.
func (r *Request) DecodePayload(dest interface{}) error {
	if len(r.Params.Payload) == 0 {
		return nil
	}
	return json.Unmarshal(r.Params.Payload, dest)
}
