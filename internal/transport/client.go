package transport

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"net/http"
	"time"

	"github.com/google/uuid"

	"league-coordinator/internal/config"
	"league-coordinator/internal/protocol"
)

// Client is the blocking JSON-RPC/HTTP client: one POST per
// call, a configurable total timeout, and capped exponential backoff
// retries. Retries are idempotent-only — callers opt into retrying a
// send via SendIdempotent, which relies on the receiver's own
// duplicate-detection (registration's Issue idempotence, or the result
// table's UNIQUE(match_id)) rather than any dedup on the client side.
type Client struct {
	httpClient *http.Client
	retries    config.RetryConfig
}

func NewClient(timeout time.Duration, retries config.RetryConfig) *Client {
	return &Client{
		httpClient: &http.Client{Timeout: timeout},
		retries:    retries,
	}
}

// Send issues one JSON-RPC request and returns its response, with no
// retry. Connection failures and timeouts surface as TRANSPORT_TIMEOUT
// so the caller can decide whether to retry.
func (c *Client) Send(ctx context.Context, baseURL string, env protocol.Envelope, payload interface{}) (*protocol.Response, error) {
	if env.ConversationID == "" {
		env.ConversationID = uuid.New().String()
	}
	if env.Timestamp == "" {
		env.Timestamp = time.Now().UTC().Format(time.RFC3339Nano)
	}

	req, err := protocol.NewRequest(uuid.New().String(), env, payload)
	if err != nil {
		return nil, fmt.Errorf("transport client: build request: %w", err)
	}
	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("transport client: marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, baseURL+"/mcp", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("transport client: build http request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	httpResp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, protocol.NewCodedError(protocol.CodeTransportTimeout, "transport request failed").Wrap(err)
	}
	defer httpResp.Body.Close()

	respBody, err := io.ReadAll(httpResp.Body)
	if err != nil {
		return nil, protocol.NewCodedError(protocol.CodeTransportTimeout, "could not read response body").Wrap(err)
	}

	var resp protocol.Response
	if err := json.Unmarshal(respBody, &resp); err != nil {
		return nil, fmt.Errorf("transport client: malformed response body: %w", err)
	}
	return &resp, nil
}

// unmarshalResult decodes a successful response's result field into
// dest, used by every caller that needs the typed payload behind a
// *protocol.Response rather than the raw envelope exchange.
func unmarshalResult(resp *protocol.Response, dest interface{}) error {
	if len(resp.Result) == 0 {
		return nil
	}
	return json.Unmarshal(resp.Result, dest)
}

// SendIdempotent retries Send on transport-level failure (connection
// refused, timeout) up to retries.max_attempts, with capped exponential
// backoff. Protocol-level errors (a decoded JSON-RPC error object) are
// never retried — only the transport call itself failing is.
func (c *Client) SendIdempotent(ctx context.Context, baseURL string, env protocol.Envelope, payload interface{}) (*protocol.Response, error) {
	var lastErr error
	for attempt := 0; attempt < c.retries.MaxAttempts; attempt++ {
		if attempt > 0 {
			backoff := time.Duration(float64(c.retries.BackoffMS) * math.Pow(2, float64(attempt-1)) * float64(time.Millisecond))
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(backoff):
			}
		}
		resp, err := c.Send(ctx, baseURL, env, payload)
		if err == nil {
			return resp, nil
		}
		lastErr = err
	}
	return nil, fmt.Errorf("transport client: exhausted %d attempts: %w", c.retries.MaxAttempts, lastErr)
}
