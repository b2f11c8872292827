/**
 * @description
 * This package provides a client for the Sui full-node JSON-RPC API. It
 * encapsulates request construction, authentication-free posting, and response
 * parsing for the event-query endpoint the reconciliation loop polls.
 *
 * @dependencies
 * - bytes, context, encoding/json, fmt, net/http, time: Standard Go libraries.
 */
package suiclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// Client is a client for the Sui JSON-RPC API.
type Client struct {
	BaseURL    string
	HTTPClient *http.Client
}

// NewClient creates a new Sui JSON-RPC client.
func NewClient(baseURL string) *Client {
	return &Client{
		BaseURL: baseURL,
		HTTPClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// MoveModuleFilter selects events emitted by one module of one package.
type MoveModuleFilter struct {
	Package string `json:"package"`
	Module  string `json:"module"`
}

// EventFilter is the query filter shape accepted by suix_queryEvents.
type EventFilter struct {
	MoveModule MoveModuleFilter `json:"MoveModule"`
}

// EventID is the position of an event in the chain's event stream.
type EventID struct {
	TxDigest string `json:"txDigest"`
	EventSeq string `json:"eventSeq"`
}

// Event is one raw event as returned by the node. ParsedJSON is kept opaque
// here; decoding it into a typed payment record is the parser's job, so an
// unexpected payload cannot fail the transport layer.
type Event struct {
	ID         EventID         `json:"id"`
	Type       string          `json:"type"`
	ParsedJSON json.RawMessage `json:"parsedJson"`
}

// EventPage is one page of the event stream plus the cursor to resume from.
type EventPage struct {
	Data        []Event  `json:"data"`
	NextCursor  *EventID `json:"nextCursor"`
	HasNextPage bool     `json:"hasNextPage"`
}

type rpcRequest struct {
	JSONRPC string `json:"jsonrpc"`
	ID      uint64 `json:"id"`
	Method  string `json:"method"`
	Params  []any  `json:"params"`
}

type rpcError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func (e *rpcError) Error() string {
	return fmt.Sprintf("sui rpc error %d: %s", e.Code, e.Message)
}

type queryEventsResponse struct {
	Result *EventPage `json:"result"`
	Error  *rpcError  `json:"error"`
}

// QueryEvents fetches one page of events matching the filter, starting after
// the given cursor (nil means from the beginning of the stream). Ascending
// order (descending=false) is the only safe mode for reconciliation; the
// descending flag exists for manual inspection.
func (c *Client) QueryEvents(ctx context.Context, filter EventFilter, cursor *EventID, limit int, descending bool) (*EventPage, error) {
	var cursorParam any
	if cursor != nil {
		cursorParam = cursor
	}

	reqPayload := rpcRequest{
		JSONRPC: "2.0",
		ID:      1,
		Method:  "suix_queryEvents",
		Params:  []any{filter, cursorParam, limit, descending},
	}

	body, err := json.Marshal(reqPayload)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal query request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, "POST", c.BaseURL, bytes.NewBuffer(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create query request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to execute query request: %w", err)
	}
	defer resp.Body.Close()

	bodyBytes, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read query response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("sui node returned status %d", resp.StatusCode)
	}

	var decoded queryEventsResponse
	if err := json.Unmarshal(bodyBytes, &decoded); err != nil {
		return nil, fmt.Errorf("failed to decode query response: %w", err)
	}
	if decoded.Error != nil {
		return nil, decoded.Error
	}
	if decoded.Result == nil {
		return nil, fmt.Errorf("sui node response missing result")
	}

	return decoded.Result, nil
}
