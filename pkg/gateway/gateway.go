// Package gateway talks to the remote record gateway, a single HTTP endpoint
// that serves the ticket sheet snapshot on GET and accepts discriminated
// action payloads on POST. All writes except upload are unacknowledged by the
// remote side, so callers treat their errors as advisory.
package gateway

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/ubitech/deskmate/pkg/errors"
	"github.com/ubitech/deskmate/pkg/logging"
	"github.com/ubitech/deskmate/pkg/ticket"
)

const defaultTimeout = 30 * time.Second

// Actions accepted by the gateway's POST endpoint.
const (
	ActionCreate      = "create"
	ActionUpdateLog   = "updateLog"
	ActionCloseTicket = "closeTicket"
	ActionLogAudit    = "logAudit"
	ActionUpload      = "upload"
)

// Client is an HTTP client for the record gateway.
type Client struct {
	url        string
	httpClient *http.Client
	logger     *logging.Logger
	now        func() time.Time
}

// Option configures a Client.
type Option func(*Client)

// WithTimeout sets the HTTP timeout for gateway requests.
func WithTimeout(timeout time.Duration) Option {
	return func(c *Client) {
		c.httpClient.Timeout = timeout
	}
}

// WithHTTPClient replaces the underlying HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		c.httpClient = hc
	}
}

// WithLogger attaches a structured logger.
func WithLogger(logger *logging.Logger) Option {
	return func(c *Client) {
		c.logger = logger
	}
}

// NewClient creates a gateway client for the given endpoint URL.
func NewClient(endpoint string, opts ...Option) *Client {
	c := &Client{
		url:        endpoint,
		httpClient: &http.Client{Timeout: defaultTimeout},
		logger:     logging.NewNopLogger(),
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Snapshot fetches the full ticket sheet. A cache-busting timestamp query
// defeats intermediary caching on the gateway's edge.
func (c *Client) Snapshot(ctx context.Context) ([]ticket.Ticket, error) {
	u, err := url.Parse(c.url)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeGatewayRead, "invalid gateway url")
	}
	q := u.Query()
	q.Set("t", fmt.Sprintf("%d", c.now().UnixMilli()))
	u.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeGatewayRead, "creating snapshot request")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		recordRead("error")
		return nil, errors.Wrap(err, errors.ErrCodeGatewayRead, "fetching snapshot").WithRetryable(true)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		recordRead("error")
		return nil, errors.New(errors.ErrCodeGatewayRead, fmt.Sprintf("snapshot returned HTTP %d", resp.StatusCode)).
			WithRetryable(resp.StatusCode >= 500)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		recordRead("error")
		return nil, errors.Wrap(err, errors.ErrCodeGatewayRead, "reading snapshot body")
	}

	tickets, err := ticket.DecodeSnapshot(body)
	if err != nil {
		recordRead("error")
		return nil, errors.Wrap(err, errors.ErrCodeGatewayDecode, "decoding snapshot")
	}

	recordRead("ok")
	c.logger.Debug(logging.CategoryGateway, "snapshot", "fetched ticket snapshot", map[string]any{
		"count": len(tickets),
	})
	return tickets, nil
}

// createPayload flattens the ticket fields alongside the action discriminator
// and the row-layout version the fields were built against.
type createPayload struct {
	ticket.Ticket
	Action        string `json:"action"`
	SchemaVersion int    `json:"schemaVersion"`
}

// Create submits a new ticket row. The gateway does not acknowledge the
// write; the returned error reflects transport failures only.
func (c *Client) Create(ctx context.Context, t ticket.Ticket) error {
	return c.post(ctx, ActionCreate, createPayload{
		Ticket:        t,
		Action:        ActionCreate,
		SchemaVersion: ticket.SchemaVersion,
	})
}

// AppendLog appends an already formatted log entry to a ticket's
// troubleshooting log.
func (c *Client) AppendLog(ctx context.Context, ticketID, formattedEntry string) error {
	return c.post(ctx, ActionUpdateLog, map[string]string{
		"action":       ActionUpdateLog,
		"ticketId":     ticketID,
		"textToAppend": formattedEntry,
	})
}

// CloseTicket marks a ticket closed with the given reason.
func (c *Client) CloseTicket(ctx context.Context, ticketID, reason string) error {
	return c.post(ctx, ActionCloseTicket, map[string]string{
		"action":   ActionCloseTicket,
		"ticketId": ticketID,
		"reason":   reason,
	})
}

// LogAudit records a compliance audit entry.
func (c *Client) LogAudit(ctx context.Context, activity, userText, agentText string) error {
	return c.post(ctx, ActionLogAudit, map[string]string{
		"action":      ActionLogAudit,
		"activity":    activity,
		"userMessage": userText,
		"aiResponse":  agentText,
	})
}

// UploadResult is the gateway's response to an upload action.
type UploadResult struct {
	Success bool   `json:"success"`
	URL     string `json:"url"`
	Error   string `json:"error,omitempty"`
}

// Upload stores a file behind the gateway and returns its shareable URL.
// Unlike the other writes this one is acknowledged.
func (c *Client) Upload(ctx context.Context, fileName, mimeType string, data []byte) (string, error) {
	payload := map[string]string{
		"action":   ActionUpload,
		"fileName": fileName,
		"mimeType": mimeType,
		"fileData": base64.StdEncoding.EncodeToString(data),
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return "", errors.Wrap(err, errors.ErrCodeGatewayUpload, "marshaling upload")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(body))
	if err != nil {
		return "", errors.Wrap(err, errors.ErrCodeGatewayUpload, "creating upload request")
	}
	req.Header.Set("Content-Type", "text/plain;charset=utf-8")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", errors.Wrap(err, errors.ErrCodeGatewayUpload, "uploading file").WithRetryable(true)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", errors.Wrap(err, errors.ErrCodeGatewayUpload, "reading upload response")
	}

	var result UploadResult
	if err := json.Unmarshal(raw, &result); err != nil {
		return "", errors.Wrap(err, errors.ErrCodeGatewayUpload, "gateway returned non-JSON upload response")
	}

	if !result.Success || result.URL == "" {
		msg := result.Error
		if msg == "" {
			msg = "gateway did not return a file URL"
		}
		return "", errors.New(errors.ErrCodeGatewayUpload, msg)
	}

	c.logger.Info(logging.CategoryGateway, "upload", "file uploaded", map[string]any{
		"fileName": fileName,
		"url":      result.URL,
	})
	return result.URL, nil
}

// post serializes and sends a write action. The gateway replies opaquely to
// these actions, so only transport-level failures surface as errors.
func (c *Client) post(ctx context.Context, action string, payload any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return errors.Wrap(err, errors.ErrCodeGatewayWrite, "marshaling "+action)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(body))
	if err != nil {
		return errors.Wrap(err, errors.ErrCodeGatewayWrite, "creating "+action+" request")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		recordWriteFailure(action)
		c.logger.Warn(logging.CategoryGateway, "write_failed", action+" write failed", map[string]any{
			"error": err.Error(),
		})
		return errors.Wrap(err, errors.ErrCodeGatewayWrite, action+" write failed").WithRetryable(true)
	}
	// Responses to write actions carry no usable acknowledgment
	io.Copy(io.Discard, resp.Body)
	resp.Body.Close()

	c.logger.Debug(logging.CategoryGateway, "write", action+" dispatched", nil)
	return nil
}
