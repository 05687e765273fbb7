// Package whatsapp is the HTTP adapter for the Z-API style WhatsApp gateway.
package whatsapp

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	pkgerrors "github.com/angelmondragon/wacart-backend/pkg/errors"
	"github.com/angelmondragon/wacart-backend/pkg/phone"
)

const (
	defaultBaseURL              = "https://api.z-api.io"
	defaultTimeout              = 15 * time.Second
	responseBodyReadLimit int64 = 1024
	clientTokenHeader           = "Client-Token"
)

var (
	errInstanceRequired = errors.New("whatsapp instance id is required")
	errTokenRequired    = errors.New("whatsapp token is required")
)

// Client sends messages through one provider instance.
type Client struct {
	httpClient  *http.Client
	baseURL     string
	instanceID  string
	token       string
	clientToken string
}

// Option configures optional client behavior.
type Option func(*Client)

// WithHTTPClient overrides the default HTTP client.
func WithHTTPClient(client *http.Client) Option {
	return func(c *Client) {
		if client != nil {
			c.httpClient = client
		}
	}
}

// WithBaseURL overrides the gateway base URL.
func WithBaseURL(baseURL string) Option {
	return func(c *Client) {
		if trimmed := strings.TrimSpace(baseURL); trimmed != "" {
			c.baseURL = trimmed
		}
	}
}

// WithClientToken sets the account-level security token header.
func WithClientToken(token string) Option {
	return func(c *Client) {
		c.clientToken = strings.TrimSpace(token)
	}
}

// WithTimeout replaces the HTTP client timeout.
func WithTimeout(timeout time.Duration) Option {
	return func(c *Client) {
		if timeout > 0 {
			c.httpClient = &http.Client{Timeout: timeout}
		}
	}
}

func NewClient(instanceID, token string, opts ...Option) (*Client, error) {
	instanceID = strings.TrimSpace(instanceID)
	token = strings.TrimSpace(token)
	if instanceID == "" {
		return nil, errInstanceRequired
	}
	if token == "" {
		return nil, errTokenRequired
	}

	client := &Client{
		httpClient: &http.Client{Timeout: defaultTimeout},
		baseURL:    defaultBaseURL,
		instanceID: instanceID,
		token:      token,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(client)
		}
	}
	return client, nil
}

type sendTextRequest struct {
	Phone   string `json:"phone"`
	Message string `json:"message"`
}

type sendImageRequest struct {
	Phone   string `json:"phone"`
	Image   string `json:"image"`
	Caption string `json:"caption,omitempty"`
}

type sendResponse struct {
	ZaapID    string `json:"zaapId"`
	MessageID string `json:"messageId"`
	ID        string `json:"id"`
}

// SendText delivers a text message to a national or international phone and
// returns the provider message id.
func (c *Client) SendText(ctx context.Context, to, message string) (string, error) {
	if strings.TrimSpace(message) == "" {
		return "", pkgerrors.New(pkgerrors.CodeValidation, "message is required")
	}
	recipient, err := c.recipient(to)
	if err != nil {
		return "", err
	}
	return c.send(ctx, "send-text", sendTextRequest{Phone: recipient, Message: message})
}

// SendImage delivers an image with an optional caption.
func (c *Client) SendImage(ctx context.Context, to, imageURL, caption string) (string, error) {
	if strings.TrimSpace(imageURL) == "" {
		return "", pkgerrors.New(pkgerrors.CodeValidation, "image url is required")
	}
	recipient, err := c.recipient(to)
	if err != nil {
		return "", err
	}
	return c.send(ctx, "send-image", sendImageRequest{Phone: recipient, Image: imageURL, Caption: caption})
}

func (c *Client) recipient(to string) (string, error) {
	national, err := phone.Normalize(to)
	if err != nil {
		return "", pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid recipient phone")
	}
	return phone.International(national), nil
}

func (c *Client) send(ctx context.Context, action string, body any) (string, error) {
	if c == nil {
		return "", pkgerrors.New(pkgerrors.CodeDependency, "whatsapp client not configured")
	}
	payload, err := json.Marshal(body)
	if err != nil {
		return "", pkgerrors.Wrap(pkgerrors.CodeInternal, err, "marshal "+action+" request")
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.buildURL(action), bytes.NewReader(payload))
	if err != nil {
		return "", pkgerrors.Wrap(pkgerrors.CodeDependency, err, "build "+action+" request")
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if c.clientToken != "" {
		httpReq.Header.Set(clientTokenHeader, c.clientToken)
	}

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return "", pkgerrors.Wrap(pkgerrors.CodeDependency, err, "execute "+action+" request")
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, responseBodyReadLimit))
		return "", pkgerrors.Wrap(pkgerrors.CodeDependency, fmt.Errorf("status %d: %s", resp.StatusCode, strings.TrimSpace(string(msg))), action+" request failed")
	}

	var apiResp sendResponse
	if err := json.NewDecoder(resp.Body).Decode(&apiResp); err != nil {
		return "", pkgerrors.Wrap(pkgerrors.CodeDependency, err, "decode "+action+" response")
	}
	id := firstNonEmpty(apiResp.MessageID, apiResp.ID, apiResp.ZaapID)
	if id == "" {
		return "", pkgerrors.New(pkgerrors.CodeDependency, action+" response missing message id")
	}
	return id, nil
}

func (c *Client) buildURL(action string) string {
	return fmt.Sprintf("%s/instances/%s/token/%s/%s",
		strings.TrimRight(c.baseURL, "/"),
		url.PathEscape(c.instanceID),
		url.PathEscape(c.token),
		action,
	)
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}
