package push

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// Message is one push payload addressed to a device token.
type Message struct {
	Token string
	Title string
	Body  string
	Data  map[string]string
}

// SendResult reports the outcome of a single delivery attempt. Failures are a
// value, not an error: the monitor decides what to do with them.
type SendResult struct {
	Delivered bool
	Reason    string
}

// Notifier delivers push payloads to a gateway.
type Notifier interface {
	Send(ctx context.Context, msg Message) SendResult
}

// Options parameterise the gateway client.
type Options struct {
	BaseURL   string
	AuthToken string
	Timeout   time.Duration
}

// GatewayNotifier talks to an Expo-shaped push gateway: one POST per message,
// per-message accept/reject status in the response body.
type GatewayNotifier struct {
	opts    Options
	client  *http.Client
	baseURL string
	logger  zerolog.Logger
}

// NewGatewayNotifier constructs a gateway client.
func NewGatewayNotifier(opts Options, logger zerolog.Logger) *GatewayNotifier {
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}

	baseURL := strings.TrimRight(opts.BaseURL, "/")
	if baseURL == "" {
		baseURL = "https://exp.host/--/api/v2/push/send"
	}

	return &GatewayNotifier{
		opts:    opts,
		client:  &http.Client{Timeout: timeout},
		baseURL: baseURL,
		logger:  logger.With().Str("component", "push_gateway").Logger(),
	}
}

type gatewayRequest struct {
	To       string            `json:"to"`
	Title    string            `json:"title"`
	Body     string            `json:"body"`
	Data     map[string]string `json:"data,omitempty"`
	Priority string            `json:"priority"`
	Sound    string            `json:"sound"`
}

type gatewayResponse struct {
	Data []struct {
		Status  string `json:"status"`
		Message string `json:"message"`
	} `json:"data"`
}

// Send performs a single delivery attempt. Non-2xx responses and per-message
// gateway errors both come back as a failed SendResult; nothing panics and no
// retry happens here — a failed send is retried naturally on the next monitor
// cycle.
func (n *GatewayNotifier) Send(ctx context.Context, msg Message) SendResult {
	payload := gatewayRequest{
		To:       msg.Token,
		Title:    msg.Title,
		Body:     msg.Body,
		Data:     msg.Data,
		Priority: "high",
		Sound:    "default",
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return SendResult{Reason: fmt.Sprintf("marshal payload: %v", err)}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.baseURL, bytes.NewReader(body))
	if err != nil {
		return SendResult{Reason: fmt.Sprintf("create request: %v", err)}
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	if n.opts.AuthToken != "" {
		req.Header.Set("Authorization", "Bearer "+n.opts.AuthToken)
	}

	resp, err := n.client.Do(req)
	if err != nil {
		n.logger.Warn().Err(err).Msg("push request failed")
		return SendResult{Reason: fmt.Sprintf("send request: %v", err)}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		n.logger.Warn().Int("status", resp.StatusCode).Msg("push gateway rejected request")
		return SendResult{Reason: fmt.Sprintf("gateway status %d", resp.StatusCode)}
	}

	var decoded gatewayResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err == nil {
		for _, ticket := range decoded.Data {
			if ticket.Status != "" && ticket.Status != "ok" {
				n.logger.Warn().Str("status", ticket.Status).Str("message", ticket.Message).Msg("push rejected by gateway")
				return SendResult{Reason: fmt.Sprintf("gateway ticket %s: %s", ticket.Status, ticket.Message)}
			}
		}
	}

	return SendResult{Delivered: true}
}

var _ Notifier = (*GatewayNotifier)(nil)
