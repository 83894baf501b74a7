package carrier

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/Cypherspark/sms-autoresponder/internal/core"
)

const DefaultTwilioBaseURL = "https://api.twilio.com"

type TwilioConfig struct {
	AccountSID string
	AuthToken  string
	BaseURL    string       // defaults to DefaultTwilioBaseURL
	HTTPClient *http.Client // defaults to a client with a 10s timeout
}

// Twilio sends messages through the Twilio Programmable Messaging REST API.
type Twilio struct {
	sid, token string
	endpoint   string
	client     *http.Client
	logger     *zap.Logger
}

func NewTwilio(cfg TwilioConfig, logger *zap.Logger) *Twilio {
	base := strings.TrimRight(cfg.BaseURL, "/")
	if base == "" {
		base = DefaultTwilioBaseURL
	}
	client := cfg.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: 10 * time.Second}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Twilio{
		sid:      cfg.AccountSID,
		token:    cfg.AuthToken,
		endpoint: fmt.Sprintf("%s/2010-04-01/Accounts/%s/Messages.json", base, url.PathEscape(cfg.AccountSID)),
		client:   client,
		logger:   logger.With(zap.String("carrier", "twilio")),
	}
}

// APIError is a non-2xx answer from the Twilio API.
type APIError struct {
	Status  int
	Code    int
	Message string
}

func (e *APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("twilio api status %d", e.Status)
	}
	if e.Code != 0 {
		return fmt.Sprintf("twilio api status %d: %s (code %d)", e.Status, e.Message, e.Code)
	}
	return fmt.Sprintf("twilio api status %d: %s", e.Status, e.Message)
}

type twilioMessage struct {
	SID    string `json:"sid"`
	Status string `json:"status"`
}

type twilioError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func (t *Twilio) Send(ctx context.Context, to, from, body string) (string, error) {
	form := url.Values{}
	form.Set("To", to)
	form.Set("From", from)
	form.Set("Body", body)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, t.endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return "", t.fail(fmt.Errorf("build request: %w", err))
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Accept", "application/json")
	req.SetBasicAuth(t.sid, t.token)

	resp, err := t.client.Do(req)
	if err != nil {
		return "", t.fail(err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	if err != nil {
		return "", t.fail(fmt.Errorf("read response (status %d): %w", resp.StatusCode, err))
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		apiErr := &APIError{Status: resp.StatusCode}
		var te twilioError
		if json.Unmarshal(raw, &te) == nil {
			apiErr.Code, apiErr.Message = te.Code, te.Message
		}
		t.logger.Warn("twilio rejected message",
			zap.Int("status_code", resp.StatusCode), zap.Int("twilio_code", apiErr.Code), zap.String("to", to))
		return "", t.fail(apiErr)
	}

	var msg twilioMessage
	if err := json.Unmarshal(raw, &msg); err != nil {
		// Accepted but unreadable; the message is on its way without an id.
		t.logger.Warn("twilio accepted message, response not parsed", zap.Error(err))
		return "", nil
	}
	t.logger.Debug("twilio accepted message", zap.String("sid", msg.SID), zap.String("status", msg.Status))
	return msg.SID, nil
}

func (t *Twilio) fail(err error) error {
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.logger.Warn("twilio request failed", zap.Error(err))
	}
	return &core.TransportError{Carrier: "twilio", Err: err}
}
