package providers

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
)

const defaultTelephonyTimeout = 15 * time.Second

// TelephonyOptions configure the voice carrier client.
type TelephonyOptions struct {
	AccountSID string
	AuthToken  string
	BaseURL    string
	Timeout    time.Duration
}

// Telephony talks to the voice carrier's REST API: originating outbound
// calls and pulling call recordings.
type Telephony struct {
	accountSID string
	authToken  string
	baseURL    string
	httpClient *http.Client
}

func NewTelephony(opts TelephonyOptions) (*Telephony, error) {
	if opts.AccountSID == "" || opts.AuthToken == "" {
		return nil, errors.New("telephony: account sid and auth token required")
	}
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = defaultTelephonyTimeout
	}
	return &Telephony{
		accountSID: opts.AccountSID,
		authToken:  opts.AuthToken,
		baseURL:    strings.TrimRight(opts.BaseURL, "/"),
		httpClient: &http.Client{Timeout: timeout},
	}, nil
}

// OutboundCall asks the carrier to originate a call. StatusCallback receives
// the provider webhooks as the call progresses.
type OutboundCall struct {
	From           string
	To             string
	StatusCallback string
}

// StartOutboundCall places the call and returns the provider's call SID.
func (t *Telephony) StartOutboundCall(ctx context.Context, call OutboundCall) (string, error) {
	if t == nil {
		return "", errors.New("telephony: not configured")
	}
	form := url.Values{}
	form.Set("From", call.From)
	form.Set("To", call.To)
	if call.StatusCallback != "" {
		form.Set("StatusCallback", call.StatusCallback)
	}

	endpoint := fmt.Sprintf("%s/Accounts/%s/Calls.json", t.baseURL, t.accountSID)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.SetBasicAuth(t.accountSID, t.authToken)

	resp, err := t.httpClient.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return "", fmt.Errorf("telephony: originate call: status %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	var payload struct {
		SID string `json:"sid"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return "", fmt.Errorf("telephony: decode response: %w", err)
	}
	if payload.SID == "" {
		return "", errors.New("telephony: response missing call sid")
	}
	return payload.SID, nil
}

// FetchRecording streams a call recording from the carrier. The caller owns
// closing the reader.
func (t *Telephony) FetchRecording(ctx context.Context, recordingURL string) (io.ReadCloser, error) {
	if t == nil {
		return nil, errors.New("telephony: not configured")
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, recordingURL, nil)
	if err != nil {
		return nil, err
	}
	req.SetBasicAuth(t.accountSID, t.authToken)

	resp, err := t.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusOK {
		resp.Body.Close()
		return nil, fmt.Errorf("telephony: fetch recording: status %d", resp.StatusCode)
	}
	return resp.Body, nil
}
