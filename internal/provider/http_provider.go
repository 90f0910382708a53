package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
)

// HTTPProvider sends mail through a SendGrid-compatible JSON API.
type HTTPProvider struct {
	apiURL    string
	apiKey    string
	fromEmail string
	fromName  string
	client    *http.Client
}

func NewHTTPProvider(apiURL, apiKey, fromEmail, fromName string) *HTTPProvider {
	return &HTTPProvider{
		apiURL:    apiURL,
		apiKey:    apiKey,
		fromEmail: fromEmail,
		fromName:  fromName,
		client:    http.DefaultClient,
	}
}

type mailPayload struct {
	Personalizations []personalization `json:"personalizations"`
	From             address           `json:"from"`
	Subject          string            `json:"subject"`
	Content          []content         `json:"content"`
}

type personalization struct {
	To []address `json:"to"`
}

type address struct {
	Email string `json:"email"`
	Name  string `json:"name,omitempty"`
}

type content struct {
	Type  string `json:"type"`
	Value string `json:"value"`
}

func (p *HTTPProvider) Send(ctx context.Context, to, subject, html string) error {
	payload := mailPayload{
		Personalizations: []personalization{{
			To: []address{{Email: to}},
		}},
		From:    address{Email: p.fromEmail, Name: p.fromName},
		Subject: subject,
		Content: []content{{Type: "text/html", Value: html}},
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal mail payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.apiURL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to create provider request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+p.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := p.client.Do(req)
	if err != nil {
		// Transport failures and timeouts are retryable.
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 300 {
		return nil
	}

	respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
	perr := &Error{
		StatusCode: resp.StatusCode,
		Message:    string(respBody),
	}
	// Throttling and server errors are worth retrying; any other 4xx
	// means the provider rejected the message outright.
	if resp.StatusCode != http.StatusTooManyRequests && resp.StatusCode < 500 {
		perr.Permanent = true
	}
	return perr
}

var _ Sender = (*HTTPProvider)(nil)
