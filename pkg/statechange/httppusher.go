package statechange

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/coremail/engine/pkg/ids"
)

// HTTPPusher delivers broker payloads as JSON POSTs: coalesced
// StateChanges in the same wire shape the event-source "state" event
// uses — {"@type":"StateChange","changed":{<accountId>:{<TypeState>:
// <state>}}} — and the PushVerification registration handshake.
type HTTPPusher struct {
	Client *http.Client
}

// NewHTTPPusher returns a Pusher posting with http.DefaultClient.
func NewHTTPPusher() *HTTPPusher {
	return &HTTPPusher{Client: http.DefaultClient}
}

type wirePayload struct {
	Type    string                       `json:"@type"`
	Changed map[string]map[string]string `json:"changed"`
}

func encodeWire(sc StateChange) ([]byte, error) {
	changed := make(map[string]map[string]string, len(sc))
	for account, byType := range sc {
		inner := make(map[string]string, len(byType))
		for t, cid := range byType {
			inner[t.String()] = ids.Exact(cid).String()
		}
		changed[fmt.Sprintf("%d", account)] = inner
	}
	return json.Marshal(wirePayload{Type: "StateChange", Changed: changed})
}

// Push POSTs the coalesced window to url as a JSON body.
func (p *HTTPPusher) Push(ctx context.Context, url string, sc StateChange) error {
	body, err := encodeWire(sc)
	if err != nil {
		return fmt.Errorf("statechange: encode push payload: %w", err)
	}
	return p.post(ctx, url, body)
}

type wireVerification struct {
	Type               string `json:"@type"`
	PushSubscriptionID string `json:"pushSubscriptionId"`
	VerificationCode   string `json:"verificationCode"`
}

// PushVerification POSTs the registration handshake to url.
func (p *HTTPPusher) PushVerification(ctx context.Context, url string, v Verification) error {
	body, err := json.Marshal(wireVerification{
		Type:               "PushVerification",
		PushSubscriptionID: fmt.Sprintf("%d", v.SubscriptionID),
		VerificationCode:   v.Code,
	})
	if err != nil {
		return fmt.Errorf("statechange: encode verification payload: %w", err)
	}
	return p.post(ctx, url, body)
}

func (p *HTTPPusher) post(ctx context.Context, url string, body []byte) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("statechange: build push request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := p.Client.Do(req)
	if err != nil {
		return fmt.Errorf("statechange: push to %s: %w", url, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return fmt.Errorf("statechange: push to %s: status %d", url, resp.StatusCode)
	}
	return nil
}
