// services/turnstile_client.go
package services

import (
	"encoding/json"
	"log"
	"net/http"
	"net/url"

	"crc-submission-proxy/utils"
)

const turnstileVerifyURL = "https://challenges.cloudflare.com/turnstile/v0/siteverify"

// TurnstileClient verifies Cloudflare Turnstile challenge tokens.
type TurnstileClient struct {
	Secret   string
	Endpoint string
	Client   *http.Client
}

func NewTurnstileClient(secret string) *TurnstileClient {
	return &TurnstileClient{
		Secret:   secret,
		Endpoint: turnstileVerifyURL,
		Client:   utils.HTTPClient,
	}
}

// Verify checks the challenge token for the given remote address. Fails
// closed: no configured secret or no token means false, without a network
// call. No retries — this sits in the synchronous request path and a failed
// attempt just means the submitter retries.
func (c *TurnstileClient) Verify(token, remoteIP string) bool {
	if c.Secret == "" {
		log.Println("❌ [TURNSTILE] secret not configured — rejecting request")
		return false
	}
	if token == "" {
		return false
	}

	resp, err := c.Client.PostForm(c.Endpoint, url.Values{
		"secret":   {c.Secret},
		"response": {token},
		"remoteip": {remoteIP},
	})
	if err != nil {
		log.Printf("❌ [TURNSTILE] verify call failed: %v", err)
		return false
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		log.Printf("❌ [TURNSTILE] verify returned %d", resp.StatusCode)
		return false
	}
	var out struct {
		Success bool `json:"success"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return false
	}
	return out.Success
}
