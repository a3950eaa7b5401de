// services/discord.go
package services

import (
	"bytes"
	"encoding/json"
	"log"
	"net/http"

	"crc-submission-proxy/utils"
)

// Embed colors used across notifications.
const (
	ColorSubmitted    = 0xf0ad4e
	ColorGame         = 0x5865f2
	ColorApproved     = 0x28a745
	ColorRejected     = 0xdc3545
	ColorNeedsChanges = 0x17a2b8
	ColorNeutral      = 0x6c757d
)

type EmbedField struct {
	Name   string `json:"name"`
	Value  string `json:"value"`
	Inline bool   `json:"inline"`
}

type EmbedFooter struct {
	Text string `json:"text"`
}

type Embed struct {
	Title     string       `json:"title"`
	Color     int          `json:"color"`
	Fields    []EmbedField `json:"fields,omitempty"`
	Footer    *EmbedFooter `json:"footer,omitempty"`
	Timestamp string       `json:"timestamp,omitempty"`
}

// Notifier pushes event summaries to per-channel Discord webhooks. Delivery is
// best-effort: failures are logged and swallowed, and a missing webhook URL
// simply drops the notification.
type Notifier struct {
	RunsWebhook     string
	GamesWebhook    string
	ProfilesWebhook string
	Client          *http.Client
}

func NewNotifier(runs, games, profiles string) *Notifier {
	return &Notifier{
		RunsWebhook:     runs,
		GamesWebhook:    games,
		ProfilesWebhook: profiles,
		Client:          utils.HTTPClient,
	}
}

func (n *Notifier) webhookFor(channel string) string {
	switch channel {
	case "runs":
		return n.RunsWebhook
	case "games":
		return n.GamesWebhook
	case "profiles":
		return n.ProfilesWebhook
	default:
		if n.RunsWebhook != "" {
			return n.RunsWebhook
		}
		if n.ProfilesWebhook != "" {
			return n.ProfilesWebhook
		}
		return n.GamesWebhook
	}
}

// Dispatch sends the embed on a background goroutine after the
// response-critical path has completed. The HTTP response this notification
// belongs to is never affected by its outcome.
func (n *Notifier) Dispatch(channel string, embed Embed) {
	go n.send(channel, embed)
}

func (n *Notifier) send(channel string, embed Embed) {
	webhookURL := n.webhookFor(channel)
	if webhookURL == "" {
		return
	}
	if embed.Timestamp == "" {
		embed.Timestamp = utils.NowISO()
	}

	payload, err := json.Marshal(map[string]interface{}{
		"username": "CRC Bot",
		"embeds":   []Embed{embed},
	})
	if err != nil {
		log.Printf("⚠️ [DISCORD] marshal error: %v", err)
		return
	}

	resp, err := n.Client.Post(webhookURL, "application/json", bytes.NewReader(payload))
	if err != nil {
		log.Printf("⚠️ [DISCORD] webhook error: %v", err)
		return
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		log.Printf("⚠️ [DISCORD] webhook returned %d for channel %s", resp.StatusCode, channel)
	}
}
