// services/github_client.go
package services

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
	"io"
	"log"
	"net/http"

	"crc-submission-proxy/utils"
)

// GitHubClient commits approved content files into the site repository via
// the contents API.
type GitHubClient struct {
	Token   string
	Repo    string // "owner/name"
	BaseURL string
	Client  *http.Client
}

func NewGitHubClient(token, repo string) *GitHubClient {
	return &GitHubClient{
		Token:   token,
		Repo:    repo,
		BaseURL: "https://api.github.com",
		Client:  utils.HTTPClient,
	}
}

// CreateFile creates a new file at filePath with the given commit message and
// returns the blob SHA. On failure the full upstream response is logged
// server-side; the caller only ever sees ok=false, never GitHub's error body.
func (c *GitHubClient) CreateFile(filePath, content, commitMessage string) (string, bool) {
	payload, _ := json.Marshal(map[string]string{
		"message": commitMessage,
		"content": base64.StdEncoding.EncodeToString([]byte(content)),
	})

	req, err := http.NewRequest(http.MethodPut,
		c.BaseURL+"/repos/"+c.Repo+"/contents/"+filePath, bytes.NewReader(payload))
	if err != nil {
		log.Printf("❌ [GITHUB] request error for %s: %v", filePath, err)
		return "", false
	}
	req.Header.Set("Accept", "application/vnd.github+json")
	req.Header.Set("Authorization", "Bearer "+c.Token)
	req.Header.Set("X-GitHub-Api-Version", "2022-11-28")
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.Client.Do(req)
	if err != nil {
		log.Printf("❌ [GITHUB] create file %s failed: %v", filePath, err)
		return "", false
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(resp.Body)
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		log.Printf("❌ [GITHUB] create file %s returned %d: %s", filePath, resp.StatusCode, string(body))
		return "", false
	}

	var out struct {
		Content struct {
			SHA string `json:"sha"`
		} `json:"content"`
	}
	if err := json.Unmarshal(body, &out); err != nil {
		log.Printf("⚠️ [GITHUB] create file %s: unparseable success body: %v", filePath, err)
	}
	return out.Content.SHA, true
}
