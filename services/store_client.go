// services/store_client.go
package services

import (
	"bytes"
	"encoding/json"
	"io"
	"log"
	"net/http"
	"net/url"

	"crc-submission-proxy/utils"
)

// StoreResult is the outcome of one content-store call. Data holds the raw
// response body; callers decode it into their own row types.
type StoreResult struct {
	OK     bool
	Status int
	Data   json.RawMessage
}

// StoreClient talks to the Supabase PostgREST interface with the service
// role key. It always acts with elevated privilege on behalf of a caller the
// handlers have already authorized.
type StoreClient struct {
	BaseURL    string
	ServiceKey string
	Client     *http.Client
}

func NewStoreClient(baseURL, serviceKey string) *StoreClient {
	return &StoreClient{
		BaseURL:    baseURL,
		ServiceKey: serviceKey,
		Client:     utils.HTTPClient,
	}
}

// Select fetches rows matching the given filters. Filter values carry their
// PostgREST operator, e.g. {"game_id": "eq.hades-2", "status": "neq.rejected"}.
func (s *StoreClient) Select(table string, filters map[string]string, columns string) StoreResult {
	q := url.Values{}
	for k, v := range filters {
		q.Set(k, v)
	}
	if columns != "" {
		q.Set("select", columns)
	}
	return s.do(http.MethodGet, table+"?"+q.Encode(), nil)
}

// Insert creates one row and returns the stored representation (including the
// generated id).
func (s *StoreClient) Insert(table string, row interface{}) StoreResult {
	return s.do(http.MethodPost, table, row)
}

// Patch merge-updates all rows matching the filters.
func (s *StoreClient) Patch(table string, filters map[string]string, patch interface{}) StoreResult {
	q := url.Values{}
	for k, v := range filters {
		q.Set(k, v)
	}
	return s.do(http.MethodPatch, table+"?"+q.Encode(), patch)
}

func (s *StoreClient) do(method, path string, body interface{}) StoreResult {
	var reqBody io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			log.Printf("❌ [STORE] marshal error for %s %s: %v", method, path, err)
			return StoreResult{}
		}
		reqBody = bytes.NewReader(payload)
	}

	req, err := http.NewRequest(method, s.BaseURL+"/rest/v1/"+path, reqBody)
	if err != nil {
		log.Printf("❌ [STORE] request error for %s %s: %v", method, path, err)
		return StoreResult{}
	}
	req.Header.Set("apikey", s.ServiceKey)
	req.Header.Set("Authorization", "Bearer "+s.ServiceKey)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Prefer", "return=representation")

	resp, err := s.Client.Do(req)
	if err != nil {
		log.Printf("❌ [STORE] %s %s failed: %v", method, path, err)
		return StoreResult{}
	}
	defer resp.Body.Close()

	data, _ := io.ReadAll(resp.Body)
	return StoreResult{
		OK:     resp.StatusCode >= 200 && resp.StatusCode < 300,
		Status: resp.StatusCode,
		Data:   data,
	}
}
