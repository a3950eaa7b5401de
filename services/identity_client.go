// services/identity_client.go
package services

import (
	"encoding/json"
	"log"
	"net/http"

	"crc-submission-proxy/models"
	"crc-submission-proxy/utils"
)

// IdentityClient verifies Supabase access tokens and resolves the caller's
// moderation role from the content store.
type IdentityClient struct {
	BaseURL    string
	ServiceKey string
	Store      *StoreClient
	Client     *http.Client
}

func NewIdentityClient(baseURL, serviceKey string, store *StoreClient) *IdentityClient {
	return &IdentityClient{
		BaseURL:    baseURL,
		ServiceKey: serviceKey,
		Store:      store,
		Client:     utils.HTTPClient,
	}
}

// VerifyToken resolves an access token into its principal, or nil on any
// non-success answer from the auth endpoint.
func (c *IdentityClient) VerifyToken(accessToken string) *models.Principal {
	req, err := http.NewRequest(http.MethodGet, c.BaseURL+"/auth/v1/user", nil)
	if err != nil {
		return nil
	}
	req.Header.Set("apikey", c.ServiceKey)
	req.Header.Set("Authorization", "Bearer "+accessToken)

	resp, err := c.Client.Do(req)
	if err != nil {
		log.Printf("❌ [IDENTITY] token verify failed: %v", err)
		return nil
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil
	}
	var principal models.Principal
	if err := json.NewDecoder(resp.Body).Decode(&principal); err != nil || principal.ID == "" {
		return nil
	}
	return &principal
}

// ResolveRole looks the principal up in two places, in order: the profile
// table's admin flag, then the moderator assignment table. The two are
// independent — a principal may hold only one — so both are always consulted
// before concluding the role is none.
func (c *IdentityClient) ResolveRole(userID string) models.Role {
	var role models.Role

	profile := c.Store.Select("runner_profiles",
		map[string]string{"user_id": "eq." + userID}, "is_admin,runner_id")
	if profile.OK {
		var rows []struct {
			IsAdmin  bool   `json:"is_admin"`
			RunnerID string `json:"runner_id"`
		}
		if err := json.Unmarshal(profile.Data, &rows); err == nil && len(rows) > 0 {
			role.RunnerID = rows[0].RunnerID
			if rows[0].IsAdmin {
				role.Admin = true
				return role
			}
		}
	}

	mod := c.Store.Select("moderators",
		map[string]string{"user_id": "eq." + userID}, "can_manage_moderators,assigned_games")
	if mod.OK {
		var rows []struct {
			CanManageModerators bool     `json:"can_manage_moderators"`
			AssignedGames       []string `json:"assigned_games"`
		}
		if err := json.Unmarshal(mod.Data, &rows); err == nil && len(rows) > 0 {
			role.Verifier = true
			role.Admin = rows[0].CanManageModerators
			role.AssignedGames = rows[0].AssignedGames
		}
	}

	return role
}
