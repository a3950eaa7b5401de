package services

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"crc-submission-proxy/models"
	"crc-submission-proxy/utils"

	"github.com/gofiber/fiber/v2"
)

type patchRecord struct {
	Table string
	Query string
	Body  map[string]interface{}
}

// fakeBackend plays both the auth endpoint and the PostgREST tables behind a
// single httptest server, recording every PATCH and the commit/patch ordering.
type fakeBackend struct {
	mu         sync.Mutex
	tokens     map[string]string // access token -> user id
	profiles   map[string]string // user id -> runner_profiles row JSON array
	moderators map[string]string // user id -> moderators row JSON array
	runs       map[string]models.RunSubmission
	profileSub map[string]models.ProfileSubmission
	games      map[string]models.GameSubmission
	patches    []patchRecord
	events     []string // "commit" and "patch:<table>" in arrival order
	commitFail bool
	commits    []string // committed file paths
	commitMsgs []string
	commitBody []string // decoded file contents
}

func newFakeBackend() *fakeBackend {
	return &fakeBackend{
		tokens:     make(map[string]string),
		profiles:   make(map[string]string),
		moderators: make(map[string]string),
		runs:       make(map[string]models.RunSubmission),
		profileSub: make(map[string]models.ProfileSubmission),
		games:      make(map[string]models.GameSubmission),
	}
}

func (b *fakeBackend) storeHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/auth/v1/user" {
			token := strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer ")
			b.mu.Lock()
			userID, ok := b.tokens[token]
			b.mu.Unlock()
			if !ok {
				w.WriteHeader(http.StatusUnauthorized)
				return
			}
			json.NewEncoder(w).Encode(models.Principal{ID: userID, Email: userID + "@example.com"})
			return
		}

		table := strings.TrimPrefix(r.URL.Path, "/rest/v1/")
		if r.Method == http.MethodPatch {
			var body map[string]interface{}
			data, _ := io.ReadAll(r.Body)
			_ = json.Unmarshal(data, &body)
			b.mu.Lock()
			b.patches = append(b.patches, patchRecord{Table: table, Query: r.URL.RawQuery, Body: body})
			b.events = append(b.events, "patch:"+table)
			b.mu.Unlock()
			w.Write([]byte("[]"))
			return
		}

		id := strings.TrimPrefix(r.URL.Query().Get("id"), "eq.")
		userID := strings.TrimPrefix(r.URL.Query().Get("user_id"), "eq.")
		b.mu.Lock()
		defer b.mu.Unlock()
		switch table {
		case "runner_profiles":
			if row, ok := b.profiles[userID]; ok {
				w.Write([]byte(row))
				return
			}
		case "moderators":
			if row, ok := b.moderators[userID]; ok {
				w.Write([]byte(row))
				return
			}
		case "pending_runs":
			if run, ok := b.runs[id]; ok {
				json.NewEncoder(w).Encode([]models.RunSubmission{run})
				return
			}
		case "pending_profiles":
			if sub, ok := b.profileSub[id]; ok {
				json.NewEncoder(w).Encode([]models.ProfileSubmission{sub})
				return
			}
		case "pending_games":
			if game, ok := b.games[id]; ok {
				json.NewEncoder(w).Encode([]models.GameSubmission{game})
				return
			}
		}
		w.Write([]byte("[]"))
	}
}

func (b *fakeBackend) githubHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPut {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		b.mu.Lock()
		fail := b.commitFail
		b.mu.Unlock()
		if fail {
			w.WriteHeader(http.StatusInternalServerError)
			w.Write([]byte(`{"message":"server error"}`))
			return
		}

		var payload struct {
			Message string `json:"message"`
			Content string `json:"content"`
		}
		data, _ := io.ReadAll(r.Body)
		_ = json.Unmarshal(data, &payload)
		decoded, _ := base64.StdEncoding.DecodeString(payload.Content)

		b.mu.Lock()
		b.events = append(b.events, "commit")
		b.commits = append(b.commits, strings.TrimPrefix(r.URL.Path, "/repos/site/site-content/contents/"))
		b.commitMsgs = append(b.commitMsgs, payload.Message)
		b.commitBody = append(b.commitBody, string(decoded))
		b.mu.Unlock()

		w.WriteHeader(http.StatusCreated)
		w.Write([]byte(`{"content":{"sha":"abc123"}}`))
	}
}

func (b *fakeBackend) patchesFor(table string) []patchRecord {
	b.mu.Lock()
	defer b.mu.Unlock()
	var out []patchRecord
	for _, p := range b.patches {
		if p.Table == table {
			out = append(out, p)
		}
	}
	return out
}

func (b *fakeBackend) commitCount() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.commits)
}

func newApprovalFixture(t *testing.T) (*fiber.App, *fakeBackend) {
	t.Helper()
	backend := newFakeBackend()

	storeServer := httptest.NewServer(backend.storeHandler())
	t.Cleanup(storeServer.Close)
	githubServer := httptest.NewServer(backend.githubHandler())
	t.Cleanup(githubServer.Close)

	store := NewStoreClient(storeServer.URL, "service-key")
	identity := NewIdentityClient(storeServer.URL, "service-key", store)
	github := &GitHubClient{Token: "gh-token", Repo: "site/site-content", BaseURL: githubServer.URL, Client: utils.HTTPClient}
	notifier := NewNotifier("", "", "")
	svc := NewApprovalService(store, identity, github, notifier, nil, nil)

	app := fiber.New()
	app.Post("/approve", svc.ApproveRun)
	app.Post("/approve-profile", svc.ApproveProfile)
	app.Post("/approve-game", svc.ApproveGame)
	app.Post("/notify", svc.Notify)
	return app, backend
}

func postJSON(t *testing.T, app *fiber.App, path string, body map[string]interface{}) (*http.Response, map[string]interface{}) {
	t.Helper()
	payload, _ := json.Marshal(body)
	req := httptest.NewRequest("POST", path, bytes.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")
	resp, err := app.Test(req, 5000)
	if err != nil {
		t.Fatal(err)
	}
	var decoded map[string]interface{}
	data, _ := io.ReadAll(resp.Body)
	resp.Body.Close()
	_ = json.Unmarshal(data, &decoded)
	return resp, decoded
}

func pendingRun(id string) models.RunSubmission {
	return models.RunSubmission{
		GameID:        "hades-2",
		RunnerID:      "speedy",
		CategorySlug:  "any-percent",
		VideoURL:      "https://youtu.be/xyz",
		DateCompleted: "2026-08-30",
		Status:        models.StatusPending,
		SubmissionID:  "sub_abc_def123",
	}
}

// seedAdmin registers a token whose principal is a site-wide admin.
func (b *fakeBackend) seedAdmin(token, userID string) {
	b.tokens[token] = userID
	b.profiles[userID] = `[{"is_admin":true,"runner_id":"admin-runner"}]`
}

// seedVerifier registers a token whose principal moderates only the given games.
func (b *fakeBackend) seedVerifier(token, userID string, games ...string) {
	b.tokens[token] = userID
	quoted := make([]string, len(games))
	for i, g := range games {
		quoted[i] = `"` + g + `"`
	}
	b.moderators[userID] = `[{"can_manage_moderators":false,"assigned_games":[` + strings.Join(quoted, ",") + `]}]`
}

func TestApproveRunRequiresToken(t *testing.T) {
	app, backend := newApprovalFixture(t)

	resp, _ := postJSON(t, app, "/approve", map[string]interface{}{"run_id": 1})
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("want 401, got %d", resp.StatusCode)
	}

	resp, _ = postJSON(t, app, "/approve", map[string]interface{}{"token": "bogus", "run_id": 1})
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("bad token: want 401, got %d", resp.StatusCode)
	}
	if backend.commitCount() != 0 {
		t.Fatal("unauthenticated requests must not commit")
	}
}

func TestApproveRunRejectsUnprivileged(t *testing.T) {
	app, backend := newApprovalFixture(t)
	backend.tokens["plain"] = "user-1" // valid token, no role rows

	resp, body := postJSON(t, app, "/approve", map[string]interface{}{"token": "plain", "run_id": 1})
	if resp.StatusCode != http.StatusForbidden {
		t.Fatalf("want 403, got %d (%v)", resp.StatusCode, body)
	}
}

func TestApproveRunVerifierScoping(t *testing.T) {
	app, backend := newApprovalFixture(t)
	backend.seedVerifier("mod-token", "user-2", "celeste")
	backend.runs["1"] = pendingRun("1")

	resp, body := postJSON(t, app, "/approve", map[string]interface{}{"token": "mod-token", "run_id": 1})
	if resp.StatusCode != http.StatusForbidden {
		t.Fatalf("want 403, got %d (%v)", resp.StatusCode, body)
	}
	if backend.commitCount() != 0 {
		t.Fatal("out-of-scope verifier must not commit")
	}

	backend.seedVerifier("mod-token", "user-2", "celeste", "hades-2")
	resp, _ = postJSON(t, app, "/approve", map[string]interface{}{"token": "mod-token", "run_id": 1})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("assigned verifier: want 200, got %d", resp.StatusCode)
	}
}

func TestApproveRunCommitsThenPatches(t *testing.T) {
	app, backend := newApprovalFixture(t)
	backend.seedAdmin("admin-token", "admin-1")
	backend.runs["42"] = pendingRun("42")

	resp, body := postJSON(t, app, "/approve", map[string]interface{}{
		"token": "admin-token", "run_id": 42, "notes": "looks clean",
	})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("want 200, got %d (%v)", resp.StatusCode, body)
	}
	wantPath := "_runs/hades-2/2026-08-30__hades-2__speedy__any-percent__01.md"
	if body["file_path"] != wantPath {
		t.Errorf("file_path: got %v, want %s", body["file_path"], wantPath)
	}

	backend.mu.Lock()
	events := append([]string(nil), backend.events...)
	commitMsg := backend.commitMsgs[0]
	content := backend.commitBody[0]
	backend.mu.Unlock()

	if len(events) < 2 || events[0] != "commit" || events[1] != "patch:pending_runs" {
		t.Fatalf("commit must precede the status patch, got %v", events)
	}
	if commitMsg != "✅ Approve run: hades-2 by speedy (any-percent)" {
		t.Errorf("commit message: got %q", commitMsg)
	}
	if !strings.Contains(content, "game_id: hades-2") || !strings.Contains(content, "verified: false") {
		t.Errorf("committed file missing expected front matter:\n%s", content)
	}

	patches := backend.patchesFor("pending_runs")
	if len(patches) != 1 {
		t.Fatalf("want one pending_runs patch, got %d", len(patches))
	}
	patch := patches[0]
	if patch.Body["status"] != models.StatusVerified {
		t.Errorf("patched status: got %v", patch.Body["status"])
	}
	if patch.Body["github_file_path"] != wantPath {
		t.Errorf("patched github_file_path: got %v", patch.Body["github_file_path"])
	}
	if patch.Body["verified_by"] != "admin-1" {
		t.Errorf("patched verified_by: got %v", patch.Body["verified_by"])
	}
	if patch.Body["verifier_notes"] != "looks clean" {
		t.Errorf("patched verifier_notes: got %v", patch.Body["verifier_notes"])
	}
}

func TestApproveRunCommitFailureLeavesRowPending(t *testing.T) {
	app, backend := newApprovalFixture(t)
	backend.seedAdmin("admin-token", "admin-1")
	backend.runs["1"] = pendingRun("1")
	backend.commitFail = true

	resp, body := postJSON(t, app, "/approve", map[string]interface{}{"token": "admin-token", "run_id": 1})
	if resp.StatusCode != http.StatusInternalServerError {
		t.Fatalf("want 500, got %d", resp.StatusCode)
	}
	if msg, _ := body["error"].(string); strings.Contains(msg, "server error") {
		t.Errorf("upstream error body must not leak to the client: %q", msg)
	}
	if len(backend.patchesFor("pending_runs")) != 0 {
		t.Fatal("failed commit must not patch the row")
	}
}

func TestApproveRunIdempotent(t *testing.T) {
	app, backend := newApprovalFixture(t)
	backend.seedAdmin("admin-token", "admin-1")
	run := pendingRun("5")
	run.Status = models.StatusVerified
	run.GithubFilePath = "_runs/hades-2/existing__01.md"
	backend.runs["5"] = run

	resp, body := postJSON(t, app, "/approve", map[string]interface{}{"token": "admin-token", "run_id": 5})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("want 200, got %d", resp.StatusCode)
	}
	if body["message"] != "Run already approved" {
		t.Errorf("message: got %v", body["message"])
	}
	if body["file_path"] != "_runs/hades-2/existing__01.md" {
		t.Errorf("should report the stored path, got %v", body["file_path"])
	}
	if backend.commitCount() != 0 {
		t.Fatal("re-approval must not commit again")
	}
}

func TestApproveRunNotFound(t *testing.T) {
	app, backend := newApprovalFixture(t)
	backend.seedAdmin("admin-token", "admin-1")

	resp, _ := postJSON(t, app, "/approve", map[string]interface{}{"token": "admin-token", "run_id": 99})
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("want 404, got %d", resp.StatusCode)
	}

	resp, _ = postJSON(t, app, "/approve", map[string]interface{}{"token": "admin-token"})
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("missing id: want 400, got %d", resp.StatusCode)
	}

	resp, _ = postJSON(t, app, "/approve", map[string]interface{}{"token": "admin-token", "run_id": "12; drop"})
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("malformed id: want 400, got %d", resp.StatusCode)
	}
}

func TestApproveProfileAdminOnly(t *testing.T) {
	app, backend := newApprovalFixture(t)
	backend.seedVerifier("mod-token", "user-2", "hades-2")
	backend.profileSub["3"] = models.ProfileSubmission{
		RunnerID: "speedy", DisplayName: "Speedy", Status: models.StatusPending,
	}

	resp, _ := postJSON(t, app, "/approve-profile", map[string]interface{}{"token": "mod-token", "profile_id": 3})
	if resp.StatusCode != http.StatusForbidden {
		t.Fatalf("verifier on admin route: want 403, got %d", resp.StatusCode)
	}

	backend.seedAdmin("admin-token", "admin-1")
	resp, body := postJSON(t, app, "/approve-profile", map[string]interface{}{"token": "admin-token", "profile_id": 3})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("want 200, got %d (%v)", resp.StatusCode, body)
	}
	if body["file_path"] != "_runners/speedy.md" {
		t.Errorf("file_path: got %v", body["file_path"])
	}

	backend.mu.Lock()
	commitMsg := backend.commitMsgs[0]
	content := backend.commitBody[0]
	backend.mu.Unlock()
	if commitMsg != "👤 Approve profile: speedy" {
		t.Errorf("commit message: got %q", commitMsg)
	}
	if !strings.Contains(content, "approved_by: admin-runner") {
		t.Errorf("runner file should credit the approving admin:\n%s", content)
	}

	// The live profile row follows the approval.
	live := backend.patchesFor("runner_profiles")
	if len(live) != 1 || live[0].Body["approval_status"] != models.StatusApproved {
		t.Fatalf("runner_profiles sync patch missing or wrong: %+v", live)
	}
}

func TestApproveGame(t *testing.T) {
	app, backend := newApprovalFixture(t)
	backend.seedAdmin("admin-token", "admin-1")
	backend.games["8"] = models.GameSubmission{
		GameID:   "hades-2",
		GameName: "Hades II",
		Status:   models.StatusPending,
		GameData: models.GameData{
			TimingMethod: "RTA",
			FullRuns:     []models.CategoryOption{{Slug: "any-percent", Label: "Any%"}},
		},
	}

	resp, body := postJSON(t, app, "/approve-game", map[string]interface{}{"token": "admin-token", "game_id": 8})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("want 200, got %d (%v)", resp.StatusCode, body)
	}
	if body["file_path"] != "_games/hades-2.md" {
		t.Errorf("file_path: got %v", body["file_path"])
	}

	backend.mu.Lock()
	commitMsg := backend.commitMsgs[0]
	backend.mu.Unlock()
	if commitMsg != "🎮 Approve game: Hades II (hades-2)" {
		t.Errorf("commit message: got %q", commitMsg)
	}

	patches := backend.patchesFor("pending_games")
	if len(patches) != 1 || patches[0].Body["status"] != models.StatusApproved {
		t.Fatalf("pending_games patch missing or wrong: %+v", patches)
	}

	// Approving again is a no-op once the fake reflects the new status.
	game := backend.games["8"]
	game.Status = models.StatusApproved
	backend.games["8"] = game
	resp, body = postJSON(t, app, "/approve-game", map[string]interface{}{"token": "admin-token", "game_id": 8})
	if resp.StatusCode != http.StatusOK || body["message"] != "Game already approved" {
		t.Fatalf("re-approval: got %d %v", resp.StatusCode, body)
	}
	if backend.commitCount() != 1 {
		t.Fatal("re-approval must not commit again")
	}
}

func TestNotifyValidation(t *testing.T) {
	app, backend := newApprovalFixture(t)
	backend.seedVerifier("mod-token", "user-2", "hades-2")

	resp, _ := postJSON(t, app, "/notify", map[string]interface{}{
		"action": "rejected", "entity_type": "run",
	})
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("no token: want 401, got %d", resp.StatusCode)
	}

	resp, _ = postJSON(t, app, "/notify", map[string]interface{}{
		"token": "mod-token", "entity_type": "run",
	})
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("missing action: want 400, got %d", resp.StatusCode)
	}

	resp, body := postJSON(t, app, "/notify", map[string]interface{}{
		"token": "mod-token", "action": "needs_changes", "entity_type": "run",
		"entity_name": "hades-2 any%", "reason": "timer not visible",
	})
	if resp.StatusCode != http.StatusOK || body["ok"] != true {
		t.Fatalf("want ok, got %d %v", resp.StatusCode, body)
	}
}
