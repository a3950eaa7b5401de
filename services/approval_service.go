// services/approval_service.go
package services

import (
	"encoding/json"
	"log"
	"strings"

	"crc-submission-proxy/files"
	"crc-submission-proxy/models"
	"crc-submission-proxy/utils"

	"github.com/gofiber/fiber/v2"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// ApprovalService handles the authenticated moderation routes. Every approval
// commits the content file first and only then marks the store row approved:
// a failed commit leaves the row pending and re-runnable, never the reverse.
type ApprovalService struct {
	Store    *StoreClient
	Identity *IdentityClient
	GitHub   *GitHubClient
	Notifier *Notifier
	Archive  *ArchiveClient
	Audit    *AuditService
}

func NewApprovalService(store *StoreClient, identity *IdentityClient, github *GitHubClient,
	notifier *Notifier, archive *ArchiveClient, audit *AuditService) *ApprovalService {
	return &ApprovalService{
		Store:    store,
		Identity: identity,
		GitHub:   github,
		Notifier: notifier,
		Archive:  archive,
		Audit:    audit,
	}
}

type authError struct {
	message string
	status  int
}

// authenticate resolves the body token into a principal and role. requireAdmin
// locks the route to site-wide admins; otherwise any moderation role passes.
func (s *ApprovalService) authenticate(token string, requireAdmin bool) (*models.Principal, models.Role, *authError) {
	if token == "" {
		return nil, models.Role{}, &authError{"Missing token", fiber.StatusUnauthorized}
	}
	principal := s.Identity.VerifyToken(token)
	if principal == nil {
		return nil, models.Role{}, &authError{"Invalid or expired token", fiber.StatusUnauthorized}
	}
	role := s.Identity.ResolveRole(principal.ID)
	if role.None() {
		return nil, models.Role{}, &authError{"Insufficient permissions", fiber.StatusForbidden}
	}
	if requireAdmin && !role.Admin {
		return nil, models.Role{}, &authError{"Admin required", fiber.StatusForbidden}
	}
	return principal, role, nil
}

type approveRequest struct {
	Token     string      `json:"token"`
	RunID     interface{} `json:"run_id"`
	ProfileID interface{} `json:"profile_id"`
	GameID    interface{} `json:"game_id"`
	Notes     string      `json:"notes"`
}

// ApproveRun promotes a pending run into a committed run file. Verifiers may
// only approve runs for their assigned games; admins may approve any.
func (s *ApprovalService) ApproveRun(c *fiber.Ctx) error {
	var req approveRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid JSON"})
	}

	principal, role, authErr := s.authenticate(req.Token, false)
	if authErr != nil {
		return c.Status(authErr.status).JSON(fiber.Map{"error": authErr.message})
	}

	if req.RunID == nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Missing run_id"})
	}
	runID, ok := utils.NormalizeID(req.RunID)
	if !ok {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid run_id format"})
	}

	result := s.Store.Select("pending_runs", map[string]string{"id": "eq." + runID}, "*")
	var runs []models.RunSubmission
	if !result.OK || json.Unmarshal(result.Data, &runs) != nil || len(runs) == 0 {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "Run not found"})
	}
	run := runs[0]

	if !role.CanApproveRun(run.GameID) {
		return c.Status(fiber.StatusForbidden).JSON(fiber.Map{"error": "Not authorized for this game"})
	}

	filename := files.BuildRunFilename(run)
	filePath := "_runs/" + run.GameID + "/" + filename

	// Re-approval of an already-approved run is a no-op success, not a
	// duplicate commit.
	if run.Status == models.StatusVerified || run.Status == models.StatusApproved {
		if run.GithubFilePath != "" {
			filePath = run.GithubFilePath
		}
		return c.JSON(fiber.Map{
			"ok":        true,
			"filename":  filename,
			"file_path": filePath,
			"message":   "Run already approved",
		})
	}

	content := files.BuildRunFile(run)
	commitMsg := "✅ Approve run: " + run.GameID + " by " + run.RunnerID + " (" + run.CategorySlug + ")"

	if _, ok := s.GitHub.CreateFile(filePath, content, commitMsg); !ok {
		return c.Status(fiber.StatusInternalServerError).
			JSON(fiber.Map{"error": "Failed to create run file. Please try again."})
	}

	patch := s.Store.Patch("pending_runs", map[string]string{"id": "eq." + runID}, map[string]interface{}{
		"status":           models.StatusVerified,
		"verified_by":      principal.ID,
		"verified_at":      utils.NowISO(),
		"verifier_notes":   nullableNote(req.Notes),
		"github_file_path": filePath,
	})
	if !patch.OK {
		// The file exists but the row still reads pending; a re-run of the
		// approval recovers by hitting the duplicate-path error.
		log.Printf("⚠️ [APPROVE] run %s committed but status patch failed (%d): %s",
			runID, patch.Status, string(patch.Data))
	}

	go s.Archive.Mirror(filePath, content)
	s.Audit.Record("approved", "run", runID, principal.ID, filePath)
	s.Notifier.Dispatch("runs", Embed{
		Title: "✅ Run Approved",
		Color: ColorApproved,
		Fields: []EmbedField{
			{Name: "Game", Value: run.GameID, Inline: true},
			{Name: "Runner", Value: run.RunnerID, Inline: true},
			{Name: "Category", Value: run.CategorySlug, Inline: true},
			{Name: "Video", Value: orDash(run.VideoURL), Inline: false},
		},
	})

	return c.JSON(fiber.Map{
		"ok":        true,
		"filename":  filename,
		"file_path": filePath,
		"message":   "Run approved and file created",
	})
}

// ApproveProfile promotes a pending runner profile into a committed runner
// file. Admin only.
func (s *ApprovalService) ApproveProfile(c *fiber.Ctx) error {
	var req approveRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid JSON"})
	}

	principal, role, authErr := s.authenticate(req.Token, true)
	if authErr != nil {
		return c.Status(authErr.status).JSON(fiber.Map{"error": authErr.message})
	}

	if req.ProfileID == nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Missing profile_id"})
	}
	profileID, ok := utils.NormalizeID(req.ProfileID)
	if !ok {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid profile_id format"})
	}

	result := s.Store.Select("pending_profiles", map[string]string{"id": "eq." + profileID}, "*")
	var profiles []models.ProfileSubmission
	if !result.OK || json.Unmarshal(result.Data, &profiles) != nil || len(profiles) == 0 {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "Profile not found"})
	}
	profile := profiles[0]
	filePath := "_runners/" + profile.RunnerID + ".md"

	if profile.Status == models.StatusApproved || profile.Status == models.StatusVerified {
		return c.JSON(fiber.Map{
			"ok":        true,
			"filename":  profile.RunnerID + ".md",
			"file_path": filePath,
			"message":   "Profile already approved",
		})
	}

	profile.ApprovedBy = role.RunnerID
	if profile.ApprovedBy == "" {
		profile.ApprovedBy = "admin"
	}
	content := files.BuildRunnerFile(profile)
	commitMsg := "👤 Approve profile: " + profile.RunnerID

	if _, ok := s.GitHub.CreateFile(filePath, content, commitMsg); !ok {
		return c.Status(fiber.StatusInternalServerError).
			JSON(fiber.Map{"error": "Failed to create profile file. Please try again."})
	}

	patch := s.Store.Patch("pending_profiles", map[string]string{"id": "eq." + profileID}, map[string]interface{}{
		"status":         models.StatusApproved,
		"reviewed_by":    principal.ID,
		"reviewed_at":    utils.NowISO(),
		"reviewer_notes": nullableNote(req.Notes),
	})
	if !patch.OK {
		log.Printf("⚠️ [APPROVE] profile %s committed but status patch failed (%d): %s",
			profileID, patch.Status, string(patch.Data))
	}

	// Keep the live profile row in step with the approval.
	s.Store.Patch("runner_profiles", map[string]string{"runner_id": "eq." + profile.RunnerID},
		map[string]interface{}{"approval_status": models.StatusApproved})

	go s.Archive.Mirror(filePath, content)
	s.Audit.Record("approved", "profile", profileID, principal.ID, filePath)

	displayName := profile.DisplayName
	if displayName == "" {
		displayName = profile.RunnerID
	}
	s.Notifier.Dispatch("profiles", Embed{
		Title: "👤 Profile Approved",
		Color: ColorApproved,
		Fields: []EmbedField{
			{Name: "Runner", Value: displayName, Inline: true},
			{Name: "ID", Value: profile.RunnerID, Inline: true},
		},
	})

	return c.JSON(fiber.Map{
		"ok":        true,
		"filename":  profile.RunnerID + ".md",
		"file_path": filePath,
		"message":   "Profile approved and file created",
	})
}

// ApproveGame promotes a pending game into a committed game file. Admin only.
func (s *ApprovalService) ApproveGame(c *fiber.Ctx) error {
	var req approveRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid JSON"})
	}

	principal, _, authErr := s.authenticate(req.Token, true)
	if authErr != nil {
		return c.Status(authErr.status).JSON(fiber.Map{"error": authErr.message})
	}

	if req.GameID == nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Missing game_id"})
	}
	gameID, ok := utils.NormalizeID(req.GameID)
	if !ok {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid game_id format"})
	}

	result := s.Store.Select("pending_games", map[string]string{"id": "eq." + gameID}, "*")
	var games []models.GameSubmission
	if !result.OK || json.Unmarshal(result.Data, &games) != nil || len(games) == 0 {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "Game not found"})
	}
	game := games[0]

	filename := game.GameID + ".md"
	filePath := "_games/" + filename

	if game.Status == models.StatusApproved || game.Status == models.StatusVerified {
		return c.JSON(fiber.Map{
			"ok":        true,
			"filename":  filename,
			"file_path": filePath,
			"message":   "Game already approved",
		})
	}

	// Resolve the submitter's runner id for the credits block.
	if game.SubmitterUserID != "" {
		profile := s.Store.Select("runner_profiles",
			map[string]string{"user_id": "eq." + game.SubmitterUserID}, "runner_id")
		if profile.OK {
			var rows []struct {
				RunnerID string `json:"runner_id"`
			}
			if err := json.Unmarshal(profile.Data, &rows); err == nil && len(rows) > 0 {
				game.SubmitterRunnerID = rows[0].RunnerID
			}
		}
	}

	content := files.BuildGameFile(game)
	commitMsg := "🎮 Approve game: " + game.GameName + " (" + game.GameID + ")"

	if _, ok := s.GitHub.CreateFile(filePath, content, commitMsg); !ok {
		return c.Status(fiber.StatusInternalServerError).
			JSON(fiber.Map{"error": "Failed to create game file. Please try again."})
	}

	patch := s.Store.Patch("pending_games", map[string]string{"id": "eq." + gameID}, map[string]interface{}{
		"status":         models.StatusApproved,
		"reviewed_by":    principal.ID,
		"reviewed_at":    utils.NowISO(),
		"reviewer_notes": nullableNote(req.Notes),
	})
	if !patch.OK {
		log.Printf("⚠️ [APPROVE] game %s committed but status patch failed (%d): %s",
			gameID, patch.Status, string(patch.Data))
	}

	go s.Archive.Mirror(filePath, content)
	s.Audit.Record("approved", "game", gameID, principal.ID, filePath)
	s.Notifier.Dispatch("games", Embed{
		Title: "🎮 Game Approved",
		Color: ColorApproved,
		Fields: []EmbedField{
			{Name: "Game", Value: game.GameName, Inline: true},
			{Name: "ID", Value: game.GameID, Inline: true},
		},
		Footer: &EmbedFooter{Text: "Game page will be live after the next site build"},
	})

	return c.JSON(fiber.Map{
		"ok":        true,
		"filename":  filename,
		"file_path": filePath,
		"message":   "Game approved and file created",
	})
}

type notifyRequest struct {
	Token      string `json:"token"`
	Action     string `json:"action"`
	EntityType string `json:"entity_type"`
	EntityName string `json:"entity_name"`
	EntityID   string `json:"entity_id"`
	Reason     string `json:"reason"`
	Notes      string `json:"notes"`
}

var (
	notifyColors = map[string]int{
		"rejected":      ColorRejected,
		"needs_changes": ColorNeedsChanges,
		"approved":      ColorApproved,
	}
	notifyIcons = map[string]string{
		"rejected":      "❌",
		"needs_changes": "✏️",
		"approved":      "✅",
	}
	notifyTypeLabels = map[string]string{
		"run":     "🏃 Run",
		"profile": "👤 Profile",
		"game":    "🎮 Game",
	}
	notifyChannels = map[string]string{
		"run":     "runs",
		"profile": "profiles",
		"game":    "games",
	}
	titleCaser = cases.Title(language.English)
)

// Notify fires a categorized moderation notification (reject, needs-changes)
// to the matching channel. Any moderation role may call it.
func (s *ApprovalService) Notify(c *fiber.Ctx) error {
	var req notifyRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid JSON"})
	}

	principal, _, authErr := s.authenticate(req.Token, false)
	if authErr != nil {
		return c.Status(authErr.status).JSON(fiber.Map{"error": authErr.message})
	}

	if req.Action == "" || req.EntityType == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Missing action or entity_type"})
	}

	name := req.EntityName
	if name == "" {
		name = req.EntityID
	}
	if name == "" {
		name = "Unknown"
	}

	typeLabel := notifyTypeLabels[req.EntityType]
	if typeLabel == "" {
		typeLabel = req.EntityType
	}
	fields := []EmbedField{
		{Name: "Type", Value: typeLabel, Inline: true},
		{Name: "Name", Value: name, Inline: true},
	}
	if req.Reason != "" {
		fields = append(fields, EmbedField{Name: "Reason", Value: req.Reason, Inline: false})
	}
	if req.Notes != "" {
		fields = append(fields, EmbedField{Name: "Notes", Value: req.Notes, Inline: false})
	}

	icon := notifyIcons[req.Action]
	if icon == "" {
		icon = "📢"
	}
	color := notifyColors[req.Action]
	if color == 0 {
		color = ColorNeutral
	}
	channel := notifyChannels[req.EntityType]
	if channel == "" {
		channel = "runs"
	}

	actionLabel := titleCaser.String(strings.ReplaceAll(req.Action, "_", " "))
	s.Audit.Record("notified", req.EntityType, req.EntityID, principal.ID, req.Action)
	s.Notifier.Dispatch(channel, Embed{
		Title:  icon + " " + actionLabel + ": " + name,
		Color:  color,
		Fields: fields,
	})

	return c.JSON(fiber.Map{"ok": true})
}

func nullableNote(notes string) interface{} {
	if notes == "" {
		return nil
	}
	return notes
}

func orDash(s string) string {
	if s == "" {
		return "—"
	}
	return s
}
