// services/submission_service.go
package services

import (
	"encoding/json"
	"log"
	"strconv"

	"crc-submission-proxy/middleware"
	"crc-submission-proxy/models"
	"crc-submission-proxy/utils"

	"github.com/gofiber/fiber/v2"
)

// SubmissionService handles the public, Turnstile-protected submission routes.
type SubmissionService struct {
	Store     *StoreClient
	Turnstile *TurnstileClient
	Notifier  *Notifier
	Audit     *AuditService
}

func NewSubmissionService(store *StoreClient, turnstile *TurnstileClient, notifier *Notifier, audit *AuditService) *SubmissionService {
	return &SubmissionService{Store: store, Turnstile: turnstile, Notifier: notifier, Audit: audit}
}

type runSubmissionRequest struct {
	GameID             string                    `json:"game_id"`
	RunnerID           string                    `json:"runner_id"`
	CategoryTier       string                    `json:"category_tier"`
	CategorySlug       string                    `json:"category_slug"`
	StandardChallenges []string                  `json:"standard_challenges"`
	CommunityChallenge string                    `json:"community_challenge"`
	Character          string                    `json:"character"`
	GlitchID           string                    `json:"glitch_id"`
	Restrictions       []string                  `json:"restrictions"`
	VideoURL           string                    `json:"video_url"`
	VideoHost          string                    `json:"video_host"`
	VideoID            string                    `json:"video_id"`
	DateCompleted      string                    `json:"date_completed"`
	RunTime            string                    `json:"run_time"`
	AdditionalRunners  []models.AdditionalRunner `json:"additional_runners"`
	Source             string                    `json:"source"`
	TurnstileToken     string                    `json:"turnstile_token"`
}

// SubmitRun accepts a public run submission: validate first (no side effects
// on invalid input), then captcha, then insert.
func (s *SubmissionService) SubmitRun(c *fiber.Ctx) error {
	var req runSubmissionRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid JSON"})
	}

	required := []struct{ name, value string }{
		{"game_id", req.GameID},
		{"category_slug", req.CategorySlug},
		{"runner_id", req.RunnerID},
		{"video_url", req.VideoURL},
	}
	for _, field := range required {
		if field.value == "" {
			return c.Status(fiber.StatusBadRequest).
				JSON(fiber.Map{"error": "Missing required field: " + field.name})
		}
	}

	if !utils.IsValidSlug(req.GameID, 1, 100) {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid game_id format"})
	}
	if !utils.IsValidSlug(req.RunnerID, 3, 50) {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid runner_id format"})
	}
	if !utils.IsValidSlug(req.CategorySlug, 1, 100) {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid category_slug format"})
	}
	if !utils.IsValidVideoURL(req.VideoURL) {
		return c.Status(fiber.StatusBadRequest).
			JSON(fiber.Map{"error": "Invalid video URL. Must be YouTube, Twitch, Bilibili, or Nicovideo."})
	}

	ip := middleware.ClientIP(c)
	if !s.Turnstile.Verify(req.TurnstileToken, ip) {
		return c.Status(fiber.StatusForbidden).JSON(fiber.Map{"error": "Captcha verification failed"})
	}

	categoryTier := req.CategoryTier
	if categoryTier == "" {
		categoryTier = "full_runs"
	}
	source := req.Source
	if source == "" {
		source = "site_form"
	}

	submissionID := utils.NewSubmissionID()
	row := models.RunSubmission{
		GameID:             utils.SanitizeText(req.GameID, 100),
		RunnerID:           utils.SanitizeText(req.RunnerID, 50),
		CategoryTier:       utils.SanitizeText(categoryTier, 50),
		CategorySlug:       utils.SanitizeText(req.CategorySlug, 100),
		StandardChallenges: utils.SanitizeArray(req.StandardChallenges, 20, 200),
		CommunityChallenge: utils.SanitizeText(req.CommunityChallenge, 200),
		Character:          utils.SanitizeText(req.Character, 100),
		GlitchID:           utils.SanitizeText(req.GlitchID, 50),
		Restrictions:       utils.SanitizeArray(req.Restrictions, 20, 200),
		VideoURL:           req.VideoURL,
		VideoHost:          utils.SanitizeText(req.VideoHost, 50),
		VideoID:            utils.SanitizeText(req.VideoID, 100),
		DateCompleted:      utils.SanitizeText(req.DateCompleted, 10),
		RunTime:            utils.SanitizeText(req.RunTime, 20),
		AdditionalRunners:  req.AdditionalRunners,
		Status:             models.StatusPending,
		SubmissionID:       submissionID,
		SubmittedAt:        utils.NowISO(),
		Source:             utils.SanitizeText(source, 30),
	}

	result := s.Store.Insert("pending_runs", row)
	if !result.OK {
		log.Printf("❌ [SUBMIT] run insert failed (%d): %s", result.Status, string(result.Data))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to save submission"})
	}

	s.Audit.Record("submitted", "run", submissionID, "public", row.GameID+"/"+row.CategorySlug)
	s.Notifier.Dispatch("runs", Embed{
		Title: "📥 New Run Submitted",
		Color: ColorSubmitted,
		Fields: []EmbedField{
			{Name: "Game", Value: row.GameID, Inline: true},
			{Name: "Runner", Value: row.RunnerID, Inline: true},
			{Name: "Category", Value: row.CategorySlug, Inline: true},
		},
	})

	return c.JSON(fiber.Map{
		"ok":            true,
		"submission_id": submissionID,
		"message":       "Run submitted successfully",
	})
}

type gameSubmissionRequest struct {
	GameID            string                  `json:"game_id"`
	GameName          string                  `json:"game_name"`
	SubmitterHandle   string                  `json:"submitter_handle"`
	SubmitterUserID   string                  `json:"submitter_user_id"`
	Aliases           []string                `json:"aliases"`
	Genres            []string                `json:"genres"`
	Platforms         []string                `json:"platforms"`
	TimingMethod      string                  `json:"timing_method"`
	IsModded          bool                    `json:"is_modded"`
	BaseGame          string                  `json:"base_game"`
	CharacterEnabled  bool                    `json:"character_enabled"`
	CharacterLabel    string                  `json:"character_label"`
	Characters        []models.CategoryOption `json:"characters"`
	Challenges        []models.CategoryOption `json:"challenges"`
	Restrictions      []models.CategoryOption `json:"restrictions"`
	Glitches          []models.CategoryOption `json:"glitches"`
	FullRunCategories []models.CategoryOption `json:"full_run_categories"`
	MiniChallenges    []models.CategoryOption `json:"mini_challenges"`
	GeneralRules      string                  `json:"general_rules"`
	Description       string                  `json:"description"`
	TurnstileToken    string                  `json:"turnstile_token"`
}

// SubmitGame accepts a public game submission. A game_id already pending or
// approved is a conflict; only rejected submissions free the slug up again.
func (s *SubmissionService) SubmitGame(c *fiber.Ctx) error {
	var req gameSubmissionRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid JSON"})
	}

	if req.GameName == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Game name is required"})
	}
	gameName := utils.SanitizeText(req.GameName, 200)
	if gameName == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid game name"})
	}

	ip := middleware.ClientIP(c)
	if !s.Turnstile.Verify(req.TurnstileToken, ip) {
		return c.Status(fiber.StatusForbidden).JSON(fiber.Map{"error": "Captcha verification failed"})
	}

	gameID := utils.SanitizeText(req.GameID, 100)
	if gameID == "" {
		gameID = utils.Slugify(gameName)
	}

	existing := s.Store.Select("pending_games", map[string]string{
		"game_id": "eq." + gameID,
		"status":  "neq.rejected",
	}, "id")
	if existing.OK && hasRows(existing.Data) {
		return c.Status(fiber.StatusConflict).
			JSON(fiber.Map{"error": "A game with this ID is already pending or approved"})
	}

	timingMethod := req.TimingMethod
	if timingMethod == "" {
		timingMethod = "RTA"
	}
	characterLabel := req.CharacterLabel
	if characterLabel == "" {
		characterLabel = "Character"
	}

	row := models.GameSubmission{
		GameID:          gameID,
		GameName:        gameName,
		SubmitterHandle: utils.SanitizeText(req.SubmitterHandle, 100),
		SubmitterUserID: req.SubmitterUserID,
		Status:          models.StatusPending,
		SubmittedAt:     utils.NowISO(),
		GameData: models.GameData{
			GameNameAliases: req.Aliases,
			Genres:          req.Genres,
			Platforms:       req.Platforms,
			TimingMethod:    timingMethod,
			IsModded:        req.IsModded,
			BaseGame:        req.BaseGame,
			CharacterColumn: models.CharacterColumn{
				Enabled: req.CharacterEnabled,
				Label:   characterLabel,
			},
			CharactersData:   req.Characters,
			ChallengesData:   normalizeOptions(req.Challenges),
			RestrictionsData: normalizeOptions(req.Restrictions),
			GlitchesData:     normalizeOptions(req.Glitches),
			FullRuns:         normalizeOptions(req.FullRunCategories),
			MiniChallenges:   normalizeOptions(req.MiniChallenges),
			GeneralRules:     req.GeneralRules,
			Description:      req.Description,
		},
	}

	result := s.Store.Insert("pending_games", row)
	if !result.OK {
		log.Printf("❌ [SUBMIT] game insert failed (%d): %s", result.Status, string(result.Data))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to save game submission"})
	}

	s.Audit.Record("submitted", "game", gameID, "public", gameName)
	s.Notifier.Dispatch("games", Embed{
		Title: "🎮 New Game Submitted",
		Color: ColorGame,
		Fields: []EmbedField{
			{Name: "Game", Value: gameName, Inline: true},
			{Name: "ID", Value: gameID, Inline: true},
			{Name: "Categories", Value: categoryCount(req.FullRunCategories), Inline: true},
		},
	})

	return c.JSON(fiber.Map{
		"ok":      true,
		"game_id": gameID,
		"message": "Game submitted for review",
	})
}

// hasRows reports whether a select result body holds at least one row.
func hasRows(data json.RawMessage) bool {
	var rows []json.RawMessage
	if err := json.Unmarshal(data, &rows); err != nil {
		return false
	}
	return len(rows) > 0
}

func categoryCount(fullRuns []models.CategoryOption) string {
	return strconv.Itoa(len(fullRuns)) + " full runs"
}

// normalizeOptions fills in slugs for options that arrived as bare labels, so
// the stored payload is fully resolved.
func normalizeOptions(options []models.CategoryOption) []models.CategoryOption {
	out := make([]models.CategoryOption, len(options))
	for i, opt := range options {
		out[i] = models.CategoryOption{Slug: opt.ResolvedSlug(), Label: opt.ResolvedLabel()}
	}
	return out
}
