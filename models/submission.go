// models/submission.go
package models

import (
	"encoding/json"

	"crc-submission-proxy/utils"
)

const (
	StatusPending  = "pending"
	StatusVerified = "verified" // approved runs
	StatusApproved = "approved" // approved games/profiles
	StatusRejected = "rejected"
)

// AdditionalRunner is a co-runner entry on a run submission.
type AdditionalRunner struct {
	RunnerID  string `json:"runner_id"`
	Character string `json:"character,omitempty"`
	Status    string `json:"status,omitempty"` // defaults to pending_confirmation in the run file
}

// RunSubmission is a row in the pending_runs table.
type RunSubmission struct {
	ID                  int64              `json:"id,omitempty"`
	GameID              string             `json:"game_id"`
	RunnerID            string             `json:"runner_id"`
	CategoryTier        string             `json:"category_tier"`
	CategorySlug        string             `json:"category_slug"`
	StandardChallenges  []string           `json:"standard_challenges"`
	CommunityChallenge  string             `json:"community_challenge,omitempty"`
	Character           string             `json:"character,omitempty"`
	GlitchID            string             `json:"glitch_id,omitempty"`
	Restrictions        []string           `json:"restrictions"`
	VideoURL            string             `json:"video_url"`
	VideoHost           string             `json:"video_host,omitempty"`
	VideoID             string             `json:"video_id,omitempty"`
	DateCompleted       string             `json:"date_completed,omitempty"`
	RunTime             string             `json:"run_time,omitempty"`
	TimingMethodPrimary string             `json:"timing_method_primary,omitempty"`
	AdditionalRunners   []AdditionalRunner `json:"additional_runners,omitempty"`
	Status              string             `json:"status"`
	SubmissionID        string             `json:"submission_id"`
	SubmittedAt         string             `json:"submitted_at"`
	Source              string             `json:"source,omitempty"`
	GithubFilePath      string             `json:"github_file_path,omitempty"`
}

// CategoryOption is a slug/label pair for game category lists. Submitters may
// send either a bare string or a {slug, label} object; both decode into the
// same value here so nothing downstream re-inspects raw shapes.
type CategoryOption struct {
	Slug  string `json:"slug"`
	Label string `json:"label"`
}

func (o *CategoryOption) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		o.Slug = ""
		o.Label = s
		return nil
	}
	type plain CategoryOption
	var p plain
	if err := json.Unmarshal(data, &p); err != nil {
		return err
	}
	*o = CategoryOption(p)
	return nil
}

// ResolvedSlug falls back to a slugified label when no slug was supplied.
func (o CategoryOption) ResolvedSlug() string {
	if o.Slug != "" {
		return o.Slug
	}
	return utils.Slugify(o.Label)
}

// ResolvedLabel falls back to the slug when no label was supplied.
func (o CategoryOption) ResolvedLabel() string {
	if o.Label != "" {
		return o.Label
	}
	return o.Slug
}

// CharacterColumn configures the optional character column on a game's board.
type CharacterColumn struct {
	Enabled bool   `json:"enabled"`
	Label   string `json:"label"`
}

// GameData is the nested structured payload of a game submission.
type GameData struct {
	GameNameAliases  []string         `json:"game_name_aliases"`
	Genres           []string         `json:"genres"`
	Platforms        []string         `json:"platforms"`
	TimingMethod     string           `json:"timing_method"`
	IsModded         bool             `json:"is_modded"`
	BaseGame         string           `json:"base_game,omitempty"`
	CharacterColumn  CharacterColumn  `json:"character_column"`
	CharactersData   []CategoryOption `json:"characters_data"`
	ChallengesData   []CategoryOption `json:"challenges_data"`
	RestrictionsData []CategoryOption `json:"restrictions_data"`
	GlitchesData     []CategoryOption `json:"glitches_data"`
	FullRuns         []CategoryOption `json:"full_runs"`
	MiniChallenges   []CategoryOption `json:"mini_challenges"`
	GeneralRules     string           `json:"general_rules,omitempty"`
	Description      string           `json:"description,omitempty"`
}

// GameSubmission is a row in the pending_games table.
type GameSubmission struct {
	ID              int64    `json:"id,omitempty"`
	GameID          string   `json:"game_id"`
	GameName        string   `json:"game_name"`
	SubmitterHandle string   `json:"submitter_handle,omitempty"`
	SubmitterUserID string   `json:"submitter_user_id,omitempty"`
	Status          string   `json:"status"`
	SubmittedAt     string   `json:"submitted_at"`
	GameData        GameData `json:"game_data"`

	// Resolved at approval time for the credits block; not a stored column.
	SubmitterRunnerID string `json:"-"`
}

// ProfileSubmission is a row in the pending_profiles table.
type ProfileSubmission struct {
	ID            int64             `json:"id,omitempty"`
	RunnerID      string            `json:"runner_id"`
	DisplayName   string            `json:"display_name,omitempty"`
	StatusMessage string            `json:"status_message,omitempty"`
	AvatarURL     string            `json:"avatar_url,omitempty"`
	Socials       map[string]string `json:"socials,omitempty"`
	Games         []string          `json:"games,omitempty"`
	Bio           string            `json:"bio,omitempty"`
	Status        string            `json:"status"`
	SubmittedAt   string            `json:"submitted_at,omitempty"`

	// Set at approval time for the runner file; not a stored column.
	ApprovedBy string `json:"-"`
}
