// files/run.go
package files

import (
	"strings"

	"crc-submission-proxy/models"
	"crc-submission-proxy/utils"
)

// BuildRunFile serializes an approved run into its front-matter file. Field
// order is fixed so the committed history diffs stay stable.
func BuildRunFile(run models.RunSubmission) string {
	lines := []string{"---"}

	lines = append(lines, "game_id: "+yamlQuote(run.GameID))
	lines = append(lines, "runner_id: "+yamlQuote(run.RunnerID))
	lines = append(lines, "category_slug: "+yamlQuote(run.CategorySlug))
	lines = append(lines, "video_url: "+yamlQuote(run.VideoURL))

	date := run.DateCompleted
	if date == "" {
		date = utils.Today()
	}
	date = strings.ReplaceAll(date, "/", "-")
	lines = append(lines, "date: "+yamlQuote(date))

	lines = yamlList(lines, "standard_challenges", run.StandardChallenges)

	if run.CommunityChallenge != "" {
		lines = append(lines, "community_challenge: "+yamlQuote(run.CommunityChallenge))
	} else {
		lines = append(lines, "community_challenge:")
	}

	if run.Character != "" {
		lines = append(lines, "character: "+yamlQuote(run.Character))
	}
	if run.GlitchID != "" {
		lines = append(lines, "glitch_id: "+yamlQuote(run.GlitchID))
	}

	if len(run.Restrictions) > 0 {
		lines = yamlList(lines, "restrictions", run.Restrictions)
	}

	if run.RunTime != "" {
		lines = append(lines, "time_primary: "+yamlQuote(run.RunTime))
	}
	if run.TimingMethodPrimary != "" {
		lines = append(lines, "timing_method_primary: "+yamlQuote(run.TimingMethodPrimary))
	}

	if len(run.AdditionalRunners) > 0 {
		lines = append(lines, "additional_runners:")
		for _, ar := range run.AdditionalRunners {
			lines = append(lines, "  - runner_id: "+yamlQuote(ar.RunnerID))
			if ar.Character != "" {
				lines = append(lines, "    character: "+yamlQuote(ar.Character))
			}
			status := ar.Status
			if status == "" {
				status = "pending_confirmation"
			}
			lines = append(lines, "    status: "+yamlQuote(status))
		}
	}

	lines = append(lines, "verified: false")

	submissionID := run.SubmissionID
	if submissionID == "" {
		submissionID = utils.NewSubmissionID()
	}
	lines = append(lines, "submission_id: "+yamlQuote(submissionID))

	submittedAt := run.SubmittedAt
	if submittedAt == "" {
		submittedAt = utils.NowISO()
	}
	lines = append(lines, "submitted_at: "+yamlQuote(submittedAt))

	lines = append(lines, "---")
	return strings.Join(lines, "\n")
}

// BuildRunFilename derives the run's file name:
// {date}__{game_id}__{runner_id}__{category_slug}__01.md. The sequence stays
// at 01; a true collision surfaces as a duplicate-path error from the commit
// host.
func BuildRunFilename(run models.RunSubmission) string {
	date := run.DateCompleted
	if date == "" {
		date = utils.Today()
	}
	date = strings.ReplaceAll(date, "/", "-")

	return date + "__" + utils.Slugify(run.GameID) +
		"__" + utils.Slugify(run.RunnerID) +
		"__" + utils.Slugify(run.CategorySlug) + "__01.md"
}
