// files/runner.go
package files

import (
	"sort"
	"strings"

	"crc-submission-proxy/models"
	"crc-submission-proxy/utils"
)

const defaultAvatar = "/assets/img/site/default-runner.png"

// BuildRunnerFile serializes an approved profile into its runner page file.
// Socials are emitted in sorted key order to keep the output deterministic.
func BuildRunnerFile(profile models.ProfileSubmission) string {
	lines := []string{"---"}

	lines = append(lines, "layout: runner")
	lines = append(lines, "runner_id: "+yamlQuote(profile.RunnerID))

	name := profile.DisplayName
	if name == "" {
		name = profile.RunnerID
	}
	lines = append(lines, "runner_name: "+yamlQuote(name))

	if profile.StatusMessage != "" {
		lines = append(lines, "status: "+yamlQuote(profile.StatusMessage))
	}

	avatar := profile.AvatarURL
	if avatar == "" {
		avatar = defaultAvatar
	}
	lines = append(lines, "avatar: "+yamlQuote(avatar))

	keys := make([]string, 0, len(profile.Socials))
	for k, v := range profile.Socials {
		if v != "" {
			keys = append(keys, k)
		}
	}
	if len(keys) > 0 {
		sort.Strings(keys)
		lines = append(lines, "socials:")
		for _, k := range keys {
			lines = append(lines, "  "+k+": "+yamlQuote(profile.Socials[k]))
		}
	}

	lines = append(lines, "badges: []")
	lines = yamlList(lines, "games", profile.Games)

	lines = append(lines, "")
	lines = append(lines, "approval_status: approved")
	if profile.ApprovedBy != "" {
		lines = append(lines, "approved_by: "+yamlQuote(profile.ApprovedBy))
	}
	lines = append(lines, "approved_at: "+utils.Today())

	lines = append(lines, "---")
	lines = append(lines, "")
	lines = append(lines, profile.Bio)

	return strings.Join(lines, "\n")
}
