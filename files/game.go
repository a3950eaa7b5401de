// files/game.go
package files

import (
	"strings"

	"crc-submission-proxy/models"
	"crc-submission-proxy/utils"
)

// BuildGameFile serializes an approved game submission into its game page
// file. The section order mirrors how the hand-maintained game files are laid
// out, comments included.
func BuildGameFile(game models.GameSubmission) string {
	gd := game.GameData
	lines := []string{"---"}

	lines = append(lines, "layout: game")
	lines = append(lines, "game_id: "+yamlQuote(game.GameID))
	lines = append(lines, `status: "Active"`)
	lines = append(lines, "reviewers: []")

	if gd.IsModded {
		lines = append(lines, "")
		lines = append(lines, "# Modded game info")
		lines = append(lines, "is_modded: true")
		if gd.BaseGame != "" {
			lines = append(lines, "base_game: "+yamlQuote(gd.BaseGame))
		}
	}

	lines = append(lines, "")
	lines = append(lines, "game_name: "+yamlQuote(game.GameName))
	lines = yamlList(lines, "game_name_aliases", gd.GameNameAliases)

	if len(gd.Genres) > 0 {
		lines = append(lines, "")
		lines = append(lines, "genres:")
		for _, g := range gd.Genres {
			lines = append(lines, "  - "+utils.Slugify(g))
		}
	} else {
		lines = append(lines, "genres: []")
	}

	if len(gd.Platforms) > 0 {
		lines = append(lines, "")
		lines = append(lines, "platforms:")
		for _, p := range gd.Platforms {
			lines = append(lines, "  - "+utils.Slugify(p))
		}
	} else {
		lines = append(lines, "platforms: []")
	}

	initial := "x"
	if game.GameID != "" {
		initial = strings.ToLower(game.GameID[:1])
	}
	lines = append(lines, "")
	lines = append(lines, "cover: /assets/img/games/"+initial+"/"+game.GameID+".jpg")
	lines = append(lines, "cover_position: center")

	lines = append(lines, "")
	lines = append(lines, "tabs:")
	lines = append(lines, "  overview: true")
	lines = append(lines, "  runs: true")
	lines = append(lines, "  rules: true")
	lines = append(lines, "  history: true")
	lines = append(lines, "  resources: true")
	lines = append(lines, "  forum: true")

	timing := gd.TimingMethod
	if timing == "" {
		timing = "RTA"
	}
	lines = append(lines, "")
	lines = append(lines, "timing_method: "+yamlQuote(timing))
	if strings.Contains(strings.ToUpper(timing), "RTA") {
		lines = append(lines, "rta_timing: true")
	} else {
		lines = append(lines, "rta_timing: false")
	}

	lines = append(lines, "")
	charLabel := gd.CharacterColumn.Label
	if charLabel == "" {
		charLabel = "Character"
	}
	lines = append(lines, "character_column:")
	if gd.CharacterColumn.Enabled {
		lines = append(lines, "  enabled: true")
	} else {
		lines = append(lines, "  enabled: false")
	}
	lines = append(lines, "  label: "+yamlQuote(charLabel))

	if gd.CharacterColumn.Enabled && len(gd.CharactersData) > 0 {
		lines = append(lines, "  options:")
		for _, ch := range gd.CharactersData {
			label := ch.ResolvedLabel()
			lines = append(lines, "    - slug: "+yamlQuote(utils.Slugify(label)))
			lines = append(lines, "      label: "+yamlQuote(label))
		}
	}

	if gd.GeneralRules != "" {
		lines = append(lines, "")
		lines = append(lines, "general_rules: |")
		for _, line := range strings.Split(gd.GeneralRules, "\n") {
			lines = append(lines, "  "+line)
		}
	}

	lines = append(lines, "")
	lines = append(lines, "# Challenge types")
	lines = optionList(lines, "challenges_data", gd.ChallengesData, true)

	if len(gd.RestrictionsData) > 0 {
		lines = append(lines, "")
	}
	lines = optionList(lines, "restrictions_data", gd.RestrictionsData, true)

	if len(gd.GlitchesData) > 0 {
		lines = append(lines, "")
	}
	lines = optionList(lines, "glitches_data", gd.GlitchesData, false)

	lines = append(lines, "")
	lines = append(lines, "# Categories")
	lines = optionList(lines, "full_runs", gd.FullRuns, true)

	if len(gd.MiniChallenges) > 0 {
		lines = append(lines, "")
	}
	lines = optionList(lines, "mini_challenges", gd.MiniChallenges, true)

	lines = append(lines, "player_made: []")

	lines = append(lines, "")
	lines = append(lines, "# Credits")
	submitter := game.SubmitterHandle
	if submitter == "" {
		submitter = game.SubmitterRunnerID
	}
	if submitter != "" {
		lines = append(lines, "credits:")
		lines = append(lines, "  - name: "+yamlQuote(submitter))
		if game.SubmitterRunnerID != "" {
			lines = append(lines, "    runner_id: "+yamlQuote(game.SubmitterRunnerID))
		}
		lines = append(lines, `    role: "Game submission"`)
	} else {
		lines = append(lines, "credits: []")
	}

	lines = append(lines, "---")
	lines = append(lines, "")
	description := gd.Description
	if description == "" {
		description = game.GameName + " challenge runs."
	}
	lines = append(lines, description)

	return strings.Join(lines, "\n")
}

// optionList emits a slug/label block list under key, or "key: []" when empty.
func optionList(lines []string, key string, options []models.CategoryOption, withDescription bool) []string {
	if len(options) == 0 {
		return append(lines, key+": []")
	}
	lines = append(lines, key+":")
	for _, opt := range options {
		lines = append(lines, "  - slug: "+yamlQuote(opt.ResolvedSlug()))
		lines = append(lines, "    label: "+yamlQuote(opt.ResolvedLabel()))
		if withDescription {
			lines = append(lines, `    description: ""`)
		}
	}
	return lines
}
