// Copyright 2024-2026 Aiku AI

package bot

import (
	"strings"

	"maunium.net/go/mautrix/id"
)

// matchCorrection checks the configured misspelling variants in order
// and builds a correction from the first one found in the text. The
// correction template's two "{}" slots are filled left-to-right with
// the sender's localpart and the matched variant text. Later variants
// are not checked once one matches.
func matchCorrection(cfg *Config, text string, sender id.UserID) (string, bool) {
	for _, variant := range cfg.IncorrectSpellings {
		haystack, needle := text, variant.Text
		if !variant.CaseSensitive {
			haystack = strings.ToLower(text)
			needle = strings.ToLower(needle)
		}
		if !strings.Contains(haystack, needle) {
			continue
		}
		correction := strings.Replace(cfg.CorrectionText, "{}", localpart(sender), 1)
		correction = strings.Replace(correction, "{}", variant.Text, 1)
		return correction, true
	}
	return "", false
}
