// Copyright 2024-2026 Aiku AI

package bot

import "strings"

// Help text per sub-topic, keyed lowercase. The empty key is the
// overview shown for a bare !help.
var helpTopics = map[string]string{
	"": "Triggers: quantities like 22km convert units, repo#123 links issues, " +
		"keyword@item posts shortcuts, %group pings a group, $name expands text.\n" +
		"Commands: !convert <quantity><unit>, !help [topic], !ban <user> [reason].\n" +
		"Topics: convert, github, link, ping, expand, spellcheck, ban",
	"convert": "Write a quantity directly against a unit (22km, 70f, 45mph) anywhere in a " +
		"message, or use !convert <quantity><unit>. Supported units cover length, mass, " +
		"temperature and velocity; conversions are bidirectional.",
	"github": "Write <repo>#<number> (for example jf#1234) to link the matching issue or " +
		"pull request. Repo shorthands are configured server-side.",
	"link": "Write <keyword>@<item> to post a configured URL shortcut. Both the keyword " +
		"and the item must be configured.",
	"ping": "Write %<group> to mention every member of a configured group. Only " +
		"authorized users can ping groups; you are left out of pings you send unless " +
		"you are the only member.",
	"expand": "Write $<name> to expand a configured text snippet into the reply.",
	"spellcheck": "Common misspellings get a gentle correction, at most once per room " +
		"every five minutes.",
	"ban": "!ban <user id> [reason] bans the user from the configured rooms. Admins only.",
}

// lookupHelp resolves an optional sub-topic case-insensitively. ok is
// false for unrecognized topics.
func lookupHelp(topic string) (string, bool) {
	text, ok := helpTopics[strings.ToLower(strings.TrimSpace(topic))]
	return text, ok
}
