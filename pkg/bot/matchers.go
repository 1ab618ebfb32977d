// Copyright 2024-2026 Aiku AI

package bot

import (
	"regexp"
	"sort"
	"strconv"
	"strings"

	"maunium.net/go/mautrix/id"
)

// Commandless trigger patterns. Each matcher is a pure function over
// (cleaned text, config); "no match" is a false ok, never an empty
// result.
var (
	repoRefRE   = regexp.MustCompile(`([A-Za-z][A-Za-z0-9_.-]*)#(\d+)`)
	keywordRE   = regexp.MustCompile(`([A-Za-z][A-Za-z0-9_-]*)@([A-Za-z0-9][A-Za-z0-9_.-]*)`)
	groupPingRE = regexp.MustCompile(`%([A-Za-z0-9][A-Za-z0-9_-]*)`)
	expansionRE = regexp.MustCompile(`\$([A-Za-z0-9][A-Za-z0-9_-]*)`)
)

// repoRef is one "<shorthand>#<number>" occurrence resolved against the
// configured shorthand map.
type repoRef struct {
	Repo   Repo
	Number int
}

// matchRepoRefs resolves repo shorthand references in source order.
// Unknown shorthands are dropped silently. Lookup is case-insensitive.
func matchRepoRefs(cfg *Config, text string) (refs []repoRef, ok bool) {
	for _, m := range repoRefRE.FindAllStringSubmatch(text, -1) {
		repo, known := cfg.repos[strings.ToLower(m[1])]
		if !known {
			continue
		}
		number, err := strconv.Atoi(m[2])
		if err != nil {
			continue
		}
		refs = append(refs, repoRef{Repo: repo, Number: number})
	}
	return refs, len(refs) > 0
}

// matchKeywordLinks resolves "keyword@item" occurrences. The keyword
// must be an authorized linker; the item is looked up case-sensitively.
func matchKeywordLinks(cfg *Config, text string) (urls []string, ok bool) {
	for _, m := range keywordRE.FindAllStringSubmatch(text, -1) {
		if _, authorized := cfg.linkers[m[1]]; !authorized {
			continue
		}
		url, known := cfg.Links[m[2]]
		if !known {
			continue
		}
		urls = append(urls, url)
	}
	return urls, len(urls) > 0
}

// matchGroupPings resolves "%group" occurrences into the union of the
// referenced user sets. The sender must be authorized or the matcher
// yields nothing. When the union has more than one member the sender is
// removed so pinging a group never pings yourself, unless you are the
// sole resolved recipient.
func matchGroupPings(cfg *Config, text string, sender id.UserID) (users []id.UserID, ok bool) {
	if _, authorized := cfg.groupPingUsers[sender]; !authorized {
		return nil, false
	}
	set := make(map[id.UserID]struct{})
	for _, m := range groupPingRE.FindAllStringSubmatch(text, -1) {
		for _, u := range cfg.groupPings[m[1]] {
			set[u] = struct{}{}
		}
	}
	if len(set) == 0 {
		return nil, false
	}
	if len(set) > 1 {
		delete(set, sender)
	}
	users = make([]id.UserID, 0, len(set))
	for u := range set {
		users = append(users, u)
	}
	sort.Slice(users, func(i, j int) bool { return users[i] < users[j] })
	return users, true
}

// matchExpansions resolves "$name" occurrences against the expansion
// map, appending the configured text verbatim in match order.
func matchExpansions(cfg *Config, text string) (expanded []string, ok bool) {
	for _, m := range expansionRE.FindAllStringSubmatch(text, -1) {
		if exp, known := cfg.TextExpansions[m[1]]; known {
			expanded = append(expanded, exp)
		}
	}
	return expanded, len(expanded) > 0
}
