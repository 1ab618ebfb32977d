// Copyright 2024-2026 Aiku AI

package bot

import (
	"fmt"
	"html"
	"sort"
	"strings"

	"maunium.net/go/mautrix/id"
)

// Accumulator collects reply fragments for one incoming message. The
// notice channel holds plain text lines (conversions, repo links,
// keyword links, expansions); the formatted channel holds user mentions
// rendered as parallel plain and HTML lists. The two channels are
// independent and a fragment type never appears in both.
type Accumulator struct {
	notice     []string
	mentions   []id.UserID
	mentionSet map[id.UserID]struct{}
}

// NewAccumulator returns an empty accumulator scoped to one message.
func NewAccumulator() *Accumulator {
	return &Accumulator{}
}

// AddNotice appends lines to the notice channel in order.
func (a *Accumulator) AddNotice(lines ...string) {
	a.notice = append(a.notice, lines...)
}

// AddMentions adds users to the formatted mention set. Duplicates are
// collapsed; insertion order is not preserved (rendering sorts).
func (a *Accumulator) AddMentions(users ...id.UserID) {
	if a.mentionSet == nil {
		a.mentionSet = make(map[id.UserID]struct{})
	}
	for _, u := range users {
		if _, ok := a.mentionSet[u]; ok {
			continue
		}
		a.mentionSet[u] = struct{}{}
		a.mentions = append(a.mentions, u)
	}
}

// HasNotice reports whether any notice fragment was accumulated.
func (a *Accumulator) HasNotice() bool {
	return len(a.notice) > 0
}

// HasFormatted reports whether any mention was accumulated.
func (a *Accumulator) HasFormatted() bool {
	return len(a.mentions) > 0
}

// RenderNotice joins the notice lines with newlines and trims the result.
func (a *Accumulator) RenderNotice() string {
	return strings.TrimSpace(strings.Join(a.notice, "\n"))
}

// RenderFormatted renders the mention set as a plain list and an HTML
// list of matrix.to anchors, in sorted user ID order.
func (a *Accumulator) RenderFormatted() (plain, html string) {
	return MentionList(a.mentions)
}

// MentionList renders users as parallel plain and HTML mention lists.
// Users are sorted so the output is deterministic regardless of the
// order triggers resolved in.
func MentionList(users []id.UserID) (plain, htmlOut string) {
	sorted := make([]id.UserID, len(users))
	copy(sorted, users)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })

	plainParts := make([]string, len(sorted))
	htmlParts := make([]string, len(sorted))
	for i, u := range sorted {
		name := localpart(u)
		plainParts[i] = name
		htmlParts[i] = fmt.Sprintf(`<a href="https://matrix.to/#/%s">%s</a>`,
			html.EscapeString(string(u)), html.EscapeString(name))
	}
	return strings.Join(plainParts, ", "), strings.Join(htmlParts, ", ")
}
