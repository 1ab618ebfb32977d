// Copyright 2024-2026 Aiku AI

package bot

import (
	"context"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"maunium.net/go/mautrix/id"
)

// CorrectionCooldown is the minimum interval between spellcheck
// corrections in the same room.
const CorrectionCooldown = 300 * time.Second

// Searcher resolves a repository issue or pull request number to its
// canonical URL.
type Searcher interface {
	Search(ctx context.Context, owner, repo string, number int) (string, error)
}

// CooldownStore persists per-room correction timestamps.
type CooldownStore interface {
	LastCorrection(ctx context.Context, room id.RoomID) (time.Time, bool, error)
	SetLastCorrection(ctx context.Context, room id.RoomID, at time.Time) error
}

// Dispatcher evaluates incoming messages against the trigger rules and
// produces outbound actions. It holds no per-message state; every
// dispatch reads one config snapshot and builds a fresh accumulator.
type Dispatcher struct {
	self      id.UserID
	config    func() *Config
	units     UnitTable
	searcher  Searcher
	cooldowns CooldownStore
	now       func() time.Time
	log       zerolog.Logger
}

// NewDispatcher builds a dispatcher. config is called once per dispatch
// to obtain the active snapshot; units is the injected conversion
// table. searcher may be nil when no repos are configured.
func NewDispatcher(self id.UserID, config func() *Config, units UnitTable, searcher Searcher, cooldowns CooldownStore, log zerolog.Logger) *Dispatcher {
	return &Dispatcher{
		self:      self,
		config:    config,
		units:     units,
		searcher:  searcher,
		cooldowns: cooldowns,
		now:       time.Now,
		log:       log.With().Str("component", "dispatch").Logger(),
	}
}

// Dispatch maps one incoming message to its outbound actions. Messages
// from the bot itself and edits produce nothing. The only returned
// error is ErrUnsupportedFormat from the commandless path; all other
// failures degrade to missing fragments.
func (d *Dispatcher) Dispatch(ctx context.Context, msg Message) ([]Action, error) {
	if msg.Sender == d.self || msg.Edit {
		return nil, nil
	}
	if strings.HasPrefix(msg.Body, "!") {
		return d.dispatchCommand(msg), nil
	}
	return d.dispatchCommandless(ctx, msg)
}

// DispatchInvite decides an invite: admins get the bot, everyone else
// gets declined.
func (d *Dispatcher) DispatchInvite(invite Invite) Action {
	if d.config().IsAdmin(invite.Sender) {
		return AcceptInvite{Room: invite.Room}
	}
	return RejectInvite{Room: invite.Room}
}

func (d *Dispatcher) dispatchCommand(msg Message) []Action {
	cfg := d.config()
	command, args, _ := strings.Cut(strings.TrimPrefix(msg.Body, "!"), " ")
	switch strings.ToLower(command) {
	case "convert":
		// Commands are plain text only; rich formatting means the body
		// was mangled by a client and is not trusted.
		if msg.Format != "" {
			return nil
		}
		lines, ok := matchConversions(d.units, cfg.unitExclusions, args, 1)
		if !ok {
			return nil
		}
		return []Action{Notice{Room: msg.Room, Text: lines[0]}}
	case "help":
		if len(cfg.helpRooms) > 0 {
			if _, allowed := cfg.helpRooms[msg.Room]; !allowed {
				return nil
			}
		}
		text, ok := lookupHelp(args)
		if !ok {
			return nil
		}
		return []Action{Notice{Room: msg.Room, Text: text}}
	case "ban":
		return d.banCommand(cfg, msg.Sender, args)
	default:
		return nil
	}
}

// banCommand parses "!ban <user> [reason…]". The feature is enabled
// only when ban rooms are configured; parse failures are silent.
func (d *Dispatcher) banCommand(cfg *Config, sender id.UserID, args string) []Action {
	if len(cfg.banRooms) == 0 || !cfg.IsAdmin(sender) {
		return nil
	}
	fields := strings.Fields(args)
	if len(fields) == 0 {
		return nil
	}
	target := fields[0]
	if !strings.HasPrefix(target, "@") || !strings.Contains(target, ":") {
		return nil
	}
	reason := strings.TrimSpace(strings.Join(fields[1:], " "))
	return []Action{Ban{
		User:   id.UserID(target),
		Reason: reason,
		Rooms:  cfg.banRooms,
	}}
}

func (d *Dispatcher) dispatchCommandless(ctx context.Context, msg Message) ([]Action, error) {
	cfg := d.config()
	text, err := CleanBody(msg)
	if err != nil {
		return nil, err
	}

	acc := NewAccumulator()
	if cfg.EnableUnitConversions {
		if lines, ok := matchConversions(d.units, cfg.unitExclusions, text, -1); ok {
			acc.AddNotice(lines...)
		}
	}
	if len(cfg.repos) > 0 && d.searcher != nil {
		acc.AddNotice(d.resolveRepoRefs(ctx, cfg, text)...)
	}
	if len(cfg.Links) > 0 {
		if urls, ok := matchKeywordLinks(cfg, text); ok {
			acc.AddNotice(urls...)
		}
	}
	if users, ok := matchGroupPings(cfg, text, msg.Sender); ok {
		acc.AddMentions(users...)
	}
	if expanded, ok := matchExpansions(cfg, text); ok {
		acc.AddNotice(expanded...)
	}

	var actions []Action
	if acc.HasNotice() {
		actions = append(actions, Notice{Room: msg.Room, Text: acc.RenderNotice()})
	}
	if acc.HasFormatted() {
		plain, html := acc.RenderFormatted()
		actions = append(actions, Formatted{Room: msg.Room, Plain: plain, HTML: html})
	}
	if len(actions) == 0 {
		if correction, ok := d.maybeCorrection(ctx, cfg, msg, text); ok {
			actions = append(actions, PlainText{Room: msg.Room, Text: correction})
		}
	}
	return actions, nil
}

// resolveRepoRefs looks up each repo reference remotely, preserving
// textual occurrence order. A failed lookup drops that occurrence only;
// the rest of the message still resolves.
func (d *Dispatcher) resolveRepoRefs(ctx context.Context, cfg *Config, text string) []string {
	refs, ok := matchRepoRefs(cfg, text)
	if !ok {
		return nil
	}
	var urls []string
	for _, ref := range refs {
		url, err := d.searcher.Search(ctx, ref.Repo.Owner, ref.Repo.Name, ref.Number)
		if err != nil {
			d.log.Warn().Err(err).
				Str("owner", ref.Repo.Owner).
				Str("repo", ref.Repo.Name).
				Int("number", ref.Number).
				Msg("Repo lookup failed, dropping occurrence")
			continue
		}
		urls = append(urls, url)
	}
	return urls
}

// maybeCorrection runs the spellcheck fallback. It fires only when no
// other matcher produced output, corrections are enabled, the message
// is not a reply, the room is not excluded and the per-room cooldown
// has elapsed. A clock that moved backwards counts as still cooling
// down.
func (d *Dispatcher) maybeCorrection(ctx context.Context, cfg *Config, msg Message, text string) (string, bool) {
	if !cfg.EnableCorrections || msg.Reply {
		return "", false
	}
	if _, excluded := cfg.correctionExclusion[msg.Room]; excluded {
		return "", false
	}
	last, found, err := d.cooldowns.LastCorrection(ctx, msg.Room)
	if err != nil {
		d.log.Error().Err(err).Str("room_id", string(msg.Room)).Msg("Cooldown read failed, skipping correction")
		return "", false
	}
	if found && d.now().Sub(last) < CorrectionCooldown {
		return "", false
	}
	return matchCorrection(cfg, text, msg.Sender)
}

// NoteCorrectionSent records the cooldown timestamp for a room. The
// responder calls it after every correction send attempt, successful or
// not, so a flaky transport cannot cause repeated sends.
func (d *Dispatcher) NoteCorrectionSent(ctx context.Context, room id.RoomID) {
	if err := d.cooldowns.SetLastCorrection(ctx, room, d.now()); err != nil {
		d.log.Error().Err(err).Str("room_id", string(room)).Msg("Failed to record correction cooldown")
	}
}
