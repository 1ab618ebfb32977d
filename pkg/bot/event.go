// Copyright 2024-2026 Aiku AI

package bot

import (
	"strings"

	"maunium.net/go/mautrix/event"
	"maunium.net/go/mautrix/id"
)

// Message is a decoded room message event as read from the sync stream.
// It is immutable once constructed.
type Message struct {
	Room          id.RoomID
	Sender        id.UserID
	Body          string
	Format        event.Format
	FormattedBody string
	// Edit is set when the event carries a replacement relation. Edits
	// never trigger any matcher.
	Edit bool
	// Reply is set when the event is a rich reply. Replies are processed
	// normally except that the spellcheck fallback never fires on them.
	Reply bool
}

// Invite is a decoded room invite addressed to the bot's own account.
type Invite struct {
	Room   id.RoomID
	Sender id.UserID
}

func (Message) isRoomEvent() {}
func (Invite) isRoomEvent()  {}

// RoomEvent is the closed set of decoded events the listener hands to
// the responder: either a Message or an Invite.
type RoomEvent interface {
	isRoomEvent()
}

// Action is the closed set of outbound effects a dispatch can produce.
// A single incoming message may yield several actions (for example a
// notice and a formatted mention message).
type Action interface {
	isAction()
}

// Notice is a plain informational reply (m.notice).
type Notice struct {
	Room id.RoomID
	Text string
}

// Formatted is a reply requiring rich rendering, carrying parallel
// plain-text and HTML bodies (used for user mentions).
type Formatted struct {
	Room  id.RoomID
	Plain string
	HTML  string
}

// PlainText is an ordinary text reply (m.text), used for spellcheck
// corrections.
type PlainText struct {
	Room id.RoomID
	Text string
}

// AcceptInvite joins the room the bot was invited to.
type AcceptInvite struct {
	Room id.RoomID
}

// RejectInvite leaves (declines) the room the bot was invited to.
type RejectInvite struct {
	Room id.RoomID
}

// Ban bans a user from the configured ban rooms.
type Ban struct {
	User   id.UserID
	Reason string
	Rooms  []id.RoomID
}

func (Notice) isAction()       {}
func (Formatted) isAction()    {}
func (PlainText) isAction()    {}
func (AcceptInvite) isAction() {}
func (RejectInvite) isAction() {}
func (Ban) isAction()          {}

// localpart returns the localpart of a Matrix user ID, or the full ID
// if it does not look like one.
func localpart(user id.UserID) string {
	s := strings.TrimPrefix(string(user), "@")
	if idx := strings.IndexByte(s, ':'); idx >= 0 {
		return s[:idx]
	}
	return s
}
