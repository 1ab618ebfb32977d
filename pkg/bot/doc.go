// Copyright 2024-2026 Aiku AI

// Package bot implements a Matrix room automation bot: it watches room
// message and invite events and reacts to plain-text triggers with reply
// messages.
//
// The core of the package is the dispatch pipeline: an incoming
// [Message] is checked against an ordered set of independent trigger
// matchers (unit conversions, GitHub issue references, keyword links,
// group pings, text expansions), their fragments are merged into an
// [Accumulator], and the [Dispatcher] turns the accumulator into zero or
// more outbound [Action] values. A spellcheck correction is only
// considered when no other matcher produced output, and is throttled by
// a persisted per-room cooldown.
//
// # Reply Channels
//
// Replies go out on two independent channels: a plain "notice" built
// from newline-joined fragment lines, and a "formatted" message carrying
// parallel plain-text and HTML renderings of user mentions. Both may be
// emitted for the same incoming message.
//
// # Collaborators
//
// The dispatcher is transport-agnostic. Delivery goes through the
// [Gateway] interface, GitHub lookups through [Searcher], and cooldown
// persistence through [CooldownStore]. [Bot] wires these to a live
// mautrix client and runs the listener/responder loops.
package bot
