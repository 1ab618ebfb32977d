// Copyright 2024-2026 Aiku AI

package bot

import (
	"context"
	"errors"

	"github.com/rs/zerolog"
	"maunium.net/go/mautrix"
	"maunium.net/go/mautrix/event"
	"maunium.net/go/mautrix/id"
)

// Gateway delivers finished actions to the messaging transport. Every
// method returns the transport error as-is; callers log and move on,
// nothing is retried.
type Gateway interface {
	SendNotice(ctx context.Context, room id.RoomID, text string) error
	SendFormatted(ctx context.Context, room id.RoomID, plain, html string) error
	SendPlainText(ctx context.Context, room id.RoomID, text string) error
	AcceptInvite(ctx context.Context, room id.RoomID) error
	RejectInvite(ctx context.Context, room id.RoomID) error
	Ban(ctx context.Context, user id.UserID, reason string, rooms []id.RoomID) error
}

// MatrixGateway implements Gateway over a mautrix client.
type MatrixGateway struct {
	client *mautrix.Client
}

var _ Gateway = (*MatrixGateway)(nil)

// NewMatrixGateway wraps a logged-in mautrix client.
func NewMatrixGateway(client *mautrix.Client) *MatrixGateway {
	return &MatrixGateway{client: client}
}

func (g *MatrixGateway) SendNotice(ctx context.Context, room id.RoomID, text string) error {
	_, err := g.client.SendMessageEvent(ctx, room, event.EventMessage, &event.MessageEventContent{
		MsgType: event.MsgNotice,
		Body:    text,
	})
	return err
}

func (g *MatrixGateway) SendFormatted(ctx context.Context, room id.RoomID, plain, html string) error {
	_, err := g.client.SendMessageEvent(ctx, room, event.EventMessage, &event.MessageEventContent{
		MsgType:       event.MsgText,
		Body:          plain,
		Format:        event.FormatHTML,
		FormattedBody: html,
	})
	return err
}

func (g *MatrixGateway) SendPlainText(ctx context.Context, room id.RoomID, text string) error {
	_, err := g.client.SendMessageEvent(ctx, room, event.EventMessage, &event.MessageEventContent{
		MsgType: event.MsgText,
		Body:    text,
	})
	return err
}

func (g *MatrixGateway) AcceptInvite(ctx context.Context, room id.RoomID) error {
	_, err := g.client.JoinRoomByID(ctx, room)
	return err
}

func (g *MatrixGateway) RejectInvite(ctx context.Context, room id.RoomID) error {
	_, err := g.client.LeaveRoom(ctx, room)
	return err
}

func (g *MatrixGateway) Ban(ctx context.Context, user id.UserID, reason string, rooms []id.RoomID) error {
	var errs []error
	for _, room := range rooms {
		if _, err := g.client.BanUser(ctx, room, &mautrix.ReqBanUser{
			UserID: user,
			Reason: reason,
		}); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// eventQueueSize bounds the listener→responder channel. A slow outbound
// delivery must not stall sync ingestion; overflow drops the event (a
// lost reply is acceptable, the sync cursor still advances).
const eventQueueSize = 64

// Bot connects the sync stream to the dispatcher and the gateway. The
// listener (sync loop) and responder run as separate goroutines joined
// by a bounded channel.
type Bot struct {
	client     *mautrix.Client
	dispatcher *Dispatcher
	gateway    Gateway
	events     chan RoomEvent
	log        zerolog.Logger
}

// New wires a bot from its collaborators.
func New(client *mautrix.Client, dispatcher *Dispatcher, gateway Gateway, log zerolog.Logger) *Bot {
	return &Bot{
		client:     client,
		dispatcher: dispatcher,
		gateway:    gateway,
		events:     make(chan RoomEvent, eventQueueSize),
		log:        log.With().Str("component", "bot").Logger(),
	}
}

// Run starts the responder and blocks in the sync loop until ctx is
// cancelled or sync fails fatally.
func (b *Bot) Run(ctx context.Context) error {
	syncer := b.client.Syncer.(*mautrix.DefaultSyncer)
	syncer.OnEventType(event.EventMessage, b.onMessage)
	syncer.OnEventType(event.StateMember, b.onMember)

	go b.respond(ctx)

	b.log.Info().Str("user_id", string(b.client.UserID)).Msg("Starting sync")
	err := b.client.SyncWithContext(ctx)
	if err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}

// onMessage decodes a timeline message event and queues it. Only m.text
// is dispatched: media messages carry filenames in Body, and notices
// are what bots emit, so matching either would misfire. The queue is
// bounded; when full the event is dropped so ingestion never blocks on
// delivery.
func (b *Bot) onMessage(ctx context.Context, evt *event.Event) {
	content, ok := evt.Content.Parsed.(*event.MessageEventContent)
	if !ok || content.MsgType != event.MsgText {
		return
	}
	msg := Message{
		Room:          evt.RoomID,
		Sender:        evt.Sender,
		Body:          content.Body,
		Format:        content.Format,
		FormattedBody: content.FormattedBody,
		Edit:          content.RelatesTo.GetReplaceID() != "",
		Reply:         content.RelatesTo.GetReplyTo() != "",
	}
	b.enqueue(msg)
}

// onMember queues invites addressed to the bot's own account.
func (b *Bot) onMember(ctx context.Context, evt *event.Event) {
	if evt.GetStateKey() != string(b.client.UserID) {
		return
	}
	content, ok := evt.Content.Parsed.(*event.MemberEventContent)
	if !ok || content.Membership != event.MembershipInvite {
		return
	}
	b.enqueue(Invite{Room: evt.RoomID, Sender: evt.Sender})
}

func (b *Bot) enqueue(evt RoomEvent) {
	select {
	case b.events <- evt:
	default:
		b.log.Warn().Msg("Event queue full, dropping event")
	}
}

// respond consumes queued events, dispatches them and delivers the
// resulting actions. Delivery failures are logged and never retried; a
// notice that went out stays out even if a later action for the same
// message fails.
func (b *Bot) respond(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case evt := <-b.events:
			switch e := evt.(type) {
			case Message:
				actions, err := b.dispatcher.Dispatch(ctx, e)
				if err != nil {
					b.log.Warn().Err(err).
						Str("room_id", string(e.Room)).
						Str("sender", string(e.Sender)).
						Msg("Dispatch rejected message")
					continue
				}
				for _, action := range actions {
					b.deliver(ctx, action)
				}
			case Invite:
				b.deliver(ctx, b.dispatcher.DispatchInvite(e))
			}
		}
	}
}

func (b *Bot) deliver(ctx context.Context, action Action) {
	var err error
	switch a := action.(type) {
	case Notice:
		err = b.gateway.SendNotice(ctx, a.Room, a.Text)
	case Formatted:
		err = b.gateway.SendFormatted(ctx, a.Room, a.Plain, a.HTML)
	case PlainText:
		err = b.gateway.SendPlainText(ctx, a.Room, a.Text)
		// Corrections are the only plain-text action; the cooldown is
		// recorded after the attempt regardless of the outcome.
		b.dispatcher.NoteCorrectionSent(ctx, a.Room)
	case AcceptInvite:
		err = b.gateway.AcceptInvite(ctx, a.Room)
	case RejectInvite:
		err = b.gateway.RejectInvite(ctx, a.Room)
	case Ban:
		err = b.gateway.Ban(ctx, a.User, a.Reason, a.Rooms)
	}
	if err != nil {
		b.log.Error().Err(err).Type("action", action).Msg("Delivery failed")
	}
}
