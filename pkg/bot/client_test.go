// Copyright 2024-2026 Aiku AI

package bot

import (
	"context"
	"testing"

	"github.com/rs/zerolog"
	"maunium.net/go/mautrix/event"
)

func newMessageEvent(content *event.MessageEventContent) *event.Event {
	return &event.Event{
		RoomID: "!room:example.com",
		Sender: "@alice:example.com",
		Type:   event.EventMessage,
		Content: event.Content{
			Parsed: content,
		},
	}
}

func TestOnMessageQueuesOnlyText(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name    string
		content *event.MessageEventContent
		queued  bool
	}{
		{
			name:    "text message",
			content: &event.MessageEventContent{MsgType: event.MsgText, Body: "22km away"},
			queued:  true,
		},
		{
			name:    "image with trigger-looking filename",
			content: &event.MessageEventContent{MsgType: event.MsgImage, Body: "trip-22km.jpg"},
			queued:  false,
		},
		{
			name:    "file upload",
			content: &event.MessageEventContent{MsgType: event.MsgFile, Body: "jf#1234.log"},
			queued:  false,
		},
		{
			name:    "notice from another bot",
			content: &event.MessageEventContent{MsgType: event.MsgNotice, Body: "22km"},
			queued:  false,
		},
		{
			name:    "emote",
			content: &event.MessageEventContent{MsgType: event.MsgEmote, Body: "runs 22km"},
			queued:  false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			b := New(nil, nil, nil, zerolog.Nop())
			b.onMessage(context.Background(), newMessageEvent(tt.content))

			select {
			case evt := <-b.events:
				if !tt.queued {
					t.Fatalf("event should not have been queued, got %v", evt)
				}
				msg, ok := evt.(Message)
				if !ok {
					t.Fatalf("queued event should be a Message, got %T", evt)
				}
				if msg.Body != tt.content.Body {
					t.Errorf("body: got %q, want %q", msg.Body, tt.content.Body)
				}
			default:
				if tt.queued {
					t.Fatal("expected the event to be queued")
				}
			}
		})
	}
}

func TestOnMessageDecodesRelations(t *testing.T) {
	t.Parallel()
	b := New(nil, nil, nil, zerolog.Nop())
	b.onMessage(context.Background(), newMessageEvent(&event.MessageEventContent{
		MsgType: event.MsgText,
		Body:    "* fixed",
		RelatesTo: &event.RelatesTo{
			Type:    event.RelReplace,
			EventID: "$original:example.com",
		},
	}))

	evt := <-b.events
	msg, ok := evt.(Message)
	if !ok {
		t.Fatalf("queued event should be a Message, got %T", evt)
	}
	if !msg.Edit {
		t.Error("replacement relation should mark the message as an edit")
	}
	if msg.Reply {
		t.Error("a replacement is not a reply")
	}
}
