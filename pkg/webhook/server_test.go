// Copyright 2024-2026 Aiku AI

package webhook

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/rs/zerolog"
	"maunium.net/go/mautrix/id"
)

type sentMessage struct {
	room  id.RoomID
	text  string
	plain string
	html  string
}

// fakeGateway records sends and can be told to fail them.
type fakeGateway struct {
	notices   []sentMessage
	formatted []sentMessage
	fail      bool
}

func (g *fakeGateway) SendNotice(_ context.Context, room id.RoomID, text string) error {
	if g.fail {
		return errors.New("send failed")
	}
	g.notices = append(g.notices, sentMessage{room: room, text: text})
	return nil
}

func (g *fakeGateway) SendFormatted(_ context.Context, room id.RoomID, plain, html string) error {
	if g.fail {
		return errors.New("send failed")
	}
	g.formatted = append(g.formatted, sentMessage{room: room, plain: plain, html: html})
	return nil
}

func (g *fakeGateway) SendPlainText(context.Context, id.RoomID, string) error { return nil }
func (g *fakeGateway) AcceptInvite(context.Context, id.RoomID) error          { return nil }
func (g *fakeGateway) RejectInvite(context.Context, id.RoomID) error          { return nil }
func (g *fakeGateway) Ban(context.Context, id.UserID, string, []id.RoomID) error {
	return nil
}

func newTestHandler(t *testing.T, gateway *fakeGateway) http.HandlerFunc {
	t.Helper()
	srv := NewServer("127.0.0.1:0", "secret", gateway, zerolog.Nop())
	return srv.handleWebhook
}

func post(handler http.HandlerFunc, token, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/webhook", strings.NewReader(body))
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	handler(w, req)
	return w
}

func TestWebhookDeliversNotice(t *testing.T) {
	t.Parallel()
	gateway := &fakeGateway{}
	handler := newTestHandler(t, gateway)

	w := post(handler, "secret", `{"room_id":"!room:example.com","message":"build passed"}`)
	if w.Code != http.StatusNoContent {
		t.Fatalf("status: got %d, want %d (%s)", w.Code, http.StatusNoContent, w.Body.String())
	}
	if len(gateway.notices) != 1 {
		t.Fatalf("expected one notice, got %v", gateway.notices)
	}
	if gateway.notices[0].room != "!room:example.com" || gateway.notices[0].text != "build passed" {
		t.Errorf("notice: got %+v", gateway.notices[0])
	}
	if len(gateway.formatted) != 0 {
		t.Errorf("no pings requested, got formatted sends %v", gateway.formatted)
	}
}

func TestWebhookDeliversPings(t *testing.T) {
	t.Parallel()
	gateway := &fakeGateway{}
	handler := newTestHandler(t, gateway)

	w := post(handler, "secret",
		`{"room_id":"!room:example.com","message":"deploy done","pings":["@carol:example.com","@bob:example.com"]}`)
	if w.Code != http.StatusNoContent {
		t.Fatalf("status: got %d (%s)", w.Code, w.Body.String())
	}
	if len(gateway.formatted) != 1 {
		t.Fatalf("expected one formatted send, got %v", gateway.formatted)
	}
	if gateway.formatted[0].plain != "bob, carol" {
		t.Errorf("ping order should be sorted: got %q", gateway.formatted[0].plain)
	}
	if !strings.Contains(gateway.formatted[0].html, "https://matrix.to/#/@bob:example.com") {
		t.Errorf("html missing mention anchor: %q", gateway.formatted[0].html)
	}
}

func TestWebhookRejectsBadRequests(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name   string
		token  string
		method string
		body   string
		want   int
	}{
		{name: "wrong token", token: "guess", method: http.MethodPost,
			body: `{"room_id":"!r:e.com","message":"x"}`, want: http.StatusUnauthorized},
		{name: "missing token", token: "", method: http.MethodPost,
			body: `{"room_id":"!r:e.com","message":"x"}`, want: http.StatusUnauthorized},
		{name: "wrong method", token: "secret", method: http.MethodGet,
			body: "", want: http.StatusMethodNotAllowed},
		{name: "invalid json", token: "secret", method: http.MethodPost,
			body: `{not json`, want: http.StatusBadRequest},
		{name: "missing room", token: "secret", method: http.MethodPost,
			body: `{"message":"x"}`, want: http.StatusBadRequest},
		{name: "room without bang", token: "secret", method: http.MethodPost,
			body: `{"room_id":"room","message":"x"}`, want: http.StatusBadRequest},
		{name: "empty message", token: "secret", method: http.MethodPost,
			body: `{"room_id":"!r:e.com","message":""}`, want: http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			gateway := &fakeGateway{}
			handler := newTestHandler(t, gateway)
			req := httptest.NewRequest(tt.method, "/webhook", strings.NewReader(tt.body))
			if tt.token != "" {
				req.Header.Set("Authorization", "Bearer "+tt.token)
			}
			w := httptest.NewRecorder()
			handler(w, req)
			if w.Code != tt.want {
				t.Errorf("status: got %d, want %d", w.Code, tt.want)
			}
			if len(gateway.notices) != 0 || len(gateway.formatted) != 0 {
				t.Errorf("rejected request must not reach the gateway")
			}
		})
	}
}

func TestWebhookEmptyTokenNeverAuthorizes(t *testing.T) {
	t.Parallel()
	srv := NewServer("127.0.0.1:0", "", &fakeGateway{}, zerolog.Nop())
	w := post(srv.handleWebhook, "", `{"room_id":"!r:e.com","message":"x"}`)
	if w.Code != http.StatusUnauthorized {
		t.Errorf("status: got %d, want %d", w.Code, http.StatusUnauthorized)
	}
}

func TestWebhookGatewayFailure(t *testing.T) {
	t.Parallel()
	gateway := &fakeGateway{fail: true}
	handler := newTestHandler(t, gateway)

	w := post(handler, "secret", `{"room_id":"!room:example.com","message":"x"}`)
	if w.Code != http.StatusBadGateway {
		t.Errorf("status: got %d, want %d", w.Code, http.StatusBadGateway)
	}
}

func TestWebhookRateLimit(t *testing.T) {
	t.Parallel()
	gateway := &fakeGateway{}
	handler := newTestHandler(t, gateway)

	// The limiter allows a burst of 10; the 11th immediate request must
	// be rejected.
	var limited bool
	for i := 0; i < 11; i++ {
		w := post(handler, "secret", `{"room_id":"!room:example.com","message":"x"}`)
		if w.Code == http.StatusTooManyRequests {
			limited = true
			break
		}
	}
	if !limited {
		t.Error("expected rate limiting to kick in within the burst window")
	}
}
