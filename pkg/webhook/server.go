// Copyright 2024-2026 Aiku AI

// Package webhook exposes an HTTP endpoint that lets external systems
// (CI, monitoring) inject messages into rooms through the bot's
// outbound gateway.
package webhook

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/time/rate"
	"maunium.net/go/mautrix/id"

	"github.com/aiku/matrix-triggerbot/pkg/bot"
)

// maxBodySize is the maximum allowed request body (1 MB).
const maxBodySize = 1 << 20

// Request is the payload for POST /webhook.
type Request struct {
	RoomID  string   `json:"room_id"`
	Message string   `json:"message"`
	Pings   []string `json:"pings,omitempty"`
}

// Server routes injected messages through the gateway. Requests carry a
// shared-secret bearer token and are rate limited.
type Server struct {
	addr    string
	token   string
	gateway bot.Gateway
	limiter *rate.Limiter
	log     zerolog.Logger
}

// NewServer builds a webhook server listening on addr. token must be
// non-empty; unauthenticated ingress is not supported.
func NewServer(addr, token string, gateway bot.Gateway, log zerolog.Logger) *Server {
	return &Server{
		addr:    addr,
		token:   token,
		gateway: gateway,
		limiter: rate.NewLimiter(rate.Limit(5), 10),
		log:     log.With().Str("component", "webhook").Logger(),
	}
}

// Run serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	mux := http.NewServeMux()
	mux.HandleFunc("/webhook", s.handleWebhook)
	server := &http.Server{
		Addr:         s.addr,
		Handler:      mux,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.log.Info().Str("addr", s.addr).Msg("Starting webhook server")
		errCh <- server.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}

func (s *Server) handleWebhook(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if !s.authorized(r) {
		s.log.Warn().Str("remote_addr", r.RemoteAddr).Msg("Unauthorized webhook request")
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}
	if !s.limiter.Allow() {
		http.Error(w, "rate limit exceeded", http.StatusTooManyRequests)
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, maxBodySize)
	defer r.Body.Close()

	var req Request
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid JSON", http.StatusBadRequest)
		return
	}
	if !strings.HasPrefix(req.RoomID, "!") || req.Message == "" {
		http.Error(w, "room_id and message are required", http.StatusBadRequest)
		return
	}

	ctx := r.Context()
	room := id.RoomID(req.RoomID)

	if err := s.gateway.SendNotice(ctx, room, req.Message); err != nil {
		s.log.Error().Err(err).Str("room_id", req.RoomID).Msg("Webhook notice delivery failed")
		http.Error(w, "delivery failed", http.StatusBadGateway)
		return
	}

	if len(req.Pings) > 0 {
		users := make([]id.UserID, len(req.Pings))
		for i, p := range req.Pings {
			users[i] = id.UserID(p)
		}
		plain, html := bot.MentionList(users)
		if err := s.gateway.SendFormatted(ctx, room, plain, html); err != nil {
			s.log.Error().Err(err).Str("room_id", req.RoomID).Msg("Webhook ping delivery failed")
			http.Error(w, "delivery failed", http.StatusBadGateway)
			return
		}
	}

	s.log.Info().
		Str("room_id", req.RoomID).
		Int("pings", len(req.Pings)).
		Msg("Webhook message delivered")
	w.WriteHeader(http.StatusNoContent)
}

// authorized checks the bearer token in constant time.
func (s *Server) authorized(r *http.Request) bool {
	if s.token == "" {
		return false
	}
	auth := strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer ")
	return subtle.ConstantTimeCompare([]byte(auth), []byte(s.token)) == 1
}
