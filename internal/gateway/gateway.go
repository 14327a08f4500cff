// Package gateway exposes the webhook HTTP surface: one signed endpoint
// per enabled platform, the webchat websocket mount, health, and metrics.
// Verified deliveries are normalized into canonical messages and published
// on the message bus.
package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"chatbridge/internal/adapter"
	"chatbridge/internal/bus"
	"chatbridge/internal/config"
	"chatbridge/internal/domain"
	"chatbridge/internal/metrics"
	"chatbridge/internal/signature"
)

const (
	maxBodySize = 1 << 20 // 1MB
	sendTimeout = 30 * time.Second
)

// Options configures a gateway Server.
type Options struct {
	Config  *config.Config
	Bus     *bus.InMemoryBus
	Events  *bus.EventBus
	Logger  *slog.Logger
	Version string

	// Senders are pre-built adapters registered as outbound handlers on
	// the bus. Adapters whose constructors need network access (Telegram's
	// getMe, Discord's session) are built by the caller.
	Senders []domain.Adapter
}

// Server routes platform webhooks into the message bus.
type Server struct {
	cfg     *config.Config
	bus     *bus.InMemoryBus
	events  *bus.EventBus
	logger  *slog.Logger
	version string
	server  *http.Server

	slack    *adapter.SlackWebhook
	whatsapp *adapter.WhatsApp
	webchat  *adapter.Webchat

	telegramToken string
}

// NewServer wires webhook handlers for every enabled platform.
func NewServer(opts Options) (*Server, error) {
	if opts.Version == "" {
		opts.Version = "dev"
	}

	s := &Server{
		cfg:     opts.Config,
		bus:     opts.Bus,
		events:  opts.Events,
		logger:  opts.Logger,
		version: opts.Version,
	}

	platforms := opts.Config.Platforms

	if platforms.Slack.Enabled {
		s.slack = adapter.NewSlackWebhook(platforms.Slack.SigningSecret, opts.Logger)
		s.slack.OnMessage(func(msg domain.Message) {
			s.publish(msg)
		})
		s.slack.OnInteraction(func(in adapter.Interaction) {
			s.events.Emit(bus.Event{
				Type:   bus.EventWebhookReceived,
				Source: "gateway",
				Payload: map[string]any{
					"platform": "slack",
					"kind":     "interaction",
					"actionId": firstActionID(in),
					"user":     in.User.ID,
				},
				Timestamp: time.Now(),
			})
		})
		s.slack.OnCommand(func(cmd adapter.SlashCommand) {
			s.logger.Info("slash command received", "command", cmd.Command, "user", cmd.UserID)
		})
	}

	if platforms.WhatsApp.Enabled {
		wa, err := adapter.NewWhatsApp(platforms.WhatsApp.Platform(), opts.Logger)
		if err != nil {
			return nil, fmt.Errorf("whatsapp adapter: %w", err)
		}
		s.whatsapp = wa
	}

	if platforms.Telegram.Enabled {
		s.telegramToken = platforms.Telegram.Token
	}

	if platforms.Webchat.Enabled {
		s.webchat = adapter.NewWebchat(platforms.Webchat.Platform(), opts.Logger)
		s.webchat.OnMessage(func(msg domain.Message) {
			s.publish(msg)
		})
	}

	for _, a := range opts.Senders {
		s.registerSender(a)
	}

	return s, nil
}

// registerSender routes outbound bus messages to the adapter and records
// the delivery outcome.
func (s *Server) registerSender(a domain.Adapter) {
	platform := a.Platform()
	s.bus.OnOutbound(platform, func(msg domain.Message) {
		ctx, cancel := context.WithTimeout(context.Background(), sendTimeout)
		defer cancel()

		id, err := a.Send(ctx, msg)
		if err != nil {
			s.logger.Error("outbound send failed", "platform", platform, "conversation", msg.ConversationID, "err", err)
			s.events.Emit(bus.Event{
				Type:      bus.EventAdapterError,
				Source:    "gateway",
				Payload:   map[string]any{"platform": string(platform), "err": err.Error()},
				Timestamp: time.Now(),
			})
			return
		}
		metrics.MessagesSent(string(platform)).Inc()
		s.events.Emit(bus.Event{
			Type:      bus.EventMessageSent,
			Source:    "gateway",
			Payload:   map[string]any{"platform": string(platform), "messageId": id},
			Timestamp: time.Now(),
		})
	})
}

// Routes builds the HTTP mux. Split from Start so tests can drive it
// through httptest.
func (s *Server) Routes() http.Handler {
	mux := http.NewServeMux()

	p := s.cfg.Platforms
	if s.slack != nil {
		mux.HandleFunc("POST "+p.Slack.WebhookPath, s.handleSlack)
	}
	if s.whatsapp != nil {
		mux.HandleFunc("GET "+p.WhatsApp.WebhookPath, s.handleWhatsAppVerify)
		mux.HandleFunc("POST "+p.WhatsApp.WebhookPath, s.handleWhatsAppEvent)
	}
	if s.telegramToken != "" {
		mux.HandleFunc("POST "+p.Telegram.WebhookPath, s.handleTelegram)
	}
	if s.webchat != nil {
		mux.Handle("GET "+p.Webchat.Path, s.webchat.Handler())
	}
	if s.cfg.Metrics.Enabled {
		mux.HandleFunc("GET "+s.cfg.Metrics.Endpoint, metrics.Collector.Handler())
	}
	mux.HandleFunc("GET /healthz", s.handleHealthz)

	return s.recoverer(mux)
}

// recoverer converts a handler panic into a 500 instead of killing the
// connection goroutine silently.
func (s *Server) recoverer(next http.Handler) http.Handler {
	return http.HandlerFunc(func(rw http.ResponseWriter, r *http.Request) {
		defer func() {
			if rec := recover(); rec != nil {
				s.logger.Error("handler panic", "path", r.URL.Path, "panic", rec)
				metrics.CallbackFailures.Inc()
				writeJSON(rw, http.StatusInternalServerError, map[string]any{"error": "internal error"})
			}
		}()
		next.ServeHTTP(rw, r)
	})
}

// Start runs the server until ctx is cancelled.
func (s *Server) Start(ctx context.Context) error {
	addr := s.cfg.Server.Addr()
	s.server = &http.Server{
		Addr:    addr,
		Handler: s.Routes(),
	}

	s.logger.Info("gateway started", "addr", addr,
		"slack", s.slack != nil, "whatsapp", s.whatsapp != nil,
		"telegram", s.telegramToken != "", "webchat", s.webchat != nil)

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		s.server.Shutdown(shutdownCtx)
		if s.webchat != nil {
			s.webchat.CloseAll()
		}
	}()

	if err := s.server.ListenAndServe(); err != http.ErrServerClosed {
		return err
	}
	return nil
}

func (s *Server) Stop() error {
	if s.server != nil {
		return s.server.Close()
	}
	return nil
}

func (s *Server) handleSlack(rw http.ResponseWriter, r *http.Request) {
	start := time.Now()
	defer func() { metrics.DispatchSeconds.Observe(time.Since(start).Seconds()) }()

	body, err := io.ReadAll(io.LimitReader(r.Body, maxBodySize))
	if err != nil {
		writeJSON(rw, http.StatusBadRequest, map[string]any{"error": "read body: " + err.Error()})
		return
	}
	defer r.Body.Close()

	resp, err := s.slack.Handle(body, r.Header)
	switch {
	case errors.Is(err, adapter.ErrBadSignature):
		s.reject(domain.PlatformSlack, r)
		writeJSON(rw, http.StatusForbidden, map[string]any{"error": "invalid signature"})
		return
	case err != nil:
		s.logger.Warn("slack webhook rejected", "err", err)
		writeJSON(rw, http.StatusBadRequest, map[string]any{"error": err.Error()})
		return
	}

	metrics.WebhooksTotal("slack").Inc()
	if _, ok := resp["challenge"]; ok {
		s.events.Emit(bus.Event{
			Type:      bus.EventWebhookVerified,
			Source:    "gateway",
			Payload:   map[string]any{"platform": "slack"},
			Timestamp: time.Now(),
		})
	}
	writeJSON(rw, http.StatusOK, resp)
}

func (s *Server) handleWhatsAppVerify(rw http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	challenge, err := s.whatsapp.VerifyChallenge(q.Get("hub.mode"), q.Get("hub.verify_token"), q.Get("hub.challenge"))
	if err != nil {
		s.reject(domain.PlatformWhatsApp, r)
		http.Error(rw, "Forbidden", http.StatusForbidden)
		return
	}

	s.events.Emit(bus.Event{
		Type:      bus.EventWebhookVerified,
		Source:    "gateway",
		Payload:   map[string]any{"platform": "whatsapp"},
		Timestamp: time.Now(),
	})
	rw.Header().Set("Content-Type", "text/plain; charset=utf-8")
	fmt.Fprint(rw, challenge)
}

func (s *Server) handleWhatsAppEvent(rw http.ResponseWriter, r *http.Request) {
	start := time.Now()
	defer func() { metrics.DispatchSeconds.Observe(time.Since(start).Seconds()) }()

	body, err := io.ReadAll(io.LimitReader(r.Body, maxBodySize))
	if err != nil {
		writeJSON(rw, http.StatusBadRequest, map[string]any{"error": "read body: " + err.Error()})
		return
	}
	defer r.Body.Close()

	if !s.whatsapp.VerifyBody(body, r.Header.Get("X-Hub-Signature-256")) {
		s.reject(domain.PlatformWhatsApp, r)
		writeJSON(rw, http.StatusForbidden, map[string]any{"error": "invalid signature"})
		return
	}

	events, err := s.whatsapp.ParsePayload(body)
	if err != nil {
		writeJSON(rw, http.StatusBadRequest, map[string]any{"error": err.Error()})
		return
	}

	metrics.WebhooksTotal("whatsapp").Inc()
	for _, ev := range events {
		switch ev.Type {
		case domain.WebhookMessageReceived:
			if ev.Message != nil {
				s.publish(*ev.Message)
			}
		case domain.WebhookMessageDelivered:
			s.emitStatus(bus.EventMessageDelivered, ev)
		case domain.WebhookMessageRead:
			s.emitStatus(bus.EventMessageRead, ev)
		}
	}
	writeJSON(rw, http.StatusOK, map[string]any{"ok": true})
}

func (s *Server) handleTelegram(rw http.ResponseWriter, r *http.Request) {
	start := time.Now()
	defer func() { metrics.DispatchSeconds.Observe(time.Since(start).Seconds()) }()

	body, err := io.ReadAll(io.LimitReader(r.Body, maxBodySize))
	if err != nil {
		writeJSON(rw, http.StatusBadRequest, map[string]any{"error": "read body: " + err.Error()})
		return
	}
	defer r.Body.Close()

	if !signature.VerifyTelegram(string(body), r.Header.Get("X-Telegram-Signature"), s.telegramToken) {
		s.reject(domain.PlatformTelegram, r)
		writeJSON(rw, http.StatusForbidden, map[string]any{"error": "invalid signature"})
		return
	}

	var update tgbotapi.Update
	if err := json.Unmarshal(body, &update); err != nil {
		writeJSON(rw, http.StatusBadRequest, map[string]any{"error": "invalid update: " + err.Error()})
		return
	}

	metrics.WebhooksTotal("telegram").Inc()

	msg, err := adapter.FromTelegramUpdate(update)
	if err != nil {
		// Updates without a message body (e.g. edited_message) are
		// acknowledged so Telegram does not redeliver them.
		s.logger.Debug("telegram update skipped", "err", err)
		writeJSON(rw, http.StatusOK, map[string]any{"ok": true})
		return
	}

	if !s.telegramAllowed(msg.UserID) {
		s.logger.Warn("telegram sender not allowed", "user", msg.UserID)
		writeJSON(rw, http.StatusOK, map[string]any{"ok": true})
		return
	}

	s.publish(msg)
	writeJSON(rw, http.StatusOK, map[string]any{"ok": true})
}

// telegramAllowed checks the sender against the allowFrom list. An empty
// list allows everyone.
func (s *Server) telegramAllowed(userID string) bool {
	allow := s.cfg.Platforms.Telegram.AllowFrom
	if len(allow) == 0 {
		return true
	}
	for _, id := range allow {
		if id == userID {
			return true
		}
	}
	return false
}

func (s *Server) handleHealthz(rw http.ResponseWriter, r *http.Request) {
	writeJSON(rw, http.StatusOK, map[string]any{
		"status":  "ok",
		"version": s.version,
		"time":    time.Now().Format(time.RFC3339),
	})
}

// publish pushes a normalized message onto the bus and emits the
// lifecycle event.
func (s *Server) publish(msg domain.Message) {
	s.bus.Publish(msg)
	s.events.Emit(bus.Event{
		Type:   bus.EventMessageNormalized,
		Source: "gateway",
		Payload: map[string]any{
			"platform":     string(msg.Platform),
			"messageId":    msg.ID,
			"conversation": msg.ConversationID,
			"type":         string(msg.Type),
		},
		Timestamp: time.Now(),
	})
}

func (s *Server) reject(platform domain.Platform, r *http.Request) {
	metrics.WebhooksRejected(string(platform)).Inc()
	s.logger.Warn("webhook signature rejected", "platform", platform, "remote", r.RemoteAddr)
	s.events.Emit(bus.Event{
		Type:      bus.EventWebhookRejected,
		Source:    "gateway",
		Payload:   map[string]any{"platform": string(platform)},
		Timestamp: time.Now(),
	})
}

func (s *Server) emitStatus(eventType string, ev domain.WebhookEvent) {
	s.events.Emit(bus.Event{
		Type:   eventType,
		Source: "gateway",
		Payload: map[string]any{
			"platform":     string(ev.Platform),
			"messageId":    ev.MessageID,
			"conversation": ev.ConversationID,
		},
		Timestamp: time.Now(),
	})
}

func firstActionID(in adapter.Interaction) string {
	if len(in.Actions) > 0 {
		return in.Actions[0].ActionID
	}
	return in.CallbackID
}

func writeJSON(rw http.ResponseWriter, status int, body map[string]any) {
	rw.Header().Set("Content-Type", "application/json; charset=utf-8")
	rw.WriteHeader(status)
	json.NewEncoder(rw).Encode(body)
}
