package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"mythbuster/pkg/bus"
	"mythbuster/pkg/channel"
	"mythbuster/pkg/config"
	"mythbuster/pkg/provider"

	"github.com/gorilla/mux"
)

const (
	defaultHealthHost = config.DefaultHost
	defaultHealthPort = config.DefaultPort

	providerHealthInterval = 30 * time.Second
)

// Options wires the gateway to the rest of the bot.
type Options struct {
	Provider   provider.Client
	Handler    channel.Handler
	Registrars []channel.RouteRegistrar
	Adapters   []channel.Adapter
	// Events feeds the /readyz counters. Optional.
	Events *bus.Bus
}

// Service owns the HTTP server, mounts webhook channels and runs long-lived
// adapters until the context is cancelled.
type Service struct {
	cfg        *config.Config
	log        *slog.Logger
	provider   provider.Client
	handler    channel.Handler
	registrars []channel.RouteRegistrar
	channels   []channel.Adapter
	events     *bus.Bus

	mu               sync.RWMutex
	startedAt        time.Time
	providerLastOKAt time.Time
	providerLastErr  string
	channelStates    map[string]channelState
	counters         Counters
}

type channelState struct {
	Running bool   `json:"running"`
	Error   string `json:"error,omitempty"`
}

// Counters summarizes pipeline activity observed on the event bus.
type Counters struct {
	Received      int64 `json:"received"`
	FactChecks    int64 `json:"fact_checks"`
	Fallbacks     int64 `json:"fallbacks"`
	RepliesSent   int64 `json:"replies_sent"`
	RepliesFailed int64 `json:"replies_failed"`
}

type statusResponse struct {
	Status           string                  `json:"status"`
	UptimeSeconds    int64                   `json:"uptime_seconds"`
	ProviderLastOKAt string                  `json:"provider_last_ok_at,omitempty"`
	ProviderLastErr  string                  `json:"provider_last_error,omitempty"`
	Channels         map[string]channelState `json:"channels"`
	Counters         Counters                `json:"counters"`
}

// NewService validates the wiring. At least one webhook registrar or adapter
// is required.
func NewService(cfg *config.Config, opts Options, log *slog.Logger) (*Service, error) {
	if cfg == nil {
		return nil, errors.New("config is required")
	}
	if opts.Provider == nil {
		return nil, errors.New("provider is required")
	}
	if opts.Handler == nil {
		return nil, errors.New("handler is required")
	}
	if len(opts.Registrars) == 0 && len(opts.Adapters) == 0 {
		return nil, errors.New("at least one channel is required")
	}
	if log == nil {
		log = slog.Default()
	}

	channelStates := make(map[string]channelState, len(opts.Registrars)+len(opts.Adapters))
	for _, registrar := range opts.Registrars {
		channelStates[registrar.Name()] = channelState{}
	}
	for _, adapter := range opts.Adapters {
		channelStates[adapter.Name()] = channelState{}
	}

	return &Service{
		cfg:           cfg,
		log:           log.With("component", "gateway.service"),
		provider:      opts.Provider,
		handler:       opts.Handler,
		registrars:    opts.Registrars,
		channels:      opts.Adapters,
		events:        opts.Events,
		channelStates: channelStates,
	}, nil
}

// Run serves HTTP and runs adapters until ctx is cancelled or one of them
// fails.
func (s *Service) Run(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}

	s.mu.Lock()
	s.startedAt = time.Now().UTC()
	s.mu.Unlock()

	if s.events != nil {
		events, unsubscribe := s.events.SubscribeEvents(ctx, 0)
		defer unsubscribe()
		go s.countEvents(events)
	}

	if err := s.checkProviderHealth(ctx); err != nil {
		s.log.Warn("Provider not healthy at startup", "error", err)
	}

	for _, adapter := range s.channels {
		s.setChannelState(adapter.Name(), channelState{Running: true})
	}

	serverErrors := make(chan error, 1)
	go s.runServer(ctx, serverErrors)

	go func() {
		ticker := time.NewTicker(providerHealthInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if err := s.checkProviderHealth(ctx); err != nil {
					s.log.Warn("Provider health check failed", "error", err)
				}
			}
		}
	}()

	errCh := make(chan error, len(s.channels))
	for _, adapter := range s.channels {
		go func() {
			err := adapter.Run(ctx, s.handleInbound)
			s.setChannelState(adapter.Name(), channelState{Running: false, Error: errorString(err)})
			if err != nil && !errors.Is(err, context.Canceled) {
				errCh <- fmt.Errorf("run %s channel: %w", adapter.Name(), err)
			}
		}()
	}

	select {
	case <-ctx.Done():
		return nil
	case err := <-serverErrors:
		return err
	case err := <-errCh:
		return err
	}
}

// Handler returns the HTTP router with health, readiness and webhook routes.
func (s *Service) Handler() http.Handler {
	router := mux.NewRouter()
	router.HandleFunc("/", s.handleRoot).Methods(http.MethodGet)
	router.HandleFunc("/health", s.handleServiceHealth).Methods(http.MethodGet)
	router.HandleFunc("/healthz", s.handleHealth).Methods(http.MethodGet)
	router.HandleFunc("/readyz", s.handleReady).Methods(http.MethodGet)

	for _, registrar := range s.registrars {
		registrar.RegisterRoutes(router, s.handleInbound)
	}

	return router
}

func (s *Service) handleInbound(ctx context.Context, inbound bus.InboundMessage) (bus.OutboundMessage, error) {
	return s.handler(ctx, inbound)
}

func (s *Service) runServer(ctx context.Context, errCh chan<- error) {
	host := strings.TrimSpace(s.cfg.Gateway.Host)
	if host == "" {
		host = defaultHealthHost
	}

	port := s.cfg.Gateway.Port
	if port <= 0 {
		port = defaultHealthPort
	}

	addr := host + ":" + strconv.Itoa(port)
	server := &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = server.Shutdown(shutdownCtx)
	}()

	for _, registrar := range s.registrars {
		s.setChannelState(registrar.Name(), channelState{Running: true})
	}

	s.log.Info("Gateway server started", "address", addr, "webhooks", len(s.registrars), "adapters", len(s.channels))
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		for _, registrar := range s.registrars {
			s.setChannelState(registrar.Name(), channelState{Running: false, Error: err.Error()})
		}
		errCh <- fmt.Errorf("start gateway server: %w", err)
	}
}

func (s *Service) handleRoot(w http.ResponseWriter, _ *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]string{"message": "AI Myth-Buster WhatsApp Bot is running!"})
}

func (s *Service) handleServiceHealth(w http.ResponseWriter, _ *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "healthy", "service": "ai-myth-buster"})
}

func (s *Service) handleHealth(w http.ResponseWriter, _ *http.Request) {
	s.writeJSON(w, http.StatusOK, s.currentStatus("ok"))
}

func (s *Service) handleReady(w http.ResponseWriter, _ *http.Request) {
	statusCode := http.StatusOK
	status := "ready"
	if !s.isReady() {
		statusCode = http.StatusServiceUnavailable
		status = "not_ready"
	}

	s.writeJSON(w, statusCode, s.currentStatus(status))
}

func (s *Service) writeJSON(w http.ResponseWriter, statusCode int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		s.log.Error("Failed to write status response", "error", err)
	}
}

func (s *Service) currentStatus(status string) statusResponse {
	s.mu.RLock()
	defer s.mu.RUnlock()

	uptime := int64(0)
	if !s.startedAt.IsZero() {
		uptime = int64(time.Since(s.startedAt).Seconds())
	}

	channels := make(map[string]channelState, len(s.channelStates))
	for name, state := range s.channelStates {
		channels[name] = state
	}

	providerLastOK := ""
	if !s.providerLastOKAt.IsZero() {
		providerLastOK = s.providerLastOKAt.Format(time.RFC3339)
	}

	return statusResponse{
		Status:           status,
		UptimeSeconds:    uptime,
		ProviderLastOKAt: providerLastOK,
		ProviderLastErr:  s.providerLastErr,
		Channels:         channels,
		Counters:         s.counters,
	}
}

func (s *Service) isReady() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()

	anyRunning := false
	for _, state := range s.channelStates {
		if state.Running {
			anyRunning = true
			break
		}
	}

	if !anyRunning {
		return false
	}

	return !s.providerLastOKAt.IsZero() && s.providerLastErr == ""
}

func (s *Service) checkProviderHealth(ctx context.Context) error {
	if err := s.provider.Health(ctx); err != nil {
		s.mu.Lock()
		s.providerLastErr = err.Error()
		s.mu.Unlock()
		return fmt.Errorf("provider health check failed: %w", err)
	}

	s.mu.Lock()
	s.providerLastErr = ""
	s.providerLastOKAt = time.Now().UTC()
	s.mu.Unlock()

	return nil
}

func (s *Service) countEvents(events <-chan bus.Event) {
	for event := range events {
		s.recordEvent(event)
	}
}

func (s *Service) recordEvent(event bus.Event) {
	s.mu.Lock()
	defer s.mu.Unlock()

	switch event.Type {
	case bus.EventMessageReceived:
		s.counters.Received++
	case bus.EventFactCheckCompleted:
		s.counters.FactChecks++
	case bus.EventFactCheckFailed:
		s.counters.FactChecks++
		s.counters.Fallbacks++
	case bus.EventPipelineFailed:
		s.counters.Fallbacks++
	case bus.EventReplySent:
		s.counters.RepliesSent++
	case bus.EventReplyFailed:
		s.counters.RepliesFailed++
	}
}

// Snapshot returns the current event counters.
func (s *Service) Snapshot() Counters {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.counters
}

func (s *Service) setChannelState(name string, state channelState) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.channelStates[name] = state
}

func errorString(err error) string {
	if err == nil {
		return ""
	}

	return err.Error()
}
