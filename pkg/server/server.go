// Package server wires the relay, its transports and its diagnostics into one
// process.
package server

import (
	"context"
	"crypto/tls"
	"encoding/json"
	"net"
	"net/http"
	"strings"

	"connectrpc.com/connect"
	"github.com/go-go-golems/chat-relay/pkg/bridge"
	"github.com/go-go-golems/chat-relay/pkg/config"
	"github.com/go-go-golems/chat-relay/pkg/events"
	"github.com/go-go-golems/chat-relay/pkg/metrics"
	"github.com/go-go-golems/chat-relay/pkg/relay"
	"github.com/go-go-golems/chat-relay/pkg/service"
	"github.com/go-go-golems/chat-relay/pkg/upstream"
	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"
	"golang.org/x/net/http2"
	"golang.org/x/net/http2/h2c"
	"golang.org/x/sync/errgroup"
)

type Server struct {
	settings *config.Settings
	relay    *relay.Relay
	router   *events.EventRouter
	handler  http.Handler
	rpc      *http.Server
	bridge   *http.Server
}

type Option func(*serverOptions)

type serverOptions struct {
	client upstream.Client
}

// WithUpstreamClient replaces the provider client built from the settings.
func WithUpstreamClient(c upstream.Client) Option {
	return func(o *serverOptions) {
		o.client = c
	}
}

func New(settings *config.Settings, options ...Option) (*Server, error) {
	opts := &serverOptions{}
	for _, o := range options {
		o(opts)
	}

	s := settings.Clone()
	client := opts.client
	if client == nil {
		if err := s.Validate(); err != nil {
			return nil, err
		}
		var err error
		client, err = NewUpstreamClient(s)
		if err != nil {
			return nil, err
		}
	}

	router, err := events.NewEventRouter(events.WithVerbose(s.Events.Debug))
	if err != nil {
		return nil, errors.Wrap(err, "could not create event router")
	}
	router.AddHandler("log-tool-calls", s.Events.Topic, router.LogToolCalls)
	if s.Events.Debug {
		router.AddHandler("dump-events", s.Events.Topic, router.DumpRawEvents)
	}

	sinks := []events.EventSink{router.Sink(s.Events.Topic)}
	if s.Server.Metrics {
		sinks = append(sinks, metrics.NewSink())
	}

	factory := relay.NewSessionFactory(
		client,
		s.Upstream.Model,
		relay.WithCapabilities(s.Upstream.Tools...),
		relay.WithTimeout(s.Upstream.Timeout),
	)
	r := relay.New(factory, relay.WithEventSinks(sinks...))

	mux := http.NewServeMux()
	path, handler := service.NewChatServiceHandler(
		service.NewService(r),
		connect.WithInterceptors(
			service.NewLoggingInterceptor(),
			service.NewStreamLimiter(int64(s.Server.MaxConcurrentStreams)),
		),
	)
	mux.Handle(path, handler)
	mux.HandleFunc("/health", healthHandler(s.Upstream.Model))
	if s.Server.Metrics {
		mux.Handle("/metrics", promhttp.Handler())
	}

	ret := &Server{
		settings: s,
		relay:    r,
		router:   router,
		handler:  mux,
		rpc: &http.Server{
			Addr:    s.Server.Listen,
			Handler: h2c.NewHandler(mux, &http2.Server{}),
		},
	}

	if s.Bridge.Listen != "" {
		relayURL := s.Bridge.RelayURL
		if relayURL == "" {
			relayURL = LocalURL(s.Server.Listen)
		}
		bc := service.NewChatServiceClient(NewH2CClient(), relayURL)
		ret.bridge = &http.Server{
			Addr:    s.Bridge.Listen,
			Handler: bridge.NewRouter(bridge.NewHandler(bc, bridge.WithAllowOrigin(s.Bridge.AllowOrigin))),
		}
	}

	return ret, nil
}

func healthHandler(model string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_ = json.NewEncoder(w).Encode(map[string]string{
			"status":  "healthy",
			"service": "chat-relay",
			"model":   model,
		})
	}
}

// Handler serves the chat service, /health and /metrics.
func (s *Server) Handler() http.Handler {
	return s.handler
}

func (s *Server) Relay() *relay.Relay {
	return s.relay
}

func (s *Server) Router() *events.EventRouter {
	return s.router
}

// Run serves until ctx is cancelled or a listener fails, then shuts everything
// down.
func (s *Server) Run(ctx context.Context) error {
	eg, ctx := errgroup.WithContext(ctx)

	eg.Go(func() error {
		return s.router.Run(ctx)
	})

	eg.Go(func() error {
		log.Info().
			Str("address", s.rpc.Addr).
			Str("model", s.settings.Upstream.Model).
			Str("provider", s.settings.Upstream.Provider).
			Strs("tools", s.settings.Upstream.Tools).
			Int("max_concurrent_streams", s.settings.Server.MaxConcurrentStreams).
			Msg("Starting chat relay server")
		return listenAndServe(s.rpc)
	})

	if s.bridge != nil {
		eg.Go(func() error {
			log.Info().Str("address", s.bridge.Addr).Msg("Starting SSE bridge")
			return listenAndServe(s.bridge)
		})
	}

	eg.Go(func() error {
		<-ctx.Done()
		log.Info().Msg("Shutting down")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), s.settings.Server.ShutdownTimeout)
		defer cancel()

		var errs []error
		if s.bridge != nil {
			if err := s.bridge.Shutdown(shutdownCtx); err != nil {
				errs = append(errs, errors.Wrap(err, "bridge shutdown"))
			}
		}
		if err := s.rpc.Shutdown(shutdownCtx); err != nil {
			errs = append(errs, errors.Wrap(err, "server shutdown"))
		}
		if err := s.router.Close(); err != nil {
			errs = append(errs, err)
		}
		if len(errs) > 0 {
			return errs[0]
		}
		return nil
	})

	err := eg.Wait()
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

func listenAndServe(srv *http.Server) error {
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return errors.Wrapf(err, "listen on %s", srv.Addr)
	}
	return nil
}

// NewH2CClient returns an HTTP client speaking HTTP/2 without TLS, as the
// relay server does.
func NewH2CClient() *http.Client {
	return &http.Client{
		Transport: &http2.Transport{
			AllowHTTP: true,
			DialTLSContext: func(ctx context.Context, network, addr string, cfg *tls.Config) (net.Conn, error) {
				var d net.Dialer
				return d.DialContext(ctx, network, addr)
			},
		},
	}
}

// LocalURL turns a listen address such as ":50051" into a URL reachable from
// the same host.
func LocalURL(listen string) string {
	if strings.HasPrefix(listen, "http://") || strings.HasPrefix(listen, "https://") {
		return listen
	}
	host, port, err := net.SplitHostPort(listen)
	if err != nil {
		return "http://" + listen
	}
	if host == "" || host == "0.0.0.0" || host == "::" {
		host = "localhost"
	}
	return "http://" + net.JoinHostPort(host, port)
}
