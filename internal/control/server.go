// Package control exposes the assistant's control surface: a WebSocket
// JSON protocol on /ws for commands and event streaming, plus /metrics,
// /healthz and /readyz on the same listener.
//
// Requests are {"id":N,"method":"...","params":{...}}; responses are
// {"id":N,"result":...} or {"id":N,"error":"..."}. Server-initiated
// events are {"event":"...","data":{...}}.
package control

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/coder/websocket"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/willowvoice/willow/internal/app"
	"github.com/willowvoice/willow/internal/config"
	"github.com/willowvoice/willow/internal/dispatch"
	"github.com/willowvoice/willow/internal/event"
	"github.com/willowvoice/willow/internal/health"
)

// Assistant is the application surface the control server drives.
// Implemented by [app.App].
type Assistant interface {
	Start() error
	Stop()
	Restart() error

	Mode() dispatch.Mode
	SetMode(dispatch.Mode)
	Buffer() string
	Status() app.Status
	EngineLoaded() bool

	Config() *config.Config
	UpdateConfig(*config.Config) error
	GetConfigValue(key string) (string, error)
	SetConfigValue(key, value string) error
	AddCommand(config.CommandConfig) error
	RemoveCommand(name string) error
}

// Server is the control surface HTTP server.
type Server struct {
	assistant Assistant
	bus       *event.Bus
	health    *health.Handler
}

// New creates a Server. Readiness reflects whether the speech engine is
// loaded.
func New(assistant Assistant, bus *event.Bus) *Server {
	h := health.New(health.Checker{
		Name: "engine",
		Check: func(context.Context) error {
			if !assistant.EngineLoaded() {
				return errors.New("speech engine not loaded")
			}
			return nil
		},
	})
	return &Server{assistant: assistant, bus: bus, health: h}
}

// Handler returns the routed HTTP handler.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /ws", s.handleWS)
	mux.Handle("GET /metrics", promhttp.Handler())
	s.health.Register(mux)
	return mux
}

// ListenAndServe serves the control surface on addr until ctx is
// cancelled, then shuts down gracefully.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("control: listening", "addr", addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}

// request is one client call.
type request struct {
	ID     int64           `json:"id"`
	Method string          `json:"method"`
	Params json.RawMessage `json:"params,omitempty"`
}

// response answers one request.
type response struct {
	ID     int64  `json:"id"`
	Result any    `json:"result,omitempty"`
	Error  string `json:"error,omitempty"`
}

// handleWS upgrades the connection and serves requests until the client
// goes away. Events from the bus are forwarded on the same connection.
func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := websocket.Accept(w, r, nil)
	if err != nil {
		slog.Warn("control: websocket accept failed", "err", err)
		return
	}
	defer conn.Close(websocket.StatusInternalError, "server closing")

	ctx := r.Context()
	events, unsubscribe := s.bus.Subscribe()
	defer unsubscribe()

	var writeMu sync.Mutex
	write := func(v any) error {
		data, err := json.Marshal(v)
		if err != nil {
			return err
		}
		writeMu.Lock()
		defer writeMu.Unlock()
		return conn.Write(ctx, websocket.MessageText, data)
	}

	// Forward bus events until the subscription or connection closes.
	go func() {
		for ev := range events {
			if err := write(ev); err != nil {
				return
			}
		}
	}()

	for {
		_, data, err := conn.Read(ctx)
		if err != nil {
			return
		}

		var req request
		if err := json.Unmarshal(data, &req); err != nil {
			write(response{Error: "malformed request: " + err.Error()})
			continue
		}

		resp := response{ID: req.ID}
		result, err := s.call(req)
		if err != nil {
			resp.Error = err.Error()
		} else {
			resp.Result = result
		}
		if err := write(resp); err != nil {
			return
		}
	}
}

// okResult is the reply for methods with no payload.
var okResult = map[string]any{"ok": true}

// call dispatches one method.
func (s *Server) call(req request) (any, error) {
	switch req.Method {
	case "get_mode":
		return map[string]string{"mode": s.assistant.Mode().String()}, nil

	case "set_mode":
		var p struct {
			Mode string `json:"mode"`
		}
		if err := unmarshalParams(req.Params, &p); err != nil {
			return nil, err
		}
		m, err := dispatch.ParseMode(p.Mode)
		if err != nil {
			return nil, err
		}
		s.assistant.SetMode(m)
		return okResult, nil

	case "get_status":
		return s.assistant.Status(), nil

	case "get_buffer":
		return map[string]string{"buffer": s.assistant.Buffer()}, nil

	case "get_config":
		doc, err := config.Marshal(s.assistant.Config())
		if err != nil {
			return nil, err
		}
		return map[string]string{"yaml": doc}, nil

	case "update_config":
		var p struct {
			YAML string `json:"yaml"`
		}
		if err := unmarshalParams(req.Params, &p); err != nil {
			return nil, err
		}
		cfg, err := config.LoadFromReader(strings.NewReader(p.YAML))
		if err != nil {
			return nil, err
		}
		if err := s.assistant.UpdateConfig(cfg); err != nil {
			return nil, err
		}
		return okResult, nil

	case "get_config_value":
		var p struct {
			Key string `json:"key"`
		}
		if err := unmarshalParams(req.Params, &p); err != nil {
			return nil, err
		}
		v, err := s.assistant.GetConfigValue(p.Key)
		if err != nil {
			return nil, err
		}
		return map[string]string{"key": p.Key, "value": v}, nil

	case "set_config_value":
		var p struct {
			Key   string `json:"key"`
			Value string `json:"value"`
		}
		if err := unmarshalParams(req.Params, &p); err != nil {
			return nil, err
		}
		if err := s.assistant.SetConfigValue(p.Key, p.Value); err != nil {
			return nil, err
		}
		return okResult, nil

	case "add_command":
		var p config.CommandConfig
		if err := unmarshalParams(req.Params, &p); err != nil {
			return nil, err
		}
		if err := s.assistant.AddCommand(p); err != nil {
			return nil, err
		}
		return okResult, nil

	case "remove_command":
		var p struct {
			Name string `json:"name"`
		}
		if err := unmarshalParams(req.Params, &p); err != nil {
			return nil, err
		}
		if err := s.assistant.RemoveCommand(p.Name); err != nil {
			return nil, err
		}
		return okResult, nil

	case "start":
		if err := s.assistant.Start(); err != nil {
			return nil, err
		}
		s.bus.Emit(event.Notification, map[string]any{"message": "pipeline started"})
		return okResult, nil

	case "stop":
		s.assistant.Stop()
		s.bus.Emit(event.Notification, map[string]any{"message": "pipeline stopped"})
		return okResult, nil

	case "restart":
		if err := s.assistant.Restart(); err != nil {
			return nil, err
		}
		s.bus.Emit(event.Notification, map[string]any{"message": "pipeline restarted"})
		return okResult, nil

	default:
		return nil, fmt.Errorf("control: unknown method %q", req.Method)
	}
}

func unmarshalParams(raw json.RawMessage, v any) error {
	if len(raw) == 0 {
		return errors.New("control: params required")
	}
	if err := json.Unmarshal(raw, v); err != nil {
		return fmt.Errorf("control: bad params: %w", err)
	}
	return nil
}
