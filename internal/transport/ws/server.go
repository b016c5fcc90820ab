package ws

import (
	"context"
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"creepworld.ai/internal/persistence/scripts"
	"creepworld.ai/internal/protocol"
	"creepworld.ai/internal/sim/engine"
	"creepworld.ai/internal/sim/world"
)

// Backend is the engine surface the admin endpoint needs.
type Backend interface {
	Time() uint64
	HasPlayer(name string) bool
	RoomData(room string) (world.RoomData, bool)
	Script(player string) (string, error)
	SetScript(player, src string) <-chan error
	Register(player, src string) <-chan error
}

type Config struct {
	MaxMessageBytes int64
	// ApplyTimeout bounds how long register/setScript wait for the tick boundary.
	ApplyTimeout time.Duration
	// AllowRemote accepts admin connections from non-loopback addresses.
	AllowRemote bool
}

type Server struct {
	backend   Backend
	validator *protocol.Validator
	cfg       Config
	log       *zap.Logger

	upgrader websocket.Upgrader
}

func NewServer(b Backend, v *protocol.Validator, cfg Config, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.MaxMessageBytes <= 0 {
		cfg.MaxMessageBytes = 256 << 10
	}
	if cfg.ApplyTimeout <= 0 {
		cfg.ApplyTimeout = 10 * time.Second
	}
	s := &Server{
		backend:   b,
		validator: v,
		cfg:       cfg,
		log:       logger,
	}
	s.upgrader = websocket.Upgrader{
		ReadBufferSize:  64 * 1024,
		WriteBufferSize: 64 * 1024,
		CheckOrigin:     s.checkOrigin,
	}
	return s
}

// checkOrigin admits clients without an Origin header and pages served from loopback, unless
// remote admin is allowed.
func (s *Server) checkOrigin(r *http.Request) bool {
	if s.cfg.AllowRemote {
		return true
	}
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true
	}
	u, err := url.Parse(origin)
	if err != nil || u.Host == "" {
		return false
	}
	host := u.Hostname()
	if strings.EqualFold(host, "localhost") {
		return true
	}
	ip := net.ParseIP(host)
	return ip != nil && ip.IsLoopback()
}

// Routes registers /v1/admin and /healthz on mux.
func (s *Server) Routes(mux *http.ServeMux) {
	mux.HandleFunc("/v1/admin", s.Handler())
	mux.HandleFunc("/healthz", s.HealthHandler())
}

func (s *Server) HealthHandler() http.HandlerFunc {
	return func(rw http.ResponseWriter, r *http.Request) {
		rw.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(rw).Encode(map[string]any{"ok": true, "tick": s.backend.Time()})
	}
}

func (s *Server) Handler() http.HandlerFunc {
	return func(rw http.ResponseWriter, r *http.Request) {
		if !s.cfg.AllowRemote && !isLoopbackRemote(r.RemoteAddr) {
			http.Error(rw, "forbidden", http.StatusForbidden)
			return
		}
		conn, err := s.upgrader.Upgrade(rw, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		conn.SetReadLimit(s.cfg.MaxMessageBytes)
		log := s.log.With(zap.String("remote", r.RemoteAddr))
		log.Debug("admin connected")

		ctx, cancel := context.WithCancel(r.Context())
		defer cancel()
		out := make(chan protocol.Response, 16)

		// Writer goroutine.
		go func() {
			for {
				select {
				case <-ctx.Done():
					return
				case resp := <-out:
					if err := writeJSON(conn, resp); err != nil {
						cancel()
						return
					}
				}
			}
		}()

		// Reader loop. Requests on one connection are handled in order.
		for {
			_ = conn.SetReadDeadline(time.Now().Add(5 * time.Minute))
			_, msg, err := conn.ReadMessage()
			if err != nil {
				break
			}
			resp := s.Handle(ctx, msg)
			if !resp.OK {
				log.Info("admin request failed",
					zap.String("type", resp.Type),
					zap.String("code", resp.Code),
					zap.String("error", resp.Error),
				)
			}
			select {
			case out <- resp:
			case <-ctx.Done():
				return
			}
		}
	}
}

// Handle answers one raw request.
func (s *Server) Handle(ctx context.Context, raw []byte) protocol.Response {
	req, code, err := s.validator.DecodeRequest(raw)
	if err != nil {
		return protocol.Fail(req, code, err.Error())
	}

	var data any
	switch req.Type {
	case protocol.TypeGetRoomData:
		rd, ok := s.backend.RoomData(req.Room)
		if !ok {
			return protocol.Fail(req, protocol.ErrNotFound, "no such room")
		}
		data = rd

	case protocol.TypeGetScript:
		src, err := s.backend.Script(req.Player)
		if err != nil {
			return fail(req, err)
		}
		data = protocol.ScriptData{Player: req.Player, Script: src}

	case protocol.TypeSetScript:
		if err := s.await(ctx, s.backend.SetScript(req.Player, req.Script)); err != nil {
			return fail(req, err)
		}

	case protocol.TypeRegister:
		if err := s.await(ctx, s.backend.Register(req.Player, req.Script)); err != nil {
			return fail(req, err)
		}
		data = protocol.PlayerData{Player: req.Player, Time: s.backend.Time()}

	case protocol.TypeLogin:
		if !s.backend.HasPlayer(req.Player) {
			return protocol.Fail(req, protocol.ErrUnknownPlayer, engine.ErrUnknownPlayer.Error())
		}
		data = protocol.PlayerData{Player: req.Player, Time: s.backend.Time()}
	}

	resp, err := protocol.OK(req, data)
	if err != nil {
		return protocol.Fail(req, protocol.ErrInternal, err.Error())
	}
	return resp
}

var errTimeout = errors.New("not applied before timeout")

func (s *Server) await(ctx context.Context, ch <-chan error) error {
	t := time.NewTimer(s.cfg.ApplyTimeout)
	defer t.Stop()
	select {
	case err := <-ch:
		return err
	case <-t.C:
		return errTimeout
	case <-ctx.Done():
		return ctx.Err()
	}
}

func fail(req protocol.Request, err error) protocol.Response {
	code := protocol.ErrInternal
	switch {
	case errors.Is(err, engine.ErrUnknownPlayer):
		code = protocol.ErrUnknownPlayer
	case errors.Is(err, engine.ErrPlayerExists):
		code = protocol.ErrConflict
	case errors.Is(err, engine.ErrHalted):
		code = protocol.ErrHalted
	case errors.Is(err, world.ErrNoClaimableRoom):
		code = protocol.ErrNoRoom
	case errors.Is(err, scripts.ErrBadPlayerName):
		code = protocol.ErrBadRequest
	case errors.Is(err, errTimeout), errors.Is(err, context.DeadlineExceeded):
		code = protocol.ErrTimeout
	}
	return protocol.Fail(req, code, err.Error())
}

func writeJSON(conn *websocket.Conn, v any) error {
	b, err := json.Marshal(v)
	if err != nil {
		return err
	}
	_ = conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
	return conn.WriteMessage(websocket.TextMessage, b)
}

func isLoopbackRemote(remoteAddr string) bool {
	host := remoteAddr
	if h, _, err := net.SplitHostPort(remoteAddr); err == nil {
		host = h
	}
	host = strings.TrimPrefix(host, "[")
	host = strings.TrimSuffix(host, "]")
	ip := net.ParseIP(host)
	return ip != nil && ip.IsLoopback()
}
