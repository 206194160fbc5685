package rpc

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"

	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
)

// Handler processes one decoded request and returns the reply payload.
type Handler interface {
	Handle(ctx context.Context, env Envelope) (any, error)
}

var ErrUnknownType = errors.New("unknown request type")

// Server owns the websocket endpoint callers connect to. Each frame is
// dispatched on its own goroutine so a slow request (a prompt waiting on
// a user) never blocks the connection's other traffic; writes to the
// shared socket are serialized.
type Server struct {
	logger   *slog.Logger
	handler  Handler
	upgrader websocket.Upgrader
}

func NewServer(log *slog.Logger, handler Handler) *Server {
	if log == nil {
		log = slog.Default()
	}
	return &Server{
		logger:  log.With(slog.String("component", "rpc_server")),
		handler: handler,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
		},
	}
}

func (s *Server) Register(e *echo.Echo) {
	e.GET("/rpc", s.handleSocket)
}

func (s *Server) handleSocket(c echo.Context) error {
	conn, err := s.upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	defer conn.Close()
	s.logger.Info("caller connected", slog.String("remote", conn.RemoteAddr().String()))

	ctx := c.Request().Context()
	var writeMu sync.Mutex
	for {
		var env Envelope
		if err := conn.ReadJSON(&env); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				s.logger.Warn("caller read failed", slog.Any("error", err))
			}
			return nil
		}
		go s.dispatch(ctx, conn, &writeMu, env)
	}
}

func (s *Server) dispatch(ctx context.Context, conn *websocket.Conn, writeMu *sync.Mutex, env Envelope) {
	reply := Envelope{Type: env.Type, ID: env.ID}
	result, err := s.handler.Handle(ctx, env)
	switch {
	case err != nil:
		s.logger.Warn("request failed", slog.String("type", env.Type), slog.Any("error", err))
		reply.Error = err.Error()
	case result != nil:
		data, err := json.Marshal(result)
		if err != nil {
			reply.Error = fmt.Sprintf("encode reply: %v", err)
		} else {
			reply.Data = data
		}
	}

	writeMu.Lock()
	defer writeMu.Unlock()
	if err := conn.WriteJSON(reply); err != nil {
		s.logger.Warn("reply write failed", slog.String("type", env.Type), slog.Any("error", err))
	}
}
