package websocket

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rocketscienceinc/tictactoe-session/internal/entity"
	"github.com/rocketscienceinc/tictactoe-session/internal/pkg"
	"github.com/rocketscienceinc/tictactoe-session/internal/service"
)

const (
	sessionCookieName = "user_session"
	sessionCookieTTL  = 24 * time.Hour

	shutdownTimeout = 5 * time.Second
)

type sessionService interface {
	State(ctx context.Context, sessionID string) (*service.Snapshot, error)

	ApplyMove(ctx context.Context, sessionID string, row, col int) (*service.Snapshot, error)
	ResetBoard(ctx context.Context, sessionID string) (*service.Snapshot, error)
	ResetAll(ctx context.Context, sessionID string) (*service.Snapshot, error)
	SetPlayerMarker(ctx context.Context, sessionID string, player entity.Player, marker entity.Marker) (*service.Snapshot, error)

	Acquire(sessionID string)
	Release(sessionID string)
	Close(ctx context.Context, sessionID string) error
}

type handlerFunc func(ctx context.Context, sessionID string, msg *Message) (*service.Snapshot, error)

type Server struct {
	logger         *slog.Logger
	sessionService sessionService
	upgrader       websocket.Upgrader

	handlers map[string]handlerFunc
}

func New(logger *slog.Logger, sessionService sessionService) *Server {
	server := &Server{
		logger:         logger.With("component", "websocket"),
		sessionService: sessionService,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(*http.Request) bool { return true },
		},

		handlers: make(map[string]handlerFunc),
	}

	server.handlers[actionConnect] = server.handleConnect
	server.handlers[actionGameMove] = server.handleMove
	server.handlers[actionGameReset] = server.handleResetBoard
	server.handlers[actionGameNew] = server.handleNewGame
	server.handlers[actionPlayerIcon] = server.handlePlayerIcon
	server.handlers[actionSessionEnd] = server.handleSessionEnd

	return server
}

// Handler - routes /ws to the WebSocket upgrade.
func (that *Server) Handler(ctx context.Context) http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/ws", func(w http.ResponseWriter, r *http.Request) {
		that.upgradeToWebSocket(ctx, w, r)
	})

	return mux
}

// Start - starts WebSocket server and stops it when ctx is done.
func (that *Server) Start(ctx context.Context, port string) error {
	srv := &http.Server{
		Addr:              ":" + port,
		Handler:           that.Handler(ctx),
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       30 * time.Second,
	}

	go func() {
		<-ctx.Done()

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()

		if err := srv.Shutdown(shutdownCtx); err != nil {
			that.logger.Error("failed to shut down server", "error", err)
		}
	}()

	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("failed to start server: %w", err)
	}

	return nil
}

// upgradeToWebSocket - upgrades the connection to WebSocket.
func (that *Server) upgradeToWebSocket(ctx context.Context, writer http.ResponseWriter, req *http.Request) {
	log := that.logger.With("method", "upgradeToWebSocket")

	sessionID, header := that.sessionCookie(req)

	conn, err := that.upgrader.Upgrade(writer, req, header)
	if err != nil {
		log.Error("failed to upgrade connection", "error", err)
		return
	}

	defer conn.Close()

	that.sessionService.Acquire(sessionID)
	defer that.sessionService.Release(sessionID)

	log.Info("WebSocket connection established", "session", sessionID)

	if err = that.handleMessages(ctx, conn, sessionID); err != nil {
		log.Error("error handling messages", "session", sessionID, "error", err)
	}
}

// handleMessages - processes messages from the client until it goes away.
func (that *Server) handleMessages(ctx context.Context, conn *websocket.Conn, sessionID string) error {
	log := that.logger.With("method", "handleMessages", "session", sessionID)

	// initial render
	if err := that.dispatch(ctx, conn, sessionID, &Message{Action: actionConnect}); err != nil {
		return err
	}

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				log.Info("WebSocket connection closed")
				return nil
			}

			return fmt.Errorf("failed to read message: %w", err)
		}

		var message Message
		if err = json.Unmarshal(data, &message); err != nil {
			log.Warn("failed to decode message", "error", err)
			if err = that.sendErrorResponse(conn, actionError, "malformed message"); err != nil {
				return err
			}
			continue
		}

		if err := that.dispatch(ctx, conn, sessionID, &message); err != nil {
			return err
		}

		if message.Action == actionSessionEnd {
			return nil
		}
	}
}

func (that *Server) dispatch(ctx context.Context, conn *websocket.Conn, sessionID string, message *Message) error {
	log := that.logger.With("method", "dispatch", "session", sessionID, "action", message.Action)

	handler, ok := that.handlers[message.Action]
	if !ok {
		log.Warn("unknown action")
		return that.sendErrorResponse(conn, actionError, "unknown action: "+message.Action)
	}

	snapshot, err := handler(ctx, sessionID, message)
	if err != nil {
		log.Error("error processing message", "error", err)
		return that.sendErrorResponse(conn, message.Action, errorText(err))
	}

	return that.sendSnapshot(conn, message.Action, snapshot)
}

// sessionCookie - reads the session cookie or issues a new one.
func (that *Server) sessionCookie(req *http.Request) (string, http.Header) {
	log := that.logger.With("method", "sessionCookie")

	if cookie, err := req.Cookie(sessionCookieName); err == nil && cookie.Value != "" {
		log.Debug("session cookie found", "cookie", cookie.Value)
		return cookie.Value, nil
	}

	cookie := &http.Cookie{
		Name:     sessionCookieName,
		Value:    pkg.GenerateNewSessionID(),
		Expires:  time.Now().Add(sessionCookieTTL),
		Path:     "/ws",
		HttpOnly: true,
	}

	log.Info("session cookie not found, new one created", "cookie", cookie.Value)

	header := http.Header{}
	header.Add("Set-Cookie", cookie.String())

	return cookie.Value, header
}
