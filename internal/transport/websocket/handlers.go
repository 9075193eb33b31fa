package websocket

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/gorilla/websocket"
	"github.com/rocketscienceinc/tictactoe-session/internal/apperror"
	"github.com/rocketscienceinc/tictactoe-session/internal/entity"
	"github.com/rocketscienceinc/tictactoe-session/internal/service"
)

var ErrInvalidPayload = errors.New("invalid payload")

func (that *Server) handleConnect(ctx context.Context, sessionID string, _ *Message) (*service.Snapshot, error) {
	snapshot, err := that.sessionService.State(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("failed to get session state: %w", err)
	}

	return snapshot, nil
}

func (that *Server) handleMove(ctx context.Context, sessionID string, msg *Message) (*service.Snapshot, error) {
	var payload MovePayload
	if err := json.Unmarshal(msg.Payload, &payload); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidPayload, err)
	}

	if payload.Row == nil || payload.Col == nil {
		return nil, fmt.Errorf("%w: row and col are required", ErrInvalidPayload)
	}

	snapshot, err := that.sessionService.ApplyMove(ctx, sessionID, *payload.Row, *payload.Col)
	if err != nil {
		return nil, fmt.Errorf("failed to apply move: %w", err)
	}

	return snapshot, nil
}

func (that *Server) handleResetBoard(ctx context.Context, sessionID string, _ *Message) (*service.Snapshot, error) {
	snapshot, err := that.sessionService.ResetBoard(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("failed to reset board: %w", err)
	}

	return snapshot, nil
}

func (that *Server) handleNewGame(ctx context.Context, sessionID string, _ *Message) (*service.Snapshot, error) {
	snapshot, err := that.sessionService.ResetAll(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("failed to start new game: %w", err)
	}

	return snapshot, nil
}

func (that *Server) handlePlayerIcon(ctx context.Context, sessionID string, msg *Message) (*service.Snapshot, error) {
	var payload IconPayload
	if err := json.Unmarshal(msg.Payload, &payload); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidPayload, err)
	}

	player, err := entity.ParsePlayer(payload.Player)
	if err != nil {
		return nil, err
	}

	snapshot, err := that.sessionService.SetPlayerMarker(ctx, sessionID, player, entity.Marker(payload.Icon))
	if err != nil {
		return nil, fmt.Errorf("failed to set icon: %w", err)
	}

	return snapshot, nil
}

func (that *Server) handleSessionEnd(ctx context.Context, sessionID string, _ *Message) (*service.Snapshot, error) {
	if err := that.sessionService.Close(ctx, sessionID); err != nil {
		return nil, fmt.Errorf("failed to close session: %w", err)
	}

	return nil, nil
}

func (that *Server) sendSnapshot(conn *websocket.Conn, action string, snapshot *service.Snapshot) error {
	payload := ResponsePayload{}
	if snapshot != nil {
		payload.State = &snapshot.State
		payload.Result = snapshot.Result
	}

	return that.sendMessage(conn, action, payload)
}

func (that *Server) sendErrorResponse(conn *websocket.Conn, action, errorMsg string) error {
	if err := that.sendMessage(conn, action, ResponsePayload{Error: errorMsg}); err != nil {
		return fmt.Errorf("failed to send error response: %w", err)
	}

	return nil
}

func (that *Server) sendMessage(conn *websocket.Conn, action string, payload ResponsePayload) error {
	if err := conn.WriteJSON(Response{Action: action, Payload: payload}); err != nil {
		return fmt.Errorf("failed to write message: %w", err)
	}

	return nil
}

// errorText - caller errors are reported as is, anything else stays on the server.
func errorText(err error) string {
	switch {
	case errors.Is(err, apperror.ErrUnknownMarker):
		return apperror.ErrUnknownMarker.Error()
	case errors.Is(err, apperror.ErrUnknownPlayer):
		return apperror.ErrUnknownPlayer.Error()
	case errors.Is(err, ErrInvalidPayload):
		return ErrInvalidPayload.Error()
	default:
		return "internal error"
	}
}
