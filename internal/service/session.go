package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/rocketscienceinc/tictactoe-session/internal/apperror"
	"github.com/rocketscienceinc/tictactoe-session/internal/entity"
	"github.com/rocketscienceinc/tictactoe-session/internal/tictactoe"
)

var ErrEmptySessionID = errors.New("session id is empty")

type SessionService interface {
	State(ctx context.Context, sessionID string) (*Snapshot, error)

	ApplyMove(ctx context.Context, sessionID string, row, col int) (*Snapshot, error)
	ResetBoard(ctx context.Context, sessionID string) (*Snapshot, error)
	ResetAll(ctx context.Context, sessionID string) (*Snapshot, error)
	SetPlayerMarker(ctx context.Context, sessionID string, player entity.Player, marker entity.Marker) (*Snapshot, error)

	Acquire(sessionID string)
	Release(sessionID string)
	Close(ctx context.Context, sessionID string) error
}

type sessionRepo interface {
	CreateOrUpdate(ctx context.Context, sessionID string, state *entity.State) error
	GetByID(ctx context.Context, sessionID string) (*entity.State, error)
	DeleteByID(ctx context.Context, sessionID string) error
}

// Snapshot is what the presentation layer renders after an operation.
type Snapshot struct {
	State  entity.State `json:"state"`
	Result string       `json:"result,omitempty"`
}

type session struct {
	mu     sync.Mutex
	engine *tictactoe.Engine
}

type sessionService struct {
	logger *slog.Logger

	sessionRepo sessionRepo

	allowed  []entity.Marker
	defaults entity.Markers

	mu       sync.Mutex
	sessions map[string]*session
	conns    map[string]int
}

func NewSessionService(logger *slog.Logger, sessionRepo sessionRepo, allowed []entity.Marker, defaults entity.Markers) SessionService {
	return &sessionService{
		logger:      logger,
		sessionRepo: sessionRepo,
		allowed:     allowed,
		defaults:    defaults,
		sessions:    make(map[string]*session),
		conns:       make(map[string]int),
	}
}

func (that *sessionService) State(ctx context.Context, sessionID string) (*Snapshot, error) {
	return that.withSession(ctx, sessionID, func(*tictactoe.Engine) (bool, error) {
		return false, nil
	})
}

func (that *sessionService) ApplyMove(ctx context.Context, sessionID string, row, col int) (*Snapshot, error) {
	return that.withSession(ctx, sessionID, func(engine *tictactoe.Engine) (bool, error) {
		result := engine.ApplyMove(row, col)
		if !result.Accepted {
			that.logger.Debug("move ignored", "session", sessionID, "row", row, "col", col)
		}

		return result.Accepted, nil
	})
}

func (that *sessionService) ResetBoard(ctx context.Context, sessionID string) (*Snapshot, error) {
	return that.withSession(ctx, sessionID, func(engine *tictactoe.Engine) (bool, error) {
		engine.ResetBoard()
		return true, nil
	})
}

func (that *sessionService) ResetAll(ctx context.Context, sessionID string) (*Snapshot, error) {
	return that.withSession(ctx, sessionID, func(engine *tictactoe.Engine) (bool, error) {
		engine.ResetAll()
		return true, nil
	})
}

func (that *sessionService) SetPlayerMarker(ctx context.Context, sessionID string, player entity.Player, marker entity.Marker) (*Snapshot, error) {
	return that.withSession(ctx, sessionID, func(engine *tictactoe.Engine) (bool, error) {
		if err := engine.SetPlayerMarker(player, marker); err != nil {
			return false, fmt.Errorf("failed to set player marker: %w", err)
		}

		return true, nil
	})
}

// Acquire - registers a connection using the session, so the engine stays
// in memory until the last one is released.
func (that *sessionService) Acquire(sessionID string) {
	that.mu.Lock()
	defer that.mu.Unlock()

	that.conns[sessionID]++
}

// Release - drops the in-memory engine once no connection uses it;
// the stored snapshot stays until it expires.
func (that *sessionService) Release(sessionID string) {
	that.mu.Lock()
	defer that.mu.Unlock()

	if that.conns[sessionID] > 1 {
		that.conns[sessionID]--
		return
	}

	delete(that.conns, sessionID)
	delete(that.sessions, sessionID)
}

// Close - forgets the session, both in memory and in storage.
func (that *sessionService) Close(ctx context.Context, sessionID string) error {
	that.mu.Lock()
	delete(that.sessions, sessionID)
	that.mu.Unlock()

	if err := that.sessionRepo.DeleteByID(ctx, sessionID); err != nil && !errors.Is(err, apperror.ErrSessionNotFound) {
		return fmt.Errorf("failed to delete session: %w", err)
	}

	return nil
}

// withSession - runs fn on the session's engine with the session locked and
// saves the snapshot when fn reports a change.
func (that *sessionService) withSession(ctx context.Context, sessionID string, fn func(*tictactoe.Engine) (bool, error)) (*Snapshot, error) {
	current, err := that.getOrCreate(ctx, sessionID)
	if err != nil {
		return nil, err
	}

	current.mu.Lock()
	defer current.mu.Unlock()

	changed, err := fn(current.engine)
	if err != nil {
		return nil, err
	}

	state := current.engine.State()

	if changed {
		if err = that.sessionRepo.CreateOrUpdate(ctx, sessionID, &state); err != nil {
			return nil, fmt.Errorf("failed to save session: %w", err)
		}
	}

	return &Snapshot{
		State:  state,
		Result: current.engine.ResultMessage(),
	}, nil
}

func (that *sessionService) getOrCreate(ctx context.Context, sessionID string) (*session, error) {
	log := that.logger.With("method", "getOrCreate", "session", sessionID)

	if sessionID == "" {
		return nil, ErrEmptySessionID
	}

	if existing, ok := that.lookup(sessionID); ok {
		return existing, nil
	}

	engine, err := tictactoe.NewEngine(that.allowed, that.defaults, that.notifier(sessionID))
	if err != nil {
		return nil, fmt.Errorf("failed to create engine: %w", err)
	}

	state, err := that.sessionRepo.GetByID(ctx, sessionID)
	switch {
	case errors.Is(err, apperror.ErrSessionNotFound):
		log.Info("new session started")
	case err != nil:
		return nil, fmt.Errorf("failed to get session: %w", err)
	default:
		if err = engine.Restore(*state); err != nil {
			log.Warn("stored session is unusable, starting over", "error", err)
		} else {
			log.Info("session restored")
		}
	}

	that.mu.Lock()
	defer that.mu.Unlock()

	// another request may have loaded the session meanwhile
	if existing, ok := that.sessions[sessionID]; ok {
		return existing, nil
	}

	created := &session{engine: engine}
	that.sessions[sessionID] = created

	return created, nil
}

func (that *sessionService) lookup(sessionID string) (*session, bool) {
	that.mu.Lock()
	defer that.mu.Unlock()

	existing, ok := that.sessions[sessionID]
	return existing, ok
}

func (that *sessionService) notifier(sessionID string) tictactoe.Notifier {
	log := that.logger.With("session", sessionID)

	return func(state entity.State) {
		log.Debug("state changed",
			"turn", state.Turn,
			"status", state.Status.Kind,
			"winner", state.Status.Winner,
			"score", state.Score,
		)
	}
}
