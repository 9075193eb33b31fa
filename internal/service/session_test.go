package service

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/rocketscienceinc/tictactoe-session/internal/apperror"
	"github.com/rocketscienceinc/tictactoe-session/internal/entity"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

var errRedisDown = errors.New("redis down")

type mockSessionRepo struct {
	mock.Mock
}

func (that *mockSessionRepo) CreateOrUpdate(ctx context.Context, sessionID string, state *entity.State) error {
	args := that.Called(ctx, sessionID, state)
	return args.Error(0)
}

func (that *mockSessionRepo) GetByID(ctx context.Context, sessionID string) (*entity.State, error) {
	args := that.Called(ctx, sessionID)

	state, _ := args.Get(0).(*entity.State)
	return state, args.Error(1)
}

func (that *mockSessionRepo) DeleteByID(ctx context.Context, sessionID string) error {
	args := that.Called(ctx, sessionID)
	return args.Error(0)
}

func newTestService(t *testing.T) (SessionService, *mockSessionRepo) {
	t.Helper()

	repo := &mockSessionRepo{}
	t.Cleanup(func() { repo.AssertExpectations(t) })

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	allowed := []entity.Marker{"X", "O", "⭐"}

	return NewSessionService(logger, repo, allowed, entity.Markers{Player1: "X", Player2: "O"}), repo
}

func TestSessionService_State(t *testing.T) {
	ctx := context.Background()

	t.Run("Creates a fresh session when nothing is stored", func(t *testing.T) {
		// Given: the repository has no snapshot
		svc, repo := newTestService(t)
		repo.On("GetByID", mock.Anything, "s1").Return(nil, apperror.ErrSessionNotFound).Once()

		// When: the state is requested
		snapshot, err := svc.State(ctx, "s1")

		// Then: a new in-progress game is returned and nothing is saved
		require.NoError(t, err)
		assert.Equal(t, entity.Player1, snapshot.State.Turn)
		assert.Equal(t, entity.StatusInProgress, snapshot.State.Status.Kind)
		assert.Empty(t, snapshot.Result)
		repo.AssertNotCalled(t, "CreateOrUpdate", mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("Restores a stored session", func(t *testing.T) {
		// Given: a stored snapshot with a score
		svc, repo := newTestService(t)
		stored := &entity.State{
			Turn:    entity.Player2,
			Status:  entity.Status{Kind: entity.StatusInProgress},
			Score:   entity.ScoreBoard{Player1: 2, Draws: 1},
			Markers: entity.Markers{Player1: "⭐", Player2: "O"},
		}
		stored.Board[1][1] = "⭐"
		repo.On("GetByID", mock.Anything, "s1").Return(stored, nil).Once()

		// When: the state is requested
		snapshot, err := svc.State(ctx, "s1")

		// Then: the stored state is returned
		require.NoError(t, err)
		assert.Equal(t, *stored, snapshot.State)
	})

	t.Run("Unusable snapshot starts a fresh game", func(t *testing.T) {
		svc, repo := newTestService(t)
		stored := &entity.State{
			Turn:    entity.Player1,
			Status:  entity.Status{Kind: entity.StatusInProgress},
			Markers: entity.Markers{Player1: "Z", Player2: "O"},
		}
		repo.On("GetByID", mock.Anything, "s1").Return(stored, nil).Once()

		snapshot, err := svc.State(ctx, "s1")

		require.NoError(t, err)
		assert.Equal(t, entity.Markers{Player1: "X", Player2: "O"}, snapshot.State.Markers)
	})

	t.Run("Error when storage fails", func(t *testing.T) {
		svc, repo := newTestService(t)
		repo.On("GetByID", mock.Anything, "s1").Return(nil, errRedisDown).Once()

		_, err := svc.State(ctx, "s1")

		require.ErrorIs(t, err, errRedisDown)
	})

	t.Run("Error on empty session id", func(t *testing.T) {
		svc, _ := newTestService(t)

		_, err := svc.State(ctx, "")

		require.ErrorIs(t, err, ErrEmptySessionID)
	})

	t.Run("Session is loaded once", func(t *testing.T) {
		svc, repo := newTestService(t)
		repo.On("GetByID", mock.Anything, "s1").Return(nil, apperror.ErrSessionNotFound).Once()

		_, err := svc.State(ctx, "s1")
		require.NoError(t, err)
		_, err = svc.State(ctx, "s1")
		require.NoError(t, err)
	})
}

func TestSessionService_ApplyMove(t *testing.T) {
	ctx := context.Background()

	t.Run("Accepted move is saved", func(t *testing.T) {
		// Given: a fresh session
		svc, repo := newTestService(t)
		repo.On("GetByID", mock.Anything, "s1").Return(nil, apperror.ErrSessionNotFound).Once()
		repo.On("CreateOrUpdate", mock.Anything, "s1", mock.MatchedBy(func(state *entity.State) bool {
			return state.Board[0][0] == "X" && state.Turn == entity.Player2
		})).Return(nil).Once()

		// When: player 1 plays (0,0)
		snapshot, err := svc.ApplyMove(ctx, "s1", 0, 0)

		// Then: the move is visible and saved
		require.NoError(t, err)
		assert.Equal(t, entity.Marker("X"), snapshot.State.Board[0][0])
	})

	t.Run("Ignored move is not saved", func(t *testing.T) {
		svc, repo := newTestService(t)
		repo.On("GetByID", mock.Anything, "s1").Return(nil, apperror.ErrSessionNotFound).Once()
		repo.On("CreateOrUpdate", mock.Anything, "s1", mock.Anything).Return(nil).Once()

		_, err := svc.ApplyMove(ctx, "s1", 0, 0)
		require.NoError(t, err)

		snapshot, err := svc.ApplyMove(ctx, "s1", 0, 0)

		require.NoError(t, err)
		assert.Equal(t, entity.Player2, snapshot.State.Turn)
	})

	t.Run("Winning move reports the result", func(t *testing.T) {
		svc, repo := newTestService(t)
		repo.On("GetByID", mock.Anything, "s1").Return(nil, apperror.ErrSessionNotFound).Once()
		repo.On("CreateOrUpdate", mock.Anything, "s1", mock.Anything).Return(nil).Times(5)

		var snapshot *Snapshot
		for _, cell := range []entity.Cell{{Row: 0, Col: 0}, {Row: 1, Col: 1}, {Row: 0, Col: 1}, {Row: 1, Col: 0}, {Row: 0, Col: 2}} {
			var err error
			snapshot, err = svc.ApplyMove(ctx, "s1", cell.Row, cell.Col)
			require.NoError(t, err)
		}

		assert.Equal(t, "X Wins!", snapshot.Result)
		assert.Equal(t, entity.ScoreBoard{Player1: 1}, snapshot.State.Score)
	})

	t.Run("Error when save fails", func(t *testing.T) {
		svc, repo := newTestService(t)
		repo.On("GetByID", mock.Anything, "s1").Return(nil, apperror.ErrSessionNotFound).Once()
		repo.On("CreateOrUpdate", mock.Anything, "s1", mock.Anything).Return(errRedisDown).Once()

		_, err := svc.ApplyMove(ctx, "s1", 0, 0)

		require.ErrorIs(t, err, errRedisDown)
	})
}

func TestSessionService_Reset(t *testing.T) {
	ctx := context.Background()

	t.Run("ResetBoard keeps the score and ResetAll clears it", func(t *testing.T) {
		// Given: a restored session with a score and a finished round
		svc, repo := newTestService(t)
		line := entity.WinLines[0]
		stored := &entity.State{
			Board:       entity.Board{{"X", "X", "X"}, {"O", "O", ""}, {"", "", ""}},
			Turn:        entity.Player1,
			Status:      entity.Status{Kind: entity.StatusWon, Winner: entity.Player1},
			WinningLine: &line,
			Score:       entity.ScoreBoard{Player1: 1},
			Markers:     entity.Markers{Player1: "X", Player2: "O"},
			LastOutcome: entity.OutcomePlayer1,
		}
		repo.On("GetByID", mock.Anything, "s1").Return(stored, nil).Once()
		repo.On("CreateOrUpdate", mock.Anything, "s1", mock.Anything).Return(nil).Twice()

		// When: the board is reset
		snapshot, err := svc.ResetBoard(ctx, "s1")

		// Then: the score survives
		require.NoError(t, err)
		assert.Equal(t, entity.Board{}, snapshot.State.Board)
		assert.Equal(t, entity.ScoreBoard{Player1: 1}, snapshot.State.Score)
		assert.Nil(t, snapshot.State.WinningLine)

		// When: a new game is started
		snapshot, err = svc.ResetAll(ctx, "s1")

		// Then: the score is cleared
		require.NoError(t, err)
		assert.Equal(t, entity.ScoreBoard{}, snapshot.State.Score)
	})
}

func TestSessionService_SetPlayerMarker(t *testing.T) {
	ctx := context.Background()

	t.Run("Collision reassigns the other player", func(t *testing.T) {
		svc, repo := newTestService(t)
		repo.On("GetByID", mock.Anything, "s1").Return(nil, apperror.ErrSessionNotFound).Once()
		repo.On("CreateOrUpdate", mock.Anything, "s1", mock.Anything).Return(nil).Once()

		snapshot, err := svc.SetPlayerMarker(ctx, "s1", entity.Player2, "X")

		require.NoError(t, err)
		assert.Equal(t, entity.Markers{Player1: "O", Player2: "X"}, snapshot.State.Markers)
	})

	t.Run("Error on unknown marker", func(t *testing.T) {
		svc, repo := newTestService(t)
		repo.On("GetByID", mock.Anything, "s1").Return(nil, apperror.ErrSessionNotFound).Once()

		_, err := svc.SetPlayerMarker(ctx, "s1", entity.Player1, "Z")

		require.ErrorIs(t, err, apperror.ErrUnknownMarker)
	})
}

func TestSessionService_Release(t *testing.T) {
	ctx := context.Background()

	// Given: a session with one saved move
	svc, repo := newTestService(t)
	var saved *entity.State
	repo.On("GetByID", mock.Anything, "s1").Return(nil, apperror.ErrSessionNotFound).Once()
	repo.On("CreateOrUpdate", mock.Anything, "s1", mock.Anything).Run(func(args mock.Arguments) {
		saved, _ = args.Get(2).(*entity.State)
	}).Return(nil).Once()

	_, err := svc.ApplyMove(ctx, "s1", 2, 2)
	require.NoError(t, err)
	require.NotNil(t, saved)

	// When: the engine is released and the session is used again
	svc.Release("s1")
	repo.On("GetByID", mock.Anything, "s1").Return(saved, nil).Once()

	snapshot, err := svc.State(ctx, "s1")

	// Then: the game continues from the snapshot
	require.NoError(t, err)
	assert.Equal(t, entity.Marker("X"), snapshot.State.Board[2][2])
	assert.Equal(t, entity.Player2, snapshot.State.Turn)
}

func TestSessionService_Acquire(t *testing.T) {
	ctx := context.Background()

	t.Run("Engine stays while another connection uses it", func(t *testing.T) {
		// Given: two connections on the same session and one move
		svc, repo := newTestService(t)
		repo.On("GetByID", mock.Anything, "s1").Return(nil, apperror.ErrSessionNotFound).Once()
		repo.On("CreateOrUpdate", mock.Anything, "s1", mock.Anything).Return(nil).Twice()

		svc.Acquire("s1")
		svc.Acquire("s1")

		_, err := svc.ApplyMove(ctx, "s1", 0, 0)
		require.NoError(t, err)

		// When: one connection goes away and the other keeps playing
		svc.Release("s1")
		snapshot, err := svc.ApplyMove(ctx, "s1", 1, 1)

		// Then: the same engine is used, without reloading from storage
		require.NoError(t, err)
		assert.Equal(t, entity.Marker("X"), snapshot.State.Board[0][0])
		assert.Equal(t, entity.Marker("O"), snapshot.State.Board[1][1])
	})

	t.Run("Last release drops the engine", func(t *testing.T) {
		// Given: one connection that loaded the session
		svc, repo := newTestService(t)
		repo.On("GetByID", mock.Anything, "s1").Return(nil, apperror.ErrSessionNotFound).Twice()

		svc.Acquire("s1")
		_, err := svc.State(ctx, "s1")
		require.NoError(t, err)

		// When: it is released and the session is used again
		svc.Release("s1")
		_, err = svc.State(ctx, "s1")

		// Then: the session is loaded from storage again
		require.NoError(t, err)
	})
}

func TestSessionService_LoadDoesNotBlockOtherSessions(t *testing.T) {
	ctx := context.Background()

	// Given: loading one session hangs in storage
	svc, repo := newTestService(t)
	entered := make(chan struct{})
	unblock := make(chan struct{})
	repo.On("GetByID", mock.Anything, "slow").Run(func(mock.Arguments) {
		close(entered)
		<-unblock
	}).Return(nil, apperror.ErrSessionNotFound).Once()
	repo.On("GetByID", mock.Anything, "fast").Return(nil, apperror.ErrSessionNotFound).Once()

	slowDone := make(chan error, 1)
	go func() {
		_, err := svc.State(ctx, "slow")
		slowDone <- err
	}()
	<-entered

	// When: another session is requested meanwhile
	fastDone := make(chan error, 1)
	go func() {
		_, err := svc.State(ctx, "fast")
		fastDone <- err
	}()

	// Then: it is served without waiting for the slow one
	select {
	case err := <-fastDone:
		require.NoError(t, err)
	case <-time.After(time.Second):
		close(unblock)
		t.Fatal("session load blocked by another session")
	}

	close(unblock)
	require.NoError(t, <-slowDone)
}

func TestSessionService_Close(t *testing.T) {
	ctx := context.Background()

	t.Run("Deletes the snapshot and forgets the engine", func(t *testing.T) {
		// Given: an open session with a move
		svc, repo := newTestService(t)
		repo.On("GetByID", mock.Anything, "s1").Return(nil, apperror.ErrSessionNotFound).Twice()
		repo.On("CreateOrUpdate", mock.Anything, "s1", mock.Anything).Return(nil).Once()
		repo.On("DeleteByID", mock.Anything, "s1").Return(nil).Once()

		_, err := svc.ApplyMove(ctx, "s1", 0, 0)
		require.NoError(t, err)

		// When: the session is closed
		require.NoError(t, svc.Close(ctx, "s1"))

		// Then: the next request starts from scratch
		snapshot, err := svc.State(ctx, "s1")
		require.NoError(t, err)
		assert.Equal(t, entity.Board{}, snapshot.State.Board)
	})

	t.Run("Missing snapshot is not an error", func(t *testing.T) {
		svc, repo := newTestService(t)
		repo.On("DeleteByID", mock.Anything, "s1").Return(apperror.ErrSessionNotFound).Once()

		require.NoError(t, svc.Close(ctx, "s1"))
	})

	t.Run("Error when storage fails", func(t *testing.T) {
		svc, repo := newTestService(t)
		repo.On("DeleteByID", mock.Anything, "s1").Return(errRedisDown).Once()

		require.ErrorIs(t, svc.Close(ctx, "s1"), errRedisDown)
	})
}
