package tictactoe

import (
	"errors"
	"fmt"

	"github.com/rocketscienceinc/tictactoe-session/internal/apperror"
	"github.com/rocketscienceinc/tictactoe-session/internal/entity"
)

const minMarkers = 2

var ErrCorruptedState = errors.New("corrupted game state")

// Notifier receives the full engine state after every state change.
type Notifier func(state entity.State)

// MoveResult - what the presentation layer needs to render a move.
type MoveResult struct {
	Accepted    bool
	Status      entity.Status
	WinningLine *entity.WinningLine
}

// Engine owns the board, turn, status and score of a single session.
// It is not safe for concurrent use.
type Engine struct {
	allowed []entity.Marker
	notify  Notifier

	board       entity.Board
	turn        entity.Player
	status      entity.Status
	winningLine *entity.WinningLine
	score       entity.ScoreBoard
	markers     entity.Markers
	lastOutcome entity.Outcome
}

// NewEngine - creates an initialized engine. notify may be nil.
func NewEngine(allowed []entity.Marker, markers entity.Markers, notify Notifier) (*Engine, error) {
	if err := ValidateMarkerSet(allowed); err != nil {
		return nil, err
	}

	engine := &Engine{
		allowed: append([]entity.Marker(nil), allowed...),
		notify:  notify,
	}

	if err := engine.validateMarkers(markers); err != nil {
		return nil, err
	}
	engine.markers = markers

	engine.Initialize()

	return engine, nil
}

// ValidateMarkerSet - the allowed set needs at least two distinct, non-empty values.
func ValidateMarkerSet(allowed []entity.Marker) error {
	seen := make(map[entity.Marker]struct{}, len(allowed))
	for _, marker := range allowed {
		if marker == entity.EmptyMarker {
			return fmt.Errorf("%w: empty marker", apperror.ErrInvalidMarkerSet)
		}

		if _, ok := seen[marker]; ok {
			return fmt.Errorf("%w: duplicate marker %q", apperror.ErrInvalidMarkerSet, marker)
		}
		seen[marker] = struct{}{}
	}

	if len(seen) < minMarkers {
		return fmt.Errorf("%w: need at least %d markers, got %d", apperror.ErrInvalidMarkerSet, minMarkers, len(seen))
	}

	return nil
}

// Initialize - starts a fresh session: empty board and zero scores.
func (that *Engine) Initialize() {
	that.clearBoard()
	that.score.Reset()
	that.emit()
}

// ApplyMove - places the current player's marker at (row, col).
// Moves on occupied cells, outside the board or after the game ended are ignored.
func (that *Engine) ApplyMove(row, col int) MoveResult {
	cell := entity.Cell{Row: row, Col: col}

	if that.status.IsTerminal() || !cell.InBounds() || !that.board.IsEmptyAt(cell) {
		return that.result(false)
	}

	marker := that.markers.Of(that.turn)
	that.board[row][col] = marker

	switch line, won := that.findWinningLine(cell, marker); {
	case won:
		that.status = entity.Status{Kind: entity.StatusWon, Winner: that.turn}
		that.winningLine = &line
		that.finish(that.turn.Outcome())
	case that.board.IsFull():
		that.status = entity.Status{Kind: entity.StatusDraw}
		that.finish(entity.OutcomeDraw)
	default:
		that.turn = that.turn.Other()
	}

	that.emit()

	return that.result(true)
}

// ResetBoard - starts a new round, keeping the score board.
func (that *Engine) ResetBoard() {
	that.clearBoard()
	that.emit()
}

// ResetAll - starts a new round and zeroes the score board.
func (that *Engine) ResetAll() {
	that.Initialize()
}

// SetPlayerMarker - assigns a marker to the player. When the opponent already
// holds it, the opponent gets the first allowed marker that differs.
// Cells already on the board keep the marker they were placed with.
func (that *Engine) SetPlayerMarker(player entity.Player, marker entity.Marker) error {
	if !player.IsValid() {
		return fmt.Errorf("%w: %q", apperror.ErrUnknownPlayer, player)
	}

	if !that.isAllowed(marker) {
		return fmt.Errorf("%w: %q", apperror.ErrUnknownMarker, marker)
	}

	that.markers.Set(player, marker)

	other := player.Other()
	if that.markers.Of(other) == marker {
		that.markers.Set(other, that.firstAllowedExcept(marker))
	}

	that.emit()

	return nil
}

// Restore - replaces the engine state with a previously taken snapshot.
func (that *Engine) Restore(state entity.State) error {
	if err := that.validateMarkers(state.Markers); err != nil {
		return err
	}

	if !state.Turn.IsValid() {
		return fmt.Errorf("%w: turn %q", apperror.ErrUnknownPlayer, state.Turn)
	}

	switch state.Status.Kind {
	case entity.StatusInProgress, entity.StatusWon, entity.StatusDraw:
	default:
		return fmt.Errorf("%w: unknown status %q", ErrCorruptedState, state.Status.Kind)
	}

	for _, row := range state.Board {
		for _, marker := range row {
			if marker != entity.EmptyMarker && !that.isAllowed(marker) {
				return fmt.Errorf("%w: board cell %q", apperror.ErrUnknownMarker, marker)
			}
		}
	}

	if err := validateOutcome(state); err != nil {
		return err
	}

	that.board = state.Board
	that.turn = state.Turn
	that.status = state.Status
	that.score = state.Score
	that.markers = state.Markers
	that.lastOutcome = state.LastOutcome
	that.winningLine = nil
	if state.WinningLine != nil {
		line := *state.WinningLine
		that.winningLine = &line
	}

	return nil
}

// validateOutcome - a won snapshot needs a winner and an on-board line of one marker,
// any other status carries neither.
func validateOutcome(state entity.State) error {
	if state.Status.Kind != entity.StatusWon {
		if state.Status.Winner != "" || state.WinningLine != nil {
			return fmt.Errorf("%w: %s status with a winner or line", ErrCorruptedState, state.Status.Kind)
		}

		return nil
	}

	if state.WinningLine == nil || !state.Status.Winner.IsValid() {
		return fmt.Errorf("%w: won without a winner line", ErrCorruptedState)
	}

	line := *state.WinningLine
	for _, cell := range line {
		if !cell.InBounds() {
			return fmt.Errorf("%w: winning line cell %v off the board", ErrCorruptedState, cell)
		}
	}

	if !state.Board.IsLineOf(line, state.Board.At(line[0])) {
		return fmt.Errorf("%w: winning line is not complete", ErrCorruptedState)
	}

	return nil
}

func (that *Engine) Board() entity.Board {
	return that.board
}

func (that *Engine) Turn() entity.Player {
	return that.turn
}

func (that *Engine) Status() entity.Status {
	return that.status
}

// WinningLine - nil unless the round was won.
func (that *Engine) WinningLine() *entity.WinningLine {
	if that.winningLine == nil {
		return nil
	}

	line := *that.winningLine
	return &line
}

func (that *Engine) Score() entity.ScoreBoard {
	return that.score
}

func (that *Engine) Marker(player entity.Player) entity.Marker {
	return that.markers.Of(player)
}

func (that *Engine) AllowedMarkers() []entity.Marker {
	return append([]entity.Marker(nil), that.allowed...)
}

func (that *Engine) State() entity.State {
	return entity.State{
		Board:       that.board,
		Turn:        that.turn,
		Status:      that.status,
		WinningLine: that.WinningLine(),
		Score:       that.score,
		Markers:     that.markers,
		LastOutcome: that.lastOutcome,
	}
}

// ResultMessage - text announcing the finished round, empty while in progress.
func (that *Engine) ResultMessage() string {
	switch that.status.Kind {
	case entity.StatusWon:
		// the icon the winning line was placed with, not the current one
		return fmt.Sprintf("%s Wins!", that.board.At(that.winningLine[0]))
	case entity.StatusDraw:
		return "It's a Draw!"
	case entity.StatusInProgress:
	}

	return ""
}

// findWinningLine - checks only the lines through the moved cell, in table order.
func (that *Engine) findWinningLine(cell entity.Cell, marker entity.Marker) (entity.WinningLine, bool) {
	for _, line := range entity.WinLines {
		if line.Contains(cell) && that.board.IsLineOf(line, marker) {
			return line, true
		}
	}

	return entity.WinningLine{}, false
}

func (that *Engine) finish(outcome entity.Outcome) {
	that.score.Record(outcome)
	that.lastOutcome = outcome
}

func (that *Engine) clearBoard() {
	that.board = entity.Board{}
	that.turn = entity.Player1
	that.status = entity.Status{Kind: entity.StatusInProgress}
	that.winningLine = nil
	that.lastOutcome = entity.OutcomeNone
}

func (that *Engine) result(accepted bool) MoveResult {
	return MoveResult{
		Accepted:    accepted,
		Status:      that.status,
		WinningLine: that.WinningLine(),
	}
}

func (that *Engine) emit() {
	if that.notify != nil {
		that.notify(that.State())
	}
}

func (that *Engine) isAllowed(marker entity.Marker) bool {
	for _, allowed := range that.allowed {
		if allowed == marker {
			return true
		}
	}

	return false
}

// firstAllowedExcept - the set has at least two distinct values, so there is always one.
func (that *Engine) firstAllowedExcept(marker entity.Marker) entity.Marker {
	for _, allowed := range that.allowed {
		if allowed != marker {
			return allowed
		}
	}

	return entity.EmptyMarker
}

func (that *Engine) validateMarkers(markers entity.Markers) error {
	for _, marker := range []entity.Marker{markers.Player1, markers.Player2} {
		if !that.isAllowed(marker) {
			return fmt.Errorf("%w: %q", apperror.ErrUnknownMarker, marker)
		}
	}

	if markers.Player1 == markers.Player2 {
		return fmt.Errorf("%w: both are %q", apperror.ErrSameMarkers, markers.Player1)
	}

	return nil
}
