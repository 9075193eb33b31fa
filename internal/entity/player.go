package entity

import (
	"fmt"

	"github.com/rocketscienceinc/tictactoe-session/internal/apperror"
)

type Player string

const (
	Player1 Player = "player1"
	Player2 Player = "player2"
)

// ParsePlayer - converts a wire value into a player identity.
func ParsePlayer(value string) (Player, error) {
	switch player := Player(value); player {
	case Player1, Player2:
		return player, nil
	default:
		return "", fmt.Errorf("%w: %q", apperror.ErrUnknownPlayer, value)
	}
}

func (that Player) IsValid() bool {
	return that == Player1 || that == Player2
}

func (that Player) Other() Player {
	if that == Player1 {
		return Player2
	}
	return Player1
}

// Outcome - the round outcome when this player wins.
func (that Player) Outcome() Outcome {
	if that == Player2 {
		return OutcomePlayer2
	}
	return OutcomePlayer1
}
