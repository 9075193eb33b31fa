package entity

const (
	BoardSize = 3

	EmptyMarker Marker = ""
)

type StatusKind string

const (
	StatusInProgress StatusKind = "in_progress"
	StatusWon        StatusKind = "won"
	StatusDraw       StatusKind = "draw"
)

const (
	OutcomeNone    Outcome = ""
	OutcomePlayer1 Outcome = "player1"
	OutcomePlayer2 Outcome = "player2"
	OutcomeDraw    Outcome = "draw"
)

// WinLines - every line that wins the game, in the order they are checked:
// rows, columns, main diagonal, anti-diagonal.
var WinLines = [8]WinningLine{
	{{0, 0}, {0, 1}, {0, 2}},
	{{1, 0}, {1, 1}, {1, 2}},
	{{2, 0}, {2, 1}, {2, 2}},
	{{0, 0}, {1, 0}, {2, 0}},
	{{0, 1}, {1, 1}, {2, 1}},
	{{0, 2}, {1, 2}, {2, 2}},
	{{0, 0}, {1, 1}, {2, 2}},
	{{0, 2}, {1, 1}, {2, 0}},
}

// Marker is an icon placed on the board by a player.
type Marker string

type Outcome string

type Cell struct {
	Row int `json:"row"`
	Col int `json:"col"`
}

type WinningLine [3]Cell

type Board [BoardSize][BoardSize]Marker

type Status struct {
	Kind   StatusKind `json:"kind"`
	Winner Player     `json:"winner,omitempty"`
}

type ScoreBoard struct {
	Player1 int `json:"player1"`
	Player2 int `json:"player2"`
	Draws   int `json:"draws"`
}

// State is a full snapshot of a game session.
type State struct {
	Board       Board        `json:"board"`
	Turn        Player       `json:"turn"`
	Status      Status       `json:"status"`
	WinningLine *WinningLine `json:"winning_line,omitempty"`
	Score       ScoreBoard   `json:"score"`
	Markers     Markers      `json:"markers"`
	LastOutcome Outcome      `json:"last_outcome,omitempty"`
}

type Markers struct {
	Player1 Marker `json:"player1"`
	Player2 Marker `json:"player2"`
}

func (that Cell) InBounds() bool {
	return that.Row >= 0 && that.Row < BoardSize && that.Col >= 0 && that.Col < BoardSize
}

// Contains - reports whether the cell lies on the line.
func (that WinningLine) Contains(cell Cell) bool {
	for _, c := range that {
		if c == cell {
			return true
		}
	}

	return false
}

func (that *Board) At(cell Cell) Marker {
	return that[cell.Row][cell.Col]
}

func (that *Board) IsEmptyAt(cell Cell) bool {
	return that.At(cell) == EmptyMarker
}

// IsFull - the board is full when no cell is empty.
func (that *Board) IsFull() bool {
	for _, row := range that {
		for _, marker := range row {
			if marker == EmptyMarker {
				return false
			}
		}
	}

	return true
}

// IsLineOf - reports whether all three cells of the line hold the marker.
func (that *Board) IsLineOf(line WinningLine, marker Marker) bool {
	if marker == EmptyMarker {
		return false
	}

	for _, cell := range line {
		if that.At(cell) != marker {
			return false
		}
	}

	return true
}

func (that Status) IsTerminal() bool {
	return that.Kind == StatusWon || that.Kind == StatusDraw
}

func (that Status) IsInProgress() bool {
	return that.Kind == StatusInProgress
}

// Record - adds the outcome of a finished round to the score board.
func (that *ScoreBoard) Record(outcome Outcome) {
	switch outcome {
	case OutcomePlayer1:
		that.Player1++
	case OutcomePlayer2:
		that.Player2++
	case OutcomeDraw:
		that.Draws++
	case OutcomeNone:
	}
}

func (that *ScoreBoard) Reset() {
	*that = ScoreBoard{}
}

func (that Markers) Of(player Player) Marker {
	if player == Player2 {
		return that.Player2
	}

	return that.Player1
}

func (that *Markers) Set(player Player, marker Marker) {
	if player == Player2 {
		that.Player2 = marker
		return
	}

	that.Player1 = marker
}
