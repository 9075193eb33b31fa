package websocket

import (
	"encoding/json"

	"github.com/rocketscienceinc/tictactoe-session/internal/entity"
)

const (
	actionConnect    = "connect"
	actionGameMove   = "game:move"
	actionGameReset  = "game:reset"
	actionGameNew    = "game:new"
	actionPlayerIcon = "player:icon"
	actionSessionEnd = "session:end"
	actionError      = "error"
)

// Message represents a WebSocket message with an action type and a payload.
type Message struct {
	Action  string          `json:"action"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

type MovePayload struct {
	Row *int `json:"row"`
	Col *int `json:"col"`
}

type IconPayload struct {
	Player string `json:"player"`
	Icon   string `json:"icon"`
}

type ResponsePayload struct {
	State  *entity.State `json:"state,omitempty"`
	Result string        `json:"result,omitempty"`
	Error  string        `json:"error,omitempty"`
}

type Response struct {
	Action  string          `json:"action"`
	Payload ResponsePayload `json:"payload"`
}
