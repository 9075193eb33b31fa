package rest

import (
	"encoding/json"
	"net/http"

	"github.com/rocketscienceinc/tictactoe-session/internal/entity"
)

type IconsResponse struct {
	Icons    []entity.Marker `json:"icons"`
	Defaults entity.Markers  `json:"defaults"`
}

func (that *Server) PingHandler(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write([]byte("pong")); err != nil {
		that.logger.Error("failed to write response", "error", err)
	}
}

// IconsHandler - lists the icons a client may offer, in reassignment order.
func (that *Server) IconsHandler(w http.ResponseWriter, _ *http.Request) {
	response := IconsResponse{
		Icons:    that.icons,
		Defaults: that.defaults,
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(response); err != nil {
		that.logger.Error("failed to encode icons", "error", err)
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
	}
}
