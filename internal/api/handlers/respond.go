package handlers

import (
	"encoding/json"
	"net"
	"net/http"

	"github.com/rs/zerolog/hlog"
)

const msgInternal = "Error processing request"

// messageResponse is the body shape shared by most endpoints.
type messageResponse struct {
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeMessage(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, messageResponse{Message: msg})
}

// respondError logs err in full and sends the client a generic 500.
func respondError(w http.ResponseWriter, r *http.Request, err error, msg string) {
	hlog.FromRequest(r).Error().Err(err).Str("path", r.URL.Path).Msg(msg)
	writeMessage(w, http.StatusInternalServerError, msgInternal)
}

// remoteIP returns the client address without its port. chi's RealIP has
// already applied proxy headers by the time handlers run.
func remoteIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
