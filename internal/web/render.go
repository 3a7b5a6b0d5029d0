package web

import (
	"encoding/json"
	"net/http"

	"github.com/hpungsan/backseat/internal/errors"
	"github.com/hpungsan/backseat/internal/message"
)

// renderJSON writes a JSON response.
func renderJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

// renderError writes err as a failure envelope with the error's HTTP status.
// Message-level failures go out as 200 envelopes instead; this is for
// requests that never reach the dispatcher.
func renderError(w http.ResponseWriter, err error) {
	renderJSON(w, errors.Wrap(err).Status, message.Failure(err))
}
