package hydropi

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/julienschmidt/httprouter"
)

const httpTimeoutsMs = 3000

// StartStatusServer serves the last completed sampling round over HTTP,
// for dashboards and quick health checks.
func (hp *HydroPi) StartStatusServer() error {
	handler := httprouter.New()
	handler.GET("/round", hp.handleLastRound)

	httpTimeout := httpTimeoutsMs * time.Millisecond

	server := &http.Server{
		Addr:              hp.HttpAddr,
		Handler:           handler,
		ReadTimeout:       httpTimeout,
		ReadHeaderTimeout: httpTimeout,
		WriteTimeout:      httpTimeout,
		IdleTimeout:       2 * httpTimeout,
	}

	return server.ListenAndServe()
}

func (hp *HydroPi) handleLastRound(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	round := hp.LastRound()
	if round.At.IsZero() {
		http.Error(w, "no sampling round completed yet", http.StatusServiceUnavailable)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(round)
}
