package gateway

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/aiguardian/remediator/internal/ledger"
	"github.com/aiguardian/remediator/models"
)

// buildHandler wires all HTTP routes.
func buildHandler(gw *Gateway) http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /health", gw.handleHealth)
	mux.HandleFunc("GET /events", gw.handleEvents)

	mux.HandleFunc("POST /api/remediation/cve/fix", gw.handleFix(models.TargetCVE))
	mux.HandleFunc("POST /api/remediation/sast/fix", gw.handleFix(models.TargetSAST))

	mux.HandleFunc("GET /api/remediations", gw.handleListRemediations)
	mux.HandleFunc("GET /api/remediations/{id}", gw.handleGetRemediation)
	mux.HandleFunc("GET /api/remediations/{id}/transcript", gw.handleGetTranscript)
	mux.HandleFunc("POST /api/remediations/{id}/complete", gw.handleCompleteRemediation)

	return mux
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

func (gw *Gateway) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// handleFix streams a remediation run as SSE. Failures inside the run are
// reported on the stream itself; only a malformed request body or mode is
// rejected before streaming starts.
func (gw *Gateway) handleFix(kind models.TargetKind) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		mode, err := models.ParseFixMode(r.URL.Query().Get("mode"))
		if err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}

		var req models.FixRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
			return
		}

		flusher, ok := w.(http.Flusher)
		if !ok {
			writeError(w, http.StatusInternalServerError, "streaming unsupported")
			return
		}

		w.Header().Set("Content-Type", "text/event-stream")
		w.Header().Set("Cache-Control", "no-cache")
		w.Header().Set("Connection", "keep-alive")
		w.WriteHeader(http.StatusOK)
		flusher.Flush()

		gw.fixer.Fix(r.Context(), kind, mode, req, func(frame string) {
			if _, err := w.Write([]byte(frame)); err == nil {
				flusher.Flush()
			}
			// Mirror the run onto the global feed for dashboard listeners.
			gw.broadcaster.sendFrame(frame)
		})
	}
}

// handleEvents is the global SSE feed: every remediation frame plus
// gateway lifecycle events, fanned out to all connected clients.
func (gw *Gateway) handleEvents(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, http.StatusInternalServerError, "streaming unsupported")
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	ch := gw.broadcaster.subscribe()
	defer gw.broadcaster.unsubscribe(ch)

	for {
		select {
		case <-r.Context().Done():
			return
		case frame := <-ch:
			if _, err := w.Write(frame); err != nil {
				return
			}
			flusher.Flush()
		}
	}
}

func (gw *Gateway) handleListRemediations(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var (
		items []models.Remediation
		err   error
	)
	if vulnID := r.URL.Query().Get("vulnerability_id"); vulnID != "" {
		items, err = gw.ledger.ByVulnerability(ctx, vulnID)
	} else {
		items, err = gw.ledger.List(ctx)
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if items == nil {
		items = []models.Remediation{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"remediations": items})
}

func (gw *Gateway) handleGetRemediation(w http.ResponseWriter, r *http.Request) {
	rec, err := gw.ledger.Get(r.Context(), r.PathValue("id"))
	if err != nil {
		if errors.Is(err, ledger.ErrNotFound) {
			writeError(w, http.StatusNotFound, "remediation not found")
			return
		}
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

func (gw *Gateway) handleGetTranscript(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if _, err := gw.ledger.Get(r.Context(), id); err != nil {
		if errors.Is(err, ledger.ErrNotFound) {
			writeError(w, http.StatusNotFound, "remediation not found")
			return
		}
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	events, err := gw.ledger.Transcript(r.Context(), id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if events == nil {
		events = []string{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"id": id, "events": events})
}

func (gw *Gateway) handleCompleteRemediation(w http.ResponseWriter, r *http.Request) {
	rec, err := gw.ledger.Complete(r.Context(), r.PathValue("id"))
	if err != nil {
		switch {
		case errors.Is(err, ledger.ErrNotFound):
			writeError(w, http.StatusNotFound, "remediation not found")
		case errors.Is(err, ledger.ErrNotRaised):
			writeError(w, http.StatusConflict, err.Error())
		default:
			writeError(w, http.StatusInternalServerError, err.Error())
		}
		return
	}
	writeJSON(w, http.StatusOK, rec)
}
