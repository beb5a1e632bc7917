// Package httpapi routes the server's HTTP endpoints.
package httpapi

import (
	"bytes"
	"context"
	"embed"
	"encoding/json"
	"io/fs"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"
	"github.com/sirupsen/logrus"

	"collabcanvas/internal/canvas"
	"collabcanvas/internal/session"
)

//go:embed web
var webFiles embed.FS

// Canvas is what the routes need from the hub.
type Canvas interface {
	Registry() *session.Registry
	Snapshot(ctx context.Context) (canvas.Snapshot, error)
}

type handler struct {
	canvas Canvas
	logger logrus.FieldLogger
}

// NewRouter mounts ws at /ws next to the read-only endpoints and serves the
// browser viewer from /.
func NewRouter(c Canvas, ws http.Handler, logger logrus.FieldLogger) *mux.Router {
	h := &handler{canvas: c, logger: logger}
	r := mux.NewRouter()
	r.Handle("/ws", ws).Methods(http.MethodGet)
	r.HandleFunc("/healthz", h.health).Methods(http.MethodGet)
	r.HandleFunc("/painters", h.painters).Methods(http.MethodGet)
	r.HandleFunc("/canvas.png", h.png).Methods(http.MethodGet)
	r.PathPrefix("/").Handler(http.FileServer(http.FS(webRoot()))).Methods(http.MethodGet)
	return r
}

func webRoot() fs.FS {
	sub, err := fs.Sub(webFiles, "web")
	if err != nil {
		panic("httpapi: embedded viewer missing: " + err.Error())
	}
	return sub
}

func (h *handler) health(w http.ResponseWriter, _ *http.Request) {
	h.writeJSON(w, map[string]any{
		"status":   "ok",
		"sessions": h.canvas.Registry().Len(),
	})
}

func (h *handler) painters(w http.ResponseWriter, _ *http.Request) {
	h.writeJSON(w, h.canvas.Registry().List(session.Painter))
}

func (h *handler) png(w http.ResponseWriter, r *http.Request) {
	scale := 1
	if v := r.URL.Query().Get("scale"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 || n > canvas.MaxScale {
			http.Error(w, "scale must be an integer between 1 and "+strconv.Itoa(canvas.MaxScale), http.StatusBadRequest)
			return
		}
		scale = n
	}

	snap, err := h.canvas.Snapshot(r.Context())
	if err != nil {
		h.logger.WithError(err).Warn("snapshot failed")
		http.Error(w, "canvas unavailable", http.StatusServiceUnavailable)
		return
	}
	if snap.Empty() {
		w.WriteHeader(http.StatusNoContent)
		return
	}

	var buf bytes.Buffer
	if err := snap.EncodePNG(&buf, scale); err != nil {
		h.logger.WithError(err).Error("render canvas failed")
		http.Error(w, "render failed", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Cache-Control", "no-store")
	w.Write(buf.Bytes())
}

func (h *handler) writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		h.logger.WithError(err).Warn("write response failed")
	}
}
