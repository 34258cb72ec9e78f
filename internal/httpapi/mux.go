// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

// Package httpapi serves the node's memory status and live stream over HTTP.
package httpapi

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/relabs-tech/sensor_node/internal/telemetry"
	"github.com/relabs-tech/sensor_node/internal/wire"
)

const (
	defaultHistoryLimit = 100
	maxHistoryLimit     = 1000
)

// Snapshotter is the read-only view of the store the API needs.
type Snapshotter interface {
	Snapshot() (telemetry.Usage, error)
}

// History serves archived readings, newest first.
type History interface {
	Recent(channel string, limit int) ([]wire.Reading, error)
}

// Deps are the collaborators of the HTTP surface. Overflows, History and
// Stream may be nil.
type Deps struct {
	Store     Snapshotter
	Overflows func(telemetry.Channel) uint64
	History   History
	Stream    http.Handler
	Now       func() time.Time
}

type handlers struct {
	Deps
}

func NewMux(d Deps) *http.ServeMux {
	if d.Now == nil {
		d.Now = time.Now
	}
	h := &handlers{Deps: d}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", h.handleHealthz)
	mux.HandleFunc("GET /api/memory", h.handleMemory)
	mux.HandleFunc("GET /api/channels/{name}", h.handleChannel)
	mux.HandleFunc("GET /api/channels/{name}/history", h.handleHistory)
	if d.Stream != nil {
		mux.Handle("GET /ws", d.Stream)
	}
	return mux
}

func (h *handlers) usage() (wire.Usage, error) {
	snap, err := h.Store.Snapshot()
	if err != nil {
		return wire.Usage{}, err
	}
	return wire.NewUsage(snap, h.Overflows, h.Now()), nil
}

func (h *handlers) handleHealthz(w http.ResponseWriter, r *http.Request) {
	if _, err := h.Store.Snapshot(); err != nil {
		WriteError(w, http.StatusServiceUnavailable, err.Error())
		return
	}
	WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *handlers) handleMemory(w http.ResponseWriter, r *http.Request) {
	u, err := h.usage()
	if err != nil {
		slog.Error("failed to snapshot store", "error", err)
		WriteError(w, http.StatusServiceUnavailable, err.Error())
		return
	}
	WriteJSON(w, http.StatusOK, u)
}

func (h *handlers) handleChannel(w http.ResponseWriter, r *http.Request) {
	ch, err := telemetry.ParseChannel(r.PathValue("name"))
	if err != nil {
		WriteError(w, http.StatusNotFound, err.Error())
		return
	}
	u, err := h.usage()
	if err != nil {
		WriteError(w, http.StatusServiceUnavailable, err.Error())
		return
	}
	c, _ := u.Channel(ch.String())
	WriteJSON(w, http.StatusOK, c)
}

func (h *handlers) handleHistory(w http.ResponseWriter, r *http.Request) {
	if h.History == nil {
		WriteError(w, http.StatusNotFound, "archive is disabled")
		return
	}
	ch, err := telemetry.ParseChannel(r.PathValue("name"))
	if err != nil {
		WriteError(w, http.StatusNotFound, err.Error())
		return
	}
	limit, err := parseLimit(r.URL.Query().Get("limit"))
	if err != nil {
		WriteError(w, http.StatusBadRequest, err.Error())
		return
	}
	readings, err := h.History.Recent(ch.String(), limit)
	if err != nil {
		slog.Error("failed to read history", "channel", ch, "error", err)
		WriteError(w, http.StatusInternalServerError, "failed to read history")
		return
	}
	if readings == nil {
		readings = []wire.Reading{}
	}
	WriteJSON(w, http.StatusOK, readings)
}

func parseLimit(s string) (int, error) {
	if s == "" {
		return defaultHistoryLimit, nil
	}
	n, err := strconv.Atoi(s)
	if err != nil || n < 1 || n > maxHistoryLimit {
		return 0, fmt.Errorf("limit must be an integer in [1, %d]", maxHistoryLimit)
	}
	return n, nil
}

// Serve runs srv until ctx is done, then shuts it down.
func Serve(ctx context.Context, srv *http.Server) error {
	errCh := make(chan error, 1)
	go func() {
		slog.Info("http server listening", "addr", srv.Addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("http shutdown: %w", err)
	}
	if err := <-errCh; !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
