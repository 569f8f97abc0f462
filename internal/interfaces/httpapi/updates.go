package httpapi

import (
	"context"
	"fmt"
	"net/http"
	"time"

	sonic "github.com/bytedance/sonic"
	"github.com/gorilla/websocket"
)

const (
	wsWriteDeadline = 5 * time.Second
	wsPongWait      = 60 * time.Second
)

// ArtifactSource reports when a served artifact was last replaced.
type ArtifactSource interface {
	ModifiedAt(ctx context.Context) (time.Time, bool, error)
}

type WatchedArtifact struct {
	Name   string
	Source ArtifactSource
}

// UpdateEvent is one notification frame. The first frame of a stream only
// carries Status.
type UpdateEvent struct {
	Status    string   `json:"status,omitempty"`
	Changed   []string `json:"changed,omitempty"`
	Timestamp float64  `json:"timestamp,omitempty"`
}

var upgrader = websocket.Upgrader{
	CheckOrigin: func(_ *http.Request) bool { return true },
}

// StreamUpdates serves server-sent events for artifact changes.
func (h *Handler) StreamUpdates(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	rc := http.NewResponseController(w)
	// The stream outlives the server's per-request deadlines.
	_ = rc.SetReadDeadline(time.Time{})
	_ = rc.SetWriteDeadline(time.Time{})

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)

	err := h.watchArtifacts(ctx, func(evt UpdateEvent) error {
		payload, err := sonic.Marshal(evt)
		if err != nil {
			return err
		}
		if _, err := fmt.Fprintf(w, "data: %s\n\n", payload); err != nil {
			return err
		}
		return rc.Flush()
	})
	if err != nil && ctx.Err() == nil {
		h.logger.WarnContext(ctx, "update stream closed", "transport", "sse", "error", err)
	}
}

// StreamUpdatesWS delivers the same events over a websocket.
func (h *Handler) StreamUpdatesWS(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.WarnContext(r.Context(), "websocket upgrade failed", "error", err)
		return
	}
	defer func() {
		_ = conn.Close()
	}()

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	// Clients send nothing; reading only surfaces close frames and pongs.
	go func() {
		defer cancel()
		_ = conn.SetReadDeadline(time.Now().Add(wsPongWait))
		conn.SetPongHandler(func(string) error {
			return conn.SetReadDeadline(time.Now().Add(wsPongWait))
		})
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	err = h.watchArtifacts(ctx, func(evt UpdateEvent) error {
		payload, err := sonic.Marshal(evt)
		if err != nil {
			return err
		}
		_ = conn.SetWriteDeadline(time.Now().Add(wsWriteDeadline))
		return conn.WriteMessage(websocket.TextMessage, payload)
	}, func() error {
		_ = conn.SetWriteDeadline(time.Now().Add(wsWriteDeadline))
		return conn.WriteMessage(websocket.PingMessage, nil)
	})
	if err != nil && ctx.Err() == nil {
		h.logger.WarnContext(ctx, "update stream closed", "transport", "websocket", "error", err)
	}
}

// watchArtifacts emits a connected event, then polls every notifyInterval and
// emits the names of artifacts whose modification time moved. Optional
// heartbeat funcs run on every idle tick.
func (h *Handler) watchArtifacts(ctx context.Context, emit func(UpdateEvent) error, heartbeat ...func() error) error {
	last := h.artifactTimes(ctx, nil)
	if err := emit(UpdateEvent{Status: "connected"}); err != nil {
		return err
	}

	ticker := time.NewTicker(h.notifyInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case now := <-ticker.C:
			current := h.artifactTimes(ctx, last)
			changed := make([]string, 0)
			for _, artifact := range h.artifacts {
				if !current[artifact.Name].Equal(last[artifact.Name]) {
					changed = append(changed, artifact.Name)
				}
			}
			last = current

			if len(changed) == 0 {
				for _, beat := range heartbeat {
					if err := beat(); err != nil {
						return err
					}
				}
				continue
			}
			evt := UpdateEvent{Changed: changed, Timestamp: float64(now.UnixNano()) / 1e9}
			if err := emit(evt); err != nil {
				return err
			}
		}
	}
}

// artifactTimes maps each artifact to its modification time, the zero time
// when it does not exist yet. A failing source keeps its previous value.
func (h *Handler) artifactTimes(ctx context.Context, previous map[string]time.Time) map[string]time.Time {
	out := make(map[string]time.Time, len(h.artifacts))
	for _, artifact := range h.artifacts {
		modified, ok, err := artifact.Source.ModifiedAt(ctx)
		switch {
		case err != nil:
			h.logger.WarnContext(ctx, "read artifact modification time failed", "artifact", artifact.Name, "error", err)
			out[artifact.Name] = previous[artifact.Name]
		case !ok:
			out[artifact.Name] = time.Time{}
		default:
			out[artifact.Name] = modified
		}
	}
	return out
}
