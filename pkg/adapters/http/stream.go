package http

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"

	"github.com/campushive/hivelab/pkg/domain"
)

const writeWait = 10 * time.Second

// realtime upgrades to a websocket and forwards the deployment's deltas until
// either side goes away.
func (s *Server) realtime(w http.ResponseWriter, r *http.Request) {
	if s.feed == nil {
		s.reply(w, http.StatusNotImplemented, domain.ErrorResponse{Error: "realtime is not enabled"})
		return
	}
	id := domain.DeploymentID(chi.URLParam(r, "deploymentId"))
	if err := id.Validate(); err != nil {
		s.fail(w, "subscribe", err)
		return
	}

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()
	deltas, err := s.feed.Subscribe(ctx, id)
	if err != nil {
		s.fail(w, "subscribe", err)
		return
	}

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Debug("websocket upgrade failed", "deployment", id, "error", err)
		return
	}
	defer conn.Close()
	s.logger.Debug("realtime client connected", "deployment", id)

	// The read side only watches for the client going away.
	go func() {
		defer cancel()
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	if s.snapshots != nil {
		snap, err := s.snapshots.Snapshot(ctx, id)
		switch {
		case err == nil && snap != nil:
			if err := s.send(conn, snap); err != nil {
				return
			}
		case err != nil && !errors.Is(err, domain.ErrStateNotFound):
			s.logger.Warn("realtime snapshot failed", "deployment", id, "error", err)
		}
	}

	ticker := time.NewTicker(s.ping)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			_ = conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(writeWait))
			return
		case <-ticker.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait)); err != nil {
				return
			}
		case delta, ok := <-deltas:
			if !ok {
				return
			}
			if err := s.send(conn, delta); err != nil {
				s.logger.Debug("realtime client write failed", "deployment", id, "error", err)
				return
			}
		}
	}
}

func (s *Server) send(conn *websocket.Conn, delta *domain.SharedStateDelta) error {
	_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
	return conn.WriteJSON(delta)
}
