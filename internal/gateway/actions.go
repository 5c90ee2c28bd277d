package gateway

import (
	"net/http"
	"strings"

	"github.com/basket/go-craft/internal/domain"
	"github.com/basket/go-craft/internal/otel"
	"github.com/basket/go-craft/internal/shared"
)

const (
	idempotencyKeyHeader = "Idempotency-Key"
	replayedHeader       = "Idempotent-Replayed"
)

type actionEnvelope struct {
	UserID int64              `json:"user_id"`
	Action domain.ActionInput `json:"action"`
}

func (s *Server) handleListActions(w http.ResponseWriter, r *http.Request) {
	userID, err := queryUserID(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	actions, err := s.cfg.Store.ListActions(r.Context(), userID)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, actions)
}

func (s *Server) handleGetAction(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	a, err := s.cfg.Store.GetAction(r.Context(), id)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, a)
}

func (s *Server) handleCreateAction(w http.ResponseWriter, r *http.Request) {
	var body actionEnvelope
	if !s.readBody(w, r, "action", &body) {
		return
	}
	userID, err := resolveUserID(r, body.Action.UserID, body.UserID)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	body.Action.UserID = userID
	a, err := s.cfg.Store.CreateAction(r.Context(), body.Action)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, a)
}

func (s *Server) handleUpdateAction(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	var body actionEnvelope
	if !s.readBody(w, r, "action", &body) {
		return
	}
	a, err := s.cfg.Store.UpdateAction(r.Context(), id, body.Action)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, a)
}

func (s *Server) handleDeleteAction(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	if err := s.cfg.Store.DeleteAction(r.Context(), id); err != nil {
		s.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// handleCompleteAction completes an action or quest. A repeated
// Idempotency-Key replays the stored completion and sets the replay header.
func (s *Server) handleCompleteAction(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	key := strings.TrimSpace(r.Header.Get(idempotencyKeyHeader))

	ctx, span := otel.StartSpan(r.Context(), s.tracer, "quest.complete", otel.AttrActionID.Int64(id))
	defer span.End()

	c, replayed, err := s.cfg.Store.CompleteAction(ctx, id, key)
	if err != nil {
		span.RecordError(err)
		s.writeError(w, r, err)
		return
	}
	span.SetAttributes(otel.AttrUserID.Int64(c.User.ID), otel.AttrReplayed.Bool(replayed))
	if replayed {
		w.Header().Set(replayedHeader, "true")
	}
	s.logger.Info("action completed",
		"action_id", id,
		"user_id", c.User.ID,
		"result", c.Kind.String(),
		"xp_gained", c.XPGained,
		"replayed", replayed,
		"trace_id", shared.TraceID(ctx),
	)
	writeJSON(w, http.StatusOK, c)
}
