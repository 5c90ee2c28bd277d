package gateway

import (
	"net/http"

	"github.com/basket/go-craft/internal/domain"
	"github.com/basket/go-craft/internal/otel"
)

type userEnvelope struct {
	User domain.UserInput `json:"user"`
}

type awardRequest struct {
	XP int `json:"xp"`
}

func (s *Server) handleGetUser(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	u, err := s.cfg.Store.GetUser(r.Context(), id)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, u)
}

func (s *Server) handleCreateUser(w http.ResponseWriter, r *http.Request) {
	var body userEnvelope
	if !s.readBody(w, r, "user", &body) {
		return
	}
	u, err := s.cfg.Store.CreateUser(r.Context(), body.User)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, u)
}

func (s *Server) handleUpdateUser(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	var body userEnvelope
	if !s.readBody(w, r, "user", &body) {
		return
	}
	u, err := s.cfg.Store.UpdateUser(r.Context(), id, body.User)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, u)
}

func (s *Server) handleDashboard(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	snap, err := s.cfg.Store.Snapshot(r.Context(), id)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, snap)
}

// handleAward adds xp through the store, which is the only ledger.
func (s *Server) handleAward(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	var body awardRequest
	if !s.readBody(w, r, "award", &body) {
		return
	}
	ctx, span := otel.StartSpan(r.Context(), s.tracer, "progression.award", otel.AttrUserID.Int64(id))
	defer span.End()

	p, err := s.cfg.Store.Award(ctx, id, body.XP)
	if err != nil {
		span.RecordError(err)
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, domain.NewSummary(id, p))
}
