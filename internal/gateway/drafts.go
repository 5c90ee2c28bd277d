package gateway

import (
	"net/http"

	"github.com/basket/go-craft/internal/domain"
)

type actionPlanEnvelope struct {
	UserID     int64                  `json:"user_id"`
	ActionPlan domain.ActionPlanInput `json:"action_plan"`
}

type reflectionEnvelope struct {
	UserID     int64                  `json:"user_id"`
	Reflection domain.ReflectionInput `json:"reflection"`
}

// draftOwner resolves the user for an upsert: the path on PATCH, otherwise
// the body or query. The status is 200 for PATCH and 201 for POST.
func draftOwner(w http.ResponseWriter, r *http.Request, candidates ...int64) (int64, int, bool) {
	if r.PathValue("user_id") != "" {
		id, ok := pathID(w, r, "user_id")
		return id, http.StatusOK, ok
	}
	id, err := resolveUserID(r, candidates...)
	if err != nil {
		writeMessage(w, http.StatusBadRequest, err.Error())
		return 0, 0, false
	}
	return id, http.StatusCreated, true
}

func (s *Server) handleGetActionPlan(w http.ResponseWriter, r *http.Request) {
	userID, ok := pathID(w, r, "user_id")
	if !ok {
		return
	}
	plan, err := s.cfg.Store.GetActionPlan(r.Context(), userID)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, plan)
}

// handleSaveActionPlan serves both POST /action_plans and PATCH
// /action_plans/{user_id}. Either way the user's single plan is created or
// replaced.
func (s *Server) handleSaveActionPlan(w http.ResponseWriter, r *http.Request) {
	var body actionPlanEnvelope
	if !s.readBody(w, r, "action_plan", &body) {
		return
	}
	userID, status, ok := draftOwner(w, r, body.ActionPlan.UserID, body.UserID)
	if !ok {
		return
	}
	body.ActionPlan.UserID = userID
	plan, err := s.cfg.Store.SaveActionPlan(r.Context(), body.ActionPlan)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, status, plan)
}

func (s *Server) handleGetReflection(w http.ResponseWriter, r *http.Request) {
	userID, ok := pathID(w, r, "user_id")
	if !ok {
		return
	}
	ref, err := s.cfg.Store.GetReflection(r.Context(), userID)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, ref)
}

func (s *Server) handleSaveReflection(w http.ResponseWriter, r *http.Request) {
	var body reflectionEnvelope
	if !s.readBody(w, r, "reflection", &body) {
		return
	}
	userID, status, ok := draftOwner(w, r, body.Reflection.UserID, body.UserID)
	if !ok {
		return
	}
	body.Reflection.UserID = userID
	ref, err := s.cfg.Store.SaveReflection(r.Context(), body.Reflection)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, status, ref)
}
