package gateway

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/basket/go-craft/internal/domain"
)

type settingsEnvelope struct {
	UserSetting domain.SettingsInput `json:"user_setting"`
}

// readNamed decodes a {"<key>": {...}} body shared by masters, people and
// role categories. A top level user_id fills in a missing inner one.
func (s *Server) readNamed(w http.ResponseWriter, r *http.Request, key string) (domain.NamedInput, bool) {
	var body map[string]json.RawMessage
	if !s.readBody(w, r, key, &body) {
		return domain.NamedInput{}, false
	}
	var in domain.NamedInput
	if err := json.Unmarshal(body[key], &in); err != nil {
		writeJSON(w, http.StatusUnprocessableEntity, errorsBody{Errors: []string{err.Error()}})
		return domain.NamedInput{}, false
	}
	if in.UserID == 0 {
		if raw, ok := body["user_id"]; ok {
			_ = json.Unmarshal(raw, &in.UserID)
		}
	}
	return in, true
}

// readOwnedNamed is readNamed for creates, which need an owner.
func (s *Server) readOwnedNamed(w http.ResponseWriter, r *http.Request, key string) (domain.NamedInput, bool) {
	in, ok := s.readNamed(w, r, key)
	if !ok {
		return in, false
	}
	userID, err := resolveUserID(r, in.UserID)
	if err != nil {
		s.writeError(w, r, err)
		return in, false
	}
	in.UserID = userID
	return in, true
}

type masterHandlers struct {
	s    *Server
	kind domain.MasterKind
}

// envelope is the request body key, "motivation_master" for
// motivation_masters.
func (h masterHandlers) envelope() string {
	return strings.TrimSuffix(string(h.kind), "s")
}

func (h masterHandlers) list(w http.ResponseWriter, r *http.Request) {
	userID, err := queryUserID(r)
	if err != nil {
		h.s.writeError(w, r, err)
		return
	}
	masters, err := h.s.cfg.Store.ListMasters(r.Context(), h.kind, userID)
	if err != nil {
		h.s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, masters)
}

// visible serves /masters/motivations and /masters/preferences: the shared
// rows plus the user's own.
func (h masterHandlers) visible(w http.ResponseWriter, r *http.Request) {
	userID, err := queryUserID(r)
	if err != nil {
		h.s.writeError(w, r, err)
		return
	}
	masters, err := h.s.cfg.Store.VisibleMasters(r.Context(), h.kind, userID)
	if err != nil {
		h.s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, masters)
}

func (h masterHandlers) get(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	m, err := h.s.cfg.Store.GetMaster(r.Context(), h.kind, id)
	if err != nil {
		h.s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, m)
}

func (h masterHandlers) create(w http.ResponseWriter, r *http.Request) {
	in, ok := h.s.readOwnedNamed(w, r, h.envelope())
	if !ok {
		return
	}
	m, err := h.s.cfg.Store.CreateMaster(r.Context(), h.kind, in)
	if err != nil {
		h.s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, m)
}

func (h masterHandlers) update(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	in, ok := h.s.readNamed(w, r, h.envelope())
	if !ok {
		return
	}
	m, err := h.s.cfg.Store.UpdateMaster(r.Context(), h.kind, id, in)
	if err != nil {
		h.s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, m)
}

func (h masterHandlers) delete(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	if err := h.s.cfg.Store.DeleteMaster(r.Context(), h.kind, id); err != nil {
		h.s.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// People

func (s *Server) handleListPeople(w http.ResponseWriter, r *http.Request) {
	userID, err := queryUserID(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	people, err := s.cfg.Store.ListPeople(r.Context(), userID)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, people)
}

func (s *Server) handleGetPerson(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	p, err := s.cfg.Store.GetPerson(r.Context(), id)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

func (s *Server) handleCreatePerson(w http.ResponseWriter, r *http.Request) {
	in, ok := s.readOwnedNamed(w, r, "person")
	if !ok {
		return
	}
	p, err := s.cfg.Store.CreatePerson(r.Context(), in)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, p)
}

func (s *Server) handleUpdatePerson(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	in, ok := s.readNamed(w, r, "person")
	if !ok {
		return
	}
	p, err := s.cfg.Store.UpdatePerson(r.Context(), id, in)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

func (s *Server) handleDeletePerson(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	if err := s.cfg.Store.DeletePerson(r.Context(), id); err != nil {
		s.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Role categories

func (s *Server) handleListRoleCategories(w http.ResponseWriter, r *http.Request) {
	userID, err := queryUserID(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	cats, err := s.cfg.Store.ListRoleCategories(r.Context(), userID)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, cats)
}

func (s *Server) handleGetRoleCategory(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	rc, err := s.cfg.Store.GetRoleCategory(r.Context(), id)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, rc)
}

func (s *Server) handleCreateRoleCategory(w http.ResponseWriter, r *http.Request) {
	in, ok := s.readOwnedNamed(w, r, "role_category")
	if !ok {
		return
	}
	rc, err := s.cfg.Store.CreateRoleCategory(r.Context(), in)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, rc)
}

func (s *Server) handleUpdateRoleCategory(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	in, ok := s.readNamed(w, r, "role_category")
	if !ok {
		return
	}
	rc, err := s.cfg.Store.UpdateRoleCategory(r.Context(), id, in)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, rc)
}

func (s *Server) handleDeleteRoleCategory(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	if err := s.cfg.Store.DeleteRoleCategory(r.Context(), id); err != nil {
		s.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Settings

func (s *Server) handleGetSettings(w http.ResponseWriter, r *http.Request) {
	userID, ok := pathID(w, r, "user_id")
	if !ok {
		return
	}
	st, err := s.cfg.Store.GetSettings(r.Context(), userID)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, st)
}

func (s *Server) handleUpdateSettings(w http.ResponseWriter, r *http.Request) {
	userID, ok := pathID(w, r, "user_id")
	if !ok {
		return
	}
	var body settingsEnvelope
	if !s.readBody(w, r, "user_setting", &body) {
		return
	}
	st, err := s.cfg.Store.UpdateSettings(r.Context(), userID, body.UserSetting)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, st)
}
