package gateway

import (
	"net/http"

	"github.com/basket/go-craft/internal/domain"
)

type workItemEnvelope struct {
	UserID   int64                `json:"user_id"`
	WorkItem domain.WorkItemInput `json:"work_item"`
}

type tagLinkRequest struct {
	UserID int64 `json:"user_id"`
	TagID  int64 `json:"tag_id"`
}

func (s *Server) handleListWorkItems(w http.ResponseWriter, r *http.Request) {
	userID, err := queryUserID(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	items, err := s.cfg.Store.ListWorkItems(r.Context(), userID)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, items)
}

func (s *Server) handleGetWorkItem(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	wi, err := s.cfg.Store.GetWorkItem(r.Context(), id)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, wi)
}

func (s *Server) handleCreateWorkItem(w http.ResponseWriter, r *http.Request) {
	var body workItemEnvelope
	if !s.readBody(w, r, "work_item", &body) {
		return
	}
	userID, err := resolveUserID(r, body.WorkItem.UserID, body.UserID)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	body.WorkItem.UserID = userID
	wi, err := s.cfg.Store.CreateWorkItem(r.Context(), body.WorkItem)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, wi)
}

func (s *Server) handleUpdateWorkItem(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	var body workItemEnvelope
	if !s.readBody(w, r, "work_item", &body) {
		return
	}
	wi, err := s.cfg.Store.UpdateWorkItem(r.Context(), id, body.WorkItem)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, wi)
}

func (s *Server) handleDeleteWorkItem(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	if err := s.cfg.Store.DeleteWorkItem(r.Context(), id); err != nil {
		s.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func tagKind(w http.ResponseWriter, r *http.Request) (domain.TagKind, bool) {
	kind := domain.TagKind(r.PathValue("kind"))
	if !kind.Valid() {
		writeMessage(w, http.StatusNotFound, "unknown tag kind "+string(kind))
		return "", false
	}
	return kind, true
}

// handleAttachTag links a tag to the work item. Linking an already linked
// tag returns the work item unchanged.
func (s *Server) handleAttachTag(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	kind, ok := tagKind(w, r)
	if !ok {
		return
	}
	var body tagLinkRequest
	if !s.readBody(w, r, "tag_link", &body) {
		return
	}
	wi, err := s.cfg.Store.AttachTag(r.Context(), id, kind, body.TagID)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, wi)
}

func (s *Server) handleDetachTag(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	kind, ok := tagKind(w, r)
	if !ok {
		return
	}
	tagID, ok := pathID(w, r, "tag_id")
	if !ok {
		return
	}
	if err := s.cfg.Store.DetachTag(r.Context(), id, kind, tagID); err != nil {
		s.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
