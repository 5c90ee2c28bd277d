package gateway

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/basket/go-craft/internal/persistence"
	"github.com/basket/go-craft/internal/progression"
	"github.com/basket/go-craft/internal/shared"
)

var errUserIDRequired = errors.New("user_id is required")

type errorBody struct {
	Error string `json:"error"`
}

type errorsBody struct {
	Errors []string `json:"errors"`
}

func writeMessage(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorBody{Error: msg})
}

// writeError maps store errors onto statuses: validation 422, missing rows
// 404, rejected state changes 409. Anything else is logged and becomes 500.
func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	var (
		verr     *persistence.ValidationError
		notFound *persistence.NotFoundError
		conflict *persistence.ConflictError
	)
	switch {
	case errors.As(err, &verr):
		writeJSON(w, http.StatusUnprocessableEntity, errorsBody{Errors: verr.Messages})
	case errors.Is(err, progression.ErrNegativeXP):
		writeJSON(w, http.StatusUnprocessableEntity, errorsBody{Errors: []string{err.Error()}})
	case errors.As(err, &notFound):
		writeMessage(w, http.StatusNotFound, notFound.Error())
	case errors.Is(err, persistence.ErrNotFound):
		writeMessage(w, http.StatusNotFound, "not found")
	case errors.As(err, &conflict):
		writeMessage(w, http.StatusConflict, conflict.Message)
	case errors.Is(err, errUserIDRequired):
		writeMessage(w, http.StatusBadRequest, err.Error())
	default:
		s.logger.Error("request failed",
			"method", r.Method,
			"path", r.URL.Path,
			"trace_id", shared.TraceID(r.Context()),
			"error", err,
		)
		writeMessage(w, http.StatusInternalServerError, "internal error")
	}
}

// pathID parses a numeric path segment. It writes 400 and returns false when
// the segment is not a positive integer.
func pathID(w http.ResponseWriter, r *http.Request, name string) (int64, bool) {
	id, err := strconv.ParseInt(r.PathValue(name), 10, 64)
	if err != nil || id <= 0 {
		writeMessage(w, http.StatusBadRequest, "invalid "+name)
		return 0, false
	}
	return id, true
}

// queryUserID reads user_id from the query string.
func queryUserID(r *http.Request) (int64, error) {
	raw := r.URL.Query().Get("user_id")
	if raw == "" {
		return 0, errUserIDRequired
	}
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, errUserIDRequired
	}
	return id, nil
}

// resolveUserID picks the first of the envelope field, the top level body
// field and the query string that carries a user id.
func resolveUserID(r *http.Request, candidates ...int64) (int64, error) {
	for _, id := range candidates {
		if id > 0 {
			return id, nil
		}
	}
	return queryUserID(r)
}

// readBody decodes the request body into out after validating it against the
// named schema. It writes the error response itself and returns false on
// failure.
func (s *Server) readBody(w http.ResponseWriter, r *http.Request, schema string, out any) bool {
	data, err := io.ReadAll(r.Body)
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeMessage(w, http.StatusRequestEntityTooLarge, "request body too large")
			return false
		}
		writeMessage(w, http.StatusBadRequest, "read request body")
		return false
	}
	if len(data) == 0 {
		data = []byte("{}")
	}
	if msgs, err := s.schemas.validate(schema, data); err != nil {
		writeMessage(w, http.StatusBadRequest, "invalid JSON body")
		return false
	} else if len(msgs) > 0 {
		writeJSON(w, http.StatusUnprocessableEntity, errorsBody{Errors: msgs})
		return false
	}
	if err := json.Unmarshal(data, out); err != nil {
		writeJSON(w, http.StatusUnprocessableEntity, errorsBody{Errors: []string{err.Error()}})
		return false
	}
	return true
}
