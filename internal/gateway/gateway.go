// Package gateway serves the /api/v1 domain API, the health and metrics
// endpoints and the /ws progression event stream.
package gateway

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"go.opentelemetry.io/otel/trace"
	nooptrace "go.opentelemetry.io/otel/trace/noop"

	"github.com/basket/go-craft/internal/bus"
	"github.com/basket/go-craft/internal/config"
	"github.com/basket/go-craft/internal/domain"
	"github.com/basket/go-craft/internal/otel"
	"github.com/basket/go-craft/internal/persistence"
)

const apiPrefix = "/api/v1"

type Config struct {
	Store  *persistence.Store
	Bus    *bus.Bus
	Logger *slog.Logger

	// Tracer and Metrics may be nil; a no-op tracer is used and nothing is
	// recorded.
	Tracer  trace.Tracer
	Metrics *otel.Metrics

	CORS            config.CORSConfig
	RateLimit       config.RateLimitConfig
	RequestMaxBytes int64

	// AllowOrigins controls accepted Origin headers for browser WS
	// connections. Empty means same-origin only.
	AllowOrigins []string

	// ConfigFingerprint is reported by /healthz.
	ConfigFingerprint string
}

type Server struct {
	cfg     Config
	logger  *slog.Logger
	tracer  trace.Tracer
	schemas *schemaSet
	limiter *ClientLimiter

	clientsMu sync.RWMutex
	clients   map[*streamClient]struct{}

	started time.Time
}

func New(cfg Config) (*Server, error) {
	schemas, err := loadSchemas()
	if err != nil {
		return nil, err
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	tracer := cfg.Tracer
	if tracer == nil {
		tracer = nooptrace.NewTracerProvider().Tracer(otel.TracerName)
	}
	s := &Server{
		cfg:     cfg,
		logger:  logger.With("component", "gateway"),
		tracer:  tracer,
		schemas: schemas,
		clients: map[*streamClient]struct{}{},
		started: time.Now(),
	}
	s.limiter = NewClientLimiter(cfg.RateLimit, cfg.Metrics)
	return s, nil
}

// StartBackgroundTasks forgets idle rate limited clients until ctx is done.
func (s *Server) StartBackgroundTasks(ctx context.Context) {
	if s.cfg.RateLimit.Enabled {
		s.limiter.ForgetIdle(ctx, time.Minute, 10*time.Minute, s.logger)
	}
}

// Handler returns the full middleware chain around the route table.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", s.handleHealthz)
	mux.HandleFunc("GET "+apiPrefix+"/healthz", s.handleHealthz)
	mux.HandleFunc("GET /metrics", s.handleMetrics)
	mux.HandleFunc("GET /ws", s.handleWS)
	s.routes(mux)

	var h http.Handler = mux
	h = RequestSizeLimitMiddleware(s.cfg.RequestMaxBytes)(h)
	h = s.limiter.Wrap(h)
	h = NewCORSMiddleware(s.cfg.CORS)(h)
	h = s.traceMiddleware(h)
	return h
}

func (s *Server) routes(mux *http.ServeMux) {
	handle := func(pattern string, fn http.HandlerFunc) {
		method, path, _ := strings.Cut(pattern, " ")
		mux.HandleFunc(method+" "+apiPrefix+path, fn)
	}

	handle("GET /users/{id}", s.handleGetUser)
	handle("POST /users", s.handleCreateUser)
	handle("PATCH /users/{id}", s.handleUpdateUser)
	handle("GET /users/{id}/dashboard", s.handleDashboard)
	handle("POST /users/{id}/award", s.handleAward)

	handle("GET /work_items", s.handleListWorkItems)
	handle("GET /work_items/{id}", s.handleGetWorkItem)
	handle("POST /work_items", s.handleCreateWorkItem)
	handle("PATCH /work_items/{id}", s.handleUpdateWorkItem)
	handle("DELETE /work_items/{id}", s.handleDeleteWorkItem)
	handle("POST /work_items/{id}/{kind}", s.handleAttachTag)
	handle("DELETE /work_items/{id}/{kind}/{tag_id}", s.handleDetachTag)

	handle("GET /actions", s.handleListActions)
	handle("GET /actions/{id}", s.handleGetAction)
	handle("POST /actions", s.handleCreateAction)
	handle("PATCH /actions/{id}", s.handleUpdateAction)
	handle("DELETE /actions/{id}", s.handleDeleteAction)
	handle("POST /actions/{id}/complete", s.handleCompleteAction)

	handle("GET /action_plans/{user_id}", s.handleGetActionPlan)
	handle("POST /action_plans", s.handleSaveActionPlan)
	handle("PATCH /action_plans/{user_id}", s.handleSaveActionPlan)
	handle("GET /reflections/{user_id}", s.handleGetReflection)
	handle("POST /reflections", s.handleSaveReflection)
	handle("PATCH /reflections/{user_id}", s.handleSaveReflection)

	for _, kind := range []domain.MasterKind{domain.MotivationMasters, domain.PreferenceMasters} {
		h := masterHandlers{s: s, kind: kind}
		base := "/" + string(kind)
		handle("GET "+base, h.list)
		handle("POST "+base, h.create)
		handle("GET "+base+"/{id}", h.get)
		handle("PATCH "+base+"/{id}", h.update)
		handle("DELETE "+base+"/{id}", h.delete)
	}
	handle("GET /masters/motivations", masterHandlers{s: s, kind: domain.MotivationMasters}.visible)
	handle("GET /masters/preferences", masterHandlers{s: s, kind: domain.PreferenceMasters}.visible)

	handle("GET /people", s.handleListPeople)
	handle("POST /people", s.handleCreatePerson)
	handle("GET /people/{id}", s.handleGetPerson)
	handle("PATCH /people/{id}", s.handleUpdatePerson)
	handle("DELETE /people/{id}", s.handleDeletePerson)

	handle("GET /role_categories", s.handleListRoleCategories)
	handle("POST /role_categories", s.handleCreateRoleCategory)
	handle("GET /role_categories/{id}", s.handleGetRoleCategory)
	handle("PATCH /role_categories/{id}", s.handleUpdateRoleCategory)
	handle("DELETE /role_categories/{id}", s.handleDeleteRoleCategory)

	handle("GET /user_settings/{user_id}", s.handleGetSettings)
	handle("PATCH /user_settings/{user_id}", s.handleUpdateSettings)
}

func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	dbOK := s.cfg.Store.Ping(r.Context()) == nil
	payload := map[string]any{
		"healthy":        dbOK,
		"db_ok":          dbOK,
		"config_hash":    s.cfg.ConfigFingerprint,
		"uptime_seconds": int64(time.Since(s.started).Seconds()),
	}
	status := http.StatusOK
	if !dbOK {
		status = http.StatusServiceUnavailable
	}
	writeJSON(w, status, payload)
}

func (s *Server) handleMetrics(w http.ResponseWriter, _ *http.Request) {
	payload := map[string]any{
		"stream_clients":     s.clientCount(),
		"ratelimit_clients":  s.limiter.Clients(),
		"bus_subscribers":    0,
		"bus_dropped_events": int64(0),
	}
	if s.cfg.Bus != nil {
		payload["bus_subscribers"] = s.cfg.Bus.SubscriberCount()
		payload["bus_dropped_events"] = s.cfg.Bus.Dropped()
	}
	writeJSON(w, http.StatusOK, payload)
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if payload == nil {
		return
	}
	_ = json.NewEncoder(w).Encode(payload)
}
