package httpapi

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/Cypherspark/sms-autoresponder/internal/core"
)

// Dispatcher handles one inbound SMS; *core.Dispatcher implements it.
type Dispatcher interface {
	Dispatch(ctx context.Context, in core.InboundMessage) core.Result
}

// Pinger reports whether the backing store answers.
type Pinger interface {
	Ping(ctx context.Context) error
}

type Deps struct {
	Campaigns  core.Registry
	Log        core.MessageLog
	Dispatcher Dispatcher
	Store      Pinger
	Logger     *zap.Logger
}

type Server struct {
	campaigns  core.Registry
	log        core.MessageLog
	dispatcher Dispatcher
	store      Pinger
	logger     *zap.Logger
	validate   *validator.Validate
}

func NewServer(d Deps) *Server {
	logger := d.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Server{
		campaigns:  d.Campaigns,
		log:        d.Log,
		dispatcher: d.Dispatcher,
		store:      d.Store,
		logger:     logger,
		validate:   validator.New(validator.WithRequiredStructEnabled()),
	}
}

func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID, middleware.RealIP, requestLogger(s.logger), middleware.Recoverer, instrument)

	s.mountHealth(r)
	s.mountMetrics(r)
	s.mountDocs(r)

	r.Post("/webhook/sms", s.inboundSMS)

	r.Route("/campaigns", func(r chi.Router) {
		r.Use(requireOwner)
		r.Post("/", s.createCampaign)
		r.Get("/", s.listCampaigns)
		r.Get("/{id}", s.getCampaign)
		r.Get("/{id}/messages", s.listCampaignMessages)
	})
	return r
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code string) {
	writeJSON(w, status, map[string]string{"error": code})
}
