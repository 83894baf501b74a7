package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/Cypherspark/sms-autoresponder/internal/core"
	"github.com/Cypherspark/sms-autoresponder/internal/metrics"
)

type ownerKey struct{}

// requireOwner takes the caller identity from X-User-ID. Authentication
// happens in front of this service.
func requireOwner(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		owner := strings.TrimSpace(r.Header.Get("X-User-ID"))
		if owner == "" {
			writeError(w, http.StatusBadRequest, "missing_X-User-ID")
			return
		}
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), ownerKey{}, owner)))
	})
}

func ownerID(r *http.Request) string {
	owner, _ := r.Context().Value(ownerKey{}).(string)
	return owner
}

type createCampaignRequest struct {
	Name            string            `json:"name" validate:"required,min=3,max=200"`
	Keyword         string            `json:"keyword" validate:"required,min=2,max=64"`
	ResponseMessage string            `json:"response_message" validate:"required,min=5,max=1600"`
	Type            string            `json:"type" validate:"max=50"`
	TemplateData    map[string]string `json:"template_data" validate:"max=50"`
}

func (c *createCampaignRequest) trim() {
	c.Name = strings.TrimSpace(c.Name)
	c.Keyword = strings.TrimSpace(c.Keyword)
	c.ResponseMessage = strings.TrimSpace(c.ResponseMessage)
	c.Type = strings.TrimSpace(c.Type)
}

func fieldErrors(err error) map[string]string {
	out := map[string]string{}
	var ve validator.ValidationErrors
	if errors.As(err, &ve) {
		for _, fe := range ve {
			out[jsonName(fe.Field())] = fe.Tag()
		}
	}
	return out
}

func jsonName(field string) string {
	switch field {
	case "ResponseMessage":
		return "response_message"
	case "TemplateData":
		return "template_data"
	}
	return strings.ToLower(field)
}

func (s *Server) createCampaign(w http.ResponseWriter, r *http.Request) {
	var in createCampaignRequest
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		metrics.CampaignCreate.WithLabelValues("invalid").Inc()
		writeError(w, http.StatusBadRequest, "invalid_body")
		return
	}
	in.trim()
	if err := s.validate.StructCtx(r.Context(), in); err != nil {
		metrics.CampaignCreate.WithLabelValues("invalid").Inc()
		writeJSON(w, http.StatusBadRequest, map[string]any{"error": "invalid_body", "fields": fieldErrors(err)})
		return
	}

	c, err := s.campaigns.Create(r.Context(), core.NewCampaign{
		Name:            in.Name,
		Keyword:         in.Keyword,
		ResponseMessage: in.ResponseMessage,
		Type:            in.Type,
		TemplateData:    in.TemplateData,
		OwnerID:         ownerID(r),
	})
	switch {
	case errors.Is(err, core.ErrDuplicateKeyword):
		metrics.CampaignCreate.WithLabelValues("duplicate").Inc()
		writeError(w, http.StatusConflict, "keyword_exists")
		return
	case err != nil:
		metrics.CampaignCreate.WithLabelValues("error").Inc()
		s.logger.Error("create campaign", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "storage_unavailable")
		return
	}
	metrics.CampaignCreate.WithLabelValues("ok").Inc()
	s.logger.Info("campaign created",
		zap.String("campaign_id", c.ID.String()), zap.String("keyword", c.Keyword), zap.String("owner_id", c.OwnerID))
	writeJSON(w, http.StatusCreated, c)
}

func (s *Server) listCampaigns(w http.ResponseWriter, r *http.Request) {
	items, err := s.campaigns.ListByOwner(r.Context(), ownerID(r))
	if err != nil {
		s.logger.Error("list campaigns", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "storage_unavailable")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": items})
}

// ownedCampaign loads {id} and hides campaigns of other owners as 404.
func (s *Server) ownedCampaign(w http.ResponseWriter, r *http.Request) (*core.Campaign, bool) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusNotFound, "campaign_not_found")
		return nil, false
	}
	c, err := s.campaigns.FindByID(r.Context(), id)
	if errors.Is(err, core.ErrCampaignNotFound) || (err == nil && c.OwnerID != ownerID(r)) {
		writeError(w, http.StatusNotFound, "campaign_not_found")
		return nil, false
	}
	if err != nil {
		s.logger.Error("find campaign", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "storage_unavailable")
		return nil, false
	}
	return c, true
}

func (s *Server) getCampaign(w http.ResponseWriter, r *http.Request) {
	c, ok := s.ownedCampaign(w, r)
	if !ok {
		return
	}
	stats, err := s.log.StatsByCampaign(r.Context(), c.ID)
	if err != nil {
		s.logger.Error("campaign stats", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "storage_unavailable")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"campaign": c, "stats": stats})
}

func (s *Server) listCampaignMessages(w http.ResponseWriter, r *http.Request) {
	c, ok := s.ownedCampaign(w, r)
	if !ok {
		return
	}
	limit := 50
	if v := r.URL.Query().Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 && n <= 500 {
			limit = n
		}
	}
	offset := 0
	if v := r.URL.Query().Get("offset"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n >= 0 {
			offset = n
		}
	}
	items, err := s.log.ListByCampaign(r.Context(), c.ID, limit, offset)
	if err != nil {
		s.logger.Error("list campaign messages", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "storage_unavailable")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": items, "limit": limit, "offset": offset})
}
