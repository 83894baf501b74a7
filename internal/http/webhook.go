package httpapi

import (
	"encoding/json"
	"mime"
	"net/http"

	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/Cypherspark/sms-autoresponder/internal/core"
)

const maxWebhookBody = 64 << 10

var emptyTwiML = []byte(`<?xml version="1.0" encoding="UTF-8"?><Response></Response>`)

type inboundPayload struct {
	Body       string `json:"Body"`
	From       string `json:"From"`
	To         string `json:"To"`
	MessageSid string `json:"MessageSid"`
}

// inboundSMS always answers 200. Any other status makes the carrier
// re-deliver the event.
func (s *Server) inboundSMS(w http.ResponseWriter, r *http.Request) {
	logger := s.logger.With(zap.String("request_id", middleware.GetReqID(r.Context())))

	in, err := decodeInbound(w, r)
	if err != nil {
		logger.Warn("undecodable inbound payload, treating as empty", zap.Error(err))
	}

	res := s.dispatcher.Dispatch(r.Context(), in)
	logger.Debug("inbound message handled",
		zap.String("outcome", string(res.Outcome)),
		zap.String("message_sid", in.ProviderMessageID))

	w.Header().Set("Content-Type", "text/xml")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(emptyTwiML)
}

func decodeInbound(w http.ResponseWriter, r *http.Request) (core.InboundMessage, error) {
	r.Body = http.MaxBytesReader(w, r.Body, maxWebhookBody)

	var p inboundPayload
	mt, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if mt == "application/json" {
		if err := json.NewDecoder(r.Body).Decode(&p); err != nil {
			return core.InboundMessage{}, err
		}
	} else {
		if err := r.ParseForm(); err != nil {
			return core.InboundMessage{}, err
		}
		p = inboundPayload{
			Body:       r.PostForm.Get("Body"),
			From:       r.PostForm.Get("From"),
			To:         r.PostForm.Get("To"),
			MessageSid: r.PostForm.Get("MessageSid"),
		}
	}
	return core.InboundMessage{
		Body:              p.Body,
		From:              p.From,
		To:                p.To,
		ProviderMessageID: p.MessageSid,
	}, nil
}
