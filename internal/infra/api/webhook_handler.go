package api

import (
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"telegram-group-paywall/internal/infra/logging"
	"telegram-group-paywall/internal/infra/metrics"
)

const defaultMaxBody = 1 << 20

// handleWebhook authenticates a processor callback and hands it to the
// reconciler. Anything the reconciler accepts is acknowledged with 200 so the
// processor stops retrying; storage failures return 500 to get a retry.
func (s *Server) handleWebhook(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	name := chi.URLParam(r, "processor")
	log := logging.With(r.Context(), s.log).With().Str("processor", name).Logger()

	pc, ok := s.cfg.Payment.Processor(name)
	if !ok {
		metrics.IncWebhook(name, "unknown_processor")
		writeError(w, http.StatusNotFound, "unknown processor")
		return
	}
	defer func() { metrics.ObserveWebhook(pc.Name, time.Since(start).Seconds()) }()

	limit := s.cfg.HTTP.MaxBodyBytes
	if limit <= 0 {
		limit = defaultMaxBody
	}
	raw, err := io.ReadAll(http.MaxBytesReader(w, r.Body, limit))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			metrics.IncWebhook(pc.Name, "too_large")
			writeError(w, http.StatusRequestEntityTooLarge, "payload too large")
			return
		}
		metrics.IncWebhook(pc.Name, "bad_request")
		writeError(w, http.StatusBadRequest, "unreadable body")
		return
	}
	if len(raw) == 0 {
		metrics.IncWebhook(pc.Name, "bad_request")
		writeError(w, http.StatusBadRequest, "missing body")
		return
	}

	header := pc.SignatureHeader
	if header == "" {
		header = "X-Signature"
	}
	if !VerifySignature(raw, r.Header.Get(header), pc.Secret) {
		metrics.IncSignatureFailure(pc.Name)
		metrics.IncWebhook(pc.Name, "unauthorized")
		log.Warn().Msg("webhook signature rejected")
		writeError(w, http.StatusUnauthorized, "invalid signature")
		return
	}

	ev, err := ParseEvent(pc.Name, raw)
	if err != nil {
		metrics.IncWebhook(pc.Name, "malformed")
		log.Warn().Err(err).Msg("webhook payload rejected")
		writeError(w, http.StatusBadRequest, "malformed payload")
		return
	}
	if pc.EventIDHeader != "" {
		ev.EventID = r.Header.Get(pc.EventIDHeader)
	}
	if ev.EventID == "" {
		ev.EventID = eventIDFromBody(raw)
	}

	res, err := s.reconcile.Ingest(r.Context(), ev)
	if err != nil {
		log.Error().Err(err).Str("event_id", ev.EventID).Str("event", ev.Name).Msg("webhook processing failed")
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	log.Info().Str("event_id", ev.EventID).Str("event", ev.Name).Str("outcome", string(res.Outcome)).Msg("webhook handled")
	writeJSON(w, http.StatusOK, messageResponse{Message: res.Message, Outcome: string(res.Outcome)})
}
