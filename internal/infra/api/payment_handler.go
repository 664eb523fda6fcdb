package api

import (
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"telegram-group-paywall/internal/domain"
	"telegram-group-paywall/internal/domain/model"
	"telegram-group-paywall/internal/infra/logging"
	"telegram-group-paywall/internal/usecase"
)

type recordPaymentRequest struct {
	Reference    string     `json:"reference"`
	SubjectID    flexString `json:"subjectId"`
	GroupID      flexString `json:"groupId"`
	Amount       flexString `json:"amount"`
	DurationTier string     `json:"durationTier"`
	ContactEmail string     `json:"contactEmail"`
}

type verifyPaymentRequest struct {
	Reference      string `json:"reference"`
	TransactionRef string `json:"transactionRef"`
	Status         string `json:"status"`
}

type paymentView struct {
	Reference          string     `json:"reference"`
	TransactionRef     string     `json:"transactionRef,omitempty"`
	SubjectID          string     `json:"subjectId"`
	GroupID            string     `json:"groupId"`
	GroupTitle         string     `json:"groupTitle,omitempty"`
	Amount             string     `json:"amount"`
	Commission         string     `json:"commission"`
	NetAmount          string     `json:"netAmount"`
	Currency           string     `json:"currency"`
	DurationTier       string     `json:"durationTier"`
	Status             string     `json:"status"`
	SubscriptionStatus string     `json:"subscriptionStatus"`
	PaymentMethod      string     `json:"paymentMethod,omitempty"`
	FailureReason      string     `json:"failureReason,omitempty"`
	PaidAt             *time.Time `json:"paidAt,omitempty"`
	ExpiresAt          *time.Time `json:"expiresAt,omitempty"`
	CreatedAt          time.Time  `json:"createdAt"`
}

func toPaymentView(p *model.Payment) paymentView {
	return paymentView{
		Reference:          p.Reference,
		TransactionRef:     p.TransactionRef,
		SubjectID:          p.SubjectID,
		GroupID:            p.GroupID,
		Amount:             p.Amount.StringFixed(model.MoneyScale),
		Commission:         p.Commission.StringFixed(model.MoneyScale),
		NetAmount:          p.NetAmount.StringFixed(model.MoneyScale),
		Currency:           p.Currency,
		DurationTier:       string(p.DurationTier),
		Status:             string(p.Status),
		SubscriptionStatus: string(p.SubscriptionStatus),
		PaymentMethod:      p.PaymentMethod,
		FailureReason:      p.FailureReason,
		PaidAt:             p.PaidAt,
		ExpiresAt:          p.ExpiresAt,
		CreatedAt:          p.CreatedAt,
	}
}

func (s *Server) handleRecordPayment(w http.ResponseWriter, r *http.Request) {
	var req recordPaymentRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	amount, err := decimal.NewFromString(string(req.Amount))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid amount")
		return
	}
	tier, err := model.ParseDurationTier(req.DurationTier)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid duration tier")
		return
	}

	p, err := s.ledger.CreatePending(r.Context(), usecase.NewPaymentInput{
		Reference:    req.Reference,
		SubjectID:    string(req.SubjectID),
		GroupID:      string(req.GroupID),
		Amount:       amount,
		DurationTier: tier,
		ContactEmail: req.ContactEmail,
	})
	switch {
	case errors.Is(err, domain.ErrDuplicateReference):
		writeError(w, http.StatusConflict, "reference already recorded")
		return
	case errors.Is(err, domain.ErrInvalidArgument):
		writeError(w, http.StatusBadRequest, "missing or invalid payment fields")
		return
	case err != nil:
		s.internalError(w, r, err, "record payment")
		return
	}
	writeJSON(w, http.StatusCreated, toPaymentView(p))
}

func (s *Server) handlePaymentStatus(w http.ResponseWriter, r *http.Request) {
	ref := chi.URLParam(r, "reference")
	p, err := s.ledger.FindByAnyReference(r.Context(), ref)
	switch {
	case errors.Is(err, domain.ErrNotFound):
		writeError(w, http.StatusNotFound, "payment not found")
		return
	case err != nil:
		s.internalError(w, r, err, "payment status")
		return
	}
	writeJSON(w, http.StatusOK, toPaymentView(p))
}

// handleVerifyPayment is the browser-side fallback for a late webhook.
func (s *Server) handleVerifyPayment(w http.ResponseWriter, r *http.Request) {
	var req verifyPaymentRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	p, err := s.reconcile.Verify(r.Context(), usecase.VerifyInput{
		Reference:      req.Reference,
		TransactionRef: req.TransactionRef,
		Status:         req.Status,
	})
	switch {
	case errors.Is(err, domain.ErrInvalidArgument):
		writeError(w, http.StatusBadRequest, "reference and a final status are required")
		return
	case errors.Is(err, domain.ErrNotFound):
		writeError(w, http.StatusNotFound, "payment not found")
		return
	case err != nil:
		s.internalError(w, r, err, "verify payment")
		return
	}
	writeJSON(w, http.StatusOK, toPaymentView(p))
}

func (s *Server) internalError(w http.ResponseWriter, r *http.Request, err error, op string) {
	l := logging.With(r.Context(), s.log)
	l.Error().Err(err).Str("op", op).Msg("request failed")
	writeError(w, http.StatusInternalServerError, "internal error")
}
