package api

import (
	"errors"
	"net/http"

	"telegram-group-paywall/internal/domain"
)

type resolveAccountRequest struct {
	AccountNumber string `json:"accountNumber"`
	BankCode      string `json:"bankCode"`
}

type resolveAccountResponse struct {
	AccountName   string `json:"accountName"`
	AccountNumber string `json:"accountNumber"`
	BankCode      string `json:"bankCode"`
}

func (s *Server) handleListBanks(w http.ResponseWriter, r *http.Request) {
	banks, err := s.banks.ListBanks(r.Context())
	if err != nil {
		if errors.Is(err, domain.ErrResolution) {
			writeError(w, http.StatusBadGateway, "bank directory unavailable")
			return
		}
		s.internalError(w, r, err, "list banks")
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"banks": banks})
}

func (s *Server) handleResolveAccount(w http.ResponseWriter, r *http.Request) {
	var req resolveAccountRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	acc, err := s.banks.ResolveAccount(r.Context(), req.AccountNumber, req.BankCode)
	switch {
	case errors.Is(err, domain.ErrInvalidArgument):
		writeError(w, http.StatusBadRequest, "accountNumber and bankCode are required")
		return
	case errors.Is(err, domain.ErrResolution):
		writeError(w, http.StatusUnprocessableEntity, "could not resolve account")
		return
	case err != nil:
		s.internalError(w, r, err, "resolve account")
		return
	}
	writeJSON(w, http.StatusOK, resolveAccountResponse{
		AccountName:   acc.AccountName,
		AccountNumber: acc.AccountNumber,
		BankCode:      acc.BankCode,
	})
}
