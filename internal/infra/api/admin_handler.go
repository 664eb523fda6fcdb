package api

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"telegram-group-paywall/internal/domain"
)

type revenueView struct {
	OwnerID      string   `json:"ownerId"`
	TotalRevenue string   `json:"totalRevenue"`
	Groups       []string `json:"groups"`
}

type statsView struct {
	TotalGroups         int `json:"totalGroups"`
	TotalGroupOwners    int `json:"totalGroupOwners"`
	ActiveSubscriptions int `json:"activeSubscriptions"`
}

func (s *Server) handleTransactions(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	limit := queryInt(q.Get("limit"), 50)
	offset := queryInt(q.Get("offset"), 0)
	rows, err := s.reports.Transactions(r.Context(), q.Get("status"), limit, offset)
	if err != nil {
		if errors.Is(err, domain.ErrInvalidArgument) {
			writeError(w, http.StatusBadRequest, "invalid status filter")
			return
		}
		s.internalError(w, r, err, "list transactions")
		return
	}
	out := make([]paymentView, 0, len(rows))
	for _, row := range rows {
		v := toPaymentView(row.Payment)
		v.GroupTitle = row.GroupTitle
		out = append(out, v)
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"transactions": out, "limit": limit, "offset": offset})
}

func (s *Server) handleWeeklyRevenue(w http.ResponseWriter, r *http.Request) {
	revs, err := s.reports.WeeklyRevenue(r.Context(), time.Now().UTC())
	if err != nil {
		s.internalError(w, r, err, "weekly revenue")
		return
	}
	out := make([]revenueView, 0, len(revs))
	for _, rev := range revs {
		out = append(out, revenueView{OwnerID: rev.OwnerID, TotalRevenue: rev.TotalRevenue.StringFixed(2), Groups: rev.Groups})
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"owners": out})
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	st, err := s.reports.Stats(r.Context(), time.Now().UTC())
	if err != nil {
		s.internalError(w, r, err, "stats")
		return
	}
	writeJSON(w, http.StatusOK, statsView{
		TotalGroups:         st.TotalGroups,
		TotalGroupOwners:    st.TotalGroupOwners,
		ActiveSubscriptions: st.ActivePaidRows,
	})
}

func queryInt(v string, def int) int {
	n, err := strconv.Atoi(v)
	if err != nil || n < 0 {
		return def
	}
	return n
}
