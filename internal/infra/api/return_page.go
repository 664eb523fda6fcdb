package api

import (
	"html/template"
	"net/http"

	"telegram-group-paywall/internal/domain/model"
)

// handleReturn is where the checkout page sends the browser afterwards. It
// only reports ledger state; confirmation happens via webhook or verify.
func (s *Server) handleReturn(w http.ResponseWriter, r *http.Request) {
	ref := r.URL.Query().Get("reference")
	if ref == "" {
		s.renderReturn(w, http.StatusBadRequest, false, "missing payment reference")
		return
	}
	p, err := s.ledger.FindByAnyReference(r.Context(), ref)
	if err != nil {
		s.renderReturn(w, http.StatusNotFound, false, "we could not find this payment yet, please check again in a minute")
		return
	}
	switch {
	case p.Status.IsPaidFamily():
		s.renderReturn(w, http.StatusOK, true, "payment confirmed. you can now request to join the group.")
	case p.Status == model.PaymentStatusFailed:
		s.renderReturn(w, http.StatusOK, false, "the payment was not completed.")
	default:
		s.renderReturn(w, http.StatusOK, false, "payment is still processing. this page does not need to stay open.")
	}
}

var returnPage = template.Must(template.New("return").Parse(`<!doctype html>
<html lang="en">
<head>
<meta charset="utf-8" />
<meta name="viewport" content="width=device-width,initial-scale=1" />
<title>Payment {{if .OK}}Confirmed{{else}}Status{{end}}</title>
<style>
body{font-family:system-ui,Arial,sans-serif;margin:2rem;}
.card{max-width:560px;border:1px solid #ddd;border-radius:12px;padding:24px;}
.ok{color:#057a55} .wait{color:#8a6d00}
.btn{display:inline-block;margin-top:16px;padding:10px 16px;border-radius:8px;border:1px solid #888;text-decoration:none}
</style>
</head>
<body>
<div class="card">
  <h2 class="{{if .OK}}ok{{else}}wait{{end}}">{{if .OK}}Payment Confirmed{{else}}Payment Status{{end}}</h2>
  <p>{{.Msg}}</p>
  {{if .BotUsername}}<a class="btn" href="https://t.me/{{.BotUsername}}">Back to Telegram</a>{{end}}
</div>
</body>
</html>`))

func (s *Server) renderReturn(w http.ResponseWriter, code int, ok bool, msg string) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(code)
	_ = returnPage.Execute(w, struct {
		OK          bool
		Msg         string
		BotUsername string
	}{OK: ok, Msg: msg, BotUsername: s.cfg.Bot.Username})
}
