package api

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"telegram-group-paywall/internal/domain"
	"telegram-group-paywall/internal/domain/model"
)

var (
	paidEvents   = map[string]bool{"payment.successful": true, "payment.paid": true, "charge.success": true, "paid": true, "successful": true}
	failedEvents = map[string]bool{"payment.failed": true, "charge.failed": true, "failed": true}
)

// flexString decodes a JSON string or number as text. Chat ids and amounts
// arrive either way depending on the checkout page.
type flexString string

func (f *flexString) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) == 0 || bytes.Equal(b, []byte("null")) {
		*f = ""
		return nil
	}
	if b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*f = flexString(strings.TrimSpace(s))
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(b, &n); err != nil {
		return err
	}
	*f = flexString(n.String())
	return nil
}

type webhookMetadata struct {
	Reference    string     `json:"reference"`
	TelegramID   flexString `json:"telegramId"`
	SubjectID    flexString `json:"subjectId"`
	GroupID      flexString `json:"groupId"`
	Duration     string     `json:"duration"`
	DurationTier string     `json:"durationTier"`
}

type webhookData struct {
	Reference         string          `json:"reference"`
	PayRef            string          `json:"pay_ref"`
	TransactionRef    string          `json:"transactionRef"`
	TransactionRefAlt string          `json:"transaction_ref"`
	Amount            flexString      `json:"amount"`
	PaymentMethod     string          `json:"paymentMethod"`
	Email             string          `json:"email"`
	Status            string          `json:"status"`
	Reason            string          `json:"reason"`
	GatewayResponse   string          `json:"gateway_response"`
	PaidAt            string          `json:"paidAt"`
	Metadata          webhookMetadata `json:"metadata"`
	CustomData        webhookMetadata `json:"custom_data"`
}

type webhookEnvelope struct {
	Event string      `json:"event"`
	Data  webhookData `json:"data"`
}

// ParseEvent normalizes a processor payload. Only unreadable JSON is an
// error; events without usable keys come back as EventKindOther or with
// empty keys and are dropped later as ignored.
func ParseEvent(processor string, raw []byte) (model.PaymentEvent, error) {
	var env webhookEnvelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return model.PaymentEvent{}, fmt.Errorf("%w: %v", domain.ErrMalformedEvent, err)
	}
	d := env.Data

	name := strings.ToLower(strings.TrimSpace(env.Event))
	if name == "" {
		name = strings.ToLower(strings.TrimSpace(d.Status))
	}

	ev := model.PaymentEvent{
		Processor:    processor,
		Name:         name,
		Kind:         classify(name),
		References:   candidateRefs(d.Metadata.Reference, d.CustomData.Reference, d.Reference, d.PayRef),
		ProcessorRef: firstNonEmpty(d.TransactionRef, d.TransactionRefAlt),
		SubjectID:    firstNonEmpty(string(d.Metadata.TelegramID), string(d.Metadata.SubjectID), string(d.CustomData.TelegramID), string(d.CustomData.SubjectID)),
		GroupID:      firstNonEmpty(string(d.Metadata.GroupID), string(d.CustomData.GroupID)),
		Amount:       string(d.Amount),
		DurationTier: firstNonEmpty(d.Metadata.Duration, d.Metadata.DurationTier, d.CustomData.Duration, d.CustomData.DurationTier),
		Method:       d.PaymentMethod,
		Email:        d.Email,
		Reason:       firstNonEmpty(d.Reason, d.GatewayResponse),
		Raw:          raw,
	}
	if d.PaidAt != "" {
		if t, err := time.Parse(time.RFC3339, d.PaidAt); err == nil {
			ev.PaidAt = t.UTC()
		}
	}
	return ev, nil
}

func classify(name string) model.EventKind {
	switch {
	case paidEvents[name]:
		return model.EventKindPaid
	case failedEvents[name]:
		return model.EventKindFailed
	}
	return model.EventKindOther
}

func candidateRefs(refs ...string) []string {
	var out []string
	seen := make(map[string]bool, len(refs))
	for _, r := range refs {
		r = strings.TrimSpace(r)
		if r == "" || seen[r] {
			continue
		}
		seen[r] = true
		out = append(out, r)
	}
	return out
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v = strings.TrimSpace(v); v != "" {
			return v
		}
	}
	return ""
}
