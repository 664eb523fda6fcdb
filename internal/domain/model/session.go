package model

import (
	"time"

	"telegram-group-paywall/internal/domain"
)

// SessionState is a step of the owner payout conversation.
type SessionState string

const (
	SessionIdle                  SessionState = "idle"
	SessionAwaitingBankCode      SessionState = "awaiting_bank_code"
	SessionAwaitingAccountNumber SessionState = "awaiting_account_number"
)

// SessionEvent drives BotSession transitions.
type SessionEvent string

const (
	SessionEventStartPayout   SessionEvent = "start_payout"
	SessionEventBankCode      SessionEvent = "bank_code"
	SessionEventAccountNumber SessionEvent = "account_number"
	SessionEventResolveFailed SessionEvent = "resolve_failed"
	SessionEventCancel        SessionEvent = "cancel"
)

var sessionTransitions = map[SessionState]map[SessionEvent]SessionState{
	SessionIdle: {
		SessionEventStartPayout: SessionAwaitingBankCode,
		SessionEventCancel:      SessionIdle,
	},
	SessionAwaitingBankCode: {
		SessionEventStartPayout: SessionAwaitingBankCode,
		SessionEventBankCode:    SessionAwaitingAccountNumber,
		SessionEventCancel:      SessionIdle,
	},
	SessionAwaitingAccountNumber: {
		SessionEventStartPayout:   SessionAwaitingBankCode,
		SessionEventAccountNumber: SessionIdle,
		SessionEventResolveFailed: SessionAwaitingAccountNumber,
		SessionEventCancel:        SessionIdle,
	},
}

// BotSession is the conversational state of one subject, keyed by SubjectID
// and persisted with a TTL by the session store.
type BotSession struct {
	SubjectID string            `json:"subject_id"`
	State     SessionState      `json:"state"`
	Data      map[string]string `json:"data"`
	UpdatedAt time.Time         `json:"updated_at"`
}

func NewBotSession(subjectID string) *BotSession {
	return &BotSession{
		SubjectID: subjectID,
		State:     SessionIdle,
		Data:      map[string]string{},
		UpdatedAt: time.Now().UTC(),
	}
}

// Fire applies ev. Unknown transitions leave the session untouched.
func (s *BotSession) Fire(ev SessionEvent) error {
	next, ok := sessionTransitions[s.State][ev]
	if !ok {
		return domain.ErrInvalidArgument
	}
	s.State = next
	if next == SessionIdle {
		s.Data = map[string]string{}
	}
	s.UpdatedAt = time.Now().UTC()
	return nil
}

func (s *BotSession) Set(key, value string) {
	if s.Data == nil {
		s.Data = map[string]string{}
	}
	s.Data[key] = value
}
