package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"telegram-group-paywall/internal/domain"
	"telegram-group-paywall/internal/domain/model"
	"telegram-group-paywall/internal/domain/ports/repository"
)

var _ repository.SessionRepository = (*SessionRepo)(nil)

// SessionRepo keeps bot conversations in Redis. A conversation left idle
// longer than ttl simply disappears.
type SessionRepo struct {
	client RedisClient
	ttl    time.Duration
}

func NewSessionRepo(client RedisClient, ttl time.Duration) *SessionRepo {
	if ttl <= 0 {
		ttl = 15 * time.Minute
	}
	return &SessionRepo{client: client, ttl: ttl}
}

func (s *SessionRepo) key(subjectID string) string {
	return fmt.Sprintf("bot_session:%s", subjectID)
}

func (s *SessionRepo) Save(ctx context.Context, sess *model.BotSession) error {
	data, err := json.Marshal(sess)
	if err != nil {
		return err
	}
	return s.client.Set(ctx, s.key(sess.SubjectID), data, s.ttl)
}

func (s *SessionRepo) Get(ctx context.Context, subjectID string) (*model.BotSession, error) {
	data, err := s.client.Get(ctx, s.key(subjectID))
	if errors.Is(err, Nil) {
		return nil, domain.ErrSessionExpired
	}
	if err != nil {
		return nil, err
	}

	var sess model.BotSession
	if err := json.Unmarshal([]byte(data), &sess); err != nil {
		// A corrupt entry is as good as none.
		_ = s.client.Del(ctx, s.key(subjectID))
		return nil, domain.ErrSessionExpired
	}
	if sess.Data == nil {
		sess.Data = map[string]string{}
	}
	return &sess, nil
}

func (s *SessionRepo) Clear(ctx context.Context, subjectID string) error {
	return s.client.Del(ctx, s.key(subjectID))
}
