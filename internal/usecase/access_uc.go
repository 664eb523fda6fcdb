package usecase

import (
	"context"
	"errors"
	"net/url"
	"time"

	"github.com/rs/zerolog"

	"telegram-group-paywall/internal/domain"
	"telegram-group-paywall/internal/domain/model"
	"telegram-group-paywall/internal/domain/ports/adapter"
	"telegram-group-paywall/internal/domain/ports/repository"
	"telegram-group-paywall/internal/infra/metrics"
)

// Compile-time check
var _ AccessUseCase = (*accessUC)(nil)

// Translator renders user-facing bot messages.
type Translator interface {
	T(key string, args ...interface{}) string
}

type AccessOptions struct {
	SubscribeBaseURL string
	// UnbanAfterRevoke lifts the ban right after removal so the subject can
	// re-request access once they pay again.
	UnbanAfterRevoke bool
}

// EnforcementReport summarizes one sweep.
type EnforcementReport struct {
	Candidates int
	Revoked    int
	Skipped    int
	Errors     int
}

type AccessUseCase interface {
	Evaluate(ctx context.Context, subjectID, groupID string, now time.Time) (model.AccessState, error)
	HandleJoinRequest(ctx context.Context, groupID, subjectID string) (model.AccessState, error)
	HandleNewMember(ctx context.Context, groupID, subjectID string, isBot bool) (model.AccessState, error)
	// Sweep removes members of paywalled groups that no longer hold an
	// entitled payment. It never grants access.
	Sweep(ctx context.Context, now time.Time) (EnforcementReport, error)
	SubscriptionLink(ctx context.Context, groupID string) string
}

type accessUC struct {
	payments repository.PaymentRepository
	groups   repository.GroupRepository
	chat     adapter.ChatPlatform
	pub      adapter.EventPublisher
	tr       Translator
	opts     AccessOptions
	log      *zerolog.Logger
}

func NewAccessUseCase(payments repository.PaymentRepository, groups repository.GroupRepository, chat adapter.ChatPlatform, pub adapter.EventPublisher, tr Translator, opts AccessOptions, logger *zerolog.Logger) *accessUC {
	l := logger.With().Str("component", "AccessUC").Logger()
	return &accessUC{payments: payments, groups: groups, chat: chat, pub: pub, tr: tr, opts: opts, log: &l}
}

func (u *accessUC) Evaluate(ctx context.Context, subjectID, groupID string, now time.Time) (model.AccessState, error) {
	rows, err := u.payments.ListBySubjectAndGroup(ctx, repository.NoTX, subjectID, groupID)
	if err != nil {
		return "", err
	}
	return model.DeriveAccessState(rows, now), nil
}

func (u *accessUC) HandleJoinRequest(ctx context.Context, groupID, subjectID string) (model.AccessState, error) {
	state, err := u.Evaluate(ctx, subjectID, groupID, time.Now().UTC())
	if err != nil {
		return "", err
	}
	log := u.log.With().Str("group_id", groupID).Str("subject_id", subjectID).Str("state", string(state)).Logger()

	if state.Permits() {
		if err := u.chat.ApproveJoinRequest(ctx, groupID, subjectID); err != nil {
			metrics.IncMembershipAPIError("approve")
			return state, err
		}
		metrics.IncAccessDecision("join_request", "approved")
		log.Info().Msg("join request approved")
		return state, nil
	}

	if err := u.chat.DeclineJoinRequest(ctx, groupID, subjectID); err != nil {
		metrics.IncMembershipAPIError("decline")
		return state, err
	}
	metrics.IncAccessDecision("join_request", "declined")
	log.Info().Msg("join request declined")
	u.notify(ctx, subjectID, u.denialMessage(ctx, state, groupID))
	return state, nil
}

func (u *accessUC) HandleNewMember(ctx context.Context, groupID, subjectID string, isBot bool) (model.AccessState, error) {
	if isBot {
		return "", nil
	}
	state, err := u.Evaluate(ctx, subjectID, groupID, time.Now().UTC())
	if err != nil {
		return "", err
	}
	if state.Permits() {
		metrics.IncAccessDecision("new_member", "allowed")
		return state, nil
	}
	if err := u.revoke(ctx, groupID, subjectID); err != nil {
		return state, err
	}
	metrics.IncAccessDecision("new_member", "removed")
	u.log.Info().Str("group_id", groupID).Str("subject_id", subjectID).Str("state", string(state)).Msg("unpaid member removed")
	u.notify(ctx, subjectID, u.denialMessage(ctx, state, groupID))
	return state, nil
}

func (u *accessUC) Sweep(ctx context.Context, now time.Time) (EnforcementReport, error) {
	var rep EnforcementReport
	pairs, err := u.payments.ListRevocationCandidates(ctx, repository.NoTX, now)
	if err != nil {
		return rep, err
	}
	rep.Candidates = len(pairs)

	for _, pair := range pairs {
		// Drain at a subject boundary on shutdown.
		if err := ctx.Err(); err != nil {
			return rep, err
		}
		revoked, err := u.enforcePair(ctx, pair)
		switch {
		case err != nil:
			rep.Errors++
			u.log.Warn().Err(err).Str("group_id", pair.GroupID).Str("subject_id", pair.SubjectID).Msg("enforcement skipped subject")
		case revoked:
			rep.Revoked++
		default:
			rep.Skipped++
		}
	}
	if rep.Revoked > 0 || rep.Errors > 0 {
		u.log.Info().Int("candidates", rep.Candidates).Int("revoked", rep.Revoked).Int("errors", rep.Errors).Msg("enforcement sweep finished")
	}
	return rep, nil
}

func (u *accessUC) enforcePair(ctx context.Context, pair model.AccessPair) (bool, error) {
	status, err := u.chat.GetMembershipStatus(ctx, pair.GroupID, pair.SubjectID)
	if err != nil {
		metrics.IncMembershipAPIError("get_member")
		return false, err
	}
	if !status.IsPresent() || status.IsPrivileged() {
		return false, nil
	}
	if err := u.revoke(ctx, pair.GroupID, pair.SubjectID); err != nil {
		return false, err
	}
	metrics.IncAccessDecision("sweep", "removed")
	u.notify(ctx, pair.SubjectID, u.tr.T("access.expired", u.SubscriptionLink(ctx, pair.GroupID)))
	return true, nil
}

func (u *accessUC) revoke(ctx context.Context, groupID, subjectID string) error {
	if err := u.chat.BanMember(ctx, groupID, subjectID); err != nil {
		metrics.IncMembershipAPIError("ban")
		return err
	}
	if u.opts.UnbanAfterRevoke {
		if err := u.chat.UnbanMember(ctx, groupID, subjectID); err != nil {
			metrics.IncMembershipAPIError("unban")
			u.log.Warn().Err(err).Str("group_id", groupID).Str("subject_id", subjectID).Msg("unban after revoke failed")
		}
	}
	if u.groups != nil {
		if err := u.groups.RemoveSubscriber(ctx, repository.NoTX, groupID, subjectID); err != nil && !errors.Is(err, domain.ErrNotFound) {
			u.log.Warn().Err(err).Str("group_id", groupID).Msg("group subscriber cache not updated")
		}
	}
	if u.pub != nil {
		if err := u.pub.Publish(ctx, adapter.DomainEvent{
			Type:       adapter.EventMembershipRevoked,
			SubjectID:  subjectID,
			GroupID:    groupID,
			OccurredAt: time.Now().UTC(),
		}); err != nil {
			u.log.Warn().Err(err).Msg("revocation event not published")
		}
	}
	return nil
}

func (u *accessUC) SubscriptionLink(ctx context.Context, groupID string) string {
	if u.groups != nil {
		if g, err := u.groups.FindByID(ctx, repository.NoTX, groupID); err == nil && g.SubLink != "" {
			return g.SubLink
		}
	}
	base, err := url.Parse(u.opts.SubscribeBaseURL)
	if err != nil || u.opts.SubscribeBaseURL == "" {
		return u.opts.SubscribeBaseURL
	}
	q := base.Query()
	q.Set("group", groupID)
	base.RawQuery = q.Encode()
	return base.String()
}

func (u *accessUC) denialMessage(ctx context.Context, state model.AccessState, groupID string) string {
	link := u.SubscriptionLink(ctx, groupID)
	switch state {
	case model.AccessPending:
		return u.tr.T("access.pending", link)
	case model.AccessExpired:
		return u.tr.T("access.expired", link)
	case model.AccessDenied:
		return u.tr.T("access.denied", link)
	}
	return u.tr.T("access.no_payment", link)
}

func (u *accessUC) notify(ctx context.Context, subjectID, text string) {
	if err := u.chat.SendDirectMessage(ctx, subjectID, text); err != nil {
		// Users who never opened a DM with the bot cannot be messaged.
		u.log.Debug().Err(err).Str("subject_id", subjectID).Msg("direct message not delivered")
	}
}
