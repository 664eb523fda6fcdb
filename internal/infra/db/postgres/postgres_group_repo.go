package postgres

import (
	"context"

	"github.com/jackc/pgx/v4/pgxpool"

	"telegram-group-paywall/internal/domain"
	"telegram-group-paywall/internal/domain/model"
	"telegram-group-paywall/internal/domain/ports/repository"
)

var _ repository.GroupRepository = (*groupRepo)(nil)

const groupColumns = `group_id, owner_id, title, price, duration_tier, sub_link, is_active, subscribed_users, created_at, updated_at`

type groupRepo struct{ pool *pgxpool.Pool }

func NewGroupRepo(pool *pgxpool.Pool) *groupRepo {
	return &groupRepo{pool: pool}
}

func scanGroup(row rowScanner) (*model.Group, error) {
	g := new(model.Group)
	var tier string
	if err := row.Scan(&g.GroupID, &g.OwnerID, &g.Title, &g.Price, &tier, &g.SubLink, &g.IsActive,
		&g.SubscribedUsers, &g.CreatedAt, &g.UpdatedAt); err != nil {
		return nil, err
	}
	g.DurationTier = model.DurationTier(tier)
	return g, nil
}

// Upsert leaves price, tier and the subscriber cache alone on conflict; those
// are owned by other flows.
func (r *groupRepo) Upsert(ctx context.Context, tx repository.Tx, g *model.Group) error {
	tier := string(g.DurationTier)
	if tier == "" {
		tier = string(model.DurationMonthly)
	}
	subs := g.SubscribedUsers
	if subs == nil {
		subs = []string{}
	}
	const q = `
INSERT INTO groups (` + groupColumns + `)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)
ON CONFLICT (group_id) DO UPDATE SET
  owner_id = EXCLUDED.owner_id, title = EXCLUDED.title, sub_link = EXCLUDED.sub_link,
  is_active = EXCLUDED.is_active, updated_at = NOW();`

	_, err := execSQL(ctx, r.pool, tx, q, g.GroupID, g.OwnerID, g.Title, g.Price, tier, g.SubLink, g.IsActive,
		subs, g.CreatedAt, g.UpdatedAt)
	return mapWriteErr(err)
}

func (r *groupRepo) FindByID(ctx context.Context, tx repository.Tx, groupID string) (*model.Group, error) {
	row, err := pickRow(ctx, r.pool, tx, `SELECT `+groupColumns+` FROM groups WHERE group_id = $1;`, groupID)
	if err != nil {
		return nil, err
	}
	g, err := scanGroup(row)
	if err != nil {
		return nil, mapReadErr(err)
	}
	return g, nil
}

func (r *groupRepo) FindByIDs(ctx context.Context, tx repository.Tx, groupIDs []string) ([]*model.Group, error) {
	return r.list(ctx, tx, `SELECT `+groupColumns+` FROM groups WHERE group_id = ANY($1) ORDER BY group_id;`, groupIDs)
}

func (r *groupRepo) ListByOwner(ctx context.Context, tx repository.Tx, ownerID string) ([]*model.Group, error) {
	return r.list(ctx, tx, `SELECT `+groupColumns+` FROM groups WHERE owner_id = $1 ORDER BY created_at;`, ownerID)
}

func (r *groupRepo) SetActive(ctx context.Context, tx repository.Tx, groupID string, active bool) error {
	cmd, err := execSQL(ctx, r.pool, tx, `UPDATE groups SET is_active = $2, updated_at = NOW() WHERE group_id = $1;`, groupID, active)
	if err != nil {
		return mapWriteErr(err)
	}
	if cmd.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (r *groupRepo) AddSubscriber(ctx context.Context, tx repository.Tx, groupID, subjectID string) error {
	const q = `
UPDATE groups SET subscribed_users = array_append(subscribed_users, $2::text), updated_at = NOW()
 WHERE group_id = $1 AND NOT ($2::text = ANY(subscribed_users));`
	_, err := execSQL(ctx, r.pool, tx, q, groupID, subjectID)
	return mapWriteErr(err)
}

func (r *groupRepo) RemoveSubscriber(ctx context.Context, tx repository.Tx, groupID, subjectID string) error {
	const q = `UPDATE groups SET subscribed_users = array_remove(subscribed_users, $2::text), updated_at = NOW() WHERE group_id = $1;`
	_, err := execSQL(ctx, r.pool, tx, q, groupID, subjectID)
	return mapWriteErr(err)
}

func (r *groupRepo) CountGroupsAndOwners(ctx context.Context, tx repository.Tx) (int, int, error) {
	row, err := pickRow(ctx, r.pool, tx, `SELECT COUNT(*), COUNT(DISTINCT owner_id) FROM groups;`)
	if err != nil {
		return 0, 0, err
	}
	var groups, owners int
	if err := row.Scan(&groups, &owners); err != nil {
		return 0, 0, mapReadErr(err)
	}
	return groups, owners, nil
}

func (r *groupRepo) list(ctx context.Context, tx repository.Tx, q string, args ...interface{}) ([]*model.Group, error) {
	rows, err := queryRows(ctx, r.pool, tx, q, args...)
	if err != nil {
		return nil, mapWriteErr(err)
	}
	defer rows.Close()

	var out []*model.Group
	for rows.Next() {
		g, err := scanGroup(rows)
		if err != nil {
			return nil, domain.ErrReadDatabaseRow
		}
		out = append(out, g)
	}
	return out, rows.Err()
}
