package store

import (
	"context"
	"errors"
	"fmt"
	"slices"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/samber/lo"

	"rtchat/internal/app/db"
	"rtchat/internal/app/model"
)

// Postgres is the durable Backend backed by a pgx connection pool.
type Postgres struct {
	pool *pgxpool.Pool
}

// NewPostgres wraps an already migrated pool. Close releases the pool.
func NewPostgres(pool *pgxpool.Pool) *Postgres {
	return &Postgres{pool: pool}
}

func (p *Postgres) Name() string { return "postgres" }

func (p *Postgres) Close() error {
	p.pool.Close()
	return nil
}

const (
	accountColumns = `id, username, password_hash, created_at`
	groupColumns   = `id, name, description, members, created_at`
	messageColumns = `id, sender_id, sender_username, recipient_id, content, is_group, created_at`
)

func scanAccount(row pgx.CollectableRow) (model.Account, error) {
	var a model.Account
	err := row.Scan(&a.ID, &a.Username, &a.PasswordHash, &a.CreatedAt)
	return a, err
}

func scanGroup(row pgx.CollectableRow) (model.Group, error) {
	var g model.Group
	err := row.Scan(&g.ID, &g.Name, &g.Description, &g.Members, &g.CreatedAt)
	return g.Clone(), err
}

func scanMessage(row pgx.CollectableRow) (model.Message, error) {
	var m model.Message
	err := row.Scan(&m.ID, &m.SenderID, &m.SenderUsername, &m.RecipientID, &m.Content, &m.IsGroup, &m.Timestamp)
	return m, err
}

// queryOne runs a single-row query and maps pgx.ErrNoRows to ErrNotFound.
func queryOne[T any](ctx context.Context, p *Postgres, scan pgx.RowToFunc[T], sql string, args ...any) (T, error) {
	rows, _ := p.pool.Query(ctx, sql, args...)
	v, err := pgx.CollectExactlyOneRow(rows, scan)
	if errors.Is(err, pgx.ErrNoRows) {
		return v, ErrNotFound
	}
	return v, classify(err)
}

func queryAll[T any](ctx context.Context, p *Postgres, scan pgx.RowToFunc[T], sql string, args ...any) ([]T, error) {
	rows, _ := p.pool.Query(ctx, sql, args...)
	out, err := pgx.CollectRows(rows, scan)
	return out, classify(err)
}

// classify maps driver errors onto the package sentinels.
func classify(err error) error {
	switch {
	case err == nil:
		return nil
	case db.IsUniqueViolation(err):
		return fmt.Errorf("%w: %v", ErrDuplicate, err)
	default:
		return fmt.Errorf("%w: %v", ErrDurability, err)
	}
}

func (p *Postgres) SaveAccount(ctx context.Context, account model.Account) (model.Account, error) {
	return queryOne(ctx, p, scanAccount,
		`INSERT INTO users (`+accountColumns+`) VALUES ($1, $2, $3, $4) RETURNING `+accountColumns,
		account.ID, account.Username, account.PasswordHash, account.CreatedAt)
}

func (p *Postgres) FindAccountByID(ctx context.Context, id string) (model.Account, error) {
	return queryOne(ctx, p, scanAccount, `SELECT `+accountColumns+` FROM users WHERE id = $1`, id)
}

func (p *Postgres) FindAccountByUsername(ctx context.Context, username string) (model.Account, error) {
	return queryOne(ctx, p, scanAccount, `SELECT `+accountColumns+` FROM users WHERE username = $1`, username)
}

func (p *Postgres) ListUsers(ctx context.Context) ([]model.User, error) {
	accounts, err := queryAll(ctx, p, scanAccount, `SELECT `+accountColumns+` FROM users ORDER BY created_at, id`)
	if err != nil {
		return nil, err
	}
	return lo.Map(accounts, func(a model.Account, _ int) model.User { return a.User() }), nil
}

func (p *Postgres) SaveGroup(ctx context.Context, group model.Group) (model.Group, error) {
	group = group.Clone()
	return queryOne(ctx, p, scanGroup,
		`INSERT INTO groups (`+groupColumns+`) VALUES ($1, $2, $3, $4, $5) RETURNING `+groupColumns,
		group.ID, group.Name, group.Description, lo.Uniq(group.Members), group.CreatedAt)
}

func (p *Postgres) FindGroup(ctx context.Context, id string) (model.Group, error) {
	return queryOne(ctx, p, scanGroup, `SELECT `+groupColumns+` FROM groups WHERE id = $1`, id)
}

func (p *Postgres) ListGroups(ctx context.Context) ([]model.Group, error) {
	return queryAll(ctx, p, scanGroup, `SELECT `+groupColumns+` FROM groups ORDER BY created_at, id`)
}

func (p *Postgres) AddGroupMember(ctx context.Context, groupID, userID string) (model.Group, error) {
	group, err := queryOne(ctx, p, scanGroup,
		`UPDATE groups SET members = array_append(members, $2::text)
		 WHERE id = $1 AND NOT ($2::text = ANY(members))
		 RETURNING `+groupColumns,
		groupID, userID)
	if errors.Is(err, ErrNotFound) {
		// Either the group is missing or userID is already a member.
		return p.FindGroup(ctx, groupID)
	}
	return group, err
}

func (p *Postgres) SaveMessage(ctx context.Context, message model.Message) (model.Message, error) {
	return queryOne(ctx, p, scanMessage,
		`INSERT INTO messages (`+messageColumns+`) VALUES ($1, $2, $3, $4, $5, $6, $7) RETURNING `+messageColumns,
		message.ID, message.SenderID, message.SenderUsername, message.RecipientID,
		message.Content, message.IsGroup, message.Timestamp)
}

func (p *Postgres) ListMessages(ctx context.Context, query model.MessageQuery) ([]model.Message, error) {
	limit := query.Limit
	if limit <= 0 {
		limit = -1
	}

	var (
		messages []model.Message
		err      error
	)
	if query.GroupID != "" {
		messages, err = queryAll(ctx, p, scanMessage,
			`SELECT `+messageColumns+` FROM messages
			 WHERE is_group AND recipient_id = $1
			 ORDER BY created_at DESC, id DESC
			 LIMIT NULLIF($2::int, -1)`,
			query.GroupID, limit)
	} else {
		messages, err = queryAll(ctx, p, scanMessage,
			`SELECT `+messageColumns+` FROM messages
			 WHERE NOT is_group
			   AND ((sender_id = $1 AND recipient_id = $2) OR (sender_id = $2 AND recipient_id = $1))
			 ORDER BY created_at DESC, id DESC
			 LIMIT NULLIF($3::int, -1)`,
			query.UserA, query.UserB, limit)
	}
	if err != nil {
		return nil, err
	}
	slices.Reverse(messages)
	return messages, nil
}
