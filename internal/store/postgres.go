package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/m3rciful/appealbot/core/logger"
	"github.com/m3rciful/appealbot/internal/role"
)

const uniqueViolation = "23505"

// DBErr maps driver errors onto the package sentinels.
func DBErr(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, sql.ErrNoRows) {
		return ErrNotFound
	}
	var pqErr *pq.Error
	if errors.As(err, &pqErr) && pqErr.Code == uniqueViolation {
		return ErrDuplicate
	}
	return err
}

// Postgres implements Store on top of sqlx and squirrel.
type Postgres struct {
	db  *sqlx.DB
	sb  sq.StatementBuilderType
	now func() time.Time
}

// NewPostgres wraps an open connection.
func NewPostgres(db *sqlx.DB) *Postgres {
	return &Postgres{
		db:  db,
		sb:  sq.StatementBuilder.PlaceholderFormat(sq.Dollar),
		now: time.Now,
	}
}

func (p *Postgres) get(ctx context.Context, dest any, b sq.Sqlizer) error {
	query, args, err := b.ToSql()
	if err != nil {
		return fmt.Errorf("build query: %w", err)
	}
	return DBErr(p.db.GetContext(ctx, dest, query, args...))
}

func (p *Postgres) selectAll(ctx context.Context, dest any, b sq.Sqlizer) error {
	query, args, err := b.ToSql()
	if err != nil {
		return fmt.Errorf("build query: %w", err)
	}
	return DBErr(p.db.SelectContext(ctx, dest, query, args...))
}

func (p *Postgres) exec(ctx context.Context, b sq.Sqlizer) (int64, error) {
	query, args, err := b.ToSql()
	if err != nil {
		return 0, fmt.Errorf("build query: %w", err)
	}
	start := time.Now()
	res, err := p.db.ExecContext(ctx, query, args...)
	if err != nil {
		logger.LogEvent(ctx, logger.DB, slog.LevelWarn, "db.exec",
			slog.String("status", "fail"),
			slog.Duration("duration", logger.Took(start)),
			logger.Err(err),
		)
		return 0, DBErr(err)
	}
	n, _ := res.RowsAffected()
	return n, nil
}

var userColumns = []string{"id", "role", "registered_at", "ban_start", "ban_end", "ban_by", "ban_reason"}

func (p *Postgres) EnsureUser(ctx context.Context, id int64) error {
	_, err := p.exec(ctx, p.sb.Insert("users").
		Columns("id", "role", "registered_at").
		Values(id, role.User.Rank(), p.now()).
		Suffix("ON CONFLICT (id) DO NOTHING"))
	return err
}

func (p *Postgres) GetUser(ctx context.Context, id int64) (User, error) {
	var u User
	if err := p.get(ctx, &u, p.sb.Select(userColumns...).From("users").Where(sq.Eq{"id": id})); err != nil {
		return User{}, fmt.Errorf("user %d: %w", id, err)
	}
	return u, nil
}

func (p *Postgres) GetRole(ctx context.Context, id int64, quiet bool) (role.Role, error) {
	var rank int
	err := p.get(ctx, &rank, p.sb.Select("role").From("users").Where(sq.Eq{"id": id}))
	if errors.Is(err, ErrNotFound) && quiet {
		return role.User, nil
	}
	if err != nil {
		return role.User, fmt.Errorf("role of %d: %w", id, err)
	}
	return role.FromRank(rank)
}

func (p *Postgres) SetRole(ctx context.Context, id int64, r role.Role) (RoleChange, error) {
	tx, err := p.db.BeginTxx(ctx, nil)
	if err != nil {
		return RoleApplied, DBErr(err)
	}
	defer func() { _ = tx.Rollback() }()

	query, args, err := p.sb.Select("role").From("users").Where(sq.Eq{"id": id}).Suffix("FOR UPDATE").ToSql()
	if err != nil {
		return RoleApplied, fmt.Errorf("build query: %w", err)
	}
	var rank int
	err = DBErr(tx.GetContext(ctx, &rank, query, args...))
	switch {
	case errors.Is(err, ErrNotFound):
		query, args, err = p.sb.Insert("users").
			Columns("id", "role", "registered_at").
			Values(id, r.Rank(), p.now()).ToSql()
	case err != nil:
		return RoleApplied, err
	case rank == role.Admin.Rank():
		return RoleNoOpPrivileged, nil
	case rank == r.Rank():
		return RoleNoOpSameRole, nil
	default:
		query, args, err = p.sb.Update("users").Set("role", r.Rank()).Where(sq.Eq{"id": id}).ToSql()
	}
	if err != nil {
		return RoleApplied, fmt.Errorf("build query: %w", err)
	}
	if _, err := tx.ExecContext(ctx, query, args...); err != nil {
		return RoleApplied, DBErr(err)
	}
	return RoleApplied, DBErr(tx.Commit())
}

func (p *Postgres) ListByRole(ctx context.Context, r role.Role) ([]User, error) {
	var users []User
	if err := p.selectAll(ctx, &users, p.sb.Select(userColumns...).From("users").
		Where(sq.Eq{"role": r.Rank()}).OrderBy("id")); err != nil {
		return nil, err
	}
	return users, nil
}

func (p *Postgres) GetProfile(ctx context.Context, userID int64) (Profile, error) {
	var prof Profile
	err := p.get(ctx, &prof, p.sb.Select("user_id", "full_name", "contact").
		From("profiles").Where(sq.Eq{"user_id": userID}))
	if err != nil {
		return Profile{}, fmt.Errorf("profile %d: %w", userID, err)
	}
	return prof, nil
}

func (p *Postgres) UpsertProfile(ctx context.Context, prof Profile) error {
	if err := p.EnsureUser(ctx, prof.UserID); err != nil {
		return err
	}
	_, err := p.exec(ctx, p.sb.Insert("profiles").
		Columns("user_id", "full_name", "contact").
		Values(prof.UserID, Truncate(prof.FullName, MaxFullName), Truncate(prof.Contact, MaxContact)).
		Suffix("ON CONFLICT (user_id) DO UPDATE SET full_name = EXCLUDED.full_name, contact = EXCLUDED.contact"))
	return err
}

func (p *Postgres) IsBanned(ctx context.Context, id int64) (bool, error) {
	var banned bool
	err := p.get(ctx, &banned, p.sb.Select().
		Column(sq.Expr("ban_end IS NOT NULL AND ban_end > ?", p.now())).
		From("users").Where(sq.Eq{"id": id}))
	if errors.Is(err, ErrNotFound) {
		return false, nil
	}
	return banned, err
}

func (p *Postgres) BanUser(ctx context.Context, id int64, opts BanOpts) (time.Time, error) {
	if opts.Start.IsZero() {
		opts.Start = p.now()
	}
	end := opts.End()
	n, err := p.exec(ctx, p.sb.Update("users").
		Set("ban_start", opts.Start).
		Set("ban_end", end).
		Set("ban_by", opts.ActorID).
		Set("ban_reason", Truncate(opts.Reason, MaxBanReason)).
		Where(sq.Eq{"id": id}))
	if err != nil {
		return time.Time{}, err
	}
	if n == 0 {
		return time.Time{}, fmt.Errorf("user %d: %w", id, ErrNotFound)
	}
	return end, nil
}

func (p *Postgres) AddAppeal(ctx context.Context, a Appeal) error {
	if a.CreatedAt.IsZero() {
		a.CreatedAt = p.now()
	}
	_, err := p.exec(ctx, p.sb.Insert("appeals").
		Columns("msg_id", "user_id", "status", "created_at", "category", "address", "body", "police", "attachments").
		Values(a.MessageID, a.UserID, a.Status, a.CreatedAt,
			Truncate(a.Category, MaxCategory),
			Truncate(a.Address, MaxAddress),
			Truncate(a.Body, MaxBody),
			Truncate(a.Police, MaxPolice),
			Truncate(a.Attachments, MaxAttachments)))
	if err != nil {
		return fmt.Errorf("appeal %d/%d: %w", a.UserID, a.MessageID, err)
	}
	return nil
}

func (p *Postgres) ListAppeals(ctx context.Context, userID int64) ([]Appeal, error) {
	b := p.sb.Select("msg_id", "user_id", "status", "created_at", "category", "address", "body", "police", "attachments").
		From("appeals").OrderBy("created_at")
	if userID != 0 {
		b = b.Where(sq.Eq{"user_id": userID})
	}
	var out []Appeal
	if err := p.selectAll(ctx, &out, b); err != nil {
		return nil, err
	}
	return out, nil
}

func (p *Postgres) SetHashLink(ctx context.Context, link string) (string, error) {
	h := HashLink(link)
	_, err := p.exec(ctx, p.sb.Insert("attachments").
		Columns("hash", "link").
		Values(h, Truncate(link, MaxLink)).
		Suffix("ON CONFLICT (hash) DO NOTHING"))
	if err != nil {
		return "", err
	}
	return h, nil
}

func (p *Postgres) GetHashLink(ctx context.Context, hash string) (string, error) {
	var link string
	if err := p.get(ctx, &link, p.sb.Select("link").From("attachments").Where(sq.Eq{"hash": hash})); err != nil {
		return "", fmt.Errorf("hash %q: %w", hash, err)
	}
	return link, nil
}
