package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/Masterminds/squirrel"
	"github.com/georgysavva/scany/v2/pgxscan"

	"vinoteka/internal/core/apperror"
	"vinoteka/internal/core/id"
	"vinoteka/internal/core/lang"
	"vinoteka/internal/domain/session"
)

const sessionsTable = "admin_sessions"

var sessionCols = []string{
	"id", "token", "token_expires_at", "language", "view_modes", "flash", "created_at", "updated_at",
}

type sessionRow struct {
	ID             id.SessionID                `db:"id"`
	Token          string                      `db:"token"`
	TokenExpiresAt *time.Time                  `db:"token_expires_at"`
	Language       string                      `db:"language"`
	ViewModes      map[string]session.ViewMode `db:"view_modes"`
	Flash          *session.Flash              `db:"flash"`
	CreatedAt      time.Time                   `db:"created_at"`
	UpdatedAt      time.Time                   `db:"updated_at"`
}

func (r sessionRow) toDomain() *session.Session {
	s := &session.Session{
		ID:        r.ID,
		Token:     r.Token,
		Language:  lang.Parse(r.Language),
		ViewModes: r.ViewModes,
		Flash:     r.Flash,
		CreatedAt: r.CreatedAt,
		UpdatedAt: r.UpdatedAt,
	}
	if r.TokenExpiresAt != nil {
		s.TokenExpiresAt = *r.TokenExpiresAt
	}
	if s.ViewModes == nil {
		s.ViewModes = make(map[string]session.ViewMode)
	}
	return s
}

// SessionRepo implements session.Store.
type SessionRepo struct {
	txm     *TxManager
	builder squirrel.StatementBuilderType
	now     func() time.Time
}

var _ session.Store = (*SessionRepo)(nil)

// NewSessionRepo creates a session repository.
func NewSessionRepo(txm *TxManager) *SessionRepo {
	return &SessionRepo{
		txm:     txm,
		builder: squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar),
		now:     time.Now,
	}
}

func (r *SessionRepo) Get(ctx context.Context, sid id.SessionID) (*session.Session, error) {
	sql, args, err := r.builder.
		Select(sessionCols...).
		From(sessionsTable).
		Where(squirrel.Eq{"id": sid}).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build select: %w", err)
	}

	var row sessionRow
	if err := pgxscan.Get(ctx, r.txm.GetQuerier(ctx), &row, sql, args...); err != nil {
		if pgxscan.NotFound(err) {
			return nil, apperror.NewNotFound("session", sid)
		}
		return nil, fmt.Errorf("get session: %w", err)
	}
	return row.toDomain(), nil
}

func (r *SessionRepo) Save(ctx context.Context, s *session.Session) error {
	s.UpdatedAt = r.now().UTC()
	if s.CreatedAt.IsZero() {
		s.CreatedAt = s.UpdatedAt
	}

	viewModes, err := json.Marshal(s.ViewModes)
	if err != nil {
		return fmt.Errorf("encode view modes: %w", err)
	}
	var flash any
	if s.Flash != nil {
		b, err := json.Marshal(s.Flash)
		if err != nil {
			return fmt.Errorf("encode flash: %w", err)
		}
		flash = string(b)
	}
	var expires any
	if !s.TokenExpiresAt.IsZero() {
		expires = s.TokenExpiresAt
	}

	sql, args, err := r.builder.
		Insert(sessionsTable).
		Columns(sessionCols...).
		Values(s.ID, s.Token, expires, s.Language.String(), string(viewModes), flash, s.CreatedAt, s.UpdatedAt).
		Suffix(`ON CONFLICT (id) DO UPDATE SET
			token = EXCLUDED.token,
			token_expires_at = EXCLUDED.token_expires_at,
			language = EXCLUDED.language,
			view_modes = EXCLUDED.view_modes,
			flash = EXCLUDED.flash,
			updated_at = EXCLUDED.updated_at`).
		ToSql()
	if err != nil {
		return fmt.Errorf("build upsert: %w", err)
	}

	if _, err := r.txm.GetQuerier(ctx).Exec(ctx, sql, args...); err != nil {
		return fmt.Errorf("save session: %w", err)
	}
	return nil
}

func (r *SessionRepo) Delete(ctx context.Context, sid id.SessionID) error {
	sql, args, err := r.builder.Delete(sessionsTable).Where(squirrel.Eq{"id": sid}).ToSql()
	if err != nil {
		return fmt.Errorf("build delete: %w", err)
	}
	if _, err := r.txm.GetQuerier(ctx).Exec(ctx, sql, args...); err != nil {
		return fmt.Errorf("delete session: %w", err)
	}
	return nil
}

func (r *SessionRepo) DeleteIdle(ctx context.Context, before time.Time) (int, error) {
	sql, args, err := r.builder.Delete(sessionsTable).Where(squirrel.Lt{"updated_at": before}).ToSql()
	if err != nil {
		return 0, fmt.Errorf("build delete: %w", err)
	}
	tag, err := r.txm.GetQuerier(ctx).Exec(ctx, sql, args...)
	if err != nil {
		return 0, fmt.Errorf("delete idle sessions: %w", err)
	}
	return int(tag.RowsAffected()), nil
}
