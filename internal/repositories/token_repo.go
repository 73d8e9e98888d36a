package repositories

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"resthub/internal/models"
)

type TokenRepository interface {
	Create(ctx context.Context, token *models.Token) error
	FindByAccessToken(ctx context.Context, accessToken string, userID, clientID uuid.UUID) (*models.Token, error)
	FindByRefreshToken(ctx context.Context, refreshToken string, userID, clientID uuid.UUID) (*models.Token, error)
	DeleteByID(ctx context.Context, id uuid.UUID) (bool, error)
	DeleteByUser(ctx context.Context, userID uuid.UUID) (int64, error)
	DeleteByUserExcept(ctx context.Context, userID, keepID uuid.UUID) (int64, error)
	Rotate(ctx context.Context, oldID uuid.UUID, token *models.Token) error
	DeleteExpired(ctx context.Context, now time.Time) (int64, error)
}

type tokenRepo struct {
	db Database
}

func NewTokenRepo(db Database) TokenRepository {
	return &tokenRepo{db: db}
}

const insertTokenQuery = `
		INSERT INTO oauth_tokens (id, access_token, access_token_expires_at, refresh_token, refresh_token_expires_at, scope, client_id, user_id, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, NOW())
	`

// tokenSelect joins the owning client and user so a token whose client or
// user is gone never resolves.
const tokenSelect = `
		SELECT t.id, t.access_token, t.access_token_expires_at, t.refresh_token, t.refresh_token_expires_at, t.scope, t.client_id, t.user_id, t.created_at,
			c.client_id, c.grants, c.redirect_uris, c.access_token_lifetime, c.refresh_token_lifetime, c.user_id,
			u.data, u.created_at, u.updated_at
		FROM oauth_tokens t
		JOIN oauth_clients c ON c.id = t.client_id
		JOIN users u ON u.id = t.user_id
	`

func (r *tokenRepo) Create(ctx context.Context, token *models.Token) error {
	if token.ID == uuid.Nil {
		token.ID = uuid.New()
	}
	_, err := r.db.Exec(ctx, insertTokenQuery, tokenArgs(token)...)
	if err != nil {
		return fmt.Errorf("saving token: %w", mapError(err))
	}
	return nil
}

func (r *tokenRepo) FindByAccessToken(ctx context.Context, accessToken string, userID, clientID uuid.UUID) (*models.Token, error) {
	query := tokenSelect + `WHERE t.access_token = $1 AND t.user_id = $2 AND t.client_id = $3`
	return scanToken(r.db.QueryRow(ctx, query, accessToken, userID, clientID))
}

func (r *tokenRepo) FindByRefreshToken(ctx context.Context, refreshToken string, userID, clientID uuid.UUID) (*models.Token, error) {
	query := tokenSelect + `WHERE t.refresh_token = $1 AND t.user_id = $2 AND t.client_id = $3`
	return scanToken(r.db.QueryRow(ctx, query, refreshToken, userID, clientID))
}

func (r *tokenRepo) DeleteByID(ctx context.Context, id uuid.UUID) (bool, error) {
	tag, err := r.db.Exec(ctx, `DELETE FROM oauth_tokens WHERE id = $1`, id)
	if err != nil {
		return false, fmt.Errorf("deleting token: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}

func (r *tokenRepo) DeleteByUser(ctx context.Context, userID uuid.UUID) (int64, error) {
	tag, err := r.db.Exec(ctx, `DELETE FROM oauth_tokens WHERE user_id = $1`, userID)
	if err != nil {
		return 0, fmt.Errorf("deleting user tokens: %w", err)
	}
	return tag.RowsAffected(), nil
}

func (r *tokenRepo) DeleteByUserExcept(ctx context.Context, userID, keepID uuid.UUID) (int64, error) {
	tag, err := r.db.Exec(ctx, `DELETE FROM oauth_tokens WHERE user_id = $1 AND id <> $2`, userID, keepID)
	if err != nil {
		return 0, fmt.Errorf("deleting user tokens: %w", err)
	}
	return tag.RowsAffected(), nil
}

// Rotate deletes the token oldID and saves token in one transaction. It
// returns ErrNotFound when oldID was already gone, so a refresh token can
// only be exchanged once.
func (r *tokenRepo) Rotate(ctx context.Context, oldID uuid.UUID, token *models.Token) error {
	if token.ID == uuid.Nil {
		token.ID = uuid.New()
	}

	tx, err := r.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("beginning rotation: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	tag, err := tx.Exec(ctx, `DELETE FROM oauth_tokens WHERE id = $1`, oldID)
	if err != nil {
		return fmt.Errorf("revoking rotated token: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}

	if _, err := tx.Exec(ctx, insertTokenQuery, tokenArgs(token)...); err != nil {
		return fmt.Errorf("saving rotated token: %w", mapError(err))
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("committing rotation: %w", err)
	}
	return nil
}

// DeleteExpired removes tokens whose access and refresh halves have both expired.
func (r *tokenRepo) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	tag, err := r.db.Exec(ctx, `DELETE FROM oauth_tokens WHERE access_token_expires_at < $1 AND refresh_token_expires_at < $1`, now)
	if err != nil {
		return 0, fmt.Errorf("deleting expired tokens: %w", err)
	}
	return tag.RowsAffected(), nil
}

func tokenArgs(t *models.Token) []any {
	scope := t.Scope
	if scope == nil {
		scope = []string{}
	}
	return []any{t.ID, t.AccessToken, t.AccessTokenExpiresAt, t.RefreshToken, t.RefreshTokenExpiresAt, scope, t.ClientID, t.UserID}
}

func scanToken(row pgx.Row) (*models.Token, error) {
	var (
		token                    models.Token
		client                   models.Client
		userData                 []byte
		userCreated, userUpdated time.Time
	)
	err := row.Scan(
		&token.ID, &token.AccessToken, &token.AccessTokenExpiresAt, &token.RefreshToken, &token.RefreshTokenExpiresAt,
		&token.Scope, &token.ClientID, &token.UserID, &token.CreatedAt,
		&client.ClientID, &client.Grants, &client.RedirectURIs, &client.AccessTokenLifetime, &client.RefreshTokenLifetime, &client.UserID,
		&userData, &userCreated, &userUpdated,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("scanning token: %w", err)
	}

	user, err := joinedUser(token.UserID, userData, userCreated, userUpdated)
	if err != nil {
		return nil, err
	}

	client.ID = token.ClientID
	token.Client = &client
	token.User = user
	return &token, nil
}

// joinedUser decodes a users row selected as part of a join.
func joinedUser(id uuid.UUID, data []byte, createdAt, updatedAt time.Time) (*models.User, error) {
	doc, err := buildDocument(id, data, createdAt, updatedAt)
	if err != nil {
		return nil, err
	}
	return decodeUser(doc)
}
