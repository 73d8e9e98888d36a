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

type AuthorizationCodeRepository interface {
	Create(ctx context.Context, code *models.AuthorizationCode) error
	FindByCode(ctx context.Context, code string) (*models.AuthorizationCode, error)
	DeleteByCode(ctx context.Context, code string) (bool, error)
	DeleteExpired(ctx context.Context, now time.Time) (int64, error)
}

type authorizationCodeRepo struct {
	db Database
}

func NewAuthorizationCodeRepo(db Database) AuthorizationCodeRepository {
	return &authorizationCodeRepo{db: db}
}

func (r *authorizationCodeRepo) Create(ctx context.Context, code *models.AuthorizationCode) error {
	if code.ID == uuid.Nil {
		code.ID = uuid.New()
	}
	scope := code.Scope
	if scope == nil {
		scope = []string{}
	}

	query := `
		INSERT INTO oauth_authorization_codes (id, authorization_code, expires_at, redirect_uri, scope, client_id, user_id, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, NOW())
	`
	_, err := r.db.Exec(ctx, query, code.ID, code.Code, code.ExpiresAt, code.RedirectURI, scope, code.ClientID, code.UserID)
	if err != nil {
		return fmt.Errorf("saving authorization code: %w", mapError(err))
	}
	return nil
}

func (r *authorizationCodeRepo) FindByCode(ctx context.Context, code string) (*models.AuthorizationCode, error) {
	query := `
		SELECT a.id, a.authorization_code, a.expires_at, a.redirect_uri, a.scope, a.client_id, a.user_id, a.created_at,
			c.client_id, c.grants, c.redirect_uris,
			u.data, u.created_at, u.updated_at
		FROM oauth_authorization_codes a
		JOIN oauth_clients c ON c.id = a.client_id
		JOIN users u ON u.id = a.user_id
		WHERE a.authorization_code = $1
	`
	var (
		ac                       models.AuthorizationCode
		client                   models.Client
		userData                 []byte
		userCreated, userUpdated time.Time
	)
	err := r.db.QueryRow(ctx, query, code).Scan(
		&ac.ID, &ac.Code, &ac.ExpiresAt, &ac.RedirectURI, &ac.Scope, &ac.ClientID, &ac.UserID, &ac.CreatedAt,
		&client.ClientID, &client.Grants, &client.RedirectURIs,
		&userData, &userCreated, &userUpdated,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("scanning authorization code: %w", err)
	}

	user, err := joinedUser(ac.UserID, userData, userCreated, userUpdated)
	if err != nil {
		return nil, err
	}
	client.ID = ac.ClientID
	ac.Client = &client
	ac.User = user
	return &ac, nil
}

func (r *authorizationCodeRepo) DeleteByCode(ctx context.Context, code string) (bool, error) {
	tag, err := r.db.Exec(ctx, `DELETE FROM oauth_authorization_codes WHERE authorization_code = $1`, code)
	if err != nil {
		return false, fmt.Errorf("deleting authorization code: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}

func (r *authorizationCodeRepo) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	tag, err := r.db.Exec(ctx, `DELETE FROM oauth_authorization_codes WHERE expires_at < $1`, now)
	if err != nil {
		return 0, fmt.Errorf("deleting expired authorization codes: %w", err)
	}
	return tag.RowsAffected(), nil
}
