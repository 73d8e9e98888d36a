package repositories

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"resthub/internal/models"
)

type ClientRepository interface {
	FindByCredentials(ctx context.Context, clientID, clientSecret string) (*models.Client, error)
	Upsert(ctx context.Context, client *models.Client) error
}

type clientRepo struct {
	db Database
}

func NewClientRepo(db Database) ClientRepository {
	return &clientRepo{db: db}
}

// FindByCredentials matches id and secret exactly.
func (r *clientRepo) FindByCredentials(ctx context.Context, clientID, clientSecret string) (*models.Client, error) {
	client := &models.Client{}
	query := `
		SELECT id, client_id, client_secret, grants, redirect_uris, access_token_lifetime, refresh_token_lifetime, user_id, created_at, updated_at
		FROM oauth_clients
		WHERE client_id = $1 AND client_secret = $2
	`
	err := r.db.QueryRow(ctx, query, clientID, clientSecret).Scan(
		&client.ID, &client.ClientID, &client.ClientSecret, &client.Grants, &client.RedirectURIs,
		&client.AccessTokenLifetime, &client.RefreshTokenLifetime, &client.UserID, &client.CreatedAt, &client.UpdatedAt,
	)
	if err != nil {
		return nil, mapError(err)
	}
	return client, nil
}

// Upsert registers client keyed by (client_id, client_secret). Running it
// again with the same pair updates the record instead of adding one.
func (r *clientRepo) Upsert(ctx context.Context, client *models.Client) error {
	if client.ID == uuid.Nil {
		client.ID = uuid.New()
	}

	query := `
		INSERT INTO oauth_clients (id, client_id, client_secret, grants, redirect_uris, access_token_lifetime, refresh_token_lifetime, user_id, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, NOW(), NOW())
		ON CONFLICT (client_id, client_secret) DO UPDATE SET
			grants = EXCLUDED.grants,
			redirect_uris = EXCLUDED.redirect_uris,
			access_token_lifetime = EXCLUDED.access_token_lifetime,
			refresh_token_lifetime = EXCLUDED.refresh_token_lifetime,
			user_id = COALESCE(EXCLUDED.user_id, oauth_clients.user_id),
			updated_at = NOW()
		RETURNING id
	`
	err := r.db.QueryRow(ctx, query,
		client.ID, client.ClientID, client.ClientSecret, client.Grants, client.RedirectURIs,
		client.AccessTokenLifetime, client.RefreshTokenLifetime, client.UserID,
	).Scan(&client.ID)
	if err != nil {
		return fmt.Errorf("upserting client %s: %w", client.ClientID, err)
	}
	return nil
}
