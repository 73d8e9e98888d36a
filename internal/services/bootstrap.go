package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"resthub/internal/config"
	"resthub/internal/models"
	"resthub/internal/repositories"
)

// Bootstrapper registers the configured clients and the seed superadmin at
// startup. Both steps can run on every start without creating duplicates.
type Bootstrapper struct {
	clients     repositories.ClientRepository
	users       repositories.UserRepository
	credentials CredentialService
	logger      *slog.Logger
}

func NewBootstrapper(clients repositories.ClientRepository, users repositories.UserRepository, credentials CredentialService, logger *slog.Logger) *Bootstrapper {
	return &Bootstrapper{clients: clients, users: users, credentials: credentials, logger: logger}
}

func (b *Bootstrapper) EnsureDefaultClients(ctx context.Context, clients []config.ClientConfig) error {
	for _, c := range clients {
		client := &models.Client{
			ClientID:             c.ClientID,
			ClientSecret:         c.ClientSecret,
			Grants:               c.Grants,
			RedirectURIs:         c.RedirectURIs,
			AccessTokenLifetime:  c.AccessTokenLifetime,
			RefreshTokenLifetime: c.RefreshTokenLifetime,
		}
		if client.RedirectURIs == nil {
			client.RedirectURIs = []string{}
		}

		if c.OwnerEmail != "" {
			owner, err := b.users.GetByEmail(ctx, c.OwnerEmail)
			if err != nil {
				return fmt.Errorf("resolving owner of client %s: %w", c.ClientID, err)
			}
			client.UserID = &owner.ID
		}

		if err := b.clients.Upsert(ctx, client); err != nil {
			return err
		}
		b.logger.Info("oauth2 client registered", "client_id", c.ClientID, "grants", c.Grants)
	}
	return nil
}

// EnsureAdmin creates the superadmin unless a user with that email exists.
func (b *Bootstrapper) EnsureAdmin(ctx context.Context, email, password string) error {
	if email == "" {
		return nil
	}

	_, err := b.users.GetByEmail(ctx, email)
	if err == nil {
		return nil
	}
	if !errors.Is(err, repositories.ErrNotFound) {
		return fmt.Errorf("looking up admin: %w", err)
	}

	admin := &models.User{
		FirstName: "Super",
		LastName:  "Admin",
		Email:     email,
		Role:      models.RoleSuperadmin,
	}
	if err := b.credentials.SetPassword(admin, password); err != nil {
		return err
	}
	if err := b.users.Create(ctx, admin); err != nil {
		if errors.Is(err, repositories.ErrDuplicate) {
			return nil
		}
		return fmt.Errorf("creating admin: %w", err)
	}
	b.logger.Info("seed superadmin created", "email", admin.Email)
	return nil
}
