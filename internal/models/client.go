package models

import (
	"slices"
	"time"

	"github.com/google/uuid"
)

// Grant types.
const (
	GrantPassword          = "password"
	GrantRefreshToken      = "refresh_token"
	GrantClientCredentials = "client_credentials"
	GrantAuthorizationCode = "authorization_code"
)

// Client is a registered OAuth2 client. Lifetimes are in seconds, zero means default.
type Client struct {
	ID                   uuid.UUID  `json:"id"`
	ClientID             string     `json:"clientId"`
	ClientSecret         string     `json:"-"`
	Grants               []string   `json:"grants"`
	RedirectURIs         []string   `json:"redirectUris"`
	AccessTokenLifetime  int        `json:"accessTokenLifetime,omitempty"`
	RefreshTokenLifetime int        `json:"refreshTokenLifetime,omitempty"`
	UserID               *uuid.UUID `json:"userId,omitempty"`
	CreatedAt            time.Time  `json:"createdAt"`
	UpdatedAt            time.Time  `json:"updatedAt"`
}

func (c *Client) HasGrant(grant string) bool {
	return slices.Contains(c.Grants, grant)
}
