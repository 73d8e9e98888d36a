package models

import (
	"time"

	"github.com/google/uuid"
)

// Revocation modes accepted on logout.
const (
	RevokeCurrent       = "current"
	RevokeAll           = "all"
	RevokeAllButCurrent = "allButCurrent"
)

// Token is an issued access/refresh pair. It is never updated in place.
type Token struct {
	ID                    uuid.UUID `json:"id"`
	AccessToken           string    `json:"accessToken"`
	AccessTokenExpiresAt  time.Time `json:"accessTokenExpiresAt"`
	RefreshToken          string    `json:"refreshToken"`
	RefreshTokenExpiresAt time.Time `json:"refreshTokenExpiresAt"`
	Scope                 []string  `json:"scope"`
	ClientID              uuid.UUID `json:"clientId"`
	UserID                uuid.UUID `json:"userId"`
	CreatedAt             time.Time `json:"createdAt"`

	Client *Client `json:"-"`
	User   *User   `json:"-"`
}

// AccessTokenExpired reports whether the access half is past its expiry at now.
func (t *Token) AccessTokenExpired(now time.Time) bool {
	return !now.Before(t.AccessTokenExpiresAt)
}

func (t *Token) RefreshTokenExpired(now time.Time) bool {
	return !now.Before(t.RefreshTokenExpiresAt)
}

type AuthorizationCode struct {
	ID          uuid.UUID `json:"id"`
	Code        string    `json:"authorizationCode"`
	ExpiresAt   time.Time `json:"expiresAt"`
	RedirectURI string    `json:"redirectUri"`
	Scope       []string  `json:"scope"`
	ClientID    uuid.UUID `json:"clientId"`
	UserID      uuid.UUID `json:"userId"`
	CreatedAt   time.Time `json:"createdAt"`

	Client *Client `json:"-"`
	User   *User   `json:"-"`
}

// TokenResponse is the body returned by a successful grant.
type TokenResponse struct {
	AccessToken  string `json:"access_token"`
	TokenType    string `json:"token_type"`
	ExpiresIn    int    `json:"expires_in"`
	RefreshToken string `json:"refresh_token,omitempty"`
	Scope        string `json:"scope,omitempty"`
}
