package services

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"resthub/internal/common"
	"resthub/internal/models"
	"resthub/internal/repositories"
)

// TokenRequest is the body of a token request. Both form and JSON encodings are accepted.
type TokenRequest struct {
	GrantType    string `form:"grant_type" json:"grant_type"`
	ClientID     string `form:"client_id" json:"client_id"`
	ClientSecret string `form:"client_secret" json:"client_secret"`
	Username     string `form:"username" json:"username"`
	Password     string `form:"password" json:"password"`
	RefreshToken string `form:"refresh_token" json:"refresh_token"`
	Scope        string `form:"scope" json:"scope"`
}

// TokenClaims is the signed payload of access and refresh tokens.
type TokenClaims struct {
	UserID   string   `json:"userId"`
	ClientID string   `json:"clientId"`
	Role     string   `json:"role"`
	Scope    []string `json:"scope"`
	jwt.RegisteredClaims
}

// OAuth2Service issues, validates and revokes tokens.
//
// Lookups that find nothing return (nil, nil). Only store and signing
// failures are returned as errors.
type OAuth2Service interface {
	GetClient(ctx context.Context, clientID, clientSecret string) (*models.Client, error)
	GetUser(ctx context.Context, email, password string) (*models.User, error)
	GenerateAccessToken(client *models.Client, user *models.User, scope []string) (string, error)
	GenerateRefreshToken(client *models.Client, user *models.User, scope []string) (string, error)
	SaveToken(ctx context.Context, token *models.Token, client *models.Client, user *models.User) (*models.Token, error)
	GetAccessToken(ctx context.Context, accessToken string) (*models.Token, error)
	GetRefreshToken(ctx context.Context, refreshToken string) (*models.Token, error)
	RevokeToken(ctx context.Context, token *models.Token) (bool, error)
	RevokeMultipleTokens(ctx context.Context, token *models.Token, mode string) (bool, error)
	VerifyScope(token *models.Token, scope []string) bool

	GetAuthorizationCode(ctx context.Context, code string) (*models.AuthorizationCode, error)
	SaveAuthorizationCode(ctx context.Context, code *models.AuthorizationCode, client *models.Client, user *models.User) (*models.AuthorizationCode, error)
	RevokeAuthorizationCode(ctx context.Context, code *models.AuthorizationCode) (bool, error)

	Token(ctx context.Context, req TokenRequest) (*models.Token, error)
	Authenticate(ctx context.Context, accessToken string) (*models.Token, error)
	HasRole(token *models.Token, role string) error
	GetUserFromAccessToken(ctx context.Context, accessToken string) (*models.User, error)
	PurgeExpired(ctx context.Context) (tokens int64, codes int64, err error)
}

type OAuth2Config struct {
	AccessTokenSecret    string
	RefreshTokenSecret   string
	AccessTokenLifetime  time.Duration
	RefreshTokenLifetime time.Duration
}

type oauth2Service struct {
	clients     repositories.ClientRepository
	users       repositories.UserRepository
	tokens      repositories.TokenRepository
	codes       repositories.AuthorizationCodeRepository
	credentials CredentialService
	cfg         OAuth2Config
	logger      *slog.Logger
	now         func() time.Time
}

func NewOAuth2Service(
	clients repositories.ClientRepository,
	users repositories.UserRepository,
	tokens repositories.TokenRepository,
	codes repositories.AuthorizationCodeRepository,
	credentials CredentialService,
	cfg OAuth2Config,
	logger *slog.Logger,
) OAuth2Service {
	return &oauth2Service{
		clients:     clients,
		users:       users,
		tokens:      tokens,
		codes:       codes,
		credentials: credentials,
		cfg:         cfg,
		logger:      logger,
		now:         time.Now,
	}
}

func (s *oauth2Service) GetClient(ctx context.Context, clientID, clientSecret string) (*models.Client, error) {
	client, err := s.clients.FindByCredentials(ctx, clientID, clientSecret)
	if errors.Is(err, repositories.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("looking up client: %w", err)
	}
	return client, nil
}

// GetUser returns nil for an unknown email and for a wrong password alike.
// absentUser is checked when no account matches, so an unknown email costs
// one key derivation like a wrong password does.
var absentUser = &models.User{PasswordHash: "AAAA", Salt: "AAAAAAAAAAAAAAAAAAAAAA=="}

func (s *oauth2Service) GetUser(ctx context.Context, email, password string) (*models.User, error) {
	user, err := s.users.GetByEmail(ctx, common.NormalizeEmail(email))
	if errors.Is(err, repositories.ErrNotFound) {
		s.credentials.Authenticate(absentUser, password)
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("looking up user: %w", err)
	}
	if !s.credentials.Authenticate(user, password) {
		return nil, nil
	}
	return user, nil
}

func (s *oauth2Service) GenerateAccessToken(client *models.Client, user *models.User, scope []string) (string, error) {
	return s.sign(s.cfg.AccessTokenSecret, client, user, scope)
}

func (s *oauth2Service) GenerateRefreshToken(client *models.Client, user *models.User, scope []string) (string, error) {
	return s.sign(s.cfg.RefreshTokenSecret, client, user, scope)
}

func (s *oauth2Service) sign(secret string, client *models.Client, user *models.User, scope []string) (string, error) {
	if scope == nil {
		scope = []string{}
	}
	claims := TokenClaims{
		UserID:   user.ID.String(),
		ClientID: client.ID.String(),
		Role:     user.Role,
		Scope:    scope,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:       uuid.NewString(),
			IssuedAt: jwt.NewNumericDate(s.now()),
		},
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
	if err != nil {
		return "", fmt.Errorf("signing token: %w", err)
	}
	return signed, nil
}

// verify checks the signature and returns the embedded principal.
func (s *oauth2Service) verify(secret, tokenString string) (userID, clientID uuid.UUID, err error) {
	parsed, err := jwt.ParseWithClaims(tokenString, &TokenClaims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return []byte(secret), nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		return uuid.Nil, uuid.Nil, err
	}

	claims, ok := parsed.Claims.(*TokenClaims)
	if !ok || !parsed.Valid {
		return uuid.Nil, uuid.Nil, errors.New("invalid token claims")
	}
	if userID, err = uuid.Parse(claims.UserID); err != nil {
		return uuid.Nil, uuid.Nil, fmt.Errorf("invalid userId claim: %w", err)
	}
	if clientID, err = uuid.Parse(claims.ClientID); err != nil {
		return uuid.Nil, uuid.Nil, fmt.Errorf("invalid clientId claim: %w", err)
	}
	return userID, clientID, nil
}

// SaveToken persists token for client and user, generating a refresh token
// and expiries when they are missing.
func (s *oauth2Service) SaveToken(ctx context.Context, token *models.Token, client *models.Client, user *models.User) (*models.Token, error) {
	if token.RefreshToken == "" {
		refresh, err := s.GenerateRefreshToken(client, user, token.Scope)
		if err != nil {
			return nil, err
		}
		token.RefreshToken = refresh
	}
	s.applyLifetimes(token, client)
	token.ClientID = client.ID
	token.UserID = user.ID

	if err := s.tokens.Create(ctx, token); err != nil {
		return nil, err
	}
	token.Client = client
	token.User = user
	return token, nil
}

func (s *oauth2Service) applyLifetimes(token *models.Token, client *models.Client) {
	now := s.now()
	if token.AccessTokenExpiresAt.IsZero() {
		token.AccessTokenExpiresAt = now.Add(s.accessLifetime(client))
	}
	if token.RefreshTokenExpiresAt.IsZero() {
		token.RefreshTokenExpiresAt = now.Add(s.refreshLifetime(client))
	}
}

func (s *oauth2Service) accessLifetime(client *models.Client) time.Duration {
	if client.AccessTokenLifetime > 0 {
		return time.Duration(client.AccessTokenLifetime) * time.Second
	}
	return s.cfg.AccessTokenLifetime
}

func (s *oauth2Service) refreshLifetime(client *models.Client) time.Duration {
	if client.RefreshTokenLifetime > 0 {
		return time.Duration(client.RefreshTokenLifetime) * time.Second
	}
	return s.cfg.RefreshTokenLifetime
}

// GetAccessToken only resolves a token when the stored record belongs to the
// user and client embedded in the signed payload.
func (s *oauth2Service) GetAccessToken(ctx context.Context, accessToken string) (*models.Token, error) {
	userID, clientID, err := s.verify(s.cfg.AccessTokenSecret, accessToken)
	if err != nil {
		s.logger.Debug("access token rejected", "error", err)
		return nil, nil
	}

	token, err := s.tokens.FindByAccessToken(ctx, accessToken, userID, clientID)
	if errors.Is(err, repositories.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("looking up access token: %w", err)
	}
	return token, nil
}

func (s *oauth2Service) GetRefreshToken(ctx context.Context, refreshToken string) (*models.Token, error) {
	userID, clientID, err := s.verify(s.cfg.RefreshTokenSecret, refreshToken)
	if err != nil {
		s.logger.Debug("refresh token rejected", "error", err)
		return nil, nil
	}

	token, err := s.tokens.FindByRefreshToken(ctx, refreshToken, userID, clientID)
	if errors.Is(err, repositories.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("looking up refresh token: %w", err)
	}
	return token, nil
}

// RevokeToken reports false when the token was already gone.
func (s *oauth2Service) RevokeToken(ctx context.Context, token *models.Token) (bool, error) {
	return s.tokens.DeleteByID(ctx, token.ID)
}

func (s *oauth2Service) RevokeMultipleTokens(ctx context.Context, token *models.Token, mode string) (bool, error) {
	switch mode {
	case models.RevokeCurrent, "":
		return s.RevokeToken(ctx, token)
	case models.RevokeAll:
		n, err := s.tokens.DeleteByUser(ctx, token.UserID)
		if err != nil {
			return false, err
		}
		s.logger.Debug("revoked user tokens", "user_id", token.UserID, "count", n)
		return true, nil
	case models.RevokeAllButCurrent:
		n, err := s.tokens.DeleteByUserExcept(ctx, token.UserID, token.ID)
		if err != nil {
			return false, err
		}
		s.logger.Debug("revoked other user tokens", "user_id", token.UserID, "count", n)
		return true, nil
	}
	return false, common.NewInvalidRequest(fmt.Sprintf("Invalid parameter: `clients` must be one of %s, %s", models.RevokeAll, models.RevokeAllButCurrent))
}

// VerifyScope is not enforced. Every check fails closed.
func (s *oauth2Service) VerifyScope(token *models.Token, scope []string) bool {
	return false
}

func (s *oauth2Service) GetAuthorizationCode(ctx context.Context, code string) (*models.AuthorizationCode, error) {
	ac, err := s.codes.FindByCode(ctx, code)
	if errors.Is(err, repositories.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("looking up authorization code: %w", err)
	}
	return ac, nil
}

func (s *oauth2Service) SaveAuthorizationCode(ctx context.Context, code *models.AuthorizationCode, client *models.Client, user *models.User) (*models.AuthorizationCode, error) {
	if code.Code == "" {
		generated, err := generateSecureToken()
		if err != nil {
			return nil, err
		}
		code.Code = generated
	}
	code.ClientID = client.ID
	code.UserID = user.ID

	if err := s.codes.Create(ctx, code); err != nil {
		return nil, err
	}
	code.Client = client
	code.User = user
	return code, nil
}

func (s *oauth2Service) RevokeAuthorizationCode(ctx context.Context, code *models.AuthorizationCode) (bool, error) {
	return s.codes.DeleteByCode(ctx, code.Code)
}

// Token runs the grant named by req.GrantType.
func (s *oauth2Service) Token(ctx context.Context, req TokenRequest) (*models.Token, error) {
	if req.GrantType == "" {
		return nil, common.NewInvalidRequest("Missing parameter: `grant_type`")
	}
	if req.ClientID == "" || req.ClientSecret == "" {
		return nil, common.NewInvalidRequest("Missing parameter: `client_id` and `client_secret` are required")
	}

	client, err := s.GetClient(ctx, req.ClientID, req.ClientSecret)
	if err != nil {
		return nil, err
	}
	if client == nil {
		return nil, common.NewInvalidClient()
	}

	switch req.GrantType {
	case models.GrantPassword, models.GrantRefreshToken, models.GrantClientCredentials:
	default:
		return nil, common.NewUnsupportedGrantType()
	}
	if !client.HasGrant(req.GrantType) {
		return nil, common.NewUnauthorizedClient()
	}

	switch req.GrantType {
	case models.GrantPassword:
		return s.passwordGrant(ctx, client, req)
	case models.GrantRefreshToken:
		return s.refreshTokenGrant(ctx, client, req)
	default:
		return s.clientCredentialsGrant(ctx, client, req)
	}
}

func (s *oauth2Service) passwordGrant(ctx context.Context, client *models.Client, req TokenRequest) (*models.Token, error) {
	if req.Username == "" || req.Password == "" {
		return nil, common.NewInvalidRequest("Missing parameter: `username` and `password` are required")
	}

	user, err := s.GetUser(ctx, req.Username, req.Password)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, common.NewInvalidGrant("Invalid grant: user credentials are invalid")
	}
	return s.issue(ctx, client, user, parseScope(req.Scope))
}

// refreshTokenGrant always rotates: the presented pair is deleted and a new
// pair is issued with the original scope.
func (s *oauth2Service) refreshTokenGrant(ctx context.Context, client *models.Client, req TokenRequest) (*models.Token, error) {
	if req.RefreshToken == "" {
		return nil, common.NewInvalidRequest("Missing parameter: `refresh_token`")
	}

	old, err := s.GetRefreshToken(ctx, req.RefreshToken)
	if err != nil {
		return nil, err
	}
	if old == nil || old.ClientID != client.ID {
		return nil, common.NewInvalidGrant("Invalid grant: refresh token is invalid")
	}
	if old.RefreshTokenExpired(s.now()) {
		return nil, common.NewInvalidGrant("Invalid grant: refresh token has expired")
	}

	token, err := s.newToken(client, old.User, old.Scope)
	if err != nil {
		return nil, err
	}
	if err := s.tokens.Rotate(ctx, old.ID, token); err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return nil, common.NewInvalidGrant("Invalid grant: refresh token is invalid")
		}
		return nil, err
	}
	token.Client = client
	token.User = old.User
	return token, nil
}

// clientCredentialsGrant issues a token for the user owning the client.
func (s *oauth2Service) clientCredentialsGrant(ctx context.Context, client *models.Client, req TokenRequest) (*models.Token, error) {
	if client.UserID == nil {
		return nil, common.NewInvalidGrant("Invalid grant: user credentials are invalid")
	}

	user, err := s.users.GetByID(ctx, *client.UserID)
	if errors.Is(err, repositories.ErrNotFound) {
		return nil, common.NewInvalidGrant("Invalid grant: user credentials are invalid")
	}
	if err != nil {
		return nil, fmt.Errorf("looking up client owner: %w", err)
	}
	return s.issue(ctx, client, user, parseScope(req.Scope))
}

func (s *oauth2Service) newToken(client *models.Client, user *models.User, scope []string) (*models.Token, error) {
	access, err := s.GenerateAccessToken(client, user, scope)
	if err != nil {
		return nil, err
	}
	refresh, err := s.GenerateRefreshToken(client, user, scope)
	if err != nil {
		return nil, err
	}

	token := &models.Token{
		ID:           uuid.New(),
		AccessToken:  access,
		RefreshToken: refresh,
		Scope:        scope,
		ClientID:     client.ID,
		UserID:       user.ID,
	}
	s.applyLifetimes(token, client)
	return token, nil
}

func (s *oauth2Service) issue(ctx context.Context, client *models.Client, user *models.User, scope []string) (*models.Token, error) {
	token, err := s.newToken(client, user, scope)
	if err != nil {
		return nil, err
	}
	return s.SaveToken(ctx, token, client, user)
}

// Authenticate validates a bearer token. Failures are unauthorized errors.
func (s *oauth2Service) Authenticate(ctx context.Context, accessToken string) (*models.Token, error) {
	if accessToken == "" {
		return nil, common.NewUnauthorized("Unauthorized request: no authentication given")
	}

	token, err := s.GetAccessToken(ctx, accessToken)
	if err != nil {
		return nil, err
	}
	if token == nil {
		return nil, common.NewUnauthorized("Invalid token: access token is invalid")
	}
	if token.AccessTokenExpired(s.now()) {
		return nil, common.NewUnauthorized("Invalid token: access token has expired")
	}
	return token, nil
}

// HasRole fails with forbidden when the token is valid but its user lacks role.
func (s *oauth2Service) HasRole(token *models.Token, role string) error {
	if token == nil {
		return common.NewUnauthorized("Unauthorized request: no authentication given")
	}
	if token.User == nil || token.User.Role != role {
		return common.NewForbidden("Forbidden: insufficient role")
	}
	return nil
}

func (s *oauth2Service) GetUserFromAccessToken(ctx context.Context, accessToken string) (*models.User, error) {
	token, err := s.Authenticate(ctx, accessToken)
	if err != nil {
		return nil, err
	}
	return token.User, nil
}

func (s *oauth2Service) PurgeExpired(ctx context.Context) (int64, int64, error) {
	now := s.now()
	tokens, err := s.tokens.DeleteExpired(ctx, now)
	if err != nil {
		return 0, 0, err
	}
	codes, err := s.codes.DeleteExpired(ctx, now)
	if err != nil {
		return tokens, 0, err
	}
	return tokens, codes, nil
}

func parseScope(raw string) []string {
	fields := strings.Fields(raw)
	if fields == nil {
		return []string{}
	}
	return fields
}

// generateSecureToken generates a cryptographically secure random token
func generateSecureToken() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("generating token: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}
