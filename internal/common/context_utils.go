package common

import (
	"context"
	"strings"

	"github.com/google/uuid"

	"resthub/internal/models"
)

type contextKey string

const (
	UserIDKey contextKey = "user_id"
	TokenKey  contextKey = "oauth_token"
)

// Echo context keys. Echo stores these on its own context, not the request context.
const (
	EchoTokenKey        = "oauth_token"
	EchoQueryOptionsKey = "query_options"
	EchoBodyKey         = "validated_body"
)

// WithToken returns a copy of ctx carrying the authenticated token and its user id.
func WithToken(ctx context.Context, token *models.Token) context.Context {
	ctx = context.WithValue(ctx, TokenKey, token)
	return context.WithValue(ctx, UserIDKey, token.UserID)
}

// GetTokenFromContext extracts the authenticated token from the request context
func GetTokenFromContext(ctx context.Context) (*models.Token, bool) {
	token, ok := ctx.Value(TokenKey).(*models.Token)
	return token, ok && token != nil
}

// GetUserIDFromContext extracts the user ID from the request context
func GetUserIDFromContext(ctx context.Context) (uuid.UUID, bool) {
	userID, ok := ctx.Value(UserIDKey).(uuid.UUID)
	return userID, ok
}

// ParseID validates a path id. A malformed id is a validation failure on field "id".
func ParseID(raw string) (uuid.UUID, error) {
	id, err := uuid.Parse(strings.TrimSpace(raw))
	if err != nil {
		return uuid.Nil, NewValidationError([]FieldError{{
			Field:   "id",
			Code:    "invalid_id",
			Message: "id must be a valid UUID",
		}})
	}
	return id, nil
}

// NormalizeEmail lowercases and trims an email before lookup or storage.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
