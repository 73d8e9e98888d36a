package middleware

import (
	"context"

	"github.com/stretchr/testify/mock"

	"resthub/internal/models"
	"resthub/internal/services"
)

// MockOAuth2Service implements the methods the middleware calls. Any other
// method panics through the nil embedded interface.
type MockOAuth2Service struct {
	mock.Mock
	services.OAuth2Service
}

func (m *MockOAuth2Service) Authenticate(ctx context.Context, accessToken string) (*models.Token, error) {
	args := m.Called(ctx, accessToken)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Token), args.Error(1)
}

func (m *MockOAuth2Service) HasRole(token *models.Token, role string) error {
	args := m.Called(token, role)
	return args.Error(0)
}
