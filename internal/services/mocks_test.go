package services

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"

	"resthub/internal/models"
)

type MockClientRepository struct {
	mock.Mock
}

func (m *MockClientRepository) FindByCredentials(ctx context.Context, clientID, clientSecret string) (*models.Client, error) {
	args := m.Called(ctx, clientID, clientSecret)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Client), args.Error(1)
}

func (m *MockClientRepository) Upsert(ctx context.Context, client *models.Client) error {
	args := m.Called(ctx, client)
	return args.Error(0)
}

type MockUserRepository struct {
	mock.Mock
}

func (m *MockUserRepository) Create(ctx context.Context, user *models.User) error {
	args := m.Called(ctx, user)
	return args.Error(0)
}

func (m *MockUserRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.User, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.User), args.Error(1)
}

func (m *MockUserRepository) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	args := m.Called(ctx, email)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.User), args.Error(1)
}

func (m *MockUserRepository) UpdatePassword(ctx context.Context, id uuid.UUID, hash, salt string) error {
	args := m.Called(ctx, id, hash, salt)
	return args.Error(0)
}

type MockTokenRepository struct {
	mock.Mock
}

func (m *MockTokenRepository) Create(ctx context.Context, token *models.Token) error {
	args := m.Called(ctx, token)
	return args.Error(0)
}

func (m *MockTokenRepository) FindByAccessToken(ctx context.Context, accessToken string, userID, clientID uuid.UUID) (*models.Token, error) {
	args := m.Called(ctx, accessToken, userID, clientID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Token), args.Error(1)
}

func (m *MockTokenRepository) FindByRefreshToken(ctx context.Context, refreshToken string, userID, clientID uuid.UUID) (*models.Token, error) {
	args := m.Called(ctx, refreshToken, userID, clientID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Token), args.Error(1)
}

func (m *MockTokenRepository) DeleteByID(ctx context.Context, id uuid.UUID) (bool, error) {
	args := m.Called(ctx, id)
	return args.Bool(0), args.Error(1)
}

func (m *MockTokenRepository) DeleteByUser(ctx context.Context, userID uuid.UUID) (int64, error) {
	args := m.Called(ctx, userID)
	return args.Get(0).(int64), args.Error(1)
}

func (m *MockTokenRepository) DeleteByUserExcept(ctx context.Context, userID, keepID uuid.UUID) (int64, error) {
	args := m.Called(ctx, userID, keepID)
	return args.Get(0).(int64), args.Error(1)
}

func (m *MockTokenRepository) Rotate(ctx context.Context, oldID uuid.UUID, token *models.Token) error {
	args := m.Called(ctx, oldID, token)
	return args.Error(0)
}

func (m *MockTokenRepository) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	args := m.Called(ctx, now)
	return args.Get(0).(int64), args.Error(1)
}

type MockAuthorizationCodeRepository struct {
	mock.Mock
}

func (m *MockAuthorizationCodeRepository) Create(ctx context.Context, code *models.AuthorizationCode) error {
	args := m.Called(ctx, code)
	return args.Error(0)
}

func (m *MockAuthorizationCodeRepository) FindByCode(ctx context.Context, code string) (*models.AuthorizationCode, error) {
	args := m.Called(ctx, code)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.AuthorizationCode), args.Error(1)
}

func (m *MockAuthorizationCodeRepository) DeleteByCode(ctx context.Context, code string) (bool, error) {
	args := m.Called(ctx, code)
	return args.Bool(0), args.Error(1)
}

func (m *MockAuthorizationCodeRepository) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	args := m.Called(ctx, now)
	return args.Get(0).(int64), args.Error(1)
}

type MockDocumentRepository struct {
	mock.Mock
}

func (m *MockDocumentRepository) Insert(ctx context.Context, doc models.Document) (models.Document, error) {
	args := m.Called(ctx, doc)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(models.Document), args.Error(1)
}

func (m *MockDocumentRepository) Find(ctx context.Context, opts models.QueryOptions, paginate bool) ([]models.Document, error) {
	args := m.Called(ctx, opts, paginate)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.Document), args.Error(1)
}

func (m *MockDocumentRepository) Count(ctx context.Context, filter []models.Condition) (int64, error) {
	args := m.Called(ctx, filter)
	return args.Get(0).(int64), args.Error(1)
}

func (m *MockDocumentRepository) FindByID(ctx context.Context, id uuid.UUID) (models.Document, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(models.Document), args.Error(1)
}

func (m *MockDocumentRepository) FindByIDs(ctx context.Context, ids []uuid.UUID) ([]models.Document, error) {
	args := m.Called(ctx, ids)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.Document), args.Error(1)
}

func (m *MockDocumentRepository) Replace(ctx context.Context, id uuid.UUID, doc models.Document) (models.Document, error) {
	args := m.Called(ctx, id, doc)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(models.Document), args.Error(1)
}

func (m *MockDocumentRepository) Delete(ctx context.Context, id uuid.UUID) (models.Document, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(models.Document), args.Error(1)
}
