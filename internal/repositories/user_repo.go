package repositories

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"resthub/internal/common"
	"resthub/internal/models"
)

// UserRepository is the typed view of the users document table used by the
// credential and token code paths.
type UserRepository interface {
	Create(ctx context.Context, user *models.User) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.User, error)
	GetByEmail(ctx context.Context, email string) (*models.User, error)
	UpdatePassword(ctx context.Context, id uuid.UUID, hash, salt string) error
}

type userRepo struct {
	db   Database
	docs DocumentRepository
}

func NewUserRepo(db Database) UserRepository {
	return &userRepo{db: db, docs: NewDocumentRepository(db, models.User{}.TableName())}
}

func (r *userRepo) Create(ctx context.Context, user *models.User) error {
	user.Email = common.NormalizeEmail(user.Email)

	doc, err := models.Encode(user)
	if err != nil {
		return err
	}

	stored, err := r.docs.Insert(ctx, doc)
	if err != nil {
		return err
	}

	created, err := models.Decode[models.User](stored)
	if err != nil {
		return err
	}
	*user = created
	return nil
}

func (r *userRepo) GetByID(ctx context.Context, id uuid.UUID) (*models.User, error) {
	doc, err := r.docs.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	return decodeUser(doc)
}

func (r *userRepo) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	query := `
		SELECT id, data, created_at, updated_at
		FROM users
		WHERE lower(data->>'email') = $1
	`
	doc, err := scanDocument(r.db.QueryRow(ctx, query, common.NormalizeEmail(email)))
	if err != nil {
		return nil, mapError(err)
	}
	return decodeUser(doc)
}

func (r *userRepo) UpdatePassword(ctx context.Context, id uuid.UUID, hash, salt string) error {
	query := `
		UPDATE users
		SET data = data || jsonb_build_object('password', $2::text, 'salt', $3::text), updated_at = NOW()
		WHERE id = $1
	`
	tag, err := r.db.Exec(ctx, query, id, hash, salt)
	if err != nil {
		return fmt.Errorf("updating password: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func decodeUser(doc models.Document) (*models.User, error) {
	user, err := models.Decode[models.User](doc)
	if err != nil {
		return nil, err
	}
	return &user, nil
}
