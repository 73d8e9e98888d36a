package handlers

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"resthub/internal/models"
	"resthub/internal/repositories"
)

// memDocs is an in-memory DocumentRepository. Only top-level equality
// filters are honoured.
type memDocs struct {
	mu     sync.Mutex
	docs   map[uuid.UUID]models.Document
	order  []uuid.UUID
	unique string
}

func newMemDocs(unique string) *memDocs {
	return &memDocs{docs: map[uuid.UUID]models.Document{}, unique: unique}
}

func (m *memDocs) Insert(ctx context.Context, doc models.Document) (models.Document, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.checkUnique(uuid.Nil, doc); err != nil {
		return nil, err
	}
	id := uuid.New()
	now := time.Now().UTC()
	stored := doc.Without(models.ImplicitFields...)
	stored[models.FieldID] = id.String()
	stored[models.FieldCreatedAt] = now
	stored[models.FieldUpdatedAt] = now
	m.docs[id] = stored
	m.order = append(m.order, id)
	return stored.Clone(), nil
}

func (m *memDocs) checkUnique(self uuid.UUID, doc models.Document) error {
	if m.unique == "" {
		return nil
	}
	for id, existing := range m.docs {
		if id != self && existing[m.unique] == doc[m.unique] {
			return fmt.Errorf("%w: %s", repositories.ErrDuplicate, m.unique)
		}
	}
	return nil
}

func (m *memDocs) matching(filter []models.Condition) []models.Document {
	var out []models.Document
	for _, id := range m.order {
		doc, ok := m.docs[id]
		if !ok {
			continue
		}
		keep := true
		for _, c := range filter {
			if c.Op == models.OpEq && fmt.Sprint(doc[c.Field]) != fmt.Sprint(c.Value) {
				keep = false
			}
		}
		if keep {
			out = append(out, doc.Clone())
		}
	}
	return out
}

func (m *memDocs) Find(ctx context.Context, opts models.QueryOptions, paginate bool) ([]models.Document, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	docs := m.matching(opts.Filter)
	if !paginate {
		return docs, nil
	}
	start := min(opts.Offset(), len(docs))
	end := min(start+opts.Limit(), len(docs))
	return docs[start:end], nil
}

func (m *memDocs) Count(ctx context.Context, filter []models.Condition) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return int64(len(m.matching(filter))), nil
}

func (m *memDocs) FindByID(ctx context.Context, id uuid.UUID) (models.Document, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	doc, ok := m.docs[id]
	if !ok {
		return nil, repositories.ErrNotFound
	}
	return doc.Clone(), nil
}

func (m *memDocs) FindByIDs(ctx context.Context, ids []uuid.UUID) ([]models.Document, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []models.Document
	for _, id := range ids {
		if doc, ok := m.docs[id]; ok {
			out = append(out, doc.Clone())
		}
	}
	return out, nil
}

func (m *memDocs) Replace(ctx context.Context, id uuid.UUID, doc models.Document) (models.Document, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	existing, ok := m.docs[id]
	if !ok {
		return nil, repositories.ErrNotFound
	}
	if err := m.checkUnique(id, doc); err != nil {
		return nil, err
	}
	stored := doc.Without(models.ImplicitFields...)
	stored[models.FieldID] = id.String()
	stored[models.FieldCreatedAt] = existing[models.FieldCreatedAt]
	stored[models.FieldUpdatedAt] = time.Now().UTC()
	m.docs[id] = stored
	return stored.Clone(), nil
}

func (m *memDocs) Delete(ctx context.Context, id uuid.UUID) (models.Document, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	doc, ok := m.docs[id]
	if !ok {
		return nil, repositories.ErrNotFound
	}
	delete(m.docs, id)
	return doc, nil
}

type memUsers struct {
	docs *memDocs
}

func (m *memUsers) Create(ctx context.Context, user *models.User) error {
	doc, err := models.Encode(user)
	if err != nil {
		return err
	}
	stored, err := m.docs.Insert(ctx, doc)
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

func (m *memUsers) GetByID(ctx context.Context, id uuid.UUID) (*models.User, error) {
	doc, err := m.docs.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	user, err := models.Decode[models.User](doc)
	return &user, err
}

func (m *memUsers) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	docs, _ := m.docs.Find(ctx, models.QueryOptions{Filter: []models.Condition{{Field: "email", Op: models.OpEq, Value: email}}}, false)
	if len(docs) == 0 {
		return nil, repositories.ErrNotFound
	}
	user, err := models.Decode[models.User](docs[0])
	return &user, err
}

func (m *memUsers) UpdatePassword(ctx context.Context, id uuid.UUID, hash, salt string) error {
	doc, err := m.docs.FindByID(ctx, id)
	if err != nil {
		return err
	}
	doc["password"] = hash
	doc["salt"] = salt
	_, err = m.docs.Replace(ctx, id, doc)
	return err
}

type memClients struct {
	mu      sync.Mutex
	clients []*models.Client
	secrets map[uuid.UUID]string
}

func (m *memClients) FindByCredentials(ctx context.Context, clientID, clientSecret string) (*models.Client, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, c := range m.clients {
		if c.ClientID == clientID && m.secrets[c.ID] == clientSecret {
			cp := *c
			return &cp, nil
		}
	}
	return nil, repositories.ErrNotFound
}

func (m *memClients) Upsert(ctx context.Context, client *models.Client) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.secrets == nil {
		m.secrets = map[uuid.UUID]string{}
	}
	client.ID = uuid.New()
	stored := *client
	m.clients = append(m.clients, &stored)
	m.secrets[client.ID] = client.ClientSecret
	return nil
}

func (m *memClients) byID(id uuid.UUID) *models.Client {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, c := range m.clients {
		if c.ID == id {
			cp := *c
			return &cp
		}
	}
	return nil
}

type memTokens struct {
	mu      sync.Mutex
	tokens  map[uuid.UUID]*models.Token
	users   *memUsers
	clients *memClients
}

func newMemTokens(users *memUsers, clients *memClients) *memTokens {
	return &memTokens{tokens: map[uuid.UUID]*models.Token{}, users: users, clients: clients}
}

func (m *memTokens) Create(ctx context.Context, token *models.Token) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if token.ID == uuid.Nil {
		token.ID = uuid.New()
	}
	stored := *token
	stored.Client, stored.User = nil, nil
	m.tokens[token.ID] = &stored
	return nil
}

func (m *memTokens) find(ctx context.Context, match func(*models.Token) bool) (*models.Token, error) {
	m.mu.Lock()
	var found *models.Token
	for _, t := range m.tokens {
		if match(t) {
			cp := *t
			found = &cp
		}
	}
	m.mu.Unlock()
	if found == nil {
		return nil, repositories.ErrNotFound
	}
	user, err := m.users.GetByID(ctx, found.UserID)
	if err != nil {
		return nil, err
	}
	found.User = user
	found.Client = m.clients.byID(found.ClientID)
	return found, nil
}

func (m *memTokens) FindByAccessToken(ctx context.Context, accessToken string, userID, clientID uuid.UUID) (*models.Token, error) {
	return m.find(ctx, func(t *models.Token) bool {
		return t.AccessToken == accessToken && t.UserID == userID && t.ClientID == clientID
	})
}

func (m *memTokens) FindByRefreshToken(ctx context.Context, refreshToken string, userID, clientID uuid.UUID) (*models.Token, error) {
	return m.find(ctx, func(t *models.Token) bool {
		return t.RefreshToken == refreshToken && t.UserID == userID && t.ClientID == clientID
	})
}

func (m *memTokens) DeleteByID(ctx context.Context, id uuid.UUID) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.tokens[id]
	delete(m.tokens, id)
	return ok, nil
}

func (m *memTokens) DeleteByUser(ctx context.Context, userID uuid.UUID) (int64, error) {
	return m.deleteWhere(func(t *models.Token) bool { return t.UserID == userID }), nil
}

func (m *memTokens) DeleteByUserExcept(ctx context.Context, userID, keepID uuid.UUID) (int64, error) {
	return m.deleteWhere(func(t *models.Token) bool { return t.UserID == userID && t.ID != keepID }), nil
}

func (m *memTokens) deleteWhere(match func(*models.Token) bool) int64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	var n int64
	for id, t := range m.tokens {
		if match(t) {
			delete(m.tokens, id)
			n++
		}
	}
	return n
}

func (m *memTokens) Rotate(ctx context.Context, oldID uuid.UUID, token *models.Token) error {
	if ok, _ := m.DeleteByID(ctx, oldID); !ok {
		return repositories.ErrNotFound
	}
	return m.Create(ctx, token)
}

func (m *memTokens) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	return m.deleteWhere(func(t *models.Token) bool {
		return !now.Before(t.AccessTokenExpiresAt) && !now.Before(t.RefreshTokenExpiresAt)
	}), nil
}

// ids lists the stored token ids for userID, sorted.
func (m *memTokens) ids(userID uuid.UUID) []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []string
	for id, t := range m.tokens {
		if t.UserID == userID {
			out = append(out, id.String())
		}
	}
	sort.Strings(out)
	return out
}

type memCodes struct{}

func (memCodes) Create(ctx context.Context, code *models.AuthorizationCode) error { return nil }

func (memCodes) FindByCode(ctx context.Context, code string) (*models.AuthorizationCode, error) {
	return nil, repositories.ErrNotFound
}

func (memCodes) DeleteByCode(ctx context.Context, code string) (bool, error) { return false, nil }

func (memCodes) DeleteExpired(ctx context.Context, now time.Time) (int64, error) { return 0, nil }
