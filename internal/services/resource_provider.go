package services

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"

	"github.com/google/uuid"

	"resthub/internal/common"
	"resthub/internal/models"
	"resthub/internal/repositories"
)

// Provider is the generic data access contract the resource controller depends on.
// Lookups of a missing id return (nil, nil).
type Provider[T models.Resource] interface {
	Create(ctx context.Context, doc models.Document) (*T, error)
	Find(ctx context.Context, opts models.QueryOptions, paginate bool) (*models.FindResult[T], error)
	FindByID(ctx context.Context, id uuid.UUID, opts models.QueryOptions) (*T, error)
	Update(ctx context.Context, id uuid.UUID, patch models.Document) (*T, error)
	Delete(ctx context.Context, id uuid.UUID) (*T, error)
	Present(ctx context.Context, items []T, opts models.QueryOptions) ([]models.Document, error)
}

// Validator checks a whole document and reports every failing field.
type Validator interface {
	Validate(payload any) []common.FieldError
}

// BeforeSaveFunc may rewrite doc before it is validated and written. patch
// holds only the keys the caller sent, so a key present in patch is modified.
type BeforeSaveFunc func(ctx context.Context, doc, patch models.Document) error

type ProviderOptions struct {
	Validator  Validator
	BeforeSave []BeforeSaveFunc
	// Related resolves populate directives, keyed by table name.
	Related map[string]repositories.DocumentRepository
}

type ResourceProvider[T models.Resource] struct {
	repo repositories.DocumentRepository
	opts ProviderOptions
}

func NewResourceProvider[T models.Resource](repo repositories.DocumentRepository, opts ProviderOptions) *ResourceProvider[T] {
	return &ResourceProvider[T]{repo: repo, opts: opts}
}

// Create persists doc. Callers strip implicit and blacklisted fields first.
func (p *ResourceProvider[T]) Create(ctx context.Context, doc models.Document) (*T, error) {
	doc = doc.Clone()
	if err := p.prepare(ctx, doc, doc.Clone()); err != nil {
		return nil, err
	}

	stored, err := p.repo.Insert(ctx, doc)
	if err != nil {
		return nil, p.mapWriteError(err)
	}
	return decodeOne[T](stored)
}

// Find rejects filters and sort keys on hidden fields.
func (p *ResourceProvider[T]) Find(ctx context.Context, opts models.QueryOptions, paginate bool) (*models.FindResult[T], error) {
	if err := checkQueryable[T](opts); err != nil {
		return nil, err
	}

	docs, err := p.repo.Find(ctx, opts, paginate)
	if err != nil {
		return nil, mapReadError(err)
	}

	items := make([]T, 0, len(docs))
	for _, doc := range docs {
		item, err := models.Decode[T](doc)
		if err != nil {
			return nil, err
		}
		items = append(items, item)
	}

	result := &models.FindResult[T]{Items: items}
	if !paginate {
		return result, nil
	}

	total, err := p.repo.Count(ctx, opts.Filter)
	if err != nil {
		return nil, mapReadError(err)
	}

	limit := opts.Limit()
	result.Paginated = true
	result.Page = opts.Offset()/limit + 1
	result.PerPage = limit
	result.TotalItems = total
	result.TotalPages = int((total + int64(limit) - 1) / int64(limit))
	return result, nil
}

func (p *ResourceProvider[T]) FindByID(ctx context.Context, id uuid.UUID, opts models.QueryOptions) (*T, error) {
	doc, err := p.repo.FindByID(ctx, id)
	if errors.Is(err, repositories.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return decodeOne[T](doc)
}

// Update merges patch into the stored document and validates the result as a whole.
func (p *ResourceProvider[T]) Update(ctx context.Context, id uuid.UUID, patch models.Document) (*T, error) {
	existing, err := p.repo.FindByID(ctx, id)
	if errors.Is(err, repositories.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	merged := existing.Without(models.ImplicitFields...).Merge(patch)
	if err := p.prepare(ctx, merged, patch); err != nil {
		return nil, err
	}

	stored, err := p.repo.Replace(ctx, id, merged)
	if errors.Is(err, repositories.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, p.mapWriteError(err)
	}
	return decodeOne[T](stored)
}

func (p *ResourceProvider[T]) Delete(ctx context.Context, id uuid.UUID) (*T, error) {
	doc, err := p.repo.Delete(ctx, id)
	if errors.Is(err, repositories.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return decodeOne[T](doc)
}

// Present renders items for output: hidden fields are dropped, populate
// directives are expanded and the field selection is applied.
func (p *ResourceProvider[T]) Present(ctx context.Context, items []T, opts models.QueryOptions) ([]models.Document, error) {
	var zero T
	docs := make([]models.Document, 0, len(items))
	for _, item := range items {
		doc, err := models.Encode(item)
		if err != nil {
			return nil, err
		}
		docs = append(docs, doc.Without(zero.HiddenFields()...))
	}

	if err := p.populate(ctx, docs, opts.Populate); err != nil {
		return nil, err
	}

	for i, doc := range docs {
		docs[i] = selectFields(doc, opts.Select, opts.Omit)
	}
	return docs, nil
}

func (p *ResourceProvider[T]) populate(ctx context.Context, docs []models.Document, paths []string) error {
	if len(paths) == 0 {
		return nil
	}
	var zero T
	referencer, ok := any(zero).(models.Referencer)
	if !ok {
		return nil
	}
	refs := referencer.References()

	for _, field := range paths {
		target, ok := refs[field]
		if !ok {
			continue
		}
		repo, ok := p.opts.Related[target.TableName()]
		if !ok {
			return fmt.Errorf("no repository registered for %s", target.TableName())
		}

		ids := referencedIDs(docs, field)
		if len(ids) == 0 {
			continue
		}
		related, err := repo.FindByIDs(ctx, ids)
		if err != nil {
			return err
		}

		byID := make(map[string]models.Document, len(related))
		for _, r := range related {
			if id, ok := r[models.FieldID].(string); ok {
				byID[id] = r.Without(target.HiddenFields()...)
			}
		}
		for _, doc := range docs {
			if id, ok := doc[field].(string); ok {
				if r, found := byID[id]; found {
					doc[field] = r
				}
			}
		}
	}
	return nil
}

func (p *ResourceProvider[T]) prepare(ctx context.Context, doc, patch models.Document) error {
	for _, hook := range p.opts.BeforeSave {
		if err := hook(ctx, doc, patch); err != nil {
			return err
		}
	}
	if p.opts.Validator != nil {
		if errs := p.opts.Validator.Validate(map[string]any(doc)); len(errs) > 0 {
			return common.NewValidationError(errs)
		}
	}
	return nil
}

func (p *ResourceProvider[T]) mapWriteError(err error) error {
	if errors.Is(err, repositories.ErrDuplicate) {
		var zero T
		conflict := common.NewConflict(fmt.Sprintf("%s: a unique field already has this value", zero.TableName()))
		conflict.Err = err
		return conflict
	}
	return err
}

func checkQueryable[T models.Resource](opts models.QueryOptions) error {
	var zero T
	hidden := zero.HiddenFields()
	if len(hidden) == 0 {
		return nil
	}

	var errs []common.FieldError
	reject := func(field string) {
		root, _, _ := strings.Cut(field, ".")
		if slices.Contains(hidden, root) {
			errs = append(errs, common.FieldError{Field: field, Code: "forbidden_field", Message: field + " cannot be queried"})
		}
	}
	for _, c := range opts.Filter {
		reject(c.Field)
	}
	for _, s := range opts.Sort {
		reject(s.Field)
	}
	if len(errs) > 0 {
		return common.NewValidationError(errs)
	}
	return nil
}

// mapReadError turns filter values the store could not evaluate into a
// validation failure.
func mapReadError(err error) error {
	var filterErr *repositories.FilterError
	if errors.As(err, &filterErr) {
		return common.NewValidationError([]common.FieldError{{Field: filterErr.Field, Code: "invalid_filter", Message: filterErr.Reason}})
	}
	if errors.Is(err, repositories.ErrInvalidFilter) {
		return common.NewValidationError([]common.FieldError{{Field: "filter", Code: "invalid_filter", Message: "a filter value could not be evaluated"}})
	}
	return err
}

func decodeOne[T any](doc models.Document) (*T, error) {
	item, err := models.Decode[T](doc)
	if err != nil {
		return nil, err
	}
	return &item, nil
}

func referencedIDs(docs []models.Document, field string) []uuid.UUID {
	seen := map[uuid.UUID]bool{}
	var ids []uuid.UUID
	for _, doc := range docs {
		raw, ok := doc[field].(string)
		if !ok {
			continue
		}
		id, err := uuid.Parse(raw)
		if err != nil || seen[id] {
			continue
		}
		seen[id] = true
		ids = append(ids, id)
	}
	return ids
}

// selectFields keeps only include (plus id) when set, then drops omit.
func selectFields(doc models.Document, include, omit []string) models.Document {
	if len(include) > 0 {
		out := models.Document{}
		for k, v := range doc {
			if k == models.FieldID || slices.Contains(include, k) {
				out[k] = v
			}
		}
		doc = out
	}
	return doc.Without(omit...)
}
