package models

// Operator is a filter comparison understood by the document store.
type Operator string

const (
	OpEq        Operator = "eq"
	OpNe        Operator = "ne"
	OpGt        Operator = "gt"
	OpGte       Operator = "gte"
	OpLt        Operator = "lt"
	OpLte       Operator = "lte"
	OpIn        Operator = "in"
	OpNin       Operator = "nin"
	OpExists    Operator = "exists"
	OpNotExists Operator = "not_exists"
	OpRegex     Operator = "regex"
)

// Condition is one filter predicate. Field may be a dotted path.
type Condition struct {
	Field  string
	Op     Operator
	Value  any
	Values []any
	// Flags holds regex flags, only "i" is honoured.
	Flags string
}

type SortField struct {
	Field string
	Desc  bool
}

const (
	DefaultPage    = 1
	DefaultPerPage = 10
	MaxPerPage     = 100
)

// QueryOptions carries everything a list or fetch request may ask of a provider.
type QueryOptions struct {
	Filter   []Condition
	Select   []string
	Omit     []string
	Sort     []SortField
	Populate []string
	Page     int
	PerPage  int
}

// Offset is the number of documents skipped by the requested page.
func (q QueryOptions) Offset() int {
	page := q.Page
	if page < 1 {
		page = DefaultPage
	}
	return (page - 1) * q.Limit()
}

// Limit is the requested page size, clamped to MaxPerPage.
func (q QueryOptions) Limit() int {
	switch {
	case q.PerPage <= 0:
		return DefaultPerPage
	case q.PerPage > MaxPerPage:
		return MaxPerPage
	}
	return q.PerPage
}

// FindResult is either a plain list or a page of items.
type FindResult[T any] struct {
	Items      []T
	Paginated  bool
	Page       int
	PerPage    int
	TotalPages int
	TotalItems int64
}

// PageEnvelope is the serialized form of a paginated FindResult.
type PageEnvelope struct {
	Items      []Document `json:"items"`
	Page       int        `json:"page"`
	PerPage    int        `json:"perPage"`
	TotalPages int        `json:"totalPages"`
	TotalItems int64      `json:"totalItems"`
}
