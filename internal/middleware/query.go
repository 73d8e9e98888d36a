package middleware

import (
	"net/url"
	"strconv"
	"strings"

	"github.com/labstack/echo/v4"

	"resthub/internal/common"
	"resthub/internal/models"
)

// Query keys that never become filters.
const (
	QueryPage     = "page"
	QueryPerPage  = "perPage"
	QuerySort     = "sort"
	QuerySelect   = "select"
	QueryPopulate = "populate"
	QueryClients  = "clients"
	QueryToken    = "access_token"
)

var reservedQueryKeys = map[string]bool{
	QueryPage:     true,
	QueryPerPage:  true,
	QuerySort:     true,
	QuerySelect:   true,
	QueryPopulate: true,
	QueryClients:  true,
	QueryToken:    true,
}

// QueryParser parses the raw query string into models.QueryOptions and
// stores them on the echo context.
func QueryParser() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			opts, err := ParseQuery(c.Request().URL.RawQuery)
			if err != nil {
				return err
			}
			c.Set(common.EchoQueryOptionsKey, opts)
			return next(c)
		}
	}
}

// GetQueryOptions returns the options parsed by QueryParser, or the defaults.
func GetQueryOptions(c echo.Context) models.QueryOptions {
	if opts, ok := c.Get(common.EchoQueryOptionsKey).(models.QueryOptions); ok {
		return opts
	}
	return models.QueryOptions{Page: models.DefaultPage, PerPage: models.DefaultPerPage}
}

// ParseQuery understands:
//
//	page=2 perPage=20 sort=-createdAt,title select=title,-message populate=recipient
//	k=v k!=v k>v k>=v k<v k<=v k=a,b k!=a,b k !k k=/re/i
func ParseQuery(raw string) (models.QueryOptions, error) {
	opts := models.QueryOptions{Page: models.DefaultPage, PerPage: models.DefaultPerPage}
	var fieldErrs []common.FieldError

	for _, part := range strings.Split(raw, "&") {
		if part == "" {
			continue
		}
		decoded, err := url.QueryUnescape(part)
		if err != nil {
			fieldErrs = append(fieldErrs, common.FieldError{Field: part, Code: "invalid_query", Message: "query parameter is not valid URL encoding"})
			continue
		}

		key, op, value := splitTerm(decoded)
		if key == "" {
			continue
		}

		if reservedQueryKeys[key] {
			if op != models.OpEq {
				continue
			}
			if err := applyReserved(&opts, key, value); err != nil {
				fieldErrs = append(fieldErrs, *err)
			}
			continue
		}

		opts.Filter = append(opts.Filter, buildCondition(key, op, value))
	}

	if len(fieldErrs) > 0 {
		return opts, common.NewValidationError(fieldErrs)
	}
	return opts, nil
}

// splitTerm finds the first operator in term. A term without one tests for
// existence, and a leading "!" negates that test.
func splitTerm(term string) (string, models.Operator, string) {
	i := strings.IndexAny(term, "!=<>")
	if i < 0 {
		return strings.TrimSpace(term), models.OpExists, ""
	}
	if i == 0 && term[0] == '!' && !strings.ContainsAny(term[1:], "!=<>") {
		return strings.TrimSpace(term[1:]), models.OpNotExists, ""
	}

	key := strings.TrimSpace(term[:i])
	rest := term[i:]
	switch {
	case strings.HasPrefix(rest, "!="):
		return key, models.OpNe, rest[2:]
	case strings.HasPrefix(rest, ">="):
		return key, models.OpGte, rest[2:]
	case strings.HasPrefix(rest, "<="):
		return key, models.OpLte, rest[2:]
	case rest[0] == '>':
		return key, models.OpGt, rest[1:]
	case rest[0] == '<':
		return key, models.OpLt, rest[1:]
	case rest[0] == '=':
		return key, models.OpEq, rest[1:]
	}
	// A lone "!" inside a key.
	return "", "", ""
}

func buildCondition(key string, op models.Operator, value string) models.Condition {
	cond := models.Condition{Field: key, Op: op}

	switch op {
	case models.OpExists, models.OpNotExists:
		return cond
	case models.OpEq:
		if pattern, flags, ok := parseRegex(value); ok {
			cond.Op = models.OpRegex
			cond.Value = pattern
			cond.Flags = flags
			return cond
		}
	}

	if (op == models.OpEq || op == models.OpNe) && strings.Contains(value, ",") {
		cond.Op = models.OpIn
		if op == models.OpNe {
			cond.Op = models.OpNin
		}
		for _, v := range strings.Split(value, ",") {
			cond.Values = append(cond.Values, castValue(v))
		}
		return cond
	}

	cond.Value = castValue(value)
	return cond
}

// parseRegex accepts /pattern/flags.
func parseRegex(value string) (string, string, bool) {
	if len(value) < 2 || value[0] != '/' {
		return "", "", false
	}
	end := strings.LastIndexByte(value, '/')
	if end == 0 {
		return "", "", false
	}
	return value[1:end], value[end+1:], true
}

func castValue(v string) any {
	switch v {
	case "true":
		return true
	case "false":
		return false
	case "null":
		return nil
	}
	if i, err := strconv.ParseInt(v, 10, 64); err == nil {
		return i
	}
	if f, err := strconv.ParseFloat(v, 64); err == nil {
		return f
	}
	return v
}

func applyReserved(opts *models.QueryOptions, key, value string) *common.FieldError {
	switch key {
	case QueryPage:
		n, err := strconv.Atoi(value)
		if err != nil || n < 1 {
			return &common.FieldError{Field: QueryPage, Code: "invalid_type", Message: "page must be a positive integer"}
		}
		opts.Page = n
	case QueryPerPage:
		n, err := strconv.Atoi(value)
		if err != nil || n < 1 {
			return &common.FieldError{Field: QueryPerPage, Code: "invalid_type", Message: "perPage must be a positive integer"}
		}
		opts.PerPage = min(n, models.MaxPerPage)
	case QuerySort:
		for _, f := range splitList(value) {
			if name, desc := strings.CutPrefix(f, "-"); desc {
				opts.Sort = append(opts.Sort, models.SortField{Field: name, Desc: true})
			} else {
				opts.Sort = append(opts.Sort, models.SortField{Field: strings.TrimPrefix(f, "+")})
			}
		}
	case QuerySelect:
		for _, f := range splitList(value) {
			if name, omit := strings.CutPrefix(f, "-"); omit {
				opts.Omit = append(opts.Omit, name)
			} else {
				opts.Select = append(opts.Select, f)
			}
		}
	case QueryPopulate:
		opts.Populate = append(opts.Populate, splitList(value)...)
	}
	return nil
}

func splitList(value string) []string {
	var out []string
	for _, f := range strings.Split(value, ",") {
		if f = strings.TrimSpace(f); f != "" {
			out = append(out, f)
		}
	}
	return out
}
