package repositories

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"resthub/internal/models"
)

// columns maps implicit document fields onto real table columns.
var columns = map[string]string{
	models.FieldID:        "id",
	models.FieldCreatedAt: "created_at",
	models.FieldUpdatedAt: "updated_at",
}

// sqlBuilder accumulates positional arguments while rendering SQL fragments.
// JSON paths and values are always bound, never interpolated.
type sqlBuilder struct {
	args []any
}

func (b *sqlBuilder) bind(v any) string {
	b.args = append(b.args, v)
	return "$" + strconv.Itoa(len(b.args))
}

func (b *sqlBuilder) where(conds []models.Condition) (string, error) {
	if len(conds) == 0 {
		return "", nil
	}

	parts := make([]string, 0, len(conds))
	for _, c := range conds {
		part, err := b.condition(c)
		if err != nil {
			return "", err
		}
		parts = append(parts, part)
	}
	return " WHERE " + strings.Join(parts, " AND "), nil
}

func (b *sqlBuilder) condition(c models.Condition) (string, error) {
	if c.Field == "" {
		return "", fmt.Errorf("filter field is empty")
	}
	if col, ok := columns[c.Field]; ok {
		return b.columnCondition(col, c)
	}

	path := b.bind(strings.Split(c.Field, "."))
	node := "data #> " + path
	text := "data #>> " + path

	switch c.Op {
	case models.OpEq:
		if c.Value == nil {
			return fmt.Sprintf("(%s IS NULL OR %s = 'null'::jsonb)", node, node), nil
		}
		return fmt.Sprintf("%s = %s", text, b.bind(textValue(c.Value))), nil
	case models.OpNe:
		if c.Value == nil {
			return fmt.Sprintf("(%s IS NOT NULL AND %s <> 'null'::jsonb)", node, node), nil
		}
		return fmt.Sprintf("%s IS DISTINCT FROM %s", text, b.bind(textValue(c.Value))), nil
	case models.OpGt, models.OpGte, models.OpLt, models.OpLte:
		op := comparison[c.Op]
		if n, ok := numericValue(c.Value); ok {
			// Non-numeric values never match instead of failing the cast.
			return fmt.Sprintf("CASE WHEN jsonb_typeof(%s) = 'number' THEN (%s)::numeric %s %s ELSE FALSE END",
				node, text, op, b.bind(n)), nil
		}
		return fmt.Sprintf("%s %s %s", text, op, b.bind(textValue(c.Value))), nil
	case models.OpIn:
		return fmt.Sprintf("%s = ANY(%s)", text, b.bind(textValues(c.Values))), nil
	case models.OpNin:
		return fmt.Sprintf("(%s IS NULL OR NOT (%s = ANY(%s)))", text, text, b.bind(textValues(c.Values))), nil
	case models.OpExists:
		return node + " IS NOT NULL", nil
	case models.OpNotExists:
		return node + " IS NULL", nil
	case models.OpRegex:
		pattern, err := checkPattern(c)
		if err != nil {
			return "", err
		}
		return fmt.Sprintf("%s %s %s", text, regexOperator(c.Flags), b.bind(pattern)), nil
	}
	return "", fmt.Errorf("unsupported filter operator %q", c.Op)
}

func (b *sqlBuilder) columnCondition(col string, c models.Condition) (string, error) {
	lhs := col + "::text"
	if col != "id" {
		lhs = col
	}
	switch c.Op {
	case models.OpEq, models.OpNe, models.OpGt, models.OpGte, models.OpLt, models.OpLte:
		if col == "id" {
			return fmt.Sprintf("%s %s %s", lhs, comparison[c.Op], b.bind(textValue(c.Value))), nil
		}
		ts, err := parseTimestamp(c)
		if err != nil {
			return "", err
		}
		return fmt.Sprintf("%s %s %s", lhs, comparison[c.Op], b.bind(ts)), nil
	case models.OpIn:
		return fmt.Sprintf("%s::text = ANY(%s)", col, b.bind(textValues(c.Values))), nil
	case models.OpNin:
		return fmt.Sprintf("NOT (%s::text = ANY(%s))", col, b.bind(textValues(c.Values))), nil
	case models.OpExists:
		return "TRUE", nil
	case models.OpNotExists:
		return "FALSE", nil
	case models.OpRegex:
		pattern, err := checkPattern(c)
		if err != nil {
			return "", err
		}
		return fmt.Sprintf("%s::text %s %s", col, regexOperator(c.Flags), b.bind(pattern)), nil
	}
	return "", fmt.Errorf("unsupported filter operator %q", c.Op)
}

func (b *sqlBuilder) orderBy(sort []models.SortField) string {
	if len(sort) == 0 {
		return ""
	}

	parts := make([]string, 0, len(sort))
	for _, s := range sort {
		expr, ok := columns[s.Field]
		if !ok {
			expr = "data #> " + b.bind(strings.Split(s.Field, "."))
		}
		if s.Desc {
			expr += " DESC"
		} else {
			expr += " ASC"
		}
		parts = append(parts, expr)
	}
	return " ORDER BY " + strings.Join(parts, ", ")
}

var comparison = map[models.Operator]string{
	models.OpEq:  "=",
	models.OpNe:  "<>",
	models.OpGt:  ">",
	models.OpGte: ">=",
	models.OpLt:  "<",
	models.OpLte: "<=",
}

var timestampLayouts = []string{time.RFC3339Nano, "2006-01-02T15:04:05", "2006-01-02"}

func parseTimestamp(c models.Condition) (time.Time, error) {
	if raw, ok := c.Value.(string); ok {
		for _, layout := range timestampLayouts {
			if ts, err := time.Parse(layout, raw); err == nil {
				return ts, nil
			}
		}
	}
	return time.Time{}, &FilterError{Field: c.Field, Reason: "value must be an RFC 3339 timestamp or a date"}
}

// checkPattern rejects patterns that do not compile. Postgres-only syntax
// errors still surface as ErrInvalidFilter through mapQueryError.
func checkPattern(c models.Condition) (string, error) {
	pattern := textValue(c.Value)
	if _, err := regexp.Compile(pattern); err != nil {
		return "", &FilterError{Field: c.Field, Reason: "invalid regular expression"}
	}
	return pattern, nil
}

func regexOperator(flags string) string {
	if strings.Contains(flags, "i") {
		return "~*"
	}
	return "~"
}

func numericValue(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	}
	return 0, false
}

// textValue renders v the way Postgres renders a scalar jsonb value as text.
func textValue(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case bool:
		return strconv.FormatBool(t)
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case int:
		return strconv.Itoa(t)
	case int64:
		return strconv.FormatInt(t, 10)
	}
	return fmt.Sprint(v)
}

func textValues(vs []any) []string {
	out := make([]string, len(vs))
	for i, v := range vs {
		out[i] = textValue(v)
	}
	return out
}
