package middleware

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"resthub/internal/common"
	"resthub/internal/models"
)

func TestParseQuery_Filters(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want []models.Condition
	}{
		{name: "equality", raw: "title=Hello", want: []models.Condition{{Field: "title", Op: models.OpEq, Value: "Hello"}}},
		{name: "dotted path", raw: "address.city=Paris", want: []models.Condition{{Field: "address.city", Op: models.OpEq, Value: "Paris"}}},
		{name: "not equal", raw: "role!=user", want: []models.Condition{{Field: "role", Op: models.OpNe, Value: "user"}}},
		{name: "greater than", raw: "age>18", want: []models.Condition{{Field: "age", Op: models.OpGt, Value: int64(18)}}},
		{name: "greater or equal", raw: "age>=18", want: []models.Condition{{Field: "age", Op: models.OpGte, Value: int64(18)}}},
		{name: "less than", raw: "score<1.5", want: []models.Condition{{Field: "score", Op: models.OpLt, Value: 1.5}}},
		{name: "less or equal encoded", raw: "age%3C%3D65", want: []models.Condition{{Field: "age", Op: models.OpLte, Value: int64(65)}}},
		{name: "in", raw: "role=user,superadmin", want: []models.Condition{{Field: "role", Op: models.OpIn, Values: []any{"user", "superadmin"}}}},
		{name: "not in", raw: "role!=user,superadmin", want: []models.Condition{{Field: "role", Op: models.OpNin, Values: []any{"user", "superadmin"}}}},
		{name: "exists", raw: "recipient", want: []models.Condition{{Field: "recipient", Op: models.OpExists}}},
		{name: "not exists", raw: "!recipient", want: []models.Condition{{Field: "recipient", Op: models.OpNotExists}}},
		{name: "regex with flags", raw: "email=/^ada/i", want: []models.Condition{{Field: "email", Op: models.OpRegex, Value: "^ada", Flags: "i"}}},
		{name: "booleans and null", raw: "active=true&deleted=null", want: []models.Condition{
			{Field: "active", Op: models.OpEq, Value: true},
			{Field: "deleted", Op: models.OpEq, Value: nil},
		}},
		{name: "reserved keys are not filters", raw: "clients=all&access_token=x&page=2", want: nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			opts, err := ParseQuery(tt.raw)
			require.NoError(t, err)
			assert.Equal(t, tt.want, opts.Filter)
		})
	}
}

func TestParseQuery_Options(t *testing.T) {
	opts, err := ParseQuery("page=3&perPage=500&sort=-createdAt,title&select=title,-message&populate=recipient")
	require.NoError(t, err)

	assert.Equal(t, 3, opts.Page)
	assert.Equal(t, models.MaxPerPage, opts.PerPage)
	assert.Equal(t, []models.SortField{{Field: "createdAt", Desc: true}, {Field: "title"}}, opts.Sort)
	assert.Equal(t, []string{"title"}, opts.Select)
	assert.Equal(t, []string{"message"}, opts.Omit)
	assert.Equal(t, []string{"recipient"}, opts.Populate)
}

func TestParseQuery_Defaults(t *testing.T) {
	opts, err := ParseQuery("")
	require.NoError(t, err)
	assert.Equal(t, models.DefaultPage, opts.Page)
	assert.Equal(t, models.DefaultPerPage, opts.PerPage)
	assert.Empty(t, opts.Filter)
}

func TestParseQuery_InvalidPage(t *testing.T) {
	_, err := ParseQuery("page=zero&perPage=-1")

	var appErr *common.AppError
	require.True(t, errors.As(err, &appErr))
	assert.Equal(t, http.StatusUnprocessableEntity, appErr.Status)
	require.Len(t, appErr.Errors, 2)
	assert.Equal(t, QueryPage, appErr.Errors[0].Field)
	assert.Equal(t, QueryPerPage, appErr.Errors[1].Field)
}

func TestQueryParserMiddleware(t *testing.T) {
	e := newTestEcho()
	e.GET("/things", func(c echo.Context) error {
		opts := GetQueryOptions(c)
		assert.Equal(t, 2, opts.Page)
		assert.Len(t, opts.Filter, 1)
		return c.NoContent(http.StatusOK)
	}, QueryParser())

	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/things?page=2&title=x", nil))
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = httptest.NewRecorder()
	e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/things?page=nope", nil))
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
}
