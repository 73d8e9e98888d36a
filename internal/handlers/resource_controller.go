package handlers

import (
	"net/http"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"resthub/internal/common"
	"resthub/internal/middleware"
	"resthub/internal/models"
	"resthub/internal/services"
)

// Route enables one CRUD route. Middleware runs after the group's own.
type Route struct {
	Middleware []echo.MiddlewareFunc
}

// RouteOptions selects the routes Register mounts. A nil route is not mounted.
type RouteOptions struct {
	Index  *Route
	Create *Route
	Show   *Route
	Update *Route
	Delete *Route
}

// AllRoutes enables all five routes, each with mw.
func AllRoutes(mw ...echo.MiddlewareFunc) RouteOptions {
	return RouteOptions{
		Index:  &Route{Middleware: mw},
		Create: &Route{Middleware: mw},
		Show:   &Route{Middleware: mw},
		Update: &Route{Middleware: mw},
		Delete: &Route{Middleware: mw},
	}
}

type ControllerOptions struct {
	// Name is used in not-found messages.
	Name string
	// Blacklist fields are dropped from create and update bodies.
	Blacklist []string
	// Unpaginated makes the index return a plain list.
	Unpaginated bool
}

// ResourceController serves generic CRUD over a Provider.
type ResourceController[T models.Resource] struct {
	provider services.Provider[T]
	opts     ControllerOptions
}

func NewResourceController[T models.Resource](provider services.Provider[T], opts ControllerOptions) *ResourceController[T] {
	if opts.Name == "" {
		var zero T
		opts.Name = zero.TableName()
	}
	return &ResourceController[T]{provider: provider, opts: opts}
}

// Register mounts the enabled routes on g under path. Update is served on
// both PUT and PATCH.
func (rc *ResourceController[T]) Register(g *echo.Group, path string, routes RouteOptions) {
	item := path + "/:id"
	if r := routes.Index; r != nil {
		g.GET(path, rc.Index, r.Middleware...)
	}
	if r := routes.Create; r != nil {
		g.POST(path, rc.Create, r.Middleware...)
	}
	if r := routes.Show; r != nil {
		g.GET(item, rc.Show, r.Middleware...)
	}
	if r := routes.Update; r != nil {
		g.PUT(item, rc.Update, r.Middleware...)
		g.PATCH(item, rc.Update, r.Middleware...)
	}
	if r := routes.Delete; r != nil {
		g.DELETE(item, rc.Delete, r.Middleware...)
	}
}

func (rc *ResourceController[T]) Index(c echo.Context) error {
	ctx := c.Request().Context()
	opts := middleware.GetQueryOptions(c)

	result, err := rc.provider.Find(ctx, opts, !rc.opts.Unpaginated)
	if err != nil {
		return err
	}
	docs, err := rc.provider.Present(ctx, result.Items, opts)
	if err != nil {
		return err
	}

	if !result.Paginated {
		return c.JSON(http.StatusOK, docs)
	}
	return c.JSON(http.StatusOK, models.PageEnvelope{
		Items:      docs,
		Page:       result.Page,
		PerPage:    result.PerPage,
		TotalPages: result.TotalPages,
		TotalItems: result.TotalItems,
	})
}

func (rc *ResourceController[T]) Create(c echo.Context) error {
	body, err := bindDocument(c)
	if err != nil {
		return err
	}
	body = body.Without(append(models.ImplicitFields, rc.opts.Blacklist...)...)

	created, err := rc.provider.Create(c.Request().Context(), body)
	if err != nil {
		return err
	}
	return rc.render(c, http.StatusCreated, *created)
}

func (rc *ResourceController[T]) Show(c echo.Context) error {
	id, err := common.ParseID(c.Param("id"))
	if err != nil {
		return err
	}
	return rc.ShowID(c, id)
}

// ShowID renders the resource with the given id.
func (rc *ResourceController[T]) ShowID(c echo.Context, id uuid.UUID) error {
	opts := middleware.GetQueryOptions(c)
	found, err := rc.provider.FindByID(c.Request().Context(), id, opts)
	if err != nil {
		return err
	}
	if found == nil {
		return common.NewNotFound(rc.opts.Name)
	}
	return rc.render(c, http.StatusOK, *found)
}

func (rc *ResourceController[T]) Update(c echo.Context) error {
	id, err := common.ParseID(c.Param("id"))
	if err != nil {
		return err
	}
	return rc.UpdateID(c, id)
}

// UpdateID applies the request body to the resource with the given id.
// Readonly fields in the body are ignored.
func (rc *ResourceController[T]) UpdateID(c echo.Context, id uuid.UUID) error {
	body, err := bindDocument(c)
	if err != nil {
		return err
	}
	var zero T
	strip := append(append(append([]string{}, models.ImplicitFields...), zero.ReadonlyFields()...), rc.opts.Blacklist...)
	body = body.Without(strip...)

	updated, err := rc.provider.Update(c.Request().Context(), id, body)
	if err != nil {
		return err
	}
	if updated == nil {
		return common.NewNotFound(rc.opts.Name)
	}
	return rc.render(c, http.StatusOK, *updated)
}

func (rc *ResourceController[T]) Delete(c echo.Context) error {
	id, err := common.ParseID(c.Param("id"))
	if err != nil {
		return err
	}

	deleted, err := rc.provider.Delete(c.Request().Context(), id)
	if err != nil {
		return err
	}
	if deleted == nil {
		return common.NewNotFound(rc.opts.Name)
	}
	return c.NoContent(http.StatusNoContent)
}

func (rc *ResourceController[T]) render(c echo.Context, status int, item T) error {
	docs, err := rc.provider.Present(c.Request().Context(), []T{item}, middleware.GetQueryOptions(c))
	if err != nil {
		return err
	}
	return c.JSON(status, docs[0])
}

// bindDocument decodes a JSON object body. An empty body is an empty document.
func bindDocument(c echo.Context) (models.Document, error) {
	req := c.Request()
	if req.ContentLength == 0 {
		return models.Document{}, nil
	}

	doc := models.Document{}
	if err := c.Echo().JSONSerializer.Deserialize(c, &doc); err != nil {
		return nil, common.NewInvalidRequest("Request body must be a JSON object")
	}
	return doc, nil
}
