package echoapi

import (
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/miradi/core/period"
)

type periodApi struct {
	svc      *period.Service
	validate *validator.Validate
}

func registerPeriodAPI(g *echo.Group, authed []echo.MiddlewareFunc, svc *period.Service, validate *validator.Validate) {
	api := periodApi{svc: svc, validate: validate}

	pg := g.Group("/periods", authed...)
	pg.GET("", api.query)
	pg.POST("", api.create, reviewerMiddleware())
	pg.GET("/active", api.active)
	pg.GET("/:id", api.retrieve)
	pg.DELETE("/:id", api.destroy, adminMiddleware())
}

func (api *periodApi) create(ctx echo.Context) error {
	var data period.NewPeriod
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewPeriod")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	p, err := api.svc.Create(ctx.Request().Context(), data)
	if err != nil {
		return errors.Wrap(err, "creating period")
	}
	return ctx.JSON(http.StatusCreated, p)
}

// active responds with the active period, or null.
func (api *periodApi) active(ctx echo.Context) error {
	p, err := api.svc.GetActive(ctx.Request().Context())
	if err != nil {
		return errors.Wrap(err, "getting active period")
	}
	return ctx.JSON(http.StatusOK, p)
}

func (api *periodApi) query(ctx echo.Context) error {
	periods, err := api.svc.Query(ctx.Request().Context())
	if err != nil {
		return errors.Wrap(err, "querying periods")
	}
	if periods == nil {
		periods = []period.Period{}
	}
	return ctx.JSON(http.StatusOK, periods)
}

func (api *periodApi) retrieve(ctx echo.Context) error {
	p, err := api.svc.GetByID(ctx.Request().Context(), ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "getting period")
	}
	return ctx.JSON(http.StatusOK, p)
}

func (api *periodApi) destroy(ctx echo.Context) error {
	if err := api.svc.Delete(ctx.Request().Context(), ctx.Param("id")); err != nil {
		return errors.Wrap(err, "deleting period")
	}
	return ctx.NoContent(http.StatusNoContent)
}
