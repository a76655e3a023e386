package echoapi

import (
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/miradi/core/project"
	"github.com/trezcool/miradi/core/report"
)

type projectApi struct {
	svc       *project.Service
	reportSvc *report.Service
	validate  *validator.Validate
}

func registerProjectAPI(
	g *echo.Group,
	authed []echo.MiddlewareFunc,
	svc *project.Service,
	reportSvc *report.Service,
	validate *validator.Validate,
) {
	api := projectApi{svc: svc, reportSvc: reportSvc, validate: validate}

	pg := g.Group("/projects", authed...)
	pg.GET("", api.query)
	pg.POST("", api.create)
	pg.GET("/:id", api.retrieve)
	pg.PUT("/:id", api.update)
	pg.POST("/:id/submit", api.submit)
	pg.POST("/:id/attachments", api.addAttachment)
	pg.PATCH("/:id/status", api.changeStatus)
	pg.GET("/:id/reports", api.queryReports)
}

func (api *projectApi) create(ctx echo.Context) error {
	actor, err := getContextUser(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}

	var data project.NewProject
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewProject")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	prj, err := api.svc.Create(ctx.Request().Context(), data, actor)
	if err != nil {
		return errors.Wrap(err, "creating project")
	}
	return ctx.JSON(http.StatusCreated, prj)
}

func (api *projectApi) query(ctx echo.Context) error {
	actor, err := getContextUser(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}

	var filter project.QueryFilter
	if err := ctx.Bind(&filter); err != nil {
		return ctx.JSON(http.StatusOK, []project.Project{})
	}
	ordering := new(Ordering)
	ordering.Bind(ctx)

	projects, err := api.svc.Query(ctx.Request().Context(), filter, actor, ordering.Orderings...)
	if err != nil {
		return errors.Wrap(err, "querying projects")
	}
	if projects == nil {
		projects = []project.Project{}
	}
	return ctx.JSON(http.StatusOK, projects)
}

func (api *projectApi) retrieve(ctx echo.Context) error {
	actor, err := getContextUser(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}

	prj, err := api.svc.GetByID(ctx.Request().Context(), ctx.Param("id"), actor)
	if err != nil {
		return errors.Wrap(err, "getting project")
	}
	return ctx.JSON(http.StatusOK, prj)
}

func (api *projectApi) update(ctx echo.Context) error {
	actor, err := getContextUser(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}

	var data project.UpdateProject
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to UpdateProject")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	prj, err := api.svc.Update(ctx.Request().Context(), ctx.Param("id"), data, actor)
	if err != nil {
		return errors.Wrap(err, "updating project")
	}
	return ctx.JSON(http.StatusOK, prj)
}

func (api *projectApi) submit(ctx echo.Context) error {
	actor, err := getContextUser(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}

	prj, err := api.svc.Submit(ctx.Request().Context(), ctx.Param("id"), actor)
	if err != nil {
		return errors.Wrap(err, "submitting project")
	}
	return ctx.JSON(http.StatusOK, prj)
}

func (api *projectApi) addAttachment(ctx echo.Context) error {
	actor, err := getContextUser(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}

	var data project.NewAttachment
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewAttachment")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	att, err := api.svc.AddAttachment(ctx.Request().Context(), ctx.Param("id"), data, actor)
	if err != nil {
		return errors.Wrap(err, "adding attachment")
	}
	return ctx.JSON(http.StatusCreated, att)
}

func (api *projectApi) changeStatus(ctx echo.Context) error {
	actor, err := getContextUser(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}

	var data project.StatusChange
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to StatusChange")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	res, err := api.svc.ChangeStatus(ctx.Request().Context(), ctx.Param("id"), data, actor)
	if err != nil {
		return errors.Wrap(err, "changing project status")
	}
	return ctx.JSON(http.StatusOK, res)
}

func (api *projectApi) queryReports(ctx echo.Context) error {
	actor, err := getContextUser(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}

	reports, err := api.reportSvc.QueryByProject(ctx.Request().Context(), ctx.Param("id"), actor)
	if err != nil {
		return errors.Wrap(err, "querying project reports")
	}
	if reports == nil {
		reports = []report.Report{}
	}
	return ctx.JSON(http.StatusOK, reports)
}
