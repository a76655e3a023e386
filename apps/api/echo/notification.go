package echoapi

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/miradi/core/notification"
)

type notificationApi struct {
	svc         *notification.Service
	scanner     DeadlineScanner
	defaultDays int
}

func registerNotificationAPI(
	g *echo.Group,
	authed []echo.MiddlewareFunc,
	svc *notification.Service,
	scanner DeadlineScanner,
	defaultDays int,
) {
	api := notificationApi{svc: svc, scanner: scanner, defaultDays: defaultDays}

	ng := g.Group("/notifications", authed...)
	ng.GET("", api.query)
	ng.PATCH("/:id/read", api.markRead)
	ng.POST("/read-all", api.markAllRead)
	ng.POST("/deadline-scan", api.scan, reviewerMiddleware())
}

func (api *notificationApi) query(ctx echo.Context) error {
	usr, err := getContextUser(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}

	var filter notification.QueryFilter
	if err := ctx.Bind(&filter); err != nil {
		return errors.Wrap(err, "binding to QueryFilter")
	}

	notifications, err := api.svc.Query(ctx.Request().Context(), usr.ID, filter)
	if err != nil {
		return errors.Wrap(err, "querying notifications")
	}
	if notifications == nil {
		notifications = []notification.Notification{}
	}
	return ctx.JSON(http.StatusOK, notifications)
}

func (api *notificationApi) markRead(ctx echo.Context) error {
	usr, err := getContextUser(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}

	n, err := api.svc.MarkRead(ctx.Request().Context(), usr.ID, ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "marking notification read")
	}
	return ctx.JSON(http.StatusOK, n)
}

func (api *notificationApi) markAllRead(ctx echo.Context) error {
	usr, err := getContextUser(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}

	cnt, err := api.svc.MarkAllRead(ctx.Request().Context(), usr.ID)
	if err != nil {
		return errors.Wrap(err, "marking notifications read")
	}
	return ctx.JSON(http.StatusOK, echo.Map{"updated": cnt})
}

// scan runs the deadline scan now; `days` defaults to the configured window.
func (api *notificationApi) scan(ctx echo.Context) error {
	days, err := intQueryParam(ctx, "days", api.defaultDays)
	if err != nil {
		return err
	}

	report, err := api.scanner.Scan(ctx.Request().Context(), days)
	if err != nil {
		return errors.Wrap(err, "scanning deadlines")
	}
	return ctx.JSON(http.StatusOK, report)
}
