package echoapi

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/EllowDigital/GSAI-IN-sub000/core/progression"
)

type progressionApi struct {
	svc *progression.Service
}

func registerProgressionAPI(g *echo.Group, svc *progression.Service) {
	api := progressionApi{svc: svc}

	staff := roleMiddleware(RoleAdmin, RoleCoach)

	g.GET("/disciplines", api.disciplines, staff)
	g.GET("/disciplines/classify", api.classify, staff)
	g.GET("/levels", api.levels, staff)
	g.PUT("/levels", api.importLevels, roleMiddleware(RoleAdmin))

	pg := g.Group("/progress", staff)
	pg.GET("", api.query)
	pg.POST("", api.assign)
	pg.GET("/:id", api.retrieve)
	pg.PATCH("/:id", api.update)
	pg.POST("/:id/promote", api.promote)
}

func (api *progressionApi) disciplines(ctx echo.Context) error {
	return ctx.JSON(http.StatusOK, api.svc.Catalog().Disciplines())
}

func (api *progressionApi) classify(ctx echo.Context) error {
	return ctx.JSON(http.StatusOK, api.svc.Classify(ctx.QueryParam("program")))
}

// levels lists the levels offered for ?program=, or every level when it is omitted.
func (api *progressionApi) levels(ctx echo.Context) error {
	program := ctx.QueryParam("program")
	if program == "" {
		levels, err := api.svc.AllLevels(ctx.Request().Context())
		if err != nil {
			return errors.Wrap(err, "querying levels")
		}
		return ctx.JSON(http.StatusOK, levels)
	}
	filtered, err := api.svc.Levels(ctx.Request().Context(), program)
	if err != nil {
		return errors.Wrap(err, "filtering levels")
	}
	return ctx.JSON(http.StatusOK, filtered)
}

func (api *progressionApi) importLevels(ctx echo.Context) error {
	var data []progression.Level
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to []Level")
	}
	if err := api.svc.ImportLevels(ctx.Request().Context(), data); err != nil {
		return errors.Wrap(err, "importing levels")
	}
	return api.levels(ctx)
}

func (api *progressionApi) query(ctx echo.Context) error {
	filter := progression.QueryFilter{
		StudentID: ctx.QueryParam("student_id"),
		LevelID:   ctx.QueryParam("belt_level_id"),
		Statuses:  ctx.QueryParams()["status"],
	}
	var err error
	if filter.Active, err = boolParam(ctx, "active"); err != nil {
		return err
	}
	ready, err := boolParam(ctx, "ready")
	if err != nil {
		return err
	}
	filter.ReadyOnly = ready != nil && *ready

	recs, err := api.svc.Query(ctx.Request().Context(), &filter)
	if err != nil {
		return errors.Wrap(err, "querying progress")
	}
	return ctx.JSON(http.StatusOK, recs)
}

func (api *progressionApi) assign(ctx echo.Context) error {
	var data progression.NewAssignment
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewAssignment")
	}
	asg, err := api.svc.Assign(ctx.Request().Context(), data)
	if err != nil {
		return errors.Wrap(err, "assigning level")
	}
	return ctx.JSON(http.StatusCreated, asg)
}

func (api *progressionApi) retrieve(ctx echo.Context) error {
	rec, err := api.svc.GetByID(ctx.Request().Context(), ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "getting progress by id")
	}
	return ctx.JSON(http.StatusOK, rec)
}

func (api *progressionApi) update(ctx echo.Context) error {
	var data progression.UpdateProgress
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to UpdateProgress")
	}
	rec, err := api.svc.Update(ctx.Request().Context(), ctx.Param("id"), data)
	if err != nil {
		return errors.Wrap(err, "updating progress")
	}
	return ctx.JSON(http.StatusOK, rec)
}

func (api *progressionApi) promote(ctx echo.Context) error {
	promo, err := api.svc.Promote(ctx.Request().Context(), ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "promoting student")
	}
	return ctx.JSON(http.StatusOK, promo)
}
