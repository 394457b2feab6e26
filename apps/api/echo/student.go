package echoapi

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/EllowDigital/GSAI-IN-sub000/core/student"
)

type studentApi struct {
	svc *student.Service
}

func registerStudentAPI(g *echo.Group, svc *student.Service) {
	api := studentApi{svc: svc}

	sg := g.Group("/students")
	sg.GET("", api.query, roleMiddleware(RoleAdmin, RoleCoach))
	sg.POST("", api.create, roleMiddleware(RoleAdmin))
	sg.GET("/:id", api.retrieve, roleMiddleware(RoleAdmin, RoleCoach))
	sg.PUT("/:id", api.update, roleMiddleware(RoleAdmin))
}

func (api *studentApi) create(ctx echo.Context) error {
	var data student.NewStudent
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewStudent")
	}
	stud, err := api.svc.Create(ctx.Request().Context(), data)
	if err != nil {
		return errors.Wrap(err, "creating student")
	}
	return ctx.JSON(http.StatusCreated, stud)
}

func (api *studentApi) query(ctx echo.Context) error {
	filter := student.QueryFilter{
		Search:  ctx.QueryParam("search"),
		Program: ctx.QueryParam("program"),
	}
	active, err := boolParam(ctx, "is_active")
	if err != nil {
		return err
	}
	filter.IsActive = active

	var ord Ordering
	ord.Bind(ctx)

	studs, err := api.svc.Query(ctx.Request().Context(), &filter, ord.Orderings)
	if err != nil {
		return errors.Wrap(err, "querying students")
	}
	return ctx.JSON(http.StatusOK, studs)
}

func (api *studentApi) retrieve(ctx echo.Context) error {
	stud, err := api.svc.GetByID(ctx.Request().Context(), ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "getting student by id")
	}
	return ctx.JSON(http.StatusOK, stud)
}

func (api *studentApi) update(ctx echo.Context) error {
	var data student.UpdateStudent
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to UpdateStudent")
	}
	stud, err := api.svc.Update(ctx.Request().Context(), ctx.Param("id"), data)
	if err != nil {
		return errors.Wrap(err, "updating student")
	}
	return ctx.JSON(http.StatusOK, stud)
}
