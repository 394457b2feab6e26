package echoapi

import (
	"bytes"
	"fmt"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/EllowDigital/GSAI-IN-sub000/core/fee"
)

type feeApi struct {
	svc *fee.Service
}

func registerFeeAPI(g *echo.Group, svc *fee.Service) {
	api := feeApi{svc: svc}

	fg := g.Group("/fees", roleMiddleware(RoleAdmin))
	fg.GET("", api.query)
	fg.POST("", api.upsert)
	fg.GET("/summary", api.summary)
	fg.GET("/export", api.export)
	fg.GET("/ledger", api.ledger)
	fg.POST("/reminders", api.sendReminders)
	fg.GET("/:id", api.retrieve)
}

func bindFeeFilter(ctx echo.Context) (fee.QueryFilter, error) {
	filter := fee.QueryFilter{
		StudentID: ctx.QueryParam("student_id"),
		Statuses:  ctx.QueryParams()["status"],
	}
	var err error
	if filter.Year, err = intParam(ctx, "year"); err != nil {
		return filter, err
	}
	if filter.Month, err = intParam(ctx, "month"); err != nil {
		return filter, err
	}
	return filter, nil
}

func (api *feeApi) upsert(ctx echo.Context) error {
	var data fee.NewPayment
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewPayment")
	}
	rec, err := api.svc.RecordPayment(ctx.Request().Context(), data)
	if err != nil {
		return errors.Wrap(err, "recording payment")
	}
	return ctx.JSON(http.StatusOK, rec)
}

func (api *feeApi) query(ctx echo.Context) error {
	filter, err := bindFeeFilter(ctx)
	if err != nil {
		return err
	}
	var ord Ordering
	ord.Bind(ctx)

	recs, err := api.svc.Query(ctx.Request().Context(), &filter, ord.Orderings)
	if err != nil {
		return errors.Wrap(err, "querying fees")
	}
	return ctx.JSON(http.StatusOK, recs)
}

func (api *feeApi) retrieve(ctx echo.Context) error {
	rec, err := api.svc.GetByID(ctx.Request().Context(), ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "getting fee by id")
	}
	return ctx.JSON(http.StatusOK, rec)
}

func (api *feeApi) summary(ctx echo.Context) error {
	filter, err := bindFeeFilter(ctx)
	if err != nil {
		return err
	}
	sum, err := api.svc.Summary(ctx.Request().Context(), &filter)
	if err != nil {
		return errors.Wrap(err, "summarizing fees")
	}
	return ctx.JSON(http.StatusOK, sum)
}

// ledger shows the dues of ?student_id=, for the current month when year or month are omitted.
func (api *feeApi) ledger(ctx echo.Context) error {
	now := time.Now().UTC()
	year, err := intParam(ctx, "year")
	if err != nil {
		return err
	}
	month, err := intParam(ctx, "month")
	if err != nil {
		return err
	}
	if year == 0 {
		year = now.Year()
	}
	if month == 0 {
		month = int(now.Month())
	}

	entry, err := api.svc.Ledger(ctx.Request().Context(), ctx.QueryParam("student_id"), year, month)
	if err != nil {
		return errors.Wrap(err, "building ledger entry")
	}
	return ctx.JSON(http.StatusOK, entry)
}

func (api *feeApi) export(ctx echo.Context) error {
	filter, err := bindFeeFilter(ctx)
	if err != nil {
		return err
	}
	var buf bytes.Buffer
	if err := api.svc.Export(ctx.Request().Context(), &buf, &filter); err != nil {
		return errors.Wrap(err, "exporting fees")
	}
	ctx.Response().Header().Set(echo.HeaderContentDisposition, fmt.Sprintf("attachment; filename=fees-%s.csv", time.Now().UTC().Format("2006-01-02")))
	return ctx.Blob(http.StatusOK, "text/csv; charset=utf-8", buf.Bytes())
}

type remindersRequest struct {
	Year  int `json:"year"`
	Month int `json:"month"`
}

type remindersResponse struct {
	Sent int `json:"sent"`
}

func (api *feeApi) sendReminders(ctx echo.Context) error {
	var data remindersRequest
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to remindersRequest")
	}
	if data.Year == 0 || data.Month == 0 {
		now := time.Now().UTC()
		data.Year, data.Month = now.Year(), int(now.Month())
	}
	sent, err := api.svc.SendReminders(ctx.Request().Context(), data.Year, data.Month)
	if err != nil {
		return errors.Wrap(err, "sending reminders")
	}
	return ctx.JSON(http.StatusOK, remindersResponse{Sent: sent})
}
