package echoapi

import (
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/mazoezi/core/journal"
)

type journalApi struct {
	svc      journal.Service
	validate *validator.Validate
}

func registerJournalAPI(
	g *echo.Group,
	jwt echo.MiddlewareFunc,
	svc journal.Service,
	validate *validator.Validate,
) {
	api := journalApi{
		svc:      svc,
		validate: validate,
	}

	jg := g.Group("/journals", jwt)

	// context-user endpoints
	jg.GET("", api.list)
	jg.POST("", api.save)
	jg.GET("/progress", api.progress)

	// admin endpoints
	jg.POST("/review", api.review, adminMiddleware())
	jg.GET("/workdays", api.queryWorkdays, adminMiddleware())
	jg.PUT("/workdays", api.setWorkday, adminMiddleware())

	// detail endpoints: a student may only read their own journals
	dg := jg.Group("/:userID", ownJournalsOrAdminMiddleware())
	dg.GET("", api.listFor)
	dg.GET("/progress", api.progressFor)
}

// Handlers

// list returns the context user's journals; `?date=` narrows it to a single entry.
func (api *journalApi) list(ctx echo.Context) error {
	claims, err := getContextClaims(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context claims")
	}
	return api.renderList(ctx, claims.Subject)
}

func (api *journalApi) listFor(ctx echo.Context) error {
	return api.renderList(ctx, ctx.Param("userID"))
}

func (api *journalApi) renderList(ctx echo.Context, userID string) error {
	if date := ctx.QueryParam("date"); date != "" {
		entry, err := api.svc.Get(ctx.Request().Context(), userID, date)
		if err != nil {
			return errors.Wrap(err, "getting journal")
		}
		if entry == nil {
			return errHttpNotFound
		}
		return ctx.JSON(http.StatusOK, entry)
	}

	entries, err := api.svc.QueryByUser(ctx.Request().Context(), userID)
	if err != nil {
		return errors.Wrap(err, "querying journals")
	}
	return ctx.JSON(http.StatusOK, entries)
}

func (api *journalApi) save(ctx echo.Context) error {
	claims, err := getContextClaims(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context claims")
	}

	var data journal.NewEntry
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewEntry")
	}
	data.UserID = claims.Subject // always the context user's own journal
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	entry, err := api.svc.Save(ctx.Request().Context(), data)
	if err != nil {
		return errors.Wrap(err, "saving journal")
	}
	return ctx.JSON(http.StatusOK, entry)
}

func (api *journalApi) progress(ctx echo.Context) error {
	claims, err := getContextClaims(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context claims")
	}
	return api.renderProgress(ctx, claims.Subject)
}

func (api *journalApi) progressFor(ctx echo.Context) error {
	return api.renderProgress(ctx, ctx.Param("userID"))
}

func (api *journalApi) renderProgress(ctx echo.Context, userID string) error {
	progress, err := api.svc.Progress(ctx.Request().Context(), userID)
	if err != nil {
		return errors.Wrap(err, "aggregating progress")
	}
	return ctx.JSON(http.StatusOK, progress)
}

func (api *journalApi) review(ctx echo.Context) error {
	var data journal.ReviewEntry
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to ReviewEntry")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	entry, err := api.svc.Review(ctx.Request().Context(), data)
	if err != nil {
		return errors.Wrap(err, "reviewing journal")
	}
	return ctx.JSON(http.StatusOK, entry)
}

func (api *journalApi) queryWorkdays(ctx echo.Context) error {
	overrides, err := api.svc.QueryOverrides(ctx.Request().Context())
	if err != nil {
		return errors.Wrap(err, "querying workday overrides")
	}
	return ctx.JSON(http.StatusOK, overrides)
}

func (api *journalApi) setWorkday(ctx echo.Context) error {
	var data journal.NewOverride
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewOverride")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	ov, err := api.svc.SetWorkday(ctx.Request().Context(), data)
	if err != nil {
		return errors.Wrap(err, "setting workday override")
	}
	return ctx.JSON(http.StatusOK, ov)
}

func ownJournalsOrAdminMiddleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(ctx echo.Context) error {
			claims, err := getContextClaims(ctx)
			if err != nil {
				return errors.Wrap(err, "getting context claims")
			}
			if claims.IsAdmin || ctx.Param("userID") == claims.Subject {
				return next(ctx)
			}
			return errHttpNotFound
		}
	}
}
