// Package handler exposes the outlook store over HTTP with echo.
package handler

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"

	"outlook_service/internal/app/apperr"
	"outlook_service/internal/app/logger"
	"outlook_service/internal/app/store"
)

// Pinger reports database reachability for /healthz.
type Pinger interface {
	PingContext(ctx context.Context) error
}

type Handler struct {
	store *store.Store
	db    Pinger
	log   *logger.Logger
}

func New(st *store.Store, db Pinger, log *logger.Logger) *Handler {
	return &Handler{store: st, db: db, log: log.With("component", "http")}
}

// Register mounts every route on e.
func (h *Handler) Register(e *echo.Echo) {
	e.GET("/healthz", h.health)

	e.PUT("/unit-groups/:noc", h.putUnitGroup)
	e.GET("/unit-groups/:noc", h.getUnitGroup)
	e.DELETE("/unit-groups/:noc", h.deleteUnitGroup)
	e.POST("/unit-groups/:noc/sections", h.postSection)
	e.GET("/unit-groups/:noc/sections", h.getSections)

	e.PUT("/economic-regions/:code", h.putEconomicRegion)
	e.GET("/economic-regions", h.listEconomicRegions)
	e.GET("/economic-regions/:code", h.getEconomicRegion)
	e.DELETE("/economic-regions/:code", h.deleteEconomicRegion)

	e.POST("/program-areas", h.postProgramArea)
	e.GET("/program-areas", h.listProgramAreas)
	e.GET("/program-areas/:id", h.getProgramArea)
	e.DELETE("/program-areas/:id", h.deleteProgramArea)

	e.PUT("/programs/:nid", h.putProgram)
	e.GET("/programs", h.listPrograms)
	e.GET("/programs/:nid", h.getProgram)
	e.DELETE("/programs/:nid", h.deleteProgram)

	e.POST("/outlooks", h.postOutlook)
	e.GET("/outlooks", h.queryOutlooks)
	e.GET("/outlooks/:id", h.getOutlook)
}

type errorResponse struct {
	Error string      `json:"error"`
	Kind  apperr.Kind `json:"kind,omitempty"`
}

// StatusOf maps an error to its HTTP status.
func StatusOf(err error) int {
	var he *echo.HTTPError
	if errors.As(err, &he) {
		return he.Code
	}
	switch apperr.KindOf(err) {
	case apperr.Validation:
		return http.StatusBadRequest
	case apperr.NotFound:
		return http.StatusNotFound
	case apperr.Conflict:
		return http.StatusConflict
	case apperr.Reference:
		return http.StatusUnprocessableEntity
	case apperr.Transient:
		return http.StatusServiceUnavailable
	}
	return http.StatusInternalServerError
}

// ErrorHandler renders errors as JSON. Internal errors are logged, their
// text is not returned.
func ErrorHandler(log *logger.Logger) echo.HTTPErrorHandler {
	return func(err error, c echo.Context) {
		if c.Response().Committed {
			return
		}
		code := StatusOf(err)
		resp := errorResponse{Error: err.Error(), Kind: apperr.KindOf(err)}

		var he *echo.HTTPError
		switch {
		case errors.As(err, &he):
			if msg, ok := he.Message.(string); ok {
				resp.Error = msg
			} else {
				resp.Error = http.StatusText(he.Code)
			}
		case code >= http.StatusInternalServerError:
			log.Error("request failed", "method", c.Request().Method, "path", c.Path(), "status", code, "error", err)
			if code == http.StatusInternalServerError {
				resp.Error = http.StatusText(code)
			}
		}

		if c.Request().Method == http.MethodHead {
			_ = c.NoContent(code)
			return
		}
		_ = c.JSON(code, resp)
	}
}

func (h *Handler) health(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), 2*time.Second)
	defer cancel()
	if err := h.db.PingContext(ctx); err != nil {
		h.log.Warn("health check failed", "error", err)
		return c.JSON(http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
	}
	return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
}

func pathInt(c echo.Context, name string) (int, error) {
	n, err := strconv.Atoi(c.Param(name))
	if err != nil || n <= 0 {
		return 0, apperr.Newf(apperr.Validation, "", "%s must be a positive integer, got %q", name, c.Param(name))
	}
	return n, nil
}

// parseDate accepts a calendar date or an RFC 3339 timestamp.
func parseDate(field, v string) (time.Time, error) {
	if t, err := time.Parse(time.DateOnly, v); err == nil {
		return t, nil
	}
	t, err := time.Parse(time.RFC3339, v)
	if err != nil {
		return time.Time{}, apperr.Newf(apperr.Validation, "", "%s must be YYYY-MM-DD or RFC 3339, got %q", field, v)
	}
	return t, nil
}

func bind(c echo.Context, v interface{}) error {
	if err := c.Bind(v); err != nil {
		var he *echo.HTTPError
		if errors.As(err, &he) {
			return apperr.Wrap(apperr.Validation, "", err)
		}
		return err
	}
	return nil
}
