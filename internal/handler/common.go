package handler

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/parking-reservation/internal/middleware"
	"github.com/iliyamo/parking-reservation/internal/model"
	"github.com/iliyamo/parking-reservation/internal/service"
)

// getUserID extracts the user_id set by JWTAuth and converts it to uint64.
func getUserID(c echo.Context) (uint64, error) {
	switch t := c.Get(middleware.CtxUserID).(type) {
	case uint64:
		if t != 0 {
			return t, nil
		}
	case int:
		if t > 0 {
			return uint64(t), nil
		}
	case string:
		if n, err := strconv.ParseUint(t, 10, 64); err == nil && n != 0 {
			return n, nil
		}
	}
	return 0, errors.New("invalid user_id in context")
}

// actorFrom builds the service actor for the authenticated caller.
func actorFrom(c echo.Context) (service.Actor, error) {
	uid, err := getUserID(c)
	if err != nil {
		return service.Actor{}, err
	}
	role, _ := c.Get(middleware.CtxRole).(string)
	return service.Actor{UserID: uid, Admin: role == model.RoleAdmin}, nil
}

// parseID reads a positive numeric path parameter.
func parseID(c echo.Context, name string) (uint64, bool) {
	id, err := strconv.ParseUint(c.Param(name), 10, 64)
	return id, err == nil && id != 0
}

var kindStatus = map[service.Kind]int{
	service.KindValidation:    http.StatusBadRequest,
	service.KindNotFound:      http.StatusNotFound,
	service.KindNoCapacity:    http.StatusConflict,
	service.KindNotAuthorized: http.StatusForbidden,
	service.KindInvalidState:  http.StatusConflict,
	service.KindCrossFacility: http.StatusForbidden,
	service.KindTransient:     http.StatusServiceUnavailable,
}

// statusForKind maps a service error kind to its HTTP status.
func statusForKind(k service.Kind) int {
	if st, ok := kindStatus[k]; ok {
		return st
	}
	return http.StatusInternalServerError
}

// writeError renders err as {error, kind}.  Untyped errors are logged
// and hidden behind a generic message.
func writeError(c echo.Context, log *slog.Logger, err error) error {
	var se *service.Error
	if errors.As(err, &se) {
		if se.Err != nil {
			log.Warn("request failed", "path", c.Path(), "kind", se.Kind, "error", se.Err)
		}
		return c.JSON(statusForKind(se.Kind), echo.Map{"error": se.Message, "kind": se.Kind})
	}
	var verrs middleware.ValidationErrors
	if errors.As(err, &verrs) {
		return c.JSON(http.StatusBadRequest, echo.Map{
			"error":  "invalid request body",
			"kind":   service.KindValidation,
			"fields": verrs,
		})
	}
	log.Error("request failed", "path", c.Path(), "error", err)
	return c.JSON(http.StatusInternalServerError, echo.Map{"error": "internal error"})
}

// bindAndValidate binds the request body into v and runs the registered
// validator over it.
func bindAndValidate(c echo.Context, v interface{}) error {
	if err := c.Bind(v); err != nil {
		return &service.Error{Kind: service.KindValidation, Message: "invalid request body"}
	}
	return c.Validate(v)
}
