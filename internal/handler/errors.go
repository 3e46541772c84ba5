package handler

import (
	"errors"
	"net/http"
	"strconv"

	"carenote-server/internal/service"
	"carenote-server/pkg/response"

	"go.uber.org/zap"
)

func statusFor(err error) int {
	switch {
	case errors.Is(err, service.ErrValidation):
		return http.StatusBadRequest
	case errors.Is(err, service.ErrUnauthorized):
		return http.StatusUnauthorized
	case errors.Is(err, service.ErrForbidden):
		return http.StatusForbidden
	case errors.Is(err, service.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, service.ErrConflict):
		return http.StatusConflict
	}
	return http.StatusInternalServerError
}

// writeServiceError maps a service error kind to its HTTP status. Storage
// and unclassified failures are logged and answered with a generic message.
func writeServiceError(w http.ResponseWriter, logger *zap.Logger, err error) {
	status := statusFor(err)
	if status == http.StatusInternalServerError {
		logger.Error("request failed", zap.Error(err))
		response.InternalError(w, "Internal server error")
		return
	}
	response.Error(w, status, err.Error())
}

// queryInt reads an optional integer query parameter. Absent means zero.
func queryInt(r *http.Request, name string) (int, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return 0, nil
	}
	return strconv.Atoi(raw)
}

func pageParams(r *http.Request) (page, limit int, ok bool) {
	page, err := queryInt(r, "page")
	if err != nil {
		return 0, 0, false
	}
	limit, err = queryInt(r, "limit")
	if err != nil {
		return 0, 0, false
	}
	return page, limit, true
}
