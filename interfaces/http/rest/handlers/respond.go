// Package handlers implements the REST endpoints of thoughtweb.
package handlers

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	pkgerrors "thoughtweb/pkg/errors"
	"thoughtweb/pkg/utils"
)

type errorBody struct {
	Error     *pkgerrors.AppError `json:"error"`
	RequestID string              `json:"requestId,omitempty"`
}

func respondJSON(w http.ResponseWriter, logger *zap.Logger, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		logger.Error("Failed to encode response", zap.Error(err))
	}
}

// respondError writes err as a JSON error body with the status its
// AppError carries. Errors without one are reported as internal without
// their cause.
func respondError(w http.ResponseWriter, r *http.Request, logger *zap.Logger, err error) {
	appErr := pkgerrors.GetAppError(err)
	if appErr == nil {
		appErr = pkgerrors.NewInternalError("internal server error").WithCause(err)
	}
	status := pkgerrors.HTTPStatus(appErr)
	reqID := middleware.GetReqID(r.Context())

	if status >= http.StatusInternalServerError {
		logger.Error("Request failed",
			zap.String("path", r.URL.Path),
			zap.String("requestID", reqID),
			zap.Error(err),
		)
	} else {
		logger.Debug("Request rejected",
			zap.String("path", r.URL.Path),
			zap.String("type", string(appErr.Type)),
			zap.String("message", appErr.Message),
		)
	}
	respondJSON(w, logger, status, errorBody{Error: appErr, RequestID: reqID})
}

// decodeJSON reads a JSON body into dst. An empty body is accepted when
// allowEmpty is set.
func decodeJSON(r *http.Request, dst any, allowEmpty bool) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		if errors.Is(err, io.EOF) && allowEmpty {
			return nil
		}
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			return pkgerrors.NewValidationError("request body too large").WithCode("BODY_TOO_LARGE")
		}
		return pkgerrors.NewValidationError("invalid request body: " + err.Error())
	}
	return nil
}

// bindJSON decodes a required body and validates it.
func bindJSON(r *http.Request, dst any) error {
	if err := decodeJSON(r, dst, false); err != nil {
		return err
	}
	return utils.ValidateStruct(dst)
}

func queryInt(r *http.Request, key string, def int) (int, error) {
	raw := r.URL.Query().Get(key)
	if raw == "" {
		return def, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil || v < 0 {
		return 0, pkgerrors.NewValidationError(key + " must be a non-negative integer")
	}
	return v, nil
}

func queryBool(r *http.Request, key string) (bool, error) {
	raw := r.URL.Query().Get(key)
	if raw == "" {
		return false, nil
	}
	v, err := strconv.ParseBool(raw)
	if err != nil {
		return false, pkgerrors.NewValidationError(key + " must be a boolean")
	}
	return v, nil
}
