package main

import (
	"errors"
	"net/http"
	"strconv"

	"roadtrip/internal/external"
	"roadtrip/internal/ratelimiter"
)

func (app *application) internalServerError(w http.ResponseWriter, r *http.Request, err error) {
	app.logger.Errorw("internal error", "method", r.Method, "path", r.URL.Path, "request_id", requestID(r), "error", err.Error())

	msg := "the server encountered a problem"
	if app.config.isDevelopment() {
		msg = err.Error()
	}
	writeJSONError(w, http.StatusInternalServerError, msg)
}

// badRequestResponse answers 400 with err's message. Validation failures are
// rewritten into a readable sentence.
func (app *application) badRequestResponse(w http.ResponseWriter, r *http.Request, err error) {
	app.logger.Warnw("bad request", "method", r.Method, "path", r.URL.Path, "error", err.Error())

	writeJSONError(w, http.StatusBadRequest, validationMessage(err))
}

func (app *application) badRequestMessage(w http.ResponseWriter, r *http.Request, msg string) {
	app.logger.Warnw("bad request", "method", r.Method, "path", r.URL.Path, "error", msg)

	writeJSONError(w, http.StatusBadRequest, msg)
}

// conflictResponse reports a duplicate unique field. Clients of this API
// expect 400 for conflicts.
func (app *application) conflictResponse(w http.ResponseWriter, r *http.Request, msg string) {
	app.logger.Warnw("conflict", "method", r.Method, "path", r.URL.Path, "error", msg)

	writeJSONError(w, http.StatusBadRequest, msg)
}

func (app *application) notFoundResponse(w http.ResponseWriter, r *http.Request, msg string) {
	app.logger.Warnw("not found", "method", r.Method, "path", r.URL.Path, "error", msg)

	writeJSONError(w, http.StatusNotFound, msg)
}

func (app *application) forbiddenResponse(w http.ResponseWriter, r *http.Request, msg string) {
	app.logger.Warnw("forbidden", "method", r.Method, "path", r.URL.Path, "error", msg)

	writeJSONError(w, http.StatusForbidden, msg)
}

func (app *application) unauthorizedErrorResponse(w http.ResponseWriter, r *http.Request, msg string, err error) {
	fields := []any{"method", r.Method, "path", r.URL.Path}
	if err != nil {
		fields = append(fields, "error", err.Error())
	}
	app.logger.Warnw("unauthorized", fields...)

	writeJSONError(w, http.StatusUnauthorized, msg)
}

func (app *application) unauthorizedBasicErrorResponse(w http.ResponseWriter, r *http.Request, err error) {
	app.logger.Warnw("unauthorized basic error", "method", r.Method, "path", r.URL.Path, "error", err.Error())

	w.Header().Set("WWW-Authenticate", `Basic realm="restricted", charset="UTF-8"`)
	writeJSONError(w, http.StatusUnauthorized, "unauthorized")
}

func (app *application) rateLimitExceededResponse(w http.ResponseWriter, r *http.Request, d ratelimiter.Decision) {
	retryAfter := d.RetryAfterSeconds()
	app.logger.Warnw("rate limit exceeded", "method", r.Method, "path", r.URL.Path, "retry_after", retryAfter)

	w.Header().Set("Retry-After", strconv.Itoa(retryAfter))
	writeJSON(w, http.StatusTooManyRequests, map[string]any{
		"success":    false,
		"message":    "Too many requests from this IP, please try again later.",
		"status":     http.StatusTooManyRequests,
		"retryAfter": retryAfter,
	})
}

// externalErrorResponse maps adapter failures onto the HTTP taxonomy.
func (app *application) externalErrorResponse(w http.ResponseWriter, r *http.Request, err error, fallback string) {
	msg := external.Message(err, fallback)

	switch {
	case errors.Is(err, external.ErrInvalidInput):
		app.badRequestMessage(w, r, msg)
	case errors.Is(err, external.ErrNotFound):
		app.notFoundResponse(w, r, msg)
	case errors.Is(err, external.ErrUpstreamTimeout):
		app.logger.Warnw("upstream timeout", "path", r.URL.Path, "error", err.Error())
		writeJSONError(w, http.StatusRequestTimeout, msg)
	case errors.Is(err, external.ErrNotConfigured):
		app.logger.Errorw("upstream not configured", "path", r.URL.Path, "error", err.Error())
		writeJSONError(w, http.StatusInternalServerError, msg)
	default:
		app.logger.Errorw("upstream failure", "path", r.URL.Path, "error", err.Error())
		if !app.config.isDevelopment() {
			msg = fallback
		}
		writeJSONError(w, http.StatusInternalServerError, msg)
	}
}
