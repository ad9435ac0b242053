package main

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"roadtrip/internal/auth"
	"roadtrip/internal/domain/users"
)

const (
	authTokenHeader = "x-auth-token"

	msgNoToken       = "No token provided, authorization denied"
	msgTokenExpired  = "Token expired, please login again"
	msgTokenInvalid  = "Invalid token, authorization denied"
	msgUserNotFound  = "User not found, authorization denied"
	msgAccountClosed = "Account is deactivated"
)

func requestID(r *http.Request) string {
	return middleware.GetReqID(r.Context())
}

// RequestLogger writes one structured line per request once it completes.
func (app *application) RequestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()

		defer func() {
			status := ww.Status()
			if status == 0 {
				status = http.StatusOK
			}
			fields := []any{
				"method", r.Method,
				"path", r.URL.Path,
				"status", status,
				"bytes", ww.BytesWritten(),
				"duration", time.Since(start).String(),
				"remote_addr", r.RemoteAddr,
				"request_id", requestID(r),
			}
			if status >= http.StatusInternalServerError {
				app.logger.Errorw("request", fields...)
				return
			}
			app.logger.Infow("request", fields...)
		}()

		next.ServeHTTP(ww, r)
	})
}

// Metrics records request counts and latencies labelled by route pattern so
// path parameters do not explode the label space.
func (app *application) Metrics(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		app.metrics.httpRequestsInFlight.Inc()
		defer app.metrics.httpRequestsInFlight.Dec()

		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()

		next.ServeHTTP(ww, r)

		path := "unmatched"
		if rctx := chi.RouteContext(r.Context()); rctx != nil {
			if pattern := rctx.RoutePattern(); pattern != "" {
				path = pattern
			}
		}
		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}

		app.metrics.httpRequestsTotal.WithLabelValues(r.Method, path, strconv.Itoa(status)).Inc()
		app.metrics.httpRequestDuration.WithLabelValues(r.Method, path).Observe(time.Since(start).Seconds())
	})
}

// clientIP is the limiter key. RealIP has already rewritten RemoteAddr from
// the forwarding headers.
func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

func (app *application) RateLimiterMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !app.config.rateLimiter.Enabled || app.rateLimiter == nil {
			next.ServeHTTP(w, r)
			return
		}

		decision, err := app.rateLimiter.Allow(r.Context(), clientIP(r))
		if err != nil {
			// A broken limiter backend must not take the API down with it.
			app.logger.Errorw("rate limiter unavailable", "error", err.Error(), "request_id", requestID(r))
			next.ServeHTTP(w, r)
			return
		}

		w.Header().Set("X-RateLimit-Limit", strconv.Itoa(decision.Limit))
		w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(decision.Remaining))

		if !decision.Allowed {
			app.metrics.rateLimited.Inc()
			app.rateLimitExceededResponse(w, r, decision)
			return
		}

		next.ServeHTTP(w, r)
	})
}

// tokenFromRequest reads the session token from x-auth-token or a Bearer
// Authorization header.
func tokenFromRequest(r *http.Request) string {
	if token := strings.TrimSpace(r.Header.Get(authTokenHeader)); token != "" {
		return token
	}

	parts := strings.SplitN(r.Header.Get("Authorization"), " ", 2)
	if len(parts) == 2 && strings.EqualFold(parts[0], "Bearer") {
		return strings.TrimSpace(parts[1])
	}
	return ""
}

// authenticate resolves the token to an active user. On failure it returns
// the client-facing message.
func (app *application) authenticate(ctx context.Context, token string) (*users.User, string, error) {
	claims, err := app.authenticator.ValidateToken(token)
	if err != nil {
		switch {
		case errors.Is(err, auth.ErrTokenMissing):
			return nil, msgNoToken, err
		case errors.Is(err, auth.ErrTokenExpired):
			return nil, msgTokenExpired, err
		default:
			return nil, msgTokenInvalid, err
		}
	}

	user, err := app.store.Users.GetByID(ctx, claims.Subject)
	if err != nil {
		if errors.Is(err, users.ErrNotFound) {
			return nil, msgUserNotFound, err
		}
		return nil, "", err
	}
	if !user.IsActive {
		return nil, msgAccountClosed, fmt.Errorf("user %s is deactivated", user.ID)
	}
	return user, "", nil
}

func (app *application) AuthTokenMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := tokenFromRequest(r)
		if token == "" {
			app.unauthorizedErrorResponse(w, r, msgNoToken, nil)
			return
		}

		user, msg, err := app.authenticate(r.Context(), token)
		if err != nil {
			if msg == "" {
				app.internalServerError(w, r, err)
				return
			}
			app.unauthorizedErrorResponse(w, r, msg, err)
			return
		}

		ctx := context.WithValue(r.Context(), userCtx, user)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// OptionalAuthMiddleware attaches the user when a token is sent. Requests
// without a token pass through anonymously; a bad token is still rejected.
func (app *application) OptionalAuthMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := tokenFromRequest(r)
		if token == "" {
			next.ServeHTTP(w, r)
			return
		}

		user, msg, err := app.authenticate(r.Context(), token)
		if err != nil {
			if msg == "" {
				app.internalServerError(w, r, err)
				return
			}
			app.unauthorizedErrorResponse(w, r, msg, err)
			return
		}

		ctx := context.WithValue(r.Context(), userCtx, user)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func (app *application) BasicAuthMiddleware() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			// read the auth header
			authHeader := r.Header.Get("Authorization")
			if authHeader == "" {
				app.unauthorizedBasicErrorResponse(w, r, fmt.Errorf("authorization header is missing"))
				return
			}

			// parse it -> get the base64
			parts := strings.Split(authHeader, " ")
			if len(parts) != 2 || parts[0] != "Basic" {
				app.unauthorizedBasicErrorResponse(w, r, fmt.Errorf("authorization header is malformed"))
				return
			}

			decoded, err := base64.StdEncoding.DecodeString(parts[1])
			if err != nil {
				app.unauthorizedBasicErrorResponse(w, r, err)
				return
			}

			username := app.config.auth.basic.user
			pass := app.config.auth.basic.pass

			creds := strings.SplitN(string(decoded), ":", 2)
			if username == "" || len(creds) != 2 || creds[0] != username || creds[1] != pass {
				app.unauthorizedBasicErrorResponse(w, r, fmt.Errorf("invalid credentials"))
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
