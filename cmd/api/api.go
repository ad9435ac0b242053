package main

import (
	"context"
	"errors"
	"expvar"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	httpSwagger "github.com/swaggo/http-swagger/v2"
	"go.uber.org/zap"

	"roadtrip/docs" // this is required to generate swagger docs
	"roadtrip/internal/auth"
	"roadtrip/internal/domain/storage"
	"roadtrip/internal/events"
	"roadtrip/internal/external/places"
	"roadtrip/internal/external/routing"
	"roadtrip/internal/external/weather"
	"roadtrip/internal/imagestore"
	"roadtrip/internal/mailer"
	"roadtrip/internal/ratelimiter"
)

type application struct {
	config        config
	store         *storage.Container
	logger        *zap.SugaredLogger
	images        imagestore.Uploader
	mailer        mailer.Client
	events        events.Publisher
	authenticator auth.Authenticator
	rateLimiter   ratelimiter.Limiter
	weather       *weather.Service
	places        *places.Service
	routes        *routing.Service
	metrics       *metrics

	// wg tracks background work that must finish before shutdown.
	wg sync.WaitGroup
}

// instrument hooks the adapter caches and upstream clients into the metrics.
func (app *application) instrument() {
	onResult := app.metrics.observeCache
	onError := func(name string, err error) {
		app.metrics.cacheErrors.WithLabelValues(name).Inc()
		app.logger.Warnw("cache store failure", "cache", name, "error", err.Error())
	}

	if app.weather != nil {
		for _, l := range app.weather.Loaders() {
			l.OnResult, l.OnError = onResult, onError
		}
		app.weather.Client().OnCall = app.metrics.observeUpstream
	}
	if app.places != nil {
		app.places.Loader().OnResult, app.places.Loader().OnError = onResult, onError
		app.places.Client().OnCall = app.metrics.observeUpstream
	}
	if app.routes != nil {
		app.routes.Loader().OnResult, app.routes.Loader().OnError = onResult, onError
		for _, c := range app.routes.Clients() {
			c.OnCall = app.metrics.observeUpstream
		}
	}
}

func (app *application) mount() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(app.RequestLogger)
	r.Use(app.Metrics)
	r.Use(middleware.Recoverer)

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{app.config.frontendURL, "https://*", "http://*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Auth-Token"},
		ExposedHeaders:   []string{"Retry-After", "X-RateLimit-Limit", "X-RateLimit-Remaining", "Deprecation"},
		AllowCredentials: true,
		MaxAge:           300, // Maximum value not ignored by any of major browsers
	}))

	// Set a timeout value on the request context (ctx), that will signal through ctx.Done() that the request has timed out and further processing should be stopped
	r.Use(middleware.Timeout(60 * time.Second))

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		writeJSONError(w, http.StatusNotFound, "Route Not Found")
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		writeJSONError(w, http.StatusMethodNotAllowed, "Method Not Allowed")
	})

	r.Get("/health", app.healthCheckHandler)

	r.Group(func(r chi.Router) {
		r.Use(app.BasicAuthMiddleware())
		docsURL := fmt.Sprintf("%s/swagger/doc.json", app.config.apiURL)
		r.Get("/swagger/*", httpSwagger.Handler(httpSwagger.URL(docsURL)))
		r.Get("/debug/vars", expvar.Handler().ServeHTTP)
		r.Handle("/metrics", app.metrics.handler())
	})

	r.Route("/api", func(r chi.Router) {
		r.Use(app.RateLimiterMiddleware)

		r.Route("/auth", func(r chi.Router) {
			r.Post("/register", app.registerUserHandler)
			r.Post("/login", app.loginHandler)
			r.With(app.AuthTokenMiddleware).Get("/profile", app.profileHandler)
		})

		r.Route("/users", func(r chi.Router) {
			r.Post("/", app.createUserHandler)
			r.Get("/profile/{userID}", app.getUserProfileHandler)

			r.Group(func(r chi.Router) {
				r.Use(app.AuthTokenMiddleware)
				r.Get("/", app.listUsersHandler)
				r.Put("/profile/{userID}", app.updateUserHandler)
				r.Put("/profile/{userID}/avatar", app.uploadAvatarHandler)
				r.Delete("/profile/{userID}", app.deleteUserHandler)
				r.Put("/{userID}/follow", app.followUserHandler)
				r.Put("/{userID}/unfollow", app.unfollowUserHandler)
			})
		})

		r.Route("/roadtrips", func(r chi.Router) {
			r.Group(func(r chi.Router) {
				r.Use(app.OptionalAuthMiddleware)
				r.Get("/", app.listRoadTripsHandler)
				r.Get("/search", app.searchRoadTripsHandler)
				r.Get("/{tripID}", app.getRoadTripHandler)
			})

			r.Group(func(r chi.Router) {
				r.Use(app.AuthTokenMiddleware)
				r.Post("/", app.createRoadTripHandler)
				r.Get("/user/mytrips", app.myRoadTripsHandler)
				r.Put("/{tripID}", app.updateRoadTripHandler)
				r.Delete("/{tripID}", app.deleteRoadTripHandler)
				r.Put("/{tripID}/like", app.likeRoadTripHandler)
				r.Put("/{tripID}/save", app.saveRoadTripHandler)
			})
		})

		r.Route("/comments", func(r chi.Router) {
			r.With(app.OptionalAuthMiddleware).Get("/{tripID}", app.listCommentsHandler)

			r.Group(func(r chi.Router) {
				r.Use(app.AuthTokenMiddleware)
				r.Post("/{tripID}", app.createCommentHandler)
				r.Put("/{commentID}", app.updateCommentHandler)
				r.Delete("/{commentID}", app.deleteCommentHandler)
				r.Put("/{commentID}/like", app.likeCommentHandler)
			})
		})

		r.Route("/reviews", func(r chi.Router) {
			r.With(app.OptionalAuthMiddleware).Get("/trip/{tripID}", app.listReviewsHandler)

			r.Group(func(r chi.Router) {
				r.Use(app.AuthTokenMiddleware)
				r.Post("/{tripID}", app.createReviewHandler)
				r.Put("/{reviewID}", app.updateReviewHandler)
				r.Delete("/{reviewID}", app.deleteReviewHandler)
				r.Put("/{reviewID}/helpful", app.helpfulReviewHandler)
			})
		})

		r.Get("/weather", app.currentWeatherHandler)
		r.Get("/weather/forecast", app.forecastHandler)
		r.Get("/places", app.nearbyPlacesHandler)
		r.Post("/route", app.routeHandler)
	})

	return r
}

func (app *application) run(mux http.Handler) error {
	// Docs
	docs.SwaggerInfo.Version = version
	docs.SwaggerInfo.Host = app.config.apiURL
	docs.SwaggerInfo.BasePath = "/api"

	srv := &http.Server{
		Addr:         app.config.addr,
		Handler:      mux,
		WriteTimeout: time.Second * 90,
		ReadTimeout:  time.Second * 30,
		IdleTimeout:  time.Minute,
	}

	// Implementing graceful shutdown
	shutdown := make(chan error)

	go func() {
		quit := make(chan os.Signal, 1)

		signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
		s := <-quit

		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		app.logger.Infow("signal caught", "signal", s.String())

		err := srv.Shutdown(ctx)

		app.logger.Infow("completing background tasks", "addr", app.config.addr)
		app.wg.Wait()

		shutdown <- err
	}()

	app.logger.Infow("server has started", "addr", app.config.addr, "env", app.config.env)

	err := srv.ListenAndServe()
	if !errors.Is(err, http.ErrServerClosed) {
		return err
	}

	err = <-shutdown
	if err != nil {
		return err
	}

	app.logger.Infow("server has stopped", "addr", app.config.addr, "env", app.config.env)

	return nil
}
