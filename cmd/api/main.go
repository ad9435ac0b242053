package main

import (
	"context"
	"expvar"
	"fmt"
	"net/http"
	"os"
	"runtime"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"roadtrip/internal/auth"
	"roadtrip/internal/cache"
	"roadtrip/internal/db"
	"roadtrip/internal/domain/storage"
	"roadtrip/internal/events"
	"roadtrip/internal/external/places"
	"roadtrip/internal/external/routing"
	"roadtrip/internal/external/weather"
	"roadtrip/internal/imagestore"
	"roadtrip/internal/mailer"
	"roadtrip/internal/ratelimiter"
)

// NewLogger creates a colored console logger for development and a JSON
// logger everywhere else.
func NewLogger(env string) (*zap.SugaredLogger, error) {
	encoderCfg := zap.NewProductionEncoderConfig()
	encoderCfg.EncodeTime = zapcore.ISO8601TimeEncoder

	var encoder zapcore.Encoder
	if env == "" || env == "development" {
		encoderCfg.EncodeLevel = zapcore.CapitalColorLevelEncoder
		encoder = zapcore.NewConsoleEncoder(encoderCfg)
	} else {
		encoder = zapcore.NewJSONEncoder(encoderCfg)
	}

	core := zapcore.NewCore(encoder, zapcore.AddSync(os.Stdout), zapcore.InfoLevel)

	return zap.New(core).Sugar(), nil
}

var version = "1.0.0"

//	@title			RoadTrip Planner API
//	@description	API for planning, sharing and reviewing road trips.

//	@contact.name	API Support
//	@contact.url	http://www.swagger.io/support
//	@contact.email	support@swagger.io

//	@license.name	Apache 2.0
//	@license.url	http://www.apache.org/licenses/LICENSE-2.0.html

//	@BasePath					/api
//	@securityDefinitions.apikey	ApiKeyAuth
//	@in							header
//	@name						Authorization
//	@description

func main() {
	cfg, err := loadConfig()
	if err != nil {
		fmt.Fprintln(os.Stderr, "invalid configuration:", err)
		os.Exit(1)
	}

	logger, err := NewLogger(cfg.env)
	if err != nil {
		fmt.Println("Error creating logger:", err)
		return
	}
	defer logger.Sync()

	ctx := context.Background()

	// Database
	var store *storage.Container
	switch cfg.db.driver {
	case "postgres":
		pool, err := db.New(cfg.db.addr, int32(cfg.db.maxOpenConns), cfg.db.maxIdleTime)
		if err != nil {
			logger.Fatal(err)
		}
		defer pool.Close()

		applied, err := db.Migrate(ctx, pool)
		if err != nil {
			logger.Fatal(err)
		}
		logger.Infow("database connection pool established", "driver", "postgres", "migrations_applied", len(applied))

		store = storage.NewPostgresContainer(pool)
		expvar.Publish("database", expvar.Func(func() any {
			s := pool.Stat()
			return map[string]int32{
				"total_conns":    s.TotalConns(),
				"idle_conns":     s.IdleConns(),
				"acquired_conns": s.AcquiredConns(),
			}
		}))
	default:
		client, database, err := db.NewMongo(ctx, cfg.db.mongoURI, cfg.db.mongoDB)
		if err != nil {
			logger.Fatal(err)
		}
		defer client.Disconnect(context.Background())
		logger.Infow("database connection established", "driver", "mongo", "database", cfg.db.mongoDB)

		store = storage.NewMongoContainer(database)
	}

	// Cache and rate limiter: Redis when configured so that several
	// instances share counters, process memory otherwise.
	var (
		cacheStore  cache.Store
		rateLimiter ratelimiter.Limiter
	)
	if cfg.redisURL != "" {
		rdb, err := cache.NewRedisClientFromURL(ctx, cfg.redisURL)
		if err != nil {
			logger.Fatal(err)
		}
		defer rdb.Close()
		logger.Info("redis connection established")

		cacheStore = cache.NewRedis(rdb)
		rateLimiter = ratelimiter.NewRedisLimiter(rdb, cfg.rateLimiter.RequestsPerTimeFrame, cfg.rateLimiter.TimeFrame)
		publishRedisStats(rdb)
	} else {
		cacheStore = cache.NewMemory()
		fixed := ratelimiter.NewFixedWindowLimiter(cfg.rateLimiter.RequestsPerTimeFrame, cfg.rateLimiter.TimeFrame)
		go fixed.RunJanitor(ctx)
		rateLimiter = fixed
	}

	images, err := newImageStore(ctx, cfg.images)
	if err != nil {
		logger.Fatal(err)
	}
	if _, disabled := images.(imagestore.Disabled); disabled {
		logger.Warn("no image storage configured, uploads will fail")
	}

	var mail mailer.Client = mailer.Noop{}
	if cfg.mail.host != "" {
		smtp, err := mailer.NewSMTP(mailer.SMTPConfig{
			Host:     cfg.mail.host,
			Port:     cfg.mail.port,
			Username: cfg.mail.username,
			Password: cfg.mail.password,
			From:     cfg.mail.from,
		})
		if err != nil {
			logger.Fatal(err)
		}
		mail = smtp
	}

	var publisher events.Publisher = events.Noop{}
	if cfg.natsURL != "" {
		nc, err := events.NewNATS(cfg.natsURL)
		if err != nil {
			logger.Fatal(err)
		}
		publisher = nc
		logger.Infow("nats connection established", "url", cfg.natsURL)
	}
	defer publisher.Close()

	// Authenticator
	jwtAuthenticator := auth.NewJWTAuthenticator(
		cfg.auth.token.secret,
		cfg.auth.token.iss,
		cfg.auth.token.iss,
		cfg.auth.token.exp,
	)

	upstreamHTTP := &http.Client{}

	app := &application{
		config:        cfg,
		store:         store,
		logger:        logger,
		images:        images,
		mailer:        mail,
		events:        publisher,
		authenticator: jwtAuthenticator,
		rateLimiter:   rateLimiter,
		weather:       weather.New(weather.Config{APIKey: cfg.upstream.weatherKey, HTTP: upstreamHTTP}, cacheStore),
		places:        places.New(places.Config{APIKey: cfg.upstream.placesKey, HTTP: upstreamHTTP}, cacheStore),
		routes:        routing.New(routing.Config{APIKey: cfg.upstream.routeKey, HTTP: upstreamHTTP}, cacheStore),
		metrics:       newMetrics(),
	}
	app.instrument()

	// Metrics collected http://localhost:5000/debug/vars
	expvar.NewString("version").Set(version)
	expvar.Publish("goroutines", expvar.Func(func() any {
		return runtime.NumGoroutine()
	}))

	mux := app.mount()

	logger.Fatal(app.run(mux))
}

func newImageStore(ctx context.Context, cfg imagesConfig) (imagestore.Uploader, error) {
	switch cfg.provider {
	case "minio":
		return imagestore.NewMinIO(ctx, imagestore.MinIOConfig{
			Endpoint:  cfg.minio.endpoint,
			AccessKey: cfg.minio.accessKey,
			SecretKey: cfg.minio.secretKey,
			Bucket:    cfg.minio.bucket,
			UseSSL:    cfg.minio.useSSL,
			PublicURL: cfg.minio.publicURL,
		})
	case "cloudinary":
		if cfg.cloudinaryURL == "" {
			return imagestore.Disabled{}, nil
		}
		return imagestore.NewCloudinary(cfg.cloudinaryURL)
	case "", "none":
		return imagestore.Disabled{}, nil
	default:
		return nil, fmt.Errorf("IMAGE_STORE: unknown provider %q", cfg.provider)
	}
}

func publishRedisStats(rdb *redis.Client) {
	expvar.Publish("redis", expvar.Func(func() any {
		s := rdb.PoolStats()
		return map[string]uint32{
			"hits":        s.Hits,
			"misses":      s.Misses,
			"timeouts":    s.Timeouts,
			"total_conns": s.TotalConns,
			"idle_conns":  s.IdleConns,
		}
	}))
}
