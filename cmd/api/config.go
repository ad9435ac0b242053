package main

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"roadtrip/internal/ratelimiter"
)

type config struct {
	addr        string
	env         string
	apiURL      string
	frontendURL string
	db          dbConfig
	auth        authConfig
	redisURL    string
	rateLimiter ratelimiter.Config
	images      imagesConfig
	upstream    upstreamConfig
	mail        mailConfig
	natsURL     string
}

type dbConfig struct {
	driver       string
	mongoURI     string
	mongoDB      string
	addr         string
	maxOpenConns int
	maxIdleTime  string
}

type authConfig struct {
	basic basicConfig
	token tokenConfig
}

type tokenConfig struct {
	secret string
	exp    time.Duration
	iss    string
}

type basicConfig struct {
	user string
	pass string
}

type imagesConfig struct {
	provider      string
	cloudinaryURL string
	minio         minioConfig
}

type minioConfig struct {
	endpoint  string
	accessKey string
	secretKey string
	bucket    string
	useSSL    bool
	publicURL string
}

type upstreamConfig struct {
	weatherKey string
	placesKey  string
	routeKey   string
}

type mailConfig struct {
	host     string
	port     int
	username string
	password string
	from     string
}

func (c config) isDevelopment() bool {
	return c.env == "" || c.env == "development"
}

// env resolves keys from the process environment first and then from the
// optional YAML file named by CONFIG_FILE.
type env struct {
	file map[string]string
	errs []error
}

func newEnv() (*env, error) {
	e := &env{file: map[string]string{}}

	path := os.Getenv("CONFIG_FILE")
	if path == "" {
		return e, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, &e.file); err != nil {
		return nil, fmt.Errorf("parse config file %s: %w", path, err)
	}
	return e, nil
}

func (e *env) str(key, fallback string) string {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		return v
	}
	if v, ok := e.file[key]; ok && v != "" {
		return v
	}
	return fallback
}

func (e *env) int(key string, fallback int) int {
	raw := e.str(key, "")
	if raw == "" {
		return fallback
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		e.errs = append(e.errs, fmt.Errorf("%s: %q is not an integer", key, raw))
		return fallback
	}
	return v
}

func (e *env) bool(key string, fallback bool) bool {
	raw := e.str(key, "")
	if raw == "" {
		return fallback
	}
	v, err := strconv.ParseBool(raw)
	if err != nil {
		e.errs = append(e.errs, fmt.Errorf("%s: %q is not a boolean", key, raw))
		return fallback
	}
	return v
}

func (e *env) duration(key string, fallback time.Duration) time.Duration {
	raw := e.str(key, "")
	if raw == "" {
		return fallback
	}
	v, err := time.ParseDuration(raw)
	if err != nil {
		e.errs = append(e.errs, fmt.Errorf("%s: %q is not a duration", key, raw))
		return fallback
	}
	return v
}

// loadConfig reads .env when present, then the environment and CONFIG_FILE.
func loadConfig() (config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return config{}, fmt.Errorf("load .env: %w", err)
	}

	e, err := newEnv()
	if err != nil {
		return config{}, err
	}

	cfg := config{
		addr:        e.str("ADDR", ":5000"),
		env:         e.str("ENV", "development"),
		apiURL:      e.str("EXTERNAL_URL", "localhost:5000"),
		frontendURL: e.str("FRONTEND_URL", "http://localhost:3000"),
		db: dbConfig{
			driver:       e.str("DB_DRIVER", "mongo"),
			mongoURI:     e.str("MONGO_URI", "mongodb://localhost:27017"),
			mongoDB:      e.str("MONGO_DB", "roadtrip"),
			addr:         e.str("DB_ADDR", ""),
			maxOpenConns: e.int("DB_MAX_OPEN_CONNS", 30),
			maxIdleTime:  e.str("DB_MAX_IDLE_TIME", "15m"),
		},
		auth: authConfig{
			basic: basicConfig{
				user: e.str("AUTH_BASIC_USER", ""),
				pass: e.str("AUTH_BASIC_PASS", ""),
			},
			token: tokenConfig{
				secret: e.str("JWT_SECRET", ""),
				exp:    e.duration("JWT_EXPIRE", 7*24*time.Hour),
				iss:    "roadtrip",
			},
		},
		redisURL: e.str("REDIS_URL", ""),
		rateLimiter: ratelimiter.Config{
			RequestsPerTimeFrame: e.int("RATELIMITER_REQUESTS_COUNT", 100),
			TimeFrame:            e.duration("RATELIMITER_WINDOW", 15*time.Minute),
			Enabled:              e.bool("RATE_LIMITER_ENABLED", true),
		},
		images: imagesConfig{
			provider:      e.str("IMAGE_STORE", "cloudinary"),
			cloudinaryURL: e.str("CLOUDINARY_URL", ""),
			minio: minioConfig{
				endpoint:  e.str("MINIO_ENDPOINT", ""),
				accessKey: e.str("MINIO_ACCESS_KEY", ""),
				secretKey: e.str("MINIO_SECRET_KEY", ""),
				bucket:    e.str("MINIO_BUCKET", "roadtrip"),
				useSSL:    e.bool("MINIO_USE_SSL", false),
				publicURL: e.str("MINIO_PUBLIC_URL", ""),
			},
		},
		upstream: upstreamConfig{
			weatherKey: e.str("WEATHER_API_KEY", ""),
			placesKey:  e.str("GEOAPIFY_API_KEY", ""),
			routeKey:   e.str("OPENROUTESERVICE_API_KEY", e.str("ORS_API_KEY", "")),
		},
		mail: mailConfig{
			host:     e.str("SMTP_HOST", ""),
			port:     e.int("SMTP_PORT", 587),
			username: e.str("SMTP_USERNAME", ""),
			password: e.str("SMTP_PASSWORD", ""),
			from:     e.str("MAIL_FROM", ""),
		},
		natsURL: e.str("NATS_URL", ""),
	}

	if cfg.auth.token.secret == "" {
		e.errs = append(e.errs, errors.New("JWT_SECRET is required"))
	}
	switch cfg.db.driver {
	case "mongo":
	case "postgres":
		if cfg.db.addr == "" {
			e.errs = append(e.errs, errors.New("DB_ADDR is required when DB_DRIVER=postgres"))
		}
	default:
		e.errs = append(e.errs, fmt.Errorf("DB_DRIVER: unknown driver %q", cfg.db.driver))
	}

	return cfg, errors.Join(e.errs...)
}
