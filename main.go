package main

import (
	"crypto/tls"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/MicahParks/keyfunc"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/redis/go-redis/v9"
	log "github.com/sirupsen/logrus"

	"taskboard-api/api"
	"taskboard-api/storage"
)

func main() {
	if dbg, err := strconv.ParseBool(os.Getenv("DEBUG")); err == nil && dbg {
		log.SetLevel(log.DebugLevel)
	}

	store, err := newStore()
	if err != nil {
		log.Fatalf("storage: %v", err)
	}

	secret := os.Getenv("SESSION_SECRET")
	if secret == "" {
		log.Fatal("missing SESSION_SECRET")
	}

	var redisClient *redis.Client
	if conn := os.Getenv("REDIS_CONNECTION_STRING"); conn != "" {
		redisClient = redis.NewClient(parseRedisOptions(conn))
	} else {
		log.Warn("redis not configured; list caching and logout revocation disabled")
	}

	var jwks *keyfunc.JWKS
	if jwksURL := os.Getenv("SESSION_JWKS_URL"); jwksURL != "" {
		jwks, err = keyfunc.Get(jwksURL, keyfunc.Options{})
		if err != nil {
			log.Fatalf("jwks: %v", err)
		}
	}

	var revoker api.Revoker
	var wrapped api.Store = store
	if redisClient != nil {
		revoker = api.NewRedisRevoker(redisClient)
		cacheTTL := time.Minute
		if v := os.Getenv("CACHE_TTL"); v != "" {
			d, err := time.ParseDuration(v)
			if err != nil || d <= 0 {
				log.Fatalf("invalid CACHE_TTL %q", v)
			}
			cacheTTL = d
		}
		wrapped = storage.NewCache(store, redisClient, cacheTTL)
	}

	auth := api.NewAuth([]byte(secret), jwks, os.Getenv("SESSION_AUDIENCE"), os.Getenv("SESSION_ISSUER"), revoker)

	secureCookies := true
	if v, err := strconv.ParseBool(os.Getenv("COOKIE_SECURE")); err == nil {
		secureCookies = v
	}

	e := echo.New()
	e.Use(middleware.CORSWithConfig(corsConfig(os.Getenv("ALLOWED_ORIGINS"))))
	e.Use(api.GzipRequestMiddleware())

	logger := log.New()
	api.Register(e, wrapped, auth, logger, secureCookies)

	listenAddr := ":8080"
	if val, ok := os.LookupEnv("FUNCTIONS_CUSTOMHANDLER_PORT"); ok {
		listenAddr = ":" + val
	}

	e.Logger.Fatal(e.Start(listenAddr))
}

// newStore builds the configured backend: Azure Tables in production, sqlite
// for local development.
func newStore() (api.Store, error) {
	switch driver := strings.ToLower(os.Getenv("STORAGE_DRIVER")); driver {
	case "sqlite":
		path := os.Getenv("SQLITE_PATH")
		if path == "" {
			log.Fatal("missing SQLITE_PATH")
		}
		return storage.NewSQLite(path)
	case "", "aztables":
		connStr := os.Getenv("STORAGE_CONNECTION_STRING")
		tasksTable := os.Getenv("TASKS_TABLE")
		usersTable := os.Getenv("USERS_TABLE")
		if connStr == "" || tasksTable == "" || usersTable == "" {
			log.Fatal("missing storage config")
		}
		return storage.NewTables(connStr, tasksTable, usersTable)
	default:
		log.Fatalf("unsupported STORAGE_DRIVER %q", driver)
		return nil, nil
	}
}

// corsConfig builds the CORS policy. With ALLOWED_ORIGINS set to a
// comma-separated origin list, those origins are allowed with credentials so
// the session cookie works cross-origin. Unset, the policy is a wildcard
// without credentials; browsers refuse credentialed responses under a
// wildcard origin, so the two must never be combined.
func corsConfig(allowedOrigins string) middleware.CORSConfig {
	cfg := middleware.CORSConfig{
		AllowOrigins: []string{"*"},
		AllowHeaders: []string{echo.HeaderOrigin, echo.HeaderContentType, echo.HeaderAccept, echo.HeaderAuthorization},
	}
	if allowedOrigins == "" {
		return cfg
	}
	origins := []string{}
	for _, o := range strings.Split(allowedOrigins, ",") {
		if o = strings.TrimSpace(o); o != "" {
			origins = append(origins, o)
		}
	}
	if len(origins) > 0 {
		cfg.AllowOrigins = origins
		cfg.AllowCredentials = true
	}
	return cfg
}

// parseRedisOptions accepts either a redis URL or the comma-separated
// host,password=...,ssl=... form used by managed caches.
func parseRedisOptions(conn string) *redis.Options {
	opts, err := redis.ParseURL(conn)
	if err == nil {
		return opts
	}
	parts := strings.Split(conn, ",")
	opts = &redis.Options{Addr: parts[0]}
	for _, p := range parts[1:] {
		kv := strings.SplitN(p, "=", 2)
		if len(kv) != 2 {
			continue
		}
		switch strings.ToLower(kv[0]) {
		case "password":
			opts.Password = kv[1]
		case "ssl":
			if strings.ToLower(kv[1]) == "true" {
				opts.TLSConfig = &tls.Config{}
			}
		}
	}
	return opts
}
