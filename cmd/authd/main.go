// Command authd runs the authentication service: HTTP handlers over an
// authcore engine backed by MySQL, Redis and a RabbitMQ mail queue.
package main

import (
	"log"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/redis/go-redis/v9"

	"github.com/keshvara/authcore"
	"github.com/keshvara/authcore/httpapi"
	"github.com/keshvara/authcore/mailqueue"
	"github.com/keshvara/authcore/memstore"
	"github.com/keshvara/authcore/session"
	"github.com/keshvara/authcore/sqlstore"
	"github.com/keshvara/authcore/verification"
)

func main() {
	_ = godotenv.Load()

	cfg := authcore.DefaultConfig()
	cfg.JWT.AccessSecret = []byte(must("ACCESS_TOKEN_SECRET"))
	cfg.JWT.RefreshSecret = []byte(must("REFRESH_TOKEN_SECRET"))
	cfg.JWT.AccessTTL = time.Duration(envInt("ACCESS_TOKEN_TTL_MIN", 15)) * time.Minute
	cfg.JWT.RefreshTTL = time.Duration(envInt("REFRESH_TOKEN_TTL_DAYS", 7)) * 24 * time.Hour
	cfg.JWT.Issuer = getenv("JWT_ISSUER", "authd")

	users, sessions, tokens := buildStores()

	builder := authcore.New().
		WithConfig(cfg).
		WithUserStore(users).
		WithSessionRegistry(sessions).
		WithVerificationStore(tokens).
		WithAuditSink(authcore.NewJSONWriterSink(os.Stdout))

	if url := os.Getenv("RABBITMQ_URL"); url != "" {
		pub, err := mailqueue.NewPublisher(url)
		if err != nil {
			log.Fatalf("mail queue: %v", err)
		}
		defer pub.Close()
		builder = builder.WithMailSink(pub)

		go mailqueue.StartConsumer(url, mailqueue.LogDelivery)
	} else {
		log.Println("RABBITMQ_URL unset; mail delivery disabled")
	}

	engine, err := builder.Build()
	if err != nil {
		log.Fatalf("engine: %v", err)
	}
	defer engine.Close()

	e := echo.New()
	e.HideBanner = true
	e.Use(middleware.Recover())
	e.Use(middleware.Logger())

	h := httpapi.NewHandler(engine, cfg.JWT.AccessTTL, cfg.JWT.RefreshTTL)
	h.Secure = getenv("APP_ENV", "dev") == "prod"
	h.RegisterRoutes(e)

	addr := ":" + getenv("APP_PORT", "8080")
	log.Printf("listening on %s", addr)
	if err := e.Start(addr); err != nil {
		log.Fatal(err)
	}
}

// buildStores wires the persistent backends. With DB_HOST set users and
// sessions live in MySQL; REDIS_ADDR moves sessions and verification
// tokens to Redis. Unset backends fall back to in-memory stores, which
// lose all state on restart.
func buildStores() (authcore.UserStore, session.Registry, verification.Store) {
	var users authcore.UserStore = memstore.New()
	var sessions session.Registry = session.NewMemoryRegistry()
	var tokens verification.Store = verification.NewMemoryStore()

	if host := os.Getenv("DB_HOST"); host != "" {
		db, err := sqlstore.Open(
			must("DB_USER"),
			os.Getenv("DB_PASS"),
			host,
			getenv("DB_PORT", "3306"),
			must("DB_NAME"),
		)
		if err != nil {
			log.Fatalf("mysql: %v", err)
		}
		users = sqlstore.NewUserStore(db)
		sessions = sqlstore.NewSessionRegistry(db)
	} else {
		log.Println("DB_HOST unset; using in-memory user store")
	}

	if addr := os.Getenv("REDIS_ADDR"); addr != "" {
		rdb := redis.NewClient(&redis.Options{
			Addr:     addr,
			Password: os.Getenv("REDIS_PASSWORD"),
			DB:       envInt("REDIS_DB", 0),
		})
		sessions = session.NewRedisRegistry(rdb, "authd")
		tokens = verification.NewRedisStore(rdb, "authd")
	}

	return users, sessions, tokens
}

// must retrieves a required environment variable or exits.
func must(key string) string {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		log.Fatalf("missing required env var: %s", key)
	}
	return v
}

func getenv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	s := os.Getenv(key)
	if s == "" {
		return fallback
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		log.Fatalf("invalid int for %s: %q", key, s)
	}
	return n
}
