package httpapi

import (
	"fmt"
	"net/http"

	"github.com/redis/go-redis/v9"

	"key_gateway/internal/config"
	"key_gateway/internal/engine"
	"key_gateway/internal/events"
	"key_gateway/internal/middleware"
	"key_gateway/internal/provider"
	"key_gateway/internal/storage"
	"key_gateway/internal/utils"
)

const serviceVersion = "1.0.0"

// Dependencies aggregates the services the HTTP layer wires together,
// so the caller can close them on shutdown.
type Dependencies struct {
	DB     *storage.DB
	Users  *storage.UserRepository
	Keys   *provider.Client
	Engine *engine.Engine
	Sink   events.Sink
	Logger *utils.Logger
}

// Close releases the event sink and the database connection
func (d *Dependencies) Close() error {
	var firstErr error
	if d.Sink != nil {
		if err := d.Sink.Close(); err != nil {
			firstErr = err
		}
	}
	if d.DB != nil {
		if err := d.DB.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// NewRouter creates the HTTP handler with all dependencies wired up
func NewRouter(cfg *config.Config) (http.Handler, *Dependencies, error) {
	log := utils.NewLogger("gateway")

	db, err := storage.NewDB(storage.DBConfig{
		URL:             cfg.Database.URL,
		MaxOpenConns:    cfg.Database.MaxOpenConns,
		MaxIdleConns:    cfg.Database.MaxIdleConns,
		ConnMaxLifetime: cfg.Database.ConnMaxLifetime,
		ConnMaxIdleTime: cfg.Database.ConnMaxIdleTime,
	})
	if err != nil {
		return nil, nil, fmt.Errorf("failed to initialize database: %w", err)
	}

	var enc *storage.Encryption
	if cfg.EncryptionKey != "" {
		enc, err = storage.NewEncryptionFromBase64(cfg.EncryptionKey)
		if err != nil {
			db.Close()
			return nil, nil, fmt.Errorf("failed to initialize encryption: %w", err)
		}
	}

	users := storage.NewUserRepository(db, enc)

	keys := provider.NewClient(provider.Config{
		BaseURL:         cfg.Provider.BaseURL,
		ProvisioningKey: cfg.Provider.ProvisioningKey,
		Timeout:         cfg.Provider.RequestTimeout,
	})

	var sink events.Sink
	if cfg.Redis.Address != "" {
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Address,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		sink = events.NewRedisSink(client, cfg.Redis.EventsKey, cfg.Redis.EventsMaxLen)
	} else {
		sink = events.NewMemorySink(1024)
	}

	eng := engine.New(users, keys, sink, utils.NewLogger("engine"))

	deps := &Dependencies{
		DB:     db,
		Users:  users,
		Keys:   keys,
		Engine: eng,
		Sink:   sink,
		Logger: log,
	}

	mux := http.NewServeMux()
	mux.Handle("/api/key", NewKeyHandler(eng, cfg.JWTSecret, utils.NewLogger("http")))

	if cfg.AdminTokenHash != "" {
		admin := NewAdminHandler(users, utils.NewLogger("admin"))
		mux.Handle("/admin/users", middleware.AdminToken(cfg.AdminTokenHash)(http.HandlerFunc(admin.ListUsers)))
	}

	// The root pattern also catches every unregistered path, so the
	// health response is reserved for "/" exactly.
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/" {
			utils.RespondWithError(w, http.StatusNotFound, "Endpoint not found")
			return
		}
		utils.RespondWithJSON(w, http.StatusOK, map[string]string{
			"service":     "key-gateway",
			"status":      "ok",
			"version":     serviceVersion,
			"environment": cfg.Environment,
		})
	})

	handler := middleware.CORS(middleware.Recover(log)(mux))

	return handler, deps, nil
}
