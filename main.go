package main

import (
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	"go.uber.org/zap"

	"github.com/ErwanAndreo/HospitalAi/config"
	"github.com/ErwanAndreo/HospitalAi/prediction"
	"github.com/ErwanAndreo/HospitalAi/server"
	"github.com/ErwanAndreo/HospitalAi/simulation"
	"github.com/ErwanAndreo/HospitalAi/store"
)

func main() {
	logger, err := zap.NewProduction()
	if err != nil {
		os.Exit(1)
	}
	defer logger.Sync()

	cfg := loadConfig(logger)
	st := openStore(cfg, logger)

	engine := simulation.Default(cfg, st, logger)
	engine.Start()

	predictor := prediction.NewEngine(engine, cfg, st, logger)
	predictor.Start()

	dashboard := server.NewDashboardServer(engine, predictor, st, logger)
	dashboard.Start()

	addr := ":" + envOr("PORT", "8080")
	httpServer := &http.Server{
		Addr:    addr,
		Handler: server.NewHTTPHandler(dashboard),
	}

	go func() {
		logger.Info("http server listening", zap.String("addr", addr))
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("http server failed", zap.Error(err))
		}
	}()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig

	logger.Info("shutting down")
	predictor.Stop()
	engine.Stop()
	httpServer.Close()
	if closer, ok := st.(interface{ Close() error }); ok {
		closer.Close()
	}
}

// loadConfig reads the YAML config named by CONFIG_PATH, falling back
// to the built-in defaults when the variable is unset.
func loadConfig(logger *zap.Logger) *config.SimulationConfig {
	path := os.Getenv("CONFIG_PATH")
	if path == "" {
		logger.Info("using default configuration")
		return config.DefaultConfig()
	}

	cfg, err := config.LoadConfig(path)
	if err != nil {
		logger.Fatal("failed to load configuration", zap.String("path", path), zap.Error(err))
	}
	logger.Info("configuration loaded", zap.String("path", path))
	return cfg
}

// openStore connects to Postgres when DB_HOST is set, otherwise runs on
// the in-memory store. Either way the departments are seeded from the
// configuration.
func openStore(cfg *config.SimulationConfig, logger *zap.Logger) store.Store {
	seeds := make([]store.DepartmentSeed, 0, len(cfg.Departments))
	for _, d := range cfg.Departments {
		seeds = append(seeds, store.DepartmentSeed{Name: d.Name, TotalBeds: d.TotalBeds})
	}

	host := os.Getenv("DB_HOST")
	if host == "" {
		logger.Info("using in-memory store")
		mem := store.NewMemoryStore()
		mem.SeedDepartments(seeds)
		return mem
	}

	port, _ := strconv.Atoi(envOr("DB_PORT", "5432"))
	pg, err := store.NewPostgresStore(store.PostgresConfig{
		Host:     host,
		Port:     port,
		Database: envOr("DB_NAME", "hospitalai"),
		User:     envOr("DB_USER", "hospitalai"),
		Password: os.Getenv("DB_PASSWORD"),
		SSLMode:  os.Getenv("DB_SSLMODE"),
	}, logger)
	if err != nil {
		logger.Fatal("failed to connect to database", zap.Error(err))
	}
	if err := pg.SeedDepartments(seeds); err != nil {
		logger.Fatal("failed to seed departments", zap.Error(err))
	}
	logger.Info("connected to postgres", zap.String("host", host))
	return pg
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
