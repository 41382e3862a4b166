package main

import (
	"context"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	_ "github.com/lib/pq"

	"github.com/jpratt/chatterd/internal/api"
	"github.com/jpratt/chatterd/internal/config"
	"github.com/jpratt/chatterd/internal/database"
	"github.com/jpratt/chatterd/internal/gateway"
	"github.com/jpratt/chatterd/internal/stats"
	"github.com/jpratt/chatterd/internal/store"
)

type stringSliceFlag []string

func (s *stringSliceFlag) String() string {
	return strings.Join(*s, ",")
}

func (s *stringSliceFlag) Set(value string) error {
	*s = append(*s, strings.Split(value, ",")...)
	return nil
}

var (
	addr           string
	dsn            string
	signingSecret  string
	allowedOrigins stringSliceFlag
)

func main() {
	flag.StringVar(&addr, "addr", "", "server address")
	flag.StringVar(&dsn, "dsn", "", "database connection string")
	flag.StringVar(&signingSecret, "signing-secret", "", "base64 encoded token signing secret")
	flag.Var(&allowedOrigins, "allowed-origins", "comma-separated list of allowed origins for CORS")
	flag.Parse()

	logger := log.New(os.Stderr, "[chatterd] ", log.LstdFlags)

	envCfg, err := config.FromEnv()
	if err != nil {
		logger.Fatal("config:", err)
	}

	// flags win over CHATTERD_* environment variables
	if addr == "" {
		addr = envCfg.ServerAddr
	}
	if dsn == "" {
		dsn = envCfg.DatabaseDSN
	}
	if signingSecret == "" {
		signingSecret = envCfg.SigningSecret
	}
	if len(allowedOrigins) == 0 {
		allowedOrigins = envCfg.AllowedOrigins
	}

	cfg, err := config.NewConfig(addr, dsn, signingSecret, allowedOrigins)
	if err != nil {
		logger.Fatal("config:", err)
	}

	db, err := database.NewPgRepository(cfg.DatabaseDSN)
	if err != nil {
		logger.Fatal("db open:", err)
	}
	defer func() {
		if err := db.Close(); err != nil {
			logger.Fatal("db close:", err)
		}
	}()

	if err := db.Migrate(); err != nil {
		logger.Fatal("db migrate:", err)
	}

	mux := http.NewServeMux()

	statsUpdater := stats.NewStatsUpdater(logger, mux)

	registry := store.NewConnectionRegistry(logger, db)
	users := store.NewUserStore(logger, db)
	rooms := store.NewRoomStore(logger, db, users)
	messages := store.NewMessageStore(logger, db, rooms)

	gw, err := gateway.NewGateway(logger, registry, rooms, messages, users, statsUpdater, cfg.SigningKey)
	if err != nil {
		logger.Fatal("new gateway:", err)
	}

	srv := api.NewApp(mux, logger, gw, db, users, cfg)

	statsUpdater.Run()
	defer statsUpdater.Stop()

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Start()
	}()

	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigs:
		logger.Printf("received signal: %s\n", sig)
	case err := <-errCh:
		logger.Println("server:", err)
	}

	shutDownCtx, cancel := context.WithTimeout(
		context.Background(),
		10*time.Second,
	)
	defer cancel()

	if err := srv.Shutdown(shutDownCtx); err != nil {
		logger.Fatalln("HTTP server shutdown:", err)
	}

	logger.Println("closing live connections...")
	gw.Shutdown()

	logger.Println("shutdown complete")
}
