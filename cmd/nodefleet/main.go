package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"

	"nodefleet/config"
	"nodefleet/engine"
	"nodefleet/log"
	"nodefleet/messaging"
	"nodefleet/nodestate"
	"nodefleet/store"
	"nodefleet/www"
)

var Version = "dev"

func main() {
	showVersion := flag.Bool("version", false, "print version and exit")
	configPath := flag.String("config", "nodefleet.yaml", "path to config file")
	hashToken := flag.String("hash-token", "", "print the bcrypt hash of a token and exit")
	flag.Parse()

	if *showVersion {
		fmt.Println("nodefleet", Version)
		return
	}
	if *hashToken != "" {
		hash, err := www.HashToken(*hashToken)
		if err != nil {
			fmt.Fprintf(os.Stderr, "hash token: %v\n", err)
			os.Exit(1)
		}
		fmt.Println(hash)
		return
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config: %v\n", err)
		os.Exit(1)
	}
	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "invalid config: %v\n", err)
		os.Exit(1)
	}

	log.Init(log.Config{
		Level:      log.ParseLevel(cfg.Log.Level),
		JSONOutput: cfg.Log.JSONOutput(Version != "dev"),
	})
	logger := log.WithComponent("main")
	logger.Info().Str("version", Version).Msg("starting nodefleet")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Database
	db, err := store.Open(ctx, &cfg.Database)
	if err != nil {
		log.Fatal("open database", err)
	}
	defer db.Close()
	logger.Info().Str("driver", db.Driver()).Msg("database open")

	// Redis
	var redisStore *nodestate.RedisStore
	if cfg.Redis.Enabled {
		redisClient := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Address,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		defer redisClient.Close()
		pingCtx, pingCancel := context.WithTimeout(ctx, 3*time.Second)
		redisStore = nodestate.NewRedisStore(redisClient)
		if err := redisStore.Ping(pingCtx); err != nil {
			logger.Warn().Err(err).Msg("redis not available, running without cache")
			redisStore = nil
		} else {
			logger.Info().Str("addr", cfg.Redis.Address).Msg("redis connected")
		}
		pingCancel()
	}
	nodeStateMgr := nodestate.NewManager(db, redisStore)

	// Messaging
	var msgClient *messaging.Client
	if cfg.Messaging.Enabled() {
		db.EnableOperationOutbox(cfg.Messaging.OperationsTopic, messaging.EncodeOperationCreated)
		msgClient = messaging.NewClient(&cfg.Messaging)
		if err := msgClient.Connect(ctx); err != nil {
			logger.Warn().Err(err).Msg("messaging connect failed, operations stay in the outbox")
		} else {
			logger.Info().Strs("brokers", cfg.Messaging.Kafka.Brokers).Msg("messaging connected")
		}
		defer msgClient.Close()
	}

	// Engine
	engCfg := engine.Config{
		AppConfig: cfg,
		DB:        db,
		NodeState: nodeStateMgr,
	}
	if msgClient != nil {
		engCfg.MsgClient = msgClient
	}
	eng := engine.New(engCfg)
	eng.Start(ctx)
	defer eng.Stop()

	// Web server
	addr := cfg.Addr()
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		log.Fatal("listen on "+addr, err)
	}
	handler, stopWeb := www.NewRouter(eng)
	srv := &http.Server{
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logger.Info().Str("addr", ln.Addr().String()).Msg("web server listening")
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal("web server", err)
		}
	}()

	// Wait for shutdown signal
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	logger.Info().Msg("shutting down")
	stopWeb()
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("web server shutdown")
	}
}
