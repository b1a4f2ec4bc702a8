package main

import (
	"context"
	"flag"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"golang.org/x/sync/errgroup"
	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/lotusgame/duel-server-go/internal/broadcast"
	"github.com/lotusgame/duel-server-go/internal/config"
	"github.com/lotusgame/duel-server-go/internal/game"
	"github.com/lotusgame/duel-server-go/internal/httpapi"
	"github.com/lotusgame/duel-server-go/internal/jobs"
	"github.com/lotusgame/duel-server-go/internal/match"
	"github.com/lotusgame/duel-server-go/internal/replay"
	"github.com/lotusgame/duel-server-go/internal/repository"
	"github.com/lotusgame/duel-server-go/internal/server"
)

var (
	configPath = flag.String("config", "config/config.yaml", "path to configuration file")
	version    = "dev" // set via ldflags during build
)

func main() {
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	logger, err := initLogger(cfg.Logging)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	logger.Info("starting duel server",
		zap.String("version", version),
		zap.String("config", *configPath),
	)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logger); err != nil {
		logger.Error("server stopped with error", zap.Error(err))
		os.Exit(1)
	}
	logger.Info("duel server stopped")
}

func run(ctx context.Context, cfg *config.Config, logger *zap.Logger) error {
	db, err := repository.NewDB(ctx, cfg.Database, logger)
	if err != nil {
		return err
	}
	defer db.Close()

	stats := db.Stat()
	logger.Info("database connection pool initialized",
		zap.Int32("total_conns", stats.TotalConns()),
		zap.Int32("idle_conns", stats.IdleConns()),
	)

	cards := repository.NewCardRepository(db)
	decks := repository.NewDeckRepository(db, logger)
	matches := repository.NewMatchStore(db, logger)

	g, ctx := errgroup.WithContext(ctx)

	var publishers broadcast.Fanout
	var hub *broadcast.Hub
	if cfg.Broadcast.WebSocket.Enabled {
		hub = broadcast.NewHub(logger)
		publishers = append(publishers, hub)
		g.Go(func() error { return hub.Run(ctx) })
	}
	if cfg.Broadcast.MQTT.Enabled {
		mqtt, err := broadcast.NewMQTT(broadcast.MQTTConfig{
			BrokerURL:   cfg.Broadcast.MQTT.BrokerURL,
			ClientID:    cfg.Broadcast.MQTT.ClientID,
			TopicPrefix: cfg.Broadcast.MQTT.TopicPrefix,
		}, logger)
		if err != nil {
			return err
		}
		publishers = append(publishers, mqtt)
		g.Go(func() error { return mqtt.Open(ctx) })
	}

	engine := game.NewEngine(cards, logger)
	svc := match.NewService(matches, decks, engine, publishers, match.Config{
		RatingWindow:     cfg.Matchmaking.RatingWindow,
		DefaultRating:    cfg.Matchmaking.DefaultRating,
		MaxClaimAttempts: cfg.Matchmaking.MaxClaimAttempts,
		PublishTimeout:   cfg.Matchmaking.PublishTimeout,
	}, logger)

	if cfg.Archive.Enabled {
		sink, err := newSink(ctx, cfg.Archive)
		if err != nil {
			return err
		}
		scheduler, err := jobs.NewScheduler(logger)
		if err != nil {
			return err
		}
		archiver := replay.NewArchiver(matches, sink, cfg.Archive.BatchSize, logger.Named("archive"))
		if err := scheduler.AddArchival(ctx, cfg.Archive.Interval, archiver); err != nil {
			return err
		}
		g.Go(func() error { return scheduler.Run(ctx) })
	}

	grpcServer := server.NewGRPCServer(cfg.Server.GRPC, svc, logger)
	lis, err := net.Listen("tcp", cfg.Server.GRPC.Address)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", cfg.Server.GRPC.Address, err)
	}
	g.Go(func() error {
		logger.Info("starting gRPC server", zap.String("address", cfg.Server.GRPC.Address))
		return grpcServer.Serve(lis)
	})
	g.Go(func() error {
		<-ctx.Done()
		grpcServer.Stop()
		return nil
	})

	app := httpapi.New(svc, logger)
	g.Go(func() error {
		logger.Info("starting HTTP server", zap.String("address", cfg.Server.HTTP.Address))
		return app.Listen(cfg.Server.HTTP.Address)
	})
	g.Go(func() error {
		<-ctx.Done()
		return app.ShutdownWithTimeout(10 * time.Second)
	})

	if hub != nil {
		mux := http.NewServeMux()
		mux.Handle("/ws", hub)
		wsServer := &http.Server{
			Addr:              cfg.Server.WebSocket.Address,
			Handler:           mux,
			ReadHeaderTimeout: 10 * time.Second,
		}
		g.Go(func() error {
			logger.Info("starting WebSocket server", zap.String("address", wsServer.Addr))
			if err := wsServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				return err
			}
			return nil
		})
		g.Go(func() error {
			<-ctx.Done()
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			return wsServer.Shutdown(shutdownCtx)
		})
	}

	logger.Info("duel server initialized",
		zap.String("version", version),
		zap.String("grpc_address", cfg.Server.GRPC.Address),
		zap.String("http_address", cfg.Server.HTTP.Address),
		zap.Bool("websocket", hub != nil),
		zap.Bool("mqtt", cfg.Broadcast.MQTT.Enabled),
		zap.Bool("archive", cfg.Archive.Enabled),
	)

	<-ctx.Done()
	logger.Info("shutting down gracefully...")
	return g.Wait()
}

func newSink(ctx context.Context, cfg config.ArchiveConfig) (replay.Sink, error) {
	if cfg.S3.Bucket == "" {
		return replay.FileSink{Directory: cfg.Directory}, nil
	}
	return replay.NewS3Sink(ctx, replay.S3Config{
		Bucket:          cfg.S3.Bucket,
		Region:          cfg.S3.Region,
		Endpoint:        cfg.S3.Endpoint,
		AccessKeyID:     cfg.S3.AccessKeyID,
		SecretAccessKey: cfg.S3.SecretAccessKey,
	})
}

// initLogger builds the zap logger. When a log file is configured, output is
// also written there as JSON with size based rotation.
func initLogger(cfg config.LoggingConfig) (*zap.Logger, error) {
	var level zapcore.Level
	switch cfg.Level {
	case "debug":
		level = zapcore.DebugLevel
	case "info":
		level = zapcore.InfoLevel
	case "warn":
		level = zapcore.WarnLevel
	case "error":
		level = zapcore.ErrorLevel
	default:
		level = zapcore.InfoLevel
	}

	var zapCfg zap.Config
	if cfg.Format == "json" {
		zapCfg = zap.NewProductionConfig()
	} else {
		zapCfg = zap.NewDevelopmentConfig()
		zapCfg.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	}
	zapCfg.Level = zap.NewAtomicLevelAt(level)

	logger, err := zapCfg.Build()
	if err != nil || cfg.File == "" {
		return logger, err
	}

	rotator := &lumberjack.Logger{
		Filename:   cfg.File,
		MaxSize:    cfg.MaxSizeMB,
		MaxBackups: cfg.MaxBackups,
		MaxAge:     cfg.MaxAgeDays,
		Compress:   true,
	}
	fileCore := zapcore.NewCore(
		zapcore.NewJSONEncoder(zap.NewProductionEncoderConfig()),
		zapcore.AddSync(rotator),
		level,
	)
	return logger.WithOptions(zap.WrapCore(func(core zapcore.Core) zapcore.Core {
		return zapcore.NewTee(core, fileCore)
	})), nil
}
