// Command roboforge turns a photograph into a rigged, animated 3D combat
// robot. It can run as an HTTP service (serve) or drive a single pipeline
// run from the command line (generate), with smaller debug commands for
// the individual stages.
package main

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/BaSui01/roboforge/api"
	"github.com/BaSui01/roboforge/assets"
	"github.com/BaSui01/roboforge/config"
	"github.com/BaSui01/roboforge/gemini"
	"github.com/BaSui01/roboforge/internal/server"
	"github.com/BaSui01/roboforge/internal/telemetry"
	"github.com/BaSui01/roboforge/meshy"
	"github.com/BaSui01/roboforge/pipeline"
	"github.com/BaSui01/roboforge/progress"
	"github.com/BaSui01/roboforge/store"
)

// Version information, injected at build time.
var (
	Version   = "dev"
	BuildTime = "unknown"
	GitCommit = "unknown"
)

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	switch os.Args[1] {
	case "serve":
		runServe(os.Args[2:])
	case "generate":
		runGenerate(os.Args[2:])
	case "stats":
		runStats(os.Args[2:])
	case "image":
		runImage(os.Args[2:])
	case "mesh":
		runMesh(os.Args[2:])
	case "robots":
		runRobots(os.Args[2:])
	case "version":
		printVersion()
	case "help", "-h", "--help":
		printUsage()
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n", os.Args[1])
		printUsage()
		os.Exit(1)
	}
}

func runServe(args []string) {
	fs := flag.NewFlagSet("serve", flag.ExitOnError)
	configPath := fs.String("config", "", "Path to config file")
	fs.Parse(args)

	cfg := mustLoadConfig(*configPath)
	logger := initLogger(cfg.Log)
	defer logger.Sync()

	logger.Info("starting roboforge",
		zap.String("version", Version),
		zap.String("build_time", BuildTime),
		zap.String("git_commit", GitCommit),
	)

	otelProviders, err := telemetry.Init(cfg.Telemetry, logger)
	if err != nil {
		logger.Warn("failed to initialize telemetry", zap.Error(err))
	}

	repo, err := store.Open(cfg.DatabasePath(), logger)
	if err != nil {
		logger.Fatal("failed to open database", zap.Error(err))
	}
	defer repo.Close()

	mat, err := assets.NewDir(cfg.Storage.DataDir, logger)
	if err != nil {
		logger.Fatal("failed to prepare asset directory", zap.Error(err))
	}

	registry := prometheus.NewRegistry()
	bus := progress.NewBus(32, logger)
	defer bus.Close()

	sinks := progress.MultiSink{bus, progress.LogSink{Logger: logger}}
	if cfg.Redis.Enabled {
		rdb := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		defer rdb.Close()
		sinks = append(sinks, progress.NewRedisSink(rdb, cfg.Redis.Channel, logger))
	}

	orch := newOrchestrator(cfg, mat, repo, sinks, registry, logger)
	handler := api.NewHandler(orch, repo, bus, registry, logger)
	mgr := server.NewManager(handler.Routes(), cfg.Server, logger)
	mgr.Start()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-quit:
		logger.Info("shutdown signal received", zap.String("signal", sig.String()))
	case err := <-mgr.Err():
		logger.Error("server failed", zap.Error(err))
	}

	ctx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := mgr.Shutdown(ctx); err != nil {
		logger.Error("shutdown incomplete", zap.Error(err))
	}
	if otelProviders != nil {
		if err := otelProviders.Shutdown(ctx); err != nil {
			logger.Warn("telemetry shutdown failed", zap.Error(err))
		}
	}
	logger.Info("roboforge stopped")
}

func runGenerate(args []string) {
	fs := flag.NewFlagSet("generate", flag.ExitOnError)
	configPath := fs.String("config", "", "Path to config file")
	imagePath := fs.String("image", "", "Path to the input photograph")
	fs.Parse(args)

	if *imagePath == "" {
		fmt.Fprintln(os.Stderr, "generate: -image is required")
		os.Exit(1)
	}

	cfg := mustLoadConfig(*configPath)
	logger := initLogger(cfg.Log)
	defer logger.Sync()

	repo, err := store.Open(cfg.DatabasePath(), logger)
	if err != nil {
		logger.Fatal("failed to open database", zap.Error(err))
	}
	defer repo.Close()

	mat, err := assets.NewDir(cfg.Storage.DataDir, logger)
	if err != nil {
		logger.Fatal("failed to prepare asset directory", zap.Error(err))
	}

	orch := newOrchestrator(cfg, mat, repo,
		progress.LogSink{Logger: logger}, prometheus.NewRegistry(), logger)

	rec, err := orch.Execute(context.Background(), mustReadImageB64(*imagePath))
	if err != nil {
		logger.Fatal("generation failed", zap.Error(err))
	}
	printJSON(rec)
}

func runStats(args []string) {
	fs := flag.NewFlagSet("stats", flag.ExitOnError)
	configPath := fs.String("config", "", "Path to config file")
	imagePath := fs.String("image", "", "Path to the input photograph")
	fs.Parse(args)

	if *imagePath == "" {
		fmt.Fprintln(os.Stderr, "stats: -image is required")
		os.Exit(1)
	}

	cfg := mustLoadConfig(*configPath)
	logger := initLogger(cfg.Log)
	defer logger.Sync()

	client := gemini.NewClient(geminiConfig(cfg), logger)
	stats, err := client.GenerateStats(context.Background(), mustReadImageB64(*imagePath))
	if err != nil {
		logger.Fatal("stats generation failed", zap.Error(err))
	}
	printJSON(stats)
}

func runImage(args []string) {
	fs := flag.NewFlagSet("image", flag.ExitOnError)
	configPath := fs.String("config", "", "Path to config file")
	prompt := fs.String("prompt", "", "Visual description to render")
	out := fs.String("out", "robot.png", "Output PNG path")
	fs.Parse(args)

	if *prompt == "" {
		fmt.Fprintln(os.Stderr, "image: -prompt is required")
		os.Exit(1)
	}

	cfg := mustLoadConfig(*configPath)
	logger := initLogger(cfg.Log)
	defer logger.Sync()

	client := gemini.NewClient(geminiConfig(cfg), logger)
	b64, err := client.GenerateImage(context.Background(), *prompt)
	if err != nil {
		logger.Fatal("image generation failed", zap.Error(err))
	}
	data, err := base64.StdEncoding.DecodeString(b64)
	if err != nil {
		logger.Fatal("generated image is not valid base64", zap.Error(err))
	}
	if err := os.WriteFile(*out, data, 0o644); err != nil {
		logger.Fatal("failed to write image", zap.Error(err))
	}
	fmt.Println(*out)
}

func runMesh(args []string) {
	fs := flag.NewFlagSet("mesh", flag.ExitOnError)
	configPath := fs.String("config", "", "Path to config file")
	imagePath := fs.String("image", "", "Path to the concept image")
	fs.Parse(args)

	if *imagePath == "" {
		fmt.Fprintln(os.Stderr, "mesh: -image is required")
		os.Exit(1)
	}

	cfg := mustLoadConfig(*configPath)
	logger := initLogger(cfg.Log)
	defer logger.Sync()

	client := meshy.NewClient(meshyConfig(cfg), logger)
	ctx := context.Background()
	taskID, err := client.CreateImageTo3DTask(ctx, mustReadImageB64(*imagePath))
	if err != nil {
		logger.Fatal("mesh task creation failed", zap.Error(err))
	}
	url, err := client.WaitForModelURL(ctx, taskID, func(p int) {
		logger.Info("mesh progress", zap.Int("percent", p))
	})
	if err != nil {
		logger.Fatal("mesh generation failed", zap.Error(err))
	}
	fmt.Println(url)
}

func runRobots(args []string) {
	fs := flag.NewFlagSet("robots", flag.ExitOnError)
	configPath := fs.String("config", "", "Path to config file")
	fs.Parse(args)

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}
	logger := initLogger(cfg.Log)
	defer logger.Sync()

	repo, err := store.Open(cfg.DatabasePath(), logger)
	if err != nil {
		logger.Fatal("failed to open database", zap.Error(err))
	}
	defer repo.Close()

	records, err := repo.ListAll(context.Background())
	if err != nil {
		logger.Fatal("failed to list robots", zap.Error(err))
	}
	printJSON(records)
}

func newOrchestrator(cfg config.Config, mat assets.Materializer, repo store.Repository,
	sink progress.Sink, registry *prometheus.Registry, logger *zap.Logger) *pipeline.Orchestrator {
	return pipeline.New(
		gemini.NewClient(geminiConfig(cfg), logger),
		meshy.NewClient(meshyConfig(cfg), logger),
		mat, repo, sink,
		pipeline.NewMetrics(registry),
		logger,
	)
}

func geminiConfig(cfg config.Config) gemini.Config {
	return gemini.Config{
		APIKey:     cfg.Gemini.APIKey,
		BaseURL:    cfg.Gemini.BaseURL,
		StatsModel: cfg.Gemini.StatsModel,
		ImageModel: cfg.Gemini.ImageModel,
		Timeout:    cfg.Gemini.Timeout,
	}
}

func meshyConfig(cfg config.Config) meshy.Config {
	return meshy.Config{
		APIKey:          cfg.Meshy.APIKey,
		BaseURL:         cfg.Meshy.BaseURL,
		Timeout:         cfg.Meshy.Timeout,
		MaxPollAttempts: cfg.Meshy.MaxPollAttempts,
	}
}

// mustLoadConfig loads and validates configuration for commands that talk
// to the remote services.
func mustLoadConfig(path string) config.Config {
	cfg, err := config.Load(path)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}
	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "Invalid config: %v\n", err)
		os.Exit(1)
	}
	return cfg
}

func mustReadImageB64(path string) string {
	data, err := os.ReadFile(path)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to read %s: %v\n", path, err)
		os.Exit(1)
	}
	return base64.StdEncoding.EncodeToString(data)
}

func printJSON(v any) {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	_ = enc.Encode(v)
}

func initLogger(cfg config.LogConfig) *zap.Logger {
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

	var zapConfig zap.Config
	if cfg.Development {
		zapConfig = zap.NewDevelopmentConfig()
		zapConfig.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	} else {
		zapConfig = zap.NewProductionConfig()
		zapConfig.EncoderConfig.TimeKey = "timestamp"
		zapConfig.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	}
	zapConfig.Level = zap.NewAtomicLevelAt(level)

	logger, err := zapConfig.Build(
		zap.AddCaller(),
		zap.AddStacktrace(zapcore.ErrorLevel),
	)
	if err != nil {
		logger, _ = zap.NewProduction()
	}
	return logger
}

func printVersion() {
	fmt.Printf("roboforge %s\n", Version)
	fmt.Printf("  Build Time: %s\n", BuildTime)
	fmt.Printf("  Git Commit: %s\n", GitCommit)
}

func printUsage() {
	fmt.Println(`roboforge - photo to rigged 3D robot pipeline

Usage:
  roboforge <command> [options]

Commands:
  serve     Start the HTTP API server
  generate  Run the full pipeline on one photograph
  stats     Derive robot stats from a photograph (debug)
  image     Render a concept image from a prompt (debug)
  mesh      Convert an image to a 3D base mesh (debug)
  robots    List generated robots
  version   Show version information
  help      Show this help message

Common options:
  -config <path>   Path to configuration file (YAML)

Examples:
  roboforge serve
  roboforge serve -config /etc/roboforge/config.yaml
  roboforge generate -image dinner.png
  roboforge stats -image dinner.png
  roboforge robots`)
}
