package bootstrap

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"hawkkeyed-backend/internal/fetch"
	"hawkkeyed-backend/internal/health"
	"hawkkeyed-backend/internal/history"
	"hawkkeyed-backend/internal/llm"
	"hawkkeyed-backend/internal/llm/anthropic"
	"hawkkeyed-backend/internal/llm/gemini"
	"hawkkeyed-backend/internal/llm/openai"
	"hawkkeyed-backend/internal/queue"
	"hawkkeyed-backend/internal/report"
	"hawkkeyed-backend/internal/runs"
	"hawkkeyed-backend/internal/shared/config"
	"hawkkeyed-backend/internal/shared/server"
	"hawkkeyed-backend/internal/shared/storage/db"
	"hawkkeyed-backend/internal/shared/storage/object"
	localstore "hawkkeyed-backend/internal/shared/storage/object/local"
	s3store "hawkkeyed-backend/internal/shared/storage/object/s3"
	"hawkkeyed-backend/internal/shared/telemetry"
	"hawkkeyed-backend/internal/workflow"
)

// App holds shared dependencies.
type App struct {
	Config       config.Config
	Router       *gin.Engine
	DB           *sql.DB
	Store        object.Store
	Queue        queue.Client
	RunsRepo     runs.Repo
	HistoryStore history.Store
	History      *history.Service
	Orchestrator *workflow.Orchestrator

	closers []func() error
}

// Close releases connections opened by Build.
func (a *App) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// adoptDB sets the run database. A shared pool outlives the App and is not
// closed with it.
func (a *App) adoptDB(sqlDB *sql.DB, shared bool) {
	a.DB = sqlDB
	if sqlDB != nil && !shared {
		a.closers = append(a.closers, sqlDB.Close)
	}
}

// Build prepares every dependency and the HTTP router.
func Build(cfg config.Config) (*App, error) {
	if strings.TrimSpace(cfg.Env) == "" {
		cfg.Env = "dev"
	}
	if strings.TrimSpace(cfg.ObjectStoreType) == "" {
		cfg.ObjectStoreType = "local"
	}
	ctx := context.Background()

	telemetry.Configure(telemetry.Options{Level: cfg.LogLevel, File: cfg.LogFile})

	app := &App{Config: cfg}

	sqlDB, err := buildDB(ctx, cfg)
	if err != nil {
		return nil, err
	}
	app.adoptDB(sqlDB, db.IsLambdaRuntime())

	store, err := buildStore(ctx, cfg)
	if err != nil {
		_ = app.Close()
		return nil, err
	}
	app.Store = store

	queueClient, err := buildQueue(ctx, cfg)
	if err != nil {
		_ = app.Close()
		return nil, err
	}
	app.Queue = queueClient

	historyStore, err := buildHistoryStore(ctx, cfg)
	if err != nil {
		_ = app.Close()
		return nil, err
	}
	app.HistoryStore = historyStore
	if closer, ok := historyStore.(interface{ Close() error }); ok {
		app.closers = append(app.closers, closer.Close)
	}

	if app.DB != nil {
		app.RunsRepo = &runs.PGRepo{DB: app.DB}
	} else {
		app.RunsRepo = runs.NewMemoryRepo()
	}
	app.History = history.NewService(historyStore)

	orch, err := buildOrchestrator(ctx, cfg, app)
	if err != nil {
		_ = app.Close()
		return nil, err
	}
	app.Orchestrator = orch

	checks := health.NewService()
	if app.DB != nil {
		checks.Register("database", app.DB.PingContext)
	}
	if pinger, ok := historyStore.(interface{ Ping(context.Context) error }); ok {
		checks.Register("history", pinger.Ping)
	}

	app.Router = server.NewRouter(server.RouterDeps{
		Config:          cfg,
		Health:          checks,
		WorkflowHandler: workflow.NewHandler(orch),
		RunsHandler:     runs.NewHandler(app.RunsRepo),
		HistoryHandler:  history.NewHandler(app.History),
		ReportHandler:   report.NewHandler(app.RunsRepo, app.Store),
	})
	return app, nil
}

func buildOrchestrator(ctx context.Context, cfg config.Config, app *App) (*workflow.Orchestrator, error) {
	prompts, err := workflow.LoadPrompts(cfg.PromptsFile)
	if err != nil {
		return nil, err
	}

	extraction, err := buildLLM(ctx, cfg, cfg.ExtractionProvider, cfg.ExtractionModel, true)
	if err != nil {
		return nil, fmt.Errorf("extraction provider: %w", err)
	}
	narration, err := buildLLM(ctx, cfg, cfg.NarrationProvider, cfg.NarrationModel, false)
	if err != nil {
		return nil, fmt.Errorf("narration provider: %w", err)
	}

	observers := []workflow.RunObserver{app.History}
	if app.Queue != nil {
		observers = append(observers, &queue.RunPublisher{Client: app.Queue})
	}

	telemetry.Info("bootstrap.providers", map[string]any{
		"extraction_provider": cfg.ExtractionProvider,
		"extraction_model":    cfg.ExtractionModel,
		"narration_provider":  cfg.NarrationProvider,
		"narration_model":     cfg.NarrationModel,
		"max_retries":         cfg.LLMMaxRetries,
	})

	return &workflow.Orchestrator{
		Extractor: &workflow.Extractor{
			Client:  workflow.NewRetryingClient(extraction, workflow.StageExtraction, cfg.LLMMaxRetries),
			Prompts: prompts.Extraction,
		},
		Narrator: &workflow.Narrator{
			Client:        workflow.NewRetryingClient(narration, workflow.StageNarration, cfg.LLMMaxRetries),
			Prompts:       prompts.Narration,
			SkipChatDraft: !cfg.NarrateChatDraft,
		},
		Recorder:    &runs.Recorder{Repo: app.RunsRepo},
		Fetcher:     fetch.New(nil, fetch.DefaultMaxBytes),
		Observers:   observers,
		CallTimeout: cfg.LLMCallTimeout,
	}, nil
}

// buildLLM returns the configured provider. Missing credentials give the
// demo client in dev-like environments and a placeholder elsewhere.
func buildLLM(ctx context.Context, cfg config.Config, provider, model string, extraction bool) (llm.Client, error) {
	missing := func() llm.Client {
		if isDevLike(cfg.Env) {
			log.Printf("bootstrap: %s credentials missing; using demo client", provider)
			return llm.DemoClient{Provider: provider}
		}
		return llm.PlaceholderClient{Provider: provider}
	}

	switch provider {
	case "gemini":
		if strings.TrimSpace(cfg.GeminiAPIKey) == "" {
			return missing(), nil
		}
		primary, err := gemini.NewClient(ctx, cfg.GeminiAPIKey, model)
		if err != nil {
			return nil, err
		}
		if !extraction || strings.TrimSpace(cfg.GeminiFallback) == "" {
			return primary, nil
		}
		fallback, err := gemini.NewClient(ctx, cfg.GeminiAPIKey, cfg.GeminiFallback)
		if err != nil {
			return nil, err
		}
		return llm.NewFallbackClient(primary, fallback, llm.BreakerSettings{Name: "gemini-" + primary.Model()}), nil
	case "anthropic":
		if strings.TrimSpace(cfg.AnthropicAPIKey) == "" {
			return missing(), nil
		}
		return anthropic.NewClient(cfg.AnthropicAPIKey, model)
	case "openai":
		if strings.TrimSpace(cfg.OpenAIAPIKey) == "" {
			return missing(), nil
		}
		return openai.NewClient(cfg.OpenAIAPIKey, model)
	case "placeholder":
		return llm.PlaceholderClient{}, nil
	default:
		return nil, fmt.Errorf("unknown provider %q", provider)
	}
}

func buildDB(ctx context.Context, cfg config.Config) (*sql.DB, error) {
	if strings.TrimSpace(cfg.DatabaseURL) == "" {
		log.Printf("bootstrap: DATABASE_URL empty; using in-memory run store")
		return nil, nil
	}

	var (
		sqlDB *sql.DB
		err   error
	)
	if db.IsLambdaRuntime() {
		sqlDB, err = db.Shared(ctx, cfg.DatabaseURL, db.OptionsFromEnv(db.DefaultLambdaOptions()))
	} else {
		sqlDB, err = db.Connect(ctx, cfg.DatabaseURL, db.OptionsFromEnv(db.DefaultServerOptions()))
	}
	if err != nil {
		if isDevLike(cfg.Env) {
			log.Printf("bootstrap: database connect failed; using in-memory run store: %v", err)
			return nil, nil
		}
		return nil, err
	}
	return sqlDB, nil
}

func buildStore(ctx context.Context, cfg config.Config) (object.Store, error) {
	switch cfg.ObjectStoreType {
	case "s3":
		if strings.TrimSpace(cfg.S3Bucket) == "" {
			return nil, fmt.Errorf("OBJECT_STORE=s3 requires S3_BUCKET")
		}
		return s3store.New(ctx, cfg.AWSRegion, cfg.S3Bucket, cfg.S3Prefix, cfg.SSEKMSKeyID)
	default:
		return localstore.New(cfg.LocalStoreDir), nil
	}
}

func buildQueue(ctx context.Context, cfg config.Config) (queue.Client, error) {
	if strings.TrimSpace(cfg.RunEventsQueue) == "" {
		return nil, nil
	}
	return queue.NewSQSClient(ctx, cfg.RunEventsQueue, cfg.AWSRegion)
}

func buildHistoryStore(ctx context.Context, cfg config.Config) (history.Store, error) {
	if strings.TrimSpace(cfg.RedisURL) == "" {
		return history.NewMemoryStore(cfg.HistoryMaxEntries), nil
	}
	connectCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	store, err := history.NewRedisStore(connectCtx, cfg.RedisURL, cfg.HistoryMaxEntries)
	if err != nil {
		if isDevLike(cfg.Env) {
			log.Printf("bootstrap: redis unavailable; using in-memory history: %v", err)
			return history.NewMemoryStore(cfg.HistoryMaxEntries), nil
		}
		return nil, err
	}
	return store, nil
}

func isDevLike(env string) bool {
	switch strings.ToLower(strings.TrimSpace(env)) {
	case "dev", "local":
		return true
	default:
		return false
	}
}
