package common

import (
	"context"
	"log"
	"strings"

	"veraguard-go/internal/audit"
	"veraguard-go/internal/config"
	"veraguard-go/internal/engine"
	"veraguard-go/internal/history"
	"veraguard-go/internal/ledger"
	"veraguard-go/internal/live"
	"veraguard-go/internal/models"
	"veraguard-go/internal/notify"
	"veraguard-go/internal/purchase"
	"veraguard-go/internal/quote"
	"veraguard-go/internal/session"
	"veraguard-go/internal/triage"

	"github.com/joho/godotenv"
	"go.uber.org/zap"
)

// init loads environment variables from .env file if it exists
func init() {
	// Try to load .env file - if it doesn't exist, that's okay
	// Environment variables can be set via other means (shell export, docker, etc.)
	if err := godotenv.Load(); err != nil {
		log.Printf("Note: No .env file found or unable to load it: %v\n", err)
		log.Println("Make sure to set environment variables via export or other means")
	} else {
		log.Println("✓ Loaded environment variables from .env file")
	}
}

// Services holds the wired client: the engine binding, local state, and the
// flows layered on top of them.
type Services struct {
	Engine   *engine.Service
	History  *history.Service
	Session  *session.Manager
	Hub      *notify.Hub
	Quotes   *quote.Cache
	Mirror   *ledger.Mirror
	Bundles  *config.BundlesConfig
	Purchase *purchase.Flow
	Audit    *audit.Flow
	Bridge   *live.Bridge
}

func InitializeLogger() (*zap.Logger, func()) {
	logger, err := zap.NewProduction()
	if err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}

	zap.ReplaceGlobals(logger)

	cleanup := func() {
		if err := logger.Sync(); err != nil {
			if !isIgnorableSyncError(err) {
				log.Printf("Failed to sync logger: %v\n", err)
			}
		}
	}

	return logger, cleanup
}

// InitializeServices wires the full client against the configured engine.
func InitializeServices(ctx context.Context, cfg *models.Config) (*Services, error) {
	engineService, err := engine.NewService(cfg.Engine.BaseURL, cfg.Engine.RequestTimeout)
	if err != nil {
		return nil, err
	}

	historyService, err := history.NewService(ctx, cfg.State)
	if err != nil {
		return nil, err
	}

	sessionManager, err := session.Load(ctx, historyService)
	if err != nil {
		historyService.Close()
		return nil, err
	}
	zap.L().Info("Session loaded",
		zap.String("user_id", sessionManager.UserId()),
		zap.Bool("is_member", sessionManager.Current().IsMember))

	bundles, err := config.LoadBundles(cfg.Flow.BundlesFile)
	if err != nil {
		historyService.Close()
		return nil, err
	}

	hub := notify.NewHub(64)

	quoteCache := quote.NewCache(engineService, hub)
	mirror := ledger.NewMirror(engineService, hub)

	classifier, err := triage.NewClassifier(cfg.Chain)
	if err != nil {
		historyService.Close()
		return nil, err
	}

	purchaseFlow := purchase.NewFlow(purchase.Config{
		Quotes:          quoteCache,
		Settlement:      engineService,
		Mirror:          mirror,
		Identity:        sessionManager,
		Recorder:        historyService,
		ReceiptDuration: cfg.Flow.ReceiptDuration,
	})

	auditFlow := audit.NewFlow(audit.Config{
		Analyzer:              engineService,
		Recall:                historyService,
		Classifier:            classifier,
		Mirror:                mirror,
		Recorder:              historyService,
		UserId:                sessionManager.UserId(),
		StandardAnalysisFloor: cfg.Flow.StandardAnalysisFloor,
		DeepAnalysisFloor:     cfg.Flow.DeepAnalysisFloor,
	})

	bridge := live.NewBridge(&live.EngineSource{
		Service:     engineService,
		DialTimeout: cfg.Live.DialTimeout,
	}, hub, cfg.Live.ReconnectInterval)

	return &Services{
		Engine:   engineService,
		History:  historyService,
		Session:  sessionManager,
		Hub:      hub,
		Quotes:   quoteCache,
		Mirror:   mirror,
		Bundles:  bundles,
		Purchase: purchaseFlow,
		Audit:    auditFlow,
		Bridge:   bridge,
	}, nil
}

// InitializeStateOnly opens just the local state database. Useful for
// read-only commands like the vault history view.
func InitializeStateOnly(ctx context.Context, cfg *models.Config) (*history.Service, error) {
	return history.NewService(ctx, cfg.State)
}

func (cs *Services) Close() {
	if cs.Hub != nil {
		cs.Hub.Close()
	}
	if cs.History != nil {
		cs.History.Close()
	}
}

func isIgnorableSyncError(err error) bool {
	msg := err.Error()
	return strings.Contains(msg, "sync /dev/stderr: inappropriate ioctl for device") ||
		strings.Contains(msg, "sync /dev/stdout: inappropriate ioctl for device")
}
