package app

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"math/rand/v2"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/google/uuid"
	_ "github.com/lib/pq"

	_ "ozergarant/docs"
	"ozergarant/internal/authz"
	"ozergarant/internal/bot"
	"ozergarant/internal/config"
	"ozergarant/internal/handlers"
	"ozergarant/internal/logging"
	"ozergarant/internal/migrations"
	"ozergarant/internal/pdf"
	"ozergarant/internal/repositories"
	"ozergarant/internal/repositories/memstore"
	"ozergarant/internal/routes"
	"ozergarant/internal/services"
)

const shutdownTimeout = 10 * time.Second

// Run wires everything from cfg and blocks until ctx is cancelled or a
// component fails.
func Run(ctx context.Context, cfg *config.Config, log logging.Logger) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	// === Store ===
	store, db, err := openStore(ctx, cfg, log)
	if err != nil {
		return err
	}
	if db != nil {
		defer func() {
			if err := db.Close(); err != nil {
				log.Warn(ctx, "close db failed", "error", err)
			}
		}()
	}

	// === Telegram ===
	api, err := tgbotapi.NewBotAPI(cfg.Telegram.Token)
	if err != nil {
		return fmt.Errorf("telegram auth: %w", err)
	}
	api.Debug = cfg.Telegram.Debug
	log.Info(ctx, "telegram authorized", "bot", api.Self.UserName)
	telegram := services.NewTelegramService(api, log)

	// === Services ===
	now := time.Now
	users := services.NewUserService(store.Users, log)
	gen := services.NewChallengeGenerator(rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64())), cfg.Captcha.Timeout)
	verification := services.NewVerificationService(store.Users, store.Verifications, gen, cfg.Captcha.MaxAttempts, log, now)
	payments := services.NewPaymentResolver(cfg.Payments.TRC20Address, cfg.Payments.TONAddress)
	var email services.EmailService
	if cfg.EmailEnabled() {
		email = services.NewEmailService(cfg.Email.SMTPHost, cfg.Email.SMTPPort, cfg.Email.SMTPUser,
			cfg.Email.SMTPPassword, cfg.Email.FromEmail, cfg.Email.AlertsTo)
	}
	deals := services.NewDealService(store.Deals, store.Users, users, payments, telegram, email,
		services.DealConfig{TTL: cfg.Deals.TTL, MaxAmount: cfg.Deals.MaxAmountUSD}, log, now)
	workflow := services.NewWorkflowService(store.Workflows, now)

	// === Bot ===
	dispatcher := bot.NewDispatcher(bot.Deps{
		Users:           users,
		Verification:    verification,
		Deals:           deals,
		Workflow:        workflow,
		Out:             telegram,
		Log:             log,
		BotUsername:     api.Self.UserName,
		SupportUsername: cfg.Telegram.SupportContact,
		Methods:         payments.Methods(),
		MaxAmount:       cfg.Deals.MaxAmountUSD,
		Now:             now,
	})
	runner := bot.NewRunner(dispatcher, cfg.Telegram.Workers, log)
	defer runner.Close()

	errs := make(chan error, 2)
	var wg sync.WaitGroup

	// === HTTP ===
	var srv *http.Server
	if cfg.Server.Enabled {
		var pinger handlers.Pinger
		if db != nil {
			pinger = db
		}
		var integrations *handlers.IntegrationsHandler
		if cfg.Telegram.WebhookURL != "" {
			integrations = handlers.NewIntegrationsHandler(runner, cfg.Telegram.WebhookSecret, log)
		}
		router := newRouter(log, routes.Handlers{
			Health:       handlers.NewHealthHandler(pinger),
			Auth:         handlers.NewAuthHandler(adminAccounts(cfg.Admin), []byte(cfg.Admin.JWTSecret), cfg.Admin.TokenTTL, log),
			Users:        handlers.NewUserHandler(users, deals, log),
			Deals:        handlers.NewDealHandler(deals, pdf.NewReceiptGenerator(cfg.Server.ReceiptFont), log),
			Integrations: integrations,
		}, []byte(cfg.Admin.JWTSecret))

		srv = &http.Server{
			Addr:              fmt.Sprintf(":%d", cfg.Server.Port),
			Handler:           router,
			ReadHeaderTimeout: 10 * time.Second,
		}
		wg.Add(1)
		go func() {
			defer wg.Done()
			log.Info(ctx, "http server listening", "addr", srv.Addr)
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				errs <- fmt.Errorf("http server: %w", err)
			}
		}()
	}

	// === Updates ===
	if cfg.Telegram.WebhookURL != "" {
		if err := setWebhook(api, cfg.Telegram.WebhookURL, cfg.Telegram.WebhookSecret); err != nil {
			cancel()
			shutdown(ctx, srv, log)
			wg.Wait()
			return err
		}
		log.Info(ctx, "webhook registered", "url", cfg.Telegram.WebhookURL)
	} else {
		if _, err := api.Request(tgbotapi.DeleteWebhookConfig{}); err != nil {
			log.Warn(ctx, "delete webhook failed", "error", err)
		}
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := runner.Poll(ctx, api, cfg.Telegram.PollTimeout); err != nil {
				errs <- fmt.Errorf("long polling: %w", err)
			}
		}()
	}

	select {
	case <-ctx.Done():
		log.Info(ctx, "shutdown requested")
	case err = <-errs:
		log.Error(ctx, "component failed, shutting down", "error", err)
	}
	cancel()
	shutdown(ctx, srv, log)
	wg.Wait()
	return err
}

func openStore(ctx context.Context, cfg *config.Config, log logging.Logger) (*repositories.Store, *sql.DB, error) {
	if cfg.Database.Driver == "memory" {
		log.Warn(ctx, "using in-memory store, data is lost on restart")
		return memstore.New().Repositories(), nil, nil
	}

	db, err := sql.Open("postgres", cfg.Database.DSN)
	if err != nil {
		return nil, nil, fmt.Errorf("open db: %w", err)
	}
	db.SetMaxOpenConns(cfg.Database.MaxOpenConns)
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, nil, fmt.Errorf("ping db: %w", err)
	}
	if cfg.Database.RunMigrations {
		if err := migrations.Up(ctx, db); err != nil {
			_ = db.Close()
			return nil, nil, err
		}
		log.Info(ctx, "migrations applied")
	}

	store := repositories.NewPostgresStore(db)
	if cfg.Database.WorkflowStorage == "memory" {
		store.Workflows = memstore.NewWorkflowRepo()
	}
	return store, db, nil
}

func adminAccounts(c config.AdminConfig) []handlers.Account {
	accounts := []handlers.Account{{Username: c.Username, PasswordHash: c.PasswordHash, RoleID: authz.RoleAdmin}}
	if c.AuditUsername != "" {
		accounts = append(accounts, handlers.Account{
			Username: c.AuditUsername, PasswordHash: c.AuditPasswordHash, RoleID: authz.RoleAudit,
		})
	}
	return accounts
}

func newRouter(log logging.Logger, h routes.Handlers, jwtSecret []byte) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(requestLogger(log))
	router.Use(corsMiddleware())
	return routes.SetupRoutes(router, h, jwtSecret)
}

// requestLogger replaces gin.Logger with the structured logger and tags
// every request with an id.
func requestLogger(log logging.Logger) gin.HandlerFunc {
	log = log.With("component", "http")
	return func(c *gin.Context) {
		start := time.Now()
		id := c.GetHeader("X-Request-ID")
		if id == "" {
			id = uuid.NewString()
		}
		c.Header("X-Request-ID", id)
		c.Next()
		log.Info(c.Request.Context(), "http request",
			"request_id", id,
			"method", c.Request.Method,
			"path", c.FullPath(),
			"status", c.Writer.Status(),
			"took", time.Since(start).Truncate(time.Millisecond).String(),
		)
	}
}

func corsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "GET, POST, DELETE, OPTIONS")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Origin, Content-Type, Authorization")
		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}
		c.Next()
	}
}

// setWebhook goes through raw params: the library's WebhookConfig has no
// secret_token field.
func setWebhook(api *tgbotapi.BotAPI, url, secret string) error {
	params := tgbotapi.Params{}
	params.AddNonEmpty("url", url)
	params.AddNonEmpty("secret_token", secret)
	if _, err := api.MakeRequest("setWebhook", params); err != nil {
		return fmt.Errorf("set webhook: %w", err)
	}
	return nil
}

func shutdown(ctx context.Context, srv *http.Server, log logging.Logger) {
	if srv == nil {
		return
	}
	sctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(sctx); err != nil {
		log.Warn(ctx, "http shutdown failed", "error", err)
	}
}
