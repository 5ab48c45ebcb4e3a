package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"boostgram-api/config"
	"boostgram-api/handlers"
	"boostgram-api/middleware"
	"boostgram-api/models"
	"boostgram-api/services"
	"boostgram-api/utils"
	"boostgram-api/workers"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

func main() {
	cfg := config.Load()

	if cfg.DatabaseURL == "" {
		log.Fatal("DATABASE_URL environment variable not set")
	}

	db, err := gorm.Open(postgres.Open(cfg.DatabaseURL), &gorm.Config{})
	if err != nil {
		log.Fatal("failed to connect to database:", err)
	}
	if err := db.AutoMigrate(models.All()...); err != nil {
		log.Fatal("failed to migrate database:", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// --- Completion store ---
	var store services.CompletionStore
	if cfg.CompletionStore == "file" {
		store = services.NewFileCompletionStore(cfg.CompletionFile)
		log.Printf("🗂️  Completions stored in %s", cfg.CompletionFile)
	} else {
		store = services.NewGormCompletionStore(db)
	}

	// --- Outbound collaborators ---
	if cfg.SMTPHost == "" {
		log.Println("⚠️  SMTP_HOST not set, emails will be logged as failed")
	}
	emails := services.NewEmailService(db, services.NewSMTPMailer(services.SMTPConfig{
		Host:     cfg.SMTPHost,
		Port:     cfg.SMTPPort,
		Username: cfg.SMTPUser,
		Password: cfg.SMTPPass,
		From:     cfg.SMTPFrom,
	}))

	var gateway services.PaymentGateway = services.DisabledGateway{}
	if cfg.PayPalClientID != "" && cfg.PayPalSecret != "" {
		pp, err := services.NewPayPalGateway(cfg.PayPalClientID, cfg.PayPalSecret, cfg.PayPalMode)
		if err != nil {
			log.Fatal("failed to initialize PayPal client:", err)
		}
		gateway = pp
	} else {
		log.Println("⚠️  PAYPAL_CLIENT_ID / PAYPAL_CLIENT_SECRET not set, checkout disabled")
	}

	var provider services.FulfillmentProvider = services.ManualFulfillmentProvider{}
	if cfg.FulfillmentURL != "" {
		provider = services.NewHTTPFulfillmentProvider(cfg.FulfillmentURL, cfg.FulfillmentToken)
	} else {
		log.Println("⚠️  FULFILLMENT_URL not set, orders wait for manual delivery")
	}

	var profileCache services.ProfileCache
	if cfg.RedisURL != "" {
		rc, err := services.NewRedisProfileCache(ctx, cfg.RedisURL)
		if err != nil {
			log.Printf("⚠️  Redis unavailable, profile cache disabled: %v", err)
		} else {
			profileCache = rc
			defer rc.Client.Close()
		}
	}

	archiver := services.NewCompletionArchiver(store, nil)
	uploader, err := utils.NewR2Uploader(ctx, utils.R2Config{
		AccountID:       cfg.CloudflareAccountID,
		AccessKeyID:     cfg.R2AccessKeyID,
		AccessKeySecret: cfg.R2AccessKeySecret,
		Bucket:          cfg.R2Bucket,
		CDNBaseURL:      cfg.CDNBaseURL,
	})
	switch {
	case err == nil:
		archiver.Uploader = uploader
	case errors.Is(err, utils.ErrR2NotConfigured):
	default:
		log.Fatal("failed to initialize R2 client:", err)
	}

	// --- Services ---
	blockingService := services.NewBlockingService(store, cfg.BlockingPolicy)
	leadService := services.NewLeadService(db, emails)
	postbackService := services.NewPostbackService(db, store, emails)
	paymentService := services.NewPaymentService(db, gateway, emails, cfg.BaseURL)
	profileService := services.NewProfileService(cfg.ProfileServiceURL, profileCache, cfg.ProfileCacheTTL)
	accountService := services.NewAccountService(db)
	fulfillmentService := services.NewFulfillmentService(db, provider, emails)

	adminSecret := []byte(cfg.AdminJWTSecret)
	adminService := services.NewAdminService(db, store, emails, archiver, services.AdminCredentials{
		Email:    cfg.AdminEmail,
		Password: cfg.AdminPassword,
		Secret:   adminSecret,
		TTL:      cfg.AdminTokenTTL,
	})

	// --- Background jobs ---
	workers.NewFulfillmentWorker(fulfillmentService, cfg.FulfillmentInterval).Start(ctx)

	sched, err := services.StartArchiveScheduler(archiver)
	if err != nil {
		log.Fatal("failed to start archive scheduler:", err)
	}

	// --- HTTP ---
	app := fiber.New(fiber.Config{
		BodyLimit: 1 * 1024 * 1024,
		// c.IP() reads X-Forwarded-For only from these proxies
		ProxyHeader:             fiber.HeaderXForwardedFor,
		EnableTrustedProxyCheck: true,
		TrustedProxies:          cfg.TrustedProxies,
		EnableIPValidation:      true,
	})
	app.Use(recover.New())
	app.Use(logger.New())
	app.Use(cors.New(cors.Config{
		AllowOrigins: cfg.AllowedOrigins,
		AllowMethods: "GET,POST,DELETE,OPTIONS",
		AllowHeaders: "Origin, Content-Type, Accept, Authorization, X-Requested-With",
		MaxAge:       86400,
	}))

	handlers.SetupAdminRoutes(app, adminService, adminSecret)
	handlers.SetupUserRoutes(app, accountService, cfg.GatewayServiceToken)
	handlers.SetupPublicRoutes(app, handlers.PublicServices{
		Blocking: blockingService,
		Leads:    leadService,
		Postback: postbackService,
		Payments: paymentService,
		Profiles: profileService,
	}, middleware.NewIPRateLimiter(cfg.SubmitRatePerMinute))

	go func() {
		if err := app.Listen(fmt.Sprintf(":%d", cfg.Port)); err != nil {
			log.Printf("Server error: %v", err)
		}
	}()

	log.Printf("✅ Server running on http://localhost:%d", cfg.Port)
	log.Printf("✅ Blocking policy: %s", blockingService.Policy)
	log.Printf("✅ CORS configured for origins: %s", cfg.AllowedOrigins)

	<-ctx.Done()
	log.Println("Shutting down server...")

	if sched != nil {
		if err := sched.Shutdown(); err != nil {
			log.Printf("Scheduler shutdown error: %v", err)
		}
	}
	if err := app.ShutdownWithTimeout(10 * time.Second); err != nil {
		log.Printf("Server shutdown error: %v", err)
	}
}
