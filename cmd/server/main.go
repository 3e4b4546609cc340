package main // Entry point package

import (
	"log"

	"github.com/joho/godotenv"
	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"

	"github.com/eventbooker/eventbooker/internal/config"
	"github.com/eventbooker/eventbooker/internal/database"
	"github.com/eventbooker/eventbooker/internal/handler"
	"github.com/eventbooker/eventbooker/internal/middleware"
	"github.com/eventbooker/eventbooker/internal/mpesa"
	"github.com/eventbooker/eventbooker/internal/queue"
	"github.com/eventbooker/eventbooker/internal/repository"
	"github.com/eventbooker/eventbooker/internal/router"
	queuepublisher "github.com/eventbooker/eventbooker/internal/service"
)

func main() {
	// .env is a development convenience; in production the variables
	// come from the environment itself.
	if err := godotenv.Load(); err != nil {
		log.Printf("no .env file loaded: %v", err)
	}

	cfg := config.Load()

	db, err := database.Open(cfg.DBUser, cfg.DBPass, cfg.DBHost, cfg.DBPort, cfg.DBName)
	if err != nil {
		log.Fatalf("database: %v", err)
	}
	defer db.Close()

	events := repository.NewEventRepo(db)
	tickets := repository.NewTicketRepo(db)
	pushes := repository.NewPushRequestRepo(db)
	venues := repository.NewVenueRepo(db)
	users := repository.NewUserRepo(db)
	tokens := repository.NewTokenRepo(db)

	gateway := mpesa.NewClient(mpesa.Config{
		BaseURL:        cfg.MpesaBaseURL,
		ConsumerKey:    cfg.MpesaConsumerKey,
		ConsumerSecret: cfg.MpesaConsumerSecret,
		ShortCode:      cfg.MpesaShortCode,
		Passkey:        cfg.MpesaPasskey,
		CallbackURL:    cfg.MpesaCallbackURL,
	}, nil)

	bookings := handler.NewBookingHandler(events, tickets, pushes, gateway)
	callbacks := handler.NewCallbackHandler(tickets, pushes)
	callbacks.PublishResult = queuepublisher.PublishPaymentResult
	catalog := handler.NewCatalogHandler(events, venues)
	auth := handler.NewAuthHandler(cfg, users, tokens)
	admin := handler.NewAdminHandler(events, venues)

	// The consumer is optional infrastructure; a broker outage must not
	// keep the API from booting.
	go func() {
		if err := queue.StartPaymentConsumer(); err != nil {
			log.Printf("payment consumer stopped: %v", err)
		}
	}()

	e := echo.New()
	e.Use(echomw.Recover())

	// Redis backs both the global rate limiter and the catalog response
	// cache. NewRedisClient returns nil when Redis is unreachable, in
	// which case both middlewares become no-ops.
	rdb := config.NewRedisClient()
	e.Use(middleware.NewTokenBucket(config.LoadRateLimitConfig(), rdb))

	router.RegisterRoutes(e)
	router.RegisterCatalog(e, catalog, middleware.NewRedisCache(config.LoadCacheConfig(), rdb))
	router.RegisterBookings(e, bookings, callbacks)
	router.RegisterAuth(e, auth, admin, cfg.JWTSecret)

	addr := ":" + cfg.Port
	log.Printf("listening on %s (env=%s)", addr, cfg.Env)

	if err := e.Start(addr); err != nil {
		log.Fatal(err)
	}
}
