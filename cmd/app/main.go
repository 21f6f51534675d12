package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/wichananm65/catfood-compare/internal/auth"
	"github.com/wichananm65/catfood-compare/internal/compare"
	"github.com/wichananm65/catfood-compare/internal/config"
	"github.com/wichananm65/catfood-compare/internal/database"
	"github.com/wichananm65/catfood-compare/internal/presenter"
	"github.com/wichananm65/catfood-compare/internal/recommend"
	"github.com/wichananm65/catfood-compare/internal/session"
)

func main() {
	configPath := flag.String("config", "", "path to configuration file")
	issueFor := flag.String("issue-token", "", "print an operator token for this subject and exit")
	tokenTTL := flag.Duration("token-ttl", 24*time.Hour, "lifetime of a token printed by -issue-token")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}

	if *issueFor != "" {
		if err := printToken(os.Stdout, cfg.JWT.Secret, *issueFor, *tokenTTL); err != nil {
			fmt.Fprintf(os.Stderr, "issue token: %v\n", err)
			os.Exit(1)
		}
		return
	}

	logger, err := config.NewLogger(cfg.Log)
	if err != nil {
		fmt.Fprintf(os.Stderr, "logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync() //nolint:errcheck

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logger); err != nil {
		logger.Fatal("server stopped", zap.Error(err))
	}
	logger.Info("server stopped")
}

func printToken(w io.Writer, secret, subject string, ttl time.Duration) error {
	token, err := auth.IssueToken(secret, subject, ttl, time.Now())
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(w, token)
	return err
}

func run(ctx context.Context, cfg config.Config, logger *zap.Logger) error {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	store, err := openBasket(ctx, cfg, logger, reg)
	if err != nil {
		return err
	}
	defer store.close()

	ranker := recommend.NewClient(recommend.ClientConfig{
		BaseURL:       cfg.Upstream.URL,
		Timeout:       cfg.Upstream.Timeout,
		RatePerSecond: cfg.Upstream.RatePerSecond,
		Burst:         cfg.Upstream.Burst,
	}, logger.Named("upstream"), recommend.NewMetrics(reg))
	pages := session.NewManager(session.Config{
		MaxItems:      store.maxItems,
		IdleTTL:       cfg.Session.IdleTTL,
		SweepInterval: cfg.Session.SweepInterval,
		Format:        presenter.NewFormatter(cfg.Locale),
	}, store.api, ranker, logger.Named("session"), reg)

	app := newApp(cfg, logger, reg, store.local, ranker, pages)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("listening", zap.String("addr", cfg.Addr), zap.String("store", store.name))
		return app.Listen(cfg.Addr)
	})
	g.Go(func() error {
		return pages.Run(gctx)
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return app.ShutdownWithContext(shutdownCtx)
	})
	return g.Wait()
}

// newApp builds the HTTP surface. A nil basket means the baskets live in a
// remote store, so the compare routes are not served here.
func newApp(cfg config.Config, logger *zap.Logger, reg *prometheus.Registry, basket *compare.Service, ranker recommend.Recommender, pages *session.Manager) *fiber.App {
	app := fiber.New(fiber.Config{DisableStartupMessage: true})
	app.Use(recover.New())
	setupCORS(app)
	app.Use(requestLogger(logger))

	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"status": "ok"})
	})
	app.Get("/metrics", adaptor.HTTPHandler(promhttp.HandlerFor(reg, promhttp.HandlerOpts{})))

	var compareHandler *compare.Handler
	if basket != nil {
		compareHandler = compare.NewHandler(basket, logger.Named("compare"))
		compareHandler.RegisterPublicRoutes(app)
	}
	recommend.NewHandler(ranker, logger.Named("upstream")).RegisterPublicRoutes(app)
	session.NewHandler(pages, logger.Named("session")).RegisterPublicRoutes(app)

	admin := app.Group("/api/admin", auth.Middleware(cfg.JWT.Secret), auth.RequireOperator)
	if compareHandler != nil {
		compareHandler.RegisterProtectedRoutes(admin)
	}
	admin.Get("/sessions", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"active": pages.Len()})
	})
	return app
}

type basketStore struct {
	name     string
	api      presenter.Basket
	local    *compare.Service
	maxItems int
	close    func()
}

// openBasket picks where the session pages keep baskets: the remote store at
// basket.url when set, otherwise a local service over the configured database.
func openBasket(ctx context.Context, cfg config.Config, logger *zap.Logger, reg prometheus.Registerer) (basketStore, error) {
	if cfg.Basket.URL != "" {
		client := compare.NewClient(cfg.Basket.URL, nil)
		maxItems, err := client.MaxItems(ctx)
		if err != nil || maxItems <= 0 {
			logger.Warn("remote basket store did not report its capacity",
				zap.String("url", cfg.Basket.URL), zap.Int("maxItems", maxItems), zap.Error(err))
			maxItems = compare.MaxItems
		}
		return basketStore{name: "remote", api: client, maxItems: maxItems, close: func() {}}, nil
	}

	repo, closeStore, err := openStore(ctx, cfg.Database, logger)
	if err != nil {
		return basketStore{}, err
	}
	local := compare.NewService(repo, logger.Named("compare"), compare.NewMetrics(reg))
	return basketStore{name: cfg.Database.Driver, api: local, local: local, maxItems: local.MaxItems(), close: closeStore}, nil
}

// openStore returns the basket repository selected by cfg.Driver and a func
// releasing its resources.
func openStore(ctx context.Context, cfg config.Database, logger *zap.Logger) (compare.Repository, func(), error) {
	switch cfg.Driver {
	case config.StoreMemory:
		logger.Warn("using the in-memory basket store; baskets are lost on restart")
		return compare.NewInMemoryRepository(), func() {}, nil
	case config.StorePostgres:
		db, err := database.OpenPostgres(ctx, cfg.PgDriver, cfg.URL)
		if err != nil {
			return nil, nil, err
		}
		repo := compare.NewPostgresRepository(db)
		if err := repo.Migrate(ctx); err != nil {
			db.Close()
			return nil, nil, err
		}
		return repo, func() { db.Close() }, nil
	case config.StoreSQLite:
		db, err := database.OpenSQLite(ctx, cfg.SQLitePath)
		if err != nil {
			return nil, nil, err
		}
		repo := compare.NewSQLiteRepository(db)
		if err := repo.Migrate(ctx); err != nil {
			db.Close()
			return nil, nil, err
		}
		return repo, func() { db.Close() }, nil
	}
	return nil, nil, errors.New("unknown store " + cfg.Driver)
}

func setupCORS(app *fiber.App) {
	app.Use(cors.New(cors.Config{
		AllowOrigins: "*",
		AllowMethods: "GET,POST,HEAD,PUT,DELETE,PATCH",
		AllowHeaders: "Origin, Content-Type, Accept, Authorization, " + compare.BasketHeader,
	}))
}

func requestLogger(logger *zap.Logger) fiber.Handler {
	return func(c *fiber.Ctx) error {
		start := time.Now()
		err := c.Next()
		logger.Debug("request",
			zap.String("method", c.Method()),
			zap.String("url", c.OriginalURL()),
			zap.Int("status", c.Response().StatusCode()),
			zap.Duration("took", time.Since(start)),
		)
		return err
	}
}
