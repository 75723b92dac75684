package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/go-sql-driver/mysql"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/urfave/cli/v2"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
	"golang.org/x/sync/errgroup"

	domcart "example.com/storefront/internal/domain/cart"
	domorder "example.com/storefront/internal/domain/order"
	domuser "example.com/storefront/internal/domain/user"
	"example.com/storefront/internal/infra/config"
	"example.com/storefront/internal/infra/logger"
	"example.com/storefront/internal/infra/migrations"
	"example.com/storefront/internal/infra/persistence/memory"
	"example.com/storefront/internal/infra/persistence/mysql"
	"example.com/storefront/internal/infra/persistence/postgres"
	"example.com/storefront/internal/infra/security"
	"example.com/storefront/internal/infra/session"
	httpapi "example.com/storefront/internal/interface/http"
	authuc "example.com/storefront/internal/usecase/auth"
	cartuc "example.com/storefront/internal/usecase/cart"
	checkoutuc "example.com/storefront/internal/usecase/checkout"
	orderuc "example.com/storefront/internal/usecase/order"
)

func main() {
	app := &cli.App{
		Name:  "storefront",
		Usage: "cart and order service",
		Commands: []*cli.Command{
			{
				Name:   "serve",
				Usage:  "run the HTTP API",
				Action: serve,
			},
			{
				Name:  "migrate",
				Usage: "apply database migrations",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "target", Value: "all", Usage: "mysql, postgres or all"},
					&cli.BoolFlag{Name: "down", Usage: "roll back instead of applying"},
				},
				Action: migrate,
			},
			{
				Name:  "create-user",
				Usage: "create an account",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "email", Required: true},
					&cli.StringFlag{Name: "password", Required: true},
					&cli.StringFlag{Name: "name"},
					&cli.StringFlag{Name: "phone"},
					&cli.StringFlag{Name: "role", Value: string(domuser.RoleCodeCustomer)},
				},
				Action: createUser,
			},
		},
		DefaultCommand: "serve",
	}

	if err := app.Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func bootstrap() (*config.Config, *zap.Logger, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, err
	}
	log, err := logger.New(logger.Config{
		Level:  cfg.Log.Level,
		Format: cfg.Log.Format,
		Output: cfg.Log.Output,
	})
	if err != nil {
		return nil, nil, err
	}
	return cfg, log.With(zap.String("app", cfg.App.Name), zap.String("env", cfg.App.Env)), nil
}

func openMySQL(ctx context.Context, cfg config.MySQLConfig) (*sql.DB, error) {
	db, err := sql.Open("mysql", cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("mysql open: %w", err)
	}
	db.SetMaxOpenConns(cfg.MaxOpenConns)
	db.SetMaxIdleConns(cfg.MaxIdleConns)

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("mysql ping: %w", err)
	}
	return db, nil
}

func openPostgres(ctx context.Context, cfg config.PostgresConfig) (*pgxpool.Pool, error) {
	poolCfg, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("postgres config: %w", err)
	}
	if cfg.MaxConns > 0 {
		poolCfg.MaxConns = cfg.MaxConns
	}
	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("postgres connect: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("postgres ping: %w", err)
	}
	return pool, nil
}

func serve(c *cli.Context) error {
	cfg, log, err := bootstrap()
	if err != nil {
		return err
	}
	defer log.Sync()

	ctx, stop := signal.NotifyContext(c.Context, os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := openMySQL(ctx, cfg.MySQL)
	if err != nil {
		return err
	}
	defer db.Close()

	readiness := []httpapi.ReadinessCheck{{Name: "mysql", Check: db.PingContext}}

	var accountCarts domcart.Store = mysql.NewCartRepository(db)
	if cfg.Cart.Backend == config.CartBackendPostgres {
		pool, err := openPostgres(ctx, cfg.Postgres)
		if err != nil {
			return err
		}
		defer pool.Close()
		accountCarts = postgres.NewCartRepository(pool)
		readiness = append(readiness, httpapi.ReadinessCheck{Name: "postgres", Check: pool.Ping})
	}

	var sessionCarts domcart.Store
	if cfg.Redis.Addr != "" {
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		defer client.Close()
		if err := client.Ping(ctx).Err(); err != nil {
			return fmt.Errorf("failed to connect to Redis: %w", err)
		}
		sessionCarts = session.NewRedisCartStore(client, "", cfg.Session.TTL)
		readiness = append(readiness, httpapi.ReadinessCheck{
			Name:  "redis",
			Check: func(ctx context.Context) error { return client.Ping(ctx).Err() },
		})
	} else {
		log.Warn("redis.addr not set, session carts are kept in memory",
			zap.Duration("ttl", cfg.Session.TTL))
		store := memory.NewCartStore(cfg.Session.TTL)
		defer store.Close()
		sessionCarts = store
	}

	productRepo := mysql.NewProductRepository(db)
	userRepo := mysql.NewUserRepository(db)
	orderRepo := mysql.NewOrderRepository(db)

	tokens := security.NewJWTService(cfg.JWT.Secret, cfg.JWT.Expiration)
	hasher := security.NewBcryptService(bcrypt.DefaultCost)

	authSvc := authuc.NewService(userRepo, hasher, tokens)
	cartSvc := cartuc.NewService(accountCarts, sessionCarts, productRepo, log.Named("cart"), cartuc.Options{
		VerifyGuestProducts: cfg.Cart.VerifyGuestProducts,
	})
	orderSvc := orderuc.NewService(orderRepo, productRepo, domorder.Pricing{DeliveryCost: cfg.Order.DeliveryCost})
	checkoutSvc := checkoutuc.NewService(cartSvc, orderSvc, log.Named("checkout"))

	api := httpapi.NewAPI(httpapi.Dependencies{
		AuthService:     authSvc,
		CartService:     cartSvc,
		OrderService:    orderSvc,
		CheckoutService: checkoutSvc,
		TokenService:    tokens,
		Logger:          log.Named("http"),
		Session: httpapi.SessionConfig{
			CookieName: cfg.Session.CookieName,
			TTL:        cfg.Session.TTL,
			Secure:     cfg.Session.Secure || cfg.IsProduction(),
		},
		Readiness: readiness,
	})

	srv := &http.Server{
		Addr:              ":" + cfg.App.Port,
		Handler:           api.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info("listening", zap.String("addr", srv.Addr), zap.String("cart_backend", cfg.Cart.Backend))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.App.ShutdownTimeout)
		defer cancel()
		log.Info("shutting down")
		return srv.Shutdown(shutdownCtx)
	})
	return g.Wait()
}

type migrationTarget struct {
	name string
	dsn  string
}

func migrate(c *cli.Context) error {
	cfg, log, err := bootstrap()
	if err != nil {
		return err
	}
	defer log.Sync()

	var targets []migrationTarget
	switch c.String("target") {
	case "all":
		targets = append(targets, migrationTarget{migrations.TargetMySQL, cfg.MySQL.DSN})
		if cfg.Cart.Backend == config.CartBackendPostgres {
			targets = append(targets, migrationTarget{migrations.TargetPostgres, cfg.Postgres.DSN})
		}
	case migrations.TargetMySQL:
		targets = append(targets, migrationTarget{migrations.TargetMySQL, cfg.MySQL.DSN})
	case migrations.TargetPostgres:
		targets = append(targets, migrationTarget{migrations.TargetPostgres, cfg.Postgres.DSN})
	default:
		return fmt.Errorf("unknown migration target %q", c.String("target"))
	}

	for _, t := range targets {
		m, err := migrations.New(t.name, t.dsn, log)
		if err != nil {
			return err
		}
		if c.Bool("down") {
			err = m.Down()
		} else {
			err = m.Up()
		}
		closeErr := m.Close()
		if err != nil {
			return err
		}
		if closeErr != nil {
			return closeErr
		}
	}
	return nil
}

func createUser(c *cli.Context) error {
	cfg, log, err := bootstrap()
	if err != nil {
		return err
	}
	defer log.Sync()

	db, err := openMySQL(c.Context, cfg.MySQL)
	if err != nil {
		return err
	}
	defer db.Close()

	role, err := domuser.ParseRoleCode(c.String("role"))
	if err != nil {
		return err
	}

	svc := authuc.NewService(
		mysql.NewUserRepository(db),
		security.NewBcryptService(bcrypt.DefaultCost),
		security.NewJWTService(cfg.JWT.Secret, cfg.JWT.Expiration),
	)
	u, err := svc.CreateUser(c.Context, authuc.CreateUserInput{
		Name:     c.String("name"),
		Email:    c.String("email"),
		Phone:    c.String("phone"),
		Password: c.String("password"),
		RoleCode: role,
	})
	if err != nil {
		return err
	}

	log.Info("user created", zap.Int64("id", u.ID), zap.String("email", u.Email), zap.String("role", string(u.RoleCode)))
	return nil
}
