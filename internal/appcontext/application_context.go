package appcontext

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"os"

	"github.com/RoyceAzure/lab/storefront/internal/config"
	"github.com/RoyceAzure/lab/storefront/internal/constants"
	"github.com/RoyceAzure/lab/storefront/internal/infra/producer"
	"github.com/RoyceAzure/lab/storefront/internal/infra/repository/db"
	"github.com/RoyceAzure/lab/storefront/internal/infra/repository/redis_decorator"
	"github.com/RoyceAzure/lab/storefront/internal/infra/repository/redis_repo"
	applogger "github.com/RoyceAzure/lab/storefront/internal/logger"
	"github.com/RoyceAzure/lab/storefront/internal/pkg/util"
	"github.com/RoyceAzure/lab/storefront/internal/service"
	kafka_config "github.com/RoyceAzure/lab/storefront/pkg/kafka/config"
	kafka_producer "github.com/RoyceAzure/lab/storefront/pkg/kafka/producer"
	"github.com/RoyceAzure/lab/storefront/pkg/ratelimit"
	"github.com/RoyceAzure/lab/storefront/pkg/redis_client"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
	"gorm.io/gorm"
)

type ApplicationContext struct {
	Cf     *config.Config
	Logger zerolog.Logger

	DbConn      *gorm.DB
	UnifiedDB   *db.UnifiedDBImpl
	RedisClient *redis.Client
	// Store 對外使用的 store, 有 redis 時包一層 cache-aside
	Store db.UnifiedDB

	logWriter      *applogger.KafkaWriter
	eventProducer  *producer.OrderEventProducer
	EventPublisher producer.IOrderEventPublisher

	CheckoutLimiter ratelimit.Limiter

	InventoryLedger  service.IInventoryLedger
	RatingAggregator service.IRatingAggregator
	CartService      service.ICartService
	CheckoutService  service.ICheckoutService
	OrderService     service.IOrderService
	ReviewService    service.IReviewService
}

func NewApplicationContext(cf *config.Config) (*ApplicationContext, error) {
	app := ApplicationContext{
		Cf: cf,
	}
	if err := app.Init(); err != nil {
		return nil, err
	}
	return &app, nil
}

func (app *ApplicationContext) Init() error {
	steps := []func() error{
		app.setUpLogger,
		app.setUpDbConn,
		app.setUpDbMigration,
		app.setUpCatalogSeed,
		app.setUpRedis,
		app.setUpEventPublisher,
		app.setUpRateLimiter,
		app.setUpServices,
	}
	for _, step := range steps {
		if err := step(); err != nil {
			return err
		}
	}
	return nil
}

// setUpLogger 有設定 LOG_KAFKA_TOPIC 時 log 同時寫到 kafka
func (app *ApplicationContext) setUpLogger() error {
	log.Printf("Start setup logger")
	writers := []io.Writer{os.Stdout}
	if brokers := app.Cf.KafkaBrokerList(); len(brokers) > 0 && app.Cf.LogKafkaTopic != "" {
		cfg := kafka_config.DefaultConfig()
		cfg.Brokers = brokers
		cfg.Topic = app.Cf.LogKafkaTopic
		p, err := kafka_producer.New(cfg)
		if err != nil {
			return fmt.Errorf("create log producer: %w", err)
		}
		app.logWriter = applogger.NewKafkaWriter(p)
		writers = append(writers, app.logWriter)
	}
	app.Logger = applogger.New(app.Cf.ServiceName, app.Cf.LogLevel, writers...)
	log.Printf("Finish setup logger")
	return nil
}

func (app *ApplicationContext) setUpDbConn() error {
	log.Printf("Start setup database connection")
	conn, err := db.GetDbConn(app.Cf.DbName, app.Cf.DbHost, app.Cf.DbPort, app.Cf.DbUser, app.Cf.DbPas)
	if err != nil {
		return fmt.Errorf("connect database: %w", err)
	}
	app.DbConn = conn
	app.UnifiedDB = db.NewUnifiedDB(conn)
	app.Store = app.UnifiedDB
	log.Printf("Finish setup database connection")
	return nil
}

// setUpDbMigration 有 DB_MIGRATION_URL 走 sql migration, 否則只在 dev 用 AutoMigrate
func (app *ApplicationContext) setUpDbMigration() error {
	log.Printf("Start setup db migration")
	switch {
	case app.Cf.MigrationURL != "":
		err := db.RunMigrations(app.Cf.MigrationURL,
			db.MigrationURL(app.Cf.DbName, app.Cf.DbHost, app.Cf.DbPort, app.Cf.DbUser, app.Cf.DbPas))
		if err != nil {
			return fmt.Errorf("run migrations: %w", err)
		}
	case constants.ENV(app.Cf.Env) != constants.Prod:
		if err := app.UnifiedDB.InitMigrate(); err != nil {
			return fmt.Errorf("auto migrate: %w", err)
		}
	default:
		log.Printf("skip migration, DB_MIGRATION_URL is empty")
	}
	log.Printf("Finish setup db migration")
	return nil
}

func (app *ApplicationContext) setUpCatalogSeed() error {
	if app.Cf.SeedCatalogFile == "" {
		return nil
	}
	log.Printf("Start setup catalog seed")
	seed, err := db.LoadCatalogSeed(app.Cf.SeedCatalogFile)
	if err != nil {
		return fmt.Errorf("load catalog seed: %w", err)
	}
	if err := app.UnifiedDB.SeedCatalog(context.Background(), seed); err != nil {
		return fmt.Errorf("seed catalog: %w", err)
	}
	log.Printf("Finish setup catalog seed, %d products", len(seed.Products))
	return nil
}

// setUpRedis 沒有 REDIS_ADDR 時不使用快取
func (app *ApplicationContext) setUpRedis() error {
	if app.Cf.RedisAddr == "" {
		log.Printf("skip redis, REDIS_ADDR is empty")
		return nil
	}
	log.Printf("Start setup redis")
	client, err := redis_client.GetRedisClient(app.Cf.RedisAddr,
		redis_client.WithPassword(app.Cf.RedisPassword),
		redis_client.WithDB(app.Cf.RedisDB),
	)
	if err != nil {
		return err
	}
	if err := redis_client.Ping(context.Background(), client); err != nil {
		return fmt.Errorf("ping redis: %w", err)
	}
	app.RedisClient = client
	app.Store = redis_decorator.NewCacheAsideStore(app.UnifiedDB, redis_repo.NewProductCache(client, app.Cf.ProductCacheTTL))
	log.Printf("Finish setup redis")
	return nil
}

// setUpEventPublisher 沒有 KAFKA_BROKERS 時事件直接丟棄
func (app *ApplicationContext) setUpEventPublisher() error {
	brokers := app.Cf.KafkaBrokerList()
	if len(brokers) == 0 {
		log.Printf("skip order event producer, KAFKA_BROKERS is empty")
		app.EventPublisher = producer.NoopPublisher{}
		return nil
	}
	log.Printf("Start setup order event producer")
	cfg := kafka_config.DefaultConfig()
	cfg.Brokers = brokers
	cfg.Topic = app.Cf.OrderEventTopic
	p, err := kafka_producer.New(cfg)
	if err != nil {
		return fmt.Errorf("create order event producer: %w", err)
	}
	app.eventProducer = producer.NewOrderEventProducer(p)
	app.EventPublisher = app.eventProducer
	log.Printf("Finish setup order event producer")
	return nil
}

func (app *ApplicationContext) setUpRateLimiter() error {
	log.Printf("Start setup rate limiter")
	cfg := ratelimit.GetDefaultLimiterConfig()
	if app.Cf.RateLimitCapacity > 0 {
		cfg.Capacity = app.Cf.RateLimitCapacity
	}
	if app.Cf.RateLimitRatePS > 0 {
		cfg.RatePS = app.Cf.RateLimitRatePS
	}

	limiterType := ratelimit.RateLimitType(app.Cf.RateLimitType)
	var client redis.Scripter
	if app.RedisClient != nil {
		client = app.RedisClient
	} else if limiterType == ratelimit.RedisBucket {
		log.Printf("redis rate limiter requires REDIS_ADDR, fallback to local token bucket")
		limiterType = ratelimit.TokenBucketType
	}
	limiter, err := ratelimit.NewLimiter(limiterType, cfg, client)
	if err != nil {
		return err
	}
	app.CheckoutLimiter = limiter
	log.Printf("Finish setup rate limiter")
	return nil
}

func (app *ApplicationContext) setUpServices() error {
	log.Printf("Start setup services")
	threshold, fee := app.Cf.ShippingPolicy()

	app.InventoryLedger = service.NewInventoryLedger(app.Store, app.Logger.With().Str("component", "inventory").Logger())
	app.RatingAggregator = service.NewRatingAggregator(app.Store)
	app.CartService = service.NewCartService(app.Store, app.Logger.With().Str("component", "cart").Logger())
	app.CheckoutService = service.NewCheckoutService(
		app.Store,
		app.InventoryLedger,
		app.EventPublisher,
		util.NewOrderNumberGenerator(app.Cf.OrderNumberPrefix),
		service.ShippingPolicy{FreeThreshold: threshold, FlatFee: fee},
		app.Logger.With().Str("component", "checkout").Logger(),
	)
	app.OrderService = service.NewOrderService(app.Store, app.InventoryLedger, app.EventPublisher,
		app.Logger.With().Str("component", "order").Logger())
	app.ReviewService = service.NewReviewService(app.Store, app.RatingAggregator,
		app.Logger.With().Str("component", "review").Logger())
	log.Printf("Finish setup services")
	return nil
}

// PingDB healthz 使用
func (app *ApplicationContext) PingDB(ctx context.Context) error {
	sqlDB, err := app.DbConn.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}

func (app *ApplicationContext) PingRedis(ctx context.Context) error {
	return redis_client.Ping(ctx, app.RedisClient)
}

// Shutdown 外部連線各自關閉, 一個失敗不影響其他
func (app *ApplicationContext) Shutdown(ctx context.Context) error {
	log.Printf("Start application shutdown")

	done := make(chan error, 1)
	go func() {
		var g errgroup.Group
		if app.eventProducer != nil {
			g.Go(func() error {
				log.Printf("Closing order event producer...")
				return app.eventProducer.Close()
			})
		}
		if app.RedisClient != nil {
			g.Go(func() error {
				log.Printf("Closing redis clients...")
				return redis_client.CloseAll()
			})
		}
		if app.DbConn != nil {
			g.Go(func() error {
				log.Printf("Closing database connection...")
				sqlDB, err := app.DbConn.DB()
				if err != nil {
					return err
				}
				return sqlDB.Close()
			})
		}
		err := g.Wait()

		// logger 最後關, 前面的 log 才送得出去
		if app.logWriter != nil {
			log.Printf("Shutting down logger...")
			err = errors.Join(err, app.logWriter.Close())
		}
		log.Printf("Application shutdown complete")
		done <- err
	}()

	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		return fmt.Errorf("shutdown timeout: %v", ctx.Err())
	}
}
