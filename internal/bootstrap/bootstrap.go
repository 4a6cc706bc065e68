// Package bootstrap wires configuration, backends and services shared by the
// HTTP server and the worker CLI.
package bootstrap

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	"github.com/dea-registry/app/config"
	"github.com/dea-registry/app/services"
	"github.com/dea-registry/internal/gazetteer"
	"github.com/dea-registry/internal/matcher"
	"github.com/dea-registry/internal/records"
	"github.com/dea-registry/internal/search"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.uber.org/zap"
)

// app.port -> APP_PORT
var envKeyReplacer = strings.NewReplacer(".", "_")

// Container every long-lived component of the process
type Container struct {
	Config     config.ValidatorConfig
	Gazetteer  gazetteer.Backend
	Searcher   *search.GazetteerSearcher // nil when Meilisearch is disabled
	Records    records.Store
	Cache      services.ICacheService // nil when caching is disabled
	Validation *services.AddressValidationService
	Steps      *services.StepValidationService
	Preprocess *services.PreprocessingService
	Admin      *services.AdminService
	Logger     *zap.Logger
	closers    []func(context.Context) error
}

// LoadConfig reads .env, then config/app.yaml, then the environment
func LoadConfig() {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		log.Printf("Warning: cannot read .env: %v", err)
	}

	viper.SetConfigName("app")
	viper.SetConfigType("yaml")
	viper.AddConfigPath("./config")
	viper.AddConfigPath(".")

	viper.SetDefault("app.port", "8080")
	viper.SetDefault("app.env", "development")
	viper.SetDefault("gazetteer.backend", "memory")
	viper.SetDefault("gazetteer.version", "dev")
	viper.SetDefault("gazetteer.use_meilisearch", false)
	viper.SetDefault("mongo.database", "dea_registry")
	viper.SetDefault("meilisearch.url", "http://localhost:7700")
	viper.SetDefault("meilisearch.index", "gazetteer_addresses")
	viper.SetDefault("cache.backend", "memory")
	viper.SetDefault("cache.l1_size", 10000)
	viper.SetDefault("cache.ttl", "24h")
	viper.SetDefault("validator.config", "config/validator.yaml")

	viper.SetEnvKeyReplacer(envKeyReplacer)
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err != nil {
		log.Printf("Warning: cannot read config file: %v", err)
	}
}

// InitLogger production config when app.env=production
func InitLogger() *zap.Logger {
	var cfg zap.Config
	if viper.GetString("app.env") == "production" {
		cfg = zap.NewProductionConfig()
	} else {
		cfg = zap.NewDevelopmentConfig()
	}
	logger, err := cfg.Build()
	if err != nil {
		log.Fatal("Cannot initialize logger:", err)
	}
	return logger
}

// Build connects the configured backends and creates the services
func Build(ctx context.Context, logger *zap.Logger) (*Container, error) {
	cfg, err := config.Load(viper.GetString("validator.config"))
	if err != nil {
		return nil, err
	}

	c := &Container{Config: cfg, Logger: logger}

	var mongoDB *mongo.Database
	if url := viper.GetString("mongo.url"); url != "" {
		mongoDB, err = c.connectMongo(ctx, url, viper.GetString("mongo.database"))
		if err != nil {
			return nil, err
		}
	}

	if err := c.buildGazetteer(ctx, mongoDB); err != nil {
		c.Close(ctx)
		return nil, err
	}
	if err := c.buildCache(ctx, mongoDB); err != nil {
		c.Close(ctx)
		return nil, err
	}

	if mongoDB != nil {
		store := records.NewMongoStore(mongoDB, logger)
		if err := store.EnsureIndexes(ctx); err != nil {
			logger.Warn("creating record indexes failed", zap.Error(err))
		}
		c.Records = store
	} else {
		logger.Warn("mongo.url not set, DEA records are kept in memory")
		c.Records = records.NewMemoryStore()
	}

	store := gazetteer.NewStore(c.Gazetteer, cfg.Matching, logger)
	addressMatcher := matcher.NewAddressMatcher(store, cfg.Matching, logger)
	c.Validation = services.NewAddressValidationService(addressMatcher, c.Cache, viper.GetString("gazetteer.version"), cfg.UseLibpostal, logger)
	c.Steps = services.NewStepValidationService(c.Records, c.Validation, cfg.Matching.StepCoordinateSkipMeters, logger)
	c.Preprocess = services.NewPreprocessingService(c.Records, c.Validation, cfg.Batch, logger)

	var index services.IndexBuilder
	if c.Searcher != nil {
		index = c.Searcher
	}
	c.Admin = services.NewAdminService(c.Gazetteer, index, c.Validation, c.Records, logger)
	return c, nil
}

// Close releases every connection opened by Build
func (c *Container) Close(ctx context.Context) {
	for i := len(c.closers) - 1; i >= 0; i-- {
		if err := c.closers[i](ctx); err != nil {
			c.Logger.Error("closing component", zap.Error(err))
		}
	}
	c.closers = nil
}

func (c *Container) connectMongo(ctx context.Context, url, database string) (*mongo.Database, error) {
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(url))
	if err != nil {
		return nil, fmt.Errorf("connecting to MongoDB: %w", err)
	}
	pingCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx, nil); err != nil {
		_ = client.Disconnect(ctx)
		return nil, fmt.Errorf("pinging MongoDB: %w", err)
	}
	c.closers = append(c.closers, client.Disconnect)
	c.Logger.Info("connected to MongoDB", zap.String("database", database))
	return client.Database(database), nil
}

func (c *Container) buildGazetteer(ctx context.Context, mongoDB *mongo.Database) error {
	var backend gazetteer.Backend
	switch kind := viper.GetString("gazetteer.backend"); kind {
	case "mongo":
		if mongoDB == nil {
			return errors.New("gazetteer.backend=mongo requires mongo.url")
		}
		repo, err := gazetteer.NewMongoRepository(mongoDB, c.Logger)
		if err != nil {
			return err
		}
		backend = repo
	case "postgres":
		db, err := gazetteer.OpenPostgres(ctx, viper.GetString("postgres.dsn"))
		if err != nil {
			return err
		}
		c.closers = append(c.closers, func(context.Context) error { return closeDB(db) })
		backend = gazetteer.NewPostgresRepository(db, c.Logger)
	case "memory":
		mem := gazetteer.NewMemoryRepository()
		if path := viper.GetString("gazetteer.seed_file"); path != "" {
			data, err := services.LoadGazetteerFile(path)
			if err != nil {
				return err
			}
			if _, err := mem.Upsert(ctx, data); err != nil {
				return err
			}
			c.Logger.Info("in-memory gazetteer loaded", zap.String("file", path), zap.Int("records", len(data)))
		}
		backend = mem
	default:
		return fmt.Errorf("unknown gazetteer.backend %q", kind)
	}
	if err := backend.EnsureIndexes(ctx); err != nil {
		c.Logger.Warn("creating gazetteer indexes failed", zap.Error(err))
	}

	if viper.GetBool("gazetteer.use_meilisearch") {
		searcher, err := search.NewGazetteerSearcher(search.SearchConfig{
			Host:          viper.GetString("meilisearch.url"),
			APIKey:        viper.GetString("meilisearch.master_key"),
			IndexName:     viper.GetString("meilisearch.index"),
			Timeout:       2 * time.Second,
			MaxCandidates: 200,
		}, c.Logger)
		if err != nil {
			c.Logger.Warn("Meilisearch unavailable, using the primary backend only", zap.Error(err))
		} else {
			c.Searcher = searcher
			backend = gazetteer.NewIndexedRepository(backend, searcher, 200, c.Logger)
		}
	}
	c.Gazetteer = backend
	return nil
}

func (c *Container) buildCache(ctx context.Context, mongoDB *mongo.Database) error {
	ttl := viper.GetDuration("cache.ttl")
	l1Size := viper.GetInt("cache.l1_size")

	switch kind := viper.GetString("cache.backend"); kind {
	case "none":
		return nil
	case "memory":
		cache, err := services.NewMemoryCacheService(l1Size, ttl, c.Logger)
		if err != nil {
			return err
		}
		c.Cache = cache
	case "redis":
		cache, err := services.NewRedisCacheService(viper.GetString("redis.url"), ttl, c.Logger)
		if err != nil {
			return err
		}
		c.Cache = cache
	case "mongo", "hybrid":
		if mongoDB == nil {
			return fmt.Errorf("cache.backend=%s requires mongo.url", kind)
		}
		mongoCache, err := services.NewMongoCacheService(mongoDB, l1Size, ttl, c.Logger)
		if err != nil {
			return err
		}
		if err := mongoCache.WarmUp(ctx, l1Size/2); err != nil {
			c.Logger.Warn("cache warm-up failed", zap.Error(err))
		}
		if kind == "mongo" {
			c.Cache = mongoCache
			break
		}
		redisCache, err := services.NewRedisCacheService(viper.GetString("redis.url"), ttl, c.Logger)
		if err != nil {
			return err
		}
		c.Cache = services.NewHybridCacheService(redisCache, mongoCache, c.Logger)
	default:
		return fmt.Errorf("unknown cache.backend %q", kind)
	}
	c.closers = append(c.closers, func(context.Context) error { return c.Cache.Close() })
	return nil
}

func closeDB(db *sql.DB) error {
	return db.Close()
}
