package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"guildstats/internal/api"
	"guildstats/internal/ingest"
	"guildstats/internal/models"
	"guildstats/internal/repository"
	"guildstats/internal/source"
	"guildstats/internal/stats"
	"guildstats/pkg/cache"
	"guildstats/pkg/config"
	"guildstats/pkg/logger"
)

func main() {
	// Load environment variables
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found")
	}

	cfg := config.New()

	// Initialize structured logger
	logConfig := logger.DefaultConfig()
	logConfig.Level = cfg.Logging.Level
	logConfig.JSON = cfg.Logging.Format != "text"

	appLog := logger.New(logConfig)
	logger.SetGlobal(appLog)

	appLog.Info("Starting guildstats", "version", os.Getenv("APP_VERSION"))

	// Initialize database
	db, err := config.NewDB()
	if err != nil {
		appLog.LogError(err, "Failed to initialize database")
		os.Exit(1)
	}

	// Auto-migrate the schema
	if err := db.AutoMigrate(&models.Channel{}, &models.User{}, &models.Message{}); err != nil {
		appLog.LogError(err, "Failed to migrate database")
		os.Exit(1)
	}

	// Indexes the aggregation queries lean on
	if err := db.Exec("CREATE INDEX IF NOT EXISTS idx_messages_channel_id ON messages(channel_id, id)").Error; err != nil {
		appLog.LogError(err, "Failed to create message index", "index", "idx_messages_channel_id")
	}
	if err := db.Exec("CREATE INDEX IF NOT EXISTS idx_messages_guild_created ON messages(guild_id, created_at)").Error; err != nil {
		appLog.LogError(err, "Failed to create message index", "index", "idx_messages_guild_created")
	}

	// Repositories
	channelRepo := repository.NewGormChannelRepository(db)
	userRepo := repository.NewGormUserRepository(db)
	messageRepo := repository.NewGormMessageRepository(db)
	statsRepo := repository.NewGormStatsRepository(db)

	// Discord source
	discord, err := source.NewDiscord(cfg.Discord.Token)
	if err != nil {
		appLog.LogError(err, "Failed to create Discord session")
		os.Exit(1)
	}
	if err := discord.Start(); err != nil {
		appLog.LogError(err, "Failed to connect to Discord")
		os.Exit(1)
	}
	defer discord.Stop()
	appLog.Info("Connected to Discord", "guilds", len(cfg.Discord.Guilds))

	// Sync engine: one limiter shared by every request the pass issues
	limiter := ingest.NewFixedDelay(cfg.Sync.RequestDelay)
	syncer := ingest.NewChannelSyncer(discord, messageRepo, userRepo, limiter, ingest.SyncerOptions{
		PageSize:     cfg.Sync.PageSize,
		Retention:    cfg.Sync.RetentionCutoff,
		StoreContent: cfg.Sync.StoreContent,
	}, appLog)
	orchestrator := ingest.NewOrchestrator(discord, channelRepo, syncer, cfg.GuildIDs(), appLog)
	scheduler := ingest.NewScheduler(cfg.Sync.PassInterval, orchestrator.RunPass, appLog)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go scheduler.Start(ctx)

	// Read-side service behind a short-lived cache
	var statsCache cache.Cache
	if cfg.Cache.Enabled {
		if cfg.Cache.RedisAddr != "" {
			statsCache = cache.NewRedis(cfg.Cache.RedisAddr)
		} else {
			statsCache = cache.NewMemory(cfg.Cache.MaxSize, 10*time.Minute)
		}
	}
	statsService := stats.NewService(statsRepo, statsCache, cfg.Cache.TTL, appLog)

	router := api.New(db, statsService, appLog)
	go func() {
		if err := router.Run(":" + cfg.Server.Port); err != nil {
			appLog.LogError(err, "HTTP server stopped")
			stop()
		}
	}()
	appLog.Info("Ops server listening", "port", cfg.Server.Port)

	<-ctx.Done()
	appLog.Info("Shutting down")
}
