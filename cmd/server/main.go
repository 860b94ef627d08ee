package main

import (
	"os"

	"meetdraft/internal/ai"
	"meetdraft/internal/api"
	"meetdraft/internal/config"
	"meetdraft/internal/db"
	"meetdraft/internal/logging"
	"meetdraft/internal/pipeline"
	"meetdraft/internal/repository"
	"meetdraft/internal/transcript"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
)

func main() {
	// Load .env file if it exists (ignore error if file doesn't exist)
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		bootLog := logging.New("info", true)
		bootLog.Fatal().Err(err).Msg("failed to load configuration")
	}

	log := logging.New(cfg.LogLevel, os.Getenv("GIN_MODE") == "debug")

	// Set Gin mode (default to release mode)
	if os.Getenv("GIN_MODE") == "" {
		gin.SetMode(gin.ReleaseMode)
	}

	// Pick the repository: Postgres when DATABASE_URL is set, otherwise
	// the in-memory store for local development.
	var repo repository.Repository
	if cfg.DatabaseURL != "" {
		if err := db.Init(cfg.DatabaseURL, cfg.DBTimeout); err != nil {
			log.Fatal().Err(err).Msg("failed to initialize database")
		}
		repo = repository.NewPostgresRepository(db.DB)
		log.Info().Msg("using postgres repository")
	} else {
		repo = repository.NewMemoryRepository()
		log.Warn().Msg("DATABASE_URL not set, using in-memory repository")
	}

	client := ai.NewClient(cfg.OpenAIKey, cfg.OpenAIModel, cfg.MaxOutputTokens, cfg.GenerateTimeout)
	generator := ai.NewGenerator(client, repo, cfg.OpenAIModel, log)
	downloader := transcript.NewDownloader(cfg.DownloadTimeout)
	handler := pipeline.NewHandler(repo, downloader, generator, log)

	r := gin.Default()
	r.Use(corsMiddleware())

	server := api.NewServer(repo, handler, log)
	server.RegisterRoutes(r)

	log.Info().Str("port", cfg.Port).Msg("meetdraft backend running")
	if err := r.Run(":" + cfg.Port); err != nil {
		log.Fatal().Err(err).Msg("failed to start server")
	}
}

// corsMiddleware adds CORS headers for browser clients
func corsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
		c.Writer.Header().Set("Access-Control-Allow-Credentials", "true")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type, Content-Length, Accept-Encoding, X-CSRF-Token, Authorization, accept, origin, Cache-Control, X-Requested-With")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "POST, OPTIONS, GET, PUT, DELETE")

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(204)
			return
		}

		c.Next()
	}
}
