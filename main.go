package main

import (
	"context"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"agrichain_go/api"
	"agrichain_go/events"
	"agrichain_go/ledger"
	"agrichain_go/storage"
	"agrichain_go/supply"
	"agrichain_go/utils"
)

// AppConfig holds all startup configuration.
type AppConfig struct {
	Port           int
	Verbose        bool
	DataDir        string
	StorageBackend string // "leveldb" or "mongo"
	MongoURI       string
	MongoDB        string
	PublisherType  string // "none" or "nats"
	NatsURL        string
	VerifyBaseURL  string
}

// dataStore is the full persistence surface a backend must provide.
type dataStore interface {
	supply.Store
	ledger.BlockStore
	Close() error
}

func getEnv(key, defaultValue string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	valStr := os.Getenv(key)
	if valStr == "" {
		return defaultValue
	}
	valInt, err := strconv.Atoi(valStr)
	if err != nil {
		log.Printf("Warning: Invalid integer value for %s: %s. Using default %d.", key, valStr, defaultValue)
		return defaultValue
	}
	return valInt
}

func loadConfig() *AppConfig {
	config := &AppConfig{}

	// Environment variables provide the defaults; CLI flags override them.
	flag.IntVar(&config.Port, "port", getEnvInt("API_PORT", 5000), "Port for the HTTP API")
	flag.BoolVar(&config.Verbose, "verbose", os.Getenv("VERBOSE") == "true" || os.Getenv("VERBOSE") == "1", "Enable detailed logging")
	flag.StringVar(&config.DataDir, "datadir", getEnv("DATA_DIR", "data"), "Directory for LevelDB ledger data")
	flag.StringVar(&config.StorageBackend, "storage", getEnv("STORAGE_BACKEND", "leveldb"), "Storage backend: leveldb or mongo")
	flag.StringVar(&config.MongoURI, "mongouri", getEnv("MONGODB_URI", "mongodb://localhost:27017"), "MongoDB connection URI")
	flag.StringVar(&config.MongoDB, "mongodb", getEnv("MONGODB_DATABASE", "agrichain"), "MongoDB database name")
	flag.StringVar(&config.PublisherType, "publisher", getEnv("PUBLISHER_TYPE", "none"), "Block event publisher: none or nats")
	flag.StringVar(&config.NatsURL, "natsurl", getEnv("NATS_URL", "nats://localhost:4222"), "NATS server URL")
	flag.StringVar(&config.VerifyBaseURL, "verifyurl", getEnv("VERIFY_BASE_URL", supply.DefaultVerifyBaseURL), "Base URL embedded in product QR codes")
	flag.Parse()

	return config
}

func openStore(ctx context.Context, config *AppConfig) (dataStore, error) {
	if config.StorageBackend == "mongo" {
		return storage.NewMongoStore(ctx, config.MongoURI, config.MongoDB)
	}
	return storage.NewLevelStore(config.DataDir)
}

func main() {
	if _, err := os.Stat(".env"); err == nil {
		if err := godotenv.Load(".env"); err != nil {
			log.Printf("Warning: Error loading .env file: %v", err)
		}
	}

	config := loadConfig()

	log.SetFlags(log.Ldate | log.Ltime | log.Lmicroseconds)
	log.SetOutput(os.Stdout)
	utils.SetVerbose(config.Verbose)

	appCtx, cancelApp := context.WithCancel(context.Background())
	defer cancelApp()

	if config.StorageBackend != "mongo" {
		if err := os.MkdirAll(config.DataDir, 0755); err != nil {
			log.Fatalf("Error creating data directory %s: %v", config.DataDir, err)
		}
	}

	store, err := openStore(appCtx, config)
	if err != nil {
		log.Fatalf("Error opening %s store: %v", config.StorageBackend, err)
	}

	chain := ledger.NewWriter(store)
	height, err := chain.Height(appCtx)
	if err != nil {
		log.Fatalf("Error reading chain height: %v", err)
	}
	utils.LogInfo("Ledger initialized at height %d (%s backend)", height, config.StorageBackend)

	publisher, err := events.NewPublisher(events.Config{Type: config.PublisherType, URL: config.NatsURL})
	if err != nil {
		log.Fatalf("Error initializing %s publisher: %v", config.PublisherType, err)
	}

	hub := events.NewHub()
	go hub.Run()

	chain.OnBlock(func(b *ledger.Block) {
		hub.Broadcast("block", b)
		if err := publisher.Publish(events.BlockSubject, b); err != nil {
			utils.LogError("Publishing block %d: %v", b.BlockNumber, err)
		}
	})

	service := supply.NewService(store, chain)
	service.SetVerifyBaseURL(config.VerifyBaseURL)

	server := api.NewServer(service, chain, hub)
	server.SetupRoutes()

	setupGracefulShutdown(cancelApp, server, store, publisher)

	utils.PrintStartupMessage(config.Port, config.StorageBackend)
	if err := server.Start(config.Port); err != nil && err != http.ErrServerClosed {
		log.Fatalf("HTTP server failed: %v", err)
	}

	<-appCtx.Done()
	utils.LogInfo("Application shut down.")
}

func setupGracefulShutdown(cancelApp context.CancelFunc, server *api.Server, store dataStore, publisher events.Publisher) {
	c := make(chan os.Signal, 1)
	signal.Notify(c, os.Interrupt, syscall.SIGTERM)

	go func() {
		sig := <-c
		utils.LogInfo("Received shutdown signal: %s. Initiating graceful shutdown...", sig.String())

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer shutdownCancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			utils.LogError("HTTP server shutdown error: %v", err)
		}

		if err := publisher.Close(); err != nil {
			utils.LogError("Publisher close error: %v", err)
		}
		if err := store.Close(); err != nil {
			utils.LogError("Store close error: %v", err)
		}

		cancelApp()
		utils.LogInfo("Graceful shutdown completed. Exiting.")
		os.Exit(0)
	}()
}
