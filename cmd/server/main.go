package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"go.uber.org/zap"

	"github.com/hearthd/hearth/adapters/llm"
	"github.com/hearthd/hearth/adapters/media"
	"github.com/hearthd/hearth/adapters/memory"
	"github.com/hearthd/hearth/adapters/mongo"
	"github.com/hearthd/hearth/adapters/stt"
	"github.com/hearthd/hearth/adapters/tts"
	"github.com/hearthd/hearth/domain/entities"
	"github.com/hearthd/hearth/domain/repositories"
	"github.com/hearthd/hearth/internal/api"
	"github.com/hearthd/hearth/internal/websocket"
	"github.com/hearthd/hearth/pipeline"
	"github.com/hearthd/hearth/registry"
	"github.com/hearthd/hearth/satellite"
	"github.com/hearthd/hearth/session"
)

func main() {
	// Load .env in development; production sets real environment variables.
	godotenv.Load()

	logger, _ := zap.NewProduction()
	defer logger.Sync()

	baseURL := os.Getenv("HEARTH_BASE_URL")
	if baseURL == "" {
		baseURL = "http://localhost:8080"
	}

	// Session storage: MongoDB when reachable, in-memory otherwise.
	var sessionRepo repositories.SessionRepository
	mongoClient, err := mongo.NewClient(logger)
	if err != nil {
		logger.Warn("MongoDB unavailable, using in-memory sessions", zap.Error(err))
		sessionRepo = memory.NewSessionRepository()
	} else {
		defer mongoClient.Close(context.Background())
		sessionRepo = mongo.NewSessionRepository(mongoClient.Database)
	}
	sessions := session.NewManager(sessionRepo, logger)

	deviceRepo := memory.NewDeviceRepository()
	seedDevices(deviceRepo, logger)

	// Synthesis and recognition engines.
	var ttsEngine repositories.TextToSpeech
	ttsEngineID := tts.EngineID
	if os.Getenv("ELEVEN_LABS_API_KEY") != "" {
		engine, err := tts.NewElevenLabs(tts.NewElevenLabsConfigFromEnv(), "/api/tts_proxy", logger)
		if err != nil {
			logger.Fatal("Failed to initialize TTS engine", zap.Error(err))
		}
		ttsEngine = engine
	} else {
		logger.Warn("No Eleven Labs API key, using mock text-to-speech")
		ttsEngine = tts.NewMockTextToSpeech("/api/tts_proxy", logger)
		ttsEngineID = tts.MockEngineID
	}

	var sttEngine repositories.SpeechToText
	if os.Getenv("GOOGLE_APPLICATION_CREDENTIALS") != "" {
		sttEngine = stt.NewGoogleSpeechToText(logger)
	} else {
		logger.Warn("No Google credentials, using mock speech-to-text")
		sttEngine = stt.NewMockSpeechToText("hello hearth", logger)
	}

	// The mock agent always serves pipelines configured with the built-in
	// engine; Gemini registers under its own id when a key is present.
	agents := []repositories.ConversationAgent{llm.NewMockAgent("")}
	conversationEngineID := entities.ConversationEngineBuiltin
	if os.Getenv("GEMINI_API_KEY") != "" {
		agent, err := llm.NewGeminiAgent(context.Background(), llm.NewGeminiConfigFromEnv(), logger)
		if err != nil {
			logger.Fatal("Failed to initialize conversation agent", zap.Error(err))
		}
		agents = append(agents, agent)
		conversationEngineID = llm.EngineID
	} else {
		logger.Warn("No Gemini API key, using mock conversation agent")
	}

	mediaResolver := media.NewResolver(baseURL, ttsEngine, logger)
	mediaResolver.Register("sounds/preannounce.mp3", satellite.DefaultPreannounceURL, "audio/mpeg")

	// Pipeline and selector registries.
	pipelines := registry.NewPipelines()
	pipelines.Add(&entities.Pipeline{
		Name:               "Hearth",
		Language:           "en-US",
		ConversationEngine: conversationEngineID,
		STTEngine:          "stt.google",
		TTSEngine:          ttsEngineID,
		TTSLanguage:        "en-US",
	})
	states := registry.NewStates()

	runner := pipeline.NewRunner(sttEngine, agents, ttsEngine, pipelines, sessions, logger)

	// Every connected satellite gets its own orchestrator.
	factory := func(device satellite.Device, publishState func(entities.SatelliteState)) *satellite.Satellite {
		return satellite.New(
			device,
			runner,
			ttsEngine,
			mediaResolver,
			pipelines,
			states,
			sessions,
			satellite.Options{OnStateChange: publishState},
			logger,
		)
	}

	hub := websocket.NewHub(factory, logger)
	go hub.Run()

	cleanup := websocket.NewSessionCleanupService(sessionRepo, logger)
	cleanup.Start()
	defer cleanup.Stop()

	e := echo.New()
	e.HideBanner = true
	e.Use(middleware.Logger())
	e.Use(middleware.Recover())
	e.Use(middleware.CORS())
	e.Static("/static", "static")

	server := api.NewServer(hub, deviceRepo, ttsEngine, pipelines, logger)
	server.InitRoutes(e)

	port := os.Getenv("PORT")
	if port == "" {
		port = "8080"
	}

	go func() {
		if err := e.Start(":" + port); err != nil && err != http.ErrServerClosed {
			logger.Fatal("shutting down the server", zap.Error(err))
		}
	}()

	logger.Info("Hearth hub started", zap.String("port", port))

	// Wait for interrupt signal to gracefully shutdown the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit

	logger.Info("Server is shutting down...")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := e.Shutdown(ctx); err != nil {
		logger.Fatal("Server forced to shutdown", zap.Error(err))
	}

	logger.Info("Server exited")
}

// seedDevices registers the satellites allowed to connect. The roster comes
// from HEARTH_DEVICES as serial:secret pairs separated by commas.
func seedDevices(repo *memory.DeviceRepository, logger *zap.Logger) {
	roster := os.Getenv("HEARTH_DEVICES")
	if roster == "" {
		return
	}

	ctx := context.Background()
	for _, entry := range strings.Split(roster, ",") {
		entry = strings.TrimSpace(entry)
		if entry == "" {
			continue
		}
		serial, secret, ok := strings.Cut(entry, ":")
		if !ok {
			logger.Warn("Skipping malformed device entry", zap.String("entry", entry))
			continue
		}
		device := &entities.Device{
			SerialNumber: serial,
			Model:        "satellite",
			Name:         serial,
			Secret:       secret,
		}
		if err := repo.Create(ctx, device); err != nil {
			logger.Warn("Failed to register device", zap.String("serial", serial), zap.Error(err))
		}
	}
}
