package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/nidhogg/labwork/internal/api"
	"github.com/nidhogg/labwork/internal/config"
	"github.com/nidhogg/labwork/internal/dialogue"
	"github.com/nidhogg/labwork/internal/embedding"
	"github.com/nidhogg/labwork/internal/gateway"
	"github.com/nidhogg/labwork/internal/memory"
	"github.com/nidhogg/labwork/internal/provider"
	"github.com/nidhogg/labwork/internal/sim"
	"github.com/nidhogg/labwork/internal/store"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

func main() {
	_ = godotenv.Load()

	logger, _ := zap.NewDevelopment()
	defer logger.Sync()

	logger.Info("Starting Labwork...")

	// Load configuration
	cfgPath := os.Getenv("CONFIG_PATH")
	if cfgPath == "" {
		cfgPath = "configs/labwork.json"
	}
	cfg, err := config.Load(cfgPath)
	if err != nil {
		logger.Fatal("failed to load config", zap.String("path", cfgPath), zap.Error(err))
	}
	logger.Info("Config loaded", zap.String("path", cfgPath))

	// Initialize provider router
	router := provider.NewRouter(logger)
	for _, pc := range cfg.Providers {
		provCfg := provider.Config{
			ID: pc.ID, Type: pc.Type, Name: pc.Name,
			Endpoint: pc.Endpoint, APIKey: pc.APIKey, Model: pc.Model,
			Temperature: pc.Temperature, MaxTokens: pc.MaxTokens,
		}
		switch pc.Type {
		case "openai":
			router.Register(provider.NewOpenAIProvider(provCfg, logger))
		case "gemini":
			router.Register(provider.NewGeminiProvider(provCfg, logger))
		default:
			logger.Warn("unknown provider type", zap.String("id", pc.ID), zap.String("type", pc.Type))
		}
	}

	// Initialize long-term memory (embedder + vector index). Optional:
	// agents run amnesiac when either half is unavailable.
	var memStore *memory.Store
	embedder, embErr := embedding.New(embedding.Config{
		Provider:  cfg.Embedding.Provider,
		Endpoint:  cfg.Embedding.Endpoint,
		Model:     cfg.Embedding.Model,
		APIKey:    cfg.Embedding.APIKey,
		Dimension: cfg.Embedding.Dimension,
	})
	if embErr != nil {
		logger.Warn("embedding unavailable, running without memory", zap.Error(embErr))
	} else {
		index, qErr := memory.NewQdrantIndex(memory.QdrantConfig{
			Host: cfg.Database.Qdrant.Host,
			Port: cfg.Database.Qdrant.Port,
		})
		if qErr != nil {
			logger.Warn("Qdrant unavailable, running without memory", zap.Error(qErr))
		} else {
			if iErr := index.Init(context.Background(), uint64(cfg.Embedding.Dimension)); iErr != nil {
				logger.Warn("Qdrant init failed, running without memory", zap.Error(iErr))
			} else {
				memStore = memory.NewStore(embedder, index, logger)
				logger.Info("Memory store initialized")
			}
		}
	}

	// Initialize agent store: PostgreSQL when configured, in-memory otherwise.
	var agentStore sim.Store = store.NewMemory()
	var pgStore *store.Postgres
	if cfg.Database.Postgres.DSN != "" {
		ps, pgErr := store.NewPostgres(cfg.Database.Postgres.DSN, logger)
		if pgErr != nil {
			logger.Warn("PostgreSQL unavailable, running without persistence", zap.Error(pgErr))
		} else {
			if mErr := ps.Migrate(context.Background(), "migrations"); mErr != nil {
				logger.Fatal("migration failed", zap.Error(mErr))
			}
			pgStore = ps
			agentStore = ps
		}
	}

	// Redis mirrors the recent-chat feed across restarts. Optional.
	var rdb *redis.Client
	if cfg.Database.Redis.URL != "" {
		opts, rErr := redis.ParseURL(cfg.Database.Redis.URL)
		if rErr != nil {
			logger.Warn("bad redis url, running without chat mirror", zap.Error(rErr))
		} else {
			rdb = redis.NewClient(opts)
			if pErr := rdb.Ping(context.Background()).Err(); pErr != nil {
				logger.Warn("Redis unavailable, running without chat mirror", zap.Error(pErr))
				rdb = nil
			}
		}
	}

	// Relation graph requires Neo4j. Optional.
	var relations *sim.RelationGraph
	if cfg.Database.Neo4j.URI != "" {
		rg, nErr := sim.NewRelationGraph(
			cfg.Database.Neo4j.URI, cfg.Database.Neo4j.User, cfg.Database.Neo4j.Password,
			cfg.Simulation.RelationDecay, logger)
		if nErr != nil {
			logger.Warn("Neo4j unavailable, running without relations", zap.Error(nErr))
		} else {
			relations = rg
			logger.Info("Relation graph initialized")
		}
	}

	// Initialize observer hub and announcement sinks
	hub := gateway.NewHub(logger)
	if cfg.Gateway.Discord.Enabled && cfg.Gateway.Discord.BotToken != "" {
		sink, dErr := gateway.NewDiscordSink(cfg.Gateway.Discord.BotToken, cfg.Gateway.Discord.ChannelID, logger)
		if dErr != nil {
			logger.Warn("Discord sink failed to connect", zap.Error(dErr))
		} else {
			hub.Attach(sink)
			defer sink.Close()
		}
	}
	if cfg.Gateway.Slack.Enabled && cfg.Gateway.Slack.BotToken != "" {
		hub.Attach(gateway.NewSlackSink(cfg.Gateway.Slack.BotToken, cfg.Gateway.Slack.Channel, logger))
	}

	// Chat log (restored from Redis when mirrored)
	chatLog := sim.NewChatLog(cfg.Simulation.ChatLogMax, rdb, logger)
	chatLog.Restore(context.Background())

	// Dialogue generator and simulation engine
	gen := dialogue.NewGenerator(router, memStore, 0, logger)
	seed := cfg.Simulation.Seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	engine := sim.NewEngine(agentStore, gen, hub, memStore, chatLog, relations,
		cfg.Simulation.Tuning, seed, logger)

	// Inbound observer messages route back into the engine.
	hub.SetHandler(func(msg *gateway.Inbound) {
		ctx, cancel := context.WithTimeout(context.Background(), 60*time.Second)
		defer cancel()
		switch msg.Type {
		case gateway.InboundAskLLM:
			var p gateway.AskPayload
			if err := json.Unmarshal(msg.Payload, &p); err != nil {
				logger.Debug("bad ask payload", zap.Error(err))
				return
			}
			if _, err := engine.Ask(ctx, p.AgentID, p.Prompt); err != nil {
				logger.Warn("observer ask failed", zap.String("agent", p.AgentID), zap.Error(err))
			}
		case gateway.InboundUserMessage:
			var p gateway.UserMessagePayload
			if err := json.Unmarshal(msg.Payload, &p); err != nil {
				logger.Debug("bad user message payload", zap.Error(err))
				return
			}
			if err := engine.UserMessage(ctx, p.AgentID, p.Text); err != nil {
				logger.Warn("user message failed", zap.Error(err))
			}
		default:
			logger.Debug("unknown inbound type", zap.String("type", msg.Type))
		}
	})

	// Simulation clock
	clock := sim.NewClock(time.Duration(cfg.Simulation.TickSeconds)*time.Second,
		cfg.Simulation.Speed, engine, logger)
	clock.Start()
	logger.Info("Simulation started")

	// Build HTTP handler
	handler := api.NewHandler(agentStore, engine, clock, chatLog, hub, relations, logger)

	// Start server
	srv := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Server.Port),
		Handler: handler.Router(),
	}

	go func() {
		logger.Info("Labwork listening", zap.Int("port", cfg.Server.Port))
		if err := srv.ListenAndServe(); err != http.ErrServerClosed {
			logger.Fatal("server error", zap.Error(err))
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down Labwork...")
	clock.Stop()
	ctx := context.Background()
	srv.Shutdown(ctx)
	hub.Close()
	if relations != nil {
		relations.Close(ctx)
	}
	if rdb != nil {
		rdb.Close()
	}
	if pgStore != nil {
		pgStore.Close()
	}
}
