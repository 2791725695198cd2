package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"volley-club/internal/api"
	"volley-club/internal/config"
	"volley-club/internal/game"

	"github.com/joho/godotenv"
)

func main() {
	// Load .env file from parent directory
	if err := godotenv.Load("../.env"); err != nil {
		// Try current directory as fallback
		if err := godotenv.Load(".env"); err != nil {
			log.Println("💡 No .env file found, using environment variables only")
		}
	} else {
		log.Println("✅ Loaded environment from ../.env")
	}

	log.Println("🏐 ================================")
	log.Println("🏐  VOLLEY CLUB - MATCH ENGINE")
	log.Println("🏐 ================================")

	appConfig, err := config.Load()
	if err != nil {
		log.Fatalf("❌ Invalid configuration: %v", err)
	}
	if path := os.Getenv(config.ConfigPathEnv); path != "" {
		log.Printf("📄 Tuning file: %s", path)
	}
	matchCfg := appConfig.Match
	serverCfg := appConfig.Server

	engine, err := game.NewEngine(matchCfg, appConfig.Simulation.TickRate)
	if err != nil {
		log.Fatalf("❌ Failed to create engine: %v", err)
	}
	log.Printf("🎮 Config: %d TPS, %d agents, court %.0fx%.0f m, chase radius %.0f m",
		engine.TickRate(), len(matchCfg.Roster), 2*matchCfg.Court.HalfLength, 2*matchCfg.Court.HalfWidth,
		matchCfg.Arbitration.ChaseRadius)

	// Start event log
	if err := engine.StartEventLog(appConfig.EventLog.Path, appConfig.EventLog.RateLimit); err != nil {
		log.Printf("⚠️ Event log disabled: %v", err)
	} else if appConfig.EventLog.Path != "" {
		log.Printf("📝 Event log: %s", appConfig.EventLog.Path)
	}

	// Start debug server
	debugCfg := api.ObservabilityFromEnv(serverCfg.DebugAddr)
	debugCfg.Enabled = os.Getenv("DISABLE_DEBUG_SERVER") != "true"
	debugSrv := api.StartDebugServer(debugCfg)

	server := api.NewServer(engine, serverCfg)

	// Metrics and spectators hear about every rally event
	hub := server.Hub()
	engine.OnEvent(func(ev game.Event) {
		api.RecordEvent(ev)
		hub.PublishEvent(ev)
	})
	engine.OnTick(api.RecordTick)

	stopMetrics := make(chan struct{})
	go func() {
		ticker := time.NewTicker(5 * time.Second)
		defer ticker.Stop()
		for {
			select {
			case <-stopMetrics:
				return
			case <-ticker.C:
				stats := engine.GetEventLogStats()
				api.UpdateEventLogStats(stats.Total, stats.Dropped)
				api.UpdateAgentCount(len(engine.GetSnapshot().Agents))
			}
		}
	}()

	// Start match engine
	engine.Start()
	log.Println("✅ Match engine started")

	go func() {
		addr := ":" + strconv.Itoa(serverCfg.Port)
		if err := server.Start(addr); err != nil {
			log.Fatalf("Failed to start server: %v", err)
		}
	}()

	// Wait for shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	log.Println("✅ Server ready! Press Ctrl+C to stop.")
	<-quit

	log.Println("🛑 Shutting down...")
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	close(stopMetrics)
	server.Shutdown(ctx)
	api.StopDebugServer(ctx, debugSrv)
	engine.Stop()
	engine.StopEventLog()

	red, blue := engine.Score()
	log.Printf("🏁 Final score: red %d : %d blue", red, blue)
	log.Println("👋 Goodbye!")
}
