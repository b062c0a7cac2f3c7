package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/jasper0315/icebreak-app/internal/api"
	"github.com/jasper0315/icebreak-app/internal/clientws"
	"github.com/jasper0315/icebreak-app/internal/config"
	"github.com/jasper0315/icebreak-app/internal/events"
	"github.com/jasper0315/icebreak-app/internal/history"
	"github.com/jasper0315/icebreak-app/internal/llm"
	"github.com/jasper0315/icebreak-app/internal/orchestrator"
	"github.com/jasper0315/icebreak-app/internal/session"
	"github.com/jasper0315/icebreak-app/internal/tts"
)

func main() {
	// Load .env file if present (ignored if missing)
	_ = godotenv.Load()

	cfg := config.Load()

	sessions := session.NewStore()
	evts := events.NewStore()
	hist := openHistory(cfg)
	defer hist.Close()

	var provider llm.Provider
	if cfg.LLM.APIKey != "" {
		g, err := llm.NewGemini(context.Background(), cfg.LLM.APIKey, cfg.LLM.Model, llm.Params{
			Temperature:     cfg.LLM.Temperature,
			TopK:            cfg.LLM.TopK,
			TopP:            cfg.LLM.TopP,
			MaxOutputTokens: cfg.LLM.MaxOutputTokens,
		})
		if err != nil {
			log.Printf("gemini init failed, replies will use fallback: %v", err)
		} else {
			provider = g
		}
	} else {
		log.Printf("GEMINI_API_KEY not set, replies will use fallback")
	}

	reg := clientws.NewRegistry()
	speaker := tts.NewSpeaker(ttsEngine(cfg), reg)
	orch := orchestrator.New(sessions, evts, hist, provider, speaker, reg)

	h := api.NewHandlers(cfg, sessions, evts, hist, orch)
	mux := http.NewServeMux()
	mux.Handle("/", api.NewRouter(h))
	// WS client route
	wss := clientws.NewServer(cfg, sessions, evts, reg, orch)
	mux.HandleFunc("/ws/session", wss.HandleSessionWS)
	mux.Handle("/metrics", promhttp.Handler())

	addr := ":" + cfg.Server.Port
	srv := &http.Server{
		Addr:              addr,
		Handler:           logMiddleware(mux),
		ReadHeaderTimeout: 5 * time.Second,
	}

	// Graceful shutdown on SIGINT/SIGTERM
	sigc := make(chan os.Signal, 1)
	signal.Notify(sigc, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sigc
		log.Printf("shutdown signal received; stopping server...")
		// Seal active sessions before draining HTTP
		for _, id := range sessions.ListIDs() {
			_ = orch.End(id)
		}
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(ctx)
	}()

	log.Printf("server starting on %s", addr)
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.Println("server error:", err)
		os.Exit(1)
	}
}

func openHistory(cfg config.Config) history.Store {
	switch cfg.History.Driver {
	case "sqlite", "sqlite3":
		st, err := history.OpenSQLite(cfg.History.DSN)
		if err != nil {
			log.Printf("sqlite history unavailable (%v); falling back to memory", err)
			return history.NewMemoryStore()
		}
		log.Printf("history: sqlite dsn=%s", cfg.History.DSN)
		return st
	case "memory":
		return history.NewMemoryStore()
	default:
		log.Printf("unknown history driver %q; falling back to memory", cfg.History.Driver)
		return history.NewMemoryStore()
	}
}

func ttsEngine(cfg config.Config) tts.Engine {
	if cfg.TTS.Provider != "elevenlabs" {
		return tts.Silent{}
	}
	if cfg.TTS.APIKey == "" || cfg.TTS.VoiceID == "" {
		log.Printf("elevenlabs credentials missing, speech output disabled")
		return tts.Silent{}
	}
	return tts.NewElevenLabs(cfg.TTS.APIKey, cfg.TTS.VoiceID)
}

func logMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		log.Printf("%s %s %s", r.Method, r.URL.Path, time.Since(start))
	})
}
