package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"tutorgo/internal/api"
	"tutorgo/pkg/audio"
	"tutorgo/pkg/config"
	"tutorgo/pkg/content"
	"tutorgo/pkg/db"
	"tutorgo/pkg/db/maintenance"
	"tutorgo/pkg/live"
	"tutorgo/pkg/logging"
	"tutorgo/pkg/model"
	"tutorgo/pkg/pcm"
	"tutorgo/pkg/player"
	"tutorgo/pkg/probe"
	"tutorgo/pkg/renderer"
	"tutorgo/pkg/speech"
	"tutorgo/pkg/store"
	"tutorgo/pkg/version"
)

const eventLogPath = "./logs/lessons.log"

var initConfig = flag.Bool("init-config", false, "Generate default config file and exit")

func main() {
	flag.Parse()

	if *initConfig {
		if err := config.GenerateDefault("configs/tutor.yaml"); err != nil {
			fmt.Fprintf(os.Stderr, "Failed to generate config: %v\n", err)
			os.Exit(1)
		}
		fmt.Println("Config file generated: configs/tutor.yaml")
		return
	}

	if err := run(context.Background(), "configs/tutor.yaml"); err != nil {
		fmt.Fprintf(os.Stderr, "CRITICAL ERROR: Application failed: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, configPath string) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	// .env is optional; the config file and environment still apply.
	_ = godotenv.Load()

	appCfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	cleanupLogs, err := logging.Init(&appCfg.Log, eventLogPath)
	if err != nil {
		return fmt.Errorf("failed to initialize logging: %w", err)
	}
	defer cleanupLogs()

	slog.Info("TutorGo Started", "version", version.Version)

	dbConn, err := db.Init(appCfg.DB.Path)
	if err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}
	defer dbConn.Close()
	st := store.NewSQLiteStore(dbConn)

	if err := maintenance.Run(ctx, st, dbConn, appCfg.DB.MaterialCSV); err != nil {
		slog.Error("Maintenance tasks failed", "error", err)
	}

	llmClient, err := initLLM(ctx, appCfg)
	if err != nil {
		return err
	}
	generator := content.NewGenerator(llmClient)
	generator.FallbackSpeakLimit = appCfg.Content.FallbackSpeakLimit
	judge := content.NewJudge(llmClient)

	profile, err := config.LoadProfile("configs/student.yaml")
	if err != nil {
		slog.Info("No student profile loaded, prompts stay generic", "error", err)
	}

	// Scene stack: speech pacing -> renderer -> player. The player is
	// created after the renderer, so the callbacks close over a late-bound
	// variable.
	var pl *player.Player
	pacer := speech.NewEstimator()
	scene := renderer.New(renderer.Config{
		Width:          appCfg.Board.Width,
		Height:         appCfg.Board.Height,
		Speech:         pacer,
		FrameInterval:  time.Duration(appCfg.Board.FrameInterval),
		CheckpointLead: appCfg.Board.CheckpointLead,
		OnCheckpoint:   func(cp *model.Checkpoint) { pl.HandleCheckpoint(cp) },
		OnSequenceComplete: func() {
			pl.HandleSequenceComplete()
		},
	})
	pl = player.New(scene)

	sched := audio.NewScheduler(pcm.PlaybackRate)
	if err := sched.Start(); err != nil {
		slog.Warn("Audio output unavailable, continuing silently", "error", err)
	}
	sched.SetVolume(appCfg.Audio.Volume)
	defer sched.Close()

	userID := appCfg.Player.DefaultUser
	sessionH := api.NewSessionHandler(st, generator, pl, profile, userID, appCfg.Player.HistoryKeep, appCfg.Player.HistoryMax)

	subscribeProgress(ctx, pl, st, userID)

	liveSess, err := initLive(appCfg, scene, sched, pl, st, sessionH)
	if err != nil {
		return err
	}

	probes := []probe.Probe{
		{Name: "LLM Model", Check: llmClient.HealthCheck, Critical: true},
		{Name: "Database", Check: func(c context.Context) error { return dbConn.PingContext(c) }},
	}
	if err := probe.AnalyzeResults(probe.Run(ctx, probes)); err != nil {
		return fmt.Errorf("startup checks failed: %w", err)
	}

	return runServer(ctx, appCfg, sessionH, pl, scene, sched, judge, liveSess)
}

func initLLM(ctx context.Context, cfg *config.Config) (*content.Failover, error) {
	if cfg.LLM.Provider != "gemini" {
		return nil, fmt.Errorf("unsupported llm provider %q", cfg.LLM.Provider)
	}
	if cfg.LLM.Key == "" {
		return nil, fmt.Errorf("no LLM API key configured (set GEMINI_API_KEY or llm.key)")
	}
	primary, err := content.NewGeminiClient(ctx, content.GeminiConfig{
		Key:      cfg.LLM.Key,
		Model:    cfg.LLM.Model,
		Profiles: cfg.LLM.Profiles,
		LogPath:  cfg.Log.Gemini.Path,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize LLM client: %w", err)
	}

	names := []string{cfg.LLM.Model}
	backends := []content.LLM{primary}
	if cfg.LLM.FallbackModel != "" && cfg.LLM.FallbackModel != cfg.LLM.Model {
		fallback, err := content.NewGeminiClient(ctx, content.GeminiConfig{
			Key:     cfg.LLM.Key,
			Model:   cfg.LLM.FallbackModel,
			LogPath: cfg.Log.Gemini.Path,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to initialize fallback LLM client: %w", err)
		}
		names = append(names, cfg.LLM.FallbackModel)
		backends = append(backends, fallback)
	}
	return content.NewFailover(names, backends)
}

// subscribeProgress persists XP awards and writes lesson events as the
// player emits them.
func subscribeProgress(ctx context.Context, pl *player.Player, st store.Store, userID string) {
	pl.Subscribe(func(ev player.Event) {
		switch ev.Type {
		case player.EventSequenceEnd:
			logging.LogEvent(&model.LessonEvent{
				Type:      model.EventSequenceComplete,
				Title:     ev.SequenceID,
				Summary:   "sequence completed",
				Timestamp: time.Now(),
			})
		case player.EventCheckpointEnd:
			evType := model.EventCheckpointFailed
			summary := "checkpoint skipped or failed"
			if ev.Correct {
				evType = model.EventCheckpointPassed
				summary = fmt.Sprintf("%d XP awarded", ev.XPAwarded)
			}
			logging.LogEvent(&model.LessonEvent{
				Type:      evType,
				Title:     ev.SequenceID,
				Summary:   summary,
				Timestamp: time.Now(),
			})
		}
		if ev.XPAwarded > 0 {
			if _, err := st.AwardXP(ctx, userID, ev.XPAwarded, time.Now()); err != nil {
				slog.Warn("Failed to persist XP award", "error", err)
			}
		}
	})
}

func initLive(cfg *config.Config, scene *renderer.Renderer, sched *audio.Scheduler, pl *player.Player, st store.Store, sessionH *api.SessionHandler) (*live.Session, error) {
	return live.NewSession(live.SessionConfig{
		Client: live.Config{
			APIKey:   cfg.LLM.Key,
			Model:    cfg.Live.Model,
			Voice:    cfg.Live.Voice,
			Endpoint: cfg.Live.Endpoint,
		},
		Scene: scene,
		Sink:  sched,
		OnCheckpoint: func(cp *model.Checkpoint) {
			pl.HandleCheckpoint(cp)
		},
		OnInsight: func(in live.Insight) {
			rec := &store.InsightRecord{
				SessionID:   sessionH.CurrentSessionID(),
				Type:        in.Type,
				Topic:       in.Topic,
				Observation: in.Observation,
				Confidence:  in.Confidence,
			}
			if err := st.SaveInsight(context.Background(), rec); err != nil {
				slog.Warn("Failed to persist insight", "error", err)
			}
			logging.LogEvent(&model.LessonEvent{
				Type:      model.EventInsight,
				Title:     in.Topic,
				Summary:   in.Observation,
				Timestamp: time.Now(),
			})
		},
		Search: func(query string) (string, error) {
			return searchMaterial(st, query)
		},
	})
}

// searchMaterial answers the live tutor's course-material lookups with a
// plain substring scan over the imported chunks.
func searchMaterial(st store.Store, query string) (string, error) {
	ctx := context.Background()
	keys, err := st.ListCacheKeys(ctx, maintenance.MaterialKeyPrefix)
	if err != nil {
		return "", err
	}
	needle := strings.ToLower(query)
	var hits []string
	for _, key := range keys {
		raw, ok := st.GetCache(ctx, key)
		if !ok {
			continue
		}
		var chunks []string
		if err := json.Unmarshal(raw, &chunks); err != nil {
			continue
		}
		for _, chunk := range chunks {
			if strings.Contains(strings.ToLower(chunk), needle) {
				hits = append(hits, chunk)
				if len(hits) >= 3 {
					return strings.Join(hits, "\n\n---\n\n"), nil
				}
			}
		}
	}
	return strings.Join(hits, "\n\n---\n\n"), nil
}

func runServer(ctx context.Context, cfg *config.Config, sessionH *api.SessionHandler, pl *player.Player, scene *renderer.Renderer, sched *audio.Scheduler, judge *content.Judge, liveSess *live.Session) error {
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	shutdownFunc := func() { quit <- syscall.SIGTERM }

	srv := api.NewServer(cfg.Server.Address,
		sessionH,
		api.NewPlayerHandler(pl, scene, judge),
		api.NewBoardHandler(scene),
		api.NewAudioHandler(sched, cfg.Audio.Volume),
		api.NewLiveHandler(liveSess),
		shutdownFunc,
	)
	srv.Handler = loggingMiddleware(srv.Handler)

	slog.Info("Starting server", "addr", srv.Addr)
	serverErrors := make(chan error, 1)
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			serverErrors <- err
		}
	}()
	select {
	case <-quit:
		slog.Info("Shutting down server...")
	case <-ctx.Done():
		slog.Info("Context cancelled, shutting down...")
	case err := <-serverErrors:
		return fmt.Errorf("server failed: %w", err)
	}
	liveSess.Stop()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

func loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		slog.Debug("Request Processed", "method", r.Method, "path", r.URL.Path, "duration", time.Since(start))
	})
}
