package main

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"sync"
	"time"

	"pdb-harvest/config"
	"pdb-harvest/models"
	"pdb-harvest/services"
	"pdb-harvest/storage"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

var errRunInProgress = errors.New("a harvest run is already in progress")

type runLister interface {
	Runs(ctx context.Context, limit int) ([]models.PipelineRun, error)
	Failures(ctx context.Context, runID string) ([]storage.RunFailure, error)
}

type entryLister interface {
	Entries(ctx context.Context, f storage.EntryFilter) ([]models.PdbEntry, error)
}

// runner serialisiert Läufe: es läuft höchstens einer gleichzeitig.
type runner struct {
	harvester harvester
	logger    *zap.Logger

	mu      sync.Mutex
	running bool
	last    *models.PipelineRun
	wg      sync.WaitGroup
}

func newRunner(h harvester, logger *zap.Logger) *runner {
	return &runner{harvester: h, logger: logger}
}

// Start startet einen Lauf im Hintergrund oder liefert errRunInProgress.
func (r *runner) Start(ctx context.Context, since string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.running {
		return errRunInProgress
	}
	r.running = true
	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		r.execute(ctx, since)
	}()
	return nil
}

func (r *runner) execute(ctx context.Context, since string) {
	run, err := r.harvester.Run(ctx, since)
	if err != nil {
		r.logger.Error("Harvest-Lauf fehlgeschlagen", zap.String("since", since), zap.Error(err))
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.running = false
	if run != nil {
		r.last = run
	}
}

// Status liefert, ob gerade ein Lauf aktiv ist, und den zuletzt beendeten Lauf.
func (r *runner) Status() (bool, *models.PipelineRun) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.running, r.last
}

// Wait blockiert, bis alle gestarteten Läufe beendet sind.
func (r *runner) Wait() {
	r.wg.Wait()
}

func apiKeyAuthMiddleware(cfg *config.Config) gin.HandlerFunc {
	return func(c *gin.Context) {
		if cfg.APISecretKey == "" {
			c.Next()
			return
		}
		if c.GetHeader("X-API-KEY") != cfg.APISecretKey {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized: Invalid API Key"})
			return
		}
		c.Next()
	}
}

// defaultSince liefert das Startdatum für geplante und parameterlose Läufe.
func defaultSince(now time.Time, lookbackDays int) string {
	return now.AddDate(0, 0, -lookbackDays).Format("2006-01-02")
}

func serve(ctx context.Context, cfg *config.Config, logging *zap.Logger, h harvester, ledger *storage.Ledger, archive *storage.Archive) error {
	r := newRunner(h, logging)

	var runs runLister
	if ledger != nil {
		runs = ledger
	}
	var entries entryLister
	if archive != nil {
		entries = archive
	}

	router := gin.Default()
	router.Use(gin.Recovery())
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))
	setupRoutes(router, cfg, r, runs, entries, logging)

	cronScheduler := cron.New()
	_, err := cronScheduler.AddFunc(cfg.CronSchedule, func() {
		since := defaultSince(time.Now(), cfg.LookbackDays)
		logging.Info("Starte geplanten Harvest-Lauf", zap.String("since", since))
		if err := r.Start(ctx, since); err != nil {
			logging.Warn("Geplanter Lauf übersprungen", zap.Error(err))
		}
	})
	if err != nil {
		return err
	}
	cronScheduler.Start()
	defer cronScheduler.Stop()

	logging.Info("Starting server", zap.String("port", cfg.HTTPPort), zap.String("schedule", cfg.CronSchedule))
	srv := &http.Server{
		Addr:              ":" + cfg.HTTPPort,
		Handler:           router,
		ReadTimeout:       30 * time.Second,
		ReadHeaderTimeout: 15 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() { errCh <- srv.ListenAndServe() }()
	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	logging.Info("Fahre Server herunter...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	r.Wait()
	return nil
}

type runRequest struct {
	Since string `json:"since"`
}

func setupRoutes(router *gin.Engine, cfg *config.Config, r *runner, runs runLister, entries entryLister, log *zap.Logger) {
	router.GET("/health", func(c *gin.Context) {
		running, _ := r.Status()
		c.JSON(http.StatusOK, gin.H{"status": "ok", "running": running})
	})

	rg := router.Group("/runs")
	rg.POST("", apiKeyAuthMiddleware(cfg), func(c *gin.Context) {
		var req runRequest
		if c.Request.ContentLength > 0 {
			if err := c.ShouldBindJSON(&req); err != nil {
				c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
				return
			}
		}
		if req.Since == "" {
			req.Since = defaultSince(time.Now(), cfg.LookbackDays)
		}
		if err := services.ValidateDate(req.Since); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		// Läufe überdauern den Request
		if err := r.Start(context.WithoutCancel(c.Request.Context()), req.Since); err != nil {
			c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
			return
		}
		log.Info("Harvest-Lauf ausgelöst", zap.String("since", req.Since))
		c.JSON(http.StatusAccepted, gin.H{"message": "Harvest run triggered.", "since": req.Since})
	})

	rg.GET("/last", func(c *gin.Context) {
		running, last := r.Status()
		if last == nil {
			c.JSON(http.StatusNotFound, gin.H{"error": "no finished run", "running": running})
			return
		}
		c.JSON(http.StatusOK, gin.H{"running": running, "run": last})
	})

	rg.GET("", func(c *gin.Context) {
		if runs == nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"error": "run ledger disabled"})
			return
		}
		limit, err := strconv.Atoi(c.DefaultQuery("limit", "20"))
		if err != nil || limit < 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid limit"})
			return
		}
		list, err := runs.Runs(c.Request.Context(), limit)
		if err != nil {
			log.Error("Läufe konnten nicht gelesen werden", zap.Error(err))
			c.JSON(http.StatusInternalServerError, gin.H{"error": "database error"})
			return
		}
		c.JSON(http.StatusOK, list)
	})

	rg.GET("/:id/failures", func(c *gin.Context) {
		if runs == nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"error": "run ledger disabled"})
			return
		}
		failures, err := runs.Failures(c.Request.Context(), c.Param("id"))
		if err != nil {
			log.Error("Fehl-IDs konnten nicht gelesen werden", zap.Error(err))
			c.JSON(http.StatusInternalServerError, gin.H{"error": "database error"})
			return
		}
		c.JSON(http.StatusOK, failures)
	})

	router.GET("/entries", func(c *gin.Context) {
		if entries == nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"error": "archive disabled"})
			return
		}
		f := storage.EntryFilter{
			RunID:    c.Query("run_id"),
			Included: c.Query("included") == "true",
		}
		if l := c.Query("limit"); l != "" {
			limit, err := strconv.Atoi(l)
			if err != nil || limit < 0 {
				c.JSON(http.StatusBadRequest, gin.H{"error": "invalid limit"})
				return
			}
			f.Limit = limit
		}
		list, err := entries.Entries(c.Request.Context(), f)
		if err != nil {
			log.Error("Einträge konnten nicht gelesen werden", zap.Error(err))
			c.JSON(http.StatusInternalServerError, gin.H{"error": "database error"})
			return
		}
		// Titel nur in der Such-Ansicht normalisieren, CSV und Archiv bleiben unverändert
		for i := range list {
			list[i].Title = services.NormalizeText(list[i].Title)
		}
		c.JSON(http.StatusOK, list)
	})
}
