package main

import (
	"context"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"tickstore/api"
	"tickstore/cache"
	"tickstore/config"
	"tickstore/db"
	"tickstore/filestore"
	"tickstore/instruments"
	"tickstore/logger"
	"tickstore/questdb"
	"tickstore/store"
)

func main() {
	log := logger.GetLogger()
	log.Info("Starting tickstore")

	cfg := config.GetConfig()

	ticks := questdb.NewManager(questdb.Config{
		Host:               cfg.QuestDB.Host,
		ILPPort:            cfg.QuestDB.ILPPort,
		HTTPPort:           cfg.QuestDB.HTTPPort,
		AltILPPort:         cfg.QuestDB.AltILPPort,
		AltHTTPPort:        cfg.QuestDB.AltHTTPPort,
		QueueCapacity:      cfg.QuestDB.QueueCapacity,
		MaxBatchSize:       cfg.QuestDB.MaxBatchSize,
		MaxBatchAge:        cfg.QuestDB.GetMaxBatchAge(),
		HealthCheckTimeout: cfg.QuestDB.GetHealthCheckTimeout(),
		FlushTimeout:       cfg.QuestDB.GetFlushTimeout(),
		StatsLogInterval:   cfg.QuestDB.GetStatsLogInterval(),
	})

	var distributor *cache.LTPDistributor
	if redisCache, err := cache.NewRedisCache(&cfg.Redis); err != nil {
		log.Warn("Redis unavailable, LTP distribution disabled", map[string]interface{}{
			"error": err.Error(),
		})
	} else {
		distributor = cache.NewLTPDistributor(redisCache)
	}

	var postgres *db.PostgresDB
	if pg, err := db.InitDB(&cfg.Postgres); err != nil {
		log.Warn("Postgres unavailable, trade logging disabled", map[string]interface{}{
			"error": err.Error(),
		})
	} else {
		postgres = pg
		if err := pg.CreateTables(context.Background()); err != nil {
			log.Error("Failed to create Postgres tables", map[string]interface{}{
				"error": err.Error(),
			})
		}
	}

	if path, err := instruments.LatestFile(cfg.Instruments.DataDir); err != nil {
		log.Warn("No instrument master found", map[string]interface{}{
			"error": err.Error(),
		})
	} else if registry, err := instruments.LoadFromFile(path); err != nil {
		log.Error("Failed to load instrument master", map[string]interface{}{
			"error": err.Error(),
		})
	} else {
		log.Info("Instrument registry ready", map[string]interface{}{
			"instruments": registry.Count(),
		})
	}

	dataManager := store.NewDataManager(ticks, cache.NewOHLCCache(0), distributor, postgres)
	dataManager.Start()

	archiveDone := make(chan struct{})
	go runArchiveLoop(ticks, cfg.Archive.BaseDir, archiveDone)

	apiPort, err := strconv.Atoi(cfg.API.Port)
	if err != nil {
		log.Fatal("Invalid API port", map[string]interface{}{
			"port": cfg.API.Port,
		})
	}
	server := api.NewServer(dataManager, apiPort)
	go func() {
		if err := server.Start(); err != nil {
			log.Fatal("API server failed", map[string]interface{}{
				"error": err.Error(),
			})
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	sig := <-stop

	log.Info("Shutting down", map[string]interface{}{
		"signal": sig.String(),
	})

	close(archiveDone)

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error("API shutdown failed", map[string]interface{}{
			"error": err.Error(),
		})
	}

	dataManager.Stop()
	log.Info("Shutdown complete")
}

// runArchiveLoop exports the previous day's ticks shortly after each UTC
// midnight.
func runArchiveLoop(querier filestore.TickQuerier, dir string, done <-chan struct{}) {
	log := logger.GetLogger()
	exporter := filestore.NewExporter(querier, dir)

	for {
		now := time.Now().UTC()
		next := now.Truncate(24 * time.Hour).Add(24*time.Hour + 5*time.Minute)

		select {
		case <-done:
			return
		case <-time.After(next.Sub(now)):
		}

		day := time.Now().UTC().AddDate(0, 0, -1)
		if _, err := exporter.ExportDayToParquet(day); err != nil {
			log.Error("Parquet archive failed", map[string]interface{}{
				"error": err.Error(),
				"day":   day.Format("2006-01-02"),
			})
		}
		if _, err := exporter.ExportDayToCSV(day); err != nil {
			log.Error("CSV archive failed", map[string]interface{}{
				"error": err.Error(),
				"day":   day.Format("2006-01-02"),
			})
		}
	}
}
