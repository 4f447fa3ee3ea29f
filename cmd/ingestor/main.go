// Command ingestor is the livepulse process entry point: it loads
// configuration, wires the process-wide singletons (durable buffer, store,
// aggregator, credential pool, platform client), starts the Supervisor, and
// drains on shutdown signal.
//
// Grounded on the teacher's own main.go bootstrap shape (config load →
// logger → long-running component → signal-based shutdown), adapted from a
// single-room desktop app wiring into a multi-room headless service.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"livepulse/internal/aggregator"
	"livepulse/internal/buffer"
	"livepulse/internal/config"
	"livepulse/internal/credential"
	"livepulse/internal/deviceid"
	"livepulse/internal/logging"
	"livepulse/internal/platform"
	"livepulse/internal/session"
	"livepulse/internal/signature"
	"livepulse/internal/statusserver"
	"livepulse/internal/store"
	"livepulse/internal/supervisor"
)

func main() {
	os.Exit(run())
}

func run() int {
	cfg, err := config.Load()
	if err != nil {
		println("config load failed:", err.Error())
		return 1
	}

	log := logging.New(cfg)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	buf, err := buffer.New(ctx, cfg.CacheURL)
	if err != nil {
		log.Error().Err(err).Msg("durable buffer unreachable, aborting startup")
		return 1
	}
	defer buf.Close()

	writer, err := store.New(ctx, cfg.StoreURL, cfg.StoreDB, buf, log, store.Options{
		ChatBatchSize: cfg.ChatBatchSize,
		GiftBatchSize: cfg.GiftBatchSize,
		StatBatchSize: cfg.StatBatchSize,
		BufferTimeout: cfg.BufferTimeout,
		GiftPopCount:  int64(cfg.GiftFlushPopCount),
		StatPopCount:  int64(cfg.StatFlushPopCount),
	})
	if err != nil {
		log.Error().Err(err).Msg("store unreachable, aborting startup")
		return 1
	}
	defer writer.Close(context.Background())

	pool, err := credential.Load(cfg.CredentialPoolPath)
	if err != nil {
		log.Error().Err(err).Msg("credential pool load failed, aborting startup")
		return 1
	}
	if pool.Len() == 0 {
		log.Error().Msg("credential pool empty at launch, aborting startup")
		return 1
	}

	agg := aggregator.New(writer, buf, log, aggregator.Options{
		DedupTTLSeconds:    int64(cfg.DedupTTL.Seconds()),
		DedupLocalCapacity: cfg.DedupLocalCapacity,
		ComboTimeout:       cfg.ComboTimeout,
		MaxBufferSize:      cfg.ComboMaxBuffer,
		EvictEvery:         cfg.ComboEvictEvery,
	})
	agg.Start(ctx)

	oracle := signature.NewHTTPOracle(cfg.OracleURL)
	plat := platform.New(cfg.PlatformBaseURL, cfg.UserAgent, oracle, log)
	dev := deviceid.Generate()

	deps := session.Dependencies{
		Writer:         writer,
		Buffer:         buf,
		Aggregator:     agg,
		Platform:       plat,
		Oracle:         oracle,
		Device:         dev,
		Log:            log,
		PushBaseURL:    cfg.PushBaseURL,
		UserAgent:      cfg.UserAgent,
		HeartbeatEvery: cfg.HeartbeatInterval,
		ThrottleEvery:  cfg.ThrottleInterval,
	}

	sv := supervisor.New(deps, writer, plat, pool, log, supervisor.Options{
		DiscoveryInterval: cfg.DiscoveryInterval,
		ZombieTimeout:     cfg.ZombieTimeout,
		SecUserID:         cfg.SecUserID,
	})

	statusSrv, err := statusserver.New(sv, log, cfg.StatusServerBasePort)
	if err != nil {
		log.Warn().Err(err).Msg("status server unavailable, continuing without it")
	} else {
		go func() {
			if err := statusSrv.Start(); err != nil {
				log.Warn().Err(err).Msg("status server stopped")
			}
		}()
	}

	log.Info().Msg("livepulse ingestor starting")
	sv.Run(ctx)

	log.Info().Msg("draining buffers before shutdown")
	drainCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := writer.FlushChats(drainCtx); err != nil {
		log.Warn().Err(err).Msg("final chat flush failed")
	}
	if err := writer.FlushGifts(drainCtx); err != nil {
		log.Warn().Err(err).Msg("final gift flush failed")
	}
	if err := writer.FlushStats(drainCtx); err != nil {
		log.Warn().Err(err).Msg("final stat flush failed")
	}

	agg.Stop(drainCtx)
	log.Info().Msg("livepulse ingestor stopped")
	return 0
}
