package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"

	"github.com/orionsentinel/Orion-sentinel-netsec-ai/pkg/actions"
	"github.com/orionsentinel/Orion-sentinel-netsec-ai/pkg/actions/blockdomain"
	"github.com/orionsentinel/Orion-sentinel-netsec-ai/pkg/actions/notify"
	"github.com/orionsentinel/Orion-sentinel-netsec-ai/pkg/actions/tagdevice"
	"github.com/orionsentinel/Orion-sentinel-netsec-ai/pkg/api"
	"github.com/orionsentinel/Orion-sentinel-netsec-ai/pkg/collector"
	"github.com/orionsentinel/Orion-sentinel-netsec-ai/pkg/config"
	"github.com/orionsentinel/Orion-sentinel-netsec-ai/pkg/dedup"
	"github.com/orionsentinel/Orion-sentinel-netsec-ai/pkg/events"
	"github.com/orionsentinel/Orion-sentinel-netsec-ai/pkg/features"
	"github.com/orionsentinel/Orion-sentinel-netsec-ai/pkg/intel"
	"github.com/orionsentinel/Orion-sentinel-netsec-ai/pkg/logger"
	"github.com/orionsentinel/Orion-sentinel-netsec-ai/pkg/logstore"
	"github.com/orionsentinel/Orion-sentinel-netsec-ai/pkg/model"
	"github.com/orionsentinel/Orion-sentinel-netsec-ai/pkg/pipeline"
	"github.com/orionsentinel/Orion-sentinel-netsec-ai/pkg/playbook"
	"github.com/orionsentinel/Orion-sentinel-netsec-ai/pkg/policy"
	"github.com/orionsentinel/Orion-sentinel-netsec-ai/pkg/scheduler"
)

func main() {
	// Load configuration first
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load configuration")
	}

	// Initialize logger based on config
	logger.InitLogger(cfg.LogLevel)

	log.Info().Msg("Orion AI starting...")
	log.Info().Msgf("Configuration loaded: LogLevel=%s, APIPort=%s, DryRun=%t", cfg.LogLevel, cfg.APIPort, cfg.DryRun)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigChan
		log.Info().Msgf("Received signal: %s. Shutting down gracefully...", sig)
		cancel()
	}()

	// Shared infrastructure.
	store := logstore.NewClient(cfg.Loki.URL, cfg.Loki.Timeout, cfg.Loki.QueryLimit, log.Logger)
	telemetry := pipeline.NewTelemetry(store)
	extractor := features.NewExtractor(log.Logger)
	sink := events.NewSink(store, log.Logger)

	var redisClient *redis.Client
	if cfg.Redis.Enabled {
		redisClient = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		if err := redisClient.Ping(ctx).Err(); err != nil {
			log.Fatal().Err(err).Str("addr", cfg.Redis.Addr).Msg("Redis unreachable")
		}
		defer redisClient.Close()
	}

	// Models and per-pipeline classifiers.
	registry := model.NewRegistry(0, log.Logger)
	sched := scheduler.NewScheduler()
	tasks := make(map[string]scheduler.Task)

	if pc, ok := cfg.Pipelines[pipeline.DeviceTaskName]; ok && pc.Enabled {
		registry.Load(pipeline.DeviceTaskName, pc.ModelPath)
		classifier := policy.NewClassifier(
			pipeline.DeviceTaskName, events.TypeDeviceAnomaly,
			policy.Thresholds{Report: pc.ReportThreshold, Critical: pc.CriticalThreshold},
			log.Logger,
		)
		task := pipeline.NewDeviceTask(telemetry, extractor, registry, classifier, sink, pc.Window, log.Logger)
		sched.Register(task, pc.Interval)
		tasks[task.Name()] = task
	}

	var iocs intel.Store
	if cfg.Intel.Enabled {
		if redisClient != nil {
			iocs = intel.NewRedisStore(redisClient, cfg.Intel.Retention)
		} else {
			iocs = intel.NewMemoryStore(cfg.Intel.Retention)
		}
		feeds := make([]intel.Feed, 0, len(cfg.Intel.Feeds))
		for _, f := range cfg.Intel.Feeds {
			feeds = append(feeds, intel.Feed{Name: f.Name, URL: f.URL})
		}
		fetcher := intel.NewFetcher(feeds, iocs, cfg.Loki.Timeout, log.Logger)
		sched.Register(pipeline.NewIntelTask(fetcher, log.Logger), cfg.Intel.Interval)
	}

	if pc, ok := cfg.Pipelines[pipeline.DomainTaskName]; ok && pc.Enabled {
		registry.Load(pipeline.DomainTaskName, pc.ModelPath)
		classifier := policy.NewClassifier(
			pipeline.DomainTaskName, events.TypeDomainRisk,
			policy.Thresholds{Report: pc.ReportThreshold, Critical: pc.CriticalThreshold},
			log.Logger,
		)
		task := pipeline.NewDomainTask(telemetry, extractor, registry, classifier, sink, iocs, pc.Window, log.Logger)
		sched.Register(task, pc.Interval)
		tasks[task.Name()] = task
	}

	// Response loop: playbooks, dedup guard, action providers.
	playbooks, err := playbook.NewStore(cfg.Playbooks.Path, cfg.Playbooks.AllowEmpty, log.Logger)
	if err != nil {
		log.Fatal().Err(err).Str("path", cfg.Playbooks.Path).Msg("Failed to load playbooks")
	}
	if cfg.Playbooks.Watch {
		go func() {
			if err := playbooks.Watch(ctx); err != nil {
				log.Error().Err(err).Msg("Playbook watcher stopped")
			}
		}()
	}

	var guard dedup.Guard
	if redisClient != nil {
		guard = dedup.NewRedisGuard(redisClient)
	} else {
		memGuard := dedup.NewMemoryGuard(cfg.Dedup.SweepInterval)
		defer memGuard.Stop()
		guard = memGuard
	}

	dispatcher := actions.NewDispatcher(guard, sink, cfg.Actions.MaxRetries, log.Logger)
	dispatcher.Register(blockdomain.New(cfg.Pihole.APIURL, cfg.Pihole.APIToken, cfg.Pihole.Timeout, log.Logger), cfg.Dedup.Cooldowns["block_domain"])
	dispatcher.Register(tagdevice.New(store, log.Logger), cfg.Dedup.Cooldowns["tag_device"])
	dispatcher.Register(notify.New(cfg.Notify.WebhookURL, cfg.Notify.Timeout, log.Logger), cfg.Dedup.Cooldowns["notify"])

	execCtx := actions.ExecutionContext{GlobalDryRun: cfg.DryRun}
	responseTask := pipeline.NewResponseTask(sink, playbooks, dispatcher, execCtx, cfg.Response.Lookback, log.Logger)
	sched.Register(responseTask, cfg.Response.Interval)

	if cfg.Collector.Enabled {
		sched.Register(collector.New(telemetry, extractor, cfg.Collector.OutputDir, cfg.Collector.Window, log.Logger), cfg.Collector.Interval)
	}

	// HTTP API.
	server := api.NewServer(cfg.APIPort, tasks, playbooks, log.Logger)
	go func() {
		if err := server.Start(); err != nil {
			log.Error().Err(err).Msg("API server failed")
			cancel()
		}
	}()

	sched.Start(ctx)

	<-ctx.Done()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("API server shutdown failed")
	}
	sched.Wait()

	log.Info().Msg("Orion AI stopped.")
}
