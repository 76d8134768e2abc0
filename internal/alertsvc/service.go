// Package alertsvc wires the alert engine: feed ingest, candle building,
// evaluation, persistence, notification sinks, snapshots and metrics.
package alertsvc

import (
	"context"
	"fmt"
	"log"
	"log/slog"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"alert-systemv1/internal/alert"
	"alert-systemv1/internal/gateway"
	"alert-systemv1/internal/indicator"
	"alert-systemv1/internal/marketdata/candles"
	"alert-systemv1/internal/marketdata/feed"
	"alert-systemv1/internal/metrics"
	"alert-systemv1/internal/model"
	"alert-systemv1/internal/notify"
	redisstore "alert-systemv1/internal/store/redis"
	sqlitestore "alert-systemv1/internal/store/sqlite"
)

// Service is the top-level orchestrator for the alert engine.
// It wires all dependencies, manages lifecycle, and coordinates goroutines.
type Service struct {
	cfg Config
	log *slog.Logger

	sql   *sqlitestore.Store
	redis *redisstore.Client // nil when Redis is disabled or unreachable
	kafka *notify.KafkaNotifier
	hub   *gateway.Hub // nil when GatewayAddr is empty

	prom   *metrics.Metrics
	health *metrics.HealthStatus

	dispatcher *notify.Dispatcher
	evaluator  *alert.Evaluator
	candleCh   chan model.CandleUpdate
}

// New connects to SQLite (required) and Redis (optional) and builds the
// notification sinks. The indicator engine is restored in Run.
func New(cfg Config, logger *slog.Logger) (*Service, error) {
	return newService(cfg, logger, prometheus.DefaultRegisterer)
}

func newService(cfg Config, logger *slog.Logger, reg prometheus.Registerer) (*Service, error) {
	if logger == nil {
		logger = slog.Default()
	}
	svc := &Service{
		cfg:      cfg,
		log:      logger,
		prom:     metrics.New(reg),
		health:   metrics.NewHealthStatus(),
		candleCh: make(chan model.CandleUpdate, 4096),
	}

	// ---- Open SQLite ----
	var err error
	svc.sql, err = sqlitestore.New(sqlitestore.Config{DBPath: cfg.SQLitePath})
	if err != nil {
		return nil, err
	}
	svc.health.SetSQLiteOK(true)

	// ---- Connect to Redis ----
	if cfg.RedisAddr != "" {
		svc.redis, err = redisstore.New(redisstore.Config{
			Addr:          cfg.RedisAddr,
			Password:      cfg.RedisPassword,
			SnapshotKey:   cfg.SnapshotKey,
			ChannelPrefix: cfg.AlertChannelPrefix,
		})
		if err != nil {
			log.Printf("[alertsvc] WARNING: redis unavailable: %v (continuing with SQLite only)", err)
			svc.redis = nil
		} else {
			svc.health.SetRedisEnabled(true)
			svc.health.CheckRedis(context.Background(), svc.redis)
		}
	}

	sinks, err := svc.buildSinks()
	if err != nil {
		svc.close()
		return nil, err
	}
	svc.dispatcher = notify.NewDispatcher(10*time.Second, sinks...)
	svc.dispatcher.OnSinkError = func(sink string, err error) {
		svc.prom.DispatchFailures.WithLabelValues(sink).Inc()
	}
	log.Printf("[alertsvc] notification sinks: %v", svc.dispatcher.Sinks())

	return svc, nil
}

// buildSinks creates a Notifier for every configured backend. The log sink is
// always present.
func (svc *Service) buildSinks() ([]notify.Notifier, error) {
	cfg := svc.cfg
	sinks := []notify.Notifier{notify.NewLogNotifier()}

	if cfg.WebhookURL != "" {
		sinks = append(sinks, notify.NewWebhookNotifier(cfg.WebhookURL))
	}
	if cfg.TelegramBotToken != "" && cfg.TelegramChatID != "" {
		sinks = append(sinks, notify.NewTelegramNotifier(cfg.TelegramBotToken, cfg.TelegramChatID))
	}
	if len(cfg.KafkaBrokers) > 0 {
		k, err := notify.NewKafkaNotifier(cfg.KafkaBrokers, cfg.KafkaAlertTopic)
		if err != nil {
			return nil, fmt.Errorf("kafka sink: %w", err)
		}
		svc.kafka = k
		sinks = append(sinks, k)
	}
	if cfg.GatewayAddr != "" {
		svc.hub = gateway.NewHub(cfg.StreamReplaySize)
		sinks = append(sinks, svc.hub)
	}
	if svc.redis != nil {
		cb := redisstore.NewCircuitBreaker(5, 10*time.Second)
		cb.OnStateChange = func(from, to redisstore.State) {
			svc.prom.RedisCircuitBreakerState.Set(float64(to))
			if to == redisstore.StateOpen {
				svc.prom.RedisCircuitBreakerTrips.Inc()
			}
		}
		pub := redisstore.NewPublisher(svc.redis, cb, 0)
		pub.OnBuffer = svc.prom.RedisBufferedEvents.Inc
		sinks = append(sinks, pub)
	}
	return sinks, nil
}

// Run starts all subsystems and blocks until ctx is cancelled.
func (svc *Service) Run(ctx context.Context) error {
	cfg := svc.cfg
	log.Println("[alertsvc] starting alert engine...")

	// ---- Seed alerts and drawings ----
	if cfg.SeedFile != "" {
		sf, err := LoadSeed(cfg.SeedFile)
		if err != nil {
			return err
		}
		if _, err := sf.Apply(ctx, svc.sql); err != nil {
			return err
		}
	}

	// ---- Restore indicator engine ----
	engine := svc.restoreEngine(ctx)

	var err error
	svc.evaluator, err = alert.New(alert.Config{
		Alerts:     svc.sql,
		Drawings:   svc.sql,
		Dispatcher: svc.dispatcher,
		Engine:     engine,
		QueueSize:  cfg.QueueSize,
		Metrics:    svc.prom,
		Logger:     svc.log,
	})
	if err != nil {
		return err
	}

	// ---- Candle builder (runs inside the feed goroutine) ----
	builder, err := candles.New(cfg.CandleIntervals, svc.onCandle)
	if err != nil {
		return err
	}

	ingest, err := feed.New(feed.Config{URL: cfg.FeedURL})
	if err != nil {
		return fmt.Errorf("feed: %w", err)
	}
	ingest.OnReconnect = svc.prom.FeedReconnects.Inc
	ingest.OnParseError = func(error) { svc.prom.FeedParseErrors.Inc() }
	ingest.OnConnState = svc.health.SetFeedConnected

	// ---- Start subsystems ----
	var srv *metrics.Server
	if cfg.MetricsAddr != "" {
		srv = metrics.NewServer(cfg.MetricsAddr, svc.health)
		srv.Start()
	}
	var gw *gateway.Server
	if svc.hub != nil {
		gw = gateway.NewServer(cfg.GatewayAddr, svc.hub, svc.sql)
		gw.Start()
	}
	var pinger metrics.Pinger
	if svc.redis != nil {
		pinger = svc.redis
	}
	svc.health.StartLivenessChecker(ctx, pinger, svc.sql.DB(), 10*time.Second)

	var wg sync.WaitGroup
	wg.Add(4)
	go func() {
		defer wg.Done()
		svc.sql.RunCandles(ctx, svc.candleCh)
	}()
	go func() {
		defer wg.Done()
		svc.evaluator.Run(ctx, cfg.EvalInterval)
	}()
	go func() {
		defer wg.Done()
		ingest.Start(ctx, func(u model.Update) {
			svc.health.SetLastUpdateTime(time.Now())
			if u.Tick != nil {
				builder.Process(*u.Tick)
			}
			if u.Candle != nil && u.Candle.Closed {
				svc.persistCandle(*u.Candle)
			}
			svc.evaluator.Enqueue(u)
		})
	}()
	go func() {
		defer wg.Done()
		svc.snapshotLoop(ctx)
	}()

	log.Println("[alertsvc] ╔════════════════════════════════════════════════════════╗")
	log.Println("[alertsvc] ║  Alert Engine Active                                   ║")
	log.Println("[alertsvc] ║                                                        ║")
	log.Println("[alertsvc] ║  [Feed] → [Candles] → [Evaluator] → [Sinks]            ║")
	log.Printf("[alertsvc] ║  Eval every %s, snapshot every %s", cfg.EvalInterval, cfg.SnapshotInterval)
	log.Printf("[alertsvc] ║  Intervals: %v", cfg.CandleIntervals)
	log.Println("[alertsvc] ╚════════════════════════════════════════════════════════╝")

	<-ctx.Done()
	wg.Wait()

	// ---- Graceful shutdown ----
	stopCtx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	if srv != nil {
		srv.Stop(stopCtx)
	}
	if gw != nil {
		gw.Stop(stopCtx)
	}
	cancel()
	svc.shutdown()
	return nil
}

// onCandle receives builder output on the feed goroutine.
func (svc *Service) onCandle(c model.CandleUpdate) {
	if c.Closed {
		svc.prom.ClosedCandles.Inc()
		svc.persistCandle(c)
	}
	svc.evaluator.Enqueue(model.Update{Candle: &c})
}

func (svc *Service) persistCandle(c model.CandleUpdate) {
	select {
	case svc.candleCh <- c:
	default:
		log.Printf("[alertsvc] candle channel full, dropping %s@%s", c.Key(), c.TS.Format(time.RFC3339))
	}
}

// restoreEngine restores histories from Redis, then SQLite, then replays the
// closed candles stored since the snapshot.
func (svc *Service) restoreEngine(ctx context.Context) *indicator.Engine {
	var sources []model.SnapshotStore
	if svc.redis != nil {
		sources = append(sources, svc.redis)
	}
	sources = append(sources, svc.sql)

	restorer := indicator.NewRestorer(svc.cfg.HistoryLimit, sources...)
	engine, takenAt := restorer.Restore(ctx)
	if takenAt.IsZero() {
		svc.health.SetRestoredFrom("cold")
	} else {
		svc.health.SetRestoredFrom("snapshot@" + takenAt.Format(time.RFC3339))
	}

	// The candle forming at snapshot time closed later; step back one of the
	// longest intervals so its final close is replayed too.
	since := takenAt
	if !since.IsZero() {
		since = since.Add(-svc.longestInterval())
	}
	replay, err := svc.sql.ReadCandlesSince(ctx, since)
	if err != nil {
		log.Printf("[alertsvc] candle replay read error: %v", err)
		return engine
	}
	restorer.Replay(engine, replay)
	return engine
}

func (svc *Service) longestInterval() time.Duration {
	var longest time.Duration
	for _, iv := range svc.cfg.CandleIntervals {
		if d, err := model.IntervalDuration(iv); err == nil && d > longest {
			longest = d
		}
	}
	return longest
}

// snapshotLoop periodically saves engine state to Redis and SQLite and prunes
// old candles.
func (svc *Service) snapshotLoop(ctx context.Context) {
	interval := svc.cfg.SnapshotInterval
	if interval <= 0 {
		interval = 30 * time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			svc.saveSnapshot(ctx, now)
			if svc.cfg.CandleRetention > 0 {
				if n, err := svc.sql.PruneCandles(ctx, now.Add(-svc.cfg.CandleRetention)); err != nil {
					log.Printf("[alertsvc] candle prune error: %v", err)
				} else if n > 0 {
					log.Printf("[alertsvc] pruned %d old candles", n)
				}
			}
		}
	}
}

func (svc *Service) saveSnapshot(ctx context.Context, now time.Time) {
	if svc.evaluator == nil {
		return
	}
	snap := indicator.SnapshotEngine(svc.evaluator.Engine(), now)
	data, err := indicator.EncodeSnapshot(snap)
	if err != nil {
		log.Printf("[alertsvc] snapshot encode error: %v", err)
		return
	}

	if svc.redis != nil {
		svc.recordSnapshot("redis", svc.redis.SaveSnapshotJSON(ctx, data))
	}
	svc.recordSnapshot("sqlite", svc.sql.SaveSnapshotJSON(ctx, data))
}

func (svc *Service) recordSnapshot(store string, err error) {
	result := "ok"
	if err != nil {
		result = "error"
		log.Printf("[alertsvc] %s snapshot write error: %v", store, err)
	}
	svc.prom.SnapshotsTotal.WithLabelValues(store, result).Inc()
}

// shutdown saves a final snapshot and closes connections.
func (svc *Service) shutdown() {
	log.Println("[alertsvc] shutdown signal received, saving final snapshot...")

	shutCtx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	svc.saveSnapshot(shutCtx, time.Now())

	svc.close()
	log.Println("[alertsvc] shutdown complete.")
}

func (svc *Service) close() {
	if svc.kafka != nil {
		if err := svc.kafka.Close(); err != nil {
			log.Printf("[alertsvc] kafka close: %v", err)
		}
	}
	if svc.redis != nil {
		svc.redis.Close()
	}
	if svc.sql != nil {
		svc.sql.Close()
	}
}
