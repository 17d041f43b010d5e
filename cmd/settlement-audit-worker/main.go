package main

import (
	"context"
	"encoding/json"
	"time"

	"github.com/joho/godotenv"
	kafkago "github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	"github.com/radieske/coin-battle-poc/internal/audit"
	"github.com/radieske/coin-battle-poc/internal/shared/config"
	"github.com/radieske/coin-battle-poc/internal/shared/db"
	"github.com/radieske/coin-battle-poc/internal/shared/kafka"
	"github.com/radieske/coin-battle-poc/internal/shared/logger"
	"github.com/radieske/coin-battle-poc/internal/shared/metrics"
	ev "github.com/radieske/coin-battle-poc/pkg/contracts/events"
)

func main() {
	_ = godotenv.Load()
	cfg := config.Load()
	log, err := logger.New(cfg.ServiceName, cfg.Env)
	if err != nil {
		panic(err)
	}
	defer log.Sync()

	// Postgres guarda a trilha append-only de eventos de rodada
	pg, err := db.ConnectPostgres(cfg.PostgresDSN)
	if err != nil {
		log.Fatal("pg connect", zap.Error(err))
	}
	defer pg.Close()
	store := audit.NewStore(pg)

	// Kafka consumer: consome round_events para persistir auditoria
	reader := kafka.NewReader(cfg.KafkaBrokers, cfg.TopicRoundEvents, "settlement-audit")
	defer reader.Close()

	var dlqWriter *kafkago.Writer
	if cfg.TopicRoundEventsDLQ != "" {
		dlqWriter = kafka.NewWriter(cfg.KafkaBrokers, cfg.TopicRoundEventsDLQ)
		defer dlqWriter.Close()
	}

	metrics.StartMetricsServer(cfg.MetricsPort, func(ctx context.Context) error {
		return pg.PingContext(ctx)
	})

	log.Info("settlement-audit-worker started", zap.String("consume", cfg.TopicRoundEvents))

	ctx := context.Background()

	// Loop principal: consome eventos do Kafka e grava no Postgres
	for {
		key, value, err := kafka.ReadNext(ctx, reader)
		if err != nil {
			log.Warn("kafka read", zap.Error(err))
			time.Sleep(time.Second)
			continue
		}

		var env ev.Envelope
		if jerr := json.Unmarshal(value, &env); jerr != nil {
			log.Error("unmarshal round event", zap.ByteString("key", key), zap.Error(jerr))
			if dlqWriter != nil {
				_ = kafka.WriteJSON(ctx, dlqWriter, string(key), value)
			}
			continue
		}

		if err := store.Insert(ctx, env); err != nil {
			log.Error("insert round event",
				zap.Uint64("round_id", env.RoundID),
				zap.String("type", env.Type),
				zap.Error(err),
			)
			if dlqWriter != nil {
				_ = kafka.WriteJSON(ctx, dlqWriter, string(key), value)
			}
			// Backoff simples para evitar flood em caso de erro de banco
			time.Sleep(500 * time.Millisecond)
		}
	}
}
