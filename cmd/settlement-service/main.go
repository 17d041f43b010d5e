package main

import (
	"context"
	"fmt"
	"net/http"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/radieske/coin-battle-poc/internal/api"
	acache "github.com/radieske/coin-battle-poc/internal/api/cache"
	"github.com/radieske/coin-battle-poc/internal/api/ws"
	"github.com/radieske/coin-battle-poc/internal/auth"
	"github.com/radieske/coin-battle-poc/internal/bank"
	"github.com/radieske/coin-battle-poc/internal/engine"
	kpub "github.com/radieske/coin-battle-poc/internal/engine/producer"
	"github.com/radieske/coin-battle-poc/internal/oracle"
	"github.com/radieske/coin-battle-poc/internal/shared/cache"
	"github.com/radieske/coin-battle-poc/internal/shared/config"
	"github.com/radieske/coin-battle-poc/internal/shared/kafka"
	"github.com/radieske/coin-battle-poc/internal/shared/logger"
	"github.com/radieske/coin-battle-poc/internal/shared/metrics"
)

func main() {
	_ = godotenv.Load()
	cfg := config.Load()
	log, _ := logger.New(cfg.ServiceName, cfg.Env)
	defer log.Sync()

	// Redis: cache de leitura + canal do stream WS
	rdb, err := cache.ConnectRedis(cfg.RedisAddr)
	if err != nil {
		log.Fatal("redis", zap.Error(err))
	}

	// Kafka writer (tópico round_events)
	writer := kafka.NewWriter(cfg.KafkaBrokers, cfg.TopicRoundEvents)
	defer writer.Close()

	// Colaboradores externos
	gate := auth.NewStaticGate(cfg.OperatorKeys)
	bankCli := bank.New(cfg.BankURL)
	var oracleCli oracle.Client
	if cfg.ResolutionMode == config.ModeOracle {
		oracleCli = oracle.NewHTTPClient(cfg.OracleURL)
	}

	res, err := engine.NewResolver(cfg.ResolutionMode, oracleCli, cfg.MaxPriceAge)
	if err != nil {
		log.Fatal("resolver", zap.Error(err))
	}

	publ := kpub.NewKafkaPublisher(writer, rdb, cfg.RedisPubSubChannel)
	eng := engine.New(engine.Params{
		Mode:             cfg.ResolutionMode,
		FeeBps:           cfg.FeeBps,
		MinRoundDuration: cfg.MinRoundDuration,
		RefundTimeout:    cfg.RefundTimeout,
		MaxCoins:         cfg.MaxCoins,
		MinStakeMicros:   cfg.MinStakeMicros,
	}, gate, bankCli, res, publ, cfg.FeeRecipient, log)

	// WS hub alimentado pelo Pub/Sub do Redis
	hub := ws.NewHub(func(r *http.Request) bool { return true })
	ws.StartRedisSubscriber(context.Background(), rdb, cfg.RedisPubSubChannel, hub)

	srv := api.NewServer(log, eng, acache.New(rdb), hub)
	apiSrv := &http.Server{
		Addr:    fmt.Sprintf(":%s", cfg.HTTPPort),
		Handler: srv.Router(),
	}

	metrics.StartMetricsServer(cfg.MetricsPort, func(ctx context.Context) error {
		return rdb.Ping(ctx).Err()
	})

	log.Info("settlement-service listening",
		zap.String("addr", fmt.Sprintf(":%s", cfg.HTTPPort)),
		zap.String("mode", cfg.ResolutionMode),
	)
	if err := apiSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.Fatal("api", zap.Error(err))
	}
}
