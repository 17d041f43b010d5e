package main

import (
	"context"
	"encoding/json"
	"fmt"
	"math/rand"
	"net/http"
	"os"
	"strconv"
	"sync"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/radieske/coin-battle-poc/internal/shared/config"
	"github.com/radieske/coin-battle-poc/internal/shared/logger"
	"github.com/radieske/coin-battle-poc/internal/shared/metrics"
)

var (
	transfersOK = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "bank_transfers_ok_total",
		Help: "Transferências aceitas",
	})
	transfersRejected = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "bank_transfers_rejected_total",
		Help: "Transferências rejeitadas (injeção de falha)",
	})
)

// bankServer é o dublê do serviço de custódia: credita contas em memória e
// deduplica por external_ref, que é o contrato que o engine espera do
// colaborador real.
type bankServer struct {
	mu       sync.Mutex
	balances map[string]int64
	seenRefs map[string]struct{}
	failPct  int // % de transferências rejeitadas de propósito
	log      *zap.Logger
}

type transferReq struct {
	To           string `json:"to"`
	AmountMicros int64  `json:"amount_micros"`
	ExternalRef  string `json:"external_ref"`
}

func (s *bankServer) transferHandler(w http.ResponseWriter, r *http.Request) {
	var req transferReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "bad request", http.StatusBadRequest)
		return
	}
	if req.To == "" || req.AmountMicros <= 0 {
		http.Error(w, "invalid payload", http.StatusBadRequest)
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	// idempotência: ref repetida responde OK sem creditar de novo
	if _, ok := s.seenRefs[req.ExternalRef]; ok && req.ExternalRef != "" {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"status":"OK"}`))
		return
	}

	if s.failPct > 0 && rand.Intn(100) < s.failPct {
		transfersRejected.Inc()
		http.Error(w, "transfer rejected", http.StatusConflict)
		return
	}

	s.balances[req.To] += req.AmountMicros
	if req.ExternalRef != "" {
		s.seenRefs[req.ExternalRef] = struct{}{}
	}
	transfersOK.Inc()
	s.log.Info("transfer",
		zap.String("to", req.To),
		zap.Int64("amount_micros", req.AmountMicros),
		zap.String("ref", req.ExternalRef),
	)
	w.Header().Set("Content-Type", "application/json")
	_, _ = w.Write([]byte(`{"status":"OK"}`))
}

func (s *bankServer) balanceHandler(w http.ResponseWriter, r *http.Request) {
	account := r.URL.Query().Get("account")
	if account == "" {
		http.Error(w, "account required", http.StatusBadRequest)
		return
	}
	s.mu.Lock()
	bal := s.balances[account]
	s.mu.Unlock()
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]any{"account": account, "balance_micros": bal})
}

func main() {
	_ = godotenv.Load()
	cfg := config.Load()
	log, err := logger.New(cfg.ServiceName, cfg.Env)
	if err != nil {
		panic(err)
	}
	defer log.Sync()

	prometheus.MustRegister(transfersOK, transfersRejected)

	failPct := 0
	if v := os.Getenv("BANK_FAIL_PCT"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n >= 0 && n <= 100 {
			failPct = n
		}
	}

	s := &bankServer{
		balances: make(map[string]int64),
		seenRefs: make(map[string]struct{}),
		failPct:  failPct,
		log:      log,
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/bank/transfer", s.transferHandler)
	mux.HandleFunc("/bank/balance", s.balanceHandler)

	metrics.StartMetricsServer(cfg.MetricsPort, func(ctx context.Context) error { return nil })

	addr := fmt.Sprintf(":%s", cfg.HTTPPort)
	log.Info("bank-simulator listening", zap.String("addr", addr), zap.Int("fail_pct", failPct))
	if err := http.ListenAndServe(addr, mux); err != nil {
		log.Fatal("http", zap.Error(err))
	}
}
