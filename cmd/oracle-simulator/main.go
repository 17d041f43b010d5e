package main

import (
	"context"
	"encoding/json"
	"fmt"
	"math/rand"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/radieske/coin-battle-poc/internal/shared/config"
	"github.com/radieske/coin-battle-poc/internal/shared/logger"
	"github.com/radieske/coin-battle-poc/internal/shared/metrics"
)

// Taxa cobrada por item de update_data, imitando o modelo de fee-per-update
// dos oráculos de preço reais.
const feePerUpdateMicros = int64(10)

var (
	upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin:     func(r *http.Request) bool { return true },
	}

	// Catálogo fixo de feeds simulados; preço em formato price × 10^expo
	seedFeeds = map[string]*feedState{
		"feed-btc": {price: 6512345, expo: -2},
		"feed-eth": {price: 345678, expo: -2},
		"feed-sol": {price: 18934, expo: -2},
		"feed-dog": {price: 1234, expo: -4},
	}

	wsConnections = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "oracle_ws_connections",
		Help: "Clientes WebSocket conectados",
	})
	updatesApplied = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "oracle_updates_applied_total",
		Help: "Atualizações de preço aceitas (pagas)",
	})
	feesChargedMicros = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "oracle_fees_charged_micros_total",
		Help: "Total de taxas de atualização cobradas",
	})
)

type feedState struct {
	price       int64
	expo        int32
	publishTime time.Time
}

// oracleServer mantém o estado dos feeds e serve a API do oráculo.
type oracleServer struct {
	mu    sync.RWMutex
	feeds map[string]*feedState
	log   *zap.Logger
}

type priceMsg struct {
	FeedID          string `json:"feed_id"`
	Price           int64  `json:"price"`
	Expo            int32  `json:"expo"`
	PublishTimeUnix int64  `json:"publish_time_unix"`
}

// randomWalk aplica uma variação de até ±2% no preço de cada feed.
func (s *oracleServer) randomWalk() []priceMsg {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]priceMsg, 0, len(s.feeds))
	for id, f := range s.feeds {
		delta := f.price * int64(rand.Intn(401)-200) / 10000
		f.price += delta
		if f.price < 1 {
			f.price = 1
		}
		f.publishTime = time.Now().UTC()
		out = append(out, priceMsg{
			FeedID: id, Price: f.price, Expo: f.expo,
			PublishTimeUnix: f.publishTime.Unix(),
		})
	}
	return out
}

// updateFeeHandler calcula a taxa para aceitar o update_data enviado.
func (s *oracleServer) updateFeeHandler(w http.ResponseWriter, r *http.Request) {
	var req struct {
		UpdateData []string `json:"update_data"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "bad request", http.StatusBadRequest)
		return
	}
	fee := feePerUpdateMicros * int64(len(req.UpdateData))
	if fee == 0 {
		fee = feePerUpdateMicros // taxa mínima
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]int64{"fee_micros": fee})
}

// updateHandler aceita um update pago: renova o publish time de todos os
// feeds, simulando a atualização on-demand.
func (s *oracleServer) updateHandler(w http.ResponseWriter, r *http.Request) {
	var req struct {
		UpdateData []string `json:"update_data"`
		FeeMicros  int64    `json:"fee_micros"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "bad request", http.StatusBadRequest)
		return
	}
	required := feePerUpdateMicros * int64(len(req.UpdateData))
	if required == 0 {
		required = feePerUpdateMicros
	}
	if req.FeeMicros < required {
		http.Error(w, "fee too low", http.StatusPaymentRequired)
		return
	}

	s.mu.Lock()
	now := time.Now().UTC()
	for _, f := range s.feeds {
		f.publishTime = now
	}
	s.mu.Unlock()

	updatesApplied.Inc()
	feesChargedMicros.Add(float64(required))
	w.Header().Set("Content-Type", "application/json")
	_, _ = w.Write([]byte(`{"status":"OK"}`))
}

// priceHandler devolve o preço de um feed, respeitando max_age_secs.
func (s *oracleServer) priceHandler(w http.ResponseWriter, r *http.Request) {
	feedID := r.URL.Query().Get("feed")
	maxAge, _ := strconv.ParseInt(r.URL.Query().Get("max_age_secs"), 10, 64)

	s.mu.RLock()
	f, ok := s.feeds[feedID]
	var msg priceMsg
	if ok {
		msg = priceMsg{FeedID: feedID, Price: f.price, Expo: f.expo, PublishTimeUnix: f.publishTime.Unix()}
	}
	s.mu.RUnlock()

	if !ok {
		http.Error(w, "feed not found", http.StatusNotFound)
		return
	}
	if maxAge > 0 && time.Since(time.Unix(msg.PublishTimeUnix, 0)) > time.Duration(maxAge)*time.Second {
		http.Error(w, "price stale", http.StatusGone)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]any{
		"price":             msg.Price,
		"expo":              msg.Expo,
		"publish_time_unix": msg.PublishTimeUnix,
	})
}

func main() {
	_ = godotenv.Load()
	cfg := config.Load()
	log, err := logger.New(cfg.ServiceName, cfg.Env)
	if err != nil {
		panic(err)
	}
	defer log.Sync()

	prometheus.MustRegister(wsConnections, updatesApplied, feesChargedMicros)

	now := time.Now().UTC()
	for _, f := range seedFeeds {
		f.publishTime = now
	}
	s := &oracleServer{feeds: seedFeeds, log: log}

	// Conexões WS recebem o preço de cada feed a cada tick
	var wsMu sync.Mutex
	wsConns := make(map[*websocket.Conn]struct{})

	go func() {
		ticker := time.NewTicker(2 * time.Second)
		defer ticker.Stop()
		for range ticker.C {
			msgs := s.randomWalk()
			wsMu.Lock()
			for c := range wsConns {
				_ = c.SetWriteDeadline(time.Now().Add(2 * time.Second))
				if err := c.WriteJSON(msgs); err != nil {
					_ = c.Close()
					delete(wsConns, c)
					wsConnections.Dec()
				}
			}
			wsMu.Unlock()
		}
	}()

	mux := http.NewServeMux()
	mux.HandleFunc("/oracle/update-fee", s.updateFeeHandler)
	mux.HandleFunc("/oracle/update", s.updateHandler)
	mux.HandleFunc("/oracle/price", s.priceHandler)
	mux.HandleFunc("/ws", func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			log.Warn("ws upgrade failed", zap.Error(err))
			return
		}
		wsMu.Lock()
		wsConns[conn] = struct{}{}
		wsMu.Unlock()
		wsConnections.Inc()

		go func() {
			defer func() {
				wsMu.Lock()
				delete(wsConns, conn)
				wsMu.Unlock()
				wsConnections.Dec()
				_ = conn.Close()
			}()
			for {
				// lê e descarta mensagens do cliente para manter o socket limpo
				if _, _, err := conn.ReadMessage(); err != nil {
					return
				}
			}
		}()
	})

	metrics.StartMetricsServer(cfg.MetricsPort, func(ctx context.Context) error { return nil })

	addr := fmt.Sprintf(":%s", cfg.HTTPPort)
	log.Info("oracle-simulator listening", zap.String("addr", addr))
	if err := http.ListenAndServe(addr, mux); err != nil {
		log.Fatal("http", zap.Error(err))
	}
}
