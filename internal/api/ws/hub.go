package ws

import (
	"encoding/json"
	"net/http"
	"sync"

	"github.com/gorilla/websocket"

	"github.com/radieske/coin-battle-poc/pkg/contracts/events"
)

// Hub gerencia conexões WebSocket e assinaturas por rodada.
// subs: mapeia roundID para o conjunto de conexões inscritas.
// RoundID 0 funciona como assinatura de todas as rodadas.
type Hub struct {
	upgrader websocket.Upgrader
	mu       sync.RWMutex
	subs     map[uint64]map[*websocket.Conn]struct{}
}

// NewHub cria uma instância de Hub com política customizada de origem (CORS)
func NewHub(allowOrigin func(r *http.Request) bool) *Hub {
	return &Hub{
		upgrader: websocket.Upgrader{CheckOrigin: allowOrigin},
		subs:     make(map[uint64]map[*websocket.Conn]struct{}),
	}
}

// HandleWS gerencia o ciclo de vida de uma conexão WebSocket.
// Permite subscribe/unsubscribe por rodada e responde a pings.
func (h *Hub) HandleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	defer conn.Close()

	for {
		var msg ClientMsg
		if err := conn.ReadJSON(&msg); err != nil {
			break
		}
		switch msg.Type {
		case "subscribe":
			h.mu.Lock()
			if _, ok := h.subs[msg.RoundID]; !ok {
				h.subs[msg.RoundID] = make(map[*websocket.Conn]struct{})
			}
			h.subs[msg.RoundID][conn] = struct{}{}
			h.mu.Unlock()
		case "unsubscribe":
			h.mu.Lock()
			if m, ok := h.subs[msg.RoundID]; ok {
				delete(m, conn)
				if len(m) == 0 {
					delete(h.subs, msg.RoundID)
				}
			}
			h.mu.Unlock()
		case "ping":
			_ = conn.WriteJSON(map[string]string{"type": "pong"})
		}
	}
	// Remove a conexão de todas as assinaturas ao desconectar
	h.mu.Lock()
	for _, set := range h.subs {
		delete(set, conn)
	}
	h.mu.Unlock()
}

// Broadcast envia um evento de rodada para os inscritos naquela rodada e
// para os inscritos em todas (roundID 0).
func (h *Hub) Broadcast(env events.Envelope) {
	h.mu.RLock()
	conns := make(map[*websocket.Conn]struct{}, len(h.subs[env.RoundID])+len(h.subs[0]))
	for c := range h.subs[env.RoundID] {
		conns[c] = struct{}{}
	}
	for c := range h.subs[0] {
		conns[c] = struct{}{}
	}
	h.mu.RUnlock()
	if len(conns) == 0 {
		return
	}

	b, _ := json.Marshal(env)
	for c := range conns {
		_ = c.WriteMessage(websocket.TextMessage, b)
	}
}
