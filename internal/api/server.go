package api

import (
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/radieske/coin-battle-poc/internal/api/cache"
	"github.com/radieske/coin-battle-poc/internal/api/dto"
	"github.com/radieske/coin-battle-poc/internal/api/ws"
	"github.com/radieske/coin-battle-poc/internal/engine"
	"github.com/radieske/coin-battle-poc/internal/oracle"
)

const roundCacheTTL = 5 * time.Second

// Server expõe a API REST/WS do settlement engine. A identidade do apostador
// vem no corpo (userId); operações privilegiadas exigem o header
// X-Operator-Key, validado pelo gate dentro do engine.
type Server struct {
	log   *zap.Logger
	eng   *engine.Engine
	cache *cache.Cache // pode ser nil (sem Redis, ex.: testes)
	hub   *ws.Hub      // idem
}

func NewServer(log *zap.Logger, eng *engine.Engine, c *cache.Cache, hub *ws.Hub) *Server {
	return &Server{log: log, eng: eng, cache: c, hub: hub}
}

// Router retorna o roteador HTTP com os endpoints da API.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Post("/v1/rounds", s.createRound)
	r.Get("/v1/rounds", s.listRounds)
	r.Get("/v1/rounds/{id}", s.getRound)
	r.Post("/v1/rounds/{id}/wagers", s.placeWager)
	r.Get("/v1/rounds/{id}/wagers/{userId}", s.getWager)
	r.Post("/v1/rounds/{id}/snapshot", s.snapshotPrices)
	r.Post("/v1/rounds/{id}/commitment", s.commitWinner)
	r.Post("/v1/rounds/{id}/resolve", s.resolveRound)
	r.Post("/v1/rounds/{id}/claim", s.claimWinnings)
	r.Post("/v1/rounds/{id}/refund", s.emergencyRefund)
	r.Post("/v1/rounds/{id}/cancel", s.cancelRound)
	r.Put("/v1/fee-recipient", s.setFeeRecipient)
	if s.hub != nil {
		r.Get("/ws", s.hub.HandleWS)
	}
	return r
}

// writeJSON serializa a resposta em JSON e define o status HTTP
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeErr(w http.ResponseWriter, err error) {
	writeJSON(w, statusFor(err), dto.ErrorResponse{Error: err.Error()})
}

// statusFor mapeia a taxonomia de erros do engine para HTTP:
// validação → 400, autorização → 401, pagamento do oráculo → 402,
// inexistente → 404, pré-condição de estado e falha de transferência → 409.
func statusFor(err error) int {
	switch {
	case errors.Is(err, engine.ErrRoundNotFound):
		return http.StatusNotFound
	case errors.Is(err, engine.ErrNotAuthorized):
		return http.StatusUnauthorized
	case errors.Is(err, oracle.ErrFeeTooLow):
		return http.StatusPaymentRequired
	case errors.Is(err, engine.ErrInvalidDuration),
		errors.Is(err, engine.ErrCoinCount),
		errors.Is(err, engine.ErrFeedMismatch),
		errors.Is(err, engine.ErrInvalidCoinIndex),
		errors.Is(err, engine.ErrStakeTooSmall),
		errors.Is(err, engine.ErrInvalidRecipient):
		return http.StatusBadRequest
	default:
		return http.StatusConflict
	}
}

func roundID(r *http.Request) (uint64, error) {
	return strconv.ParseUint(chi.URLParam(r, "id"), 10, 64)
}

func decodeUpdateData(in []string) ([][]byte, error) {
	out := make([][]byte, len(in))
	for i, s := range in {
		b, err := base64.StdEncoding.DecodeString(s)
		if err != nil {
			return nil, err
		}
		out[i] = b
	}
	return out, nil
}

func decode32(hexStr string) ([32]byte, error) {
	var out [32]byte
	b, err := hex.DecodeString(hexStr)
	if err != nil {
		return out, err
	}
	if len(b) != 32 {
		return out, errors.New("expected 32 bytes")
	}
	copy(out[:], b)
	return out, nil
}

func (s *Server) createRound(w http.ResponseWriter, r *http.Request) {
	var req dto.CreateRoundRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, dto.ErrorResponse{Error: "bad json"})
		return
	}
	info, err := s.eng.CreateRound(r.Context(), r.Header.Get("X-Operator-Key"),
		req.Symbols, req.Feeds, time.Duration(req.DurationSecs)*time.Second)
	if err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, info)
}

func (s *Server) listRounds(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.eng.ListRounds())
}

// getRound retorna o snapshot da rodada, preferencialmente do cache
func (s *Server) getRound(w http.ResponseWriter, r *http.Request) {
	id, err := roundID(r)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, dto.ErrorResponse{Error: "invalid round id"})
		return
	}

	if s.cache != nil {
		var fromCache engine.RoundInfo
		if ok, _ := s.cache.GetRound(r.Context(), id, &fromCache); ok {
			writeJSON(w, http.StatusOK, fromCache)
			return
		}
	}

	info, err := s.eng.GetRound(id)
	if err != nil {
		writeErr(w, err)
		return
	}
	if s.cache != nil {
		_ = s.cache.SetRound(r.Context(), id, info, roundCacheTTL)
	}
	writeJSON(w, http.StatusOK, info)
}

func (s *Server) getWager(w http.ResponseWriter, r *http.Request) {
	id, err := roundID(r)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, dto.ErrorResponse{Error: "invalid round id"})
		return
	}
	info, err := s.eng.GetWager(id, chi.URLParam(r, "userId"))
	if err != nil {
		if errors.Is(err, engine.ErrNothingStaked) {
			writeJSON(w, http.StatusNotFound, dto.ErrorResponse{Error: err.Error()})
			return
		}
		writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, info)
}

func (s *Server) placeWager(w http.ResponseWriter, r *http.Request) {
	id, err := roundID(r)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, dto.ErrorResponse{Error: "invalid round id"})
		return
	}
	var req dto.PlaceWagerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, dto.ErrorResponse{Error: "bad json"})
		return
	}
	if req.UserID == "" {
		writeJSON(w, http.StatusBadRequest, dto.ErrorResponse{Error: "userId required"})
		return
	}
	info, err := s.eng.PlaceWager(r.Context(), req.UserID, id, req.CoinIndex, req.AmountMicros)
	if err != nil {
		writeErr(w, err)
		return
	}
	s.invalidate(r, id)
	writeJSON(w, http.StatusCreated, info)
}

func (s *Server) snapshotPrices(w http.ResponseWriter, r *http.Request) {
	id, err := roundID(r)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, dto.ErrorResponse{Error: "invalid round id"})
		return
	}
	var req dto.SnapshotRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, dto.ErrorResponse{Error: "bad json"})
		return
	}
	data, err := decodeUpdateData(req.UpdateData)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, dto.ErrorResponse{Error: "bad update_data"})
		return
	}
	if err := s.eng.SnapshotPrices(r.Context(), id, engine.Evidence{
		UpdateData:    data,
		PaidFeeMicros: req.PaidFeeMicros,
		Payer:         req.Payer,
	}); err != nil {
		writeErr(w, err)
		return
	}
	s.invalidate(r, id)
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(`{"status":"SNAPSHOTTED"}`))
}

func (s *Server) commitWinner(w http.ResponseWriter, r *http.Request) {
	id, err := roundID(r)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, dto.ErrorResponse{Error: "invalid round id"})
		return
	}
	var req dto.CommitmentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, dto.ErrorResponse{Error: "bad json"})
		return
	}
	commitment, err := decode32(req.CommitmentHex)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, dto.ErrorResponse{Error: "bad commitment_hex"})
		return
	}
	if err := s.eng.CommitWinner(r.Context(), r.Header.Get("X-Operator-Key"), id, commitment); err != nil {
		writeErr(w, err)
		return
	}
	s.invalidate(r, id)
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(`{"status":"COMMITTED"}`))
}

func (s *Server) resolveRound(w http.ResponseWriter, r *http.Request) {
	id, err := roundID(r)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, dto.ErrorResponse{Error: "invalid round id"})
		return
	}
	var req dto.ResolveRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, dto.ErrorResponse{Error: "bad json"})
		return
	}

	ev := engine.Evidence{
		OperatorKey:   r.Header.Get("X-Operator-Key"),
		PaidFeeMicros: req.PaidFeeMicros,
		Payer:         req.Payer,
	}
	if req.Winner != nil {
		ev.Winner = *req.Winner
	}
	if req.SaltHex != "" {
		salt, err := decode32(req.SaltHex)
		if err != nil {
			writeJSON(w, http.StatusBadRequest, dto.ErrorResponse{Error: "bad salt_hex"})
			return
		}
		ev.Salt = salt
	}
	if len(req.UpdateData) > 0 {
		data, err := decodeUpdateData(req.UpdateData)
		if err != nil {
			writeJSON(w, http.StatusBadRequest, dto.ErrorResponse{Error: "bad update_data"})
			return
		}
		ev.UpdateData = data
	}

	info, err := s.eng.ResolveRound(r.Context(), id, ev)
	if err != nil {
		writeErr(w, err)
		return
	}
	s.invalidate(r, id)
	writeJSON(w, http.StatusOK, info)
}

func (s *Server) claimWinnings(w http.ResponseWriter, r *http.Request) {
	id, err := roundID(r)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, dto.ErrorResponse{Error: "invalid round id"})
		return
	}
	var req dto.ClaimRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.UserID == "" {
		writeJSON(w, http.StatusBadRequest, dto.ErrorResponse{Error: "userId required"})
		return
	}
	amount, err := s.eng.ClaimWinnings(r.Context(), req.UserID, id)
	if err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, dto.PayoutResponse{
		RoundID: id, UserID: req.UserID, AmountMicros: amount, Status: "CLAIMED",
	})
}

func (s *Server) emergencyRefund(w http.ResponseWriter, r *http.Request) {
	id, err := roundID(r)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, dto.ErrorResponse{Error: "invalid round id"})
		return
	}
	var req dto.RefundRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.UserID == "" {
		writeJSON(w, http.StatusBadRequest, dto.ErrorResponse{Error: "userId required"})
		return
	}
	amount, err := s.eng.EmergencyRefund(r.Context(), req.UserID, id)
	if err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, dto.PayoutResponse{
		RoundID: id, UserID: req.UserID, AmountMicros: amount, Status: "REFUNDED",
	})
}

func (s *Server) cancelRound(w http.ResponseWriter, r *http.Request) {
	id, err := roundID(r)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, dto.ErrorResponse{Error: "invalid round id"})
		return
	}
	if err := s.eng.CancelRound(r.Context(), r.Header.Get("X-Operator-Key"), id); err != nil {
		writeErr(w, err)
		return
	}
	s.invalidate(r, id)
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(`{"status":"CANCELLED"}`))
}

func (s *Server) setFeeRecipient(w http.ResponseWriter, r *http.Request) {
	var req dto.FeeRecipientRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, dto.ErrorResponse{Error: "bad json"})
		return
	}
	if err := s.eng.SetFeeRecipient(r.Context(), r.Header.Get("X-Operator-Key"), req.Recipient); err != nil {
		writeErr(w, err)
		return
	}
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(`{"status":"UPDATED"}`))
}

func (s *Server) invalidate(r *http.Request, id uint64) {
	if s.cache != nil {
		s.cache.InvalidateRound(r.Context(), id)
	}
}
