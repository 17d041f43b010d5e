package engine

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/radieske/coin-battle-poc/internal/auth"
	"github.com/radieske/coin-battle-poc/internal/bank"
	"github.com/radieske/coin-battle-poc/pkg/contracts/events"
)

// Params são os parâmetros econômicos e de janela do engine.
type Params struct {
	Mode             string // config.ModeAdmin | ModeCommitReveal | ModeOracle
	FeeBps           int64
	MinRoundDuration time.Duration
	RefundTimeout    time.Duration
	MaxCoins         int
	MinStakeMicros   int64
}

// Publisher recebe as saídas observáveis do engine (auditoria externa).
// Falha de publicação não desfaz a operação: o estado do ledger é a verdade.
type Publisher interface {
	PublishRoundEvent(ctx context.Context, env events.Envelope) error
}

// Engine é o ponto único de serialização do mercado: todas as operações
// mutadoras rodam por inteiro sob o mesmo mutex, e cada uma ou aplica todos
// os seus efeitos ou nenhum. Transições dependentes de tempo são avaliadas
// de forma preguiçosa contra o relógio no momento da chamada; não existe
// scheduler em background.
type Engine struct {
	mu sync.Mutex

	params   Params
	gate     auth.Gate
	bank     bank.Transferer
	resolver Resolver
	pub      Publisher
	log      *zap.Logger
	now      func() time.Time

	feeRecipient string
	nextRoundID  uint64
	rounds       map[uint64]*round
	wagers       map[wagerKey]*wager
}

// New monta o engine. resolver define a variante de resolução da implantação;
// feeRecipient pode ser trocado depois via SetFeeRecipient.
func New(params Params, gate auth.Gate, transferer bank.Transferer, res Resolver, pub Publisher, feeRecipient string, log *zap.Logger) *Engine {
	return &Engine{
		params:       params,
		gate:         gate,
		bank:         transferer,
		resolver:     res,
		pub:          pub,
		log:          log,
		now:          time.Now,
		feeRecipient: feeRecipient,
		nextRoundID:  1,
		rounds:       make(map[uint64]*round),
		wagers:       make(map[wagerKey]*wager),
	}
}

// WithClock troca a fonte de tempo (testes).
func (e *Engine) WithClock(now func() time.Time) *Engine {
	e.now = now
	return e
}

// CreateRound abre uma rodada com a lista de moedas fixa e deadline
// now+duration. Operação privilegiada. No modo oracle cada moeda precisa do
// identificador do feed de preço; nos modos simples feeds deve vir vazio.
func (e *Engine) CreateRound(ctx context.Context, operatorKey string, symbols []string, feeds []string, duration time.Duration) (RoundInfo, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if !e.gate.IsAuthorized(operatorKey) {
		return RoundInfo{}, ErrNotAuthorized
	}
	if duration < e.params.MinRoundDuration {
		return RoundInfo{}, ErrInvalidDuration
	}
	if len(symbols) < 2 || len(symbols) > e.params.MaxCoins {
		return RoundInfo{}, ErrCoinCount
	}
	if e.params.Mode == modeOracle {
		if len(feeds) != len(symbols) {
			return RoundInfo{}, ErrFeedMismatch
		}
		for _, f := range feeds {
			if f == "" {
				return RoundInfo{}, ErrFeedMismatch
			}
		}
	} else if len(feeds) != 0 {
		return RoundInfo{}, ErrFeedMismatch
	}

	r := &round{
		id:          e.nextRoundID,
		coins:       make([]coin, len(symbols)),
		deadline:    e.now().Add(duration),
		coinTotals:  make([]int64, len(symbols)),
		winnerIndex: -1,
	}
	for i, s := range symbols {
		r.coins[i] = coin{symbol: s}
		if e.params.Mode == modeOracle {
			r.coins[i].feedID = feeds[i]
		}
	}
	e.nextRoundID++
	e.rounds[r.id] = r

	e.log.Info("round created",
		zap.Uint64("round_id", r.id),
		zap.Strings("symbols", symbols),
		zap.Time("deadline", r.deadline),
	)
	e.emit(ctx, events.TypeRoundCreated, r.id, events.RoundCreated{
		RoundID:      r.id,
		Symbols:      symbols,
		DeadlineUnix: r.deadline.Unix(),
		Mode:         e.params.Mode,
	})
	return r.view(), nil
}

// PlaceWager registra (ou acumula) a aposta de um usuário em uma moeda.
// Único ponto de entrada de fundos antes da resolução. Apostas subsequentes
// do mesmo usuário na mesma rodada precisam ser na mesma moeda.
func (e *Engine) PlaceWager(ctx context.Context, userID string, roundID uint64, coinIndex int, amountMicros int64) (WagerInfo, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	r, ok := e.rounds[roundID]
	if !ok {
		return WagerInfo{}, ErrRoundNotFound
	}
	if r.cancelled {
		return WagerInfo{}, ErrRoundCancelled
	}
	if r.resolved {
		return WagerInfo{}, ErrRoundResolved
	}
	if !e.now().Before(r.deadline) {
		return WagerInfo{}, ErrBettingClosed
	}
	if coinIndex < 0 || coinIndex >= len(r.coins) {
		return WagerInfo{}, ErrInvalidCoinIndex
	}
	if amountMicros < e.params.MinStakeMicros {
		return WagerInfo{}, ErrStakeTooSmall
	}

	key := wagerKey{roundID: roundID, userID: userID}
	w, exists := e.wagers[key]
	if exists && w.coinIndex != coinIndex {
		return WagerInfo{}, ErrCoinMismatch
	}
	if !exists {
		w = &wager{coinIndex: coinIndex}
		e.wagers[key] = w
	}
	w.amount += amountMicros
	r.coinTotals[coinIndex] += amountMicros
	r.totalPot += amountMicros

	metricWagersPlaced.Inc()
	e.log.Info("wager placed",
		zap.Uint64("round_id", roundID),
		zap.String("user_id", userID),
		zap.Int("coin_index", coinIndex),
		zap.Int64("amount_micros", amountMicros),
	)
	e.emit(ctx, events.TypeWagerPlaced, roundID, events.WagerPlaced{
		RoundID:        roundID,
		UserID:         userID,
		CoinIndex:      coinIndex,
		AmountMicros:   amountMicros,
		TotalPotMicros: r.totalPot,
	})
	return e.wagerView(key, w), nil
}

// CancelRound cancela uma rodada ainda não resolvida, a qualquer momento
// (inclusive antes do deadline), liberando imediatamente o estorno de todas
// as apostas. Operação privilegiada e terminal.
func (e *Engine) CancelRound(ctx context.Context, operatorKey string, roundID uint64) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if !e.gate.IsAuthorized(operatorKey) {
		return ErrNotAuthorized
	}
	r, ok := e.rounds[roundID]
	if !ok {
		return ErrRoundNotFound
	}
	if r.resolved {
		return ErrRoundResolved
	}
	if r.cancelled {
		return ErrRoundCancelled
	}

	r.cancelled = true
	metricRoundsCancelled.Inc()
	e.log.Info("round cancelled", zap.Uint64("round_id", roundID), zap.String("reason", "operator"))
	e.emit(ctx, events.TypeRoundCancelled, roundID, events.RoundCancelled{RoundID: roundID, Reason: "operator"})
	return nil
}

// SetFeeRecipient troca a conta que recebe a taxa da plataforma.
func (e *Engine) SetFeeRecipient(ctx context.Context, operatorKey, recipient string) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if !e.gate.IsAuthorized(operatorKey) {
		return ErrNotAuthorized
	}
	if recipient == "" {
		return ErrInvalidRecipient
	}
	e.feeRecipient = recipient
	e.emit(ctx, events.TypeFeeRecipientChange, 0, events.FeeRecipientChanged{Recipient: recipient})
	return nil
}

// GetRound retorna o snapshot de leitura de uma rodada.
func (e *Engine) GetRound(roundID uint64) (RoundInfo, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	r, ok := e.rounds[roundID]
	if !ok {
		return RoundInfo{}, ErrRoundNotFound
	}
	return r.view(), nil
}

// ListRounds retorna todas as rodadas em ordem de criação. Rodadas terminais
// nunca são removidas, então a lista só cresce.
func (e *Engine) ListRounds() []RoundInfo {
	e.mu.Lock()
	defer e.mu.Unlock()

	out := make([]RoundInfo, 0, len(e.rounds))
	for _, r := range e.rounds {
		out = append(out, r.view())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// GetWager retorna a aposta de um usuário em uma rodada.
func (e *Engine) GetWager(roundID uint64, userID string) (WagerInfo, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if _, ok := e.rounds[roundID]; !ok {
		return WagerInfo{}, ErrRoundNotFound
	}
	key := wagerKey{roundID: roundID, userID: userID}
	w, ok := e.wagers[key]
	if !ok || w.amount == 0 {
		return WagerInfo{}, ErrNothingStaked
	}
	return e.wagerView(key, w), nil
}

func (e *Engine) wagerView(key wagerKey, w *wager) WagerInfo {
	return WagerInfo{
		RoundID:      key.roundID,
		UserID:       key.userID,
		CoinIndex:    w.coinIndex,
		AmountMicros: w.amount,
		Claimed:      w.claimed,
		Refunded:     w.refunded,
	}
}

// transferRef gera a referência de idempotência de uma transferência externa.
func transferRef(kind string, roundID uint64) string {
	return fmt.Sprintf("%s:%d:%s", kind, roundID, uuid.NewString())
}

// emit publica uma saída observável. Falha vira warning: o ledger já comitou.
func (e *Engine) emit(ctx context.Context, evType string, roundID uint64, payload any) {
	if e.pub == nil {
		return
	}
	if err := e.pub.PublishRoundEvent(ctx, events.Wrap(evType, roundID, payload)); err != nil {
		e.log.Warn("publish event", zap.String("type", evType), zap.Uint64("round_id", roundID), zap.Error(err))
	}
}
