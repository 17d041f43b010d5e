package engine

import (
	"context"
	"encoding/binary"
	"fmt"
	"math/big"
	"time"

	"golang.org/x/crypto/sha3"

	"github.com/radieske/coin-battle-poc/internal/engine/pricemath"
	"github.com/radieske/coin-battle-poc/internal/oracle"
)

// Modos de resolução. Os valores casam com RESOLUTION_MODE da config.
const (
	modeAdmin        = "admin"
	modeCommitReveal = "commit-reveal"
	modeOracle       = "oracle"
)

// Evidence carrega o material que cada variante usa para determinar o
// vencedor: chave de operador (variantes privilegiadas), índice e salt
// (admin / reveal), dados de atualização e pagamento do oráculo (oracle).
type Evidence struct {
	OperatorKey   string
	Winner        int
	Salt          [32]byte
	UpdateData    [][]byte
	PaidFeeMicros int64
	Payer         string // conta que recebe o troco da taxa do oráculo
}

// outcome é o resultado interno de uma estratégia: ou um vencedor, ou a
// ordem de cancelar a rodada (fallback do modo oracle sem nenhum apostador).
type outcome struct {
	winner       int
	winningBps   *int64
	endPrices    []*big.Int
	cancel       bool
	refundTo     string
	refundMicros int64 // troco da taxa do oráculo a devolver
}

// Resolver determina o índice vencedor de uma rodada. As três variantes
// compartilham as mesmas pós-condições (flag resolved, índice, pool vencedor,
// taxa); diferem só em como o índice é obtido e verificado.
type Resolver interface {
	Mode() string
	resolve(ctx context.Context, e *Engine, r *round, ev Evidence) (outcome, error)
}

// NewResolver seleciona a variante da implantação. oracleCli e maxPriceAge
// só são usados no modo oracle.
func NewResolver(mode string, oracleCli oracle.Client, maxPriceAge time.Duration) (Resolver, error) {
	switch mode {
	case modeAdmin:
		return adminResolver{}, nil
	case modeCommitReveal:
		return commitRevealResolver{}, nil
	case modeOracle:
		if oracleCli == nil {
			return nil, fmt.Errorf("oracle mode requires an oracle client")
		}
		return &oracleResolver{cli: oracleCli, maxAge: maxPriceAge}, nil
	default:
		return nil, fmt.Errorf("unknown resolution mode %q", mode)
	}
}

// ---------------------------------------------------------------------------
// Admin: o operador informa o vencedor diretamente após o deadline.
// ---------------------------------------------------------------------------

type adminResolver struct{}

func (adminResolver) Mode() string { return modeAdmin }

func (adminResolver) resolve(_ context.Context, e *Engine, r *round, ev Evidence) (outcome, error) {
	if !e.gate.IsAuthorized(ev.OperatorKey) {
		return outcome{}, ErrNotAuthorized
	}
	if ev.Winner < 0 || ev.Winner >= len(r.coins) {
		return outcome{}, ErrInvalidCoinIndex
	}
	// variante estrita: sem apostador na moeda escolhida, a resolução trava
	// (nada de fallback; a rodada fica elegível para estorno via timeout)
	if r.coinTotals[ev.Winner] == 0 {
		return outcome{}, ErrNoWinners
	}
	return outcome{winner: ev.Winner}, nil
}

// ---------------------------------------------------------------------------
// Commit-reveal: o operador se compromete com um hash antes do deadline e
// revela índice + salt depois. O engine recomputa o hash e rejeita divergência.
// ---------------------------------------------------------------------------

type commitRevealResolver struct{}

func (commitRevealResolver) Mode() string { return modeCommitReveal }

func (commitRevealResolver) resolve(_ context.Context, e *Engine, r *round, ev Evidence) (outcome, error) {
	if !e.gate.IsAuthorized(ev.OperatorKey) {
		return outcome{}, ErrNotAuthorized
	}
	if !r.committed {
		return outcome{}, ErrNoCommitment
	}
	if ev.Winner < 0 || ev.Winner >= len(r.coins) {
		return outcome{}, ErrInvalidCoinIndex
	}
	if CommitmentHash(r.id, ev.Winner, ev.Salt) != r.commitment {
		return outcome{}, ErrCommitmentMismatch
	}
	if r.coinTotals[ev.Winner] == 0 {
		return outcome{}, ErrNoWinners
	}
	return outcome{winner: ev.Winner}, nil
}

// CommitmentHash é o hash de compromisso do modo commit-reveal:
// keccak256(roundID como 8 bytes big-endian || índice vencedor como 1 byte ||
// salt de 32 bytes). Verificadores externos conseguem reproduzir.
func CommitmentHash(roundID uint64, winner int, salt [32]byte) [32]byte {
	h := sha3.NewLegacyKeccak256()
	var prefix [9]byte
	binary.BigEndian.PutUint64(prefix[:8], roundID)
	prefix[8] = byte(winner)
	h.Write(prefix[:])
	h.Write(salt[:])
	var out [32]byte
	copy(out[:], h.Sum(nil))
	return out
}

// ---------------------------------------------------------------------------
// Oracle: resolução permissionless guiada pelos preços dos feeds. Vence a
// moeda com maior variação percentual entre snapshot e resolução.
// ---------------------------------------------------------------------------

type oracleResolver struct {
	cli    oracle.Client
	maxAge time.Duration
}

func (o *oracleResolver) Mode() string { return modeOracle }

func (o *oracleResolver) resolve(ctx context.Context, e *Engine, r *round, ev Evidence) (outcome, error) {
	if !r.snapshotted {
		return outcome{}, ErrNotSnapshotted
	}
	if r.totalPot == 0 {
		return outcome{}, ErrNoStakers
	}

	excess, err := o.chargeUpdate(ctx, ev)
	if err != nil {
		return outcome{}, err
	}

	endPrices := make([]*big.Int, len(r.coins))
	changes := make([]int64, len(r.coins))
	for i, c := range r.coins {
		pd, err := o.cli.PriceNoOlderThan(ctx, c.feedID, o.maxAge)
		if err != nil {
			return outcome{}, fmt.Errorf("feed %s: %w", c.feedID, err)
		}
		end, err := pricemath.Normalize(pd.Price, pd.Expo)
		if err != nil {
			// preço inválido é fatal: aborta a resolução inteira,
			// nenhum estado parcial é comitado
			return outcome{}, fmt.Errorf("feed %s: %w", c.feedID, err)
		}
		endPrices[i] = end
		changes[i] = pricemath.ChangeBps(c.startPrice, end)
	}

	winner := bestChange(changes, nil)

	// fallback: o vencedor por preço não tem apostador → melhor variação
	// entre as moedas apostadas; sem nenhuma moeda apostada, cancela
	if r.coinTotals[winner] == 0 {
		winner = bestChange(changes, r.coinTotals)
		if winner < 0 {
			return outcome{cancel: true, refundTo: ev.Payer, refundMicros: excess}, nil
		}
	}

	bps := changes[winner]
	return outcome{
		winner:       winner,
		winningBps:   &bps,
		endPrices:    endPrices,
		refundTo:     ev.Payer,
		refundMicros: excess,
	}, nil
}

// chargeUpdate cobra a taxa do oráculo pela atualização de preços e devolve
// o troco do pagamento do chamador.
func (o *oracleResolver) chargeUpdate(ctx context.Context, ev Evidence) (excess int64, err error) {
	fee, err := o.cli.UpdateFee(ctx, ev.UpdateData)
	if err != nil {
		return 0, err
	}
	if ev.PaidFeeMicros < fee {
		return 0, oracle.ErrFeeTooLow
	}
	if err := o.cli.ApplyUpdate(ctx, ev.UpdateData, fee); err != nil {
		return 0, err
	}
	return ev.PaidFeeMicros - fee, nil
}

// bestChange devolve o índice da maior variação, com ">" estrito: empate
// mantém o menor índice. Com stakes != nil só considera moedas apostadas;
// retorna -1 se nenhuma candidata.
func bestChange(changes []int64, stakes []int64) int {
	best := -1
	for i, c := range changes {
		if stakes != nil && stakes[i] == 0 {
			continue
		}
		if best == -1 || c > changes[best] {
			best = i
		}
	}
	return best
}
