package engine

import "errors"

// Erros de validação: entrada malformada, rejeitada antes de qualquer efeito.
var (
	ErrInvalidDuration  = errors.New("round duration below minimum")
	ErrCoinCount        = errors.New("coin count out of range")
	ErrFeedMismatch     = errors.New("coin and feed lists mismatched")
	ErrInvalidCoinIndex = errors.New("invalid coin index")
	ErrStakeTooSmall    = errors.New("stake below minimum")
	ErrInvalidRecipient = errors.New("invalid fee recipient")
)

// Erros de pré-condição de estado: operação chamada no estado errado da rodada.
var (
	ErrRoundNotFound      = errors.New("round not found")
	ErrBettingClosed      = errors.New("betting window closed")
	ErrBettingOpen        = errors.New("betting window still open")
	ErrRoundResolved      = errors.New("round already resolved")
	ErrRoundNotResolved   = errors.New("round not resolved")
	ErrRoundCancelled     = errors.New("round cancelled")
	ErrCoinMismatch       = errors.New("wager already on a different coin")
	ErrAlreadyCommitted   = errors.New("winner already committed")
	ErrNoCommitment       = errors.New("no winner commitment")
	ErrCommitmentMismatch = errors.New("commitment mismatch")
	ErrAlreadySnapshotted = errors.New("start prices already snapshotted")
	ErrNotSnapshotted     = errors.New("start prices not snapshotted")
	ErrNoWinners          = errors.New("no stakers on winning coin")
	ErrNoStakers          = errors.New("round has no stakers")
	ErrNothingStaked      = errors.New("no wager for user in round")
	ErrNotWinner          = errors.New("wager not on winning coin")
	ErrAlreadyClaimed     = errors.New("winnings already claimed")
	ErrAlreadyRefunded    = errors.New("wager already refunded")
	ErrRefundTooEarly     = errors.New("refund timeout not reached")
	ErrUnsupportedMode    = errors.New("operation not available in this resolution mode")
)

// Autorização.
var ErrNotAuthorized = errors.New("caller not authorized")

// Falha de transferência: a única categoria que desfaz efeitos já decididos
// dentro da mesma operação. O estado volta ao anterior e o chamador pode
// reexecutar a operação.
var ErrTransferFailed = errors.New("outbound transfer failed")
