package oracle

import (
	"context"
	"errors"
	"time"
)

var (
	ErrPriceStale   = errors.New("oracle price stale")
	ErrFeedNotFound = errors.New("oracle feed not found")
	ErrFeeTooLow    = errors.New("oracle update fee too low")
)

// PriceData é a amostra crua de um feed: preço inteiro com expoente decimal
// e o instante de publicação, no formato típico dos oráculos de preço.
type PriceData struct {
	Price       int64     `json:"price"`
	Expo        int32     `json:"expo"`
	PublishTime time.Time `json:"publish_time"`
}

// Client é a capability de oráculo consumida pelo engine no modo oracle.
// Todas as chamadas são síncronas e fazem parte da operação de snapshot ou
// resolução; nunca viram tarefa em background.
type Client interface {
	// UpdateFee retorna a taxa cobrada pelo oráculo para aceitar updateData.
	UpdateFee(ctx context.Context, updateData [][]byte) (int64, error)

	// ApplyUpdate entrega updateData ao oráculo pagando feeMicros.
	// Falha com ErrFeeTooLow se o pagamento for insuficiente.
	ApplyUpdate(ctx context.Context, updateData [][]byte, feeMicros int64) error

	// PriceNoOlderThan lê o preço atual do feed, falhando com ErrPriceStale
	// se a amostra mais recente for mais velha que maxAge.
	PriceNoOlderThan(ctx context.Context, feedID string, maxAge time.Duration) (PriceData, error)
}
