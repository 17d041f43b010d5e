package auth

// Gate decide se uma chave de operador pode executar operações privilegiadas
// (criação/cancelamento de rodada, commit de vencedor, troca do fee recipient).
// A implementação real de controle de acesso é colaborador externo; aqui o
// engine só consome a capability.
type Gate interface {
	IsAuthorized(operatorKey string) bool
}

// StaticGate autoriza um conjunto fixo de chaves vindas da configuração.
type StaticGate struct {
	keys map[string]struct{}
}

func NewStaticGate(keys []string) *StaticGate {
	g := &StaticGate{keys: make(map[string]struct{}, len(keys))}
	for _, k := range keys {
		if k != "" {
			g.keys[k] = struct{}{}
		}
	}
	return g
}

func (g *StaticGate) IsAuthorized(operatorKey string) bool {
	_, ok := g.keys[operatorKey]
	return ok
}
