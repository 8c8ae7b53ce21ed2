package calldata

import (
	"context"

	"github.com/alanyoungcy/limitorder/internal/protocol"
)

// PredicateBuilder composes predicate calldata evaluated by the protocol
// contract before a fill.
type PredicateBuilder struct {
	enc      Encoder
	contract string
}

// NewPredicateBuilder returns a builder for predicates checked by the
// protocol contract at address contract.
func NewPredicateBuilder(enc Encoder, contract string) *PredicateBuilder {
	return &PredicateBuilder{enc: enc, contract: contract}
}

// And holds when every predicate holds.
func (p *PredicateBuilder) And(ctx context.Context, predicates ...string) (string, error) {
	return p.join(ctx, protocol.MethodAnd, predicates)
}

// Or holds when any predicate holds.
func (p *PredicateBuilder) Or(ctx context.Context, predicates ...string) (string, error) {
	return p.join(ctx, protocol.MethodOr, predicates)
}

// Eq holds when calling target with data returns value.
func (p *PredicateBuilder) Eq(ctx context.Context, value, target, data string) (string, error) {
	return p.call(ctx, protocol.MethodEq, value, target, data)
}

// Lt holds when calling target with data returns less than value.
func (p *PredicateBuilder) Lt(ctx context.Context, value, target, data string) (string, error) {
	return p.call(ctx, protocol.MethodLt, value, target, data)
}

// Gt holds when calling target with data returns more than value.
func (p *PredicateBuilder) Gt(ctx context.Context, value, target, data string) (string, error) {
	return p.call(ctx, protocol.MethodGt, value, target, data)
}

// TimestampBelow holds until the block timestamp reaches timestamp.
func (p *PredicateBuilder) TimestampBelow(ctx context.Context, timestamp uint64) (string, error) {
	return p.call(ctx, protocol.MethodTimestampBelow, timestamp)
}

// NonceEquals holds while the maker's protocol nonce equals nonce.
func (p *PredicateBuilder) NonceEquals(ctx context.Context, maker string, nonce uint64) (string, error) {
	return p.call(ctx, protocol.MethodNonceEquals, maker, nonce)
}

// join targets every inner predicate at the protocol contract itself.
func (p *PredicateBuilder) join(ctx context.Context, method string, predicates []string) (string, error) {
	targets := make([]string, len(predicates))
	for i := range targets {
		targets[i] = p.contract
	}
	return p.call(ctx, method, targets, predicates)
}

func (p *PredicateBuilder) call(ctx context.Context, method string, params ...any) (string, error) {
	return p.enc.EncodeCall(ctx, protocol.LimitOrderProtocolABI, p.contract, method, params...)
}
