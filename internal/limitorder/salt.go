package limitorder

import (
	"context"
	"fmt"
	"math"
	"math/big"
	"math/rand/v2"
	"strconv"
	"time"

	"github.com/alanyoungcy/limitorder/internal/domain"
)

// SaltGenerator produces order salts. maker lets implementations scope
// uniqueness per maker.
type SaltGenerator interface {
	GenerateSalt(ctx context.Context, maker string) (string, error)
}

// SaltFunc adapts a plain function to SaltGenerator.
type SaltFunc func() string

// GenerateSalt implements SaltGenerator.
func (f SaltFunc) GenerateSalt(context.Context, string) (string, error) {
	return f(), nil
}

// GenerateOrderSalt returns round(random * unixMillis) as a decimal string.
// It is meant for uniqueness, not unpredictability.
func GenerateOrderSalt() string {
	ms := float64(time.Now().UnixMilli())
	return strconv.FormatFloat(math.Round(rand.Float64()*ms), 'f', 0, 64)
}

var maxUint64 = new(big.Int).SetUint64(math.MaxUint64)

// GenerateRFQOrderInfo packs (expiresInTimestamp << 64) | id into a decimal
// string. Both values must lie in [0, 2^64).
func GenerateRFQOrderInfo(id, expiresInTimestamp *big.Int) (string, error) {
	if err := checkUint64("id", id); err != nil {
		return "", err
	}
	if err := checkUint64("expiresInTimestamp", expiresInTimestamp); err != nil {
		return "", err
	}
	info := new(big.Int).Lsh(expiresInTimestamp, 64)
	info.Or(info, id)
	return info.String(), nil
}

// DecodeRFQOrderInfo splits a packed info value back into id and expiry.
func DecodeRFQOrderInfo(info string) (id, expiresInTimestamp uint64, err error) {
	n, ok := new(big.Int).SetString(info, 10)
	if !ok || n.Sign() < 0 || n.BitLen() > 128 {
		return 0, 0, fmt.Errorf("limitorder: decode info %q: %w", info, domain.ErrInvalidRange)
	}
	id = new(big.Int).And(n, maxUint64).Uint64()
	expiresInTimestamp = new(big.Int).Rsh(n, 64).Uint64()
	return id, expiresInTimestamp, nil
}

func checkUint64(name string, v *big.Int) error {
	if v == nil {
		return fmt.Errorf("limitorder: %s is required: %w", name, domain.ErrInvalidRange)
	}
	if v.Sign() < 0 || v.Cmp(maxUint64) > 0 {
		return fmt.Errorf("limitorder: %s %s does not fit in 64 bits: %w", name, v, domain.ErrInvalidRange)
	}
	return nil
}
