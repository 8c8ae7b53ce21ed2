package protocol

import (
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
)

const limitOrderProtocolJSON = `[
  {"type":"function","name":"getMakerAmount","stateMutability":"pure",
   "inputs":[{"name":"orderMakerAmount","type":"uint256"},{"name":"orderTakerAmount","type":"uint256"},{"name":"swapTakerAmount","type":"uint256"}],
   "outputs":[{"name":"","type":"uint256"}]},
  {"type":"function","name":"getTakerAmount","stateMutability":"pure",
   "inputs":[{"name":"orderMakerAmount","type":"uint256"},{"name":"orderTakerAmount","type":"uint256"},{"name":"swapMakerAmount","type":"uint256"}],
   "outputs":[{"name":"","type":"uint256"}]},
  {"type":"function","name":"and","stateMutability":"view",
   "inputs":[{"name":"targets","type":"address[]"},{"name":"data","type":"bytes[]"}],
   "outputs":[{"name":"","type":"bool"}]},
  {"type":"function","name":"or","stateMutability":"view",
   "inputs":[{"name":"targets","type":"address[]"},{"name":"data","type":"bytes[]"}],
   "outputs":[{"name":"","type":"bool"}]},
  {"type":"function","name":"eq","stateMutability":"view",
   "inputs":[{"name":"value","type":"uint256"},{"name":"target","type":"address"},{"name":"data","type":"bytes"}],
   "outputs":[{"name":"","type":"bool"}]},
  {"type":"function","name":"lt","stateMutability":"view",
   "inputs":[{"name":"value","type":"uint256"},{"name":"target","type":"address"},{"name":"data","type":"bytes"}],
   "outputs":[{"name":"","type":"bool"}]},
  {"type":"function","name":"gt","stateMutability":"view",
   "inputs":[{"name":"value","type":"uint256"},{"name":"target","type":"address"},{"name":"data","type":"bytes"}],
   "outputs":[{"name":"","type":"bool"}]},
  {"type":"function","name":"timestampBelow","stateMutability":"view",
   "inputs":[{"name":"time","type":"uint256"}],
   "outputs":[{"name":"","type":"bool"}]},
  {"type":"function","name":"nonceEquals","stateMutability":"view",
   "inputs":[{"name":"makerAddress","type":"address"},{"name":"makerNonce","type":"uint256"}],
   "outputs":[{"name":"","type":"bool"}]}
]`

const erc20JSON = `[
  {"type":"function","name":"transferFrom","stateMutability":"nonpayable",
   "inputs":[{"name":"from","type":"address"},{"name":"to","type":"address"},{"name":"value","type":"uint256"}],
   "outputs":[{"name":"","type":"bool"}]}
]`

var (
	// LimitOrderProtocolABI covers the protocol methods orders embed as
	// calldata.
	LimitOrderProtocolABI = mustParseABI("limit order protocol", limitOrderProtocolJSON)

	// ERC20ABI covers the token method used by asset data templates.
	ERC20ABI = mustParseABI("erc20", erc20JSON)
)

// The ABI documents are compile-time constants, so a parse failure is a
// programming error.
func mustParseABI(name, doc string) abi.ABI {
	parsed, err := abi.JSON(strings.NewReader(doc))
	if err != nil {
		panic(fmt.Sprintf("protocol: parse %s abi: %v", name, err))
	}
	return parsed
}
