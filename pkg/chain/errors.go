package chain

import (
	"errors"
	"fmt"

	"github.com/ethereum/go-ethereum/rpc"
)

// EIP-1193 provider error codes
const (
	CodeUserRejected      = 4001
	CodeUnauthorized      = 4100
	CodeUnsupported       = 4200
	CodeDisconnected      = 4900
	CodeChainDisconnected = 4901
)

// ErrReverted is returned when a mined transaction has a failed status
var ErrReverted = errors.New("transaction reverted")

// ProviderError is a wallet-side failure carrying an EIP-1193 code
type ProviderError struct {
	Code    int
	Message string
}

func (e *ProviderError) Error() string {
	return fmt.Sprintf("provider error %d: %s", e.Code, e.Message)
}

// ErrorCode lets ProviderError satisfy rpc.Error
func (e *ProviderError) ErrorCode() int {
	return e.Code
}

// UserRejected builds the error returned when the user declines a request
func UserRejected(what string) error {
	return &ProviderError{Code: CodeUserRejected, Message: "user rejected " + what}
}

// IsUserRejected reports whether err is a user cancellation, judged only by
// its error code
func IsUserRejected(err error) bool {
	return ErrorCode(err) == CodeUserRejected
}

// ErrorCode extracts the provider or JSON-RPC error code, or 0
func ErrorCode(err error) int {
	if err == nil {
		return 0
	}

	var rpcErr rpc.Error
	if errors.As(err, &rpcErr) {
		return rpcErr.ErrorCode()
	}
	return 0
}
