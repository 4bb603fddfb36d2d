package store

import "errors"

var (
	// ErrNoDebt is returned for debt operations on a lending position
	ErrNoDebt = errors.New("lending positions have no debt")

	// ErrNoVault is returned when no vault is available for the pair
	ErrNoVault = errors.New("no vault available")

	// ErrNoRoute is returned when there is no previewed route to act on
	ErrNoRoute = errors.New("no route available")

	// ErrMissingSignature is returned when the route needs a permit that
	// was not signed yet
	ErrMissingSignature = errors.New("route requires a signature")

	// ErrStaleRoute is returned when the route changed during signing
	ErrStaleRoute = errors.New("route changed while signing")

	// ErrNoWallet is returned when a write operation runs without a wallet
	ErrNoWallet = errors.New("no wallet configured")
)
