package config

import "time"

// Ledger defaults. The token mint is the devnet USDC-style mint the demo
// treasury accepts; the treasury is a devnet address used when a project does
// not name its own.
const (
	DefaultRPCURL        = "https://api.devnet.solana.com"
	DefaultCluster       = "devnet"
	DefaultCommitment    = "confirmed"
	DefaultTokenMint     = "Gh9ZwEmdLJ8DscKNTkTqPbNwLNNBjuSzaG9Vp2KGtKJr"
	DefaultTokenSymbol   = "USDC"
	DefaultTokenDecimals = 6
	DefaultTreasury      = "vines1vzrYbzLMRdu58ou5XTby4qAqVRLmqo36NKPTg"
	DefaultRelyingParty  = "amoca.app"
)

// Invest defaults: one whole unit of the native asset per click.
const (
	DefaultInvestAmount = 1.0
	DefaultInvestAsset  = "sol"
)

// Timeout constants used across cmd and the dashboard.
const (
	RPCSelectTimeout        = 10 * time.Second // endpoint benchmark / selection
	TxConfirmTimeout        = 90 * time.Second // submit + confirmation wait
	DefaultDiscoveryTimeout = 10 * time.Second // per passkey discovery request
	BalanceTimeout          = 20 * time.Second
)
