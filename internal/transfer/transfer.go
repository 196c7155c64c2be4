// Package transfer turns an investment (sender, recipient, amount, asset) into
// the instruction list of a Solana transaction. It never signs or submits.
package transfer

import (
	"errors"
	"fmt"
	"math"
	"strings"

	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/programs/system"
	"github.com/gagliardetto/solana-go/programs/token"
)

// LamportsPerSOL is the native unit scale.
const LamportsPerSOL = 1_000_000_000

// DefaultTokenDecimals is the scale applied to token amounts.
const DefaultTokenDecimals = 6

// ErrInvalidAmount is returned for non-positive or non-finite amounts.
var ErrInvalidAmount = errors.New("amount must be a positive number")

// Asset selects the native currency or the configured token.
type Asset string

const (
	AssetNative Asset = "sol"
	AssetToken  Asset = "token"
)

// ParseAsset accepts "sol"/"native" and "token"/"usdc" (case-insensitive).
func ParseAsset(s string) (Asset, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "sol", "native":
		return AssetNative, nil
	case "token", "usdc", "spl":
		return AssetToken, nil
	}
	return "", fmt.Errorf("unknown asset %q (sol, token)", s)
}

// AddressResolutionError reports that an associated token account could not
// be derived for one side of a token transfer.
type AddressResolutionError struct {
	Party string // "sender" or "recipient"
	Owner solana.PublicKey
	Err   error
}

func (e *AddressResolutionError) Error() string {
	return fmt.Sprintf("resolve %s token account for %s: %v", e.Party, e.Owner, e.Err)
}

func (e *AddressResolutionError) Unwrap() error { return e.Err }

// Resolver derives the token account holding mint for owner.
type Resolver func(owner, mint solana.PublicKey) (solana.PublicKey, error)

// AssociatedAccount is the default Resolver.
func AssociatedAccount(owner, mint solana.PublicKey) (solana.PublicKey, error) {
	addr, _, err := solana.FindAssociatedTokenAddress(owner, mint)
	return addr, err
}

// Option configures a Builder.
type Option func(*Builder)

// WithResolver replaces the associated-account derivation.
func WithResolver(r Resolver) Option {
	return func(b *Builder) { b.resolve = r }
}

// WithDecimals sets the token scale (default 6).
func WithDecimals(d uint8) Option {
	return func(b *Builder) { b.decimals = d }
}

// Builder assembles transfer instructions for one token mint.
type Builder struct {
	mint     solana.PublicKey
	decimals uint8
	resolve  Resolver
}

// NewBuilder returns a builder for native transfers and transfers of mint.
func NewBuilder(mint solana.PublicKey, opts ...Option) *Builder {
	b := &Builder{mint: mint, decimals: DefaultTokenDecimals, resolve: AssociatedAccount}
	for _, o := range opts {
		o(b)
	}
	return b
}

// Mint returns the token mint this builder transfers.
func (b *Builder) Mint() solana.PublicKey { return b.mint }

// Decimals returns the token scale.
func (b *Builder) Decimals() uint8 { return b.decimals }

// Unsigned is an instruction list waiting for a blockhash, fee payer and
// signature.
type Unsigned struct {
	Instructions []solana.Instruction
	From         solana.PublicKey
	To           solana.PublicKey
	Asset        Asset
	Amount       float64 // display units
	Raw          uint64  // lamports or token base units
}

// Build returns the instructions moving amount of asset from from to to.
// Token transfers move between the associated accounts of both parties; if
// either cannot be resolved no instructions are returned.
func (b *Builder) Build(from, to solana.PublicKey, amount float64, asset Asset) (*Unsigned, error) {
	u := &Unsigned{From: from, To: to, Asset: asset, Amount: amount}

	switch asset {
	case AssetNative:
		raw, err := toBaseUnits(amount, 9)
		if err != nil {
			return nil, err
		}
		u.Raw = raw
		u.Instructions = []solana.Instruction{
			system.NewTransferInstruction(raw, from, to).Build(),
		}

	case AssetToken:
		raw, err := toBaseUnits(amount, b.decimals)
		if err != nil {
			return nil, err
		}
		src, err := b.resolve(from, b.mint)
		if err != nil {
			return nil, &AddressResolutionError{Party: "sender", Owner: from, Err: err}
		}
		dst, err := b.resolve(to, b.mint)
		if err != nil {
			return nil, &AddressResolutionError{Party: "recipient", Owner: to, Err: err}
		}
		u.Raw = raw
		u.Instructions = []solana.Instruction{
			token.NewTransferInstruction(raw, src, dst, from, nil).Build(),
		}

	default:
		return nil, fmt.Errorf("unknown asset %q", asset)
	}
	return u, nil
}

// Stamp compiles the instructions into a transaction with the given recent
// blockhash and fee payer.
func (u *Unsigned) Stamp(blockhash solana.Hash, feePayer solana.PublicKey) (*solana.Transaction, error) {
	tx, err := solana.NewTransaction(u.Instructions, blockhash, solana.TransactionPayer(feePayer))
	if err != nil {
		return nil, fmt.Errorf("compile transaction: %w", err)
	}
	return tx, nil
}

func toBaseUnits(amount float64, decimals uint8) (uint64, error) {
	if math.IsNaN(amount) || math.IsInf(amount, 0) || amount <= 0 {
		return 0, fmt.Errorf("%w: %v", ErrInvalidAmount, amount)
	}
	scaled := math.Round(amount * math.Pow10(int(decimals)))
	if scaled < 1 {
		return 0, fmt.Errorf("%w: %v is below the smallest unit", ErrInvalidAmount, amount)
	}
	if scaled >= math.MaxUint64 {
		return 0, fmt.Errorf("%w: %v overflows", ErrInvalidAmount, amount)
	}
	return uint64(scaled), nil
}
