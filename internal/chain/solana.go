// Package chain talks to the Solana ledger: balances, blockhashes, submission
// and confirmation of transactions, plus cluster metadata.
package chain

import (
	"context"
	"errors"
	"fmt"
	"math"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/rpc"
	"github.com/gagliardetto/solana-go/rpc/jsonrpc"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/time/rate"

	"github.com/amoca-labs/amoca/internal/telemetry"
)

// ErrTransactionFailed is returned by Confirm when the ledger reports an
// execution error for the transaction.
var ErrTransactionFailed = errors.New("transaction failed")

const (
	defaultHTTPTimeout  = 15 * time.Second
	defaultPollInterval = 500 * time.Millisecond
)

// TokenAmount is a token account balance.
type TokenAmount struct {
	Raw      uint64
	Decimals uint8
}

// UI returns the balance in display units.
func (t TokenAmount) UI() float64 {
	return float64(t.Raw) / math.Pow10(int(t.Decimals))
}

// Option configures a SolanaClient.
type Option func(*SolanaClient)

// WithCommitment sets the commitment used for reads and confirmation
// ("processed", "confirmed", "finalized").
func WithCommitment(c string) Option {
	return func(s *SolanaClient) { s.commitment = rpc.CommitmentType(c) }
}

// WithRateLimit paces outgoing calls to rps requests per second. Zero or
// negative disables pacing.
func WithRateLimit(rps float64) Option {
	return func(s *SolanaClient) {
		if rps <= 0 {
			s.limiter = rate.NewLimiter(rate.Inf, 1)
			return
		}
		s.limiter = rate.NewLimiter(rate.Limit(rps), int(math.Max(1, math.Ceil(rps))))
	}
}

// WithPollInterval sets how often Confirm polls signature status.
func WithPollInterval(d time.Duration) Option {
	return func(s *SolanaClient) { s.poll = d }
}

// WithHTTPClient replaces the default 15s-timeout HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(s *SolanaClient) { s.httpClient = hc }
}

// WithMetrics records per-call latency and outcome.
func WithMetrics(m *telemetry.Metrics) Option {
	return func(s *SolanaClient) { s.metrics = m }
}

// SolanaClient is a Solana JSON-RPC client.
type SolanaClient struct {
	url        string
	rpc        *rpc.Client
	httpClient *http.Client
	commitment rpc.CommitmentType
	limiter    *rate.Limiter
	poll       time.Duration
	metrics    *telemetry.Metrics
	tracer     trace.Tracer
}

// NewSolanaClient creates a new Solana RPC client.
func NewSolanaClient(url string, opts ...Option) *SolanaClient {
	c := &SolanaClient{
		url:        url,
		httpClient: &http.Client{Timeout: defaultHTTPTimeout},
		commitment: rpc.CommitmentConfirmed,
		limiter:    rate.NewLimiter(rate.Inf, 1),
		poll:       defaultPollInterval,
		tracer:     telemetry.Tracer(),
	}
	for _, o := range opts {
		o(c)
	}
	c.rpc = rpc.NewWithCustomRPCClient(jsonrpc.NewClientWithOpts(url, &jsonrpc.RPCClientOpts{
		HTTPClient: c.httpClient,
	}))
	return c
}

// URL returns the endpoint this client talks to.
func (c *SolanaClient) URL() string { return c.url }

// Commitment returns the configured commitment level.
func (c *SolanaClient) Commitment() string { return string(c.commitment) }

// Balance returns the native balance of owner in lamports.
func (c *SolanaClient) Balance(ctx context.Context, owner solana.PublicKey) (uint64, error) {
	var lamports uint64
	err := c.do(ctx, "getBalance", func(ctx context.Context) error {
		res, err := c.rpc.GetBalance(ctx, owner, c.commitment)
		if err != nil {
			return err
		}
		lamports = res.Value
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("get balance: %w", err)
	}
	return lamports, nil
}

// TokenBalance returns owner's balance of mint, read from its associated token
// account. An account that does not exist yet, or an owner for which no
// associated account can be derived, holds zero.
func (c *SolanaClient) TokenBalance(ctx context.Context, owner, mint solana.PublicKey) (TokenAmount, error) {
	ata, _, err := solana.FindAssociatedTokenAddress(owner, mint)
	if err != nil {
		return TokenAmount{}, nil
	}

	var out TokenAmount
	err = c.do(ctx, "getTokenAccountBalance", func(ctx context.Context) error {
		res, err := c.rpc.GetTokenAccountBalance(ctx, ata, c.commitment)
		if err != nil {
			return err
		}
		if res == nil || res.Value == nil {
			return nil
		}
		raw, err := strconv.ParseUint(res.Value.Amount, 10, 64)
		if err != nil {
			return fmt.Errorf("parsing token amount %q: %w", res.Value.Amount, err)
		}
		out = TokenAmount{Raw: raw, Decimals: res.Value.Decimals}
		return nil
	})
	if err != nil {
		if isAccountNotFound(err) {
			return TokenAmount{}, nil
		}
		return TokenAmount{}, fmt.Errorf("get token balance: %w", err)
	}
	return out, nil
}

// LatestBlockhash returns a recent blockhash for stamping transactions.
func (c *SolanaClient) LatestBlockhash(ctx context.Context) (solana.Hash, error) {
	var hash solana.Hash
	err := c.do(ctx, "getLatestBlockhash", func(ctx context.Context) error {
		res, err := c.rpc.GetLatestBlockhash(ctx, c.commitment)
		if err != nil {
			return err
		}
		if res == nil || res.Value == nil {
			return errors.New("empty blockhash response")
		}
		hash = res.Value.Blockhash
		return nil
	})
	if err != nil {
		return solana.Hash{}, fmt.Errorf("get latest blockhash: %w", err)
	}
	return hash, nil
}

// Submit sends a signed transaction once. It never resubmits.
func (c *SolanaClient) Submit(ctx context.Context, tx *solana.Transaction) (solana.Signature, error) {
	var sig solana.Signature
	err := c.do(ctx, "sendTransaction", func(ctx context.Context) error {
		s, err := c.rpc.SendTransactionWithOpts(ctx, tx, rpc.TransactionOpts{
			PreflightCommitment: c.commitment,
		})
		sig = s
		return err
	})
	if err != nil {
		return solana.Signature{}, fmt.Errorf("send transaction: %w", err)
	}
	return sig, nil
}

// Confirm polls the signature status until it reaches the configured
// commitment, the ledger reports an execution error, or ctx ends.
func (c *SolanaClient) Confirm(ctx context.Context, sig solana.Signature) error {
	ticker := time.NewTicker(c.poll)
	defer ticker.Stop()

	for {
		var status *rpc.SignatureStatusesResult
		err := c.do(ctx, "getSignatureStatuses", func(ctx context.Context) error {
			res, err := c.rpc.GetSignatureStatuses(ctx, false, sig)
			if err != nil {
				return err
			}
			if res != nil && len(res.Value) > 0 {
				status = res.Value[0]
			}
			return nil
		})
		if err != nil {
			return fmt.Errorf("confirm %s: %w", sig, err)
		}
		if status != nil {
			if status.Err != nil {
				return fmt.Errorf("%w: %s: %v", ErrTransactionFailed, sig, status.Err)
			}
			if reached(status.ConfirmationStatus, c.commitment) {
				return nil
			}
		}

		select {
		case <-ctx.Done():
			return fmt.Errorf("confirm %s: %w", sig, ctx.Err())
		case <-ticker.C:
		}
	}
}

// Slot returns the current slot.
func (c *SolanaClient) Slot(ctx context.Context) (uint64, error) {
	var slot uint64
	err := c.do(ctx, "getSlot", func(ctx context.Context) error {
		s, err := c.rpc.GetSlot(ctx, c.commitment)
		slot = s
		return err
	})
	if err != nil {
		return 0, fmt.Errorf("get slot: %w", err)
	}
	return slot, nil
}

// Ping tests the endpoint and returns latency + slot.
func (c *SolanaClient) Ping(ctx context.Context) (time.Duration, uint64, error) {
	start := time.Now()
	slot, err := c.Slot(ctx)
	return time.Since(start), slot, err
}

// --- internal ---

// do paces, traces and measures one RPC call.
func (c *SolanaClient) do(ctx context.Context, method string, fn func(context.Context) error) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return err
	}

	ctx, span := c.tracer.Start(ctx, "solana."+method,
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			attribute.String("rpc.system", "jsonrpc"),
			attribute.String("rpc.method", method),
		),
	)
	defer span.End()

	start := time.Now()
	err := fn(ctx)
	c.metrics.ObserveRPC(method, time.Since(start), err)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	return err
}

var commitmentRank = map[string]int{
	"processed": 1,
	"confirmed": 2,
	"finalized": 3,
}

func reached(got rpc.ConfirmationStatusType, want rpc.CommitmentType) bool {
	g, ok := commitmentRank[string(got)]
	if !ok {
		return false
	}
	w, ok := commitmentRank[string(want)]
	if !ok {
		w = commitmentRank["confirmed"]
	}
	return g >= w
}

func isAccountNotFound(err error) bool {
	return strings.Contains(strings.ToLower(err.Error()), "could not find account")
}
