package cmd

import (
	"context"
	"fmt"
	"time"

	"github.com/gagliardetto/solana-go"

	"github.com/amoca-labs/amoca/internal/catalog"
	"github.com/amoca-labs/amoca/internal/chain"
	"github.com/amoca-labs/amoca/internal/config"
	"github.com/amoca-labs/amoca/internal/invest"
	"github.com/amoca-labs/amoca/internal/keychain"
	"github.com/amoca-labs/amoca/internal/passkey"
	"github.com/amoca-labs/amoca/internal/rpc"
	"github.com/amoca-labs/amoca/internal/session"
	"github.com/amoca-labs/amoca/internal/transfer"
	"github.com/amoca-labs/amoca/internal/ui"
	"github.com/amoca-labs/amoca/internal/wallet"
)

func openKeychain() (*keychain.Store, error) {
	return keychain.Open(cfg.KeyDir(), cfg.KeyringPassword)
}

// promptVerifier asks on the terminal before a passkey is used. The dashboard
// runs without one: a keypress there is the user's consent.
func promptVerifier(_ context.Context, cred passkey.Credential) error {
	label := cred.Label
	if label == "" {
		label = ui.TruncateAddr(cred.ID)
	}
	if !ui.Confirm(fmt.Sprintf("Use passkey %q (%s)?", label, cred.Attachment)) {
		return passkey.ErrUserCancelled
	}
	return nil
}

// newAuthenticator opens the keychain and returns an authenticator on it.
func newAuthenticator(interactive bool) (*passkey.KeyringAuthenticator, *keychain.Store, error) {
	store, err := openKeychain()
	if err != nil {
		return nil, nil, err
	}
	var opts []passkey.AuthenticatorOption
	if interactive {
		opts = append(opts, passkey.WithUserVerifier(promptVerifier))
	}
	return passkey.NewKeyringAuthenticator(store, opts...), store, nil
}

func newWallet(auth wallet.Authenticator, store *keychain.Store) *wallet.PasskeyWallet {
	return wallet.New(auth, store, cfg.RelyingPartyID, wallet.WithLogger(log))
}

func currentCluster() (chain.Cluster, error) {
	c, err := chain.ClusterByName(cfg.Cluster)
	if err != nil {
		return chain.Cluster{}, fmt.Errorf("%w — see `amoca rpc clusters`", err)
	}
	return c, nil
}

// pickBestRPC chooses among the configured endpoints, falling back to the
// cluster's public RPCs when none are configured.
func pickBestRPC(ctx context.Context) (string, error) {
	urls := cfg.RPCEndpoints()
	if len(urls) == 0 {
		c, err := currentCluster()
		if err != nil {
			return "", err
		}
		urls = c.RPCs
	}
	if len(urls) == 0 {
		return "", fmt.Errorf("no RPCs configured — try adding one with `amoca rpc add <url>`")
	}
	if len(urls) == 1 {
		return urls[0], nil
	}
	ctx, cancel := context.WithTimeout(ctx, config.RPCSelectTimeout)
	defer cancel()
	url, err := rpc.SelectBest(ctx, urls, cfg.RPCAlgorithm)
	if err != nil {
		return "", err
	}
	log.WithField("rpc", url).Debug("rpc selected")
	return url, nil
}

func newSolanaClient(ctx context.Context) (*chain.SolanaClient, error) {
	url, err := pickBestRPC(ctx)
	if err != nil {
		return nil, err
	}
	return chain.NewSolanaClient(url,
		chain.WithCommitment(cfg.Commitment),
		chain.WithRateLimit(cfg.RPCRateLimit),
		chain.WithMetrics(metrics),
	), nil
}

func loadCatalog() (*catalog.Catalog, error) {
	if cfg.CatalogFile != "" {
		return catalog.LoadFile(cfg.CatalogFile)
	}
	return catalog.Default()
}

func tokenMint() (solana.PublicKey, error) {
	mint, err := solana.PublicKeyFromBase58(cfg.TokenMint)
	if err != nil {
		return solana.PublicKey{}, fmt.Errorf("token_mint: %w", err)
	}
	return mint, nil
}

func newBuilder() (*transfer.Builder, error) {
	mint, err := tokenMint()
	if err != nil {
		return nil, err
	}
	return transfer.NewBuilder(mint, transfer.WithDecimals(cfg.TokenDecimals)), nil
}

func newInvestAction(ledger invest.Ledger, cluster chain.Cluster) (*invest.Action, error) {
	b, err := newBuilder()
	if err != nil {
		return nil, err
	}
	asset, err := transfer.ParseAsset(cfg.InvestAsset)
	if err != nil {
		return nil, err
	}
	opts := []invest.Option{
		invest.WithAmount(cfg.InvestAmount, asset),
		invest.WithCluster(cluster),
		invest.WithTokenSymbol(cfg.TokenSymbol),
		invest.WithLogger(log),
		invest.WithMetrics(metrics),
		invest.WithConfirmTimeout(config.TxConfirmTimeout),
	}
	if cfg.Treasury != "" {
		pk, err := solana.PublicKeyFromBase58(cfg.Treasury)
		if err != nil {
			return nil, fmt.Errorf("treasury: %w", err)
		}
		opts = append(opts, invest.WithTreasury(pk))
	}
	return invest.New(b, ledger, opts...), nil
}

// walletSigner adapts a connected wallet to the invest pipeline.
type walletSigner struct {
	w         *wallet.PasskeyWallet
	authority solana.PublicKey
}

func (s walletSigner) Authority() solana.PublicKey { return s.authority }

func (s walletSigner) Sign(ctx context.Context, tx *solana.Transaction) error {
	return s.w.SignTransaction(ctx, tx)
}

// connectWallet connects the way the dashboard's connect keys do.
func connectWallet(ctx context.Context, pref session.Preference) (*wallet.PasskeyWallet, solana.PublicKey, error) {
	auth, store, err := newAuthenticator(true)
	if err != nil {
		return nil, solana.PublicKey{}, err
	}
	w := newWallet(auth, store)
	ctx, cancel := context.WithTimeout(ctx, 2*time.Minute)
	defer cancel()
	pk, err := w.Connect(ctx, pref.Options())
	if err != nil {
		return nil, solana.PublicKey{}, fmt.Errorf("connect wallet: %w", err)
	}
	return w, pk, nil
}
