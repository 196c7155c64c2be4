package chain

import (
	"errors"
	"fmt"
	"net/url"
	"strings"

	"github.com/gagliardetto/solana-go"
)

// ErrClusterNotFound is returned when a cluster name is not in the registry.
var ErrClusterNotFound = errors.New("cluster not found")

const explorerBase = "https://explorer.solana.com"

// Cluster holds the metadata for one Solana cluster.
type Cluster struct {
	Name        string   `json:"name"`
	DisplayName string   `json:"display_name"`
	RPCs        []string `json:"rpcs"`
	FaucetURL   string   `json:"faucet_url,omitempty"`
	// CustomRPC is set for clusters the public explorer does not know about;
	// explorer links then carry ?cluster=custom&customUrl=.
	CustomRPC string `json:"custom_rpc,omitempty"`
}

var clusters = []Cluster{
	{
		Name: "devnet", DisplayName: "Solana Devnet",
		RPCs:      []string{"https://api.devnet.solana.com"},
		FaucetURL: "https://faucet.solana.com",
	},
	{
		Name: "testnet", DisplayName: "Solana Testnet",
		RPCs:      []string{"https://api.testnet.solana.com"},
		FaucetURL: "https://faucet.solana.com",
	},
	{
		Name: "mainnet-beta", DisplayName: "Solana Mainnet Beta",
		RPCs: []string{"https://api.mainnet-beta.solana.com"},
	},
	{
		Name: "localnet", DisplayName: "Local validator",
		RPCs:      []string{"http://127.0.0.1:8899"},
		CustomRPC: "http://127.0.0.1:8899",
	},
}

// Clusters returns every known cluster.
func Clusters() []Cluster {
	out := make([]Cluster, len(clusters))
	copy(out, clusters)
	return out
}

// ClusterByName looks a cluster up by name ("mainnet" is accepted for
// mainnet-beta).
func ClusterByName(name string) (Cluster, error) {
	name = strings.ToLower(strings.TrimSpace(name))
	if name == "mainnet" {
		name = "mainnet-beta"
	}
	for _, c := range clusters {
		if c.Name == name {
			return c, nil
		}
	}
	return Cluster{}, fmt.Errorf("%w: %s", ErrClusterNotFound, name)
}

// TxURL links a transaction signature on the Solana explorer.
func (c Cluster) TxURL(sig solana.Signature) string {
	return c.explorerURL("tx/" + sig.String())
}

// AddressURL links an account on the Solana explorer.
func (c Cluster) AddressURL(addr solana.PublicKey) string {
	return c.explorerURL("address/" + addr.String())
}

func (c Cluster) explorerURL(path string) string {
	q := url.Values{}
	switch {
	case c.CustomRPC != "":
		q.Set("cluster", "custom")
		q.Set("customUrl", c.CustomRPC)
	case c.Name != "mainnet-beta":
		q.Set("cluster", c.Name)
	}
	u := explorerBase + "/" + path
	if len(q) > 0 {
		u += "?" + q.Encode()
	}
	return u
}
