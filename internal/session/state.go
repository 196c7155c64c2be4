package session

import (
	"github.com/gagliardetto/solana-go"

	"github.com/amoca-labs/amoca/internal/wallet"
)

// State is the wallet session's position in its lifecycle:
//
//	Disconnected → Checking → {HasLocalPasskey | HasRemotePasskeyOnly | NoPasskey}
//	             → Connecting → Connected → Disconnected
type State int

const (
	StateDisconnected State = iota
	StateChecking
	StateHasLocalPasskey
	StateHasRemotePasskeyOnly
	StateNoPasskey
	StateConnecting
	StateConnected
)

var stateNames = [...]string{
	StateDisconnected:         "disconnected",
	StateChecking:             "checking",
	StateHasLocalPasskey:      "has-local-passkey",
	StateHasRemotePasskeyOnly: "has-remote-passkey-only",
	StateNoPasskey:            "no-passkey",
	StateConnecting:           "connecting",
	StateConnected:            "connected",
}

func (s State) String() string {
	if s < 0 || int(s) >= len(stateNames) {
		return "unknown"
	}
	return stateNames[s]
}

// ConnectionState is the coarse projection of State.
type ConnectionState int

const (
	Disconnected ConnectionState = iota
	Connecting
	Connected
)

func (c ConnectionState) String() string {
	switch c {
	case Connecting:
		return "connecting"
	case Connected:
		return "connected"
	default:
		return "disconnected"
	}
}

// Connection projects s onto Disconnected | Connecting | Connected.
func (s State) Connection() ConnectionState {
	switch s {
	case StateConnecting:
		return Connecting
	case StateConnected:
		return Connected
	default:
		return Disconnected
	}
}

// Preference is the user's choice of passkey when connecting.
type Preference int

const (
	PreferLocalFirst Preference = iota // an existing passkey on this device, else any
	PreferAnyDevice                    // an existing passkey on any device
	PreferForceNew                     // register a new passkey
)

func (p Preference) String() string {
	switch p {
	case PreferAnyDevice:
		return "any-device"
	case PreferForceNew:
		return "force-new"
	default:
		return "local-first"
	}
}

// Options maps the preference onto wallet connect options.
func (p Preference) Options() wallet.ConnectOptions {
	switch p {
	case PreferAnyDevice:
		return wallet.ConnectOptions{UseExistingCredentials: true, PreferLocalDevice: false}
	case PreferForceNew:
		return wallet.ConnectOptions{UseExistingCredentials: false, PreferLocalDevice: true}
	default:
		return wallet.ConnectOptions{UseExistingCredentials: true, PreferLocalDevice: true}
	}
}

// Presence is a tri-state for local passkey presence.
type Presence int

const (
	PresenceUnknown Presence = iota
	PresencePresent
	PresenceAbsent
)

// Availability records what discovery found.
type Availability struct {
	Local    Presence
	Remote   bool
	Checking bool
}

// BalanceSnapshot holds the connected authority's balances. Nil fields mean
// "not known"; both are nil whenever the session is not connected.
type BalanceSnapshot struct {
	Native  *float64 // SOL
	Token   *float64 // configured token, display units
	Loading bool
}

// Session is the single wallet session of a run.
type Session struct {
	State     State
	Authority solana.PublicKey // zero unless connected
	LastError string
}

// ConnectionState projects the session state.
func (s Session) ConnectionState() ConnectionState { return s.State.Connection() }

// AuthorityAddress returns the base58 authority, or "" when there is none.
func (s Session) AuthorityAddress() string {
	if s.Authority.IsZero() {
		return ""
	}
	return s.Authority.String()
}
