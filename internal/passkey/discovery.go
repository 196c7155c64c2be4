package passkey

import (
	"context"
	"errors"
	"time"
)

// Outcome is the result of passkey discovery.
type Outcome int

const (
	OutcomeNone       Outcome = iota // no passkey answered
	OutcomeLocal                     // a passkey bound to this device answered
	OutcomeRemoteOnly                // only a passkey on another device answered
)

func (o Outcome) String() string {
	switch o {
	case OutcomeLocal:
		return "local"
	case OutcomeRemoteOnly:
		return "remote-only"
	default:
		return "none"
	}
}

// Getter answers credential requests.
type Getter interface {
	Get(ctx context.Context, req Request) (Assertion, error)
}

// Discoverer probes for passkeys without prompting the user.
type Discoverer struct {
	auth    Getter
	rpID    string
	timeout time.Duration
}

// DefaultDiscoveryTimeout bounds each discovery request when none is given.
const DefaultDiscoveryTimeout = 10 * time.Second

// NewDiscoverer returns a discoverer bounding each request by timeout.
func NewDiscoverer(auth Getter, rpID string, timeout time.Duration) *Discoverer {
	if timeout <= 0 {
		timeout = DefaultDiscoveryTimeout
	}
	return &Discoverer{auth: auth, rpID: rpID, timeout: timeout}
}

// Discover first asks for a passkey bound to this device; if that fails or
// times out it asks again without the restriction. The returned error is
// non-nil only for failures other than "none found" and timeouts.
func (d *Discoverer) Discover(ctx context.Context) (Outcome, error) {
	if _, err := d.try(ctx, Local); err == nil {
		return OutcomeLocal, nil
	}
	_, err := d.try(ctx, "")
	switch {
	case err == nil:
		return OutcomeRemoteOnly, nil
	case errors.Is(err, ErrNoCredential), errors.Is(err, ErrTimeout):
		return OutcomeNone, nil
	default:
		return OutcomeNone, err
	}
}

func (d *Discoverer) try(ctx context.Context, attachment Attachment) (Assertion, error) {
	req, err := NewRequest(d.rpID, attachment, d.timeout)
	if err != nil {
		return Assertion{}, err
	}
	req.Silent = true

	ctx, cancel := context.WithTimeout(ctx, d.timeout)
	defer cancel()

	type result struct {
		a   Assertion
		err error
	}
	ch := make(chan result, 1)
	go func() {
		a, err := d.auth.Get(ctx, req)
		ch <- result{a, err}
	}()

	select {
	case r := <-ch:
		return r.a, r.err
	case <-ctx.Done():
		return Assertion{}, ErrTimeout
	}
}
