// Package relay serves appeal attachments over HTTP so moderators can open
// them without access to the bot chat.
package relay

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/m3rciful/appealbot/internal/store"
)

var (
	// ErrUnknownHash is returned for hashes with no stored link.
	ErrUnknownHash = errors.New("relay: unknown hash")
	// ErrFileUnavailable is returned when the platform no longer has the file.
	ErrFileUnavailable = errors.New("relay: file unavailable")
	// ErrBridgeTimeout is returned when a lookup is not answered in time.
	ErrBridgeTimeout = errors.New("relay: bridge timeout")
	// ErrBridgeClosed is returned once Serve has stopped.
	ErrBridgeClosed = errors.New("relay: bridge closed")
)

const (
	DefaultBridgeQueue   = 32
	DefaultBridgeTimeout = 5 * time.Second
)

// LinkStore is the part of store.Store the relay reads.
type LinkStore interface {
	GetHashLink(ctx context.Context, hash string) (string, error)
}

type lookup struct {
	ctx   context.Context
	hash  string
	reply chan lookupResult
}

type lookupResult struct {
	link string
	err  error
}

// Bridge hands link lookups from HTTP goroutines to a single worker that
// owns store access. Requests wait in a bounded queue and give up after the
// configured timeout.
type Bridge struct {
	links   LinkStore
	queue   chan lookup
	timeout time.Duration
	done    chan struct{}
}

// NewBridge builds a Bridge. Non-positive sizes fall back to the defaults.
func NewBridge(links LinkStore, queue int, timeout time.Duration) *Bridge {
	if queue <= 0 {
		queue = DefaultBridgeQueue
	}
	if timeout <= 0 {
		timeout = DefaultBridgeTimeout
	}
	return &Bridge{
		links:   links,
		queue:   make(chan lookup, queue),
		timeout: timeout,
		done:    make(chan struct{}),
	}
}

// Serve answers lookups until ctx is cancelled.
func (b *Bridge) Serve(ctx context.Context) error {
	defer close(b.done)
	for {
		select {
		case <-ctx.Done():
			return nil
		case req := <-b.queue:
			if req.ctx.Err() != nil {
				continue
			}
			link, err := b.links.GetHashLink(req.ctx, req.hash)
			req.reply <- lookupResult{link: link, err: err}
		}
	}
}

// Resolve returns the link stored under hash.
func (b *Bridge) Resolve(ctx context.Context, hash string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, b.timeout)
	defer cancel()

	req := lookup{ctx: ctx, hash: hash, reply: make(chan lookupResult, 1)}
	select {
	case b.queue <- req:
	case <-b.done:
		return "", ErrBridgeClosed
	case <-ctx.Done():
		return "", fmt.Errorf("%w: queue full", ErrBridgeTimeout)
	}

	select {
	case res := <-req.reply:
		if errors.Is(res.err, store.ErrNotFound) {
			return "", fmt.Errorf("%w: %s", ErrUnknownHash, hash)
		}
		return res.link, res.err
	case <-b.done:
		return "", ErrBridgeClosed
	case <-ctx.Done():
		return "", fmt.Errorf("%w: %s", ErrBridgeTimeout, hash)
	}
}
