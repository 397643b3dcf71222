package processor

import (
	"context"
	"errors"
	"sync"
	"time"
)

// ErrNoCredentials is returned when a workspace has no processor
// account configured.
var ErrNoCredentials = errors.New("processor: workspace has no credentials")

// CredentialsSource resolves a workspace's processor credentials,
// typically from the workspace row.
type CredentialsSource func(ctx context.Context, workspaceID uint) (Credentials, error)

// Factory hands out per-workspace processor clients with TTL-based
// caching, so repeated calls within a workspace do not re-read
// credentials on every request. There is deliberately no process-wide
// singleton client: credentials differ per tenant.
type Factory struct {
	baseURL string
	source  CredentialsSource
	ttl     time.Duration

	mu    sync.RWMutex
	cache map[uint]*factoryEntry
}

type factoryEntry struct {
	client    Client
	expiresAt time.Time
}

func NewFactory(baseURL string, source CredentialsSource, ttl time.Duration) *Factory {
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &Factory{
		baseURL: baseURL,
		source:  source,
		ttl:     ttl,
		cache:   make(map[uint]*factoryEntry),
	}
}

// ClientFor returns the processor client for a workspace, building and
// caching one when none is live.
func (f *Factory) ClientFor(ctx context.Context, workspaceID uint) (Client, error) {
	f.mu.RLock()
	entry, ok := f.cache[workspaceID]
	f.mu.RUnlock()
	if ok && time.Now().Before(entry.expiresAt) {
		return entry.client, nil
	}

	creds, err := f.source(ctx, workspaceID)
	if err != nil {
		return nil, err
	}
	if creds.AccountID == "" || creds.APIKey == "" {
		return nil, ErrNoCredentials
	}
	client := NewHTTPClient(f.baseURL, creds)

	f.mu.Lock()
	f.cache[workspaceID] = &factoryEntry{client: client, expiresAt: time.Now().Add(f.ttl)}
	f.mu.Unlock()
	return client, nil
}

// Invalidate drops a workspace's cached client. Call when its
// credentials change.
func (f *Factory) Invalidate(workspaceID uint) {
	f.mu.Lock()
	delete(f.cache, workspaceID)
	f.mu.Unlock()
}
