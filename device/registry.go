package device

import (
	"context"
	"errors"
	"sync"

	"golang.org/x/sync/errgroup"
)

// ManifestProvider enumerates candidate authenticators reachable through
// one platform-specific transport (hidraw, a vendor DLL, NFC, a software
// simulator). Concrete providers live outside this package; device only
// tracks the registry.
type ManifestProvider interface {
	Name() string
	Enumerate(ctx context.Context) ([]Info, error)
}

var (
	registryMu sync.Mutex
	providers  []ManifestProvider
)

// Register appends p to the process-wide provider registry. It is safe to
// call from multiple goroutines, and from an init function; registration
// order is preserved and never deduplicated, mirroring a discriminator
// allocator that never reclaims an entry once handed out.
func Register(p ManifestProvider) {
	registryMu.Lock()
	defer registryMu.Unlock()
	providers = append(providers, p)
}

// Providers returns a snapshot of the currently registered providers.
func Providers() []ManifestProvider {
	registryMu.Lock()
	defer registryMu.Unlock()
	out := make([]ManifestProvider, len(providers))
	copy(out, providers)
	return out
}

// Teardown clears the registry. It exists for test isolation between
// packages that register simulator providers; production code never
// needs to call it.
func Teardown() {
	registryMu.Lock()
	defer registryMu.Unlock()
	providers = nil
}

// DiscoverAll enumerates every registered provider concurrently and
// returns the combined list of candidate devices. A single provider
// failing does not abort the others; their errors are joined and
// returned alongside whatever the remaining providers found.
func DiscoverAll(ctx context.Context) ([]Info, error) {
	provs := Providers()

	results := make([][]Info, len(provs))
	errs := make([]error, len(provs))
	var g errgroup.Group

	for i, p := range provs {
		i, p := i, p
		g.Go(func() error {
			infos, err := p.Enumerate(ctx)
			if err != nil {
				errs[i] = err
				return nil
			}
			results[i] = infos
			return nil
		})
	}

	_ = g.Wait()

	var all []Info
	for _, infos := range results {
		all = append(all, infos...)
	}
	return all, errors.Join(errs...)
}
