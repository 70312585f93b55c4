package testsupport

import (
	"testing"

	"subscout/internal/blacklist"
	"subscout/internal/config"
	"subscout/internal/logging"
	"subscout/internal/packcache"
)

// OpenStores opens the blacklist and pack cache under the config's data
// directory, registering cleanup on the test.
func OpenStores(t testing.TB, cfg *config.Config) (*blacklist.Store, *packcache.Store) {
	t.Helper()
	bl, err := blacklist.Open(cfg.BlacklistPath())
	if err != nil {
		t.Fatalf("open blacklist: %v", err)
	}
	t.Cleanup(func() { _ = bl.Close() })
	packs, err := packcache.Open(cfg.PackCachePath(), logging.NewNop())
	if err != nil {
		t.Fatalf("open pack cache: %v", err)
	}
	t.Cleanup(func() { _ = packs.Close() })
	return bl, packs
}
