package fastclone

import (
	"context"
	"os"
	"testing"

	"github.com/utilitywarehouse/git-fastclone/fetch"
	"github.com/utilitywarehouse/git-fastclone/mirror"
)

func newEngine(t *testing.T) *fetch.Engine {
	t.Helper()
	cache, err := mirror.New(mirror.Config{Root: t.TempDir()})
	if err != nil {
		t.Fatalf("mirror.New() error = %v", err)
	}
	e, err := fetch.New(fetch.Config{Cache: cache})
	if err != nil {
		t.Fatalf("fetch.New() error = %v", err)
	}
	return e
}

func TestRun_MissingURLReturnsErrMissingURL(t *testing.T) {
	err := Run(context.Background(), Options{Engine: newEngine(t)})
	if !ErrMissingURL(err) {
		t.Fatalf("Run() error = %v, want ErrMissingURL", err)
	}
}

func TestRun_SparseWithoutBranchIsRejected(t *testing.T) {
	err := Run(context.Background(), Options{
		URL:         "/tmp/some/repo",
		Engine:      newEngine(t),
		SparsePaths: []string{"src"},
	})
	if err == nil {
		t.Fatal("Run() expected error for sparse mode without --branch, got nil")
	}
}

func TestSetProtocolAllowList_DefaultsWhenUnset(t *testing.T) {
	os.Unsetenv("GIT_ALLOW_PROTOCOL")
	setProtocolAllowList("")
	defer os.Unsetenv("GIT_ALLOW_PROTOCOL")

	if got := os.Getenv("GIT_ALLOW_PROTOCOL"); got != defaultAllowedProtocols {
		t.Errorf("GIT_ALLOW_PROTOCOL = %q, want %q", got, defaultAllowedProtocols)
	}
}

func TestSetProtocolAllowList_FallsBackToDefaultsFileValue(t *testing.T) {
	os.Unsetenv("GIT_ALLOW_PROTOCOL")
	setProtocolAllowList("https:ssh")
	defer os.Unsetenv("GIT_ALLOW_PROTOCOL")

	if got := os.Getenv("GIT_ALLOW_PROTOCOL"); got != "https:ssh" {
		t.Errorf("GIT_ALLOW_PROTOCOL = %q, want %q", got, "https:ssh")
	}
}

func TestSetProtocolAllowList_RespectsExisting(t *testing.T) {
	os.Setenv("GIT_ALLOW_PROTOCOL", "https")
	defer os.Unsetenv("GIT_ALLOW_PROTOCOL")

	setProtocolAllowList("https:ssh")

	if got := os.Getenv("GIT_ALLOW_PROTOCOL"); got != "https" {
		t.Errorf("GIT_ALLOW_PROTOCOL = %q, want unchanged %q", got, "https")
	}
}

func TestSplitSparsePaths(t *testing.T) {
	got := SplitSparsePaths(" src , docs ,,vendor")
	want := []string{"src", "docs", "vendor"}
	if len(got) != len(want) {
		t.Fatalf("SplitSparsePaths() = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("SplitSparsePaths()[%d] = %q, want %q", i, got[i], want[i])
		}
	}
}

func TestCacheRoot_RespectsEnvOverride(t *testing.T) {
	os.Setenv("REFERENCE_REPO_DIR", "/custom/root")
	defer os.Unsetenv("REFERENCE_REPO_DIR")

	if got := CacheRoot(); got != "/custom/root" {
		t.Errorf("CacheRoot() = %q, want %q", got, "/custom/root")
	}
}
