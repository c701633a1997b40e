package version

import "testing"

func TestDefaults(t *testing.T) {
	if Version != "dev" {
		t.Errorf("default Version = %q, want %q", Version, "dev")
	}
	if GitCommit != "unknown" {
		t.Errorf("default GitCommit = %q, want %q", GitCommit, "unknown")
	}
}

func TestUserAgent(t *testing.T) {
	old := Version
	defer func() { Version = old }()

	Version = "v1.2.3"
	if got := UserAgent(); got != "mgmtctl/v1.2.3" {
		t.Errorf("UserAgent() = %q, want %q", got, "mgmtctl/v1.2.3")
	}
	if got := Info(); got != "v1.2.3 (unknown) built unknown" {
		t.Errorf("Info() = %q", got)
	}
}
