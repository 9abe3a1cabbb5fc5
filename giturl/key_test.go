package giturl

import (
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestKey(t *testing.T) {
	tests := []struct {
		url  string
		want string
	}{
		{"ssh://git@git.com/proj.git", "git.com-proj.git"},
		{"git@git.com:org/proj.git", "git.com-org-proj.git"},
		{"https://git.com/org/proj.git", "git.com-org-proj.git"},
		{"https://user@git.com/org/proj.git", "git.com-org-proj.git"},
		{"file:///tmp/proj.git", "-tmp-proj.git"},
	}

	for _, tt := range tests {
		if got := Key(tt.url); got != tt.want {
			t.Errorf("Key(%q) = %q, want %q", tt.url, got, tt.want)
		}
	}
}

// key(url) must be invariant under adding/removing a leading scheme:// and
// under adding/removing a leading user@ (spec.md §8 P4).
func TestKey_invariantUnderSchemeAndUser(t *testing.T) {
	base := "git.com/org/proj.git"
	variants := []string{
		"https://" + base,
		"https://user@" + base,
		base,
	}

	want := Key(variants[0])
	for _, v := range variants {
		if got := Key(v); got != want {
			t.Errorf("Key(%q) = %q, want %q (must be scheme/user invariant)", v, got, want)
		}
	}
}

func TestKey_stable(t *testing.T) {
	url := "ssh://git@git.com/org/proj.git"
	a := Key(url)
	b := Key(url)
	if a != b {
		t.Errorf("Key is not stable across calls: %q != %q", a, b)
	}
}

func TestMirrorDir(t *testing.T) {
	got := MirrorDir("ssh://git@git.com/proj.git", "/root", false)
	want := "/root/git.com-proj.git"
	if got != want {
		t.Errorf("MirrorDir() = %q, want %q", got, want)
	}

	gotLocal := MirrorDir("/tmp/proj", "/root", true)
	if gotLocal[:len("/root/local")] != "/root/local" {
		t.Errorf("MirrorDir(local) = %q, want local prefix", gotLocal)
	}
}

func TestSubmodulesFileAndLockFile(t *testing.T) {
	dir := MirrorDir("ssh://git@git.com/proj.git", "/root", false)

	sub := SubmodulesFile("ssh://git@git.com/proj.git", "/root", false)
	if sub != dir+separator()+"submodules" {
		t.Errorf("SubmodulesFile() = %q", sub)
	}

	lock := LockFileName("ssh://git@git.com/proj.git", "/root", false)
	if lock != dir+separator()+"lock" {
		t.Errorf("LockFileName() = %q", lock)
	}
}

func TestParseSubmoduleLine(t *testing.T) {
	tests := []struct {
		line     string
		wantPath string
		wantURL  string
		wantOK   bool
	}{
		{
			line:     "Submodule 'vendor/lib' (git@git.com:org/lib.git) registered for path 'vendor/lib'",
			wantPath: "vendor/lib",
			wantURL:  "git@git.com:org/lib.git",
			wantOK:   true,
		},
		{
			// trailing whitespace and CRLF must be tolerated
			line:     "Submodule 'x' (https://git.com/o/r.git) registered for path 'x'\r\n",
			wantPath: "x",
			wantURL:  "https://git.com/o/r.git",
			wantOK:   true,
		},
		{
			line:   "not a submodule line",
			wantOK: false,
		},
	}

	for _, tt := range tests {
		got, ok := ParseSubmoduleLine(tt.line)
		if ok != tt.wantOK {
			t.Fatalf("ParseSubmoduleLine(%q) ok = %v, want %v", tt.line, ok, tt.wantOK)
		}
		if !ok {
			continue
		}
		want := ParsedSubmodule{Path: tt.wantPath, URL: tt.wantURL}
		if diff := cmp.Diff(want, got); diff != "" {
			t.Errorf("ParseSubmoduleLine(%q) mismatch (-want +got):\n%s", tt.line, diff)
		}
	}
}

func TestDefaultDestination(t *testing.T) {
	tests := []struct {
		url  string
		want string
	}{
		{"ssh://git@git.com/org/proj.git", "proj"},
		{"https://git.com/org/proj", "proj"},
		{"git@git.com:org/proj.git/", "proj"},
	}

	for _, tt := range tests {
		if got := DefaultDestination(tt.url); got != tt.want {
			t.Errorf("DefaultDestination(%q) = %q, want %q", tt.url, got, tt.want)
		}
	}
}
