package classify

import "testing"

func TestAuthError(t *testing.T) {
	tests := []struct {
		output string
		want   bool
	}{
		{"fatal: Authentication failed for 'https://git.com/org/proj.git/'", true},
		{"some other line\nfatal: Authentication failed\nmore", true},
		{"fatal: repository not found", false},
		{"", false},
	}
	for _, tt := range tests {
		if got := AuthError(tt.output); got != tt.want {
			t.Errorf("AuthError(%q) = %v, want %v", tt.output, got, tt.want)
		}
	}
}

func TestRetriable(t *testing.T) {
	tests := []struct {
		name   string
		output string
		want   bool
	}{
		{"missing blob", "fatal: missing blob object abc123", true},
		{"remote did not send all objects", "fatal: remote did not send all necessary objects", true},
		{"packed object corrupt", "fatal: packed object 0123abcd (stored in .git/objects/pack/pack-x.pack) is corrupt", true},
		{"unresolved deltas", "fatal: pack has 3 unresolved delta(s)", true},
		{"unable to read sha1", "error: unable to read sha1 file of path/to/file", true},
		{"did not receive expected object", "fatal: did not receive expected object abcd1234", true},
		{"auth failure also retriable", "fatal: Authentication failed", true},
		{
			"unable to read tree with checkout failure",
			"fatal: unable to read tree 0123abcd\nwarning: Clone succeeded, but checkout failed",
			true,
		},
		{
			"unable to read tree alone is not enough",
			"fatal: unable to read tree 0123abcd",
			false,
		},
		{"unrelated fatal error", "fatal: repository not found", false},
		{"empty", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Retriable(tt.output); got != tt.want {
				t.Errorf("Retriable(%q) = %v, want %v", tt.output, got, tt.want)
			}
		})
	}
}
