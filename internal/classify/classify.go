// Package classify is the Failure Classifier (SPEC_FULL.md §4.C):
// pure pattern-matching over captured subprocess output to decide whether a
// failure is an authentication problem, a retryable cache-corruption
// symptom, or neither. It never spawns processes and never decides what to
// do about a failure; callers own retry policy.
package classify

import "regexp"

var (
	authErrorRgx = regexp.MustCompile(`(?m)^fatal: Authentication failed`)

	retriableRgxs = []*regexp.Regexp{
		regexp.MustCompile(`(?m)^fatal: missing blob object`),
		regexp.MustCompile(`(?m)^fatal: remote did not send all necessary objects`),
		regexp.MustCompile(`(?m)^fatal: packed object [0-9a-fA-F]+ \(stored in .*\) is corrupt`),
		regexp.MustCompile(`(?m)^fatal: pack has \d+ unresolved delta\(s\)`),
		regexp.MustCompile(`(?m)^error: unable to read sha1 file of`),
		regexp.MustCompile(`(?m)^fatal: did not receive expected object`),
		regexp.MustCompile(`(?m)^fatal: Authentication failed`),
	}

	unableToReadTreeRgx   = regexp.MustCompile(`(?m)^fatal: unable to read tree [0-9a-fA-F]+`)
	checkoutFailedRgx     = regexp.MustCompile(`(?m)^warning: Clone succeeded, but checkout failed`)
)

// AuthError reports whether output contains a line matching
// `^fatal: Authentication failed`.
func AuthError(output string) bool {
	return authErrorRgx.MatchString(output)
}

// Retriable reports whether output matches any of the cache-corruption
// failure signatures that indicate the mirror should be evicted and the
// operation retried (SPEC_FULL.md §4.C, §4.D "Eviction"). The
// "unable to read tree" / "Clone succeeded, but checkout failed" pair is
// only retriable when both lines are present.
func Retriable(output string) bool {
	for _, rgx := range retriableRgxs {
		if rgx.MatchString(output) {
			return true
		}
	}
	return unableToReadTreeRgx.MatchString(output) && checkoutFailedRgx.MatchString(output)
}
