package giturl

import (
	"path"
	"regexp"
	"runtime"
	"strings"
)

// separator used to join a cache key with the suffix naming one of its
// sibling files. ':' is legal in a POSIX file name, but Windows reserves it
// for drive letters and alternate data streams, so Windows-family hosts get
// the double-underscore form instead.
func separator() string {
	if runtime.GOOS == "windows" {
		return "__"
	}
	return ":"
}

var (
	schemeRgx = regexp.MustCompile(`^[A-Za-z][A-Za-z0-9+.-]*://`)
	userRgx   = regexp.MustCompile(`^[^@/]+@`)

	// matches the single-quoted path and parenthesised url in a line like:
	// Submodule 'path/to/mod' (git@host:org/repo.git) registered for path 'path/to/mod'
	submoduleLineRgx = regexp.MustCompile(`'([^']*)'.*\(([^()]*)\)`)
)

// Key derives the filesystem-safe cache key for a remote URL: any
// "scheme://" prefix and any leading "user@" are stripped, then '/' and ':'
// are replaced with '-'. Local paths should have "local" composed onto the
// result by the caller (see MirrorDir) rather than by Key itself, since
// "is this a local path" is a fact about how the URL was resolved, not
// about the URL text.
func Key(url string) string {
	k := schemeRgx.ReplaceAllString(url, "")
	k = userRgx.ReplaceAllString(k, "")
	k = strings.NewReplacer("/", "-", ":", "-").Replace(k)
	return k
}

// MirrorDir returns the absolute path of the bare mirror directory for url
// under root. When local is true (the caller has determined url names an
// existing local filesystem path rather than a remote) the key is prefixed
// with the literal "local" so that mirrors of local repositories can never
// collide with mirrors of a remote repository that happens to normalise to
// the same key.
func MirrorDir(url, root string, local bool) string {
	prefix := ""
	if local {
		prefix = "local"
	}
	return path.Join(root, prefix+Key(url))
}

// SubmodulesFile returns the path of the sidecar file listing a mirror's
// last-known direct submodule URLs, one per line.
func SubmodulesFile(url, root string, local bool) string {
	return MirrorDir(url, root, local) + separator() + "submodules"
}

// SubmodulesChecksumFile returns the path of the BLAKE3 digest sidecar
// guarding SubmodulesFile against partial-write corruption (SPEC_FULL.md §3).
func SubmodulesChecksumFile(url, root string, local bool) string {
	return MirrorDir(url, root, local) + separator() + "submodules.b3"
}

// LockFileName returns the path of the inter-process lock file for url's
// mirror entry. The caller is responsible for opening it.
func LockFileName(url, root string, local bool) string {
	return MirrorDir(url, root, local) + separator() + "lock"
}

// ParsedSubmodule is a (path, url) pair extracted from `submodule init`
// output.
type ParsedSubmodule struct {
	Path string
	URL  string
}

// ParseSubmoduleLine extracts a (path, url) pair from one line of
// `git submodule init` output, of the form:
//
//	Submodule 'path/to/mod' (git@host:org/repo.git) registered for path 'path/to/mod'
//
// The path is the last single-quoted substring on the line and the url is
// the last parenthesised substring; trailing whitespace and CRLF line
// endings are tolerated.
func ParseSubmoduleLine(line string) (ParsedSubmodule, bool) {
	line = strings.TrimRight(line, "\r\n \t")

	quoted := regexp.MustCompile(`'([^']*)'`).FindAllStringSubmatch(line, -1)
	parens := regexp.MustCompile(`\(([^()]*)\)`).FindAllStringSubmatch(line, -1)
	if len(quoted) == 0 || len(parens) == 0 {
		return ParsedSubmodule{}, false
	}

	return ParsedSubmodule{
		Path: quoted[len(quoted)-1][1],
		URL:  parens[len(parens)-1][1],
	}, true
}

// DefaultDestination returns the final path component of url with any
// trailing ".git" suffix removed, suitable as a default checkout directory
// name.
func DefaultDestination(url string) string {
	url = strings.TrimRight(url, "/")
	base := path.Base(url)
	base = strings.TrimSuffix(base, ".git")
	if base == "" || base == "." || base == "/" {
		return ""
	}
	return base
}

// IsLocalPath reports whether rawURL looks like a filesystem path (absolute
// or relative) rather than a remote git URL matching one of the scp/ssh/
// https/file schemes above.
func IsLocalPath(rawURL string) bool {
	switch {
	case IsSCPURL(rawURL), IsSSHURL(rawURL), IsHTTPSURL(rawURL), IsLocalURL(rawURL):
		return false
	default:
		return true
	}
}
