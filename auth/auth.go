// Package auth is the Credential Environment (SPEC_FULL.md §4.G): derives
// the environment overlay passed to the Subprocess Executor for a given
// remote URL, without ever persisting credentials to the mirror's own
// contents.
package auth

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/utilitywarehouse/git-fastclone/giturl"
)

const loadCredsScript = `#!/bin/sh

case "$1" in
  Username*) echo "$REPO_USERNAME" ;;
  Password*) echo "$REPO_PASSWORD" ;;
esac
`

// Config names the credential sources available for deriving an
// environment overlay. Zero value means "no credentials configured": SSH
// URLs get a permissive, host-key-checking-disabled overlay suitable for an
// ephemeral cache, and HTTPS/local URLs get no overlay at all.
type Config struct {
	SSHKeyPath        string
	SSHKnownHostsPath string

	Username string
	Password string

	GithubAppID             string
	GithubAppInstallationID string
	GithubAppPrivateKeyPath string
}

// Credentials derives environment overlays for Config and caches the
// GitHub App installation token across calls (SPEC_FULL.md §4.G). The zero
// value is not usable; construct with New.
type Credentials struct {
	cfg Config

	mu          sync.Mutex
	appToken    string
	appTokenExp time.Time
}

// New returns a Credentials ready to derive environment overlays from cfg.
func New(cfg Config) *Credentials {
	return &Credentials{cfg: cfg}
}

// EnvironmentFor returns the environment overlay to pass to the Subprocess
// Executor for a git command touching url. scriptDir is the mirror
// directory the lazily-created GIT_ASKPASS helper script is written into
// (one script per mirror, reused across calls). A nil, nil result means no
// overlay is required.
func (c *Credentials) EnvironmentFor(ctx context.Context, url, scriptDir string) ([]string, error) {
	switch {
	case giturl.IsSCPURL(url), giturl.IsSSHURL(url):
		return []string{c.gitSSHCommand()}, nil
	case giturl.IsHTTPSURL(url):
		return c.httpsEnvironment(ctx, url, scriptDir)
	default:
		return nil, nil
	}
}

func (c *Credentials) gitSSHCommand() string {
	sshKeyPath := c.cfg.SSHKeyPath
	if sshKeyPath == "" {
		sshKeyPath = "/dev/null"
	}
	knownHostsOptions := "-o UserKnownHostsFile=/dev/null -o StrictHostKeyChecking=no"
	if c.cfg.SSHKeyPath != "" && c.cfg.SSHKnownHostsPath != "" {
		knownHostsOptions = fmt.Sprintf("-o UserKnownHostsFile=%s", c.cfg.SSHKnownHostsPath)
	}
	return fmt.Sprintf(`GIT_SSH_COMMAND=ssh -q -F none -o IdentitiesOnly=yes -o IdentityFile=%s %s`, sshKeyPath, knownHostsOptions)
}

func (c *Credentials) httpsEnvironment(ctx context.Context, url, scriptDir string) ([]string, error) {
	var username, password string
	host, repo := hostAndRepo(url)

	switch {
	case c.cfg.Username != "" && c.cfg.Password != "":
		username, password = c.cfg.Username, c.cfg.Password
	case c.cfg.Password != "":
		username, password = "-", c.cfg.Password
	case c.cfg.GithubAppInstallationID != "" && host == "github.com":
		token, err := c.githubAppToken(ctx, strings.TrimSuffix(repo, ".git"))
		if err != nil {
			return nil, fmt.Errorf("auth: unable to get github app token: %w", err)
		}
		username, password = "-", token
	default:
		return nil, nil
	}

	loader, err := ensureCredsLoader(scriptDir)
	if err != nil {
		return nil, fmt.Errorf("auth: unable to write creds loader script: %w", err)
	}

	return []string{
		"GIT_ASKPASS=" + loader,
		"REPO_USERNAME=" + username,
		"REPO_PASSWORD=" + password,
	}, nil
}

func ensureCredsLoader(scriptDir string) (string, error) {
	path := filepath.Join(scriptDir, "git-fastclone-creds-loader.sh")
	if _, err := os.Stat(path); os.IsNotExist(err) {
		if err := os.WriteFile(path, []byte(loadCredsScript), 0750); err != nil {
			return "", err
		}
	} else if err != nil {
		return "", fmt.Errorf("unable to check if script file exists: %w", err)
	}
	return path, nil
}

// githubAppToken returns a cached installation token when it is valid for
// at least another 10 minutes, otherwise mints a new one.
func (c *Credentials) githubAppToken(ctx context.Context, repo string) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.appTokenExp.After(time.Now().UTC().Add(10 * time.Minute)) {
		return c.appToken, nil
	}

	pem, err := os.ReadFile(c.cfg.GithubAppPrivateKeyPath)
	if err != nil {
		return "", fmt.Errorf("unable to read github app private key: %w", err)
	}

	token, err := GithubAppInstallationToken(ctx, c.cfg.GithubAppID, c.cfg.GithubAppInstallationID, pem,
		GithubAppTokenReqPermissions{
			Repositories: []string{repo},
			Permissions:  map[string]string{"contents": "read"},
		})
	if err != nil {
		return "", err
	}

	c.appToken = token.Token
	c.appTokenExp = token.ExpiresAt
	return c.appToken, nil
}

// hostAndRepo splits an https URL's host and repository path (with any
// leading slash removed) for GitHub App permission scoping.
func hostAndRepo(url string) (host, repo string) {
	rest := strings.TrimPrefix(url, "https://")
	if idx := strings.Index(rest, "@"); idx != -1 {
		rest = rest[idx+1:]
	}
	parts := strings.SplitN(rest, "/", 2)
	host = parts[0]
	if len(parts) == 2 {
		repo = parts[1]
	}
	return host, repo
}
