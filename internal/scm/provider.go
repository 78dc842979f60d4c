// Package scm raises pull requests on the hosting platform once a fix
// branch has been pushed. GitHub (cloud and enterprise) and GitLab
// (cloud and self-hosted) are supported.
package scm

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"github.com/aiguardian/remediator/internal/config"
	"github.com/aiguardian/remediator/models"
)

// PROptions describes the pull request to open.
type PROptions struct {
	Owner      string
	Repo       string
	Title      string
	Body       string
	HeadBranch string
	BaseBranch string
}

// Provider opens pull requests on one hosting platform.
type Provider interface {
	// Name returns the platform identifier: "github" or "gitlab".
	Name() string

	// Token returns the credential the provider authenticates with,
	// for reuse as the git transport token.
	Token() string

	// CreatePullRequest opens a PR (or MR) and returns its metadata.
	CreatePullRequest(ctx context.Context, opts PROptions) (*models.PullRequest, error)
}

// Registry constructs providers, resolving credentials from the
// request first and the server configuration second.
type Registry struct {
	cfg config.GitConfig
}

// NewRegistry builds a Registry over the configured platform credentials.
func NewRegistry(cfg config.GitConfig) *Registry {
	return &Registry{cfg: cfg}
}

// For returns a Provider for the platform and host. A non-empty token
// always wins; otherwise the first configured credential matching the
// host (or with no host pin) is used.
func (r *Registry) For(platform, host, token string) (Provider, error) {
	switch strings.ToLower(platform) {
	case "github":
		if token == "" {
			token = r.githubToken(host)
		}
		return NewGitHub(token, host)
	case "gitlab":
		if token == "" {
			token = r.gitlabToken(host)
		}
		return NewGitLab(token, host)
	default:
		return nil, fmt.Errorf("unsupported platform %q (supported: github, gitlab)", platform)
	}
}

func (r *Registry) githubToken(host string) string {
	for _, c := range r.cfg.GitHub {
		if c.Host == "" || c.Host == host {
			return c.Token
		}
	}
	return ""
}

func (r *Registry) gitlabToken(host string) string {
	for _, c := range r.cfg.GitLab {
		if c.Host == "" || c.Host == host {
			return c.Token
		}
	}
	return ""
}

// DetectPlatform infers the hosting platform and host from a clone URL.
// Self-hosted instances are recognised by the platform name appearing
// in the hostname (e.g. gitlab.mycompany.com).
func DetectPlatform(cloneURL string) (platform, host string, err error) {
	u, err := url.Parse(cloneURL)
	if err != nil || u.Host == "" {
		return "", "", fmt.Errorf("cannot parse repository URL %q", cloneURL)
	}
	h := strings.ToLower(u.Host)
	switch {
	case strings.Contains(h, "github"):
		return "github", u.Host, nil
	case strings.Contains(h, "gitlab"):
		return "gitlab", u.Host, nil
	default:
		return "", "", fmt.Errorf("cannot infer platform from host %q", u.Host)
	}
}
