package models

import (
	"fmt"
	"regexp"
	"strings"
)

// RepoRef identifies the target repository either by hosting-platform
// coordinates or by a raw remote URL. Branch may be empty, in which
// case the remote's default branch is resolved before cloning.
type RepoRef struct {
	Platform     string `json:"platform,omitempty"`
	Organization string `json:"organization,omitempty"`
	Repository   string `json:"repository,omitempty"`
	RemoteURL    string `json:"remote_url,omitempty"`
	Branch       string `json:"branch,omitempty"`
}

// CloneURL returns the canonical HTTPS clone URL for the reference.
func (r RepoRef) CloneURL() (string, error) {
	if r.RemoteURL != "" {
		u := SanitizeGitHubURL(r.RemoteURL)
		if u == "" {
			return "", fmt.Errorf("invalid repository URL %q", r.RemoteURL)
		}
		return u, nil
	}
	host := platformHost(r.Platform)
	if host == "" {
		return "", fmt.Errorf("unsupported platform %q", r.Platform)
	}
	if r.Organization == "" || r.Repository == "" {
		return "", fmt.Errorf("organization and repository are required")
	}
	return fmt.Sprintf("https://%s/%s/%s.git", host, r.Organization, r.Repository), nil
}

func platformHost(platform string) string {
	switch strings.ToLower(platform) {
	case "github":
		return "github.com"
	case "gitlab":
		return "gitlab.com"
	default:
		return ""
	}
}

var githubURLPattern = regexp.MustCompile(`^https://github\.com/[^/]+/[^/]+?(\.git)?$`)

// SanitizeGitHubURL validates a raw GitHub repository URL and
// normalises it to end in ".git". Returns "" when the URL is not a
// valid GitHub repository URL.
func SanitizeGitHubURL(url string) string {
	if !githubURLPattern.MatchString(url) {
		return ""
	}
	if !strings.HasSuffix(url, ".git") {
		url += ".git"
	}
	return url
}

// OwnerRepo extracts "owner/repo" from an HTTPS clone URL.
func OwnerRepo(cloneURL string) (owner, repo string) {
	u := strings.TrimSuffix(cloneURL, ".git")
	if i := strings.Index(u, "://"); i != -1 {
		u = u[i+3:]
	}
	parts := strings.Split(strings.Trim(u, "/"), "/")
	if len(parts) < 3 {
		return "", ""
	}
	return parts[len(parts)-2], parts[len(parts)-1]
}

// RepoName returns the bare repository name from a clone URL,
// without the ".git" suffix.
func RepoName(cloneURL string) string {
	u := strings.TrimSuffix(cloneURL, ".git")
	u = strings.Trim(u, "/")
	if i := strings.LastIndex(u, "/"); i != -1 {
		return u[i+1:]
	}
	return u
}
