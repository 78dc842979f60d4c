package scm

import (
	"context"
	"fmt"

	gogithub "github.com/google/go-github/v68/github"
	"golang.org/x/oauth2"

	"github.com/aiguardian/remediator/models"
)

// GitHubProvider opens pull requests on GitHub and GitHub Enterprise.
type GitHubProvider struct {
	client *gogithub.Client
	token  string
	host   string
}

// NewGitHub creates a GitHubProvider authenticated with token. A host
// other than github.com switches the client to enterprise API URLs.
func NewGitHub(token, host string) (*GitHubProvider, error) {
	if token == "" {
		return nil, fmt.Errorf("github token is required")
	}

	ts := oauth2.StaticTokenSource(&oauth2.Token{AccessToken: token})
	tc := oauth2.NewClient(context.Background(), ts)
	client := gogithub.NewClient(tc)

	if host != "" && host != "github.com" {
		base := fmt.Sprintf("https://%s/api/v3/", host)
		upload := fmt.Sprintf("https://%s/api/uploads/", host)
		var err error
		client, err = client.WithEnterpriseURLs(base, upload)
		if err != nil {
			return nil, fmt.Errorf("configuring GitHub enterprise URLs: %w", err)
		}
	}

	return &GitHubProvider{client: client, token: token, host: host}, nil
}

func (g *GitHubProvider) Name() string  { return "github" }
func (g *GitHubProvider) Token() string { return g.token }

func (g *GitHubProvider) CreatePullRequest(ctx context.Context, opts PROptions) (*models.PullRequest, error) {
	pr, _, err := g.client.PullRequests.Create(ctx, opts.Owner, opts.Repo, &gogithub.NewPullRequest{
		Title:               gogithub.Ptr(opts.Title),
		Body:                gogithub.Ptr(opts.Body),
		Head:                gogithub.Ptr(opts.HeadBranch),
		Base:                gogithub.Ptr(opts.BaseBranch),
		MaintainerCanModify: gogithub.Ptr(true),
	})
	if err != nil {
		return nil, fmt.Errorf("creating PR on %s/%s: %w", opts.Owner, opts.Repo, err)
	}
	return &models.PullRequest{
		ID:         pr.GetID(),
		Number:     pr.GetNumber(),
		Title:      pr.GetTitle(),
		URL:        pr.GetHTMLURL(),
		HeadBranch: pr.GetHead().GetRef(),
		BaseBranch: pr.GetBase().GetRef(),
		CreatedAt:  pr.GetCreatedAt().Time,
	}, nil
}
