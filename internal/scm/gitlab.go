package scm

import (
	"context"
	"fmt"
	"time"

	gitlab "gitlab.com/gitlab-org/api/client-go"

	"github.com/aiguardian/remediator/models"
)

// GitLabProvider opens merge requests on GitLab cloud or self-hosted.
type GitLabProvider struct {
	client *gitlab.Client
	token  string
	host   string
}

// NewGitLab creates a GitLabProvider authenticated with token. A host
// other than gitlab.com switches the client to the instance's API URL.
func NewGitLab(token, host string) (*GitLabProvider, error) {
	if token == "" {
		return nil, fmt.Errorf("gitlab token is required")
	}

	opts := []gitlab.ClientOptionFunc{}
	if host != "" && host != "gitlab.com" {
		base := fmt.Sprintf("https://%s/api/v4/", host)
		opts = append(opts, gitlab.WithBaseURL(base))
	}

	client, err := gitlab.NewClient(token, opts...)
	if err != nil {
		return nil, fmt.Errorf("creating GitLab client: %w", err)
	}

	return &GitLabProvider{client: client, token: token, host: host}, nil
}

func (g *GitLabProvider) Name() string  { return "gitlab" }
func (g *GitLabProvider) Token() string { return g.token }

func (g *GitLabProvider) CreatePullRequest(ctx context.Context, opts PROptions) (*models.PullRequest, error) {
	nameWithNS := opts.Owner + "/" + opts.Repo
	removeSource := true
	mr, _, err := g.client.MergeRequests.CreateMergeRequest(nameWithNS, &gitlab.CreateMergeRequestOptions{
		Title:              &opts.Title,
		Description:        &opts.Body,
		SourceBranch:       &opts.HeadBranch,
		TargetBranch:       &opts.BaseBranch,
		RemoveSourceBranch: &removeSource,
	}, gitlab.WithContext(ctx))
	if err != nil {
		return nil, fmt.Errorf("creating MR on %s: %w", nameWithNS, err)
	}

	host := g.host
	if host == "" {
		host = "gitlab.com"
	}
	url := mr.WebURL
	if url == "" {
		url = fmt.Sprintf("https://%s/%s/-/merge_requests/%d", host, nameWithNS, mr.IID)
	}
	created := time.Now()
	if mr.CreatedAt != nil {
		created = *mr.CreatedAt
	}
	return &models.PullRequest{
		ID:         int64(mr.ID),
		Number:     int(mr.IID),
		Title:      mr.Title,
		URL:        url,
		HeadBranch: mr.SourceBranch,
		BaseBranch: mr.TargetBranch,
		CreatedAt:  created,
	}, nil
}
