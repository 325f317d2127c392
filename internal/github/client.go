// Package github provides the pull-request and review-comment surface
// on the GitHub API.
package github

import (
	"context"
	"fmt"
	"strings"
	"time"

	gogh "github.com/google/go-github/v68/github"
)

// apiTimeout bounds every hosting API call.
const apiTimeout = 30 * time.Second

// Client wraps the GitHub API for autopr operations.
type Client struct {
	gh    *gogh.Client
	owner string
	repo  string
}

// NewClient creates a client for one repository, authenticated with the
// given token. repoFullName is "owner/repo".
func NewClient(token, repoFullName string) (*Client, error) {
	owner, repo, err := splitRepo(repoFullName)
	if err != nil {
		return nil, err
	}
	return &Client{
		gh:    gogh.NewClient(nil).WithAuthToken(token),
		owner: owner,
		repo:  repo,
	}, nil
}

// PullRequest identifies an open pull request.
type PullRequest struct {
	Number int
	URL    string
}

// EnsurePullRequest finds the open PR from branch into base, creating it
// with the given title and body when none exists. Idempotent under
// retries.
func (c *Client) EnsurePullRequest(ctx context.Context, branch, base, title, body string) (PullRequest, error) {
	ctx, cancel := context.WithTimeout(ctx, apiTimeout)
	defer cancel()

	prs, _, err := c.gh.PullRequests.List(ctx, c.owner, c.repo, &gogh.PullRequestListOptions{
		State: "open",
		Head:  c.owner + ":" + branch,
		Base:  base,
	})
	if err != nil {
		return PullRequest{}, fmt.Errorf("searching pull requests: %w", err)
	}
	if len(prs) > 0 {
		return PullRequest{Number: prs[0].GetNumber(), URL: prs[0].GetHTMLURL()}, nil
	}

	pr, _, err := c.gh.PullRequests.Create(ctx, c.owner, c.repo, &gogh.NewPullRequest{
		Title: gogh.Ptr(title),
		Body:  gogh.Ptr(body),
		Head:  gogh.Ptr(branch),
		Base:  gogh.Ptr(base),
	})
	if err != nil {
		return PullRequest{}, fmt.Errorf("creating pull request: %w", err)
	}
	return PullRequest{Number: pr.GetNumber(), URL: pr.GetHTMLURL()}, nil
}

// UpdatePullRequestBody rewrites the PR description.
func (c *Client) UpdatePullRequestBody(ctx context.Context, number int, body string) error {
	ctx, cancel := context.WithTimeout(ctx, apiTimeout)
	defer cancel()

	_, _, err := c.gh.PullRequests.Edit(ctx, c.owner, c.repo, number, &gogh.PullRequest{
		Body: gogh.Ptr(body),
	})
	if err != nil {
		return fmt.Errorf("updating pull request #%d body: %w", number, err)
	}
	return nil
}

// CreateComment posts an issue comment on the PR and returns its id.
func (c *Client) CreateComment(ctx context.Context, number int, body string) (int64, error) {
	ctx, cancel := context.WithTimeout(ctx, apiTimeout)
	defer cancel()

	comment, _, err := c.gh.Issues.CreateComment(ctx, c.owner, c.repo, number, &gogh.IssueComment{
		Body: gogh.Ptr(body),
	})
	if err != nil {
		return 0, fmt.Errorf("creating comment on #%d: %w", number, err)
	}
	return comment.GetID(), nil
}

// UpdateComment rewrites an existing comment body. Updates are
// last-writer-wins.
func (c *Client) UpdateComment(ctx context.Context, commentID int64, body string) error {
	ctx, cancel := context.WithTimeout(ctx, apiTimeout)
	defer cancel()

	_, _, err := c.gh.Issues.EditComment(ctx, c.owner, c.repo, commentID, &gogh.IssueComment{
		Body: gogh.Ptr(body),
	})
	if err != nil {
		return fmt.Errorf("updating comment %d: %w", commentID, err)
	}
	return nil
}

// GetDefaultBranch returns the repository's default branch.
func (c *Client) GetDefaultBranch(ctx context.Context) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, apiTimeout)
	defer cancel()

	r, _, err := c.gh.Repositories.Get(ctx, c.owner, c.repo)
	if err != nil {
		return "", fmt.Errorf("getting repository: %w", err)
	}
	return r.GetDefaultBranch(), nil
}

func splitRepo(fullName string) (owner, repo string, err error) {
	parts := strings.SplitN(fullName, "/", 2)
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return "", "", fmt.Errorf("invalid repo format %q, expected \"owner/repo\"", fullName)
	}
	return parts[0], parts[1], nil
}
