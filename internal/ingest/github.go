package ingest

import (
	"context"
	"encoding/json"
	"fmt"
	"os/exec"
	"strconv"
	"time"

	"contentagent/internal/domain"
	"contentagent/internal/ports"
)

// GitHubClient lists repository issues through the gh CLI, which handles
// authentication and pagination.
type GitHubClient struct {
	token string
}

var _ ports.IssueSource = (*GitHubClient)(nil)

// NewGitHubClient builds the adapter. Token is optional; when empty the gh
// CLI's own authentication is used.
func NewGitHubClient(token string) *GitHubClient {
	return &GitHubClient{token: token}
}

var issueListFields = "id,number,title,state,author,labels,createdAt,updatedAt,closedAt,url,body"

type ghIssue struct {
	ID     string `json:"id"`
	Number int    `json:"number"`
	Title  string `json:"title"`
	State  string `json:"state"`
	Author struct {
		Login string `json:"login"`
	} `json:"author"`
	Labels []struct {
		Name string `json:"name"`
	} `json:"labels"`
	CreatedAt time.Time  `json:"createdAt"`
	UpdatedAt time.Time  `json:"updatedAt"`
	ClosedAt  *time.Time `json:"closedAt"`
	URL       string     `json:"url"`
	Body      string     `json:"body"`
}

// FetchIssues lists up to limit issues in the given state for repo
// ("owner/name").
func (g *GitHubClient) FetchIssues(ctx context.Context, repo, state string, limit int) ([]domain.Issue, error) {
	if _, err := exec.LookPath("gh"); err != nil {
		return nil, fmt.Errorf("gh CLI not installed: %w", err)
	}

	cmd := exec.CommandContext(ctx, "gh", "issue", "list",
		"--repo", repo,
		"--state", state,
		"--limit", strconv.Itoa(limit),
		"--json", issueListFields,
	)
	if g.token != "" {
		cmd.Env = append(cmd.Environ(), "GH_TOKEN="+g.token)
	}

	out, err := cmd.Output()
	if err != nil {
		if exitErr, ok := err.(*exec.ExitError); ok {
			return nil, fmt.Errorf("gh issue list for %s: %s", repo, string(exitErr.Stderr))
		}
		return nil, fmt.Errorf("gh issue list for %s: %w", repo, err)
	}

	var raw []ghIssue
	if err := json.Unmarshal(out, &raw); err != nil {
		return nil, fmt.Errorf("parse gh output for %s: %w", repo, err)
	}

	issues := make([]domain.Issue, 0, len(raw))
	for _, it := range raw {
		labels := make([]string, 0, len(it.Labels))
		for _, l := range it.Labels {
			labels = append(labels, l.Name)
		}

		issues = append(issues, domain.Issue{
			Number:    it.Number,
			NodeID:    it.ID,
			Title:     it.Title,
			Body:      it.Body,
			State:     it.State,
			Author:    it.Author.Login,
			Labels:    labels,
			CreatedAt: it.CreatedAt,
			UpdatedAt: it.UpdatedAt,
			ClosedAt:  it.ClosedAt,
			URL:       it.URL,
		})
	}

	return issues, nil
}
