// SPDX-License-Identifier: GPL-3.0-or-later
package gitlab

import (
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/CrawX/gitlab-issue-by-mail/domain"
	"github.com/CrawX/gitlab-issue-by-mail/log"

	"github.com/sirupsen/logrus"
	gogitlab "github.com/xanzy/go-gitlab"
)

const GitlabTimeout = 20 * time.Second

var (
	ErrAuthentication  = errors.New("gitlab rejected the token")
	ErrProjectNotFound = errors.New("gitlab project not found")
)

type Gitlab struct {
	client    *gogitlab.Client
	projectId string
	l         *logrus.Logger
}

// NewGitlab connects to the API below host, verifies the token and makes sure the project
// is visible to it.
func NewGitlab(host, token, projectId string) (*Gitlab, error) {
	client, err := gogitlab.NewClient(
		token,
		gogitlab.WithBaseURL(host),
		gogitlab.WithHTTPClient(&http.Client{Timeout: GitlabTimeout}),
		gogitlab.WithCustomRetryMax(0),
	)
	if err != nil {
		return nil, fmt.Errorf("could not create gitlab client: %w", err)
	}

	g := &Gitlab{
		client:    client,
		projectId: projectId,
		l:         log.Logger(log.LOG_GITLAB),
	}

	user, resp, err := client.Users.CurrentUser()
	if err != nil {
		if statusIs(resp, http.StatusUnauthorized) {
			return nil, fmt.Errorf("could not authenticate: %w", ErrAuthentication)
		}
		return nil, fmt.Errorf("could not authenticate: %w", err)
	}

	project, resp, err := client.Projects.GetProject(projectId, nil)
	if err != nil {
		if statusIs(resp, http.StatusNotFound) {
			return nil, fmt.Errorf("could not get project %s: %w", projectId, ErrProjectNotFound)
		}
		return nil, fmt.Errorf("could not get project %s: %w", projectId, err)
	}

	g.l.WithFields(logrus.Fields{
		"user":    user.Username,
		"project": project.PathWithNamespace,
	}).Debug("Authenticated to gitlab")

	return g, nil
}

func statusIs(resp *gogitlab.Response, status int) bool {
	return resp != nil && resp.Response != nil && resp.StatusCode == status
}

func (g *Gitlab) CreateIssue(issue *domain.Issue) error {
	created, _, err := g.client.Issues.CreateIssue(g.projectId, &gogitlab.CreateIssueOptions{
		Title:       gogitlab.Ptr(issue.Title),
		Description: gogitlab.Ptr(issue.Description),
	})
	if err != nil {
		return fmt.Errorf("could not create issue: %w", err)
	}

	g.l.WithFields(logrus.Fields{
		"iid": created.IID,
		"url": created.WebURL,
	}).Debug("Created issue")

	return nil
}
