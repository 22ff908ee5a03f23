// SPDX-License-Identifier: GPL-3.0-or-later
package domain

//go:generate mockgen -destination=mocks/issuetracker.go -package=mocks . IssueTracker
type Issue struct {
	Title       string
	Description string
}

type IssueTracker interface {
	CreateIssue(issue *Issue) error
}
