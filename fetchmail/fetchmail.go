// SPDX-License-Identifier: GPL-3.0-or-later
package fetchmail

import (
	"fmt"

	"github.com/CrawX/gitlab-issue-by-mail/domain"
	"github.com/CrawX/gitlab-issue-by-mail/htmltext"
	"github.com/CrawX/gitlab-issue-by-mail/log"
	"github.com/CrawX/gitlab-issue-by-mail/mail"

	"github.com/sirupsen/logrus"
)

const NoSubject = "(no subject)"

type FetchMail struct {
	mailbox domain.Mailbox
	tracker domain.IssueTracker

	configuration *configuration

	l *logrus.Logger
}

func NewFetchMail(mailbox domain.Mailbox, tracker domain.IssueTracker, configFunc ...ConfigFunc) (*FetchMail, error) {
	config := defaultConfiguration()
	for _, f := range configFunc {
		err := f(config)
		if err != nil {
			return nil, fmt.Errorf("error applying configuration: %w", err)
		}
	}

	return &FetchMail{
		mailbox:       mailbox,
		tracker:       tracker,
		configuration: config,
		l:             log.Logger(log.LOG_FETCHMAIL),
	}, nil
}

// Run turns every message currently in the mailbox into an issue. A message is marked for
// deletion right after its issue was created; the marks are committed once all messages are
// done. The first error aborts the run and leaves the remaining marks uncommitted.
func (fm *FetchMail) Run() (int, error) {
	mails, err := fm.mailbox.ListMessages()
	if err != nil {
		return 0, fmt.Errorf("could not list messages: %w", err)
	}

	fm.l.WithFields(logrus.Fields{"mails": len(mails), "dryrun": fm.configuration.DryRun}).Info("Processing mails")

	created := 0
	for _, m := range mails {
		issue, err := IssueFromMail(m.RawMail)
		if err != nil {
			return created, fmt.Errorf("could not convert mail %d: %w", m.Id, err)
		}

		baseLogger := fm.l.WithFields(logrus.Fields{"id": m.Id, "subject": mail.ShortSubject(issue.Title)})
		if fm.configuration.DryRun {
			baseLogger.Info("Skipping issue creation due to dry-run")
			continue
		}

		err = fm.tracker.CreateIssue(issue)
		if err != nil {
			return created, fmt.Errorf("could not create issue for mail %d: %w", m.Id, err)
		}
		created++
		baseLogger.Debug("Created issue")

		if fm.configuration.Verbose {
			fmt.Fprintf(fm.configuration.Output, "Created a new issue: %s\n", issue.Title)
		}

		err = fm.mailbox.Delete(m.Id)
		if err != nil {
			return created, fmt.Errorf("could not delete mail %d: %w", m.Id, err)
		}
	}

	fmt.Fprintln(fm.configuration.Output, Summary(created))

	if fm.configuration.DryRun {
		return created, nil
	}

	err = fm.mailbox.Commit()
	if err != nil {
		return created, fmt.Errorf("could not commit deletions: %w", err)
	}

	return created, nil
}

// IssueFromMail builds the issue for a raw message: the decoded subject becomes the title, the
// preferred body the fenced plain-text description.
func IssueFromMail(rawMail []byte) (*domain.Issue, error) {
	msg, err := mail.ParseMessage(rawMail)
	if err != nil {
		return nil, err
	}

	title := msg.Subject
	if len(title) == 0 {
		title = NoSubject
	}

	description := htmltext.Fence(msg.Body)
	if msg.IsHTML {
		description = htmltext.Convert(msg.Body)
	}

	return &domain.Issue{
		Title:       title,
		Description: description,
	}, nil
}

func Summary(created int) string {
	switch created {
	case 0:
		return "No new issue created"
	case 1:
		return "Created 1 new issue"
	}
	return fmt.Sprintf("Created %d new issues", created)
}
