// SPDX-License-Identifier: GPL-3.0-or-later
package pop3connection

//go:generate mockgen -destination=pop3_mocks_test.go -package=pop3connection -source pop3.go
import (
	"bytes"
	"fmt"
	"time"

	"github.com/CrawX/gitlab-issue-by-mail/domain"
	"github.com/CrawX/gitlab-issue-by-mail/log"

	"github.com/knadh/go-pop3"
	"github.com/sirupsen/logrus"
)

const DialTimeout = 30 * time.Second

type Options struct {
	Server             string
	Port               int
	TLS                bool
	InsecureSkipVerify bool
	User               string
	Password           string
}

type pop3Conn interface {
	List(msgID int) ([]pop3.MessageID, error)
	RetrRaw(msgID int) (*bytes.Buffer, error)
	Dele(msgID ...int) error
	Rset() error
	Quit() error
}

// Pop3Connection implements domain.Mailbox on a single POP3 session. Deletions
// only take effect when the session ends with QUIT, so Commit ends the session.
type Pop3Connection struct {
	connection pop3Conn
	server     string

	pending int
	closed  bool

	l *logrus.Logger
}

func NewPop3Connection(opts Options) (*Pop3Connection, error) {
	client := pop3.New(pop3.Opt{
		Host:          opts.Server,
		Port:          opts.Port,
		DialTimeout:   DialTimeout,
		TLSEnabled:    opts.TLS,
		TLSSkipVerify: opts.InsecureSkipVerify,
	})

	c, err := client.NewConn()
	if err != nil {
		return nil, fmt.Errorf("could not dial to pop3: %w", err)
	}

	err = c.Auth(opts.User, opts.Password)
	if err != nil {
		_ = c.Quit()
		return nil, fmt.Errorf("could not login to pop3: %w", err)
	}

	conn := &Pop3Connection{
		connection: c,
		server:     opts.Server,
		l:          log.Logger(log.LOG_POP3),
	}
	conn.l.WithField("server", opts.Server).Debug("Logged in to server")

	return conn, nil
}

func (pc *Pop3Connection) ListMessages() ([]*domain.RawMail, error) {
	msgIds, err := pc.connection.List(0)
	if err != nil {
		return nil, fmt.Errorf("could not list messages: %w", err)
	}

	mails := []*domain.RawMail{}
	for _, msgId := range msgIds {
		raw, err := pc.connection.RetrRaw(msgId.ID)
		if err != nil {
			return nil, fmt.Errorf("could not retrieve message %d: %w", msgId.ID, err)
		}

		mails = append(mails, &domain.RawMail{
			Id:      uint32(msgId.ID),
			RawMail: raw.Bytes(),
		})
	}

	pc.l.WithFields(logrus.Fields{"server": pc.server, "mails": len(mails)}).Debug("Fetched mails")
	return mails, nil
}

func (pc *Pop3Connection) Delete(id uint32) error {
	if pc.closed {
		return fmt.Errorf("could not delete message %d: session already closed", id)
	}

	err := pc.connection.Dele(int(id))
	if err != nil {
		return fmt.Errorf("could not delete message %d: %w", id, err)
	}

	pc.pending++
	return nil
}

func (pc *Pop3Connection) Commit() error {
	if pc.closed {
		return nil
	}

	err := pc.connection.Quit()
	if err != nil {
		return fmt.Errorf("could not commit deletions: %w", err)
	}

	pc.closed = true
	pc.l.WithFields(logrus.Fields{"server": pc.server, "deleted": pc.pending}).Debug("Session closed, deletions committed")
	pc.pending = 0
	return nil
}

func (pc *Pop3Connection) Close() error {
	if pc.closed {
		return nil
	}

	if pc.pending > 0 {
		// QUIT would apply the deletions, so a failed RSET leaves the session unterminated
		err := pc.connection.Rset()
		if err != nil {
			return fmt.Errorf("could not reset uncommitted deletions: %w", err)
		}
		pc.l.WithFields(logrus.Fields{"server": pc.server, "uncommitted": pc.pending}).Info("Reset uncommitted deletions")
		pc.pending = 0
	}

	pc.closed = true
	return pc.connection.Quit()
}
