// SPDX-License-Identifier: GPL-3.0-or-later
package imapconnection

//go:generate mockgen -destination=imap_mocks_test.go -package=imapconnection -source imap.go
import (
	"crypto/tls"
	"fmt"
	"io"
	"net"
	"sort"
	"strconv"

	"github.com/CrawX/gitlab-issue-by-mail/domain"
	"github.com/CrawX/gitlab-issue-by-mail/log"

	"github.com/emersion/go-imap"
	"github.com/emersion/go-imap-uidplus"
	"github.com/emersion/go-imap/client"
	"github.com/sirupsen/logrus"
)

type Security int

const (
	SecurityNone Security = iota
	SecurityStartTLS
	SecurityTLS
)

type Options struct {
	Server             string
	Port               int
	Security           Security
	InsecureSkipVerify bool
	User               string
	Password           string
	Mailbox            string
}

type imapClient interface {
	UidSearch(criteria *imap.SearchCriteria) ([]uint32, error)
	UidFetch(seqset *imap.SeqSet, items []imap.FetchItem, ch chan *imap.Message) error
	UidStore(seqset *imap.SeqSet, item imap.StoreItem, value interface{}, ch chan *imap.Message) error
	Logout() error
}

type ImapConnection struct {
	connection   imapClient
	mailExpunger expunger

	server, mailbox string

	// flagged as deleted but not expunged yet
	pending []uint32

	l *logrus.Logger
}

func NewImapConnection(opts Options) (*ImapConnection, error) {
	address := net.JoinHostPort(opts.Server, strconv.Itoa(opts.Port))
	tlsConfig := &tls.Config{
		ServerName:         opts.Server,
		InsecureSkipVerify: opts.InsecureSkipVerify,
	}

	var (
		c   *client.Client
		err error
	)
	if opts.Security == SecurityTLS {
		c, err = client.DialTLS(address, tlsConfig)
	} else {
		c, err = client.Dial(address)
	}
	if err != nil {
		return nil, fmt.Errorf("could not dial to imap: %w", err)
	}

	conn, err := setupConnection(c, opts, tlsConfig)
	if err != nil {
		_ = c.Logout()
		return nil, err
	}

	return conn, nil
}

func setupConnection(c *client.Client, opts Options, tlsConfig *tls.Config) (*ImapConnection, error) {
	if opts.Security == SecurityStartTLS {
		err := c.StartTLS(tlsConfig)
		if err != nil {
			return nil, fmt.Errorf("could not start tls: %w", err)
		}
	}

	err := c.Login(opts.User, opts.Password)
	if err != nil {
		return nil, fmt.Errorf("could not login to imap: %w", err)
	}

	mailbox := opts.Mailbox
	if len(mailbox) == 0 {
		mailbox = imap.InboxName
	}

	_, err = c.Select(mailbox, false)
	if err != nil {
		return nil, fmt.Errorf("could not select folder %s: %w", mailbox, err)
	}

	uidPlusClient := uidplus.NewClient(c)
	uidPlusSupported, err := uidPlusClient.SupportUidPlus()
	if err != nil {
		return nil, fmt.Errorf("could not check for UIDPLUS support: %w", err)
	}

	conn := &ImapConnection{
		connection: c,
		server:     opts.Server,
		mailbox:    mailbox,
		l:          log.Logger(log.LOG_IMAP),
	}

	baseLogger := conn.l.WithFields(logrus.Fields{"server": opts.Server, "folder": mailbox})
	baseLogger.Debug("Logged in to server")

	if uidPlusSupported {
		baseLogger.Debug("UIDPLUS supported on server, using UID expunge")
		conn.mailExpunger = &uidPlusExpunger{
			uidplusClient: uidPlusClient,
		}
	} else {
		baseLogger.Info("UIDPLUS not supported on server, falling back to plain expunge")
		conn.mailExpunger = &compatibilityExpunger{
			imapConn: c,
		}
	}

	return conn, nil
}

func (ic *ImapConnection) ListMessages() ([]*domain.RawMail, error) {
	// Get all UIDs in folder (empty search criteria)
	criteria := imap.NewSearchCriteria()
	uids, err := ic.connection.UidSearch(criteria)
	if err != nil {
		return nil, fmt.Errorf("could not list folder: %w", err)
	}

	if len(uids) == 0 {
		return []*domain.RawMail{}, nil
	}

	seqset := &imap.SeqSet{}
	seqset.AddNum(uids...)

	fullBodySection := &imap.BodySectionName{
		Peek: true,
	}
	fetchItems := []imap.FetchItem{imap.FetchUid, fullBodySection.FetchItem()}

	messages := make(chan *imap.Message, 10)
	done := make(chan error, 1)
	go func() {
		done <- ic.connection.UidFetch(seqset, fetchItems, messages)
	}()

	mails := []*domain.RawMail{}
	var readErr error
	for msg := range messages {
		if readErr != nil {
			continue
		}

		r := msg.GetBody(fullBodySection)
		if r == nil {
			readErr = fmt.Errorf("server returned no body for uid %d", msg.Uid)
			continue
		}

		rawBody, err := io.ReadAll(r)
		if err != nil {
			readErr = fmt.Errorf("could not read mail body: %w", err)
			continue
		}

		mails = append(
			mails,
			&domain.RawMail{
				Id:      msg.Uid,
				RawMail: rawBody,
			},
		)
	}

	err = <-done
	if err != nil {
		return nil, fmt.Errorf("could not fetch mails: %w", err)
	}
	if readErr != nil {
		return nil, readErr
	}

	sort.Slice(mails, func(i, j int) bool { return mails[i].Id < mails[j].Id })

	ic.l.WithFields(logrus.Fields{"server": ic.server, "folder": ic.mailbox, "mails": len(mails)}).Debug("Fetched mails")
	return mails, nil
}

func (ic *ImapConnection) Delete(uid uint32) error {
	err := ic.storeDeletedFlag([]uint32{uid}, imap.AddFlags)
	if err != nil {
		return fmt.Errorf("could not set delete flag: %w", err)
	}

	ic.pending = append(ic.pending, uid)
	return nil
}

func (ic *ImapConnection) Commit() error {
	if len(ic.pending) == 0 {
		return nil
	}

	err := ic.mailExpunger.expunge(ic.pending)
	if err != nil {
		return err
	}

	ic.l.WithFields(logrus.Fields{"folder": ic.mailbox, "expunged": len(ic.pending)}).Debug("Expunged mails")
	ic.pending = nil
	return nil
}

func (ic *ImapConnection) Close() error {
	if len(ic.pending) > 0 {
		baseLogger := ic.l.WithFields(logrus.Fields{"folder": ic.mailbox, "uncommitted": len(ic.pending)})
		err := ic.storeDeletedFlag(ic.pending, imap.RemoveFlags)
		if err != nil {
			baseLogger.WithField("error", err).Warn("Could not remove delete flag from uncommitted mails")
		} else {
			baseLogger.Info("Removed delete flag from uncommitted mails")
			ic.pending = nil
		}
	}

	return ic.connection.Logout()
}

func (ic *ImapConnection) storeDeletedFlag(uids []uint32, op imap.FlagsOp) error {
	seqset := &imap.SeqSet{}
	seqset.AddNum(uids...)
	return ic.connection.UidStore(seqset, imap.FormatFlagsOp(op, true), []interface{}{imap.DeletedFlag}, nil)
}
