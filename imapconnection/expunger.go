// SPDX-License-Identifier: GPL-3.0-or-later
package imapconnection

//go:generate mockgen -destination=expunger_mocks_test.go -package=imapconnection -source expunger.go
import (
	"fmt"

	"github.com/emersion/go-imap"
)

type expunger interface {
	expunge(uids []uint32) error
}

type uidExpunger interface {
	UidExpunge(seqSet *imap.SeqSet, ch chan uint32) error
}

type uidPlusExpunger struct {
	uidplusClient uidExpunger
}

func (u *uidPlusExpunger) expunge(uids []uint32) error {
	seqset := &imap.SeqSet{}
	seqset.AddNum(uids...)

	out := make(chan uint32)
	done := make(chan error, 1)
	go func() {
		done <- u.uidplusClient.UidExpunge(seqset, out)
	}()

	expunged := []uint32{}
	for uid := range out {
		expunged = append(expunged, uid)
	}

	err := <-done
	if err != nil {
		return fmt.Errorf("could not expunge mails: %w", err)
	}

	if len(expunged) != len(uids) {
		return fmt.Errorf("unexpected number of expunges, expected %d got %d", len(uids), len(expunged))
	}

	return nil
}

type deletedSearcherAndExpunger interface {
	Expunge(ch chan uint32) error
	UidSearch(criteria *imap.SearchCriteria) (uids []uint32, err error)
}

type compatibilityExpunger struct {
	imapConn deletedSearcherAndExpunger
}

func (c *compatibilityExpunger) expunge(uids []uint32) error {
	// EXPUNGE removes everything that has the flag set, not only the given uids
	criteria := imap.NewSearchCriteria()
	criteria.WithFlags = []string{imap.DeletedFlag}
	flagged, err := c.imapConn.UidSearch(criteria)
	if err != nil {
		return fmt.Errorf("could not search for deleted in folder: %w", err)
	}

	marked := make(map[uint32]bool, len(uids))
	for _, uid := range uids {
		marked[uid] = true
	}
	for _, uid := range flagged {
		if !marked[uid] {
			return fmt.Errorf("folder is not ready for expunge: %w", ItemsWithDeletedFlagPresent)
		}
	}

	out := make(chan uint32)
	done := make(chan error, 1)
	go func() {
		done <- c.imapConn.Expunge(out)
	}()

	expunged := []uint32{}
	for seqNum := range out {
		expunged = append(expunged, seqNum)
	}

	err = <-done
	if err != nil {
		return fmt.Errorf("could not expunge mails: %w", err)
	}

	if len(expunged) != len(uids) {
		return fmt.Errorf("unexpected number of expunges, expected %d got %d", len(uids), len(expunged))
	}

	return nil
}

var ItemsWithDeletedFlagPresent = fmt.Errorf("folder has other items with delete flag set")
