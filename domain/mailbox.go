// SPDX-License-Identifier: GPL-3.0-or-later
package domain

//go:generate mockgen -destination=mocks/mailbox.go -package=mocks . Mailbox

// RawMail is a message as retrieved from the mailbox. Id is the IMAP UID or the POP3 message number.
type RawMail struct {
	Id      uint32
	RawMail []byte
}

// Mailbox lists messages and removes them in two phases: Delete only marks a message, Commit makes
// all marks durable. Close releases the connection and discards marks that were not committed.
type Mailbox interface {
	ListMessages() ([]*RawMail, error)
	Delete(id uint32) error
	Commit() error

	Close() error
}
