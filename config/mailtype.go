// SPDX-License-Identifier: GPL-3.0-or-later
package config

import (
	"fmt"
	"strings"
)

// MailType selects protocol and transport security of the mail connection.
type MailType string

const (
	MailImap         MailType = "imap"
	MailImapStartTLS MailType = "imap/tls"
	MailImapTLS      MailType = "imap/ssl"
	MailPop3         MailType = "pop3"
	MailPop3TLS      MailType = "pop3/ssl"
)

var mailTypeAliases = map[string]MailType{
	"":         MailImap,
	"imap":     MailImap,
	"imap/tls": MailImapStartTLS,
	"imap/ssl": MailImapTLS,
	"imaps":    MailImapTLS,
	"pop3":     MailPop3,
	"pop3/ssl": MailPop3TLS,
	"pop3s":    MailPop3TLS,
}

func ParseMailType(mailType string) (MailType, error) {
	t, ok := mailTypeAliases[strings.ToLower(strings.TrimSpace(mailType))]
	if !ok {
		return "", fmt.Errorf("mail.type %q unknown, use imap, imap/tls, imap/ssl, pop3 or pop3/ssl", mailType)
	}
	return t, nil
}

func (t MailType) IsPop3() bool {
	return t == MailPop3 || t == MailPop3TLS
}
