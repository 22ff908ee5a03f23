// SPDX-License-Identifier: GPL-3.0-or-later
package mail

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"mime"
	"strings"

	"github.com/emersion/go-message"
	"github.com/emersion/go-message/charset"
	gomail "github.com/emersion/go-message/mail"
)

const (
	mediaTypeHTML  = "text/html"
	mediaTypePlain = "text/plain"
)

// Message is the part of a mail that becomes an issue.
type Message struct {
	Subject string
	Body    string
	IsHTML  bool
}

// DecodeSubject decodes RFC 2047 encoded-words and unfolds the header value.
func DecodeSubject(subjectHeader string) (string, error) {
	dec := &mime.WordDecoder{
		CharsetReader: charset.Reader,
	}
	subject, err := dec.DecodeHeader(subjectHeader)
	if err != nil {
		return "", fmt.Errorf("could not decode subject header: %w", err)
	}

	subject = strings.NewReplacer("\r\n", "", "\n", "").Replace(subject)
	return strings.TrimSpace(subject), nil
}

// ParseMessage reads the decoded subject and the preferred body of rawMail. An inline
// text/html part wins over text/plain; attachments are ignored. Parts in an unknown charset
// are returned undecoded.
func ParseMessage(rawMail []byte) (*Message, error) {
	// an unknown top-level charset still yields a reader over the undecoded body
	mr, err := gomail.CreateReader(bytes.NewReader(rawMail))
	if err != nil && !message.IsUnknownCharset(err) {
		return nil, fmt.Errorf("could not parse mail: %w", err)
	}
	defer mr.Close()

	subject, err := DecodeSubject(mr.Header.Get("Subject"))
	if err != nil {
		return nil, err
	}

	var htmlBody, plainBody string
	for {
		p, err := mr.NextPart()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil && !message.IsUnknownCharset(err) {
			return nil, fmt.Errorf("could not read mail part: %w", err)
		}
		if p == nil {
			continue
		}

		h, ok := p.Header.(*gomail.InlineHeader)
		if !ok {
			continue
		}

		mediaType, _, err := h.ContentType()
		if err != nil || len(mediaType) == 0 {
			mediaType = mediaTypePlain
		}

		if mediaType != mediaTypeHTML && mediaType != mediaTypePlain {
			continue
		}

		body, err := io.ReadAll(p.Body)
		if err != nil {
			return nil, fmt.Errorf("could not read %s part: %w", mediaType, err)
		}

		if mediaType == mediaTypeHTML && len(htmlBody) == 0 {
			htmlBody = string(body)
		} else if mediaType == mediaTypePlain && len(plainBody) == 0 {
			plainBody = string(body)
		}
	}

	if len(htmlBody) > 0 {
		return &Message{Subject: subject, Body: htmlBody, IsHTML: true}, nil
	}

	return &Message{Subject: subject, Body: plainBody}, nil
}

func ShortSubject(subject string) string {
	runes := []rune(subject)
	if len(runes) > 30 {
		subject = string(runes[:30]) + "..."
	}
	return subject
}
