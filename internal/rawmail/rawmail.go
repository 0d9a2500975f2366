// Package rawmail extracts the parts of a raw MIME message that the SES twin
// records: header addresses, subject and the first text and html bodies.
// Attachments are skipped. Bodies and encoded header words are converted to
// UTF-8 from their declared charset.
package rawmail

import (
	"bytes"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/emersion/go-message"
	_ "github.com/emersion/go-message/charset"
	"github.com/emersion/go-message/mail"
)

// Message is the parsed view of a raw email.
type Message struct {
	From    string
	To      []string
	Cc      []string
	Bcc     []string
	ReplyTo []string
	Subject string
	Text    string
	HTML    string
}

// maxDepth bounds multipart nesting.
const maxDepth = 8

// DecodeBase64 decodes SES's RawMessage.Data, accepting padded or unpadded input.
func DecodeBase64(s string) ([]byte, error) {
	s = strings.TrimSpace(s)
	if b, err := base64.StdEncoding.DecodeString(s); err == nil {
		return b, nil
	}
	b, err := base64.RawStdEncoding.DecodeString(strings.TrimRight(s, "="))
	if err != nil {
		return nil, fmt.Errorf("RawMessage.Data is not valid base64: %w", err)
	}
	return b, nil
}

// Parse reads a MIME message. Parts declaring an unknown charset or transfer
// encoding are kept as they appear on the wire.
func Parse(data []byte) (*Message, error) {
	entity, err := message.Read(bytes.NewReader(data))
	if err != nil && !lenient(err) {
		return nil, fmt.Errorf("reading message: %w", err)
	}

	h := mail.Header{Header: entity.Header}
	m := &Message{
		From:    headerText(h, "From"),
		To:      addressList(h, "To"),
		Cc:      addressList(h, "Cc"),
		Bcc:     addressList(h, "Bcc"),
		ReplyTo: addressList(h, "Reply-To"),
		Subject: headerText(h, "Subject"),
	}

	err = entity.Walk(func(path []int, part *message.Entity, err error) error {
		if err != nil && !lenient(err) {
			return err
		}
		if len(path) > maxDepth {
			return errors.New("multipart nesting too deep")
		}
		return m.readPart(part)
	})
	if err != nil {
		return nil, fmt.Errorf("reading message body: %w", err)
	}
	return m, nil
}

func lenient(err error) bool {
	return message.IsUnknownCharset(err) || message.IsUnknownEncoding(err)
}

func (m *Message) readPart(part *message.Entity) error {
	if part.MultipartReader() != nil {
		return nil
	}
	if disp, _, err := part.Header.ContentDisposition(); err == nil && disp == "attachment" {
		return nil
	}

	mediaType, _, err := part.Header.ContentType()
	if err != nil || mediaType == "" {
		mediaType = "text/plain"
	}

	var dst *string
	switch mediaType {
	case "text/plain":
		dst = &m.Text
	case "text/html":
		dst = &m.HTML
	default:
		return nil
	}
	if *dst != "" {
		return nil
	}
	b, err := io.ReadAll(part.Body)
	if err != nil {
		return fmt.Errorf("reading %s body: %w", mediaType, err)
	}
	*dst = string(b)
	return nil
}

func headerText(h mail.Header, key string) string {
	v, _ := h.Text(key)
	return strings.TrimSpace(v)
}

// addressList returns the addresses of a header as "Name <addr>" or "addr".
// Unparseable headers fall back to comma splitting.
func addressList(h mail.Header, key string) []string {
	out := make([]string, 0)
	if h.Get(key) == "" {
		return out
	}
	list, err := h.AddressList(key)
	if err != nil {
		for _, part := range strings.Split(headerText(h, key), ",") {
			if p := strings.TrimSpace(part); p != "" {
				out = append(out, p)
			}
		}
		return out
	}
	for _, a := range list {
		if a.Name == "" {
			out = append(out, a.Address)
		} else {
			out = append(out, fmt.Sprintf("%s <%s>", a.Name, a.Address))
		}
	}
	return out
}
