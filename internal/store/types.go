// Package store defines the SES twin's email record and its in-memory store.
package store

// EmailRecord is one email accepted by the twin, in the shape served by GET /store.
type EmailRecord struct {
	MessageID   string       `json:"messageId"`
	From        string       `json:"from"`
	ReplyTo     []string     `json:"replyTo"`
	Destination Destination  `json:"destination"`
	Subject     string       `json:"subject"`
	Body        Body         `json:"body"`
	Attachments []Attachment `json:"attachments"`
	At          int64        `json:"at"`
}

// Destination holds the three recipient lists of an email.
type Destination struct {
	To  []string `json:"to"`
	Cc  []string `json:"cc"`
	Bcc []string `json:"bcc"`
}

// Body carries the optional text and html variants of an email.
type Body struct {
	Text *Content `json:"text,omitempty"`
	HTML *Content `json:"html,omitempty"`
}

// Content is a rendered body variant, shaped like SES's Content type.
type Content struct {
	Data string `json:"Data"`
}

// Attachment describes an attached file. Attachments are accepted but not parsed,
// so records always carry an empty list.
type Attachment struct {
	Filename    string `json:"filename"`
	ContentType string `json:"contentType"`
	Size        int    `json:"size"`
}

// NewContent returns a Content for data, or nil when data is empty.
func NewContent(data string) *Content {
	if data == "" {
		return nil
	}
	return &Content{Data: data}
}

// normalized replaces nil slices with empty ones so records never serialize nulls.
func (e EmailRecord) normalized() EmailRecord {
	e.ReplyTo = orEmpty(e.ReplyTo)
	e.Destination.To = orEmpty(e.Destination.To)
	e.Destination.Cc = orEmpty(e.Destination.Cc)
	e.Destination.Bcc = orEmpty(e.Destination.Bcc)
	if e.Attachments == nil {
		e.Attachments = []Attachment{}
	}
	return e
}

func orEmpty(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
