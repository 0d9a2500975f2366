// Package normalize converts the two SES wire encodings of an email's
// addressing into one canonical Envelope.
//
// The legacy (query) API flattens lists into indexed sibling fields such as
// "Destination.ToAddresses.member.1"; the v2 API sends nested JSON lists.
// Each encoding has its own decoder producing an Encoded value, and Normalize
// is the single place both converge.
package normalize

import (
	"github.com/wondertwin-ai/twin-ses/internal/store"
)

// Envelope is the canonical sender and recipient set of an email.
type Envelope struct {
	From        string
	ReplyTo     []string
	Destination store.Destination
}

// Encoded is either LegacyEncoded or ModernEncoded.
type Encoded interface {
	encoded()
}

// ListPrefixes names the indexed-field prefix of each logical address list.
// An empty prefix means the operation has no such list.
type ListPrefixes struct {
	To      string
	Cc      string
	Bcc     string
	ReplyTo string
}

// SendPrefixes are the prefixes used by SendEmail and SendTemplatedEmail.
var SendPrefixes = ListPrefixes{
	To:      "Destination.ToAddresses.member.",
	Cc:      "Destination.CcAddresses.member.",
	Bcc:     "Destination.BccAddresses.member.",
	ReplyTo: "ReplyToAddresses.member.",
}

// RawPrefixes are the prefixes used by SendRawEmail, whose only list is the
// flat "Destinations" member list.
var RawPrefixes = ListPrefixes{
	To: "Destinations.member.",
}

// LegacyEncoded is an address set carried as indexed sibling fields.
type LegacyEncoded struct {
	Source  string
	To      []string
	Cc      []string
	Bcc     []string
	ReplyTo []string
}

func (LegacyEncoded) encoded() {}

// ModernEncoded is an address set carried as nested JSON lists.
type ModernEncoded struct {
	From        string
	Destination map[string]any
	ReplyTo     []any
}

func (ModernEncoded) encoded() {}

// DecodeLegacy collects each list from the fields sharing its prefix.
func DecodeLegacy(fields Fields, prefixes ListPrefixes) LegacyEncoded {
	return LegacyEncoded{
		Source:  fields.Get("Source"),
		To:      fields.WithPrefix(prefixes.To),
		Cc:      fields.WithPrefix(prefixes.Cc),
		Bcc:     fields.WithPrefix(prefixes.Bcc),
		ReplyTo: fields.WithPrefix(prefixes.ReplyTo),
	}
}

// DecodeModern reads the v2 addressing keys from a decoded JSON body.
// Short names (to, cc, bcc, replyTo) are accepted alongside the SES names.
func DecodeModern(body map[string]any) ModernEncoded {
	enc := ModernEncoded{Destination: map[string]any{}}
	if from, ok := body["FromEmailAddress"].(string); ok {
		enc.From = from
	} else if from, ok := body["from"].(string); ok {
		enc.From = from
	}
	if dest, ok := body["Destination"].(map[string]any); ok {
		enc.Destination = dest
	} else {
		// Flat short-name lists live directly on the body.
		enc.Destination = body
	}
	enc.ReplyTo = firstList(body, "ReplyToAddresses", "replyTo")
	return enc
}

// Normalize converts either encoding to an Envelope. Missing lists become
// empty slices, never nil.
func Normalize(e Encoded) Envelope {
	switch e := e.(type) {
	case LegacyEncoded:
		return Envelope{
			From:    e.Source,
			ReplyTo: nonNil(e.ReplyTo),
			Destination: store.Destination{
				To:  nonNil(e.To),
				Cc:  nonNil(e.Cc),
				Bcc: nonNil(e.Bcc),
			},
		}
	case ModernEncoded:
		return Envelope{
			From:    e.From,
			ReplyTo: stringList(e.ReplyTo),
			Destination: store.Destination{
				To:  stringList(firstList(e.Destination, "ToAddresses", "to")),
				Cc:  stringList(firstList(e.Destination, "CcAddresses", "cc")),
				Bcc: stringList(firstList(e.Destination, "BccAddresses", "bcc")),
			},
		}
	}
	return Envelope{
		ReplyTo:     []string{},
		Destination: store.Destination{To: []string{}, Cc: []string{}, Bcc: []string{}},
	}
}

func firstList(m map[string]any, keys ...string) []any {
	for _, k := range keys {
		if l, ok := m[k].([]any); ok {
			return l
		}
	}
	return nil
}

// stringList keeps the string elements of l; null or non-string entries are dropped.
func stringList(l []any) []string {
	out := make([]string, 0, len(l))
	for _, v := range l {
		if s, ok := v.(string); ok {
			out = append(out, s)
		}
	}
	return out
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
