package normalize

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseFormKeepsWireOrder(t *testing.T) {
	body := "Action=SendEmail&Destination.ToAddresses.member.2=b%40example.com" +
		"&Destination.ToAddresses.member.1=a%40example.com&Message.Subject.Data=Hi+there"
	fields, err := ParseForm([]byte(body))
	require.NoError(t, err)

	assert.Equal(t, "SendEmail", fields.Get("Action"))
	assert.Equal(t, "Hi there", fields.Get("Message.Subject.Data"))
	assert.Equal(t, []string{"b@example.com", "a@example.com"},
		fields.WithPrefix("Destination.ToAddresses.member."))
}

func TestParseFormInvalidEscape(t *testing.T) {
	_, err := ParseForm([]byte("Source=%zz"))
	assert.Error(t, err)
}

func TestParseFormRepeatedKeyBecomesArray(t *testing.T) {
	fields, err := ParseForm([]byte("Source=a&Source=b"))
	require.NoError(t, err)
	assert.Equal(t, []any{"a", "b"}, fields.Map()["Source"])
}

func TestParseJSONFieldsKeepsKeyOrder(t *testing.T) {
	fields, err := ParseJSONFields([]byte(`{"Action":"SendEmail","ReplyToAddresses.member.9":"z@example.com","ReplyToAddresses.member.1":"y@example.com","N":3}`))
	require.NoError(t, err)

	assert.Equal(t, []string{"z@example.com", "y@example.com"}, fields.WithPrefix("ReplyToAddresses.member."))
	assert.Equal(t, float64(3), fields.Map()["N"])
	assert.Equal(t, "3", fields.Get("N"))
}

func TestParseJSONFieldsRejectsNonObject(t *testing.T) {
	_, err := ParseJSONFields([]byte(`["a"]`))
	assert.Error(t, err)

	_, err = ParseJSONFields([]byte(`{"a":`))
	assert.Error(t, err)
}

func TestWithPrefixEmpty(t *testing.T) {
	fields := Fields{{Key: "Source", Value: "a@example.com"}}
	assert.Equal(t, []string{}, fields.WithPrefix("Destination.CcAddresses.member."))
	assert.Equal(t, []string{}, fields.WithPrefix(""))
}

func TestDecodeLegacyMissingListsAreEmpty(t *testing.T) {
	fields := Fields{
		{Key: "Source", Value: "sender@example.com"},
		{Key: "Destination.ToAddresses.member.1", Value: "receiver@example.com"},
	}
	env := Normalize(DecodeLegacy(fields, SendPrefixes))

	assert.Equal(t, "sender@example.com", env.From)
	assert.Equal(t, []string{"receiver@example.com"}, env.Destination.To)
	assert.Equal(t, []string{}, env.Destination.Cc)
	assert.Equal(t, []string{}, env.Destination.Bcc)
	assert.Equal(t, []string{}, env.ReplyTo)
}

func TestDecodeLegacyRawPrefixes(t *testing.T) {
	fields := Fields{
		{Key: "Destinations.member.1", Value: "a@example.com"},
		{Key: "Destinations.member.2", Value: "b@example.com"},
	}
	env := Normalize(DecodeLegacy(fields, RawPrefixes))
	assert.Equal(t, []string{"a@example.com", "b@example.com"}, env.Destination.To)
	assert.Equal(t, []string{}, env.ReplyTo)
}

func TestDecodeModern(t *testing.T) {
	var body map[string]any
	require.NoError(t, json.Unmarshal([]byte(`{
		"FromEmailAddress": "sender@example.com",
		"Destination": {"ToAddresses": ["a@example.com"], "BccAddresses": ["c@example.com"]},
		"ReplyToAddresses": ["r@example.com"]
	}`), &body))

	env := Normalize(DecodeModern(body))
	assert.Equal(t, "sender@example.com", env.From)
	assert.Equal(t, []string{"a@example.com"}, env.Destination.To)
	assert.Equal(t, []string{}, env.Destination.Cc)
	assert.Equal(t, []string{"c@example.com"}, env.Destination.Bcc)
	assert.Equal(t, []string{"r@example.com"}, env.ReplyTo)
}

func TestDecodeModernShortNames(t *testing.T) {
	var body map[string]any
	require.NoError(t, json.Unmarshal([]byte(`{"from":"s@example.com","to":["a@example.com"],"cc":["b@example.com"],"replyTo":["r@example.com"]}`), &body))

	env := Normalize(DecodeModern(body))
	assert.Equal(t, "s@example.com", env.From)
	assert.Equal(t, []string{"a@example.com"}, env.Destination.To)
	assert.Equal(t, []string{"b@example.com"}, env.Destination.Cc)
	assert.Equal(t, []string{"r@example.com"}, env.ReplyTo)
}

func TestDecodeModernDropsNulls(t *testing.T) {
	var body map[string]any
	require.NoError(t, json.Unmarshal([]byte(`{"Destination":{"ToAddresses":["a@example.com",null]}}`), &body))

	env := Normalize(DecodeModern(body))
	assert.Equal(t, []string{"a@example.com"}, env.Destination.To)
}

func TestEncodingsConverge(t *testing.T) {
	legacy := Fields{
		{Key: "Source", Value: "sender@example.com"},
		{Key: "Destination.ToAddresses.member.1", Value: "a@example.com"},
		{Key: "Destination.ToAddresses.member.2", Value: "b@example.com"},
		{Key: "Destination.CcAddresses.member.1", Value: "c@example.com"},
		{Key: "Destination.BccAddresses.member.1", Value: "d@example.com"},
		{Key: "ReplyToAddresses.member.1", Value: "r@example.com"},
	}
	var modern map[string]any
	require.NoError(t, json.Unmarshal([]byte(`{
		"FromEmailAddress": "sender@example.com",
		"Destination": {
			"ToAddresses": ["a@example.com", "b@example.com"],
			"CcAddresses": ["c@example.com"],
			"BccAddresses": ["d@example.com"]
		},
		"ReplyToAddresses": ["r@example.com"]
	}`), &modern))

	assert.Equal(t, Normalize(DecodeLegacy(legacy, SendPrefixes)), Normalize(DecodeModern(modern)))
}
