package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/wondertwin-ai/twin-ses/internal/normalize"
	"github.com/wondertwin-ai/twin-ses/internal/schema"
	"github.com/wondertwin-ai/twin-ses/internal/store"
	"github.com/wondertwin-ai/twin-ses/internal/template"
	"github.com/wondertwin-ai/twin-ses/internal/twincore"
)

// SendEmailV2 handles POST /v2/email/outbound-emails.
func (h *Handler) SendEmailV2(w http.ResponseWriter, r *http.Request) {
	var body map[string]any
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodySize)).Decode(&body); err != nil {
		schemaFailure(w, fmt.Errorf("invalid JSON body: %w", err))
		return
	}

	var messageID string
	err := contain(func() error {
		var err error
		messageID, err = h.sendEmailV2(body)
		return err
	})
	if err != nil {
		var ve *schema.ValidationError
		if errors.As(err, &ve) {
			schemaFailure(w, err)
			return
		}
		h.logger.Error("v2 send failed", "error", err)
		twincore.JSON(w, http.StatusInternalServerError, map[string]string{
			"message": "InternalFailure",
			"detail":  "twin-ses: " + err.Error(),
		})
		return
	}

	twincore.JSON(w, http.StatusOK, map[string]string{"MessageId": messageID})
}

func (h *Handler) sendEmailV2(body map[string]any) (string, error) {
	if err := sendEmailV2Schema.Validate(body); err != nil {
		return "", err
	}
	env := normalize.Normalize(normalize.DecodeModern(body))
	content := body["Content"].(map[string]any)

	simple, hasSimple := content["Simple"].(map[string]any)
	raw, hasRaw := content["Raw"].(map[string]any)
	tmpl, hasTemplate := content["Template"].(map[string]any)

	switch {
	case hasSimple && !hasRaw && !hasTemplate:
		rec := h.appendEmail(env, nestedData(simple, "Subject"), store.Body{
			Text: store.NewContent(nestedData(simple, "Body", "Text")),
			HTML: store.NewContent(nestedData(simple, "Body", "Html")),
		})
		return rec.MessageID, nil

	case hasRaw && !hasSimple && !hasTemplate:
		msg, err := parseRaw(raw["Data"].(string))
		if err != nil {
			return "", err
		}
		env = withMessageHeaders(env, msg)
		rec := h.appendEmail(env, msg.Subject, store.Body{
			Text: store.NewContent(msg.Text),
			HTML: store.NewContent(msg.HTML),
		})
		return rec.MessageID, nil

	case hasTemplate && !hasSimple && !hasRaw:
		t, err := h.resolveV2Template(tmpl)
		if err != nil {
			return "", err
		}
		rec := h.appendEmail(env, t.Subject.Data, templateBody(t))
		return rec.MessageID, nil
	}

	return "", &schema.ValidationError{
		Schema: sendEmailV2Schema.Name,
		Path:   "Content",
		Reason: "must contain exactly one of Simple, Raw or Template",
	}
}

// resolveV2Template renders either inline TemplateContent or a named template.
func (h *Handler) resolveV2Template(tmpl map[string]any) (*template.Template, error) {
	data, err := template.ParseDataValue(tmpl["TemplateData"])
	if err != nil {
		return nil, err
	}

	if inline, ok := tmpl["TemplateContent"].(map[string]any); ok {
		t := &template.Template{Subject: template.Content{Data: stringValue(inline["Subject"])}}
		if s, ok := inline["Text"].(string); ok {
			t.Body.Text = &template.Content{Data: s}
		}
		if s, ok := inline["Html"].(string); ok {
			t.Body.HTML = &template.Content{Data: s}
		}
		return t.Render(data), nil
	}

	name, _ := tmpl["TemplateName"].(string)
	if name == "" {
		return nil, &schema.ValidationError{
			Schema: sendEmailV2Schema.Name,
			Path:   "Content.Template",
			Reason: "requires TemplateName or TemplateContent",
		}
	}
	return h.templates.Resolve(name, data)
}

// nestedData follows keys through nested objects and returns the Data
// string at the end, or "".
func nestedData(m map[string]any, keys ...string) string {
	for _, k := range keys {
		next, ok := m[k].(map[string]any)
		if !ok {
			return ""
		}
		m = next
	}
	return stringValue(m["Data"])
}

func stringValue(v any) string {
	s, _ := v.(string)
	return s
}
