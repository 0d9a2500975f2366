package api

import (
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"strings"

	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/wondertwin-ai/twin-ses/internal/normalize"
	"github.com/wondertwin-ai/twin-ses/internal/rawmail"
	"github.com/wondertwin-ai/twin-ses/internal/schema"
	"github.com/wondertwin-ai/twin-ses/internal/store"
	"github.com/wondertwin-ai/twin-ses/internal/template"
	"github.com/wondertwin-ai/twin-ses/internal/twincore"
)

// sendResponse is the success document of every legacy send action, e.g.
// <SendEmailResponse><SendEmailResult><MessageId>.
type sendResponse struct {
	XMLName          xml.Name
	Xmlns            string `xml:"xmlns,attr"`
	Result           sendResult
	ResponseMetadata twincore.ResponseMetadata
}

type sendResult struct {
	XMLName   xml.Name
	MessageID string `xml:"MessageId"`
}

func newSendResponse(action Action, messageID, requestID string) sendResponse {
	return sendResponse{
		XMLName: xml.Name{Local: action.String() + "Response"},
		Xmlns:   twincore.SESNamespace,
		Result: sendResult{
			XMLName:   xml.Name{Local: action.String() + "Result"},
			MessageID: messageID,
		},
		ResponseMetadata: twincore.ResponseMetadata{RequestID: requestID},
	}
}

// handlerFailure is the document written when a legacy handler fails.
type handlerFailure struct {
	XMLName xml.Name `xml:"Error"`
	Code    int      `xml:"Code"`
	Message string   `xml:"Message"`
}

// Legacy handles POST /, dispatching on the Action field.
func (h *Handler) Legacy(w http.ResponseWriter, r *http.Request) {
	fields, err := readFields(w, r)
	if err != nil {
		twincore.SESError(w, r, http.StatusBadRequest, "Sender", "MalformedQueryString", err.Error())
		return
	}

	raw := fields.Get("Action")
	action := ParseAction(raw)

	var messageID string
	err = contain(func() error {
		var err error
		switch action {
		case ActionSendEmail:
			messageID, err = h.sendEmail(fields)
		case ActionSendRawEmail:
			messageID, err = h.sendRawEmail(fields)
		case ActionSendTemplatedEmail:
			messageID, err = h.sendTemplatedEmail(fields)
		case ActionUnknown:
			h.logger.Warn("unsupported action", "action", raw)
			twincore.SESError(w, r, http.StatusBadRequest, "Sender", "InvalidAction",
				fmt.Sprintf("The action %q is not supported by twin-ses", raw))
			return nil
		default:
			panic(fmt.Sprintf("unhandled action %d", action))
		}
		if err != nil {
			return err
		}
		twincore.XML(w, http.StatusOK, newSendResponse(action, messageID, chimw.GetReqID(r.Context())))
		return nil
	})
	if err == nil {
		return
	}

	var ve *schema.ValidationError
	if errors.As(err, &ve) {
		schemaFailure(w, err)
		return
	}
	h.logger.Error("legacy handler failed", "action", raw, "error", err)
	twincore.XML(w, http.StatusInternalServerError, handlerFailure{
		Code:    http.StatusInternalServerError,
		Message: err.Error(),
	})
}

// sendEmail handles Action=SendEmail.
func (h *Handler) sendEmail(fields normalize.Fields) (string, error) {
	if err := sendEmailSchema.Validate(fields.Map()); err != nil {
		return "", err
	}
	env := normalize.Normalize(normalize.DecodeLegacy(fields, normalize.SendPrefixes))
	rec := h.appendEmail(env, fields.Get("Message.Subject.Data"), store.Body{
		Text: store.NewContent(fields.Get("Message.Body.Text.Data")),
		HTML: store.NewContent(fields.Get("Message.Body.Html.Data")),
	})
	return rec.MessageID, nil
}

// sendRawEmail handles Action=SendRawEmail. Source and Destinations
// override the addresses found in the MIME headers.
func (h *Handler) sendRawEmail(fields normalize.Fields) (string, error) {
	if err := sendRawEmailSchema.Validate(fields.Map()); err != nil {
		return "", err
	}
	msg, err := parseRaw(fields.Get("RawMessage.Data"))
	if err != nil {
		return "", err
	}

	env := normalize.Normalize(normalize.DecodeLegacy(fields, normalize.RawPrefixes))
	env = withMessageHeaders(env, msg)
	rec := h.appendEmail(env, msg.Subject, store.Body{
		Text: store.NewContent(msg.Text),
		HTML: store.NewContent(msg.HTML),
	})
	return rec.MessageID, nil
}

// sendTemplatedEmail handles Action=SendTemplatedEmail.
func (h *Handler) sendTemplatedEmail(fields normalize.Fields) (string, error) {
	if err := sendTemplatedEmailSchema.Validate(fields.Map()); err != nil {
		return "", err
	}
	data, err := template.ParseData(fields.Get("TemplateData"))
	if err != nil {
		return "", err
	}
	tmpl, err := h.templates.Resolve(fields.Get("Template"), data)
	if err != nil {
		return "", err
	}

	env := normalize.Normalize(normalize.DecodeLegacy(fields, normalize.SendPrefixes))
	rec := h.appendEmail(env, tmpl.Subject.Data, templateBody(tmpl))
	return rec.MessageID, nil
}

func (h *Handler) appendEmail(env normalize.Envelope, subject string, body store.Body) store.EmailRecord {
	rec := h.store.Append(store.EmailRecord{
		MessageID:   h.store.NextMessageID(),
		From:        env.From,
		ReplyTo:     env.ReplyTo,
		Destination: env.Destination,
		Subject:     subject,
		Body:        body,
	})
	h.logger.Debug("email stored",
		"message_id", rec.MessageID,
		"from", rec.From,
		"to", rec.Destination.To,
		"at", rec.At,
	)
	return rec
}

func templateBody(t *template.Template) store.Body {
	var b store.Body
	if t.Body.Text != nil {
		b.Text = &store.Content{Data: t.Body.Text.Data}
	}
	if t.Body.HTML != nil {
		b.HTML = &store.Content{Data: t.Body.HTML.Data}
	}
	return b
}

func parseRaw(data string) (*rawmail.Message, error) {
	decoded, err := rawmail.DecodeBase64(data)
	if err != nil {
		return nil, fmt.Errorf("decoding raw message: %w", err)
	}
	msg, err := rawmail.Parse(decoded)
	if err != nil {
		return nil, fmt.Errorf("parsing raw message: %w", err)
	}
	return msg, nil
}

// withMessageHeaders fills the parts of env the request left empty from the
// headers of a raw message.
func withMessageHeaders(env normalize.Envelope, msg *rawmail.Message) normalize.Envelope {
	if env.From == "" {
		env.From = msg.From
	}
	if len(env.Destination.To)+len(env.Destination.Cc)+len(env.Destination.Bcc) == 0 {
		env.Destination = store.Destination{To: msg.To, Cc: msg.Cc, Bcc: msg.Bcc}
	}
	if len(env.ReplyTo) == 0 {
		env.ReplyTo = msg.ReplyTo
	}
	return env
}

// readFields reads a legacy body. The SDKs send form-encoded bodies; flat
// JSON bodies are accepted as well.
func readFields(w http.ResponseWriter, r *http.Request) (normalize.Fields, error) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodySize))
	if err != nil {
		return nil, fmt.Errorf("reading body: %w", err)
	}
	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if strings.HasSuffix(mediaType, "json") {
		return normalize.ParseJSONFields(body)
	}
	return normalize.ParseForm(body)
}

// contain runs fn and turns a panic into an error.
func contain(fn func() error) (err error) {
	defer func() {
		if p := recover(); p != nil {
			err = fmt.Errorf("%v", p)
		}
	}()
	return fn()
}

func schemaFailure(w http.ResponseWriter, err error) {
	twincore.JSON(w, http.StatusNotFound, map[string]string{
		"message": "Bad Request Exception",
		"detail":  "twin-ses: Schema validation failed: " + err.Error(),
	})
}
