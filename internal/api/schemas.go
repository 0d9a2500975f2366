package api

import "github.com/wondertwin-ai/twin-ses/internal/schema"

// Legacy bodies are flat: nested SES members arrive as dotted keys, so the
// legacy schemas name those keys directly.

var sendEmailSchema = &schema.Schema{
	Name: "SendEmail",
	Fields: map[string]schema.Field{
		"Action":                            schema.Literal(`^SendEmail$`),
		"Version":                           schema.String(),
		"ConfigurationSetName":              schema.String(),
		"Destination.ToAddresses.member.1":  schema.String(),
		"Destination.CcAddresses.member.1":  schema.String(),
		"Destination.BccAddresses.member.1": schema.String(),
		"Message.Subject.Data":              schema.String(),
		"Message.Subject.Charset":           schema.String(),
		"Message.Body.Text.Data":            schema.String(),
		"Message.Body.Text.Charset":         schema.String(),
		"Message.Body.Html.Data":            schema.String(),
		"Message.Body.Html.Charset":         schema.String(),
		"ReplyToAddresses.member.1":         schema.String(),
		"ReturnPath":                        schema.String(),
		"ReturnPathArn":                     schema.String(),
		"Source":                            schema.String(),
		"SourceArn":                         schema.String(),
	},
	Required: []string{"Action", "Source", "Message.Subject.Data"},
}

var sendRawEmailSchema = &schema.Schema{
	Name: "SendRawEmail",
	Fields: map[string]schema.Field{
		"Action":                schema.Literal(`^SendRawEmail$`),
		"Version":               schema.String(),
		"ConfigurationSetName":  schema.String(),
		"Destinations.member.1": schema.String(),
		"FromArn":               schema.String(),
		"RawMessage.Data":       schema.String(),
		"ReturnPathArn":         schema.String(),
		"Source":                schema.String(),
		"SourceArn":             schema.String(),
	},
	Required: []string{"Action", "RawMessage.Data"},
}

var sendTemplatedEmailSchema = &schema.Schema{
	Name: "SendTemplatedEmail",
	Fields: map[string]schema.Field{
		"Action":                            schema.Literal(`^SendTemplatedEmail$`),
		"Version":                           schema.String(),
		"ConfigurationSetName":              schema.String(),
		"Destination.ToAddresses.member.1":  schema.String(),
		"Destination.CcAddresses.member.1":  schema.String(),
		"Destination.BccAddresses.member.1": schema.String(),
		"ReplyToAddresses.member.1":         schema.String(),
		"ReturnPath":                        schema.String(),
		"ReturnPathArn":                     schema.String(),
		"Source":                            schema.String(),
		"SourceArn":                         schema.String(),
		"Template":                          schema.String(),
		"TemplateArn":                       schema.String(),
		"TemplateData":                      schema.String(),
	},
	Required: []string{"Action", "Source", "Template", "TemplateData"},
}

// v2 bodies are nested JSON.

var contentSchema = &schema.Schema{
	Name: "Content",
	Fields: map[string]schema.Field{
		"Data":    schema.String(),
		"Charset": schema.String(),
	},
	Required: []string{"Data"},
}

var simpleMessageSchema = &schema.Schema{
	Name: "Message",
	Fields: map[string]schema.Field{
		"Subject": schema.Object(contentSchema),
		"Body": schema.Object(&schema.Schema{
			Name: "Body",
			Fields: map[string]schema.Field{
				"Text": schema.Object(contentSchema),
				"Html": schema.Object(contentSchema),
			},
		}),
	},
	Required: []string{"Subject", "Body"},
}

var emailContentSchema = &schema.Schema{
	Name: "EmailContent",
	Fields: map[string]schema.Field{
		"Simple": schema.Object(simpleMessageSchema),
		"Raw": schema.Object(&schema.Schema{
			Name:     "RawMessage",
			Fields:   map[string]schema.Field{"Data": schema.String()},
			Required: []string{"Data"},
		}),
		"Template": schema.Object(&schema.Schema{
			Name: "Template",
			Fields: map[string]schema.Field{
				"TemplateName": schema.String(),
				"TemplateArn":  schema.String(),
				"TemplateData": schema.String(),
				"TemplateContent": schema.Object(&schema.Schema{
					Name: "EmailTemplateContent",
					Fields: map[string]schema.Field{
						"Subject": schema.String(),
						"Text":    schema.String(),
						"Html":    schema.String(),
					},
				}),
			},
		}),
	},
}

var sendEmailV2Schema = &schema.Schema{
	Name: "SendEmailV2",
	Fields: map[string]schema.Field{
		"FromEmailAddress":               schema.String(),
		"FromEmailAddressIdentityArn":    schema.String(),
		"ConfigurationSetName":           schema.String(),
		"FeedbackForwardingEmailAddress": schema.String(),
		"ReplyToAddresses":               schema.ArrayOf(schema.KindString),
		"Destination": schema.Object(&schema.Schema{
			Name: "Destination",
			Fields: map[string]schema.Field{
				"ToAddresses":  schema.ArrayOf(schema.KindString),
				"CcAddresses":  schema.ArrayOf(schema.KindString),
				"BccAddresses": schema.ArrayOf(schema.KindString),
			},
		}),
		"Content":               schema.Object(emailContentSchema),
		"EmailTags":             schema.ArrayOf(schema.KindObject),
		"ListManagementOptions": schema.Object(nil),
	},
	Required: []string{"FromEmailAddress", "Content"},
}
