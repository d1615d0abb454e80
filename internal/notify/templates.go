package notify

import (
	"fmt"

	"github.com/fmuoria/recruit-crm/internal/models"
	"github.com/osteele/liquid"
)

const (
	defaultSubject = `{{ inserted }} candidate{% if inserted != 1 %}s{% endif %} imported into {{ requirement | default: "requirement" }}`

	defaultText = `Import finished for {{ requirement }}{% if client != "" %} ({{ client }}){% endif %}.

Inserted: {{ inserted }}
Invalid: {{ invalid }}
Mode: {{ mode }}
Fields: {{ fields | join: ", " }}
At: {{ at }}
`

	defaultHTML = `<p>Import finished for <b>{{ requirement | escape }}</b>{% if client != "" %} ({{ client | escape }}){% endif %}.</p>
<table>
<tr><td>Inserted</td><td>{{ inserted }}</td></tr>
<tr><td>Invalid</td><td>{{ invalid }}</td></tr>
<tr><td>Mode</td><td>{{ mode | escape }}</td></tr>
<tr><td>Fields</td><td>{{ fields | join: ", " | escape }}</td></tr>
</table>
`
)

// Templates renders import summaries with liquid
type Templates struct {
	engine  *liquid.Engine
	subject string
	text    string
	html    string
}

// NewTemplates returns the built-in summary templates
func NewTemplates() *Templates {
	return &Templates{
		engine:  liquid.NewEngine(),
		subject: defaultSubject,
		text:    defaultText,
		html:    defaultHTML,
	}
}

// WithSubject replaces the subject template after checking that it parses
func (t *Templates) WithSubject(src string) (*Templates, error) {
	if _, err := t.engine.ParseString(src); err != nil {
		return nil, fmt.Errorf("parse subject template: %w", err)
	}
	c := *t
	c.subject = src
	return &c, nil
}

// Summary renders an import summary addressed to recipients
func (t *Templates) Summary(s models.ImportSummary, recipients []string) (Message, error) {
	fields := s.Fields
	if fields == nil {
		fields = []string{}
	}
	b := liquid.Bindings{
		"requirement": s.Requirement.Name,
		"client":      s.Requirement.ClientName,
		"inserted":    s.Inserted,
		"invalid":     s.Invalid,
		"mode":        s.Mode,
		"fields":      fields,
		"at":          s.At.Format("2006-01-02 15:04"),
	}

	subject, err := t.render(t.subject, b)
	if err != nil {
		return Message{}, fmt.Errorf("render subject: %w", err)
	}
	text, err := t.render(t.text, b)
	if err != nil {
		return Message{}, fmt.Errorf("render text body: %w", err)
	}
	html, err := t.render(t.html, b)
	if err != nil {
		return Message{}, fmt.Errorf("render html body: %w", err)
	}

	return Message{
		To:      append([]string(nil), recipients...),
		Subject: subject,
		Text:    text,
		HTML:    html,
	}, nil
}

func (t *Templates) render(src string, b liquid.Bindings) (string, error) {
	out, serr := t.engine.ParseAndRenderString(src, b)
	if serr != nil {
		return "", serr
	}
	return out, nil
}
