package notifications

import (
	"bytes"
	"embed"
	"fmt"
	"html"
	"strings"
	"text/template"

	"github.com/mynaner/zero2prod/internal/domain"
)

//go:embed templates/*.tmpl
var templatesFS embed.FS

var templateNames = []string{
	"confirmation_subject",
	"confirmation_html",
	"confirmation_text",
}

// Renderer renders transactional emails from embedded templates.
type Renderer struct {
	templates map[string]*template.Template
}

// NewRenderer creates a new renderer and loads all templates.
func NewRenderer() (*Renderer, error) {
	funcMap := template.FuncMap{
		"escapeHTML": html.EscapeString,
	}

	r := &Renderer{templates: make(map[string]*template.Template, len(templateNames))}
	for _, name := range templateNames {
		filename := fmt.Sprintf("templates/%s.tmpl", name)
		content, err := templatesFS.ReadFile(filename)
		if err != nil {
			return nil, fmt.Errorf("read template %s: %w", filename, err)
		}

		tmpl, err := template.New(name).Funcs(funcMap).Option("missingkey=error").Parse(string(content))
		if err != nil {
			return nil, fmt.Errorf("parse template %s: %w", name, err)
		}
		r.templates[name] = tmpl
	}

	return r, nil
}

type confirmationData struct {
	Name string
	Link string
}

// RenderConfirmation builds the confirmation email for a new subscriber.
// The link appears exactly once in each body.
func (r *Renderer) RenderConfirmation(to domain.SubscriberEmail, name domain.SubscriberName, link string) (Message, error) {
	data := confirmationData{Name: name.String(), Link: link}

	subject, err := r.execute("confirmation_subject", data)
	if err != nil {
		return Message{}, err
	}
	htmlBody, err := r.execute("confirmation_html", data)
	if err != nil {
		return Message{}, err
	}
	textBody, err := r.execute("confirmation_text", data)
	if err != nil {
		return Message{}, err
	}

	return Message{
		To:       to,
		Subject:  subject,
		HTMLBody: htmlBody,
		TextBody: textBody,
		Kind:     KindConfirmation,
	}, nil
}

func (r *Renderer) execute(name string, data any) (string, error) {
	tmpl, ok := r.templates[name]
	if !ok {
		return "", fmt.Errorf("template not found: %s", name)
	}

	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("execute template %s: %w", name, err)
	}
	return strings.TrimSpace(buf.String()), nil
}
