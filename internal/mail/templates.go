package mail

import (
	"bytes"
	"embed"
	"fmt"
	"html/template"
)

//go:embed templates/*.html
var templateFS embed.FS

// Template names.
const (
	tmplContactNotification = "contact_notification.html"
	tmplContactConfirmation = "contact_confirmation.html"
	tmplNewsletterWelcome   = "newsletter_welcome.html"
)

// Templates holds one parsed set per page, each sharing the layout.
type Templates struct {
	pages map[string]*template.Template
}

// ParseTemplates parses the embedded templates.
func ParseTemplates() (*Templates, error) {
	names := []string{tmplContactNotification, tmplContactConfirmation, tmplNewsletterWelcome}

	t := &Templates{pages: make(map[string]*template.Template, len(names))}
	for _, name := range names {
		page, err := template.New(name).ParseFS(templateFS, "templates/layout.html", "templates/"+name)
		if err != nil {
			return nil, fmt.Errorf("parse template %s: %w", name, err)
		}
		t.pages[name] = page
	}
	return t, nil
}

// Render executes the named page inside the layout.
func (t *Templates) Render(name string, data any) (string, error) {
	page, ok := t.pages[name]
	if !ok {
		return "", fmt.Errorf("unknown template %q", name)
	}

	var buf bytes.Buffer
	if err := page.ExecuteTemplate(&buf, "layout", data); err != nil {
		return "", fmt.Errorf("render %s: %w", name, err)
	}
	return buf.String(), nil
}
