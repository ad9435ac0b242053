package mailer

import (
	"bytes"
	"embed"
	htmltemplate "html/template"
	texttemplate "text/template"
)

const (
	FromName            = "RoadTrip Planner"
	maxRetries          = 3
	UserWelcomeTemplate = "welcome.tmpl"
)

//go:embed "templates"
var FS embed.FS

type Client interface {
	// Send renders templateFile with data and mails it to email. It returns
	// the number of delivery attempts made.
	Send(templateFile, username, email string, data any) (int, error)
}

type message struct {
	subject string
	plain   string
	html    string
}

// render executes the "subject", "plainBody" and "htmlBody" blocks of
// templateFile.
func render(templateFile string, data any) (message, error) {
	var msg message

	tt, err := texttemplate.New("").ParseFS(FS, "templates/"+templateFile)
	if err != nil {
		return msg, err
	}
	subject := new(bytes.Buffer)
	if err := tt.ExecuteTemplate(subject, "subject", data); err != nil {
		return msg, err
	}
	plain := new(bytes.Buffer)
	if err := tt.ExecuteTemplate(plain, "plainBody", data); err != nil {
		return msg, err
	}

	ht, err := htmltemplate.New("").ParseFS(FS, "templates/"+templateFile)
	if err != nil {
		return msg, err
	}
	html := new(bytes.Buffer)
	if err := ht.ExecuteTemplate(html, "htmlBody", data); err != nil {
		return msg, err
	}

	msg.subject = subject.String()
	msg.plain = plain.String()
	msg.html = html.String()
	return msg, nil
}

// Noop renders the template but sends nothing. Used when SMTP is not
// configured.
type Noop struct{}

func (Noop) Send(templateFile, _, _ string, data any) (int, error) {
	_, err := render(templateFile, data)
	return 0, err
}
