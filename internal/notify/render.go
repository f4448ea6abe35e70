package notify

import (
	"bytes"
	"fmt"
	htmltemplate "html/template"
	"strings"
	texttemplate "text/template"
	"time"

	"github.com/MarkoPoloResearchLab/reservas/pkg/reservas"
)

const (
	storedDateLayout  = "2006-01-02"
	displayDateLayout = "02/01/2006"
)

const confirmationHTML = `<p>Olá, {{.Name}}!</p>
{{if .Title}}<p><strong>{{.Title}}</strong></p>
{{end}}<p>Sua reserva foi confirmada!</p>
<ul>
<li>Dia: {{.Date}}</li>
<li>Hora: {{.Time}}</li>
<li>Quantidade de pessoas: {{.PartySize}}</li>
</ul>
{{if .ConfirmationLink}}<p>Para confirmar sua presença, acesse: <a href="{{.ConfirmationLink}}">{{.ConfirmationLink}}</a></p>
{{end}}<p>Obrigado por reservar conosco!</p>
`

const confirmationText = `Olá, {{.Name}}!
{{if .Title}}{{.Title}}
{{end}}Sua reserva foi confirmada!
Dia: {{.Date}}
Hora: {{.Time}}
Quantidade de pessoas: {{.PartySize}}
{{if .ConfirmationLink}}Para confirmar sua presença, acesse: {{.ConfirmationLink}}
{{end}}Obrigado por reservar conosco!
`

const cancellationHTML = `<p>Olá, {{.Name}}!</p>
{{if .Title}}<p><strong>{{.Title}}</strong></p>
{{end}}<p>Sua reserva foi cancelada!</p>
<ul>
<li>Dia: {{.Date}}</li>
<li>Hora: {{.Time}}</li>
<li>Quantidade de pessoas: {{.PartySize}}</li>
</ul>
{{if .Reason}}<p>Motivo do cancelamento: {{.Reason}}</p>
{{end}}`

const cancellationText = `Olá, {{.Name}}!
{{if .Title}}{{.Title}}
{{end}}Sua reserva foi cancelada!
Dia: {{.Date}}
Hora: {{.Time}}
Quantidade de pessoas: {{.PartySize}}
{{if .Reason}}Motivo do cancelamento: {{.Reason}}
{{end}}`

type templatePair struct {
	html *htmltemplate.Template
	text *texttemplate.Template
}

var templates = map[reservas.NotificationKind]templatePair{
	reservas.NotificationConfirmation: {
		html: htmltemplate.Must(htmltemplate.New("confirmation").Parse(confirmationHTML)),
		text: texttemplate.Must(texttemplate.New("confirmation").Parse(confirmationText)),
	},
	reservas.NotificationCancellation: {
		html: htmltemplate.Must(htmltemplate.New("cancellation").Parse(cancellationHTML)),
		text: texttemplate.Must(texttemplate.New("cancellation").Parse(cancellationText)),
	},
}

// Render builds the email body for a claimed message.
func Render(message Message) (Email, error) {
	pair, ok := templates[message.Kind]
	if !ok {
		return Email{}, fmt.Errorf("%w: %q", ErrUnknownKind, message.Kind)
	}
	view := message.Payload
	view.Date = displayDate(view.Date)

	var htmlBody bytes.Buffer
	if err := pair.html.Execute(&htmlBody, view); err != nil {
		return Email{}, fmt.Errorf("render html: %w", err)
	}
	var textBody bytes.Buffer
	if err := pair.text.Execute(&textBody, view); err != nil {
		return Email{}, fmt.Errorf("render text: %w", err)
	}
	return Email{
		MessageID:     message.ID,
		Kind:          string(message.Kind),
		ReservationID: message.Payload.ReservationID,
		To:            message.Recipient,
		Subject:       message.Subject,
		HTMLBody:      htmlBody.String(),
		TextBody:      strings.TrimSpace(textBody.String()),
	}, nil
}

func displayDate(value string) string {
	parsed, err := time.Parse(storedDateLayout, value)
	if err != nil {
		return value
	}
	return parsed.Format(displayDateLayout)
}
