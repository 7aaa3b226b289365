package email

import (
	"bytes"
	"context"
	"errors"
	htmltpl "html/template"
	"net/url"
	"strings"
	texttpl "text/template"

	"github.com/ydethe/quizzy/internal/exam"
	"github.com/ydethe/quizzy/internal/observability/logger"
)

var ErrNoRecipient = errors.New("email: examen has no email")

const inviteSubject = "Votre lien d'examen"

type inviteData struct {
	FirstName string
	LastName  string
	Quiz      string
	Link      string
}

var inviteHTML = htmltpl.Must(htmltpl.New("invite.html").Parse(`<!doctype html>
<html><body>
<p>Bonjour {{.FirstName}} {{.LastName}},</p>
<p>Vous êtes invité(e) à passer le questionnaire <strong>{{.Quiz}}</strong>.</p>
<p><a href="{{.Link}}">Commencer l'examen</a></p>
<p>Ce lien est personnel, merci de ne pas le partager.</p>
</body></html>`))

var inviteText = texttpl.Must(texttpl.New("invite.txt").Parse(`Bonjour {{.FirstName}} {{.LastName}},

Vous êtes invité(e) à passer le questionnaire {{.Quiz}}.

Lien : {{.Link}}

Ce lien est personnel, merci de ne pas le partager.
`))

// ExamLink arma la URL absoluta de bienvenida del examen.
func ExamLink(baseURL, token string) string {
	return strings.TrimRight(baseURL, "/") + "/exam/" + url.PathEscape(token)
}

// Invite envía a e.Email el link del examen correspondiente a token.
func Invite(ctx context.Context, s Sender, baseURL string, e exam.Examen, token string) error {
	if strings.TrimSpace(e.Email) == "" {
		return ErrNoRecipient
	}
	data := inviteData{
		FirstName: e.FirstName,
		LastName:  e.LastName,
		Quiz:      e.QuizID,
		Link:      ExamLink(baseURL, token),
	}
	var html, text bytes.Buffer
	if err := inviteHTML.Execute(&html, data); err != nil {
		return err
	}
	if err := inviteText.Execute(&text, data); err != nil {
		return err
	}
	if err := s.Send(ctx, e.Email, inviteSubject, html.String(), text.String()); err != nil {
		return err
	}
	logger.From(ctx).Info("exam invitation sent", logger.QuizID(e.QuizID), logger.Email(e.Email))
	return nil
}
