package quiz

import (
	"fmt"
	"net/url"
)

// NavLinks son las rutas relativas de navegación de una página, con el
// estado de respuestas actual en la query. Vacío = no aplica.
type NavLinks struct {
	Previous string `json:"previous,omitempty"`
	Next     string `json:"next,omitempty"`
	Submit   string `json:"submit"`
}

// Links arma los links de la página page para el token ligado con Bind.
func (q *Quiz) Links(page int) (NavLinks, error) {
	if q.IdentityToken == "" {
		return NavLinks{}, ErrUnbound
	}
	if page < 0 || page >= len(q.Questions) {
		return NavLinks{}, ErrOutOfRange
	}
	answers := url.Values{"answers": {q.Serialized()}}.Encode()
	base := "/exam/" + url.PathEscape(q.IdentityToken)

	var l NavLinks
	if page > 0 {
		l.Previous = fmt.Sprintf("%s/questions/%d?%s", base, page-1, answers)
	}
	if page < len(q.Questions)-1 {
		l.Next = fmt.Sprintf("%s/questions/%d?%s", base, page+1, answers)
	}
	l.Submit = base + "/submit?" + answers
	return l, nil
}

// StartLink es la primera página sin respuestas.
func (q *Quiz) StartLink() (string, error) {
	if q.IdentityToken == "" {
		return "", ErrUnbound
	}
	return "/exam/" + url.PathEscape(q.IdentityToken) + "/questions/0", nil
}
