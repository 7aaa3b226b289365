// Package quiz modela un quiz de opción múltiple, serializa el estado de
// respuestas de forma reversible para llevarlo en la URL entre páginas y lo puntúa.
package quiz

import (
	"errors"
	"fmt"
	"sort"
)

var (
	ErrOutOfRange    = errors.New("quiz: question or answer index out of range")
	ErrShapeMismatch = errors.New("quiz: answers do not match the quiz")
	ErrUnbound       = errors.New("quiz: no exam token bound")
)

type Question struct {
	Text    string
	Answers []string
	Correct IndexSet
	// User es estado de trabajo de la request; se reinicia al aplicar respuestas serializadas.
	User IndexSet
}

// ScoreBand asocia un umbral de puntaje (0..100) con un mensaje.
type ScoreBand struct {
	Threshold int
	Message   string
}

// Quiz es una instancia por request: se obtiene de un Source (copia propia)
// y se liga al token de examen con Bind.
type Quiz struct {
	Name          string
	Welcome       string
	StartLabel    string
	Questions     []Question
	ScoreBands    []ScoreBand // orden ascendente por Threshold
	Hash          string      // huella de la definición
	IdentityToken string
}

func (q *Quiz) NumQuestions() int { return len(q.Questions) }

// Clone copia profunda, incluidas las respuestas del usuario.
func (q *Quiz) Clone() *Quiz {
	c := *q
	c.Questions = make([]Question, len(q.Questions))
	for i, qu := range q.Questions {
		c.Questions[i] = Question{
			Text:    qu.Text,
			Answers: append([]string(nil), qu.Answers...),
			Correct: qu.Correct.Clone(),
			User:    qu.User.Clone(),
		}
	}
	c.ScoreBands = append([]ScoreBand(nil), q.ScoreBands...)
	return &c
}

// Bind liga la instancia al token de examen usado para construir los links.
func (q *Quiz) Bind(token string) { q.IdentityToken = token }

// ApplyAnswers reemplaza todas las respuestas del usuario. Un estado más corto
// que el quiz deja vacías las preguntas restantes; uno más largo, o con un
// índice fuera de las opciones, es ErrShapeMismatch y no modifica nada.
func (q *Quiz) ApplyAnswers(state []IndexSet) error {
	if len(state) > len(q.Questions) {
		return fmt.Errorf("%w: %d answers for %d questions", ErrShapeMismatch, len(state), len(q.Questions))
	}
	for p, s := range state {
		for i := range s {
			if i >= len(q.Questions[p].Answers) {
				return fmt.Errorf("%w: answer %d of question %d", ErrShapeMismatch, i, p)
			}
		}
	}
	for p := range q.Questions {
		if p < len(state) {
			q.Questions[p].User = state[p].Clone()
		} else {
			q.Questions[p].User = IndexSet{}
		}
	}
	return nil
}

// ApplySerialized decodifica y aplica; "" significa sin respuestas.
func (q *Quiz) ApplySerialized(s string) error {
	if s == "" {
		return q.ApplyAnswers(nil)
	}
	state, err := Deserialize(s)
	if err != nil {
		return err
	}
	return q.ApplyAnswers(state)
}

// Answers devuelve una copia del estado del usuario, una entrada por pregunta.
func (q *Quiz) Answers() []IndexSet {
	out := make([]IndexSet, len(q.Questions))
	for i, qu := range q.Questions {
		out[i] = qu.User.Clone()
	}
	return out
}

func (q *Quiz) AnswerKey() []IndexSet {
	out := make([]IndexSet, len(q.Questions))
	for i, qu := range q.Questions {
		out[i] = qu.Correct.Clone()
	}
	return out
}

// Serialized es Serialize(q.Answers()).
func (q *Quiz) Serialized() string { return Serialize(q.Answers()) }

// Toggle agrega o quita la respuesta idx de la pregunta page.
func (q *Quiz) Toggle(page, idx int) error {
	if page < 0 || page >= len(q.Questions) {
		return ErrOutOfRange
	}
	qu := &q.Questions[page]
	if idx < 0 || idx >= len(qu.Answers) {
		return ErrOutOfRange
	}
	if qu.User == nil {
		qu.User = IndexSet{}
	}
	if qu.User.Has(idx) {
		delete(qu.User, idx)
	} else {
		qu.User[idx] = struct{}{}
	}
	return nil
}

type Verdict struct {
	Question string `json:"question"`
	Correct  bool   `json:"correct"`
	Expected []int  `json:"expected"`
	Given    []int  `json:"given"`
}

type Result struct {
	Score    int       `json:"score"`
	Correct  int       `json:"correct"`
	Total    int       `json:"total"`
	Band     string    `json:"band,omitempty"`
	Verdicts []Verdict `json:"verdicts"`
}

// Evaluate puntúa el estado actual y elige el mensaje de la escala.
func (q *Quiz) Evaluate() (*Result, error) {
	user, key := q.Answers(), q.AnswerKey()
	score, err := Score(user, key)
	if err != nil {
		return nil, err
	}
	res := &Result{
		Score:    score,
		Total:    len(key),
		Band:     q.Band(score),
		Verdicts: make([]Verdict, len(q.Questions)),
	}
	for i, qu := range q.Questions {
		ok := user[i].Equal(key[i])
		if ok {
			res.Correct++
		}
		res.Verdicts[i] = Verdict{
			Question: qu.Text,
			Correct:  ok,
			Expected: key[i].Sorted(),
			Given:    user[i].Sorted(),
		}
	}
	return res, nil
}

// Band devuelve el mensaje del umbral más alto <= score ("" si ninguno aplica).
func (q *Quiz) Band(score int) string {
	msg := ""
	for _, b := range q.ScoreBands {
		if b.Threshold > score {
			break
		}
		msg = b.Message
	}
	return msg
}

func sortBands(b []ScoreBand) {
	sort.Slice(b, func(i, j int) bool { return b[i].Threshold < b[j].Threshold })
}
