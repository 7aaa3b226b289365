package controllers

import (
	stderrors "errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/ydethe/quizzy/internal/exam"
	"github.com/ydethe/quizzy/internal/http/errors"
	mw "github.com/ydethe/quizzy/internal/http/middlewares"
	"github.com/ydethe/quizzy/internal/metrics"
	"github.com/ydethe/quizzy/internal/observability/logger"
	"github.com/ydethe/quizzy/internal/quiz"
	"github.com/ydethe/quizzy/internal/store/core"
)

// ExamController sirve las páginas del examen. No guarda estado: la identidad
// viaja en el token del path y las respuestas en la query.
type ExamController struct {
	Codec   *exam.Codec
	Quizzes quiz.Source
	Store   core.Repository // nil = no se persisten resultados
	// MaxAge: 0 = los links no vencen.
	MaxAge time.Duration
	Now    func() time.Time
}

func (c *ExamController) now() time.Time {
	if c.Now != nil {
		return c.Now()
	}
	return time.Now()
}

type candidateView struct {
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
}

type welcomeResponse struct {
	Quiz         string        `json:"quiz"`
	Welcome      string        `json:"welcome"`
	StartLabel   string        `json:"start_label"`
	NumQuestions int           `json:"num_questions"`
	Start        string        `json:"start"`
	Candidate    candidateView `json:"candidate"`
}

type answerView struct {
	Index    int    `json:"index"`
	Text     string `json:"text"`
	Selected bool   `json:"selected"`
}

type questionResponse struct {
	Quiz     string        `json:"quiz"`
	Page     int           `json:"page"`
	Total    int           `json:"total"`
	Question string        `json:"question"`
	Answers  []answerView  `json:"answers"`
	State    string        `json:"answers_state"`
	Links    quiz.NavLinks `json:"links"`
}

type toggleRequest struct {
	Page    int    `json:"page"`
	Index   int    `json:"index"`
	Answers string `json:"answers"`
}

type submitResponse struct {
	Quiz      string        `json:"quiz"`
	Candidate candidateView `json:"candidate"`
	*quiz.Result
}

// open canjea el token del path y carga el quiz ligado a él. Escribe el error si falla.
func (c *ExamController) open(w http.ResponseWriter, r *http.Request) (exam.Examen, *quiz.Quiz, bool) {
	log := logger.From(r.Context())
	token := chi.URLParam(r, "token")

	env, err := c.Codec.Open(token)
	if err != nil {
		metrics.ObserveRedemption("invalid")
		errors.WriteError(w, errors.ErrInvalidExamLink)
		return exam.Examen{}, nil, false
	}
	if err := exam.CheckAge(env, c.MaxAge, c.now()); err != nil {
		metrics.ObserveRedemption("too_old")
		log.Info("exam link too old", logger.QuizID(env.Examen.QuizID))
		errors.WriteError(w, errors.ErrInvalidExamLink)
		return exam.Examen{}, nil, false
	}
	metrics.ObserveRedemption("ok")

	q, err := c.Quizzes.Load(r.Context(), env.Examen.QuizID)
	if err != nil {
		if stderrors.Is(err, quiz.ErrQuizNotFound) {
			log.Warn("exam token names unknown quiz", logger.QuizID(env.Examen.QuizID))
			errors.WriteError(w, errors.ErrQuizNotFound)
			return exam.Examen{}, nil, false
		}
		log.Error("quiz load failed", logger.QuizID(env.Examen.QuizID), logger.Err(err))
		errors.WriteError(w, errors.ErrInternalServerError.WithCause(err))
		return exam.Examen{}, nil, false
	}
	q.Bind(token)
	return env.Examen, q, true
}

// applyAnswers aplica el estado serializado; "" = sin respuestas.
func applyAnswers(w http.ResponseWriter, q *quiz.Quiz, state string) bool {
	if err := q.ApplySerialized(state); err != nil {
		errors.WriteError(w, errors.ErrInvalidAnswers.WithCause(err))
		return false
	}
	return true
}

func questionView(q *quiz.Quiz, page int) (questionResponse, error) {
	links, err := q.Links(page)
	if err != nil {
		return questionResponse{}, err
	}
	qu := q.Questions[page]
	answers := make([]answerView, len(qu.Answers))
	for i, text := range qu.Answers {
		answers[i] = answerView{Index: i, Text: text, Selected: qu.User.Has(i)}
	}
	return questionResponse{
		Quiz:     q.Name,
		Page:     page,
		Total:    q.NumQuestions(),
		Question: qu.Text,
		Answers:  answers,
		State:    q.Serialized(),
		Links:    links,
	}, nil
}

// Welcome GET /exam/{token}
func (c *ExamController) Welcome(w http.ResponseWriter, r *http.Request) {
	e, q, ok := c.open(w, r)
	if !ok {
		return
	}
	start, err := q.StartLink()
	if err != nil {
		errors.WriteError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, welcomeResponse{
		Quiz:         q.Name,
		Welcome:      q.Welcome,
		StartLabel:   q.StartLabel,
		NumQuestions: q.NumQuestions(),
		Start:        start,
		Candidate:    candidateView{FirstName: e.FirstName, LastName: e.LastName},
	})
}

// Question GET /exam/{token}/questions/{page}?answers=
func (c *ExamController) Question(w http.ResponseWriter, r *http.Request) {
	_, q, ok := c.open(w, r)
	if !ok {
		return
	}
	page, err := strconv.Atoi(chi.URLParam(r, "page"))
	if err != nil || page < 0 || page >= q.NumQuestions() {
		errors.WriteError(w, errors.ErrNotFound.WithDetail("page"))
		return
	}
	if !applyAnswers(w, q, r.URL.Query().Get("answers")) {
		return
	}
	view, err := questionView(q, page)
	if err != nil {
		errors.WriteError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

// Toggle POST /exam/{token}/answers: marca o desmarca una opción y devuelve
// el nuevo estado con los links recalculados.
func (c *ExamController) Toggle(w http.ResponseWriter, r *http.Request) {
	_, q, ok := c.open(w, r)
	if !ok {
		return
	}
	var req toggleRequest
	if !readJSON(w, r, &req) {
		return
	}
	if !applyAnswers(w, q, req.Answers) {
		return
	}
	if err := q.Toggle(req.Page, req.Index); err != nil {
		errors.WriteError(w, errors.ErrInvalidParameter.WithCause(err))
		return
	}
	view, err := questionView(q, req.Page)
	if err != nil {
		errors.WriteError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

// Submit POST /exam/{token}/submit?answers=
func (c *ExamController) Submit(w http.ResponseWriter, r *http.Request) {
	e, q, ok := c.open(w, r)
	if !ok {
		return
	}
	if !applyAnswers(w, q, r.URL.Query().Get("answers")) {
		return
	}
	res, err := q.Evaluate()
	if err != nil {
		errors.WriteError(w, errors.ErrInternalServerError.WithCause(err))
		return
	}
	log := logger.FromWithFields(r.Context(), logger.QuizID(q.Name), logger.Score(res.Score))

	if c.Store != nil {
		p := &core.Passage{
			QuizName:  q.Name,
			QuizHash:  q.Hash,
			Email:     e.Email,
			LastName:  e.LastName,
			FirstName: e.FirstName,
			ClientIP:  mw.ClientIP(r),
			Answers:   q.Serialized(),
			Score:     res.Score,
		}
		if err := p.Prepare(c.now()); err != nil {
			log.Error("invalid passage", logger.Err(err))
			errors.WriteError(w, errors.ErrInternalServerError.WithCause(err))
			return
		}
		if err := c.Store.Save(r.Context(), p); err != nil {
			log.Error("passage save failed", logger.Err(err))
			errors.WriteError(w, errors.ErrInternalServerError.WithCause(err))
			return
		}
	}
	metrics.ObserveSubmission(q.Name, res.Score)
	log.Info("quiz submitted")

	writeJSON(w, http.StatusOK, submitResponse{
		Quiz:      q.Name,
		Candidate: candidateView{FirstName: e.FirstName, LastName: e.LastName},
		Result:    res,
	})
}
