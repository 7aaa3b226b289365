package controllers

import (
	stderrors "errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/ydethe/quizzy/internal/email"
	"github.com/ydethe/quizzy/internal/exam"
	"github.com/ydethe/quizzy/internal/http/errors"
	mw "github.com/ydethe/quizzy/internal/http/middlewares"
	"github.com/ydethe/quizzy/internal/observability/logger"
	"github.com/ydethe/quizzy/internal/quiz"
	"github.com/ydethe/quizzy/internal/store/core"
)

// AdminController emite links de examen y consulta resultados. Va detrás de RequireAdmin.
type AdminController struct {
	Codec   *exam.Codec
	Quizzes quiz.Source
	Store   core.Repository
	Mailer  email.Sender // nil = envío deshabilitado
	BaseURL string
}

type issueRequest struct {
	Quiz      string `json:"quiz"`
	Email     string `json:"email"`
	LastName  string `json:"last_name"`
	FirstName string `json:"first_name"`
	Send      bool   `json:"send"`
}

type issueResponse struct {
	Token string `json:"token"`
	Link  string `json:"link"`
	Sent  bool   `json:"sent"`
}

// Issue POST /admin/exams
func (c *AdminController) Issue(w http.ResponseWriter, r *http.Request) {
	var req issueRequest
	if !readJSON(w, r, &req) {
		return
	}
	req.Email = strings.TrimSpace(req.Email)
	if req.Quiz == "" {
		errors.WriteError(w, errors.ErrMissingFields.WithDetail("quiz"))
		return
	}
	// sin email el link sólo se devuelve; enviarlo lo exige
	if req.Send && req.Email == "" {
		errors.WriteError(w, errors.ErrMissingFields.WithDetail("email"))
		return
	}
	if !quiz.ValidName(req.Quiz) {
		errors.WriteError(w, errors.ErrInvalidParameter.WithDetail("quiz"))
		return
	}
	if _, err := c.Quizzes.Load(r.Context(), req.Quiz); err != nil {
		if stderrors.Is(err, quiz.ErrQuizNotFound) {
			errors.WriteError(w, errors.ErrQuizNotFound)
			return
		}
		errors.WriteError(w, errors.ErrInternalServerError.WithCause(err))
		return
	}
	if req.Send && c.Mailer == nil {
		errors.WriteError(w, errors.ErrNotImplemented.WithDetail("smtp"))
		return
	}

	e := exam.Examen{QuizID: req.Quiz, Email: req.Email, LastName: req.LastName, FirstName: req.FirstName}
	token, err := c.Codec.Issue(e)
	if err != nil {
		errors.WriteError(w, errors.ErrInternalServerError.WithCause(err))
		return
	}
	log := logger.FromWithFields(r.Context(), logger.QuizID(e.QuizID), logger.Email(e.Email))
	if id := mw.GetIdentity(r.Context()); id != nil {
		log = log.With(logger.Subject(id.Subject))
	}

	resp := issueResponse{Token: token, Link: email.ExamLink(c.BaseURL, token)}
	if req.Send {
		if err := email.Invite(r.Context(), c.Mailer, c.BaseURL, e, token); err != nil {
			log.Error("exam invitation failed", logger.Err(err))
			errors.WriteError(w, errors.ErrBadGateway.WithCause(err))
			return
		}
		resp.Sent = true
	}
	log.Info("exam link issued", logger.Bool("sent", resp.Sent))
	writeJSON(w, http.StatusCreated, resp)
}

type meResponse struct {
	Subject       string    `json:"sub"`
	Email         string    `json:"email,omitempty"`
	EmailVerified bool      `json:"email_verified"`
	Name          string    `json:"name,omitempty"`
	Issuer        string    `json:"iss"`
	ExpiresAt     time.Time `json:"expires_at"`
}

// Me GET /admin/me
func (c *AdminController) Me(w http.ResponseWriter, r *http.Request) {
	id := mw.GetIdentity(r.Context())
	if id == nil {
		errors.WriteError(w, errors.ErrUnauthorized)
		return
	}
	writeJSON(w, http.StatusOK, meResponse{
		Subject:       id.Subject,
		Email:         id.Email,
		EmailVerified: id.EmailVerified,
		Name:          id.Name,
		Issuer:        id.Issuer,
		ExpiresAt:     id.ExpiresAt,
	})
}

// Results GET /admin/results/{quiz}?limit=
func (c *AdminController) Results(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "quiz")
	if !quiz.ValidName(name) {
		errors.WriteError(w, errors.ErrInvalidParameter.WithDetail("quiz"))
		return
	}
	limit := 0
	if s := r.URL.Query().Get("limit"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil {
			errors.WriteError(w, errors.ErrInvalidParameter.WithDetail("limit"))
			return
		}
		limit = n
	}
	list, err := c.Store.ListByQuiz(r.Context(), name, core.ClampLimit(limit))
	if err != nil {
		errors.WriteError(w, errors.ErrInternalServerError.WithCause(err))
		return
	}
	if list == nil {
		list = []core.Passage{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"quiz": name, "passages": list})
}
