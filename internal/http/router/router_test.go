package router

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ydethe/quizzy/internal/email"
	"github.com/ydethe/quizzy/internal/exam"
	"github.com/ydethe/quizzy/internal/http/controllers"
	mw "github.com/ydethe/quizzy/internal/http/middlewares"
	"github.com/ydethe/quizzy/internal/oidc"
	"github.com/ydethe/quizzy/internal/quiz"
	"github.com/ydethe/quizzy/internal/security/cookie"
	"github.com/ydethe/quizzy/internal/security/secretbox"
	"github.com/ydethe/quizzy/internal/store/core"
	"github.com/ydethe/quizzy/internal/store/memory"
)

const quizYAML = `message_accueil: "Bienvenue"
text_bouton: "Commencer"
questions:
  - text: "Q1"
    answers: ["a", "b", "c"]
    good_answers: [0, 2]
  - text: "Q2"
    answers: ["x", "y"]
    good_answers: [1]
echelle_scores:
  0: "À revoir"
  50: "Pas mal"
  100: "Parfait"
`

var candidate = exam.Examen{QuizID: "demo", Email: "jean@example.com", LastName: "Dupont", FirstName: "Jean"}

type fixture struct {
	t       *testing.T
	handler http.Handler
	codec   *exam.Codec
	store   *memory.Store
	quizzes quiz.Source
	mailer  *fakeMailer
	now     time.Time
}

type fakeMailer struct{ to []string }

func (m *fakeMailer) Send(_ context.Context, to, _, _, _ string) error {
	m.to = append(m.to, to)
	return nil
}

// withAdmin simula RequireAdmin con una identidad fija.
func withAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := &oidc.IdentityClaims{Subject: "admin-1", Email: "admin@example.com", EmailVerified: true}
		next.ServeHTTP(w, r.WithContext(mw.WithIdentity(r.Context(), id)))
	})
}

func newFixture(t *testing.T, maxAge time.Duration) *fixture {
	t.Helper()
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "demo.yml"), []byte(quizYAML), 0o600))

	codec, err := exam.NewCodec(exam.Secrets{
		Payload: []byte("0123456789abcdef"),
		Signing: []byte("signing-secret-for-tests"),
	})
	require.NoError(t, err)

	f := &fixture{t: t, codec: codec, store: memory.New(), mailer: &fakeMailer{}, now: time.Now()}
	src := quiz.NewDirSource(dir)
	f.quizzes = src
	f.handler = New(Deps{
		Exam: &controllers.ExamController{
			Codec: codec, Quizzes: src, Store: f.store, MaxAge: maxAge,
			Now: func() time.Time { return f.now },
		},
		Health: &controllers.HealthController{Checks: map[string]controllers.Pinger{"store": f.store}},
		Admin: &controllers.AdminController{
			Codec: codec, Quizzes: src, Store: f.store, Mailer: f.mailer, BaseURL: "https://quiz.example.com",
		},
		AdminAuth: withAdmin,
	})
	return f
}

func (f *fixture) token(e exam.Examen) string {
	f.t.Helper()
	tok, err := f.codec.Issue(e)
	require.NoError(f.t, err)
	return tok
}

func (f *fixture) do(method, target, body string) *httptest.ResponseRecorder {
	f.t.Helper()
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, target, nil)
	}
	rec := httptest.NewRecorder()
	f.handler.ServeHTTP(rec, req)
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var m map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &m), rec.Body.String())
	return m
}

func TestExamFlow(t *testing.T) {
	f := newFixture(t, 0)
	tok := f.token(candidate)

	rec := f.do(http.MethodGet, "/exam/"+tok, "")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "no-store", rec.Header().Get("Cache-Control"))
	welcome := decode(t, rec)
	assert.Equal(t, "Bienvenue", welcome["welcome"])
	assert.Equal(t, float64(2), welcome["num_questions"])
	start := welcome["start"].(string)
	assert.Equal(t, "/exam/"+tok+"/questions/0", start)

	rec = f.do(http.MethodGet, start, "")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	page := decode(t, rec)
	assert.Equal(t, "Q1", page["question"])

	state := ""
	for _, idx := range []int{0, 2} {
		body, _ := json.Marshal(map[string]any{"page": 0, "index": idx, "answers": state})
		rec = f.do(http.MethodPost, "/exam/"+tok+"/answers", string(body))
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		state = decode(t, rec)["answers_state"].(string)
	}
	body, _ := json.Marshal(map[string]any{"page": 1, "index": 0, "answers": state})
	rec = f.do(http.MethodPost, "/exam/"+tok+"/answers", string(body))
	require.Equal(t, http.StatusOK, rec.Code)
	view := decode(t, rec)
	state = view["answers_state"].(string)
	links := view["links"].(map[string]any)
	assert.Contains(t, links["submit"], "answers="+url.QueryEscape(state))

	// la página anterior conserva las respuestas
	rec = f.do(http.MethodGet, links["previous"].(string), "")
	require.Equal(t, http.StatusOK, rec.Code)
	answers := decode(t, rec)["answers"].([]any)
	assert.Equal(t, true, answers[0].(map[string]any)["selected"])
	assert.Equal(t, false, answers[1].(map[string]any)["selected"])
	assert.Equal(t, true, answers[2].(map[string]any)["selected"])

	rec = f.do(http.MethodPost, links["submit"].(string), "")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	res := decode(t, rec)
	assert.Equal(t, float64(50), res["score"])
	assert.Equal(t, "Pas mal", res["band"])

	saved, err := f.store.ListByQuiz(context.Background(), "demo", 10)
	require.NoError(t, err)
	require.Len(t, saved, 1)
	assert.Equal(t, 50, saved[0].Score)
	assert.Equal(t, "jean@example.com", saved[0].Email)
	assert.Equal(t, state, saved[0].Answers)
}

type failingStore struct {
	*memory.Store
	saves int
}

func (s *failingStore) Save(context.Context, *core.Passage) error {
	s.saves++
	return errors.New("disk full")
}

func TestExamSubmitSaveFailure(t *testing.T) {
	f := newFixture(t, 0)
	repo := &failingStore{Store: memory.New()}
	h := New(Deps{Exam: &controllers.ExamController{
		Codec: f.codec, Quizzes: f.quizzes, Store: repo,
		Now: func() time.Time { return f.now },
	}})

	state := quiz.Serialize([]quiz.IndexSet{quiz.NewIndexSet(0, 2), quiz.NewIndexSet(1)})
	req := httptest.NewRequest(http.MethodPost, "/exam/"+f.token(candidate)+"/submit?answers="+state, nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	assert.Equal(t, 1, repo.saves)
	assert.Equal(t, http.StatusInternalServerError, rec.Code, rec.Body.String())
	assert.NotContains(t, rec.Body.String(), `"score"`)
}

func TestExamSubmitWithoutEmail(t *testing.T) {
	f := newFixture(t, 0)
	tok := f.token(exam.Examen{QuizID: "demo", LastName: "Dupont"})
	state := quiz.Serialize([]quiz.IndexSet{quiz.NewIndexSet(0), quiz.NewIndexSet(1)})

	rec := f.do(http.MethodPost, "/exam/"+tok+"/submit?answers="+state, "")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	saved, err := f.store.ListByQuiz(context.Background(), "demo", 10)
	require.NoError(t, err)
	require.Len(t, saved, 1)
	assert.Equal(t, "Dupont", saved[0].LastName)
	assert.Empty(t, saved[0].Email)
}

func TestExamRejectsUniformly(t *testing.T) {
	f := newFixture(t, 0)
	tok := f.token(candidate)
	tampered := tok[:len(tok)-2] + "AA"
	if tampered == tok {
		tampered = tok[:len(tok)-2] + "BB"
	}

	var bodies []string
	for _, bad := range []string{tampered, "garbage", "a.b.c"} {
		rec := f.do(http.MethodGet, "/exam/"+bad, "")
		assert.Equal(t, http.StatusNotFound, rec.Code)
		m := decode(t, rec)
		bodies = append(bodies, m["code"].(string)+m["message"].(string))
	}
	assert.Equal(t, bodies[0], bodies[1])
	assert.Equal(t, bodies[0], bodies[2])
	assert.Contains(t, bodies[0], "INVALID_EXAM_LINK")
}

func TestExamMaxAge(t *testing.T) {
	f := newFixture(t, time.Hour)
	tok := f.token(candidate)
	require.Equal(t, http.StatusOK, f.do(http.MethodGet, "/exam/"+tok, "").Code)

	f.now = f.now.Add(2 * time.Hour)
	rec := f.do(http.MethodGet, "/exam/"+tok, "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Contains(t, rec.Body.String(), "INVALID_EXAM_LINK")
}

func TestExamBadInput(t *testing.T) {
	f := newFixture(t, 0)
	tok := f.token(candidate)

	assert.Equal(t, http.StatusNotFound, f.do(http.MethodGet, "/exam/"+tok+"/questions/9", "").Code)
	assert.Equal(t, http.StatusNotFound, f.do(http.MethodGet, "/exam/"+tok+"/questions/x", "").Code)
	assert.Equal(t, http.StatusBadRequest, f.do(http.MethodGet, "/exam/"+tok+"/questions/0?answers=!!", "").Code)

	// más respuestas que preguntas
	long := quiz.Serialize([]quiz.IndexSet{{}, {}, {}})
	assert.Equal(t, http.StatusBadRequest, f.do(http.MethodPost, "/exam/"+tok+"/submit?answers="+long, "").Code)

	rec := f.do(http.MethodPost, "/exam/"+tok+"/answers", `{"page":0,"index":7,"answers":""}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	rec = f.do(http.MethodPost, "/exam/"+tok+"/answers", `{"page":0,"index":0,"extra":1}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	unknown := f.token(exam.Examen{QuizID: "missing", Email: "a@b.c"})
	rec = f.do(http.MethodGet, "/exam/"+unknown, "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Contains(t, rec.Body.String(), "QUIZ_NOT_FOUND")
}

func TestAdminIssueAndResults(t *testing.T) {
	f := newFixture(t, 0)

	rec := f.do(http.MethodPost, "/admin/exams", `{"quiz":"demo","email":"marie@example.com","last_name":"Curie","first_name":"Marie","send":true}`)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	out := decode(t, rec)
	assert.Equal(t, true, out["sent"])
	assert.Equal(t, []string{"marie@example.com"}, f.mailer.to)
	tok := out["token"].(string)
	assert.Equal(t, email.ExamLink("https://quiz.example.com", tok), out["link"])

	got, err := f.codec.Redeem(tok)
	require.NoError(t, err)
	assert.Equal(t, exam.Examen{QuizID: "demo", Email: "marie@example.com", LastName: "Curie", FirstName: "Marie"}, got)

	assert.Equal(t, http.StatusNotFound, f.do(http.MethodPost, "/admin/exams", `{"quiz":"nope","email":"a@b.c"}`).Code)
	assert.Equal(t, http.StatusBadRequest, f.do(http.MethodPost, "/admin/exams", `{"email":"a@b.c"}`).Code)
	assert.Equal(t, http.StatusBadRequest, f.do(http.MethodPost, "/admin/exams", `{"quiz":"demo","send":true}`).Code)
	assert.Equal(t, http.StatusCreated, f.do(http.MethodPost, "/admin/exams", `{"quiz":"demo","last_name":"Curie"}`).Code)
	assert.Equal(t, http.StatusBadRequest, f.do(http.MethodPost, "/admin/exams", `{"quiz":"../etc","email":"a@b.c"}`).Code)

	require.Equal(t, http.StatusOK, f.do(http.MethodPost, "/exam/"+tok+"/submit", "").Code)
	rec = f.do(http.MethodGet, "/admin/results/demo?limit=5", "")
	require.Equal(t, http.StatusOK, rec.Code)
	passages := decode(t, rec)["passages"].([]any)
	require.Len(t, passages, 1)
	assert.Equal(t, "marie@example.com", passages[0].(map[string]any)["email"])

	me := decode(t, f.do(http.MethodGet, "/admin/me", ""))
	assert.Equal(t, "admin-1", me["sub"])

	assert.Equal(t, http.StatusBadRequest, f.do(http.MethodGet, "/admin/results/demo?limit=x", "").Code)
}

func TestHealthAndNotFound(t *testing.T) {
	f := newFixture(t, 0)
	rec := f.do(http.MethodGet, "/healthz", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ok", decode(t, rec)["status"])

	rec = f.do(http.MethodGet, "/nope", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Contains(t, rec.Body.String(), "ROUTE_NOT_FOUND")
	assert.NotEmpty(t, rec.Header().Get("X-Request-ID"))
}

// --- login ---

type fakeLogin struct {
	idToken string
	err     error
}

func (f *fakeLogin) AuthCodeURL(_ context.Context, state, nonce string) (string, error) {
	return "https://idp.example.com/authorize?state=" + url.QueryEscape(state) + "&nonce=" + url.QueryEscape(nonce), nil
}

func (f *fakeLogin) Exchange(context.Context, string) (*oidc.TokenResponse, error) {
	if f.err != nil {
		return nil, f.err
	}
	return &oidc.TokenResponse{IDToken: f.idToken}, nil
}

type fakeNonceVerifier struct{ nonce string }

func (f *fakeNonceVerifier) VerifyNonce(_ context.Context, raw, nonce string) (*oidc.IdentityClaims, error) {
	f.nonce = nonce
	if raw != "good-id-token" {
		return nil, &oidc.VerificationError{Kind: oidc.ErrBadSignature}
	}
	return &oidc.IdentityClaims{Subject: "s", ExpiresAt: time.Now().Add(time.Hour)}, nil
}

func cookieCodec(t *testing.T) *cookie.Codec {
	t.Helper()
	signer, err := cookie.NewSigner([]byte("cookie-secret"))
	require.NoError(t, err)
	box, err := secretbox.New([]byte("0123456789abcdef"))
	require.NoError(t, err)
	return cookie.NewCodec(signer, box)
}

func loginFixture(t *testing.T, idToken string, exchangeErr error) (http.Handler, *fakeNonceVerifier) {
	t.Helper()
	codec := cookieCodec(t)
	v := &fakeNonceVerifier{}
	f := newFixture(t, 0)
	h := New(Deps{
		Exam: &controllers.ExamController{Codec: f.codec},
		Auth: &controllers.AuthController{
			Client:   &fakeLogin{idToken: idToken, err: exchangeErr},
			Verifier: v,
			Logins:   codec.For("login"),
			Sessions: codec.For("session"),
		},
	})
	return h, v
}

func startLogin(t *testing.T, h http.Handler) (*http.Cookie, url.Values) {
	t.Helper()
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/auth/login", nil))
	require.Equal(t, http.StatusFound, rec.Code)
	loc, err := url.Parse(rec.Header().Get("Location"))
	require.NoError(t, err)
	cookies := rec.Result().Cookies()
	require.Len(t, cookies, 1)
	return cookies[0], loc.Query()
}

func callback(h http.Handler, c *http.Cookie, state string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, "/auth/callback?code=xyz&state="+url.QueryEscape(state), nil)
	if c != nil {
		req.AddCookie(c)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func sessionCookie(rec *httptest.ResponseRecorder) *http.Cookie {
	for _, c := range rec.Result().Cookies() {
		if c.Name == mw.SessionCookieName {
			return c
		}
	}
	return nil
}

func TestLoginCallback(t *testing.T) {
	h, v := loginFixture(t, "good-id-token", nil)
	lc, q := startLogin(t, h)
	assert.True(t, lc.HttpOnly)

	rec := callback(h, lc, q.Get("state"))
	require.Equal(t, http.StatusFound, rec.Code, rec.Body.String())
	assert.Equal(t, "/admin/me", rec.Header().Get("Location"))
	assert.Equal(t, q.Get("nonce"), v.nonce)
	sc := sessionCookie(rec)
	require.NotNil(t, sc)
	assert.NotContains(t, sc.Value, "good-id-token")
	assert.Greater(t, sc.MaxAge, 0)
}

func TestLoginCallbackRejects(t *testing.T) {
	h, _ := loginFixture(t, "good-id-token", nil)
	lc, q := startLogin(t, h)

	assert.Equal(t, http.StatusUnauthorized, callback(h, nil, q.Get("state")).Code)
	assert.Equal(t, http.StatusUnauthorized, callback(h, lc, "other-state").Code)
	forged := *lc
	forged.Value = "x" + forged.Value[1:]
	if forged.Value == lc.Value {
		forged.Value = "y" + lc.Value[1:]
	}
	assert.Equal(t, http.StatusUnauthorized, callback(h, &forged, q.Get("state")).Code)

	// un valor sellado como sesión no sirve como cookie de login
	asSession, err := cookieCodec(t).For("session").Seal("chosen-state chosen-nonce")
	require.NoError(t, err)
	swapped := *lc
	swapped.Value = asSession
	assert.Equal(t, http.StatusUnauthorized, callback(h, &swapped, "chosen-state").Code)

	h, _ = loginFixture(t, "forged-id-token", nil)
	lc, q = startLogin(t, h)
	rec := callback(h, lc, q.Get("state"))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Nil(t, sessionCookie(rec))

	h, _ = loginFixture(t, "", errors.New("idp down"))
	lc, q = startLogin(t, h)
	assert.Equal(t, http.StatusBadGateway, callback(h, lc, q.Get("state")).Code)
}

func TestLogout(t *testing.T) {
	h, _ := loginFixture(t, "good-id-token", nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/auth/logout", nil))
	assert.Equal(t, http.StatusNoContent, rec.Code)
	sc := sessionCookie(rec)
	require.NotNil(t, sc)
	assert.Less(t, sc.MaxAge, 0)
}
