package quiz

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	tokens "github.com/ydethe/quizzy/internal/security/token"
)

var (
	ErrQuizNotFound = errors.New("quiz: not found")
	ErrInvalidQuiz  = errors.New("quiz: invalid definition")
)

// Source entrega una instancia nueva (sin respuestas) de un quiz por nombre.
type Source interface {
	Load(ctx context.Context, name string) (*Quiz, error)
}

var validName = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9_-]{0,63}$`)

// ValidName indica si name puede usarse como nombre de quiz (y de archivo).
func ValidName(name string) bool { return validName.MatchString(name) }

// definition es la forma en disco (YAML) y en cache (JSON).
type definition struct {
	Welcome    string         `yaml:"message_accueil" json:"message_accueil"`
	StartLabel string         `yaml:"text_bouton" json:"text_bouton"`
	Questions  []questionDef  `yaml:"questions" json:"questions"`
	Bands      map[int]string `yaml:"echelle_scores" json:"echelle_scores"`
}

type questionDef struct {
	Text        string   `yaml:"text" json:"text"`
	Answers     []string `yaml:"answers" json:"answers"`
	GoodAnswers []int    `yaml:"good_answers" json:"good_answers"`
}

// Parse valida un YAML de quiz. El nombre viene del archivo, no del contenido.
func Parse(name string, data []byte) (*Quiz, error) {
	var def definition
	dec := yaml.NewDecoder(bytes.NewReader(data))
	if err := dec.Decode(&def); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrInvalidQuiz, name, err)
	}
	q, err := def.build(name)
	if err != nil {
		return nil, err
	}
	q.Hash = tokens.Fingerprint(data)
	return q, nil
}

func (d definition) build(name string) (*Quiz, error) {
	if len(d.Questions) == 0 {
		return nil, fmt.Errorf("%w: %s: no questions", ErrInvalidQuiz, name)
	}
	q := &Quiz{
		Name:       name,
		Welcome:    d.Welcome,
		StartLabel: d.StartLabel,
		Questions:  make([]Question, len(d.Questions)),
	}
	for i, qd := range d.Questions {
		if strings.TrimSpace(qd.Text) == "" || len(qd.Answers) == 0 {
			return nil, fmt.Errorf("%w: %s: question %d needs text and answers", ErrInvalidQuiz, name, i)
		}
		for _, g := range qd.GoodAnswers {
			if g < 0 || g >= len(qd.Answers) {
				return nil, fmt.Errorf("%w: %s: question %d: good answer %d out of range", ErrInvalidQuiz, name, i, g)
			}
		}
		q.Questions[i] = Question{
			Text:    qd.Text,
			Answers: append([]string(nil), qd.Answers...),
			Correct: NewIndexSet(qd.GoodAnswers...),
			User:    IndexSet{},
		}
	}
	for t, msg := range d.Bands {
		if t < 0 || t > 100 {
			return nil, fmt.Errorf("%w: %s: score threshold %d outside 0..100", ErrInvalidQuiz, name, t)
		}
		q.ScoreBands = append(q.ScoreBands, ScoreBand{Threshold: t, Message: msg})
	}
	sortBands(q.ScoreBands)
	return q, nil
}

func (q *Quiz) definition() definition {
	d := definition{
		Welcome:    q.Welcome,
		StartLabel: q.StartLabel,
		Questions:  make([]questionDef, len(q.Questions)),
		Bands:      make(map[int]string, len(q.ScoreBands)),
	}
	for i, qu := range q.Questions {
		d.Questions[i] = questionDef{Text: qu.Text, Answers: qu.Answers, GoodAnswers: qu.Correct.Sorted()}
	}
	for _, b := range q.ScoreBands {
		d.Bands[b.Threshold] = b.Message
	}
	return d
}

// DirSource lee <dir>/<name>.yml (o .yaml) en cada Load.
type DirSource struct {
	dir string
}

func NewDirSource(dir string) *DirSource { return &DirSource{dir: dir} }

func (s *DirSource) Dir() string { return s.dir }

func (s *DirSource) Load(_ context.Context, name string) (*Quiz, error) {
	if !ValidName(name) {
		return nil, ErrQuizNotFound
	}
	for _, ext := range []string{".yml", ".yaml"} {
		data, err := os.ReadFile(filepath.Join(s.dir, name+ext))
		if errors.Is(err, os.ErrNotExist) {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("quiz: read %s: %w", name, err)
		}
		return Parse(name, data)
	}
	return nil, ErrQuizNotFound
}

// List devuelve los nombres de quiz disponibles, ordenados.
func (s *DirSource) List(context.Context) ([]string, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, err
	}
	var out []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		if name, ok := quizName(e.Name()); ok {
			out = append(out, name)
		}
	}
	sort.Strings(out)
	return out, nil
}

// quizName extrae el nombre de quiz de un nombre de archivo .yml/.yaml.
func quizName(file string) (string, bool) {
	ext := filepath.Ext(file)
	if ext != ".yml" && ext != ".yaml" {
		return "", false
	}
	name := strings.TrimSuffix(file, ext)
	return name, ValidName(name)
}
