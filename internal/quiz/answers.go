package quiz

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
)

// ErrDecode: el string de respuestas no es una codificación válida.
var ErrDecode = errors.New("quiz: malformed serialized answers")

// maxSerialized acota el tamaño aceptado desde la query string.
const maxSerialized = 4096

// IndexSet es el conjunto de índices de respuesta elegidos en una pregunta.
type IndexSet map[int]struct{}

func NewIndexSet(idx ...int) IndexSet {
	s := make(IndexSet, len(idx))
	for _, i := range idx {
		s[i] = struct{}{}
	}
	return s
}

func (s IndexSet) Has(i int) bool {
	_, ok := s[i]
	return ok
}

// Sorted devuelve los índices en orden ascendente (nunca nil).
func (s IndexSet) Sorted() []int {
	out := make([]int, 0, len(s))
	for i := range s {
		out = append(out, i)
	}
	sort.Ints(out)
	return out
}

// Equal es igualdad de conjuntos: ni subconjunto ni superconjunto.
func (s IndexSet) Equal(o IndexSet) bool {
	if len(s) != len(o) {
		return false
	}
	for i := range s {
		if !o.Has(i) {
			return false
		}
	}
	return true
}

func (s IndexSet) Clone() IndexSet {
	c := make(IndexSet, len(s))
	for i := range s {
		c[i] = struct{}{}
	}
	return c
}

// Serialize codifica el estado como JSON canónico ([[0,2],[1]], índices
// ordenados) en base64url sin padding. Mismo estado, mismo string.
func Serialize(state []IndexSet) string {
	lists := make([][]int, len(state))
	for i, s := range state {
		lists[i] = s.Sorted()
	}
	b, _ := json.Marshal(lists)
	return base64.RawURLEncoding.EncodeToString(b)
}

// Deserialize es la inversa de Serialize. También acepta la forma antigua
// (base64 con padding: para JSON de enteros el alfabeto estándar y el url-safe coinciden).
// No conoce el quiz: validar la cantidad de preguntas es del llamador.
func Deserialize(s string) ([]IndexSet, error) {
	if s == "" || len(s) > maxSerialized {
		return nil, ErrDecode
	}
	raw, err := decodeAnswers(s)
	if err != nil {
		return nil, ErrDecode
	}
	var lists [][]int
	if err := json.Unmarshal(raw, &lists); err != nil || lists == nil {
		return nil, ErrDecode
	}
	out := make([]IndexSet, len(lists))
	for q, l := range lists {
		set := make(IndexSet, len(l))
		for _, i := range l {
			if i < 0 {
				return nil, fmt.Errorf("%w: negative index in question %d", ErrDecode, q)
			}
			set[i] = struct{}{}
		}
		out[q] = set
	}
	return out, nil
}

func decodeAnswers(s string) ([]byte, error) {
	if b, err := base64.RawURLEncoding.DecodeString(s); err == nil {
		return b, nil
	}
	return base64.URLEncoding.DecodeString(s)
}
