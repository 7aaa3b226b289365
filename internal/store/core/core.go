// Package core define el modelo y el contrato del store de resultados (pasajes de examen).
package core

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
)

var (
	ErrInvalidPassage = errors.New("store: invalid passage")
	ErrNotImplemented = errors.New("store: not implemented")
)

// Passage es un examen entregado: quién, qué quiz (nombre + huella de la
// definición), las respuestas serializadas y el puntaje.
type Passage struct {
	ID        uuid.UUID `json:"id"`
	QuizName  string    `json:"quiz_name"`
	QuizHash  string    `json:"quiz_hash"`
	Email     string    `json:"email"`
	LastName  string    `json:"last_name"`
	FirstName string    `json:"first_name"`
	ClientIP  string    `json:"client_ip,omitempty"`
	Answers   string    `json:"answers"`
	Score     int       `json:"score"`
	CreatedAt time.Time `json:"created_at"`
}

// Prepare completa ID y CreatedAt si faltan y valida los campos obligatorios.
// Email es opcional: un link puede emitirse sólo con el nombre del candidato.
func (p *Passage) Prepare(now time.Time) error {
	if strings.TrimSpace(p.QuizName) == "" || p.Answers == "" {
		return ErrInvalidPassage
	}
	if p.Score < 0 || p.Score > 100 {
		return ErrInvalidPassage
	}
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	if p.CreatedAt.IsZero() {
		p.CreatedAt = now.UTC()
	}
	return nil
}

// Repository persiste pasajes.
type Repository interface {
	Save(ctx context.Context, p *Passage) error
	// ListByQuiz devuelve los pasajes de un quiz, más recientes primero.
	ListByQuiz(ctx context.Context, quiz string, limit int) ([]Passage, error)
	Ping(ctx context.Context) error
	Close() error
}

const DefaultListLimit = 100

// ClampLimit normaliza el limit de ListByQuiz (0 o negativo = default, máx 1000).
func ClampLimit(limit int) int {
	switch {
	case limit <= 0:
		return DefaultListLimit
	case limit > 1000:
		return 1000
	}
	return limit
}
