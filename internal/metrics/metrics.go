// Package metrics define los collectors Prometheus del servicio. Viven en un
// paquete aparte para que oidc, exam y http no dependan entre sí.
package metrics

import (
	"errors"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	IdentityVerifications = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "quizzy_identity_verifications_total",
		Help: "Verificaciones de id_token por resultado",
	}, []string{"result"})

	KeySetFetches = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "quizzy_keyset_fetches_total",
		Help: "Descargas de discovery/JWKS por documento y resultado",
	}, []string{"document", "result"})

	ExamRedemptions = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "quizzy_exam_redemptions_total",
		Help: "Canjes de token de examen (ok|invalid|too_old)",
	}, []string{"result"})

	QuizSubmissions = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "quizzy_quiz_submissions_total",
		Help: "Quizzes enviados por quiz",
	}, []string{"quiz"})

	QuizScore = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "quizzy_quiz_score",
		Help:    "Distribución de puntajes (0-100)",
		Buckets: prometheus.LinearBuckets(0, 10, 11),
	})

	HTTPRequests = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "quizzy_http_requests_total",
		Help: "Requests HTTP procesadas",
	}, []string{"method", "route", "status"})

	HTTPDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "quizzy_http_request_duration_seconds",
		Help:    "Latencia de los requests HTTP",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "route"})
)

func collectors() []prometheus.Collector {
	return []prometheus.Collector{
		IdentityVerifications, KeySetFetches, ExamRedemptions,
		QuizSubmissions, QuizScore, HTTPRequests, HTTPDuration,
	}
}

// Register registra todos los collectors en reg (o el default si es nil).
// Registrar dos veces no es error.
func Register(reg prometheus.Registerer) error {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	for _, c := range collectors() {
		if err := reg.Register(c); err != nil {
			var are prometheus.AlreadyRegisteredError
			if !errors.As(err, &are) {
				return err
			}
		}
	}
	return nil
}

// ObserveVerification es el observer para oidc.WithResultObserver.
func ObserveVerification(result string) {
	IdentityVerifications.WithLabelValues(result).Inc()
}

// ObserveFetch es el observer para oidc.WithFetchObserver.
func ObserveFetch(document, result string) {
	KeySetFetches.WithLabelValues(document, result).Inc()
}

func ObserveRedemption(result string) {
	ExamRedemptions.WithLabelValues(result).Inc()
}

// ObserveSubmission cuenta un envío y su puntaje.
func ObserveSubmission(quiz string, score int) {
	QuizSubmissions.WithLabelValues(quiz).Inc()
	QuizScore.Observe(float64(score))
}
