package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegisterTwice(t *testing.T) {
	reg := prometheus.NewRegistry()
	require.NoError(t, Register(reg))
	require.NoError(t, Register(reg))

	ObserveSubmission("micronutrition", 80)
	mfs, err := reg.Gather()
	require.NoError(t, err)
	names := map[string]bool{}
	for _, mf := range mfs {
		names[mf.GetName()] = true
	}
	assert.True(t, names["quizzy_quiz_submissions_total"])
	assert.True(t, names["quizzy_quiz_score"])
}

func TestObservers(t *testing.T) {
	before := testutil.ToFloat64(IdentityVerifications.WithLabelValues("expired"))
	ObserveVerification("expired")
	assert.Equal(t, before+1, testutil.ToFloat64(IdentityVerifications.WithLabelValues("expired")))

	before = testutil.ToFloat64(KeySetFetches.WithLabelValues("jwks", "error"))
	ObserveFetch("jwks", "error")
	assert.Equal(t, before+1, testutil.ToFloat64(KeySetFetches.WithLabelValues("jwks", "error")))

	before = testutil.ToFloat64(ExamRedemptions.WithLabelValues("invalid"))
	ObserveRedemption("invalid")
	assert.Equal(t, before+1, testutil.ToFloat64(ExamRedemptions.WithLabelValues("invalid")))

	before = testutil.ToFloat64(QuizSubmissions.WithLabelValues("q"))
	ObserveSubmission("q", 50)
	assert.Equal(t, before+1, testutil.ToFloat64(QuizSubmissions.WithLabelValues("q")))
}
