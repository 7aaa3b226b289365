package quiz

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestScore(t *testing.T) {
	key := sets([]int{0, 2}, []int{1})

	cases := []struct {
		name string
		user []IndexSet
		want int
	}{
		{"all correct", sets([]int{2, 0}, []int{1}), 100},
		{"subset is wrong", sets([]int{0}, []int{1}), 50},
		{"superset is wrong", sets([]int{0, 1, 2}, []int{1}), 50},
		{"none", sets(nil, nil), 0},
		{"missing entries count as empty", sets([]int{0, 2}), 50},
		{"extra entries ignored", sets([]int{0, 2}, []int{1}, []int{4}), 100},
	}
	for _, tc := range cases {
		got, err := Score(tc.user, key)
		require.NoError(t, err, tc.name)
		assert.Equal(t, tc.want, got, tc.name)
	}
}

func TestScore_Truncates(t *testing.T) {
	key := sets([]int{0}, []int{0}, []int{0})
	got, err := Score(sets([]int{0}, []int{0}, nil), key)
	require.NoError(t, err)
	assert.Equal(t, 66, got)

	got, err = Score(sets([]int{0}, nil, nil), key)
	require.NoError(t, err)
	assert.Equal(t, 33, got)
}

func TestScore_EmptyKeyMustBeEmpty(t *testing.T) {
	key := sets(nil)
	got, err := Score(sets(nil), key)
	require.NoError(t, err)
	assert.Equal(t, 100, got)

	got, err = Score(sets([]int{0}), key)
	require.NoError(t, err)
	assert.Equal(t, 0, got)
}

func TestScore_EmptyQuiz(t *testing.T) {
	_, err := Score(sets([]int{0}), nil)
	assert.ErrorIs(t, err, ErrEmptyQuiz)
	_, err = Score(nil, []IndexSet{})
	assert.ErrorIs(t, err, ErrEmptyQuiz)
}
