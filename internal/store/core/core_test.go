package core

import (
	"testing"
	"testing/fstest"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPassagePrepare(t *testing.T) {
	now := time.Date(2024, 1, 2, 3, 4, 5, 0, time.FixedZone("CET", 3600))
	p := Passage{QuizName: "q", Email: "a@b.c", Answers: "W1tdXQ", Score: 50}
	require.NoError(t, p.Prepare(now))
	assert.NotEqual(t, uuid.Nil, p.ID)
	assert.Equal(t, time.UTC, p.CreatedAt.Location())

	id := p.ID
	require.NoError(t, p.Prepare(now.Add(time.Hour)))
	assert.Equal(t, id, p.ID)

	anon := Passage{QuizName: "q", LastName: "Dupont", Answers: "W1tdXQ"}
	require.NoError(t, anon.Prepare(now))

	for _, bad := range []Passage{
		{Email: "a@b.c", Answers: "x"},
		{QuizName: "q", Email: "a@b.c"},
		{QuizName: "q", Email: "a@b.c", Answers: "x", Score: 101},
		{QuizName: "q", Email: "a@b.c", Answers: "x", Score: -1},
	} {
		assert.ErrorIs(t, bad.Prepare(now), ErrInvalidPassage)
	}
}

func TestClampLimit(t *testing.T) {
	assert.Equal(t, DefaultListLimit, ClampLimit(0))
	assert.Equal(t, 10, ClampLimit(10))
	assert.Equal(t, 1000, ClampLimit(5000))
}

func TestParseMigrations(t *testing.T) {
	fsys := fstest.MapFS{
		"m/0002_index.sql": {Data: []byte("CREATE INDEX a ON t (x);\n")},
		"m/0001_init.sql":  {Data: []byte("-- tabla\nCREATE TABLE t (\n  x INT\n);\n\nCREATE INDEX b ON t (x);\n")},
		"m/README.md":      {Data: []byte("ignored")},
		"m/nonumber_x.sql": {Data: []byte("ignored")},
	}
	ms, err := ParseMigrations(fsys, "m")
	require.NoError(t, err)
	require.Len(t, ms, 2)
	assert.Equal(t, 1, ms[0].Version)
	assert.Equal(t, "init", ms[0].Name)
	assert.Equal(t, []string{"CREATE TABLE t (\n  x INT\n);", "CREATE INDEX b ON t (x);"}, ms[0].Statements)
	assert.Equal(t, 2, ms[1].Version)

	fsys["m/0002_dup.sql"] = &fstest.MapFile{Data: []byte("SELECT 1;")}
	_, err = ParseMigrations(fsys, "m")
	assert.Error(t, err)
}
