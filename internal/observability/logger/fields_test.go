package logger

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMaskEmail(t *testing.T) {
	cases := map[string]string{
		"":                         "",
		"ab":                       "***",
		"nobody":                   "n…y",
		"Ada.Lovelace@Example.org": "a…@e….org",
		"a@b.co.uk":                "a@b.co.uk",
		"ada@localhost":            "a…@l…",
	}
	for in, want := range cases {
		assert.Equal(t, want, MaskEmail(in), in)
	}
	assert.Equal(t, "a…@e….org", Email("ada@example.org").String)
}
