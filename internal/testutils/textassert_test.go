package testutils

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTextAsserter_Diff(t *testing.T) {
	ta := NewTextAsserter(t)

	assert.Empty(t, ta.diff("a\nb  \n\n", "a\nb"), "trailing whitespace is ignored by default")

	diff := ta.diff("a\nc", "a\nb")
	assert.Contains(t, diff, "--- expected")
	assert.Contains(t, diff, "+++ actual")
	assert.Contains(t, diff, "-b")
	assert.Contains(t, diff, "+c")
}

func TestTextAsserter_ExactWhitespace(t *testing.T) {
	ta := NewTextAsserter(t, WithExactWhitespace())
	assert.NotEmpty(t, ta.diff("a \n", "a"))
}

func TestTextAsserter_Colors(t *testing.T) {
	ta := NewTextAsserter(t, WithColors())
	assert.Contains(t, ta.diff("x", "y"), "\x1b[")
}
