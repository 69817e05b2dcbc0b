package llm

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNonBlank(t *testing.T) {
	in := []string{"hello", "", "  \n\t", "world"}

	got := nonBlank(in)
	assert.Equal(t, []string{"hello", " ", " ", "world"}, got)
	assert.Equal(t, []string{"hello", "", "  \n\t", "world"}, in)
	assert.Empty(t, nonBlank(nil))
}
