package common

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCoalesce(t *testing.T) {
	assert.Equal(t, "b", Coalesce("", "b", "c"))
	assert.Equal(t, 3, Coalesce(0, 3, 4))
	assert.Equal(t, 0, Coalesce(0, 0))
	assert.Equal(t, "", Coalesce[string]())
}
