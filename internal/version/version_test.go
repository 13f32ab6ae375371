package version

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestUserAgent(t *testing.T) {
	orig := Release
	t.Cleanup(func() { Release = orig })

	Release = "v1.2.3"

	assert.Equal(t, "tsexporter/v1.2.3", UserAgent())
	assert.Contains(t, Full(), "v1.2.3")
}
