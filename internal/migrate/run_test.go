package migrate

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEmbeddedVersionsAreSorted(t *testing.T) {
	versions, err := embeddedVersions()
	require.NoError(t, err)
	require.NotEmpty(t, versions)
	assert.Equal(t, "0001_auth", versions[0])
	assert.IsIncreasing(t, versions)
}
