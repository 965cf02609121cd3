package fingerprint

import (
	"regexp"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMachineIDStable(t *testing.T) {
	p := New()

	first, err := p.MachineID()
	require.NoError(t, err)

	second, err := p.MachineID()
	require.NoError(t, err)
	assert.Equal(t, first, second, "machine id must be stable within a process")
}

func TestMachineIDFormat(t *testing.T) {
	id, err := New().MachineID()
	require.NoError(t, err)

	assert.Len(t, id, 32)
	assert.Regexp(t, regexp.MustCompile(`^[0-9a-f]{32}$`), id)
}

func TestMachineIDAgreesAcrossProviders(t *testing.T) {
	a, err := New().MachineID()
	require.NoError(t, err)
	b, err := New().MachineID()
	require.NoError(t, err)
	assert.Equal(t, a, b, "same hardware must yield the same id")
}

func TestValidMAC(t *testing.T) {
	assert.False(t, validMAC(""))
	assert.False(t, validMAC("00:00:00:00:00:00"))
	assert.True(t, validMAC("aa:bb:cc:dd:ee:ff"))
}
