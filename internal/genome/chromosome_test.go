package genome

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalize(t *testing.T) {
	assert.Equal(t, "1", Normalize("chr1"))
	assert.Equal(t, "1", Normalize("1"))
	assert.Equal(t, "X", Normalize("chrX"))
	assert.Equal(t, "X", Normalize("x"))
	assert.Equal(t, "M", Normalize("MT"))
	assert.Equal(t, "M", Normalize("chrMT"))
	assert.Equal(t, "M", Normalize("chrM"))
}

func TestLength(t *testing.T) {
	n, ok := Length("chr7")
	assert.True(t, ok)
	assert.Equal(t, int64(159345973), n)

	_, ok = Length("chr99")
	assert.False(t, ok)
}

func TestIsKnown(t *testing.T) {
	assert.True(t, IsKnown("22"))
	assert.True(t, IsKnown("chrY"))
	assert.False(t, IsKnown("scaffold_123"))
}

func TestAllOrder(t *testing.T) {
	all := All()
	assert.Len(t, all, 25)
	assert.Equal(t, "1", all[0])
	assert.Equal(t, "2", all[1])
	assert.Equal(t, "10", all[9])
	assert.Equal(t, "22", all[21])
	assert.Equal(t, []string{"X", "Y", "M"}, all[22:])
}
