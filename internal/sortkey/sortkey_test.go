package sortkey

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSortOrdersNumericParts(t *testing.T) {
	ids := []string{"dn1:1.10", "dn1:1.2", "dn1:0.1", "dn1:1.9", "dn2:1.1", "dn10:1.1", "dn1:1.1"}
	require.NoError(t, Sort(ids))
	assert.Equal(t, []string{"dn1:0.1", "dn1:1.1", "dn1:1.2", "dn1:1.9", "dn1:1.10", "dn2:1.1", "dn10:1.1"}, ids)
}

func TestSortHandlesRangesAndSubdivisions(t *testing.T) {
	ids := []string{"an1.2:1.1", "an1.1-10:1.1", "an1.11:0.1"}
	require.NoError(t, Sort(ids))
	assert.Equal(t, []string{"an1.1-10:1.1", "an1.2:1.1", "an1.11:0.1"}, ids)
}

func TestCompareNonASCIIDigits(t *testing.T) {
	// Devanagari two sorts like ASCII 2.
	c, err := Compare("mn२:1", "mn10:1")
	require.NoError(t, err)
	assert.Equal(t, -1, c)
}

func TestCompareLeadingZeros(t *testing.T) {
	c, err := Compare("sn1:01", "sn1:1")
	require.NoError(t, err)
	assert.NotEqual(t, 0, c, "distinct ids must not compare equal")
}

func TestSortReportsIncomparableIDs(t *testing.T) {
	ids := []string{"dn1:1.1", "1.2", "dn1:1.3"}
	err := Sort(ids)
	require.Error(t, err)

	var orderErr *OrderError
	require.True(t, errors.As(err, &orderErr))

	bad := IncomparablePairs([]string{"dn1:1.1", "1.2", "dn1:1.3"})
	require.Len(t, bad, 2)
	for _, pair := range bad {
		assert.True(t, pair.A == "1.2" || pair.B == "1.2", "unexpected pair %v", pair)
	}
}

func TestHumanNeverFails(t *testing.T) {
	names := []string{"sutta10", "_meta.json", "sutta2", "1-intro", "sutta1"}
	SortHuman(names)
	assert.Equal(t, []string{"1-intro", "_meta.json", "sutta1", "sutta2", "sutta10"}, names)
	assert.Equal(t, -1, Human("a2", "a10"))
	assert.Equal(t, 0, Human("a2", "a2"))
}
