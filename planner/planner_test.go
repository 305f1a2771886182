package planner

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPlan_WorkedVector(t *testing.T) {
	parts, err := Plan(100, 30)
	require.NoError(t, err)
	assert.Equal(t, []Part{
		{Number: 1, Offset: 0, Length: 30},
		{Number: 2, Offset: 30, Length: 30},
		{Number: 3, Offset: 60, Length: 30},
		{Number: 4, Offset: 90, Length: 10},
	}, parts)
}

func TestPlan_Empty(t *testing.T) {
	parts, err := Plan(0, 30)
	require.NoError(t, err)
	assert.Nil(t, parts)

	parts, err = Plan(100, 0)
	require.NoError(t, err)
	assert.Nil(t, parts)
}

func TestPlan_ExactMultiple(t *testing.T) {
	parts, err := Plan(60, 30)
	require.NoError(t, err)
	assert.Equal(t, []Part{
		{Number: 1, Offset: 0, Length: 30},
		{Number: 2, Offset: 30, Length: 30},
	}, parts)
}

func TestPlan_DoublesPartSizeUnderPartCap(t *testing.T) {
	// 10,001 parts at the minimum part size would exceed maxParts, so
	// the planner must double the part size at least once.
	fileSize := int64(maxParts+1) * minPartSize
	parts, err := Plan(fileSize, minPartSize)
	require.NoError(t, err)
	assert.Less(t, len(parts), maxParts+1)
	assert.Greater(t, parts[0].Length, int64(minPartSize))
}

func TestPlan_RejectsOversizedObject(t *testing.T) {
	_, err := Plan(maxObjectSize+1, minPartSize)
	assert.Error(t, err)
}

func TestPlan_LastPartNeverZeroUnlessFileEmpty(t *testing.T) {
	parts, err := Plan(90, 30)
	require.NoError(t, err)
	for _, p := range parts {
		assert.Greater(t, p.Length, int64(0))
	}
}

func TestMaxObjectSizeFitsWithinPartLimits(t *testing.T) {
	assert.GreaterOrEqual(t, int64(maxPartSize)*int64(maxParts), int64(maxObjectSize))
}
