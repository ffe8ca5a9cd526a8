package tracker

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func runLAPTest(t *testing.T, costMatrix [][]float64, expectedX, expectedY []int) {

	x, y, err := solveLAP(costMatrix)
	require.NoError(t, err)

	for i := range costMatrix {
		if x[i] != expectedX[i] {
			t.Errorf("Expected x[%d] = %d, but got %d", i, expectedX[i], x[i])
		}
		if y[i] != expectedY[i] {
			t.Errorf("Expected y[%d] = %d, but got %d", i, expectedY[i], y[i])
		}
	}
}

func TestSolveLAP(t *testing.T) {
	costMatrix1 := [][]float64{
		{4, 1, 3, 2},
		{2, 0, 5, 3},
		{3, 2, 2, 3},
		{2, 3, 3, 2},
	}

	expectedX1 := []int{3, 1, 2, 0}
	expectedY1 := []int{3, 1, 2, 0}

	costMatrix2 := [][]float64{
		{10, 19, 8, 15},
		{10, 18, 7, 17},
		{13, 16, 9, 14},
		{12, 19, 8, 18},
	}

	expectedX2 := []int{3, 0, 1, 2}
	expectedY2 := []int{1, 2, 3, 0}

	t.Run("Test Case 1", func(t *testing.T) {
		runLAPTest(t, costMatrix1, expectedX1, expectedY1)
	})

	t.Run("Test Case 2", func(t *testing.T) {
		runLAPTest(t, costMatrix2, expectedX2, expectedY2)
	})
}

func TestSolveLAPEmpty(t *testing.T) {
	x, y, err := solveLAP(nil)
	require.NoError(t, err)
	assert.Empty(t, x)
	assert.Empty(t, y)
}

func TestSolveAssignment(t *testing.T) {

	t.Run("rectangular with limit", func(t *testing.T) {
		// three detections, two live objects, the last detection is
		// too far from everything
		cost := [][]float64{
			{20, 20},
			{5, 35},
			{90, 80},
		}

		matched, err := solveAssignment(cost, 35)
		require.NoError(t, err)
		assert.Equal(t, []int{1, 0, -1}, matched)
	})

	t.Run("pair at limit is rejected", func(t *testing.T) {
		matched, err := solveAssignment([][]float64{{35}}, 35)
		require.NoError(t, err)
		assert.Equal(t, []int{-1}, matched)
	})

	t.Run("no columns", func(t *testing.T) {
		matched, err := solveAssignment([][]float64{{}, {}}, 35)
		require.NoError(t, err)
		assert.Equal(t, []int{-1, -1}, matched)
	})

	t.Run("no rows", func(t *testing.T) {
		matched, err := solveAssignment(nil, 35)
		require.NoError(t, err)
		assert.Empty(t, matched)
	})
}
