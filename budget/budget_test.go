package budget

import (
	"strings"
	"testing"

	"github.com/strandworks/strand/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// charEstimator makes costs exact: one token per byte.
func charEstimator(text string) int { return len(text) }

func TestAllocatorAdd(t *testing.T) {
	t.Run("charges bucket and tracks remaining", func(t *testing.T) {
		a := NewAllocator(Profile{"ctx": 10}, WithEstimator(charEstimator))

		require.NoError(t, a.Add("ctx", "abcd"))
		remaining, err := a.Remaining("ctx")
		require.NoError(t, err)
		assert.Equal(t, 6, remaining)
	})

	t.Run("overflow rejects without mutation", func(t *testing.T) {
		a := NewAllocator(Profile{"ctx": 10}, WithEstimator(charEstimator))
		require.NoError(t, a.Add("ctx", "abcd"))

		err := a.Add("ctx", strings.Repeat("x", 7))
		var overflow *ErrBucketOverflow
		require.ErrorAs(t, err, &overflow)
		assert.Equal(t, 7, overflow.Need)
		assert.Equal(t, 6, overflow.Remaining)

		// The failed add must not have consumed anything.
		remaining, _ := a.Remaining("ctx")
		assert.Equal(t, 6, remaining)
		require.NoError(t, a.Add("ctx", strings.Repeat("x", 6)))
	})

	t.Run("unknown bucket", func(t *testing.T) {
		a := NewAllocator(Profile{"ctx": 10})

		_, err := a.Remaining("nope")
		var unknown *ErrUnknownBucket
		assert.ErrorAs(t, err, &unknown)
		assert.False(t, a.CanAdd("nope", "x"))
	})
}

func TestAllocatorCanAdd(t *testing.T) {
	a := NewAllocator(Profile{"ctx": 5}, WithEstimator(charEstimator))

	assert.True(t, a.CanAdd("ctx", "abcde"))
	assert.False(t, a.CanAdd("ctx", "abcdef"))

	// CanAdd never mutates.
	remaining, _ := a.Remaining("ctx")
	assert.Equal(t, 5, remaining)
}

func TestAllocatorSelect(t *testing.T) {
	t.Run("greedy by relevance, skipping items that no longer fit", func(t *testing.T) {
		a := NewAllocator(Profile{"ctx": 100}, WithEstimator(charEstimator))
		items := []store.Item{
			{Name: "A", Content: strings.Repeat("a", 60), Relevance: 3},
			{Name: "B", Content: strings.Repeat("b", 50), Relevance: 2},
			{Name: "C", Content: strings.Repeat("c", 10), Relevance: 1},
		}

		selected, err := a.Select("ctx", items)
		require.NoError(t, err)

		// A first by relevance; B no longer fits (60+50 > 100); C does.
		require.Len(t, selected, 2)
		assert.Equal(t, "A", selected[0].Name)
		assert.Equal(t, "C", selected[1].Name)

		remaining, _ := a.Remaining("ctx")
		assert.Equal(t, 30, remaining)
	})

	t.Run("equal relevance prefers smaller cost", func(t *testing.T) {
		a := NewAllocator(Profile{"ctx": 100}, WithEstimator(charEstimator))
		items := []store.Item{
			{Name: "big", Content: strings.Repeat("x", 40), Relevance: 1},
			{Name: "small", Content: strings.Repeat("x", 10), Relevance: 1},
		}

		selected, err := a.Select("ctx", items)
		require.NoError(t, err)
		require.Len(t, selected, 2)
		assert.Equal(t, "small", selected[0].Name)
	})

	t.Run("item larger than whole bucket is skipped", func(t *testing.T) {
		a := NewAllocator(Profile{"ctx": 10}, WithEstimator(charEstimator))
		items := []store.Item{
			{Name: "huge", Content: strings.Repeat("x", 50), Relevance: 5},
			{Name: "ok", Content: strings.Repeat("x", 8), Relevance: 1},
		}

		selected, err := a.Select("ctx", items)
		require.NoError(t, err)
		require.Len(t, selected, 1)
		assert.Equal(t, "ok", selected[0].Name)
	})

	t.Run("selection respects prior adds", func(t *testing.T) {
		a := NewAllocator(Profile{"ctx": 20}, WithEstimator(charEstimator))
		require.NoError(t, a.Add("ctx", strings.Repeat("x", 15)))

		selected, err := a.Select("ctx", []store.Item{
			{Name: "A", Content: strings.Repeat("a", 10), Relevance: 2},
			{Name: "B", Content: strings.Repeat("b", 5), Relevance: 1},
		})
		require.NoError(t, err)
		require.Len(t, selected, 1)
		assert.Equal(t, "B", selected[0].Name)
	})
}

func TestProfileFor(t *testing.T) {
	for _, kind := range []OperationKind{KindGeneration, KindEdit, KindDiagnostic} {
		p := ProfileFor(kind, 1000)
		total := 0
		for _, c := range p {
			assert.Positive(t, c, "kind %s", kind)
			total += c
		}
		assert.LessOrEqual(t, total, 1000, "kind %s", kind)
	}
}

func TestHeuristicEstimator(t *testing.T) {
	assert.Zero(t, HeuristicEstimator(""))
	assert.Equal(t, 1, HeuristicEstimator("ab"))
	assert.Equal(t, 3, HeuristicEstimator(strings.Repeat("x", 12)))

	// Monotone: a prefix never costs more than the whole.
	whole := strings.Repeat("word ", 50)
	for i := 0; i < len(whole); i += 17 {
		assert.LessOrEqual(t, HeuristicEstimator(whole[:i]), HeuristicEstimator(whole))
	}
}
