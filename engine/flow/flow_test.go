package flow_test

import (
	"testing"

	"github.com/nika/nika/engine/flow"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew_RejectsUnknownNode(t *testing.T) {
	t.Run("Should reject a flow referencing an undeclared task", func(t *testing.T) {
		_, err := flow.New([]string{"a"}, []flow.Edge{{Source: "a", Target: "ghost"}})
		assert.Error(t, err)
	})
}

func TestGraph_Diamond(t *testing.T) {
	t.Run("Should compute reachability and final tasks for a diamond", func(t *testing.T) {
		g, err := flow.New(
			[]string{"a", "b", "c", "d"},
			[]flow.Edge{{Source: "a", Target: "b"}, {Source: "a", Target: "c"}, {Source: "b", Target: "d"}, {Source: "c", Target: "d"}},
		)
		require.NoError(t, err)

		_, hasCycle := g.DetectCycles()
		assert.False(t, hasCycle)
		assert.True(t, g.HasPath("a", "d"))
		assert.True(t, g.HasPath("b", "d"))
		assert.True(t, g.HasPath("c", "d"))
		assert.False(t, g.HasPath("d", "a"))
		assert.Equal(t, []string{"d"}, g.FinalTasks())
		assert.ElementsMatch(t, []string{"b", "c"}, g.Dependencies("d"))
	})
}

func TestGraph_Cycle(t *testing.T) {
	t.Run("Should detect a cycle among b, c, d", func(t *testing.T) {
		g, err := flow.New(
			[]string{"a", "b", "c", "d"},
			[]flow.Edge{{Source: "a", Target: "b"}, {Source: "b", Target: "c"}, {Source: "c", Target: "d"}, {Source: "d", Target: "b"}},
		)
		require.NoError(t, err)

		cycle, hasCycle := g.DetectCycles()
		require.True(t, hasCycle)
		assert.Contains(t, cycle, "b")
		assert.Contains(t, cycle, "c")
		assert.Contains(t, cycle, "d")
	})
}

func TestGraph_SelfLoop(t *testing.T) {
	t.Run("Should detect a self-loop as a cycle", func(t *testing.T) {
		g, err := flow.New([]string{"a"}, []flow.Edge{{Source: "a", Target: "a"}})
		require.NoError(t, err)
		_, hasCycle := g.DetectCycles()
		assert.True(t, hasCycle)
	})
}

func TestGraph_NoEdges(t *testing.T) {
	t.Run("Should treat every isolated node as both dependency-free and final", func(t *testing.T) {
		g, err := flow.New([]string{"a", "b"}, nil)
		require.NoError(t, err)
		assert.ElementsMatch(t, []string{"a", "b"}, g.FinalTasks())
		assert.Empty(t, g.Dependencies("a"))
	})
}

func TestExpandFlows(t *testing.T) {
	t.Run("Should expand list endpoints to the cross-product of edges", func(t *testing.T) {
		edges := flow.ExpandFlows([]flow.Spec{{Source: []string{"a", "b"}, Target: []string{"c", "d"}}})
		assert.ElementsMatch(t, []flow.Edge{
			{Source: "a", Target: "c"}, {Source: "a", Target: "d"},
			{Source: "b", Target: "c"}, {Source: "b", Target: "d"},
		}, edges)
	})
}
