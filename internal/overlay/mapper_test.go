package overlay_test

import (
	"testing"

	"github.com/MeKo-Tech/cellgrid/internal/blocks"
	"github.com/MeKo-Tech/cellgrid/internal/overlay"
	"github.com/MeKo-Tech/cellgrid/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMapper_Root(t *testing.T) {
	m := overlay.NewMapper(blocks.Build(testutil.TwoByTwoMerged().Blocks()))

	tests := []struct {
		id   string
		want string
	}{
		{id: "c1", want: "m1"},
		{id: "c2", want: "m1"},
		{id: "m1", want: "m1"},
		{id: "c3", want: "c3"},
		{id: "nope", want: "nope"},
	}
	for _, tt := range tests {
		t.Run(tt.id, func(t *testing.T) {
			assert.Equal(t, tt.want, m.Root(tt.id))
		})
	}
}

func TestMapper_RegionsOnePerRoot(t *testing.T) {
	m := overlay.NewMapper(blocks.Build(testutil.TwoByTwoMerged().Blocks()))
	regions := m.Regions()
	require.Len(t, regions, 3)

	assert.Equal(t, "m1", regions[0].Root)
	assert.Equal(t, "c1", regions[0].ClickID)
	assert.True(t, regions[0].Merged)
	assert.InDelta(t, 0.2, regions[0].Box.Width, 1e-9)

	assert.Equal(t, "c3", regions[1].Root)
	assert.Equal(t, "c4", regions[2].Root)
	assert.Equal(t, m.Root(regions[0].ClickID), regions[0].Root)
}

func TestMapper_RegionsFixture(t *testing.T) {
	m := overlay.NewMapper(blocks.Build(testutil.LoadResponse(t, "merged_table.json")))
	regions := m.Regions()

	roots := make(map[string]int)
	for _, r := range regions {
		roots[r.Root]++
	}
	assert.Len(t, regions, 8)
	assert.Equal(t, 1, roots["merged-1"])
	assert.NotContains(t, roots, "cell-32")
	assert.NotContains(t, roots, "cell-33")
}

func TestMark(t *testing.T) {
	regions := []overlay.Region{{Root: "a"}, {Root: "b"}}
	overlay.Mark(regions,
		func(root string) bool { return root == "a" },
		func(root string) bool { return root == "b" },
	)

	assert.True(t, regions[0].Selected)
	assert.False(t, regions[0].Tagged)
	assert.True(t, regions[1].Tagged)
	assert.False(t, regions[1].Selected)
}
