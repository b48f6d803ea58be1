package docparse

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func readFixture(t *testing.T) []byte {
	t.Helper()
	data, err := os.ReadFile(filepath.Join("testdata", "reference.html"))
	require.NoError(t, err)
	return data
}

func TestReadHTMLBoundsAndKinds(t *testing.T) {
	nodes, err := ReadHTML(readFixture(t), DefaultReadOptions("rest-api-account", "rest-api-status"))
	require.NoError(t, err)
	require.NotEmpty(t, nodes)

	assert.Equal(t, KindSectionHeading, nodes[0].Kind)
	assert.Equal(t, "rest-api-account", nodes[0].ID)
	for _, n := range nodes {
		assert.NotEqual(t, "rest-api-status", n.ID, "end anchor must be excluded")
		assert.NotEqual(t, "overview", n.ID, "nodes before the start anchor must be excluded")
	}

	counts := map[Kind]int{}
	for _, n := range nodes {
		counts[n.Kind]++
	}
	assert.Equal(t, 2, counts[KindSectionHeading])
	assert.Equal(t, 3, counts[KindEndpointHeading])
	assert.Equal(t, 7, counts[KindTable])
}

func TestReadHTMLCodeAndTables(t *testing.T) {
	nodes, err := ReadHTML(readFixture(t), DefaultReadOptions("rest-api-account", "rest-api-status"))
	require.NoError(t, err)

	var plain, jsonBlocks int
	var firstTable *Node
	for i := range nodes {
		n := &nodes[i]
		switch {
		case n.Kind == KindCode && n.Flavor == FlavorPlaintext:
			plain++
		case n.Kind == KindCode && n.Flavor == FlavorJSON:
			jsonBlocks++
		case n.Kind == KindTable && firstTable == nil:
			firstTable = n
		}
	}
	assert.Equal(t, 3, plain)
	assert.Equal(t, 2, jsonBlocks)

	require.NotNil(t, firstTable)
	assert.Equal(t, []string{"Parameter", "Type", "Required", "Description"}, firstTable.Header)
	require.Len(t, firstTable.Rows, 1)
	assert.Equal(t, "ccy", firstTable.Rows[0][0])
}

func TestReadHTMLInlineCode(t *testing.T) {
	nodes, err := ReadHTML(readFixture(t), DefaultReadOptions("rest-api-account", "rest-api-status"))
	require.NoError(t, err)

	for _, n := range nodes {
		if n.Kind == KindParagraph && n.Text == "GET /api/v5/account/balance" {
			assert.True(t, n.HasInlineCode)
			return
		}
	}
	t.Fatalf("declaration paragraph not found")
}

func TestReadHTMLMissingAnchors(t *testing.T) {
	_, err := ReadHTML(readFixture(t), DefaultReadOptions("nope", "rest-api-status"))
	assert.ErrorIs(t, err, ErrStartNotFound)

	_, err = ReadHTML(readFixture(t), DefaultReadOptions("rest-api-account", "nope"))
	assert.ErrorIs(t, err, ErrEndNotFound)
}
