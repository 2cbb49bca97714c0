package parser

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dshills/ctxgraph/pkg/types"
)

const guide = "Intro paragraph\nspans two lines.\n\n" +
	"# Search Guide\n\nHow searching works. See [setup](../setup.md#install).\n\n" +
	"## Strategies\n\nKeyword and semantic.\n\n" +
	"```bash\n# not a heading\n```\n\n" +
	"### Keyword\n\nFull text. [web](https://example.com/x.md)\n\n" +
	"## Strategies\n\nDuplicate title.\n"

func TestParseMarkdown(t *testing.T) {
	result := New().ParseMarkdown(FileInfo{RelPath: "docs/guide.md"}, []byte(guide))

	doc := entityByID(t, result, "docs/guide.md")
	assert.Equal(t, types.EntityDocument, doc.Type)
	assert.Equal(t, "Search Guide", doc.Name)
	assert.Equal(t, "Intro paragraph spans two lines.", doc.Summary)
	assert.Equal(t, "Intro paragraph\nspans two lines.", doc.Content)

	top := entityByID(t, result, "docs/guide.md#search-guide")
	assert.Equal(t, types.EntitySection, top.Type)
	assert.Equal(t, 4, top.StartLine)
	assert.Equal(t, "1", top.Metadata[MetaLevel])
	assert.Equal(t, "How searching works. See [setup](../setup.md#install).", top.Summary)

	strategies := entityByID(t, result, "docs/guide.md#strategies")
	assert.Contains(t, strategies.Content, "# not a heading")
	keyword := entityByID(t, result, "docs/guide.md#keyword")
	dup := entityByID(t, result, "docs/guide.md#strategies-1")
	assert.Equal(t, "Strategies", dup.Name)

	// 1 document + 4 sections; the fenced comment is not a heading
	assert.Len(t, result.Entities, 5)

	assert.True(t, hasRel(result, doc.ID, top.ID, types.RelContains))
	assert.True(t, hasRel(result, top.ID, strategies.ID, types.RelContains))
	assert.True(t, hasRel(result, strategies.ID, keyword.ID, types.RelContains))
	assert.True(t, hasRel(result, top.ID, dup.ID, types.RelContains))

	require.Len(t, result.References, 1)
	assert.Equal(t, types.RelationshipRef{
		SourceID: top.ID, TargetQualifiedName: "setup.md", Type: types.RelRelatesTo,
	}, result.References[0])
}

func TestParseMarkdown_NoHeadings(t *testing.T) {
	result := New().ParseMarkdown(FileInfo{RelPath: "NOTES.md"}, []byte("just text\n"))
	require.Len(t, result.Entities, 1)
	assert.Equal(t, "NOTES.md", result.Entities[0].Name)
	assert.Equal(t, "just text", result.Entities[0].Content)
}

func TestSlugify(t *testing.T) {
	assert.Equal(t, "hello-world", slugify("Hello, World!"))
	assert.Equal(t, "a-b-c", slugify("a - b _ c"))
	assert.Equal(t, "", slugify("!!!"))
}

func TestIsMarkdown(t *testing.T) {
	assert.True(t, IsMarkdown("README.md"))
	assert.True(t, IsMarkdown("a/b.MARKDOWN"))
	assert.False(t, IsMarkdown("main.go"))
}
