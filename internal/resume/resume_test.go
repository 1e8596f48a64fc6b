package resume

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yoockh/yoointerview/internal/logger"
	"github.com/yoockh/yoointerview/internal/providers/embedding"
	"github.com/yoockh/yoointerview/internal/vectorindex"
)

func TestExtractText(t *testing.T) {
	text, err := Extract("cv.TXT", []byte("Jane Doe\nGo engineer"))
	require.NoError(t, err)
	assert.Equal(t, "Jane Doe\nGo engineer", text)

	_, err = Extract("cv.rtf", []byte("x"))
	assert.ErrorIs(t, err, ErrUnsupportedFormat)

	_, err = Extract("cv.txt", []byte{0xff, 0xfe, 0xfd})
	assert.Error(t, err)
}

// onePagePDF builds a minimal PDF with text drawn in Helvetica.
func onePagePDF(text string) []byte {
	content := fmt.Sprintf("BT /F1 12 Tf 72 720 Td (%s) Tj ET", text)
	objects := []string{
		"<< /Type /Catalog /Pages 2 0 R >>",
		"<< /Type /Pages /Kids [3 0 R] /Count 1 >>",
		"<< /Type /Page /Parent 2 0 R /MediaBox [0 0 612 792] /Resources << /Font << /F1 5 0 R >> >> /Contents 4 0 R >>",
		fmt.Sprintf("<< /Length %d >>\nstream\n%s\nendstream", len(content), content),
		"<< /Type /Font /Subtype /Type1 /BaseFont /Helvetica /Encoding /WinAnsiEncoding >>",
	}

	var b bytes.Buffer
	b.WriteString("%PDF-1.4\n")
	offsets := make([]int, len(objects))
	for i, obj := range objects {
		offsets[i] = b.Len()
		fmt.Fprintf(&b, "%d 0 obj\n%s\nendobj\n", i+1, obj)
	}
	xref := b.Len()
	fmt.Fprintf(&b, "xref\n0 %d\n0000000000 65535 f \n", len(objects)+1)
	for _, off := range offsets {
		fmt.Fprintf(&b, "%010d 00000 n \n", off)
	}
	fmt.Fprintf(&b, "trailer\n<< /Size %d /Root 1 0 R >>\nstartxref\n%d\n%%%%EOF\n", len(objects)+1, xref)
	return b.Bytes()
}

func TestExtractPDF(t *testing.T) {
	pdf := onePagePDF("Senior Go engineer with Kafka experience")

	key := os.Getenv("UNIDOC_LICENSE_API_KEY")
	if key == "" {
		// without a key every page fails; the cause must surface instead of an empty resume
		text, err := Extract("cv.pdf", pdf)
		require.Error(t, err)
		assert.Empty(t, text)
		assert.Contains(t, err.Error(), "PDF")
		return
	}

	require.NoError(t, SetPDFLicense(key))
	text, err := Extract("cv.pdf", pdf)
	require.NoError(t, err)
	assert.Contains(t, text, "Senior Go engineer with Kafka experience")
}

func TestExtractPDFRejectsGarbage(t *testing.T) {
	_, err := Extract("cv.pdf", []byte("definitely not a pdf"))
	assert.Error(t, err)
}

func TestSupported(t *testing.T) {
	assert.True(t, Supported("a.pdf"))
	assert.True(t, Supported("a.Docx"))
	assert.True(t, Supported("dir/a.txt"))
	assert.False(t, Supported("a.doc"))
	assert.False(t, Supported("pdf"))
}

func TestDocxText(t *testing.T) {
	xml := `<w:document><w:body>` +
		`<w:p><w:r><w:t>Jane Doe</w:t></w:r></w:p>` +
		`<w:p><w:r><w:t>Skills:</w:t><w:tab/><w:t>Go &amp; SQL</w:t></w:r></w:p>` +
		`<w:p></w:p>` +
		`</w:body></w:document>`
	assert.Equal(t, "Jane Doe\nSkills: Go & SQL", docxText(xml))
}

func TestSplit(t *testing.T) {
	assert.Nil(t, Split("   ", 500, 50))
	assert.Equal(t, []string{"short"}, Split(" short ", 500, 50))

	words := strings.Repeat("engineer ", 200)
	chunks := Split(words, 100, 10)
	require.Greater(t, len(chunks), 1)
	for _, c := range chunks {
		assert.LessOrEqual(t, len([]rune(c)), 100)
		assert.True(t, strings.HasPrefix(c, "engineer"), c)
		assert.False(t, strings.HasSuffix(c, " "))
	}

	// without whitespace the cut is exact
	chunks = Split(strings.Repeat("x", 250), 100, 20)
	require.Len(t, chunks, 3)
	assert.Len(t, chunks[0], 100)
	assert.Len(t, chunks[1], 100)
	assert.Len(t, chunks[2], 90)
}

func TestIndexName(t *testing.T) {
	at := time.Unix(1700000000, 0)
	assert.Equal(t, "resume_1700000000_0f8fad5b", IndexName(at, "0f8fad5b-d9cb-469f-a165-70867728950e"))
	assert.Equal(t, "resume_1700000000_abc", IndexName(at, "abc"))
}

type failingEmbedder struct{}

func (failingEmbedder) Embed(context.Context, []string) ([][]float32, error) {
	return nil, errors.New("quota exceeded")
}
func (failingEmbedder) Dimensions() int { return 8 }

func TestProcessor(t *testing.T) {
	ctx := context.Background()
	store := vectorindex.NewMemory(embedding.NewHashing(64))
	p := NewProcessor(store, logger.NewNop())
	p.Now = func() time.Time { return time.Unix(1700000000, 0) }

	_, err := p.Process(ctx, "session-1", " \n ")
	assert.ErrorIs(t, err, ErrEmpty)

	idx, err := p.Process(ctx, "session-1", "Jane Doe. Senior Go engineer. Built Kafka pipelines.")
	require.NoError(t, err)
	assert.Equal(t, "resume_1700000000_session1", idx.Name())

	hits, err := idx.Search(ctx, "kafka", 1)
	require.NoError(t, err)
	assert.Len(t, hits, 1)
}

func TestProcessorDropsIndexOnFailure(t *testing.T) {
	ctx := context.Background()
	store := vectorindex.NewMemory(failingEmbedder{})
	p := NewProcessor(store, logger.NewNop())
	p.Now = func() time.Time { return time.Unix(1700000000, 0) }

	_, err := p.Process(ctx, "abc", "some resume text")
	require.Error(t, err)

	_, err = store.Open(ctx, "resume_1700000000_abc")
	assert.ErrorIs(t, err, vectorindex.ErrIndexNotFound)
}
