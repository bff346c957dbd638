package pdf

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/a3tai/mcp-pdf-covenants/internal/geometry"
)

func TestPreview_normalizeImageFormat(t *testing.T) {
	tests := map[string]string{
		"DCTDecode":      "JPEG",
		"JPXDecode":      "JPEG2000",
		"CCITTFaxDecode": "TIFF/Fax",
		"JBIG2Decode":    "JBIG2",
		"FlateDecode":    "PNG/Deflate",
		"LZWDecode":      "LZWDecode",
		"":               "unknown",
	}
	for in, want := range tests {
		assert.Equal(t, want, normalizeImageFormat(in), in)
	}
}

func TestPreview_largestImage(t *testing.T) {
	_, ok := largestImage(nil)
	assert.False(t, ok)

	best, ok := largestImage([]imageInfo{
		{Width: 100, Height: 100, Format: "JPEG"},
		{Width: 2550, Height: 3300, Format: "TIFF/Fax"},
		{Width: 3300, Height: 2550, Format: "PNG/Deflate"},
	})
	require.True(t, ok)
	assert.Equal(t, "TIFF/Fax", best.Format)
}

func TestPreview_FallsBackToPageSize(t *testing.T) {
	path := filepath.Join(t.TempDir(), "Credit Agreement.pdf")
	require.NoError(t, os.WriteFile(path, []byte("%PDF-1.4\n"), 0o600))

	geo := geometry.NewPageGeometry(0, geometry.NewBox(0, 0, 612, 792), nil)
	p := firstPagePreview(path, geo)
	assert.Equal(t, "Credit Agreement.pdf#page=1", p.Src)
	assert.Equal(t, 612, p.Width)
	assert.Equal(t, 792, p.Height)
	assert.Equal(t, "PDF", p.Format)
}
