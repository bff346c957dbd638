package pdf

import (
	"math"
	"path/filepath"

	"github.com/ledongthuc/pdf"

	"github.com/a3tai/mcp-pdf-covenants/internal/geometry"
	"github.com/a3tai/mcp-pdf-covenants/internal/report"
)

// imageInfo describes one image XObject of a page
type imageInfo struct {
	Width  int
	Height int
	Format string
}

// firstPagePreview references the first page of the document at path for
// the review report. When the page carries image XObjects (a scanned or
// designed cover) the largest one gives the preview its size and format;
// otherwise the page's media box does.
func firstPagePreview(path string, geo geometry.PageGeometry) *report.Preview {
	p := &report.Preview{
		Src:    filepath.Base(path) + "#page=1",
		Width:  int(math.Round(geo.Media.Width())),
		Height: int(math.Round(geo.Media.Height())),
		Format: "PDF",
	}

	f, r, err := pdf.Open(path)
	if err != nil {
		return p
	}
	defer f.Close()

	if best, ok := largestImage(pageImages(r, 1)); ok {
		p.Width, p.Height, p.Format = best.Width, best.Height, best.Format
	}
	return p
}

// pageImages lists the image XObjects of a 1-based page. Malformed
// resources make the reader panic; the page then has no images.
func pageImages(r *pdf.Reader, pageNum int) (images []imageInfo) {
	defer func() {
		if recover() != nil {
			images = nil
		}
	}()

	if pageNum < 1 || pageNum > r.NumPage() {
		return nil
	}
	page := r.Page(pageNum)
	if page.V.IsNull() {
		return nil
	}
	xObjects := page.V.Key("Resources").Key("XObject")
	if xObjects.IsNull() || xObjects.Kind() != pdf.Dict {
		return nil
	}

	for _, key := range xObjects.Keys() {
		obj := xObjects.Key(key)
		if obj.IsNull() || obj.Key("Subtype").Name() != "Image" {
			continue
		}
		if info, ok := imageOf(obj); ok {
			images = append(images, info)
		}
	}
	return images
}

func imageOf(obj pdf.Value) (imageInfo, bool) {
	info := imageInfo{
		Width:  int(obj.Key("Width").Int64()),
		Height: int(obj.Key("Height").Int64()),
		Format: normalizeImageFormat(obj.Key("Filter").Name()),
	}
	if info.Format == "unknown" {
		if cs := obj.Key("ColorSpace").Name(); cs != "" {
			info.Format = cs
		}
	}
	return info, info.Width > 0 && info.Height > 0
}

// largestImage picks the image with the most pixels; ties keep the first.
func largestImage(images []imageInfo) (imageInfo, bool) {
	var best imageInfo
	found := false
	for _, img := range images {
		if !found || img.Width*img.Height > best.Width*best.Height {
			best, found = img, true
		}
	}
	return best, found
}

// normalizeImageFormat converts PDF filter names to readable format names
func normalizeImageFormat(filterName string) string {
	switch filterName {
	case "DCTDecode":
		return "JPEG"
	case "JPXDecode":
		return "JPEG2000"
	case "CCITTFaxDecode":
		return "TIFF/Fax"
	case "JBIG2Decode":
		return "JBIG2"
	case "FlateDecode":
		return "PNG/Deflate"
	case "":
		return "unknown"
	default:
		return filterName
	}
}
