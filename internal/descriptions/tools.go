package descriptions

import "sort"

// Tool descriptions shown to MCP clients, with the usual workflows

const (
	PDFValidateFileDescription = `Verify that a PDF can be opened before structuring it.

**When to use:** Before analyzing an agreement, especially one that was just uploaded or exported.

**Examples:**
• "Check credit-agreement.pdf is readable before extracting covenants"
• "Validate every PDF found by pdf_search_directory"

**Best practices:** Paths are resolved against the configured directory; anything outside it is rejected.`

	PDFSearchDirectoryDescription = `Find agreement PDFs in the configured directory.

**When to use:** The user refers to a document by part of its name, or wants to see what is available.

**Examples:**
• "Find the indenture for the 2029 notes" → query "indenture 2029"
• "List every PDF under deals/acme"

**Best practices:** Queries match words of the file name in any order; leave the query empty to list everything.`

	PDFServerInfoDescription = `Describe the server: directory, limits, extraction settings and tools.

**When to use:** At the start of a session, or when a path is rejected and the configured directory is unclear.

**Best practices:** The directory listing is capped; use pdf_search_directory for complete results.`

	PDFStructureFileDescription = `Rebuild the section outline and defined terms of an agreement.

**When to use:** To navigate a long agreement, find where a covenant lives, or check which sections carry bookmarks.

**Returns:** Table of contents (numbering, title, page, bookmarked), defined terms with their pages, the bookmark state and any structural anomalies.

**Common workflows:**
1. Navigation: pdf_structure_file → read the relevant section
2. Bookmarking: pdf_structure_file → add bookmarks → pdf_mark_bookmarked`

	PDFExtractCovenantsDescription = `Extract covenant clauses with page evidence.

**When to use:** Reviewing financial covenants, negative covenants, cross-references or ratio tables of a credit agreement, indenture or loan agreement.

**Returns:** The document classification, every result (clause type, key, value, section, page, extractor) in reading order, and the extractors that failed or timed out.

**Best practices:** Leave classification as "auto" unless the document type is known; an unknown document still runs the generic extractors.`

	PDFBundleFileDescription = `Package the structured document into a versioned JSON bundle.

**When to use:** Handing the analysis to a viewer, archiving it, or producing an HTML review report.

**Returns:** The bundle (title, toc, defs, overlays, bookmarkState, version, notepad, anomalies, pinnedTermsNames, documentData), its id, whether it was archived and the report path if one was requested.

**Best practices:** Set include_document_data to false for large documents when geometry is not needed.`

	PDFMarkBookmarkedDescription = `Record that an agreement's bookmarks have been processed.

**When to use:** After bookmarks were added, so the document is not offered bookmarking again.

**Returns:** The new bookmark state and whether it was written into the PDF's metadata.`
)

// ToolDescriptions maps tool names to their descriptions
var ToolDescriptions = map[string]string{
	"pdf_validate_file":     PDFValidateFileDescription,
	"pdf_search_directory":  PDFSearchDirectoryDescription,
	"pdf_server_info":       PDFServerInfoDescription,
	"pdf_structure_file":    PDFStructureFileDescription,
	"pdf_extract_covenants": PDFExtractCovenantsDescription,
	"pdf_bundle_file":       PDFBundleFileDescription,
	"pdf_mark_bookmarked":   PDFMarkBookmarkedDescription,
}

// GetToolDescription returns the description for a tool
func GetToolDescription(toolName string) string {
	if desc, exists := ToolDescriptions[toolName]; exists {
		return desc
	}
	return "Tool description not available"
}

// GetAllToolNames returns the tool names in sorted order
func GetAllToolNames() []string {
	names := make([]string, 0, len(ToolDescriptions))
	for name := range ToolDescriptions {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
