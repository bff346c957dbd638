package bookmarks

import (
	"strconv"

	"github.com/a3tai/mcp-pdf-covenants/internal/pdf/wrapper"
)

// Custom document metadata keys holding the persisted flags.
const (
	KeyProcessed    = "BookmarksProcessed"
	KeyShouldPrompt = "BookmarksShouldPrompt"
)

// State is the document-level bookmark status.
type State struct {
	HasNativeBookmarks bool `json:"hasNativeBookmarks"`
	AlreadyProcessed   bool `json:"isAlreadyProcessed"`
	ShouldPrompt       bool `json:"shouldPrompt"`
}

// LoadState derives the state from the outline and the document's custom
// metadata. A missing or unparsable processed flag reads as false; a
// missing or unparsable prompt flag reads as true so that documents seen
// for the first time are prompted.
func LoadState(outline []wrapper.OutlineItem, meta map[string]string) State {
	return State{
		HasNativeBookmarks: len(outline) > 0,
		AlreadyProcessed:   boolEntry(meta, KeyProcessed, false),
		ShouldPrompt:       boolEntry(meta, KeyShouldPrompt, true),
	}
}

// MarkProcessed records that the document has been bookmarked and should
// not prompt again.
func (s State) MarkProcessed() State {
	s.AlreadyProcessed = true
	s.ShouldPrompt = false
	return s
}

// Metadata returns the two persisted entries.
func (s State) Metadata() map[string]string {
	return map[string]string{
		KeyProcessed:    strconv.FormatBool(s.AlreadyProcessed),
		KeyShouldPrompt: strconv.FormatBool(s.ShouldPrompt),
	}
}

// Persist writes the state's metadata through w.
func (s State) Persist(w wrapper.PropertyWriter) error {
	return w.SetProperties(s.Metadata())
}

func boolEntry(meta map[string]string, key string, def bool) bool {
	v, ok := meta[key]
	if !ok {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return def
	}
	return b
}
