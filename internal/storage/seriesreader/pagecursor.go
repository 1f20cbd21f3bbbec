package seriesreader

// pageCursor is spec.md §4.2's PrioritizedPageCursor: a single PageDecoder
// tagged with the VersionKey and isSeq bit it needs to carry once it leaves
// its chunk, plus whether its backing chunk was marked modified (deletions
// may apply, forcing point-level merge instead of a statistics shortcut).
//
// A pageCursor is single-use: emit is called at most once, after which the
// cursor is discarded by its owner.
type pageCursor struct {
	decoder  PageDecoder
	version  VersionKey
	isSeq    bool
	modified bool
}

func newPageCursor(decoder PageDecoder, version VersionKey, isSeq, modified bool) *pageCursor {
	return &pageCursor{decoder: decoder, version: version, isSeq: isSeq, modified: modified}
}

func (c *pageCursor) statistics() Stats {
	return c.decoder.Statistics()
}

func (c *pageCursor) isModified() bool {
	return c.modified || c.decoder.IsModified()
}

// setFilter pushes a value filter into the underlying decoder. Only safe
// to call on a page that will not be merged with overlapping peers — the
// pipeline enforces this by only pushing filters into non-overlapped
// pages (spec.md §6's configuration contract).
func (c *pageCursor) setFilter(f Filter) {
	c.decoder.SetFilter(f)
}

// emit fully realizes the page as a Batch honoring dir. After this call the
// cursor's decoder should not be reused.
func (c *pageCursor) emit(dir Direction) (*Batch, error) {
	return c.decoder.AllSatisfiedData(dir)
}
