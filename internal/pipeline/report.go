package pipeline

import (
	"fmt"
	"sort"
	"strings"

	"github.com/joseph-ayodele/retypeset/constants"
	"github.com/joseph-ayodele/retypeset/internal/entity"
)

// PageResult is the terminal outcome of one page.
type PageResult struct {
	PageIndex   int
	Status      constants.PageStatus
	Fingerprint entity.Fingerprint
	Content     *entity.ExtractedContent
	Err         error
}

// DocumentReport collects per-page results for one document. Pages are
// always sorted by page index, regardless of worker completion order.
type DocumentReport struct {
	SourcePath string
	DocHash    string
	Pages      []PageResult
}

func (r *DocumentReport) sortPages() {
	sort.Slice(r.Pages, func(i, j int) bool { return r.Pages[i].PageIndex < r.Pages[j].PageIndex })
}

// Counts returns how many pages ended cached, fresh and failed.
func (r *DocumentReport) Counts() (cached, fresh, failed int) {
	for _, p := range r.Pages {
		switch p.Status {
		case constants.PageStatusDoneCached:
			cached++
		case constants.PageStatusDoneFresh:
			fresh++
		case constants.PageStatusFailed:
			failed++
		}
	}
	return cached, fresh, failed
}

// Failed returns the pages that ended in a terminal failure.
func (r *DocumentReport) Failed() []PageResult {
	var out []PageResult
	for _, p := range r.Pages {
		if p.Status == constants.PageStatusFailed {
			out = append(out, p)
		}
	}
	return out
}

// Contents returns the successful page contents in page order.
func (r *DocumentReport) Contents() []*entity.ExtractedContent {
	var out []*entity.ExtractedContent
	for _, p := range r.Pages {
		if p.Status.Done() && p.Content != nil {
			out = append(out, p.Content)
		}
	}
	return out
}

// Summary renders a one-line-per-page report for terminal output.
func (r *DocumentReport) Summary() string {
	var b strings.Builder
	cached, fresh, failed := r.Counts()
	fmt.Fprintf(&b, "%s: %d pages (%d cached, %d fresh, %d failed)\n",
		r.SourcePath, len(r.Pages), cached, fresh, failed)
	for _, p := range r.Pages {
		fmt.Fprintf(&b, "  page %d: %s", p.PageIndex, p.Status)
		if p.Err != nil {
			fmt.Fprintf(&b, " (%v)", p.Err)
		}
		b.WriteByte('\n')
	}
	return b.String()
}
