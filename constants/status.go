package constants

// PageStatus is the canonical per-page status reported by the extraction pipeline.
type PageStatus string

// Stable values (these exact strings appear in reports and logs).
const (
	PageStatusPending    PageStatus = "PENDING"     // not yet picked up by a worker
	PageStatusDoneCached PageStatus = "DONE_CACHED" // served from the result cache
	PageStatusDoneFresh  PageStatus = "DONE_FRESH"  // freshly classified and extracted
	PageStatusFailed     PageStatus = "FAILED"      // terminal failure, page-local
)

// Done reports whether the status is a terminal success.
func (s PageStatus) Done() bool {
	return s == PageStatusDoneCached || s == PageStatusDoneFresh
}

// PageState tracks a page through the extraction state machine.
// Terminal states collapse into a PageStatus for reporting.
type PageState string

const (
	StatePending       PageState = "PENDING"
	StateFingerprinted PageState = "FINGERPRINTED"
	StateClassifying   PageState = "CLASSIFYING"
	StateExtracting    PageState = "EXTRACTING"
	StateCached        PageState = "CACHED"
	StateDone          PageState = "DONE"
	StateFailed        PageState = "FAILED"
)
