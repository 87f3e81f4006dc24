package analyzer

// Progress milestones for the fixed lifecycle phases.
const (
	ProgressStarting          = 0
	ProgressLaunchingBrowser  = 5
	ProgressNavigatingToURL   = 10
	ProgressExtractingInitial = 15
	ProgressCrawlingLinks     = 20
	ProgressFinalizing        = 90
	ProgressCompleted         = 100

	// crawlSpan is the share of the bar spent on traversal, between
	// ProgressCrawlingLinks and ProgressFinalizing.
	crawlSpan = 70
	// enhanceSpan is the share left for post-processing.
	enhanceSpan = 10
	// maxBeforeTerminal caps progress until the completed write.
	maxBeforeTerminal = 99
)

// CrawlProgress maps the visited page count to 20..90.
func CrawlProgress(visited, limit int) float64 {
	if limit <= 0 {
		return ProgressFinalizing
	}
	share := crawlSpan * float64(visited) / float64(limit)
	return ProgressCrawlingLinks + min(crawlSpan, share)
}

// EnhanceProgress maps enhancement progress to 90..99.
func EnhanceProgress(done, total int) float64 {
	if total <= 0 {
		return ProgressFinalizing
	}
	p := ProgressFinalizing + enhanceSpan*float64(done)/float64(total)
	return min(maxBeforeTerminal, p)
}
