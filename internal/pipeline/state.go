package pipeline

// State is a URL's position in a batch.
//
//	new -> cache_hit | extracting -> extracted | extract_failed
//	extracted (processing only) -> processing -> processed | process_failed
//
// extract_failed is terminal: no provider is called for it.
type State string

const (
	StateNew           State = "new"
	StateCacheHit      State = "cache_hit"
	StateExtracting    State = "extracting"
	StateExtracted     State = "extracted"
	StateExtractFailed State = "extract_failed"
	StateProcessing    State = "processing"
	StateProcessed     State = "processed"
	StateProcessFailed State = "process_failed"
)
