package boundedcache

// NoopMetrics discards every signal. Used when Options.Metrics is nil.
type NoopMetrics struct{}

func (NoopMetrics) Hit()              {}
func (NoopMetrics) Miss()             {}
func (NoopMetrics) Evict(EvictReason) {}
func (NoopMetrics) Size(_ int)        {}
