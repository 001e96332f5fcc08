package boundedcache

// New constructs a BoundedCache of the variant named in opt.Variant.
// Defaults: nil Metrics -> NoopMetrics; nil Policy -> move-to-front LRU;
// Shards <= 0 -> automatic (LRU/Weak/Soft only; Clock has no shards).
func New[K comparable, V any](opt Options[K, V]) (BoundedCache[K, V], error) {
	switch opt.Variant {
	case VariantClock:
		return newClockCache[K, V](opt)
	case VariantWeak, VariantSoft:
		return newLRUCache[K, V](opt)
	case VariantStrong:
		return newStrongCache[K, V](opt)
	case VariantNone:
		return newNoneCache[K, V](opt)
	default: // VariantLRU
		return newLRUCache[K, V](opt)
	}
}
