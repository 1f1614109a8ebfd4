package sequence

import "skuforge/internal/core/sku"

// Config holds counter naming and allocation settings.
type Config struct {
	// Namespace groups the counters in the backing store (e.g. "skus")
	Namespace string

	// KeyPrefix is prepended to the lower-cased group key (e.g. "seq_")
	KeyPrefix string

	// Initial is the value assumed for counters that do not exist yet.
	// The first reservation returns Initial+1.
	Initial int64

	// AtomicIncrement makes the allocator use Incrementer when the store
	// provides it. Disable to force the read-then-write path.
	AtomicIncrement bool
}

// DefaultConfig returns the standard counter layout: namespace "skus",
// keys "seq_<group>", counters starting at zero.
func DefaultConfig() Config {
	return Config{
		Namespace:       "skus",
		KeyPrefix:       "seq_",
		Initial:         0,
		AtomicIncrement: true,
	}
}

// Name returns the store key for a group.
func (c Config) Name(group sku.GroupKey) string {
	return group.StoreName(c.KeyPrefix)
}
