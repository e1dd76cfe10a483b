package dedupe

const defaultCapacity = 256

type options struct {
	capacity int
}

// Option applies a configuration option to the deduper.
type Option func(*options)

// WithCapacity pre-sizes the deduper for the expected number of
// (user, problem) pairs. Non-positive values keep the default.
func WithCapacity(n int) Option {
	return func(o *options) {
		if n > 0 {
			o.capacity = n
		}
	}
}
