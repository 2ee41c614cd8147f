package repository

// Option applies a configuration option to the Board.
type Option func(*Board)

// WithPrioritySource replaces the random treap priorities. Used to make
// tree shapes reproducible in tests.
func WithPrioritySource(next func() uint64) Option {
	return func(b *Board) {
		if next != nil {
			b.prio = next
		}
	}
}
