package dedup

import "sort"

func Key(symbol, signal, barTime string) string {
	return symbol + "|" + signal + "|" + barTime
}

// Filter is a set of signal keys seen during the current session.
type Filter struct {
	seen map[string]struct{}
}

func New() *Filter {
	return &Filter{seen: map[string]struct{}{}}
}

// Observe records key and reports whether it was already present.
func (f *Filter) Observe(key string) (duplicate bool) {
	if _, ok := f.seen[key]; ok {
		return true
	}
	f.seen[key] = struct{}{}
	return false
}

func (f *Filter) Seen(key string) bool {
	_, ok := f.seen[key]
	return ok
}

func (f *Filter) Reset() {
	clear(f.seen)
}

func (f *Filter) Len() int {
	return len(f.seen)
}

// Keys returns the recorded keys sorted, for checkpoints and health output.
func (f *Filter) Keys() []string {
	keys := make([]string, 0, len(f.seen))
	for k := range f.seen {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
