package session

// Ring keeps the most recent output chunks of a session.
type Ring struct {
	items []string
	start int
	size  int
}

// NewRing creates a ring holding at most capacity chunks.
func NewRing(capacity int) *Ring {
	if capacity <= 0 {
		capacity = 1
	}
	return &Ring{items: make([]string, capacity)}
}

// Push appends a chunk, evicting the oldest when full.
func (r *Ring) Push(chunk string) {
	if r.size < len(r.items) {
		r.items[(r.start+r.size)%len(r.items)] = chunk
		r.size++
		return
	}
	r.items[r.start] = chunk
	r.start = (r.start + 1) % len(r.items)
}

// Len returns the number of stored chunks.
func (r *Ring) Len() int { return r.size }

// Cap returns the capacity.
func (r *Ring) Cap() int { return len(r.items) }

// Last returns up to n of the newest chunks, oldest first. n <= 0 returns all.
func (r *Ring) Last(n int) []string {
	if n <= 0 || n > r.size {
		n = r.size
	}
	out := make([]string, n)
	offset := r.size - n
	for i := 0; i < n; i++ {
		out[i] = r.items[(r.start+offset+i)%len(r.items)]
	}
	return out
}

// Reset drops every chunk.
func (r *Ring) Reset() {
	for i := range r.items {
		r.items[i] = ""
	}
	r.start, r.size = 0, 0
}
