package logger

// RingBuffer keeps the most recent lines written to a log file.
type RingBuffer struct {
	lines    []string
	capacity int
	head     int // next write position
	size     int
	written  int // lines added since the last compaction
}

// NewRingBuffer creates a ring buffer holding at most capacity lines.
func NewRingBuffer(capacity int) *RingBuffer {
	if capacity < 1 {
		capacity = 1
	}

	return &RingBuffer{
		lines:    make([]string, capacity),
		capacity: capacity,
	}
}

// Add appends a line, overwriting the oldest one when full.
func (rb *RingBuffer) Add(line string) {
	rb.lines[rb.head] = line
	rb.head = (rb.head + 1) % rb.capacity

	if rb.size < rb.capacity {
		rb.size++
	}

	rb.written++
}

// Lines returns the buffered lines oldest first.
func (rb *RingBuffer) Lines() []string {
	if rb.size == 0 {
		return nil
	}

	result := make([]string, rb.size)
	start := (rb.head - rb.size + rb.capacity) % rb.capacity

	for i := range rb.size {
		result[i] = rb.lines[(start+i)%rb.capacity]
	}

	return result
}

// Len returns the number of buffered lines.
func (rb *RingBuffer) Len() int {
	return rb.size
}

// full reports whether the file behind the buffer holds twice its capacity.
func (rb *RingBuffer) full() bool {
	return rb.written >= rb.capacity*2
}

// compacted records that the file now holds only the buffered lines.
func (rb *RingBuffer) compacted() {
	rb.written = rb.size
}
