package wsmanager

// messageQueue is a bounded FIFO of encoded messages. Pushing into a full
// queue drops the oldest entry.
type messageQueue struct {
	items    [][]byte
	capacity int
	dropped  uint64
}

func newMessageQueue(capacity int) *messageQueue {
	if capacity < 1 {
		capacity = 1
	}
	return &messageQueue{capacity: capacity}
}

func (q *messageQueue) push(msg []byte) {
	if len(q.items) >= q.capacity {
		q.items = q.items[1:]
		q.dropped++
	}
	q.items = append(q.items, msg)
}

// requeue puts msgs back in front of the queue, keeping the newest entries
// when the combined length exceeds capacity.
func (q *messageQueue) requeue(msgs [][]byte) {
	if len(msgs) == 0 {
		return
	}
	combined := make([][]byte, 0, len(msgs)+len(q.items))
	combined = append(combined, msgs...)
	combined = append(combined, q.items...)
	if over := len(combined) - q.capacity; over > 0 {
		combined = combined[over:]
		q.dropped += uint64(over)
	}
	q.items = combined
}

// drain returns all queued messages oldest first and empties the queue.
func (q *messageQueue) drain() [][]byte {
	items := q.items
	q.items = nil
	return items
}

func (q *messageQueue) len() int {
	return len(q.items)
}
