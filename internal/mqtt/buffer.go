package mqtt

import "log"

// queuedMsg is a serialized message held while the broker is unreachable.
type queuedMsg struct {
	topic    string
	payload  []byte
	qos      byte
	retained bool
}

// offlineQueue keeps the most recent messages published while disconnected.
// When full, the oldest message is overwritten.
// Not safe for concurrent use; caller must synchronize.
type offlineQueue struct {
	buf     []queuedMsg
	next    int // slot for the next push
	count   int
	dropped uint64
}

func newOfflineQueue(capacity int) *offlineQueue {
	if capacity < 1 {
		capacity = 1
	}
	return &offlineQueue{buf: make([]queuedMsg, capacity)}
}

func (q *offlineQueue) push(msg queuedMsg) {
	if q.count == len(q.buf) {
		if q.dropped == 0 {
			log.Printf("mqtt: offline queue full (%d messages), dropping oldest", len(q.buf))
		}
		q.dropped++
	} else {
		q.count++
	}
	q.buf[q.next] = msg
	q.next = (q.next + 1) % len(q.buf)
}

// drain returns the queued messages oldest first and empties the queue.
func (q *offlineQueue) drain() []queuedMsg {
	if q.count == 0 {
		return nil
	}

	out := make([]queuedMsg, 0, q.count)
	first := (q.next - q.count + len(q.buf)) % len(q.buf)
	for i := 0; i < q.count; i++ {
		out = append(out, q.buf[(first+i)%len(q.buf)])
		q.buf[(first+i)%len(q.buf)] = queuedMsg{}
	}

	if q.dropped > 0 {
		log.Printf("mqtt: %d messages were dropped while offline", q.dropped)
	}
	q.count, q.next, q.dropped = 0, 0, 0
	return out
}

func (q *offlineQueue) len() int {
	return q.count
}
