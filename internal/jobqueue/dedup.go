package jobqueue

import (
	"sync"
	"time"

	"github.com/zeebo/xxh3"
)

// deliveryDeduper suppresses re-enqueuing a delivery whose dedupe key was
// already seen within window. The linker's merging strategy can emit more
// than one Association for what is effectively the same event (e.g. a
// threshold candidate completing and then being re-confirmed by a late
// arrival before the queue sweeps it); without suppression every one of
// those would become its own outbound delivery.
type deliveryDeduper struct {
	mu     sync.Mutex
	window time.Duration
	seen   map[uint64]time.Time
}

func newDeliveryDeduper(window time.Duration) *deliveryDeduper {
	return &deliveryDeduper{
		window: window,
		seen:   make(map[uint64]time.Time),
	}
}

// admit reports whether key has NOT been seen within window. The current
// time is recorded for key only when it is admitted; a suppressed key keeps
// its earlier timestamp. A zero window disables suppression entirely (admit
// always returns true) while keeping the call site unconditional.
func (d *deliveryDeduper) admit(key string) bool {
	if d.window <= 0 {
		return true
	}

	h := xxh3.HashString(key)

	d.mu.Lock()
	defer d.mu.Unlock()

	now := time.Now()
	if last, ok := d.seen[h]; ok && now.Sub(last) < d.window {
		return false
	}
	d.seen[h] = now

	if len(d.seen) > 4096 {
		d.evictLocked(now)
	}
	return true
}

// evictLocked drops entries older than window. Caller holds d.mu.
func (d *deliveryDeduper) evictLocked(now time.Time) {
	for h, last := range d.seen {
		if now.Sub(last) >= d.window {
			delete(d.seen, h)
		}
	}
}

// EnqueueUnique behaves like Enqueue, but skips the job (returning ok=false)
// if dedupeKey was already enqueued within window. Passing a zero window
// always enqueues, same as calling Enqueue directly.
func (q *JobQueue) EnqueueUnique(action Action, data interface{}, config RetryConfig, dedupeKey string, window time.Duration) (job *Job, ok bool, err error) {
	q.mu.Lock()
	if q.dedup == nil {
		q.dedup = newDeliveryDeduper(window)
	}
	q.dedup.window = window
	dedup := q.dedup
	q.mu.Unlock()

	if !dedup.admit(dedupeKey) {
		return nil, false, nil
	}

	job, err = q.Enqueue(action, data, config)
	return job, job != nil, err
}
