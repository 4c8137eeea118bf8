package history

import (
	"fmt"
	"time"
)

// NBuckets is the ring size, matching classes/history/history.c's
// NBUCKETS.
const NBuckets = 10

// MaxBucketSize is the byte threshold at which a bucket is flushed and
// rotated, matching BUCKET_MAXSIZE.
const MaxBucketSize = 10000

// FlushTimeout is how long an under-threshold bucket waits before an
// idle flush, matching BUCKET_FLUSH_TIMEOUT.
const FlushTimeout = 10 * time.Second

// Writer persists a bucket's file content. name is the bucket's
// filename ("<prefix>-<t0 as 10 hex digits>"); data is appended to
// whatever the file already holds.
type Writer interface {
	AppendFile(name string, data []byte) error
}

type bucket struct {
	t0    int64
	buf   []byte
	fpos  int
	fname string
}

// Log is the ring-bucketed signal history log.
type Log struct {
	prefix    string
	buckets   [NBuckets]*bucket
	ibucket   int
	currentID int64
	t         int64
	hdr       []byte
	maxSize   int
	now       func() time.Time
	writer    Writer

	pendingFlush bool
}

// NewLog constructs a Log writing files named "<prefix>-<hex t0>".
// now defaults to time.Now; a nil writer is permitted for tests that
// only inspect in-memory bucket state.
func NewLog(prefix string, writer Writer, now func() time.Time) *Log {
	if now == nil {
		now = time.Now
	}
	l := &Log{prefix: prefix, maxSize: MaxBucketSize, now: now, writer: writer}
	for i := range l.buckets {
		l.buckets[i] = &bucket{}
	}
	l.bucketStart(0)
	return l
}

func (l *Log) bucketStart(i int) {
	b := l.buckets[i]
	now := l.now().Unix()

	l.t = now
	l.currentID = -1

	b.t0 = now
	b.buf = b.buf[:0]
	b.fpos = 0
	b.fname = fmt.Sprintf("%s-%010x", l.prefix, b.t0)
	b.buf = appendValue(b.buf, opAbsTime, now)
}

// DeclareSignal records a signal's name against its id in the log
// header, written at the start of every bucket file. It also selects
// the signal, matching history_signal_declare's side effect on
// current_id.
func (l *Log) DeclareSignal(id int64, name string) {
	l.hdr = appendValue(l.hdr, opDeclare, id)
	l.hdr = append(l.hdr, name...)
	l.hdr = append(l.hdr, 0)
	l.currentID = id
}

func (l *Log) current() *bucket { return l.buckets[l.ibucket] }

func (l *Log) selectSignal(id int64) {
	b := l.current()

	if id != l.currentID {
		l.currentID = id
		b.buf = appendValue(b.buf, opSelect, id)
	}

	t := l.now().Unix()
	if t != l.t {
		dt := t - l.t
		l.t = t
		if dt < 64 {
			b.buf = appendShortRelTime(b.buf, dt)
		} else {
			b.buf = appendValue(b.buf, opRelTime, dt)
		}
	}
}

// Feed appends one value for id, classifying it as a string or an
// integer the same way history_feed does: a leading '-' defeats the
// digit scan and the value is stored as a string, matching the
// original's (unintentional but faithfully ported) behavior for
// negative numbers.
func (l *Log) Feed(id int64, value string) {
	l.selectSignal(id)

	b := l.current()
	if isAllDigits(value) {
		var v int64
		fmt.Sscanf(value, "%d", &v)
		if v >= -32 && v <= 31 {
			b.buf = appendShortValue(b.buf, v)
		} else {
			b.buf = appendValue(b.buf, opLong, v)
		}
	} else {
		b.buf = appendString(b.buf, value)
	}

	if len(b.buf) >= l.maxSize {
		l.rotate()
	} else {
		l.pendingFlush = true
	}
}

func isAllDigits(s string) bool {
	if s == "" {
		return false
	}
	for _, c := range s {
		if c < '0' || c > '9' {
			return false
		}
	}
	return true
}

func (l *Log) rotate() {
	l.flushBucket(l.ibucket)
	l.ibucket = (l.ibucket + 1) % NBuckets
	l.bucketStart(l.ibucket)
	l.pendingFlush = false
}

func (l *Log) flushBucket(i int) {
	b := l.buckets[i]
	length := len(b.buf) - b.fpos
	if length <= 0 || l.writer == nil {
		return
	}

	var data []byte
	if b.fpos == 0 {
		data = append(append([]byte{}, l.hdr...), b.buf...)
	} else {
		data = append([]byte{}, b.buf[b.fpos:]...)
	}

	if err := l.writer.AppendFile(b.fname, data); err == nil {
		b.fpos = len(b.buf)
	}
}

// FlushDue reports whether the current bucket has unflushed data and
// has not been rotated since the last Feed — callers (the scheduler's
// quit-handler / idle timer) use this to drive a FlushTimeout idle
// flush.
func (l *Log) FlushDue() bool { return l.pendingFlush }

// Flush writes out the current bucket's unflushed bytes without
// rotating, matching the idle-timeout path of history_bucket_flush.
func (l *Log) Flush() {
	l.flushBucket(l.ibucket)
	l.pendingFlush = false
}

// FindFirstBucket returns the index of the bucket with the smallest
// start timestamp, ties broken by ascending slot index (the loop only
// updates its candidate on a strict less-than), matching
// history_find_first_bucket. Used when resuming a log across a
// restart to find the oldest surviving bucket.
func (l *Log) FindFirstBucket() int {
	first := 0
	best := l.buckets[0].t0
	for i := 1; i < NBuckets; i++ {
		if l.buckets[i].t0 < best {
			best = l.buckets[i].t0
			first = i
		}
	}
	return first
}
