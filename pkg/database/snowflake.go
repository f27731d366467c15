package database

import (
	"sync"
	"time"
)

// Snowflake generates time-ordered 63-bit row ids for the history tables.
// Layout: 41 bits milliseconds since epoch | 10 bits worker | 12 bits sequence.
type Snowflake struct {
	mu       sync.Mutex
	epoch    int64
	workerID int64
	lastMs   int64
	seq      int64
	now      func() int64
}

const (
	workerIDBits   = 10
	sequenceBits   = 12
	workerIDShift  = sequenceBits
	timestampShift = sequenceBits + workerIDBits
	sequenceMask   = 1<<sequenceBits - 1
	maxWorkerID    = 1<<workerIDBits - 1
)

// snowflakeEpoch is 2024-01-01 UTC
var snowflakeEpoch = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC).UnixMilli()

// NewSnowflake creates a generator for one process. Out-of-range worker ids
// are clamped to 0.
func NewSnowflake(epoch, workerID int64) *Snowflake {
	if workerID < 0 || workerID > maxWorkerID {
		workerID = 0
	}
	return &Snowflake{
		epoch:    epoch,
		workerID: workerID,
		now:      func() int64 { return time.Now().UnixMilli() },
	}
}

// NextID returns the next id. Ids are strictly increasing for one
// generator even if the wall clock steps backwards.
func (s *Snowflake) NextID() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()

	ms := s.now()
	if ms < s.lastMs {
		ms = s.lastMs
	}

	if ms == s.lastMs {
		s.seq = (s.seq + 1) & sequenceMask
		if s.seq == 0 {
			// Sequence exhausted for this millisecond; borrow the next one
			ms++
		}
	} else {
		s.seq = 0
	}
	s.lastMs = ms

	return (ms-s.epoch)<<timestampShift | s.workerID<<workerIDShift | s.seq
}
