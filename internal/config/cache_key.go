package config

import (
	"fmt"
)

type CacheKeyStruct struct{}

func NewCacheKeyStruct() *CacheKeyStruct {
	return &CacheKeyStruct{}
}

// AttemptSnapshotKey returns the cache key holding the latest proctoring
// frame for an attempt.
func (r *CacheKeyStruct) AttemptSnapshotKey(attemptID string) string {
	return fmt.Sprintf("attempt:%s:snapshot", attemptID)
}

// ExamSnapshotIndexKey returns the sorted-set key indexing which attempts of
// an exam currently have a live frame, scored by receipt time.
func (r *CacheKeyStruct) ExamSnapshotIndexKey(examID string) string {
	return fmt.Sprintf("exam:%s:snapshot_index", examID)
}

// ExamMonitorChannel returns the Redis PubSub channel name for an exam's
// proctoring monitor feed.
func (r *CacheKeyStruct) ExamMonitorChannel(examID string) string {
	return fmt.Sprintf("exam:%s:monitor", examID)
}

var CacheKey = NewCacheKeyStruct()
