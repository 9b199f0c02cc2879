package config

import (
	"fmt"
)

type CacheKeyStruct struct{}

func NewCacheKeyStruct() *CacheKeyStruct {
	return &CacheKeyStruct{}
}

// ContentFieldsKey returns the cache key for a block usage's content-scoped fields
func (r *CacheKeyStruct) ContentFieldsKey(usageID string) string {
	return fmt.Sprintf("block:%s:content", usageID)
}

// LearnerFieldsKey returns the cache key for a learner's user_state fields on a block usage
func (r *CacheKeyStruct) LearnerFieldsKey(usageID, learnerID string) string {
	return fmt.Sprintf("block:%s:learner:%s:state", usageID, learnerID)
}

// SubmissionChannel returns the Redis PubSub channel name for a block's submission feed
func (r *CacheKeyStruct) SubmissionChannel(usageID string) string {
	return fmt.Sprintf("block:%s:submissions", usageID)
}

var CacheKey = NewCacheKeyStruct()
