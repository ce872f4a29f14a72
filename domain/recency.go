package domain

import (
	"time"

	"github.com/samber/lo"
)

type RecencyBucket string

const (
	BucketNoMessages RecencyBucket = "No messages"
	BucketToday      RecencyBucket = "Today"
	BucketYesterday  RecencyBucket = "Yesterday"
	BucketThisWeek   RecencyBucket = "This Week"
	BucketOlder      RecencyBucket = "Older"
)

// BucketOrder is the rendering order of the grouped conversation list.
var BucketOrder = []RecencyBucket{
	BucketToday,
	BucketYesterday,
	BucketThisWeek,
	BucketOlder,
	BucketNoMessages,
}

// BucketFor places a room's last activity relative to now.
// Calendar day for Today/Yesterday, a rolling seven days for This Week.
func BucketFor(lastMessageAt *time.Time, now time.Time) RecencyBucket {
	if lastMessageAt == nil {
		return BucketNoMessages
	}
	at := lastMessageAt.In(now.Location())
	if sameDay(at, now) {
		return BucketToday
	}
	if sameDay(at, now.AddDate(0, 0, -1)) {
		return BucketYesterday
	}
	if at.After(now.AddDate(0, 0, -7)) {
		return BucketThisWeek
	}
	return BucketOlder
}

// GroupByRecency partitions rooms into named buckets, preserving the
// recency-descending order of the input within each bucket.
func GroupByRecency(rooms []Room, now time.Time) map[RecencyBucket][]Room {
	return lo.GroupBy(rooms, func(room Room) RecencyBucket {
		return BucketFor(room.LastMessageAt, now)
	})
}

func sameDay(a, b time.Time) bool {
	ay, am, ad := a.Date()
	by, bm, bd := b.Date()
	return ay == by && am == bm && ad == bd
}
