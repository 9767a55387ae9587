package availability

import (
	"context"
	"fmt"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
)

type scheduleKey struct {
	doctorID int64
	date     string
}

func keyOf(doctorID int64, date time.Time) scheduleKey {
	return scheduleKey{doctorID: doctorID, date: DateOf(date).Format(DateLayout)}
}

// CachedScheduleRepository is a read-through LRU in front of a ScheduleRepository.
// Schedules are never mutated once stored, so entries are not invalidated.
// Misses are not cached.
type CachedScheduleRepository struct {
	next  ScheduleRepository
	cache *lru.Cache[scheduleKey, DoctorDailySchedule]
}

func NewCachedScheduleRepository(next ScheduleRepository, size int) (*CachedScheduleRepository, error) {
	cache, err := lru.New[scheduleKey, DoctorDailySchedule](size)
	if err != nil {
		return nil, fmt.Errorf("create schedule cache: %w", err)
	}
	return &CachedScheduleRepository{next: next, cache: cache}, nil
}

func (c *CachedScheduleRepository) Get(ctx context.Context, doctorID int64, date time.Time) (*DoctorDailySchedule, error) {
	if s, ok := c.cache.Get(keyOf(doctorID, date)); ok {
		return &s, nil
	}
	s, err := c.next.Get(ctx, doctorID, date)
	if err != nil {
		return nil, err
	}
	c.cache.Add(keyOf(doctorID, date), *s)
	return s, nil
}

func (c *CachedScheduleRepository) CreateIfAbsent(ctx context.Context, s *DoctorDailySchedule) (*DoctorDailySchedule, error) {
	if cached, ok := c.cache.Get(keyOf(s.DoctorID, s.Date)); ok {
		return &cached, nil
	}
	stored, err := c.next.CreateIfAbsent(ctx, s)
	if err != nil {
		return nil, err
	}
	c.cache.Add(keyOf(stored.DoctorID, stored.Date), *stored)
	return stored, nil
}

func (c *CachedScheduleRepository) Len() int {
	return c.cache.Len()
}
