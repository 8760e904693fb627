package queue

import (
	"context"
	"encoding/json"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	redislib "github.com/redis/go-redis/v9"
)

// RedisQueue keeps jobs in a sorted set scored by fire time, so a job
// scheduled weeks out costs nothing until its instant arrives and
// survives process restarts on both ends.
type RedisQueue struct {
	client *redislib.Client
	key    string
}

// NewRedisQueue creates a Redis-backed delayed-job queue under the given key.
func NewRedisQueue(client *redislib.Client, key string) *RedisQueue {
	if key == "" {
		key = "reminders:jobs"
	}
	return &RedisQueue{
		client: client,
		key:    key,
	}
}

func (q *RedisQueue) Enqueue(ctx context.Context, job Job) (string, error) {
	if job.ID == "" {
		job.ID = uuid.NewString()
	}
	job.ETA = job.ETA.UTC()

	payload, err := json.Marshal(job)
	if err != nil {
		return "", errors.Wrap(err, "marshal job")
	}

	if err := q.client.ZAdd(ctx, q.key, redislib.Z{
		Score:  float64(job.ETA.Unix()),
		Member: payload,
	}).Err(); err != nil {
		return "", errors.Wrap(err, "enqueue job")
	}
	return job.ID, nil
}

// Due returns up to limit jobs whose ETA has passed. Each candidate is
// claimed with ZRem before being returned: ZRem removing the member
// proves this caller owns it, so concurrent workers polling the same key
// never claim the same job twice.
func (q *RedisQueue) Due(ctx context.Context, now time.Time, limit int) ([]Job, error) {
	if limit <= 0 {
		limit = 50
	}

	members, err := q.client.ZRangeByScore(ctx, q.key, &redislib.ZRangeBy{
		Min:   "-inf",
		Max:   strconv.FormatInt(now.UTC().Unix(), 10),
		Count: int64(limit),
	}).Result()
	if err != nil {
		return nil, errors.Wrap(err, "list due jobs")
	}

	var jobs []Job
	for _, member := range members {
		removed, err := q.client.ZRem(ctx, q.key, member).Result()
		if err != nil {
			return jobs, errors.Wrap(err, "claim job")
		}
		if removed == 0 {
			// another worker got there first
			continue
		}
		var job Job
		if err := json.Unmarshal([]byte(member), &job); err != nil {
			// poison entry; already removed, skip it
			continue
		}
		jobs = append(jobs, job)
	}
	return jobs, nil
}

var _ Queue = (*RedisQueue)(nil)
