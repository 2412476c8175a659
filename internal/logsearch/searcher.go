// Package logsearch provides the pluggable log-search collaborator used
// during evidence gathering.
package logsearch

import (
	"context"
	"strings"

	"github.com/redis/go-redis/v9"
)

// recentLogsKey is the capped list the platform's log shipper appends to.
const recentLogsKey = "logs:recent"

// maxScan bounds how many recent lines one search inspects.
const maxScan = 1000

// Searcher finds log lines matching any of the given keywords.
type Searcher interface {
	Search(ctx context.Context, keywords []string) ([]string, error)
}

// RedisSearcher scans the recent-logs list kept in Redis.
type RedisSearcher struct {
	client *redis.Client
}

// NewRedisSearcher builds a searcher over the shared Redis client.
func NewRedisSearcher(client *redis.Client) *RedisSearcher {
	return &RedisSearcher{client: client}
}

// Search returns recent log lines containing any keyword,
// case-insensitively, newest first.
func (s *RedisSearcher) Search(ctx context.Context, keywords []string) ([]string, error) {
	lines, err := s.client.LRange(ctx, recentLogsKey, 0, maxScan-1).Result()
	if err != nil {
		return nil, err
	}
	return filterLines(lines, keywords), nil
}

// StaticSearcher serves a fixed line set; used in tests and as the
// collaborator stand-in when Redis is not configured.
type StaticSearcher struct {
	Lines []string
}

// Search filters the static lines by keyword.
func (s *StaticSearcher) Search(ctx context.Context, keywords []string) ([]string, error) {
	return filterLines(s.Lines, keywords), nil
}

func filterLines(lines, keywords []string) []string {
	if len(keywords) == 0 {
		return []string{}
	}
	lowered := make([]string, len(keywords))
	for i, kw := range keywords {
		lowered[i] = strings.ToLower(kw)
	}
	matched := []string{}
	for _, line := range lines {
		lower := strings.ToLower(line)
		for _, kw := range lowered {
			if kw != "" && strings.Contains(lower, kw) {
				matched = append(matched, line)
				break
			}
		}
	}
	return matched
}
