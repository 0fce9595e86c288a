// Package suggest maintains query-completion candidates in Redis sorted sets.
// Every successful search is recorded twice: in a per-user set scored by
// recency and in a global set scored by popularity. Prediction reads the
// user's own history first and fills the remainder from the global set.
package suggest

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/redis/go-redis/v9"

	"github.com/kimu90/saved-ai/internal/cleaner"
)

const (
	// MinPrefixChars is the minimum input length before predictions fire.
	MinPrefixChars = 2

	// MaxSuggestions caps how many completions a single call returns.
	MaxSuggestions = 10

	// maxSetSize bounds each sorted set; lowest-scored entries are trimmed.
	maxSetSize = 1000

	// scanCount covers a full trimmed set in one ZSCAN page.
	scanCount = 1000

	globalKey     = "suggestions:global"
	userKeyPrefix = "suggestions:user:"
)

// Store records search queries and serves prefix completions from Redis.
type Store struct {
	client *redis.Client
	logger *slog.Logger
}

// NewStore connects to Redis and verifies the connection with a ping.
// Callers that can run without completions should treat a construction
// error as "suggestions disabled" rather than fatal.
func NewStore(addr string, db int, logger *slog.Logger) (*Store, error) {
	if logger == nil {
		logger = slog.Default()
	}

	client := redis.NewClient(&redis.Options{
		Addr: addr,
		DB:   db,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("%w: %v", ErrRedisUnreachable, err)
	}

	logger.Info("Suggestion store ready", "addr", addr, "db", db)

	return &Store{client: client, logger: logger}, nil
}

// Suggest returns up to limit completions for partial, most relevant first.
// Entries from the user's own history come before global ones; within each
// set higher scores win. Inputs shorter than MinPrefixChars yield nothing.
func (s *Store) Suggest(ctx context.Context, partial, userID string, limit int) ([]string, error) {
	prefix := cleaner.Normalize(partial)
	if utf8.RuneCountInString(prefix) < MinPrefixChars {
		return nil, nil
	}

	if limit <= 0 || limit > MaxSuggestions {
		limit = MaxSuggestions
	}

	var suggestions []string
	seen := make(map[string]bool)

	if userID != "" {
		userMatches, err := s.scanMatches(ctx, userKey(userID), prefix)
		if err != nil {
			return nil, err
		}
		for _, match := range userMatches {
			if len(suggestions) >= limit {
				return suggestions, nil
			}
			if !seen[match.query] {
				seen[match.query] = true
				suggestions = append(suggestions, match.query)
			}
		}
	}

	globalMatches, err := s.scanMatches(ctx, globalKey, prefix)
	if err != nil {
		return nil, err
	}
	for _, match := range globalMatches {
		if len(suggestions) >= limit {
			break
		}
		if !seen[match.query] {
			seen[match.query] = true
			suggestions = append(suggestions, match.query)
		}
	}

	return suggestions, nil
}

// Record stores a searched query: recency-scored in the user's set,
// count-incremented in the global set. Both sets are trimmed to maxSetSize.
// Queries below the prediction threshold are ignored.
func (s *Store) Record(ctx context.Context, query, userID string) error {
	q := cleaner.Normalize(query)
	if utf8.RuneCountInString(q) < MinPrefixChars {
		return nil
	}

	now := float64(time.Now().Unix())

	pipe := s.client.TxPipeline()
	if userID != "" {
		key := userKey(userID)
		pipe.ZAdd(ctx, key, redis.Z{Score: now, Member: q})
		pipe.ZRemRangeByRank(ctx, key, 0, int64(-maxSetSize-1))
	}
	pipe.ZIncrBy(ctx, globalKey, 1, q)
	pipe.ZRemRangeByRank(ctx, globalKey, 0, int64(-maxSetSize-1))

	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to record query: %w", err)
	}

	return nil
}

// Seed bulk-records queries, typically to warm up a fresh deployment.
func (s *Store) Seed(ctx context.Context, queries []string, userID string) error {
	for _, query := range queries {
		if err := s.Record(ctx, query, userID); err != nil {
			return err
		}
	}
	return nil
}

// Health performs a single ping against Redis.
func (s *Store) Health(ctx context.Context) error {
	if err := s.client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("redis ping failed: %w", err)
	}
	return nil
}

// Close closes the Redis client connection.
func (s *Store) Close() error {
	if s.client != nil {
		return s.client.Close()
	}
	return nil
}

type scoredQuery struct {
	query string
	score float64
}

// scanMatches collects every member of key starting with prefix, highest
// score first. ZSCAN with a glob pattern works regardless of member scores,
// and one page covers a fully trimmed set.
func (s *Store) scanMatches(ctx context.Context, key, prefix string) ([]scoredQuery, error) {
	pattern := escapeGlob(prefix) + "*"

	var matches []scoredQuery
	var cursor uint64

	for {
		page, next, err := s.client.ZScan(ctx, key, cursor, pattern, scanCount).Result()
		if err != nil {
			return nil, fmt.Errorf("failed to scan %s: %w", key, err)
		}

		// ZSCAN pages interleave member and score
		for i := 0; i+1 < len(page); i += 2 {
			score, err := strconv.ParseFloat(page[i+1], 64)
			if err != nil {
				score = 0
			}
			matches = append(matches, scoredQuery{query: page[i], score: score})
		}

		cursor = next
		if cursor == 0 {
			break
		}
	}

	sort.SliceStable(matches, func(i, j int) bool {
		if matches[i].score != matches[j].score {
			return matches[i].score > matches[j].score
		}
		return matches[i].query < matches[j].query
	})

	return matches, nil
}

var globEscaper = strings.NewReplacer(
	`\`, `\\`,
	`*`, `\*`,
	`?`, `\?`,
	`[`, `\[`,
	`]`, `\]`,
)

// escapeGlob neutralizes Redis glob metacharacters in user input.
func escapeGlob(s string) string {
	return globEscaper.Replace(s)
}

func userKey(userID string) string {
	return userKeyPrefix + userID
}
