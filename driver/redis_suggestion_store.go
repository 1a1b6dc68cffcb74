package driver

import (
	"context"
	"sort"
	"strconv"
	"strings"

	"post-search/domain"

	"github.com/redis/go-redis/v9"
)

// prefixScanPage is how many lexicographic candidates one ZRANGEBYLEX call reads.
const prefixScanPage = 500

// RedisSuggestionStore keeps folded terms in a sorted set scored 0, so
// ZRANGEBYLEX answers prefix lookups. Display forms and popularity live in
// hashes keyed by the folded term.
type RedisSuggestionStore struct {
	client     redis.UniversalClient
	termKey    string
	displayKey string
	popKey     string
}

func NewRedisSuggestionStore(client redis.UniversalClient, prefix string) *RedisSuggestionStore {
	return &RedisSuggestionStore{
		client:     client,
		termKey:    prefix + "suggest:terms",
		displayKey: prefix + "suggest:display",
		popKey:     prefix + "suggest:popularity",
	}
}

func (s *RedisSuggestionStore) AddTerms(ctx context.Context, terms []string) error {
	_, err := s.client.Pipelined(ctx, func(pipe redis.Pipeliner) error {
		for _, t := range terms {
			display := strings.Join(strings.Fields(t), " ")
			if display == "" {
				continue
			}
			key := domain.FoldTerm(display)
			pipe.ZAdd(ctx, s.termKey, redis.Z{Member: key})
			pipe.HSetNX(ctx, s.displayKey, key, display)
		}
		return nil
	})
	if err != nil {
		return newDriverError("AddTerms", err)
	}
	return nil
}

// Prefix pages through every term in the lexicographic range and keeps the
// limit most popular ones.
func (s *RedisSuggestionStore) Prefix(ctx context.Context, prefix string, limit int) ([]domain.Suggestion, error) {
	folded := domain.FoldTerm(prefix)
	out := make([]domain.Suggestion, 0)
	for offset := int64(0); ; offset += prefixScanPage {
		keys, err := s.client.ZRangeByLex(ctx, s.termKey, &redis.ZRangeBy{
			Min:    "[" + folded,
			Max:    "[" + folded + "\xff",
			Offset: offset,
			Count:  prefixScanPage,
		}).Result()
		if err != nil {
			return nil, newDriverError("Prefix", err)
		}
		if len(keys) == 0 {
			break
		}

		page, err := s.lookup(ctx, keys)
		if err != nil {
			return nil, err
		}
		out = RankSuggestions(append(out, page...), limit)
		if len(keys) < prefixScanPage {
			break
		}
	}
	return out, nil
}

func (s *RedisSuggestionStore) lookup(ctx context.Context, keys []string) ([]domain.Suggestion, error) {
	displays, err := s.client.HMGet(ctx, s.displayKey, keys...).Result()
	if err != nil {
		return nil, newDriverError("Prefix", err)
	}
	scores, err := s.client.HMGet(ctx, s.popKey, keys...).Result()
	if err != nil {
		return nil, newDriverError("Prefix", err)
	}

	out := make([]domain.Suggestion, len(keys))
	for i, key := range keys {
		out[i] = domain.Suggestion{Term: key}
		if d, ok := displays[i].(string); ok {
			out[i].Term = d
		}
		if raw, ok := scores[i].(string); ok {
			out[i].Popularity, _ = strconv.ParseFloat(raw, 64)
		}
	}
	return out, nil
}

// ReplaceTerms swaps the term set and its display forms in a single MULTI block.
// Popularity scores are kept.
func (s *RedisSuggestionStore) ReplaceTerms(ctx context.Context, terms []string) error {
	tmpTerms := s.termKey + ":next"
	tmpDisplay := s.displayKey + ":next"

	members := make([]redis.Z, 0, len(terms))
	display := make(map[string]any, len(terms))
	for _, t := range terms {
		d := strings.Join(strings.Fields(t), " ")
		if d == "" {
			continue
		}
		key := domain.FoldTerm(d)
		if _, ok := display[key]; ok {
			continue
		}
		display[key] = d
		members = append(members, redis.Z{Member: key})
	}

	_, err := s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, tmpTerms, tmpDisplay)
		if len(members) == 0 {
			pipe.Del(ctx, s.termKey, s.displayKey)
			return nil
		}
		pipe.ZAdd(ctx, tmpTerms, members...)
		pipe.HSet(ctx, tmpDisplay, display)
		pipe.Rename(ctx, tmpTerms, s.termKey)
		pipe.Rename(ctx, tmpDisplay, s.displayKey)
		return nil
	})
	if err != nil {
		return newDriverError("ReplaceTerms", err)
	}
	return nil
}

// ReplacePopularity swaps the popularity hash in a single MULTI block.
func (s *RedisSuggestionStore) ReplacePopularity(ctx context.Context, scores map[string]float64) error {
	tmp := s.popKey + ":next"
	_, err := s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, tmp)
		if len(scores) == 0 {
			pipe.Del(ctx, s.popKey)
			return nil
		}
		values := make(map[string]any, len(scores))
		for term, score := range scores {
			values[domain.FoldTerm(term)] = score
		}
		pipe.HSet(ctx, tmp, values)
		pipe.Rename(ctx, tmp, s.popKey)
		return nil
	})
	if err != nil {
		return newDriverError("ReplacePopularity", err)
	}
	return nil
}

func (s *RedisSuggestionStore) Terms(ctx context.Context) ([]string, error) {
	keys, err := s.client.ZRange(ctx, s.termKey, 0, -1).Result()
	if err != nil {
		return nil, newDriverError("Terms", err)
	}
	if len(keys) == 0 {
		return []string{}, nil
	}
	displays, err := s.client.HMGet(ctx, s.displayKey, keys...).Result()
	if err != nil {
		return nil, newDriverError("Terms", err)
	}
	out := make([]string, len(keys))
	for i, key := range keys {
		out[i] = key
		if d, ok := displays[i].(string); ok {
			out[i] = d
		}
	}
	return out, nil
}

// RankSuggestions orders by popularity desc, then term, and keeps limit entries.
func RankSuggestions(s []domain.Suggestion, limit int) []domain.Suggestion {
	sort.SliceStable(s, func(i, j int) bool {
		if s[i].Popularity != s[j].Popularity {
			return s[i].Popularity > s[j].Popularity
		}
		return strings.ToLower(s[i].Term) < strings.ToLower(s[j].Term)
	})
	if limit > 0 && len(s) > limit {
		s = s[:limit]
	}
	return s
}
