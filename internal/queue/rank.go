// Package queue holds the selection rules shared by the daily dispatcher and
// the event notifiers: batch ranking, per-subscriber picks and broadcast
// target filtering. Everything here is pure; callers do the I/O.
package queue

import (
	"sort"

	"github.com/notifyhub/tipcast/internal/domain"
)

// Rank orders candidates for dispatch and truncates the result to limit.
//
// Ordering is deterministic:
//
//	priority  descending  (most liked first)
//	queuedAt  ascending   (earlier-queued wins a tie)
//	id        ascending   (last resort, keeps runs reproducible)
//
// The input slice is not modified. limit <= 0 returns an empty batch.
func Rank(candidates []*domain.Candidate, limit int) []*domain.Candidate {
	if limit <= 0 || len(candidates) == 0 {
		return nil
	}
	ranked := make([]*domain.Candidate, len(candidates))
	copy(ranked, candidates)

	sort.SliceStable(ranked, func(i, j int) bool {
		a, b := ranked[i], ranked[j]
		if a.Priority != b.Priority {
			return a.Priority > b.Priority
		}
		if !a.QueuedAt.Equal(b.QueuedAt) {
			return a.QueuedAt.Before(b.QueuedAt)
		}
		return a.ID < b.ID
	})

	if len(ranked) > limit {
		ranked = ranked[:limit]
	}
	return ranked
}

// Pick returns the first candidate in batch (already ranked) that sub is
// interested in, or nil. Subscribers without a delivery token never get a pick.
func Pick(sub *domain.Subscriber, batch []*domain.Candidate) *domain.Candidate {
	if sub == nil || !sub.HasToken() {
		return nil
	}
	for _, c := range batch {
		if sub.InterestedIn(c.Category) {
			return c
		}
	}
	return nil
}

// BroadcastTargets returns the delivery tokens of every subscriber interested
// in category, excluding the publisher and anyone without a token. Tokens keep
// the order of subs and duplicates are dropped.
func BroadcastTargets(subs []*domain.Subscriber, category, publisherID string) []string {
	seen := make(map[string]struct{})
	var tokens []string
	for _, s := range subs {
		if s.ID == publisherID || !s.HasToken() || !s.InterestedIn(category) {
			continue
		}
		if _, dup := seen[s.DeliveryToken]; dup {
			continue
		}
		seen[s.DeliveryToken] = struct{}{}
		tokens = append(tokens, s.DeliveryToken)
	}
	return tokens
}

// Chunk splits tokens into consecutive slices of at most size elements.
func Chunk(tokens []string, size int) [][]string {
	if size <= 0 {
		size = len(tokens)
	}
	var out [][]string
	for len(tokens) > 0 {
		n := size
		if len(tokens) < n {
			n = len(tokens)
		}
		out = append(out, tokens[:n])
		tokens = tokens[n:]
	}
	return out
}
