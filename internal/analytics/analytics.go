// Package analytics summarises the action journal.
package analytics

import (
	"context"
	"sort"
	"time"

	"configbot/internal/result"
	"configbot/internal/storage"
)

type Service struct {
	store *storage.Store
}

func New(store *storage.Store) *Service {
	return &Service{store: store}
}

type Report struct {
	Total    int
	ByLevel  map[string]int
	ByStatus map[string]int
	ByAction map[string]int
	// Failures holds the most recent non-applied entries, newest first.
	Failures []storage.ActionLog
}

const maxFailures = 5

func (s *Service) Report(ctx context.Context, guildID string, since time.Time) (Report, error) {
	logs, err := s.store.ListActionLogs(ctx, guildID, since)
	if err != nil {
		return Report{}, err
	}

	report := Report{
		ByLevel:  make(map[string]int),
		ByStatus: make(map[string]int),
		ByAction: make(map[string]int),
	}
	for _, log := range logs {
		report.Total++
		report.ByLevel[log.Level]++
		report.ByStatus[log.Status]++
		if log.Action != "" {
			report.ByAction[log.Action]++
		}
		if log.Status != string(result.StatusApplied) && len(report.Failures) < maxFailures {
			report.Failures = append(report.Failures, log)
		}
	}
	return report, nil
}

// TopActions returns action names ordered by count, most frequent first.
func (r Report) TopActions(n int) []string {
	names := make([]string, 0, len(r.ByAction))
	for name := range r.ByAction {
		names = append(names, name)
	}
	sort.Slice(names, func(i, j int) bool {
		if r.ByAction[names[i]] != r.ByAction[names[j]] {
			return r.ByAction[names[i]] > r.ByAction[names[j]]
		}
		return names[i] < names[j]
	})
	if n > 0 && len(names) > n {
		names = names[:n]
	}
	return names
}
