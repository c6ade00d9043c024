// Package reporting computes the front-desk dashboard. Aggregation is pure
// (Summarize, Trend) over rows read by a Source, so the figures can be
// checked without a database.
package reporting

import (
	"sort"
	"time"

	"github.com/clinic/frontdesk/internal/domain/triage"
)

const dateLayout = "2006-01-02"

// Fact is one attention as the dashboard sees it.
type Fact struct {
	Date        string // YYYY-MM-DD
	TypeName    string
	ServiceName string
	Status      triage.State
	CreatedAt   time.Time
	StartedAt   *time.Time
}

type Count struct {
	Name  string `json:"name"`
	Total int    `json:"total"`
}

type Summary struct {
	Date                  string         `json:"date"`
	Total                 int            `json:"total"`
	ByStatus              map[string]int `json:"by_status"`
	ByType                []Count        `json:"by_type"`
	ByService             []Count        `json:"by_service"`
	EmergenciesInProgress int            `json:"emergencies_in_progress"`
	Attended              int            `json:"attended"`
	AvgWaitMinutes        *float64       `json:"avg_wait_minutes"`
}

type TrendPoint struct {
	Date  string `json:"date"`
	Total int    `json:"total"`
}

func sortedCounts(m map[string]int) []Count {
	out := make([]Count, 0, len(m))
	for name, n := range m {
		out = append(out, Count{Name: name, Total: n})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Total != out[j].Total {
			return out[i].Total > out[j].Total
		}
		return out[i].Name < out[j].Name
	})
	return out
}

// Summarize aggregates the facts dated date and ignores the rest. Every
// status appears in ByStatus, with zero when absent. Emergencies in progress
// are high-tier attentions still waiting or being seen. The average wait runs
// from creation to start over the attentions that started.
func Summarize(date string, facts []Fact) Summary {
	s := Summary{Date: date, ByStatus: make(map[string]int, len(triage.States))}
	for _, st := range triage.States {
		s.ByStatus[string(st)] = 0
	}
	byType := map[string]int{}
	byService := map[string]int{}

	var waitSum float64
	var started int
	for _, f := range facts {
		if f.Date != date {
			continue
		}
		s.Total++
		s.ByStatus[string(f.Status)]++
		byType[f.TypeName]++
		byService[f.ServiceName]++
		if f.Status == triage.Attended {
			s.Attended++
		}
		if triage.Tier(f.TypeName) <= triage.TierUrgent && (f.Status == triage.Waiting || f.Status == triage.InProgress) {
			s.EmergenciesInProgress++
		}
		if f.StartedAt != nil {
			wait := f.StartedAt.Sub(f.CreatedAt).Minutes()
			if wait < 0 {
				wait = 0
			}
			waitSum += wait
			started++
		}
	}
	s.ByType = sortedCounts(byType)
	s.ByService = sortedCounts(byService)
	if started > 0 {
		avg := waitSum / float64(started)
		s.AvgWaitMinutes = &avg
	}
	return s
}

// Trend lists days calendar days ending on end, oldest first, filling days
// without attentions with zero.
func Trend(end time.Time, days int, counts map[string]int) []TrendPoint {
	if days < 1 {
		days = 1
	}
	out := make([]TrendPoint, 0, days)
	for i := days - 1; i >= 0; i-- {
		d := end.AddDate(0, 0, -i).Format(dateLayout)
		out = append(out, TrendPoint{Date: d, Total: counts[d]})
	}
	return out
}
