// Package triage holds the queue ordering rules and the attention status
// state machine.
package triage

import (
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/doug-martin/goqu/v9"
	"github.com/doug-martin/goqu/v9/exp"
)

const (
	TierEmergency = 1
	TierUrgent    = 2
	TierRoutine   = 3
)

// tiers lists the attention type names that rank above routine care. Both
// Tier and TierCase read from it.
var tiers = []struct {
	name string
	tier int
}{
	{"Emergencia", TierEmergency},
	{"Urgencia", TierUrgent},
}

// Tier returns the ordering tier for an attention type name. Unknown and
// empty names are routine.
func Tier(typeName string) int {
	n := strings.TrimSpace(typeName)
	for _, t := range tiers {
		if strings.EqualFold(n, t.name) {
			return t.tier
		}
	}
	return TierRoutine
}

// PriorityTypeNames returns the type names with a tier at or above max.
func PriorityTypeNames(max int) []string {
	var out []string
	for _, t := range tiers {
		if t.tier <= max {
			out = append(out, t.name)
		}
	}
	return out
}

// TierCase renders Tier as a SQL CASE over the given type-name column.
// Tiers are inlined as integer literals: bound untyped parameters in every
// branch would make Postgres resolve the CASE as text.
func TierCase(column exp.IdentifierExpression) exp.CaseExpression {
	c := goqu.Case()
	trimmed := goqu.Func("LOWER", goqu.Func("TRIM", column))
	for _, t := range tiers {
		c = c.When(trimmed.Eq(strings.ToLower(t.name)), tierLiteral(t.tier))
	}
	return c.Else(tierLiteral(TierRoutine))
}

func tierLiteral(tier int) exp.LiteralExpression {
	return goqu.L(strconv.Itoa(tier))
}

// Entry is the minimum a queue row needs for ordering.
type Entry struct {
	TypeName string
	Arrival  time.Duration // time of day
	Created  time.Time
}

// Less orders by tier, then arrival time, then creation.
func Less(a, b Entry) bool {
	ta, tb := Tier(a.TypeName), Tier(b.TypeName)
	if ta != tb {
		return ta < tb
	}
	if a.Arrival != b.Arrival {
		return a.Arrival < b.Arrival
	}
	return a.Created.Before(b.Created)
}

// Sort orders items in place using key to extract each Entry.
func Sort[T any](items []T, key func(T) Entry) {
	sort.SliceStable(items, func(i, j int) bool {
		return Less(key(items[i]), key(items[j]))
	})
}
