package retention

import (
	"fmt"
	"sort"
	"time"

	"github.com/ledgerbot/backupd/catalog"
)

// Tier classifies why a record is kept, or that it is not.
type Tier string

const (
	TierDaily   Tier = "daily"
	TierWeekly  Tier = "weekly"
	TierMonthly Tier = "monthly"
	TierExpired Tier = "expired"
)

// Policy is the tiered grandfather-father-son retention scheme: the most
// recent record per calendar day for the last Daily days with records, then
// per ISO week for the last Weekly weeks, then per month for the last
// Monthly months. A week or month whose records are all already kept does
// not consume one of its tier's slots.
type Policy struct {
	Daily   int
	Weekly  int
	Monthly int
}

func DefaultPolicy() Policy {
	return Policy{Daily: 7, Weekly: 4, Monthly: 12}
}

// Decision partitions a record set into the records to keep and the records
// to delete. Keep and Delete are disjoint and their union is the input set.
type Decision struct {
	Keep   []catalog.Record
	Delete []catalog.Record

	tiers map[string]Tier
}

// Tier returns the tier the record with the given id was assigned.
func (d Decision) Tier(id string) Tier {
	if t, ok := d.tiers[id]; ok {
		return t
	}
	return TierExpired
}

// Evaluate is pure: it performs no I/O and depends only on its arguments,
// so the same record set always yields the same decision. Applying it again
// to its own Keep output deletes nothing further.
func (p Policy) Evaluate(records []catalog.Record, now time.Time) Decision {
	sorted := make([]catalog.Record, len(records))
	copy(sorted, records)
	// Newest first; identical timestamps break toward the highest id.
	sort.Slice(sorted, func(i, j int) bool {
		if sorted[i].CreatedAt.Equal(sorted[j].CreatedAt) {
			return sorted[i].ID > sorted[j].ID
		}
		return sorted[i].CreatedAt.After(sorted[j].CreatedAt)
	})

	decision := Decision{tiers: make(map[string]Tier, len(sorted))}
	kept := make(map[string]bool, len(sorted))

	p.keepTier(sorted, dayKey, p.Daily, TierDaily, kept, decision.tiers)
	p.keepTier(sorted, weekKey, p.Weekly, TierWeekly, kept, decision.tiers)
	p.keepTier(sorted, monthKey, p.Monthly, TierMonthly, kept, decision.tiers)

	for _, rec := range sorted {
		if kept[rec.ID] {
			decision.Keep = append(decision.Keep, rec)
		} else {
			decision.tiers[rec.ID] = TierExpired
			decision.Delete = append(decision.Delete, rec)
		}
	}
	return decision
}

// keepTier walks bucket keys newest first and keeps the latest record of
// each of the first `slots` buckets not already fully covered by finer
// tiers.
func (p Policy) keepTier(
	sorted []catalog.Record,
	key func(time.Time) string,
	slots int,
	tier Tier,
	kept map[string]bool,
	tiers map[string]Tier,
) {
	if slots <= 0 {
		return
	}

	// Records are newest first, so the first record seen per key is the
	// bucket's keeper and keys appear in reverse chronological order.
	var keys []string
	buckets := make(map[string][]catalog.Record)
	for _, rec := range sorted {
		k := key(rec.CreatedAt)
		if _, ok := buckets[k]; !ok {
			keys = append(keys, k)
		}
		buckets[k] = append(buckets[k], rec)
	}

	used := 0
	for _, k := range keys {
		if used == slots {
			return
		}
		bucket := buckets[k]

		covered := true
		for _, rec := range bucket {
			if !kept[rec.ID] {
				covered = false
				break
			}
		}
		if covered {
			continue
		}

		keeper := bucket[0]
		if !kept[keeper.ID] {
			kept[keeper.ID] = true
			tiers[keeper.ID] = tier
		}
		used++
	}
}

func dayKey(t time.Time) string {
	return t.UTC().Format("2006-01-02")
}

func weekKey(t time.Time) string {
	year, week := t.UTC().ISOWeek()
	return fmt.Sprintf("%04d-W%02d", year, week)
}

func monthKey(t time.Time) string {
	return t.UTC().Format("2006-01")
}
