package retention_test

import (
	"fmt"
	"testing"
	"time"

	"github.com/ledgerbot/backupd/catalog"
	"github.com/ledgerbot/backupd/retention"
	"github.com/ledgerbot/backupd/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func recordAt(at time.Time) catalog.Record {
	return catalog.Record{
		ID:        at.UTC().Format("20060102150405"),
		Name:      storage.ArtifactName(at),
		CreatedAt: at.UTC(),
		Local:     true,
	}
}

func dailyRecords(start time.Time, days int) []catalog.Record {
	records := make([]catalog.Record, 0, days)
	for i := 0; i < days; i++ {
		records = append(records, recordAt(start.AddDate(0, 0, i)))
	}
	return records
}

func TestEvaluate_PartitionIsComplete(t *testing.T) {
	start := time.Date(2026, 3, 2, 3, 0, 0, 0, time.UTC) // a Monday
	records := dailyRecords(start, 40)
	now := records[len(records)-1].CreatedAt

	decision := retention.DefaultPolicy().Evaluate(records, now)

	seen := map[string]int{}
	for _, rec := range decision.Keep {
		seen[rec.ID]++
	}
	for _, rec := range decision.Delete {
		seen[rec.ID]++
	}

	assert.Len(t, seen, len(records), "keep ∪ delete must equal the input set")
	for id, count := range seen {
		assert.Equal(t, 1, count, "record %s must appear in exactly one partition", id)
	}
}

func TestEvaluate_TenConsecutiveDays(t *testing.T) {
	start := time.Date(2026, 6, 1, 3, 0, 0, 0, time.UTC) // a Monday
	records := dailyRecords(start, 10)
	now := records[len(records)-1].CreatedAt

	decision := retention.DefaultPolicy().Evaluate(records, now)

	require.Len(t, decision.Keep, 7)
	require.Len(t, decision.Delete, 3)

	// The three oldest are pruned; the seven most recent survive as dailies.
	for _, rec := range decision.Delete {
		assert.True(t, rec.CreatedAt.Before(start.AddDate(0, 0, 3)), "deleted %s", rec.ID)
		assert.Equal(t, retention.TierExpired, decision.Tier(rec.ID))
	}
	for _, rec := range decision.Keep {
		assert.Equal(t, retention.TierDaily, decision.Tier(rec.ID))
	}
}

func TestEvaluate_KeepsLatestPerDay(t *testing.T) {
	day := time.Date(2026, 6, 10, 0, 0, 0, 0, time.UTC)
	records := []catalog.Record{
		recordAt(day.Add(3 * time.Hour)),
		recordAt(day.Add(15 * time.Hour)),
		recordAt(day.Add(9 * time.Hour)),
	}

	decision := retention.DefaultPolicy().Evaluate(records, day.Add(16*time.Hour))

	require.Len(t, decision.Keep, 1)
	assert.Equal(t, day.Add(15*time.Hour), decision.Keep[0].CreatedAt)
}

func TestEvaluate_IdenticalTimestampsBreakOnID(t *testing.T) {
	at := time.Date(2026, 6, 10, 3, 0, 0, 0, time.UTC)
	a := recordAt(at)
	a.ID = "20260610030000a"
	b := recordAt(at)
	b.ID = "20260610030000b"

	decision := retention.DefaultPolicy().Evaluate([]catalog.Record{a, b}, at)

	require.Len(t, decision.Keep, 1)
	assert.Equal(t, b.ID, decision.Keep[0].ID, "highest id wins the tie")
}

func TestEvaluate_TierCaps(t *testing.T) {
	// Two backups a day for two years.
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	var records []catalog.Record
	for i := 0; i < 730; i++ {
		day := start.AddDate(0, 0, i)
		records = append(records, recordAt(day.Add(3*time.Hour)), recordAt(day.Add(15*time.Hour)))
	}
	now := records[len(records)-1].CreatedAt

	policy := retention.DefaultPolicy()
	decision := policy.Evaluate(records, now)

	assert.LessOrEqual(t, len(decision.Keep), policy.Daily+policy.Weekly+policy.Monthly)

	tiers := map[retention.Tier]int{}
	for _, rec := range decision.Keep {
		tiers[decision.Tier(rec.ID)]++
	}
	assert.LessOrEqual(t, tiers[retention.TierDaily], policy.Daily)
	assert.LessOrEqual(t, tiers[retention.TierWeekly], policy.Weekly)
	assert.LessOrEqual(t, tiers[retention.TierMonthly], policy.Monthly)
	assert.Equal(t, policy.Daily, tiers[retention.TierDaily])
}

func TestEvaluate_Idempotent(t *testing.T) {
	start := time.Date(2025, 1, 6, 3, 0, 0, 0, time.UTC) // a Monday
	records := dailyRecords(start, 400)
	now := records[len(records)-1].CreatedAt

	policy := retention.DefaultPolicy()
	first := policy.Evaluate(records, now)
	second := policy.Evaluate(first.Keep, now)

	assert.Empty(t, second.Delete, "re-applying the policy to its own keep output must delete nothing")
	assert.Len(t, second.Keep, len(first.Keep))
}

func TestEvaluate_CoveredWeeksDoNotConsumeSlots(t *testing.T) {
	// Daily coverage spans the newest weeks entirely; older weeks must still
	// get their weekly keepers instead of being crowded out.
	var records []catalog.Record
	start := time.Date(2026, 2, 2, 3, 0, 0, 0, time.UTC) // a Monday
	// Eight weekly Monday backups, then seven daily ones right after.
	for i := 0; i < 8; i++ {
		records = append(records, recordAt(start.AddDate(0, 0, i*7)))
	}
	for i := 1; i < 7; i++ {
		records = append(records, recordAt(start.AddDate(0, 0, 49+i)))
	}
	now := records[len(records)-1].CreatedAt

	decision := retention.DefaultPolicy().Evaluate(records, now)

	weekly := 0
	for _, rec := range decision.Keep {
		if decision.Tier(rec.ID) == retention.TierWeekly {
			weekly++
		}
	}
	assert.Equal(t, 4, weekly)
}

func TestEvaluate_FewRecordsKeepsEverything(t *testing.T) {
	start := time.Date(2026, 6, 1, 3, 0, 0, 0, time.UTC)
	records := dailyRecords(start, 5)

	decision := retention.DefaultPolicy().Evaluate(records, records[4].CreatedAt)

	assert.Len(t, decision.Keep, 5)
	assert.Empty(t, decision.Delete)
}

func TestEvaluate_ZeroPolicyDeletesEverything(t *testing.T) {
	records := dailyRecords(time.Date(2026, 6, 1, 3, 0, 0, 0, time.UTC), 3)
	decision := retention.Policy{}.Evaluate(records, records[2].CreatedAt)

	assert.Empty(t, decision.Keep)
	assert.Len(t, decision.Delete, 3)
}

func BenchmarkEvaluate(b *testing.B) {
	records := dailyRecords(time.Date(2020, 1, 1, 3, 0, 0, 0, time.UTC), 2000)
	now := records[len(records)-1].CreatedAt
	policy := retention.DefaultPolicy()

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		decision := policy.Evaluate(records, now)
		if len(decision.Keep) == 0 {
			b.Fatal(fmt.Errorf("unexpected empty keep set"))
		}
	}
}
