package sqlite

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"energytrack/internal/domain"
	"energytrack/internal/repository"
)

type testRepos struct {
	db       *sql.DB
	users    repository.UserRepository
	meters   repository.MeterRepository
	readings repository.ReadingRepository
	reports  repository.ReportRepository
}

func newTestRepos(t *testing.T) testRepos {
	t.Helper()
	db, err := Open(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	r := testRepos{
		db:       db,
		users:    NewUserRepository(db),
		meters:   NewMeterRepository(db),
		readings: NewReadingRepository(db),
		reports:  NewReportRepository(db),
	}
	require.NoError(t, InitAll(context.Background(), r.users, r.meters, r.readings, r.reports))
	return r
}

func mustMeter(t *testing.T, r testRepos, location string) *domain.Meter {
	t.Helper()
	m := &domain.Meter{Location: location, Type: domain.MeterSmart, Status: domain.MeterNormal}
	_, err := r.meters.Create(context.Background(), m)
	require.NoError(t, err)
	return m
}

func TestUserRepositoryLifecycle(t *testing.T) {
	r := newTestRepos(t)
	ctx := context.Background()

	u := &domain.User{Username: "alice", PasswordHash: "hash", Role: domain.RoleAdmin, Status: domain.UserEnabled}
	id, err := r.users.Create(ctx, u)
	require.NoError(t, err)
	assert.Equal(t, id, u.ID)

	_, err = r.users.Create(ctx, &domain.User{Username: "alice", PasswordHash: "x", Role: domain.RoleUser, Status: domain.UserEnabled})
	assert.ErrorIs(t, err, repository.ErrConflict)

	got, err := r.users.GetByUsername(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, domain.RoleAdmin, got.Role)
	assert.Equal(t, "hash", got.PasswordHash)

	got.Email = "alice@example.com"
	got.Status = domain.UserDisabled
	require.NoError(t, r.users.Update(ctx, got))
	require.NoError(t, r.users.UpdatePassword(ctx, got.ID, "new-hash"))

	got, err = r.users.GetByID(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, "alice@example.com", got.Email)
	assert.Equal(t, domain.UserDisabled, got.Status)
	assert.Equal(t, "new-hash", got.PasswordHash)

	require.NoError(t, r.users.Delete(ctx, id))
	_, err = r.users.GetByID(ctx, id)
	assert.ErrorIs(t, err, repository.ErrNotFound)
	assert.ErrorIs(t, r.users.Delete(ctx, id), repository.ErrNotFound)
}

func TestUserRepositoryPaging(t *testing.T) {
	r := newTestRepos(t)
	ctx := context.Background()

	for _, name := range []string{"op-1", "op-2", "op-3", "admin"} {
		_, err := r.users.Create(ctx, &domain.User{Username: name, PasswordHash: "h", Role: domain.RoleUser, Status: domain.UserEnabled})
		require.NoError(t, err)
	}

	users, total, err := r.users.List(ctx, domain.PageRequest{Page: 2, Limit: 3})
	require.NoError(t, err)
	assert.Equal(t, int64(4), total)
	require.Len(t, users, 1)
	assert.Equal(t, "admin", users[0].Username)

	users, total, err = r.users.SearchByUsername(ctx, "op-", domain.PageRequest{Page: 1, Limit: 10})
	require.NoError(t, err)
	assert.Equal(t, int64(3), total)
	assert.Len(t, users, 3)
}

func TestUserRepositoryUpgradesLegacyTable(t *testing.T) {
	db, err := Open(":memory:")
	require.NoError(t, err)
	defer db.Close()
	ctx := context.Background()

	_, err = db.ExecContext(ctx, `
CREATE TABLE users (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	username TEXT NOT NULL UNIQUE,
	password_hash TEXT NOT NULL,
	created_at DATETIME NOT NULL,
	updated_at DATETIME NOT NULL
)`)
	require.NoError(t, err)
	_, err = db.ExecContext(ctx, `INSERT INTO users (username, password_hash, created_at, updated_at) VALUES (?, ?, ?, ?)`,
		"legacy", "h", time.Now().UTC(), time.Now().UTC())
	require.NoError(t, err)

	users := NewUserRepository(db)
	require.NoError(t, users.Init(ctx))

	got, err := users.GetByUsername(ctx, "legacy")
	require.NoError(t, err)
	assert.Equal(t, domain.RoleUser, got.Role)
	assert.Equal(t, domain.UserEnabled, got.Status)
}

func TestMeterRepositorySearch(t *testing.T) {
	r := newTestRepos(t)
	ctx := context.Background()

	installed := time.Date(2023, 6, 1, 0, 0, 0, 0, time.UTC)
	m1 := &domain.Meter{Location: "Building A / floor 1", Type: domain.MeterSmart, Status: domain.MeterNormal, InstallationDate: &installed}
	m2 := &domain.Meter{Location: "Building B", Type: domain.MeterThreePhase, Status: domain.MeterFault}
	_, err := r.meters.Create(ctx, m1)
	require.NoError(t, err)
	_, err = r.meters.Create(ctx, m2)
	require.NoError(t, err)

	got, err := r.meters.GetByID(ctx, m1.ID)
	require.NoError(t, err)
	require.NotNil(t, got.InstallationDate)
	assert.True(t, installed.Equal(*got.InstallationDate))

	found, err := r.meters.Search(ctx, domain.MeterFilter{Location: "Building"})
	require.NoError(t, err)
	assert.Len(t, found, 2)

	found, err = r.meters.Search(ctx, domain.MeterFilter{Location: "Building", Status: domain.MeterFault})
	require.NoError(t, err)
	require.Len(t, found, 1)
	assert.Equal(t, m2.ID, found[0].ID)

	found, err = r.meters.Search(ctx, domain.MeterFilter{Type: domain.MeterSinglePhase})
	require.NoError(t, err)
	assert.Empty(t, found)

	m2.Status = domain.MeterOffline
	require.NoError(t, r.meters.Update(ctx, m2))
	assert.ErrorIs(t, r.meters.Update(ctx, &domain.Meter{ID: 999, Type: domain.MeterSmart, Status: domain.MeterNormal}), repository.ErrNotFound)

	_, err = r.meters.GetByID(ctx, 999)
	assert.ErrorIs(t, err, repository.ErrNotFound)
}

func TestReadingRepositoryRangeQuery(t *testing.T) {
	r := newTestRepos(t)
	ctx := context.Background()
	meter := mustMeter(t, r, "A")
	other := mustMeter(t, r, "B")

	base := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)
	insert := func(meterID int64, offset time.Duration, v *float64) {
		_, err := r.readings.Create(ctx, &domain.Reading{MeterID: meterID, Value: v, Timestamp: base.Add(offset)})
		require.NoError(t, err)
	}
	insert(meter.ID, 2*time.Hour, domain.FloatPtr(130))
	insert(meter.ID, 0, domain.FloatPtr(100))
	insert(meter.ID, time.Hour, nil)
	insert(meter.ID, 5*time.Hour, domain.FloatPtr(900))
	insert(other.ID, time.Hour, domain.FloatPtr(5000))

	got, err := r.readings.ListByMeterBetween(ctx, meter.ID, base, base.Add(2*time.Hour))
	require.NoError(t, err)
	require.Len(t, got, 3)
	assert.Equal(t, 100.0, *got[0].Value)
	assert.Nil(t, got[1].Value)
	assert.Equal(t, 130.0, *got[2].Value)
	assert.True(t, got[0].Timestamp.Equal(base))

	max, err := r.readings.MaxValue(ctx, meter.ID)
	require.NoError(t, err)
	require.NotNil(t, max)
	assert.Equal(t, 900.0, *max)

	empty := mustMeter(t, r, "C")
	max, err = r.readings.MaxValue(ctx, empty.ID)
	require.NoError(t, err)
	assert.Nil(t, max)

	all, total, err := r.readings.List(ctx, domain.PageRequest{Page: 1, Limit: 2})
	require.NoError(t, err)
	assert.Equal(t, int64(5), total)
	assert.Len(t, all, 2)
}

func TestReadingRequiresExistingMeter(t *testing.T) {
	r := newTestRepos(t)
	_, err := r.readings.Create(context.Background(), &domain.Reading{MeterID: 404, Value: domain.FloatPtr(1), Timestamp: time.Now()})
	assert.Error(t, err)
}

func TestMeterDeleteCascades(t *testing.T) {
	r := newTestRepos(t)
	ctx := context.Background()
	meter := mustMeter(t, r, "A")

	reading := &domain.Reading{MeterID: meter.ID, Value: domain.FloatPtr(1), Timestamp: time.Now()}
	_, err := r.readings.Create(ctx, reading)
	require.NoError(t, err)
	report := &domain.ElectricityReport{MeterID: meter.ID, StartTime: time.Now().Add(-time.Hour), EndTime: time.Now(), TotalConsumption: 3}
	_, err = r.reports.Create(ctx, report)
	require.NoError(t, err)

	require.NoError(t, r.meters.Delete(ctx, meter.ID))

	_, err = r.readings.GetByID(ctx, reading.ID)
	assert.ErrorIs(t, err, repository.ErrNotFound)
	_, err = r.reports.GetByID(ctx, report.ID)
	assert.ErrorIs(t, err, repository.ErrNotFound)
}

func TestReportRepositorySearch(t *testing.T) {
	r := newTestRepos(t)
	ctx := context.Background()
	meter := mustMeter(t, r, "A")

	day := time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)
	for i := 0; i < 3; i++ {
		_, err := r.reports.Create(ctx, &domain.ElectricityReport{
			MeterID:          meter.ID,
			StartTime:        day.AddDate(0, 0, i),
			EndTime:          day.AddDate(0, 0, i+1),
			TotalConsumption: float64(10 * (i + 1)),
		})
		require.NoError(t, err)
	}

	from := day.AddDate(0, 0, 1)
	to := day.AddDate(0, 0, 3)
	found, err := r.reports.Search(ctx, domain.ReportFilter{MeterID: meter.ID, StartTime: &from, EndTime: &to})
	require.NoError(t, err)
	require.Len(t, found, 2)
	assert.Equal(t, 20.0, found[0].TotalConsumption)

	found[0].TotalConsumption = 21
	require.NoError(t, r.reports.Update(ctx, &found[0]))
	got, err := r.reports.GetByID(ctx, found[0].ID)
	require.NoError(t, err)
	assert.Equal(t, 21.0, got.TotalConsumption)

	page, total, err := r.reports.List(ctx, domain.PageRequest{})
	require.NoError(t, err)
	assert.Equal(t, int64(3), total)
	assert.Len(t, page, 3)

	require.NoError(t, r.reports.Delete(ctx, got.ID))
	assert.ErrorIs(t, r.reports.Delete(ctx, got.ID), repository.ErrNotFound)
}
