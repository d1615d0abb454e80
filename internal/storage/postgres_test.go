package storage

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/fmuoria/recruit-crm/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
)

func TestPostgres_ConcurrentReinforce(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping postgres integration test in short mode")
	}
	testcontainers.SkipIfProviderIsNotHealthy(t)

	ctx := context.Background()
	pg, err := postgres.Run(ctx,
		"postgres:16-alpine",
		postgres.WithDatabase("recruit_test"),
		postgres.WithUsername("test"),
		postgres.WithPassword("test"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60*time.Second),
		),
	)
	require.NoError(t, err)
	t.Cleanup(func() {
		if err := pg.Terminate(ctx); err != nil {
			t.Logf("Failed to terminate postgres container: %v", err)
		}
	})

	dsn, err := pg.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	db, err := Open(ctx, DriverPostgres, dsn)
	require.NoError(t, err)
	defer db.Close()
	require.NoError(t, Migrate(ctx, db, DriverPostgres))

	mem := NewMappingMemory(db, DriverPostgres, 0.7, 0.1)

	const writers = 10
	var wg sync.WaitGroup
	for i := 0; i < writers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			assert.NoError(t, mem.Reinforce(ctx, "emailid", "Email ID", "emails"))
		}()
	}
	wg.Wait()

	got, err := mem.Load(ctx, "emailid")
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, writers, got[0].Weight)
	assert.InDelta(t, 1.0, got[0].Confidence, 1e-9)

	repo := NewCandidateRepository(db, DriverPostgres)
	cols, err := repo.Columns(ctx)
	require.NoError(t, err)
	assert.NotContains(t, cols, "id")

	reqID, err := repo.CreateRequirement(ctx, "Data Engineer", "Globex")
	require.NoError(t, err)
	inserted, failed, err := repo.InsertRows(ctx, reqID, []InsertRow{
		{Index: 0, Data: map[string]string{"candidate_name": "Asha", "application_date": "2026-03-01"}},
		{Index: 1, Data: map[string]string{"candidate_name": "Ravi", "application_date": "not a date"}},
	}, "")
	require.NoError(t, err)
	assert.Equal(t, 1, inserted)
	assert.Len(t, failed, 1)

	table, err := repo.ListCandidates(ctx, reqID, models.CandidateFilter{})
	require.NoError(t, err)
	require.Len(t, table.Rows, 1)
	assert.Equal(t, "2026-03-01", table.Rows[0][indexOf(table.Columns, "application_date")])
}
