package repository

import (
	"context"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"testing"
	"time"

	"golang-cardflip-engine/internal/entity"
	"golang-cardflip-engine/pkg/postgres"
	"golang-cardflip-engine/pkg/utils"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	tcpostgres "github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
	"gorm.io/gorm"
)

func newListing(source, externalID string, price float64) entity.Listing {
	l := entity.Listing{
		Source:   source,
		Title:    "card " + externalID,
		Price:    price,
		ListedAt: time.Now(),
		Status:   entity.ListingStatusOpen,
	}
	if externalID != "" {
		l.ExternalID = utils.ToPointer(externalID)
	}
	return l
}

func TestDedupListings(t *testing.T) {
	existing := map[string]struct{}{"scan\x00a": {}}
	batch := []entity.Listing{
		newListing("scan", "a", 10),
		newListing("scan", "b", 11),
		newListing("scan", "b", 12),
		newListing("monitor", "a", 13),
		newListing("scan", "", 14),
		newListing("scan", "", 15),
	}

	out := dedupListings(batch, existing)
	require.Len(t, out, 4)
	assert.Equal(t, 11.0, out[0].Price)
	assert.Equal(t, 13.0, out[1].Price)
	assert.Equal(t, 14.0, out[2].Price)
	assert.Equal(t, 15.0, out[3].Price)
}

func TestDedupListingsAllDuplicates(t *testing.T) {
	existing := map[string]struct{}{"scan\x00a": {}}
	out := dedupListings([]entity.Listing{newListing("scan", "a", 1), newListing("scan", "a", 2)}, existing)
	assert.Empty(t, out)
}

// setupTestDB starts a PostgreSQL container and applies the up migrations.
func setupTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	if testing.Short() {
		t.Skip("skipping postgres integration test in short mode")
	}

	ctx := context.Background()
	container, err := tcpostgres.Run(ctx, "postgres:15-alpine",
		tcpostgres.WithDatabase("testdb"),
		tcpostgres.WithUsername("test"),
		tcpostgres.WithPassword("test"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60*time.Second),
		),
	)
	if err != nil {
		t.Skipf("docker unavailable: %v", err)
	}
	t.Cleanup(func() {
		if err := container.Terminate(ctx); err != nil {
			t.Logf("failed to terminate container: %v", err)
		}
	})

	dsn, err := container.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	db, err := postgres.Open(dsn, postgres.Config{LogLevel: "silent"})
	require.NoError(t, err)

	migrationsDir := filepath.Join(findProjectRoot(t), "migrations")
	entries, err := os.ReadDir(migrationsDir)
	require.NoError(t, err)

	var files []string
	for _, entry := range entries {
		if strings.HasSuffix(entry.Name(), ".up.sql") {
			files = append(files, entry.Name())
		}
	}
	sort.Strings(files)
	for _, file := range files {
		sql, err := os.ReadFile(filepath.Join(migrationsDir, file))
		require.NoError(t, err)
		require.NoError(t, db.DB.Exec(string(sql)).Error, "failed to apply %s", file)
	}
	return db.DB
}

func findProjectRoot(t *testing.T) string {
	t.Helper()
	dir, err := os.Getwd()
	require.NoError(t, err)
	for {
		if _, err := os.Stat(filepath.Join(dir, "go.mod")); err == nil {
			return dir
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			t.Fatal("could not find project root (go.mod)")
		}
		dir = parent
	}
}

func TestListingRepositoryPostgres(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()
	repo := NewListingRepository(db)

	inserted, err := repo.InsertListings(ctx, []entity.Listing{newListing("scan", "x1", 20)})
	require.NoError(t, err)
	assert.Equal(t, 1, inserted)

	t.Run("duplicates in batch and store are skipped", func(t *testing.T) {
		inserted, err := repo.InsertListings(ctx, []entity.Listing{
			newListing("scan", "x1", 20),
			newListing("scan", "x2", 21),
			newListing("scan", "x2", 21),
		})
		require.NoError(t, err)
		assert.Equal(t, 1, inserted)

		inserted, err = repo.InsertListings(ctx, []entity.Listing{newListing("scan", "x1", 20), newListing("scan", "x2", 21)})
		require.NoError(t, err)
		assert.Equal(t, 0, inserted)
	})

	t.Run("insert if absent", func(t *testing.T) {
		l := newListing("monitor", "x1", 30)
		created, err := repo.InsertIfAbsent(ctx, &l)
		require.NoError(t, err)
		assert.True(t, created)
		assert.NotZero(t, l.ID)

		again := newListing("monitor", "x1", 30)
		created, err = repo.InsertIfAbsent(ctx, &again)
		require.NoError(t, err)
		assert.False(t, created)

		got, err := repo.GetByID(ctx, l.ID)
		require.NoError(t, err)
		assert.Equal(t, "monitor", got.Source)
	})

	t.Run("seller count excludes the listing itself", func(t *testing.T) {
		a := newListing("scan", "s-a", 5)
		a.SellerID = utils.ToPointer("seller-1")
		b := newListing("scan", "s-b", 6)
		b.SellerID = utils.ToPointer("seller-1")
		_, err := repo.InsertIfAbsent(ctx, &a)
		require.NoError(t, err)
		_, err = repo.InsertIfAbsent(ctx, &b)
		require.NoError(t, err)

		count, err := repo.CountSellerOpenListings(ctx, "scan", "seller-1", a.ID)
		require.NoError(t, err)
		assert.Equal(t, 1, count)

		count, err = repo.CountSellerOpenListings(ctx, "scan", "", 0)
		require.NoError(t, err)
		assert.Equal(t, 0, count)
	})

	_, err = repo.GetByID(ctx, 999999)
	assert.ErrorIs(t, err, ErrNotFound)

	open, err := repo.GetOpenListings(ctx, 10)
	require.NoError(t, err)
	assert.NotEmpty(t, open)
}
