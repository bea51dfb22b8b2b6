package audit

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/obinnaeze/pharmapos-backend/pkg/db/models"
	"github.com/obinnaeze/pharmapos-backend/pkg/enums"
	pkgerrors "github.com/obinnaeze/pharmapos-backend/pkg/errors"
	"github.com/obinnaeze/pharmapos-backend/pkg/pagination"
)

func setupAuditTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	dsn := "file:audit_" + uuid.NewString() + "?mode=memory&cache=shared"
	conn, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, conn.AutoMigrate(&models.AuditRecord{}))
	return conn
}

func seedTrail(t *testing.T, repo Repository, batchID uuid.UUID, n int) []models.AuditRecord {
	t.Helper()

	base := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	records := make([]models.AuditRecord, 0, n)
	for i := 0; i < n; i++ {
		record := models.AuditRecord{
			ID:               uuid.New(),
			BatchID:          batchID,
			PreviousQuantity: 100 - i,
			NewQuantity:      100 - i - 1,
			ChangeKind:       enums.AuditChangeKindAllocation,
			ActorUserID:      uuid.New(),
			Note:             fmt.Sprintf("pick %d", i),
			CreatedAt:        base.Add(time.Duration(i) * time.Minute),
		}
		require.NoError(t, repo.Append(context.Background(), &record))
		records = append(records, record)
	}
	return records
}

func TestBatchTrailPagesNewestFirst(t *testing.T) {
	t.Parallel()

	conn := setupAuditTestDB(t)
	repo := NewRepository(conn)
	svc, err := NewService(repo)
	require.NoError(t, err)

	batchID := uuid.New()
	seeded := seedTrail(t, repo, batchID, 5)

	page, err := svc.BatchTrail(context.Background(), batchID, pagination.Params{Limit: 2})
	require.NoError(t, err)
	require.Len(t, page.Records, 2)
	assert.Equal(t, seeded[4].ID, page.Records[0].ID)
	assert.Equal(t, seeded[3].ID, page.Records[1].ID)
	require.NotEmpty(t, page.NextCursor)

	page, err = svc.BatchTrail(context.Background(), batchID, pagination.Params{Limit: 2, Cursor: page.NextCursor})
	require.NoError(t, err)
	require.Len(t, page.Records, 2)
	assert.Equal(t, seeded[2].ID, page.Records[0].ID)
	assert.Equal(t, seeded[1].ID, page.Records[1].ID)
	require.NotEmpty(t, page.NextCursor)

	page, err = svc.BatchTrail(context.Background(), batchID, pagination.Params{Limit: 2, Cursor: page.NextCursor})
	require.NoError(t, err)
	require.Len(t, page.Records, 1)
	assert.Equal(t, seeded[0].ID, page.Records[0].ID)
	assert.Empty(t, page.NextCursor)
}

func TestBatchTrailPagesThroughSharedTimestamps(t *testing.T) {
	t.Parallel()

	conn := setupAuditTestDB(t)
	repo := NewRepository(conn)
	svc, err := NewService(repo)
	require.NoError(t, err)

	// Records written in the same transaction carry the same created_at, so
	// a page boundary can land in the middle of a timestamp group.
	batchID := uuid.New()
	stamp := time.Date(2026, 3, 4, 16, 30, 0, 0, time.UTC)
	want := make(map[uuid.UUID]bool, 5)
	for i := 0; i < 5; i++ {
		record := models.AuditRecord{
			ID:          uuid.New(),
			BatchID:     batchID,
			ChangeKind:  enums.AuditChangeKindAllocation,
			ActorUserID: uuid.New(),
			CreatedAt:   stamp,
		}
		require.NoError(t, repo.Append(context.Background(), &record))
		want[record.ID] = true
	}

	seen := make(map[uuid.UUID]bool, 5)
	cursor := ""
	for pages := 0; pages < 4; pages++ {
		page, err := svc.BatchTrail(context.Background(), batchID, pagination.Params{Limit: 2, Cursor: cursor})
		require.NoError(t, err)
		for _, record := range page.Records {
			assert.False(t, seen[record.ID], "record %s returned twice", record.ID)
			seen[record.ID] = true
		}
		if page.NextCursor == "" {
			break
		}
		cursor = page.NextCursor
	}
	assert.Equal(t, want, seen, "every record must appear exactly once across pages")
}

func TestBatchTrailRejectsGarbageCursor(t *testing.T) {
	t.Parallel()

	conn := setupAuditTestDB(t)
	svc, err := NewService(NewRepository(conn))
	require.NoError(t, err)

	_, err = svc.BatchTrail(context.Background(), uuid.New(), pagination.Params{Cursor: "!!not-base64!!"})
	require.Error(t, err)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))
}

func TestReferenceTrailGroupsMovements(t *testing.T) {
	t.Parallel()

	conn := setupAuditTestDB(t)
	repo := NewRepository(conn)
	svc, err := NewService(repo)
	require.NoError(t, err)

	transferID := uuid.New()
	outBatch, inBatch := uuid.New(), uuid.New()

	out := models.AuditRecord{
		ID:          uuid.New(),
		BatchID:     outBatch,
		ChangeKind:  enums.AuditChangeKindTransferOut,
		ReferenceID: &transferID,
		ActorUserID: uuid.New(),
		CreatedAt:   time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC),
	}
	in := models.AuditRecord{
		ID:          uuid.New(),
		BatchID:     inBatch,
		ChangeKind:  enums.AuditChangeKindTransferIn,
		ReferenceID: &transferID,
		ActorUserID: uuid.New(),
		CreatedAt:   time.Date(2026, 3, 2, 11, 0, 0, 0, time.UTC),
	}
	unrelated := models.AuditRecord{
		ID:          uuid.New(),
		BatchID:     outBatch,
		ChangeKind:  enums.AuditChangeKindReceipt,
		ActorUserID: uuid.New(),
		CreatedAt:   time.Date(2026, 3, 2, 12, 0, 0, 0, time.UTC),
	}
	for _, record := range []*models.AuditRecord{&out, &in, &unrelated} {
		require.NoError(t, repo.Append(context.Background(), record))
	}

	records, err := svc.ReferenceTrail(context.Background(), transferID)
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, out.ID, records[0].ID)
	assert.Equal(t, in.ID, records[1].ID)
}

func TestListByKindFilters(t *testing.T) {
	t.Parallel()

	conn := setupAuditTestDB(t)
	repo := NewRepository(conn)

	batchID := uuid.New()
	seedTrail(t, repo, batchID, 3)
	writeoff := models.AuditRecord{
		ID:          uuid.New(),
		BatchID:     batchID,
		ChangeKind:  enums.AuditChangeKindWriteoff,
		ActorUserID: uuid.New(),
		CreatedAt:   time.Date(2026, 3, 5, 8, 0, 0, 0, time.UTC),
	}
	require.NoError(t, repo.Append(context.Background(), &writeoff))

	records, err := repo.ListByKind(context.Background(), batchID, enums.AuditChangeKindWriteoff)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, writeoff.ID, records[0].ID)
}
