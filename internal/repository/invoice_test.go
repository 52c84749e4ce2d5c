package repository

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/fakturo/invoicestack/internal/database"
	"github.com/fakturo/invoicestack/internal/enum"
	"github.com/fakturo/invoicestack/internal/models"
)

func setupTestDB(t *testing.T) *gorm.DB {
	db, err := database.NewConnection(&database.DatabaseConfig{DBPath: ":memory:"})
	require.NoError(t, err)
	require.NoError(t, MigrateDB(db))
	return db
}

func testInvoice(messageID string) *models.Invoice {
	return &models.Invoice{
		MessageID:  messageID,
		Sender:     "billing@acme.com",
		Subject:    "Invoice #123",
		ReceivedAt: time.Date(2025, 7, 14, 9, 30, 0, 0, time.UTC),
		Status:     enum.InvoiceStatusExtracted,
		Fields: models.JSONMap{
			models.FieldAmountRaw:     "$1,250.00",
			models.FieldAmount:        1250.00,
			models.FieldCurrency:      "USD",
			models.FieldInvoiceNumber: "123",
		},
	}
}

func TestInvoiceRepository_Create(t *testing.T) {
	// Arrange
	db := setupTestDB(t)
	repo := NewInvoiceRepository(db)
	ctx := context.Background()

	// Act
	id, created, err := repo.Create(ctx, testInvoice("msg-1@acme.com"))

	// Assert
	assert.NoError(t, err)
	assert.True(t, created)
	assert.Contains(t, id, "invoice_")

	stored, err := repo.GetByMessageID(ctx, "msg-1@acme.com")
	require.NoError(t, err)
	require.NotNil(t, stored)
	assert.Equal(t, id, stored.ID)
	assert.Equal(t, enum.InvoiceStatusStored, stored.Status)
	assert.Equal(t, "billing@acme.com", stored.Sender)
	assert.Equal(t, "Invoice #123", stored.Subject)
	assert.Equal(t, "$1,250.00", stored.AmountRaw())
	assert.Equal(t, "USD", stored.Currency())
	assert.Equal(t, "123", stored.InvoiceNumber())

	amount, ok := stored.Amount()
	assert.True(t, ok)
	assert.Equal(t, 1250.00, amount)
}

func TestInvoiceRepository_Create_DuplicateMessageID(t *testing.T) {
	// Arrange
	db := setupTestDB(t)
	repo := NewInvoiceRepository(db)
	ctx := context.Background()

	firstId, created, err := repo.Create(ctx, testInvoice("msg-1@acme.com"))
	require.NoError(t, err)
	require.True(t, created)

	// Act
	secondId, created, err := repo.Create(ctx, testInvoice("msg-1@acme.com"))

	// Assert
	assert.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, firstId, secondId)

	count, err := repo.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)
}

func TestInvoiceRepository_Create_TrimsAngleBrackets(t *testing.T) {
	// Arrange
	db := setupTestDB(t)
	repo := NewInvoiceRepository(db)
	ctx := context.Background()

	firstId, created, err := repo.Create(ctx, testInvoice("<msg-1@acme.com>"))
	require.NoError(t, err)
	require.True(t, created)

	// Act - the same message without brackets is the same row
	secondId, created, err := repo.Create(ctx, testInvoice("msg-1@acme.com"))

	// Assert
	assert.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, firstId, secondId)
}

func TestInvoiceRepository_Create_InvalidInput(t *testing.T) {
	db := setupTestDB(t)
	repo := NewInvoiceRepository(db)
	ctx := context.Background()

	_, _, err := repo.Create(ctx, nil)
	assert.ErrorIs(t, err, ErrInvalidInput)

	_, _, err = repo.Create(ctx, testInvoice(""))
	assert.ErrorIs(t, err, ErrInvalidInput)
}

func TestInvoiceRepository_Create_Concurrent(t *testing.T) {
	// Arrange
	db := setupTestDB(t)
	repo := NewInvoiceRepository(db)
	ctx := context.Background()

	var createdCount int32
	var wg sync.WaitGroup

	// Act - replay the same message from several goroutines
	for i := 0; i < 5; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, created, err := repo.Create(ctx, testInvoice("msg-race@acme.com"))
			assert.NoError(t, err)
			if created {
				atomic.AddInt32(&createdCount, 1)
			}
		}()
	}
	wg.Wait()

	// Assert - exactly one insert wins
	assert.Equal(t, int32(1), atomic.LoadInt32(&createdCount))

	count, err := repo.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)
}

func TestInvoiceRepository_GetByID(t *testing.T) {
	db := setupTestDB(t)
	repo := NewInvoiceRepository(db)
	ctx := context.Background()

	id, _, err := repo.Create(ctx, testInvoice("msg-1@acme.com"))
	require.NoError(t, err)

	stored, err := repo.GetByID(ctx, id)
	require.NoError(t, err)
	require.NotNil(t, stored)
	assert.Equal(t, "msg-1@acme.com", stored.MessageID)

	missing, err := repo.GetByID(ctx, "invoice_does_not_exist")
	assert.NoError(t, err)
	assert.Nil(t, missing)
}

func TestInvoiceRepository_UpdateStatus(t *testing.T) {
	// Arrange
	db := setupTestDB(t)
	repo := NewInvoiceRepository(db)
	ctx := context.Background()

	id, _, err := repo.Create(ctx, testInvoice("msg-1@acme.com"))
	require.NoError(t, err)

	// Act
	err = repo.UpdateStatus(ctx, id, enum.InvoiceStatusNotifyFailed)

	// Assert
	assert.NoError(t, err)

	stored, err := repo.GetByID(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, enum.InvoiceStatusNotifyFailed, stored.Status)
}

func TestInvoiceRepository_UpdateStatus_Missing(t *testing.T) {
	db := setupTestDB(t)
	repo := NewInvoiceRepository(db)
	ctx := context.Background()

	err := repo.UpdateStatus(ctx, "invoice_does_not_exist", enum.InvoiceStatusNotifyFailed)
	assert.ErrorIs(t, err, ErrInvoiceNotFound)

	err = repo.UpdateStatus(ctx, "", enum.InvoiceStatusNotifyFailed)
	assert.ErrorIs(t, err, ErrInvalidInput)
}

func TestInvoiceRepository_Count(t *testing.T) {
	db := setupTestDB(t)
	repo := NewInvoiceRepository(db)
	ctx := context.Background()

	count, err := repo.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(0), count)

	for i := 0; i < 3; i++ {
		_, _, err = repo.Create(ctx, testInvoice(fmt.Sprintf("msg-%d@acme.com", i)))
		require.NoError(t, err)
	}

	count, err = repo.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(3), count)
}
