package audit

import (
	"context"
	"errors"
	"io"
	"path/filepath"
	"testing"
	"time"

	"fieldbooking/internal/booking"
	"fieldbooking/internal/config"
	"fieldbooking/internal/database"
	"fieldbooking/internal/history"
	"fieldbooking/internal/models"
	"fieldbooking/shared/access"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

func TestGenerateFilename(t *testing.T) {
	assert.Equal(t, "Januari_2025.xlsx", GenerateFilename(time.Date(2025, 1, 31, 23, 0, 0, 0, time.UTC)))
	assert.Equal(t, "Desember_2024.xlsx", GenerateFilename(time.Date(2024, 12, 1, 0, 0, 0, 0, time.UTC)))

	from, to := MonthBounds(time.Date(2025, 2, 14, 10, 0, 0, 0, time.UTC))
	assert.Equal(t, time.Date(2025, 2, 1, 0, 0, 0, 0, time.UTC), from)
	assert.Equal(t, time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC), to)
}

func TestExportMonthWritesWorkbook(t *testing.T) {
	ctx := context.Background()
	logger := zerolog.New(io.Discard)
	dir := t.TempDir()

	db, err := database.NewDB(filepath.Join(dir, "audit.db"), &logger)
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	require.NoError(t, db.SyncFieldsFromConfig(ctx, []config.FieldConfig{
		{ID: 1, Name: "F1", OpenTime: "06:00", CloseTime: "24:00"},
	}))

	now := func() time.Time { return time.Date(2025, 6, 10, 9, 0, 0, 0, time.UTC) }
	svc := booking.NewService(db, history.NewEmitter(nil, &logger), nil, booking.Config{Now: now}, &logger)
	for _, window := range [][2]string{{"10:00", "11:00"}, {"11:00", "12:00"}} {
		_, err := svc.RequestTransition(ctx, booking.Request{
			Action: models.ActionCreate,
			Actor:  booking.Actor{UserID: 42, Role: access.RoleCustomer},
			New:    &booking.NewBooking{FieldID: 1, Date: "2025-06-15", StartTime: window[0], EndTime: window[1], BaseAmount: 75000},
		})
		require.NoError(t, err)
	}

	exportDir := filepath.Join(dir, "exports")
	audit := NewService(Config{ExportDir: exportDir, Now: now}, db, nil, &logger)

	path, err := audit.ExportMonth(ctx, time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(exportDir, "Juni_2025.xlsx"), path)

	f, err := excelize.OpenFile(path)
	require.NoError(t, err)
	defer f.Close()
	assert.Equal(t, database.AuditTableNames, f.GetSheetList())

	rows, err := f.GetRows("bookings")
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Equal(t, "id", rows[0][0])
	assert.Contains(t, rows[1], "2025-06-15")

	transitions, err := f.GetRows("booking_transitions")
	require.NoError(t, err)
	assert.Len(t, transitions, 3)

	// Another month has headers only.
	path, err = audit.ExportMonth(ctx, time.Date(2025, 5, 20, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	may, err := excelize.OpenFile(path)
	require.NoError(t, err)
	defer may.Close()
	rows, err = may.GetRows("bookings")
	require.NoError(t, err)
	assert.Len(t, rows, 1)

	// Export never removes data.
	left, _, err := db.GetTableData(ctx, "bookings", time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC), time.Date(2025, 7, 1, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	assert.Len(t, left, 2)
}

type mockExporter struct {
	mock.Mock
}

func (m *mockExporter) GetTableNames(ctx context.Context) ([]string, error) {
	args := m.Called(ctx)
	names, _ := args.Get(0).([]string)
	return names, args.Error(1)
}

func (m *mockExporter) GetTableData(ctx context.Context, table string, from, to time.Time) ([]map[string]interface{}, []string, error) {
	args := m.Called(ctx, table, from, to)
	rows, _ := args.Get(0).([]map[string]interface{})
	cols, _ := args.Get(1).([]string)
	return rows, cols, args.Error(2)
}

func TestExportMonthUsesLocationBounds(t *testing.T) {
	wib := time.FixedZone("WIB", 7*60*60)
	exporter := &mockExporter{}
	exporter.On("GetTableNames", mock.Anything).Return([]string{"bookings"}, nil)
	exporter.On("GetTableData", mock.Anything, "bookings",
		time.Date(2025, 3, 1, 0, 0, 0, 0, wib), time.Date(2025, 4, 1, 0, 0, 0, 0, wib),
	).Return([]map[string]interface{}{{"id": int64(1), "note": []byte("ok"), "at": nil}}, []string{"id", "note", "at"}, nil)

	logger := zerolog.New(io.Discard)
	audit := NewService(Config{ExportDir: t.TempDir(), Location: wib}, exporter, nil, &logger)

	path, err := audit.ExportMonth(context.Background(), time.Date(2025, 3, 15, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	assert.Equal(t, "Maret_2025.xlsx", filepath.Base(path))
	exporter.AssertExpectations(t)
}

func TestExportMonthFailsOnReadError(t *testing.T) {
	exporter := &mockExporter{}
	exporter.On("GetTableNames", mock.Anything).Return([]string{"bookings"}, nil)
	exporter.On("GetTableData", mock.Anything, "bookings", mock.Anything, mock.Anything).
		Return(nil, nil, errors.New("database is locked"))

	logger := zerolog.New(io.Discard)
	audit := NewService(Config{ExportDir: t.TempDir()}, exporter, nil, &logger)

	_, err := audit.ExportMonth(context.Background(), time.Now())
	assert.ErrorContains(t, err, "database is locked")
}
