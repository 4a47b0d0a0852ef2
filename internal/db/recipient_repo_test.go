package db

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"aurorawatch/internal/types"
)

type mockDBTX struct {
	mock.Mock
}

func (m *mockDBTX) Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error) {
	args := m.Called(ctx, sql, arguments)
	return args.Get(0).(pgconn.CommandTag), args.Error(1)
}

func (m *mockDBTX) Query(ctx context.Context, sql string, arguments ...any) (pgx.Rows, error) {
	args := m.Called(ctx, sql, arguments)
	if r := args.Get(0); r != nil {
		return r.(pgx.Rows), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *mockDBTX) QueryRow(ctx context.Context, sql string, arguments ...any) pgx.Row {
	args := m.Called(ctx, sql, arguments)
	return args.Get(0).(pgx.Row)
}

// mockRows serves canned recipient rows to ListByLocation.
type mockRows struct {
	data    [][]any
	idx     int
	closed  bool
	scanErr error
	errVal  error
}

func newMockRows(data [][]any) *mockRows {
	return &mockRows{data: data, idx: -1}
}

func (r *mockRows) Next() bool {
	if r.closed {
		return false
	}
	r.idx++
	return r.idx < len(r.data)
}

func (r *mockRows) Scan(dest ...any) error {
	if r.scanErr != nil {
		return r.scanErr
	}
	row := r.data[r.idx]
	for i, d := range dest {
		switch v := d.(type) {
		case *string:
			*v = row[i].(string)
		case **time.Time:
			if row[i] == nil {
				*v = nil
			} else {
				t := row[i].(time.Time)
				*v = &t
			}
		}
	}
	return nil
}

func (r *mockRows) Close()                                       { r.closed = true }
func (r *mockRows) Err() error                                   { return r.errVal }
func (r *mockRows) CommandTag() pgconn.CommandTag                { return pgconn.CommandTag{} }
func (r *mockRows) FieldDescriptions() []pgconn.FieldDescription { return nil }
func (r *mockRows) RawValues() [][]byte                          { return nil }
func (r *mockRows) Values() ([]any, error)                       { return nil, nil }
func (r *mockRows) Conn() *pgx.Conn                              { return nil }

func TestRecipientRepository_ListByLocation_Success(t *testing.T) {
	dbtx := new(mockDBTX)
	repo := NewRecipientRepository(dbtx)
	ctx := context.Background()

	lastRealtime := time.Date(2026, 3, 9, 23, 0, 0, 0, time.UTC)
	lastForecast := time.Date(2026, 3, 8, 0, 0, 0, 0, time.UTC)

	rows := newMockRows([][]any{
		{"rec_1", "aino@example.com", "Aino", "Windsor", lastRealtime, lastForecast},
		{"rec_2", "ben@example.com", "Ben", "Windsor", nil, nil},
	})
	dbtx.On("Query", ctx, mock.AnythingOfType("string"), []any{"Windsor"}).Return(rows, nil)

	recipients, err := repo.ListByLocation(ctx, "Windsor")
	require.NoError(t, err)
	require.Len(t, recipients, 2)

	assert.Equal(t, "rec_1", recipients[0].RowHandle)
	assert.Equal(t, "aino@example.com", recipients[0].Email)
	require.NotNil(t, recipients[0].LastRealtimeNotifiedAt)
	assert.Equal(t, lastRealtime, *recipients[0].LastRealtimeNotifiedAt)
	assert.Equal(t, "2026-03-08", recipients[0].LastForecastNotifiedDay)

	assert.Nil(t, recipients[1].LastRealtimeNotifiedAt)
	assert.Empty(t, recipients[1].LastForecastNotifiedDay)

	dbtx.AssertExpectations(t)
}

func TestRecipientRepository_ListByLocation_QueryError(t *testing.T) {
	dbtx := new(mockDBTX)
	repo := NewRecipientRepository(dbtx)
	ctx := context.Background()

	dbtx.On("Query", ctx, mock.AnythingOfType("string"), []any{"Windsor"}).
		Return(nil, errors.New("connection refused"))

	_, err := repo.ListByLocation(ctx, "Windsor")
	require.Error(t, err)

	var appErr *types.AppError
	require.True(t, errors.As(err, &appErr))
	assert.Equal(t, types.ErrCodeUpstreamDirectory, appErr.Code)

	dbtx.AssertExpectations(t)
}

func TestRecipientRepository_MarkRealtimeNotified_Success(t *testing.T) {
	dbtx := new(mockDBTX)
	repo := NewRecipientRepository(dbtx)
	ctx := context.Background()

	at := time.Date(2026, 3, 9, 23, 0, 0, 0, time.UTC)
	dbtx.On("Exec", ctx, mock.AnythingOfType("string"), []any{at, "rec_1"}).
		Return(pgconn.NewCommandTag("UPDATE 1"), nil)

	err := repo.MarkRealtimeNotified(ctx, "rec_1", at)
	require.NoError(t, err)
	dbtx.AssertExpectations(t)
}

func TestRecipientRepository_MarkRealtimeNotified_NotFound(t *testing.T) {
	dbtx := new(mockDBTX)
	repo := NewRecipientRepository(dbtx)
	ctx := context.Background()

	at := time.Date(2026, 3, 9, 23, 0, 0, 0, time.UTC)
	dbtx.On("Exec", ctx, mock.AnythingOfType("string"), []any{at, "rec_missing"}).
		Return(pgconn.NewCommandTag("UPDATE 0"), nil)

	err := repo.MarkRealtimeNotified(ctx, "rec_missing", at)
	require.Error(t, err)

	var appErr *types.AppError
	require.True(t, errors.As(err, &appErr))
	assert.Equal(t, types.ErrCodeUpstreamDirectory, appErr.Code)
	assert.True(t, errors.Is(err, pgx.ErrNoRows))

	dbtx.AssertExpectations(t)
}

func TestRecipientRepository_MarkForecastNotified_Success(t *testing.T) {
	dbtx := new(mockDBTX)
	repo := NewRecipientRepository(dbtx)
	ctx := context.Background()

	day := time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC)
	dbtx.On("Exec", ctx, mock.AnythingOfType("string"), []any{day, "rec_1"}).
		Return(pgconn.NewCommandTag("UPDATE 1"), nil)

	err := repo.MarkForecastNotified(ctx, "rec_1", "2026-03-10")
	require.NoError(t, err)
	dbtx.AssertExpectations(t)
}

func TestRecipientRepository_MarkForecastNotified_MalformedDay(t *testing.T) {
	dbtx := new(mockDBTX)
	repo := NewRecipientRepository(dbtx)

	err := repo.MarkForecastNotified(context.Background(), "rec_1", "10/03/2026")
	require.Error(t, err)

	var appErr *types.AppError
	require.True(t, errors.As(err, &appErr))
	assert.Equal(t, types.ErrCodeValidationMessage, appErr.Code)

	dbtx.AssertNotCalled(t, "Exec", mock.Anything, mock.Anything, mock.Anything)
}
