package record

import (
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	apperrors "github.com/healthlog/healthlog/internal/errors"
	"github.com/healthlog/healthlog/internal/models"
)

func testService() *Service {
	return NewService(nil, zap.NewNop())
}

func setupMockService(t *testing.T) (*Service, sqlmock.Sqlmock) {
	sqlDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { sqlDB.Close() })

	db, err := gorm.Open(postgres.New(postgres.Config{Conn: sqlDB}), &gorm.Config{})
	require.NoError(t, err)

	return NewService(db, zap.NewNop()), mock
}

func activeCatalog() map[string]models.FieldDefinition {
	return map[string]models.FieldDefinition{
		"weight": {ID: 1, Name: "weight", DataType: models.DataTypeNumber, IsRequired: true},
		"mood":   {ID: 2, Name: "mood", DataType: models.DataTypeEnum},
		"notes":  {ID: 3, Name: "notes", DataType: models.DataTypeText},
	}
}

func TestBuildValues_ResolvesFieldNames(t *testing.T) {
	svc := testService()

	values, err := svc.buildValues(10, activeCatalog(), map[string]string{
		"weight": "72.5",
		"mood":   "A",
	})
	require.NoError(t, err)
	require.Len(t, values, 2)

	byField := make(map[int]models.RecordValue)
	for _, v := range values {
		byField[v.FieldID] = v
	}
	assert.Equal(t, "72.5", byField[1].ValueText)
	assert.Equal(t, int64(10), byField[1].RecordID)
	assert.Equal(t, "A", byField[2].ValueText)
}

func TestBuildValues_SkipsUnknownFields(t *testing.T) {
	svc := testService()

	values, err := svc.buildValues(10, activeCatalog(), map[string]string{
		"weight":    "72.5",
		"retired":   "anything",
		"never_was": "x",
	})
	require.NoError(t, err)
	require.Len(t, values, 1)
	assert.Equal(t, 1, values[0].FieldID)
}

func TestBuildValues_EmptyRequiredFieldFailsSave(t *testing.T) {
	svc := testService()

	for _, empty := range []string{"", "   ", "\t"} {
		_, err := svc.buildValues(10, activeCatalog(), map[string]string{"weight": empty})
		require.Error(t, err, "value %q", empty)
		assert.IsType(t, &apperrors.ValidationError{}, err)
	}
}

func TestBuildValues_EmptyOptionalFieldIsStored(t *testing.T) {
	svc := testService()

	values, err := svc.buildValues(10, activeCatalog(), map[string]string{"notes": ""})
	require.NoError(t, err)
	require.Len(t, values, 1)
	assert.Equal(t, "", values[0].ValueText)
}

func TestBuildValues_CarriesFieldForFlattening(t *testing.T) {
	svc := testService()

	values, err := svc.buildValues(10, activeCatalog(), map[string]string{"mood": "B"})
	require.NoError(t, err)
	require.NotNil(t, values[0].Field)
	assert.Equal(t, "mood", values[0].Field.Name)
}

func TestFlatten_RoundTripsBuildValues(t *testing.T) {
	svc := testService()
	rec := &models.DailyRecord{
		ID:         10,
		UserID:     1,
		RecordDate: time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC),
	}

	submitted := map[string]string{"weight": "72.5", "mood": "A", "notes": "slept well"}
	values, err := svc.buildValues(rec.ID, activeCatalog(), submitted)
	require.NoError(t, err)

	flat := flatten(rec, values)
	assert.Equal(t, int64(10), flat.RecordID)
	assert.Equal(t, "2024-03-01", flat.RecordDate)
	assert.Equal(t, submitted, flat.FieldValues)
}

func TestFlatten_SkipsValuesWithoutFieldDefinition(t *testing.T) {
	rec := &models.DailyRecord{ID: 10, RecordDate: time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)}
	values := []models.RecordValue{
		{RecordID: 10, FieldID: 1, ValueText: "72.5", Field: &models.FieldDefinition{ID: 1, Name: "weight"}},
		{RecordID: 10, FieldID: 99, ValueText: "orphan"},
	}

	flat := flatten(rec, values)
	assert.Equal(t, map[string]string{"weight": "72.5"}, flat.FieldValues)
}

func TestFlatten_EmptyValues(t *testing.T) {
	rec := &models.DailyRecord{ID: 10, RecordDate: time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)}

	flat := flatten(rec, nil)
	assert.NotNil(t, flat.FieldValues)
	assert.Empty(t, flat.FieldValues)
}

// expectSaveRound queues the full statement sequence of one Save call
// against an existing record: user lookup, then inside one transaction the
// record lookup, the active-catalog load, the delete of the prior value
// set, and the batch insert of the new one.
func expectSaveRound(mock sqlmock.Sqlmock, date, created time.Time, fieldID int, value string, insertedID int64) {
	mock.ExpectQuery(`SELECT \* FROM "users" WHERE id = \$1`).
		WithArgs(int64(1), 1).
		WillReturnRows(sqlmock.NewRows([]string{"id", "email", "is_active"}).
			AddRow(int64(1), "u@example.com", true))

	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT \* FROM "daily_records" WHERE user_id = \$1 AND record_date = \$2`).
		WithArgs(int64(1), date, 1).
		WillReturnRows(sqlmock.NewRows([]string{"id", "user_id", "record_date", "created_at"}).
			AddRow(int64(10), int64(1), date, created))
	mock.ExpectQuery(`SELECT \* FROM "field_definitions" WHERE is_active = \$1`).
		WithArgs(true).
		WillReturnRows(sqlmock.NewRows([]string{"id", "name", "data_type", "is_required", "is_active"}).
			AddRow(1, "weight", models.DataTypeNumber, true, true).
			AddRow(2, "mood", models.DataTypeEnum, false, true))
	mock.ExpectExec(`DELETE FROM "record_values" WHERE record_id = \$1`).
		WithArgs(int64(10)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectQuery(`INSERT INTO "record_values" \("record_id","field_id","value_text"\)`).
		WithArgs(int64(10), fieldID, value).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(insertedID))
	mock.ExpectCommit()
}

func TestSave_FullReplaceReusesRecord(t *testing.T) {
	svc, mock := setupMockService(t)

	date := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	created := time.Date(2024, 3, 1, 8, 0, 0, 0, time.UTC)

	expectSaveRound(mock, date, created, 1, "70", 100)
	first, err := svc.Save(1, date, map[string]string{"weight": "70"})
	require.NoError(t, err)

	expectSaveRound(mock, date, created, 2, "A", 101)
	second, err := svc.Save(1, date, map[string]string{"mood": "A"})
	require.NoError(t, err)

	// Same (user, date) resolves to the same record both times; the
	// second save's value set fully replaces the first's.
	assert.Equal(t, int64(10), first.RecordID)
	assert.Equal(t, first.RecordID, second.RecordID)
	assert.Equal(t, map[string]string{"weight": "70"}, first.FieldValues)
	assert.Equal(t, map[string]string{"mood": "A"}, second.FieldValues)
	assert.Equal(t, created, second.CreatedAt)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSave_EmptyRequiredFieldWritesNothing(t *testing.T) {
	svc, mock := setupMockService(t)

	date := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	created := time.Date(2024, 3, 1, 8, 0, 0, 0, time.UTC)

	mock.ExpectQuery(`SELECT \* FROM "users" WHERE id = \$1`).
		WithArgs(int64(1), 1).
		WillReturnRows(sqlmock.NewRows([]string{"id", "email", "is_active"}).
			AddRow(int64(1), "u@example.com", true))

	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT \* FROM "daily_records" WHERE user_id = \$1 AND record_date = \$2`).
		WithArgs(int64(1), date, 1).
		WillReturnRows(sqlmock.NewRows([]string{"id", "user_id", "record_date", "created_at"}).
			AddRow(int64(10), int64(1), date, created))
	mock.ExpectQuery(`SELECT \* FROM "field_definitions" WHERE is_active = \$1`).
		WithArgs(true).
		WillReturnRows(sqlmock.NewRows([]string{"id", "name", "data_type", "is_required", "is_active"}).
			AddRow(1, "weight", models.DataTypeNumber, true, true))
	// The validation failure rolls the transaction back before any
	// delete or insert touches record_values.
	mock.ExpectRollback()

	_, err := svc.Save(1, date, map[string]string{"weight": "   "})
	var vErr *apperrors.ValidationError
	require.ErrorAs(t, err, &vErr)
	assert.Equal(t, "weight", vErr.Field)

	assert.NoError(t, mock.ExpectationsWereMet())
}
