package field

import (
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	apperrors "github.com/healthlog/healthlog/internal/errors"
	"github.com/healthlog/healthlog/internal/models"
)

func setupMockService(t *testing.T) (*Service, sqlmock.Sqlmock) {
	sqlDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { sqlDB.Close() })

	db, err := gorm.Open(postgres.New(postgres.Config{Conn: sqlDB}), &gorm.Config{})
	require.NoError(t, err)

	return NewService(db, zap.NewNop()), mock
}

func TestCreate_RejectsDuplicateName(t *testing.T) {
	svc, mock := setupMockService(t)

	mock.ExpectQuery(`SELECT count\(\*\) FROM "field_definitions" WHERE name = \$1`).
		WithArgs("weight").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1))

	_, err := svc.Create(&models.FieldDefinition{Name: "weight", DataType: models.DataTypeNumber})
	require.Error(t, err)

	dup, ok := err.(*apperrors.DuplicateNameError)
	require.True(t, ok)
	assert.Equal(t, "weight", dup.Name)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCreate_RejectsUnknownDataType(t *testing.T) {
	svc, mock := setupMockService(t)

	_, err := svc.Create(&models.FieldDefinition{Name: "weight", DataType: "DECIMAL"})
	require.Error(t, err)
	assert.IsType(t, &apperrors.ValidationError{}, err)

	// Rejected before any query runs.
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCreate_HonorsExplicitInactive(t *testing.T) {
	svc, mock := setupMockService(t)

	mock.ExpectQuery(`SELECT count\(\*\) FROM "field_definitions" WHERE name = \$1`).
		WithArgs("draft").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(0))

	// An explicit is_active=false must reach the insert instead of being
	// flipped back to the column default.
	mock.ExpectBegin()
	mock.ExpectQuery(`INSERT INTO "field_definitions" \("name","data_type","unit","is_required","options","is_active"`).
		WithArgs("draft", models.DataTypeText, "", false, nil, false, sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(7))
	mock.ExpectCommit()

	def, err := svc.Create(&models.FieldDefinition{
		Name:     "draft",
		DataType: models.DataTypeText,
		IsActive: false,
	})
	require.NoError(t, err)
	assert.False(t, def.IsActive)
	assert.Equal(t, 7, def.ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGetByID_NotFound(t *testing.T) {
	svc, mock := setupMockService(t)

	mock.ExpectQuery(`SELECT \* FROM "field_definitions" WHERE id = \$1`).
		WithArgs(42, 1).
		WillReturnRows(sqlmock.NewRows([]string{"id", "name"}))

	_, err := svc.GetByID(42)
	require.Error(t, err)
	assert.IsType(t, &apperrors.NotFoundError{}, err)
}

func TestSoftDelete_AlreadyInactiveIsNoOp(t *testing.T) {
	svc, mock := setupMockService(t)

	mock.ExpectQuery(`SELECT \* FROM "field_definitions" WHERE id = \$1`).
		WithArgs(7, 1).
		WillReturnRows(sqlmock.NewRows([]string{"id", "name", "data_type", "is_active"}).
			AddRow(7, "weight", models.DataTypeNumber, false))

	// No UPDATE is expected.
	require.NoError(t, svc.SoftDelete(7))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSoftDelete_DeactivatesActiveField(t *testing.T) {
	svc, mock := setupMockService(t)

	mock.ExpectQuery(`SELECT \* FROM "field_definitions" WHERE id = \$1`).
		WithArgs(7, 1).
		WillReturnRows(sqlmock.NewRows([]string{"id", "name", "data_type", "is_active"}).
			AddRow(7, "weight", models.DataTypeNumber, true))
	mock.ExpectBegin()
	mock.ExpectExec(`UPDATE "field_definitions" SET`).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	require.NoError(t, svc.SoftDelete(7))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestHardDelete_RequiresCascadeAcknowledgment(t *testing.T) {
	svc, mock := setupMockService(t)

	err := svc.HardDelete(7, false)
	require.Error(t, err)
	assert.IsType(t, &apperrors.ValidationError{}, err)

	// Rejected before touching the catalog.
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestHardDelete_DeletesWhenAcknowledged(t *testing.T) {
	svc, mock := setupMockService(t)

	mock.ExpectQuery(`SELECT \* FROM "field_definitions" WHERE id = \$1`).
		WithArgs(7, 1).
		WillReturnRows(sqlmock.NewRows([]string{"id", "name", "data_type", "is_active"}).
			AddRow(7, "weight", models.DataTypeNumber, true))
	mock.ExpectBegin()
	mock.ExpectExec(`DELETE FROM "field_definitions" WHERE`).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	require.NoError(t, svc.HardDelete(7, true))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestListActive_FiltersInactive(t *testing.T) {
	svc, mock := setupMockService(t)

	mock.ExpectQuery(`SELECT \* FROM "field_definitions" WHERE is_active = \$1 ORDER BY id ASC`).
		WithArgs(true).
		WillReturnRows(sqlmock.NewRows([]string{"id", "name", "data_type", "is_active"}).
			AddRow(1, "weight", models.DataTypeNumber, true).
			AddRow(2, "mood", models.DataTypeEnum, true))

	defs, err := svc.ListActive()
	require.NoError(t, err)
	require.Len(t, defs, 2)
	assert.Equal(t, "weight", defs[0].Name)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestListAll_EscapesSearchTerm(t *testing.T) {
	svc, mock := setupMockService(t)

	mock.ExpectQuery(`SELECT \* FROM "field_definitions" WHERE name LIKE \$1 ORDER BY id ASC`).
		WithArgs(`%50\%%`).
		WillReturnRows(sqlmock.NewRows([]string{"id", "name"}))

	_, err := svc.ListAll("50%")
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}
