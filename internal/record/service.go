// Package record translates between the flat field-name to value view that
// callers submit and the narrow attribute-value rows the storage layer
// keeps per daily record.
package record

import (
	"errors"
	"strings"
	"time"

	apperrors "github.com/healthlog/healthlog/internal/errors"
	"github.com/healthlog/healthlog/internal/models"
	"github.com/healthlog/healthlog/internal/query"
	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// FlatRecord is the field-name to value view of a DailyRecord,
// reconstructed from its stored value rows.
type FlatRecord struct {
	RecordID    int64             `json:"record_id"`
	RecordDate  string            `json:"record_date"`
	CreatedAt   time.Time         `json:"created_at"`
	FieldValues map[string]string `json:"field_values"`
}

// Service provides the record store operations.
type Service struct {
	db  *gorm.DB
	log *zap.Logger
}

// NewService creates a record store service.
func NewService(db *gorm.DB, log *zap.Logger) *Service {
	return &Service{db: db, log: log}
}

// Save creates or fully replaces the record for (user, date). The prior
// value set is deleted and re-inserted inside one transaction: omitting a
// field from the submission clears its stored value, and no reader ever
// observes a partially-cleared set. Returns the flattened view rebuilt
// from the just-inserted rows.
func (s *Service) Save(userID int64, date time.Time, fieldValues map[string]string) (*FlatRecord, error) {
	var user models.User
	if err := s.db.First(&user, "id = ?", userID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.NewNotFoundError("user")
		}
		return nil, apperrors.NewInternalError(err)
	}

	var flat *FlatRecord
	err := s.db.Transaction(func(tx *gorm.DB) error {
		rec, err := s.findOrCreateRecord(tx, userID, date)
		if err != nil {
			return err
		}

		active, err := s.activeByName(tx)
		if err != nil {
			return err
		}

		values, err := s.buildValues(rec.ID, active, fieldValues)
		if err != nil {
			return err
		}

		if err := tx.Where("record_id = ?", rec.ID).Delete(&models.RecordValue{}).Error; err != nil {
			return apperrors.NewInternalError(err)
		}
		if len(values) > 0 {
			if err := tx.Omit(clause.Associations).Create(&values).Error; err != nil {
				return storeError(err, "record value")
			}
		}

		flat = flatten(rec, values)
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.log.Info("record saved",
		zap.Int64("user_id", userID),
		zap.String("record_date", models.FormatDate(date)),
		zap.Int64("record_id", flat.RecordID))
	return flat, nil
}

// GetByDate returns the flattened record for (user, date), or nil when no
// record exists. The value rows are loaded explicitly, joined to their
// field definitions, in a second step.
func (s *Service) GetByDate(userID int64, date time.Time) (*FlatRecord, error) {
	var rec models.DailyRecord
	err := s.db.Where("user_id = ? AND record_date = ?", userID, date).First(&rec).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, apperrors.NewInternalError(err)
	}

	var values []models.RecordValue
	if err := s.db.Preload("Field").Where("record_id = ?", rec.ID).Find(&values).Error; err != nil {
		return nil, apperrors.NewInternalError(err)
	}
	return flatten(&rec, values), nil
}

// ListAllByUser returns every record of a user flattened, descending by
// date.
func (s *Service) ListAllByUser(userID int64) ([]FlatRecord, error) {
	var recs []models.DailyRecord
	err := s.db.Preload("Values.Field").
		Where("user_id = ?", userID).
		Order("record_date DESC").
		Find(&recs).Error
	if err != nil {
		return nil, apperrors.NewInternalError(err)
	}

	out := make([]FlatRecord, 0, len(recs))
	for i := range recs {
		out = append(out, *flatten(&recs[i], recs[i].Values))
	}
	return out, nil
}

// Delete removes the record for (user, date); the storage layer cascades
// the delete to its value rows.
func (s *Service) Delete(userID int64, date time.Time) error {
	var rec models.DailyRecord
	err := s.db.Where("user_id = ? AND record_date = ?", userID, date).First(&rec).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return apperrors.NewNotFoundError("record")
		}
		return apperrors.NewInternalError(err)
	}
	if err := s.db.Delete(&rec).Error; err != nil {
		return apperrors.NewInternalError(err)
	}
	s.log.Info("record deleted",
		zap.Int64("user_id", userID),
		zap.String("record_date", models.FormatDate(date)),
		zap.Int64("record_id", rec.ID))
	return nil
}

// Search runs a caller-supplied specification over the user's records,
// with the user scope AND-refined onto it. Paging is mandatory; the query
// is never executed without it.
func (s *Service) Search(userID int64, spec query.Spec, pr *query.PageRequest) (*query.Page[FlatRecord], error) {
	if err := query.Validate(pr); err != nil {
		return nil, err
	}

	scoped := spec.And("user_id", query.EQ, userID)
	page, err := query.Search[models.DailyRecord](s.db.Preload("Values.Field"), scoped, pr)
	if err != nil {
		return nil, err
	}

	return query.MapPage(page, func(rec models.DailyRecord) FlatRecord {
		return *flatten(&rec, rec.Values)
	}), nil
}

func (s *Service) findOrCreateRecord(tx *gorm.DB, userID int64, date time.Time) (*models.DailyRecord, error) {
	var rec models.DailyRecord
	err := tx.Where("user_id = ? AND record_date = ?", userID, date).First(&rec).Error
	if err == nil {
		return &rec, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apperrors.NewInternalError(err)
	}

	rec = models.DailyRecord{UserID: userID, RecordDate: date, CreatedAt: time.Now()}
	if err := tx.Create(&rec).Error; err != nil {
		return nil, storeError(err, "record")
	}
	return &rec, nil
}

func (s *Service) activeByName(tx *gorm.DB) (map[string]models.FieldDefinition, error) {
	var defs []models.FieldDefinition
	if err := tx.Where("is_active = ?", true).Find(&defs).Error; err != nil {
		return nil, apperrors.NewInternalError(err)
	}
	byName := make(map[string]models.FieldDefinition, len(defs))
	for _, def := range defs {
		byName[def.Name] = def
	}
	return byName, nil
}

// buildValues resolves a submitted field map against the active catalog.
// Unknown field names are dropped with a log note, not rejected. An empty
// value for a required field fails the whole save.
func (s *Service) buildValues(recordID int64, active map[string]models.FieldDefinition, fieldValues map[string]string) ([]models.RecordValue, error) {
	values := make([]models.RecordValue, 0, len(fieldValues))
	for name, value := range fieldValues {
		def, ok := active[name]
		if !ok {
			s.log.Warn("no active field definition, skipping", zap.String("field_name", name))
			continue
		}
		if def.IsRequired && strings.TrimSpace(value) == "" {
			return nil, apperrors.NewValidationError(name, "required field empty: "+name)
		}
		fd := def
		values = append(values, models.RecordValue{
			RecordID:  recordID,
			FieldID:   def.ID,
			ValueText: value,
			Field:     &fd,
		})
	}
	return values, nil
}

func flatten(rec *models.DailyRecord, values []models.RecordValue) *FlatRecord {
	fieldValues := make(map[string]string, len(values))
	for i := range values {
		if values[i].Field == nil {
			continue
		}
		fieldValues[values[i].Field.Name] = values[i].ValueText
	}
	return &FlatRecord{
		RecordID:    rec.ID,
		RecordDate:  models.FormatDate(rec.RecordDate),
		CreatedAt:   rec.CreatedAt,
		FieldValues: fieldValues,
	}
}

func storeError(err error, resource string) error {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return apperrors.NewConflictError(resource)
	}
	return apperrors.NewInternalError(err)
}
