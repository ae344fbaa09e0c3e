// Package field manages the catalog of trackable field definitions. The
// catalog is the single source of truth for what fields exist, their
// declared types, and their validation rules.
package field

import (
	"errors"

	apperrors "github.com/healthlog/healthlog/internal/errors"
	"github.com/healthlog/healthlog/internal/models"
	"github.com/healthlog/healthlog/internal/security"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// Service provides field catalog operations.
type Service struct {
	db  *gorm.DB
	log *zap.Logger
}

// NewService creates a field catalog service.
func NewService(db *gorm.DB, log *zap.Logger) *Service {
	return &Service{db: db, log: log}
}

// ListActive returns the active field definitions ascending by id. This
// listing drives both input-form rendering and required-field validation
// on the write path.
func (s *Service) ListActive() ([]models.FieldDefinition, error) {
	var defs []models.FieldDefinition
	if err := s.db.Where("is_active = ?", true).Order("id ASC").Find(&defs).Error; err != nil {
		return nil, apperrors.NewInternalError(err)
	}
	return defs, nil
}

// ListAll returns every field definition ascending by id, inactive ones
// included. An optional search term narrows by name substring.
func (s *Service) ListAll(search string) ([]models.FieldDefinition, error) {
	q := s.db.Order("id ASC")
	if search != "" {
		q = q.Where("name LIKE ?", "%"+security.EscapeLikePattern(search)+"%")
	}
	var defs []models.FieldDefinition
	if err := q.Find(&defs).Error; err != nil {
		return nil, apperrors.NewInternalError(err)
	}
	return defs, nil
}

// GetByID returns one field definition.
func (s *Service) GetByID(id int) (*models.FieldDefinition, error) {
	var def models.FieldDefinition
	if err := s.db.First(&def, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.NewNotFoundError("field definition")
		}
		return nil, apperrors.NewInternalError(err)
	}
	return &def, nil
}

// GetByName resolves a field definition by its logical key.
func (s *Service) GetByName(name string) (*models.FieldDefinition, error) {
	var def models.FieldDefinition
	if err := s.db.First(&def, "name = ?", name).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.NewNotFoundError("field definition")
		}
		return nil, apperrors.NewInternalError(err)
	}
	return &def, nil
}

// Create registers a new field definition. The name must be unique across
// the catalog. Callers decide IsActive; defaulting unset to active is the
// transport layer's job.
func (s *Service) Create(def *models.FieldDefinition) (*models.FieldDefinition, error) {
	if err := validateDataType(def.DataType); err != nil {
		return nil, err
	}

	exists, err := s.nameExists(def.Name, 0)
	if err != nil {
		return nil, err
	}
	if exists {
		return nil, apperrors.NewDuplicateNameError(def.Name)
	}

	def.ID = 0
	if err := s.db.Create(def).Error; err != nil {
		return nil, apperrors.NewInternalError(err)
	}
	s.log.Info("field definition created",
		zap.Int("field_id", def.ID), zap.String("name", def.Name))
	return def, nil
}

// Update replaces a field definition's attributes. A changed name is
// re-validated for uniqueness against all other definitions.
func (s *Service) Update(id int, def *models.FieldDefinition) (*models.FieldDefinition, error) {
	if err := validateDataType(def.DataType); err != nil {
		return nil, err
	}

	existing, err := s.GetByID(id)
	if err != nil {
		return nil, err
	}

	if existing.Name != def.Name {
		exists, err := s.nameExists(def.Name, id)
		if err != nil {
			return nil, err
		}
		if exists {
			return nil, apperrors.NewDuplicateNameError(def.Name)
		}
	}

	existing.Name = def.Name
	existing.DataType = def.DataType
	existing.Unit = def.Unit
	existing.IsRequired = def.IsRequired
	existing.Options = def.Options
	existing.IsActive = def.IsActive

	if err := s.db.Save(existing).Error; err != nil {
		return nil, apperrors.NewInternalError(err)
	}
	s.log.Info("field definition updated",
		zap.Int("field_id", existing.ID), zap.String("name", existing.Name))
	return existing, nil
}

// SoftDelete deactivates a field definition. Stored values remain and stay
// reportable by direct name lookup; the field just disappears from active
// listings. Safe to call twice.
func (s *Service) SoftDelete(id int) error {
	def, err := s.GetByID(id)
	if err != nil {
		return err
	}
	if !def.IsActive {
		return nil
	}
	if err := s.db.Model(def).Update("is_active", false).Error; err != nil {
		return apperrors.NewInternalError(err)
	}
	s.log.Info("field definition deactivated",
		zap.Int("field_id", def.ID), zap.String("name", def.Name))
	return nil
}

// HardDelete physically removes a field definition. The schema cascades
// the delete to every record value referencing it, so the caller must
// acknowledge the cascade explicitly.
func (s *Service) HardDelete(id int, acknowledgeCascade bool) error {
	if !acknowledgeCascade {
		return apperrors.NewValidationError("cascade",
			"hard delete removes all stored values for this field; cascade must be acknowledged")
	}
	def, err := s.GetByID(id)
	if err != nil {
		return err
	}
	if err := s.db.Delete(def).Error; err != nil {
		return apperrors.NewInternalError(err)
	}
	s.log.Info("field definition hard deleted", zap.Int("field_id", id))
	return nil
}

func (s *Service) nameExists(name string, excludeID int) (bool, error) {
	q := s.db.Model(&models.FieldDefinition{}).Where("name = ?", name)
	if excludeID != 0 {
		q = q.Where("id <> ?", excludeID)
	}
	var count int64
	if err := q.Count(&count).Error; err != nil {
		return false, apperrors.NewInternalError(err)
	}
	return count > 0, nil
}

func validateDataType(dataType string) error {
	switch dataType {
	case models.DataTypeNumber, models.DataTypeText, models.DataTypeEnum:
		return nil
	}
	return apperrors.NewValidationError("data_type", "unrecognized data type: "+dataType)
}
