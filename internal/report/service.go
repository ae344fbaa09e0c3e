// Package report produces typed analytical views over a date range of a
// user's stored values, branching by the target field's declared data
// type. Every operation is a single stateless read-compute-return pass.
package report

import (
	"errors"
	"sort"
	"time"
	"unicode/utf8"

	apperrors "github.com/healthlog/healthlog/internal/errors"
	"github.com/healthlog/healthlog/internal/models"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// Store is the data access the aggregator needs: field resolution, the
// user's records in a date range, and per-record value lookup.
type Store interface {
	FieldByName(name string) (*models.FieldDefinition, error)
	RecordsInRange(userID int64, start, end time.Time) ([]models.DailyRecord, error)
	ValueFor(fieldID int, recordID int64) (string, bool, error)
}

// Service computes the three report families.
type Service struct {
	store Store
	log   *zap.Logger
}

// NewService creates a report service backed by the given store.
func NewService(store Store, log *zap.Logger) *Service {
	return &Service{store: store, log: log}
}

// NewGormService creates a report service reading through GORM.
func NewGormService(db *gorm.DB, log *zap.Logger) *Service {
	return NewService(&gormStore{db: db}, log)
}

// NumberReport returns the trend and statistics of a NUMBER field over
// [start, end], both bounds inclusive.
func (s *Service) NumberReport(userID int64, fieldName string, start, end time.Time) (*NumberReport, error) {
	trend, err := s.Trend(userID, fieldName, start, end)
	if err != nil {
		return nil, err
	}
	return &NumberReport{Trend: trend, Statistics: numberStatistics(trend)}, nil
}

// Trend returns (date, value) pairs for the dates that have a present
// value, ascending by date.
func (s *Service) Trend(userID int64, fieldName string, start, end time.Time) ([]TrendPoint, error) {
	def, records, err := s.resolve(userID, fieldName, models.DataTypeNumber, start, end)
	if err != nil {
		return nil, err
	}

	points := make([]TrendPoint, 0, len(records))
	for _, rec := range records {
		value, ok, err := s.store.ValueFor(def.ID, rec.ID)
		if err != nil {
			return nil, err
		}
		if !ok {
			continue
		}
		points = append(points, TrendPoint{Date: models.FormatDate(rec.RecordDate), Value: value})
	}
	sortByDate(points)
	return points, nil
}

// TrendWithNulls returns a point for every recorded date in range,
// ascending, with an empty-string placeholder where no value is present.
func (s *Service) TrendWithNulls(userID int64, fieldName string, start, end time.Time) ([]TrendPoint, error) {
	def, records, err := s.resolve(userID, fieldName, models.DataTypeNumber, start, end)
	if err != nil {
		return nil, err
	}

	points := make([]TrendPoint, 0, len(records))
	for _, rec := range records {
		value, _, err := s.store.ValueFor(def.ID, rec.ID)
		if err != nil {
			return nil, err
		}
		points = append(points, TrendPoint{Date: models.FormatDate(rec.RecordDate), Value: value})
	}
	sortByDate(points)
	return points, nil
}

// EnumDistribution returns per-value occurrence counts and percentages
// for an ENUM field over the range.
func (s *Service) EnumDistribution(userID int64, fieldName string, start, end time.Time) (*EnumDistribution, error) {
	def, records, err := s.resolve(userID, fieldName, models.DataTypeEnum, start, end)
	if err != nil {
		return nil, err
	}

	values := make([]string, 0, len(records))
	for _, rec := range records {
		value, ok, err := s.store.ValueFor(def.ID, rec.ID)
		if err != nil {
			return nil, err
		}
		if ok {
			values = append(values, value)
		}
	}
	dist := enumDistribution(values)
	return &dist, nil
}

// EnumTrend returns per-date occurrence counts per value for an ENUM
// field. Each date holds at most one value per field in this model, but
// the counts are computed generically and do not assume that. Options are
// collected first-seen walking from the latest date backward.
func (s *Service) EnumTrend(userID int64, fieldName string, start, end time.Time) (*EnumTrend, error) {
	def, records, err := s.resolve(userID, fieldName, models.DataTypeEnum, start, end)
	if err != nil {
		return nil, err
	}

	sorted := make([]models.DailyRecord, len(records))
	copy(sorted, records)
	sort.Slice(sorted, func(i, j int) bool {
		return sorted[i].RecordDate.After(sorted[j].RecordDate)
	})

	trend := make(map[string]map[string]int64)
	options := make([]string, 0)
	seen := make(map[string]bool)

	for _, rec := range sorted {
		value, ok, err := s.store.ValueFor(def.ID, rec.ID)
		if err != nil {
			return nil, err
		}
		if !ok || value == "" {
			continue
		}
		date := models.FormatDate(rec.RecordDate)
		if trend[date] == nil {
			trend[date] = make(map[string]int64)
		}
		trend[date][value]++
		if !seen[value] {
			seen[value] = true
			options = append(options, value)
		}
	}

	return &EnumTrend{Trend: trend, Options: options}, nil
}

// TextAnalysis returns keyword frequencies, the per-date raw text
// timeline, and character length statistics for a TEXT field.
func (s *Service) TextAnalysis(userID int64, fieldName string, start, end time.Time) (*TextAnalysis, error) {
	def, records, err := s.resolve(userID, fieldName, models.DataTypeText, start, end)
	if err != nil {
		return nil, err
	}

	freq := make(map[string]int64)
	timeline := make(map[string]string)
	lengths := make([]int, 0, len(records))
	var total int64

	for _, rec := range records {
		value, ok, err := s.store.ValueFor(def.ID, rec.ID)
		if err != nil {
			return nil, err
		}
		if !ok || value == "" {
			continue
		}
		total++
		timeline[models.FormatDate(rec.RecordDate)] = value
		lengths = append(lengths, utf8.RuneCountInString(value))
		countKeywords(freq, value)
	}

	analysis := &TextAnalysis{
		KeywordFrequency: freq,
		TotalCount:       total,
		Timeline:         timeline,
	}
	if len(lengths) > 0 {
		sum := 0
		analysis.MaxLength = lengths[0]
		analysis.MinLength = lengths[0]
		for _, l := range lengths {
			sum += l
			if l > analysis.MaxLength {
				analysis.MaxLength = l
			}
			if l < analysis.MinLength {
				analysis.MinLength = l
			}
		}
		analysis.AverageLength = float64(sum) / float64(len(lengths))
	}
	return analysis, nil
}

// resolve looks up the field, checks its declared type against the report
// family, and fetches the records in range.
func (s *Service) resolve(userID int64, fieldName, wantType string, start, end time.Time) (*models.FieldDefinition, []models.DailyRecord, error) {
	def, err := s.store.FieldByName(fieldName)
	if err != nil {
		return nil, nil, err
	}
	if def == nil {
		return nil, nil, apperrors.NewNotFoundError("field definition")
	}
	if def.DataType != wantType {
		return nil, nil, apperrors.NewTypeMismatchError(fieldName, wantType, def.DataType)
	}

	records, err := s.store.RecordsInRange(userID, start, end)
	if err != nil {
		return nil, nil, err
	}
	return def, records, nil
}

func sortByDate(points []TrendPoint) {
	sort.Slice(points, func(i, j int) bool { return points[i].Date < points[j].Date })
}

// gormStore reads through GORM with explicit, narrow queries.
type gormStore struct {
	db *gorm.DB
}

func (g *gormStore) FieldByName(name string) (*models.FieldDefinition, error) {
	var def models.FieldDefinition
	if err := g.db.First(&def, "name = ?", name).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, apperrors.NewInternalError(err)
	}
	return &def, nil
}

func (g *gormStore) RecordsInRange(userID int64, start, end time.Time) ([]models.DailyRecord, error) {
	var records []models.DailyRecord
	err := g.db.
		Where("user_id = ? AND record_date >= ? AND record_date <= ?", userID, start, end).
		Order("record_date ASC").
		Find(&records).Error
	if err != nil {
		return nil, apperrors.NewInternalError(err)
	}
	return records, nil
}

func (g *gormStore) ValueFor(fieldID int, recordID int64) (string, bool, error) {
	var value models.RecordValue
	err := g.db.Where("field_id = ? AND record_id = ?", fieldID, recordID).First(&value).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return "", false, nil
		}
		return "", false, apperrors.NewInternalError(err)
	}
	return value.ValueText, true, nil
}
