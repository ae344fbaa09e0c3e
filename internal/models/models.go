// Package models contains the persistent entities of the health log.
// The daily-record schema is attribute-value shaped: the set of trackable
// fields is data (FieldDefinition), not columns.
package models

import (
	"time"

	"github.com/lib/pq"
)

// DataType values for FieldDefinition.
const (
	DataTypeNumber = "NUMBER"
	DataTypeText   = "TEXT"
	DataTypeEnum   = "ENUM"
)

// Role values for User.
const (
	RoleUser  = "USER"
	RoleAdmin = "ADMIN"
)

// User represents a registered account.
type User struct {
	ID                int64      `json:"id" gorm:"primaryKey"`
	Email             string     `json:"email" gorm:"uniqueIndex;not null;size:255"`
	PasswordHash      string     `json:"-" gorm:"size:255"`
	Role              string     `json:"role" gorm:"not null;size:20;default:'USER'"`
	IsActive          bool       `json:"is_active" gorm:"not null;default:true"`
	VerificationToken *string    `json:"-" gorm:"size:255;index"`
	EmailVerifiedAt   *time.Time `json:"email_verified_at"`
	CreatedAt         time.Time  `json:"created_at"`

	// Relations
	Records []DailyRecord `json:"records,omitempty" gorm:"foreignKey:UserID"`
}

// Verified reports whether the account completed email verification.
func (u *User) Verified() bool {
	return u.EmailVerifiedAt != nil
}

// FieldDefinition is an administrator-configured attribute usable across
// all users' daily records. Name is the logical key the write and report
// paths resolve against.
type FieldDefinition struct {
	ID         int            `json:"id" gorm:"primaryKey"`
	Name       string         `json:"name" gorm:"uniqueIndex;not null;size:100"`
	DataType   string         `json:"data_type" gorm:"not null;size:20"`
	Unit       string         `json:"unit" gorm:"size:50"`
	IsRequired bool           `json:"is_required" gorm:"not null"`
	Options    pq.StringArray `json:"options,omitempty" gorm:"type:text[]"`
	// No default tag: an explicit false on create must reach the insert
	// instead of being dropped for the column default.
	IsActive bool `json:"is_active" gorm:"not null"`
	CreatedAt  time.Time      `json:"created_at"`
	UpdatedAt  time.Time      `json:"updated_at"`
}

// DailyRecord is one user's logical record for one calendar date.
// At most one row exists per (user, date).
type DailyRecord struct {
	ID         int64     `json:"id" gorm:"primaryKey"`
	UserID     int64     `json:"user_id" gorm:"not null;uniqueIndex:uk_user_record_date,priority:1"`
	RecordDate time.Time `json:"record_date" gorm:"type:date;not null;uniqueIndex:uk_user_record_date,priority:2"`
	CreatedAt  time.Time `json:"created_at" gorm:"not null;<-:create"`

	// Relations
	User   *User         `json:"user,omitempty" gorm:"foreignKey:UserID"`
	Values []RecordValue `json:"values,omitempty" gorm:"foreignKey:RecordID;constraint:OnDelete:CASCADE"`
}

// RecordValue is one field's stored value within a DailyRecord. All values
// are stored as text regardless of the field's declared data type; report
// logic parses at read time. At most one row exists per (record, field).
type RecordValue struct {
	ID        int64  `json:"id" gorm:"primaryKey"`
	RecordID  int64  `json:"record_id" gorm:"not null;uniqueIndex:uk_record_field,priority:1"`
	FieldID   int    `json:"field_id" gorm:"not null;uniqueIndex:uk_record_field,priority:2;index"`
	ValueText string `json:"value_text" gorm:"type:text;not null"`

	// Relations
	Record *DailyRecord     `json:"-" gorm:"foreignKey:RecordID"`
	Field  *FieldDefinition `json:"field,omitempty" gorm:"foreignKey:FieldID;constraint:OnDelete:CASCADE"`
}

// DateLayout is the wire format for calendar dates.
const DateLayout = "2006-01-02"

// FormatDate renders a record date in the wire format.
func FormatDate(t time.Time) string {
	return t.Format(DateLayout)
}
