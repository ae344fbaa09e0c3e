// Package query implements a declarative, engine-agnostic query
// specification: join, where, order and page clauses composed into an
// executable filtered/sorted/paged query over any entity type.
package query

import (
	"strings"

	apperrors "github.com/healthlog/healthlog/internal/errors"
	"github.com/healthlog/healthlog/internal/security"
)

// Operator is a comparison operator of a where clause.
type Operator string

const (
	EQ   Operator = "EQ"
	NE   Operator = "NE"
	GT   Operator = "GT"
	GTE  Operator = "GTE"
	LT   Operator = "LT"
	LTE  Operator = "LTE"
	LIKE Operator = "LIKE"
)

func (o Operator) valid() bool {
	switch o {
	case EQ, NE, GT, GTE, LT, LTE, LIKE:
		return true
	}
	return false
}

// Logic determines how a where clause merges with everything accumulated
// before it.
type Logic string

const (
	And Logic = "AND"
	Or  Logic = "OR"
)

// Join names a relation to be joined before predicates apply. An unknown
// relation name is a programmer error and surfaces from the storage engine.
type Join struct {
	Active   bool   `json:"active"`
	Relation string `json:"relation"`
}

// Where is one atomic filter clause. Clauses are combined strictly
// left-associatively; there is no grouping.
type Where struct {
	Active   bool        `json:"active"`
	Column   string      `json:"column"`
	Operator Operator    `json:"operator"`
	Value    interface{} `json:"value"`
	Logic    Logic       `json:"combine_with"`
}

// Spec is an immutable, serializable description of a query. The zero
// value matches everything.
type Spec struct {
	Joins  []Join  `json:"joins,omitempty"`
	Wheres []Where `json:"wheres,omitempty"`
}

// And returns a new Spec with an additional predicate AND-combined onto
// this one. The receiver is not modified.
func (s Spec) And(column string, op Operator, value interface{}) Spec {
	return s.refined(Where{Active: true, Column: column, Operator: op, Value: value, Logic: And})
}

// Or returns a new Spec with an additional predicate OR-combined onto
// this one. The receiver is not modified.
func (s Spec) Or(column string, op Operator, value interface{}) Spec {
	return s.refined(Where{Active: true, Column: column, Operator: op, Value: value, Logic: Or})
}

func (s Spec) refined(w Where) Spec {
	joins := make([]Join, len(s.Joins))
	copy(joins, s.Joins)
	wheres := make([]Where, 0, len(s.Wheres)+1)
	wheres = append(wheres, s.Wheres...)
	wheres = append(wheres, w)
	return Spec{Joins: joins, Wheres: wheres}
}

// Contains builds a substring-match predicate with the search term escaped
// so it matches literally.
func Contains(column, term string) Where {
	return Where{
		Active:   true,
		Column:   column,
		Operator: LIKE,
		Value:    "%" + security.EscapeLikePattern(term) + "%",
		Logic:    And,
	}
}

// Clause is the compiled predicate tree. It is a tagged variant:
// TrueClause, Cond, or Binary.
type Clause interface {
	clause()
}

// TrueClause is the always-true accumulator seed.
type TrueClause struct{}

// Cond is an atomic column/operator/value predicate.
type Cond struct {
	Column   string
	Operator Operator
	Value    interface{}
}

// Binary combines two sub-clauses with AND or OR.
type Binary struct {
	Logic Logic
	Left  Clause
	Right Clause
}

func (TrueClause) clause() {}
func (Cond) clause()       {}
func (Binary) clause()     {}

// Compile folds the active where clauses left to right into a predicate
// tree, starting from an always-true accumulator. Clause i's Logic decides
// how clause i merges with everything before it. Unrecognized operators,
// logic tags, or unsafe column names fail with a ValidationError.
func (s Spec) Compile() (Clause, error) {
	var acc Clause = TrueClause{}
	for _, w := range s.Wheres {
		if !w.Active {
			continue
		}
		if !w.Operator.valid() {
			return nil, apperrors.NewValidationError("operator", "unrecognized operator: "+string(w.Operator))
		}
		if err := security.ValidateIdentifier(w.Column); err != nil {
			return nil, apperrors.NewValidationError("column", err.Error())
		}
		logic := w.Logic
		if logic == "" {
			logic = And
		}
		if logic != And && logic != Or {
			return nil, apperrors.NewValidationError("combine_with", "unrecognized combinator: "+string(w.Logic))
		}

		cond := Cond{Column: w.Column, Operator: w.Operator, Value: w.Value}
		if _, ok := acc.(TrueClause); ok && logic == And {
			// true AND p is just p; true OR p stays true and is kept as-is.
			acc = cond
			continue
		}
		acc = Binary{Logic: logic, Left: acc, Right: cond}
	}
	return acc, nil
}

// Order is one component of a composite sort key.
type Order struct {
	Field     string `json:"field"`
	Direction string `json:"direction"`
}

// Descending reports whether the order direction is descending. An
// unrecognized direction fails with a ValidationError.
func (o Order) Descending() (bool, error) {
	switch strings.ToLower(o.Direction) {
	case "", "asc":
		return false, nil
	case "desc":
		return true, nil
	}
	return false, apperrors.NewValidationError("direction", "unrecognized sort direction: "+o.Direction)
}

// PageRequest describes mandatory paging plus an ordered composite sort.
// Page numbers are 0-based.
type PageRequest struct {
	Page int     `json:"page"`
	Size int     `json:"size"`
	Sort []Order `json:"sort,omitempty"`
}

// Validate rejects absent or unusable page requests. Paging is mandatory
// for search queries; there is no return-everything mode.
func Validate(pr *PageRequest) error {
	if pr == nil {
		return apperrors.NewValidationError("page", "page request is required")
	}
	if pr.Page < 0 {
		return apperrors.NewValidationError("page", "page number must not be negative")
	}
	if pr.Size < 1 {
		return apperrors.NewValidationError("size", "page size must be positive")
	}
	return nil
}

// Page is one page of search results.
type Page[T any] struct {
	Content          []T   `json:"content"`
	TotalElements    int64 `json:"total_elements"`
	TotalPages       int   `json:"total_pages"`
	Number           int   `json:"number"`
	Size             int   `json:"size"`
	First            bool  `json:"first"`
	Last             bool  `json:"last"`
	NumberOfElements int   `json:"number_of_elements"`
}

// NewPage assembles a Page from fetched content and the total match count.
func NewPage[T any](content []T, total int64, pr PageRequest) *Page[T] {
	totalPages := int(total) / pr.Size
	if int(total)%pr.Size > 0 {
		totalPages++
	}
	return &Page[T]{
		Content:          content,
		TotalElements:    total,
		TotalPages:       totalPages,
		Number:           pr.Page,
		Size:             pr.Size,
		First:            pr.Page == 0,
		Last:             pr.Page >= totalPages-1,
		NumberOfElements: len(content),
	}
}

// MapPage converts the content of a page, keeping the paging metadata.
func MapPage[T, U any](p *Page[T], f func(T) U) *Page[U] {
	content := make([]U, 0, len(p.Content))
	for _, item := range p.Content {
		content = append(content, f(item))
	}
	return &Page[U]{
		Content:          content,
		TotalElements:    p.TotalElements,
		TotalPages:       p.TotalPages,
		Number:           p.Number,
		Size:             p.Size,
		First:            p.First,
		Last:             p.Last,
		NumberOfElements: len(content),
	}
}
