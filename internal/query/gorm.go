package query

import (
	apperrors "github.com/healthlog/healthlog/internal/errors"
	"github.com/healthlog/healthlog/internal/security"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Expr interprets a compiled predicate tree into the ORM's native
// expression API. Identifier quoting is left to the dialect.
func Expr(c Clause) clause.Expression {
	switch v := c.(type) {
	case TrueClause:
		return clause.Expr{SQL: "1 = 1"}
	case Cond:
		col := clause.Column{Name: v.Column}
		switch v.Operator {
		case EQ:
			return clause.Eq{Column: col, Value: v.Value}
		case NE:
			return clause.Neq{Column: col, Value: v.Value}
		case GT:
			return clause.Gt{Column: col, Value: v.Value}
		case GTE:
			return clause.Gte{Column: col, Value: v.Value}
		case LT:
			return clause.Lt{Column: col, Value: v.Value}
		case LTE:
			return clause.Lte{Column: col, Value: v.Value}
		case LIKE:
			return clause.Like{Column: col, Value: v.Value}
		}
	case Binary:
		left := Expr(v.Left)
		right := Expr(v.Right)
		if v.Logic == Or {
			return clause.Or(left, right)
		}
		return clause.And(left, right)
	}
	// Compile rejects anything that would land here.
	return clause.Expr{SQL: "1 = 1"}
}

// Apply applies a Spec's joins and compiled predicate to a query.
func Apply(db *gorm.DB, s Spec) (*gorm.DB, error) {
	for _, j := range s.Joins {
		if j.Active {
			db = db.Joins(j.Relation)
		}
	}

	compiled, err := s.Compile()
	if err != nil {
		return nil, err
	}
	if _, ok := compiled.(TrueClause); !ok {
		db = db.Where(Expr(compiled))
	}
	return db, nil
}

// Search executes a Spec plus a mandatory PageRequest against the entity
// type T: joins first, then the accumulated predicate, then the composite
// sort, then offset/limit. Returns one page with total counts.
func Search[T any](db *gorm.DB, s Spec, pr *PageRequest) (*Page[T], error) {
	if err := Validate(pr); err != nil {
		return nil, err
	}

	var model T
	q, err := Apply(db.Model(&model), s)
	if err != nil {
		return nil, err
	}

	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, apperrors.NewInternalError(err)
	}

	for _, o := range pr.Sort {
		if err := security.ValidateIdentifier(o.Field); err != nil {
			return nil, apperrors.NewValidationError("sort", err.Error())
		}
		desc, err := o.Descending()
		if err != nil {
			return nil, err
		}
		q = q.Order(clause.OrderByColumn{Column: clause.Column{Name: o.Field}, Desc: desc})
	}

	var content []T
	if err := q.Offset(pr.Page * pr.Size).Limit(pr.Size).Find(&content).Error; err != nil {
		return nil, apperrors.NewInternalError(err)
	}

	return NewPage(content, total, *pr), nil
}
