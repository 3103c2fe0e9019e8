package repositories

import (
	"github.com/pkg/errors"
	"gorm.io/gorm"
)

var (
	// ErrNotFound is returned (wrapped) when a lookup matches nothing.
	ErrNotFound = errors.New("record not found")
	// ErrAlreadyExists is returned (wrapped) when a unique pair already exists.
	ErrAlreadyExists = errors.New("record already exists")
)

// wrapGorm maps gorm's sentinel errors onto the repository ones and attaches
// wrapMsg. A nil error stays nil.
func wrapGorm(err error, wrapMsg string) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, gorm.ErrRecordNotFound):
		return errors.Wrap(ErrNotFound, wrapMsg)
	case errors.Is(err, gorm.ErrDuplicatedKey):
		return errors.Wrap(ErrAlreadyExists, wrapMsg)
	default:
		return errors.Wrap(err, wrapMsg)
	}
}

// counterExpr increments column by delta without letting it drop below zero.
func counterExpr(column string, delta int) interface{} {
	return gorm.Expr("CASE WHEN "+column+" + ? < 0 THEN 0 ELSE "+column+" + ? END", delta, delta)
}
