package repository

import (
	"errors"
	"fmt"

	"github.com/go-sql-driver/mysql"
	"github.com/mattn/go-sqlite3"
	"gorm.io/gorm"
)

// Kind classifies a store failure.
type Kind int

const (
	KindIO Kind = iota + 1
	KindConstraint
)

func (k Kind) String() string {
	switch k {
	case KindIO:
		return "io"
	case KindConstraint:
		return "constraint"
	}
	return "unknown"
}

// Sentinels matched by StoreError.Is.
var (
	ErrIO         = errors.New("store io failure")
	ErrConstraint = errors.New("store constraint violation")
)

// ErrUnsupportedDriver is returned by Open for drivers other than sqlite and mysql.
var ErrUnsupportedDriver = errors.New("unsupported database driver")

// StoreError wraps every engine failure.
type StoreError struct {
	Op   string
	Kind Kind
	Err  error
}

func (e *StoreError) Error() string {
	return fmt.Sprintf("store %s: %s: %v", e.Op, e.Kind, e.Err)
}

func (e *StoreError) Unwrap() error { return e.Err }

func (e *StoreError) Is(target error) bool {
	switch e.Kind {
	case KindIO:
		return target == ErrIO
	case KindConstraint:
		return target == ErrConstraint
	}
	return false
}

// MySQL server error numbers that mean a constraint rejected the write.
var mysqlConstraintErrors = map[uint16]bool{
	1048: true, // column cannot be null
	1062: true, // duplicate entry
	1451: true, // foreign key parent
	1452: true, // foreign key child
	3819: true, // check constraint
}

func classify(err error) Kind {
	if errors.Is(err, gorm.ErrDuplicatedKey) ||
		errors.Is(err, gorm.ErrForeignKeyViolated) ||
		errors.Is(err, gorm.ErrCheckConstraintViolated) {
		return KindConstraint
	}
	var se sqlite3.Error
	if errors.As(err, &se) && se.Code == sqlite3.ErrConstraint {
		return KindConstraint
	}
	var me *mysql.MySQLError
	if errors.As(err, &me) && mysqlConstraintErrors[me.Number] {
		return KindConstraint
	}
	return KindIO
}
