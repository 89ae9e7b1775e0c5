package repository

import (
	"errors"

	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const pgUniqueViolation = "23505"

// NewPostgresSet wires every repository to db.
func NewPostgresSet(db *gorm.DB) Set {
	return Set{
		Orders:   NewOrderRepository(db),
		Tables:   NewTableRepository(db),
		Caja:     NewCajaRepository(db),
		Cashback: NewCashbackRepository(db),
		Products: NewProductRepository(db),
	}
}

// mapErr translates driver errors into the package sentinels.
func mapErr(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ErrNotFound
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation {
		return ErrDuplicate
	}
	return err
}

func forUpdate() clause.Locking {
	return clause.Locking{Strength: "UPDATE"}
}
