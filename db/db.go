package db

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/Shreyansh0843/rfp-system/models"
)

var (
	ErrNotFound          = errors.New("not found")
	ErrDuplicateEmail    = errors.New("a vendor with this email already exists")
	ErrDuplicateProposal = errors.New("vendor has already submitted a proposal for this RFP")
	ErrVendorInUse       = errors.New("vendor has proposals and cannot be deleted")
	ErrStatusConflict    = errors.New("RFP status was changed by another request")
)

// имена ограничений из миграций
const (
	constraintVendorEmail  = "vendors_email_lower_idx"
	constraintProposalPair = "proposals_rfp_id_vendor_id_key"
)

type Storage struct {
	db *sqlx.DB
}

func NewStorage(db *sqlx.DB) *Storage {
	return &Storage{db: db}
}

func (s *Storage) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// withTx выполняет fn в транзакции, при ошибке откатывает
func (s *Storage) withTx(ctx context.Context, fn func(tx *sqlx.Tx) error) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}
	return tx.Commit()
}

// translateError переводит ошибки Postgres в ошибки домена
func translateError(err error) error {
	var pqErr *pq.Error
	if !errors.As(err, &pqErr) {
		return err
	}
	if pqErr.Code == "23505" {
		switch pqErr.Constraint {
		case constraintVendorEmail:
			return ErrDuplicateEmail
		case constraintProposalPair:
			return ErrDuplicateProposal
		}
	}
	return err
}

func isForeignKeyViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == "23503"
}

// where собирает условия с позиционными параметрами Postgres
type where struct {
	clauses []string
	args    []any
}

// add принимает условие с одним %d (или %[1]d) под номер параметра
func (w *where) add(clause string, arg any) {
	w.args = append(w.args, arg)
	w.clauses = append(w.clauses, fmt.Sprintf(clause, len(w.args)))
}

func (w *where) String() string {
	if len(w.clauses) == 0 {
		return ""
	}
	return " WHERE " + strings.Join(w.clauses, " AND ")
}

// next номер следующего параметра, для LIMIT/OFFSET
func (w *where) next() int {
	return len(w.args) + 1
}

// orderBy допускает только колонки из белого списка
func orderBy(sort models.Sort, allowed map[string]string, fallback string) string {
	col, ok := allowed[sort.Field]
	if !ok {
		return " ORDER BY " + fallback
	}
	dir := "ASC"
	if sort.Desc {
		dir = "DESC"
	}
	return fmt.Sprintf(" ORDER BY %s %s", col, dir)
}

func idStrings(ids []uuid.UUID) pq.StringArray {
	out := make(pq.StringArray, len(ids))
	for i, id := range ids {
		out[i] = id.String()
	}
	return out
}

func countGroups(rows []groupCount) map[string]int {
	out := make(map[string]int, len(rows))
	for _, r := range rows {
		out[r.Key] = r.Count
	}
	return out
}

type groupCount struct {
	Key   string `db:"key"`
	Count int    `db:"count"`
}
