package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/Shreyansh0843/rfp-system/models"
)

const vendorColumns = `id, name, email, company, phone, address, category, status, rating, notes, tags, created_at, updated_at`

var vendorSortColumns = map[string]string{
	"name":      "name",
	"company":   "company",
	"email":     "email",
	"category":  "category",
	"status":    "status",
	"rating":    "rating",
	"createdAt": "created_at",
	"updatedAt": "updated_at",
}

func vendorWhere(f models.VendorFilter) *where {
	w := &where{}
	if f.Search != "" {
		w.add(`(search_vector @@ plainto_tsquery('simple', $%[1]d)
			OR name ILIKE '%%' || $%[1]d || '%%'
			OR company ILIKE '%%' || $%[1]d || '%%'
			OR email ILIKE '%%' || $%[1]d || '%%')`, f.Search)
	}
	if f.Category != "" {
		w.add("category = $%d", f.Category)
	}
	if f.Status != "" {
		w.add("status = $%d", f.Status)
	}
	return w
}

func (s *Storage) ListVendors(ctx context.Context, f models.VendorFilter, page models.Page) ([]models.Vendor, int, error) {
	w := vendorWhere(f)

	var total int
	if err := s.db.GetContext(ctx, &total, "SELECT COUNT(*) FROM vendors"+w.String(), w.args...); err != nil {
		return nil, 0, err
	}

	query := "SELECT " + vendorColumns + " FROM vendors" + w.String() +
		orderBy(f.Sort, vendorSortColumns, "created_at DESC") +
		fmt.Sprintf(" LIMIT $%d OFFSET $%d", w.next(), w.next()+1)
	args := append(w.args, page.Limit, page.Offset())

	vendors := []models.Vendor{}
	if err := s.db.SelectContext(ctx, &vendors, query, args...); err != nil {
		return nil, 0, err
	}
	return vendors, total, nil
}

func (s *Storage) GetVendor(ctx context.Context, id uuid.UUID) (*models.Vendor, error) {
	v := &models.Vendor{}
	err := s.db.GetContext(ctx, v, "SELECT "+vendorColumns+" FROM vendors WHERE id=$1", id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	return v, err
}

// GetActiveVendors возвращает только активных поставщиков из списка
func (s *Storage) GetActiveVendors(ctx context.Context, ids []uuid.UUID) ([]models.Vendor, error) {
	vendors := []models.Vendor{}
	if len(ids) == 0 {
		return vendors, nil
	}
	query := "SELECT " + vendorColumns + " FROM vendors WHERE id = ANY($1::uuid[]) AND status = $2 ORDER BY name"
	err := s.db.SelectContext(ctx, &vendors, query, idStrings(ids), models.VendorActive)
	return vendors, err
}

func (s *Storage) CreateVendor(ctx context.Context, v *models.Vendor) error {
	if v.ID == uuid.Nil {
		v.ID = uuid.New()
	}
	query := `
        INSERT INTO vendors
            (id, name, email, company, phone, address, category, status, rating, notes, tags)
        VALUES
            ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
        RETURNING created_at, updated_at`
	err := s.db.QueryRowContext(ctx, query,
		v.ID, v.Name, v.Email, v.Company, v.Phone, v.Address, v.Category, v.Status, v.Rating, v.Notes, v.Tags).
		Scan(&v.CreatedAt, &v.UpdatedAt)
	return translateError(err)
}

func (s *Storage) UpdateVendor(ctx context.Context, v *models.Vendor) error {
	query := `
        UPDATE vendors
        SET name=$1, email=$2, company=$3, phone=$4, address=$5, category=$6,
            status=$7, rating=$8, notes=$9, tags=$10, updated_at=NOW()
        WHERE id=$11
        RETURNING updated_at`
	err := s.db.QueryRowContext(ctx, query,
		v.Name, v.Email, v.Company, v.Phone, v.Address, v.Category, v.Status, v.Rating, v.Notes, v.Tags, v.ID).
		Scan(&v.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return ErrNotFound
	}
	return translateError(err)
}

// DeleteVendor удаляет поставщика вместе с записями в рассылках RFP.
// Если у поставщика есть предложения, удаление запрещено.
func (s *Storage) DeleteVendor(ctx context.Context, id uuid.UUID) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM vendors WHERE id=$1`, id)
	if err != nil {
		if isForeignKeyViolation(err) {
			return ErrVendorInUse
		}
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *Storage) VendorStats(ctx context.Context) (*models.VendorStats, error) {
	stats := &models.VendorStats{}
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*), COUNT(*) FILTER (WHERE status = $1) FROM vendors`, models.VendorActive).
		Scan(&stats.Total, &stats.Active)
	if err != nil {
		return nil, err
	}
	stats.Inactive = stats.Total - stats.Active

	var groups []groupCount
	err = s.db.SelectContext(ctx, &groups,
		`SELECT category AS key, COUNT(*) AS count FROM vendors GROUP BY category`)
	if err != nil {
		return nil, err
	}
	stats.ByCategory = countGroups(groups)
	return stats, nil
}
