package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/Shreyansh0843/rfp-system/models"
)

const rfpColumns = `r.id, r.title, r.description, r.category, r.budget, r.deadline, r.status,
    r.requirements, r.evaluation_criteria, r.attachments, r.ai_generated_content,
    r.created_by, r.tags, r.created_at, r.updated_at,
    (SELECT COUNT(*) FROM proposals p WHERE p.rfp_id = r.id) AS proposal_count`

var rfpSortColumns = map[string]string{
	"title":     "r.title",
	"category":  "r.category",
	"status":    "r.status",
	"deadline":  "r.deadline",
	"createdAt": "r.created_at",
	"updatedAt": "r.updated_at",
}

func rfpWhere(f models.RFPFilter) *where {
	w := &where{}
	if f.Search != "" {
		w.add(`(r.search_vector @@ plainto_tsquery('simple', $%[1]d) OR r.title ILIKE '%%' || $%[1]d || '%%')`, f.Search)
	}
	if f.Status != "" {
		w.add("r.status = $%d", f.Status)
	}
	if f.Category != "" {
		w.add("r.category = $%d", f.Category)
	}
	return w
}

func (s *Storage) ListRFPs(ctx context.Context, f models.RFPFilter, page models.Page) ([]models.RFP, int, error) {
	w := rfpWhere(f)

	var total int
	if err := s.db.GetContext(ctx, &total, "SELECT COUNT(*) FROM rfps r"+w.String(), w.args...); err != nil {
		return nil, 0, err
	}

	query := "SELECT " + rfpColumns + " FROM rfps r" + w.String() +
		orderBy(f.Sort, rfpSortColumns, "r.created_at DESC") +
		fmt.Sprintf(" LIMIT $%d OFFSET $%d", w.next(), w.next()+1)
	args := append(w.args, page.Limit, page.Offset())

	rfps := []models.RFP{}
	if err := s.db.SelectContext(ctx, &rfps, query, args...); err != nil {
		return nil, 0, err
	}
	if err := s.attachRosters(ctx, rfps); err != nil {
		return nil, 0, err
	}
	return rfps, total, nil
}

func (s *Storage) GetRFP(ctx context.Context, id uuid.UUID) (*models.RFP, error) {
	r := models.RFP{}
	err := s.db.GetContext(ctx, &r, "SELECT "+rfpColumns+" FROM rfps r WHERE r.id=$1", id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	rfps := []models.RFP{r}
	if err := s.attachRosters(ctx, rfps); err != nil {
		return nil, err
	}
	return &rfps[0], nil
}

// attachRosters подгружает приглашённых поставщиков одним запросом
func (s *Storage) attachRosters(ctx context.Context, rfps []models.RFP) error {
	if len(rfps) == 0 {
		return nil
	}
	ids := make([]uuid.UUID, len(rfps))
	for i := range rfps {
		ids[i] = rfps[i].ID
		rfps[i].Vendors = []models.RosterEntry{}
	}
	query := `
        SELECT rv.rfp_id, rv.vendor_id, rv.sent_at, rv.viewed_at, rv.status,
               v.id AS "vendor.id", v.name AS "vendor.name", v.email AS "vendor.email",
               v.company AS "vendor.company", v.category AS "vendor.category"
        FROM rfp_vendors rv
        JOIN vendors v ON v.id = rv.vendor_id
        WHERE rv.rfp_id = ANY($1::uuid[])
        ORDER BY rv.created_at`
	var entries []models.RosterEntry
	if err := s.db.SelectContext(ctx, &entries, query, idStrings(ids)); err != nil {
		return err
	}
	byRFP := make(map[uuid.UUID]int, len(rfps))
	for i := range rfps {
		byRFP[rfps[i].ID] = i
	}
	for _, e := range entries {
		i := byRFP[e.RFPID]
		rfps[i].Vendors = append(rfps[i].Vendors, e)
	}
	return nil
}

func (s *Storage) CreateRFP(ctx context.Context, r *models.RFP) error {
	if r.ID == uuid.Nil {
		r.ID = uuid.New()
	}
	query := `
        INSERT INTO rfps
            (id, title, description, category, budget, deadline, status, requirements,
             evaluation_criteria, attachments, ai_generated_content, created_by, tags)
        VALUES
            ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
        RETURNING created_at, updated_at`
	return s.db.QueryRowContext(ctx, query,
		r.ID, r.Title, r.Description, r.Category, r.Budget, r.Deadline, r.Status, r.Requirements,
		r.EvaluationCriteria, r.Attachments, r.AIGeneratedContent, r.CreatedBy, r.Tags).
		Scan(&r.CreatedAt, &r.UpdatedAt)
}

// UpdateRFP не трогает список приглашённых: он меняется только через MarkRFPSent
// и отправку предложений. Запись проходит, только если статус в базе всё ещё prev,
// иначе ErrStatusConflict.
func (s *Storage) UpdateRFP(ctx context.Context, r *models.RFP, prev models.RFPStatus) error {
	query := `
        UPDATE rfps
        SET title=$1, description=$2, category=$3, budget=$4, deadline=$5, status=$6,
            requirements=$7, evaluation_criteria=$8, attachments=$9, tags=$10, updated_at=NOW()
        WHERE id=$11 AND status=$12
        RETURNING updated_at`
	err := s.db.QueryRowContext(ctx, query,
		r.Title, r.Description, r.Category, r.Budget, r.Deadline, r.Status,
		r.Requirements, r.EvaluationCriteria, r.Attachments, r.Tags, r.ID, prev).
		Scan(&r.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return s.rfpMissingOrConflict(ctx, s.db, r.ID)
	}
	return err
}

// rfpMissingOrConflict различает, удалён RFP или у него сменился статус
func (s *Storage) rfpMissingOrConflict(ctx context.Context, q sqlx.QueryerContext, id uuid.UUID) error {
	var exists bool
	if err := sqlx.GetContext(ctx, q, &exists, `SELECT EXISTS (SELECT 1 FROM rfps WHERE id=$1)`, id); err != nil {
		return err
	}
	if !exists {
		return ErrNotFound
	}
	return ErrStatusConflict
}

// DeleteRFP каскадно удаляет рассылку и предложения по RFP (см. миграции)
func (s *Storage) DeleteRFP(ctx context.Context, id uuid.UUID) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM rfps WHERE id=$1`, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// MarkRFPSent в одной транзакции переводит RFP в статус sent и отмечает отправку
// поставщикам. Завершённый (closed, awarded, cancelled) RFP не трогается: если его
// закрыли, пока шла рассылка, возвращается ErrStatusConflict.
func (s *Storage) MarkRFPSent(ctx context.Context, rfpID uuid.UUID, vendorIDs []uuid.UUID, sentAt time.Time) error {
	return s.withTx(ctx, func(tx *sqlx.Tx) error {
		res, err := tx.ExecContext(ctx, `
            UPDATE rfps SET status=$1, updated_at=NOW()
            WHERE id=$2 AND status NOT IN ($3, $4, $5)`,
			models.RFPSent, rfpID, models.RFPClosed, models.RFPAwarded, models.RFPCancelled)
		if err != nil {
			return err
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return s.rfpMissingOrConflict(ctx, tx, rfpID)
		}
		for _, vendorID := range vendorIDs {
			_, err := tx.ExecContext(ctx, `
                INSERT INTO rfp_vendors (rfp_id, vendor_id, sent_at, status)
                VALUES ($1, $2, $3, $4)
                ON CONFLICT (rfp_id, vendor_id) DO UPDATE SET sent_at = EXCLUDED.sent_at, status = EXCLUDED.status`,
				rfpID, vendorID, sentAt, models.RosterSent)
			if err != nil {
				return err
			}
		}
		return nil
	})
}

func (s *Storage) RFPStats(ctx context.Context) (*models.RFPStats, error) {
	stats := &models.RFPStats{}
	if err := s.db.GetContext(ctx, &stats.Total, `SELECT COUNT(*) FROM rfps`); err != nil {
		return nil, err
	}

	var byStatus, byCategory []groupCount
	if err := s.db.SelectContext(ctx, &byStatus,
		`SELECT status AS key, COUNT(*) AS count FROM rfps GROUP BY status`); err != nil {
		return nil, err
	}
	if err := s.db.SelectContext(ctx, &byCategory,
		`SELECT category AS key, COUNT(*) AS count FROM rfps GROUP BY category`); err != nil {
		return nil, err
	}
	stats.ByStatus = countGroups(byStatus)
	stats.ByCategory = countGroups(byCategory)

	stats.Recent = []models.RFPSummary{}
	err := s.db.SelectContext(ctx, &stats.Recent,
		`SELECT id, title, status, deadline, created_at FROM rfps ORDER BY created_at DESC LIMIT 5`)
	if err != nil {
		return nil, err
	}
	return stats, nil
}
