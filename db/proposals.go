package db

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/Shreyansh0843/rfp-system/models"
)

const proposalColumns = `p.id, p.rfp_id, p.vendor_id, p.title, p.executive_summary, p.technical_approach,
    p.timeline, p.pricing, p.team, p.attachments, p.status, p.scores, p.ai_analysis,
    p.evaluator_notes, p.submitted_at, p.created_at, p.updated_at`

// колонки для вложенных rfp и vendor (sqlx раскладывает "rfp.title" во вложенную структуру)
const proposalRefColumns = `,
    r.id AS "rfp.id", r.title AS "rfp.title", r.deadline AS "rfp.deadline", r.status AS "rfp.status",
    v.id AS "vendor.id", v.name AS "vendor.name", v.email AS "vendor.email", v.company AS "vendor.company",
    v.phone AS "vendor.phone", v.category AS "vendor.category", v.rating AS "vendor.rating"`

const proposalFrom = `
    FROM proposals p
    JOIN rfps r ON r.id = p.rfp_id
    JOIN vendors v ON v.id = p.vendor_id`

var proposalSortColumns = map[string]string{
	"submittedAt": "p.submitted_at",
	"createdAt":   "p.created_at",
	"updatedAt":   "p.updated_at",
	"title":       "p.title",
	"status":      "p.status",
	"totalAmount": "(p.pricing->>'totalAmount')::numeric",
}

func proposalWhere(f models.ProposalFilter) *where {
	w := &where{}
	if f.RFPID != nil {
		w.add("p.rfp_id = $%d", *f.RFPID)
	}
	if f.VendorID != nil {
		w.add("p.vendor_id = $%d", *f.VendorID)
	}
	if f.Status != "" {
		w.add("p.status = $%d", f.Status)
	}
	return w
}

func (s *Storage) ListProposals(ctx context.Context, f models.ProposalFilter, page models.Page) ([]models.Proposal, int, error) {
	w := proposalWhere(f)

	var total int
	if err := s.db.GetContext(ctx, &total, "SELECT COUNT(*) FROM proposals p"+w.String(), w.args...); err != nil {
		return nil, 0, err
	}

	query := "SELECT " + proposalColumns + proposalRefColumns + proposalFrom + w.String() +
		orderBy(f.Sort, proposalSortColumns, "p.submitted_at DESC") +
		fmt.Sprintf(" LIMIT $%d OFFSET $%d", w.next(), w.next()+1)
	args := append(w.args, page.Limit, page.Offset())

	proposals := []models.Proposal{}
	if err := s.db.SelectContext(ctx, &proposals, query, args...); err != nil {
		return nil, 0, err
	}
	return proposals, total, nil
}

func (s *Storage) ListProposalsByRFP(ctx context.Context, rfpID uuid.UUID) ([]models.Proposal, error) {
	query := "SELECT " + proposalColumns + proposalRefColumns + proposalFrom +
		" WHERE p.rfp_id = $1 ORDER BY p.submitted_at DESC"
	proposals := []models.Proposal{}
	err := s.db.SelectContext(ctx, &proposals, query, rfpID)
	return proposals, err
}

func (s *Storage) GetProposal(ctx context.Context, id uuid.UUID) (*models.Proposal, error) {
	p := &models.Proposal{}
	query := "SELECT " + proposalColumns + proposalRefColumns + proposalFrom + " WHERE p.id = $1"
	err := s.db.GetContext(ctx, p, query, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	return p, err
}

func (s *Storage) ProposalExists(ctx context.Context, rfpID, vendorID uuid.UUID) (bool, error) {
	var exists bool
	err := s.db.GetContext(ctx, &exists,
		`SELECT EXISTS (SELECT 1 FROM proposals WHERE rfp_id=$1 AND vendor_id=$2)`, rfpID, vendorID)
	return exists, err
}

// SubmitProposal сохраняет предложение и в той же транзакции отмечает поставщика
// в рассылке RFP как ответившего (запись создаётся, если приглашения не было).
// Уникальный индекс (rfp_id, vendor_id) решает гонку двух одновременных отправок.
func (s *Storage) SubmitProposal(ctx context.Context, p *models.Proposal) error {
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	err := s.withTx(ctx, func(tx *sqlx.Tx) error {
		query := `
            INSERT INTO proposals
                (id, rfp_id, vendor_id, title, executive_summary, technical_approach, timeline,
                 pricing, team, attachments, status, evaluator_notes, submitted_at)
            VALUES
                ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
            RETURNING created_at, updated_at`
		err := tx.QueryRowContext(ctx, query,
			p.ID, p.RFPID, p.VendorID, p.Title, p.ExecutiveSummary, p.TechnicalApproach, p.Timeline,
			p.Pricing, p.Team, p.Attachments, p.Status, p.EvaluatorNotes, p.SubmittedAt).
			Scan(&p.CreatedAt, &p.UpdatedAt)
		if err != nil {
			return err
		}
		_, err = tx.ExecContext(ctx, `
            INSERT INTO rfp_vendors (rfp_id, vendor_id, status)
            VALUES ($1, $2, $3)
            ON CONFLICT (rfp_id, vendor_id) DO UPDATE SET status = EXCLUDED.status`,
			p.RFPID, p.VendorID, models.RosterResponded)
		return err
	})
	if isForeignKeyViolation(err) {
		return ErrNotFound
	}
	return translateError(err)
}

// UpdateProposal не меняет привязку к RFP и поставщику, анализ и заметки
func (s *Storage) UpdateProposal(ctx context.Context, p *models.Proposal) error {
	query := `
        UPDATE proposals
        SET title=$1, executive_summary=$2, technical_approach=$3, timeline=$4, pricing=$5,
            team=$6, attachments=$7, status=$8, updated_at=NOW()
        WHERE id=$9
        RETURNING updated_at`
	err := s.db.QueryRowContext(ctx, query,
		p.Title, p.ExecutiveSummary, p.TechnicalApproach, p.Timeline, p.Pricing,
		p.Team, p.Attachments, p.Status, p.ID).
		Scan(&p.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return ErrNotFound
	}
	return err
}

func (s *Storage) UpdateProposalStatus(ctx context.Context, id uuid.UUID, status models.ProposalStatus) (*models.Proposal, error) {
	res, err := s.db.ExecContext(ctx,
		`UPDATE proposals SET status=$1, updated_at=NOW() WHERE id=$2`, status, id)
	if err != nil {
		return nil, err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return nil, ErrNotFound
	}
	return s.GetProposal(ctx, id)
}

func (s *Storage) SaveProposalAnalysis(ctx context.Context, id uuid.UUID, analysis models.AIAnalysis, scores models.Scores) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE proposals SET ai_analysis=$1, scores=$2, updated_at=NOW() WHERE id=$3`,
		analysis, scores, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// AddEvaluatorNote дописывает заметку в конец массива, существующие не переписываются
func (s *Storage) AddEvaluatorNote(ctx context.Context, id uuid.UUID, note models.EvaluatorNote) (*models.Proposal, error) {
	payload, err := json.Marshal([]models.EvaluatorNote{note})
	if err != nil {
		return nil, err
	}
	res, err := s.db.ExecContext(ctx,
		`UPDATE proposals SET evaluator_notes = evaluator_notes || $1::jsonb, updated_at=NOW() WHERE id=$2`,
		string(payload), id)
	if err != nil {
		return nil, err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return nil, ErrNotFound
	}
	return s.GetProposal(ctx, id)
}

// DeleteProposal удаляет предложение и возвращает запись рассылки в прежний статус:
// приглашённый поставщик снова sent, неприглашённый убирается из списка.
func (s *Storage) DeleteProposal(ctx context.Context, id uuid.UUID) error {
	return s.withTx(ctx, func(tx *sqlx.Tx) error {
		var rfpID, vendorID uuid.UUID
		err := tx.QueryRowContext(ctx,
			`DELETE FROM proposals WHERE id=$1 RETURNING rfp_id, vendor_id`, id).
			Scan(&rfpID, &vendorID)
		if errors.Is(err, sql.ErrNoRows) {
			return ErrNotFound
		}
		if err != nil {
			return err
		}
		_, err = tx.ExecContext(ctx,
			`DELETE FROM rfp_vendors WHERE rfp_id=$1 AND vendor_id=$2 AND sent_at IS NULL`,
			rfpID, vendorID)
		if err != nil {
			return err
		}
		_, err = tx.ExecContext(ctx,
			`UPDATE rfp_vendors SET status=$1 WHERE rfp_id=$2 AND vendor_id=$3 AND status=$4`,
			models.RosterSent, rfpID, vendorID, models.RosterResponded)
		return err
	})
}

// ProposalsForComparison: пустой ids означает все предложения по RFP
func (s *Storage) ProposalsForComparison(ctx context.Context, rfpID uuid.UUID, ids []uuid.UUID) ([]models.Proposal, error) {
	w := &where{}
	w.add("p.rfp_id = $%d", rfpID)
	if len(ids) > 0 {
		w.add("p.id = ANY($%d::uuid[])", idStrings(ids))
	}
	query := "SELECT " + proposalColumns + proposalRefColumns + proposalFrom + w.String() + " ORDER BY p.submitted_at"
	proposals := []models.Proposal{}
	err := s.db.SelectContext(ctx, &proposals, query, w.args...)
	return proposals, err
}

func (s *Storage) ProposalStats(ctx context.Context, rfpID *uuid.UUID) (*models.ProposalStats, error) {
	w := &where{}
	if rfpID != nil {
		w.add("rfp_id = $%d", *rfpID)
	}

	stats := &models.ProposalStats{}
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*), COALESCE(AVG((pricing->>'totalAmount')::numeric), 0) FROM proposals`+w.String(),
		w.args...).
		Scan(&stats.Total, &stats.AveragePrice)
	if err != nil {
		return nil, err
	}

	var groups []groupCount
	err = s.db.SelectContext(ctx, &groups,
		`SELECT status AS key, COUNT(*) AS count FROM proposals`+w.String()+` GROUP BY status`, w.args...)
	if err != nil {
		return nil, err
	}
	stats.ByStatus = countGroups(groups)
	return stats, nil
}
