package handlers_test

import (
	"context"
	"errors"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/Shreyansh0843/rfp-system/db"
	"github.com/Shreyansh0843/rfp-system/internal/ai"
	"github.com/Shreyansh0843/rfp-system/internal/notify"
	"github.com/Shreyansh0843/rfp-system/models"
)

// MockStorage реализует StorageInterface в памяти и повторяет правила Postgres-хранилища:
// уникальный email, одна заявка на пару (RFP, поставщик), синхронизация рассылки.
type MockStorage struct {
	mu        sync.Mutex
	vendors   map[uuid.UUID]models.Vendor
	rfps      map[uuid.UUID]models.RFP
	proposals map[uuid.UUID]models.Proposal
	seq       int

	pingErr error
}

func NewMockStorage() *MockStorage {
	return &MockStorage{
		vendors:   map[uuid.UUID]models.Vendor{},
		rfps:      map[uuid.UUID]models.RFP{},
		proposals: map[uuid.UUID]models.Proposal{},
	}
}

// tick монотонное время создания, чтобы сортировка по createdAt была детерминированной
func (m *MockStorage) tick() time.Time {
	m.seq++
	return time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC).Add(time.Duration(m.seq) * time.Minute)
}

func (m *MockStorage) Ping(ctx context.Context) error { return m.pingErr }

func paginate[T any](items []T, page models.Page) []T {
	start := page.Offset()
	if start > len(items) {
		start = len(items)
	}
	end := min(start+page.Limit, len(items))
	return items[start:end]
}

func (m *MockStorage) ListVendors(ctx context.Context, f models.VendorFilter, page models.Page) ([]models.Vendor, int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []models.Vendor{}
	for _, v := range m.vendors {
		if f.Category != "" && string(v.Category) != f.Category {
			continue
		}
		if f.Status != "" && string(v.Status) != f.Status {
			continue
		}
		if f.Search != "" {
			s := strings.ToLower(f.Search)
			if !strings.Contains(strings.ToLower(v.Name+" "+v.Company+" "+v.Email), s) {
				continue
			}
		}
		out = append(out, v)
	}
	sort.Slice(out, func(i, j int) bool {
		if f.Sort.Field == "name" {
			if f.Sort.Desc {
				return out[i].Name > out[j].Name
			}
			return out[i].Name < out[j].Name
		}
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return paginate(out, page), len(out), nil
}

func (m *MockStorage) GetVendor(ctx context.Context, id uuid.UUID) (*models.Vendor, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.vendors[id]
	if !ok {
		return nil, db.ErrNotFound
	}
	return &v, nil
}

func (m *MockStorage) GetActiveVendors(ctx context.Context, ids []uuid.UUID) ([]models.Vendor, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []models.Vendor{}
	for _, id := range ids {
		if v, ok := m.vendors[id]; ok && v.Status == models.VendorActive {
			out = append(out, v)
		}
	}
	return out, nil
}

func (m *MockStorage) emailTaken(email string, except uuid.UUID) bool {
	for id, v := range m.vendors {
		if id != except && strings.EqualFold(v.Email, email) {
			return true
		}
	}
	return false
}

func (m *MockStorage) CreateVendor(ctx context.Context, v *models.Vendor) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.emailTaken(v.Email, uuid.Nil) {
		return db.ErrDuplicateEmail
	}
	v.ID = uuid.New()
	v.CreatedAt = m.tick()
	v.UpdatedAt = v.CreatedAt
	m.vendors[v.ID] = *v
	return nil
}

func (m *MockStorage) UpdateVendor(ctx context.Context, v *models.Vendor) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.vendors[v.ID]; !ok {
		return db.ErrNotFound
	}
	if m.emailTaken(v.Email, v.ID) {
		return db.ErrDuplicateEmail
	}
	v.UpdatedAt = m.tick()
	m.vendors[v.ID] = *v
	return nil
}

func (m *MockStorage) DeleteVendor(ctx context.Context, id uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.vendors[id]; !ok {
		return db.ErrNotFound
	}
	for _, p := range m.proposals {
		if p.VendorID == id {
			return db.ErrVendorInUse
		}
	}
	for rid, r := range m.rfps {
		kept := r.Vendors[:0:0]
		for _, e := range r.Vendors {
			if e.VendorID != id {
				kept = append(kept, e)
			}
		}
		r.Vendors = kept
		m.rfps[rid] = r
	}
	delete(m.vendors, id)
	return nil
}

func (m *MockStorage) VendorStats(ctx context.Context) (*models.VendorStats, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	stats := &models.VendorStats{ByCategory: map[string]int{}}
	for _, v := range m.vendors {
		stats.Total++
		if v.Status == models.VendorActive {
			stats.Active++
		}
		stats.ByCategory[string(v.Category)]++
	}
	stats.Inactive = stats.Total - stats.Active
	return stats, nil
}

// rfpView дополняет RFP данными, которые Postgres-хранилище собирает запросом
func (m *MockStorage) rfpView(r models.RFP) models.RFP {
	r.ProposalCount = 0
	for _, p := range m.proposals {
		if p.RFPID == r.ID {
			r.ProposalCount++
		}
	}
	roster := make([]models.RosterEntry, len(r.Vendors))
	for i, e := range r.Vendors {
		if v, ok := m.vendors[e.VendorID]; ok {
			e.Vendor = &models.VendorRef{ID: v.ID, Name: v.Name, Email: v.Email, Company: v.Company, Category: v.Category}
		}
		roster[i] = e
	}
	r.Vendors = roster
	return r
}

func (m *MockStorage) ListRFPs(ctx context.Context, f models.RFPFilter, page models.Page) ([]models.RFP, int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []models.RFP{}
	for _, r := range m.rfps {
		if f.Status != "" && string(r.Status) != f.Status {
			continue
		}
		if f.Category != "" && string(r.Category) != f.Category {
			continue
		}
		if f.Search != "" && !strings.Contains(strings.ToLower(r.Title+" "+r.Description), strings.ToLower(f.Search)) {
			continue
		}
		out = append(out, m.rfpView(r))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return paginate(out, page), len(out), nil
}

func (m *MockStorage) GetRFP(ctx context.Context, id uuid.UUID) (*models.RFP, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.rfps[id]
	if !ok {
		return nil, db.ErrNotFound
	}
	view := m.rfpView(r)
	return &view, nil
}

func (m *MockStorage) CreateRFP(ctx context.Context, r *models.RFP) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	r.ID = uuid.New()
	r.CreatedAt = m.tick()
	r.UpdatedAt = r.CreatedAt
	stored := *r
	stored.Vendors = []models.RosterEntry{}
	m.rfps[r.ID] = stored
	return nil
}

func (m *MockStorage) UpdateRFP(ctx context.Context, r *models.RFP, prev models.RFPStatus) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	old, ok := m.rfps[r.ID]
	if !ok {
		return db.ErrNotFound
	}
	if old.Status != prev {
		return db.ErrStatusConflict
	}
	stored := *r
	stored.Vendors = old.Vendors
	stored.AIGeneratedContent = old.AIGeneratedContent
	stored.UpdatedAt = m.tick()
	r.UpdatedAt = stored.UpdatedAt
	m.rfps[r.ID] = stored
	return nil
}

func (m *MockStorage) DeleteRFP(ctx context.Context, id uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.rfps[id]; !ok {
		return db.ErrNotFound
	}
	delete(m.rfps, id)
	for pid, p := range m.proposals {
		if p.RFPID == id {
			delete(m.proposals, pid)
		}
	}
	return nil
}

func (m *MockStorage) MarkRFPSent(ctx context.Context, rfpID uuid.UUID, vendorIDs []uuid.UUID, sentAt time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.rfps[rfpID]
	if !ok {
		return db.ErrNotFound
	}
	if r.Status.IsTerminal() {
		return db.ErrStatusConflict
	}
	roster := append([]models.RosterEntry(nil), r.Vendors...)
	for _, vid := range vendorIDs {
		at := sentAt
		found := false
		for i := range roster {
			if roster[i].VendorID == vid {
				roster[i].SentAt = &at
				roster[i].Status = models.RosterSent
				found = true
			}
		}
		if !found {
			roster = append(roster, models.RosterEntry{RFPID: rfpID, VendorID: vid, SentAt: &at, Status: models.RosterSent})
		}
	}
	r.Vendors = roster
	r.Status = models.RFPSent
	m.rfps[rfpID] = r
	return nil
}

func (m *MockStorage) RFPStats(ctx context.Context) (*models.RFPStats, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	stats := &models.RFPStats{ByStatus: map[string]int{}, ByCategory: map[string]int{}, Recent: []models.RFPSummary{}}
	all := []models.RFP{}
	for _, r := range m.rfps {
		stats.Total++
		stats.ByStatus[string(r.Status)]++
		stats.ByCategory[string(r.Category)]++
		all = append(all, r)
	}
	sort.Slice(all, func(i, j int) bool { return all[i].CreatedAt.After(all[j].CreatedAt) })
	for i := 0; i < len(all) && i < 5; i++ {
		r := all[i]
		stats.Recent = append(stats.Recent, models.RFPSummary{ID: r.ID, Title: r.Title, Status: r.Status, Deadline: r.Deadline, CreatedAt: r.CreatedAt})
	}
	return stats, nil
}

func (m *MockStorage) proposalView(p models.Proposal) models.Proposal {
	if r, ok := m.rfps[p.RFPID]; ok {
		p.RFP = &models.RFPRef{ID: r.ID, Title: r.Title, Deadline: r.Deadline, Status: r.Status}
	}
	if v, ok := m.vendors[p.VendorID]; ok {
		p.Vendor = v.Ref()
	}
	return p
}

func (m *MockStorage) ListProposals(ctx context.Context, f models.ProposalFilter, page models.Page) ([]models.Proposal, int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []models.Proposal{}
	for _, p := range m.proposals {
		if f.RFPID != nil && p.RFPID != *f.RFPID {
			continue
		}
		if f.VendorID != nil && p.VendorID != *f.VendorID {
			continue
		}
		if f.Status != "" && string(p.Status) != f.Status {
			continue
		}
		out = append(out, m.proposalView(p))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return paginate(out, page), len(out), nil
}

func (m *MockStorage) ListProposalsByRFP(ctx context.Context, rfpID uuid.UUID) ([]models.Proposal, error) {
	list, _, err := m.ListProposals(ctx, models.ProposalFilter{RFPID: &rfpID}, models.Page{Number: 1, Limit: 1000})
	return list, err
}

func (m *MockStorage) GetProposal(ctx context.Context, id uuid.UUID) (*models.Proposal, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.proposals[id]
	if !ok {
		return nil, db.ErrNotFound
	}
	view := m.proposalView(p)
	return &view, nil
}

func (m *MockStorage) ProposalExists(ctx context.Context, rfpID, vendorID uuid.UUID) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, p := range m.proposals {
		if p.RFPID == rfpID && p.VendorID == vendorID {
			return true, nil
		}
	}
	return false, nil
}

func (m *MockStorage) SubmitProposal(ctx context.Context, p *models.Proposal) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.rfps[p.RFPID]
	if !ok {
		return db.ErrNotFound
	}
	if _, ok := m.vendors[p.VendorID]; !ok {
		return db.ErrNotFound
	}
	for _, other := range m.proposals {
		if other.RFPID == p.RFPID && other.VendorID == p.VendorID {
			return db.ErrDuplicateProposal
		}
	}
	p.ID = uuid.New()
	p.CreatedAt = m.tick()
	p.UpdatedAt = p.CreatedAt
	m.proposals[p.ID] = *p

	roster := append([]models.RosterEntry(nil), r.Vendors...)
	found := false
	for i := range roster {
		if roster[i].VendorID == p.VendorID {
			roster[i].Status = models.RosterResponded
			found = true
		}
	}
	if !found {
		roster = append(roster, models.RosterEntry{RFPID: r.ID, VendorID: p.VendorID, Status: models.RosterResponded})
	}
	r.Vendors = roster
	m.rfps[r.ID] = r
	return nil
}

func (m *MockStorage) UpdateProposal(ctx context.Context, p *models.Proposal) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	old, ok := m.proposals[p.ID]
	if !ok {
		return db.ErrNotFound
	}
	stored := *p
	stored.RFP, stored.Vendor = nil, nil
	stored.RFPID, stored.VendorID = old.RFPID, old.VendorID
	stored.Scores, stored.AIAnalysis, stored.EvaluatorNotes = old.Scores, old.AIAnalysis, old.EvaluatorNotes
	stored.UpdatedAt = m.tick()
	m.proposals[p.ID] = stored
	return nil
}

func (m *MockStorage) UpdateProposalStatus(ctx context.Context, id uuid.UUID, status models.ProposalStatus) (*models.Proposal, error) {
	m.mu.Lock()
	p, ok := m.proposals[id]
	if !ok {
		m.mu.Unlock()
		return nil, db.ErrNotFound
	}
	p.Status = status
	m.proposals[id] = p
	m.mu.Unlock()
	return m.GetProposal(ctx, id)
}

func (m *MockStorage) SaveProposalAnalysis(ctx context.Context, id uuid.UUID, analysis models.AIAnalysis, scores models.Scores) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.proposals[id]
	if !ok {
		return db.ErrNotFound
	}
	p.AIAnalysis = &analysis
	p.Scores = &scores
	m.proposals[id] = p
	return nil
}

func (m *MockStorage) AddEvaluatorNote(ctx context.Context, id uuid.UUID, note models.EvaluatorNote) (*models.Proposal, error) {
	m.mu.Lock()
	p, ok := m.proposals[id]
	if !ok {
		m.mu.Unlock()
		return nil, db.ErrNotFound
	}
	p.EvaluatorNotes = append(append(models.EvaluatorNotes{}, p.EvaluatorNotes...), note)
	m.proposals[id] = p
	m.mu.Unlock()
	return m.GetProposal(ctx, id)
}

func (m *MockStorage) DeleteProposal(ctx context.Context, id uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.proposals[id]
	if !ok {
		return db.ErrNotFound
	}
	delete(m.proposals, id)
	if r, ok := m.rfps[p.RFPID]; ok {
		roster := []models.RosterEntry{}
		for _, e := range r.Vendors {
			if e.VendorID == p.VendorID {
				if e.SentAt == nil {
					continue
				}
				if e.Status == models.RosterResponded {
					e.Status = models.RosterSent
				}
			}
			roster = append(roster, e)
		}
		r.Vendors = roster
		m.rfps[r.ID] = r
	}
	return nil
}

func (m *MockStorage) ProposalsForComparison(ctx context.Context, rfpID uuid.UUID, ids []uuid.UUID) ([]models.Proposal, error) {
	all, err := m.ListProposalsByRFP(ctx, rfpID)
	if err != nil || len(ids) == 0 {
		return all, err
	}
	wanted := map[uuid.UUID]bool{}
	for _, id := range ids {
		wanted[id] = true
	}
	out := []models.Proposal{}
	for _, p := range all {
		if wanted[p.ID] {
			out = append(out, p)
		}
	}
	return out, nil
}

func (m *MockStorage) ProposalStats(ctx context.Context, rfpID *uuid.UUID) (*models.ProposalStats, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	stats := &models.ProposalStats{ByStatus: map[string]int{}}
	sum := decimal.Zero
	for _, p := range m.proposals {
		if rfpID != nil && p.RFPID != *rfpID {
			continue
		}
		stats.Total++
		stats.ByStatus[string(p.Status)]++
		sum = sum.Add(p.Pricing.Amount())
	}
	if stats.Total > 0 {
		stats.AveragePrice = sum.Div(decimal.NewFromInt(int64(stats.Total)))
	}
	return stats, nil
}

// fakeAI считает вызовы; ответы задаются тестом
type fakeAI struct {
	mu          sync.Mutex
	calls       int
	err         error
	parsed      *ai.ParsedRFP
	analysis    *ai.Analysis
	comparison  *ai.Comparison
	suggestions *ai.Suggestions
	compared    []models.Proposal
}

func (f *fakeAI) call() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	return f.err
}

func (f *fakeAI) ParseRFP(ctx context.Context, text string) (*ai.ParsedRFP, error) {
	if err := f.call(); err != nil {
		return nil, err
	}
	return f.parsed, nil
}

func (f *fakeAI) AnalyzeProposal(ctx context.Context, p *models.Proposal, reqs models.Requirements) (*ai.Analysis, error) {
	if err := f.call(); err != nil {
		return nil, err
	}
	return f.analysis, nil
}

func (f *fakeAI) CompareProposals(ctx context.Context, proposals []models.Proposal, reqs models.Requirements) (*ai.Comparison, error) {
	if err := f.call(); err != nil {
		return nil, err
	}
	f.compared = proposals
	return f.comparison, nil
}

func (f *fakeAI) Suggest(ctx context.Context, category, description string) (*ai.Suggestions, error) {
	if err := f.call(); err != nil {
		return nil, err
	}
	return f.suggestions, nil
}

// fakeMailer отказывает адресам из failFor
type fakeMailer struct {
	mu            sync.Mutex
	failFor       map[string]bool
	beforeInvite  func(vendor *models.Vendor)
	invited       []string
	confirmed     []string
	confirmDenied bool
}

func (f *fakeMailer) SendInvitation(ctx context.Context, v *models.Vendor, r *models.RFP, msg string) error {
	if f.beforeInvite != nil {
		f.beforeInvite(v)
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.invited = append(f.invited, v.Email)
	if f.failFor[v.Email] {
		return errors.New("failed to send email: mailbox unavailable")
	}
	return nil
}

func (f *fakeMailer) SendConfirmation(ctx context.Context, v *models.Vendor, r *models.RFP, p *models.Proposal) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.confirmed = append(f.confirmed, v.Email)
	if f.confirmDenied {
		return errors.New("failed to send confirmation: smtp down")
	}
	return nil
}

// syncNotifier выполняет задачу сразу и запоминает ошибки, как dead letter
type syncNotifier struct {
	mu     sync.Mutex
	jobs   []notify.Job
	failed []error
}

func (n *syncNotifier) Submit(job notify.Job) bool {
	err := job.Run(context.Background())
	n.mu.Lock()
	defer n.mu.Unlock()
	n.jobs = append(n.jobs, job)
	if err != nil {
		n.failed = append(n.failed, err)
	}
	return true
}
