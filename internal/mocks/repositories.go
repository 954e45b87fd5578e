package mocks

import (
	"context"
	"sort"
	"strings"
	"time"

	"github.com/ct-protocol-manual/internal/models"
	"github.com/ct-protocol-manual/internal/repository"
)

// Verify interface compliance
var (
	_ repository.UserRepository     = (*MockUserRepository)(nil)
	_ repository.DiseaseRepository  = (*MockDiseaseRepository)(nil)
	_ repository.NoticeRepository   = (*MockNoticeRepository)(nil)
	_ repository.ProtocolRepository = (*MockProtocolRepository)(nil)
	_ repository.SessionRepository  = (*MockSessionRepository)(nil)
)

// NewRepositories returns a Repositories aggregate backed by fresh mocks
func NewRepositories() *repository.Repositories {
	return &repository.Repositories{
		User:     NewMockUserRepository(),
		Disease:  NewMockDiseaseRepository(),
		Notice:   NewMockNoticeRepository(),
		Protocol: NewMockProtocolRepository(),
		Session:  NewMockSessionRepository(),
	}
}

func containsFold(term string, fields ...string) bool {
	term = strings.ToLower(strings.TrimSpace(term))
	for _, f := range fields {
		if strings.Contains(strings.ToLower(f), term) {
			return true
		}
	}
	return false
}

// MockUserRepository is a mock implementation of UserRepository
type MockUserRepository struct {
	Users       map[int64]*models.User
	EmailToUser map[string]*models.User
	NextID      int64
	Err         error
}

func NewMockUserRepository() *MockUserRepository {
	return &MockUserRepository{
		Users:       make(map[int64]*models.User),
		EmailToUser: make(map[string]*models.User),
	}
}

func (m *MockUserRepository) Create(ctx context.Context, user *models.User) error {
	if m.Err != nil {
		return m.Err
	}
	user.Email = strings.ToLower(user.Email)
	if _, taken := m.EmailToUser[user.Email]; taken {
		return repository.ErrDuplicateKey
	}
	if user.ID == 0 {
		m.NextID++
		user.ID = m.NextID
	} else if user.ID > m.NextID {
		m.NextID = user.ID
	}
	if user.CreatedAt.IsZero() {
		user.CreatedAt = time.Now()
	}
	user.UpdatedAt = user.CreatedAt
	m.Users[user.ID] = user
	m.EmailToUser[user.Email] = user
	return nil
}

func (m *MockUserRepository) GetByID(ctx context.Context, id int64) (*models.User, error) {
	if m.Err != nil {
		return nil, m.Err
	}
	return m.Users[id], nil
}

func (m *MockUserRepository) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	if m.Err != nil {
		return nil, m.Err
	}
	return m.EmailToUser[strings.ToLower(email)], nil
}

// List returns users newest first
func (m *MockUserRepository) List(ctx context.Context) ([]*models.User, error) {
	if m.Err != nil {
		return nil, m.Err
	}
	users := make([]*models.User, 0, len(m.Users))
	for _, u := range m.Users {
		users = append(users, u)
	}
	sort.Slice(users, func(i, j int) bool { return users[i].ID > users[j].ID })
	return users, nil
}

func (m *MockUserRepository) Delete(ctx context.Context, id int64) (bool, error) {
	if m.Err != nil {
		return false, m.Err
	}
	u, ok := m.Users[id]
	if !ok {
		return false, nil
	}
	delete(m.Users, id)
	delete(m.EmailToUser, u.Email)
	return true, nil
}

func (m *MockUserRepository) Count(ctx context.Context) (int, error) {
	if m.Err != nil {
		return 0, m.Err
	}
	return len(m.Users), nil
}

func (m *MockUserRepository) StreamAll(ctx context.Context, callback func(*models.User) error) error {
	users, err := m.List(ctx)
	if err != nil {
		return err
	}
	for _, user := range users {
		if err := callback(user); err != nil {
			return err
		}
	}
	return nil
}

// MockDiseaseRepository is a mock implementation of DiseaseRepository
type MockDiseaseRepository struct {
	Diseases    map[int64]*models.Disease
	NextID      int64
	Err         error
	SearchCalls int
}

func NewMockDiseaseRepository() *MockDiseaseRepository {
	return &MockDiseaseRepository{
		Diseases: make(map[int64]*models.Disease),
	}
}

func (m *MockDiseaseRepository) Create(ctx context.Context, disease *models.Disease) error {
	if m.Err != nil {
		return m.Err
	}
	if disease.ID == 0 {
		m.NextID++
		disease.ID = m.NextID
	} else if disease.ID > m.NextID {
		m.NextID = disease.ID
	}
	stored := *disease
	m.Diseases[disease.ID] = &stored
	return nil
}

func (m *MockDiseaseRepository) Update(ctx context.Context, disease *models.Disease) (bool, error) {
	if m.Err != nil {
		return false, m.Err
	}
	if _, ok := m.Diseases[disease.ID]; !ok {
		return false, nil
	}
	stored := *disease
	m.Diseases[disease.ID] = &stored
	return true, nil
}

func (m *MockDiseaseRepository) Delete(ctx context.Context, id int64) (bool, error) {
	if m.Err != nil {
		return false, m.Err
	}
	if _, ok := m.Diseases[id]; !ok {
		return false, nil
	}
	delete(m.Diseases, id)
	return true, nil
}

func (m *MockDiseaseRepository) GetByID(ctx context.Context, id int64) (*models.Disease, error) {
	if m.Err != nil {
		return nil, m.Err
	}
	d, ok := m.Diseases[id]
	if !ok {
		return nil, nil
	}
	copied := *d
	return &copied, nil
}

func (m *MockDiseaseRepository) sorted() []*models.Disease {
	list := make([]*models.Disease, 0, len(m.Diseases))
	for _, d := range m.Diseases {
		list = append(list, d)
	}
	sort.Slice(list, func(i, j int) bool {
		if list[i].Name == list[j].Name {
			return list[i].ID < list[j].ID
		}
		return list[i].Name < list[j].Name
	})
	return list
}

func (m *MockDiseaseRepository) List(ctx context.Context) ([]models.DiseaseSummary, error) {
	if m.Err != nil {
		return nil, m.Err
	}
	out := make([]models.DiseaseSummary, 0, len(m.Diseases))
	for _, d := range m.sorted() {
		out = append(out, d.Summary())
	}
	return out, nil
}

func (m *MockDiseaseRepository) Search(ctx context.Context, term string) ([]models.DiseaseSummary, error) {
	m.SearchCalls++
	if m.Err != nil {
		return nil, m.Err
	}
	out := make([]models.DiseaseSummary, 0)
	for _, d := range m.sorted() {
		if containsFold(term, d.Name, d.Description, d.Keywords,
			d.Scan.Label, d.Scan.Detail, d.Contrast.Label, d.Contrast.Detail,
			d.PostProcessing.Label, d.PostProcessing.Detail) {
			out = append(out, d.Summary())
		}
	}
	return out, nil
}

func (m *MockDiseaseRepository) Count(ctx context.Context) (int, error) {
	if m.Err != nil {
		return 0, m.Err
	}
	return len(m.Diseases), nil
}

func (m *MockDiseaseRepository) StreamAll(ctx context.Context, callback func(*models.Disease) error) error {
	if m.Err != nil {
		return m.Err
	}
	for _, d := range m.sorted() {
		if err := callback(d); err != nil {
			return err
		}
	}
	return nil
}

// MockNoticeRepository is a mock implementation of NoticeRepository
type MockNoticeRepository struct {
	Notices map[int64]*models.Notice
	NextID  int64
	Err     error
}

func NewMockNoticeRepository() *MockNoticeRepository {
	return &MockNoticeRepository{
		Notices: make(map[int64]*models.Notice),
	}
}

func (m *MockNoticeRepository) Create(ctx context.Context, notice *models.Notice) error {
	if m.Err != nil {
		return m.Err
	}
	if notice.ID == 0 {
		m.NextID++
		notice.ID = m.NextID
	} else if notice.ID > m.NextID {
		m.NextID = notice.ID
	}
	if notice.CreatedAt.IsZero() {
		notice.CreatedAt = time.Now()
	}
	stored := *notice
	m.Notices[notice.ID] = &stored
	return nil
}

func (m *MockNoticeRepository) Update(ctx context.Context, notice *models.Notice) (bool, error) {
	if m.Err != nil {
		return false, m.Err
	}
	existing, ok := m.Notices[notice.ID]
	if !ok {
		return false, nil
	}
	stored := *notice
	stored.CreatedAt = existing.CreatedAt
	m.Notices[notice.ID] = &stored
	return true, nil
}

func (m *MockNoticeRepository) Delete(ctx context.Context, id int64) (bool, error) {
	if m.Err != nil {
		return false, m.Err
	}
	if _, ok := m.Notices[id]; !ok {
		return false, nil
	}
	delete(m.Notices, id)
	return true, nil
}

func (m *MockNoticeRepository) GetByID(ctx context.Context, id int64) (*models.Notice, error) {
	if m.Err != nil {
		return nil, m.Err
	}
	n, ok := m.Notices[id]
	if !ok {
		return nil, nil
	}
	copied := *n
	return &copied, nil
}

// List returns notices newest first; limit <= 0 returns all
func (m *MockNoticeRepository) List(ctx context.Context, limit int) ([]*models.Notice, error) {
	if m.Err != nil {
		return nil, m.Err
	}
	list := make([]*models.Notice, 0, len(m.Notices))
	for _, n := range m.Notices {
		list = append(list, n)
	}
	sort.Slice(list, func(i, j int) bool {
		if list[i].CreatedAt.Equal(list[j].CreatedAt) {
			return list[i].ID > list[j].ID
		}
		return list[i].CreatedAt.After(list[j].CreatedAt)
	})
	if limit > 0 && len(list) > limit {
		list = list[:limit]
	}
	return list, nil
}

func (m *MockNoticeRepository) Count(ctx context.Context) (int, error) {
	if m.Err != nil {
		return 0, m.Err
	}
	return len(m.Notices), nil
}

func (m *MockNoticeRepository) StreamAll(ctx context.Context, callback func(*models.Notice) error) error {
	list, err := m.List(ctx, 0)
	if err != nil {
		return err
	}
	for _, n := range list {
		if err := callback(n); err != nil {
			return err
		}
	}
	return nil
}

// MockProtocolRepository is a mock implementation of ProtocolRepository
type MockProtocolRepository struct {
	Protocols map[int64]*models.Protocol
	NextID    int64
	Err       error
	ListCalls int
}

func NewMockProtocolRepository() *MockProtocolRepository {
	return &MockProtocolRepository{
		Protocols: make(map[int64]*models.Protocol),
	}
}

func (m *MockProtocolRepository) Create(ctx context.Context, protocol *models.Protocol) error {
	if m.Err != nil {
		return m.Err
	}
	if protocol.ID == 0 {
		m.NextID++
		protocol.ID = m.NextID
	} else if protocol.ID > m.NextID {
		m.NextID = protocol.ID
	}
	stored := *protocol
	m.Protocols[protocol.ID] = &stored
	return nil
}

func (m *MockProtocolRepository) Update(ctx context.Context, protocol *models.Protocol) (bool, error) {
	if m.Err != nil {
		return false, m.Err
	}
	if _, ok := m.Protocols[protocol.ID]; !ok {
		return false, nil
	}
	stored := *protocol
	m.Protocols[protocol.ID] = &stored
	return true, nil
}

func (m *MockProtocolRepository) Delete(ctx context.Context, id int64) (bool, error) {
	if m.Err != nil {
		return false, m.Err
	}
	if _, ok := m.Protocols[id]; !ok {
		return false, nil
	}
	delete(m.Protocols, id)
	return true, nil
}

func (m *MockProtocolRepository) GetByID(ctx context.Context, id int64) (*models.Protocol, error) {
	if m.Err != nil {
		return nil, m.Err
	}
	p, ok := m.Protocols[id]
	if !ok {
		return nil, nil
	}
	copied := *p
	return &copied, nil
}

func (m *MockProtocolRepository) filter(keep func(*models.Protocol) bool) []*models.Protocol {
	list := make([]*models.Protocol, 0, len(m.Protocols))
	for _, p := range m.Protocols {
		if keep(p) {
			list = append(list, p)
		}
	}
	sort.Slice(list, func(i, j int) bool {
		if list[i].Category != list[j].Category {
			return list[i].Category < list[j].Category
		}
		if list[i].Title != list[j].Title {
			return list[i].Title < list[j].Title
		}
		return list[i].ID < list[j].ID
	})
	return list
}

func (m *MockProtocolRepository) List(ctx context.Context) ([]*models.Protocol, error) {
	m.ListCalls++
	if m.Err != nil {
		return nil, m.Err
	}
	return m.filter(func(*models.Protocol) bool { return true }), nil
}

func (m *MockProtocolRepository) ListByCategory(ctx context.Context, category string) ([]*models.Protocol, error) {
	m.ListCalls++
	if m.Err != nil {
		return nil, m.Err
	}
	return m.filter(func(p *models.Protocol) bool { return p.Category == category }), nil
}

func (m *MockProtocolRepository) Search(ctx context.Context, term string) ([]*models.Protocol, error) {
	if m.Err != nil {
		return nil, m.Err
	}
	return m.filter(func(p *models.Protocol) bool {
		return containsFold(term, p.Title, p.Content, p.Category)
	}), nil
}

func (m *MockProtocolRepository) Count(ctx context.Context) (int, error) {
	if m.Err != nil {
		return 0, m.Err
	}
	return len(m.Protocols), nil
}

func (m *MockProtocolRepository) StreamAll(ctx context.Context, callback func(*models.Protocol) error) error {
	list, err := m.List(ctx)
	if err != nil {
		return err
	}
	for _, p := range list {
		if err := callback(p); err != nil {
			return err
		}
	}
	return nil
}

// MockSessionRepository is a mock implementation of SessionRepository
type MockSessionRepository struct {
	Records     map[int64]*models.SessionRecord
	Err         error
	UpsertCalls int
}

func NewMockSessionRepository() *MockSessionRepository {
	return &MockSessionRepository{
		Records: make(map[int64]*models.SessionRecord),
	}
}

func (m *MockSessionRepository) Upsert(ctx context.Context, record *models.SessionRecord) error {
	m.UpsertCalls++
	if m.Err != nil {
		return m.Err
	}
	stored := *record
	stored.Snapshot = append([]byte(nil), record.Snapshot...)
	m.Records[record.UserID] = &stored
	return nil
}

func (m *MockSessionRepository) GetByUser(ctx context.Context, userID int64) (*models.SessionRecord, error) {
	if m.Err != nil {
		return nil, m.Err
	}
	return m.Records[userID], nil
}

func (m *MockSessionRepository) GetLatest(ctx context.Context) (*models.SessionRecord, error) {
	if m.Err != nil {
		return nil, m.Err
	}
	var latest *models.SessionRecord
	for _, r := range m.Records {
		if latest == nil || r.LastUpdated.After(latest.LastUpdated) {
			latest = r
		}
	}
	return latest, nil
}

func (m *MockSessionRepository) Delete(ctx context.Context, userID int64) error {
	if m.Err != nil {
		return m.Err
	}
	delete(m.Records, userID)
	return nil
}
