package intake

import (
	"context"
	"errors"
	"io"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/mock"

	"github.com/ignatzorin/civic-intake/internal/domain/entity"
	"github.com/ignatzorin/civic-intake/internal/domain/valueobject"
	"github.com/ignatzorin/civic-intake/internal/pkg/apperror"
)

var errStoreDown = apperror.Wrap(errors.New("connection refused"), apperror.ErrCodeStore, "хранилище недоступно")

func testLogger() logrus.FieldLogger {
	log := logrus.New()
	log.SetOutput(io.Discard)
	return log
}

type mockOracle struct {
	mock.Mock
}

func (m *mockOracle) ValidateComplaintText(ctx context.Context, text string) (valueobject.TextVerdict, error) {
	args := m.Called(ctx, text)
	return args.Get(0).(valueobject.TextVerdict), args.Error(1)
}

func (m *mockOracle) TranscribeAudio(ctx context.Context, audio []byte, mediaType string) (string, error) {
	args := m.Called(ctx, audio, mediaType)
	return args.String(0), args.Error(1)
}

func (m *mockOracle) ValidateLocationText(ctx context.Context, text string) (valueobject.TextVerdict, error) {
	args := m.Called(ctx, text)
	return args.Get(0).(valueobject.TextVerdict), args.Error(1)
}

func (m *mockOracle) ClassifyImage(ctx context.Context, image []byte, description string) (valueobject.ImageVerdict, error) {
	args := m.Called(ctx, image, description)
	return args.Get(0).(valueobject.ImageVerdict), args.Error(1)
}

func (m *mockOracle) Acknowledge(ctx context.Context, description string) (string, error) {
	args := m.Called(ctx, description)
	return args.String(0), args.Error(1)
}

func (m *mockOracle) RequestPhoto(ctx context.Context, description string) (string, error) {
	args := m.Called(ctx, description)
	return args.String(0), args.Error(1)
}

// memSessionRepository повторяет правила хранилища: поля заполняются один раз,
// закрытые сессии не меняются.
type memSessionRepository struct {
	mu        sync.Mutex
	sessions  map[string]*entity.ComplaintSession
	getErr    error
	createErr error
	updateErr error
	updates   int
}

func newMemSessionRepository() *memSessionRepository {
	return &memSessionRepository{sessions: make(map[string]*entity.ComplaintSession)}
}

func (r *memSessionRepository) GetActive(ctx context.Context, phoneNumber string, now time.Time) (*entity.ComplaintSession, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.getErr != nil {
		return nil, r.getErr
	}
	for _, s := range r.sessions {
		if s.PhoneNumber == phoneNumber && s.IsUsable(now) {
			return s.Clone(), nil
		}
	}
	return nil, nil
}

func (r *memSessionRepository) Create(ctx context.Context, session *entity.ComplaintSession) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.createErr != nil {
		return r.createErr
	}
	r.sessions[session.SessionID] = session.Clone()
	return nil
}

func (r *memSessionRepository) Update(ctx context.Context, sessionID string, patch entity.SessionPatch) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.updateErr != nil {
		return r.updateErr
	}
	s, ok := r.sessions[sessionID]
	if !ok || s.Status != valueobject.SessionStatusActive {
		return apperror.ErrSessionNotActive
	}
	r.updates++
	if patch.ComplaintText != nil {
		if err := s.SetDescription(*patch.ComplaintText); err != nil {
			return err
		}
	}
	if patch.Coordinates != nil {
		if err := s.SetCoordinates(*patch.Coordinates); err != nil {
			return err
		}
	}
	return nil
}

func (r *memSessionRepository) Close(ctx context.Context, sessionID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.sessions[sessionID]
	if !ok || s.Status != valueobject.SessionStatusActive {
		return apperror.ErrSessionNotActive
	}
	s.Status = valueobject.SessionStatusClosed
	return nil
}

func (r *memSessionRepository) CloseExpired(ctx context.Context, now time.Time) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var n int64
	for _, s := range r.sessions {
		if s.Status == valueobject.SessionStatusActive && s.IsExpired(now) {
			s.Status = valueobject.SessionStatusExpired
			n++
		}
	}
	return n, nil
}

func (r *memSessionRepository) get(sessionID string) *entity.ComplaintSession {
	r.mu.Lock()
	defer r.mu.Unlock()
	if s, ok := r.sessions[sessionID]; ok {
		return s.Clone()
	}
	return nil
}

func (r *memSessionRepository) put(s *entity.ComplaintSession) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sessions[s.SessionID] = s.Clone()
}

// memReportRepository закрывает сессию вместе с записью жалобы, как транзакция в Postgres.
type memReportRepository struct {
	mu        sync.Mutex
	sessions  *memSessionRepository
	reports   map[string]*entity.ComplaintReport
	createErr error
}

func newMemReportRepository(sessions *memSessionRepository) *memReportRepository {
	return &memReportRepository{sessions: sessions, reports: make(map[string]*entity.ComplaintReport)}
}

func (r *memReportRepository) Create(ctx context.Context, report *entity.ComplaintReport) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.createErr != nil {
		return "", r.createErr
	}
	if _, exists := r.reports[report.ReportID]; exists {
		return "", apperror.ErrReportAlreadyExists
	}

	r.sessions.mu.Lock()
	defer r.sessions.mu.Unlock()
	s, ok := r.sessions.sessions[report.SessionID]
	if !ok {
		return "", apperror.ErrSessionNotActive
	}
	if err := s.Complete(report.ReportID, report.Classification()); err != nil {
		return "", err
	}

	stored := *report
	r.reports[report.ReportID] = &stored
	return report.ReportID, nil
}

func (r *memReportRepository) FindByID(ctx context.Context, reportID string) (*entity.ComplaintReport, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if rep, ok := r.reports[reportID]; ok {
		return rep, nil
	}
	return nil, apperror.New(apperror.ErrCodeNotFound, "жалоба не найдена")
}

type memMediaStore struct {
	mu      sync.Mutex
	saved   map[string][]byte
	deleted []string
	saveErr error
}

func newMemMediaStore() *memMediaStore {
	return &memMediaStore{saved: make(map[string][]byte)}
}

func (m *memMediaStore) Save(ctx context.Context, key string, data []byte) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.saveErr != nil {
		return "", m.saveErr
	}
	path := "reports/" + key + ".jpg"
	m.saved[path] = data
	return path, nil
}

func (m *memMediaStore) Delete(ctx context.Context, path string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.saved, path)
	m.deleted = append(m.deleted, path)
	return nil
}

type recordingPublisher struct {
	mu        sync.Mutex
	published []*entity.ComplaintReport
	err       error
}

func (p *recordingPublisher) PublishReportSubmitted(ctx context.Context, report *entity.ComplaintReport) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return p.err
	}
	p.published = append(p.published, report)
	return nil
}

// chanLocker блокирует по номеру на каналах, этого достаточно для тестов.
type chanLocker struct {
	mu    sync.Mutex
	slots map[string]chan struct{}
	err   error
}

func newChanLocker() *chanLocker {
	return &chanLocker{slots: make(map[string]chan struct{})}
}

func (l *chanLocker) Acquire(ctx context.Context, key string) (func(), error) {
	if l.err != nil {
		return nil, l.err
	}
	l.mu.Lock()
	slot, ok := l.slots[key]
	if !ok {
		slot = make(chan struct{}, 1)
		l.slots[key] = slot
	}
	l.mu.Unlock()

	select {
	case slot <- struct{}{}:
		return func() { <-slot }, nil
	case <-ctx.Done():
		return nil, apperror.ErrTurnInProgress
	}
}

// harness собирает автомат с фейковыми хранилищами.
type harness struct {
	oracle    *mockOracle
	sessions  *memSessionRepository
	reports   *memReportRepository
	media     *memMediaStore
	events    *recordingPublisher
	locker    *chanLocker
	finalizer *Finalizer
	workflow  *Workflow
	turns     *ProcessTurnUseCase
}

func newHarness() *harness {
	h := &harness{
		oracle:   &mockOracle{},
		sessions: newMemSessionRepository(),
		media:    newMemMediaStore(),
		events:   &recordingPublisher{},
		locker:   newChanLocker(),
	}
	h.reports = newMemReportRepository(h.sessions)
	h.finalizer = NewFinalizer(h.reports, h.media, h.events, testLogger())
	h.workflow = NewWorkflow(h.oracle, h.finalizer, testLogger())
	h.turns = NewProcessTurnUseCase(h.sessions, h.locker, h.workflow, TurnOptions{}, testLogger())
	return h
}

var testNow = time.Date(2025, 6, 1, 9, 30, 0, 0, time.UTC)

func newSession(phone string) *entity.ComplaintSession {
	s, err := entity.NewComplaintSession(phone, testNow, 0)
	if err != nil {
		panic(err)
	}
	return s
}

func sessionAt(state valueobject.ConversationState) *entity.ComplaintSession {
	s := newSession("+1555")
	if state == valueobject.StateAwaitingDescription {
		return s
	}
	s.ComplaintText = "pothole on Main St"
	if state == valueobject.StateAwaitingLocation {
		return s
	}
	s.Coordinates = "Main Street Colony"
	if state == valueobject.StateAwaitingPhoto {
		return s
	}
	c := valueobject.Classification{
		Category:       valueobject.CategoryRoadInfrastructure,
		Priority:       valueobject.PriorityHigh,
		Department:     valueobject.DepartmentPublicWorks,
		ResolutionDays: 7,
	}
	if err := s.Complete("GOV20250601093000ABCDEF", c); err != nil {
		panic(err)
	}
	return s
}

var jpegBytes = []byte{0xFF, 0xD8, 0xFF, 0xE0, 0x00, 0x10, 'J', 'F', 'I', 'F'}
