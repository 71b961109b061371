package workflow

import (
	"context"
	"errors"
	"io"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/mmdatafocus/indicator_monitor/models"
	"github.com/mmdatafocus/indicator_monitor/utils"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

var fixedNow = time.Date(2024, 3, 15, 10, 0, 0, 0, time.UTC)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := filepath.Join(t.TempDir(), "workflow.db") + "?_busy_timeout=5000"
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Silent),
		TranslateError: true,
	})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })
	require.NoError(t, models.Migrate(db))
	return db
}

// newSharedTestDB allows several connections so separate engines contend like separate
// processes. Immediate transactions make concurrent writers wait instead of failing.
func newSharedTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := filepath.Join(t.TempDir(), "shared.db") + "?_busy_timeout=10000&_journal_mode=WAL&_txlock=immediate"
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Silent),
		TranslateError: true,
	})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(8)
	t.Cleanup(func() { _ = sqlDB.Close() })
	require.NoError(t, models.Migrate(db))
	return db
}

func newTestLogger() *logrus.Logger {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return l
}

type published struct {
	Topic string
	Data  []byte
}

type fakePublisher struct {
	mu    sync.Mutex
	calls []published
	err   error
}

func (p *fakePublisher) Publish(_ context.Context, topic string, data []byte) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.calls = append(p.calls, published{Topic: topic, Data: data})
	return p.err
}

func (p *fakePublisher) count() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.calls)
}

type sentMail struct {
	Address string
	Subject string
	Body    string
}

type fakeMailer struct {
	mu   sync.Mutex
	sent []sentMail
	err  error
}

func (m *fakeMailer) SendEmail(_ context.Context, address, subject, body string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sent = append(m.sent, sentMail{Address: address, Subject: subject, Body: body})
	return m.err
}

func (m *fakeMailer) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sent)
}

type fakeDirectory struct {
	users []models.User
	err   error
}

func (d fakeDirectory) ListAdministrators(context.Context) ([]models.User, error) {
	return d.users, d.err
}

type testEnv struct {
	DB        *gorm.DB
	Engine    *Engine
	Publisher *fakePublisher
	Mailer    *fakeMailer
}

func newTestEnv(t *testing.T, bindings ...Binding) *testEnv {
	t.Helper()
	db := newTestDB(t)
	log := newTestLogger()

	b, err := NewBindings(bindings...)
	require.NoError(t, err)

	pub := &fakePublisher{}
	mailer := &fakeMailer{}
	notifier := NewNotifier(models.NewStore(db), pub, mailer, "indicator-notifications", log)

	engine := NewEngine(db, log, b, notifier)
	engine.Now = func() time.Time { return fixedNow }
	engine.Materializer.Now = engine.Now
	engine.RetryBackoff = time.Millisecond
	engine.IndicatorTimeout = 5 * time.Second

	seedAdmin(t, db, "admin", "admin@example.com", true)
	return &testEnv{DB: db, Engine: engine, Publisher: pub, Mailer: mailer}
}

func seedAdmin(t *testing.T, db *gorm.DB, username, email string, wantsEmail bool) {
	t.Helper()
	require.NoError(t, db.Create(&models.User{
		Username:           username,
		Name:               username,
		Email:              &email,
		IsActive:           utils.NewTrue(),
		Role:               models.UserRoleAdmin,
		EmailNotifications: &wantsEmail,
	}).Error)
}

func seedIndicator(t *testing.T, db *gorm.DB, code string, target *float64) {
	t.Helper()
	require.NoError(t, db.Create(&models.Indicator{
		Code:     code,
		Label:    code + " label",
		Unit:     "%",
		Target:   target,
		IsActive: utils.NewTrue(),
	}).Error)
}

func seedNonConformities(t *testing.T, db *gorm.DB, code string, open, fixed int) {
	t.Helper()
	for i := 0; i < open+fixed; i++ {
		status := models.NonConformityStatusOpen
		if i >= open {
			status = models.NonConformityStatusFixed
		}
		require.NoError(t, models.CreateNonConformity(context.Background(), db, &models.NonConformity{
			Source:        models.NonConformitySourceAudit,
			Description:   "audit finding",
			Status:        status,
			IndicatorCode: strPtr(code),
		}))
	}
}

func seedTransaction(t *testing.T, db *gorm.DB, kind models.TransactionKind, amount int64, at time.Time) {
	t.Helper()
	require.NoError(t, db.Create(&models.FinancialTransaction{
		Kind:            kind,
		Amount:          decimal.NewFromInt(amount),
		TransactionDate: at,
	}).Error)
}

func seedDeviations(t *testing.T, db *gorm.DB, n int, at time.Time) {
	t.Helper()
	for i := 0; i < n; i++ {
		require.NoError(t, db.Create(&models.AdministrativeDeviation{
			DeviationType: "LATE_FILING",
			DetectedAt:    at,
		}).Error)
	}
}

func countAutoNonConformities(t *testing.T, db *gorm.DB, code string, status models.NonConformityStatus) int64 {
	t.Helper()
	var n int64
	require.NoError(t, db.Model(&models.NonConformity{}).
		Where("source = ? AND indicator_code = ? AND status = ?", models.NonConformitySourceIndicators, code, status).
		Count(&n).Error)
	return n
}

var errFactStore = errors.New("fact store unavailable")

// scriptedFacts lets a test fail or panic for chosen codes and count calls.
type scriptedFacts struct {
	FactSource

	mu       sync.Mutex
	calls    map[string]int
	failFor  map[string]int // remaining failures per code; -1 fails forever
	panicFor map[string]bool
}

func newScriptedFacts(inner FactSource) *scriptedFacts {
	return &scriptedFacts{
		FactSource: inner,
		calls:      map[string]int{},
		failFor:    map[string]int{},
		panicFor:   map[string]bool{},
	}
}

func (s *scriptedFacts) NonConformitiesForIndicator(ctx context.Context, code string) ([]models.NonConformity, error) {
	s.mu.Lock()
	s.calls[code]++
	remaining := s.failFor[code]
	if remaining > 0 {
		s.failFor[code] = remaining - 1
	}
	doPanic := s.panicFor[code]
	s.mu.Unlock()

	if doPanic {
		panic("malformed fact for " + code)
	}
	if remaining != 0 {
		return nil, errFactStore
	}
	return s.FactSource.NonConformitiesForIndicator(ctx, code)
}

// stalledFacts never answers for the codes in stall until the caller gives up.
type stalledFacts struct {
	FactSource

	stall map[string]bool
	calls atomic.Int32
}

func (s *stalledFacts) NonConformitiesForIndicator(ctx context.Context, code string) ([]models.NonConformity, error) {
	if !s.stall[code] {
		return s.FactSource.NonConformitiesForIndicator(ctx, code)
	}
	s.calls.Add(1)
	<-ctx.Done()
	return nil, ctx.Err()
}

func (s *scriptedFacts) callsFor(code string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls[code]
}

func floatPtr(v float64) *float64 { return &v }
func strPtr(s string) *string { return &s }
