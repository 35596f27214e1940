package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/go-sql-driver/mysql"
	"github.com/mattn/go-sqlite3"
	"github.com/okian/sentiment/internal/domain/analysis"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

// stepClock returns base, base+step, base+2*step, ...
type stepClock struct {
	mu   sync.Mutex
	next time.Time
	step time.Duration
}

func (c *stepClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	t := c.next
	c.next = c.next.Add(c.step)
	return t
}

func (c *stepClock) Set(t time.Time) {
	c.mu.Lock()
	c.next = t
	c.mu.Unlock()
}

func setupTestStore(t *testing.T) (*GormStore, *stepClock) {
	t.Helper()
	clock := &stepClock{next: time.Date(2024, 3, 10, 8, 0, 0, 0, time.UTC), step: time.Minute}
	s, err := Open(context.Background(), DriverSQLite, ":memory:", WithClock(clock))
	require.NoError(t, err)
	require.NoError(t, s.Migrate(context.Background()))
	t.Cleanup(func() { _ = s.Close() })
	return s, clock
}

func strPtr(s string) *string { return &s }

func insert(t *testing.T, s *GormStore, text, model, label string, prob float64, lang *string) *analysis.Record {
	t.Helper()
	rec := &analysis.Record{OriginalText: text, ModelType: model, Prediction: label, Probability: prob, Language: lang}
	require.NoError(t, s.Insert(context.Background(), rec))
	return rec
}

func TestOpenUnsupportedDriver(t *testing.T) {
	_, err := Open(context.Background(), "postgres", "dsn")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrUnsupportedDriver)
}

func TestInsertAssignsIdentity(t *testing.T) {
	s, _ := setupTestStore(t)
	ctx := context.Background()

	first := insert(t, s, "Adorei o produto", "svm", "Positivo", 0.97, strPtr("pt"))
	second := insert(t, s, "Horrível", "nb", "Negativo", 0.88, nil)

	assert.Positive(t, first.ID)
	assert.Greater(t, second.ID, first.ID)
	assert.Equal(t, time.Date(2024, 3, 10, 8, 0, 0, 0, time.UTC), first.CreatedAt)
	assert.Equal(t, time.Date(2024, 3, 10, 8, 1, 0, 0, time.UTC), second.CreatedAt)

	page, err := s.FindPage(ctx, analysis.PageRequest{Page: 0, Size: 10})
	require.NoError(t, err)
	require.Len(t, page.Records, 2)

	got := page.Records[1]
	assert.Equal(t, first.ID, got.ID)
	assert.Equal(t, "Adorei o produto", got.OriginalText)
	assert.Equal(t, "svm", got.ModelType)
	assert.Equal(t, "Positivo", got.Prediction)
	assert.InDelta(t, 0.97, got.Probability, 1e-9)
	require.NotNil(t, got.Language)
	assert.Equal(t, "pt", *got.Language)
	assert.True(t, first.CreatedAt.Equal(got.CreatedAt))
	assert.Nil(t, page.Records[0].Language)
}

func TestFindPageNewestFirst(t *testing.T) {
	s, _ := setupTestStore(t)
	ctx := context.Background()

	var ids []int64
	for i := 0; i < 5; i++ {
		ids = append(ids, insert(t, s, fmt.Sprintf("texto %d", i), "lr", "Neutro", 0.5, nil).ID)
	}

	page, err := s.FindPage(ctx, analysis.PageRequest{Page: 0, Size: 2})
	require.NoError(t, err)
	assert.Equal(t, int64(5), page.TotalElements)
	assert.Equal(t, 3, page.TotalPages)
	require.Len(t, page.Records, 2)
	assert.Equal(t, ids[4], page.Records[0].ID)
	assert.Equal(t, ids[3], page.Records[1].ID)

	last, err := s.FindPage(ctx, analysis.PageRequest{Page: 2, Size: 2})
	require.NoError(t, err)
	require.Len(t, last.Records, 1)
	assert.Equal(t, ids[0], last.Records[0].ID)

	beyond, err := s.FindPage(ctx, analysis.PageRequest{Page: 9, Size: 2})
	require.NoError(t, err)
	assert.Empty(t, beyond.Records)
}

func TestCounts(t *testing.T) {
	s, _ := setupTestStore(t)
	ctx := context.Background()

	insert(t, s, "a", "svm", "Positivo", 0.95, nil)
	insert(t, s, "b", "svm", "Positivo", 0.90, nil)
	insert(t, s, "c", "nb", "Negativo", 0.60, nil)
	insert(t, s, "d", "lr", "Neutro", 0.89999, nil)

	total, err := s.CountTotal(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(4), total)

	pos, err := s.CountByPrediction(ctx, "Positivo")
	require.NoError(t, err)
	assert.Equal(t, int64(2), pos)

	svm, err := s.CountByModelType(ctx, "svm")
	require.NoError(t, err)
	assert.Equal(t, int64(2), svm)

	none, err := s.CountByModelType(ctx, "bert")
	require.NoError(t, err)
	assert.Zero(t, none)

	split, err := s.CountByConfidence(ctx, 0.9)
	require.NoError(t, err)
	assert.Equal(t, analysis.ConfidenceSplit{High: 2, Rest: 2}, split)
}

func TestCountsOnEmptyStore(t *testing.T) {
	s, _ := setupTestStore(t)
	ctx := context.Background()

	split, err := s.CountByConfidence(ctx, 0.9)
	require.NoError(t, err)
	assert.Equal(t, analysis.ConfidenceSplit{}, split)

	buckets, err := s.CountByTextLength(ctx, 50, 140)
	require.NoError(t, err)
	assert.Equal(t, analysis.LengthBuckets{}, buckets)

	days, err := s.DailyCounts(ctx)
	require.NoError(t, err)
	assert.Empty(t, days)
}

func TestCountByTextLength(t *testing.T) {
	s, _ := setupTestStore(t)
	ctx := context.Background()

	for _, n := range []int{1, 49, 50, 100, 140, 141, 300} {
		insert(t, s, strings.Repeat("x", n), "svm", "Neutro", 0.5, nil)
	}
	// Multi-byte characters count once each.
	insert(t, s, strings.Repeat("ç", 49), "svm", "Neutro", 0.5, nil)

	buckets, err := s.CountByTextLength(ctx, 50, 140)
	require.NoError(t, err)
	assert.Equal(t, analysis.LengthBuckets{Short: 3, Medium: 3, Long: 2}, buckets)
}

func TestLanguageCountsSkipsMissing(t *testing.T) {
	s, _ := setupTestStore(t)
	ctx := context.Background()

	insert(t, s, "a", "svm", "Positivo", 0.9, strPtr("pt"))
	insert(t, s, "b", "svm", "Positivo", 0.9, strPtr("pt"))
	insert(t, s, "c", "svm", "Positivo", 0.9, strPtr("en"))
	insert(t, s, "d", "svm", "Positivo", 0.9, nil)

	rows, err := s.LanguageCounts(ctx)
	require.NoError(t, err)
	assert.Equal(t, []analysis.LabelCount{{Label: "pt", Count: 2}, {Label: "en", Count: 1}}, rows)
}

func TestHourlyAndDailyCounts(t *testing.T) {
	s, clock := setupTestStore(t)
	ctx := context.Background()

	clock.Set(time.Date(2024, 1, 1, 10, 15, 0, 0, time.UTC))
	insert(t, s, "a", "svm", "Positivo", 0.9, nil)
	insert(t, s, "b", "svm", "Positivo", 0.9, nil)
	clock.Set(time.Date(2024, 1, 3, 23, 59, 0, 0, time.UTC))
	insert(t, s, "c", "svm", "Positivo", 0.9, nil)
	// Non-UTC clocks are normalized before storage.
	clock.Set(time.Date(2024, 1, 3, 22, 0, 0, 0, time.FixedZone("BRT", -3*3600)))
	insert(t, s, "d", "svm", "Positivo", 0.9, nil)

	hours, err := s.HourlyCounts(ctx)
	require.NoError(t, err)
	assert.Equal(t, []analysis.LabelCount{
		{Label: "01", Count: 1},
		{Label: "10", Count: 2},
		{Label: "23", Count: 1},
	}, hours)

	days, err := s.DailyCounts(ctx)
	require.NoError(t, err)
	assert.Equal(t, []analysis.LabelCount{
		{Label: "2024-01-01", Count: 2},
		{Label: "2024-01-03", Count: 1},
		{Label: "2024-01-04", Count: 1},
	}, days)
}

func TestModelSentimentCounts(t *testing.T) {
	s, _ := setupTestStore(t)
	ctx := context.Background()

	insert(t, s, "a", "svm", "Positivo", 0.9, nil)
	insert(t, s, "b", "svm", "Positivo", 0.9, nil)
	insert(t, s, "c", "nb", "Negativo", 0.9, nil)

	rows, err := s.ModelSentimentCounts(ctx)
	require.NoError(t, err)
	assert.ElementsMatch(t, []analysis.ModelSentimentCount{
		{Model: "svm", Sentiment: "Positivo", Count: 2},
		{Model: "nb", Sentiment: "Negativo", Count: 1},
	}, rows)
}

func TestAverageConfidence(t *testing.T) {
	s, _ := setupTestStore(t)
	ctx := context.Background()

	insert(t, s, "a", "svm", "Positivo", 0.9, nil)
	insert(t, s, "b", "svm", "Positivo", 0.7, nil)
	insert(t, s, "c", "nb", "Negativo", 0.6, nil)
	insert(t, s, "d", "nb", "Desconhecido", 0.1, nil)

	rows, err := s.AverageConfidence(ctx, []string{"Positivo", "Negativo", "Neutro"})
	require.NoError(t, err)
	require.Len(t, rows, 2)

	got := map[string]float64{}
	for _, r := range rows {
		got[r.Label] = r.Average
	}
	assert.InDelta(t, 0.8, got["Positivo"], 1e-9)
	assert.InDelta(t, 0.6, got["Negativo"], 1e-9)

	empty, err := s.AverageConfidence(ctx, nil)
	require.NoError(t, err)
	assert.Empty(t, empty)
}

func TestInsertConstraintViolation(t *testing.T) {
	s, _ := setupTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.db.Exec(`CREATE TRIGGER reject_forbidden BEFORE INSERT ON sentiment_analysis
		WHEN NEW.original_text = 'forbidden'
		BEGIN SELECT RAISE(ABORT, 'forbidden text'); END`).Error)

	rec := &analysis.Record{OriginalText: "forbidden", ModelType: "svm", Prediction: "Positivo", Probability: 0.9}
	err := s.Insert(ctx, rec)
	require.Error(t, err)

	var se *StoreError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, KindConstraint, se.Kind)
	assert.Equal(t, "insert", se.Op)
	assert.ErrorIs(t, err, ErrConstraint)
	assert.Zero(t, rec.ID)

	total, err := s.CountTotal(ctx)
	require.NoError(t, err)
	assert.Zero(t, total, "a rejected insert leaves nothing behind")
}

func TestClosedStoreFailsWithIOError(t *testing.T) {
	s, _ := setupTestStore(t)
	ctx := context.Background()
	require.NoError(t, s.Close())

	err := s.Insert(ctx, &analysis.Record{OriginalText: "a", ModelType: "svm", Prediction: "Positivo", Probability: 0.9})
	assert.ErrorIs(t, err, ErrIO)

	_, err = s.CountTotal(ctx)
	assert.ErrorIs(t, err, ErrIO)

	assert.ErrorIs(t, s.Ping(ctx), ErrIO)
}

func TestCanceledContext(t *testing.T) {
	s, _ := setupTestStore(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := s.Insert(ctx, &analysis.Record{OriginalText: "a", ModelType: "svm", Prediction: "Positivo", Probability: 0.9})
	require.Error(t, err)
	assert.True(t, errors.Is(err, context.Canceled))

	total, err := s.CountTotal(context.Background())
	require.NoError(t, err)
	assert.Zero(t, total)
}

func TestClassify(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want Kind
	}{
		{"gorm duplicate", fmt.Errorf("wrapped: %w", gorm.ErrDuplicatedKey), KindConstraint},
		{"gorm foreign key", gorm.ErrForeignKeyViolated, KindConstraint},
		{"sqlite constraint", sqlite3.Error{Code: sqlite3.ErrConstraint}, KindConstraint},
		{"sqlite busy", sqlite3.Error{Code: sqlite3.ErrBusy}, KindIO},
		{"mysql duplicate", &mysql.MySQLError{Number: 1062}, KindConstraint},
		{"mysql gone away", &mysql.MySQLError{Number: 2006}, KindIO},
		{"other", errors.New("disk full"), KindIO},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, classify(tt.err))
		})
	}
}

func TestStoreErrorMessage(t *testing.T) {
	err := &StoreError{Op: "insert", Kind: KindIO, Err: errors.New("disk full")}
	assert.Equal(t, "store insert: io: disk full", err.Error())
	assert.NotErrorIs(t, err, ErrConstraint)
}
