package repository

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/okian/sentiment/internal/domain/analysis"
	"github.com/okian/sentiment/pkg/logger"
	"github.com/okian/sentiment/pkg/metrics"
	"gorm.io/driver/mysql"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

// Supported drivers.
const (
	DriverSQLite = "sqlite"
	DriverMySQL  = "mysql"
)

const (
	defaultMaxOpenConns    = 25
	defaultMaxIdleConns    = 5
	defaultConnMaxLifetime = 30 * time.Minute
	defaultSlowThreshold   = 200 * time.Millisecond
)

// analysisRow is the persisted shape of analysis.Record.
type analysisRow struct {
	ID           int64     `gorm:"column:id;primaryKey;autoIncrement"`
	OriginalText string    `gorm:"column:original_text;type:text;not null"`
	ModelType    string    `gorm:"column:model_type;size:20;not null;index"`
	Prediction   string    `gorm:"column:prediction;size:50;not null;index"`
	Probability  float64   `gorm:"column:probability;not null"`
	Lang         *string   `gorm:"column:lang;size:10"`
	CreatedAt    time.Time `gorm:"column:created_at;not null;index"`
}

func (analysisRow) TableName() string { return "sentiment_analysis" }

func (r analysisRow) toRecord() analysis.Record {
	return analysis.Record{
		ID:           r.ID,
		OriginalText: r.OriginalText,
		ModelType:    r.ModelType,
		Prediction:   r.Prediction,
		Probability:  r.Probability,
		Language:     r.Lang,
		CreatedAt:    r.CreatedAt.UTC(),
	}
}

// GormStore implements Store on GORM over SQLite or MySQL.
type GormStore struct {
	db      *gorm.DB
	dialect string
	clock   Clock
	log     logger.Logger

	maxOpenConns    int
	maxIdleConns    int
	connMaxLifetime time.Duration
	slowThreshold   time.Duration
}

var _ Store = (*GormStore)(nil)

// Open connects to the database and verifies the connection. The schema is
// not touched; call Migrate for that.
func Open(ctx context.Context, driver, dsn string, opts ...Option) (*GormStore, error) {
	s := &GormStore{
		clock:           systemClock{},
		log:             logger.Nop(),
		maxOpenConns:    defaultMaxOpenConns,
		maxIdleConns:    defaultMaxIdleConns,
		connMaxLifetime: defaultConnMaxLifetime,
		slowThreshold:   defaultSlowThreshold,
	}
	for _, opt := range opts {
		opt(s)
	}

	var dialector gorm.Dialector
	switch driver {
	case DriverSQLite:
		dialector = sqlite.Open(dsn)
	case DriverMySQL:
		dialector = mysql.Open(dsn)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedDriver, driver)
	}

	db, err := gorm.Open(dialector, &gorm.Config{
		Logger:         newGormLogger(s.log, s.slowThreshold),
		TranslateError: true,
		NowFunc:        s.now,
	})
	if err != nil {
		return nil, &StoreError{Op: "open", Kind: KindIO, Err: err}
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, &StoreError{Op: "open", Kind: KindIO, Err: err}
	}
	if driver == DriverSQLite && strings.Contains(dsn, ":memory:") {
		// Each connection to :memory: is its own database.
		sqlDB.SetMaxOpenConns(1)
		sqlDB.SetMaxIdleConns(1)
		sqlDB.SetConnMaxLifetime(0)
	} else {
		sqlDB.SetMaxOpenConns(s.maxOpenConns)
		sqlDB.SetMaxIdleConns(min(s.maxIdleConns, s.maxOpenConns))
		sqlDB.SetConnMaxLifetime(s.connMaxLifetime)
	}

	s.db = db
	s.dialect = db.Dialector.Name()
	if err := s.Ping(ctx); err != nil {
		_ = sqlDB.Close()
		return nil, err
	}
	s.log.Info(ctx, "analysis store opened", logger.String("driver", s.dialect))
	return s, nil
}

// Migrate creates or updates the sentiment_analysis table.
func (s *GormStore) Migrate(ctx context.Context) error {
	if err := s.db.WithContext(ctx).AutoMigrate(&analysisRow{}); err != nil {
		return s.fail(ctx, "migrate", err)
	}
	return nil
}

func (s *GormStore) Insert(ctx context.Context, rec *analysis.Record) error {
	defer s.observe("insert", time.Now())

	row := analysisRow{
		OriginalText: rec.OriginalText,
		ModelType:    rec.ModelType,
		Prediction:   rec.Prediction,
		Probability:  rec.Probability,
		Lang:         rec.Language,
		CreatedAt:    s.now(),
	}
	if err := s.db.WithContext(ctx).Create(&row).Error; err != nil {
		return s.fail(ctx, "insert", err)
	}
	rec.ID = row.ID
	rec.CreatedAt = row.CreatedAt
	return nil
}

func (s *GormStore) FindPage(ctx context.Context, req analysis.PageRequest) (analysis.Page, error) {
	defer s.observe("find_page", time.Now())

	if req.Size <= 0 {
		req.Size = 1
	}
	if req.Page < 0 {
		req.Page = 0
	}

	var total int64
	if err := s.db.WithContext(ctx).Model(&analysisRow{}).Count(&total).Error; err != nil {
		return analysis.Page{}, s.fail(ctx, "find_page", err)
	}

	var rows []analysisRow
	err := s.db.WithContext(ctx).
		Order("created_at DESC").
		Order("id DESC").
		Offset(req.Offset()).
		Limit(req.Size).
		Find(&rows).Error
	if err != nil {
		return analysis.Page{}, s.fail(ctx, "find_page", err)
	}

	page := analysis.Page{
		Records:       make([]analysis.Record, 0, len(rows)),
		Page:          req.Page,
		Size:          req.Size,
		TotalElements: total,
		TotalPages:    analysis.TotalPages(total, req.Size),
	}
	for _, r := range rows {
		page.Records = append(page.Records, r.toRecord())
	}
	return page, nil
}

func (s *GormStore) CountTotal(ctx context.Context) (int64, error) {
	defer s.observe("count_total", time.Now())
	var n int64
	if err := s.db.WithContext(ctx).Model(&analysisRow{}).Count(&n).Error; err != nil {
		return 0, s.fail(ctx, "count_total", err)
	}
	return n, nil
}

func (s *GormStore) CountByPrediction(ctx context.Context, label string) (int64, error) {
	defer s.observe("count_by_prediction", time.Now())
	var n int64
	if err := s.db.WithContext(ctx).Model(&analysisRow{}).Where("prediction = ?", label).Count(&n).Error; err != nil {
		return 0, s.fail(ctx, "count_by_prediction", err)
	}
	return n, nil
}

func (s *GormStore) CountByModelType(ctx context.Context, model string) (int64, error) {
	defer s.observe("count_by_model", time.Now())
	var n int64
	if err := s.db.WithContext(ctx).Model(&analysisRow{}).Where("model_type = ?", model).Count(&n).Error; err != nil {
		return 0, s.fail(ctx, "count_by_model", err)
	}
	return n, nil
}

func (s *GormStore) CountByConfidence(ctx context.Context, threshold float64) (analysis.ConfidenceSplit, error) {
	defer s.observe("count_by_confidence", time.Now())
	var out analysis.ConfidenceSplit
	err := s.db.WithContext(ctx).Model(&analysisRow{}).
		Select("COALESCE(SUM(CASE WHEN probability >= ? THEN 1 ELSE 0 END), 0) AS high, "+
			"COALESCE(SUM(CASE WHEN probability < ? THEN 1 ELSE 0 END), 0) AS rest", threshold, threshold).
		Scan(&out).Error
	if err != nil {
		return analysis.ConfidenceSplit{}, s.fail(ctx, "count_by_confidence", err)
	}
	return out, nil
}

func (s *GormStore) CountByTextLength(ctx context.Context, shortMax, longMin int) (analysis.LengthBuckets, error) {
	defer s.observe("count_by_length", time.Now())
	l := s.lengthExpr("original_text")
	var out struct {
		ShortCount  int64
		MediumCount int64
		LongCount   int64
	}
	err := s.db.WithContext(ctx).Model(&analysisRow{}).
		Select(fmt.Sprintf("COALESCE(SUM(CASE WHEN %[1]s < ? THEN 1 ELSE 0 END), 0) AS short_count, "+
			"COALESCE(SUM(CASE WHEN %[1]s >= ? AND %[1]s <= ? THEN 1 ELSE 0 END), 0) AS medium_count, "+
			"COALESCE(SUM(CASE WHEN %[1]s > ? THEN 1 ELSE 0 END), 0) AS long_count", l),
			shortMax, shortMax, longMin, longMin).
		Scan(&out).Error
	if err != nil {
		return analysis.LengthBuckets{}, s.fail(ctx, "count_by_length", err)
	}
	return analysis.LengthBuckets{Short: out.ShortCount, Medium: out.MediumCount, Long: out.LongCount}, nil
}

func (s *GormStore) LanguageCounts(ctx context.Context) ([]analysis.LabelCount, error) {
	defer s.observe("language_counts", time.Now())
	var out []analysis.LabelCount
	err := s.db.WithContext(ctx).Model(&analysisRow{}).
		Select("lang AS label, COUNT(*) AS count").
		Where("lang IS NOT NULL AND lang <> ''").
		Group("lang").
		Order("count DESC").
		Order("label").
		Scan(&out).Error
	if err != nil {
		return nil, s.fail(ctx, "language_counts", err)
	}
	return out, nil
}

func (s *GormStore) HourlyCounts(ctx context.Context) ([]analysis.LabelCount, error) {
	defer s.observe("hourly_counts", time.Now())
	hour := s.hourExpr("created_at")
	var out []analysis.LabelCount
	err := s.db.WithContext(ctx).Model(&analysisRow{}).
		Select(hour + " AS label, COUNT(*) AS count").
		Group(hour).
		Order("label").
		Scan(&out).Error
	if err != nil {
		return nil, s.fail(ctx, "hourly_counts", err)
	}
	return out, nil
}

func (s *GormStore) DailyCounts(ctx context.Context) ([]analysis.LabelCount, error) {
	defer s.observe("daily_counts", time.Now())
	day := s.dayExpr("created_at")
	var out []analysis.LabelCount
	err := s.db.WithContext(ctx).Model(&analysisRow{}).
		Select(day + " AS label, COUNT(*) AS count").
		Group(day).
		Order("label").
		Scan(&out).Error
	if err != nil {
		return nil, s.fail(ctx, "daily_counts", err)
	}
	return out, nil
}

func (s *GormStore) ModelSentimentCounts(ctx context.Context) ([]analysis.ModelSentimentCount, error) {
	defer s.observe("model_sentiment_counts", time.Now())
	var out []analysis.ModelSentimentCount
	err := s.db.WithContext(ctx).Model(&analysisRow{}).
		Select("model_type AS model, prediction AS sentiment, COUNT(*) AS count").
		Group("model_type, prediction").
		Scan(&out).Error
	if err != nil {
		return nil, s.fail(ctx, "model_sentiment_counts", err)
	}
	return out, nil
}

func (s *GormStore) AverageConfidence(ctx context.Context, labels []string) ([]analysis.LabelAverage, error) {
	if len(labels) == 0 {
		return nil, nil
	}
	defer s.observe("average_confidence", time.Now())
	var out []analysis.LabelAverage
	err := s.db.WithContext(ctx).Model(&analysisRow{}).
		Select("prediction AS label, AVG(probability) AS average").
		Where("prediction IN ?", labels).
		Group("prediction").
		Scan(&out).Error
	if err != nil {
		return nil, s.fail(ctx, "average_confidence", err)
	}
	return out, nil
}

func (s *GormStore) Ping(ctx context.Context) error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return s.fail(ctx, "ping", err)
	}
	if err := sqlDB.PingContext(ctx); err != nil {
		return s.fail(ctx, "ping", err)
	}
	return nil
}

func (s *GormStore) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return &StoreError{Op: "close", Kind: KindIO, Err: err}
	}
	if err := sqlDB.Close(); err != nil {
		return &StoreError{Op: "close", Kind: KindIO, Err: err}
	}
	return nil
}

// now returns the creation timestamp for new rows. Stored in UTC at
// millisecond precision so both engines round-trip it unchanged.
func (s *GormStore) now() time.Time {
	return s.clock.Now().UTC().Truncate(time.Millisecond)
}

func (s *GormStore) hourExpr(col string) string {
	if s.dialect == DriverMySQL {
		return fmt.Sprintf("DATE_FORMAT(%s, '%%H')", col)
	}
	return fmt.Sprintf("strftime('%%H', %s)", col)
}

func (s *GormStore) dayExpr(col string) string {
	if s.dialect == DriverMySQL {
		return fmt.Sprintf("DATE_FORMAT(%s, '%%Y-%%m-%%d')", col)
	}
	return fmt.Sprintf("date(%s)", col)
}

func (s *GormStore) lengthExpr(col string) string {
	if s.dialect == DriverMySQL {
		return fmt.Sprintf("CHAR_LENGTH(%s)", col)
	}
	return fmt.Sprintf("LENGTH(%s)", col)
}

func (s *GormStore) observe(op string, start time.Time) {
	metrics.RecordStoreQuery(op, time.Since(start).Seconds())
}

func (s *GormStore) fail(ctx context.Context, op string, err error) error {
	kind := classify(err)
	metrics.RecordStoreError(op, kind.String())
	s.log.Warn(ctx, "store operation failed",
		logger.String("op", op),
		logger.String("kind", kind.String()),
		logger.Error(err))
	return &StoreError{Op: op, Kind: kind, Err: err}
}
