package store

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/pivolan/entropy_analyzer/domain/models"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
	"gorm.io/driver/mysql"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// RecordRow is one analysed file.
type RecordRow struct {
	Seq      uint     `gorm:"primaryKey;autoIncrement"`
	UniqueID string   `gorm:"type:varchar(36);index:idx_unique_id"`
	FileName string   `gorm:"type:varchar(512)"`
	MDS      *float64 `gorm:"column:mds"`
	TDS      *float64 `gorm:"column:tds"`
	Overall  *float64 `gorm:"column:overall_score"`
	Created  time.Time
}

func (RecordRow) TableName() string { return "records" }

// MetricRow is the entropy summary of one attribute of a record.
type MetricRow struct {
	Seq       uint   `gorm:"primaryKey;autoIncrement"`
	RecordSeq uint   `gorm:"index:idx_record_seq"`
	Attribute string `gorm:"type:varchar(128)"`
	Entropy   float64
	Distinct  int `gorm:"column:distinct_count"`
	Score     float64
	Missing   models.MetricField `gorm:"column:missing_fields"`
}

func (MetricRow) TableName() string { return "record_metrics" }

// SQLStore keeps records in a relational database through gorm.
type SQLStore struct {
	db *gorm.DB

	mu       sync.Mutex
	migrated bool
}

// NewSQLStore opens the database named by dsn. Supported schemes are
// mysql:// and sqlite://, everything after the scheme is handed to the driver.
func NewSQLStore(dsn string) (*SQLStore, error) {
	dialector, err := dialectorFor(dsn)
	if err != nil {
		return nil, err
	}
	db, err := gorm.Open(dialector, &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, errors.Wrap(err, "opening database")
	}
	return &SQLStore{db: db}, nil
}

func dialectorFor(dsn string) (gorm.Dialector, error) {
	scheme, rest, ok := strings.Cut(dsn, "://")
	if !ok || rest == "" {
		return nil, errors.Errorf("invalid database dsn %q", dsn)
	}
	switch strings.ToLower(scheme) {
	case "mysql":
		return mysql.Open(rest), nil
	case "sqlite", "sqlite3":
		return sqlite.Open(rest), nil
	}
	return nil, errors.Errorf("unsupported database scheme %q", scheme)
}

// migrate creates the tables once per store lifetime, and again after DeleteAll.
func (s *SQLStore) migrate(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.migrated {
		return nil
	}
	if err := s.db.WithContext(ctx).AutoMigrate(&RecordRow{}, &MetricRow{}); err != nil {
		return errors.Wrap(err, "creating tables")
	}
	s.migrated = true
	return nil
}

func (s *SQLStore) Append(ctx context.Context, rec models.Record) error {
	if err := s.migrate(ctx); err != nil {
		return err
	}
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		row := RecordRow{
			UniqueID: rec.ID,
			FileName: rec.FileName,
			MDS:      rec.MDS,
			TDS:      rec.TDS,
			Overall:  rec.Overall,
			Created:  time.Now(),
		}
		if err := tx.Create(&row).Error; err != nil {
			return errors.Wrap(err, "inserting record")
		}
		if len(rec.Metrics) == 0 {
			return nil
		}
		metrics := make([]MetricRow, 0, len(rec.Metrics))
		for _, attr := range rec.Attributes() {
			m := rec.Metrics[attr]
			metrics = append(metrics, MetricRow{
				RecordSeq: row.Seq,
				Attribute: attr,
				Entropy:   m.Entropy,
				Distinct:  m.Distinct,
				Score:     m.Score,
				Missing:   m.Missing,
			})
		}
		return errors.Wrap(tx.Create(&metrics).Error, "inserting metrics")
	})
}

func (s *SQLStore) ListAll(ctx context.Context) ([]models.Record, error) {
	ok, err := s.Exists(ctx)
	if err != nil || !ok {
		return []models.Record{}, err
	}
	db := s.db.WithContext(ctx)

	var rows []RecordRow
	if err := db.Order("seq").Find(&rows).Error; err != nil {
		return nil, readError(RecordRow{}.TableName(), err)
	}
	var metrics []MetricRow
	if err := db.Order("seq").Find(&metrics).Error; err != nil {
		return nil, readError(MetricRow{}.TableName(), err)
	}

	bySeq := make(map[uint]map[string]models.Metric, len(rows))
	for _, m := range metrics {
		if bySeq[m.RecordSeq] == nil {
			bySeq[m.RecordSeq] = make(map[string]models.Metric)
		}
		bySeq[m.RecordSeq][m.Attribute] = models.Metric{
			Entropy:  m.Entropy,
			Distinct: m.Distinct,
			Score:    m.Score,
			Missing:  m.Missing,
		}
	}

	records := make([]models.Record, 0, len(rows))
	for _, r := range rows {
		ms := bySeq[r.Seq]
		if ms == nil {
			ms = make(map[string]models.Metric)
		}
		records = append(records, models.Record{
			ID:        r.UniqueID,
			FileName:  r.FileName,
			Metrics:   ms,
			Composite: models.Composite{MDS: r.MDS, TDS: r.TDS, Overall: r.Overall},
		})
	}
	return records, nil
}

// readError keeps DataCorruptionError for stored values that cannot be
// scanned. Connection and driver failures are not the table's fault.
func readError(table string, err error) error {
	if strings.HasPrefix(err.Error(), "sql: Scan error") {
		return &DataCorruptionError{Source: table, Err: err}
	}
	return errors.Wrapf(err, "reading %s", table)
}

func (s *SQLStore) Delete(ctx context.Context, id string) (bool, error) {
	ok, err := s.Exists(ctx)
	if err != nil || !ok {
		return false, err
	}
	var deleted int64
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var seqs []uint
		if err := tx.Model(&RecordRow{}).Where("unique_id = ?", id).Pluck("seq", &seqs).Error; err != nil {
			return err
		}
		if len(seqs) == 0 {
			return nil
		}
		if err := tx.Where("record_seq IN ?", seqs).Delete(&MetricRow{}).Error; err != nil {
			return err
		}
		res := tx.Where("seq IN ?", seqs).Delete(&RecordRow{})
		deleted = res.RowsAffected
		return res.Error
	})
	if err != nil {
		return false, errors.Wrapf(err, "deleting record %s", id)
	}
	log.WithFields(log.Fields{"id": id, "removed": deleted}).Debug("deleting record")
	return deleted > 0, nil
}

func (s *SQLStore) DeleteAll(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	m := s.db.WithContext(ctx).Migrator()
	if err := m.DropTable(&MetricRow{}, &RecordRow{}); err != nil {
		return errors.Wrap(err, "dropping tables")
	}
	s.migrated = false
	return nil
}

// Exists pings the database first, HasTable alone reports false on a lost connection.
func (s *SQLStore) Exists(ctx context.Context) (bool, error) {
	sqlDB, err := s.db.DB()
	if err != nil {
		return false, errors.Wrap(err, "getting connection")
	}
	if err := sqlDB.PingContext(ctx); err != nil {
		return false, errors.Wrap(err, "connecting to database")
	}
	return s.db.WithContext(ctx).Migrator().HasTable(&RecordRow{}), nil
}

func (s *SQLStore) MigrateMissingIdentifier(ctx context.Context) (int, error) {
	ok, err := s.Exists(ctx)
	if err != nil || !ok {
		return 0, err
	}
	n := 0
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var seqs []uint
		if err := tx.Model(&RecordRow{}).Where("unique_id = '' OR unique_id IS NULL").Order("seq").Pluck("seq", &seqs).Error; err != nil {
			return err
		}
		for _, seq := range seqs {
			if err := tx.Model(&RecordRow{}).Where("seq = ?", seq).Update("unique_id", NewID()).Error; err != nil {
				return err
			}
			n++
		}
		return nil
	})
	if err != nil {
		return 0, errors.Wrap(err, "assigning identifiers")
	}
	return n, nil
}

func (s *SQLStore) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
