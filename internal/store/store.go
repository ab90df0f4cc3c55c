// Package store is the relational persistence layer for documents, jobs
// and slide decks.
package store

import (
	"errors"
	"fmt"
	"strings"

	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/local/slidenode/internal/models"
)

// ErrNotFound is returned when a document or job row does not exist.
var ErrNotFound = errors.New("not found")

// Open connects to the database and migrates the schema. DSNs starting
// with postgres:// (or in key=value form) use Postgres, anything else is
// treated as a SQLite path.
func Open(dsn string) (*gorm.DB, error) {
	var dialector gorm.Dialector
	if strings.HasPrefix(dsn, "postgres://") || strings.HasPrefix(dsn, "postgresql://") || strings.Contains(dsn, "host=") {
		dialector = postgres.Open(dsn)
	} else {
		dialector = sqlite.Open(dsn)
	}

	db, err := gorm.Open(dialector, &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	if err := db.AutoMigrate(models.All()...); err != nil {
		return nil, fmt.Errorf("migrate schema: %w", err)
	}
	return db, nil
}

// Store wraps a gorm handle with the operations the pipeline needs.
type Store struct {
	db *gorm.DB
}

func New(db *gorm.DB) *Store { return &Store{db: db} }

func (s *Store) GetDocument(id string) (*models.Document, error) {
	var doc models.Document
	err := s.db.First(&doc, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("document %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	return &doc, nil
}

func (s *Store) GetJob(id string) (*models.Job, error) {
	var job models.Job
	err := s.db.First(&job, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("job %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	return &job, nil
}

func (s *Store) CreateDocument(doc *models.Document) error { return s.db.Create(doc).Error }
func (s *Store) CreateJob(job *models.Job) error           { return s.db.Create(job).Error }
func (s *Store) SaveDocument(doc *models.Document) error   { return s.db.Save(doc).Error }

func (s *Store) CreateDocumentImage(img *models.DocumentImage) error {
	return s.db.Create(img).Error
}

func (s *Store) SetDocumentStatus(doc *models.Document, status string) error {
	doc.Status = status
	return s.db.Save(doc).Error
}

func (s *Store) MarkJobRunning(job *models.Job) error {
	job.Status = models.JobRunning
	return s.db.Save(job).Error
}

// SetJobProgress advances progress. Regressions are ignored so progress
// stays monotonic.
func (s *Store) SetJobProgress(job *models.Job, p float64) error {
	if p <= job.Progress {
		return nil
	}
	job.Progress = p
	return s.db.Save(job).Error
}

func (s *Store) MarkJobDone(job *models.Job, metrics map[string]any) error {
	job.Status = models.JobDone
	job.Progress = 1.0
	job.Metrics = metrics
	return s.db.Save(job).Error
}

func (s *Store) MarkJobFailed(job *models.Job, code, detail string) error {
	job.Status = models.JobFailed
	job.ErrorCode = code
	job.ErrorDetail = detail
	return s.db.Save(job).Error
}
