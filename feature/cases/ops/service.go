package ops

import (
	"context"
	"fmt"
	"io"
	"strings"

	"case-reconciler/core/storage"
	"case-reconciler/feature/cases/models"

	"github.com/minio/minio-go/v7"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// archivePrefix is where the ingest driver stores raw case records.
const archivePrefix = "cases/"

// ErrUnavailable is returned when a backing store the endpoint needs was not
// configured at startup.
var ErrUnavailable = fmt.Errorf("backing store not configured")

// Service reads run history from the database and archived case records from
// object storage. Either backend may be absent.
type Service struct {
	db     *gorm.DB
	client storage.Client
	bucket string
	logger *zap.Logger
}

// NewService creates a new ops service.
func NewService(db *gorm.DB, client storage.Client, bucket string, logger *zap.Logger) *Service {
	return &Service{
		db:     db,
		client: client,
		bucket: bucket,
		logger: logger,
	}
}

// RecentRuns returns the most recent reconciliation runs, newest first.
func (s *Service) RecentRuns(ctx context.Context, limit int) ([]models.RunRecord, error) {
	if s.db == nil {
		return nil, ErrUnavailable
	}
	var runs []models.RunRecord
	err := s.db.WithContext(ctx).
		Order("started_at DESC").
		Limit(limit).
		Find(&runs).Error
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	return runs, nil
}

// Run returns a single run by its run id.
func (s *Service) Run(ctx context.Context, runID string) (*models.RunRecord, error) {
	if s.db == nil {
		return nil, ErrUnavailable
	}
	var run models.RunRecord
	err := s.db.WithContext(ctx).Where("run_id = ?", runID).First(&run).Error
	if err != nil {
		return nil, err
	}
	return &run, nil
}

// ArchivedCases lists the request ids with an archived raw record.
func (s *Service) ArchivedCases(ctx context.Context) ([]string, error) {
	if s.client == nil {
		return nil, ErrUnavailable
	}
	ids := []string{}
	objects := s.client.ListObjects(ctx, s.bucket, minio.ListObjectsOptions{Prefix: archivePrefix, Recursive: true})
	for obj := range objects {
		if obj.Err != nil {
			return nil, fmt.Errorf("list archived cases: %w", obj.Err)
		}
		name := strings.TrimPrefix(obj.Key, archivePrefix)
		name = strings.TrimSuffix(name, ".json")
		if name != "" {
			ids = append(ids, name)
		}
	}
	return ids, nil
}

// ArchivedCase streams the raw record archived for one request id.
func (s *Service) ArchivedCase(ctx context.Context, requestID string) (io.ReadCloser, error) {
	if s.client == nil {
		return nil, ErrUnavailable
	}
	name := archivePrefix + requestID + ".json"
	reader, err := s.client.GetObject(ctx, s.bucket, name, minio.GetObjectOptions{})
	if err != nil {
		return nil, fmt.Errorf("fetch archived case %s: %w", requestID, err)
	}
	return reader, nil
}
