// services/completion_store.go
package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"boostgram-api/models"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// CompletionStore is the append-only ledger of offer completions.
type CompletionStore interface {
	Save(ctx context.Context, rec *models.CompletionRecord) error
	// FindRecent returns completions at or after since matching the username,
	// the ip or the fingerprint, newest first. Empty ip/fingerprint never match.
	FindRecent(ctx context.Context, username, ip, fingerprint string, since time.Time) ([]models.CompletionRecord, error)
	FindByUsername(ctx context.Context, username string) ([]models.CompletionRecord, error)
	List(ctx context.Context, offset, limit int) ([]models.CompletionRecord, int64, error)
	Count(ctx context.Context) (int64, error)
}

// --- Database backend ---

type GormCompletionStore struct {
	DB *gorm.DB
}

func NewGormCompletionStore(db *gorm.DB) *GormCompletionStore {
	return &GormCompletionStore{DB: db}
}

func (s *GormCompletionStore) Save(ctx context.Context, rec *models.CompletionRecord) error {
	return s.DB.WithContext(ctx).Create(rec).Error
}

func (s *GormCompletionStore) FindRecent(ctx context.Context, username, ip, fingerprint string, since time.Time) ([]models.CompletionRecord, error) {
	match := s.DB.Where("instagram_username = ?", username)
	if ip != "" && ip != "unknown" {
		match = match.Or("ip_address = ?", ip)
	}
	if fingerprint != "" {
		match = match.Or("device_fingerprint = ?", fingerprint)
	}

	var out []models.CompletionRecord
	err := s.DB.WithContext(ctx).
		Where("completion_time >= ?", since).
		Where(match).
		Order("completion_time DESC").
		Find(&out).Error
	return out, err
}

func (s *GormCompletionStore) FindByUsername(ctx context.Context, username string) ([]models.CompletionRecord, error) {
	var out []models.CompletionRecord
	err := s.DB.WithContext(ctx).
		Where("instagram_username = ?", username).
		Order("completion_time DESC").
		Find(&out).Error
	return out, err
}

func (s *GormCompletionStore) List(ctx context.Context, offset, limit int) ([]models.CompletionRecord, int64, error) {
	var total int64
	if err := s.DB.WithContext(ctx).Model(&models.CompletionRecord{}).Count(&total).Error; err != nil {
		return nil, 0, err
	}
	var out []models.CompletionRecord
	q := s.DB.WithContext(ctx).Order("completion_time DESC").Offset(offset)
	if limit > 0 {
		q = q.Limit(limit)
	}
	if err := q.Find(&out).Error; err != nil {
		return nil, 0, err
	}
	return out, total, nil
}

func (s *GormCompletionStore) Count(ctx context.Context) (int64, error) {
	var total int64
	err := s.DB.WithContext(ctx).Model(&models.CompletionRecord{}).Count(&total).Error
	return total, err
}

// --- JSON file backend ---

// FileCompletionStore keeps every record in a single pretty-printed JSON
// array. Suited to single-instance deployments only.
type FileCompletionStore struct {
	path string
	mu   sync.Mutex
}

func NewFileCompletionStore(path string) *FileCompletionStore {
	return &FileCompletionStore{path: path}
}

func (s *FileCompletionStore) read() ([]models.CompletionRecord, error) {
	data, err := os.ReadFile(s.path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read completions file: %w", err)
	}
	if len(data) == 0 {
		return nil, nil
	}
	var out []models.CompletionRecord
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, fmt.Errorf("decode completions file: %w", err)
	}
	return out, nil
}

func (s *FileCompletionStore) write(records []models.CompletionRecord) error {
	if err := os.MkdirAll(filepath.Dir(s.path), os.ModePerm); err != nil {
		return fmt.Errorf("create data dir: %w", err)
	}
	data, err := json.MarshalIndent(records, "", "  ")
	if err != nil {
		return err
	}
	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("write completions file: %w", err)
	}
	return os.Rename(tmp, s.path)
}

func (s *FileCompletionStore) Save(_ context.Context, rec *models.CompletionRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	records, err := s.read()
	if err != nil {
		return err
	}
	if rec.ID == "" {
		rec.ID = uuid.NewString()
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now()
	}
	records = append(records, *rec)
	return s.write(records)
}

func (s *FileCompletionStore) filter(keep func(models.CompletionRecord) bool) ([]models.CompletionRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	records, err := s.read()
	if err != nil {
		return nil, err
	}
	var out []models.CompletionRecord
	for _, r := range records {
		if keep(r) {
			out = append(out, r)
		}
	}
	sortNewestFirst(out)
	return out, nil
}

func (s *FileCompletionStore) FindRecent(_ context.Context, username, ip, fingerprint string, since time.Time) ([]models.CompletionRecord, error) {
	return s.filter(func(r models.CompletionRecord) bool {
		if r.CompletionTime.Before(since) {
			return false
		}
		return r.InstagramUsername == username ||
			(ip != "" && ip != "unknown" && r.IPAddress == ip) ||
			(fingerprint != "" && r.DeviceFingerprint == fingerprint)
	})
}

func (s *FileCompletionStore) FindByUsername(_ context.Context, username string) ([]models.CompletionRecord, error) {
	return s.filter(func(r models.CompletionRecord) bool {
		return r.InstagramUsername == username
	})
}

func (s *FileCompletionStore) List(_ context.Context, offset, limit int) ([]models.CompletionRecord, int64, error) {
	all, err := s.filter(func(models.CompletionRecord) bool { return true })
	if err != nil {
		return nil, 0, err
	}
	total := int64(len(all))
	if offset >= len(all) {
		return []models.CompletionRecord{}, total, nil
	}
	end := len(all)
	if limit > 0 && offset+limit < end {
		end = offset + limit
	}
	return all[offset:end], total, nil
}

func (s *FileCompletionStore) Count(ctx context.Context) (int64, error) {
	_, total, err := s.List(ctx, 0, 0)
	return total, err
}

func sortNewestFirst(records []models.CompletionRecord) {
	sort.SliceStable(records, func(i, j int) bool {
		return records[i].CompletionTime.After(records[j].CompletionTime)
	})
}
