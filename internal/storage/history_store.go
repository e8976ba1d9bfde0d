// internal/storage/history_store.go
package storage

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	apperrors "github.com/digimarketingai/keyterms-server/internal/errors"
	"github.com/digimarketingai/keyterms-server/internal/models"
)

// HistoryStore 把提取记录持久化为JSON文件
// 每条记录一个文件 <baseDir>/extractions/<id>.json，写入走临时文件加重命名
type HistoryStore struct {
	baseDir string

	// 文件级别锁 path -> *sync.RWMutex
	fileLocks sync.Map
}

// NewHistoryStore 创建历史记录存储
func NewHistoryStore(baseDir string) (*HistoryStore, error) {
	dir := filepath.Join(baseDir, "extractions")
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("创建存储目录失败: %w", err)
	}

	return &HistoryStore{baseDir: dir}, nil
}

func (s *HistoryStore) getFileLock(path string) *sync.RWMutex {
	value, _ := s.fileLocks.LoadOrStore(path, &sync.RWMutex{})
	return value.(*sync.RWMutex)
}

func (s *HistoryStore) recordPath(id string) (string, error) {
	// 记录ID来自uuid，路径分隔符意味着伪造的ID
	if id == "" || strings.ContainsAny(id, `/\`) || strings.Contains(id, "..") {
		return "", apperrors.NewValidationError("无效的记录ID", nil)
	}
	return filepath.Join(s.baseDir, id+".json"), nil
}

// Save 保存一条提取记录
func (s *HistoryStore) Save(record *models.ExtractionRecord) error {
	path, err := s.recordPath(record.ID)
	if err != nil {
		return err
	}

	data, err := json.MarshalIndent(record, "", "  ")
	if err != nil {
		return fmt.Errorf("序列化记录失败: %w", err)
	}

	lock := s.getFileLock(path)
	lock.Lock()
	defer lock.Unlock()

	// 原子性文件写入
	tempPath := path + ".tmp"
	if err := os.WriteFile(tempPath, data, 0644); err != nil {
		return fmt.Errorf("保存临时文件失败: %w", err)
	}
	if err := os.Rename(tempPath, path); err != nil {
		os.Remove(tempPath)
		return fmt.Errorf("替换记录文件失败: %w", err)
	}

	return nil
}

// Get 按ID读取一条提取记录
func (s *HistoryStore) Get(id string) (*models.ExtractionRecord, error) {
	path, err := s.recordPath(id)
	if err != nil {
		return nil, err
	}

	lock := s.getFileLock(path)
	lock.RLock()
	defer lock.RUnlock()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, apperrors.NewNotFoundError("提取记录不存在: "+id, err)
		}
		return nil, fmt.Errorf("读取记录失败: %w", err)
	}

	var record models.ExtractionRecord
	if err := json.Unmarshal(data, &record); err != nil {
		return nil, fmt.Errorf("解析记录失败: %w", err)
	}

	return &record, nil
}

// List 返回所有提取记录，按创建时间倒序
func (s *HistoryStore) List() ([]*models.ExtractionRecord, error) {
	entries, err := os.ReadDir(s.baseDir)
	if err != nil {
		return nil, fmt.Errorf("读取存储目录失败: %w", err)
	}

	records := make([]*models.ExtractionRecord, 0, len(entries))
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || !strings.HasSuffix(name, ".json") {
			continue
		}

		record, err := s.Get(strings.TrimSuffix(name, ".json"))
		if err != nil {
			// 单个损坏的文件不影响列表整体
			continue
		}
		records = append(records, record)
	}

	sort.Slice(records, func(i, j int) bool {
		return records[i].CreatedAt.After(records[j].CreatedAt)
	})

	return records, nil
}

// Delete 删除一条提取记录
func (s *HistoryStore) Delete(id string) error {
	path, err := s.recordPath(id)
	if err != nil {
		return err
	}

	lock := s.getFileLock(path)
	lock.Lock()
	defer lock.Unlock()

	if err := os.Remove(path); err != nil {
		if os.IsNotExist(err) {
			return apperrors.NewNotFoundError("提取记录不存在: "+id, err)
		}
		return fmt.Errorf("删除记录失败: %w", err)
	}

	s.fileLocks.Delete(path)
	return nil
}
