// internal/services/progress_service.go
package services

import (
	"context"
	"sync"
	"time"

	"github.com/digimarketingai/keyterms-server/internal/models"
)

// ProgressUpdate 表示进度更新
type ProgressUpdate struct {
	Progress int    `json:"progress"` // 进度百分比 (0-100)
	Message  string `json:"message"`  // 描述性消息
	Status   string `json:"status"`   // 状态：running, completed, failed, cancelled
}

// 任务状态
const (
	TaskStatusRunning   = "running"
	TaskStatusCompleted = "completed"
	TaskStatusFailed    = "failed"
	TaskStatusCancelled = "cancelled"
)

// ProgressTracker 跟踪一次异步提取任务的进度
type ProgressTracker struct {
	TaskID      string
	Progress    int
	Message     string
	Status      string
	StartTime   time.Time
	UpdateTime  time.Time
	Subscribers map[chan ProgressUpdate]bool
	Done        chan struct{}

	// 任务结束后保存结果或错误，供轮询接口读取
	Result *models.ExtractionRecord
	Err    error

	cancel context.CancelFunc
	mutex  sync.Mutex
}

// ProgressService 管理所有进度跟踪器
type ProgressService struct {
	trackers map[string]*ProgressTracker
	mutex    sync.RWMutex
}

// NewProgressService 创建进度服务实例
func NewProgressService() *ProgressService {
	return &ProgressService{
		trackers: make(map[string]*ProgressTracker),
	}
}

// CreateTracker 创建新的进度跟踪器
// cancel 在调用 Cancel 时触发，用于中止底层的提取请求
func (s *ProgressService) CreateTracker(taskID string, cancel context.CancelFunc) *ProgressTracker {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	if tracker, exists := s.trackers[taskID]; exists {
		return tracker
	}

	tracker := &ProgressTracker{
		TaskID:      taskID,
		Progress:    0,
		Message:     "任务初始化中...",
		Status:      TaskStatusRunning,
		StartTime:   time.Now(),
		UpdateTime:  time.Now(),
		Subscribers: make(map[chan ProgressUpdate]bool),
		Done:        make(chan struct{}),
		cancel:      cancel,
	}

	s.trackers[taskID] = tracker
	return tracker
}

// GetTracker 获取进度跟踪器
func (s *ProgressService) GetTracker(taskID string) (*ProgressTracker, bool) {
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	tracker, exists := s.trackers[taskID]
	return tracker, exists
}

// RemoveTracker 移除进度跟踪器
func (s *ProgressService) RemoveTracker(taskID string) {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	delete(s.trackers, taskID)
}

// CleanupFinished 清理结束超过 age 的任务
func (s *ProgressService) CleanupFinished(age time.Duration) int {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	removed := 0
	for id, tracker := range s.trackers {
		tracker.mutex.Lock()
		finished := tracker.Status != TaskStatusRunning
		stale := time.Since(tracker.UpdateTime) > age
		tracker.mutex.Unlock()

		if finished && stale {
			delete(s.trackers, id)
			removed++
		}
	}
	return removed
}

// UpdateProgress 更新任务进度
func (t *ProgressTracker) UpdateProgress(progress int, message string) {
	t.mutex.Lock()
	defer t.mutex.Unlock()

	if t.Status != TaskStatusRunning {
		return
	}

	if progress > t.Progress {
		t.Progress = progress
	}
	if message != "" {
		t.Message = message
	}
	t.UpdateTime = time.Now()

	t.notifyLocked()
}

// Complete 标记任务完成并保存结果
func (t *ProgressTracker) Complete(record *models.ExtractionRecord, message string) {
	t.mutex.Lock()
	defer t.mutex.Unlock()

	if t.Status != TaskStatusRunning {
		return
	}

	t.Progress = 100
	t.Status = TaskStatusCompleted
	t.Result = record
	if message != "" {
		t.Message = message
	} else {
		t.Message = "任务已完成"
	}
	t.UpdateTime = time.Now()

	t.notifyLocked()
	close(t.Done)
}

// Fail 标记任务失败
func (t *ProgressTracker) Fail(err error) {
	t.mutex.Lock()
	defer t.mutex.Unlock()

	if t.Status != TaskStatusRunning {
		return
	}

	t.Status = TaskStatusFailed
	t.Err = err
	if err != nil {
		t.Message = err.Error()
	} else {
		t.Message = "任务失败"
	}
	t.UpdateTime = time.Now()

	t.notifyLocked()
	close(t.Done)
}

// Cancel 取消任务，中止底层请求
func (t *ProgressTracker) Cancel() {
	t.mutex.Lock()

	if t.Status != TaskStatusRunning {
		t.mutex.Unlock()
		return
	}

	t.Status = TaskStatusCancelled
	t.Message = "任务已取消"
	t.UpdateTime = time.Now()

	t.notifyLocked()
	close(t.Done)
	cancel := t.cancel
	t.mutex.Unlock()

	if cancel != nil {
		cancel()
	}
}

// Snapshot 返回当前进度快照
func (t *ProgressTracker) Snapshot() ProgressUpdate {
	t.mutex.Lock()
	defer t.mutex.Unlock()

	return ProgressUpdate{
		Progress: t.Progress,
		Message:  t.Message,
		Status:   t.Status,
	}
}

// Subscribe 订阅进度更新，返回的通道在任务期间持续收到快照
func (t *ProgressTracker) Subscribe() chan ProgressUpdate {
	t.mutex.Lock()
	defer t.mutex.Unlock()

	ch := make(chan ProgressUpdate, 16)
	t.Subscribers[ch] = true

	// 先推送当前状态，订阅者无需等下一次更新
	ch <- ProgressUpdate{Progress: t.Progress, Message: t.Message, Status: t.Status}
	return ch
}

// Unsubscribe 取消订阅
func (t *ProgressTracker) Unsubscribe(ch chan ProgressUpdate) {
	t.mutex.Lock()
	defer t.mutex.Unlock()

	if t.Subscribers[ch] {
		delete(t.Subscribers, ch)
		close(ch)
	}
}

// notifyLocked 通知所有订阅者，调用方需持有锁
func (t *ProgressTracker) notifyLocked() {
	update := ProgressUpdate{
		Progress: t.Progress,
		Message:  t.Message,
		Status:   t.Status,
	}

	for subscriber := range t.Subscribers {
		// 非阻塞发送，如果通道已满则跳过
		select {
		case subscriber <- update:
		default:
		}
	}
}
