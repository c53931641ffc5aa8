// Package journal 把下单和成交事件异步写入事件仓库。
// 日志只用于审计，启动时不会回放。
package journal

import (
	"errors"
	"grid-trader-go/internal/models"
	"grid-trader-go/internal/persistence"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// ErrQueueFull 表示写入队列已满，事件被丢弃
var ErrQueueFull = errors.New("journal queue is full")

// ErrStopped 表示 Journal 已停止
var ErrStopped = errors.New("journal is stopped")

// Journal 实现 orderbook.EventSink。事件先进入缓冲队列，由后台 goroutine 串行写入仓库，
// 下单路径不会被磁盘 IO 阻塞。
type Journal struct {
	repo      persistence.EventRepository
	sessionID string
	queue     chan *persistence.Entry
	stopChan  chan struct{}
	wg        sync.WaitGroup
	logger    *zap.Logger

	mu      sync.Mutex
	seq     uint64
	stopped bool
	now     func() time.Time
}

// New creates a Journal. An empty sessionID is replaced by a random UUID.
func New(repo persistence.EventRepository, sessionID string, logger *zap.Logger) *Journal {
	if sessionID == "" {
		sessionID = uuid.NewString()
	}
	return &Journal{
		repo:      repo,
		sessionID: sessionID,
		queue:     make(chan *persistence.Entry, 1024),
		stopChan:  make(chan struct{}),
		logger:    logger,
		now:       time.Now,
	}
}

// SessionID 返回本次运行的会话编号
func (j *Journal) SessionID() string {
	return j.sessionID
}

// Start begins the persistence loop.
func (j *Journal) Start() {
	j.wg.Add(1)
	go j.persistenceLoop()
	j.logger.Sugar().Infof("Journal started, session %s", j.sessionID)
}

// Stop 停止接收新事件，写完队列中剩余的条目后返回
func (j *Journal) Stop() {
	j.mu.Lock()
	if j.stopped {
		j.mu.Unlock()
		return
	}
	j.stopped = true
	close(j.stopChan)
	j.mu.Unlock()

	j.wg.Wait()
	j.logger.Sugar().Info("Journal stopped.")
}

func (j *Journal) RecordPlacement(event models.PlacementEvent) error {
	return j.enqueue(&persistence.Entry{Kind: persistence.KindPlacement, Time: event.Time, Placement: &event})
}

func (j *Journal) RecordFill(event models.FillEvent) error {
	return j.enqueue(&persistence.Entry{Kind: persistence.KindFill, Time: event.Time, Fill: &event})
}

// Entries 返回本会话已落盘的条目
func (j *Journal) Entries() ([]persistence.Entry, error) {
	return j.repo.List(j.sessionID)
}

func (j *Journal) enqueue(entry *persistence.Entry) error {
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.stopped {
		return ErrStopped
	}
	if entry.Time.IsZero() {
		entry.Time = j.now()
	}
	j.seq++
	entry.Seq = j.seq

	select {
	case j.queue <- entry:
		return nil
	default:
		return ErrQueueFull
	}
}

// persistenceLoop handles the asynchronous saving of entries.
func (j *Journal) persistenceLoop() {
	defer j.wg.Done()
	for {
		select {
		case entry := <-j.queue:
			j.save(entry)
		case <-j.stopChan:
			// 停止前写完剩余条目
			for {
				select {
				case entry := <-j.queue:
					j.save(entry)
				default:
					return
				}
			}
		}
	}
}

func (j *Journal) save(entry *persistence.Entry) {
	if err := j.repo.Append(j.sessionID, entry); err != nil {
		j.logger.Sugar().Errorf("CRITICAL: Failed to save journal entry %d: %v", entry.Seq, err)
	}
}
