// Package scanner 后台扫描：为缺少变体的已完成图片补齐预设变体
package scanner

import (
	"context"
	"errors"
	"log"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/anoixa/asset-store/database/models"
	"github.com/anoixa/asset-store/database/repo/files"
	"github.com/anoixa/asset-store/internal/worker"
	"github.com/anoixa/asset-store/utils"
)

// Generator 扫描器依赖的变体能力
type Generator interface {
	Supports(file *models.File) bool
	MissingPresets(file *models.File) []string
	GenerateAll(ctx context.Context, fileID string) error
}

// Config 扫描参数
type Config struct {
	Interval    time.Duration
	BatchSize   int
	RPS         float64       // 每秒最多提交的任务数
	TaskTimeout time.Duration // 单个文件的生成超时
}

// Stats 单轮扫描统计
type Stats struct {
	Scanned   int
	Submitted int
	Skipped   int
}

// BackfillScanner 变体回填扫描器
type BackfillScanner struct {
	repo      files.RepositoryInterface
	generator Generator
	pool      *worker.Pool
	limiter   *rate.Limiter
	cfg       Config

	mu      sync.Mutex
	running bool
	cancel  context.CancelFunc
	done    chan struct{}
}

// NewBackfillScanner 创建扫描器
func NewBackfillScanner(repo files.RepositoryInterface, gen Generator, pool *worker.Pool, cfg Config) *BackfillScanner {
	if cfg.Interval <= 0 {
		cfg.Interval = time.Hour
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 100
	}
	if cfg.RPS <= 0 {
		cfg.RPS = 5
	}
	if cfg.TaskTimeout <= 0 {
		cfg.TaskTimeout = 5 * time.Minute
	}

	burst := int(cfg.RPS)
	if burst < 1 {
		burst = 1
	}

	return &BackfillScanner{
		repo:      repo,
		generator: gen,
		pool:      pool,
		limiter:   rate.NewLimiter(rate.Limit(cfg.RPS), burst),
		cfg:       cfg,
	}
}

// Start 启动定期扫描，立即执行一次
func (s *BackfillScanner) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running {
		return nil
	}
	if s.pool == nil || s.generator == nil {
		return errors.New("backfill scanner requires a worker pool and a generator")
	}

	ctx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel
	s.done = make(chan struct{})
	s.running = true

	go s.loop(ctx)
	log.Printf("[Backfill] scanner started, interval %v, %.1f tasks/s", s.cfg.Interval, s.cfg.RPS)
	return nil
}

// Stop 停止扫描并等待当前一轮结束
func (s *BackfillScanner) Stop() {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return
	}
	s.running = false
	s.cancel()
	done := s.done
	s.mu.Unlock()

	<-done
}

func (s *BackfillScanner) loop(ctx context.Context) {
	defer close(s.done)

	ticker := time.NewTicker(s.cfg.Interval)
	defer ticker.Stop()

	for {
		if _, err := s.RunOnce(ctx); err != nil && !errors.Is(err, context.Canceled) {
			log.Printf("[Backfill] scan failed: %v", err)
		}
		select {
		case <-ticker.C:
		case <-ctx.Done():
			return
		}
	}
}

// RunOnce 按 ID 游标扫描全部已完成图片，缺少变体的提交到任务池
func (s *BackfillScanner) RunOnce(ctx context.Context) (Stats, error) {
	var stats Stats
	cursor := ""

	for {
		batch, err := s.repo.ListCompletedImages(ctx, cursor, s.cfg.BatchSize)
		if err != nil {
			return stats, err
		}
		if len(batch) == 0 {
			break
		}

		for _, file := range batch {
			stats.Scanned++
			if !s.generator.Supports(file) || len(s.generator.MissingPresets(file)) == 0 {
				stats.Skipped++
				continue
			}

			if err := s.limiter.Wait(ctx); err != nil {
				return stats, err
			}
			if err := s.pool.SubmitWait(ctx, s.task(file.ID)); err != nil {
				return stats, err
			}
			stats.Submitted++
		}

		cursor = batch[len(batch)-1].ID
		if len(batch) < s.cfg.BatchSize {
			break
		}
	}

	utils.LogIfDevf("[Backfill] scanned=%d submitted=%d skipped=%d", stats.Scanned, stats.Submitted, stats.Skipped)
	return stats, nil
}

func (s *BackfillScanner) task(fileID string) func() {
	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), s.cfg.TaskTimeout)
		defer cancel()
		if err := s.generator.GenerateAll(ctx, fileID); err != nil {
			log.Printf("[Backfill] generate variants for %s failed: %v", fileID, err)
		}
	}
}
