// Package housekeeping 周期性维护任务
package housekeeping

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/tokmz/advisor/pkg/logger"
)

const tracerName = "advisor.housekeeping"

var (
	// ErrAlreadyStarted 调度器已启动
	ErrAlreadyStarted = errors.New("housekeeping: scheduler already started")
	// ErrInvalidJob 任务缺少名称或执行函数
	ErrInvalidJob = errors.New("housekeeping: job requires name and run func")
)

// Job 周期任务
type Job struct {
	Name string
	Spec string // cron 表达式（含秒）或 @every 描述
	Run  func(ctx context.Context) error

	// RunOnStart 启动时先执行一次
	RunOnStart bool
	// Timeout 单次执行超时，0 表示不限制
	Timeout time.Duration
}

// Scheduler 基于 cron 的任务调度器，同一任务不会并发执行
type Scheduler struct {
	cron *cron.Cron
	log  logger.Logger

	mu      sync.Mutex
	jobs    []Job
	started bool
	ctx     context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup
}

// New 创建调度器
func New(log logger.Logger) *Scheduler {
	if log == nil {
		log = logger.Nop()
	}
	return &Scheduler{
		cron: cron.New(
			cron.WithSeconds(),
			cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger)),
		),
		log: log.Named("housekeeping"),
	}
}

// Add 注册任务，需在 Start 之前调用
func (s *Scheduler) Add(job Job) error {
	if job.Name == "" || job.Run == nil {
		return ErrInvalidJob
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.started {
		return ErrAlreadyStarted
	}

	if _, err := s.cron.AddFunc(job.Spec, func() { s.execute(job) }); err != nil {
		return fmt.Errorf("housekeeping: job %s: invalid spec %q: %w", job.Name, job.Spec, err)
	}
	s.jobs = append(s.jobs, job)
	return nil
}

// Start 启动调度，RunOnStart 的任务在后台立即执行一次
func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.started {
		return ErrAlreadyStarted
	}
	s.started = true
	s.ctx, s.cancel = context.WithCancel(context.WithoutCancel(ctx))

	for _, job := range s.jobs {
		if !job.RunOnStart {
			continue
		}
		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			s.execute(job)
		}()
	}

	s.cron.Start()
	s.log.Info("scheduler started", zap.Int("jobs", len(s.jobs)))
	return nil
}

// Stop 停止调度并等待执行中的任务结束，ctx 到期时取消执行中的任务
func (s *Scheduler) Stop(ctx context.Context) error {
	s.mu.Lock()
	if !s.started {
		s.mu.Unlock()
		return nil
	}
	s.started = false
	s.mu.Unlock()

	done := make(chan struct{})
	go func() {
		<-s.cron.Stop().Done()
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		s.cancel()
		return nil
	case <-ctx.Done():
		s.cancel()
		<-done
		return ctx.Err()
	}
}

func (s *Scheduler) execute(job Job) {
	ctx := s.ctx
	if job.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, job.Timeout)
		defer cancel()
	}

	ctx, span := otel.Tracer(tracerName).Start(ctx, "housekeeping.run",
		trace.WithAttributes(attribute.String("job.name", job.Name)),
	)
	defer span.End()

	start := time.Now()
	err := job.Run(ctx)
	elapsed := time.Since(start)
	span.SetAttributes(attribute.Int64("job.duration_ms", elapsed.Milliseconds()))

	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		s.log.WarnContext(ctx, "job failed",
			zap.String("job", job.Name), zap.Duration("elapsed", elapsed), zap.Error(err))
		return
	}
	span.SetStatus(codes.Ok, "completed")
	s.log.DebugContext(ctx, "job completed", zap.String("job", job.Name), zap.Duration("elapsed", elapsed))
}
