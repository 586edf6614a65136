package schedule

import (
	"context"
	"fmt"
	"sync"
	"time"

	"surveysync/internal/features/syncjob"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

type ScheduleService interface {
	Create(ctx context.Context, sched *ScheduledSync) error
	Get(ctx context.Context, id string) (*ScheduledSync, error)
	List(ctx context.Context) ([]ScheduledSync, error)
	Update(ctx context.Context, id string, updates map[string]interface{}) error
	Delete(ctx context.Context, id string) error
	RunNow(ctx context.Context, id string) (syncjob.Progress, error)
	InitializeScheduler(ctx context.Context) error
	StopScheduler() error
}

type ScheduleServiceImpl struct {
	Repo    ScheduleRepository
	SyncSvc syncjob.SyncJobService
	Logger  *zap.Logger

	scheduler *cron.Cron
	entries   map[string]cron.EntryID
	mu        sync.Mutex
}

func NewScheduleService(repo ScheduleRepository, syncSvc syncjob.SyncJobService, logger *zap.Logger) ScheduleService {
	return &ScheduleServiceImpl{
		Repo:    repo,
		SyncSvc: syncSvc,
		Logger:  logger,
		entries: make(map[string]cron.EntryID),
	}
}

func (s *ScheduleServiceImpl) Create(ctx context.Context, sched *ScheduledSync) error {
	schedule, err := cron.ParseStandard(sched.Schedule)
	if err != nil {
		return fmt.Errorf("invalid cron expression: %w", err)
	}

	nextRun := schedule.Next(time.Now())
	sched.NextRun = &nextRun

	if err := s.Repo.Create(ctx, sched); err != nil {
		return err
	}

	if sched.Enabled {
		return s.register(sched)
	}
	return nil
}

func (s *ScheduleServiceImpl) Get(ctx context.Context, id string) (*ScheduledSync, error) {
	return s.Repo.Get(ctx, id)
}

func (s *ScheduleServiceImpl) List(ctx context.Context) ([]ScheduledSync, error) {
	return s.Repo.List(ctx)
}

func (s *ScheduleServiceImpl) Update(ctx context.Context, id string, updates map[string]interface{}) error {
	if expr, ok := updates["schedule"].(string); ok {
		if _, err := cron.ParseStandard(expr); err != nil {
			return fmt.Errorf("invalid cron expression: %w", err)
		}
	}

	if err := s.Repo.Update(ctx, id, updates); err != nil {
		return err
	}

	// Re-register with the fresh definition
	s.unregister(id)
	sched, err := s.Repo.Get(ctx, id)
	if err != nil {
		return err
	}
	if sched.Enabled {
		return s.register(sched)
	}
	return nil
}

func (s *ScheduleServiceImpl) Delete(ctx context.Context, id string) error {
	s.unregister(id)
	return s.Repo.Delete(ctx, id)
}

// RunNow starts the scheduled sync immediately, outside its cron cadence
func (s *ScheduleServiceImpl) RunNow(ctx context.Context, id string) (syncjob.Progress, error) {
	sched, err := s.Repo.Get(ctx, id)
	if err != nil {
		return syncjob.Progress{}, err
	}
	return s.start(ctx, sched)
}

func (s *ScheduleServiceImpl) InitializeScheduler(ctx context.Context) error {
	s.mu.Lock()
	s.scheduler = cron.New()
	s.mu.Unlock()

	scheds, err := s.Repo.ListEnabled(ctx)
	if err != nil {
		return err
	}
	for i := range scheds {
		if err := s.register(&scheds[i]); err != nil {
			s.Logger.Warn("failed to register scheduled sync",
				zap.String("schedule", scheds[i].ID), zap.Error(err))
		}
	}

	s.scheduler.Start()
	s.Logger.Info("sync scheduler started", zap.Int("schedules", len(scheds)))
	return nil
}

func (s *ScheduleServiceImpl) StopScheduler() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.scheduler != nil {
		s.scheduler.Stop()
	}
	return nil
}

func (s *ScheduleServiceImpl) register(sched *ScheduledSync) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.scheduler == nil {
		// Scheduler not initialized yet; InitializeScheduler picks it up
		return nil
	}

	id := sched.ID
	entryID, err := s.scheduler.AddFunc(sched.Schedule, func() {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		current, err := s.Repo.Get(ctx, id)
		if err != nil {
			s.Logger.Warn("scheduled sync vanished", zap.String("schedule", id))
			return
		}
		if _, err := s.start(ctx, current); err != nil {
			s.Logger.Error("scheduled sync failed to start",
				zap.String("schedule", id), zap.Error(err))
		}
	})
	if err != nil {
		return err
	}

	s.entries[id] = entryID
	return nil
}

func (s *ScheduleServiceImpl) unregister(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.scheduler == nil {
		return
	}
	if entryID, ok := s.entries[id]; ok {
		s.scheduler.Remove(entryID)
		delete(s.entries, id)
	}
}

func (s *ScheduleServiceImpl) start(ctx context.Context, sched *ScheduledSync) (syncjob.Progress, error) {
	progress, err := s.SyncSvc.Start(ctx, sched.SessionID, sched.Config)
	if err != nil {
		return syncjob.Progress{}, err
	}

	now := time.Now()
	updates := map[string]interface{}{
		"last_run":    now,
		"last_job_id": progress.JobID,
	}
	if schedule, perr := cron.ParseStandard(sched.Schedule); perr == nil {
		updates["next_run"] = schedule.Next(now)
	}
	if err := s.Repo.Update(ctx, sched.ID, updates); err != nil {
		s.Logger.Warn("failed to record schedule run", zap.String("schedule", sched.ID), zap.Error(err))
	}

	return progress, nil
}
