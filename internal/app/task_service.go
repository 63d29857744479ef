package app

import (
	"context"
	"log"
	"time"

	"multirag/internal/cache"
	"multirag/internal/model"
)

type TaskService struct {
	taskRepo TaskStore
	cache    *cache.TaskCache
}

func NewTaskService(taskRepo TaskStore, taskCache *cache.TaskCache) *TaskService {
	return &TaskService{
		taskRepo: taskRepo,
		cache:    taskCache,
	}
}

// Get returns the task, serving recent reads from Redis. Cache errors fall
// through to Postgres.
func (s *TaskService) Get(ctx context.Context, userID uint, taskID string) (*model.Task, error) {
	if userID == 0 || taskID == "" {
		return nil, ErrInvalidInput
	}

	if s.cache != nil {
		cached, ok, err := s.cache.Get(ctx, taskID)
		if err != nil {
			log.Printf("task cache read failed: %v", err)
		} else if ok && cached.UserID == userID {
			return cached, nil
		}
	}

	task, err := s.taskRepo.GetByIDAndUserID(taskID, userID)
	if err != nil {
		return nil, err
	}
	if task == nil {
		return nil, ErrTaskNotFound
	}

	if s.cache != nil {
		if err := s.cache.Set(ctx, task); err != nil {
			log.Printf("task cache write failed: %v", err)
		}
	}
	return task, nil
}

func (s *TaskService) List(userID uint, limit int) ([]model.Task, error) {
	if userID == 0 {
		return nil, ErrInvalidInput
	}
	return s.taskRepo.ListByUserID(userID, limit)
}

// Cancel marks a pending or processing task as failed. The worker checks the
// status between documents and stops.
func (s *TaskService) Cancel(ctx context.Context, userID uint, taskID string) (*model.Task, error) {
	if userID == 0 || taskID == "" {
		return nil, ErrInvalidInput
	}

	task, err := s.taskRepo.GetByIDAndUserID(taskID, userID)
	if err != nil {
		return nil, err
	}
	if task == nil {
		return nil, ErrTaskNotFound
	}
	if task.Terminal() {
		return task, nil
	}

	now := time.Now()
	task.Status = model.TaskStatusFailed
	task.ErrorMessage = "task cancelled by user"
	task.CompletedAt = &now
	if err := s.taskRepo.Update(task); err != nil {
		return nil, err
	}

	if s.cache != nil {
		if err := s.cache.Delete(ctx, taskID); err != nil {
			log.Printf("task cache invalidate failed: %v", err)
		}
	}
	return task, nil
}

// CleanupOld removes terminal tasks older than maxAge and returns how many
// rows were deleted.
func (s *TaskService) CleanupOld(maxAge time.Duration) (int64, error) {
	if maxAge <= 0 {
		maxAge = 7 * 24 * time.Hour
	}
	return s.taskRepo.DeleteTerminalBefore(time.Now().Add(-maxAge))
}
