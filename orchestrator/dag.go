// Package orchestrator runs commands in dependency order with a bounded
// number of concurrent processes per resource class.
package orchestrator

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"videomass/command"
	"videomass/events"
	vmerrors "videomass/internal/errors"
	"videomass/logger"
	"videomass/models"
)

// ResourceType represents a class of work that shares a slot limit.
type ResourceType string

const (
	ResourceFFmpeg ResourceType = "ffmpeg" // encoder processes
	ResourceProbe  ResourceType = "probe"  // ffprobe and other short reads
	ResourceIO     ResourceType = "io"     // file copies and concat
)

// pollInterval is how often the scheduler looks for ready tasks when no
// task has completed.
const pollInterval = 10 * time.Millisecond

// Task represents a unit of work with dependencies and resource requirements
type Task struct {
	ID           string
	Command      command.Command
	Dependencies []string // IDs of tasks that must complete before this one
	Resource     ResourceType
	Status       TaskStatus
	Error        error
	Result       *models.JobResult
	StartTime    time.Time
	EndTime      time.Time

	order int // insertion order, breaks priority ties
}

// TaskStatus represents the current state of a task
type TaskStatus int

const (
	TaskPending TaskStatus = iota
	TaskReady              // Dependencies met, waiting for resource
	TaskRunning
	TaskCompleted
	TaskFailed
)

func (s TaskStatus) String() string {
	switch s {
	case TaskPending:
		return "pending"
	case TaskReady:
		return "ready"
	case TaskRunning:
		return "running"
	case TaskCompleted:
		return "completed"
	case TaskFailed:
		return "failed"
	default:
		return fmt.Sprintf("TaskStatus(%d)", int(s))
	}
}

// ResourceConstraint defines limits for a resource type
type ResourceConstraint struct {
	Type     ResourceType
	MaxSlots int // Maximum concurrent tasks for this resource
}

// DAGOrchestrator manages task execution with dependencies and resource constraints
type DAGOrchestrator struct {
	tasks       map[string]*Task
	constraints map[ResourceType]*ResourceConstraint

	// Resource tracking
	activeSlots map[ResourceType]int
	slotsMutex  sync.Mutex

	tasksMutex sync.RWMutex
	completeCh chan string // Task IDs whose command returned

	bus    *events.Bus
	logger *logger.Logger

	// Progress tracking
	onProgress func(completed, total int, task *Task)
}

// NewDAGOrchestrator creates a new orchestrator with resource constraints
func NewDAGOrchestrator(constraints []ResourceConstraint) *DAGOrchestrator {
	constraintMap := make(map[ResourceType]*ResourceConstraint)
	for i := range constraints {
		// A zero limit would block the class forever.
		if constraints[i].MaxSlots < 1 {
			constraints[i].MaxSlots = 1
		}
		constraintMap[constraints[i].Type] = &constraints[i]
	}

	return &DAGOrchestrator{
		tasks:       make(map[string]*Task),
		constraints: constraintMap,
		activeSlots: make(map[ResourceType]int),
		logger:      logger.Discard(),
	}
}

// SetEventBus publishes task.started, task.finished and task.failed on bus.
func (o *DAGOrchestrator) SetEventBus(bus *events.Bus) {
	o.bus = bus
}

// SetLogger sets the logger for scheduling decisions.
func (o *DAGOrchestrator) SetLogger(l *logger.Logger) {
	if l != nil {
		o.logger = l
	}
}

// AddTask adds a task to the orchestrator
func (o *DAGOrchestrator) AddTask(task *Task) error {
	o.tasksMutex.Lock()
	defer o.tasksMutex.Unlock()

	if task.ID == "" {
		return vmerrors.Validation("task id is required")
	}
	if task.Command == nil {
		return vmerrors.Validation("task %s has no command", task.ID)
	}
	if _, exists := o.tasks[task.ID]; exists {
		return vmerrors.AlreadyExists("task %s already exists", task.ID)
	}

	task.Status = TaskPending
	task.order = len(o.tasks)
	o.tasks[task.ID] = task
	return nil
}

// AddTasks adds several tasks, stopping at the first error.
func (o *DAGOrchestrator) AddTasks(tasks ...*Task) error {
	for _, t := range tasks {
		if err := o.AddTask(t); err != nil {
			return err
		}
	}
	return nil
}

// SetProgressCallback sets a callback for progress updates
func (o *DAGOrchestrator) SetProgressCallback(callback func(completed, total int, task *Task)) {
	o.onProgress = callback
}

// Execute runs all tasks respecting dependencies and resource constraints.
// Results are in completion order. Task failures are reported in the
// results, not as an error; tasks behind a failed dependency are skipped.
// When ctx is done, running commands see the canceled context, tasks not
// yet started are skipped and a CANCELED error is returned with the
// results gathered so far.
func (o *DAGOrchestrator) Execute(ctx context.Context) ([]*models.JobResult, error) {
	// Validate DAG (no cycles, all dependencies exist)
	if err := o.validateDAG(); err != nil {
		return nil, err
	}

	o.tasksMutex.RLock()
	totalTasks := len(o.tasks)
	o.tasksMutex.RUnlock()
	if totalTasks == 0 {
		return nil, nil
	}

	o.completeCh = make(chan string, totalTasks)
	results := make([]*models.JobResult, 0, totalTasks)
	completedTasks := 0
	record := func(task *Task) {
		completedTasks++
		results = append(results, task.Result)
		if o.onProgress != nil {
			o.onProgress(completedTasks, totalTasks, task)
		}
	}

	var wg sync.WaitGroup
	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()
	done := ctx.Done()

	for completedTasks < totalTasks {
		if ctx.Err() != nil {
			for _, task := range o.skipUnstarted(vmerrors.Canceled("not started: run canceled")) {
				record(task)
			}
		} else {
			for _, task := range o.skipBlocked() {
				record(task)
			}
			for _, task := range o.startReady(ctx, &wg) {
				o.logger.Debug("task started", "task", task.ID, "resource", string(task.Resource))
			}
		}
		if completedTasks == totalTasks {
			break
		}

		select {
		case taskID := <-o.completeCh:
			o.tasksMutex.RLock()
			task := o.tasks[taskID]
			o.tasksMutex.RUnlock()
			record(task)
		case <-done:
			done = nil
		case <-ticker.C:
		}
	}
	wg.Wait()

	if err := ctx.Err(); err != nil {
		return results, vmerrors.Canceled("run canceled").WithCause(err)
	}
	return results, nil
}

// startReady launches ready tasks in priority order while slots remain.
func (o *DAGOrchestrator) startReady(ctx context.Context, wg *sync.WaitGroup) []*Task {
	var started []*Task
	for _, task := range o.getReadyTasks() {
		if !o.tryAcquireResource(task.Resource) {
			continue
		}
		o.tasksMutex.Lock()
		task.Status = TaskRunning
		task.StartTime = time.Now()
		o.tasksMutex.Unlock()

		o.publish(events.Event{Type: events.TaskStarted, TaskID: task.ID, Path: task.Command.GetOutputPath()})
		wg.Add(1)
		go func(t *Task) {
			defer wg.Done()
			o.executeTask(ctx, t)
		}(task)
		started = append(started, task)
	}
	return started
}

// getReadyTasks returns tasks whose dependencies completed, highest
// priority first.
func (o *DAGOrchestrator) getReadyTasks() []*Task {
	o.tasksMutex.Lock()
	defer o.tasksMutex.Unlock()

	ready := make([]*Task, 0)
	for _, task := range o.tasks {
		if task.Status == TaskPending && o.dependenciesMet(task) {
			task.Status = TaskReady
		}
		if task.Status == TaskReady {
			ready = append(ready, task)
		}
	}

	sort.Slice(ready, func(i, j int) bool {
		pi, pj := ready[i].Command.GetPriority(), ready[j].Command.GetPriority()
		if pi != pj {
			return pi > pj
		}
		return ready[i].order < ready[j].order
	})
	return ready
}

// dependenciesMet checks if all dependencies of a task are completed
func (o *DAGOrchestrator) dependenciesMet(task *Task) bool {
	for _, depID := range task.Dependencies {
		depTask, exists := o.tasks[depID]
		if !exists || depTask.Status != TaskCompleted {
			return false
		}
	}
	return true
}

// tryAcquireResource attempts to acquire a resource slot
func (o *DAGOrchestrator) tryAcquireResource(resourceType ResourceType) bool {
	o.slotsMutex.Lock()
	defer o.slotsMutex.Unlock()

	constraint, exists := o.constraints[resourceType]
	if !exists {
		// No constraint, allow execution
		return true
	}

	if o.activeSlots[resourceType] < constraint.MaxSlots {
		o.activeSlots[resourceType]++
		return true
	}
	return false
}

// releaseResource releases a resource slot
func (o *DAGOrchestrator) releaseResource(resourceType ResourceType) {
	o.slotsMutex.Lock()
	defer o.slotsMutex.Unlock()

	if o.activeSlots[resourceType] > 0 {
		o.activeSlots[resourceType]--
	}
}

// executeTask runs a single task
func (o *DAGOrchestrator) executeTask(ctx context.Context, task *Task) {
	defer o.releaseResource(task.Resource)

	err := task.Command.Run(ctx)

	o.tasksMutex.Lock()
	task.EndTime = time.Now()
	cmd := task.Command
	if err != nil {
		task.Status = TaskFailed
		task.Error = err
		task.Result, _ = models.NewJobFailure(task.ID, cmd.GetInputPath(), cmd.GetOutputPath(), err)
	} else {
		task.Status = TaskCompleted
		task.Result = models.NewJobSuccess(task.ID, cmd.GetInputPath(), cmd.GetOutputPath(), task.EndTime.Sub(task.StartTime))
	}
	result := task.Result
	o.tasksMutex.Unlock()

	if err != nil {
		o.logger.WithError(err).Error("task failed", "task", task.ID)
		o.publish(events.Event{Type: events.TaskFailed, TaskID: task.ID, Path: cmd.GetOutputPath(), Result: result, Err: err})
	} else {
		o.publish(events.Event{Type: events.TaskFinished, TaskID: task.ID, Path: cmd.GetOutputPath(), Result: result})
	}

	// Notify completion
	o.completeCh <- task.ID
}

// skipBlocked fails pending tasks that can never run because a dependency
// failed.
func (o *DAGOrchestrator) skipBlocked() []*Task {
	o.tasksMutex.Lock()
	var skipped []*Task
	for _, task := range o.tasks {
		if (task.Status == TaskPending || task.Status == TaskReady) && o.hasFailedDependency(task) {
			o.markSkipped(task, vmerrors.Canceled("dependency failed"))
			skipped = append(skipped, task)
		}
	}
	o.tasksMutex.Unlock()

	for _, task := range skipped {
		o.publish(events.Event{Type: events.TaskFailed, TaskID: task.ID, Result: task.Result, Err: task.Error})
	}
	return skipped
}

// skipUnstarted fails every task that has not started.
func (o *DAGOrchestrator) skipUnstarted(reason error) []*Task {
	o.tasksMutex.Lock()
	var skipped []*Task
	for _, task := range o.tasks {
		if task.Status == TaskPending || task.Status == TaskReady {
			o.markSkipped(task, reason)
			skipped = append(skipped, task)
		}
	}
	o.tasksMutex.Unlock()

	for _, task := range skipped {
		o.publish(events.Event{Type: events.TaskFailed, TaskID: task.ID, Result: task.Result, Err: task.Error})
	}
	return skipped
}

// markSkipped must be called with tasksMutex held.
func (o *DAGOrchestrator) markSkipped(task *Task, reason error) {
	task.Status = TaskFailed
	task.Error = reason
	task.Result, _ = models.NewJobFailure(task.ID, task.Command.GetInputPath(), task.Command.GetOutputPath(), reason)
	task.Result.Skipped = true
}

// hasFailedDependency checks if any dependency has failed
func (o *DAGOrchestrator) hasFailedDependency(task *Task) bool {
	for _, depID := range task.Dependencies {
		if depTask, exists := o.tasks[depID]; exists {
			if depTask.Status == TaskFailed {
				return true
			}
			// Recursively check if dependency has failed dependencies
			if o.hasFailedDependency(depTask) {
				return true
			}
		}
	}
	return false
}

// validateDAG validates the task graph
func (o *DAGOrchestrator) validateDAG() error {
	o.tasksMutex.RLock()
	defer o.tasksMutex.RUnlock()

	// Check all dependencies exist
	for _, task := range o.tasks {
		for _, depID := range task.Dependencies {
			if _, exists := o.tasks[depID]; !exists {
				return vmerrors.Validation("task %s depends on non-existent task %s", task.ID, depID)
			}
		}
	}

	// Check for cycles (simple DFS-based cycle detection)
	visited := make(map[string]bool)
	recStack := make(map[string]bool)

	var hasCycle func(taskID string) bool
	hasCycle = func(taskID string) bool {
		visited[taskID] = true
		recStack[taskID] = true

		task := o.tasks[taskID]
		for _, depID := range task.Dependencies {
			if !visited[depID] {
				if hasCycle(depID) {
					return true
				}
			} else if recStack[depID] {
				return true
			}
		}

		recStack[taskID] = false
		return false
	}

	for taskID := range o.tasks {
		if !visited[taskID] {
			if hasCycle(taskID) {
				return vmerrors.Validation("cycle detected in task dependencies")
			}
		}
	}

	return nil
}

func (o *DAGOrchestrator) publish(e events.Event) {
	if o.bus != nil {
		o.bus.Publish(e)
	}
}

// GetTaskStatus returns the status of a task
func (o *DAGOrchestrator) GetTaskStatus(taskID string) (TaskStatus, error) {
	o.tasksMutex.RLock()
	defer o.tasksMutex.RUnlock()

	task, exists := o.tasks[taskID]
	if !exists {
		return TaskPending, vmerrors.NotFound("task %s not found", taskID)
	}

	return task.Status, nil
}

// GetStats returns the number of tasks per status.
func (o *DAGOrchestrator) GetStats() map[string]int {
	o.tasksMutex.RLock()
	defer o.tasksMutex.RUnlock()

	stats := map[string]int{"total": len(o.tasks)}
	for _, s := range []TaskStatus{TaskPending, TaskReady, TaskRunning, TaskCompleted, TaskFailed} {
		stats[s.String()] = 0
	}
	for _, task := range o.tasks {
		stats[task.Status.String()]++
	}
	return stats
}
