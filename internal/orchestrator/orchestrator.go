package orchestrator

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/cloudwego/eino/schema"

	"github.com/dohr-michael/crew/internal/events"
	"github.com/dohr-michael/crew/internal/models"
	"github.com/dohr-michael/crew/internal/tasks"
)

const (
	defaultMaxIterations = 15
	defaultPollInterval  = 250 * time.Millisecond
)

// CompletionProvider produces one model turn for a worker conversation.
// models.Chat satisfies this.
type CompletionProvider interface {
	Generate(ctx context.Context, msgs []*schema.Message, tools []*schema.ToolInfo, p models.Params) (*schema.Message, error)
}

// ToolExecutor resolves and runs the tools exposed to workers.
// Definitions with nil names returns every registered tool.
type ToolExecutor interface {
	Definitions(ctx context.Context, names []string) []*schema.ToolInfo
	Execute(ctx context.Context, name, arguments string) (string, error)
}

// SpawnRequest describes one worker to launch.
type SpawnRequest struct {
	Description string
	Label       string         // defaults to a truncated prefix of the description
	Profile     string         // optional profile name, must exist when set
	Overrides   *tasks.Profile // inline parameter overrides; set fields win over the named profile
	Origin      tasks.Origin   // where announcements are routed back to
	GroupID     string         // set when spawned as part of a parallel group
}

// runner tracks one in-flight worker.
type runner struct {
	taskID string
	cancel context.CancelFunc
}

// Orchestrator spawns worker goroutines, drives their model loops and
// coordinates groups, chains and waits on top of the task registry.
type Orchestrator struct {
	registry *tasks.Registry
	provider CompletionProvider
	tools    ToolExecutor
	notifier Notifier
	bus      *events.Bus
	snapshot *tasks.SnapshotWriter
	profiles map[string]tasks.Profile

	maxIterations int
	workspace     string
	systemPrompt  string
	pollInterval  time.Duration

	mu      sync.Mutex
	runners map[string]*runner   // taskID → running state
	groups  map[string][]string  // groupID → member task ids

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	now func() time.Time // test hook
}

// Config holds everything an Orchestrator needs to run workers.
type Config struct {
	Registry      *tasks.Registry
	Provider      CompletionProvider
	Tools         ToolExecutor
	Notifier      Notifier
	Bus           *events.Bus
	Snapshot      *tasks.SnapshotWriter       // optional, written on spawn, every 3rd iteration and on terminal transitions
	Profiles      map[string]tasks.Profile    // optional named worker profiles
	MaxIterations int                         // iteration cap per worker (default 15)
	Workspace     string                      // default worker workspace dir
	SystemPrompt  string                      // extra instructions appended to every worker prompt
	PollInterval  time.Duration               // wait-loop poll cadence (default 250ms)
}

// New creates an Orchestrator. Call Start before spawning.
func New(cfg Config) *Orchestrator {
	maxIter := cfg.MaxIterations
	if maxIter <= 0 {
		maxIter = defaultMaxIterations
	}
	poll := cfg.PollInterval
	if poll <= 0 {
		poll = defaultPollInterval
	}

	return &Orchestrator{
		registry:      cfg.Registry,
		provider:      cfg.Provider,
		tools:         cfg.Tools,
		notifier:      cfg.Notifier,
		bus:           cfg.Bus,
		snapshot:      cfg.Snapshot,
		profiles:      cfg.Profiles,
		maxIterations: maxIter,
		workspace:     cfg.Workspace,
		systemPrompt:  cfg.SystemPrompt,
		pollInterval:  poll,
		runners:       make(map[string]*runner),
		groups:        make(map[string][]string),
		now:           time.Now,
	}
}

// Start makes the orchestrator ready to spawn workers.
func (o *Orchestrator) Start() {
	o.ctx, o.cancel = context.WithCancel(context.Background())
	slog.Info("orchestrator started", "max_iterations", o.maxIterations, "profiles", len(o.profiles))
}

// Stop cancels all running workers and waits for them to finish. Each
// interrupted worker finalizes itself as cancelled on the way out.
func (o *Orchestrator) Stop() {
	if o.cancel != nil {
		o.cancel()
	}
	o.wg.Wait()
	slog.Info("orchestrator stopped")
}

// Spawn registers a task and launches its worker goroutine. It returns as
// soon as the task id is allocated; progress and the final result arrive
// through the notifier and the registry.
func (o *Orchestrator) Spawn(req SpawnRequest) (*tasks.Task, error) {
	if o.ctx == nil {
		return nil, ErrNotStarted
	}

	profile, err := o.resolveProfile(req.Profile, req.Overrides)
	if err != nil {
		return nil, err
	}

	label := req.Label
	if label == "" {
		label = tasks.DefaultLabel(req.Description)
	}

	t := o.registry.Create(req.Description, label, req.Origin, profile)

	taskCtx, taskCancel := context.WithCancel(o.ctx)
	taskCtx = events.ContextWithTaskID(taskCtx, t.ID)
	taskCtx = events.ContextWithWorkspace(taskCtx, o.workspaceFor(t))

	o.mu.Lock()
	o.runners[t.ID] = &runner{taskID: t.ID, cancel: taskCancel}
	o.mu.Unlock()

	o.publish(events.NewTypedEventForTask(events.SourceOrchestrator, events.TaskSpawnedPayload{
		Label:       t.Label,
		Description: t.Description,
		Profile:     req.Profile,
		Origin:      t.Origin.String(),
		GroupID:     req.GroupID,
	}, t.ID))
	o.writeSnapshot()

	o.wg.Add(1)
	go func() {
		defer o.wg.Done()
		defer func() {
			taskCancel()
			o.mu.Lock()
			delete(o.runners, t.ID)
			o.mu.Unlock()
		}()
		o.run(taskCtx, t)
	}()

	slog.Info("worker spawned", "task_id", t.ID, "label", t.Label, "profile", req.Profile)
	return t, nil
}

// Cancel requests cancellation of a running task. The registry is marked
// first so the outcome is decided even while the worker is mid model
// call, then the worker context is cancelled. Returns false for unknown
// or already terminal tasks, so of two racing cancels only one wins.
func (o *Orchestrator) Cancel(id string) bool {
	if !o.registry.MarkCancelled(id) {
		return false
	}

	o.mu.Lock()
	rt, running := o.runners[id]
	o.mu.Unlock()
	if running {
		rt.cancel()
	}

	slog.Info("task cancel requested", "task_id", id)
	return true
}

// resolveProfile combines the named profile with inline overrides. Empty
// name and nil overrides yield nil, meaning orchestrator defaults.
func (o *Orchestrator) resolveProfile(name string, overrides *tasks.Profile) (*tasks.Profile, error) {
	var base tasks.Profile
	if name != "" {
		p, ok := o.profiles[name]
		if !ok {
			return nil, fmt.Errorf("profile %q: %w", name, ErrProfileNotFound)
		}
		p.Name = name
		base = p
	} else if overrides == nil {
		return nil, nil
	}
	if overrides != nil {
		base = base.Merge(*overrides)
	}
	return &base, nil
}

// workspaceFor picks the profile workspace over the orchestrator default.
func (o *Orchestrator) workspaceFor(t *tasks.Task) string {
	if t.Profile != nil && t.Profile.Workspace != "" {
		return t.Profile.Workspace
	}
	return o.workspace
}

func (o *Orchestrator) publish(e events.Event) {
	if o.bus != nil {
		o.bus.Publish(e)
	}
}

func (o *Orchestrator) writeSnapshot() {
	if o.snapshot == nil {
		return
	}
	if err := o.snapshot.Write(); err != nil {
		slog.Warn("write status snapshot", "error", err)
	}
}
