package agent

import (
	"sync"
	"time"
)

// AgentState 表示某个 agent 当前的调度状态
type AgentState string

const (
	StateIdle AgentState = "idle"
	StateBusy AgentState = "busy"
)

// Status 是单个 agent 的运行时状态记录，供仪表盘展示
type Status struct {
	Name           string
	State          AgentState
	CurrentTaskID  string
	CompletedTasks int
	FailedTasks    int
	AvgDuration    time.Duration
	LastActive     time.Time
}

// Board tracks per-agent status records. It is the only orchestration state
// shared across goroutines besides the scheduler's completed set, so all
// access goes through the mutex.
type Board struct {
	mu     sync.RWMutex
	status map[string]*Status
}

// NewBoard creates a board with an idle record per roster agent.
func NewBoard(roster *Roster) *Board {
	b := &Board{status: make(map[string]*Status, roster.Len())}
	for _, name := range roster.Names() {
		b.status[name] = &Status{
			Name:       name,
			State:      StateIdle,
			LastActive: time.Now(),
		}
	}
	return b
}

// SetBusy marks an agent as executing the given task.
func (b *Board) SetBusy(name, taskID string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if s, ok := b.status[name]; ok {
		s.State = StateBusy
		s.CurrentTaskID = taskID
		s.LastActive = time.Now()
	}
}

// SetIdle marks an agent idle, recording the outcome of its last task.
func (b *Board) SetIdle(name string, succeeded bool, duration time.Duration) {
	b.mu.Lock()
	defer b.mu.Unlock()
	s, ok := b.status[name]
	if !ok {
		return
	}
	s.State = StateIdle
	s.CurrentTaskID = ""
	s.LastActive = time.Now()
	if succeeded {
		s.CompletedTasks++
		// 滑动平均
		if s.AvgDuration == 0 {
			s.AvgDuration = duration
		} else {
			s.AvgDuration = (s.AvgDuration*time.Duration(s.CompletedTasks-1) + duration) / time.Duration(s.CompletedTasks)
		}
	} else {
		s.FailedTasks++
	}
}

// Get returns a value copy of one agent's status.
func (b *Board) Get(name string) (Status, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if s, ok := b.status[name]; ok {
		return *s, true
	}
	return Status{}, false
}

// Snapshot returns value copies of every status record.
func (b *Board) Snapshot() map[string]Status {
	b.mu.RLock()
	defer b.mu.RUnlock()
	out := make(map[string]Status, len(b.status))
	for name, s := range b.status {
		out[name] = *s
	}
	return out
}
