package assistant

import (
	"strings"
	"sync"
	"time"
)

// Stage is one timed step of a turn.
type Stage string

const (
	StageTranscribe Stage = "transcribe"
	StageQuery      Stage = "query"
	StageSynthesize Stage = "synthesize"
	StageSave       Stage = "save"
)

var stageOrder = []Stage{StageTranscribe, StageQuery, StageSynthesize, StageSave}

// TurnMetrics is the latency breakdown of one completed turn.
type TurnMetrics struct {
	Started time.Time               `json:"started"`
	Stages  map[Stage]time.Duration `json:"stages"`
	Total   time.Duration           `json:"total"`
}

// String formats the stages in pipeline order, e.g.
// "812ms query | 1.4s synthesize | 95ms save | 2.3s total".
func (t TurnMetrics) String() string {
	var parts []string
	for _, s := range stageOrder {
		if d, ok := t.Stages[s]; ok {
			parts = append(parts, formatDuration(d)+" "+string(s))
		}
	}
	parts = append(parts, formatDuration(t.Total)+" total")
	return strings.Join(parts, " | ")
}

func formatDuration(d time.Duration) string {
	if d == 0 {
		return "---ms"
	}
	return d.Round(time.Millisecond).String()
}

// turnTimer measures one turn. It is owned by a single goroutine.
type turnTimer struct {
	now   func() time.Time
	start time.Time
	mark  time.Time
	m     TurnMetrics
}

func newTurnTimer(now func() time.Time) *turnTimer {
	t := now()
	return &turnTimer{
		now:   now,
		start: t,
		mark:  t,
		m:     TurnMetrics{Started: t, Stages: make(map[Stage]time.Duration)},
	}
}

// done records the time since the previous mark against s.
func (t *turnTimer) done(s Stage) {
	n := t.now()
	t.m.Stages[s] += n.Sub(t.mark)
	t.mark = n
}

func (t *turnTimer) finish() TurnMetrics {
	t.m.Total = t.now().Sub(t.start)
	return t.m
}

// MetricsSummary averages the recent turns.
type MetricsSummary struct {
	Turns   int                     `json:"turns"`
	Last    *TurnMetrics            `json:"last,omitempty"`
	Average map[Stage]time.Duration `json:"average"`
	Total   time.Duration           `json:"average_total"`
}

// Metrics keeps the most recent turn timings. It is safe for concurrent
// use.
type Metrics struct {
	mu      sync.Mutex
	limit   int
	history []TurnMetrics
}

// NewMetrics keeps up to limit turns.
func NewMetrics(limit int) *Metrics {
	if limit <= 0 {
		limit = 100
	}
	return &Metrics{limit: limit, history: make([]TurnMetrics, 0, limit)}
}

// Record archives one turn.
func (m *Metrics) Record(t TurnMetrics) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.history = append(m.history, t)
	if len(m.history) > m.limit {
		m.history = m.history[1:]
	}
}

// Summary returns the average per stage over the recorded turns. A stage
// is averaged over the turns that ran it.
func (m *Metrics) Summary() MetricsSummary {
	m.mu.Lock()
	defer m.mu.Unlock()

	s := MetricsSummary{Turns: len(m.history), Average: make(map[Stage]time.Duration)}
	if len(m.history) == 0 {
		return s
	}
	last := m.history[len(m.history)-1]
	s.Last = &last

	counts := make(map[Stage]int)
	for _, h := range m.history {
		for st, d := range h.Stages {
			s.Average[st] += d
			counts[st]++
		}
		s.Total += h.Total
	}
	for st, n := range counts {
		s.Average[st] /= time.Duration(n)
	}
	s.Total /= time.Duration(len(m.history))
	return s
}
