package pipeline

import (
	"sync"
	"time"

	"docparse/pkg/services"
)

// Stage names, in execution order. They label metrics and stage timings.
const (
	StageUpload   = "upload"
	StageOCR      = "ocr"
	StageDocAI    = "docai"
	StageParse    = "parse"
	StageClassify = "classify"
	StageKAG      = "kag"
)

var stageOrder = []string{StageUpload, StageOCR, StageDocAI, StageParse, StageClassify, StageKAG}

// tracker keeps the status of pipelines that are still running.
type tracker struct {
	mu      sync.Mutex
	running map[string]*services.PipelineStatus
}

func newTracker() *tracker {
	return &tracker{running: make(map[string]*services.PipelineStatus)}
}

func (t *tracker) start(id string) {
	now := time.Now()
	t.mu.Lock()
	defer t.mu.Unlock()
	t.running[id] = &services.PipelineStatus{
		PipelineID:        id,
		CurrentStage:      "starting",
		TotalStages:       len(stageOrder),
		StartTime:         now,
		CurrentStageStart: now,
		Warnings:          []string{},
	}
}

func (t *tracker) advance(id, stage string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	st, ok := t.running[id]
	if !ok {
		return
	}
	for i, name := range stageOrder {
		if name == stage {
			st.CompletedStages = i
			break
		}
	}
	st.CurrentStage = stage
	st.CurrentStageStart = time.Now()
	st.ProgressPercentage = 100 * float64(st.CompletedStages) / float64(st.TotalStages)
}

func (t *tracker) warn(id, msg string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if st, ok := t.running[id]; ok {
		st.Warnings = append(st.Warnings, msg)
	}
}

func (t *tracker) finish(id string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.running, id)
}

func (t *tracker) get(id string) (services.PipelineStatus, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	st, ok := t.running[id]
	if !ok {
		return services.PipelineStatus{}, false
	}
	out := *st
	out.Warnings = append([]string(nil), st.Warnings...)
	return out, true
}
