package parallel

import (
	"encoding/json"

	"git.home.luguber.info/inful/buildbot/internal/results"
)

const workerEnv = "BUILDBOT_PARALLEL_WORKER"

// Control channel descriptors in the worker process (ExtraFiles start at 3).
const (
	requestFD = 3
	resultFD  = 4
)

type frameType string

const (
	frameRun    frameType = "run"    // parent -> worker: run one step
	framePool   frameType = "pool"   // parent -> worker: serve pool entries
	frameItem   frameType = "item"   // parent -> worker: next pool entry
	frameDone   frameType = "done"   // parent -> worker: pool queue closed and drained
	frameReady  frameType = "ready"  // worker -> parent: request next pool entry
	frameResult frameType = "result" // worker -> parent: failures and ledger records
)

type frame struct {
	Type     frameType             `json:"type"`
	Step     *Step                 `json:"step,omitempty"`
	Pool     *PoolSpec             `json:"pool,omitempty"`
	Args     []json.RawMessage     `json:"args,omitempty"`
	LogLevel string                `json:"log_level,omitempty"`
	Failures []*Failure            `json:"failures,omitempty"`
	Records  []results.StageRecord `json:"records,omitempty"`
}
