package core

import (
	"fmt"

	"github.com/sirupsen/logrus"
)

// ShardProcessor is the top-level per-block driver: it selects the
// environment by identifier, fetches its code from beacon state, runs
// the harness, and commits the post-state to the right slot. See spec
// §4.5.
type ShardProcessor struct {
	harness Harness
	log     *logrus.Entry
}

// NewShardProcessor builds a processor around the given Harness. Pass a
// *WasmHarness in production; tests may substitute a fake to exercise
// atomicity and bounds-checking without compiling WebAssembly.
func NewShardProcessor(harness Harness) *ShardProcessor {
	return &ShardProcessor{harness: harness, log: logrus.WithField("component", "shard_processor")}
}

// ProcessShardBlock runs the given block, if any, against state using
// beacon as the read-only set of installed environments.
//
//   - If block is nil, it returns an empty deposit list and leaves state
//     untouched.
//   - If present, block.Env must be in range for both beacon's scripts
//     and state's root slots; violating either is a KindConfig error and
//     leaves state untouched.
//   - On any harness error, state is left byte-for-byte unchanged — the
//     only recoverable behavior at the block boundary (spec §7, §8
//     Atomicity).
//   - On success, state.ExecEnvStates[env] is updated in place and the
//     decoded deposits are returned in the order the guest pushed them.
func (p *ShardProcessor) ProcessShardBlock(state *ShardState, beacon *BeaconState, block *ShardBlock) ([]Deposit, error) {
	p.log.Debugf("pre-execution: %s", *state)

	if block == nil {
		return []Deposit{}, nil
	}
	p.log.Debugf("executing block: %s", *block)

	env := block.Env
	if env >= uint64(len(beacon.ExecutionScripts)) {
		return nil, WrapConfig(fmt.Errorf("block.env %d out of range for %d installed execution scripts", env, len(beacon.ExecutionScripts)))
	}
	if env >= uint64(len(state.ExecEnvStates)) {
		return nil, WrapConfig(fmt.Errorf("block.env %d out of range for %d shard state slots", env, len(state.ExecEnvStates)))
	}

	script := beacon.ExecutionScripts[env]
	preState := state.ExecEnvStates[env]
	p.log.Debugf("running environment %d (script digest %s)", env, script.Digest())

	postState, rawDeposits, err := p.harness.Execute(script.Code, preState, block.Data.Data)
	if err != nil {
		// state is untouched: we have not written anything yet.
		return nil, err
	}

	deposits, err := DecodeDeposits(rawDeposits)
	if err != nil {
		// A malformed deposit blob is fatal to the block: discard the
		// post-state we just computed rather than commit it.
		return nil, err
	}

	state.ExecEnvStates[env] = postState

	p.log.Debugf("post-execution deposit receipts: %+v", deposits)
	p.log.Debugf("post-execution: %s", *state)
	return deposits, nil
}
