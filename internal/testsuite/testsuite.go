// Package testsuite loads the YAML test-case format used to drive the
// Shard Executor end to end: a beacon state naming execution environment
// files on disk, a sequence of shard blocks to process in order, the
// expected pre/post shard state, and the expected deposit receipts.
// Grounded on the original scout test driver's TestFile/TryFrom pipeline.
package testsuite

import (
	"encoding/hex"
	"os"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"

	"github.com/ewasm/shard-executor/core"
)

// TestBeaconState names the execution environment files to install, in
// installation order.
type TestBeaconState struct {
	ExecutionScripts []string `yaml:"execution_scripts"`
}

// TestShardBlock is one block to feed through the processor.
type TestShardBlock struct {
	Env  uint64 `yaml:"env"`
	Data string `yaml:"data"`
}

// TestShardState is a hex-encoded snapshot of every environment's state
// root.
type TestShardState struct {
	ExecEnvStates []string `yaml:"exec_env_states"`
}

// TestDeposit is a hex-encoded expected deposit receipt.
type TestDeposit struct {
	PubKey                string `yaml:"pubkey"`
	WithdrawalCredentials string `yaml:"withdrawal_credentials"`
	Amount                uint64 `yaml:"amount"`
	Signature             string `yaml:"signature"`
}

// TestFile is the top-level YAML document shape.
type TestFile struct {
	BeaconState     TestBeaconState  `yaml:"beacon_state"`
	ShardBlocks     []TestShardBlock `yaml:"shard_blocks"`
	ShardPreState   TestShardState   `yaml:"shard_pre_state"`
	ShardPostState  TestShardState   `yaml:"shard_post_state"`
	DepositReceipts []TestDeposit    `yaml:"deposit_receipts"`
}

// Load reads and parses a test-case YAML file from path.
func Load(path string) (*TestFile, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(err, "read test file")
	}
	var tf TestFile
	if err := yaml.Unmarshal(content, &tf); err != nil {
		return nil, errors.Wrap(err, "parse test file yaml")
	}
	return &tf, nil
}

// hexToFixed decodes hex into a fixed-size byte array, erroring on any
// length mismatch so malformed fixtures fail loudly instead of silently
// truncating or zero-padding.
func hexToFixed(input string, out []byte) error {
	decoded, err := hex.DecodeString(input)
	if err != nil {
		return errors.Wrap(err, "decode hex")
	}
	if len(decoded) != len(out) {
		return errors.Errorf("hex input has length %d, want %d", len(decoded), len(out))
	}
	copy(out, decoded)
	return nil
}

func hexToBytes32(input string) (core.Bytes32, error) {
	var b core.Bytes32
	if err := hexToFixed(input, b[:]); err != nil {
		return core.Bytes32{}, err
	}
	return b, nil
}

func hexToPubKey(input string) (core.BLSPubKey, error) {
	var k core.BLSPubKey
	if err := hexToFixed(input, k[:]); err != nil {
		return core.BLSPubKey{}, err
	}
	return k, nil
}

func hexToSignature(input string) (core.BLSSignature, error) {
	var s core.BLSSignature
	if err := hexToFixed(input, s[:]); err != nil {
		return core.BLSSignature{}, err
	}
	return s, nil
}

// ToBeaconState reads every named execution environment file from disk and
// installs it, preserving file order as the environment's identifier.
func (tbs TestBeaconState) ToBeaconState() (*core.BeaconState, error) {
	scripts := make([]core.ExecutionScript, len(tbs.ExecutionScripts))
	for i, filename := range tbs.ExecutionScripts {
		code, err := os.ReadFile(filename)
		if err != nil {
			return nil, errors.Wrapf(err, "read execution script %q", filename)
		}
		scripts[i] = core.ExecutionScript{Code: code}
	}
	return &core.BeaconState{ExecutionScripts: scripts}, nil
}

// ToShardBlock converts a parsed test block into the wire ShardBlock the
// processor consumes.
func (tsb TestShardBlock) ToShardBlock() (*core.ShardBlock, error) {
	data, err := hex.DecodeString(tsb.Data)
	if err != nil {
		return nil, errors.Wrap(err, "decode shard block data")
	}
	return &core.ShardBlock{Env: tsb.Env, Data: core.ShardBlockBody{Data: data}}, nil
}

// ToShardState converts a parsed hex snapshot into a live ShardState ready
// to be mutated by the processor. Slot and ParentBlock are zero-valued —
// the test format carries neither, matching the original driver.
func (tss TestShardState) ToShardState() (*core.ShardState, error) {
	roots := make([]core.Bytes32, len(tss.ExecEnvStates))
	for i, h := range tss.ExecEnvStates {
		root, err := hexToBytes32(h)
		if err != nil {
			return nil, errors.Wrapf(err, "exec_env_states[%d]", i)
		}
		roots[i] = root
	}
	return &core.ShardState{ExecEnvStates: roots}, nil
}

// ToDeposit converts a parsed hex deposit fixture into a core.Deposit for
// comparison against the processor's actual decoded receipts.
func (td TestDeposit) ToDeposit() (core.Deposit, error) {
	pubKey, err := hexToPubKey(td.PubKey)
	if err != nil {
		return core.Deposit{}, errors.Wrap(err, "pubkey")
	}
	withdrawal, err := hexToBytes32(td.WithdrawalCredentials)
	if err != nil {
		return core.Deposit{}, errors.Wrap(err, "withdrawal_credentials")
	}
	signature, err := hexToSignature(td.Signature)
	if err != nil {
		return core.Deposit{}, errors.Wrap(err, "signature")
	}
	return core.Deposit{
		PubKey:                pubKey,
		WithdrawalCredentials: withdrawal,
		Amount:                td.Amount,
		Signature:             signature,
	}, nil
}
