// Package core implements the Shard Executor: a deterministic host that
// loads user-supplied WebAssembly modules representing execution
// environments, invokes each one per block, and threads the resulting
// state transition and deposits back into a shard state container.
package core

import (
	"encoding/binary"
	"encoding/hex"
	"fmt"

	"github.com/ethereum/go-ethereum/crypto"
)

// Bytes32 is a 32-byte fixed-width value: state roots, hashes, withdrawal
// credentials. The zero value is 32 zero bytes.
type Bytes32 [32]byte

// ZeroHash is the all-zero Bytes32, used as the default execution
// environment state root.
var ZeroHash = Bytes32{}

func (b Bytes32) String() string { return hex.EncodeToString(b[:]) }

// BytesPerShardBlockBody is the nominal size limit of a shard block's data
// payload. Nothing in this module checks block data against it.
const BytesPerShardBlockBody = 16384

// BLSPubKey is a 48-byte BLS public key.
type BLSPubKey [48]byte

func (k BLSPubKey) String() string { return hex.EncodeToString(k[:]) }

// BLSSignature is a 96-byte BLS signature.
type BLSSignature [96]byte

func (s BLSSignature) String() string { return hex.EncodeToString(s[:]) }

// DepositEncodedLen is the exact byte length of an encoded Deposit.
const DepositEncodedLen = 48 + 32 + 8 + 96 // 184

// Deposit is a side-effect record a guest module may emit via
// pushNewDeposit. Its wire form is a tight little-endian concatenation of
// its fields in declaration order.
type Deposit struct {
	PubKey                BLSPubKey
	WithdrawalCredentials Bytes32
	Amount                uint64
	Signature             BLSSignature
}

// Encode serializes a Deposit to its 184-byte wire form.
func (d Deposit) Encode() []byte {
	out := make([]byte, DepositEncodedLen)
	off := 0
	off += copy(out[off:], d.PubKey[:])
	off += copy(out[off:], d.WithdrawalCredentials[:])
	binary.LittleEndian.PutUint64(out[off:off+8], d.Amount)
	off += 8
	copy(out[off:], d.Signature[:])
	return out
}

// DecodeDeposit parses a raw deposit blob pushed by a guest. A well-formed
// blob has length DepositEncodedLen and decodes losslessly; anything else
// is a fatal decode error.
func DecodeDeposit(blob []byte) (Deposit, error) {
	if len(blob) != DepositEncodedLen {
		return Deposit{}, NewExecError(KindDecode, fmt.Errorf("deposit blob has length %d, want %d", len(blob), DepositEncodedLen))
	}
	var d Deposit
	off := 0
	copy(d.PubKey[:], blob[off:off+48])
	off += 48
	copy(d.WithdrawalCredentials[:], blob[off:off+32])
	off += 32
	d.Amount = binary.LittleEndian.Uint64(blob[off : off+8])
	off += 8
	copy(d.Signature[:], blob[off:off+96])
	return d, nil
}

// ExecutionScript is an opaque guest module in the host's bytecode format.
type ExecutionScript struct {
	Code []byte
}

// Digest returns a keccak256 content hash of the script's bytecode, used to
// give an environment a stable log/audit identifier independent of its
// position in BeaconState. Mirrors the teacher's address-derivation-by-hash
// pattern, applied here to content rather than to a nonce.
func (s ExecutionScript) Digest() Bytes32 {
	return Bytes32(crypto.Keccak256Hash(s.Code))
}

// BeaconState is the ordered, immutable set of installed execution
// environments. An environment's position in the slice is its identifier.
type BeaconState struct {
	ExecutionScripts []ExecutionScript
}

// ShardBlockHeader is an opaque per-block header carried by ShardState.
type ShardBlockHeader struct {
	Bytes []byte
}

// ShardBlockBody is the opaque block data payload delivered verbatim to
// the guest.
type ShardBlockBody struct {
	Data []byte
}

func (b ShardBlockBody) String() string { return hex.EncodeToString(b.Data) }

// ShardBlock selects an execution environment and carries its block data.
type ShardBlock struct {
	Env  uint64
	Data ShardBlockBody
}

func (b ShardBlock) String() string {
	return fmt.Sprintf("shard block for environment %d with data %s", b.Env, b.Data)
}

// ShardState holds one state root per installed execution environment,
// indexed by environment identifier, plus slot/header bookkeeping.
type ShardState struct {
	ExecEnvStates []Bytes32
	Slot          uint64
	ParentBlock   ShardBlockHeader
}

func (s ShardState) String() string {
	roots := make([]string, len(s.ExecEnvStates))
	for i, r := range s.ExecEnvStates {
		roots[i] = r.String()
	}
	return fmt.Sprintf("shard slot %d with environment states: %v", s.Slot, roots)
}

// Clone returns a deep copy of the shard state's mutable root slice so
// callers can stage a speculative mutation and discard it on error
// without touching the caller's original.
func (s ShardState) Clone() ShardState {
	roots := make([]Bytes32, len(s.ExecEnvStates))
	copy(roots, s.ExecEnvStates)
	return ShardState{ExecEnvStates: roots, Slot: s.Slot, ParentBlock: s.ParentBlock}
}
