package core

import "fmt"

// DecodeDeposits decodes every raw blob a guest pushed via pushNewDeposit
// into structured Deposit records, preserving call order. A single
// malformed blob is fatal to the whole block — nothing is partially
// decoded. See spec §4.4.
func DecodeDeposits(blobs [][]byte) ([]Deposit, error) {
	out := make([]Deposit, 0, len(blobs))
	for i, blob := range blobs {
		d, err := DecodeDeposit(blob)
		if err != nil {
			// DecodeDeposit already returns a *ExecError tagged KindDecode;
			// annotate it with the offending index instead of wrapping it
			// in a second KindDecode layer.
			if ee, ok := err.(*ExecError); ok {
				return nil, ee.withIndex(i)
			}
			return nil, NewExecError(KindDecode, err).withIndex(i)
		}
		out = append(out, d)
	}
	return out, nil
}

// withIndex annotates a decode error with the position of the offending
// deposit in the pushed list, without changing its Kind.
func (e *ExecError) withIndex(i int) *ExecError {
	return &ExecError{Kind: e.Kind, Err: indexedError{i: i, err: e.Err}}
}

type indexedError struct {
	i   int
	err error
}

func (e indexedError) Error() string { return fmt.Sprintf("deposit[%d]: %v", e.i, e.err) }
func (e indexedError) Unwrap() error { return e.err }
