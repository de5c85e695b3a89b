package core_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/ewasm/shard-executor/core"
)

func TestDecodeDepositsPreservesOrder(t *testing.T) {
	blobs := [][]byte{
		core.Deposit{Amount: 1}.Encode(),
		core.Deposit{Amount: 2}.Encode(),
		core.Deposit{Amount: 3}.Encode(),
	}
	deposits, err := core.DecodeDeposits(blobs)
	require.NoError(t, err)
	require.Len(t, deposits, 3)
	require.Equal(t, uint64(1), deposits[0].Amount)
	require.Equal(t, uint64(2), deposits[1].Amount)
	require.Equal(t, uint64(3), deposits[2].Amount)
}

func TestDecodeDepositsEmptyInput(t *testing.T) {
	deposits, err := core.DecodeDeposits(nil)
	require.NoError(t, err)
	require.Empty(t, deposits)
}

func TestDecodeDepositsFailsFastOnFirstMalformedBlob(t *testing.T) {
	blobs := [][]byte{
		core.Deposit{Amount: 1}.Encode(),
		[]byte("too short"),
		core.Deposit{Amount: 3}.Encode(),
	}
	_, err := core.DecodeDeposits(blobs)
	require.Error(t, err)
	require.True(t, core.IsKind(err, core.KindDecode))
	require.ErrorContains(t, err, "deposit[1]")
}

func TestDecodeDepositsAnnotatesCorrectIndexWhenFailureIsNotFirst(t *testing.T) {
	blobs := [][]byte{
		core.Deposit{Amount: 1}.Encode(),
		core.Deposit{Amount: 2}.Encode(),
		[]byte("bad"),
	}
	_, err := core.DecodeDeposits(blobs)
	require.Error(t, err)
	require.ErrorContains(t, err, "deposit[2]")
}
