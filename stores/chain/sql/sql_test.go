package sql

import (
	"context"
	"net/url"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/coreledger/nodecore/model"
	"github.com/coreledger/nodecore/stores/chain"
	"github.com/coreledger/nodecore/ulogger"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()

	u, err := url.Parse("sqlitememory://")
	require.NoError(t, err)

	s, err := New(ulogger.NewVerboseTestLogger(t), u)
	require.NoError(t, err)

	t.Cleanup(func() { _ = s.Close() })

	return s
}

func header(t *testing.T, prevByte byte, nonce uint64) *model.BlockHeader {
	t.Helper()

	var prev model.Hash256
	prev[0] = prevByte

	return &model.BlockHeader{
		Version:        1,
		HashPrevBlock:  prev,
		HashMerkleRoot: model.NullHash,
		Time:           1000,
		Bits:           0x1d00ffff,
		Nonce:          nonce,
	}
}

func TestPutAndGetHeader(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	h := header(t, 0x01, 1)
	entry := &chain.IndexEntry{Header: h, Height: 1, CumulativeWork: []byte{0x01}, Status: chain.StatusValid}

	require.NoError(t, s.PutHeader(ctx, entry))

	got, err := s.GetHeader(ctx, h.Hash())
	require.NoError(t, err)
	require.NotNil(t, got)
	require.Equal(t, uint32(1), got.Height)
	require.Equal(t, chain.StatusValid, got.Status)
}

func TestGetHeaderUnknownReturnsNil(t *testing.T) {
	s := newTestStore(t)
	got, err := s.GetHeader(context.Background(), model.NullHash)
	require.NoError(t, err)
	require.Nil(t, got)
}

func TestSetStatusUpdatesEntry(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	h := header(t, 0x02, 1)
	require.NoError(t, s.PutHeader(ctx, &chain.IndexEntry{Header: h, Height: 2, CumulativeWork: []byte{0x01}, Status: chain.StatusOrphan}))

	require.NoError(t, s.SetStatus(ctx, h.Hash(), chain.StatusActive))

	got, err := s.GetHeader(ctx, h.Hash())
	require.NoError(t, err)
	require.Equal(t, chain.StatusActive, got.Status)
}

func TestSetStatusUnknownHashFails(t *testing.T) {
	s := newTestStore(t)
	err := s.SetStatus(context.Background(), model.NullHash, chain.StatusActive)
	require.Error(t, err)
}

func TestChildrenReturnsHeadersByParent(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	parent := header(t, 0x00, 0)
	require.NoError(t, s.PutHeader(ctx, &chain.IndexEntry{Header: parent, Height: 1, CumulativeWork: []byte{0x01}, Status: chain.StatusActive}))

	var child model.BlockHeader
	child = *header(t, 0x00, 0)
	child.HashPrevBlock = parent.Hash()
	child.Nonce = 99
	require.NoError(t, s.PutHeader(ctx, &chain.IndexEntry{Header: &child, Height: 2, CumulativeWork: []byte{0x02}, Status: chain.StatusValid}))

	children, err := s.Children(ctx, parent.Hash())
	require.NoError(t, err)
	require.Len(t, children, 1)
	require.Equal(t, uint32(2), children[0].Height)
}

func TestActiveTipRoundTrip(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	h := header(t, 0x03, 1)
	require.NoError(t, s.PutHeader(ctx, &chain.IndexEntry{Header: h, Height: 3, CumulativeWork: []byte{0x01}, Status: chain.StatusActive}))
	require.NoError(t, s.SetActiveTip(ctx, h.Hash()))

	tip, err := s.ActiveTip(ctx)
	require.NoError(t, err)
	require.NotNil(t, tip)
	require.Equal(t, uint32(3), tip.Height)
}

func TestActiveTipEmptyReturnsNil(t *testing.T) {
	s := newTestStore(t)
	tip, err := s.ActiveTip(context.Background())
	require.NoError(t, err)
	require.Nil(t, tip)
}
