package transfer

import (
	"context"
	"testing"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
)

func TestCounterSequencer(t *testing.T) {
	seq := NewCounterSequencer(41)
	n, err := seq.Next(context.Background())
	require.NoError(t, err)
	require.Equal(t, "REQ-000042", n)
	require.Equal(t, "REQ-1000000", FormatRequestNumber(1000000))
}

func TestRedisSequencerSharesCounter(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer client.Close()
	ctx := context.Background()

	a := NewRedisSequencer(client)
	b := NewRedisSequencer(client)
	first, err := a.Next(ctx)
	require.NoError(t, err)
	second, err := b.Next(ctx)
	require.NoError(t, err)
	require.Equal(t, "REQ-000001", first)
	require.Equal(t, "REQ-000002", second)

	got, err := mr.Get(RequestNumberKey)
	require.NoError(t, err)
	require.Equal(t, "2", got)

	repo := NewMemoryRepository(a)
	req, err := repo.Create(ctx, StockRequest{OriginID: "br-1", DestinationID: "hq", Status: StatusNew})
	require.NoError(t, err)
	require.Equal(t, "REQ-000003", req.RequestNumber)
}

func TestParseRequestNumber(t *testing.T) {
	n, ok := ParseRequestNumber("REQ-000042")
	require.True(t, ok)
	require.Equal(t, int64(42), n)

	for _, bad := range []string{"", "REQ-", "PO-000001", "REQ-12a", "REQ--1"} {
		_, ok := ParseRequestNumber(bad)
		require.False(t, ok, bad)
	}
}

func TestCounterSequencerAdvanceNeverMovesBack(t *testing.T) {
	ctx := context.Background()
	seq := NewCounterSequencer(10)
	require.NoError(t, seq.Advance(ctx, 4))
	n, err := seq.Next(ctx)
	require.NoError(t, err)
	require.Equal(t, "REQ-000011", n)

	require.NoError(t, seq.Advance(ctx, 30))
	n, err = seq.Next(ctx)
	require.NoError(t, err)
	require.Equal(t, "REQ-000031", n)
}

func TestRedisSequencerAdvance(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer client.Close()
	ctx := context.Background()
	seq := NewRedisSequencer(client)

	// A flushed counter is missing entirely.
	require.NoError(t, seq.Advance(ctx, 12))
	n, err := seq.Next(ctx)
	require.NoError(t, err)
	require.Equal(t, "REQ-000013", n)

	require.NoError(t, seq.Advance(ctx, 5))
	n, err = seq.Next(ctx)
	require.NoError(t, err)
	require.Equal(t, "REQ-000014", n)
}

func TestCreateSkipsNumbersAlreadyStored(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	// Rows left from an earlier process whose counter started at zero too.
	for _, number := range []string{"REQ-000001", "REQ-000007"} {
		_, err := f.repo.Create(ctx, StockRequest{
			RequestNumber: number, OriginID: "br-1", DestinationID: "hq", Status: StatusNew,
			Items: []Line{{ItemID: "X", Quantity: 1}},
		})
		require.NoError(t, err)
	}

	created, err := f.svc.Create(ctx, sampleInput("br-1", "hq"))
	require.NoError(t, err)
	require.Equal(t, "REQ-000008", created.RequestNumber)

	next, err := f.svc.Create(ctx, sampleInput("br-2", "hq"))
	require.NoError(t, err)
	require.Equal(t, "REQ-000009", next.RequestNumber)
}

func TestCreateRejectsTakenSuppliedNumber(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	first, err := f.svc.Create(ctx, sampleInput("br-1", "hq"))
	require.NoError(t, err)

	input := sampleInput("br-2", "hq")
	input.RequestNumber = first.RequestNumber
	_, err = f.svc.Create(ctx, input)
	require.ErrorIs(t, err, ErrDuplicate)
}

type fixedSequencer string

func (s fixedSequencer) Next(context.Context) (string, error) { return string(s), nil }

func TestCreateGivesUpOnStuckSequencer(t *testing.T) {
	ctx := context.Background()
	repo := NewMemoryRepository(fixedSequencer("REQ-000001"))
	_, err := repo.Create(ctx, StockRequest{OriginID: "br-1", DestinationID: "hq", Status: StatusNew})
	require.NoError(t, err)

	_, err = repo.Create(ctx, StockRequest{OriginID: "br-1", DestinationID: "hq", Status: StatusNew})
	require.ErrorIs(t, err, ErrDuplicate)
}
