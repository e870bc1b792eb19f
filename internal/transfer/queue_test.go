package transfer

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func ids(page Page) []string {
	out := make([]string, 0, len(page.Items))
	for _, row := range page.Items {
		out = append(out, row.RequestNumber)
	}
	return out
}

func TestQueueMembership(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	approved := f.seed(t, StatusApproved, "br-1", "br-2")
	deliveringHQ := f.seed(t, StatusDelivering, "br-1", "hq")
	deliveringBr2 := f.seed(t, StatusDelivering, "br-3", "br-2")
	for _, s := range []Status{StatusNew, StatusRejected, StatusCompleted} {
		f.seed(t, s, "br-1", "hq")
	}

	out, err := f.svc.ListOutbound(ctx, OutboundFilter{})
	require.NoError(t, err)
	require.Equal(t, []string{approved.RequestNumber}, ids(out))
	require.Equal(t, []Action{ActionDispatch}, out.Items[0].Actions)
	require.Equal(t, "Old Town", out.Items[0].DestinationName)

	all, err := f.svc.ListOutbound(ctx, OutboundFilter{AllStatuses: true})
	require.NoError(t, err)
	require.Equal(t, 6, all.Total)

	in, err := f.svc.ListInbound(ctx, InboundFilter{DestinationID: "hq"})
	require.NoError(t, err)
	require.Equal(t, []string{deliveringHQ.RequestNumber}, ids(in))

	in, err = f.svc.ListInbound(ctx, InboundFilter{DestinationID: "br-2"})
	require.NoError(t, err)
	require.Equal(t, []string{deliveringBr2.RequestNumber}, ids(in))

	in, err = f.svc.ListInbound(ctx, InboundFilter{DestinationID: "br-2", OriginID: "br-1"})
	require.NoError(t, err)
	require.Empty(t, in.Items)

	_, err = f.svc.ListInbound(ctx, InboundFilter{})
	require.ErrorIs(t, err, ErrValidation)
}

func TestQueueSearch(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	a := f.seed(t, StatusDelivering, "br-1", "hq")
	b := f.seed(t, StatusDelivering, "br-3", "hq")

	in, err := f.svc.ListInbound(ctx, InboundFilter{DestinationID: "hq", Search: "airport"})
	require.NoError(t, err)
	require.Equal(t, []string{b.RequestNumber}, ids(in))

	in, err = f.svc.ListInbound(ctx, InboundFilter{DestinationID: "hq", Search: a.RequestNumber})
	require.NoError(t, err)
	require.Equal(t, []string{a.RequestNumber}, ids(in))

	f.seed(t, StatusApproved, "hq", "br-2")
	out, err := f.svc.ListOutbound(ctx, OutboundFilter{Search: "OLD"})
	require.NoError(t, err)
	require.Len(t, out.Items, 1)
}

func TestSortIsStableAndToggles(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	origins := []string{"br-2", "br-1", "br-2", "br-3"}
	for i, origin := range origins {
		_, err := f.repo.Create(ctx, StockRequest{
			OriginID: origin, DestinationID: "hq", Status: StatusDelivering,
			Date:  base.Add(time.Duration(len(origins)-i) * time.Hour),
			Items: make([]Line, i%2+1),
		})
		require.NoError(t, err)
	}

	state := SortState{}.Toggle(SortOrigin)
	require.Equal(t, SortState{Key: SortOrigin, Direction: Asc}, state)
	page, err := f.svc.ListInbound(ctx, InboundFilter{DestinationID: "hq", Sort: state})
	require.NoError(t, err)
	// Airport Kiosk, Harbour Street, Old Town x2 in creation order.
	require.Equal(t, []string{"REQ-000004", "REQ-000002", "REQ-000001", "REQ-000003"}, ids(page))

	state = state.Toggle(SortOrigin)
	require.Equal(t, Desc, state.Direction)
	page, err = f.svc.ListInbound(ctx, InboundFilter{DestinationID: "hq", Sort: state})
	require.NoError(t, err)
	require.Equal(t, []string{"REQ-000001", "REQ-000003", "REQ-000002", "REQ-000004"}, ids(page))

	state = state.Toggle(SortDate)
	require.Equal(t, SortState{Key: SortDate, Direction: Asc}, state)
	page, err = f.svc.ListInbound(ctx, InboundFilter{DestinationID: "hq", Sort: state})
	require.NoError(t, err)
	require.Equal(t, []string{"REQ-000004", "REQ-000003", "REQ-000002", "REQ-000001"}, ids(page))

	page, err = f.svc.ListInbound(ctx, InboundFilter{DestinationID: "hq", Sort: SortState{Key: SortItems, Direction: Asc}})
	require.NoError(t, err)
	require.Equal(t, []string{"REQ-000001", "REQ-000003", "REQ-000002", "REQ-000004"}, ids(page))

	_, err = f.svc.ListOutbound(ctx, OutboundFilter{Sort: SortState{Key: SortItems, Direction: Asc}})
	require.ErrorIs(t, err, ErrValidation)
	_, err = f.svc.ListInbound(ctx, InboundFilter{DestinationID: "hq", Sort: SortState{Key: SortDestination}})
	require.ErrorIs(t, err, ErrValidation)
}

func TestQueuePagination(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	for i := 0; i < 27; i++ {
		f.seed(t, StatusApproved, "hq", fmt.Sprintf("br-%d", i%3+1))
	}

	page, err := f.svc.ListOutbound(ctx, OutboundFilter{Page: 3, PerPage: 10})
	require.NoError(t, err)
	require.Len(t, page.Items, 7)
	require.Equal(t, 27, page.Total)
	require.Equal(t, 3, page.TotalPages)
	require.Equal(t, "REQ-000021", page.Items[0].RequestNumber)

	page, err = f.svc.ListOutbound(ctx, OutboundFilter{Page: 1, PerPage: 25})
	require.NoError(t, err)
	require.Len(t, page.Items, 25)
	require.Equal(t, 2, page.TotalPages)

	page, err = f.svc.ListOutbound(ctx, OutboundFilter{Page: 1, PerPage: 7})
	require.NoError(t, err)
	require.Equal(t, 10, page.PerPage)
	require.Len(t, page.Items, 10)

	page, err = f.svc.ListOutbound(ctx, OutboundFilter{Page: 9, PerPage: 10})
	require.NoError(t, err)
	require.Empty(t, page.Items)
}
