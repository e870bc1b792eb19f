package transfer

import (
	"cmp"
	"context"
	"fmt"
	"slices"
	"strings"

	"github.com/forkline/forkline/internal/shared"
)

// SortKey names a sortable queue column.
type SortKey string

const (
	SortRequestNumber SortKey = "requestNumber"
	SortDestination   SortKey = "destination"
	SortOrigin        SortKey = "origin"
	SortDate          SortKey = "date"
	SortItems         SortKey = "items"
	SortStatus        SortKey = "status"
)

var (
	outboundKeys = []SortKey{SortRequestNumber, SortDestination, SortDate, SortStatus}
	inboundKeys  = []SortKey{SortRequestNumber, SortOrigin, SortDate, SortItems, SortStatus}
)

// Direction is a sort direction.
type Direction string

const (
	Asc  Direction = "asc"
	Desc Direction = "desc"
)

// SortState is the current sort of a queue table. A zero SortState keeps
// creation order.
type SortState struct {
	Key       SortKey   `json:"key,omitempty"`
	Direction Direction `json:"direction,omitempty"`
}

// Toggle returns the state after selecting key: the same key flips the
// direction, a new key starts ascending.
func (s SortState) Toggle(key SortKey) SortState {
	if s.Key == key {
		if s.Direction == Desc {
			return SortState{Key: key, Direction: Asc}
		}
		return SortState{Key: key, Direction: Desc}
	}
	return SortState{Key: key, Direction: Asc}
}

// OutboundFilter narrows the outbound queue.
type OutboundFilter struct {
	Search string
	// AllStatuses lists every request instead of only those ready to
	// dispatch.
	AllStatuses bool
	Sort        SortState
	Page        int
	PerPage     int
}

// InboundFilter narrows the inbound queue of one destination.
type InboundFilter struct {
	DestinationID string
	OriginID      string
	Search        string
	Sort          SortState
	Page          int
	PerPage       int
}

// QueueRow is a request with resolved location names.
type QueueRow struct {
	StockRequest
	OriginName      string `json:"origin_name"`
	DestinationName string `json:"destination_name"`
	// Actions the row's process button may trigger.
	Actions []Action `json:"actions"`
}

// Page is one window of a queue.
type Page struct {
	Items []QueueRow `json:"items"`
	Sort  SortState  `json:"sort"`
	shared.Pagination
}

// ListOutbound returns requests waiting to be dispatched.
func (s *Service) ListOutbound(ctx context.Context, filter OutboundFilter) (Page, error) {
	if err := checkSortKey(filter.Sort, outboundKeys); err != nil {
		return Page{}, err
	}
	rows, err := s.rows(ctx)
	if err != nil {
		return Page{}, err
	}
	search := strings.ToLower(strings.TrimSpace(filter.Search))
	selected := rows[:0]
	for _, row := range rows {
		if !filter.AllStatuses && row.Status != StatusApproved {
			continue
		}
		if search != "" && !containsAny(search, row.RequestNumber, row.DestinationName) {
			continue
		}
		selected = append(selected, row)
	}
	return paginate(sortRows(selected, filter.Sort), filter.Sort, filter.Page, filter.PerPage), nil
}

// ListInbound returns requests en route to filter.DestinationID.
func (s *Service) ListInbound(ctx context.Context, filter InboundFilter) (Page, error) {
	if strings.TrimSpace(filter.DestinationID) == "" {
		return Page{}, fmt.Errorf("%w: destination branch required", ErrValidation)
	}
	if err := checkSortKey(filter.Sort, inboundKeys); err != nil {
		return Page{}, err
	}
	rows, err := s.rows(ctx)
	if err != nil {
		return Page{}, err
	}
	search := strings.ToLower(strings.TrimSpace(filter.Search))
	selected := rows[:0]
	for _, row := range rows {
		if row.Status != StatusDelivering || row.DestinationID != filter.DestinationID {
			continue
		}
		if filter.OriginID != "" && row.OriginID != filter.OriginID {
			continue
		}
		if search != "" && !containsAny(search, row.RequestNumber, row.OriginName) {
			continue
		}
		selected = append(selected, row)
	}
	return paginate(sortRows(selected, filter.Sort), filter.Sort, filter.Page, filter.PerPage), nil
}

func (s *Service) rows(ctx context.Context) ([]QueueRow, error) {
	all, err := s.repo.List(ctx)
	if err != nil {
		return nil, err
	}
	names := map[string]string{}
	if s.directory != nil {
		if names, err = s.directory.Names(ctx); err != nil {
			return nil, err
		}
	}
	rows := make([]QueueRow, 0, len(all))
	for _, req := range all {
		rows = append(rows, QueueRow{
			StockRequest:    req,
			OriginName:      nameOr(names, req.OriginID),
			DestinationName: nameOr(names, req.DestinationID),
			Actions:         processActions(req.Status),
		})
	}
	return rows, nil
}

func processActions(status Status) []Action {
	var out []Action
	for _, a := range Allowed(status) {
		if a != ActionEdit && a != ActionDelete {
			out = append(out, a)
		}
	}
	return out
}

func sortRows(rows []QueueRow, state SortState) []QueueRow {
	if state.Key == "" {
		return rows
	}
	slices.SortStableFunc(rows, func(a, b QueueRow) int {
		c := compareRows(a, b, state.Key)
		if state.Direction == Desc {
			return -c
		}
		return c
	})
	return rows
}

func compareRows(a, b QueueRow, key SortKey) int {
	switch key {
	case SortRequestNumber:
		return cmp.Compare(a.RequestNumber, b.RequestNumber)
	case SortDestination:
		return cmp.Compare(strings.ToLower(a.DestinationName), strings.ToLower(b.DestinationName))
	case SortOrigin:
		return cmp.Compare(strings.ToLower(a.OriginName), strings.ToLower(b.OriginName))
	case SortDate:
		return a.Date.Compare(b.Date)
	case SortItems:
		return cmp.Compare(a.ItemCount(), b.ItemCount())
	case SortStatus:
		return cmp.Compare(a.Status, b.Status)
	}
	return 0
}

func paginate(rows []QueueRow, state SortState, page, perPage int) Page {
	p := shared.NewPagination(page, perPage, len(rows))
	start, end := p.Window()
	items := make([]QueueRow, end-start)
	copy(items, rows[start:end])
	return Page{Items: items, Sort: state, Pagination: p}
}

func checkSortKey(state SortState, allowed []SortKey) error {
	if state.Key == "" {
		return nil
	}
	if !slices.Contains(allowed, state.Key) {
		return fmt.Errorf("%w: cannot sort by %q", ErrValidation, state.Key)
	}
	if state.Direction != "" && state.Direction != Asc && state.Direction != Desc {
		return fmt.Errorf("%w: unknown sort direction %q", ErrValidation, state.Direction)
	}
	return nil
}

func containsAny(needle string, fields ...string) bool {
	for _, f := range fields {
		if strings.Contains(strings.ToLower(f), needle) {
			return true
		}
	}
	return false
}

func nameOr(names map[string]string, id string) string {
	if name, ok := names[id]; ok && name != "" {
		return name
	}
	return id
}
