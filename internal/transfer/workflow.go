package transfer

import "fmt"

// Action is a lifecycle operation on a stock request.
type Action string

const (
	ActionEdit     Action = "edit"
	ActionDelete   Action = "delete"
	ActionApprove  Action = "approve"
	ActionReject   Action = "reject"
	ActionDispatch Action = "dispatch"
	ActionReceive  Action = "receive"
)

// Actions lists every operation.
var Actions = []Action{ActionEdit, ActionDelete, ActionApprove, ActionReject, ActionDispatch, ActionReceive}

type transition struct {
	from Status
	to   Status
}

// Edit keeps the status; Delete removes the request and has no target.
var transitions = map[Action]transition{
	ActionEdit:     {from: StatusNew, to: StatusNew},
	ActionDelete:   {from: StatusNew},
	ActionApprove:  {from: StatusNew, to: StatusApproved},
	ActionReject:   {from: StatusNew, to: StatusRejected},
	ActionDispatch: {from: StatusApproved, to: StatusDelivering},
	ActionReceive:  {from: StatusDelivering, to: StatusCompleted},
}

// Next returns the status reached by applying action to current, or
// ErrInvalidTransition when the action is not allowed from current.
func Next(current Status, action Action) (Status, error) {
	t, ok := transitions[action]
	if !ok || t.from != current {
		return current, fmt.Errorf("%w: cannot %s a %s request", ErrInvalidTransition, action, current)
	}
	return t.to, nil
}

// Allowed lists the actions accepted from status.
func Allowed(status Status) []Action {
	var out []Action
	for _, a := range Actions {
		if transitions[a].from == status {
			out = append(out, a)
		}
	}
	return out
}
