// Package lifecycle holds the visitor state machine: a product of the
// lifecycle and permission axes with an explicit transition table.
package lifecycle

import (
	"fmt"

	"gatehouse/internal/models"
)

// State is the tagged (lifecycle, permission) pair of a visit.
type State struct {
	Lifecycle  models.LifecycleState
	Permission models.PermissionState
}

func (s State) String() string {
	return fmt.Sprintf("%s/%s", s.Lifecycle, s.Permission)
}

// Of reads the state pair off a record.
func Of(rec *models.VisitorRecord) State {
	return State{Lifecycle: rec.Status, Permission: rec.PermissionStatus}
}

// Event is an input to the machine.
type Event string

const (
	Log                Event = "log"
	RequestPermission  Event = "request_permission"
	Allow              Event = "allow"
	Deny               Event = "deny"
	Approve            Event = "approve"
	Reject             Event = "reject"
	CheckIn            Event = "check_in"
	CheckOut           Event = "check_out"
	ResidentPreApprove Event = "resident_pre_approve"
	AdminPreApprove    Event = "admin_pre_approve"
)

var (
	allLive = []models.LifecycleState{
		models.LifecycleCreated,
		models.LifecyclePermissionRequested,
		models.LifecyclePreApproved,
		models.LifecycleInside,
	}
	beforeEntry = []models.LifecycleState{
		models.LifecycleCreated,
		models.LifecyclePermissionRequested,
		models.LifecyclePreApproved,
	}
)

type rule struct {
	// from lists the lifecycle states the event is legal in under strict policy.
	from []models.LifecycleState
	// loose widens from under permissive policy.
	loose []models.LifecycleState
	// exitedIsTerminal reports AlreadyExited rather than InvalidTransition out of exited.
	exitedIsTerminal bool
	// refusedBlocks rejects the event while permission is denied or rejected (strict only).
	refusedBlocks bool
	to            func(State) State
}

func setPermission(p models.PermissionState) func(State) State {
	return func(s State) State { return State{Lifecycle: s.Lifecycle, Permission: p} }
}

func setLifecycle(l models.LifecycleState) func(State) State {
	return func(s State) State { return State{Lifecycle: l, Permission: s.Permission} }
}

var table = map[Event]rule{
	RequestPermission: {
		from: []models.LifecycleState{models.LifecycleCreated, models.LifecyclePermissionRequested},
		to: func(State) State {
			return State{Lifecycle: models.LifecyclePermissionRequested, Permission: models.PermissionPending}
		},
	},
	Allow: {
		from:  []models.LifecycleState{models.LifecycleCreated, models.LifecyclePermissionRequested},
		loose: allLive,
		to:    setPermission(models.PermissionAllowed),
	},
	Deny: {
		from:  []models.LifecycleState{models.LifecycleCreated, models.LifecyclePermissionRequested},
		loose: allLive,
		to:    setPermission(models.PermissionDenied),
	},
	Approve: {
		from: allLive,
		to:   setPermission(models.PermissionApproved),
	},
	Reject: {
		from: allLive,
		to:   setPermission(models.PermissionRejected),
	},
	CheckIn: {
		from:             beforeEntry,
		loose:            allLive,
		exitedIsTerminal: true,
		refusedBlocks:    true,
		to:               setLifecycle(models.LifecycleInside),
	},
	CheckOut: {
		from:             []models.LifecycleState{models.LifecycleInside},
		loose:            []models.LifecycleState{models.LifecycleInside, models.LifecycleExited},
		exitedIsTerminal: true,
		to:               setLifecycle(models.LifecycleExited),
	},
}

var initial = map[Event]State{
	Log:                {Lifecycle: models.LifecycleCreated, Permission: models.PermissionPending},
	ResidentPreApprove: {Lifecycle: models.LifecyclePreApproved, Permission: models.PermissionAllowed},
	AdminPreApprove:    {Lifecycle: models.LifecyclePreApproved, Permission: models.PermissionPreApproved},
}

// Machine applies events under a policy. The zero value is permissive;
// use New for the default strict policy.
type Machine struct {
	Strict bool
}

// New returns a machine with the given policy.
func New(strict bool) Machine {
	return Machine{Strict: strict}
}

// Start returns the state a creation event produces.
func (m Machine) Start(ev Event) (State, error) {
	s, ok := initial[ev]
	if !ok {
		return State{}, models.NewInvalidTransitionError("none", string(ev))
	}
	return s, nil
}

// Apply validates ev against s and returns the resulting state.
func (m Machine) Apply(s State, ev Event) (State, error) {
	r, ok := table[ev]
	if !ok {
		return State{}, models.NewInvalidTransitionError(s.String(), string(ev))
	}

	allowed := r.from
	if !m.Strict && r.loose != nil {
		allowed = r.loose
	}
	if !contains(allowed, s.Lifecycle) {
		if s.Lifecycle == models.LifecycleExited && r.exitedIsTerminal {
			return State{}, models.NewAlreadyExitedError()
		}
		return State{}, models.NewInvalidTransitionError(s.String(), string(ev))
	}
	if m.Strict && r.refusedBlocks && s.Permission.Refused() {
		return State{}, models.NewInvalidTransitionError(s.String(), string(ev))
	}
	return r.to(s), nil
}

// Can reports whether ev is legal from s.
func (m Machine) Can(s State, ev Event) bool {
	_, err := m.Apply(s, ev)
	return err == nil
}

// Alert reports the inconsistent combination left by racing writes: a
// visitor inside the gate whose permission was refused.
func Alert(s State) bool {
	return s.Lifecycle == models.LifecycleInside && s.Permission.Refused()
}

// Events lists every event the machine knows, creation events included.
func Events() []Event {
	return []Event{Log, RequestPermission, Allow, Deny, Approve, Reject, CheckIn, CheckOut, ResidentPreApprove, AdminPreApprove}
}

func contains(states []models.LifecycleState, s models.LifecycleState) bool {
	for _, v := range states {
		if v == s {
			return true
		}
	}
	return false
}
