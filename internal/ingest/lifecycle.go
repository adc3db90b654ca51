package ingest

import (
	"context"
	"fmt"

	sw "github.com/filanov/stateswitch"
	"github.com/metal-toolbox/inventory/internal/model"
	"github.com/pkg/errors"
)

const (
	// StateUnassigned is the lifecycle state of a record no operator has curated yet.
	StateUnassigned sw.State = "unassigned"
)

var (
	ErrTransition               = errors.New("asset status transition not allowed")
	ErrInvalidTransitionHandler = errors.New("expected a valid *statusTransition type")
)

// lifecycleState returns the state machine state of an asset status.
func lifecycleState(status model.AssetStatus) sw.State {
	if status == model.StatusUnassigned {
		return StateUnassigned
	}

	return sw.State(status)
}

// transitionType returns the transition moving an asset to status.
func transitionType(status model.AssetStatus) sw.TransitionType {
	return sw.TransitionType("set-" + string(status))
}

// asset is the stateswitch subject of a status update.
type asset struct {
	hostname string
	status   model.AssetStatus
}

func (a *asset) State() sw.State {
	return lifecycleState(a.status)
}

func (a *asset) SetState(state sw.State) error {
	if state == StateUnassigned {
		a.status = model.StatusUnassigned
		return nil
	}

	status, err := model.ParseAssetStatus(string(state))
	if err != nil {
		return err
	}

	a.status = status

	return nil
}

// statusTransition carries the inputs of a status update through its transition handlers.
type statusTransition struct {
	ctx context.Context
	// status is the destination status
	status model.AssetStatus
	entry  *model.MaintenanceLogEntry
	// persist writes the new status, and the entry when set, to the store.
	persist func(ctx context.Context, status model.AssetStatus, entry *model.MaintenanceLogEntry) error
	// notify runs once the new status is persisted.
	notify func(ctx context.Context, status model.AssetStatus)
}

// Lifecycle is the asset status state machine.
//
// Every status may move to every status unless decommissioned is terminal,
// in which case a decommissioned asset may only be decommissioned again,
// recording further maintenance entries.
type Lifecycle struct {
	sm       sw.StateMachine
	terminal bool
}

// NewLifecycle returns the asset lifecycle state machine.
func NewLifecycle(terminalDecommissioned bool) *Lifecycle {
	l := &Lifecycle{sm: sw.NewStateMachine(), terminal: terminalDecommissioned}

	sources := sw.States{StateUnassigned}
	for _, s := range model.AssetStatuses() {
		if terminalDecommissioned && s == model.StatusDecommissioned {
			continue
		}

		sources = append(sources, lifecycleState(s))
	}

	for _, status := range model.AssetStatuses() {
		from := sources
		if terminalDecommissioned && status == model.StatusDecommissioned {
			from = append(append(sw.States{}, sources...), lifecycleState(model.StatusDecommissioned))
		}

		l.sm.AddTransition(sw.TransitionRule{
			TransitionType:   transitionType(status),
			SourceStates:     from,
			DestinationState: lifecycleState(status),
			Transition:       l.persist,
			PostTransition:   l.notify,
			Documentation: sw.TransitionRuleDoc{
				Name:        string(transitionType(status)),
				Description: fmt.Sprintf("Set the asset status to %s, optionally recording a maintenance log entry.", status),
			},
		})
	}

	l.sm.DescribeState(StateUnassigned, sw.StateDoc{
		Name:        string(StateUnassigned),
		Description: "The asset record was created by a snapshot and no status was set yet.",
	})

	for _, status := range model.AssetStatuses() {
		l.sm.DescribeState(lifecycleState(status), sw.StateDoc{
			Name:        string(status),
			Description: fmt.Sprintf("The asset is %s.", status),
		})
	}

	return l
}

// Run moves the asset to args.status.
func (l *Lifecycle) Run(a *asset, args *statusTransition) error {
	from := a.State()

	err := l.sm.Run(transitionType(args.status), a, args)
	if err != nil {
		if errors.Is(err, sw.NoConditionPassedToRunTransaction) {
			return errors.Wrap(
				ErrTransition,
				fmt.Sprintf("no transition rule found for status '%s' from state '%s'", args.status, from),
			)
		}

		return err
	}

	return nil
}

// DescribeAsJSON returns a JSON output describing the lifecycle state machine.
func (l *Lifecycle) DescribeAsJSON() ([]byte, error) {
	return l.sm.AsJSON()
}

func (l *Lifecycle) persist(_ sw.StateSwitch, args sw.TransitionArgs) error {
	st, ok := args.(*statusTransition)
	if !ok {
		return ErrInvalidTransitionHandler
	}

	// the subject moves to the destination state once this returns
	return st.persist(st.ctx, st.status, st.entry)
}

func (l *Lifecycle) notify(sws sw.StateSwitch, args sw.TransitionArgs) error {
	st, ok := args.(*statusTransition)
	if !ok {
		return ErrInvalidTransitionHandler
	}

	a, ok := sws.(*asset)
	if !ok {
		return ErrInvalidTransitionHandler
	}

	if st.notify != nil {
		st.notify(st.ctx, a.status)
	}

	return nil
}

// Terminal returns true when decommissioned is a terminal state.
func (l *Lifecycle) Terminal() bool {
	return l.terminal
}
