package flowallocator

import (
	"fmt"

	"github.com/samber/lo"

	"github.com/rinad/rinad/internal/errdefs"
	"github.com/rinad/rinad/internal/naming"
)

// NewFlowRequestPolicy picks the QoS cube to use for a requested FlowSpec.
// Grounded on INewFlowRequetPolicy/SimpleNewFlowRequestPolicy.
type NewFlowRequestPolicy interface {
	SelectCube(cubes []naming.QoSCube, want naming.FlowSpec) (naming.QoSCube, error)
}

// SimpleNewFlowRequestPolicy picks the first configured cube whose bounds
// dominate the requested FlowSpec, in configuration order.
type SimpleNewFlowRequestPolicy struct{}

func (SimpleNewFlowRequestPolicy) SelectCube(cubes []naming.QoSCube, want naming.FlowSpec) (naming.QoSCube, error) {
	cube, ok := lo.Find(cubes, func(c naming.QoSCube) bool {
		return c.Bounds.Dominates(want)
	})
	if !ok {
		return naming.QoSCube{}, fmt.Errorf("%w: no configured cube dominates the requested flow spec", errdefs.ErrQoSNotAchievable)
	}
	return cube, nil
}
