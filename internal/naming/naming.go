// Package naming defines the immutable value types shared by every control
// message and RIB object: application names, flow specifications, and QoS
// cubes.
package naming

import "fmt"

// ApplicationName is the four-tuple that identifies an application process,
// an IPC Process, or a DIF (in which case ProcessName is the only field that
// may legitimately be empty). Equality and ordering are structural.
type ApplicationName struct {
	ProcessName     string
	ProcessInstance string
	EntityName      string
	EntityInstance  string
}

// IsEmpty reports whether every field of n is the empty string.
func (n ApplicationName) IsEmpty() bool {
	return n.ProcessName == "" && n.ProcessInstance == "" && n.EntityName == "" && n.EntityInstance == ""
}

// Less implements the 4-tuple lexicographic ordering used to break ties when
// names are stored in sorted structures.
func (n ApplicationName) Less(other ApplicationName) bool {
	return n.String() < other.String()
}

func (n ApplicationName) String() string {
	return fmt.Sprintf("%s:%s:%s:%s", n.ProcessName, n.ProcessInstance, n.EntityName, n.EntityInstance)
}

// UnspecifiedUint is the sentinel distinguishing "caller did not specify this
// QoS bound" from a bound of zero.
const UnspecifiedUint = ^uint64(0)

// FlowSpec carries the QoS requested for a flow. A numeric bound whose *Set
// flag is false means the caller did not constrain that dimension, as
// distinct from requesting a value of zero.
type FlowSpec struct {
	AverageBandwidth    uint64
	AverageBandwidthSet bool
	PeakBandwidth       uint64
	PeakBandwidthSet    bool
	BurstSize           uint64
	BurstSizeSet        bool
	LossPPM             uint32
	LossPPMSet          bool
	MaxDelayUs          uint32
	MaxDelayUsSet       bool
	MaxJitterUs         uint32
	MaxJitterUsSet      bool
	OrderedDelivery     bool
	PartialDelivery     bool
}

// Dominates reports whether every bound specified in want is honored by the
// cube's bounds c. Unspecified fields in want are ignored. This is the
// predicate SimpleNewFlowRequestPolicy scans for.
func (c FlowSpec) Dominates(want FlowSpec) bool {
	if want.AverageBandwidthSet && want.AverageBandwidth > c.AverageBandwidth {
		return false
	}
	if want.PeakBandwidthSet && want.PeakBandwidth > c.PeakBandwidth {
		return false
	}
	if want.BurstSizeSet && want.BurstSize > c.BurstSize {
		return false
	}
	if want.LossPPMSet && want.LossPPM < c.LossPPM {
		return false
	}
	if want.MaxDelayUsSet && want.MaxDelayUs < c.MaxDelayUs {
		return false
	}
	if want.MaxJitterUsSet && want.MaxJitterUs < c.MaxJitterUs {
		return false
	}
	if want.OrderedDelivery && !c.OrderedDelivery {
		return false
	}
	if want.PartialDelivery && !c.PartialDelivery {
		return false
	}
	return true
}

// QoSCube is a pre-provisioned profile: the bounds it guarantees, immutable
// once configured.
type QoSCube struct {
	ID     uint32
	Name   string
	Bounds FlowSpec
}

// FlowID identifies a flow end to end, as the data model requires.
type FlowID struct {
	SourceName    ApplicationName
	DestName      ApplicationName
	PortIDLocal   uint32
	PortIDRemote  uint32
	DIFName       ApplicationName
}
