// Package ribpaths names the fixed RIB object paths for Flow Allocator and
// Security Manager state. Only the Flow Allocator paths are written to.
package ribpaths

// Flow Allocator paths.
const (
	// FlowInstances is the parent set under which each live flow is
	// published as a FlowRIBObject, keyed by port-id:
	// FlowInstances + "<port-id>".
	FlowInstances = "/dif/resource-allocation/flow-allocator/instances/"

	// QoSCubes is the parent set for the configured QoS cube catalog,
	// keyed by cube id: QoSCubes + "<id>".
	QoSCubes = "/dif/management/flow-allocator/qos-cubes/"

	// DataTransferConstants holds the data-transfer constants; cmd/rinad
	// stores the configured MPL there at startup. No message handler
	// writes to it.
	DataTransferConstants = "/dif/resource-allocation/flow-allocator/data-transfer-constants"
)

// Security Manager paths. Unlike flows and cubes, sessions are not exposed
// remotely. The Security Manager does not publish its contexts here, so
// query-rib finds nothing under these paths.
const (
	SecurityContexts = "/dif/security-manager/contexts/"
)
