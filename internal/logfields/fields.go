// Package logfields names the structured-logging field keys shared across
// the control-plane components, so two handlers logging the same concept
// (a port-id, a session-id) use the same key.
package logfields

const (
	// Identifiers

	Name      = "name"
	Operation = "operation"

	PortID       = "port-id"
	RemotePortID = "remote-port-id"
	SessionID    = "session-id"
	FlowID       = "flow-id"
	DIFName      = "dif-name"
	IPCProcessID = "ipcp-id"
	ActivityID   = "activity-id"
	FamilyID     = "family-id"
	FamilyName   = "family-name"

	// Control-message catalog

	OpCode        = "op-code"
	SequenceNo    = "sequence-no"
	PolicyName    = "policy-name"
	ObjectClass   = "object-class"
	ObjectName    = "object-name"

	// Common Misc

	Attempt = "attempt-no"
	JSON    = "json"
	State   = "state"
	Result  = "result"

	// Time

	Duration  = "duration"
	Timeout   = "timeout"
	StartTime = "start-time"
	EndTime   = "end-time"

	// Golang types

	ExpectedType = "expected-type"

	// logging and tracing

	TraceID      = "traceID"
	SpanID       = "spanID"
	ParentSpanID = "parentSpanID"
)
