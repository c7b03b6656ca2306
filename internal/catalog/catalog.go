// Package catalog defines the closed set of control-message variants
// exchanged between applications, IPC Processes, and the IPC Manager, and
// the codec contracts that bind them to the wire envelope.
//
// Every variant is a tagged Go struct embedding RequestBase (requests and
// notifications) or ResponseBase (responses); the Header's OpCode identifies
// which variant a decoded message carries. The catalog never interprets payload semantics: it only
// guarantees decode(encode(x)) == x and rejects unknown op-codes with
// errdefs.ErrMalformedMessage instead of silently dropping them.
package catalog

import (
	"encoding/json"
	"fmt"

	"github.com/google/uuid"

	"github.com/rinad/rinad/internal/errdefs"
	"github.com/rinad/rinad/internal/naming"
)

// OpCode is the operation-code registry, reproduced name-for-name from the
// RINANetlinkOperationCode enum: a closed set, extending it is a codec
// change, not a configuration change.
type OpCode uint32

const (
	OpUnspecified OpCode = iota

	OpAppAllocateFlowRequest
	OpAppAllocateFlowRequestResult
	OpAppAllocateFlowRequestArrived
	OpAppAllocateFlowResponse
	OpAppDeallocateFlowRequest
	OpAppDeallocateFlowResponse
	OpAppFlowDeallocatedNotification
	OpAppRegisterApplicationRequest
	OpAppRegisterApplicationResponse
	OpAppUnregisterApplicationRequest
	OpAppUnregisterApplicationResponse
	OpAppRegistrationCanceledNotification
	OpAppGetDIFPropertiesRequest
	OpAppGetDIFPropertiesResponse

	OpIpcmAssignToDIFRequest
	OpIpcmAssignToDIFResponse
	OpIpcmIPCProcessDIFRegistrationNotification
	OpIpcmEnrollToDIFRequest
	OpIpcmEnrollToDIFResponse
	OpIpcmDisconnectFromNeighborRequest
	OpIpcmDisconnectFromNeighborResponse
	OpIpcmAllocateFlowRequest
	OpIpcmAllocateFlowResponse
	OpIpcmRegisterApplicationRequest
	OpIpcmRegisterApplicationResponse
	OpIpcmUnregisterApplicationRequest
	OpIpcmUnregisterApplicationResponse
	OpIpcmQueryRIBRequest
	OpIpcmQueryRIBResponse

	OpRmtAddFTERequest
	OpRmtDeleteFTERequest
	OpRmtDumpFTRequest
	OpRmtDumpFTReply

	// OpAuthExchange carries one security.AuthMessage leg of an
	// authentication handshake over the wire, addressed by port-id like
	// every other control message. It sits outside the App/Ipcm/Rmt
	// families because authentication is common to all of them.
	OpAuthExchange

	opCodeMax
)

func (c OpCode) String() string {
	if s, ok := opCodeNames[c]; ok {
		return s
	}
	return fmt.Sprintf("OpCode(%d)", uint32(c))
}

// valid reports whether c is a member of the closed registry above.
func (c OpCode) valid() bool {
	return c < opCodeMax
}

var opCodeNames = map[OpCode]string{
	OpUnspecified:                                "Unspecified",
	OpAppAllocateFlowRequest:                      "AppAllocateFlowRequest",
	OpAppAllocateFlowRequestResult:                "AppAllocateFlowRequestResult",
	OpAppAllocateFlowRequestArrived:               "AppAllocateFlowRequestArrived",
	OpAppAllocateFlowResponse:                     "AppAllocateFlowResponse",
	OpAppDeallocateFlowRequest:                    "AppDeallocateFlowRequest",
	OpAppDeallocateFlowResponse:                   "AppDeallocateFlowResponse",
	OpAppFlowDeallocatedNotification:              "AppFlowDeallocatedNotification",
	OpAppRegisterApplicationRequest:                "AppRegisterApplicationRequest",
	OpAppRegisterApplicationResponse:               "AppRegisterApplicationResponse",
	OpAppUnregisterApplicationRequest:              "AppUnregisterApplicationRequest",
	OpAppUnregisterApplicationResponse:             "AppUnregisterApplicationResponse",
	OpAppRegistrationCanceledNotification:          "AppRegistrationCanceledNotification",
	OpAppGetDIFPropertiesRequest:                   "AppGetDIFPropertiesRequest",
	OpAppGetDIFPropertiesResponse:                  "AppGetDIFPropertiesResponse",
	OpIpcmAssignToDIFRequest:                       "IpcmAssignToDIFRequest",
	OpIpcmAssignToDIFResponse:                      "IpcmAssignToDIFResponse",
	OpIpcmIPCProcessDIFRegistrationNotification:    "IpcmIPCProcessDIFRegistrationNotification",
	OpIpcmEnrollToDIFRequest:                        "IpcmEnrollToDIFRequest",
	OpIpcmEnrollToDIFResponse:                       "IpcmEnrollToDIFResponse",
	OpIpcmDisconnectFromNeighborRequest:             "IpcmDisconnectFromNeighborRequest",
	OpIpcmDisconnectFromNeighborResponse:            "IpcmDisconnectFromNeighborResponse",
	OpIpcmAllocateFlowRequest:                       "IpcmAllocateFlowRequest",
	OpIpcmAllocateFlowResponse:                      "IpcmAllocateFlowResponse",
	OpIpcmRegisterApplicationRequest:                "IpcmRegisterApplicationRequest",
	OpIpcmRegisterApplicationResponse:               "IpcmRegisterApplicationResponse",
	OpIpcmUnregisterApplicationRequest:              "IpcmUnregisterApplicationRequest",
	OpIpcmUnregisterApplicationResponse:             "IpcmUnregisterApplicationResponse",
	OpIpcmQueryRIBRequest:                           "IpcmQueryRIBRequest",
	OpIpcmQueryRIBResponse:                          "IpcmQueryRIBResponse",
	OpRmtAddFTERequest:                              "RmtAddFTERequest",
	OpRmtDeleteFTERequest:                           "RmtDeleteFTERequest",
	OpRmtDumpFTRequest:                              "RmtDumpFTRequest",
	OpRmtDumpFTReply:                                "RmtDumpFTReply",
	OpAuthExchange:                                  "AuthExchange",
}

// Role distinguishes the three message kinds the data model names.
type Role uint8

const (
	RoleRequest Role = iota
	RoleResponse
	RoleNotification
)

// Header carries the fields common to every control message, independent of
// payload: transport addressing plus the bookkeeping the Flow Allocator and
// Security Manager both need to correlate replies with requests.
type Header struct {
	FamilyID          int32
	SourcePortID      uint32
	DestPortID        uint32
	SourceIPCProcessID uint16
	DestIPCProcessID   uint16
	SequenceNumber    uint32
	OpCode            OpCode
	Role              Role
	ActivityID        uuid.UUID
}

// RequestBase is embedded by every request/notification payload.
type RequestBase struct {
	Header Header
}

func (b *RequestBase) Base() *Header { return &b.Header }

// ResponseBase is embedded by every response payload; Result/ErrorDescription
// follow the HRESULT-flavored convention from errdefs.
type ResponseBase struct {
	Header          Header
	Result          errdefs.Result
	ErrorDescription string              `json:",omitempty"`
	ErrorRecords    []errdefs.ErrorRecord `json:",omitempty"`
}

func (b *ResponseBase) Base() *Header { return &b.Header }

// Message is implemented by every payload type in this package.
type Message interface {
	Base() *Header
	opCode() OpCode
}

// --- App* variants -----------------------------------------------------

type AppAllocateFlowRequest struct {
	RequestBase
	SourceAppName     naming.ApplicationName
	DestAppName       naming.ApplicationName
	FlowSpecification naming.FlowSpec
}

func (m *AppAllocateFlowRequest) opCode() OpCode { return OpAppAllocateFlowRequest }

type AppAllocateFlowRequestResult struct {
	ResponseBase
	SourceAppName    naming.ApplicationName
	PortID           int32
	DIFName          naming.ApplicationName
	IPCProcessPortID uint32
	IPCProcessID     uint16
}

func (m *AppAllocateFlowRequestResult) opCode() OpCode { return OpAppAllocateFlowRequestResult }

type AppAllocateFlowRequestArrived struct {
	RequestBase
	SourceAppName     naming.ApplicationName
	DestAppName       naming.ApplicationName
	FlowSpecification naming.FlowSpec
	PortID            int32
	DIFName           naming.ApplicationName
}

func (m *AppAllocateFlowRequestArrived) opCode() OpCode { return OpAppAllocateFlowRequestArrived }

type AppAllocateFlowResponse struct {
	RequestBase
	DIFName      naming.ApplicationName
	Accept       bool
	DenyReason   string `json:",omitempty"`
	NotifySource bool
}

func (m *AppAllocateFlowResponse) opCode() OpCode { return OpAppAllocateFlowResponse }

type AppDeallocateFlowRequest struct {
	RequestBase
	PortID          int32
	ApplicationName naming.ApplicationName
}

func (m *AppDeallocateFlowRequest) opCode() OpCode { return OpAppDeallocateFlowRequest }

type AppDeallocateFlowResponse struct {
	ResponseBase
	PortID int32
}

func (m *AppDeallocateFlowResponse) opCode() OpCode { return OpAppDeallocateFlowResponse }

type AppFlowDeallocatedNotification struct {
	RequestBase
	PortID int32
	Code   errdefs.Result
}

func (m *AppFlowDeallocatedNotification) opCode() OpCode { return OpAppFlowDeallocatedNotification }

type AppRegisterApplicationRequest struct {
	RequestBase
	ApplicationName naming.ApplicationName
	DIFName         naming.ApplicationName
}

func (m *AppRegisterApplicationRequest) opCode() OpCode { return OpAppRegisterApplicationRequest }

type AppRegisterApplicationResponse struct {
	ResponseBase
	ApplicationName naming.ApplicationName
}

func (m *AppRegisterApplicationResponse) opCode() OpCode { return OpAppRegisterApplicationResponse }

type AppUnregisterApplicationRequest struct {
	RequestBase
	ApplicationName naming.ApplicationName
	DIFName         naming.ApplicationName
}

func (m *AppUnregisterApplicationRequest) opCode() OpCode { return OpAppUnregisterApplicationRequest }

type AppUnregisterApplicationResponse struct {
	ResponseBase
	ApplicationName naming.ApplicationName
}

func (m *AppUnregisterApplicationResponse) opCode() OpCode {
	return OpAppUnregisterApplicationResponse
}

type AppRegistrationCanceledNotification struct {
	RequestBase
	ApplicationName naming.ApplicationName
	DIFName         naming.ApplicationName
	Reason          string
}

func (m *AppRegistrationCanceledNotification) opCode() OpCode {
	return OpAppRegistrationCanceledNotification
}

type AppGetDIFPropertiesRequest struct {
	RequestBase
	ApplicationName naming.ApplicationName
	DIFName         naming.ApplicationName
}

func (m *AppGetDIFPropertiesRequest) opCode() OpCode { return OpAppGetDIFPropertiesRequest }

type AppGetDIFPropertiesResponse struct {
	ResponseBase
	ApplicationName naming.ApplicationName
	DIFNames        []naming.ApplicationName
}

func (m *AppGetDIFPropertiesResponse) opCode() OpCode { return OpAppGetDIFPropertiesResponse }

// --- Ipcm* variants ------------------------------------------------------

type IpcmAssignToDIFRequest struct {
	RequestBase
	DIFName naming.ApplicationName
}

func (m *IpcmAssignToDIFRequest) opCode() OpCode { return OpIpcmAssignToDIFRequest }

type IpcmAssignToDIFResponse struct {
	ResponseBase
}

func (m *IpcmAssignToDIFResponse) opCode() OpCode { return OpIpcmAssignToDIFResponse }

type IpcmIPCProcessDIFRegistrationNotification struct {
	RequestBase
	IPCProcessName naming.ApplicationName
	DIFName        naming.ApplicationName
	Registered     bool
}

func (m *IpcmIPCProcessDIFRegistrationNotification) opCode() OpCode {
	return OpIpcmIPCProcessDIFRegistrationNotification
}

type IpcmEnrollToDIFRequest struct {
	RequestBase
	DIFName       naming.ApplicationName
	SupportingDIF naming.ApplicationName
	NeighborName  naming.ApplicationName
}

func (m *IpcmEnrollToDIFRequest) opCode() OpCode { return OpIpcmEnrollToDIFRequest }

type IpcmEnrollToDIFResponse struct {
	ResponseBase
}

func (m *IpcmEnrollToDIFResponse) opCode() OpCode { return OpIpcmEnrollToDIFResponse }

type IpcmDisconnectFromNeighborRequest struct {
	RequestBase
	NeighborName naming.ApplicationName
}

func (m *IpcmDisconnectFromNeighborRequest) opCode() OpCode {
	return OpIpcmDisconnectFromNeighborRequest
}

type IpcmDisconnectFromNeighborResponse struct {
	ResponseBase
}

func (m *IpcmDisconnectFromNeighborResponse) opCode() OpCode {
	return OpIpcmDisconnectFromNeighborResponse
}

type IpcmAllocateFlowRequest struct {
	RequestBase
	SourceAppName       naming.ApplicationName
	DestAppName         naming.ApplicationName
	FlowSpecification   naming.FlowSpec
	DIFName             naming.ApplicationName
	RequestingPortID    uint32
}

func (m *IpcmAllocateFlowRequest) opCode() OpCode { return OpIpcmAllocateFlowRequest }

type IpcmAllocateFlowResponse struct {
	ResponseBase
	PortID int32
}

func (m *IpcmAllocateFlowResponse) opCode() OpCode { return OpIpcmAllocateFlowResponse }

type IpcmRegisterApplicationRequest struct {
	RequestBase
	ApplicationName naming.ApplicationName
	DIFName         naming.ApplicationName
}

func (m *IpcmRegisterApplicationRequest) opCode() OpCode { return OpIpcmRegisterApplicationRequest }

type IpcmRegisterApplicationResponse struct {
	ResponseBase
}

func (m *IpcmRegisterApplicationResponse) opCode() OpCode {
	return OpIpcmRegisterApplicationResponse
}

type IpcmUnregisterApplicationRequest struct {
	RequestBase
	ApplicationName naming.ApplicationName
	DIFName         naming.ApplicationName
}

func (m *IpcmUnregisterApplicationRequest) opCode() OpCode {
	return OpIpcmUnregisterApplicationRequest
}

type IpcmUnregisterApplicationResponse struct {
	ResponseBase
}

func (m *IpcmUnregisterApplicationResponse) opCode() OpCode {
	return OpIpcmUnregisterApplicationResponse
}

type IpcmQueryRIBRequest struct {
	RequestBase
	ObjectClass    string
	ObjectName     string
	ObjectInstance uint64
	Scope          uint32
	Filter         string `json:",omitempty"`
}

func (m *IpcmQueryRIBRequest) opCode() OpCode { return OpIpcmQueryRIBRequest }

// RIBObjectEntry is one opaque RIB object as returned by a query; its value
// is not interpreted here.
type RIBObjectEntry struct {
	Class    string
	Name     string
	Instance uint64
	Value    json.RawMessage `json:",omitempty"`
}

type IpcmQueryRIBResponse struct {
	ResponseBase
	Objects []RIBObjectEntry
}

func (m *IpcmQueryRIBResponse) opCode() OpCode { return OpIpcmQueryRIBResponse }

// --- Rmt* variants (reserved for relaying/multiplexing task message types) ---

type RmtAddFTERequest struct {
	RequestBase
	Entries json.RawMessage
}

func (m *RmtAddFTERequest) opCode() OpCode { return OpRmtAddFTERequest }

type RmtDeleteFTERequest struct {
	RequestBase
	Entries json.RawMessage
}

func (m *RmtDeleteFTERequest) opCode() OpCode { return OpRmtDeleteFTERequest }

type RmtDumpFTRequest struct {
	RequestBase
}

func (m *RmtDumpFTRequest) opCode() OpCode { return OpRmtDumpFTRequest }

type RmtDumpFTReply struct {
	ResponseBase
	Entries json.RawMessage
}

func (m *RmtDumpFTReply) opCode() OpCode { return OpRmtDumpFTReply }

// AuthExchange wraps one security.AuthMessage leg for the wire: ObjectClass
// and ObjectName drive a policy set's dispatch exactly as they do locally,
// Payload carries its opaque bytes.
type AuthExchange struct {
	RequestBase
	ObjectClass string
	ObjectName  string
	Payload     []byte
}

func (m *AuthExchange) opCode() OpCode { return OpAuthExchange }

// factory builds a zero-valued payload for a given op-code so Decode can
// unmarshal into the right concrete type.
var factory = map[OpCode]func() Message{
	OpAppAllocateFlowRequest:                    func() Message { return &AppAllocateFlowRequest{} },
	OpAppAllocateFlowRequestResult:              func() Message { return &AppAllocateFlowRequestResult{} },
	OpAppAllocateFlowRequestArrived:             func() Message { return &AppAllocateFlowRequestArrived{} },
	OpAppAllocateFlowResponse:                   func() Message { return &AppAllocateFlowResponse{} },
	OpAppDeallocateFlowRequest:                  func() Message { return &AppDeallocateFlowRequest{} },
	OpAppDeallocateFlowResponse:                 func() Message { return &AppDeallocateFlowResponse{} },
	OpAppFlowDeallocatedNotification:            func() Message { return &AppFlowDeallocatedNotification{} },
	OpAppRegisterApplicationRequest:              func() Message { return &AppRegisterApplicationRequest{} },
	OpAppRegisterApplicationResponse:             func() Message { return &AppRegisterApplicationResponse{} },
	OpAppUnregisterApplicationRequest:            func() Message { return &AppUnregisterApplicationRequest{} },
	OpAppUnregisterApplicationResponse:           func() Message { return &AppUnregisterApplicationResponse{} },
	OpAppRegistrationCanceledNotification:        func() Message { return &AppRegistrationCanceledNotification{} },
	OpAppGetDIFPropertiesRequest:                 func() Message { return &AppGetDIFPropertiesRequest{} },
	OpAppGetDIFPropertiesResponse:                func() Message { return &AppGetDIFPropertiesResponse{} },
	OpIpcmAssignToDIFRequest:                     func() Message { return &IpcmAssignToDIFRequest{} },
	OpIpcmAssignToDIFResponse:                    func() Message { return &IpcmAssignToDIFResponse{} },
	OpIpcmIPCProcessDIFRegistrationNotification:  func() Message { return &IpcmIPCProcessDIFRegistrationNotification{} },
	OpIpcmEnrollToDIFRequest:                      func() Message { return &IpcmEnrollToDIFRequest{} },
	OpIpcmEnrollToDIFResponse:                     func() Message { return &IpcmEnrollToDIFResponse{} },
	OpIpcmDisconnectFromNeighborRequest:           func() Message { return &IpcmDisconnectFromNeighborRequest{} },
	OpIpcmDisconnectFromNeighborResponse:          func() Message { return &IpcmDisconnectFromNeighborResponse{} },
	OpIpcmAllocateFlowRequest:                     func() Message { return &IpcmAllocateFlowRequest{} },
	OpIpcmAllocateFlowResponse:                    func() Message { return &IpcmAllocateFlowResponse{} },
	OpIpcmRegisterApplicationRequest:              func() Message { return &IpcmRegisterApplicationRequest{} },
	OpIpcmRegisterApplicationResponse:             func() Message { return &IpcmRegisterApplicationResponse{} },
	OpIpcmUnregisterApplicationRequest:            func() Message { return &IpcmUnregisterApplicationRequest{} },
	OpIpcmUnregisterApplicationResponse:           func() Message { return &IpcmUnregisterApplicationResponse{} },
	OpIpcmQueryRIBRequest:                         func() Message { return &IpcmQueryRIBRequest{} },
	OpIpcmQueryRIBResponse:                        func() Message { return &IpcmQueryRIBResponse{} },
	OpRmtAddFTERequest:                            func() Message { return &RmtAddFTERequest{} },
	OpRmtDeleteFTERequest:                         func() Message { return &RmtDeleteFTERequest{} },
	OpRmtDumpFTRequest:                            func() Message { return &RmtDumpFTRequest{} },
	OpRmtDumpFTReply:                              func() Message { return &RmtDumpFTReply{} },
	OpAuthExchange:                                func() Message { return &AuthExchange{} },
}

// Encode serializes msg to its wire form. The op-code is derived from the
// concrete type and does not need to be set by the caller.
func Encode(msg Message) ([]byte, error) {
	msg.Base().OpCode = msg.opCode()
	b, err := json.Marshal(msg)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", errdefs.ErrMalformedMessage, err)
	}
	return b, nil
}

// peekOpCode extracts just the header's OpCode field without fully
// unmarshaling the payload, so Decode can pick the right concrete type.
func peekOpCode(b []byte) (OpCode, error) {
	var probe struct {
		Header *Header `json:"Header"`
	}
	if err := json.Unmarshal(b, &probe); err != nil || probe.Header == nil {
		return 0, fmt.Errorf("%w: missing header", errdefs.ErrMalformedMessage)
	}
	return probe.Header.OpCode, nil
}

// Decode parses b into the concrete Message its op-code names. An op-code
// outside the closed registry is rejected with ErrMalformedMessage rather
// than silently dropped, per the unknown-op-code contract.
func Decode(b []byte) (Message, error) {
	op, err := peekOpCode(b)
	if err != nil {
		return nil, err
	}
	if !op.valid() {
		return nil, fmt.Errorf("%w: unknown op-code %d", errdefs.ErrMalformedMessage, op)
	}
	mk, ok := factory[op]
	if !ok {
		return nil, fmt.Errorf("%w: unhandled op-code %s", errdefs.ErrMalformedMessage, op)
	}
	msg := mk()
	if err := json.Unmarshal(b, msg); err != nil {
		return nil, fmt.Errorf("%w: %v", errdefs.ErrMalformedMessage, err)
	}
	return msg, nil
}
