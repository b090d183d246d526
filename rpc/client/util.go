package client

import (
	"fmt"

	"github.com/ValentinKolb/qdev/rpc/common"
	"github.com/ValentinKolb/qdev/rpc/serializer"
	"github.com/ValentinKolb/qdev/rpc/transport"
	"github.com/lni/dragonboat/v4/logger"
)

var (
	Logger = logger.GetLogger("client")
)

// rpcClientAdapter is a struct that stores all data needed for an implementation of an RPC client
// Used by the RPC device with composition pattern
type rpcClientAdapter struct {
	minor      uint64
	config     common.ClientConfig
	transport  transport.IRPCClientTransport
	serializer serializer.IRPCSerializer
}

// invokeRPCRequest is a helper function used for all RPC Clients to send requests
// It takes a minor number, a request message, a transport layer and a serializer as parameters
// It returns the response message and the error carried by it
// Transport and decoding failures are returned without a response.
// This method also checks if the type of the response is the expected type
func invokeRPCRequest(minor uint64, req *common.Message, transport transport.IRPCClientTransport, serializer serializer.IRPCSerializer) (*common.Message, error) {
	reqBytes, err := serializer.Serialize(*req)
	if err != nil {
		return nil, fmt.Errorf("RPC DeviceClient - failed to serialize %s request: %w", req.MsgType, err)
	}

	respBytes, err := transport.Send(minor, reqBytes)
	if err != nil {
		return nil, fmt.Errorf("RPC DeviceClient - %s request to device %d failed: %w", req.MsgType, minor, err)
	}

	resp := &common.Message{}
	if err := serializer.Deserialize(respBytes, resp); err != nil {
		return nil, fmt.Errorf("RPC DeviceClient - failed to deserialize response: %w", err)
	}

	// Error responses carry the device error code
	if resp.MsgType == common.MsgTError {
		return resp, resp.AsError()
	}

	if resp.MsgType != req.MsgType {
		return nil, fmt.Errorf("RPC DeviceClient - Unexpected message type: %s, expected %s", resp.MsgType, req.MsgType)
	}

	return resp, resp.AsError()
}
