package server

import (
	"context"

	"github.com/ValentinKolb/qdev/lib/device"
	"github.com/ValentinKolb/qdev/rpc/common"
)

// IRPCServerAdapter is the interface for all RPC server adapters
// It is responsible for handling requests and responses
type IRPCServerAdapter interface {
	// Handle handles a request and returns a response
	// It takes a context bounding the request, a Message and the addressed device as parameters.
	// It returns a Message as a response
	// If an error occurs, it should be set in the response
	Handle(ctx context.Context, req *common.Message, dev device.ISession) (resp *common.Message)
}
