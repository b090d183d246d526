package client

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/ValentinKolb/qdev/lib/device"
	"github.com/ValentinKolb/qdev/lib/qstore"
	"github.com/ValentinKolb/qdev/rpc/common"
	"github.com/ValentinKolb/qdev/rpc/serializer"
	"github.com/ValentinKolb/qdev/rpc/transport"
)

// NewRPCDevice creates a new RPC device
// The function takes a minor number, a config, a transport and a serializer as parameters
// It connects the transport and returns a device.ISession for the remote device
func NewRPCDevice(
	minor uint64,
	config common.ClientConfig,
	transport transport.IRPCClientTransport,
	serializer serializer.IRPCSerializer,
) (device.ISession, error) {

	if err := transport.Connect(config); err != nil {
		return nil, err
	}

	return &rpcDevice{
		rpcClientAdapter{
			minor:      minor,
			config:     config,
			transport:  transport,
			serializer: serializer,
		},
	}, nil
}

// rpcDevice forwards every session operation to the server.
// A context that is already done fails with a restart error before anything is sent,
// a request that is on the wire is not interrupted (the server bounds it with its lock timeout).
type rpcDevice struct {
	rpcClientAdapter
}

// --------------------------------------------------------------------------
// Helper Methods
// --------------------------------------------------------------------------

func (d *rpcDevice) invoke(ctx context.Context, req *common.Message) (*common.Message, error) {
	if err := ctx.Err(); err != nil {
		return nil, device.Errorf(device.RetCRestart, "%s interrupted before sending: %v", req.MsgType, err)
	}
	return invokeRPCRequest(d.minor, req, d.transport, d.serializer)
}

func checkPos(op string, pos *int64) error {
	if pos == nil {
		return device.Errorf(device.RetCInvalidOperation, "%s: missing position", op)
	}
	return nil
}

// --------------------------------------------------------------------------
// Interface Methods (docu see device/interface.go)
// --------------------------------------------------------------------------

func (d *rpcDevice) Open(ctx context.Context, mode device.Mode) error {
	_, err := d.invoke(ctx, common.NewOpenRequest(mode))
	return err
}

func (d *rpcDevice) Read(ctx context.Context, p []byte, pos *int64) (int, error) {
	if err := checkPos("read", pos); err != nil {
		return 0, err
	}
	if len(p) == 0 {
		return 0, nil
	}

	resp, err := d.invoke(ctx, common.NewReadRequest(*pos, len(p)))
	if err != nil {
		return 0, err
	}

	n := copy(p, resp.Value)
	*pos = resp.Offset
	return n, nil
}

func (d *rpcDevice) Write(ctx context.Context, p []byte, pos *int64) (int, error) {
	if err := checkPos("write", pos); err != nil {
		return 0, err
	}

	resp, err := d.invoke(ctx, common.NewWriteRequest(*pos, p))
	if err != nil {
		return 0, err
	}

	*pos = resp.Offset
	return int(resp.Count), nil
}

func (d *rpcDevice) Release() error {
	_, err := d.invoke(context.Background(), common.NewReleaseRequest())
	return err
}

func (d *rpcDevice) Reset(ctx context.Context) error {
	_, err := d.invoke(ctx, common.NewResetRequest())
	return err
}

func (d *rpcDevice) Configure(ctx context.Context, geometry qstore.Geometry) error {
	_, err := d.invoke(ctx, common.NewConfigureRequest(geometry))
	return err
}

func (d *rpcDevice) Info(ctx context.Context) (device.SessionInfo, error) {
	resp, err := d.invoke(ctx, common.NewInfoRequest())
	if err != nil {
		return device.SessionInfo{}, err
	}

	var info device.SessionInfo
	if err := json.Unmarshal(resp.Meta, &info); err != nil {
		return device.SessionInfo{}, fmt.Errorf("RPC DeviceClient - failed to decode info: %w", err)
	}
	return info, nil
}
