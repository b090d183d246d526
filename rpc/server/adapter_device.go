package server

import (
	"context"

	"github.com/ValentinKolb/qdev/lib/device"
	"github.com/ValentinKolb/qdev/rpc/common"
)

// maxReadLength bounds the buffer a single read request may ask for
const maxReadLength = 16 << 20

func NewDeviceServerAdapter() IRPCServerAdapter {
	return &deviceServerAdapterImpl{}
}

type deviceServerAdapterImpl struct{}

func (adapter *deviceServerAdapterImpl) Handle(ctx context.Context, req *common.Message, dev device.ISession) *common.Message {
	if dev == nil {
		return common.NewErrorResponse(device.Errorf(device.RetCNoDevice, "handler: device is nil"))
	}

	switch req.MsgType {
	case common.MsgTDevOpen:
		err := dev.Open(ctx, device.Mode(req.Mode))
		return common.NewOpenResponse(err)
	case common.MsgTDevRead:
		buf := make([]byte, min(req.Length, maxReadLength))
		pos := req.Offset
		n, err := dev.Read(ctx, buf, &pos)
		return common.NewReadResponse(buf[:n], pos, err)
	case common.MsgTDevWrite:
		pos := req.Offset
		n, err := dev.Write(ctx, req.Value, &pos)
		return common.NewWriteResponse(n, pos, err)
	case common.MsgTDevRelease:
		err := dev.Release()
		return common.NewReleaseResponse(err)
	case common.MsgTDevReset:
		err := dev.Reset(ctx)
		return common.NewResetResponse(err)
	case common.MsgTDevConfigure:
		err := dev.Configure(ctx, req.Geometry())
		return common.NewConfigureResponse(err)
	case common.MsgTDevInfo:
		info, err := dev.Info(ctx)
		return common.NewInfoResponse(info, err)
	default:
		return common.NewErrorResponse(
			device.Errorf(device.RetCInvalidOperation, "RPC DeviceAdapter - Unsupported message type: %s", req.MsgType),
		)
	}
}
