package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/pprof"
	"os/signal"
	"runtime"
	"sync"
	"syscall"

	"github.com/ValentinKolb/qdev/lib/device"
	"github.com/ValentinKolb/qdev/lib/device/registry"
	"github.com/ValentinKolb/qdev/rpc/common"
	"github.com/ValentinKolb/qdev/rpc/serializer"
	"github.com/ValentinKolb/qdev/rpc/transport"
	"github.com/VictoriaMetrics/metrics"
	"github.com/lni/dragonboat/v4/logger"
)

var Logger = logger.GetLogger("rpc")

// NewRPCServer creates a new RPC server
// It takes a config, transport and serializer as parameters
//
// Usage:
//
//	s := server.NewRPCServer(
//		*config,
//		tcp.NewTCPServerTransport(),
//		serializer.NewBinarySerializer(),
//	)
//
//	if err := s.Serve(); err != nil {
//		panic(err)
//	 }
func NewRPCServer(
	config common.ServerConfig,
	transport transport.IRPCServerTransport,
	serializer serializer.IRPCSerializer,
) *RPCServer {
	// https://github.com/golang/go/issues/17393
	if runtime.GOOS == "darwin" {
		signal.Ignore(syscall.Signal(0xd))
	}

	ctx, cancel := context.WithCancel(context.Background())

	Logger.Infof("Created RPC Server")
	Logger.Infof(config.String())

	return &RPCServer{
		config:     config,
		transport:  transport,
		serializer: serializer,
		adapter:    NewDeviceServerAdapter(),
		ctx:        ctx,
		cancel:     cancel,
	}
}

// RPCServer serves a table of devices over a transport.
type RPCServer struct {
	config     common.ServerConfig
	transport  transport.IRPCServerTransport
	serializer serializer.IRPCSerializer
	adapter    IRPCServerAdapter
	registry   *registry.Registry

	// cancelled on shutdown, parent of every request context
	ctx    context.Context
	cancel context.CancelFunc

	metricsMu     sync.Mutex
	metricsServer *http.Server
}

// Serve starts the RPC server
// This function will also create the devices, start the metrics endpoint (if configured) and the transport layer.
// It blocks until Shutdown is called or the transport fails.
func (s *RPCServer) Serve() error {
	if err := s.init(); err != nil {
		return err
	}

	if s.config.MetricsEndpoint != "" {
		go s.serveMetrics()
	}

	return s.transport.Listen(s.config)
}

// Shutdown stops the transport and the metrics endpoint, interrupts requests
// waiting for a device lock and resets all devices
func (s *RPCServer) Shutdown(ctx context.Context) error {
	var errs []error

	if err := s.transport.Close(); err != nil {
		errs = append(errs, fmt.Errorf("failed to close transport: %w", err))
	}
	s.cancel()

	s.metricsMu.Lock()
	if s.metricsServer != nil {
		if err := s.metricsServer.Shutdown(ctx); err != nil {
			errs = append(errs, fmt.Errorf("failed to stop metrics endpoint: %w", err))
		}
	}
	s.metricsMu.Unlock()

	if s.registry != nil {
		if err := s.registry.Teardown(ctx); err != nil {
			errs = append(errs, fmt.Errorf("failed to tear down devices: %w", err))
		}
	}

	Logger.Infof("RPC Server stopped")
	return errors.Join(errs...)
}

// Registry returns the device table of the server (nil before Serve)
func (s *RPCServer) Registry() *registry.Registry {
	return s.registry
}

// --------------------------------------------------------------------------
// Helper Methods
// --------------------------------------------------------------------------

func (s *RPCServer) init() error {
	devices := s.config.Devices

	s.registry = registry.New(&registry.Options{
		MemoryLimit: devices.MemoryLimit,
		MaxSize:     devices.MaxSize,
	})
	if err := s.registry.Setup(devices.FirstMinor, devices.Count, devices.Geometry()); err != nil {
		return fmt.Errorf("failed to create devices: %w", err)
	}

	Logger.Infof("created %d devices starting at minor %d with geometry %s",
		devices.Count, devices.FirstMinor, devices.Geometry())

	s.registerTransportHandler()
	return nil
}

// requestContext returns the context a single request runs with
func (s *RPCServer) requestContext() (context.Context, context.CancelFunc) {
	if s.config.LockTimeout > 0 {
		return context.WithTimeout(s.ctx, s.config.LockTimeout)
	}
	return context.WithCancel(s.ctx)
}

func (s *RPCServer) registerTransportHandler() {
	s.transport.RegisterHandler(func(minor uint64, req []byte) []byte {
		var msg common.Message
		var respMsg *common.Message

		dev, err := s.registry.Get(minor)
		if err != nil {
			// Case device does not exist -> error
			respMsg = common.NewErrorResponse(err)
		} else if err := s.serializer.Deserialize(req, &msg); err != nil {
			respMsg = common.NewErrorResponse(
				device.Errorf(device.RetCInvalidOperation, "failed to deserialize request: %v", err),
			)
		} else {
			// Let the adapter handle the request
			ctx, cancel := s.requestContext()
			respMsg = s.adapter.Handle(ctx, &msg, dev)
			cancel()
		}

		val, err := s.serializer.Serialize(*respMsg)
		if err != nil {
			Logger.Errorf("failed to serialize response for device %d: %v", minor, err)
			val, _ = s.serializer.Serialize(*common.NewErrorResponse(
				device.Errorf(device.RetCInternalError, "failed to serialize response: %v", err),
			))
		}
		return val
	})
}

// serveMetrics serves the device metrics, the process metrics and pprof
func (s *RPCServer) serveMetrics() {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /metrics", func(w http.ResponseWriter, r *http.Request) {
		s.registry.WritePrometheus(w)
		metrics.WriteProcessMetrics(w)
	})
	mux.HandleFunc("/debug/pprof/", pprof.Index)
	mux.HandleFunc("/debug/pprof/cmdline", pprof.Cmdline)
	mux.HandleFunc("/debug/pprof/profile", pprof.Profile)
	mux.HandleFunc("/debug/pprof/symbol", pprof.Symbol)
	mux.HandleFunc("/debug/pprof/trace", pprof.Trace)

	server := &http.Server{Addr: s.config.MetricsEndpoint, Handler: mux}
	s.metricsMu.Lock()
	s.metricsServer = server
	s.metricsMu.Unlock()

	Logger.Infof("Starting metrics endpoint on %s", s.config.MetricsEndpoint)
	if err := server.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
		Logger.Errorf("metrics endpoint failed: %v", err)
	}
}
