package serve

import (
	"context"
	"time"

	cmdUtil "github.com/ValentinKolb/qdev/cmd/util"
	"github.com/ValentinKolb/qdev/lib/qstore"
	"github.com/ValentinKolb/qdev/rpc/common"
	"github.com/ValentinKolb/qdev/rpc/server"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

const (
	// shutdownTimeout bounds the teardown after a termination signal
	shutdownTimeout = 10 * time.Second

	// per device limits of a served device, remote callers choose the offsets
	defaultMemoryLimit = 1 << 30
	defaultMaxSize     = 1 << 30
)

var (
	serveCmdConfig = &common.ServerConfig{}
	ServeCmd       = &cobra.Command{
		Use:     "serve",
		Short:   "Start the qdev server",
		Long:    `Start the qdev server with the specified configuration. The configuration can be set via command line flags or environment variables. The format of the environment variables is QDEV_<flag> (e.g. QDEV_NR_DEVS=4)`,
		PreRunE: processConfig,
		RunE:    run,
	}
)

func init() {
	// initialize viper
	cobra.OnInitialize(cmdUtil.InitConfig)

	// devices
	key := "nr-devs"
	ServeCmd.PersistentFlags().Int(key, 1, cmdUtil.WrapString("Number of devices to create"))

	key = "first-minor"
	ServeCmd.PersistentFlags().Uint64(key, 0, cmdUtil.WrapString("Minor number of the first device, the devices use consecutive minors"))

	key = "quantum"
	ServeCmd.PersistentFlags().Int(key, qstore.DefaultQuantum, cmdUtil.WrapString("Default size of a quantum in bytes"))

	key = "qset"
	ServeCmd.PersistentFlags().Int(key, qstore.DefaultQSet, cmdUtil.WrapString("Default number of quanta per quantum set"))

	key = "memory-limit"
	ServeCmd.PersistentFlags().Int64(key, defaultMemoryLimit, cmdUtil.WrapString("Memory limit per device in bytes. Writes that would exceed it fail with OutOfMemory (0 = unlimited)"))

	key = "max-size"
	ServeCmd.PersistentFlags().Int64(key, defaultMaxSize, cmdUtil.WrapString("Maximum addressable size per device in bytes. Writes beyond it fail with OutOfMemory (0 = unlimited)"))

	// transport
	key = "endpoint"
	ServeCmd.PersistentFlags().String(key, "0.0.0.0:8080", cmdUtil.WrapString("The address on which the API will listen (e.g. localhost:8080, /tmp/qdev.sock, ...)"))

	key = "timeout"
	ServeCmd.PersistentFlags().Int64(key, 0, cmdUtil.WrapString("Read and write timeout of a connection in seconds (0 = none)"))

	key = "lock-timeout"
	ServeCmd.PersistentFlags().Duration(key, 5*time.Second, cmdUtil.WrapString("Maximum time a request waits for the device lock before it fails with Restart (0 = wait forever)"))

	key = "workers-per-conn"
	ServeCmd.PersistentFlags().Int(key, 4, cmdUtil.WrapString("Maximum number of requests processed concurrently per connection (tcp and unix)"))

	key = "buffer-size"
	ServeCmd.PersistentFlags().Int(key, 0, cmdUtil.WrapString("Size of the pooled request buffers in bytes (0 = transport default, tcp and unix)"))

	key = "transport-tcp-nodelay"
	ServeCmd.PersistentFlags().Bool(key, true, cmdUtil.WrapString("Whether to enable TCP_NODELAY for accepted connections (only for tcp)"))

	key = "transport-tcp-keepalive"
	ServeCmd.PersistentFlags().Int(key, 0, cmdUtil.WrapString("The keepalive interval for accepted connections (in seconds, only for tcp)"))

	// observability
	key = "metrics-endpoint"
	ServeCmd.PersistentFlags().String(key, "", cmdUtil.WrapString("Address of the Prometheus metrics endpoint, also serves /debug/pprof/ (empty = disabled)"))

	key = "log-level"
	ServeCmd.PersistentFlags().String(key, "info", cmdUtil.WrapString("LogLevel is the level at which logs will be output (debug, info, warn, error)"))
}

// processConfig reads the configuration from the command line flags and environment variables and converts them to the server configuration
func processConfig(cmd *cobra.Command, _ []string) error {
	if err := viper.BindPFlags(cmd.Flags()); err != nil {
		return err
	}

	serveCmdConfig.Devices = common.DeviceConfig{
		FirstMinor:  viper.GetUint64("first-minor"),
		Count:       viper.GetInt("nr-devs"),
		Quantum:     viper.GetInt("quantum"),
		QSet:        viper.GetInt("qset"),
		MemoryLimit: viper.GetInt64("memory-limit"),
		MaxSize:     viper.GetInt64("max-size"),
	}
	serveCmdConfig.Transport = common.ServerTransportConfig{
		Endpoint:       viper.GetString("endpoint"),
		TimeoutSecond:  viper.GetInt64("timeout"),
		BufferSize:     viper.GetInt("buffer-size"),
		WorkersPerConn: viper.GetInt("workers-per-conn"),
		TCPConf: common.TCPConf{
			TCPNoDelay:      viper.GetBool("transport-tcp-nodelay"),
			TCPKeepAliveSec: viper.GetInt("transport-tcp-keepalive"),
		},
	}
	serveCmdConfig.LockTimeout = viper.GetDuration("lock-timeout")
	serveCmdConfig.MetricsEndpoint = viper.GetString("metrics-endpoint")
	serveCmdConfig.LogLevel = viper.GetString("log-level")

	if err := serveCmdConfig.Devices.Geometry().Validate(); err != nil {
		return err
	}

	return common.InitLoggers(serveCmdConfig.LogLevel)
}

// run starts the qdev server and shuts it down on SIGINT or SIGTERM
func run(cmd *cobra.Command, _ []string) error {
	s, err := cmdUtil.GetSerializer()
	if err != nil {
		return err
	}

	t, err := cmdUtil.GetServerTransport()
	if err != nil {
		return err
	}

	serv := server.NewRPCServer(
		*serveCmdConfig,
		t,
		s,
	)

	// the root command cancels its context on a termination signal
	ctx := cmd.Context()
	stopped := make(chan error, 1)
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		stopped <- serv.Shutdown(shutdownCtx)
	}()

	if err := serv.Serve(); err != nil {
		return err
	}
	return <-stopped
}
