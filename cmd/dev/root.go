package dev

import (
	"github.com/ValentinKolb/qdev/cmd/util"
	"github.com/ValentinKolb/qdev/lib/device"
	"github.com/ValentinKolb/qdev/rpc/client"
	"github.com/ValentinKolb/qdev/rpc/common"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var (
	rpcDevice device.ISession

	// DeviceCommands represents the device command group
	DeviceCommands = &cobra.Command{
		Use:               "dev",
		Short:             "Perform operations on a device of a qdev server",
		PersistentPreRunE: setupDeviceClient,
	}
)

func init() {
	// Initialize viper
	cobra.OnInitialize(util.InitConfig)

	// Add common RPC flags to the device command
	util.SetupRPCClientFlags(DeviceCommands)

	key := "log-level"
	DeviceCommands.PersistentFlags().String(key, "warn", util.WrapString("LogLevel of the client (debug, info, warn, error)"))

	// Add subcommands
	DeviceCommands.AddCommand(writeCmd)
	DeviceCommands.AddCommand(readCmd)
	DeviceCommands.AddCommand(catCmd)
	DeviceCommands.AddCommand(resetCmd)
	DeviceCommands.AddCommand(configureCmd)
	DeviceCommands.AddCommand(infoCmd)
	DeviceCommands.AddCommand(perfTestCmd)
}

// setupDeviceClient initializes the RPC device client
func setupDeviceClient(cmd *cobra.Command, _ []string) error {
	if err := util.BindCommandFlags(cmd); err != nil {
		return err
	}

	if err := common.InitLoggers(viper.GetString("log-level")); err != nil {
		return err
	}

	s, err := util.GetSerializer()
	if err != nil {
		return err
	}

	t, err := util.GetTransport()
	if err != nil {
		return err
	}

	rpcDevice, err = client.NewRPCDevice(
		util.GetMinor(),
		*util.GetClientConfig(),
		t,
		s,
	)

	return err
}
