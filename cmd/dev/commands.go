package dev

import (
	"encoding/json"
	"fmt"
	"io"
	"strconv"

	"github.com/ValentinKolb/qdev/lib/device"
	"github.com/ValentinKolb/qdev/lib/qstore"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var (
	writeCmd = &cobra.Command{
		Use:   "write [data]",
		Short: "Writes data to the device (reads stdin if no data is given)",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var data []byte
			if len(args) == 1 {
				data = []byte(args[0])
			} else {
				var err error
				if data, err = io.ReadAll(cmd.InOrStdin()); err != nil {
					return fmt.Errorf("failed to read stdin: %w", err)
				}
			}

			// write-only opens truncate the device
			mode := device.ModeReadWrite
			if viper.GetBool("truncate") {
				mode = device.ModeWriteOnly
			}

			f, err := device.OpenFile(cmd.Context(), rpcDevice, mode)
			if err != nil {
				return err
			}
			defer f.Close()

			if _, err := f.Seek(viper.GetInt64("offset"), io.SeekStart); err != nil {
				return err
			}
			n, err := f.Write(data)
			if err != nil {
				return fmt.Errorf("wrote %d of %d bytes: %w", n, len(data), err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "wrote %d bytes, position %d\n", n, f.Pos())
			return nil
		},
	}
	readCmd = &cobra.Command{
		Use:   "read",
		Short: "Reads data from the device and prints it to stdout",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := device.OpenFile(cmd.Context(), rpcDevice, device.ModeReadOnly)
			if err != nil {
				return err
			}
			defer f.Close()

			if _, err := f.Seek(viper.GetInt64("offset"), io.SeekStart); err != nil {
				return err
			}

			var r io.Reader = f
			if length := viper.GetInt64("length"); length > 0 {
				r = io.LimitReader(f, length)
			}
			_, err = io.Copy(cmd.OutOrStdout(), r)
			return err
		},
	}
	catCmd = &cobra.Command{
		Use:   "cat",
		Short: "Prints the whole content of the device",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := device.OpenFile(cmd.Context(), rpcDevice, device.ModeReadOnly)
			if err != nil {
				return err
			}
			defer f.Close()

			content, err := f.ReadAll()
			if err != nil {
				return err
			}
			_, err = cmd.OutOrStdout().Write(content)
			return err
		},
	}
	resetCmd = &cobra.Command{
		Use:   "reset",
		Short: "Drops the content of the device and restores its default geometry",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := rpcDevice.Reset(cmd.Context()); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "reset successfully")
			return nil
		},
	}
	configureCmd = &cobra.Command{
		Use:   "configure [quantum] [qset]",
		Short: "Changes the geometry of an empty device",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			quantum, err := strconv.Atoi(args[0])
			if err != nil {
				return fmt.Errorf("quantum must be a number: %w", err)
			}
			qset, err := strconv.Atoi(args[1])
			if err != nil {
				return fmt.Errorf("qset must be a number: %w", err)
			}

			geometry := qstore.Geometry{Quantum: quantum, QSet: qset}
			if err := rpcDevice.Configure(cmd.Context(), geometry); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "configured %s\n", geometry)
			return nil
		},
	}
	infoCmd = &cobra.Command{
		Use:   "info",
		Short: "Prints size, geometry and statistics of the device",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			info, err := rpcDevice.Info(cmd.Context())
			if err != nil {
				return err
			}
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(info)
		},
	}
)

func init() {
	writeCmd.Flags().Int64("offset", 0, "Position of the first byte to write")
	writeCmd.Flags().Bool("truncate", false, "Open the device write-only, which drops its content first")

	readCmd.Flags().Int64("offset", 0, "Position of the first byte to read")
	readCmd.Flags().Int64("length", 0, "Maximum number of bytes to read (0 = until the end of data)")
}
