package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/cuemby/clickcore/pkg/control"
	"github.com/spf13/cobra"
)

var controlCmd = &cobra.Command{
	Use:   "control",
	Short: "Talk to a running clickcore agent's control surface",
}

var controlConfigureCmd = &cobra.Command{
	Use:   "configure",
	Short: "Push a configuration to an agent for hot-swap",
	RunE:  runControlConfigure,
}

var controlStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Report an agent's router state",
	RunE:  runControlStatus,
}

func init() {
	controlConfigureCmd.Flags().String("addr", "127.0.0.1:7700", "Agent control address")
	controlConfigureCmd.Flags().StringP("config", "c", "", "Path to the configuration to push (required)")
	_ = controlConfigureCmd.MarkFlagRequired("config")

	controlStatusCmd.Flags().String("addr", "127.0.0.1:7700", "Agent control address")

	controlCmd.AddCommand(controlConfigureCmd)
	controlCmd.AddCommand(controlStatusCmd)
}

func runControlConfigure(cmd *cobra.Command, args []string) error {
	addr, _ := cmd.Flags().GetString("addr")
	configPath, _ := cmd.Flags().GetString("config")

	source, err := os.ReadFile(configPath)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	cl, err := control.Dial(ctx, addr)
	if err != nil {
		return fmt.Errorf("clickcore: dial %s: %w", addr, err)
	}
	defer cl.Close()

	resp, err := cl.Configure(ctx, &control.ConfigureRequest{Source: source, Filename: configPath})
	if err != nil {
		return fmt.Errorf("clickcore: configure rpc: %w", err)
	}
	if !resp.Committed {
		return fmt.Errorf("clickcore: configure rejected: %s", resp.Error)
	}
	fmt.Printf("configured %d elements\n", resp.Elements)
	return nil
}

func runControlStatus(cmd *cobra.Command, args []string) error {
	addr, _ := cmd.Flags().GetString("addr")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	cl, err := control.Dial(ctx, addr)
	if err != nil {
		return fmt.Errorf("clickcore: dial %s: %w", addr, err)
	}
	defer cl.Close()

	resp, err := cl.Status(ctx, &control.StatusRequest{})
	if err != nil {
		return fmt.Errorf("clickcore: status rpc: %w", err)
	}
	fmt.Printf("leader=%v router_state=%s elements=%d\n", resp.Leader, resp.RouterState, resp.ElementCount)
	return nil
}
