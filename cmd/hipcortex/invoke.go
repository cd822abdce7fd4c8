package main

import (
	"fmt"
	"strings"

	"hipcortex/internal/bridge"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

// invokeCmd runs one console operation headlessly and prints its slot.
var invokeCmd = &cobra.Command{
	Use:   "invoke",
	Short: "Run one console operation without the UI",
	Long: `Runs a single operation through the same bridge the console uses and
prints the resulting display slot. Exits non-zero when the operation fails.

Examples:
  hipcortex invoke graph
  hipcortex invoke reflexion
  hipcortex invoke perceive "a red door"
  hipcortex invoke cli trace list`,
}

var invokeGraphCmd = &cobra.Command{
	Use:   "graph",
	Short: "Print the symbolic graph",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runInvoke(cmd, func(b *bridge.Bridge, s *bridge.State) (string, error) {
			bridge.Await(s, b.LoadGraph(s))
			return s.Graph, s.GraphErr
		})
	},
}

var invokeReflexionCmd = &cobra.Command{
	Use:   "reflexion",
	Short: "Run one reflexion loop",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runInvoke(cmd, func(b *bridge.Bridge, s *bridge.State) (string, error) {
			bridge.Await(s, b.RunReflexion(s))
			return s.FSMState, s.ReflexionErr
		})
	},
}

var invokePerceiveCmd = &cobra.Command{
	Use:   "perceive [text]",
	Short: "Send a perception",
	Args:  cobra.ArbitraryArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runInvoke(cmd, func(b *bridge.Bridge, s *bridge.State) (string, error) {
			s.PerceptionInput = joinArgs(args)
			bridge.Await(s, b.SendPerception(s))
			return s.PerceptionLog.Tail(), s.PerceptionErr
		})
	},
}

var invokeCLICmd = &cobra.Command{
	Use:   "cli [command...]",
	Short: "Run a runtime CLI command",
	Args:  cobra.ArbitraryArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runInvoke(cmd, func(b *bridge.Bridge, s *bridge.State) (string, error) {
			s.CLIInput = joinArgs(args)
			bridge.Await(s, b.RunCLI(s))
			return s.CLILog.Tail(), s.CLIErr
		})
	},
}

func init() {
	invokeCmd.AddCommand(invokeGraphCmd)
	invokeCmd.AddCommand(invokeReflexionCmd)
	invokeCmd.AddCommand(invokePerceiveCmd)
	invokeCmd.AddCommand(invokeCLICmd)
}

// runInvoke opens a session, runs op against a fresh state and prints the slot.
func runInvoke(cmd *cobra.Command, op func(*bridge.Bridge, *bridge.State) (string, error)) error {
	sess, err := openSession()
	if err != nil {
		return err
	}
	defer sess.Close()

	b := bridge.New(sess.ch)
	state := bridge.NewState()
	out, err := op(b, &state)
	if err != nil {
		logger.Debug("invoke failed", zap.String("command", cmd.Name()), zap.Error(err))
		return fmt.Errorf("%s: %w", cmd.Name(), err)
	}
	fmt.Fprintln(cmd.OutOrStdout(), out)
	return nil
}

func joinArgs(args []string) string {
	return strings.Join(args, " ")
}
