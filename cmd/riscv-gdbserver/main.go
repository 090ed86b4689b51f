// Command riscv-gdbserver is a GDB remote serial protocol server
// fronting a simulated RISC-V target, built around a cobra command tree
// the way delve's own CLI is (cmd/dlv/cmds).
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

func main() {
	root := newRootCommand()
	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:   "riscv-gdbserver",
		Short: "A GDB remote serial protocol server for a simulated RISC-V target.",
		Long: `riscv-gdbserver accepts a connection from GDB (target remote host:port)
and services its requests against a simulated RV32 CPU, translating
memory/register access, breakpoints and semihosted syscalls between
the wire protocol and the target.`,
	}

	root.AddCommand(newServeCommand())
	root.AddCommand(newMonitorCommand())
	root.AddCommand(newVersionCommand())

	return root
}

const version = "0.1.0"

func newVersionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the server version.",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintln(cmd.OutOrStdout(), "riscv-gdbserver version "+version)
		},
	}
}
