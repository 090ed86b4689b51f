package main

import (
	"os"
	"os/signal"
	"strings"

	"github.com/mattn/go-colorable"
	"github.com/mattn/go-isatty"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	sys "golang.org/x/sys/unix"

	"github.com/mablinov/riscv-gdbserver/internal/config"
	"github.com/mablinov/riscv-gdbserver/internal/conn"
	"github.com/mablinov/riscv-gdbserver/internal/picorv32"
	"github.com/mablinov/riscv-gdbserver/internal/rspserver"
	"github.com/mablinov/riscv-gdbserver/internal/traceflags"
)

func newServeCommand() *cobra.Command {
	var (
		addr       string
		timeout    int64
		killExits  bool
		verbose    bool
		debugFlags string
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the GDB server and wait for a client to attach.",
		Long: `Starts listening for a GDB connection (target remote host:port) and
serves requests against the bundled reference RV32 interpreter until
a "monitor exit" command or the connection is closed with 'k'.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := config.Load()
			if cmd.Flags().Changed("listen") {
				cfg.Addr = addr
			}
			if cmd.Flags().Changed("timeout") {
				cfg.Timeout = timeout
			}
			if cmd.Flags().Changed("kill-exits") {
				cfg.KillExits = killExits
			}
			for _, name := range strings.Split(debugFlags, ",") {
				name = strings.TrimSpace(name)
				if name != "" {
					if cfg.TraceFlags == nil {
						cfg.TraceFlags = map[string]bool{}
					}
					cfg.TraceFlags[name] = true
				}
			}

			return runServe(cfg, verbose)
		},
	}

	cmd.Flags().StringVarP(&addr, "listen", "l", "localhost:51000", "Address to listen on.")
	cmd.Flags().Int64VarP(&timeout, "timeout", "t", 0, "Maximum seconds a single continue may run (0 = unbounded).")
	cmd.Flags().BoolVar(&killExits, "kill-exits", true, "Exit the server on a GDB 'k' (kill) packet.")
	cmd.Flags().BoolVarP(&verbose, "log", "v", false, "Enable debug-level logging on stderr.")
	cmd.Flags().StringVar(&debugFlags, "debug", "", "Comma-separated trace flags to enable at startup (rsp,break,exec).")

	return cmd
}

func runServe(cfg config.Config, verbose bool) error {
	out := colorable.NewColorable(os.Stderr)
	base := logrus.New()
	base.Out = out
	base.Formatter = &logrus.TextFormatter{
		ForceColors:   isatty.IsTerminal(os.Stderr.Fd()),
		DisableColors: !isatty.IsTerminal(os.Stderr.Fd()),
	}
	if verbose {
		base.SetLevel(logrus.DebugLevel)
	}
	entry := logrus.NewEntry(base)

	flags := traceflags.New(cfg.TraceFlags)

	transport := conn.New(cfg.Addr, entry.WithField("component", "conn"))
	cpu := picorv32.New(flags, entry.WithField("component", "picorv32"))

	killBehavior := rspserver.ExitOnKill
	if !cfg.KillExits {
		killBehavior = rspserver.ResetOnKill
	}

	srv := rspserver.New(transport, cpu, rspserver.Config{
		InitialTimeout: cfg.Timeout,
		KillBehavior:   killBehavior,
		Flags:          flags,
	})

	// A SIGINT delivered to the process terminates it (GDB interrupts the
	// target over the wire instead), matching the reference CLI's
	// headless-mode signal handling.
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, sys.SIGINT)
	go func() {
		<-sigCh
		entry.Warn("received SIGINT: shutting down")
		os.Exit(130)
	}()

	entry.Infof("listening on %s", cfg.Addr)
	return srv.Serve()
}
