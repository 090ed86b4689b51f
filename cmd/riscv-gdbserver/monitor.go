package main

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"net"
	"os"
	"strings"

	"github.com/go-delve/liner"
	"github.com/spf13/cobra"

	"github.com/mablinov/riscv-gdbserver/internal/conn"
	"github.com/mablinov/riscv-gdbserver/internal/rsppkt"
)

// ErrTooManyAttempts mirrors the reference client codec's retransmit
// bound, here on the client (monitor REPL) side of the wire instead of
// the server side (internal/conn).
var ErrTooManyAttempts = errors.New("monitor: too many transmit attempts")

const maxTransmitAttempts = 5
const historyFile = ".riscv-gdbserver-monitor-history"

func newMonitorCommand() *cobra.Command {
	var addr string

	cmd := &cobra.Command{
		Use:   "monitor",
		Short: "Interactive REPL for sending qRcmd monitor commands to a running server.",
		Long: `Connects to a riscv-gdbserver instance as a minimal RSP client and
offers a prompt for "monitor" commands (help, reset, timeout, cyclecount,
and whatever the target implements), without needing a full GDB session.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runMonitor(addr)
		},
	}
	cmd.Flags().StringVarP(&addr, "addr", "a", "localhost:51000", "Address of a running riscv-gdbserver.")
	return cmd
}

func runMonitor(addr string) error {
	nc, err := net.Dial("tcp", addr)
	if err != nil {
		return fmt.Errorf("could not connect to %s: %w", addr, err)
	}
	defer nc.Close()

	client := &monitorClient{nc: nc, rdr: bufio.NewReader(nc)}

	rl := liner.NewLiner()
	defer rl.Close()
	rl.SetCtrlCAborts(true)

	if f, err := loadHistory(); err == nil {
		rl.ReadHistory(f)
		f.Close()
	}
	defer saveHistory(rl)

	fmt.Printf("connected to %s; type 'help' or Ctrl-D to quit\n", addr)
	for {
		line, err := rl.Prompt("(monitor) ")
		if err != nil {
			if err == io.EOF || err == liner.ErrPromptAborted {
				return nil
			}
			return err
		}
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		rl.AppendHistory(line)

		reply, err := client.rcmd(line)
		if err != nil {
			fmt.Fprintf(os.Stderr, "error: %v\n", err)
			continue
		}
		fmt.Print(reply)
	}
}

func loadHistory() (*os.File, error) {
	dir, err := os.UserHomeDir()
	if err != nil {
		return nil, err
	}
	return os.Open(dir + "/" + historyFile)
}

func saveHistory(rl *liner.State) {
	dir, err := os.UserHomeDir()
	if err != nil {
		return
	}
	f, err := os.Create(dir + "/" + historyFile)
	if err != nil {
		return
	}
	defer f.Close()
	rl.WriteHistory(f)
}

// monitorClient is a minimal RSP client: just enough of the wire codec
// (checksum, framing, ack) to drive qRcmd round-trips, in the same
// client role delve's own gdbserial connection plays against a real
// gdbserver.
type monitorClient struct {
	nc  net.Conn
	rdr *bufio.Reader
}

func (c *monitorClient) rcmd(cmdline string) (string, error) {
	payload := "qRcmd," + rsppkt.Ascii2Hex(cmdline)
	if err := c.send([]byte(payload)); err != nil {
		return "", err
	}

	var out strings.Builder
	for {
		resp, err := c.recv()
		if err != nil {
			return out.String(), err
		}

		switch {
		case resp == "OK":
			return out.String(), nil
		case resp == "":
			return out.String(), fmt.Errorf("command not recognized")
		case len(resp) == 3 && resp[0] == 'E':
			return out.String(), fmt.Errorf("target error %s", resp)
		case len(resp) > 1 && resp[0] == 'O':
			text, err := rsppkt.Hex2Ascii(resp[1:])
			if err != nil {
				return out.String(), err
			}
			out.WriteString(text)
		default:
			text, err := rsppkt.Hex2Ascii(resp)
			if err == nil {
				out.WriteString(text)
			}
		}
	}
}

func (c *monitorClient) send(payload []byte) error {
	framed := append([]byte{'$'}, payload...)
	framed = append(framed, '#')
	sum := checksum(payload)
	framed = append(framed, rsppkt.Hex2Char(sum>>4), rsppkt.Hex2Char(sum&0xf))

	for attempt := 0; attempt <= maxTransmitAttempts; attempt++ {
		if _, err := c.nc.Write(framed); err != nil {
			return err
		}
		ack, err := c.rdr.ReadByte()
		if err != nil {
			return err
		}
		if ack == '+' {
			return nil
		}
	}
	return ErrTooManyAttempts
}

func (c *monitorClient) recv() (string, error) {
	raw, err := c.rdr.ReadBytes('#')
	if err != nil {
		return "", err
	}
	raw = raw[:len(raw)-1] // drop trailing '#'
	if len(raw) > 0 && raw[0] == '$' {
		raw = raw[1:]
	}

	var csum [2]byte
	if _, err := io.ReadFull(c.rdr, csum[:]); err != nil {
		return "", err
	}

	got := (uint8(rsppkt.Char2Hex(csum[0])) << 4) | uint8(rsppkt.Char2Hex(csum[1]))
	if got != checksum(raw) {
		c.nc.Write([]byte{'-'})
		return "", fmt.Errorf("%w: bad checksum in reply", conn.ErrMalformedPacket)
	}
	c.nc.Write([]byte{'+'})
	return string(raw), nil
}

func checksum(payload []byte) (sum uint8) {
	for _, b := range payload {
		sum += b
	}
	return sum
}
