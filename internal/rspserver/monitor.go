package rspserver

import (
	"bytes"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/mablinov/riscv-gdbserver/internal/rsppkt"
	"github.com/mablinov/riscv-gdbserver/internal/target"
	"github.com/mablinov/riscv-gdbserver/internal/traceflags"
)

var monitorHelp = []string{
	"The following generic monitor commands are supported:\n",
	"  help\n",
	"    Produce this message\n",
	"  reset [cold | warm]\n",
	"    Reset the simulator (default warm)\n",
	"  exit\n",
	"    Exit the GDB server\n",
	"  timeout <interval>\n",
	"    Maximum time in seconds taken by continue packet\n",
	"  cyclecount\n",
	"    Report cycles executed since reset\n",
	"  instrcount\n",
	"    Report instructions executed since reset\n",
	"  set debug <flag> <bool>\n",
	"    Set debug messaging in target to <bool>\n",
	"  show debug\n",
	"    Show current level of debug messaging in target\n",
	"  set remote-debug <0|1>\n",
	"    Disable/enable tracing of Remote Serial Protocol (RSP)\n",
	"  show remote-debug\n",
	"    Show whether RSP tracing is enabled\n",
	"  echo <message>\n",
	"    Echo <message> on stdout of the gdbserver\n",
}

// rspCommand decodes a qRcmd payload (hex-encoded ASCII) and dispatches it
// as a monitor command.
func (s *Server) rspCommand(hexCmd string) {
	cmd, err := rsppkt.Hex2Ascii(hexCmd)
	if err != nil {
		s.log.Always.Warnf("malformed qRcmd payload: %v", err)
		s.replyErr("E01")
		return
	}
	cmd = strings.TrimRight(cmd, "\x00")
	s.log.Wire.Debugf("qRcmd,%s", cmd)

	switch {
	case cmd == "help":
		s.monitorHelp()

	case cmd == "reset" || cmd == "reset warm":
		s.monitorReset(target.ResetWarm)

	case cmd == "reset cold":
		s.monitorReset(target.ResetCold)

	case cmd == "exit":
		s.exitRequested = true

	case parseTimeoutOK(cmd):
		s.monitorTimeout(cmd)

	case cmd == "timestamp":
		s.monitorTimestamp()

	case cmd == "cyclecount":
		s.monitorCount(s.cpu.CycleCount())

	case cmd == "instrcount":
		s.monitorCount(s.cpu.InstrCount())

	case strings.HasPrefix(cmd, "echo"):
		s.monitorEcho(cmd)

	case strings.HasPrefix(cmd, "set "):
		s.rspSetCommand(strings.TrimLeft(cmd[len("set "):], " \t"))

	case strings.HasPrefix(cmd, "show "):
		s.rspShowCommand(strings.TrimLeft(cmd[len("show "):], " \t"))

	default:
		s.monitorFallback(cmd)
	}
}

func (s *Server) monitorHelp() {
	for _, line := range monitorHelp {
		s.pkt.PackRcmdStr(line, true)
		s.conn.PutPkt(s.pkt)
	}

	var buf bytes.Buffer
	if s.cpu.Command("help", &buf) {
		s.pkt.PackRcmdStr("The following target specific monitor commands are supported:\n", true)
		s.conn.PutPkt(s.pkt)
		for _, line := range strings.Split(strings.TrimRight(buf.String(), "\n"), "\n") {
			s.pkt.PackRcmdStr(line+"\n", true)
			s.conn.PutPkt(s.pkt)
		}
	} else {
		s.pkt.PackRcmdStr("There are no target specific monitor commands", true)
		s.conn.PutPkt(s.pkt)
	}

	s.replyOK()
}

func (s *Server) monitorReset(typ target.ResetType) {
	if s.cpu.Reset(typ) != target.ResumeSuccess {
		s.log.Always.Fatal("failed to reset: terminating")
		return
	}
	s.replyOK()
}

func parseTimeoutOK(cmd string) bool {
	var n int
	count, err := fmt.Sscanf(cmd, "timeout %d", &n)
	return err == nil && count == 1
}

func (s *Server) monitorTimeout(cmd string) {
	var n int
	fmt.Sscanf(cmd, "timeout %d", &n)
	if n < 0 {
		n = 0
	}
	s.timeoutSeconds = int64(n)
	s.replyOK()
}

func (s *Server) monitorTimestamp() {
	stamp := time.Now().Format("2006-01-02 15:04:05") + "\n"
	s.pkt.PackHexstr(stamp)
	s.conn.PutPkt(s.pkt)
	s.replyOK()
}

func (s *Server) monitorCount(v uint64) {
	s.pkt.PackHexstr(strconv.FormatUint(v, 10) + "\n")
	s.conn.PutPkt(s.pkt)
	s.replyOK()
}

func (s *Server) monitorEcho(cmd string) {
	msg := strings.TrimLeft(cmd[len("echo"):], " \t")
	fmt.Fprintln(s.stdout, msg)
	s.replyOK()
}

// rspSetCommand implements "monitor set ..." beyond the ones already
// peeled off in rspCommand's own switch.
func (s *Server) rspSetCommand(cmd string) {
	tokens := rsppkt.Split(cmd)

	if len(tokens) == 3 && tokens[0] == "debug" {
		s.setDebugFlag(tokens[1], tokens[2])
		return
	}

	// "set remote-debug <0|1>", as documented in the help text: the
	// flag name doubles as the command.
	if len(tokens) == 2 && tokens[0] == traceflags.RemoteDebug {
		s.setDebugFlag(tokens[0], tokens[1])
		return
	}

	s.monitorFallback("set " + cmd)
}

func (s *Server) setDebugFlag(flagName, valStr string) {
	if !s.flags.IsFlag(flagName) {
		s.replyErr("E01")
		return
	}
	val, ok := parseMonitorBool(valStr)
	if !ok {
		s.replyErr("E02")
		return
	}
	s.flags.Set(flagName, val)
	s.log.Refresh()
	s.replyOK()
}

// rspShowCommand implements "monitor show ...".
func (s *Server) rspShowCommand(cmd string) {
	tokens := rsppkt.Split(cmd)

	if len(tokens) == 1 && tokens[0] == "debug" {
		var sb strings.Builder
		for _, name := range s.flags.Names() {
			sb.WriteString(name + ": " + onOff(s.flags.Get(name)) + "\n")
		}
		s.pkt.PackRcmdStr(sb.String(), true)
		s.conn.PutPkt(s.pkt)
		s.replyOK()
		return
	}

	if len(tokens) == 2 && tokens[0] == "debug" {
		s.showDebugFlag(tokens[1])
		return
	}

	// "show remote-debug", the help text's companion to "set
	// remote-debug".
	if len(tokens) == 1 && tokens[0] == traceflags.RemoteDebug {
		s.showDebugFlag(tokens[0])
		return
	}

	s.monitorFallback("show " + cmd)
}

func (s *Server) showDebugFlag(flagName string) {
	if !s.flags.IsFlag(flagName) {
		s.replyErr("E01")
		return
	}
	s.pkt.PackRcmdStr(flagName+": "+onOff(s.flags.Get(flagName))+"\n", true)
	s.conn.PutPkt(s.pkt)
	s.replyOK()
}

// monitorFallback forwards an unrecognized monitor command to the target.
func (s *Server) monitorFallback(cmd string) {
	var buf bytes.Buffer
	if s.cpu.Command(cmd, &buf) {
		s.pkt.PackRcmdStr(buf.String(), true)
		s.conn.PutPkt(s.pkt)
		s.replyOK()
		return
	}
	s.replyErr("E04")
}

func parseMonitorBool(s string) (val bool, ok bool) {
	switch strings.ToLower(s) {
	case "0", "off", "false":
		return false, true
	case "1", "on", "true":
		return true, true
	default:
		return false, false
	}
}

func onOff(v bool) string {
	if v {
		return "ON"
	}
	return "OFF"
}
