package rspserver

import (
	"strconv"
	"strings"

	"github.com/mablinov/riscv-gdbserver/internal/rsppkt"
)

// query implements the 'q' query dispatch. Anything not
// explicitly recognized replies with an empty payload.
func (s *Server) query() {
	data := string(s.pkt.Data()[:s.pkt.Len()])

	switch {
	case data == "qC":
		s.pkt.PackStr("QC" + strconv.FormatInt(DummyTID, 16))
		s.conn.PutPkt(s.pkt)

	case strings.HasPrefix(data, "qCRC"):
		s.log.Always.Warn("RSP CRC query not supported")
		s.replyErr("E01")

	case data == "qfThreadInfo":
		s.pkt.PackStr("m" + strconv.FormatInt(DummyTID, 16))
		s.conn.PutPkt(s.pkt)

	case data == "qsThreadInfo":
		s.pkt.PackStr("l")
		s.conn.PutPkt(s.pkt)

	case strings.HasPrefix(data, "qL"):
		s.log.Always.Warn("RSP qL deprecated: no info returned")
		s.pkt.PackStr("qM001")
		s.conn.PutPkt(s.pkt)

	case strings.HasPrefix(data, "qRcmd,"):
		s.rspCommand(data[len("qRcmd,"):])

	case strings.HasPrefix(data, "qSupported"):
		s.pkt.PackStr("PacketSize=" + strconv.FormatInt(int64(s.pkt.BufSize()), 16))
		s.conn.PutPkt(s.pkt)

	case strings.HasPrefix(data, "qSymbol:"):
		s.replyOK()

	case strings.HasPrefix(data, "qThreadExtraInfo,"):
		s.pkt.PackStr(rsppkt.Ascii2Hex("Runnable\x00"))
		s.conn.PutPkt(s.pkt)

	default:
		s.replyEmpty()
	}
}

// set implements 'Q' set-requests. None are supported; all reply empty.
func (s *Server) set() {
	s.replyEmpty()
}
