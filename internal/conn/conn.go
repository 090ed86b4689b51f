// Package conn provides a concrete rspconn.Connection over a TCP
// net.Conn: RSP packet framing, checksums, +/- acknowledgements, run-length
// and binary-escape decoding, and a background watcher for the
// out-of-band Ctrl-C byte. It is grounded in delve's
// pkg/proc/gdbserial wire codec (checksum/escape/ack handling), mirrored
// for the stub (server) role instead of the client role delve plays.
package conn

import (
	"bufio"
	"errors"
	"net"
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/mablinov/riscv-gdbserver/internal/rsppkt"
)

// ErrTooManyAttempts reports that a packet could not be delivered after
// repeated NAKed retransmissions; PutPkt logs it as a warning.
var ErrTooManyAttempts = errors.New("conn: too many transmit attempts")

// ErrMalformedPacket reports a framing-level failure on a received
// packet (bad checksum); the sender is NAKed and asked to retransmit.
var ErrMalformedPacket = errors.New("conn: malformed packet")

const maxTransmitAttempts = 5

const breakByte = 0x03

type recvState int

const (
	stateIdle recvState = iota
	statePacket
	stateCsum1
	stateCsum2
)

// Conn implements rspconn.Connection over a single TCP listener, serving
// one client connection at a time (reconnect after a client detaches).
type Conn struct {
	addr string
	log  *logrus.Entry

	ln net.Listener
	nc net.Conn

	mu        sync.Mutex
	connected bool

	packets   chan []byte
	acks      chan byte
	breakFlag chan struct{}
	readErr   chan error
}

// New returns a Connection that will listen on addr once Connect is
// called.
func New(addr string, log *logrus.Entry) *Conn {
	if log == nil {
		log = logrus.NewEntry(logrus.New())
	}
	return &Conn{addr: addr, log: log}
}

// Addr returns the listener's bound address, useful when addr was given as
// "host:0" and the kernel picked the port. Empty until the first Connect
// call has opened the listener.
func (c *Conn) Addr() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.ln == nil {
		return ""
	}
	return c.ln.Addr().String()
}

// Connect blocks until a client attaches (or the listener fails to open).
func (c *Conn) Connect() bool {
	c.mu.Lock()
	ln := c.ln
	c.mu.Unlock()
	if ln == nil {
		var err error
		ln, err = net.Listen("tcp", c.addr)
		if err != nil {
			c.log.Errorf("failed to listen on %s: %v", c.addr, err)
			return false
		}
		c.mu.Lock()
		c.ln = ln
		c.mu.Unlock()
	}

	nc, err := ln.Accept()
	if err != nil {
		c.log.Errorf("failed to accept connection: %v", err)
		return false
	}

	c.mu.Lock()
	c.nc = nc
	c.connected = true
	c.packets = make(chan []byte, 4)
	c.acks = make(chan byte, 4)
	c.breakFlag = make(chan struct{}, 1)
	c.readErr = make(chan error, 1)
	c.mu.Unlock()

	go c.readLoop(nc)
	return true
}

// Close closes the current client connection. Connect will accept a new
// one on the next call.
func (c *Conn) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.nc != nil {
		c.nc.Close()
	}
	c.connected = false
}

// IsConnected reports whether a client is currently attached.
func (c *Conn) IsConnected() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.connected
}

// HaveBreak is a non-blocking peek for an out-of-band Ctrl-C byte.
func (c *Conn) HaveBreak() bool {
	select {
	case <-c.breakFlag:
		return true
	default:
		return false
	}
}

// GetPkt reads one packet into pkt. Returns false on EOF/error, in which
// case the caller is expected to Close the connection.
func (c *Conn) GetPkt(pkt *rsppkt.Packet) bool {
	select {
	case data, ok := <-c.packets:
		if !ok {
			return false
		}
		n := copy(pkt.Data(), data)
		pkt.SetLen(n)
		return true
	case <-c.readErr:
		return false
	}
}

// PutPkt sends pkt's current payload, retransmitting on a NAK up to a
// bounded number of attempts.
func (c *Conn) PutPkt(pkt *rsppkt.Packet) {
	payload := pkt.Data()[:pkt.Len()]
	framed := frame(payload)

	for attempt := 0; attempt <= maxTransmitAttempts; attempt++ {
		if _, err := c.nc.Write(framed); err != nil {
			c.log.Warnf("write failed: %v", err)
			return
		}
		select {
		case ack := <-c.acks:
			if ack == '+' {
				return
			}
		case <-c.readErr:
			return
		}
	}
	c.log.Warn(ErrTooManyAttempts)
}

func frame(payload []byte) []byte {
	out := make([]byte, 0, len(payload)+4)
	out = append(out, '$')
	out = append(out, payload...)
	out = append(out, '#')
	sum := checksum(payload)
	out = append(out, rsppkt.Hex2Char(sum>>4), rsppkt.Hex2Char(sum&0xf))
	return out
}

func checksum(payload []byte) (sum uint8) {
	for _, b := range payload {
		sum += b
	}
	return sum
}

// readLoop owns the read side of nc for the lifetime of one client
// connection. It classifies each byte as part of a packet, an
// acknowledgement, or the out-of-band Ctrl-C byte, and routes it to the
// appropriate channel so PutPkt/GetPkt/HaveBreak never contend on the
// socket directly.
func (c *Conn) readLoop(nc net.Conn) {
	rdr := bufio.NewReader(nc)
	var pktBuf []byte
	var csum1 byte
	state := stateIdle

	for {
		b, err := rdr.ReadByte()
		if err != nil {
			select {
			case c.readErr <- err:
			default:
			}
			close(c.packets)
			return
		}

		switch state {
		case stateIdle:
			switch b {
			case '$':
				pktBuf = pktBuf[:0]
				state = statePacket
			case '+', '-':
				select {
				case c.acks <- b:
				default:
				}
			case breakByte:
				select {
				case c.breakFlag <- struct{}{}:
				default:
				}
			}

		case statePacket:
			if b == '#' {
				state = stateCsum1
			} else {
				pktBuf = append(pktBuf, b)
			}

		case stateCsum1:
			csum1 = b
			state = stateCsum2

		case stateCsum2:
			state = stateIdle
			if verifyChecksum(pktBuf, csum1, b) {
				binary := len(pktBuf) > 0 && pktBuf[0] == 'X'
				decoded := decode(pktBuf, binary)
				c.nc.Write([]byte{'+'})
				select {
				case c.packets <- decoded:
				default:
					c.log.Warn("packet dropped: receiver not ready")
				}
			} else {
				c.log.Debugf("%v: requesting retransmit", ErrMalformedPacket)
				c.nc.Write([]byte{'-'})
			}
		}
	}
}

func verifyChecksum(pktBuf []byte, hi, lo byte) bool {
	got := (uint8(rsppkt.Char2Hex(hi)) << 4) | uint8(rsppkt.Char2Hex(lo))
	return got == checksum(pktBuf)
}

// decode reverses run-length encoding and generic '}'-escaping on a
// received packet payload. For binary ('X') packets the '}'-escape pairs
// are passed through intact: the X handler performs the single unescape
// pass itself, and decoding here as well would corrupt any payload
// containing a literal 0x7d byte.
func decode(in []byte, binary bool) []byte {
	out := make([]byte, 0, len(in))
	for i := 0; i < len(in); i++ {
		switch in[i] {
		case '}':
			if binary {
				out = append(out, in[i])
				if i+1 < len(in) {
					i++
					out = append(out, in[i])
				}
			} else if i+1 < len(in) {
				i++
				out = append(out, in[i]^0x20)
			}
		case '*':
			if i+1 < len(in) && len(out) > 0 {
				rep := in[i+1] - 29
				r := out[len(out)-1]
				for j := byte(0); j < rep; j++ {
					out = append(out, r)
				}
				i++
			}
		default:
			out = append(out, in[i])
		}
	}
	return out
}
