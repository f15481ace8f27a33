package main

import (
	"bufio"
	"io"
	"net"
	"sync"
	"testing"
)

// MQTT control packet types (upper nibble of the fixed header).
const (
	packetConnect     = 1
	packetSubscribe   = 8
	packetUnsubscribe = 10
	packetPingreq     = 12
	packetDisconnect  = 14
)

// fakeBroker accepts one MQTT 3.1.1 client and answers just enough of the
// protocol for a read-only session. Closing the connection from the test
// simulates the printer dropping off the network.
type fakeBroker struct {
	ln         net.Listener
	subscribed chan struct{}

	mu   sync.Mutex
	conn net.Conn
	once sync.Once
}

func startFakeBroker(t *testing.T) *fakeBroker {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listening: %v", err)
	}
	b := &fakeBroker{ln: ln, subscribed: make(chan struct{})}
	t.Cleanup(func() {
		ln.Close()
		b.drop()
	})
	go b.serve()
	return b
}

func (b *fakeBroker) port() int {
	return b.ln.Addr().(*net.TCPAddr).Port
}

// drop closes the client connection without a DISCONNECT.
func (b *fakeBroker) drop() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.conn != nil {
		b.conn.Close()
	}
}

func (b *fakeBroker) serve() {
	conn, err := b.ln.Accept()
	if err != nil {
		return
	}
	b.mu.Lock()
	b.conn = conn
	b.mu.Unlock()
	defer conn.Close()

	r := bufio.NewReader(conn)
	for {
		header, body, err := readPacket(r)
		if err != nil {
			return
		}

		var reply []byte
		switch header >> 4 {
		case packetConnect:
			reply = []byte{0x20, 0x02, 0x00, 0x00}
		case packetSubscribe:
			reply = []byte{0x90, 0x03, body[0], body[1], 0x00}
		case packetUnsubscribe:
			reply = []byte{0xB0, 0x02, body[0], body[1]}
		case packetPingreq:
			reply = []byte{0xD0, 0x00}
		case packetDisconnect:
			return
		}
		if reply == nil {
			continue
		}
		if _, err := conn.Write(reply); err != nil {
			return
		}
		if header>>4 == packetSubscribe {
			b.once.Do(func() { close(b.subscribed) })
		}
	}
}

// readPacket reads one control packet: the fixed header byte, the
// variable-length remaining length and the rest of the packet.
func readPacket(r *bufio.Reader) (byte, []byte, error) {
	header, err := r.ReadByte()
	if err != nil {
		return 0, nil, err
	}

	length, multiplier := 0, 1
	for {
		digit, err := r.ReadByte()
		if err != nil {
			return 0, nil, err
		}
		length += int(digit&0x7F) * multiplier
		if digit&0x80 == 0 {
			break
		}
		multiplier *= 128
	}

	body := make([]byte, length)
	if _, err := io.ReadFull(r, body); err != nil {
		return 0, nil, err
	}
	return header, body, nil
}
