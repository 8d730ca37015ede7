package gep

import (
	"bufio"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"

	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

// GEP frame layout on the wire (framing, CRC, and addressing below the
// opcode layer are left to the messenger):
//
//	STX          : 1 byte, always 0x02
//	destination  : 1 byte, registry id in [0,15]
//	tag          : 2 bytes, big-endian
//	length       : 2 bytes, big-endian, length of payload
//	payload      : length bytes
//	checksum     : 1 byte, XOR of destination..payload
const (
	gepSTX          = 0x02
	gepHeaderSize   = 1 + 1 + 2 + 2 // STX + dest + tag + length
	gepMaxPayload   = 1 << 15
	gepMaxFrameSize = gepHeaderSize + gepMaxPayload + 1
)

// GEPMessenger is a reference Messenger implementation framing messages
// over a FullDuplexStreamSocket. messengerID identifies this node's own
// address on a shared bus; incoming frames whose destination does not match
// messengerID are dropped, unless messengerID is 0 ("accept all").
type GEPMessenger struct {
	socket      FullDuplexStreamSocket
	messengerID byte
	logger      *slog.Logger
	printer     *message.Printer

	listener MessageListener

	writeMu sync.Mutex

	mu      sync.Mutex
	running bool
	done    chan struct{}
	wg      sync.WaitGroup
}

// NewGEPMessenger constructs a messenger over socket, filtering received
// frames to those addressed to messengerID (0 accepts every frame).
func NewGEPMessenger(socket FullDuplexStreamSocket, messengerID byte, logger *slog.Logger) *GEPMessenger {
	if logger == nil {
		logger = slog.Default()
	}
	return &GEPMessenger{socket: socket, messengerID: messengerID, logger: logger, printer: localizedPrinter(language.AmericanEnglish)}
}

// SetListener implements Messenger.
func (m *GEPMessenger) SetListener(listener MessageListener) {
	m.listener = listener
}

// Start implements Messenger.
func (m *GEPMessenger) Start() error {
	m.mu.Lock()
	if m.running {
		m.mu.Unlock()
		return nil
	}
	if err := m.socket.Open(); err != nil {
		m.mu.Unlock()
		return fmt.Errorf("gep: open messenger socket: %w", err)
	}
	m.running = true
	m.done = make(chan struct{})
	m.mu.Unlock()

	m.wg.Add(1)
	go m.readLoop()
	return nil
}

// Stop implements Messenger.
func (m *GEPMessenger) Stop(block bool) error {
	m.mu.Lock()
	if !m.running {
		m.mu.Unlock()
		return nil
	}
	m.running = false
	close(m.done)
	err := m.socket.Close()
	m.mu.Unlock()

	if block {
		m.wg.Wait()
	}
	return err
}

// IsRunning implements Messenger.
func (m *GEPMessenger) IsRunning() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.running
}

// Send implements Messenger.
func (m *GEPMessenger) Send(destID byte, payload []byte, tag uint16) error {
	if len(payload) > gepMaxPayload {
		return fmt.Errorf("gep: payload of %d bytes exceeds maximum %d", len(payload), gepMaxPayload)
	}

	frame := make([]byte, gepHeaderSize+len(payload)+1)
	frame[0] = gepSTX
	frame[1] = destID
	binary.BigEndian.PutUint16(frame[2:], tag)
	binary.BigEndian.PutUint16(frame[4:], uint16(len(payload)))
	copy(frame[gepHeaderSize:], payload)
	frame[len(frame)-1] = xorChecksum(frame[1 : len(frame)-1])

	m.writeMu.Lock()
	defer m.writeMu.Unlock()
	_, err := m.socket.Write(frame)
	if err != nil {
		return fmt.Errorf("gep: send frame: %w", err)
	}
	return nil
}

func xorChecksum(b []byte) byte {
	var sum byte
	for _, v := range b {
		sum ^= v
	}
	return sum
}

// readLoop reads frames until the socket is closed or Stop is called. Frame
// parsing resynchronizes on the next STX byte after any structural or
// checksum error, on the assumption that a corrupted frame is rare and the
// stream self-heals once the next valid STX is seen.
func (m *GEPMessenger) readLoop() {
	defer m.wg.Done()

	r := bufio.NewReaderSize(m.socket, gepMaxFrameSize)
	for {
		select {
		case <-m.done:
			return
		default:
		}

		tag, payload, err := readGEPFrame(r, m.messengerID)
		if err != nil {
			if errors.Is(err, io.EOF) || isClosedErr(err) {
				return
			}
			m.logger.Warn(m.printer.Sprintf("log.malformed_frame", err))
			continue
		}
		if payload == nil {
			// Frame addressed to a different node; ignore silently.
			continue
		}
		if m.listener != nil {
			m.listener(tag, payload)
		}
	}
}

// readGEPFrame reads exactly one frame from r. A nil payload with a nil
// error means the frame was well-formed but addressed to a different node.
func readGEPFrame(r *bufio.Reader, ownID byte) (uint16, []byte, error) {
	for {
		b, err := r.ReadByte()
		if err != nil {
			return 0, nil, err
		}
		if b == gepSTX {
			break
		}
	}

	header := make([]byte, gepHeaderSize-1)
	if _, err := io.ReadFull(r, header); err != nil {
		return 0, nil, err
	}
	dest := header[0]
	tag := binary.BigEndian.Uint16(header[1:3])
	length := binary.BigEndian.Uint16(header[3:5])
	if int(length) > gepMaxPayload {
		return 0, nil, &ErrInvalidMessage{reason: "frame length exceeds maximum"}
	}

	payload := make([]byte, length)
	if _, err := io.ReadFull(r, payload); err != nil {
		return 0, nil, err
	}

	checksumByte, err := r.ReadByte()
	if err != nil {
		return 0, nil, err
	}

	check := xorChecksum(header)
	check = xorChecksum(payload) ^ check
	if check != checksumByte {
		return 0, nil, &ErrInvalidMessage{reason: "checksum mismatch"}
	}

	if ownID != 0 && dest != ownID {
		return tag, nil, nil
	}
	return tag, payload, nil
}

func isClosedErr(err error) bool {
	return errors.Is(err, io.ErrClosedPipe) || errors.Is(err, io.ErrUnexpectedEOF)
}
