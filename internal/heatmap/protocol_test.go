package heatmap

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// regWrite is one recorded register write (report ID, bank, addr, value).
type regWrite struct {
	report byte
	bank   byte
	addr   byte
	value  byte
}

// mockDevice scripts the feature-report protocol: reads are served from
// register maps, writes are recorded in order, burst responses stream a
// repeating payload pattern.
type mockDevice struct {
	regs     map[[2]byte]byte // (bank, addr) -> value for report 0x42 reads
	userRegs map[[2]byte]byte // (bank, addr) -> value for report 0x43 reads
	readHook func(bank, addr byte) (byte, bool)

	writes      []regWrite
	failOnWrite *regWrite // SetFeature fails when this write is attempted

	burst    []byte // repeating burst payload pattern
	chunk    int    // payload bytes per burst response; 0 = report ID only
	burstPos int

	readRequests []regWrite // recorded read requests (value field unused)

	pending byte
}

func (m *mockDevice) SetFeature(buf []byte) error {
	if len(buf) < 4 {
		return fmt.Errorf("mock: short feature buffer: %d", len(buf))
	}
	report, addr, bankField, value := buf[0], buf[1], buf[2], buf[3]

	if bankField&0x10 != 0 {
		bank := bankField &^ byte(0x10)
		m.readRequests = append(m.readRequests, regWrite{report: report, bank: bank, addr: addr})
		if m.readHook != nil {
			if v, ok := m.readHook(bank, addr); ok {
				m.pending = v
				return nil
			}
		}
		table := m.regs
		if report == reportUser {
			table = m.userRegs
		}
		m.pending = table[[2]byte{bank, addr}]
		return nil
	}

	w := regWrite{report: report, bank: bankField, addr: addr, value: value}
	if m.failOnWrite != nil && *m.failOnWrite == w {
		return fmt.Errorf("mock: injected write failure at bank=%d addr=0x%02X", bankField, addr)
	}
	m.writes = append(m.writes, w)
	return nil
}

func (m *mockDevice) GetFeature(buf []byte) (int, error) {
	if buf[0] == reportBurst {
		if m.chunk == 0 {
			return 1, nil
		}
		n := m.chunk
		if n > len(buf)-1 {
			n = len(buf) - 1
		}
		for i := 0; i < n; i++ {
			buf[1+i] = m.burst[(m.burstPos+i)%len(m.burst)]
		}
		m.burstPos += n
		return 1 + n, nil
	}
	buf[3] = m.pending
	return len(buf), nil
}

func (m *mockDevice) Close() error { return nil }

// writesTo returns the recorded writes made with the given report ID.
func (m *mockDevice) writesTo(report byte) []regWrite {
	var out []regWrite
	for _, w := range m.writes {
		if w.report == report {
			out = append(out, w)
		}
	}
	return out
}

func TestReadReg(t *testing.T) {
	t.Parallel()

	dev := &mockDevice{regs: map[[2]byte]byte{{3, 0x42}: 0xAB}}

	v, err := readReg(dev, 3, 0x42)
	require.NoError(t, err)
	assert.Equal(t, byte(0xAB), v)

	// The read request must carry the read flag on top of the bank byte.
	require.Len(t, dev.readRequests, 1)
	assert.Equal(t, byte(reportSingle), dev.readRequests[0].report)
	assert.Equal(t, byte(3), dev.readRequests[0].bank)
	assert.Equal(t, byte(0x42), dev.readRequests[0].addr)
}

func TestReadUserReg(t *testing.T) {
	t.Parallel()

	dev := &mockDevice{
		regs:     map[[2]byte]byte{{0, 0x6E}: 0x11},
		userRegs: map[[2]byte]byte{{0, 0x6E}: 0x22},
	}

	v, err := readUserReg(dev, 0, 0x6E)
	require.NoError(t, err)
	assert.Equal(t, byte(0x22), v, "user register reads must use the user report ID")
}

func TestWriteReg(t *testing.T) {
	t.Parallel()

	dev := &mockDevice{}
	require.NoError(t, writeReg(dev, 6, 0x0A, 0x01))

	require.Len(t, dev.writes, 1)
	assert.Equal(t, regWrite{report: reportSingle, bank: 6, addr: 0x0A, value: 0x01}, dev.writes[0])
}

func TestBurstRead_ExactChunks(t *testing.T) {
	t.Parallel()

	payload := make([]byte, 24)
	for i := range payload {
		payload[i] = byte(i)
	}
	dev := &mockDevice{burst: payload, chunk: 8}

	got, err := burstRead(dev, 24, 8)
	require.NoError(t, err)
	assert.Equal(t, payload, got)
}

func TestBurstRead_NonDivisibleTotal(t *testing.T) {
	t.Parallel()

	payload := make([]byte, 64)
	for i := range payload {
		payload[i] = byte(i * 3)
	}
	dev := &mockDevice{burst: payload, chunk: 24}

	// 50 bytes over 24-byte responses: the tail response overshoots and
	// must be clamped to exactly the remaining bytes.
	got, err := burstRead(dev, 50, 24)
	require.NoError(t, err)
	require.Len(t, got, 50)
	assert.Equal(t, payload[:50], got)
}

func TestBurstRead_EmptyResponseFailsClosed(t *testing.T) {
	t.Parallel()

	dev := &mockDevice{chunk: 0}

	_, err := burstRead(dev, 100, 16)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrShortBurst))
}

func TestSamplesFromBytes(t *testing.T) {
	t.Parallel()

	raw := []byte{
		0x34, 0x12, // 0x1234
		0xFF, 0xFF, // -1
		0x00, 0x80, // most negative
		0xFF, 0x7F, // most positive
	}
	got := samplesFromBytes(raw)
	assert.Equal(t, []int16{0x1234, -1, -32768, 32767}, got)
}
