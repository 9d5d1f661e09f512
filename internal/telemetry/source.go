package telemetry

import (
	"fmt"
	"net"
	"os"
	"sync/atomic"
	"time"
)

// SourceAdapter supplies raw telemetry frames to the pipeline. Poll must not
// block: it returns (nil, nil) when no new frame is available this tick.
// The pipeline owns the polling cadence; adapters own only acquisition.
type SourceAdapter interface {
	Poll() (*RawFrame, error)
	Close() error
}

// ReplaySource plays back a recorded frame sequence, one frame per Poll.
// Deterministic stand-in for a live source in tests and dev mode.
type ReplaySource struct {
	frames []RawFrame
	next   int
}

// NewReplaySource returns a source that yields the given frames in order.
func NewReplaySource(frames []RawFrame) *ReplaySource {
	return &ReplaySource{frames: frames}
}

// NewReplaySourceFromFile loads a recorded session file (consecutive
// wire-format frames) and returns a replay source over it.
func NewReplaySourceFromFile(path string) (*ReplaySource, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open replay file: %w", err)
	}
	defer f.Close()
	frames, err := ReadFrames(f)
	if err != nil {
		return nil, fmt.Errorf("read replay file %s: %w", path, err)
	}
	return NewReplaySource(frames), nil
}

func (r *ReplaySource) Poll() (*RawFrame, error) {
	if r.next >= len(r.frames) {
		return nil, nil
	}
	f := r.frames[r.next]
	r.next++
	return &f, nil
}

// Exhausted reports whether all recorded frames have been delivered.
func (r *ReplaySource) Exhausted() bool { return r.next >= len(r.frames) }

func (r *ReplaySource) Close() error { return nil }

// UDPSource reads wire-format frames from a UDP socket, one frame per
// datagram. Reads use a short deadline so Poll never blocks the hot path;
// malformed datagrams are counted and skipped.
type UDPSource struct {
	conn     *net.UDPConn
	buf      []byte
	badBytes atomic.Uint64
}

// NewUDPSource binds a listening socket on addr (e.g. ":9555").
func NewUDPSource(addr string) (*UDPSource, error) {
	udpAddr, err := net.ResolveUDPAddr("udp", addr)
	if err != nil {
		return nil, fmt.Errorf("resolve %s: %w", addr, err)
	}
	conn, err := net.ListenUDP("udp", udpAddr)
	if err != nil {
		return nil, fmt.Errorf("listen %s: %w", addr, err)
	}
	return &UDPSource{conn: conn, buf: make([]byte, 2048)}, nil
}

func (u *UDPSource) Poll() (*RawFrame, error) {
	// A one-millisecond deadline bounds the wait well under a frame period.
	if err := u.conn.SetReadDeadline(time.Now().Add(time.Millisecond)); err != nil {
		return nil, err
	}
	n, _, err := u.conn.ReadFromUDP(u.buf)
	if err != nil {
		if ne, ok := err.(net.Error); ok && ne.Timeout() {
			return nil, nil
		}
		return nil, err
	}
	frame, err := DecodeFrame(u.buf[:n])
	if err != nil {
		u.badBytes.Add(uint64(n))
		return nil, nil
	}
	return frame, nil
}

// BadBytes returns the number of bytes received in undecodable datagrams.
func (u *UDPSource) BadBytes() uint64 { return u.badBytes.Load() }

func (u *UDPSource) Close() error { return u.conn.Close() }
