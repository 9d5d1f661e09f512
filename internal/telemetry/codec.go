package telemetry

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
)

// Wire format: one frame per datagram, little-endian, fixed layout.
// A magic word guards against foreign traffic on the listen port.
const frameMagic uint32 = 0x52434631 // "RCF1"

// FrameWireSize is the encoded size of one frame in bytes.
const FrameWireSize = 4 + 8 + 14*8 + 2*4

var ErrBadFrame = errors.New("malformed telemetry frame")

// wireFrame matches the datagram layout exactly; fixed-size fields only so
// encoding/binary can handle it in one call.
type wireFrame struct {
	Magic       uint32
	TimestampUS int64
	SpeedMPS    float64
	Throttle    float64
	Brake       float64
	SteeringRad float64
	Slip        [4]float64
	GLat        float64
	GLong       float64
	RPM         float64
	LapDistPct  float64
	WorldX      float64
	WorldY      float64
	Gear        int32
	LapNumber   int32
}

// EncodeFrame serialises a frame into the wire format.
func EncodeFrame(f *RawFrame) ([]byte, error) {
	w := wireFrame{
		Magic:       frameMagic,
		TimestampUS: f.TimestampUS,
		SpeedMPS:    f.SpeedMPS,
		Throttle:    f.Throttle,
		Brake:       f.Brake,
		SteeringRad: f.SteeringRad,
		Slip:        f.Slip,
		GLat:        f.GLat,
		GLong:       f.GLong,
		RPM:         f.RPM,
		LapDistPct:  f.LapDistPct,
		WorldX:      f.WorldX,
		WorldY:      f.WorldY,
		Gear:        int32(f.Gear),
		LapNumber:   int32(f.LapNumber),
	}
	buf := bytes.NewBuffer(make([]byte, 0, FrameWireSize))
	if err := binary.Write(buf, binary.LittleEndian, &w); err != nil {
		return nil, fmt.Errorf("encode frame: %w", err)
	}
	return buf.Bytes(), nil
}

// DecodeFrame parses one wire-format frame.
func DecodeFrame(data []byte) (*RawFrame, error) {
	if len(data) < FrameWireSize {
		return nil, fmt.Errorf("%w: %d bytes, want %d", ErrBadFrame, len(data), FrameWireSize)
	}
	var w wireFrame
	if err := binary.Read(bytes.NewReader(data), binary.LittleEndian, &w); err != nil {
		return nil, fmt.Errorf("decode frame: %w", err)
	}
	if w.Magic != frameMagic {
		return nil, fmt.Errorf("%w: bad magic 0x%08x", ErrBadFrame, w.Magic)
	}
	return &RawFrame{
		TimestampUS: w.TimestampUS,
		SpeedMPS:    w.SpeedMPS,
		Throttle:    w.Throttle,
		Brake:       w.Brake,
		SteeringRad: w.SteeringRad,
		Slip:        w.Slip,
		GLat:        w.GLat,
		GLong:       w.GLong,
		RPM:         w.RPM,
		Gear:        int(w.Gear),
		LapNumber:   int(w.LapNumber),
		LapDistPct:  w.LapDistPct,
		WorldX:      w.WorldX,
		WorldY:      w.WorldY,
	}, nil
}

// ReadFrames reads consecutive wire-format frames from r until EOF.
// Used to load recorded sessions for replay.
func ReadFrames(r io.Reader) ([]RawFrame, error) {
	var frames []RawFrame
	buf := make([]byte, FrameWireSize)
	for {
		if _, err := io.ReadFull(r, buf); err != nil {
			if errors.Is(err, io.EOF) {
				return frames, nil
			}
			if errors.Is(err, io.ErrUnexpectedEOF) {
				return frames, fmt.Errorf("truncated frame after %d frames: %w", len(frames), ErrBadFrame)
			}
			return frames, err
		}
		f, err := DecodeFrame(buf)
		if err != nil {
			return frames, err
		}
		frames = append(frames, *f)
	}
}
