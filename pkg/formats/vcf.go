package formats

import (
	"bufio"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	gomath "math"
	"os"

	"github.com/Faultbox/verletcloth/pkg/math"
)

// VCF format errors.
var (
	ErrInvalidVCFMagic       = errors.New("invalid VCF magic: expected 'VCF1'")
	ErrUnsupportedVCFVersion = errors.New("unsupported VCF version")
	ErrTruncatedVCFData      = errors.New("truncated VCF data")
)

// VCF layout, all little-endian:
//
//	0  [4]byte  "VCF1"
//	4  uint8    minor version
//	5  uint8    major version
//	6  uint16   reserved
//	8  uint32   vertex count
//	12 uint32   frame count (0 = until end of data)
//	16 float32  seconds per frame
//	20 frames, each vertex count * 3 float32 (x, y, z)
const (
	vcfMagic      = "VCF1"
	vcfHeaderSize = 20
	vcfMajor      = 1
	vcfMinor      = 0
)

// VCFVersion represents the VCF file version.
type VCFVersion struct {
	Major uint8
	Minor uint8
}

// String returns the version as "Major.Minor".
func (v VCFVersion) String() string {
	return fmt.Sprintf("%d.%d", v.Major, v.Minor)
}

// VCF is a vertex cache: one position per vertex per frame.
type VCF struct {
	Version     VCFVersion
	VertexCount int
	FrameTime   float32
	Frames      [][]math.Vec3
}

// Duration returns the playback length in seconds.
func (v *VCF) Duration() float32 {
	return float32(len(v.Frames)) * v.FrameTime
}

// ParseVCF parses a VCF file from raw bytes.
func ParseVCF(data []byte) (*VCF, error) {
	if len(data) < vcfHeaderSize {
		return nil, ErrTruncatedVCFData
	}
	if string(data[0:4]) != vcfMagic {
		return nil, ErrInvalidVCFMagic
	}

	version := VCFVersion{Major: data[5], Minor: data[4]}
	if version.Major != vcfMajor {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedVCFVersion, version)
	}

	vertexCount := int(binary.LittleEndian.Uint32(data[8:12]))
	frameCount := int(binary.LittleEndian.Uint32(data[12:16]))
	frameTime := gomath.Float32frombits(binary.LittleEndian.Uint32(data[16:20]))

	frameSize := vertexCount * 12
	body := data[vcfHeaderSize:]
	if frameCount == 0 && frameSize > 0 {
		if len(body)%frameSize != 0 {
			return nil, fmt.Errorf("%w: %d trailing bytes", ErrTruncatedVCFData, len(body)%frameSize)
		}
		frameCount = len(body) / frameSize
	}
	if frameSize > 0 && frameCount > len(body)/frameSize {
		return nil, fmt.Errorf("%w: need %d frames of %d bytes, have %d bytes",
			ErrTruncatedVCFData, frameCount, frameSize, len(body))
	}

	v := &VCF{
		Version:     version,
		VertexCount: vertexCount,
		FrameTime:   frameTime,
		Frames:      make([][]math.Vec3, frameCount),
	}
	for f := range v.Frames {
		frame := make([]math.Vec3, vertexCount)
		off := f * frameSize
		for i := range frame {
			b := body[off+i*12:]
			frame[i] = math.Vec3{
				X: gomath.Float32frombits(binary.LittleEndian.Uint32(b[0:4])),
				Y: gomath.Float32frombits(binary.LittleEndian.Uint32(b[4:8])),
				Z: gomath.Float32frombits(binary.LittleEndian.Uint32(b[8:12])),
			}
		}
		v.Frames[f] = frame
	}
	return v, nil
}

// ParseVCFFile parses a VCF file from disk.
func ParseVCFFile(path string) (*VCF, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading VCF file: %w", err)
	}
	return ParseVCF(data)
}

// VCFWriter streams frames to a VCF file. If the destination is an
// io.WriteSeeker the frame count is patched into the header on Close;
// otherwise it stays 0 and readers count frames from the data length. The
// header is assumed to start at offset 0 of a seekable destination.
type VCFWriter struct {
	dst         io.Writer
	bw          *bufio.Writer
	vertexCount int
	frames      int
	buf         []byte
}

// NewVCFWriter writes the header and returns a writer for frames of
// vertexCount positions.
func NewVCFWriter(w io.Writer, vertexCount int, frameTime float32) (*VCFWriter, error) {
	if vertexCount <= 0 {
		return nil, fmt.Errorf("invalid VCF vertex count %d", vertexCount)
	}
	vw := &VCFWriter{
		dst:         w,
		bw:          bufio.NewWriter(w),
		vertexCount: vertexCount,
		buf:         make([]byte, vertexCount*12),
	}

	var hdr [vcfHeaderSize]byte
	copy(hdr[0:4], vcfMagic)
	hdr[4] = vcfMinor
	hdr[5] = vcfMajor
	binary.LittleEndian.PutUint32(hdr[8:12], uint32(vertexCount))
	binary.LittleEndian.PutUint32(hdr[16:20], gomath.Float32bits(frameTime))
	if _, err := vw.bw.Write(hdr[:]); err != nil {
		return nil, err
	}
	return vw, nil
}

// WriteFrame appends one frame. positions must hold exactly vertexCount entries.
func (w *VCFWriter) WriteFrame(positions []math.Vec3) error {
	if len(positions) != w.vertexCount {
		return fmt.Errorf("VCF frame has %d vertices, want %d", len(positions), w.vertexCount)
	}
	for i, p := range positions {
		b := w.buf[i*12:]
		binary.LittleEndian.PutUint32(b[0:4], gomath.Float32bits(p.X))
		binary.LittleEndian.PutUint32(b[4:8], gomath.Float32bits(p.Y))
		binary.LittleEndian.PutUint32(b[8:12], gomath.Float32bits(p.Z))
	}
	if _, err := w.bw.Write(w.buf); err != nil {
		return err
	}
	w.frames++
	return nil
}

// Frames returns the number of frames written so far.
func (w *VCFWriter) Frames() int {
	return w.frames
}

// Close flushes buffered frames and, when possible, records the frame count.
// It does not close the underlying writer.
func (w *VCFWriter) Close() error {
	if err := w.bw.Flush(); err != nil {
		return err
	}
	ws, ok := w.dst.(io.WriteSeeker)
	if !ok {
		return nil
	}
	end, err := ws.Seek(0, io.SeekCurrent)
	if err != nil {
		return err
	}
	if _, err := ws.Seek(12, io.SeekStart); err != nil {
		return err
	}
	var n [4]byte
	binary.LittleEndian.PutUint32(n[:], uint32(w.frames))
	if _, err := ws.Write(n[:]); err != nil {
		return err
	}
	_, err = ws.Seek(end, io.SeekStart)
	return err
}
