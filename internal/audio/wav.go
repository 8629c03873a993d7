package audio

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/Mavwarf/waveforge/internal/paths"
	goaudio "github.com/go-audio/audio"
	gowav "github.com/go-audio/wav"
)

// HeaderSize is the length of the canonical PCM WAV header.
const HeaderSize = 44

// maxWAVSize is the largest WAV file LoadWAV and ReadHeader accept (50 MB).
const maxWAVSize = 50 * 1024 * 1024

var (
	// ErrCreate means the destination could not be opened or created.
	ErrCreate = errors.New("cannot create destination")

	// ErrPartialWrite means the file could not be written in full. The
	// destination is left untouched.
	ErrPartialWrite = errors.New("partial write")
)

// ExportError reports a failed WriteWAV. Kind is ErrCreate or
// ErrPartialWrite; Err is the underlying cause.
type ExportError struct {
	Path string
	Kind error
	Err  error
}

func (e *ExportError) Error() string {
	return fmt.Sprintf("wav: %v %s: %v", e.Kind, e.Path, e.Err)
}

func (e *ExportError) Unwrap() []error {
	return []error{e.Kind, e.Err}
}

// Header holds the fields of a PCM WAV header.
type Header struct {
	ChunkSize     uint32
	AudioFormat   uint16
	NumChannels   uint16
	SampleRate    uint32
	ByteRate      uint32
	BlockAlign    uint16
	BitsPerSample uint16
	DataOffset    int
	DataSize      uint32
}

// EncodeWAV returns a mono 16-bit PCM WAV file holding samples.
func EncodeWAV(samples []int16, sampleRate int) []byte {
	dataSize := len(samples) * BitsPerSample / 8
	blockAlign := Channels * BitsPerSample / 8
	byteRate := sampleRate * blockAlign

	buf := make([]byte, HeaderSize+dataSize)

	copy(buf[0:4], "RIFF")
	binary.LittleEndian.PutUint32(buf[4:8], uint32(36+dataSize))
	copy(buf[8:12], "WAVE")

	copy(buf[12:16], "fmt ")
	binary.LittleEndian.PutUint32(buf[16:20], 16)
	binary.LittleEndian.PutUint16(buf[20:22], 1) // PCM
	binary.LittleEndian.PutUint16(buf[22:24], Channels)
	binary.LittleEndian.PutUint32(buf[24:28], uint32(sampleRate))
	binary.LittleEndian.PutUint32(buf[28:32], uint32(byteRate))
	binary.LittleEndian.PutUint16(buf[32:34], uint16(blockAlign))
	binary.LittleEndian.PutUint16(buf[34:36], BitsPerSample)

	copy(buf[36:40], "data")
	binary.LittleEndian.PutUint32(buf[40:44], uint32(dataSize))
	putSamples(buf[HeaderSize:], samples)

	return buf
}

// putSamples writes samples as signed 16-bit little-endian into dst.
func putSamples(dst []byte, samples []int16) {
	for i, s := range samples {
		binary.LittleEndian.PutUint16(dst[i*2:], uint16(s))
	}
}

// WriteWAV encodes samples and writes them to path. The file is written
// under a temporary name in the same directory and renamed into place, so
// path either receives the complete file or is left as it was.
func WriteWAV(path string, samples []int16, sampleRate int) error {
	if fi, err := os.Stat(path); err == nil && fi.IsDir() {
		return &ExportError{Path: path, Kind: ErrCreate, Err: errors.New("is a directory")}
	}

	f, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".*.tmp")
	if err != nil {
		return &ExportError{Path: path, Kind: ErrCreate, Err: err}
	}
	tmp := f.Name()

	if err := commit(f, EncodeWAV(samples, sampleRate)); err != nil {
		os.Remove(tmp)
		return &ExportError{Path: path, Kind: ErrPartialWrite, Err: err}
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return &ExportError{Path: path, Kind: ErrCreate, Err: err}
	}
	return nil
}

// commit writes data to f, flushes it to disk and closes f. f is closed
// on every path.
func commit(f *os.File, data []byte) error {
	if err := writeFull(f, data); err != nil {
		f.Close()
		return err
	}
	if err := f.Chmod(paths.FilePerm); err != nil {
		f.Close()
		return err
	}
	if err := f.Sync(); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

// writeFull writes data to w, treating a short write as an error.
func writeFull(w io.Writer, data []byte) error {
	n, err := w.Write(data)
	if err != nil {
		return fmt.Errorf("wrote %d of %d bytes: %w", n, len(data), err)
	}
	if n != len(data) {
		return fmt.Errorf("wrote %d of %d bytes: %w", n, len(data), io.ErrShortWrite)
	}
	return nil
}

// EncodeWAV returns the engine's buffer as a WAV file.
func (e *Engine) EncodeWAV() []byte {
	return EncodeWAV(e.samples, e.sampleRate)
}

// WriteWAV writes the engine's buffer to path. See WriteWAV.
func (e *Engine) WriteWAV(path string) error {
	return WriteWAV(path, e.samples, e.sampleRate)
}

// ParseHeader reads the fmt and data chunks of a RIFF/WAVE file. Chunks
// other than fmt and data are skipped, so files with LIST or fact chunks
// parse too.
func ParseHeader(data []byte) (Header, error) {
	if len(data) < 12 {
		return Header{}, fmt.Errorf("wav: file too short")
	}
	if string(data[0:4]) != "RIFF" || string(data[8:12]) != "WAVE" {
		return Header{}, fmt.Errorf("wav: not a WAV file")
	}

	h := Header{ChunkSize: binary.LittleEndian.Uint32(data[4:8])}

	fmtOff, fmtSize, err := findChunk(data, "fmt ")
	if err != nil {
		return Header{}, err
	}
	if fmtSize < 16 || fmtOff+16 > len(data) {
		return Header{}, fmt.Errorf("wav: fmt chunk too short")
	}
	h.AudioFormat = binary.LittleEndian.Uint16(data[fmtOff : fmtOff+2])
	h.NumChannels = binary.LittleEndian.Uint16(data[fmtOff+2 : fmtOff+4])
	h.SampleRate = binary.LittleEndian.Uint32(data[fmtOff+4 : fmtOff+8])
	h.ByteRate = binary.LittleEndian.Uint32(data[fmtOff+8 : fmtOff+12])
	h.BlockAlign = binary.LittleEndian.Uint16(data[fmtOff+12 : fmtOff+14])
	h.BitsPerSample = binary.LittleEndian.Uint16(data[fmtOff+14 : fmtOff+16])

	dataOff, dataSize, err := findChunk(data, "data")
	if err != nil {
		return Header{}, err
	}
	h.DataOffset = dataOff
	h.DataSize = uint32(dataSize)
	return h, nil
}

// ReadHeader reads the file at path and parses its header.
func ReadHeader(path string) (Header, error) {
	data, err := readLimited(path)
	if err != nil {
		return Header{}, err
	}
	return ParseHeader(data)
}

// findChunk locates a RIFF chunk by its 4-byte ID and returns (dataOffset, dataSize).
func findChunk(data []byte, id string) (int, int, error) {
	off := 12
	for off+8 <= len(data) {
		chunkID := string(data[off : off+4])
		chunkSize := int(binary.LittleEndian.Uint32(data[off+4 : off+8]))
		if chunkID == id {
			return off + 8, chunkSize, nil
		}
		// Chunks are word-aligned.
		off += 8 + chunkSize
		if off%2 != 0 {
			off++
		}
	}
	return 0, 0, fmt.Errorf("wav: %q chunk not found", id)
}

func readLimited(path string) ([]byte, error) {
	fi, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("wav: %w", err)
	}
	if fi.Size() > maxWAVSize {
		return nil, fmt.Errorf("wav: file too large (%d bytes, max %d)", fi.Size(), maxWAVSize)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("wav: %w", err)
	}
	return data, nil
}

// LoadWAV decodes a 16-bit PCM WAV file and returns its samples and sample
// rate. Multi-channel files are reduced to their first channel.
func LoadWAV(path string) ([]int16, int, error) {
	fi, err := os.Stat(path)
	if err != nil {
		return nil, 0, fmt.Errorf("wav: %w", err)
	}
	if fi.Size() > maxWAVSize {
		return nil, 0, fmt.Errorf("wav: file too large (%d bytes, max %d)", fi.Size(), maxWAVSize)
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, 0, fmt.Errorf("wav: %w", err)
	}
	defer f.Close()

	d := gowav.NewDecoder(f)
	if !d.IsValidFile() {
		return nil, 0, fmt.Errorf("wav: not a valid WAV file: %s", path)
	}
	if d.WavAudioFormat != 1 {
		return nil, 0, fmt.Errorf("wav: unsupported format %d (only PCM supported)", d.WavAudioFormat)
	}
	if d.BitDepth != BitsPerSample {
		return nil, 0, fmt.Errorf("wav: unsupported bit depth %d (only 16 supported)", d.BitDepth)
	}

	buf, err := d.FullPCMBuffer()
	if err != nil {
		return nil, 0, fmt.Errorf("wav: decoding %s: %w", path, err)
	}

	samples, err := firstChannel(buf)
	if err != nil {
		return nil, 0, err
	}
	return samples, int(d.SampleRate), nil
}

// firstChannel extracts channel 0 of an interleaved decoded buffer.
func firstChannel(buf *goaudio.IntBuffer) ([]int16, error) {
	if buf.Format == nil || buf.Format.NumChannels < 1 {
		return nil, errors.New("wav: missing channel count")
	}
	channels := buf.Format.NumChannels
	samples := make([]int16, 0, len(buf.Data)/channels)
	for i := 0; i < len(buf.Data); i += channels {
		samples = append(samples, Saturate16(float64(buf.Data[i])))
	}
	return samples, nil
}

// LoadWAV replaces the engine's buffer and sample rate with the contents
// of the WAV file at path.
func (e *Engine) LoadWAV(path string) error {
	samples, rate, err := LoadWAV(path)
	if err != nil {
		return err
	}
	e.Load(samples, rate)
	return nil
}
