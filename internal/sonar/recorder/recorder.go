// Package recorder writes sonar frames to chunked log directories and
// replays them as a seekable FrameSource.
package recorder

import (
	"bufio"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/banshee-data/fanbeam/internal/sonar"
	"github.com/banshee-data/fanbeam/internal/timeutil"
)

// FileExtension is the extension of sonar log directories.
const FileExtension = ".sonlog"

// DefaultChunkSize is the number of frames per chunk file.
const DefaultChunkSize = 500

// ErrClosed is returned by Record after Close.
var ErrClosed = errors.New("recorder is closed")

// Header describes a recorded log. It is written as header.json on Close.
type Header struct {
	Version     string  `json:"version"`
	SessionID   string  `json:"session_id"`
	CreatedNs   int64   `json:"created_ns"`
	Source      string  `json:"source"`
	Beams       int     `json:"beams"`
	RangeBins   int     `json:"range_bins"`
	Depth       string  `json:"depth"`
	SwathDeg    float64 `json:"swath_deg"`
	MaxRange    float64 `json:"max_range"`
	FPS         float64 `json:"fps"`
	ChunkSize   int     `json:"chunk_size"`
	TotalFrames uint64  `json:"total_frames"`
	StartNs     int64   `json:"start_ns"`
	EndNs       int64   `json:"end_ns"`
}

// IndexEntry locates one record. index.bin stores entries back to back,
// little-endian, 24 bytes each.
type IndexEntry struct {
	FrameID     uint64
	TimestampNs int64
	ChunkID     uint32
	Offset      uint32
}

const indexEntrySize = 24

// Options describe the recording.
type Options struct {
	Source    string
	SwathDeg  float64
	MaxRange  float64
	FPS       float64
	ChunkSize int            // default: DefaultChunkSize
	Clock     timeutil.Clock // stamps wall time per frame
}

// DefaultPath names a recording under parent by its start time, in the
// layout sonar.BaseTimestamp understands.
func DefaultPath(parent string, start time.Time) string {
	return filepath.Join(parent, sonar.RecordingName("sonar_", start, FileExtension))
}

// IsRecording reports whether path is a log directory.
func IsRecording(path string) bool {
	st, err := os.Stat(filepath.Join(path, "header.json"))
	return err == nil && st.Mode().IsRegular()
}

// Recorder appends frames to a log directory.
type Recorder struct {
	basePath  string
	clock     timeutil.Clock
	chunkSize int

	header       Header
	index        []IndexEntry
	currentChunk int
	chunkFile    *os.File
	chunkBuf     *bufio.Writer
	chunkOffset  uint32
	scratch      []byte

	frameCount uint64

	mu     sync.Mutex
	closed bool
}

// NewRecorder creates basePath and prepares to record into it. An empty
// basePath records under os.TempDir with a timestamped name.
func NewRecorder(basePath string, opts Options) (*Recorder, error) {
	if opts.Clock == nil {
		opts.Clock = timeutil.RealClock{}
	}
	if opts.ChunkSize <= 0 {
		opts.ChunkSize = DefaultChunkSize
	}
	now := opts.Clock.Now()
	if basePath == "" {
		basePath = DefaultPath(os.TempDir(), now)
	}
	if err := os.MkdirAll(filepath.Join(basePath, "frames"), 0755); err != nil {
		return nil, fmt.Errorf("failed to create log directory: %w", err)
	}

	return &Recorder{
		basePath:     basePath,
		clock:        opts.Clock,
		chunkSize:    opts.ChunkSize,
		currentChunk: -1,
		header: Header{
			Version:   "1.0",
			SessionID: uuid.NewString(),
			CreatedNs: now.UnixNano(),
			Source:    opts.Source,
			SwathDeg:  opts.SwathDeg,
			MaxRange:  opts.MaxRange,
			FPS:       sonar.EffectiveFPS(opts.FPS),
			ChunkSize: opts.ChunkSize,
		},
	}, nil
}

// Record appends f, stamped with the recorder clock.
func (r *Recorder) Record(f *sonar.Frame) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return ErrClosed
	}
	wall := r.clock.Now().UnixNano()
	if r.frameCount == 0 {
		r.header.StartNs = wall
		r.header.Beams = f.Beams()
		r.header.RangeBins = f.RangeBins()
		r.header.Depth = f.Depth().String()
	}
	r.header.EndNs = wall

	chunkIdx := int(r.frameCount / uint64(r.chunkSize))
	if chunkIdx != r.currentChunk {
		if err := r.rotateChunk(chunkIdx); err != nil {
			return err
		}
	}

	r.scratch = appendRecord(r.scratch[:0], f, wall)
	var lenBuf [4]byte
	binary.LittleEndian.PutUint32(lenBuf[:], uint32(len(r.scratch)))
	if _, err := r.chunkBuf.Write(lenBuf[:]); err != nil {
		return fmt.Errorf("failed to write frame length: %w", err)
	}
	if _, err := r.chunkBuf.Write(r.scratch); err != nil {
		return fmt.Errorf("failed to write frame data: %w", err)
	}

	r.index = append(r.index, IndexEntry{
		FrameID:     r.frameCount,
		TimestampNs: int64(f.Timestamp() * float64(time.Second)),
		ChunkID:     uint32(chunkIdx),
		Offset:      r.chunkOffset,
	})
	r.chunkOffset += uint32(4 + len(r.scratch))
	r.frameCount++
	return nil
}

func chunkPath(base string, idx int) string {
	return filepath.Join(base, "frames", fmt.Sprintf("chunk_%04d.pb", idx))
}

func (r *Recorder) closeChunk() error {
	if r.chunkFile == nil {
		return nil
	}
	err := r.chunkBuf.Flush()
	if cerr := r.chunkFile.Close(); err == nil {
		err = cerr
	}
	r.chunkFile, r.chunkBuf = nil, nil
	return err
}

func (r *Recorder) rotateChunk(chunkIdx int) error {
	if err := r.closeChunk(); err != nil {
		return fmt.Errorf("failed to close chunk %d: %w", r.currentChunk, err)
	}
	f, err := os.Create(chunkPath(r.basePath, chunkIdx))
	if err != nil {
		return fmt.Errorf("failed to create chunk file: %w", err)
	}
	r.chunkFile = f
	r.chunkBuf = bufio.NewWriterSize(f, 1<<20)
	r.currentChunk = chunkIdx
	r.chunkOffset = 0
	return nil
}

// Close flushes the last chunk and writes header.json and index.bin.
func (r *Recorder) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return nil
	}
	r.closed = true

	if err := r.closeChunk(); err != nil {
		return fmt.Errorf("failed to close chunk: %w", err)
	}

	r.header.TotalFrames = r.frameCount
	headerData, err := json.MarshalIndent(r.header, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal header: %w", err)
	}
	if err := os.WriteFile(filepath.Join(r.basePath, "header.json"), headerData, 0644); err != nil {
		return fmt.Errorf("failed to write header: %w", err)
	}

	buf := make([]byte, 0, len(r.index)*indexEntrySize)
	for _, e := range r.index {
		buf = binary.LittleEndian.AppendUint64(buf, e.FrameID)
		buf = binary.LittleEndian.AppendUint64(buf, uint64(e.TimestampNs))
		buf = binary.LittleEndian.AppendUint32(buf, e.ChunkID)
		buf = binary.LittleEndian.AppendUint32(buf, e.Offset)
	}
	if err := os.WriteFile(filepath.Join(r.basePath, "index.bin"), buf, 0644); err != nil {
		return fmt.Errorf("failed to write index: %w", err)
	}
	return nil
}

// Path returns the log directory.
func (r *Recorder) Path() string { return r.basePath }

// SessionID identifies this recording.
func (r *Recorder) SessionID() string { return r.header.SessionID }

// FrameCount returns the number of frames recorded so far.
func (r *Recorder) FrameCount() uint64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.frameCount
}

// Replayer reads a log directory as a sonar.FrameSource.
type Replayer struct {
	basePath string
	header   Header
	index    []IndexEntry

	cursor       int
	currentChunk int
	chunkData    []byte
}

// Open opens a log directory; it matches sonar.Opener.
func Open(path string) (sonar.FrameSource, error) {
	r, err := NewReplayer(path)
	if err != nil {
		return nil, err
	}
	return r, nil
}

// NewReplayer opens a log for replay.
func NewReplayer(basePath string) (*Replayer, error) {
	r := &Replayer{basePath: basePath, currentChunk: -1}

	headerData, err := os.ReadFile(filepath.Join(basePath, "header.json"))
	if err != nil {
		return nil, fmt.Errorf("failed to read header: %w", err)
	}
	if err := json.Unmarshal(headerData, &r.header); err != nil {
		return nil, fmt.Errorf("%w: parse header: %v", sonar.ErrDecode, err)
	}

	indexData, err := os.ReadFile(filepath.Join(basePath, "index.bin"))
	if err != nil {
		return nil, fmt.Errorf("failed to read index: %w", err)
	}
	if len(indexData)%indexEntrySize != 0 {
		return nil, fmt.Errorf("%w: index.bin is %d bytes, not a multiple of %d", sonar.ErrDecode, len(indexData), indexEntrySize)
	}
	r.index = make([]IndexEntry, 0, len(indexData)/indexEntrySize)
	for b := indexData; len(b) > 0; b = b[indexEntrySize:] {
		r.index = append(r.index, IndexEntry{
			FrameID:     binary.LittleEndian.Uint64(b[0:8]),
			TimestampNs: int64(binary.LittleEndian.Uint64(b[8:16])),
			ChunkID:     binary.LittleEndian.Uint32(b[16:20]),
			Offset:      binary.LittleEndian.Uint32(b[20:24]),
		})
	}
	return r, nil
}

// Header returns the log header.
func (r *Replayer) Header() Header { return r.header }

// Path returns the log directory.
func (r *Replayer) Path() string { return r.basePath }

// BaseTime is the wall-clock time of the first frame, from the header or
// failing that from the directory name.
func (r *Replayer) BaseTime() (time.Time, bool) {
	if r.header.StartNs > 0 {
		return time.Unix(0, r.header.StartNs), true
	}
	return sonar.BaseTimestamp(r.basePath, nil)
}

func (r *Replayer) FrameCount() int { return len(r.index) }

func (r *Replayer) FPS() float64 { return r.header.FPS }

// Seek moves the cursor. Seeking to FrameCount is allowed and leaves the
// cursor at the end.
func (r *Replayer) Seek(i int) error {
	if i < 0 || i > len(r.index) {
		return fmt.Errorf("%w: seek %d of %d frames", sonar.ErrEndOfSource, i, len(r.index))
	}
	r.cursor = i
	return nil
}

// SeekToTimestamp moves the cursor to the first frame at or after ts
// seconds, or to the last frame when ts is beyond the log.
func (r *Replayer) SeekToTimestamp(ts float64) int {
	target := int64(ts * float64(time.Second))
	i := sort.Search(len(r.index), func(i int) bool { return r.index[i].TimestampNs >= target })
	r.cursor = sonar.ClampIndex(i, len(r.index))
	return r.cursor
}

// ReadNext decodes the frame at the cursor and advances.
func (r *Replayer) ReadNext() (*sonar.Frame, error) {
	if r.cursor >= len(r.index) {
		return nil, sonar.ErrEndOfSource
	}
	entry := r.index[r.cursor]
	if int(entry.ChunkID) != r.currentChunk {
		if err := r.loadChunk(int(entry.ChunkID)); err != nil {
			return nil, err
		}
	}

	off := uint64(entry.Offset)
	if off+4 > uint64(len(r.chunkData)) {
		return nil, fmt.Errorf("%w: frame %d offset %d beyond chunk", sonar.ErrDecode, r.cursor, off)
	}
	n := uint64(binary.LittleEndian.Uint32(r.chunkData[off:]))
	off += 4
	if off+n > uint64(len(r.chunkData)) {
		return nil, fmt.Errorf("%w: frame %d length %d beyond chunk", sonar.ErrDecode, r.cursor, n)
	}
	rec, err := parseRecord(r.chunkData[off : off+n])
	if err != nil {
		return nil, fmt.Errorf("frame %d: %w", r.cursor, err)
	}
	f, err := rec.frame(r.cursor)
	if err != nil {
		return nil, fmt.Errorf("frame %d: %w", r.cursor, err)
	}
	r.cursor++
	return f, nil
}

func (r *Replayer) loadChunk(idx int) error {
	data, err := os.ReadFile(chunkPath(r.basePath, idx))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("%w: chunk %d missing", sonar.ErrDecode, idx)
		}
		return fmt.Errorf("failed to read chunk: %w", err)
	}
	r.chunkData = data
	r.currentChunk = idx
	return nil
}

// Close releases the cached chunk.
func (r *Replayer) Close() error {
	r.chunkData = nil
	r.currentChunk = -1
	return nil
}

var _ io.Closer = (*Replayer)(nil)
