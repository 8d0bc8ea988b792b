// Package wav implements the reference WAV pipeline.Codec: a hand-rolled
// RIFF/WAV chunk parser with no third-party RIFF library.
package wav

import (
	"encoding/binary"
	"errors"
	"io"
	"sync"

	"github.com/linn-oss/ohmediapipeline/jiffies"
	"github.com/linn-oss/ohmediapipeline/msg"
	"github.com/linn-oss/ohmediapipeline/pipeline"
)

const (
	riffHeaderSize = 12 // "RIFF" + size + "WAVE"
	fmtChunkMinLen = 16
)

var (
	errNotRIFF     = errors.New("wav: missing RIFF/WAVE header")
	errNoFmtChunk  = errors.New("wav: missing fmt chunk")
	errNoDataChunk = errors.New("wav: missing data chunk")
	errUnsupported = errors.New("wav: unsupported format (only PCM is decoded)")

	// errSeekFlush and errStreamStopped are chunkReader.readExact's way of
	// reporting a control message it forwarded instead of discarding:
	// errSeekFlush means Decode should resync to c.pendingSampleStart and
	// keep decoding; errStreamStopped (and plain io.EOF, the
	// closed-reservoir case) mean it should return cleanly.
	errSeekFlush     = errors.New("wav: stream flushed for seek")
	errStreamStopped = errors.New("wav: stream stopped")
)

// streamFormat holds the fmt chunk's fields.
type streamFormat struct {
	audioFormat   uint16
	channels      uint16
	sampleRate    uint32
	bitsPerSample uint16
	dataBytes     uint32
}

// Codec decodes uncompressed PCM WAV streams.
type Codec struct {
	factory *msg.Factory

	src    pipeline.Supply
	info   *msg.EncodedStream
	format streamFormat
	read   uint64 // bytes of the data chunk consumed so far

	mu                 sync.Mutex
	dataChunkStart     uint64 // bytes consumed before the data chunk's payload began
	pendingSeek        bool
	pendingSampleStart uint64
}

func New(f *msg.Factory) *Codec {
	return &Codec{factory: f}
}

func (c *Codec) Name() string { return "WAV" }

// Recognise looks for the RIFF....WAVE magic at the start of the stream.
func (c *Codec) Recognise(lookahead []byte) bool {
	if len(lookahead) < riffHeaderSize {
		return false
	}
	return string(lookahead[0:4]) == "RIFF" && string(lookahead[8:12]) == "WAVE"
}

func (c *Codec) StreamStart(src pipeline.Supply, streamInfo *msg.EncodedStream) {
	c.src = src
	c.info = streamInfo
	c.format = streamFormat{}
	c.read = 0
	c.mu.Lock()
	c.dataChunkStart, c.pendingSeek, c.pendingSampleStart = 0, false, 0
	c.mu.Unlock()
}

func (c *Codec) StreamEnded() {
	if c.info != nil {
		c.info.Release()
		c.info = nil
	}
}

// TrySeek converts byteOffset (a raw position in the stream's original
// byte space, the same offset the stream handler seeks its source to) into
// a sample offset within the data chunk and arms it for Decode to pick up
// the next time it resyncs off a Flush. It reports whether it recognised
// this as its own stream with a known data-chunk start; Seeker still waits
// for the handler's own Flush/DecodedStream pair regardless of this
// result, so a miss here just means Decode won't have a pending resync to
// apply when that Flush arrives.
func (c *Codec) TrySeek(streamID uint32, byteOffset uint64) bool {
	if c.info == nil || c.info.StreamID != streamID {
		return false
	}
	bytesPerSample := jiffies.BytesPerSample(uint32(c.format.bitsPerSample), uint32(c.format.channels))
	if bytesPerSample == 0 {
		return false
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if byteOffset < c.dataChunkStart {
		byteOffset = c.dataChunkStart
	}
	c.pendingSeek = true
	c.pendingSampleStart = (byteOffset - c.dataChunkStart) / uint64(bytesPerSample)
	return true
}

// chunkReader buffers EncodedAudio messages pulled from src into a flat
// byte stream, accumulating bytes across multiple messages as needed. Any
// other message it encounters mid-read is
// forwarded to sink rather than discarded: Halt and
// Quit end the read with errStreamStopped, Flush ends it with
// errSeekFlush, and everything else (Mode, Track, MetaText, Wait, ...) is
// forwarded and the read continues.
type chunkReader struct {
	src      pipeline.Supply
	sink     pipeline.MessageSink
	pending  []byte
	consumed uint64
}

func (r *chunkReader) readExact(n int) ([]byte, error) {
	for len(r.pending) < n {
		m := r.src.Pull()
		if m == nil {
			return nil, io.EOF
		}
		switch v := m.(type) {
		case *msg.EncodedAudio:
			r.pending = append(r.pending, v.Data...)
			v.Release()
		case *msg.Flush:
			r.sink.Push(v)
			return nil, errSeekFlush
		case *msg.Halt:
			r.sink.Push(v)
			return nil, errStreamStopped
		case *msg.Quit:
			r.sink.Push(v)
			return nil, errStreamStopped
		default:
			r.sink.Push(m)
		}
	}
	out := r.pending[:n]
	r.pending = r.pending[n:]
	r.consumed += uint64(n)
	return out, nil
}

// cleanStop reports whether err is chunkReader's way of saying the stream
// ended through ordinary control flow rather than corrupt/truncated data,
// so Decode can return nil instead of logging a spurious decode failure.
func cleanStop(err error) bool {
	return errors.Is(err, io.EOF) || errors.Is(err, errStreamStopped)
}

// Decode parses the RIFF chunk headers, emits a DecodedStream describing
// the format, then streams the data chunk as AudioPcm messages sized to
// roughly one reservoir chunk. A Flush arriving once decoding is under way
// is forwarded to sink; if TrySeek has armed a pending seek, the Flush is a
// seek resync: Decode emits a fresh DecodedStream carrying the repositioned
// SampleStart and keeps decoding from there. A Flush with no pending seek
// ends Decode.
func (c *Codec) Decode(sink pipeline.MessageSink) error {
	r := &chunkReader{src: c.src, sink: sink}

	header, err := r.readExact(riffHeaderSize)
	if err != nil {
		if cleanStop(err) {
			return nil
		}
		return err
	}
	if string(header[0:4]) != "RIFF" || string(header[8:12]) != "WAVE" {
		return errNotRIFF
	}

	var haveFmt, haveData bool
	for !haveData {
		chunkHeader, err := r.readExact(8)
		if err != nil {
			if cleanStop(err) {
				return nil
			}
			return err
		}
		chunkID := string(chunkHeader[0:4])
		chunkSize := binary.LittleEndian.Uint32(chunkHeader[4:8])

		switch chunkID {
		case "fmt ":
			body, err := r.readExact(int(chunkSize))
			if err != nil {
				if cleanStop(err) {
					return nil
				}
				return err
			}
			if len(body) < fmtChunkMinLen {
				return errNoFmtChunk
			}
			c.format.audioFormat = binary.LittleEndian.Uint16(body[0:2])
			c.format.channels = binary.LittleEndian.Uint16(body[2:4])
			c.format.sampleRate = binary.LittleEndian.Uint32(body[4:8])
			c.format.bitsPerSample = binary.LittleEndian.Uint16(body[14:16])
			if c.format.audioFormat != 1 {
				return errUnsupported
			}
			haveFmt = true
		case "data":
			if !haveFmt {
				return errNoFmtChunk
			}
			c.format.dataBytes = chunkSize
			c.mu.Lock()
			c.dataChunkStart = r.consumed
			c.mu.Unlock()
			haveData = true
		default:
			if _, err := r.readExact(int(chunkSize)); err != nil {
				if cleanStop(err) {
					return nil
				}
				return err
			}
		}
		if chunkSize%2 == 1 {
			// RIFF chunks are word-aligned; discard the pad byte.
			if _, err := r.readExact(1); err != nil && !cleanStop(err) {
				return err
			}
		}
	}

	bytesPerSample := jiffies.BytesPerSample(uint32(c.format.bitsPerSample), uint32(c.format.channels))
	trackLengthJiffies := uint64(0)
	if bytesPerSample > 0 {
		totalFrames := uint64(c.format.dataBytes) / uint64(bytesPerSample)
		trackLengthJiffies = jiffies.FromSamples(totalFrames, c.format.sampleRate)
	}

	ds := c.factory.NewDecodedStream(
		c.info.StreamID, estimateBitrate(c.format), uint32(c.format.bitsPerSample),
		c.format.sampleRate, uint32(c.format.channels), c.Name(),
		trackLengthJiffies, 0, true, c.info.Seekable, c.info.Live, c.info.Handler,
	)
	sink.Push(ds)

	const framesPerBlock = 1024
	frameBytes := int(bytesPerSample)
	if frameBytes == 0 {
		return errUnsupported
	}
	remaining := c.format.dataBytes
	for remaining > 0 {
		want := framesPerBlock * frameBytes
		if uint32(want) > remaining {
			want = int(remaining)
		}
		data, err := r.readExact(want)
		if err != nil {
			if errors.Is(err, errSeekFlush) {
				c.mu.Lock()
				seek, sampleStart := c.pendingSeek, c.pendingSampleStart
				c.pendingSeek = false
				c.mu.Unlock()
				if !seek {
					return nil
				}
				byteStart := sampleStart * uint64(bytesPerSample)
				if byteStart > uint64(c.format.dataBytes) {
					byteStart = uint64(c.format.dataBytes)
				}
				remaining = c.format.dataBytes - uint32(byteStart)
				c.read = byteStart
				r.pending = nil
				resync := c.factory.NewDecodedStream(
					c.info.StreamID, estimateBitrate(c.format), uint32(c.format.bitsPerSample),
					c.format.sampleRate, uint32(c.format.channels), c.Name(),
					trackLengthJiffies, sampleStart, true, c.info.Seekable, c.info.Live, c.info.Handler,
				)
				sink.Push(resync)
				continue
			}
			if cleanStop(err) {
				return nil
			}
			return err
		}
		samples := bytesToPCM16(data, int(c.format.bitsPerSample))
		frames := len(samples) / int(c.format.channels)
		framesSoFar := c.read / uint64(bytesPerSample)
		m := c.factory.NewAudioPcm(samples, frames, c.format.sampleRate, uint32(c.format.bitsPerSample), uint32(c.format.channels), jiffies.FromSamples(framesSoFar, c.format.sampleRate), msg.Ramp{})
		sink.Push(m)
		c.read += uint64(want)
		remaining -= uint32(want)
	}
	return nil
}

func estimateBitrate(f streamFormat) uint32 {
	return f.sampleRate * uint32(f.channels) * uint32(f.bitsPerSample)
}

// bytesToPCM16 widens 8-bit or narrows 24/32-bit samples to the pipeline's
// native int16 representation, the conversion performed
// before handing samples to the ramp/gain stage.
func bytesToPCM16(data []byte, bitsPerSample int) []int16 {
	switch bitsPerSample {
	case 16:
		out := make([]int16, len(data)/2)
		for i := range out {
			out[i] = int16(binary.LittleEndian.Uint16(data[i*2:]))
		}
		return out
	case 8:
		out := make([]int16, len(data))
		for i, b := range data {
			out[i] = (int16(b) - 128) << 8
		}
		return out
	case 24:
		out := make([]int16, len(data)/3)
		for i := range out {
			b := data[i*3 : i*3+3]
			v := int32(b[0]) | int32(b[1])<<8 | int32(b[2])<<16
			if v&0x800000 != 0 {
				v |= -1 << 24
			}
			out[i] = int16(v >> 8)
		}
		return out
	case 32:
		out := make([]int16, len(data)/4)
		for i := range out {
			v := int32(binary.LittleEndian.Uint32(data[i*4:]))
			out[i] = int16(v >> 16)
		}
		return out
	default:
		return nil
	}
}
