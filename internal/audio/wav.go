// Package audio handles the raw PCM the Live API speaks: 16-bit little-endian
// mono, 16 kHz in and 24 kHz out, stored as WAV files.
package audio

import (
	"encoding/binary"
	"fmt"
	"io"
	"os"
	"time"

	goaudio "github.com/go-audio/audio"
	"github.com/go-audio/wav"

	"geminilab/pkg/errors"
)

const (
	InputSampleRate  = 16000
	OutputSampleRate = 24000
	Channels         = 1
	BitsPerSample    = 16
	ChunkFrames      = 1024

	pcmFormat = 1
)

// Format describes a PCM stream
type Format struct {
	SampleRate    int
	Channels      int
	BitsPerSample int
}

// InputFormat is what the Live API accepts
var InputFormat = Format{SampleRate: InputSampleRate, Channels: Channels, BitsPerSample: BitsPerSample}

// OutputFormat is what the Live API returns
var OutputFormat = Format{SampleRate: OutputSampleRate, Channels: Channels, BitsPerSample: BitsPerSample}

// MIMEType is the Blob MIME type for raw PCM at f's rate
func (f Format) MIMEType() string {
	return fmt.Sprintf("audio/pcm;rate=%d", f.SampleRate)
}

// BytesPerFrame is the size of one sample across all channels
func (f Format) BytesPerFrame() int {
	return f.Channels * f.BitsPerSample / 8
}

// Duration is the playback length of pcm
func (f Format) Duration(pcm []byte) time.Duration {
	frame := f.BytesPerFrame()
	if frame == 0 || f.SampleRate == 0 {
		return 0
	}
	frames := len(pcm) / frame
	return time.Duration(frames) * time.Second / time.Duration(f.SampleRate)
}

// WriteWAV writes little-endian 16-bit pcm as a WAV file
func WriteWAV(w io.WriteSeeker, pcm []byte, rate, channels, bitsPerSample int) error {
	if bitsPerSample != BitsPerSample {
		return errors.NewValidationError("bits_per_sample", "only 16-bit PCM is supported", bitsPerSample)
	}
	if len(pcm)%2 != 0 {
		return errors.NewValidationError("pcm", "odd number of bytes for 16-bit samples", len(pcm))
	}

	samples := make([]int, len(pcm)/2)
	for i := range samples {
		samples[i] = int(int16(binary.LittleEndian.Uint16(pcm[2*i:])))
	}

	enc := wav.NewEncoder(w, rate, bitsPerSample, channels, pcmFormat)
	buf := &goaudio.IntBuffer{
		Format:         &goaudio.Format{NumChannels: channels, SampleRate: rate},
		Data:           samples,
		SourceBitDepth: bitsPerSample,
	}
	if err := enc.Write(buf); err != nil {
		return errors.Wrap(err, "encode wav")
	}
	return errors.Wrap(enc.Close(), "finalize wav")
}

// WriteWAVFile creates path and writes pcm in format f
func WriteWAVFile(path string, pcm []byte, f Format) error {
	file, err := os.Create(path)
	if err != nil {
		return errors.Wrapf(err, "create %s", path)
	}
	if err := WriteWAV(file, pcm, f.SampleRate, f.Channels, f.BitsPerSample); err != nil {
		_ = file.Close()
		return err
	}
	return file.Close()
}

// ReadWAV returns the PCM payload of a 16-bit WAV stream and its format
func ReadWAV(r io.ReadSeeker) ([]byte, Format, error) {
	dec := wav.NewDecoder(r)
	if !dec.IsValidFile() {
		return nil, Format{}, errors.Wrap(errors.ErrInvalidInput, "not a valid wav file")
	}

	f := Format{
		SampleRate:    int(dec.SampleRate),
		Channels:      int(dec.NumChans),
		BitsPerSample: int(dec.BitDepth),
	}
	if f.BitsPerSample != BitsPerSample {
		return nil, f, errors.NewValidationError("bits_per_sample", "only 16-bit PCM is supported", f.BitsPerSample)
	}

	buf, err := dec.FullPCMBuffer()
	if err != nil {
		return nil, f, errors.Wrap(err, "decode wav")
	}

	pcm := make([]byte, 2*len(buf.Data))
	for i, s := range buf.Data {
		binary.LittleEndian.PutUint16(pcm[2*i:], uint16(int16(s)))
	}
	return pcm, f, nil
}

// ReadWAVFile reads a WAV file from disk
func ReadWAVFile(path string) ([]byte, Format, error) {
	file, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, Format{}, errors.Wrapf(errors.ErrNotFound, "audio file %s", path)
		}
		return nil, Format{}, errors.Wrapf(err, "open %s", path)
	}
	defer file.Close()
	return ReadWAV(file)
}

// Chunk splits pcm into pieces of at most size bytes
func Chunk(pcm []byte, size int) [][]byte {
	if size <= 0 || len(pcm) == 0 {
		return nil
	}
	chunks := make([][]byte, 0, (len(pcm)+size-1)/size)
	for start := 0; start < len(pcm); start += size {
		end := min(start+size, len(pcm))
		chunks = append(chunks, pcm[start:end])
	}
	return chunks
}
