package audio

import (
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"

	goaudio "github.com/go-audio/audio"
	"github.com/go-audio/wav"
)

// ErrNotWAV is returned when a file is not a PCM WAV the decoder understands.
var ErrNotWAV = errors.New("not a valid wav file")

const wavFormatPCM = 1

// ReadWAV decodes a PCM WAV file into a float buffer scaled to [-1, 1].
func ReadWAV(path string) (Buffer, error) {
	file, err := os.Open(path)
	if err != nil {
		return Buffer{}, err
	}
	defer file.Close()

	decoder := wav.NewDecoder(file)
	if !decoder.IsValidFile() {
		return Buffer{}, fmt.Errorf("%s: %w", filepath.Base(path), ErrNotWAV)
	}
	if decoder.WavAudioFormat != wavFormatPCM {
		return Buffer{}, fmt.Errorf("%s: audio format %d: %w", filepath.Base(path), decoder.WavAudioFormat, ErrNotWAV)
	}
	pcm, err := decoder.FullPCMBuffer()
	if err != nil {
		return Buffer{}, fmt.Errorf("decode %s: %w", filepath.Base(path), err)
	}

	bitDepth := int(decoder.BitDepth)
	if bitDepth <= 0 {
		bitDepth = pcm.SourceBitDepth
	}
	if bitDepth <= 0 || bitDepth > 32 {
		return Buffer{}, fmt.Errorf("%s: unsupported bit depth %d", filepath.Base(path), bitDepth)
	}
	scale := 1 / math.Pow(2, float64(bitDepth-1))
	// 8-bit PCM is unsigned with silence at 128.
	offset := 0
	if bitDepth == 8 {
		offset = 128
	}
	samples := make([]float64, len(pcm.Data))
	for i, v := range pcm.Data {
		samples[i] = float64(v-offset) * scale
	}

	buf := Buffer{
		Samples:    samples,
		SampleRate: int(decoder.SampleRate),
		Channels:   int(decoder.NumChans),
	}
	if err := buf.Validate(); err != nil {
		return Buffer{}, fmt.Errorf("%s: %w", filepath.Base(path), err)
	}
	return buf, nil
}

// WriteWAV encodes buf as PCM at the given bit depth (16 or 24). Samples are
// clipped to [-1, 1].
func WriteWAV(path string, buf Buffer, bitDepth int) error {
	if err := buf.Validate(); err != nil {
		return err
	}
	if bitDepth != 16 && bitDepth != 24 {
		return fmt.Errorf("unsupported bit depth %d", bitDepth)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create output directory: %w", err)
	}

	maxValue := math.Pow(2, float64(bitDepth-1)) - 1
	data := make([]int, len(buf.Samples))
	for i, s := range buf.Samples {
		if s > 1 {
			s = 1
		} else if s < -1 {
			s = -1
		}
		data[i] = int(math.Round(s * maxValue))
	}

	file, err := os.Create(path)
	if err != nil {
		return err
	}
	encoder := wav.NewEncoder(file, buf.SampleRate, bitDepth, buf.Channels, 1)
	pcm := &goaudio.IntBuffer{
		Format:         &goaudio.Format{NumChannels: buf.Channels, SampleRate: buf.SampleRate},
		Data:           data,
		SourceBitDepth: bitDepth,
	}
	if err := encoder.Write(pcm); err != nil {
		_ = file.Close()
		return fmt.Errorf("encode %s: %w", filepath.Base(path), err)
	}
	if err := encoder.Close(); err != nil {
		_ = file.Close()
		return fmt.Errorf("finalize %s: %w", filepath.Base(path), err)
	}
	return file.Close()
}
