package audioconv

import (
	"bufio"
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"strings"
	"time"

	gaudio "github.com/go-audio/audio"
	"github.com/go-audio/wav"
	mp3 "github.com/hajimehoshi/go-mp3"
)

// Clip is a decoded mono waveform.
type Clip struct {
	Samples []float32
	Rate    int
}

func (c Clip) Empty() bool { return len(c.Samples) == 0 }

func (c Clip) Duration() time.Duration {
	if c.Rate <= 0 {
		return 0
	}
	return time.Duration(float64(len(c.Samples)) / float64(c.Rate) * float64(time.Second))
}

type Options struct {
	MaxSamples int
}

// ConvertFileToPCM16k decodes a wav or mp3 file into mono float32 @ 16 kHz.
func ConvertFileToPCM16k(path string, opt Options) ([]float32, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	ext := strings.ToLower(filepath.Ext(path))
	switch ext {
	case ".wav":
		return decodeWAVTo16k(f, opt)
	case ".mp3":
		return decodeMP3To16k(f, opt)
	default:
		// Quick sniff
		br := bufio.NewReader(f)
		magic, _ := br.Peek(4)
		_, _ = f.Seek(0, io.SeekStart)
		if string(magic) == "RIFF" {
			return decodeWAVTo16k(f, opt)
		}
		return nil, fmt.Errorf("unsupported format: %s (supported: wav/mp3)", ext)
	}
}

// DecodeWAV decodes a wav stream at its native sample rate, downmixed to mono.
func DecodeWAV(r io.ReadSeeker) (Clip, error) {
	x, sr, err := decodeWAV(r)
	if err != nil {
		return Clip{}, err
	}
	return Clip{Samples: x, Rate: sr}, nil
}

// DecodeMP3 decodes an mp3 stream at its native sample rate, downmixed to mono.
func DecodeMP3(r io.Reader) (Clip, error) {
	x, sr, err := decodeMP3(r)
	if err != nil {
		return Clip{}, err
	}
	return Clip{Samples: x, Rate: sr}, nil
}

// WriteWAV encodes mono float32 samples as 16-bit PCM.
func WriteWAV(path string, samples []float32, rate int) error {
	if rate <= 0 {
		return errors.New("invalid sample rate")
	}
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	enc := wav.NewEncoder(f, rate, 16, 1, 1)
	data := make([]int, len(samples))
	for i, v := range samples {
		data[i] = int(clamp(float64(v), -1.0, 1.0) * 32767.0)
	}
	buf := &gaudio.IntBuffer{
		Format:         &gaudio.Format{NumChannels: 1, SampleRate: rate},
		SourceBitDepth: 16,
		Data:           data,
	}
	if err := enc.Write(buf); err != nil {
		return err
	}
	return enc.Close()
}

func decodeWAV(r io.ReadSeeker) ([]float32, int, error) {
	dec := wav.NewDecoder(r)
	if !dec.IsValidFile() {
		return nil, 0, errors.New("invalid wav")
	}
	pb, err := dec.FullPCMBuffer()
	if err != nil || pb == nil || pb.Data == nil {
		if err == nil {
			err = errors.New("empty wav")
		}
		return nil, 0, err
	}

	bd := int(dec.BitDepth)
	if bd == 0 {
		bd = 16
	}
	x := intSliceToFloat32(pb.Data, bd)

	ch := 1
	sr := 44100
	if pb.Format != nil {
		if pb.Format.NumChannels > 0 {
			ch = pb.Format.NumChannels
		}
		if pb.Format.SampleRate > 0 {
			sr = pb.Format.SampleRate
		}
	}
	if ch > 1 {
		x = downmixInterleaved(x, ch)
	}
	return x, sr, nil
}

func decodeWAVTo16k(r io.ReadSeeker, opt Options) ([]float32, error) {
	x, sr, err := decodeWAV(r)
	if err != nil {
		return nil, err
	}
	if sr != 16000 {
		x = resampleLinear(x, sr, 16000)
	}
	if opt.MaxSamples > 0 && len(x) > opt.MaxSamples {
		x = x[:opt.MaxSamples]
	}
	return x, nil
}

func decodeMP3(r io.Reader) ([]float32, int, error) {
	dec, err := mp3.NewDecoder(r)
	if err != nil {
		return nil, 0, err
	}
	var raw bytes.Buffer
	if _, err := io.Copy(&raw, dec); err != nil {
		return nil, 0, err
	}
	ints := make([]int16, raw.Len()/2)
	if err := binary.Read(bytes.NewReader(raw.Bytes()), binary.LittleEndian, &ints); err != nil {
		return nil, 0, err
	}
	x := int16SliceToFloat32(ints)
	x = downmixInterleaved(x, 2) // mp3 decoder outputs stereo

	sr := dec.SampleRate()
	if sr <= 0 {
		sr = 44100
	}
	return x, sr, nil
}

func decodeMP3To16k(r io.Reader, opt Options) ([]float32, error) {
	x, sr, err := decodeMP3(r)
	if err != nil {
		return nil, err
	}
	if sr != 16000 {
		x = resampleLinear(x, sr, 16000)
	}
	if opt.MaxSamples > 0 && len(x) > opt.MaxSamples {
		x = x[:opt.MaxSamples]
	}
	return x, nil
}

// Peak returns the maximum absolute amplitude.
func Peak(samples []float32) float32 {
	var p float32
	for _, v := range samples {
		if v < 0 {
			v = -v
		}
		if v > p {
			p = v
		}
	}
	return p
}

// RMS returns the root-mean-square level of the samples.
func RMS(samples []float32) float64 {
	if len(samples) == 0 {
		return 0
	}
	var s float64
	for _, v := range samples {
		s += float64(v) * float64(v)
	}
	return math.Sqrt(s / float64(len(samples)))
}

// EnvelopeAt returns the short-window energy level at pos, scaled by gain
// and clamped to [0, 1]. Used to drive the avatar mouth parameter.
func EnvelopeAt(samples []float32, pos, window int, gain float64) float64 {
	if pos < 0 || pos >= len(samples) || window <= 0 {
		return 0
	}
	end := pos + window
	if end > len(samples) {
		end = len(samples)
	}
	return clamp(RMS(samples[pos:end])*gain, 0.0, 1.0)
}

// helpers

func intSliceToFloat32(data []int, bitDepth int) []float32 {
	out := make([]float32, len(data))
	scale := 1.0 / float64(int64(1)<<(bitDepth-1))
	for i, v := range data {
		out[i] = float32(clamp(float64(v)*scale, -1.0, 1.0))
	}
	return out
}

func int16SliceToFloat32(data []int16) []float32 {
	out := make([]float32, len(data))
	const scale = 1.0 / 32768.0
	for i, v := range data {
		out[i] = float32(float64(v) * scale)
	}
	return out
}

func downmixInterleaved(in []float32, channels int) []float32 {
	if channels <= 1 {
		return in
	}
	nFrames := len(in) / channels
	out := make([]float32, nFrames)
	for i := 0; i < nFrames; i++ {
		sum := 0.0
		base := i * channels
		for c := 0; c < channels; c++ {
			sum += float64(in[base+c])
		}
		out[i] = float32(sum / float64(channels))
	}
	return out
}

func resampleLinear(in []float32, inSR, outSR int) []float32 {
	if inSR == outSR || len(in) == 0 {
		return in
	}
	ratio := float64(outSR) / float64(inSR)
	outN := int(math.Ceil(float64(len(in)) * ratio))
	out := make([]float32, outN)
	for i := 0; i < outN; i++ {
		src := float64(i) / ratio
		i0 := int(math.Floor(src))
		i1 := i0 + 1
		if i0 >= len(in) {
			out[i] = in[len(in)-1]
			continue
		}
		if i1 >= len(in) {
			out[i] = in[i0]
			continue
		}
		a := float32(src - float64(i0))
		out[i] = in[i0]*(1-a) + in[i1]*a
	}
	return out
}

func clamp(x, lo, hi float64) float64 {
	if x < lo {
		return lo
	}
	if x > hi {
		return hi
	}
	return x
}
