// Package audioconv turns audio files into the mono 16 kHz float32 samples
// the transcriber expects, and writes such samples back out as WAV.
package audioconv

import (
	"bufio"
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-audio/wav"
	"github.com/hajimehoshi/go-mp3"
	"github.com/jfreymuth/oggvorbis"
	popus "github.com/pekim/opus"
)

// SampleRate is the rate of every buffer this package returns.
const SampleRate = 16000

var ErrUnsupported = errors.New("audioconv: unsupported format")

type decoder func(io.ReadSeeker) (samples []float32, rate int, err error)

var byExt = map[string]decoder{
	".wav":  decodeWAV,
	".mp3":  decodeMP3,
	".ogg":  decodeOgg,
	".oga":  decodeOgg,
	".opus": decodeOpus,
}

// sniff names the extension whose decoder handles a stream starting with
// magic, or returns "" when none does. MP3 is recognised by an ID3v2 tag or a
// bare frame sync.
func sniff(magic []byte) string {
	switch {
	case bytes.HasPrefix(magic, []byte("RIFF")):
		return ".wav"
	case bytes.HasPrefix(magic, []byte("OggS")):
		return ".ogg"
	case bytes.HasPrefix(magic, []byte("ID3")):
		return ".mp3"
	case len(magic) >= 2 && magic[0] == 0xFF && magic[1]&0xE0 == 0xE0:
		return ".mp3"
	}
	return ""
}

// DecodeFile reads a wav, mp3 or ogg (Vorbis or Opus) file and returns mono
// samples at SampleRate. Unknown extensions are sniffed by magic bytes.
func DecodeFile(path string) ([]float32, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	dec, ok := byExt[strings.ToLower(filepath.Ext(path))]
	if !ok {
		magic, _ := bufio.NewReader(f).Peek(4)
		if _, err := f.Seek(0, io.SeekStart); err != nil {
			return nil, err
		}
		if dec, ok = byExt[sniff(magic)]; !ok {
			return nil, fmt.Errorf("%w: %s", ErrUnsupported, path)
		}
	}

	x, rate, err := dec(f)
	if err != nil {
		return nil, fmt.Errorf("audioconv: decode %s: %w", path, err)
	}
	return Resample(x, rate, SampleRate), nil
}

// Fit truncates pcm to n samples or pads it with silence.
func Fit(pcm []float32, n int) []float32 {
	if len(pcm) >= n {
		return pcm[:n]
	}
	out := make([]float32, n)
	copy(out, pcm)
	return out
}

func decodeWAV(r io.ReadSeeker) ([]float32, int, error) {
	dec := wav.NewDecoder(r)
	if !dec.IsValidFile() {
		return nil, 0, errors.New("invalid wav")
	}
	buf, err := dec.FullPCMBuffer()
	if err != nil {
		return nil, 0, err
	}
	if buf == nil || buf.Format == nil {
		return nil, 0, errors.New("empty wav")
	}

	depth := int(dec.BitDepth)
	if depth == 0 {
		depth = 16
	}
	scale := 1.0 / float64(int64(1)<<(depth-1))
	x := make([]float32, len(buf.Data))
	for i, v := range buf.Data {
		x[i] = clip(float64(v) * scale)
	}
	return Downmix(x, buf.Format.NumChannels), buf.Format.SampleRate, nil
}

func decodeMP3(r io.ReadSeeker) ([]float32, int, error) {
	dec, err := mp3.NewDecoder(r)
	if err != nil {
		return nil, 0, err
	}
	raw, err := io.ReadAll(dec)
	if err != nil {
		return nil, 0, err
	}
	ints := make([]int16, len(raw)/2)
	if err := binary.Read(bytes.NewReader(raw[:len(ints)*2]), binary.LittleEndian, ints); err != nil {
		return nil, 0, err
	}
	// go-mp3 always emits interleaved stereo.
	return Downmix(fromInt16(ints), 2), dec.SampleRate(), nil
}

// decodeOgg tries Vorbis first and falls back to Opus.
func decodeOgg(r io.ReadSeeker) ([]float32, int, error) {
	x, rate, verr := decodeVorbis(r)
	if verr == nil {
		return x, rate, nil
	}
	if _, err := r.Seek(0, io.SeekStart); err != nil {
		return nil, 0, err
	}
	x, rate, oerr := decodeOpus(r)
	if oerr != nil {
		return nil, 0, fmt.Errorf("%w: not vorbis (%v) nor opus (%v)", ErrUnsupported, verr, oerr)
	}
	return x, rate, nil
}

func decodeVorbis(r io.ReadSeeker) ([]float32, int, error) {
	pcm, format, err := oggvorbis.ReadAll(r)
	if err != nil {
		return nil, 0, err
	}
	if format == nil || format.Channels <= 0 || format.SampleRate <= 0 {
		return nil, 0, errors.New("invalid vorbis stream")
	}
	return Downmix(pcm, format.Channels), format.SampleRate, nil
}

func decodeOpus(r io.ReadSeeker) ([]float32, int, error) {
	const opusRate = 48000

	dec, err := popus.NewDecoder(r)
	if err != nil {
		return nil, 0, err
	}
	defer dec.Destroy()

	ch := dec.ChannelCount()
	if ch <= 0 {
		ch = 1
	}

	var (
		out []float32
		buf = make([]int16, opusRate/2*ch)
	)
	for {
		n, err := dec.Read(buf)
		if n > 0 {
			out = append(out, fromInt16(buf[:n*ch])...)
		}
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, 0, err
		}
	}
	return Downmix(out, ch), opusRate, nil
}

func fromInt16(in []int16) []float32 {
	out := make([]float32, len(in))
	for i, v := range in {
		out[i] = float32(v) / 32768
	}
	return out
}

func clip(x float64) float32 {
	switch {
	case x < -1:
		return -1
	case x > 1:
		return 1
	}
	return float32(x)
}
