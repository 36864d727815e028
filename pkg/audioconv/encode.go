package audioconv

import (
	"fmt"
	"io"
	"os"

	"github.com/go-audio/audio"
	"github.com/go-audio/wav"
)

// EncodeWAV writes mono samples as 16-bit PCM WAV.
func EncodeWAV(w io.WriteSeeker, pcm []float32, rate int) error {
	enc := wav.NewEncoder(w, rate, 16, 1, 1)

	data := make([]int, len(pcm))
	for i, v := range pcm {
		data[i] = int(clip(float64(v)) * 32767)
	}
	buf := &audio.IntBuffer{
		Format:         &audio.Format{NumChannels: 1, SampleRate: rate},
		Data:           data,
		SourceBitDepth: 16,
	}
	if err := enc.Write(buf); err != nil {
		return fmt.Errorf("audioconv: encode: %w", err)
	}
	return enc.Close()
}

// WriteWAVFile writes 16 kHz mono samples to path.
func WriteWAVFile(path string, pcm []float32) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := EncodeWAV(f, pcm, SampleRate); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
