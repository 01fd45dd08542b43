package capture

import (
	"encoding/binary"
	"fmt"
	"os"

	"github.com/go-audio/audio"
	"github.com/go-audio/wav"
)

// BuildClip assembles buffered chunks into one audio object. PCM formats are
// wrapped in a WAV container; containerized formats (Opus in WebM/OGG) are a
// plain concatenation of the chunk stream.
func BuildClip(format Format, chunks []Chunk) (Clip, error) {
	var total int
	for _, c := range chunks {
		total += len(c.Data)
	}
	data := make([]byte, 0, total)
	for _, c := range chunks {
		data = append(data, c.Data...)
	}

	if !format.PCM {
		return Clip{MIME: format.MIME, Data: data}, nil
	}

	wavData, err := pcmToWAV(data, format.SampleRate, format.Channels)
	if err != nil {
		return Clip{}, err
	}
	return Clip{MIME: "audio/wav", Data: wavData}, nil
}

func pcmToWAV(pcm []byte, sampleRate, channels int) ([]byte, error) {
	if len(pcm)%2 != 0 {
		return nil, fmt.Errorf("pcm payload not aligned")
	}

	// wav.Encoder needs an io.WriteSeeker to patch the header.
	file, err := os.CreateTemp("", "t2w_clip_*.wav")
	if err != nil {
		return nil, fmt.Errorf("temp file: %w", err)
	}
	defer os.Remove(file.Name())
	defer file.Close()

	buffer := &audio.IntBuffer{Format: &audio.Format{NumChannels: channels, SampleRate: sampleRate}}
	samples := make([]int, len(pcm)/2)
	for i := 0; i < len(samples); i++ {
		samples[i] = int(int16(binary.LittleEndian.Uint16(pcm[i*2:])))
	}
	buffer.Data = samples

	enc := wav.NewEncoder(file, sampleRate, 16, channels, 1)
	if err := enc.Write(buffer); err != nil {
		return nil, fmt.Errorf("write wav: %w", err)
	}
	if err := enc.Close(); err != nil {
		return nil, fmt.Errorf("close wav encoder: %w", err)
	}

	return os.ReadFile(file.Name())
}
