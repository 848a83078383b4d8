package transcript

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/MrWong99/lectora/pkg/audio"
	"github.com/MrWong99/lectora/pkg/provider/stt"
)

// streamChunk is the length of audio sent per SendAudio call.
const streamChunk = 100 * time.Millisecond

// NewStream returns a Service backed by a streaming provider. The recording
// is replayed through a session in 100 ms chunks, as fast as the session
// accepts them, and the session's finals are joined into one text.
func NewStream(p stt.StreamProvider, opts ...Option) *Service {
	s := newService(nil, opts)
	s.call = func(ctx context.Context, clip audio.Clip, lang string) (stt.Transcript, error) {
		return replay(ctx, p, clip, lang)
	}
	return s
}

func replay(ctx context.Context, p stt.StreamProvider, clip audio.Clip, lang string) (stt.Transcript, error) {
	h, err := p.StartStream(ctx, stt.StreamConfig{
		SampleRate: clip.SampleRate,
		Channels:   clip.Channels,
		Language:   lang,
	})
	if err != nil {
		return stt.Transcript{}, err
	}

	go audio.Drain(h.Partials())
	collected := make(chan []stt.Transcript, 1)
	go func() {
		var finals []stt.Transcript
		for t := range h.Finals() {
			finals = append(finals, t)
		}
		collected <- finals
	}()

	frame := 2 * clip.Channels
	step := int(int64(clip.SampleRate)*int64(streamChunk)/int64(time.Second)) * frame
	if step <= 0 {
		step = frame
	}
	var sendErr error
	for off := 0; off < len(clip.PCM); off += step {
		if sendErr = ctx.Err(); sendErr != nil {
			break
		}
		if sendErr = h.SendAudio(clip.PCM[off:min(off+step, len(clip.PCM))]); sendErr != nil {
			sendErr = fmt.Errorf("send audio: %w", sendErr)
			break
		}
	}

	closeErr := h.Close()
	finals := <-collected
	if err := errors.Join(sendErr, closeErr); err != nil {
		return stt.Transcript{}, err
	}
	if err := ctx.Err(); err != nil {
		return stt.Transcript{}, err
	}
	return stt.Join(finals), nil
}
