package audio

// Drain reads from ch until the channel is closed, discarding all values.
// Streaming STT sessions use it to discard partial transcripts nobody reads.
func Drain[T any](ch <-chan T) {
	for range ch {
	}
}
