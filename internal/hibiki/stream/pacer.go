package stream

import (
	"context"
	"time"
)

// Speed names a character-pacing preset. All three delay constants scale
// together per preset.
type Speed string

const (
	SpeedSlow   Speed = "slow"
	SpeedNormal Speed = "normal"
	SpeedFast   Speed = "fast"
)

// pace holds the three delay constants of character mode: the per-rune
// base delay, the extra pause after a space, and the larger pause after a
// sentence boundary.
type pace struct {
	base     time.Duration
	word     time.Duration
	sentence time.Duration
}

var paces = map[Speed]pace{
	SpeedSlow:   {base: 45 * time.Millisecond, word: 30 * time.Millisecond, sentence: 300 * time.Millisecond},
	SpeedNormal: {base: 20 * time.Millisecond, word: 15 * time.Millisecond, sentence: 150 * time.Millisecond},
	SpeedFast:   {base: 8 * time.Millisecond, word: 5 * time.Millisecond, sentence: 60 * time.Millisecond},
}

// Pacer replays a completed response one rune at a time with typing-like
// delays. The text is produced in full before pacing starts; the pacer
// only schedules its delivery.
type Pacer struct {
	pace  pace
	sleep func(time.Duration)
}

// NewPacer creates a Pacer for the given preset. An unrecognized preset
// falls back to SpeedNormal.
func NewPacer(speed Speed) *Pacer {
	p, ok := paces[speed]
	if !ok {
		p = paces[SpeedNormal]
	}
	return &Pacer{pace: p, sleep: time.Sleep}
}

// NewPacerWithSleep is NewPacer with an injectable sleep, for tests.
func NewPacerWithSleep(speed Speed, sleep func(time.Duration)) *Pacer {
	p := NewPacer(speed)
	p.sleep = sleep
	return p
}

// Stream emits text onto ch as one response_chunk per rune, followed by
// the response_complete terminal marker. Concatenating the chunks in
// emission order reproduces text exactly.
//
// Cancellation affects pacing only: once ctx is done the remaining runes
// are flushed without delay so the consumer that keeps draining still
// receives the complete content.
func (p *Pacer) Stream(ctx context.Context, ch *Channel, text string) {
	pacing := true
	for _, r := range text {
		ch.Send(Event{Type: EventResponseChunk, Chunk: string(r)})

		if pacing {
			select {
			case <-ctx.Done():
				pacing = false
				continue
			default:
			}
			p.sleep(p.delayAfter(r))
		}
	}
	ch.Send(Event{Type: EventResponseComplete})
}

// delayAfter returns the pause following one emitted rune.
func (p *Pacer) delayAfter(r rune) time.Duration {
	d := p.pace.base
	switch r {
	case ' ':
		d += p.pace.word
	case '.', '!', '?', '\n':
		d += p.pace.sentence
	}
	return d
}
