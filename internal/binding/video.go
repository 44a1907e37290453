package binding

import (
	"strconv"
	"strings"
	"sync"
	"time"
)

// Video device commands and responses.
const (
	cmdLoad           = "LOAD"
	cmdPlay           = "PLAY"
	cmdPause          = "PAUSE"
	cmdSetSrc         = "SET SRC="
	cmdSetLoop        = "SET LOOP="
	cmdSetCurrentTime = "SET CURRENT_TIME="

	respCurrentTime = "CURRENT_TIME="
	respEnd         = "END"
)

// Attributes read from the video entity.
const (
	AttrSrc      = "src"
	AttrLoop     = "loop"
	AttrAutoplay = "autoplay"
)

// DefaultVideoDuration is the clip length reported by the simulated player,
// in seconds.
const DefaultVideoDuration = 20.0

// Player is the playback capability a video binding offers its entity.
type Player interface {
	Play()
	Pause()
	Load()
	Seek(seconds float64)
	SetCurrentTime(seconds float64)
	CurrentTime() float64
	Duration() float64
	Paused() bool
	Ended() bool
	SetLoop(loop bool)
	Loop() bool
}

// videoBinding controls a video player device through line commands and
// raises media events on the entity at channel 0.
type videoBinding struct {
	*base

	mu          sync.Mutex
	framer      *LineFramer
	src         string
	playing     bool
	ended       bool
	currentTime float64
	duration    float64
	loop        bool
	mirrorLoop  bool
	timers      map[*time.Timer]struct{}

	playingDelay  time.Duration
	loadedDelay   time.Duration
	autoplayDelay time.Duration
}

var _ Player = (*videoBinding)(nil)

func newVideo(cfg Config, deps Deps) *videoBinding {
	return &videoBinding{
		base:          newBase(cfg, deps),
		framer:        NewLineFramer(),
		duration:      DefaultVideoDuration,
		timers:        make(map[*time.Timer]struct{}),
		playingDelay:  50 * time.Millisecond,
		loadedDelay:   100 * time.Millisecond,
		autoplayDelay: 100 * time.Millisecond,
	}
}

// Activate subscribes to player responses and sends the entity's initial
// source, loop mode and autoplay sequence.
func (b *videoBinding) Activate() error {
	started, err := b.activate()
	if err != nil || !started {
		return err
	}

	b.subscribe(b)

	t, ok := b.targets.get(0)
	if !ok {
		return nil
	}

	src, _ := t.Attribute(AttrSrc)
	b.writeSrc(src)

	_, loop := t.Attribute(AttrLoop)
	b.writeLoop(loop)

	if _, autoplay := t.Attribute(AttrAutoplay); autoplay && src != "" {
		b.after(b.autoplayDelay, func() {
			b.Load()
			b.after(b.autoplayDelay, b.Play)
		})
	}
	return nil
}

// AttributeChanged forwards src and loop attribute changes.
func (b *videoBinding) AttributeChanged(index int, t Target, name, value string) {
	if !b.Active() || index != 0 {
		return
	}
	switch name {
	case AttrSrc:
		b.writeSrc(value)
	case AttrLoop:
		b.mu.Lock()
		mirrored := b.mirrorLoop
		b.mu.Unlock()
		if mirrored {
			return
		}
		_, loop := t.Attribute(AttrLoop)
		b.writeLoop(loop)
	}
}

// OnData handles CURRENT_TIME= and END responses.
func (b *videoBinding) OnData(data []byte, err error) {
	if !b.Active() {
		return
	}
	if err != nil {
		b.readFailed(err)
		return
	}
	if len(data) == 0 {
		return
	}

	b.mu.Lock()
	lines, ferr := b.framer.Feed(data)
	b.mu.Unlock()
	if ferr != nil {
		b.logError("device data rejected", ferr)
		return
	}
	for _, line := range lines {
		b.handleResponse(strings.TrimSpace(line))
	}
}

func (b *videoBinding) handleResponse(line string) {
	if _, ok := b.targets.get(0); !ok {
		return
	}

	switch {
	case line == respEnd:
		b.mu.Lock()
		b.playing = false
		b.ended = true
		b.currentTime = b.duration
		b.mu.Unlock()
		b.dispatch(EventEnded, nil)

	case strings.HasPrefix(line, respCurrentTime):
		secs, err := strconv.ParseFloat(strings.TrimPrefix(line, respCurrentTime), 64)
		if err != nil {
			b.logDebug("ignoring malformed current time", "line", line)
			return
		}
		b.mu.Lock()
		b.currentTime = secs
		b.mu.Unlock()
		b.dispatch(EventTimeUpdate, secs)
	}
}

// Play starts playback; "playing" follows once the player had time to
// start, unless playback was paused in between.
func (b *videoBinding) Play() {
	b.mu.Lock()
	b.playing = true
	b.ended = false
	b.mu.Unlock()

	b.write(cmdPlay)
	b.dispatch(EventPlay, nil)

	b.after(b.playingDelay, func() {
		b.mu.Lock()
		playing := b.playing
		b.mu.Unlock()
		if playing {
			b.dispatch(EventPlaying, nil)
		}
	})
}

// Pause stops playback.
func (b *videoBinding) Pause() {
	b.mu.Lock()
	b.playing = false
	b.mu.Unlock()

	b.write(cmdPause)
	b.dispatch(EventPause, nil)
}

// Load rewinds the player and reloads the current source.
func (b *videoBinding) Load() {
	b.mu.Lock()
	b.currentTime = 0
	b.ended = false
	b.mu.Unlock()

	b.write(cmdLoad)
	b.dispatch(EventLoadStart, nil)

	b.after(b.loadedDelay, func() {
		b.dispatch(EventLoadedData, b.Duration())
	})
}

// Seek jumps to seconds unconditionally.
func (b *videoBinding) Seek(seconds float64) {
	b.mu.Lock()
	b.currentTime = seconds
	b.mu.Unlock()

	b.write(cmdSetCurrentTime + formatSeconds(seconds))
	b.dispatch(EventTimeUpdate, seconds)
}

// SetCurrentTime moves the playhead, clamped to [0, duration]. Nothing is
// written when the position does not change.
func (b *videoBinding) SetCurrentTime(seconds float64) {
	b.mu.Lock()
	next := min(max(seconds, 0), b.duration)
	if next == b.currentTime {
		b.mu.Unlock()
		return
	}
	b.currentTime = next
	b.mu.Unlock()

	b.write(cmdSetCurrentTime + formatSeconds(next))
	b.dispatch(EventTimeUpdate, next)
}

// CurrentTime returns the playhead position in seconds.
func (b *videoBinding) CurrentTime() float64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.currentTime
}

// Duration returns the clip length in seconds.
func (b *videoBinding) Duration() float64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.duration
}

// Paused reports whether the player is not playing.
func (b *videoBinding) Paused() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return !b.playing
}

// Ended reports whether the player signalled END since the last play or
// load.
func (b *videoBinding) Ended() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.ended
}

// Loop reports the loop mode last sent.
func (b *videoBinding) Loop() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.loop
}

// SetLoop changes the loop mode and mirrors it on the entity's loop
// attribute. Nothing happens when the mode is unchanged.
func (b *videoBinding) SetLoop(loop bool) {
	b.mu.Lock()
	if b.loop == loop {
		b.mu.Unlock()
		return
	}
	b.mirrorLoop = true
	b.mu.Unlock()

	b.writeLoop(loop)

	if t, ok := b.targets.get(0); ok {
		if loop {
			t.SetAttribute(AttrLoop, "")
		} else {
			t.RemoveAttribute(AttrLoop)
		}
	}

	b.mu.Lock()
	b.mirrorLoop = false
	b.mu.Unlock()
}

// Close stops pending event timers.
func (b *videoBinding) Close() error {
	b.mu.Lock()
	for t := range b.timers {
		t.Stop()
		delete(b.timers, t)
	}
	b.mu.Unlock()
	return b.base.Close()
}

// writeSrc sends SET SRC when src is set and differs from the last source.
func (b *videoBinding) writeSrc(src string) {
	if src == "" {
		return
	}
	b.mu.Lock()
	if src == b.src {
		b.mu.Unlock()
		return
	}
	b.src = src
	b.mu.Unlock()

	b.write(cmdSetSrc + src)
}

// writeLoop records and sends the loop mode.
func (b *videoBinding) writeLoop(loop bool) {
	b.mu.Lock()
	b.loop = loop
	b.mu.Unlock()

	value := "FALSE"
	if loop {
		value = "TRUE"
	}
	b.write(cmdSetLoop + value)
}

func (b *videoBinding) dispatch(name string, value any) {
	t, ok := b.targets.get(0)
	if !ok {
		return
	}
	t.Dispatch(Event{Name: name, Value: value, BindingID: b.cfg.ID, Channel: 0})
}

// after schedules fn unless the binding has been closed.
func (b *videoBinding) after(d time.Duration, fn func()) {
	b.mu.Lock()
	defer b.mu.Unlock()

	var timer *time.Timer
	timer = time.AfterFunc(d, func() {
		b.mu.Lock()
		delete(b.timers, timer)
		b.mu.Unlock()
		if !b.Active() {
			return
		}
		fn()
	})
	b.timers[timer] = struct{}{}
}

func formatSeconds(s float64) string {
	return strconv.FormatFloat(s, 'f', -1, 64)
}
