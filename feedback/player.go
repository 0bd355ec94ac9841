// Package feedback plays a short click through the default output device
// whenever a key press is dispatched.
package feedback

import (
	"encoding/binary"
	"fmt"
	"math"
	"sync"
	"sync/atomic"

	"github.com/gen2brain/malgo"
)

const (
	sampleRate = 48000
	clickFreq  = 2000.0
	clickSecs  = 0.03
)

// Player owns the playback device. A nil Player is valid and silent, so
// callers can treat feedback as optional.
type Player struct {
	malgoCtx *malgo.AllocatedContext
	device   *malgo.Device
	click    []int16
	volume   float64

	mu  sync.Mutex
	pos atomic.Int64 // playback cursor; past the end of click means idle
}

// NewPlayer initializes the playback device. volume is expected to already
// be clamped to [0,1].
func NewPlayer(volume float64) (*Player, error) {
	ctx, err := malgo.InitContext(nil, malgo.ContextConfig{}, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize malgo context: %w", err)
	}

	p := &Player{
		malgoCtx: ctx,
		click:    synthesizeClick(sampleRate),
		volume:   volume,
	}
	p.pos.Store(int64(len(p.click)))

	if err := p.initDevice(); err != nil {
		ctx.Uninit()
		ctx.Free()
		return nil, fmt.Errorf("failed to initialize playback device: %w", err)
	}

	return p, nil
}

// initDevice initializes and starts the playback device (called once at startup)
func (p *Player) initDevice() error {
	deviceConfig := malgo.DefaultDeviceConfig(malgo.Playback)
	deviceConfig.Playback.Format = malgo.FormatS16
	deviceConfig.Playback.Channels = 1
	deviceConfig.SampleRate = sampleRate
	deviceConfig.Alsa.NoMMap = 1

	// The device runs continuously; the callback emits silence while the
	// cursor sits past the end of the click sample.
	onData := func(pOutputSamples, pInputSamples []byte, framecount uint32) {
		p.render(pOutputSamples, framecount)
	}

	var err error
	p.device, err = malgo.InitDevice(p.malgoCtx.Context, deviceConfig, malgo.DeviceCallbacks{
		Data: onData,
	})
	if err != nil {
		return fmt.Errorf("failed to initialize device: %w", err)
	}

	if err := p.device.Start(); err != nil {
		p.device.Uninit()
		p.device = nil
		return fmt.Errorf("failed to start device: %w", err)
	}

	return nil
}

// render fills out with the next framecount samples of the click, emitting
// silence once the cursor is past its end. The cursor advance is a
// compare-and-swap: if a Trigger rewinds the cursor mid-render, the swap
// fails and the buffer is rendered again from the top, so no click is ever
// swallowed by a stale store.
func (p *Player) render(out []byte, framecount uint32) {
	for {
		pos := p.pos.Load()
		cur := pos
		for i := uint32(0); i < framecount; i++ {
			var sample int16
			if int(cur) < len(p.click) {
				sample = int16(float64(p.click[cur]) * p.volume)
				cur++
			}
			binary.LittleEndian.PutUint16(out[i*2:], uint16(sample))
		}
		if p.pos.CompareAndSwap(pos, cur) {
			return
		}
	}
}

// Trigger restarts the click from the top. Safe from any goroutine; a click
// already in flight is simply retriggered.
func (p *Player) Trigger() {
	if p == nil {
		return
	}
	p.pos.Store(0)
}

// Close releases the device and the malgo context
func (p *Player) Close() error {
	if p == nil {
		return nil
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if p.device != nil {
		p.device.Stop()
		p.device.Uninit()
		p.device = nil
	}

	if p.malgoCtx != nil {
		_ = p.malgoCtx.Uninit()
		p.malgoCtx.Free()
		p.malgoCtx = nil
	}

	return nil
}

// synthesizeClick renders a short decaying sine burst. It starts at zero
// amplitude and decays to silence within its duration, so retriggering
// never pops.
func synthesizeClick(rate int) []int16 {
	n := int(float64(rate) * clickSecs)
	samples := make([]int16, n)
	for i := range samples {
		t := float64(i) / float64(rate)
		envelope := math.Exp(-t * 180)
		v := math.Sin(2*math.Pi*clickFreq*t) * envelope
		samples[i] = int16(v * 0.8 * math.MaxInt16)
	}
	return samples
}
