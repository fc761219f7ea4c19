// File: internal/browser/humanize/humanize.go

// Package humanize produces human-like typing cadence. Chat applications
// score input timing as a bot signal; uniform machine-speed key events on
// the login form or the composer are an easy tell. The model here is a
// normal-distributed inter-key delay, sped up on common letter pairs the
// way practiced typists chunk them, plus an occasional adjacent-key typo
// that is always noticed and corrected so the submitted text stays exact.
package humanize

import (
	"context"
	"math"
	"math/rand"
	"strings"
	"sync"
	"time"
	"unicode"
)

// SendFunc dispatches one key chunk to the focused element. "\b" is a
// backspace press.
type SendFunc func(ctx context.Context, keys string) error

// Backspace is the chunk a SendFunc must interpret as one backspace press.
const Backspace = "\b"

// Profile tunes the cadence model. All durations are milliseconds.
type Profile struct {
	// KeyDelayMean and KeyDelayStdDev shape the inter-key delay.
	KeyDelayMean   float64
	KeyDelayStdDev float64
	// KeyDelayMin floors the delay; real key events never arrive faster.
	KeyDelayMin float64
	// TypoRate is the per-character probability of an adjacent-key slip.
	TypoRate float64
}

// DefaultProfile matches a moderately fast touch typist.
var DefaultProfile = Profile{
	KeyDelayMean:   70,
	KeyDelayStdDev: 28,
	KeyDelayMin:    35,
	TypoRate:       0.02,
}

// Instant disables delays and typos; tests and trusted-input paths use it.
var Instant = Profile{}

// keyboardNeighbors maps each key to the keys physically adjacent on a
// QWERTY layout, used to pick plausible slip characters.
var keyboardNeighbors = map[rune]string{
	'1': "2q", '2': "13wq", '3': "24we", '4': "35er", '5': "46rt", '6': "57ty",
	'7': "68yu", '8': "79ui", '9': "80io", '0': "9op",
	'q': "wa1s", 'w': "qase23", 'e': "wsdr34", 'r': "edft45", 't': "rfgy56",
	'y': "tghu67", 'u': "yhji78", 'i': "ujko89", 'o': "iklp90", 'p': "ol0",
	'a': "qwsz", 's': "awedxz", 'd': "serfcx", 'f': "drtgvc", 'g': "ftyhbv",
	'h': "gyujnb", 'j': "huikmn", 'k': "jiolm", 'l': "kop",
	'z': "asx", 'x': "zsdc", 'c': "xdfv", 'v': "cfgb", 'b': "vghn", 'n': "bhjm", 'm': "njk",
}

// commonNgrams lists letter sequences typed faster than isolated keys.
var commonNgrams = map[string]bool{
	"th": true, "he": true, "in": true, "er": true, "an": true, "re": true,
	"es": true, "on": true, "st": true, "nt": true,
	"the": true, "and": true, "ing": true, "ion": true, "tio": true,
}

// Typist types text with human cadence through an injected send function.
// Safe for concurrent use, though input targets one element at a time.
type Typist struct {
	profile Profile

	mu  sync.Mutex
	rng *rand.Rand
}

// NewTypist creates a typist with the given profile. The zero-valued
// profile types instantly.
func NewTypist(profile Profile) *Typist {
	return &Typist{
		profile: profile,
		rng:     rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

// Type sends text one character at a time with inter-key delays and the
// occasional corrected slip. The element receives exactly text once Type
// returns without error.
func (t *Typist) Type(ctx context.Context, send SendFunc, text string) error {
	if t.profile == Instant {
		return send(ctx, text)
	}

	runes := []rune(text)
	for i, r := range runes {
		if err := t.keyPause(ctx, 1.0, runes, i); err != nil {
			return err
		}

		if t.shouldSlip(r) {
			if err := t.slipAndCorrect(ctx, send, r); err != nil {
				return err
			}
			continue
		}
		if err := send(ctx, string(r)); err != nil {
			return err
		}
	}
	return nil
}

// keyPause sleeps the inter-key delay, compressed on common n-grams.
func (t *Typist) keyPause(ctx context.Context, scale float64, runes []rune, index int) error {
	factor := 1.0
	if index >= 2 && commonNgrams[strings.ToLower(string(runes[index-2:index+1]))] {
		factor = 0.55
	} else if index >= 1 && commonNgrams[strings.ToLower(string(runes[index-1:index+1]))] {
		factor = 0.7
	}

	t.mu.Lock()
	norm := t.rng.NormFloat64()
	t.mu.Unlock()

	mean := t.profile.KeyDelayMean * scale * factor
	min := t.profile.KeyDelayMin * scale * factor
	delay := math.Max(min, norm*t.profile.KeyDelayStdDev+mean)
	return sleep(ctx, time.Duration(delay)*time.Millisecond)
}

func (t *Typist) shouldSlip(r rune) bool {
	if _, ok := keyboardNeighbors[unicode.ToLower(r)]; !ok {
		return false
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.rng.Float64() < t.profile.TypoRate
}

// slipAndCorrect types an adjacent key, pauses as if noticing, backspaces
// and types the intended key. Unlike free-form typing, the slip is always
// corrected: the text sent to the application must be exact.
func (t *Typist) slipAndCorrect(ctx context.Context, send SendFunc, intended rune) error {
	neighbors := keyboardNeighbors[unicode.ToLower(intended)]

	t.mu.Lock()
	slip := rune(neighbors[t.rng.Intn(len(neighbors))])
	t.mu.Unlock()
	if unicode.IsUpper(intended) {
		slip = unicode.ToUpper(slip)
	}

	if err := send(ctx, string(slip)); err != nil {
		return err
	}
	// Recognition pause, longer than an ordinary inter-key gap.
	if err := t.keyPause(ctx, 1.8, nil, 0); err != nil {
		return err
	}
	if err := send(ctx, Backspace); err != nil {
		return err
	}
	if err := t.keyPause(ctx, 1.2, nil, 0); err != nil {
		return err
	}
	return send(ctx, string(intended))
}

// Pause blocks for a normal-distributed thinking pause. Used between
// focusing an element and typing into it.
func (t *Typist) Pause(ctx context.Context, meanMs, stdDevMs float64) error {
	if t.profile == Instant {
		return nil
	}
	t.mu.Lock()
	norm := t.rng.NormFloat64()
	t.mu.Unlock()

	d := time.Duration(meanMs+norm*stdDevMs) * time.Millisecond
	if d <= 0 {
		return nil
	}
	return sleep(ctx, d)
}

func sleep(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
