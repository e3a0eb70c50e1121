package domain

import (
	"fmt"
	"strings"
)

// Numeric knob bounds for generation requests. The accelerator pipeline
// treats the values as opaque; only the ranges are enforced here.
const (
	MinFidelityStrength = 0.5
	MaxFidelityStrength = 2.0
	MinPlaybackSpeed    = 0.5
	MaxPlaybackSpeed    = 2.0
	MinFPS              = 15
	MaxFPS              = 60
	MinDurationSeconds  = 1
	MaxTextLength       = 2000

	DefaultLanguage         = "English"
	DefaultResolution       = "512"
	DefaultDurationSeconds  = 20
	DefaultFPS              = 30
	DefaultFidelityStrength = 1.0
	DefaultPlaybackSpeed    = 1.0
)

var supportedLanguages = map[string]struct{}{
	"english": {}, "spanish": {}, "french": {}, "german": {},
	"italian": {}, "portuguese": {}, "hindi": {}, "mandarin chinese": {},
	"japanese": {}, "korean": {}, "russian": {}, "arabic": {},
}

var allowedResolutions = map[string]struct{}{
	"512": {},
	"768": {},
}

// Params is the validated configuration record for one generation request.
type Params struct {
	Text             string  `json:"text"`
	Language         string  `json:"language"`
	ReferenceImage   string  `json:"reference_image,omitempty"`
	FidelityStrength float64 `json:"fidelity_strength"`
	DurationSeconds  int     `json:"duration"`
	FPS              int     `json:"fps"`
	PlaybackSpeed    float64 `json:"playback_speed"`
	Resolution       string  `json:"resolution"`
}

// Normalize applies server defaults for omitted fields. Zero-valued knobs
// are treated as omitted.
func (p *Params) Normalize() {
	if p == nil {
		return
	}
	p.Text = strings.TrimSpace(p.Text)
	if strings.TrimSpace(p.Language) == "" {
		p.Language = DefaultLanguage
	}
	if p.Resolution == "" {
		p.Resolution = DefaultResolution
	}
	if p.DurationSeconds == 0 {
		p.DurationSeconds = DefaultDurationSeconds
	}
	if p.FPS == 0 {
		p.FPS = DefaultFPS
	}
	if p.FidelityStrength == 0 {
		p.FidelityStrength = DefaultFidelityStrength
	}
	if p.PlaybackSpeed == 0 {
		p.PlaybackSpeed = DefaultPlaybackSpeed
	}
}

// Validate checks the request against documented ranges. maxDuration is the
// configured upper bound for video length in seconds.
func (p Params) Validate(maxDuration int) error {
	if strings.TrimSpace(p.Text) == "" {
		return fmt.Errorf("%w: text is required", ErrInvalidInput)
	}
	if len(p.Text) > MaxTextLength {
		return fmt.Errorf("%w: text exceeds %d characters", ErrInvalidInput, MaxTextLength)
	}
	if _, ok := supportedLanguages[strings.ToLower(strings.TrimSpace(p.Language))]; !ok {
		return fmt.Errorf("%w: unsupported language %q", ErrInvalidInput, p.Language)
	}
	if p.FidelityStrength < MinFidelityStrength || p.FidelityStrength > MaxFidelityStrength {
		return fmt.Errorf("%w: fidelity_strength must be between %.1f and %.1f",
			ErrInvalidInput, MinFidelityStrength, MaxFidelityStrength)
	}
	if p.DurationSeconds < MinDurationSeconds || p.DurationSeconds > maxDuration {
		return fmt.Errorf("%w: duration must be between %d and %d seconds",
			ErrInvalidInput, MinDurationSeconds, maxDuration)
	}
	if p.FPS < MinFPS || p.FPS > MaxFPS {
		return fmt.Errorf("%w: fps must be between %d and %d", ErrInvalidInput, MinFPS, MaxFPS)
	}
	if p.PlaybackSpeed < MinPlaybackSpeed || p.PlaybackSpeed > MaxPlaybackSpeed {
		return fmt.Errorf("%w: playback_speed must be between %.1f and %.1f",
			ErrInvalidInput, MinPlaybackSpeed, MaxPlaybackSpeed)
	}
	if _, ok := allowedResolutions[p.Resolution]; !ok {
		return fmt.Errorf("%w: resolution must be one of 512, 768", ErrInvalidInput)
	}
	return nil
}
