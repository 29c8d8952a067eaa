// Package plan computes how many copies of the base rotation clip are
// needed to cover an audio track. It is pure arithmetic with no I/O.
package plan

import "math"

// RotationPlan describes the rotation sequence required to cover one track.
type RotationPlan struct {
	// FramesNeeded is the number of base-clip copies required to cover the
	// full audio duration. Always at least 1.
	FramesNeeded int
	// AngularSpeed is the rotation speed in radians per second.
	AngularSpeed float64
	// FrameDuration is the length of one rotation in seconds. It equals the
	// configured rotation duration, not a per-track value.
	FrameDuration float64
}

// CoveredSeconds returns the total length of video the plan produces.
func (p RotationPlan) CoveredSeconds() float64 {
	return float64(p.FramesNeeded) * p.FrameDuration
}

// Compute derives a RotationPlan from an audio duration and the configured
// seconds-per-rotation constant. The frame count rounds up conservatively
// (floor plus one) so the rotation sequence never falls short of the audio;
// a shortfall would truncate the tail of the track in the final video.
//
// audioDuration must be non-negative and rotationDuration positive; any such
// input is valid and a zero-length track still yields one frame.
func Compute(audioDuration, rotationDuration float64) RotationPlan {
	frames := int(math.Floor(audioDuration/rotationDuration)) + 1
	if frames < 1 {
		frames = 1
	}

	return RotationPlan{
		FramesNeeded:  frames,
		AngularSpeed:  2 * math.Pi / rotationDuration,
		FrameDuration: rotationDuration,
	}
}
