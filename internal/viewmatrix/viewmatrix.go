// Package viewmatrix builds output camera poses: look-at poses, orbits
// around a scene and framing distances that fit a bounding box in view.
package viewmatrix

import (
	"math"

	"ibr-renderer/internal/camera"
	"ibr-renderer/internal/mathutil"
)

// DefaultElevation is the orbit elevation in degrees when none is given.
const DefaultElevation = 15.0

// LookAt places a camera at eye looking at target with +Y up.
func LookAt(eye, target mathutil.Vec3) camera.Pose {
	return camera.Pose{
		Position: eye,
		Rotation: mathutil.LookRotation(target.Sub(eye), mathutil.Up),
	}
}

// OrbitPose returns the pose on a sphere of radius around center at the
// given azimuth (degrees, 0 = behind center on -Z) and elevation (degrees
// above the XZ plane), looking at center.
func OrbitPose(center mathutil.Vec3, radius, azimuth, elevation float64) camera.Pose {
	az := mathutil.Deg2Rad(azimuth)
	el := mathutil.Deg2Rad(mathutil.Clamp(elevation, -89, 89))
	// Tilt up from -Z, then swing around +Y.
	offset := mathutil.RotY(az).MulVec3(mathutil.RotX(el).MulVec3(mathutil.Vec3{0, 0, -radius}))
	return LookAt(center.Add(offset), center)
}

// Orbit returns frames poses evenly spaced in azimuth around center,
// starting at azimuth 0.
func Orbit(center mathutil.Vec3, radius, elevation float64, frames int) []camera.Pose {
	if frames <= 0 {
		return nil
	}
	poses := make([]camera.Pose, frames)
	step := 360 / float64(frames)
	for i := range poses {
		poses[i] = OrbitPose(center, radius, float64(i)*step, elevation)
	}
	return poses
}

// FitDistance returns the distance from the box center at which a camera
// with horizontal field of view fovX (degrees) sees the whole box lo..hi.
func FitDistance(lo, hi mathutil.Vec3, fovX float64) float64 {
	halfFOV := mathutil.Deg2Rad(mathutil.Clamp(fovX, 1, 179) / 2)
	radius := hi.Sub(lo).Len() / 2
	if radius < 0.001 {
		radius = 0.001
	}
	return radius / math.Sin(halfFOV)
}

// Center returns the midpoint of lo..hi.
func Center(lo, hi mathutil.Vec3) mathutil.Vec3 {
	return lo.Add(hi).Scale(0.5)
}
