package reenact

import "gorgonia.org/tensor"

// KeypointDetector extracts the canonical keypoints of a frame shaped (1, 3, H, W).
// The returned set carries jacobians only if the detector estimates them.
type KeypointDetector interface {
	Detect(frame *tensor.Dense) (KeypointSet, error)
}

// PoseEstimator estimates the head pose and the expression deviation of a frame.
type PoseEstimator interface {
	Estimate(frame *tensor.Dense) (HeadPose, error)
}

// Generator synthesizes the source frame moved from the source keypoints into
// the driving keypoints. The output has the same spatial size as the source.
type Generator interface {
	Synthesize(source *tensor.Dense, kpSource, kpDriving KeypointSet) (*tensor.Dense, error)
}
