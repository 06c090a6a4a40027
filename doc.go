/*
Package reenact animates a static source face with the head pose and expression observed
in a sequence of driving frames.

The package holds the numeric core of the face reenactment pipeline: decoding the binned
head pose predictions into angles, composing the rotation matrix and moving the canonical
keypoints of the source face into the pose of every driving frame. The neural networks
(keypoint detector, head pose estimator and generator) are consumed through small
interfaces, so any trained model binding can be plugged in. A CPU reference binding lives
in the nn package and the model package loads it from a configuration and a checkpoint file.

The package provides a command line interface too, which animates a batch of source images.
To check the supported commands type:

	$ reenact --help

In case you wish to integrate the API in a self constructed environment here is a simple example:

	package main

	import (
		"log"

		"github.com/esimov/reenact"
		"github.com/esimov/reenact/model"
	)

	func main() {
		m, err := model.Load("vox-256.yaml", "checkpoint.zip", "spade", false)
		if err != nil {
			log.Fatal(err)
		}

		a := &reenact.Animator{
			Detector:         m.Detector,
			Estimator:        m.Estimator,
			Generator:        m.Generator,
			EstimateJacobian: m.EstimateJacobian,
		}

		frames, err := a.Animate(source, driving)
		if err != nil {
			log.Fatalf("Error animating the source image: %v", err)
		}
		_ = frames
	}
*/
package reenact
