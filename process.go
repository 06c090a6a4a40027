package reenact

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/esimov/reenact/utils"
	"github.com/google/uuid"
	"github.com/pkg/errors"
	"gorgonia.org/tensor"
)

// maxWorkers sets the maximum number of concurrently running frame loaders.
const maxWorkers = 20

// imageExtensions are the file extensions looked up when resolving an image by its id.
var imageExtensions = []string{".jpg", ".jpeg", ".png", ".bmp"}

// Ops describes where the inputs of a batch animation are found and where the results go.
//
// For every source id the driving targets are listed by the <TargetsDir>/<id>/<id>_to_<target>.png
// files. The source and the driving faces are then read from ImagesDir as <id>.<ext> and <target>.<ext>.
type Ops struct {
	ImagesDir  string
	TargetsDir string
	Dst        string
	Sources    []string
	Workers    int
	// Trace saves a yaw, pitch and roll chart next to the results of every source.
	Trace bool
}

// Result holds the relevant information about an animated source.
type Result struct {
	Source  string
	Outputs []string
	Trace   string
	Elapsed time.Duration
}

// Processor runs the animation over a batch of source faces.
type Processor struct {
	Animator  *Animator
	FrameSize int
	// Cropper, if set, crops every image around its face before resizing.
	Cropper *FaceCropper
	// Spinner, if set, is shown while a source is being animated.
	Spinner *utils.Spinner
}

// Execute animates the sources one after the other and stops at the first failure.
func (p *Processor) Execute(op *Ops) ([]Result, error) {
	if p.Animator == nil {
		return nil, errors.Wrap(ErrConfiguration, "processor requires an animator")
	}
	// The defaults are applied on copies, the caller's settings stay as they are.
	proc, ops := *p, *op
	if proc.FrameSize <= 0 {
		proc.FrameSize = DefaultFrameSize
	}
	if ops.Workers <= 0 || ops.Workers > maxWorkers {
		ops.Workers = maxWorkers
	}
	if err := os.MkdirAll(ops.Dst, 0755); err != nil {
		return nil, errors.Wrap(err, "unable to create the destination directory")
	}

	log := utils.Logger().With("run", uuid.NewString())
	log.Info("animation started", "sources", len(ops.Sources), "size", proc.FrameSize, "workers", ops.Workers)

	results := make([]Result, 0, len(ops.Sources))
	for _, id := range ops.Sources {
		if p.Spinner != nil {
			p.Spinner.SetMessage(fmt.Sprintf("%s %s",
				utils.DecorateText("⚡ REENACT", utils.StatusMessage),
				utils.DecorateText("⇢ animating "+id+"...", utils.DefaultMessage),
			))
			p.Spinner.Start()
		}
		res, err := proc.animate(&ops, id)
		if p.Spinner != nil {
			p.Spinner.Stop()
		}
		if err != nil {
			log.Error("animation failed", "source", id, "error", err)
			return results, errors.Wrapf(err, "source %s", id)
		}
		log.Info("source animated", "source", id, "frames", len(res.Outputs), "elapsed", res.Elapsed)
		results = append(results, res)
	}
	return results, nil
}

func (p *Processor) animate(op *Ops, id string) (Result, error) {
	now := time.Now()
	res := Result{Source: id}

	targets, err := DiscoverTargets(op.TargetsDir, id)
	if err != nil {
		return res, err
	}
	srcPath, err := findImage(op.ImagesDir, id)
	if err != nil {
		return res, err
	}
	source, err := p.loadFrame(srcPath)
	if err != nil {
		return res, err
	}

	paths := make([]string, len(targets))
	for i, target := range targets {
		if paths[i], err = findImage(op.ImagesDir, target); err != nil {
			return res, err
		}
	}
	driving, err := p.loadFrames(paths, op.Workers)
	if err != nil {
		return res, err
	}

	// The animator is copied, so the frame hook is private to this source.
	anim := *p.Animator
	trace := &PoseTrace{Title: id}
	if op.Trace {
		onFrame := anim.OnFrame
		anim.OnFrame = func(stats FrameStats) {
			trace.Record(stats)
			if onFrame != nil {
				onFrame(stats)
			}
		}
	}

	frames, err := anim.Animate(source, driving)
	if err != nil {
		return res, err
	}
	for i, frame := range frames {
		img, err := ImageFromFrame(frame)
		if err != nil {
			return res, err
		}
		dst := filepath.Join(op.Dst, OutputName(id, targets[i]))
		if err := SaveImage(dst, img); err != nil {
			return res, err
		}
		res.Outputs = append(res.Outputs, dst)
	}

	if op.Trace && len(trace.Frames) > 0 {
		res.Trace = filepath.Join(op.Dst, id+"_trace.png")
		if err := trace.Save(res.Trace); err != nil {
			return res, err
		}
	}
	res.Elapsed = time.Since(now)

	return res, nil
}

// DiscoverTargets lists the driving target ids of a source, in sorted order.
func DiscoverTargets(dir, id string) ([]string, error) {
	prefix := id + "_to_"
	matches, err := filepath.Glob(filepath.Join(dir, id, prefix+"*.png"))
	if err != nil {
		return nil, errors.Wrap(err, "invalid target pattern")
	}
	sort.Strings(matches)

	targets := make([]string, 0, len(matches))
	for _, m := range matches {
		name := strings.TrimSuffix(filepath.Base(m), ".png")
		if target := strings.TrimPrefix(name, prefix); target != "" {
			targets = append(targets, target)
		}
	}
	return targets, nil
}

// OutputName returns the file name of the frame animating source id with target.
func OutputName(id, target string) string {
	return fmt.Sprintf("%s_to_%s.png", id, target)
}

// findImage resolves the image file named by id inside dir.
func findImage(dir, id string) (string, error) {
	for _, ext := range imageExtensions {
		path := filepath.Join(dir, id+ext)
		if fi, err := os.Stat(path); err == nil && fi.Mode().IsRegular() {
			return path, nil
		}
	}
	return "", errors.Errorf("no image found for %q in %s", id, dir)
}

// loadFrame decodes, optionally crops and resizes the image into a frame tensor.
func (p *Processor) loadFrame(path string) (*tensor.Dense, error) {
	img, err := DecodeImage(path)
	if err != nil {
		return nil, err
	}
	if p.Cropper != nil {
		img = p.Cropper.Crop(img)
	}
	return FrameFromImage(img, p.FrameSize), nil
}

// result holds a decoded frame and its position in the driving sequence.
type result struct {
	idx   int
	frame *tensor.Dense
	err   error
}

// loadFrames decodes the images concurrently and returns the frames in the order of paths.
func (p *Processor) loadFrames(paths []string, workers int) ([]*tensor.Dense, error) {
	var wg sync.WaitGroup

	jobs := make(chan int)
	ch := make(chan result)
	done := make(chan struct{})
	defer close(done)

	go func() {
		defer close(jobs)
		for i := range paths {
			select {
			case <-done:
				return
			case jobs <- i:
			}
		}
	}()

	wg.Add(workers)
	for i := 0; i < workers; i++ {
		go func() {
			defer wg.Done()
			for idx := range jobs {
				frame, err := p.loadFrame(paths[idx])
				select {
				case <-done:
					return
				case ch <- result{idx: idx, frame: frame, err: err}:
				}
			}
		}()
	}

	// Close the channel after the values are consumed.
	go func() {
		defer close(ch)
		wg.Wait()
	}()

	frames := make([]*tensor.Dense, len(paths))
	for res := range ch {
		if res.err != nil {
			return nil, res.err
		}
		frames[res.idx] = res.frame
	}
	return frames, nil
}
