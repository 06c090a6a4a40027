package model

import (
	"io"
	"os"
	"path"
	"sort"
	"strings"

	"github.com/esimov/reenact"
	"github.com/klauspost/compress/zip"
	"github.com/pkg/errors"
	"gorgonia.org/tensor"
)

// The weight groups of a checkpoint archive.
const (
	GroupGenerator   = "generator"
	GroupKPDetector  = "kp_detector"
	GroupHEEstimator = "he_estimator"
)

const npyExt = ".npy"

// Weights maps a parameter name (e.g. "fc.weight") to its tensor.
type Weights map[string]*tensor.Dense

// Checkpoint maps a weight group to the parameters of the network it belongs to.
type Checkpoint map[string]Weights

// ReadCheckpoint opens the zip archive found under path and decodes every
// <group>/<parameter>.npy entry. Float64 arrays are converted to float32.
func ReadCheckpoint(path string) (Checkpoint, error) {
	zr, err := zip.OpenReader(path)
	if err != nil {
		return nil, errors.Wrapf(reenact.ErrCheckpointMismatch, "could not open the checkpoint archive: %v", err)
	}
	defer zr.Close()

	ckpt := make(Checkpoint)
	for _, f := range zr.File {
		if f.FileInfo().IsDir() {
			continue
		}
		group, param, ok := entryName(f.Name)
		if !ok {
			return nil, errors.Wrapf(reenact.ErrCheckpointMismatch, "unexpected archive entry %q", f.Name)
		}

		t, err := readEntry(f)
		if err != nil {
			return nil, errors.Wrapf(reenact.ErrCheckpointMismatch, "could not decode %s: %v", f.Name, err)
		}
		if ckpt[group] == nil {
			ckpt[group] = make(Weights)
		}
		ckpt[group][param] = t
	}
	return ckpt, nil
}

// WriteCheckpoint encodes the checkpoint as a zip archive into w.
// Entries are written in a sorted order, so the same weights always produce the same archive.
func WriteCheckpoint(w io.Writer, ckpt Checkpoint) error {
	zw := zip.NewWriter(w)

	groups := make([]string, 0, len(ckpt))
	for g := range ckpt {
		groups = append(groups, g)
	}
	sort.Strings(groups)

	for _, g := range groups {
		for _, name := range ckpt[g].Names() {
			fw, err := zw.Create(path.Join(g, name+npyExt))
			if err != nil {
				return errors.Wrapf(err, "could not create the %s/%s entry", g, name)
			}
			if err := ckpt[g][name].WriteNpy(fw); err != nil {
				return errors.Wrapf(err, "could not encode %s/%s", g, name)
			}
		}
	}
	return zw.Close()
}

// SaveCheckpoint writes the checkpoint archive into the dst file.
func SaveCheckpoint(dst string, ckpt Checkpoint) error {
	f, err := os.Create(dst)
	if err != nil {
		return errors.Wrap(err, "unable to create the checkpoint file")
	}
	if err := WriteCheckpoint(f, ckpt); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

// Names returns the parameter names in sorted order.
func (w Weights) Names() []string {
	names := make([]string, 0, len(w))
	for name := range w {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func entryName(name string) (group, param string, ok bool) {
	if !strings.HasSuffix(name, npyExt) {
		return "", "", false
	}
	group, param, ok = strings.Cut(strings.TrimSuffix(name, npyExt), "/")
	if !ok || group == "" || param == "" {
		return "", "", false
	}
	return group, param, true
}

func readEntry(f *zip.File) (*tensor.Dense, error) {
	rc, err := f.Open()
	if err != nil {
		return nil, err
	}
	defer rc.Close()

	t := new(tensor.Dense)
	if err := t.ReadNpy(rc); err != nil {
		return nil, err
	}

	switch data := t.Data().(type) {
	case []float32:
		return t, nil
	case []float64:
		conv := make([]float32, len(data))
		for i, v := range data {
			conv[i] = float32(v)
		}
		return tensor.New(tensor.WithShape(t.Shape().Clone()...), tensor.WithBacking(conv)), nil
	case float32:
		return tensor.New(tensor.WithShape(1), tensor.WithBacking([]float32{data})), nil
	case float64:
		return tensor.New(tensor.WithShape(1), tensor.WithBacking([]float32{float32(data)})), nil
	default:
		return nil, errors.Errorf("unsupported dtype %v", t.Dtype())
	}
}
