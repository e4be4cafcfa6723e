package image

import (
	"errors"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/jamesainslie/fsverify/pkg/fsverify/normalize"
)

// ErrInvalidMatrix indicates a matrix file that cannot be used.
var ErrInvalidMatrix = errors.New("invalid image matrix")

// Matrix is the set of image configurations one run validates.
type Matrix struct {
	Images []Descriptor `json:"images" yaml:"images"`
}

// matrixFile defers decoding of each entry until its catalog defaults are
// known.
type matrixFile struct {
	Images []yaml.Node `yaml:"images"`
}

// DefaultMatrix returns the catalog with paths resolved by layout.
func DefaultMatrix(layout Layout) Matrix {
	images := Catalog()
	for i := range images {
		images[i] = layout.Apply(images[i])
	}
	return Matrix{Images: images}
}

// LoadMatrix reads a YAML matrix file. An entry whose name matches a
// catalog configuration starts from that configuration and overrides only
// the keys it sets; any other entry starts from the default policy.
func LoadMatrix(path string, layout Layout) (Matrix, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Matrix{}, fmt.Errorf("reading matrix: %w", err)
	}
	m, err := ParseMatrix(data, layout)
	if err != nil {
		return Matrix{}, fmt.Errorf("%s: %w", path, err)
	}
	return m, nil
}

// ParseMatrix decodes matrix YAML. See LoadMatrix.
func ParseMatrix(data []byte, layout Layout) (Matrix, error) {
	var file matrixFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return Matrix{}, fmt.Errorf("%w: %w", ErrInvalidMatrix, err)
	}

	m := Matrix{Images: make([]Descriptor, 0, len(file.Images))}
	for i := range file.Images {
		node := &file.Images[i]

		var head struct {
			Name string `yaml:"name"`
		}
		if err := node.Decode(&head); err != nil {
			return Matrix{}, fmt.Errorf("%w: entry %d: %w", ErrInvalidMatrix, i, err)
		}

		d, ok := Lookup(head.Name)
		if !ok {
			d = Descriptor{Policy: normalize.DefaultPolicy()}
		}
		if err := node.Decode(&d); err != nil {
			return Matrix{}, fmt.Errorf("%w: entry %d: %w", ErrInvalidMatrix, i, err)
		}
		m.Images = append(m.Images, layout.Apply(d))
	}

	if err := m.Validate(); err != nil {
		return Matrix{}, err
	}
	return m, nil
}

// Validate checks that every image has a unique name, an image file and a
// usable policy.
func (m Matrix) Validate() error {
	seen := make(map[string]struct{}, len(m.Images))
	for i, d := range m.Images {
		if d.Name == "" {
			return fmt.Errorf("%w: entry %d has no name", ErrInvalidMatrix, i)
		}
		if _, ok := seen[d.Name]; ok {
			return fmt.Errorf("%w: duplicate name %q", ErrInvalidMatrix, d.Name)
		}
		seen[d.Name] = struct{}{}
		if d.Image == "" {
			return fmt.Errorf("%w: %s has no image", ErrInvalidMatrix, d.Name)
		}
		if err := d.Policy.Validate(); err != nil {
			return fmt.Errorf("%w: %s: %w", ErrInvalidMatrix, d.Name, err)
		}
	}
	return nil
}

// Names returns the image names in matrix order.
func (m Matrix) Names() []string {
	names := make([]string, len(m.Images))
	for i, d := range m.Images {
		names[i] = d.Name
	}
	return names
}

// Select returns a matrix restricted to names, in that order.
func (m Matrix) Select(names []string) (Matrix, error) {
	images, err := Select(m.Images, names)
	if err != nil {
		return Matrix{}, err
	}
	return Matrix{Images: images}, nil
}
