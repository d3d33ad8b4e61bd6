package runtime

import (
	"fmt"
	"strings"

	"github.com/google/go-containerregistry/pkg/name"
	"github.com/google/uuid"
)

// Normalize validates spec and fills defaults. An empty name is replaced by a
// generated one; the image must parse as an OCI reference.
func (s CreateSpec) Normalize() (CreateSpec, error) {
	s.Image = strings.TrimSpace(s.Image)
	if s.Image == "" {
		return CreateSpec{}, fmt.Errorf("image required")
	}
	if _, err := name.ParseReference(s.Image); err != nil {
		return CreateSpec{}, fmt.Errorf("parse image ref %q: %w", s.Image, err)
	}
	s.Name = strings.TrimSpace(s.Name)
	if s.Name == "" {
		s.Name = uuid.NewString()
	}
	if s.CPUs < 0 {
		return CreateSpec{}, fmt.Errorf("cpus must not be negative")
	}
	s.Memory = strings.TrimSpace(s.Memory)
	s.PublishPorts = compact(s.PublishPorts)
	s.Networks = compact(s.Networks)
	return s, nil
}

// SplitList splits a comma separated flag value, dropping blanks.
func SplitList(value string) []string {
	return compact(strings.Split(value, ","))
}

func compact(values []string) []string {
	var out []string
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			out = append(out, v)
		}
	}
	return out
}
