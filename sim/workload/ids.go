package workload

import (
	"io"

	"github.com/google/uuid"
)

// IDSource mints job IDs as version-4 UUIDs drawn from r, so a seeded
// reader yields the same IDs on every run.
type IDSource struct {
	r io.Reader
}

// NewIDSource wraps a random byte stream.
func NewIDSource(r io.Reader) *IDSource {
	return &IDSource{r: r}
}

// Next returns a fresh job ID.
func (s *IDSource) Next() (string, error) {
	id, err := uuid.NewRandomFromReader(s.r)
	if err != nil {
		return "", err
	}
	return id.String(), nil
}
