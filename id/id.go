// Package id generates unique identifiers for events, segments, and output
// files.
package id

import (
	"errors"
	"fmt"
	"reflect"
	"strconv"
	"sync"
	"sync/atomic"

	"github.com/rs/xid"
)

var (
	generatorMutex        sync.Mutex
	generatorInstantiated bool
	generator             Generator
)

// Generator can generate IDs.
type Generator interface {
	Generate() string
}

// ErrGeneratorInUse is returned when a different generator kind is selected
// after IDs have already been handed out.
var ErrGeneratorInUse = errors.New("id generator already in use")

// UseSequentialGenerator configures the package to generate sequential IDs.
// Sequential IDs make repeated runs of the same scenario produce the same
// traces.
func UseSequentialGenerator() error {
	return use(&sequentialGenerator{})
}

// UseParallelGenerator configures the package to generate globally unique
// IDs. The IDs generated will not be deterministic anymore.
func UseParallelGenerator() error {
	return use(parallelGenerator{})
}

// use installs g unless another generator kind is already active. Selecting
// the active kind again is a no-op.
func use(g Generator) error {
	generatorMutex.Lock()
	defer generatorMutex.Unlock()

	if generatorInstantiated {
		if reflect.TypeOf(generator) == reflect.TypeOf(g) {
			return nil
		}

		return fmt.Errorf("%w: %T", ErrGeneratorInUse, generator)
	}

	generator = g
	generatorInstantiated = true

	return nil
}

// Get returns the generator used by the current process. If no generator
// has been selected, a sequential one is installed.
func Get() Generator {
	generatorMutex.Lock()
	defer generatorMutex.Unlock()

	if !generatorInstantiated {
		generator = &sequentialGenerator{}
		generatorInstantiated = true
	}

	return generator
}

// Generate returns a new ID from the process-wide generator.
func Generate() string {
	return Get().Generate()
}

// Unique returns an ID that is unique across processes, regardless of the
// selected generator. It is used to name output files.
func Unique() string {
	return xid.New().String()
}

// NewSequentialGenerator returns a standalone sequential generator whose first
// ID is "1".
func NewSequentialGenerator() Generator {
	return &sequentialGenerator{}
}

type sequentialGenerator struct {
	nextID uint64
}

func (g *sequentialGenerator) Generate() string {
	n := atomic.AddUint64(&g.nextID, 1)

	return strconv.FormatUint(n, 10)
}

type parallelGenerator struct{}

func (g parallelGenerator) Generate() string {
	return xid.New().String()
}
