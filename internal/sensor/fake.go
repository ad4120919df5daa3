package sensor

import "sync"

// Fake is a test double returning scripted readings.
type Fake struct {
	mu       sync.Mutex
	Celsius  float64
	ReadErr  error
	NumReads int
}

// NewFake creates a Fake reading c degrees.
func NewFake(c float64) *Fake {
	return &Fake{Celsius: c}
}

// ReadCelsius returns the scripted value or error.
func (f *Fake) ReadCelsius() (float64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.NumReads++
	if f.ReadErr != nil {
		return 0, f.ReadErr
	}
	return f.Celsius, nil
}

// Set changes the reading and clears any error.
func (f *Fake) Set(c float64) {
	f.mu.Lock()
	f.Celsius = c
	f.ReadErr = nil
	f.mu.Unlock()
}

// Fail makes subsequent reads return err.
func (f *Fake) Fail(err error) {
	f.mu.Lock()
	f.ReadErr = err
	f.mu.Unlock()
}
