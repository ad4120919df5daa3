package gpio

import (
	"errors"
	"sync"
)

// FakeReader is a test double that returns scripted contact values.
type FakeReader struct {
	// Samples contains scripted contact values to return.
	// Each call to Read() consumes the next sample.
	Samples []bool

	// index tracks current position in Samples
	index int

	// Closed tracks if Close was called
	Closed bool

	// ReadError, if set, will be returned by Read()
	ReadError error
}

// NewFakeReader creates a FakeReader with the given samples.
func NewFakeReader(samples ...bool) *FakeReader {
	return &FakeReader{Samples: samples}
}

// Read returns the next scripted sample.
// If samples are exhausted, returns the last sample repeatedly.
func (f *FakeReader) Read() (bool, error) {
	if f.ReadError != nil {
		return false, f.ReadError
	}
	if len(f.Samples) == 0 {
		return false, errors.New("no samples configured")
	}

	sample := f.Samples[f.index]
	if f.index < len(f.Samples)-1 {
		f.index++
	}
	return sample, nil
}

// Close marks the reader as closed.
func (f *FakeReader) Close() error {
	f.Closed = true
	return nil
}

// Reset resets the reader to the beginning of samples.
func (f *FakeReader) Reset() {
	f.index = 0
	f.Closed = false
}

// Drive is one recorded HBridge.Drive call.
type Drive struct {
	IN1, IN2 uint8
}

// FakeBridge records H-bridge commands.
type FakeBridge struct {
	mu sync.Mutex

	FreqHz int
	Drives []Drive
	Closed bool

	// ConfigureError and DriveError, if set, are returned by the
	// corresponding calls.
	ConfigureError error
	DriveError     error
}

// NewFakeBridge creates a FakeBridge.
func NewFakeBridge() *FakeBridge {
	return &FakeBridge{}
}

// Configure records the PWM frequency.
func (f *FakeBridge) Configure(freqHz int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.ConfigureError != nil {
		return f.ConfigureError
	}
	f.FreqHz = freqHz
	return nil
}

// Drive records the command.
func (f *FakeBridge) Drive(in1, in2 uint8) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Drives = append(f.Drives, Drive{IN1: in1, IN2: in2})
	if f.DriveError != nil && (in1 != 0 || in2 != 0) {
		return f.DriveError
	}
	return nil
}

// Close marks the bridge as closed.
func (f *FakeBridge) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Closed = true
	return nil
}

// History returns a copy of the recorded commands.
func (f *FakeBridge) History() []Drive {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]Drive(nil), f.Drives...)
}

// Last returns the most recent command (idle if none).
func (f *FakeBridge) Last() Drive {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.Drives) == 0 {
		return Drive{}
	}
	return f.Drives[len(f.Drives)-1]
}

// Reset clears the recorded commands.
func (f *FakeBridge) Reset() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Drives = nil
}

// FakeADC returns a fixed millivolt reading.
type FakeADC struct {
	mu        sync.Mutex
	MilliVolt float64
	ReadError error
	Reads     int
}

// NewFakeADC creates a FakeADC that always reads mv.
func NewFakeADC(mv float64) *FakeADC {
	return &FakeADC{MilliVolt: mv}
}

// ReadMilliVolts returns the configured value or error.
func (f *FakeADC) ReadMilliVolts() (float64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Reads++
	if f.ReadError != nil {
		return 0, f.ReadError
	}
	return f.MilliVolt, nil
}

// Set changes the reading.
func (f *FakeADC) Set(mv float64) {
	f.mu.Lock()
	f.MilliVolt = mv
	f.mu.Unlock()
}

// Close is a no-op.
func (f *FakeADC) Close() error {
	return nil
}
