package sim

import "github.com/justyntemme/gopd/pkg/native"

// ArraySize returns the length of a table in the current instance.
func (e *Engine) ArraySize(name string) (int, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	arr, err := e.arrayLocked(name)
	return len(arr), err
}

// ResizeArray changes a table's length, keeping existing samples.
func (e *Engine) ResizeArray(name string, size int) error {
	if size < 1 {
		size = 1
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	arr, err := e.arrayLocked(name)
	if err != nil {
		return err
	}
	resized := make([]float32, size)
	copy(resized, arr)
	e.currentLocked().arrays[name] = resized
	return nil
}

// ReadArray copies len(dst) samples starting at offset.
func (e *Engine) ReadArray(dst []float32, name string, offset int) error {
	e.mu.RLock()
	defer e.mu.RUnlock()
	arr, err := e.arrayLocked(name)
	if err != nil {
		return err
	}
	if offset < 0 || offset+len(dst) > len(arr) {
		return native.ErrOutOfRange
	}
	copy(dst, arr[offset:])
	return nil
}

// WriteArray copies src into the table starting at offset.
func (e *Engine) WriteArray(name string, offset int, src []float32) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	arr, err := e.arrayLocked(name)
	if err != nil {
		return err
	}
	if offset < 0 || offset+len(src) > len(arr) {
		return native.ErrOutOfRange
	}
	copy(arr[offset:], src)
	return nil
}

func (e *Engine) arrayLocked(name string) ([]float32, error) {
	inst := e.currentLocked()
	if inst == nil {
		return nil, native.ErrNoInstance
	}
	arr, ok := inst.arrays[name]
	if !ok {
		return nil, native.ErrNoArray
	}
	return arr, nil
}
