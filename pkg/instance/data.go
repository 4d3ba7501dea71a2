package instance

import (
	"errors"
	"reflect"
	"sync"

	"github.com/justyntemme/gopd/pkg/native"
	"github.com/justyntemme/gopd/pkg/pderr"
)

// The engine stores one word of data per instance. Host values live in
// this table and the engine holds their id.
var (
	dataMu     sync.Mutex
	dataTable  = make(map[uintptr]*dataEntry)
	nextDataID uintptr = 1
)

type dataEntry struct {
	typ     reflect.Type
	value   any
	release func()
}

func storeData(e *dataEntry) uintptr {
	dataMu.Lock()
	defer dataMu.Unlock()
	id := nextDataID
	nextDataID++
	dataTable[id] = e
	return id
}

func loadData(id uintptr) *dataEntry {
	dataMu.Lock()
	defer dataMu.Unlock()
	return dataTable[id]
}

// releaseData removes id from the table and runs its release function.
// It has the native.FreeFunc signature so the engine can call it.
func releaseData(id uintptr) {
	dataMu.Lock()
	e, ok := dataTable[id]
	delete(dataTable, id)
	dataMu.Unlock()
	if ok && e.release != nil {
		e.release()
	}
}

var _ native.FreeFunc = releaseData

func forgetData(id uintptr) {
	dataMu.Lock()
	delete(dataTable, id)
	dataMu.Unlock()
}

// SetData attaches data to the instance, replacing and releasing any
// previous data. release, if not nil, runs when the data is replaced or the
// instance is closed.
func SetData[T any](i *Instance, data T, release func(T)) error {
	e := &dataEntry{typ: reflect.TypeOf((*T)(nil)).Elem(), value: data}
	if release != nil {
		e.release = func() { release(data) }
	}
	id := storeData(e)

	var prev uintptr
	err := i.Do(func() error {
		prev = i.eng.InstanceData()
		return i.eng.SetInstanceData(id, releaseData)
	})
	if err != nil {
		forgetData(id)
		if errors.Is(err, pderr.ErrAlreadyReleased) {
			return err
		}
		return pderr.Wrap("instance.SetData", pderr.KindEngine, err, "set instance data failed")
	}
	if prev != 0 {
		releaseData(prev)
	}
	return nil
}

// Data returns the instance's data if it was stored with type T.
func Data[T any](i *Instance) (T, bool) {
	var zero T
	var id uintptr
	if err := i.Do(func() error {
		id = i.eng.InstanceData()
		return nil
	}); err != nil || id == 0 {
		return zero, false
	}
	e := loadData(id)
	if e == nil || e.typ != reflect.TypeOf((*T)(nil)).Elem() {
		return zero, false
	}
	if e.value == nil {
		return zero, true
	}
	v, ok := e.value.(T)
	return v, ok
}

// ClearData detaches and releases the instance's data.
func (i *Instance) ClearData() error {
	return i.Do(func() error {
		i.dropDataLocked()
		return nil
	})
}

// dropDataLocked releases the current instance's data. The caller holds the
// OS thread with i current.
func (i *Instance) dropDataLocked() {
	id := i.eng.InstanceData()
	if id == 0 {
		return
	}
	_ = i.eng.SetInstanceData(0, nil)
	releaseData(id)
}
