package sim

import (
	"runtime"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/justyntemme/gopd/pkg/native"
)

func newTestEngine(t *testing.T, opts ...Option) *Engine {
	t.Helper()
	runtime.LockOSThread()
	t.Cleanup(runtime.UnlockOSThread)

	e := New(opts...)
	_, err := e.Init()
	require.NoError(t, err)
	return e
}

func TestInitCreatesMainInstance(t *testing.T) {
	e := newTestEngine(t)

	main := e.MainInstance()
	require.NotZero(t, main)
	assert.Equal(t, main, e.ThisInstance())
	assert.Equal(t, 0, e.InstanceNumber(main))
	assert.Equal(t, 1, e.NumInstances())

	again, err := e.Init()
	assert.ErrorIs(t, err, native.ErrAlreadyInitialized)
	assert.Equal(t, main, again)
}

func TestNewInstanceBeforeInit(t *testing.T) {
	e := New()
	assert.Zero(t, e.NewInstance())
	assert.Zero(t, e.NumInstances())
}

func TestInstanceNumbersAreNeverReused(t *testing.T) {
	e := newTestEngine(t)

	a := e.NewInstance()
	b := e.NewInstance()
	assert.Equal(t, 1, e.InstanceNumber(a))
	assert.Equal(t, 2, e.InstanceNumber(b))
	assert.Equal(t, e.MainInstance(), e.ThisInstance(), "NewInstance must not change the current instance")

	e.FreeInstance(a)
	assert.Equal(t, -1, e.InstanceNumber(a))
	c := e.NewInstance()
	assert.Equal(t, 3, e.InstanceNumber(c))
	assert.Equal(t, 3, e.NumInstances())
}

func TestInstanceLimit(t *testing.T) {
	e := newTestEngine(t, WithInstanceLimit(2))
	assert.NotZero(t, e.NewInstance())
	assert.Zero(t, e.NewInstance())
}

func TestFreeMainInstanceIsNoop(t *testing.T) {
	e := newTestEngine(t)
	e.FreeInstance(e.MainInstance())
	assert.Equal(t, 1, e.NumInstances())
	assert.Equal(t, e.MainInstance(), e.ThisInstance())
}

func TestFreeInstanceRunsFreeHook(t *testing.T) {
	e := newTestEngine(t)
	inst := e.NewInstance()
	e.SetInstance(inst)

	var freed uintptr
	require.NoError(t, e.SetInstanceData(42, func(d uintptr) { freed = d }))
	assert.Equal(t, uintptr(42), e.InstanceData())

	e.FreeInstance(inst)
	assert.Equal(t, uintptr(42), freed)
	assert.Equal(t, e.MainInstance(), e.ThisInstance())
}

func TestCurrentInstanceIsPerThread(t *testing.T) {
	if runtime.GOOS != "linux" {
		t.Skip("per-thread current instance needs linux thread ids")
	}
	e := newTestEngine(t)
	other := e.NewInstance()

	var wg sync.WaitGroup
	var seenBefore, seenAfter native.Instance
	wg.Add(1)
	go func() {
		defer wg.Done()
		runtime.LockOSThread()
		defer runtime.UnlockOSThread()
		seenBefore = e.ThisInstance()
		e.SetInstance(other)
		seenAfter = e.ThisInstance()
	}()
	wg.Wait()

	assert.Zero(t, seenBefore)
	assert.Equal(t, other, seenAfter)
	assert.Equal(t, e.MainInstance(), e.ThisInstance())
}

func TestSetInstanceIgnoresUnknown(t *testing.T) {
	e := newTestEngine(t)
	e.SetInstance(native.Instance(0xdead))
	assert.Equal(t, e.MainInstance(), e.ThisInstance())

	e.SetInstance(0)
	assert.Zero(t, e.ThisInstance())
	_, err := e.Gensym("x")
	assert.ErrorIs(t, err, native.ErrNoInstance)
}

func TestGensymInternsPerInstance(t *testing.T) {
	e := newTestEngine(t)

	a, err := e.Gensym("foo")
	require.NoError(t, err)
	b, err := e.Gensym("foo")
	require.NoError(t, err)
	assert.Equal(t, a, b)
	assert.Equal(t, "foo", string(e.SymbolName(a)))

	other := e.NewInstance()
	e.SetInstance(other)
	c, err := e.Gensym("foo")
	require.NoError(t, err)
	assert.NotEqual(t, a, c)

	_, err = e.Gensym("a\x00b")
	assert.ErrorIs(t, err, native.ErrBadArgument)
	assert.Nil(t, e.SymbolName(native.Symbol(1)))
}

func TestQueuedInitRequiresInstance(t *testing.T) {
	e := newTestEngine(t)
	e.SetInstance(0)
	assert.ErrorIs(t, e.QueuedInit(), native.ErrNoInstance)
}

func TestSearchPathAndVerbose(t *testing.T) {
	e := newTestEngine(t)
	e.SetVerbose(true)
	assert.True(t, e.Verbose())

	dir := t.TempDir()
	e.AddToSearchPath(dir)
	_, err := e.OpenPatch("missing.pd", "")
	assert.Error(t, err)
	e.ClearSearchPath()
}
