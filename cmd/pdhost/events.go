package main

import (
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/justyntemme/gopd/pkg/atom"
	"github.com/justyntemme/gopd/pkg/hook"
	"github.com/justyntemme/gopd/pkg/midi"
	"github.com/justyntemme/gopd/pkg/native"
)

// eventLog formats drained events as lines tagged with the number of the
// instance being drained.
type eventLog struct {
	eng  native.Engine
	sink func(line string)

	mu    sync.Mutex
	count int
}

func newEventLog(eng native.Engine, sink func(string)) *eventLog {
	return &eventLog{eng: eng, sink: sink}
}

func (l *eventLog) install(r *hook.Registry) error {
	return errors.Join(
		r.OnPrint(func(text string) {
			if text = strings.TrimRight(text, "\n"); text != "" {
				l.emit("print: %s", text)
			}
		}),
		r.OnBang(func(recv string) { l.emit("bang %s", recv) }),
		r.OnDouble(func(recv string, f float64) { l.emit("float %s: %s", recv, atom.Float(f)) }),
		r.OnSymbol(func(recv, sym string) { l.emit("symbol %s: %s", recv, sym) }),
		r.OnList(func(recv string, args []atom.Atom) { l.emit("list %s: %s", recv, atom.Join(args)) }),
		r.OnMessage(func(recv, msg string, args []atom.Atom) {
			if len(args) == 0 {
				l.emit("message %s: %s", recv, msg)
				return
			}
			l.emit("message %s: %s %s", recv, msg, atom.Join(args))
		}),
		r.OnMIDI(func(ev midi.Event) { l.emit("midi: %s", ev) }),
	)
}

func (l *eventLog) emit(format string, args ...any) {
	n := l.eng.InstanceNumber(l.eng.ThisInstance())
	line := fmt.Sprintf("[%d] ", n) + fmt.Sprintf(format, args...)

	l.mu.Lock()
	defer l.mu.Unlock()
	l.count++
	l.sink(line)
}

// Count returns how many events were delivered.
func (l *eventLog) Count() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.count
}
