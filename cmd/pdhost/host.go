package main

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"sync"
	"unicode"

	"go.uber.org/zap"

	"github.com/justyntemme/gopd/pkg/atom"
	"github.com/justyntemme/gopd/pkg/audio"
	"github.com/justyntemme/gopd/pkg/config"
	"github.com/justyntemme/gopd/pkg/debug"
	"github.com/justyntemme/gopd/pkg/instance"
	"github.com/justyntemme/gopd/pkg/pd"
)

// host runs one patch in every configured instance.
type host struct {
	cfg    *config.Config
	sess   *pd.Session
	insts  []*instance.Instance
	events *eventLog
	prof   *debug.Profiler
	log    *zap.Logger
	runID  string

	in, out []float32
	peaks   []float32
	blocks  int
	dsp     bool

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

func newHost(cfg *config.Config, runID string, sink func(string)) (*host, error) {
	log := debug.Named("pdhost").With(zap.String("run", runID))
	prof := debug.NewProfiler()

	sess, err := pd.New(newEngine(), pd.WithLogger(log), pd.WithProfiler(prof))
	if err != nil {
		return nil, err
	}
	h := &host{
		cfg:    cfg,
		sess:   sess,
		insts:  []*instance.Instance{sess.Main()},
		events: newEventLog(sess.Engine(), sink),
		prof:   prof,
		log:    log,
		runID:  runID,
	}
	if err := h.setup(); err != nil {
		_ = sess.Close()
		return nil, err
	}
	return h, nil
}

func (h *host) setup() error {
	cfg := h.cfg
	if err := h.events.install(h.sess.Hooks()); err != nil {
		return err
	}
	h.sess.SetVerbose(cfg.Verbose)

	for len(h.insts) < cfg.Instances {
		inst, err := h.sess.NewInstance()
		if err != nil {
			return err
		}
		h.insts = append(h.insts, inst)
	}

	for _, inst := range h.insts {
		err := inst.Do(func() error {
			for _, dir := range cfg.SearchPaths {
				h.sess.AddToSearchPath(dir)
			}
			if err := inst.InitAudio(cfg.Audio.Inputs, cfg.Audio.Outputs, cfg.Audio.SampleRate); err != nil {
				return err
			}
			for _, name := range cfg.Bindings {
				if _, err := h.sess.Bind(name); err != nil {
					return err
				}
			}
			if cfg.Patch != "" {
				if _, err := h.sess.Open(filepath.Base(cfg.Patch), filepath.Dir(cfg.Patch)); err != nil {
					return err
				}
			}
			return h.sess.ComputeAudio(true)
		})
		if err != nil {
			return fmt.Errorf("instance %d: %w", inst.Number(), err)
		}
	}
	h.dsp = true

	frames := cfg.Audio.BlockTicks * h.sess.BlockSize()
	h.in = make([]float32, frames*cfg.Audio.Inputs)
	h.out = make([]float32, frames*cfg.Audio.Outputs)
	h.peaks = make([]float32, len(h.insts))

	if !cfg.Drain.PerBlock {
		h.startDrains()
	}
	h.log.Debug("host ready",
		zap.Int("instances", len(h.insts)),
		zap.Int("frames", frames),
		zap.Bool("per_block", cfg.Drain.PerBlock))
	return nil
}

// startDrains runs a timed drain loop per instance.
func (h *host) startDrains() {
	ctx, cancel := context.WithCancel(context.Background())
	h.cancel = cancel
	for _, inst := range h.insts {
		inst := inst
		h.wg.Add(1)
		go func() {
			defer h.wg.Done()
			_ = h.sess.Bridge().Run(ctx, inst, h.cfg.Drain.Interval)
		}()
	}
}

// send delivers a message line to every instance. The first word is the
// receiver; the rest follow the engine's message syntax.
func (h *host) send(line string) error {
	recv, rest := splitWord(line)
	if recv == "" {
		return errors.New("empty message")
	}
	args := atom.Parse(rest)
	for _, inst := range h.insts {
		if err := inst.Do(func() error { return sendAtoms(h.sess, recv, args) }); err != nil {
			return err
		}
	}
	return nil
}

func sendAtoms(s *pd.Session, recv string, args []atom.Atom) error {
	if len(args) == 0 {
		return s.SendBang(recv)
	}
	if v, ok := args[0].AsFloat(); ok {
		if len(args) == 1 {
			return s.SendFloat(recv, v)
		}
		return s.SendList(recv, args...)
	}
	sel, _ := args[0].AsSymbol()
	rest := args[1:]
	switch {
	case sel == "bang" && len(rest) == 0:
		return s.SendBang(recv)
	case sel == "float" && len(rest) == 1 && rest[0].IsFloat():
		v, _ := rest[0].AsFloat()
		return s.SendFloat(recv, v)
	case sel == "symbol" && len(rest) == 1 && rest[0].IsSymbol():
		sym, _ := rest[0].AsSymbol()
		return s.SendSymbol(recv, sym)
	case sel == "list":
		return s.SendList(recv, rest...)
	default:
		return s.SendMessage(recv, sel, rest...)
	}
}

func splitWord(s string) (word, rest string) {
	s = strings.TrimSpace(s)
	i := strings.IndexFunc(s, unicode.IsSpace)
	if i < 0 {
		return s, ""
	}
	return s[:i], s[i:]
}

// process runs one buffer through every instance and drains it when
// draining per block.
func (h *host) process() error {
	ticks := h.cfg.Audio.BlockTicks
	for i, inst := range h.insts {
		err := inst.Do(func() error {
			defer h.prof.Start("process")()
			audio.Clear(h.out)
			if err := h.sess.ProcessFloat(ticks, h.in, h.out); err != nil {
				return err
			}
			if p := audio.Peak(h.out); p > h.peaks[i] {
				h.peaks[i] = p
			}
			if h.cfg.Drain.PerBlock {
				h.sess.Drain()
			}
			return nil
		})
		if err != nil {
			return fmt.Errorf("instance %d: %w", inst.Number(), err)
		}
	}
	h.blocks++
	return nil
}

// setDSP switches audio computation in every instance.
func (h *host) setDSP(on bool) error {
	for _, inst := range h.insts {
		if err := inst.Do(func() error { return h.sess.ComputeAudio(on) }); err != nil {
			return err
		}
	}
	h.dsp = on
	return nil
}

func (h *host) summary() string {
	control, midi := h.sess.Bridge().Drains()
	s := fmt.Sprintf("summary: blocks=%d ticks=%d events=%d drains=%d/%d",
		h.blocks, h.blocks*h.cfg.Audio.BlockTicks, h.events.Count(), control, midi)
	for i, p := range h.peaks {
		s += fmt.Sprintf(" peak[%d]=%.3f", h.insts[i].Number(), p)
	}
	return s
}

func (h *host) close() error {
	if h.cancel != nil {
		h.cancel()
		h.wg.Wait()
	}
	if st, ok := h.prof.Stats("process"); ok {
		h.log.Debug("processing stats", zap.Uint64("blocks", st.Count), zap.Duration("avg", st.Average()))
	}
	return h.sess.Close()
}
