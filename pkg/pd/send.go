package pd

import (
	"fmt"

	"github.com/justyntemme/gopd/pkg/atom"
	"github.com/justyntemme/gopd/pkg/midi"
	"github.com/justyntemme/gopd/pkg/pderr"
)

// SendBang sends a bang to recv.
func (s *Session) SendBang(recv string) error {
	const op = "pd.SendBang"
	if err := checkName(op, recv); err != nil {
		return err
	}
	return engineErr(op, recv, s.eng.SendBang(recv))
}

// SendFloat sends a float to recv.
func (s *Session) SendFloat(recv string, v float64) error {
	const op = "pd.SendFloat"
	if err := checkName(op, recv); err != nil {
		return err
	}
	return engineErr(op, recv, s.eng.SendFloat(recv, v))
}

// SendSymbol sends a symbol to recv.
func (s *Session) SendSymbol(recv, sym string) error {
	const op = "pd.SendSymbol"
	if err := checkName(op, recv); err != nil {
		return err
	}
	if err := checkName(op, sym); err != nil {
		return err
	}
	return engineErr(op, recv, s.eng.SendSymbol(recv, sym))
}

// SendList sends a list to recv. If any atom cannot be encoded nothing is sent.
func (s *Session) SendList(recv string, args ...atom.Atom) error {
	const op = "pd.SendList"
	if err := checkName(op, recv); err != nil {
		return err
	}
	argv, err := s.codec.EncodeList(args)
	if err != nil {
		return err
	}
	return engineErr(op, recv, s.eng.SendList(recv, argv))
}

// SendMessage sends a typed message to recv.
func (s *Session) SendMessage(recv, msg string, args ...atom.Atom) error {
	const op = "pd.SendMessage"
	if err := checkName(op, recv); err != nil {
		return err
	}
	if err := checkName(op, msg); err != nil {
		return err
	}
	argv, err := s.codec.EncodeList(args)
	if err != nil {
		return err
	}
	return engineErr(op, recv, s.eng.SendMessage(recv, msg, argv))
}

// ComputeAudio turns DSP on or off in the current instance.
func (s *Session) ComputeAudio(on bool) error {
	v := 0.0
	if on {
		v = 1
	}
	return s.SendMessage("pd", "dsp", atom.Float(v))
}

// SendMIDI sends a MIDI event into the current instance.
func (s *Session) SendMIDI(ev midi.Event) error {
	const op = "pd.SendMIDI"
	var err error
	switch e := ev.(type) {
	case midi.NoteOnEvent:
		err = s.eng.NoteOn(e.EventChannel, e.Pitch, e.Velocity)
	case midi.ControlChangeEvent:
		err = s.eng.ControlChange(e.EventChannel, e.Controller, e.Value)
	case midi.ProgramChangeEvent:
		err = s.eng.ProgramChange(e.EventChannel, e.Program)
	case midi.PitchBendEvent:
		err = s.eng.PitchBend(e.EventChannel, e.Value)
	case midi.AftertouchEvent:
		err = s.eng.Aftertouch(e.EventChannel, e.Value)
	case midi.PolyAftertouchEvent:
		err = s.eng.PolyAftertouch(e.EventChannel, e.Pitch, e.Value)
	case midi.ByteEvent:
		err = s.eng.MIDIByte(e.PortNumber, e.Byte)
	case midi.SysExEvent:
		err = s.eng.SysEx(e.PortNumber, e.Byte)
	case midi.RealtimeEvent:
		err = s.eng.SysRealtime(e.PortNumber, e.Byte)
	default:
		return pderr.InvalidInput(op, "unsupported MIDI event %T", ev)
	}
	return engineErr(op, ev.String(), err)
}

// SendSysEx sends system exclusive bytes on port.
func (s *Session) SendSysEx(port int, data []byte) error {
	for _, b := range data {
		if err := s.eng.SysEx(port, int(b)); err != nil {
			return engineErr("pd.SendSysEx", fmt.Sprintf("port %d", port), err)
		}
	}
	return nil
}

// SendSysRealtime sends a system realtime byte on port.
func (s *Session) SendSysRealtime(port int, b byte) error {
	return engineErr("pd.SendSysRealtime", fmt.Sprintf("port %d", port), s.eng.SysRealtime(port, int(b)))
}
