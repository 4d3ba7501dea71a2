package pd

// ArraySize returns the length of a named array.
func (s *Session) ArraySize(name string) (int, error) {
	n, err := s.eng.ArraySize(name)
	return n, engineErr("pd.ArraySize", name, err)
}

// ResizeArray changes a named array's length.
func (s *Session) ResizeArray(name string, size int) error {
	return engineErr("pd.ResizeArray", name, s.eng.ResizeArray(name, size))
}

// ReadArray fills dst from a named array starting at offset.
func (s *Session) ReadArray(dst []float32, name string, offset int) error {
	return engineErr("pd.ReadArray", name, s.eng.ReadArray(dst, name, offset))
}

// WriteArray copies src into a named array starting at offset.
func (s *Session) WriteArray(name string, offset int, src []float32) error {
	return engineErr("pd.WriteArray", name, s.eng.WriteArray(name, offset, src))
}
