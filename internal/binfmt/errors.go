package binfmt

import (
	"fmt"
)

// DataError describes malformed or truncated input. Data holds the bytes
// being decoded (possibly partial) and Off the offset of the failure.
type DataError struct {
	Data []byte
	Off  int
	Err  error
	Msg  string
}

func Errorf(data []byte, off int, err error, format string, args ...any) error {
	return &DataError{data, off, err, fmt.Sprintf(format, args...)}
}

func (e *DataError) Unwrap() error {
	return e.Err
}

func (e *DataError) Error() string {
	const prefixLen = 64
	const suffixLen = 32
	n := len(e.Data)
	if n == 0 {
		if e.Err != nil {
			return fmt.Sprintf("%s at %d: %v", e.Msg, e.Off, e.Err)
		}
		return fmt.Sprintf("%s at %d", e.Msg, e.Off)
	}
	if n <= prefixLen+suffixLen {
		if e.Err != nil {
			return fmt.Sprintf("%s at %d: %v: (%d) %x", e.Msg, e.Off, e.Err, n, e.Data)
		} else {
			return fmt.Sprintf("%s at %d: (%d) %x", e.Msg, e.Off, n, e.Data)
		}
	} else {
		p, s := e.Data[:prefixLen], e.Data[n-suffixLen:]
		if e.Err != nil {
			return fmt.Sprintf("%s at %d: %v: (%d) %x...%x", e.Msg, e.Off, e.Err, n, p, s)
		} else {
			return fmt.Sprintf("%s at %d: (%d) %x...%x", e.Msg, e.Off, n, p, s)
		}
	}
}
