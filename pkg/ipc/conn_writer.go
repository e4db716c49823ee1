package ipc

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"net"
	"syscall"
)

// ConnWriter is an io.Writer that will relay any bytes written to it into the
// associated connection, marking every line with prefix.
type ConnWriter struct {
	conn   net.Conn
	prefix string
	err    error
}

var _ io.Writer = (*ConnWriter)(nil) // ensures we conform to the io.Writer interface

// Write will write bytes to the connection.
func (cw *ConnWriter) Write(p []byte) (int, error) {
	out := p
	if cw.prefix != "" {
		lines := bytes.SplitAfter(p, []byte("\n"))
		out = make([]byte, 0, len(p)+len(lines)*len(cw.prefix))
		for _, line := range lines {
			if len(line) == 0 {
				continue
			}
			out = append(out, cw.prefix...)
			out = append(out, line...)
		}
	}

	_, err := cw.conn.Write(out)
	if err != nil {
		if errors.Is(err, syscall.EPIPE) {
			// client is gone: don't write this to errors, but do pass it along to caller
			return 0, err
		}

		cw.err = err
		return 0, err
	}

	return len(p), nil
}

// Writeln will write a formatted message to the connection.
func (cw *ConnWriter) Writeln(format string, args ...any) {
	cw.Write([]byte(fmt.Sprintf(format+"\n", args...)))
}
