package ipc

import (
	"bufio"
	"errors"
	"fmt"
	"net"
	"strings"
)

// ErrPrefix marks lines the server wrote to the command's error stream.
const ErrPrefix = "ERR: "

// ErrRemote is returned by Send when the server reported an error.
var ErrRemote = errors.New("remote command failed")

// Send connects to a Server listening on path, issues msg as a command line and
// returns everything the server wrote back. Lines written to the error stream
// are collected into the returned error.
func Send(path, msg string) (string, error) {
	conn, err := net.Dial("unix", path)
	if err != nil {
		return "", fmt.Errorf("unable to connect to %s: %w", path, err)
	}
	defer conn.Close()

	_, err = conn.Write([]byte(msg + "\n"))
	if err != nil {
		return "", fmt.Errorf("unable to send message to %s: %w", path, err)
	}

	// the server closes the connection once the command is done
	var out, errOut []string
	scanner := bufio.NewScanner(conn)
	for scanner.Scan() {
		line := scanner.Text()
		if rest, ok := strings.CutPrefix(line, ErrPrefix); ok {
			errOut = append(errOut, rest)
			continue
		}
		out = append(out, line)
	}

	err = scanner.Err()
	if err != nil {
		return strings.Join(out, "\n"), fmt.Errorf("unable to read response from %s: %w", path, err)
	}

	resp := strings.Join(out, "\n")
	if len(errOut) > 0 {
		return resp, fmt.Errorf("%w: %s", ErrRemote, strings.Join(errOut, "; "))
	}

	return resp, nil
}
