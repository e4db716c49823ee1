package ipc

import (
	"bufio"
	"net"
	"strings"

	"github.com/BitPonyLLC/weakevents/pkg/util"

	"github.com/mattn/go-shellwords"
	"github.com/spf13/cobra"
)

type acceptedConn struct {
	conn net.Conn
}

func (ac *acceptedConn) processCommand(parent *Server) {
	parent.conns.Store(ac, ac)
	defer func() {
		util.LogRecover()
		parent.conns.Delete(ac)
		ac.conn.Close()
		parent.log.Trace().Msg("client disconnected")
	}()

	parent.log.Trace().Msg("client connected")

	reader := bufio.NewReader(ac.conn)
	line, err := reader.ReadString('\n')
	if err != nil {
		parent.log.Err(err).Msg("unable to read command from client")
		return
	}

	line = strings.TrimSpace(line)
	clog := parent.log.With().Str("cmd", line).Logger()

	outWriter := &ConnWriter{conn: ac.conn}
	errWriter := &ConnWriter{conn: ac.conn, prefix: ErrPrefix}

	args, err := shellwords.Parse(line)
	if err != nil {
		errWriter.Writeln("unable to parse command: %s", line)
		return
	}

	// the command tree's writers are shared, so only one client at a time
	parent.cmdMutex.Lock()
	defer parent.cmdMutex.Unlock()

	setWriters(parent.cmd, outWriter, errWriter)

	clog.Debug().Msg("executing")
	parent.cmd.SetArgs(args)
	err = parent.cmd.ExecuteContext(parent.ctx)
	if err != nil {
		clog.Err(err).Msg("command failed")
	}

	if outWriter.err != nil {
		clog.Err(outWriter.err).Msg("output writer failed")
	}

	if errWriter.err != nil {
		clog.Err(errWriter.err).Msg("error writer failed")
	}
}

func setWriters(cmd *cobra.Command, out, err *ConnWriter) {
	cmd.SetOut(out)
	cmd.SetErr(err)
	for _, c := range cmd.Commands() {
		setWriters(c, out, err)
	}
}
