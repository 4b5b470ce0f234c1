package process

import (
	"io"
	"os"
)

// PTY hosts one child process on a pseudo terminal.
type PTY interface {
	Start(command string, args []string, env []string) error
	Wait() error
	ProcessState() *os.ProcessState
	Process() *os.Process
	// File is the controller side of the terminal, nil before Start.
	File() *os.File
	// CopyIO pumps stdin to the child and the child's output to stdout
	// until the child closes its side. Either handler may be nil.
	CopyIO(stdin io.Reader, stdout io.Writer, inputHandler, outputHandler func([]byte)) error
	// Restore puts the host terminal back into its original mode.
	Restore() error
}
