package dbdriver

import (
	"os"
	"os/exec"
)

// openStdin opens file and wires it as cmd's stdin, returning the file so
// the caller can close it once the command has run.
func openStdin(cmd *exec.Cmd, file string) (*os.File, error) {
	f, err := os.Open(file)
	if err != nil {
		return nil, err
	}
	cmd.Stdin = f
	return f, nil
}
