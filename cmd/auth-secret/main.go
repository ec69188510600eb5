// Command auth-secret prints a new REGISTRAR_AUTH_SECRET.
package main

import (
	"errors"
	"flag"
	"io"
	"os"

	"github.com/jmcleod/registrar/config"
	"github.com/jmcleod/registrar/internal/secret"
)

var errUnexpectedArgs = errors.New("unexpected arguments")

func main() {
	if err := run(os.Args[1:], os.Stdout, nil); err != nil {
		config.Exitf("auth-secret: %v", err)
	}
}

// run parses args and writes one secret to out. A nil reader uses
// crypto/rand.
func run(args []string, out io.Writer, reader io.Reader) error {
	fs := flag.NewFlagSet("auth-secret", flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() > 0 {
		return errUnexpectedArgs
	}
	return secret.Run(out, reader)
}
