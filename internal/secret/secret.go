// Package secret generates the long-lived signing secret handed to the
// authentication service.
package secret

import (
	"crypto/rand"
	"errors"
	"fmt"
	"io"

	"github.com/awnumar/memguard"

	"github.com/jmcleod/registrar/internal/util"
)

// Size is the number of random bytes in a secret. Hex encoded it is
// 2*Size characters long.
const Size = 32

// Generate reads Size bytes from reader and returns them hex encoded.
// A nil reader uses crypto/rand. The raw bytes only ever live in a
// memguard buffer, which is destroyed before returning.
func Generate(reader io.Reader) (string, error) {
	if reader == nil {
		reader = rand.Reader
	}
	buf, err := memguard.NewBufferFromReader(reader, Size)
	if buf != nil {
		defer buf.Destroy()
	}
	if err != nil {
		return "", fmt.Errorf("generate random bytes: %w", err)
	}
	if buf.Size() != Size {
		return "", fmt.Errorf("generate random bytes: short read (%d of %d)", buf.Size(), Size)
	}
	return util.HexEncode(buf.Bytes()), nil
}

// Run generates a secret and writes it to out followed by a newline.
func Run(out io.Writer, reader io.Reader) error {
	if out == nil {
		return errors.New("output is required")
	}
	s, err := Generate(reader)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(out, s)
	return err
}
