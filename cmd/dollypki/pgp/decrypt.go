package pgp

import (
	"bytes"
	"fmt"

	"github.com/lamhaoyin/openpgpingest/cmd/dollypki/cli"
	"github.com/lamhaoyin/openpgpingest/ctl"
	"github.com/lamhaoyin/openpgpingest/xpki/pgp"
	"github.com/pkg/errors"
)

// DecryptFlags specifies flags for the Decrypt command.
type DecryptFlags struct {
	// Keyring specifies the file with one or more armored secret key blocks
	Keyring *string
	// Input specifies the encrypted message file, or "-" for stdin
	Input *string
	// Passphrase supplies the symmetric passphrase for conventionally
	// encrypted messages; leave empty for public-key encryption
	Passphrase *string
	// Output specifies where the recovered literal data body is written,
	// defaulting to stdout when empty
	Output *string
}

func ensureDecryptFlags(f *DecryptFlags) *DecryptFlags {
	var empty = ""
	if f.Passphrase == nil {
		f.Passphrase = &empty
	}
	if f.Output == nil {
		f.Output = &empty
	}
	return f
}

// Decrypt runs the full-mode sequencer over an encrypted message,
// recovering the literal data body while checking any embedded
// signatures along the way.
func Decrypt(c ctl.Control, p interface{}) error {
	flags := ensureDecryptFlags(p.(*DecryptFlags))

	keyring, err := loadKeyring(*flags.Keyring)
	if err != nil {
		return err
	}

	data, err := readInput(*flags.Input)
	if err != nil {
		return errors.WithMessage(err, "read input")
	}

	reporter := newReporter()
	body, _, err := unwrapArmor(data, *flags.Input, reporter)
	if err != nil {
		return errors.WithMessage(err, "decode armor")
	}

	seq := pgp.NewSequencer(pgp.ModeFull, keyring, reporter, fileDetachedSource{})
	if *flags.Passphrase != "" {
		seq.SetPassphrase([]byte(*flags.Passphrase))
	}

	var plaintext bytes.Buffer
	seq.SetPlaintextSink(&plaintext)

	if err := seq.ProcessPackets(body); err != nil {
		return errors.WithMessage(err, "decrypt")
	}

	for _, tree := range seq.Trees {
		for _, sig := range tree.Signatures {
			c.Println(fmt.Sprintf("%s keyid=%016X selfsig=%v", sig.Outcome, sig.KeyID, sig.SelfSig))
		}
	}

	if *flags.Output == "" {
		c.Print(plaintext.String())
		return nil
	}
	return cli.WriteFile(*flags.Output, plaintext.Bytes(), 0600)
}
