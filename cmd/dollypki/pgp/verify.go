package pgp

import (
	"fmt"

	"github.com/lamhaoyin/openpgpingest/ctl"
	"github.com/lamhaoyin/openpgpingest/xpki/pgp"
	"github.com/pkg/errors"
)

// VerifyFlags specifies flags for the Verify command.
type VerifyFlags struct {
	// Keyring specifies the file with one or more armored public key blocks
	Keyring *string
	// Input specifies the signed message file, or "-" for stdin
	Input *string
	// SignedFiles lists the detached data file(s) a detached signature covers
	SignedFiles *[]string
}

func ensureVerifyFlags(f *VerifyFlags) *VerifyFlags {
	if f.SignedFiles == nil {
		f.SignedFiles = &[]string{}
	}
	return f
}

// Verify runs the sigs-only sequencer over a signed message and reports
// each signature's outcome.
func Verify(c ctl.Control, p interface{}) error {
	flags := ensureVerifyFlags(p.(*VerifyFlags))

	keyring, err := loadKeyring(*flags.Keyring)
	if err != nil {
		return err
	}

	data, err := readInput(*flags.Input)
	if err != nil {
		return errors.WithMessage(err, "read input")
	}

	reporter := newReporter()
	body, sigFilename, err := unwrapArmor(data, *flags.Input, reporter)
	if err != nil {
		return errors.WithMessage(err, "decode armor")
	}

	seq := pgp.NewSequencer(pgp.ModeSigsOnly, keyring, reporter, fileDetachedSource{})
	if err := seq.ProcessSignaturePackets(body, *flags.SignedFiles, sigFilename); err != nil {
		return errors.WithMessage(err, "verify")
	}

	bad := 0
	for _, tree := range seq.Trees {
		for _, sig := range tree.Signatures {
			c.Println(fmt.Sprintf("%s keyid=%016X selfsig=%v", sig.Outcome, sig.KeyID, sig.SelfSig))
			if sig.Outcome != "!" {
				bad++
			}
		}
	}
	if bad > 0 {
		return errors.Errorf("%d signature(s) did not verify", bad)
	}
	return nil
}
