// Package pgp wires the xpki/pgp sequencer and xpki/gpg keyring loader
// into dollypki subcommands for checking and decrypting OpenPGP
// messages from the command line.
package pgp

import (
	"bytes"
	"crypto"
	_ "crypto/sha256"
	"encoding/hex"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/lamhaoyin/openpgpingest/cmd/dollypki/cli"
	"github.com/lamhaoyin/openpgpingest/xlog"
	"github.com/lamhaoyin/openpgpingest/xpki/armor"
	"github.com/lamhaoyin/openpgpingest/xpki/gpg"
	"github.com/lamhaoyin/openpgpingest/xpki/pgp"
	"github.com/lamhaoyin/openpgpingest/xpki/pgperr"
	"github.com/pkg/errors"
	goopenpgp "golang.org/x/crypto/openpgp"
)

var logger = xlog.NewPackageLogger("github.com/lamhaoyin/openpgpingest/cmd", "pgp")

// fileDetachedSource resolves a detached signature's data file by name
// against the local filesystem, the ask_for_detached_datafile binding a
// CLI caller actually wants.
type fileDetachedSource struct{}

func (fileDetachedSource) Open(name string) (io.Reader, error) {
	f, err := os.Open(name)
	if err != nil {
		return nil, errors.WithStack(err)
	}
	return f, nil
}

func loadKeyring(path string) (goopenpgp.EntityList, error) {
	if path == "" {
		return nil, nil
	}
	kr, err := gpg.KeyRingFromFile(path)
	if err != nil {
		return nil, errors.WithMessage(err, "load keyring")
	}
	return kr, nil
}

func newReporter() *pgp.Reporter {
	return pgp.NewReporter(logger, nil, nil)
}

// readInput reads the message file, or stdin when name is "-".
func readInput(name string) ([]byte, error) {
	return cli.ReadStdin(name)
}

// unwrapArmor strips ASCII armor from data when present, returning the
// raw packet stream either way, plus the base name used to guess a
// detached signature's data file. Any armor-layer failure is reported
// through reporter.BadArmor (write_status, §6) before being returned.
func unwrapArmor(data []byte, name string, reporter *pgp.Reporter) (io.Reader, string, error) {
	sigFilename := filepath.Base(name)
	peek := data[:minInt(len(data), 80)]

	if !armor.UseArmorFilter(peek) {
		return bytes.NewReader(data), sigFilename, nil
	}

	if bytes.Contains(peek, []byte("BEGIN PGP SIGNED MESSAGE")) {
		packetStream, _, err := armor.DecodeClearSigned(data)
		if err != nil {
			classified := classifyArmorErr(err)
			reporter.BadArmor(classified.Error())
			return nil, "", errors.WithMessage(classified, "decode clearsigned armor")
		}
		return bytes.NewReader(packetStream), sigFilename, nil
	}

	body, err := decodeArmorFiltered(data)
	if err != nil {
		reporter.BadArmor(err.Error())
		return nil, "", errors.WithMessage(err, "decode armor")
	}

	if strings.HasSuffix(sigFilename, ".asc") {
		sigFilename = strings.TrimSuffix(sigFilename, ".asc")
	}
	return bytes.NewReader(body), sigFilename, nil
}

// decodeArmorFiltered drives armor.Reader and pgp.DigestTap as chained
// Filter stages (C1/C2 feeding C3): the armor state machine decodes the
// radix-64 body and the digest tap downstream forwards those bytes
// unchanged while accumulating a whole-message checksum logged for
// diagnostics, the way a Filter pipeline stage is meant to compose.
func decodeArmorFiltered(data []byte) ([]byte, error) {
	var ar pgp.Filter = armor.NewReader(bytes.NewReader(data))
	if err := ar.Init(); err != nil {
		return nil, classifyArmorErr(err)
	}
	defer ar.Close()

	rawTap := pgp.NewDigestTap(ar, []crypto.Hash{crypto.SHA256})
	var tap pgp.Filter = rawTap
	if err := tap.Init(); err != nil {
		return nil, classifyArmorErr(err)
	}
	defer tap.Close()

	var body bytes.Buffer
	if _, err := io.Copy(&body, tap); err != nil && err != io.EOF {
		return nil, classifyArmorErr(err)
	}
	logger.KV(xlog.DEBUG, "armor_sha256", hex.EncodeToString(rawTap.Sum(crypto.SHA256)))
	return body.Bytes(), nil
}

// classifyArmorErr annotates err with the pgperr taxonomy kind it maps
// to, so a caller logging the error can see InvalidArmor/LineTooLong/
// NoValidData alongside the underlying message.
func classifyArmorErr(err error) error {
	return errors.Errorf("%s: %s", pgperr.Classify(err), err.Error())
}

func minInt(a, b int) int {
	if a < b {
		return a
	}
	return b
}
