// Package pgperr declares the error taxonomy shared by the armor state
// machine and the packet ingestion pipeline. Keeping the sentinel
// values in their own leaf package lets both xpki/armor (C1/C2) and
// xpki/pgp (C3-C5) classify failures with errors.Is without importing
// each other.
package pgperr

import "github.com/juju/errors"

// Kind classifies a pipeline failure. The zero value is not a valid Kind.
type Kind int

const (
	// KindLineTooLong marks an armor line exceeding the 20000 byte limit.
	KindLineTooLong Kind = iota + 1
	// KindIncompleteLine marks a line left without a terminator at EOF.
	KindIncompleteLine
	// KindInvalidArmor marks any armor-level structural or CRC failure.
	KindInvalidArmor
	// KindNoValidData marks a stream with no recognizable armor at all.
	KindNoValidData
	// KindInvalidPacket marks a parser-layer framing failure.
	KindInvalidPacket
	// KindUnexpected marks a packet forbidden in the current sequencer mode.
	KindUnexpected
	// KindPubkeyAlgo marks an unsupported public-key algorithm.
	KindPubkeyAlgo
	// KindDigestAlgo marks an unsupported digest algorithm.
	KindDigestAlgo
	// KindSigClass marks an unsupported signature class.
	KindSigClass
	// KindNoSecretKey marks a decryption needing an unavailable secret key.
	KindNoSecretKey
	// KindBadSign marks a signature that failed cryptographic verification.
	KindBadSign
	// KindOrphan marks a subkey/user-id/signature with no enclosing root packet.
	KindOrphan
	// KindGeneral is a collapsed internal failure with no finer classification.
	KindGeneral
)

func (k Kind) String() string {
	switch k {
	case KindLineTooLong:
		return "LineTooLong"
	case KindIncompleteLine:
		return "IncompleteLine"
	case KindInvalidArmor:
		return "InvalidArmor"
	case KindNoValidData:
		return "NoValidData"
	case KindInvalidPacket:
		return "InvalidPacket"
	case KindUnexpected:
		return "Unexpected"
	case KindPubkeyAlgo:
		return "PubkeyAlgo"
	case KindDigestAlgo:
		return "DigestAlgo"
	case KindSigClass:
		return "SigClass"
	case KindNoSecretKey:
		return "NoSecretKey"
	case KindBadSign:
		return "BadSign"
	case KindOrphan:
		return "Orphan"
	default:
		return "General"
	}
}

// pipelineError is the concrete error type carrying a Kind. Callers
// wrap it with errors.Trace/errors.Annotate (github.com/juju/errors)
// for diagnostics the same way the rest of this module does; Cause
// unwraps back to the *pipelineError so Classify still works after
// annotation.
type pipelineError struct {
	kind Kind
	msg  string
}

func (e *pipelineError) Error() string { return e.kind.String() + ": " + e.msg }

// Classify returns the taxonomy classification of err, or KindGeneral
// if err was not constructed by this package.
func Classify(err error) Kind {
	if pe, ok := errors.Cause(err).(*pipelineError); ok {
		return pe.kind
	}
	return KindGeneral
}

// New constructs an error of the given Kind with a formatted message.
func New(kind Kind, msg string) error {
	return &pipelineError{kind: kind, msg: msg}
}

// Is reports whether err is a pipeline error of the given Kind.
func Is(err error, kind Kind) bool {
	return Classify(err) == kind
}
