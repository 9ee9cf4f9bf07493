package pgp

import (
	"fmt"

	"github.com/lamhaoyin/openpgpingest/audit"
	"github.com/lamhaoyin/openpgpingest/metrics"
	"github.com/lamhaoyin/openpgpingest/xlog"
)

// Reporter is the status/audit collaborator (C6): it turns a
// verification or armor outcome into a structured log line, an
// optional audit event, and an optional metrics counter increment, so
// the sequencer and tree processor never talk to xlog/audit/metrics
// directly. Every collaborator is optional: a zero-value Reporter
// (or one built with NewReporter(nil, nil, nil)) still logs through
// the package logger, so the pipeline runs headless in library mode.
type Reporter struct {
	log     xlog.Logger
	auditor audit.Auditor
	incr    func(status string)
}

// reporterSource implements audit.Source for events raised by this package.
type reporterSource struct{}

func (reporterSource) ID() int       { return 1 }
func (reporterSource) String() string { return "xpki/pgp" }

// reporterEventType implements audit.EventType for one of the four status codes.
type reporterEventType string

func (t reporterEventType) ID() int      { return 1 }
func (t reporterEventType) String() string { return string(t) }

// NewReporter builds a Reporter. log, auditor and incr may all be nil.
func NewReporter(log xlog.Logger, auditor audit.Auditor, incr func(status string)) *Reporter {
	return &Reporter{log: log, auditor: auditor, incr: incr}
}

func (r *Reporter) logger() xlog.Logger {
	if r != nil && r.log != nil {
		return r.log
	}
	return logger
}

// emit is the shared write_status implementation: one status code plus
// a human-readable message, fanned out to whichever collaborators were
// configured.
func (r *Reporter) emit(status, identity, message string) {
	r.logger().KV(xlog.INFO, "status", status, "message", message)
	if r == nil {
		return
	}
	if r.auditor != nil {
		r.auditor.Event(audit.New(identity, "", reporterSource{}, reporterEventType(status), 0, message))
	}
	if r.incr != nil {
		r.incr(status)
	} else {
		metrics.IncrCounter([]string{"pgp", "status"}, 1, metrics.Tag{Name: "code", Value: status})
	}
}

// GoodSig reports a signature that verified successfully.
func (r *Reporter) GoodSig(keyID string, signer string) {
	r.emit("GOODSIG", signer, fmt.Sprintf("keyid=%s signer=%q", keyID, signer))
}

// BadSig reports a signature that parsed and verified but did not match.
func (r *Reporter) BadSig(keyID string, signer string) {
	r.emit("BADSIG", signer, fmt.Sprintf("keyid=%s signer=%q", keyID, signer))
}

// ErrSig reports a signature that could not be checked at all (missing
// key, unsupported algorithm, malformed packet).
func (r *Reporter) ErrSig(keyID string, reason string) {
	r.emit("ERRSIG", "", fmt.Sprintf("keyid=%s reason=%s", keyID, reason))
}

// BadArmor reports an armor-layer failure (CRC mismatch, truncated
// framing, and the like) — the fatal-exit hook from §7 maps to this
// report plus the caller's own error return.
func (r *Reporter) BadArmor(reason string) {
	r.emit("BADARMOR", "", reason)
}
