package pgp

import (
	"crypto"
	"fmt"

	"golang.org/x/crypto/openpgp"
	"golang.org/x/crypto/openpgp/packet"

	"github.com/lamhaoyin/openpgpingest/xpki/pgperr"
)

// sigOutcome classifies the result of do_check_sig, mirroring the
// {good, bad, no-pubkey, other} classification from §4.5.
type sigOutcome int

const (
	sigOutcomeGood sigOutcome = iota
	sigOutcomeBad
	sigOutcomeNoPubkey
	sigOutcomeOther
)

func (o sigOutcome) marker() string {
	switch o {
	case sigOutcomeGood:
		return "!"
	case sigOutcomeBad:
		return "-"
	case sigOutcomeNoPubkey:
		return "?"
	default:
		return "%"
	}
}

// SignatureResult records the outcome of one do_check_sig call for a
// caller that wants the full detail rather than just status lines.
type SignatureResult struct {
	KeyID      uint64
	Outcome    string // "!", "-", "?", "%"
	SelfSig    bool
	Err        error
}

// Tree is one flushed packet tree, ready for the tree-processor walk.
type Tree struct {
	seq  *Sequencer
	list *nodeList

	// Signatures accumulates every SignatureResult produced while
	// processing this tree.
	Signatures []SignatureResult
}

func newTree(seq *Sequencer, list *nodeList) (*Tree, error) {
	return &Tree{seq: seq, list: list}, nil
}

// process walks the tree per its root kind, driving verification and
// decryption, and reporting outcomes via the sequencer's Reporter.
func (t *Tree) process() error {
	root := t.list.root()
	if root == nil {
		return nil
	}
	switch root.Kind {
	case NodePublicKey, NodeSecretKey:
		return t.processKeyblock()
	case NodeOnePassSig:
		return t.processOnePassGroup()
	case NodeSignature:
		return t.processLegacySignature()
	default:
		return pgperr.New(pgperr.KindGeneral, "unrecognized tree root kind: "+root.Kind.String())
	}
}

// processKeyblock lists the key, its user ids, and embedded
// signatures, checking each embedded signature's key binding.
func (t *Tree) processKeyblock() error {
	root := t.list.root()
	rootKeyID := keyIDOf(root.Packet)

	// target is the key a Signature certifies: the primary key until a
	// subkey packet is seen, after which its binding/revocation
	// signatures certify that subkey instead.
	target := root
	for _, n := range t.list.children() {
		switch n.Kind {
		case NodePublicSubkey, NodeSecretSubkey:
			target = n
		case NodeSignature:
			sig := n.Packet.(*packet.Signature)
			selfSig := sig.IssuerKeyId != nil && *sig.IssuerKeyId == rootKeyID

			outcome, err := t.checkKeySignature(sig, target, selfSig)
			t.record(sig, outcome, selfSig, err)
		}
	}
	return nil
}

// processOnePassGroup implements the OnePassSig root behavior: collect
// every trailing Signature, make sure in-band data was hashed (or hash
// an out-of-band detached source otherwise), then call do_check_sig
// for each trailing Signature.
func (t *Tree) processOnePassGroup() error {
	sigs := trailingSignatures(t.list)
	digest := t.seq.digest
	if digest == nil {
		algos := onePassDigestsFromList(t.list)
		var err error
		digest, err = t.seq.hashExternalData(algos)
		if err != nil {
			for _, sig := range sigs {
				t.record(sig, sigOutcomeOther, false, err)
			}
			return nil
		}
	}
	for _, sig := range sigs {
		outcome, err := t.doCheckSig(sig, digest, t.list.root())
		t.record(sig, outcome, false, err)
	}
	return nil
}

// processLegacySignature handles the single old-style Signature root
// (no preceding OnePassSig): same hashing rule as the OnePassSig case,
// but only one signature to verify.
func (t *Tree) processLegacySignature() error {
	sig := t.list.root().Packet.(*packet.Signature)
	digest := t.seq.digest
	if digest == nil {
		var err error
		digest, err = t.seq.hashExternalData(defaultDigests)
		if err != nil {
			t.record(sig, sigOutcomeOther, false, err)
			return nil
		}
	}
	outcome, err := t.doCheckSig(sig, digest, t.list.root())
	t.record(sig, outcome, false, err)
	return nil
}

// doCheckSig is the §4.5 do_check_sig dispatch: binary/text signatures
// verify against the digest tap; key-binding signatures delegate to
// check_key_signature (and only make sense against a keyblock root,
// which a bare OnePassSig/Signature tree never has).
func (t *Tree) doCheckSig(sig *packet.Signature, digest *DigestTap, root *KeyblockNode) (sigOutcome, error) {
	if sig.Hash == 0 || !sig.Hash.Available() {
		return sigOutcomeOther, pgperr.New(pgperr.KindDigestAlgo, "unsupported digest algorithm")
	}

	switch sig.SigType {
	case packet.SigTypeBinary, packet.SigTypeText:
		return t.checkDataSignature(sig, digest)
	case 0x10, 0x11, 0x12, 0x13, 0x18, 0x20, 0x30:
		// key-binding ranges (0x10..0x13 cert, 0x18 subkey binding,
		// 0x20 key revocation, 0x30 cert revocation) need a keyblock
		// root; a detached-signature tree never has one.
		if root.Kind != NodePublicKey && root.Kind != NodeSecretKey {
			return sigOutcomeOther, pgperr.New(pgperr.KindSigClass, "key-binding signature class without a keyblock root")
		}
		return t.checkKeySignature(sig, root, false)
	default:
		return sigOutcomeOther, pgperr.New(pgperr.KindSigClass, fmt.Sprintf("unsupported signature class 0x%02x", sig.SigType))
	}
}

// checkDataSignature verifies a binary/text signature against the
// digest tap's running hash for this signature's algorithm.
func (t *Tree) checkDataSignature(sig *packet.Signature, digest *DigestTap) (sigOutcome, error) {
	entity := t.findSigner(sig)
	if entity == nil {
		return sigOutcomeNoPubkey, pgperr.New(pgperr.KindNoSecretKey, "signer public key not found")
	}
	if !digest.Enabled(sig.Hash) {
		return sigOutcomeOther, pgperr.New(pgperr.KindDigestAlgo, "digest not enabled for this signature")
	}
	if err := entity.PrimaryKey.VerifySignature(digest.HashFor(sig.Hash), sig); err == nil {
		return sigOutcomeGood, nil
	}
	return t.verifyWithSubkeys(entity, sig, digest)
}

// verifyWithSubkeys retries verification against every subkey of
// entity, since the primary key is not always the signer.
func (t *Tree) verifyWithSubkeys(entity *openpgp.Entity, sig *packet.Signature, digest *DigestTap) (sigOutcome, error) {
	for _, sk := range entity.Subkeys {
		if sk.PublicKey == nil {
			continue
		}
		if err := sk.PublicKey.VerifySignature(digest.HashFor(sig.Hash), sig); err == nil {
			return sigOutcomeGood, nil
		}
	}
	return sigOutcomeBad, pgperr.New(pgperr.KindBadSign, "signature did not verify against signer's key")
}

// checkKeySignature verifies a key-binding/certification signature
// (VerifyKeySignature for subkey bindings, VerifyUserIdSignature for
// identity certifications) and reports whether it is a self-signature.
// target is the key being certified: the primary key for a user id
// certification or primary-key revocation, or the relevant subkey for
// a subkey binding/revocation.
func (t *Tree) checkKeySignature(sig *packet.Signature, target *KeyblockNode, selfSig bool) (sigOutcome, error) {
	pub := publicKeyOf(target.Packet)
	if pub == nil {
		return sigOutcomeOther, pgperr.New(pgperr.KindSigClass, "key-binding signature attached to a non-key node")
	}

	entity := t.findSigner(sig)
	signerKey := pub
	if entity != nil {
		signerKey = entity.PrimaryKey
	} else if !selfSig {
		return sigOutcomeNoPubkey, pgperr.New(pgperr.KindNoSecretKey, "signer public key not found")
	}

	switch sig.SigType {
	case 0x18: // subkey binding: signerKey (the primary) signs pub (the subkey)
		if err := signerKey.VerifyKeySignature(pub, sig); err != nil {
			return sigOutcomeBad, pgperr.New(pgperr.KindBadSign, err.Error())
		}
	case 0x10, 0x11, 0x12, 0x13: // user id certification
		uid := userIDFor(t.list, sig)
		if uid == "" {
			return sigOutcomeOther, pgperr.New(pgperr.KindSigClass, "certification signature without a preceding user id")
		}
		if err := signerKey.VerifyUserIdSignature(uid, pub, sig); err != nil {
			return sigOutcomeBad, pgperr.New(pgperr.KindBadSign, err.Error())
		}
	case 0x20, 0x30: // revocations: treat like a key signature for reporting purposes
		if err := signerKey.VerifyKeySignature(pub, sig); err != nil {
			return sigOutcomeBad, pgperr.New(pgperr.KindBadSign, err.Error())
		}
	default:
		return sigOutcomeOther, pgperr.New(pgperr.KindSigClass, "unhandled key-binding signature class")
	}
	return sigOutcomeGood, nil
}

// record appends the outcome to t.Signatures and reports it through
// the sequencer's Reporter, running the trust check on a good
// signature (batch-mode failure promotion is left to the caller, per
// §4.5's note that it turns into a process exit only at the CLI).
func (t *Tree) record(sig *packet.Signature, outcome sigOutcome, selfSig bool, err error) {
	keyID := uint64(0)
	if sig.IssuerKeyId != nil {
		keyID = *sig.IssuerKeyId
	}
	t.Signatures = append(t.Signatures, SignatureResult{KeyID: keyID, Outcome: outcome.marker(), SelfSig: selfSig, Err: err})

	if t.seq.reporter == nil {
		return
	}
	keyIDStr := fmt.Sprintf("%016X", keyID)
	switch outcome {
	case sigOutcomeGood:
		t.seq.reporter.GoodSig(keyIDStr, signerName(t.seq, keyID))
	case sigOutcomeBad:
		t.seq.reporter.BadSig(keyIDStr, signerName(t.seq, keyID))
	default:
		reason := "unknown"
		if err != nil {
			reason = err.Error()
		}
		t.seq.reporter.ErrSig(keyIDStr, reason)
	}
}

// trailingSignatures returns every Signature node in the list after
// the leading run of OnePassSig nodes.
func trailingSignatures(list *nodeList) []*packet.Signature {
	var out []*packet.Signature
	for _, n := range list.nodes {
		if n.Kind == NodeSignature {
			out = append(out, n.Packet.(*packet.Signature))
		}
	}
	return out
}

func onePassDigestsFromList(list *nodeList) []crypto.Hash {
	var algos []crypto.Hash
	for _, n := range list.nodes {
		if ops, ok := n.Packet.(*packet.OnePassSignature); ok {
			algos = append(algos, ops.Hash)
		}
	}
	if len(algos) == 0 {
		return defaultDigests
	}
	return algos
}

func userIDFor(list *nodeList, sig *packet.Signature) string {
	var last string
	for _, n := range list.nodes {
		if n.Kind == NodeUserId {
			last = n.Packet.(*packet.UserId).Id
		}
		if n.Packet == packet.Packet(sig) {
			break
		}
	}
	return last
}

func keyIDOf(p interface{}) uint64 {
	switch v := p.(type) {
	case *packet.PublicKey:
		return v.KeyId
	case *packet.PrivateKey:
		return v.KeyId
	default:
		return 0
	}
}

func publicKeyOf(p interface{}) *packet.PublicKey {
	switch v := p.(type) {
	case *packet.PublicKey:
		return v
	case *packet.PrivateKey:
		return &v.PublicKey
	default:
		return nil
	}
}

// findSigner looks up sig.IssuerKeyId in the sequencer's keyring.
func (t *Tree) findSigner(sig *packet.Signature) *openpgp.Entity {
	if sig.IssuerKeyId == nil || t.seq.keyring == nil {
		return nil
	}
	keyID := *sig.IssuerKeyId
	for _, e := range t.seq.keyring {
		if e.PrimaryKey != nil && e.PrimaryKey.KeyId == keyID {
			return e
		}
		for _, sk := range e.Subkeys {
			if sk.PublicKey != nil && sk.PublicKey.KeyId == keyID {
				return e
			}
		}
	}
	return nil
}

func signerName(seq *Sequencer, keyID uint64) string {
	if seq.keyring == nil {
		return ""
	}
	for _, e := range seq.keyring {
		if e.PrimaryKey != nil && e.PrimaryKey.KeyId == keyID {
			for name := range e.Identities {
				return name
			}
		}
	}
	return ""
}

