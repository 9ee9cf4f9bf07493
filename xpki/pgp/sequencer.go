package pgp

import (
	"bytes"
	"crypto"
	"io"
	"io/ioutil"

	"github.com/juju/errors"
	"golang.org/x/crypto/openpgp"
	"golang.org/x/crypto/openpgp/packet"

	"github.com/lamhaoyin/openpgpingest/xpki/pgperr"
)

// Mode selects which packet types the sequencer accepts, per §4.4.
type Mode int

const (
	// ModeFull accepts any root packet type.
	ModeFull Mode = iota
	// ModeSigsOnly rejects KeyBlock/UserId/Encrypted/SessionKey packets.
	ModeSigsOnly
	// ModeEncryptOnly rejects KeyBlock/UserId packets.
	ModeEncryptOnly
)

// defaultDigests is the digest set enabled for a Plaintext packet when
// no prior OnePassSig declared one, preserved for compatibility with
// the legacy default (§9 open questions).
var defaultDigests = []crypto.Hash{crypto.RIPEMD160, crypto.SHA1, crypto.MD5}

// DetachedSource supplies the bytes of an out-of-band signed file for
// a detached signature, the ask_for_detached_datafile collaborator.
// The CLI binds this to os.Open by flag; a library caller may
// implement it however its own I/O model requires.
type DetachedSource interface {
	Open(name string) (io.Reader, error)
}

// Sequencer is the packet-sequencer context (C4): the currently open
// node list, the pending DEK, the active digest context, and the mode
// flags that gate which packet types are legal.
type Sequencer struct {
	mode     Mode
	keyring  openpgp.EntityList
	reporter *Reporter
	detached DetachedSource

	list *nodeList

	dek        []byte
	dekCipher  packet.CipherFunction
	lastWasKey int // 0 none, 1 pubkey-enc, 2 symkey-enc

	pendingSymkey *packet.SymmetricKeyEncrypted
	passphrase    []byte

	digest        *DigestTap
	enabledHashes []crypto.Hash
	haveData      bool

	signedFiles []string
	sigFilename string

	sink io.Writer

	// Trees accumulates every tree flushed so far, for callers that
	// want the full assembled result rather than a side-effecting walk.
	Trees []*Tree
}

// NewSequencer constructs a Sequencer. keyring may be nil for a
// decrypt-only pipeline that never checks signatures; reporter may be
// nil (status is then only logged); detached may be nil if the input
// never needs an out-of-band data file.
func NewSequencer(mode Mode, keyring openpgp.EntityList, reporter *Reporter, detached DetachedSource) *Sequencer {
	return &Sequencer{mode: mode, keyring: keyring, reporter: reporter, detached: detached}
}

// SetPassphrase supplies the passphrase used to derive a DEK from a
// SymmetricKeyEncrypted packet (passphrase_to_dek). Without it, a
// conventionally-encrypted message cannot be decrypted and the
// following Encrypted packet fails with NoSecretKey.
func (s *Sequencer) SetPassphrase(passphrase []byte) {
	s.passphrase = passphrase
}

// SetPlaintextSink arranges for the recovered Literal Data body to be
// copied to w as it is hashed, in addition to the digest computation
// dispatchPlaintext always performs. Without a sink the body is hashed
// and discarded, per the normal behavior of a signature-checking-only
// pipeline.
func (s *Sequencer) SetPlaintextSink(w io.Writer) {
	s.sink = w
}

// ProcessPackets runs the sequencer in full mode: any root type allowed.
func (s *Sequencer) ProcessPackets(r io.Reader) error {
	s.mode = ModeFull
	return s.run(r)
}

// ProcessSignaturePackets runs the sequencer in sigs-only mode: only
// signature-relevant packets are legal, and detached data comes from
// signedFiles (hashed in order), or, when signedFiles is empty, from
// the file named by sigFilename without its .sig, .asc or .gpg suffix.
func (s *Sequencer) ProcessSignaturePackets(r io.Reader, signedFiles []string, sigFilename string) error {
	s.mode = ModeSigsOnly
	s.signedFiles = signedFiles
	s.sigFilename = sigFilename
	return s.run(r)
}

// ProcessEncryptionPackets runs the sequencer in encrypt-only mode:
// only decryption-relevant packets are legal.
func (s *Sequencer) ProcessEncryptionPackets(r io.Reader) error {
	s.mode = ModeEncryptOnly
	return s.run(r)
}

func (s *Sequencer) run(r io.Reader) error {
	pr := packet.NewReader(r)
	for {
		p, err := pr.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return errors.Trace(pgperr.New(pgperr.KindInvalidPacket, err.Error()))
		}
		if err := s.dispatch(pr, p); err != nil {
			kind := pgperr.Classify(err)
			if kind == pgperr.KindInvalidPacket || kind == pgperr.KindUnexpected || kind == pgperr.KindOrphan {
				return errors.Trace(err)
			}
			logger.Warningf("api=dispatch, reason=%v", err)
			continue
		}
	}
	return s.releaseList()
}

// dispatch applies the pre-dispatch hygiene rule, then routes p to its
// per-mode handler per the §4.4 table.
func (s *Sequencer) dispatch(pr *packet.Reader, p packet.Packet) error {
	if s.dek != nil {
		if _, ok := p.(*packet.SymmetricallyEncrypted); !ok {
			s.clearDEK()
		}
	}

	switch v := p.(type) {
	case *packet.PublicKey:
		return s.dispatchKey(v, v.IsSubkey)
	case *packet.PrivateKey:
		return s.dispatchKey(v, v.IsSubkey)
	case *packet.UserId:
		return s.dispatchUserId(v)
	case *packet.Signature:
		return s.dispatchSignature(v)
	case *packet.OnePassSignature:
		return s.dispatchOnePassSig(v)
	case *packet.EncryptedKey:
		return s.dispatchPubkeyEnc(v)
	case *packet.SymmetricKeyEncrypted:
		return s.dispatchSymkeyEnc(v)
	case *packet.SymmetricallyEncrypted:
		return s.dispatchEncrypted(pr, v)
	case *packet.LiteralData:
		return s.dispatchPlaintext(v)
	case *packet.Compressed:
		return s.dispatchCompressed(v)
	case *packet.OpaquePacket:
		// Marker / Comment / anything this pipeline does not model: drop.
		return nil
	default:
		return nil
	}
}

func (s *Sequencer) clearDEK() {
	for i := range s.dek {
		s.dek[i] = 0
	}
	s.dek = nil
	s.lastWasKey = 0
}

func (s *Sequencer) dispatchKey(p packet.Packet, isSubkey bool) error {
	if s.mode != ModeFull {
		return pgperr.New(pgperr.KindUnexpected, "key packet not allowed outside full mode")
	}
	if !isSubkey {
		if err := s.releaseList(); err != nil {
			return err
		}
		kind := classify(p)
		s.list = newNodeList(&KeyblockNode{Kind: kind, Packet: p})
		return nil
	}
	if s.list.empty() {
		return pgperr.New(pgperr.KindOrphan, "subkey packet with no preceding primary key")
	}
	s.list.append(&KeyblockNode{Kind: classify(p), Packet: p})
	return nil
}

func (s *Sequencer) dispatchUserId(p *packet.UserId) error {
	if s.mode != ModeFull {
		return pgperr.New(pgperr.KindUnexpected, "user id packet not allowed outside full mode")
	}
	if s.list.empty() {
		return pgperr.New(pgperr.KindOrphan, "user id packet with no preceding primary key")
	}
	s.list.append(&KeyblockNode{Kind: NodeUserId, Packet: p})
	return nil
}

func (s *Sequencer) dispatchSignature(p *packet.Signature) error {
	if s.list.empty() {
		// A leading Signature with no OnePassSig is the legacy
		// "PGP-style" detached form (§9 open questions): it becomes
		// the root of its own tree.
		s.list = newNodeList(&KeyblockNode{Kind: NodeSignature, Packet: p})
		return nil
	}
	s.list.append(&KeyblockNode{Kind: NodeSignature, Packet: p})
	return nil
}

func (s *Sequencer) dispatchOnePassSig(p *packet.OnePassSignature) error {
	if s.list.empty() {
		s.list = newNodeList(&KeyblockNode{Kind: NodeOnePassSig, Packet: p})
		return nil
	}
	root := s.list.rootKind()
	if root != NodeOnePassSig && root != NodeSignature {
		return pgperr.New(pgperr.KindUnexpected, "one-pass signature cannot follow a keyblock root")
	}
	s.list.append(&KeyblockNode{Kind: NodeOnePassSig, Packet: p})
	return nil
}

func (s *Sequencer) dispatchPubkeyEnc(p *packet.EncryptedKey) error {
	if s.mode == ModeSigsOnly {
		return pgperr.New(pgperr.KindUnexpected, "encrypted session key not allowed in sigs-only mode")
	}
	dek, cipherFunc, err := decryptSessionKey(p, s.keyring)
	if err != nil {
		logger.Warningf("api=dispatchPubkeyEnc, reason=%v", err)
		return nil
	}
	s.clearDEK()
	s.dek = dek
	s.dekCipher = cipherFunc
	s.lastWasKey = 1
	return nil
}

func (s *Sequencer) dispatchSymkeyEnc(p *packet.SymmetricKeyEncrypted) error {
	if s.mode == ModeSigsOnly {
		return pgperr.New(pgperr.KindUnexpected, "symmetric session key not allowed in sigs-only mode")
	}
	// Deriving the DEK needs the passphrase; the caller supplies it via
	// SetPassphrase before processing the stream. Absent a
	// passphrase this packet is recorded but produces no DEK; the
	// following Encrypted packet will then fail with NoSecretKey.
	s.lastWasKey = 2
	s.pendingSymkey = p
	return nil
}

func (s *Sequencer) dispatchEncrypted(pr *packet.Reader, p *packet.SymmetricallyEncrypted) error {
	if s.mode == ModeSigsOnly {
		return pgperr.New(pgperr.KindUnexpected, "encrypted data not allowed in sigs-only mode")
	}
	if s.dek == nil && s.pendingSymkey != nil && s.passphrase != nil {
		key, cipherFunc, err := s.pendingSymkey.Decrypt(s.passphrase)
		if err != nil {
			return errors.Trace(pgperr.New(pgperr.KindNoSecretKey, err.Error()))
		}
		s.dek = key
		s.dekCipher = cipherFunc
	}
	if s.dek == nil {
		switch s.lastWasKey {
		case 1:
			return pgperr.New(pgperr.KindNoSecretKey, "no private key in the keyring matched the encrypted session key")
		case 2:
			return pgperr.New(pgperr.KindNoSecretKey, "no passphrase supplied to derive the session key")
		default:
			return pgperr.New(pgperr.KindNoSecretKey, "no session key available to decrypt data")
		}
	}

	inner, err := p.Decrypt(s.dekCipher, s.dek)
	if err != nil {
		s.clearDEK()
		return errors.Trace(pgperr.New(pgperr.KindBadSign, err.Error()))
	}
	s.clearDEK()

	inner2 := packet.NewReader(inner)
	child, err := inner2.Next()
	if err != nil {
		return errors.Trace(pgperr.New(pgperr.KindInvalidPacket, err.Error()))
	}
	return s.recurse(inner, child, inner2)
}

// recurse re-enters packet processing for a decompressed/decrypted
// inner stream, in the same mode as the enclosing call, per the
// Compressed/Encrypted dispatch rules.
func (s *Sequencer) recurse(inner io.Reader, first packet.Packet, pr *packet.Reader) error {
	if err := s.dispatch(pr, first); err != nil {
		return err
	}
	for {
		p, err := pr.Next()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return errors.Trace(pgperr.New(pgperr.KindInvalidPacket, err.Error()))
		}
		if err := s.dispatch(pr, p); err != nil {
			kind := pgperr.Classify(err)
			if kind == pgperr.KindInvalidPacket || kind == pgperr.KindUnexpected || kind == pgperr.KindOrphan {
				return err
			}
			logger.Warningf("api=recurse, reason=%v", err)
		}
	}
}

func (s *Sequencer) dispatchCompressed(p *packet.Compressed) error {
	pr := packet.NewReader(p.Body)
	first, err := pr.Next()
	if err == io.EOF {
		return nil
	}
	if err != nil {
		return errors.Trace(pgperr.New(pgperr.KindInvalidPacket, err.Error()))
	}
	return s.recurse(p.Body, first, pr)
}

// dispatchPlaintext closes the open list as signed data: it opens a
// digest context over every hash declared by a preceding OnePassSig
// (or defaultDigests if none), streams the literal body through it,
// and stashes the tap on the current tree so the tree processor can
// drive do_check_sig against it.
func (s *Sequencer) dispatchPlaintext(p *packet.LiteralData) error {
	algos := s.pendingOnePassDigests()
	tap := NewDigestTap(p.Body, algos)
	var f Filter = tap
	if err := f.Init(); err != nil {
		return errors.Trace(pgperr.New(pgperr.KindGeneral, err.Error()))
	}
	defer f.Close()

	sink := io.Writer(ioutil.Discard)
	if s.sink != nil {
		sink = s.sink
	}
	if _, err := io.Copy(sink, f); err != nil && err != io.EOF {
		return errors.Trace(pgperr.New(pgperr.KindGeneral, err.Error()))
	}
	s.digest = tap
	s.enabledHashes = algos
	s.haveData = true
	return nil
}

// pendingOnePassDigests collects the digest algorithms declared by any
// OnePassSig packet currently sitting in the open list, falling back
// to defaultDigests when none was seen.
func (s *Sequencer) pendingOnePassDigests() []crypto.Hash {
	if s.list.empty() {
		return defaultDigests
	}
	var algos []crypto.Hash
	for _, n := range s.list.nodes {
		if ops, ok := n.Packet.(*packet.OnePassSignature); ok {
			algos = append(algos, ops.Hash)
		}
	}
	if len(algos) == 0 {
		return defaultDigests
	}
	return algos
}

// releaseList flushes the current list through the tree processor (on
// a root-packet transition or end-of-stream) and clears sequencer
// state that belongs only to that tree.
func (s *Sequencer) releaseList() error {
	if s.list.empty() {
		return nil
	}
	list := s.list
	s.list = nil

	tree, err := newTree(s, list)
	if err != nil {
		return err
	}
	s.Trees = append(s.Trees, tree)

	// The tree reads s.digest, so it is processed before that is reset.
	procErr := tree.process()

	s.digest = nil
	s.enabledHashes = nil
	s.haveData = false

	// DEKs and the conventional passphrase hold secret material and
	// must be zeroized at free, same as clearDEK does on a key
	// transition mid-stream.
	s.clearDEK()
	s.pendingSymkey = nil
	for i := range s.passphrase {
		s.passphrase[i] = 0
	}
	s.passphrase = nil

	return procErr
}

// decryptSessionKey is get_session_key: try the given EncryptedKey
// against every private key in the keyring until one decrypts it.
func decryptSessionKey(ek *packet.EncryptedKey, keyring openpgp.EntityList) ([]byte, packet.CipherFunction, error) {
	for _, entity := range keyring {
		candidates := privateKeysFor(entity, ek.KeyId)
		for _, pk := range candidates {
			if pk.Encrypted {
				continue
			}
			if err := ek.Decrypt(pk, nil); err == nil {
				return ek.Key, ek.CipherFunc, nil
			}
		}
	}
	return nil, 0, pgperr.New(pgperr.KindNoSecretKey, "no matching private key for encrypted session key")
}

func privateKeysFor(e *openpgp.Entity, keyID uint64) []*packet.PrivateKey {
	var out []*packet.PrivateKey
	if e.PrivateKey != nil && (keyID == 0 || e.PrivateKey.KeyId == keyID) {
		out = append(out, e.PrivateKey)
	}
	for _, sk := range e.Subkeys {
		if sk.PrivateKey != nil && (keyID == 0 || sk.PrivateKey.KeyId == keyID) {
			out = append(out, sk.PrivateKey)
		}
	}
	return out
}

// hashExternalData implements hash_datafiles / ask_for_detached_datafile
// for the OnePassSig/Signature tree handlers when no Plaintext packet
// was seen in-band: in sigs-only mode the caller already supplied
// signedFiles; otherwise the DetachedSource collaborator is consulted.
func (s *Sequencer) hashExternalData(algos []crypto.Hash) (*DigestTap, error) {
	var names []string
	switch {
	case len(s.signedFiles) > 0:
		names = s.signedFiles
	case s.sigFilename != "":
		names = []string{detachedNameFor(s.sigFilename)}
	default:
		return nil, pgperr.New(pgperr.KindGeneral, "no detached data source configured")
	}

	var buf bytes.Buffer
	for _, name := range names {
		r, err := s.openDetached(name)
		if err != nil {
			return nil, errors.Trace(err)
		}
		if _, err := io.Copy(&buf, r); err != nil {
			return nil, errors.Trace(pgperr.New(pgperr.KindGeneral, err.Error()))
		}
	}

	tap := NewDigestTap(bytes.NewReader(buf.Bytes()), algos)
	if _, err := io.Copy(ioutil.Discard, tap); err != nil && err != io.EOF {
		return nil, errors.Trace(pgperr.New(pgperr.KindGeneral, err.Error()))
	}
	return tap, nil
}

func (s *Sequencer) openDetached(name string) (io.Reader, error) {
	if s.detached == nil {
		return nil, pgperr.New(pgperr.KindGeneral, "no detached data source configured for "+name)
	}
	return s.detached.Open(name)
}

// detachedNameFor strips a trailing ".sig"/".asc" to guess the signed
// file's name from its detached signature's name, the common
// convention a CLI caller relies on.
func detachedNameFor(sigName string) string {
	for _, suffix := range []string{".sig", ".asc", ".gpg"} {
		if len(sigName) > len(suffix) && sigName[len(sigName)-len(suffix):] == suffix {
			return sigName[:len(sigName)-len(suffix)]
		}
	}
	return sigName
}
