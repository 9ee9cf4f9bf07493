// Package armor implements OpenPGP ASCII Armor (RFC 4880 §6): the
// BEGIN/END line framing, the "Key: Value" header block, the
// radix-64/CRC-24 body codec, and the clearsigned-text variant that
// carries human-readable data and a detached signature in the same
// document.
//
// The package exposes two layers: Decode/Encode, a simple whole-buffer
// API kept compatible with earlier callers that only care about a
// single non-clearsigned block, and Reader, a line-driven state
// machine that also handles clearsigned text by synthesizing the
// OnePassSignature/LiteralData packet bytes a downstream OpenPGP
// packet parser expects to see.
package armor

import (
	"bufio"
	"bytes"
	"fmt"
	"io"
	"strings"

	"github.com/lamhaoyin/openpgpingest/xpki/pgperr"
)

// maxLineLength is the armor framing limit from the wire-framing
// section of the spec: lines longer than this are rejected.
const maxLineLength = 20000

// Block represents a decoded armored region, for callers that only
// need one-shot decoding (e.g. a public keyring file).
type Block struct {
	Type    string            // BEGIN label, e.g. "PGP PUBLIC KEY BLOCK"
	Headers map[string]string // parsed "Key: Value" header lines
	Bytes   []byte            // decoded body bytes
	CRC     uint32
}

// beginKinds are the labels recognized after "-----BEGIN PGP ".
var beginKinds = map[string]bool{
	"MESSAGE":           true,
	"PUBLIC KEY BLOCK":  true,
	"SIGNATURE":         true,
	"SIGNED MESSAGE":    true,
	"ARMORED FILE":      true,
	"PRIVATE KEY BLOCK": true,
	"SECRET KEY BLOCK":  true,
}

func isClearsignKind(kind string) bool { return kind == "SIGNED MESSAGE" }

// Hash bitmask values for the clearsign "Hash:" header, per §4.2.
const (
	HashMD5 = 1 << iota
	HashSHA1
	HashRIPEMD160
	HashTIGER
)

var hashNames = []struct {
	name string
	bit  int
}{
	// order matters: this is the canonical order the spec lists the
	// digests in; OnePassSig synthesis walks it in reverse.
	{"RIPEMD160", HashRIPEMD160},
	{"SHA1", HashSHA1},
	{"MD5", HashMD5},
	{"TIGER", HashTIGER},
}

func hashBitForName(name string) (int, bool) {
	for _, h := range hashNames {
		if h.name == name {
			return h.bit, true
		}
	}
	return 0, false
}

// UseArmorFilter is the use_armor_filter heuristic from §6: given a
// peek at the start of a byte stream, decide whether it is plausibly
// ASCII-armored (so an armor filter should be inserted) or looks like
// raw binary OpenPGP packets already (bypass).
func UseArmorFilter(peek []byte) bool {
	if len(peek) == 0 {
		return true
	}
	b := peek[0]
	if b&0x80 == 0 {
		// High bit clear: not a valid packet tag byte, so this can
		// only be armored or garbage. Assume armored.
		return true
	}
	return !isPlausiblePacketTag(b)
}

func isPlausiblePacketTag(b byte) bool {
	if b&0x40 != 0 {
		// new-format packet: tag is the low 6 bits, 0 is reserved.
		tag := b & 0x3f
		return tag != 0
	}
	// old-format packet: tag is bits 5-2, 0 is reserved.
	tag := (b >> 2) & 0x0f
	return tag != 0
}

// lineScanner reads lines one at a time from an io.Reader, enforcing
// the maximum armor line length. Either LF or CRLF is accepted.
type lineScanner struct {
	r   *bufio.Reader
	err error
}

func newLineScanner(r io.Reader) *lineScanner {
	return &lineScanner{r: bufio.NewReaderSize(r, 4096)}
}

// next returns the next line (without its terminator) or an error.
// io.EOF signals orderly end of stream with no partial line pending.
func (s *lineScanner) next() ([]byte, error) {
	if s.err != nil {
		return nil, s.err
	}
	var buf []byte
	for {
		chunk, err := s.r.ReadSlice('\n')
		buf = append(buf, chunk...)
		if len(buf) > maxLineLength {
			s.err = pgperr.New(pgperr.KindLineTooLong, fmt.Sprintf("armor line exceeds %d bytes", maxLineLength))
			return nil, s.err
		}
		if err == nil {
			break
		}
		if err == bufio.ErrBufferFull {
			continue
		}
		if err == io.EOF {
			if len(buf) == 0 {
				return nil, io.EOF
			}
			break
		}
		s.err = err
		return nil, err
	}
	line := bytes.TrimRight(buf, "\n")
	line = bytes.TrimRight(line, "\r")
	return line, nil
}

// Decode scans data for the next armored block (of any kind except
// clearsigned text, which requires DecodeClearSigned) and returns it
// along with the remainder of the input. It returns a nil Block if no
// armor was found at all.
func Decode(data []byte) (p *Block, rest []byte) {
	r := &Reader{}
	consumed, block, err := r.decodeOneBlock(data)
	if err != nil || block == nil {
		return nil, data
	}
	return block, data[consumed:]
}

// Encode writes data as a single armored block of the given type with
// the given headers. It is the minimal encoder the Non-goals section
// calls for: enough to round-trip a decoded block, not a
// general-purpose writer.
func Encode(kind string, headers map[string]string, data []byte) []byte {
	var buf bytes.Buffer
	fmt.Fprintf(&buf, "-----BEGIN PGP %s-----\n", kind)
	if v, ok := headers["Version"]; ok {
		fmt.Fprintf(&buf, "Version: %s\n", v)
	}
	for k, v := range headers {
		if k == "Version" {
			continue
		}
		fmt.Fprintf(&buf, "%s: %s\n", k, v)
	}
	buf.WriteByte('\n')
	buf.Write(encodeRadix64(data))
	fmt.Fprintf(&buf, "-----END PGP %s-----\n", kind)
	return buf.Bytes()
}

// Reader drives the armor detector/header-parser/body-decoder state
// machine (C2) over an io.Reader, in clearsign or radix-64 mode.
//
// Reader implements the pull-based Filter contract from the xpki/pgp
// package (Init/Read/Flush/Close) without importing it, so xpki/pgp
// can drive a Reader as one stage of its filter pipeline.
type Reader struct {
	scan *lineScanner

	// Headers and Kind describe the most recently decoded block.
	Kind           string
	Headers        map[string]string
	Hashes         int // bitmask of HashMD5 etc, from the "Hash:" header
	NotDashEscaped bool

	out bytes.Buffer // pending decoded/synthesized bytes not yet Read
	err error
}

// NewReader begins an armor decode session over r.
func NewReader(r io.Reader) *Reader {
	return &Reader{scan: newLineScanner(r)}
}

// Init satisfies the Filter lifecycle contract; the scanner is ready
// to pull from construction, so Init only validates state.
func (a *Reader) Init() error {
	if a.scan == nil {
		return pgperr.New(pgperr.KindGeneral, "armor reader not constructed with NewReader")
	}
	return nil
}

// Flush is a no-op: the armor reader has no internal write buffer to drain.
func (a *Reader) Flush() error { return nil }

// Close releases the reader. Safe to call multiple times and on error paths.
func (a *Reader) Close() error { return nil }

// Read implements UNDERFLOW: it fills p with decoded/synthesized
// bytes, pulling more from upstream and advancing the state machine as
// needed.
func (a *Reader) Read(p []byte) (int, error) {
	for a.out.Len() == 0 {
		if a.err != nil {
			return 0, a.err
		}
		if err := a.advance(); err != nil {
			a.err = err
			if a.out.Len() == 0 {
				return 0, err
			}
			break
		}
	}
	return a.out.Read(p)
}

// advance runs one block of the armor state machine, appending decoded
// output to a.out. It returns an error, io.EOF once the block's END
// line has been consumed; Read keeps that error in a.err.
func (a *Reader) advance() error {
	if a.scan == nil {
		return pgperr.New(pgperr.KindGeneral, "armor reader not initialized")
	}

	kind, err := a.findBegin()
	if err != nil {
		return err
	}
	a.Kind = kind

	headers, err := a.readHeaders(isClearsignKind(kind))
	if err != nil {
		return err
	}
	a.Headers = headers
	a.Hashes, a.NotDashEscaped = parseClearsignHeaders(headers, isClearsignKind(kind))

	if isClearsignKind(kind) {
		return a.decodeClearsignBody()
	}
	return a.decodeRadix64Body(kind)
}

// findBegin scans lines, skipping non-armor garbage, until a
// "-----BEGIN PGP <kind>-----" line for a recognized kind is found.
func (a *Reader) findBegin() (string, error) {
	any := false
	for {
		line, err := a.scan.next()
		if err != nil {
			if err == io.EOF && !any {
				return "", pgperr.New(pgperr.KindNoValidData, "no armor data found")
			}
			return "", err
		}
		s := string(line)
		if s == "" {
			continue
		}
		if !strings.HasPrefix(s, "-----BEGIN PGP ") || !strings.HasSuffix(s, "-----") {
			any = true
			continue
		}
		kind := strings.TrimSuffix(strings.TrimPrefix(s, "-----BEGIN PGP "), "-----")
		if !beginKinds[kind] {
			// Unknown BEGIN tag: continue scanning.
			any = true
			continue
		}
		return kind, nil
	}
}

// readHeaders consumes "Key: Value" lines until a blank line
// terminates the header block.
func (a *Reader) readHeaders(clearsign bool) (map[string]string, error) {
	headers := make(map[string]string)
	for {
		line, err := a.scan.next()
		if err != nil {
			if err == io.EOF {
				return nil, pgperr.New(pgperr.KindInvalidArmor, "armor header block never terminated")
			}
			return nil, err
		}
		if len(line) == 0 {
			return headers, nil
		}
		idx := bytes.IndexByte(line, ':')
		if idx < 0 {
			return nil, pgperr.New(pgperr.KindInvalidArmor, "armor header line missing ':'")
		}
		key := strings.TrimSpace(string(line[:idx]))
		val := strings.TrimSpace(string(line[idx+1:]))
		switch key {
		case "Version", "Comment", "Hash", "NotDashEscaped":
			headers[key] = val
		default:
			if clearsign {
				return nil, pgperr.New(pgperr.KindInvalidArmor, "unknown clearsign header: "+key)
			}
			// Unknown non-Hash keys outside clearsign mode are logged
			// and ignored by the caller; we still record them so a
			// Reporter can log them.
			headers[key] = val
		}
	}
}

// parseClearsignHeaders extracts the Hash bitmask (defaulting to MD5
// when absent, per the Design Notes compatibility decision) and the
// NotDashEscaped flag.
func parseClearsignHeaders(headers map[string]string, clearsign bool) (hashes int, notDashEscaped bool) {
	if v, ok := headers["Hash"]; ok && v != "" {
		for _, name := range strings.Split(v, ",") {
			name = strings.TrimSpace(name)
			if bit, ok := hashBitForName(name); ok {
				hashes |= bit
			}
		}
	} else if clearsign {
		hashes = HashMD5
	}
	if clearsign {
		if _, ok := headers["NotDashEscaped"]; ok {
			notDashEscaped = true
		}
	}
	return hashes, notDashEscaped
}

// decodeRadix64Body decodes the base64 body, checks the CRC-24
// trailer, and consumes the matching END line.
func (a *Reader) decodeRadix64Body(kind string) error {
	dec := newRadix64Decoder()
	for {
		line, err := a.scan.next()
		if err != nil {
			if err == io.EOF {
				return pgperr.New(pgperr.KindInvalidArmor, "armor body truncated before CRC trailer")
			}
			return err
		}
		if len(line) > 0 && line[0] == '=' {
			crc, ok := decodeCRCLine(line[1:])
			if !ok {
				return pgperr.New(pgperr.KindInvalidArmor, "malformed CRC trailer")
			}
			a.out.Write(dec.Bytes())
			if crc != dec.CRC() {
				return pgperr.New(pgperr.KindInvalidArmor, "CRC-24 mismatch")
			}
			return a.expectEnd(kind)
		}
		dec.Write(line)
		a.out.Write(dec.Bytes())
	}
}

// expectEnd consumes the "-----END PGP <kind>-----" tail line.
func (a *Reader) expectEnd(kind string) error {
	line, err := a.scan.next()
	if err != nil {
		if err == io.EOF {
			return pgperr.New(pgperr.KindInvalidArmor, "missing armor END line")
		}
		return err
	}
	want := "-----END PGP " + kind + "-----"
	if string(line) != want {
		return pgperr.New(pgperr.KindInvalidArmor, "armor END line does not match BEGIN kind")
	}
	return io.EOF
}

// decodeClearsignBody implements the clearsigned-text framing from
// §4.2: it reads lines up to the "-----BEGIN PGP SIGNATURE-----"
// marker, canonicalizes them into the byte sequence the digest tap
// must hash, and wraps that sequence in synthetic OnePassSignature and
// LiteralData packets.
//
// The clearsigned content is buffered in memory before any packet
// bytes are emitted: unlike the legacy implementation this is based
// on, packet framing here uses a definite-length LiteralData packet
// rather than a stream of partial-length chunks, which needs the
// total length up front. Only the canonicalized hash input and the
// parsed packet values are externally observable (per the Testable
// Properties), so this does not change visible behavior.
func (a *Reader) decodeClearsignBody() error {
	var canonical bytes.Buffer
	for {
		line, err := a.scan.next()
		if err != nil {
			if err == io.EOF {
				return pgperr.New(pgperr.KindInvalidArmor, "clearsigned text never reached a signature block")
			}
			return err
		}
		if bytes.HasPrefix(line, []byte("-----BEGIN PGP SIGNATURE-----")) {
			return a.finishClearsign(canonical.Bytes())
		}
		canonical.Write(canonicalizeClearsignLine(line, a.NotDashEscaped))
		canonical.WriteString("\r\n")
	}
}

// canonicalizeClearsignLine strips trailing whitespace and reverses
// dash escaping when applicable, per §4.2's per-line rule.
func canonicalizeClearsignLine(line []byte, notDashEscaped bool) []byte {
	line = bytes.TrimRight(line, " \t")
	if !notDashEscaped && bytes.HasPrefix(line, []byte("- ")) {
		line = line[2:]
	}
	return line
}

// finishClearsign synthesizes the OnePassSignature/LiteralData packet
// bytes for the canonicalized text, then consumes the trailing
// signature's own armor block and switches to radix-64 mode for it, so
// the caller sees one continuous packet stream: one-pass signatures,
// literal data, then the real Signature packets.
func (a *Reader) finishClearsign(canonicalBody []byte) error {
	a.out.Write(synthesizeOnePassAndLiteral(a.Hashes, canonicalBody))

	headers, err := a.readHeaders(false)
	if err != nil {
		return err
	}
	a.Headers = headers
	return a.decodeRadix64Body("SIGNATURE")
}

// synthesizeOnePassAndLiteral builds the faked packet stream described
// in §4.2: one OnePassSignature packet per enabled hash, emitted in
// the reverse of the canonical {RIPEMD160, SHA1, MD5, TIGER} order
// with the last one emitted flagged IsLast, followed by a LiteralData
// packet ('t' format, zero name, zero timestamp) carrying the
// canonicalized text.
func synthesizeOnePassAndLiteral(hashes int, body []byte) []byte {
	var out []byte
	var enabled []int
	for i := len(hashNames) - 1; i >= 0; i-- {
		h := hashNames[i]
		if hashes&h.bit != 0 {
			if algo, ok := digestAlgoID(h.bit); ok {
				enabled = append(enabled, algo)
			}
		}
	}
	for i, algo := range enabled {
		isLast := i == len(enabled)-1
		out = append(out, encodeNewFormatPacket(tagOnePassSignature, onePassSigBody(sigClassCanonicalText, byte(algo), isLast))...)
	}
	out = append(out, encodeNewFormatPacket(tagLiteralData, literalBody('t', "", 0, body))...)
	return out
}

// digestAlgoID maps a Hash bitmask bit to its RFC 4880 §9.4 digest
// algorithm id. TIGER has no id recognized by the packet parser this
// pipeline delegates to (golang.org/x/crypto/openpgp has no crypto.Hash
// for Tiger), so it is recorded in Hashes but never actually emitted
// as a one-pass signature; see DESIGN.md.
func digestAlgoID(bit int) (int, bool) {
	switch bit {
	case HashMD5:
		return 1, true
	case HashSHA1:
		return 2, true
	case HashRIPEMD160:
		return 3, true
	default:
		return 0, false
	}
}

const (
	sigClassCanonicalText = 0x01
	tagOnePassSignature   = 4
	tagLiteralData        = 11
)

// onePassSigBody builds the 13-byte body of a OnePassSignature packet:
// version 3, sigType, hashAlgo, pubKeyAlgo 0 (unknown/fake), key id 0,
// isLast.
func onePassSigBody(sigType byte, hashAlgo byte, isLast bool) []byte {
	b := make([]byte, 13)
	b[0] = 3
	b[1] = sigType
	b[2] = hashAlgo
	b[3] = 0 // pubkey algo: zero, this one-pass sig never verifies on its own
	// b[4:12] key id: zero
	if isLast {
		b[12] = 1
	}
	return b
}

// literalBody builds a LiteralData packet body.
func literalBody(format byte, name string, timestamp uint32, content []byte) []byte {
	b := make([]byte, 0, 6+len(name)+len(content))
	b = append(b, format, byte(len(name)))
	b = append(b, name...)
	b = append(b, byte(timestamp>>24), byte(timestamp>>16), byte(timestamp>>8), byte(timestamp))
	b = append(b, content...)
	return b
}

// encodeNewFormatPacket wraps body in a new-format OpenPGP packet
// header for the given tag.
func encodeNewFormatPacket(tag byte, body []byte) []byte {
	out := []byte{0xc0 | tag}
	n := len(body)
	switch {
	case n < 192:
		out = append(out, byte(n))
	case n < 8384:
		n -= 192
		out = append(out, byte((n>>8)+192), byte(n&0xff))
	default:
		out = append(out, 0xff, byte(n>>24), byte(n>>16), byte(n>>8), byte(n))
	}
	return append(out, body...)
}

// decodeOneBlock is the whole-buffer engine behind Decode: it scans
// data (which may contain a BEGIN/END block followed by trailing
// bytes) and returns how many bytes were consumed plus the decoded
// Block.
func (r *Reader) decodeOneBlock(data []byte) (consumed int, block *Block, err error) {
	cr := &countingReader{r: bytes.NewReader(data)}
	ar := NewReader(cr)
	var body bytes.Buffer
	_, rerr := io.Copy(&body, ar)
	if rerr != nil && rerr != io.EOF {
		return 0, nil, rerr
	}
	if isClearsignKind(ar.Kind) {
		// Decode (as opposed to DecodeClearSigned) does not support
		// clearsigned text; report it as not found so callers fall
		// back to DecodeClearSigned.
		return 0, nil, pgperr.New(pgperr.KindInvalidArmor, "use DecodeClearSigned for clearsigned text")
	}
	return cr.n - ar.scan.r.Buffered(), &Block{
		Type:    "PGP " + ar.Kind,
		Headers: ar.Headers,
		Bytes:   body.Bytes(),
	}, nil
}

// countingReader tracks how many bytes have been read from the
// underlying reader, so decodeOneBlock can report how much of the
// input buffer was consumed.
type countingReader struct {
	r *bytes.Reader
	n int
}

func (c *countingReader) Read(p []byte) (int, error) {
	n, err := c.r.Read(p)
	c.n += n
	return n, err
}

// DecodeClearSigned decodes the first clearsigned message in data and
// returns the synthesized packet stream (one-pass signature(s),
// literal data, then the trailing Signature packet(s), decoded out of
// their own armor) ready to feed to an OpenPGP packet parser, plus the
// canonicalized body bytes that were (or would be) hashed.
func DecodeClearSigned(data []byte) (packetStream []byte, canonicalBody []byte, err error) {
	ar := NewReader(bytes.NewReader(data))
	kind, ferr := ar.findBegin()
	if ferr != nil {
		return nil, nil, ferr
	}
	if !isClearsignKind(kind) {
		return nil, nil, pgperr.New(pgperr.KindInvalidArmor, "not a clearsigned message")
	}
	ar.Kind = kind
	headers, herr := ar.readHeaders(true)
	if herr != nil {
		return nil, nil, herr
	}
	ar.Headers = headers
	ar.Hashes, ar.NotDashEscaped = parseClearsignHeaders(headers, true)

	var canonical bytes.Buffer
	for {
		line, lerr := ar.scan.next()
		if lerr != nil {
			if lerr == io.EOF {
				return nil, nil, pgperr.New(pgperr.KindInvalidArmor, "clearsigned text never reached a signature block")
			}
			return nil, nil, lerr
		}
		if bytes.HasPrefix(line, []byte("-----BEGIN PGP SIGNATURE-----")) {
			break
		}
		canonical.Write(canonicalizeClearsignLine(line, ar.NotDashEscaped))
		canonical.WriteString("\r\n")
	}

	if err := ar.finishClearsign(canonical.Bytes()); err != nil && err != io.EOF {
		return nil, nil, err
	}
	out := make([]byte, ar.out.Len())
	copy(out, ar.out.Bytes())
	return out, canonical.Bytes(), nil
}
