package pgp_test

import (
	"bytes"
	"io"
	"testing"

	"github.com/lamhaoyin/openpgpingest/xpki/pgp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/openpgp"
	"golang.org/x/crypto/openpgp/packet"
)

func newEntity(t *testing.T, name string) *openpgp.Entity {
	e, err := openpgp.NewEntity(name, "", name+"@example.com", &packet.Config{RSABits: 1024})
	require.NoError(t, err)
	return e
}

func Test_Sequencer_InBandSignedMessage_GoodSig(t *testing.T) {
	signer := newEntity(t, "alice")

	var buf bytes.Buffer
	w, err := openpgp.Sign(&buf, signer, nil, nil)
	require.NoError(t, err)
	_, err = io.WriteString(w, "hello, this is signed content\n")
	require.NoError(t, err)
	require.NoError(t, w.Close())

	seq := pgp.NewSequencer(pgp.ModeFull, openpgp.EntityList{signer}, nil, nil)
	err = seq.ProcessPackets(&buf)
	require.NoError(t, err)

	require.Len(t, seq.Trees, 1)
	require.Len(t, seq.Trees[0].Signatures, 1)
	assert.Equal(t, "!", seq.Trees[0].Signatures[0].Outcome)
}

func Test_Sequencer_InBandSignedMessage_UnknownSigner(t *testing.T) {
	signer := newEntity(t, "alice")
	other := newEntity(t, "mallory")

	var buf bytes.Buffer
	w, err := openpgp.Sign(&buf, signer, nil, nil)
	require.NoError(t, err)
	_, err = io.WriteString(w, "hello\n")
	require.NoError(t, err)
	require.NoError(t, w.Close())

	seq := pgp.NewSequencer(pgp.ModeFull, openpgp.EntityList{other}, nil, nil)
	err = seq.ProcessPackets(&buf)
	require.NoError(t, err)

	require.Len(t, seq.Trees, 1)
	require.Len(t, seq.Trees[0].Signatures, 1)
	assert.Equal(t, "?", seq.Trees[0].Signatures[0].Outcome)
}

func Test_Sequencer_PubkeyEncryptedSignedMessage(t *testing.T) {
	recipient := newEntity(t, "bob")
	signer := newEntity(t, "alice")

	plaintext := []byte("top secret payload\n")

	var buf bytes.Buffer
	w, err := openpgp.Encrypt(&buf, []*openpgp.Entity{recipient}, signer, nil, nil)
	require.NoError(t, err)
	_, err = w.Write(plaintext)
	require.NoError(t, err)
	require.NoError(t, w.Close())

	keyring := openpgp.EntityList{recipient, signer}
	seq := pgp.NewSequencer(pgp.ModeFull, keyring, nil, nil)

	var recovered bytes.Buffer
	seq.SetPlaintextSink(&recovered)

	err = seq.ProcessPackets(&buf)
	require.NoError(t, err)

	assert.Equal(t, string(plaintext), recovered.String())
	require.Len(t, seq.Trees, 1)
	require.Len(t, seq.Trees[0].Signatures, 1)
	assert.Equal(t, "!", seq.Trees[0].Signatures[0].Outcome)
}

func Test_Sequencer_SymmetricallyEncryptedMessage(t *testing.T) {
	passphrase := []byte("correct horse battery staple")
	plaintext := []byte("conventionally encrypted body\n")

	var buf bytes.Buffer
	w, err := openpgp.SymmetricallyEncrypt(&buf, passphrase, nil, nil)
	require.NoError(t, err)
	_, err = w.Write(plaintext)
	require.NoError(t, err)
	require.NoError(t, w.Close())

	seq := pgp.NewSequencer(pgp.ModeFull, nil, nil, nil)
	seq.SetPassphrase(passphrase)

	var recovered bytes.Buffer
	seq.SetPlaintextSink(&recovered)

	err = seq.ProcessPackets(&buf)
	require.NoError(t, err)
	assert.Equal(t, string(plaintext), recovered.String())
}

func Test_Sequencer_Keyblock_SelfSignature(t *testing.T) {
	e := newEntity(t, "carol")

	var buf bytes.Buffer
	require.NoError(t, e.Serialize(&buf))

	seq := pgp.NewSequencer(pgp.ModeFull, openpgp.EntityList{e}, nil, nil)
	require.NoError(t, seq.ProcessPackets(&buf))

	require.Len(t, seq.Trees, 1)
	require.NotEmpty(t, seq.Trees[0].Signatures)
	for _, sig := range seq.Trees[0].Signatures {
		assert.Equal(t, "!", sig.Outcome)
		assert.True(t, sig.SelfSig)
	}
}

func Test_Sequencer_DetachedSignature(t *testing.T) {
	signer := newEntity(t, "dave")
	data := []byte("external file contents\n")

	var sigBuf bytes.Buffer
	require.NoError(t, openpgp.DetachSign(&sigBuf, signer, bytes.NewReader(data), nil))

	seq := pgp.NewSequencer(pgp.ModeSigsOnly, openpgp.EntityList{signer}, nil, memDetachedSource{"data.txt": data})
	err := seq.ProcessSignaturePackets(&sigBuf, []string{"data.txt"}, "data.txt.sig")
	require.NoError(t, err)

	require.Len(t, seq.Trees, 1)
	require.Len(t, seq.Trees[0].Signatures, 1)
	assert.Equal(t, "!", seq.Trees[0].Signatures[0].Outcome)
}

type memDetachedSource map[string][]byte

func (m memDetachedSource) Open(name string) (io.Reader, error) {
	data, ok := m[name]
	if !ok {
		return nil, errNotFound(name)
	}
	return bytes.NewReader(data), nil
}

type errNotFound string

func (e errNotFound) Error() string { return "no such detached file: " + string(e) }
