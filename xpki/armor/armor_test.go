package armor_test

import (
	"bytes"
	"io"
	"io/ioutil"
	"testing"

	"github.com/lamhaoyin/openpgpingest/xpki/armor"
	"github.com/lamhaoyin/openpgpingest/xpki/pgperr"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/openpgp/packet"
)

func Test_EncodeDecodeRoundTrip(t *testing.T) {
	payload := []byte("hello armored world, across a line boundary that is long enough to wrap into more than one base64 line when encoded")
	headers := map[string]string{"Version": "test-1.0"}

	encoded := armor.Encode("MESSAGE", headers, payload)

	block, rest := armor.Decode(encoded)
	require.NotNil(t, block)
	assert.Equal(t, "PGP MESSAGE", block.Type)
	assert.Equal(t, "test-1.0", block.Headers["Version"])
	assert.Equal(t, payload, block.Bytes)
	assert.Empty(t, rest)
}

func Test_Decode_MultipleBlocksConcatenated(t *testing.T) {
	a := armor.Encode("PUBLIC KEY BLOCK", nil, []byte("first block body"))
	b := armor.Encode("PUBLIC KEY BLOCK", nil, []byte("second block body"))
	data := append(append([]byte{}, a...), b...)

	count := 0
	for len(data) > 0 {
		block, rest := armor.Decode(data)
		require.NotNil(t, block)
		count++
		if len(rest) == len(data) {
			t.Fatalf("Decode made no progress")
		}
		data = rest
	}
	assert.Equal(t, 2, count)
}

func Test_Decode_CorruptCRCIsRejected(t *testing.T) {
	encoded := armor.Encode("MESSAGE", nil, []byte("some payload bytes"))
	// flip a bit inside the base64 body, leaving the CRC trailer as-is.
	corrupt := append([]byte{}, encoded...)
	bodyStart := bytes.Index(corrupt, []byte("\n\n")) + 2
	corrupt[bodyStart] = corrupt[bodyStart] ^ 0x01

	r := armor.NewReader(bytes.NewReader(corrupt))
	_, err := io.Copy(ioutil.Discard, r)
	require.Error(t, err)
	assert.Equal(t, pgperr.KindInvalidArmor, pgperr.Classify(err))
}

func Test_Decode_NoArmorIsNoValidData(t *testing.T) {
	r := armor.NewReader(bytes.NewReader([]byte("not armor at all\njust text\n")))
	_, err := io.Copy(ioutil.Discard, r)
	require.Error(t, err)
	assert.Equal(t, pgperr.KindNoValidData, pgperr.Classify(err))
}

func Test_UseArmorFilter(t *testing.T) {
	assert.True(t, armor.UseArmorFilter([]byte("-----BEGIN PGP MESSAGE-----")))
	assert.True(t, armor.UseArmorFilter(nil))
	// A new-format packet tag byte (0xc0 | tag): should not need the filter.
	assert.False(t, armor.UseArmorFilter([]byte{0xc4, 0x10}))
}

func Test_DecodeClearSigned_DashEscaped(t *testing.T) {
	want := "- this line looks like an armor header\r\nordinary line\r\n"
	msg := "-----BEGIN PGP SIGNED MESSAGE-----\n" +
		"Hash: SHA1\n\n" +
		"- - this line looks like an armor header\nordinary line\n" +
		"-----BEGIN PGP SIGNATURE-----\n\n" +
		string(armor.Encode("SIGNATURE", nil, []byte("fake-sig-body"))[len("-----BEGIN PGP SIGNATURE-----\n"):])

	stream, canonical, err := armor.DecodeClearSigned([]byte(msg))
	require.NoError(t, err)
	assert.Equal(t, want, string(canonical))
	assert.NotEmpty(t, stream)

	// the synthesized stream must start with a valid new-format OnePassSignature packet.
	p := packet.NewReader(bytes.NewReader(stream))
	pkt, err := p.Next()
	require.NoError(t, err)
	_, ok := pkt.(*packet.OnePassSignature)
	assert.True(t, ok)
}

func Test_DecodeClearSigned_NotDashEscaped(t *testing.T) {
	msg := "-----BEGIN PGP SIGNED MESSAGE-----\n" +
		"Hash: SHA1\n" +
		"NotDashEscaped: yes\n\n" +
		"- line kept verbatim\n" +
		"-----BEGIN PGP SIGNATURE-----\n\n" +
		string(armor.Encode("SIGNATURE", nil, []byte("fake-sig-body"))[len("-----BEGIN PGP SIGNATURE-----\n"):])

	_, canonical, err := armor.DecodeClearSigned([]byte(msg))
	require.NoError(t, err)
	assert.Equal(t, "- line kept verbatim\r\n", string(canonical))
}
