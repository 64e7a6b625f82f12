package entry

import (
	"bufio"
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncodeDecode_RoundTrip(t *testing.T) {
	b := Batch{
		Time: 1700000000.123,
		Data: []Entry{
			{ChType: KindAO, Pin: "GPIO2", Value: NumValue(12.0), Time: 1700000000.5},
			{ChType: KindAI, Pin: "GPIO3", Value: NAKValue(), Time: 1700000000.75},
		},
		Errors: []Error{
			{Source: "ao:GPIO2", Severity: SeverityHigh, Description: "loop open", Time: 1700000000.9},
		},
	}

	encoded, err := Encode(TypeData, b)
	require.NoError(t, err)

	typ, decoded, err := Decode(bufio.NewReader(bytes.NewReader(encoded)))
	require.NoError(t, err)
	assert.Equal(t, TypeData, typ)
	assert.InDelta(t, b.Time, decoded.Time, 1e-6)
	require.Len(t, decoded.Data, 2)
	assert.Equal(t, b.Data[0].ChType, decoded.Data[0].ChType)
	assert.Equal(t, b.Data[0].Pin, decoded.Data[0].Pin)
	assert.InDelta(t, b.Data[0].Value.Num, decoded.Data[0].Value.Num, 1e-6)
	assert.InDelta(t, b.Data[0].Time, decoded.Data[0].Time, 1e-6)
	assert.True(t, decoded.Data[1].Value.IsNAK)
	require.Len(t, decoded.Errors, 1)
	assert.Equal(t, b.Errors[0].Description, decoded.Errors[0].Description)
}

func TestEncode_MillisecondsRoundTrip(t *testing.T) {
	b := Batch{Time: 42, Data: []Entry{{ChType: KindDO, Pin: "GPIO5", Value: NumValue(1), Time: 1000000.123}}}
	encoded, err := Encode(TypeData, b)
	require.NoError(t, err)
	_, decoded, err := Decode(bufio.NewReader(bytes.NewReader(encoded)))
	require.NoError(t, err)
	assert.InDelta(t, 1000000.123, decoded.Data[0].Time, 1e-6)
}

func TestDecode_EmptyFrameOnShortStream(t *testing.T) {
	typ, b, err := Decode(bufio.NewReader(bytes.NewReader([]byte{})))
	require.NoError(t, err)
	assert.Equal(t, TypeData, typ)
	assert.Len(t, b.Data, 0)
}

func TestDecode_EmptyFrameOnPartialPeek(t *testing.T) {
	typ, b, err := Decode(bufio.NewReader(bytes.NewReader([]byte("d:5"))))
	require.NoError(t, err)
	assert.Equal(t, TypeData, typ)
	assert.Len(t, b.Data, 0)
}

func TestDecode_ZeroLengthPayloadYieldsEmptyBatch(t *testing.T) {
	typ, b, err := Decode(bufio.NewReader(bytes.NewReader([]byte("d:0:"))))
	require.NoError(t, err)
	assert.Equal(t, TypeData, typ)
	assert.Len(t, b.Data, 0)
}

func TestDecode_UnrecognizedTypeIsError(t *testing.T) {
	_, _, err := Decode(bufio.NewReader(bytes.NewReader([]byte(`x:2:{}`))))
	require.Error(t, err)
}

func TestDecode_NeverOvershootsIntoNextFrame(t *testing.T) {
	var buf bytes.Buffer
	first, err := Encode(TypeData, Batch{Time: 1, Data: []Entry{{ChType: KindDO, Pin: "A", Value: NumValue(1), Time: 1}}})
	require.NoError(t, err)
	second, err := Encode(TypeData, Batch{Time: 2, Data: []Entry{{ChType: KindDO, Pin: "B", Value: NumValue(0), Time: 2}}})
	require.NoError(t, err)
	buf.Write(first)
	buf.Write(second)

	r := bufio.NewReader(&buf)
	_, b1, err := Decode(r)
	require.NoError(t, err)
	assert.Equal(t, "A", b1.Data[0].Pin)

	_, b2, err := Decode(r)
	require.NoError(t, err)
	assert.Equal(t, "B", b2.Data[0].Pin)
}

func TestSanitize_QuotesAndTrailingComma(t *testing.T) {
	got := Sanitize(`fault: "loop open",`)
	assert.Equal(t, "fault: `loop open`", got)
}
