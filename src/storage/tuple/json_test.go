package tuple

import (
	"testing"

	"github.com/go-faster/jx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncodeJSON(t *testing.T) {
	desc := mustDesc(t, []Type{IntType, StringType}, []string{"id", ""})

	tup, err := New(desc, IntField(-7), StringField(`say "hi"`))
	require.NoError(t, err)

	var e jx.Encoder
	tup.EncodeJSON(&e)

	assert.JSONEq(t, `{"id": -7, "1": "say \"hi\""}`, string(e.Bytes()))
}
