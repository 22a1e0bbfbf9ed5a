package db

import (
	"bytes"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/bsonrw"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

type earnings struct {
	Total decimal.Decimal `bson:"total"`
}

func marshal(t *testing.T, v any) []byte {
	t.Helper()
	buf := new(bytes.Buffer)
	vw, err := bsonrw.NewBSONValueWriter(buf)
	require.NoError(t, err)
	enc, err := bson.NewEncoder(vw)
	require.NoError(t, err)
	require.NoError(t, enc.SetRegistry(MongoRegistry()))
	require.NoError(t, enc.Encode(v))
	return buf.Bytes()
}

func unmarshal(t *testing.T, data []byte, v any) {
	t.Helper()
	dec, err := bson.NewDecoder(bsonrw.NewBSONDocumentReader(data))
	require.NoError(t, err)
	require.NoError(t, dec.SetRegistry(MongoRegistry()))
	require.NoError(t, dec.Decode(v))
}

func TestMongoRegistry_Decimal(t *testing.T) {
	data := marshal(t, earnings{Total: decimal.RequireFromString("207.5")})

	var raw bson.M
	require.NoError(t, bson.Unmarshal(data, &raw))
	assert.IsType(t, primitive.Decimal128{}, raw["total"], "stored as Decimal128")

	var got earnings
	unmarshal(t, data, &got)
	assert.Equal(t, "207.5", got.Total.String())
}

func TestMongoRegistry_DecodesNumbers(t *testing.T) {
	for name, doc := range map[string]bson.M{
		"int64":  {"total": int64(200)},
		"int32":  {"total": int32(200)},
		"double": {"total": 200.0},
	} {
		t.Run(name, func(t *testing.T) {
			data, err := bson.Marshal(doc)
			require.NoError(t, err)

			var got earnings
			unmarshal(t, data, &got)
			assert.Equal(t, "200", got.Total.String())
		})
	}

	data, err := bson.Marshal(bson.M{"total": nil})
	require.NoError(t, err)
	var got earnings
	unmarshal(t, data, &got)
	assert.True(t, got.Total.IsZero())
}
