// Package rowcodec encodes rows into the byte payload kept in a table heap slot.
//
// The format is a column count followed by one tagged value per column:
//
//   [count int][kind byte][payload]...[kind byte][payload]
//
// Ints use the comparable int encoding, varchars and decimals use the
// memcomparable bytes encoding, bools are one byte and nulls have no payload.
package rowcodec

import (
	"github.com/pingcap-incubator/tinymvcc/kv/types"
	"github.com/pingcap-incubator/tinymvcc/kv/util/codec"
	"github.com/pingcap/errors"
	"github.com/shopspring/decimal"
)

// Encode appends the encoding of row to buf.
func Encode(buf []byte, row types.Row) []byte {
	buf = codec.EncodeInt(buf, int64(len(row)))
	for _, v := range row {
		buf = append(buf, byte(v.Kind()))
		switch v.Kind() {
		case types.KindInt:
			buf = codec.EncodeInt(buf, v.Int())
		case types.KindBool:
			if v.Bool() {
				buf = append(buf, 1)
			} else {
				buf = append(buf, 0)
			}
		case types.KindVarchar:
			buf = codec.EncodeBytes(buf, []byte(v.Varchar()))
		case types.KindDecimal:
			buf = codec.EncodeBytes(buf, []byte(v.Decimal().String()))
		}
	}
	return buf
}

// Decode decodes data against schema. It fails if the encoded row does not match the schema.
func Decode(schema *types.Schema, data []byte) (types.Row, error) {
	data, n, err := codec.DecodeInt(data)
	if err != nil {
		return nil, errors.Trace(err)
	}
	if int(n) != schema.ColumnCount() {
		return nil, errors.Errorf("rowcodec: encoded row has %d columns, schema has %d", n, schema.ColumnCount())
	}
	row := make(types.Row, n)
	for i := range row {
		if len(data) == 0 {
			return nil, errors.New("rowcodec: insufficient bytes to decode kind")
		}
		kind := types.Kind(data[0])
		data = data[1:]
		if kind != types.KindNull && kind != schema.Columns[i].Kind {
			return nil, errors.Errorf("rowcodec: column %d encoded as %s, schema says %s", i, kind, schema.Columns[i].Kind)
		}
		switch kind {
		case types.KindNull:
			row[i] = types.NewNull()
		case types.KindInt:
			var v int64
			data, v, err = codec.DecodeInt(data)
			if err != nil {
				return nil, errors.Trace(err)
			}
			row[i] = types.NewInt(v)
		case types.KindBool:
			if len(data) == 0 {
				return nil, errors.New("rowcodec: insufficient bytes to decode bool")
			}
			row[i] = types.NewBool(data[0] != 0)
			data = data[1:]
		case types.KindVarchar:
			var b []byte
			data, b, err = codec.DecodeBytes(data)
			if err != nil {
				return nil, errors.Trace(err)
			}
			row[i] = types.NewVarchar(string(b))
		case types.KindDecimal:
			var b []byte
			data, b, err = codec.DecodeBytes(data)
			if err != nil {
				return nil, errors.Trace(err)
			}
			d, err := decimal.NewFromString(string(b))
			if err != nil {
				return nil, errors.Annotatef(err, "rowcodec: column %d", i)
			}
			row[i] = types.NewDecimal(d)
		default:
			return nil, errors.Errorf("rowcodec: unknown kind %d", kind)
		}
	}
	if len(data) != 0 {
		return nil, errors.Errorf("rowcodec: %d trailing bytes", len(data))
	}
	return row, nil
}
