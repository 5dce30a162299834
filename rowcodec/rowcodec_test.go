package rowcodec

import (
	"testing"

	"github.com/pingcap-incubator/tinymvcc/kv/types"
	. "github.com/pingcap/check"
	"github.com/shopspring/decimal"
)

func TestT(t *testing.T) {
	TestingT(t)
}

var _ = Suite(&testSuite{})

type testSuite struct{}

func (s *testSuite) TestRowCodec(c *C) {
	schema := types.NewSchema(
		types.Column{Name: "a", Kind: types.KindInt},
		types.Column{Name: "b", Kind: types.KindVarchar},
		types.Column{Name: "c", Kind: types.KindBool},
		types.Column{Name: "d", Kind: types.KindDecimal},
	)
	row := types.Row{types.NewInt(-42), types.NewVarchar("hello, world"), types.NewBool(true), types.NewDecimal(decimal.New(1234, -2))}

	data := Encode(nil, row)
	got, err := Decode(schema, data)
	c.Assert(err, IsNil)
	c.Assert(got.Equal(row), IsTrue)

	withNull := types.Row{types.NewNull(), types.NewVarchar(""), types.NewNull(), types.NewNull()}
	got, err = Decode(schema, Encode(nil, withNull))
	c.Assert(err, IsNil)
	c.Assert(got.Equal(withNull), IsTrue)
}

func (s *testSuite) TestDecodeMismatch(c *C) {
	schema := types.NewSchema(types.Column{Name: "a", Kind: types.KindInt})
	_, err := Decode(schema, Encode(nil, types.Row{types.NewVarchar("x")}))
	c.Assert(err, NotNil)

	_, err = Decode(schema, Encode(nil, types.Row{types.NewInt(1), types.NewInt(2)}))
	c.Assert(err, NotNil)

	data := Encode(nil, types.Row{types.NewInt(1)})
	_, err = Decode(schema, data[:len(data)-1])
	c.Assert(err, NotNil)
}
