package config

import (
	"io/ioutil"
	"os"
	"path/filepath"
	"testing"

	. "github.com/pingcap/check"
)

func TestConfig(t *testing.T) {
	TestingT(t)
}

var _ = Suite(&testConfigSuite{})

type testConfigSuite struct {
	dir string
}

func (s *testConfigSuite) SetUpTest(c *C) {
	dir, err := ioutil.TempDir("", "tinymvcc-config")
	c.Assert(err, IsNil)
	s.dir = dir
}

func (s *testConfigSuite) TearDownTest(c *C) {
	os.RemoveAll(s.dir)
}

func (s *testConfigSuite) write(c *C, content string) string {
	path := filepath.Join(s.dir, "config.toml")
	c.Assert(ioutil.WriteFile(path, []byte(content), 0644), IsNil)
	return path
}

func (s *testConfigSuite) TestDefault(c *C) {
	conf, err := Load("")
	c.Assert(err, IsNil)
	c.Assert(conf.Validate(), IsNil)
	c.Assert(conf.Engine, Equals, DefaultConf.Engine)
	c.Assert(conf.Log.Level, Equals, "info")

	// The defaults are copied, not shared.
	conf.Engine.PageSlots = 1
	c.Assert(DefaultConf.Engine.PageSlots, Equals, 64)
}

func (s *testConfigSuite) TestLoad(c *C) {
	path := s.write(c, `
[log]
level = "debug"

[engine]
page-slots = 16

[status]
addr = "127.0.0.1:0"
metrics = true

[bench]
workers = 2
rows = 10
writes-per-txn = 3
`)
	conf, err := Load(path)
	c.Assert(err, IsNil)
	c.Assert(conf.Validate(), IsNil)
	c.Assert(conf.Log.Level, Equals, "debug")
	c.Assert(conf.Engine.PageSlots, Equals, 16)
	c.Assert(conf.Engine.LatchShards, Equals, DefaultConf.Engine.LatchShards)
	c.Assert(conf.Status.Metrics, IsTrue)
	c.Assert(conf.Bench.Workers, Equals, 2)
	c.Assert(conf.Bench.Txns, Equals, DefaultConf.Bench.Txns)
	c.Assert(conf.Bench.WritesPerTxn, Equals, 3)
}

func (s *testConfigSuite) TestLoadErrors(c *C) {
	_, err := Load(filepath.Join(s.dir, "missing.toml"))
	c.Assert(err, NotNil)

	_, err = Load(s.write(c, "[engine]\npage-slot = 3\n"))
	c.Assert(err, ErrorMatches, ".*unknown items.*")

	_, err = Load(s.write(c, "[engine\n"))
	c.Assert(err, NotNil)
}

func (s *testConfigSuite) TestValidate(c *C) {
	cases := []func(*Config){
		func(conf *Config) { conf.Engine.PageSlots = 0 },
		func(conf *Config) { conf.Engine.LatchShards = -1 },
		func(conf *Config) { conf.Bench.Workers = 0 },
		func(conf *Config) { conf.Bench.Rows = 0 },
		func(conf *Config) { conf.Bench.WritesPerTxn = conf.Bench.Rows + 1 },
		func(conf *Config) { conf.Status.Metrics, conf.Status.Addr = true, "" },
	}
	for i, change := range cases {
		conf := NewDefaultConfig()
		change(conf)
		c.Assert(conf.Validate(), NotNil, Commentf("case %d", i))
	}
}

func (s *testConfigSuite) TestSetupLogger(c *C) {
	conf := NewDefaultConfig()
	conf.Log.Level = "warn"
	c.Assert(conf.SetupLogger(), IsNil)
	c.Assert(conf.GetZapLogger(), NotNil)
}
