package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/require"
)

func valid() Config {
	return Config{
		DataDir:  "/tmp/mz",
		Owner:    "u1",
		Timezone: "UTC",
		Output:   OutputTable,
		Remote:   RemoteGRPC,
		Addr:     "localhost:8443",
	}
}

func TestValidate(t *testing.T) {
	t.Parallel()
	require.NoError(t, valid().Validate())

	cases := map[string]func(*Config){
		"no owner":        func(c *Config) { c.Owner = " " },
		"no data dir":     func(c *Config) { c.DataDir = "" },
		"bad timezone":    func(c *Config) { c.Timezone = "Mars/Olympus" },
		"bad output":      func(c *Config) { c.Output = "xml" },
		"bad remote":      func(c *Config) { c.Remote = "ftp" },
		"grpc no addr":    func(c *Config) { c.Addr = "" },
		"s3 no bucket":    func(c *Config) { c.Remote = RemoteS3 },
		"negative dur":    func(c *Config) { c.ProbeInterval = -time.Second },
		"negative limits": func(c *Config) { c.Sync.MaxRetries = -1 },
	}
	for name, mutate := range cases {
		c := valid()
		mutate(&c)
		require.Error(t, c.Validate(), name)
	}

	c := valid()
	c.Remote = RemoteMemory
	c.Addr = ""
	require.NoError(t, c.Validate())
}

func TestLoad_FileEnvAndFlagsPrecedence(t *testing.T) {
	dir := t.TempDir()
	yaml := []byte("owner: from-file\naddr: file:1\ntimezone: UTC\nsync:\n  max-retries: 4\ns3:\n  bucket: b1\n")
	require.NoError(t, os.WriteFile(filepath.Join(dir, FileName), yaml, 0o600))

	t.Setenv("MEDIZONE_ADDR", "env:2")
	t.Setenv("MEDIZONE_SYNC_RETRY_INTERVAL", "5s")

	v := viper.New()
	v.Set("data-dir", dir)
	v.Set("output", OutputJSON) // stands in for a bound flag

	c, err := Load(v)
	require.NoError(t, err)
	require.Equal(t, "from-file", c.Owner)
	require.Equal(t, "env:2", c.Addr, "env beats file")
	require.Equal(t, OutputJSON, c.Output)
	require.Equal(t, 4, c.Sync.MaxRetries)
	require.Equal(t, 5*time.Second, c.Sync.RetryInterval)
	require.Equal(t, 30*time.Minute, c.Sync.MaxRetryInterval)
	require.Equal(t, "b1", c.S3.Bucket)
	require.Equal(t, time.UTC, c.Location())
	require.Equal(t, filepath.Join(dir, "medizone.db"), c.DBPath())
}

func TestLoad_NoFileRequiresOwner(t *testing.T) {
	v := viper.New()
	v.Set("data-dir", t.TempDir())
	_, err := Load(v)
	require.ErrorContains(t, err, "owner is required")

	t.Setenv("MEDIZONE_OWNER", "u9")
	v = viper.New()
	v.Set("data-dir", t.TempDir())
	c, err := Load(v)
	require.NoError(t, err)
	require.Equal(t, "u9", c.Owner)
	require.Equal(t, RemoteGRPC, c.Remote)
}
