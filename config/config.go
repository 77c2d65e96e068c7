// Copyright (C) 2025 CardinalHQ, Inc
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as
// published by the Free Software Foundation, version 3.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU Affero General Public License for more details.
//
// You should have received a copy of the GNU Affero General Public License
// along with this program. If not, see <http://www.gnu.org/licenses/>.

package config

import (
	"context"
	"reflect"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/cardinalhq/shardstream/pkg/container/blob"
	"github.com/cardinalhq/shardstream/pkg/filereader"
)

// Config aggregates configuration for the command line tools.
type Config struct {
	Reader  ReaderConfig  `mapstructure:"reader"`
	Catalog CatalogConfig `mapstructure:"catalog"`
	S3      blob.S3Config `mapstructure:"s3"`

	// Format selects the container backend: "auto", "parquet" or "arrow".
	Format string `mapstructure:"format"`

	// TmpDir receives downloaded and decompressed shards.
	TmpDir string `mapstructure:"tmp_dir"`

	// LogFile, when set, receives JSON logs in addition to stderr.
	LogFile string `mapstructure:"log_file"`
}

// ReaderConfig holds the streaming reader defaults.
type ReaderConfig struct {
	BatchSize int  `mapstructure:"batch_size"`
	Loop      bool `mapstructure:"loop"`
	Shuffle   bool `mapstructure:"shuffle"`

	// Cap limits the total number of samples. Negative means no limit.
	Cap int `mapstructure:"cap"`

	// Seed makes shuffling reproducible. Negative means a random seed.
	Seed int64 `mapstructure:"seed"`

	// EpochSize limits the samples of each loop pass. Zero means a pass
	// covers every shard.
	EpochSize int `mapstructure:"epoch_size"`
}

// CatalogConfig configures the shard catalog cache.
type CatalogConfig struct {
	// CacheTTL keeps shard sample counts for this long. Zero disables the
	// cache.
	CacheTTL time.Duration `mapstructure:"cache_ttl"`
}

// DefaultConfig returns the configuration used when nothing is set.
func DefaultConfig() *Config {
	return &Config{
		Reader: ReaderConfig{
			BatchSize: filereader.DefaultBatchSize,
			Cap:       -1,
			Seed:      -1,
		},
		Format: "auto",
	}
}

// Load reads configuration from files and environment variables.
// Environment variables use the prefix "SHARDSTREAM" and the dot character
// in keys is replaced by an underscore. For example, "reader.batch_size"
// becomes "SHARDSTREAM_READER_BATCH_SIZE".
func Load() (*Config, error) {
	cfg := DefaultConfig()

	v := viper.New()
	v.SetConfigName("config")
	v.AddConfigPath(".")
	v.SetEnvPrefix("SHARDSTREAM")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	bindEnvs(v, cfg)
	_ = v.ReadInConfig()

	if err := v.Unmarshal(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// ReaderOptions converts the reader section to reader options.
func (c *Config) ReaderOptions() []filereader.Option {
	opts := []filereader.Option{
		filereader.WithBatchSize(c.Reader.BatchSize),
		filereader.WithLoop(c.Reader.Loop),
		filereader.WithShuffle(c.Reader.Shuffle),
	}
	if c.Reader.Cap >= 0 {
		opts = append(opts, filereader.WithCap(c.Reader.Cap))
	}
	if c.Reader.Seed >= 0 {
		opts = append(opts, filereader.WithSeed(uint64(c.Reader.Seed)))
	}
	if c.Reader.EpochSize > 0 {
		opts = append(opts, filereader.WithEpochSize(c.Reader.EpochSize))
	}
	if c.Catalog.CacheTTL > 0 {
		opts = append(opts, filereader.WithCatalogCache(filereader.NewCatalogCache(c.Catalog.CacheTTL)))
	}
	return opts
}

// Fetcher returns the blob fetcher for local paths and s3:// URLs, with
// transparent decompression of .zst and .gz shards.
func (c *Config) Fetcher(ctx context.Context) (blob.Fetcher, error) {
	client, err := blob.NewS3Client(ctx, c.S3)
	if err != nil {
		return nil, err
	}
	mux := blob.NewMux(blob.Local{}).Handle(blob.S3Scheme, blob.NewS3(client, c.TmpDir))
	return blob.NewDecompressing(mux, c.TmpDir), nil
}

// bindEnvs registers all keys within cfg so that viper will look up
// corresponding environment variables when unmarshalling.
func bindEnvs(v *viper.Viper, cfg any, parts ...string) {
	val := reflect.ValueOf(cfg)
	typ := reflect.TypeOf(cfg)
	if typ.Kind() == reflect.Ptr {
		val = val.Elem()
		typ = typ.Elem()
	}
	for i := 0; i < typ.NumField(); i++ {
		f := typ.Field(i)
		tag := f.Tag.Get("mapstructure")
		if tag == "" {
			tag = strings.ToLower(f.Name)
		}
		key := append(parts, tag)
		if f.Type.Kind() == reflect.Struct {
			bindEnvs(v, val.Field(i).Interface(), key...)
			continue
		}
		_ = v.BindEnv(strings.Join(key, "."))
	}
}
