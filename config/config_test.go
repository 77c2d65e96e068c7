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
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/cardinalhq/shardstream/pkg/filereader"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	require.Equal(t, filereader.DefaultBatchSize, cfg.Reader.BatchSize)
	require.Equal(t, -1, cfg.Reader.Cap)
	require.EqualValues(t, -1, cfg.Reader.Seed)
	require.False(t, cfg.Reader.Loop)
	require.Equal(t, "auto", cfg.Format)
	require.Len(t, cfg.ReaderOptions(), 3)
}

func TestLoadEnvOverride(t *testing.T) {
	t.Setenv("SHARDSTREAM_READER_BATCH_SIZE", "64")
	t.Setenv("SHARDSTREAM_READER_LOOP", "true")
	t.Setenv("SHARDSTREAM_READER_SHUFFLE", "true")
	t.Setenv("SHARDSTREAM_READER_CAP", "1000")
	t.Setenv("SHARDSTREAM_READER_SEED", "7")
	t.Setenv("SHARDSTREAM_READER_EPOCH_SIZE", "250")
	t.Setenv("SHARDSTREAM_CATALOG_CACHE_TTL", "90s")
	t.Setenv("SHARDSTREAM_S3_REGION", "us-west-2")
	t.Setenv("SHARDSTREAM_S3_ENDPOINT", "http://localhost:9000")
	t.Setenv("SHARDSTREAM_S3_PATH_STYLE", "true")
	t.Setenv("SHARDSTREAM_TMP_DIR", "/scratch")
	t.Setenv("SHARDSTREAM_FORMAT", "parquet")

	cfg, err := Load()
	require.NoError(t, err)

	require.Equal(t, 64, cfg.Reader.BatchSize)
	require.True(t, cfg.Reader.Loop)
	require.True(t, cfg.Reader.Shuffle)
	require.Equal(t, 1000, cfg.Reader.Cap)
	require.EqualValues(t, 7, cfg.Reader.Seed)
	require.Equal(t, 250, cfg.Reader.EpochSize)
	require.Equal(t, 90*time.Second, cfg.Catalog.CacheTTL)
	require.Equal(t, "us-west-2", cfg.S3.Region)
	require.Equal(t, "http://localhost:9000", cfg.S3.Endpoint)
	require.True(t, cfg.S3.PathStyle)
	require.Equal(t, "/scratch", cfg.TmpDir)
	require.Equal(t, "parquet", cfg.Format)

	require.Len(t, cfg.ReaderOptions(), 7)
}

func TestFetcher(t *testing.T) {
	t.Setenv("AWS_REGION", "us-east-1")
	cfg := DefaultConfig()
	cfg.TmpDir = t.TempDir()

	f, err := cfg.Fetcher(t.Context())
	require.NoError(t, err)
	require.NotNil(t, f)
}
