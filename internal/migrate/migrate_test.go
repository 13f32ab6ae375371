package migrate

import (
	"io/fs"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew_NormalizesDSN(t *testing.T) {
	m, err := New(logrus.New(), "clickhouse://default@ch:9000/metrics?dial_timeout=5s")
	require.NoError(t, err)

	assert.Equal(t,
		"clickhouse://default@ch:9000/metrics?dial_timeout=5s&x-multi-statement=true",
		m.(*migrator).DSN(),
	)
}

func TestNew_RejectsOtherSchemes(t *testing.T) {
	_, err := New(logrus.New(), "http://ch:8123")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "clickhouse scheme")
}

func TestMigrations_Paired(t *testing.T) {
	ups, err := fs.Glob(migrations, "sql/*.up.sql")
	require.NoError(t, err)

	downs, err := fs.Glob(migrations, "sql/*.down.sql")
	require.NoError(t, err)

	require.NotEmpty(t, ups)
	assert.Len(t, downs, len(ups))

	up, err := fs.ReadFile(migrations, "sql/000001_create_ts_batches.up.sql")
	require.NoError(t, err)
	assert.Contains(t, string(up), "payload String")
}
