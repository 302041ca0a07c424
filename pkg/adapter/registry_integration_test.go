package adapter_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gradesim/gradesim/pkg/adapter"

	// Import adapter packages to ensure adapters are registered via init()
	_ "github.com/gradesim/gradesim/pkg/adapters/duckdb"
	_ "github.com/gradesim/gradesim/pkg/adapters/postgres"
)

func TestListAdapters(t *testing.T) {
	adapters := adapter.ListAdapters()
	assert.Contains(t, adapters, "duckdb")
	assert.Contains(t, adapters, "postgres")
}

func TestNewAdapter_Registered(t *testing.T) {
	for _, typ := range []string{"duckdb", "postgres"} {
		t.Run(typ, func(t *testing.T) {
			a, err := adapter.NewAdapter(adapter.Config{Type: typ}, nil)
			require.NoError(t, err)
			require.NotNil(t, a)
			assert.Equal(t, typ, a.Dialect().Name)
			assert.Nil(t, a.DB())
		})
	}
}
