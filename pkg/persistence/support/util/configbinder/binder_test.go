package configbinder_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tigerroll/surfin-persistence/pkg/persistence/support/util/configbinder"
)

type poolSettings struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	ReadOnly bool   `yaml:"read_only"`
}

func TestBindProperties_WeaklyTyped(t *testing.T) {
	var target poolSettings
	err := configbinder.BindProperties(map[string]interface{}{
		"host":      "db.internal",
		"port":      "5432",
		"read_only": "true",
	}, &target)
	require.NoError(t, err)
	assert.Equal(t, poolSettings{Host: "db.internal", Port: 5432, ReadOnly: true}, target)
}

func TestBindProperties_NilLeavesTargetUntouched(t *testing.T) {
	target := poolSettings{Host: "keep"}
	require.NoError(t, configbinder.BindProperties(nil, &target))
	assert.Equal(t, "keep", target.Host)
}

func TestBindProperties_ReportsTargetType(t *testing.T) {
	var target poolSettings
	err := configbinder.BindProperties(map[string]interface{}{"port": "not-a-number"}, &target)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "poolSettings")
}

func TestBindStringProperties(t *testing.T) {
	var target poolSettings
	require.NoError(t, configbinder.BindStringProperties(map[string]string{"port": "3306"}, &target))
	assert.Equal(t, 3306, target.Port)

	require.NoError(t, configbinder.BindStringProperties(nil, &target))
	assert.Equal(t, 3306, target.Port)
}
