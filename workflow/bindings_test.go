package workflow

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/mmdatafocus/indicator_monitor/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleBindings = `
indicators:
  - code: IND-AFC-01
    family: FINANCIAL_FEE_RATE
    period: quarterly
  - code: IND-QUA-01
    family: OPEN_RATIO
    count_auto_generated: true
  - code: IND-PRJ-01
    family: EXTERNAL
    higher_is_bad: false
`

func TestParseBindings(t *testing.T) {
	b, err := ParseBindings([]byte(sampleBindings))
	require.NoError(t, err)
	assert.Equal(t, 3, b.Len())

	fee, ok := b.Lookup("IND-AFC-01")
	require.True(t, ok)
	assert.Equal(t, models.IndicatorFamilyFinancialFeeRate, fee.Family)
	assert.Equal(t, "quarterly", fee.Period)

	open, ok := b.Lookup("IND-QUA-01")
	require.True(t, ok)
	assert.True(t, open.CountAutoGenerated)

	ext, ok := b.Lookup("IND-PRJ-01")
	require.True(t, ok)
	require.NotNil(t, ext.HigherIsBad)
	assert.False(t, *ext.HigherIsBad)

	_, ok = b.Lookup("IND-UNKNOWN")
	assert.False(t, ok)
}

func TestParseBindings_Rejects(t *testing.T) {
	tests := []struct {
		name string
		data string
	}{
		{"unknown family", "indicators:\n  - code: A\n    family: MAGIC\n"},
		{"missing code", "indicators:\n  - family: OPEN_RATIO\n"},
		{"unknown period", "indicators:\n  - code: A\n    family: DEVIATION_COUNT\n    period: weekly\n"},
		{"unknown field", "indicators:\n  - code: A\n    family: OPEN_RATIO\n    formula: x/y\n"},
		{"duplicate code", "indicators:\n  - code: A\n    family: OPEN_RATIO\n  - code: A\n    family: COMPLETION_RATIO\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseBindings([]byte(tt.data))
			assert.Error(t, err)
		})
	}
}

func TestNewBindings_RejectsUnknownFamily(t *testing.T) {
	_, err := NewBindings(Binding{Code: "IND-X-01", Family: models.IndicatorFamily("MAGIC")})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown family")

	b, err := NewBindings(Binding{Code: "IND-X-01", Family: models.IndicatorFamilyDeviationCount})
	require.NoError(t, err)
	assert.Equal(t, 1, b.Len())
}

func TestParseBindings_Empty(t *testing.T) {
	b, err := ParseBindings(nil)
	require.NoError(t, err)
	assert.Equal(t, 0, b.Len())
}

func TestLoadBindings(t *testing.T) {
	path := filepath.Join(t.TempDir(), "families.yaml")
	require.NoError(t, os.WriteFile(path, []byte(sampleBindings), 0o600))

	b, err := LoadBindings(path)
	require.NoError(t, err)
	assert.Equal(t, 3, b.Len())

	_, err = LoadBindings(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestBindings_NilIsEmpty(t *testing.T) {
	var b *Bindings
	_, ok := b.Lookup("IND-AFC-01")
	assert.False(t, ok)
	assert.Equal(t, 0, b.Len())
}
