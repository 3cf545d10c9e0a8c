package payroll

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func TestThresholdsValidate(t *testing.T) {
	assert.NoError(t, DefaultThresholds().Validate())
	assert.NoError(t, Thresholds{Regular: 0, Overtime: 6}.Validate())
	assert.Error(t, Thresholds{Regular: 10}.Validate())
	assert.Error(t, Thresholds{Regular: 10, Overtime: 9}.Validate())
	assert.Error(t, Thresholds{Regular: -1}.Validate())
}

func TestThresholdOverride(t *testing.T) {
	assert.NoError(t, ThresholdOverride{}.Validate())
	assert.NoError(t, ThresholdOverride{Regular: hoursPtr(14)}.Validate())
	assert.NoError(t, ThresholdOverride{Regular: hoursPtr(0)}.Validate())
	assert.Error(t, ThresholdOverride{Regular: hoursPtr(10), Overtime: hoursPtr(9)}.Validate())
	assert.Error(t, ThresholdOverride{Overtime: hoursPtr(-1)}.Validate())

	base := DefaultThresholds()
	assert.Equal(t, base, ThresholdOverride{}.Apply(base))
	assert.Equal(t, Thresholds{Regular: 0, Overtime: 12}, ThresholdOverride{Regular: hoursPtr(0)}.Apply(base))
	assert.Equal(t, Thresholds{Regular: 14, Overtime: 14}, ThresholdOverride{Regular: hoursPtr(14)}.Apply(base))
	assert.Equal(t, Thresholds{Regular: 10, Overtime: 12}, Thresholds{Regular: 10, Overtime: 12}.Override().Apply(Thresholds{}))
}

func TestRateProfileValidate(t *testing.T) {
	p := testProfile()
	assert.NoError(t, p.Validate())

	p.OvertimeRate = decimal.NewFromInt(-1)
	assert.Error(t, p.Validate())

	assert.Error(t, RateProfile{RegularRate: decimal.NewFromInt(30)}.Validate())
}
