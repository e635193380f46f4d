package api

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNewValidator_CustomRules(t *testing.T) {
	// GIVEN: A freshly built validator
	// WHEN: Using the custom tags directly
	// THEN: Both rules are registered and enforce their ranges

	v := newValidator()

	assert.NoError(t, v.Var(1, "payrollmonth"))
	assert.NoError(t, v.Var(12, "payrollmonth"))
	assert.Error(t, v.Var(0, "payrollmonth"))
	assert.Error(t, v.Var(13, "payrollmonth"))

	assert.NoError(t, v.Var("Ana", "notblank"))
	assert.Error(t, v.Var("   ", "notblank"))
}
