package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseGradeTokenRoundTrip(t *testing.T) {
	tokens := []string{"1.0", "1.25", "1.5", "1.75", "2.0", "2.25", "2.5", "2.75", "3.0", "4.0", "5.0", "INC", "DRP"}
	for _, token := range tokens {
		value, ok := ParseGradeToken(token)
		require.True(t, ok, "token %s should parse", token)
		display, ok := value.Display()
		require.True(t, ok)
		assert.Equal(t, token, display)
	}
}

func TestParseGradeTokenRejectsUnknown(t *testing.T) {
	for _, token := range []string{"", "3.5", "0.5", "inc", "A", "1"} {
		_, ok := ParseGradeToken(token)
		assert.False(t, ok, "token %q should not parse", token)
	}
}

func TestGradeValueIsPassing(t *testing.T) {
	cases := []struct {
		value   GradeValue
		passing bool
	}{
		{Grade100, true},
		{Grade300, true},
		{Grade400, false},
		{Grade500, false},
		{GradeINC, false},
		{GradeDRP, false},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.passing, tc.value.IsPassing(), "value %s", tc.value)
	}
}

func TestGradeValueRequiresRepeatWindow(t *testing.T) {
	assert.True(t, Grade500.RequiresRepeatWindow())
	assert.True(t, GradeINC.RequiresRepeatWindow())
	assert.False(t, Grade400.RequiresRepeatWindow())
	assert.False(t, GradeDRP.RequiresRepeatWindow())
	assert.False(t, Grade100.RequiresRepeatWindow())
}

func TestComputeGPA(t *testing.T) {
	gpa := ComputeGPA([]GradeValue{Grade100, Grade200})
	require.NotNil(t, gpa)
	assert.Equal(t, 1.5, *gpa)

	gpa = ComputeGPA([]GradeValue{Grade125, Grade175, Grade250})
	require.NotNil(t, gpa)
	assert.Equal(t, 1.83, *gpa)
}

func TestComputeGPASkipsNonNumeric(t *testing.T) {
	gpa := ComputeGPA([]GradeValue{Grade200, GradeINC, GradeDRP})
	require.NotNil(t, gpa)
	assert.Equal(t, 2.0, *gpa)
}

func TestComputeGPAUndefinedWithoutNumericGrades(t *testing.T) {
	assert.Nil(t, ComputeGPA(nil))
	assert.Nil(t, ComputeGPA([]GradeValue{GradeINC, GradeDRP}))
}

func TestRepeatEligibilityDate(t *testing.T) {
	encoded := time.Date(2026, time.January, 15, 0, 0, 0, 0, time.UTC)

	major := RepeatEligibilityDate(SubjectTypeMajor, encoded)
	assert.Equal(t, time.Date(2026, time.July, 15, 0, 0, 0, 0, time.UTC), major)

	minor := RepeatEligibilityDate(SubjectTypeMinor, encoded)
	assert.Equal(t, time.Date(2027, time.January, 15, 0, 0, 0, 0, time.UTC), minor)
}
