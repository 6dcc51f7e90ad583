package helper_test

import (
	"errors"
	"testing"

	"github.com/on-the-ground/fiber_ive_go/shared/helper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGetTypedValueOf(t *testing.T) {
	v, err := helper.GetTypedValueOf[int](func() (any, error) { return 3, nil })
	require.NoError(t, err)
	assert.Equal(t, 3, v)

	_, err = helper.GetTypedValueOf[int](func() (any, error) { return "3", nil })
	assert.Error(t, err)

	boom := errors.New("boom")
	_, err = helper.GetTypedValueOf[int](func() (any, error) { return nil, boom })
	assert.ErrorIs(t, err, boom)
}

func TestCast_NilRoundTrips(t *testing.T) {
	assert.Nil(t, helper.Cast[error](nil))
	assert.Nil(t, helper.Cast[*int](nil))
	assert.Equal(t, 0, helper.Cast[int](nil))

	_, ok := helper.TryCast[string](1)
	assert.False(t, ok)
	assert.Panics(t, func() { helper.Cast[string](1) })
}
