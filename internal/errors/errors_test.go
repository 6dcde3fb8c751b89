package errors

import (
	"fmt"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCombineNil(t *testing.T) {
	err := New("error")
	require.Equal(t, err, Combine(err, nil))
	require.Equal(t, err, Combine(nil, err))
	require.Nil(t, Combine(nil, nil))
}

func TestCombineMulti(t *testing.T) {
	err0 := New("error0")
	err1 := New("error1")
	err2 := New("error2")

	errs := Combine(Combine(err0, err1), err2).(Errors).Slice()
	require.Len(t, errs, 3)
	assert.Equal(t, err0, errs[0])
	assert.Equal(t, err1, errs[1])
	assert.Equal(t, err2, errs[2])
}

func TestDefer(t *testing.T) {
	run := func() (err error) {
		defer Defer(&err, func() error { return New("close") })
		return New("body")
	}
	err := run()
	require.Error(t, err)
	assert.Equal(t, "body\nclose", err.Error())
}

func TestWrapf(t *testing.T) {
	assert.Nil(t, WrapfOrNil(nil, "context"))
	assert.EqualError(t, Wrapf(nil, "no cause %d", 1), "no cause 1")
	assert.EqualError(t, Wrapf(os.ErrNotExist, "open %s", "x"), "open x: file does not exist")
}

func TestKinds(t *testing.T) {
	spec := InvalidSpec("n", "must be non-negative, got %d", -1)
	assert.True(t, IsInvalidSpec(spec))
	assert.True(t, IsInvalidSpec(Wrapf(spec, "trial")))
	assert.False(t, IsEstimation(spec))
	assert.EqualError(t, spec, "invalid spec: n: must be non-negative, got -1")

	est := &EstimationFailure{Reason: "bandwidth", Err: os.ErrInvalid}
	assert.True(t, IsEstimation(fmt.Errorf("fit: %w", est)))
	assert.True(t, Is(est, os.ErrInvalid))

	assert.Nil(t, Persistence("x", nil))
	p := Persistence("/tmp/x", os.ErrPermission)
	assert.True(t, IsPersistence(p))
	assert.True(t, Is(p, os.ErrPermission))
}
