package cmdline

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kiteco/backdoor-sweep/internal/errors"
)

type countArgs struct {
	N       int    `arg:"--n" help:"how many"`
	Name    string `arg:"positional"`
	handled bool `arg:"-"`
}

func (a *countArgs) Handle() error {
	a.handled = true
	if a.Name == "fail" {
		return errors.New("failed")
	}
	return nil
}

func (a *countArgs) Validate() error {
	if a.N < 0 {
		return errors.New("n must be non-negative")
	}
	return nil
}

func commands() (*countArgs, []Command) {
	args := &countArgs{N: 3}
	return args, []Command{{Name: "count", Synopsis: "count things", Args: args}}
}

func TestDispatch(t *testing.T) {
	args, cmds := commands()
	var out bytes.Buffer
	require.NoError(t, Dispatch(&out, []string{"count", "--n", "5", "apples"}, cmds...))
	assert.True(t, args.handled)
	assert.Equal(t, 5, args.N)
	assert.Equal(t, "apples", args.Name)
}

func TestDispatchDefaults(t *testing.T) {
	args, cmds := commands()
	require.NoError(t, Dispatch(&bytes.Buffer{}, []string{"count"}, cmds...))
	assert.Equal(t, 3, args.N)
}

func TestDispatchErrors(t *testing.T) {
	_, cmds := commands()
	var out bytes.Buffer
	assert.Equal(t, ErrUsage, Dispatch(&out, nil, cmds...))
	assert.Contains(t, out.String(), "no command provided")

	out.Reset()
	assert.Equal(t, ErrUsage, Dispatch(&out, []string{"bogus"}, cmds...))
	assert.Contains(t, out.String(), "unknown command bogus")

	out.Reset()
	assert.Equal(t, ErrUsage, Dispatch(&out, []string{"count", "--n", "-1"}, cmds...))
	assert.Contains(t, out.String(), "n must be non-negative")

	out.Reset()
	assert.Equal(t, ErrUsage, Dispatch(&out, []string{"count", "--bogus"}, cmds...))

	args, cmds := commands()
	assert.EqualError(t, Dispatch(&out, []string{"count", "fail"}, cmds...), "failed")
	assert.True(t, args.handled)
}

func TestDispatchHelp(t *testing.T) {
	args, cmds := commands()
	var out bytes.Buffer
	require.NoError(t, Dispatch(&out, []string{"help"}, cmds...))
	assert.Contains(t, out.String(), "count things")

	out.Reset()
	require.NoError(t, Dispatch(&out, []string{"help", "count"}, cmds...))
	assert.Contains(t, out.String(), "how many")

	out.Reset()
	require.NoError(t, Dispatch(&out, []string{"count", "--help"}, cmds...))
	assert.Contains(t, out.String(), "how many")
	assert.False(t, args.handled)
}
