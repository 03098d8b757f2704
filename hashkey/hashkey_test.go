package hashkey

import (
	"testing"

	"github.com/stretchr/testify/require"
)

type account struct {
	PublicKey string
	Balance   uint64
}

type schema struct {
	Account account
}

func TestBindSuccess(t *testing.T) {
	var f Factory
	res := f.Bind([]string{"Account.PublicKey"}, StateView{Root: &schema{Account: account{PublicKey: "abc", Balance: 1}}})
	require.Equal(t, Bound, res.Kind)
	require.NotNil(t, res.Hasher)
}

func TestBindNotBindable(t *testing.T) {
	var f Factory
	res := f.Bind([]string{"Account.DoesNotExist"}, StateView{Root: &schema{}})
	require.Equal(t, Skipped, res.Kind)
	require.ErrorIs(t, res.Reason, ErrNotBindable)
}

func TestBindFatalOnTypeMismatch(t *testing.T) {
	var f Factory
	res := f.Bind([]string{"Account.PublicKey.Nested"}, StateView{Root: &schema{Account: account{PublicKey: "abc"}}})
	require.Equal(t, Err, res.Kind)
	require.Error(t, res.Reason)
}

func TestBoundHasherDeterministic(t *testing.T) {
	var f Factory
	s := &schema{Account: account{PublicKey: "abc", Balance: 42}}
	res := f.Bind([]string{"Account.PublicKey"}, StateView{Root: s})
	require.Equal(t, Bound, res.Kind)
	h1 := res.Hasher(7)
	h2 := res.Hasher(7)
	require.Equal(t, h1, h2)
}

func TestDefaultHasher(t *testing.T) {
	h := Default()
	require.Equal(t, h(5), h(5))
	require.NotEqual(t, h(5), h(6))
}
