package aside

import (
	"context"
	"errors"
	"reflect"
	"testing"

	"github.com/stretchr/testify/require"
)

type users []user

func TestInferResult(t *testing.T) {
	d := For("user", 0).inferResult(reflect.TypeFor[[]user]())
	require.Equal(t, List, d.Shape)
	require.Equal(t, reflect.TypeFor[user](), d.Elem)

	d = For("user", 0).inferResult(reflect.TypeFor[map[int]struct{}]())
	require.Equal(t, Set, d.Shape)
	require.Equal(t, reflect.TypeFor[int](), d.Elem)

	d = For("user", 0).inferResult(reflect.TypeFor[[]byte]())
	require.Equal(t, Scalar, d.Shape)

	d = For("user", 0).inferResult(reflect.TypeFor[map[int]string]())
	require.Equal(t, Scalar, d.Shape)

	d = For("user", 0).AsSet(nil).inferResult(reflect.TypeFor[[]user]())
	require.Equal(t, Set, d.Shape)
	require.Nil(t, d.Elem)
}

func TestWrap1Scalar(t *testing.T) {
	ic, _ := newFixture(t)
	calls := 0
	get := Wrap1(ic, For("user", 0), func(_ context.Context, id int) (user, error) {
		calls++
		return user{ID: id, Name: "n"}, nil
	})

	for i := 0; i < 3; i++ {
		u, err := get(context.Background(), 5)
		require.NoError(t, err)
		require.Equal(t, user{ID: 5, Name: "n"}, u)
	}
	require.Equal(t, 1, calls)
}

func TestWrap1Error(t *testing.T) {
	ic, _ := newFixture(t)
	boom := errors.New("boom")
	calls := 0
	get := Wrap1(ic, For("user", 0), func(_ context.Context, id int) (*user, error) {
		calls++
		return nil, boom
	})
	_, err := get(context.Background(), 1)
	require.ErrorIs(t, err, boom)
	_, err = get(context.Background(), 1)
	require.ErrorIs(t, err, boom)
	require.Equal(t, 2, calls)
}

func TestWrap1BatchNamedSlice(t *testing.T) {
	ic, cc := newFixture(t)
	cc.AddValues(map[any]any{1: user{ID: 1}, 2: user{ID: 2}})
	calls := 0
	list := Wrap1(ic, For("user", 0), func(_ context.Context, ids []int) (users, error) {
		calls++
		return nil, nil
	})

	got, err := list(context.Background(), []int{1, 2})
	require.NoError(t, err)
	require.Equal(t, users{{ID: 1}, {ID: 2}}, got)
	require.Equal(t, 0, calls)

	_, err = list(context.Background(), []int{1, 3})
	require.NoError(t, err)
	require.Equal(t, 1, calls)
}

func TestWrap2KeyIndex(t *testing.T) {
	ic, _ := newFixture(t)
	calls := 0
	get := Wrap2(ic, For("user", 1), func(_ context.Context, tenant string, id int) (string, error) {
		calls++
		return tenant, nil
	})

	v, err := get(context.Background(), "t1", 9)
	require.NoError(t, err)
	require.Equal(t, "t1", v)

	v, err = get(context.Background(), "t2", 9)
	require.NoError(t, err)
	require.Equal(t, "t1", v, "keyed on the second argument only")
	require.Equal(t, 1, calls)
}

func TestWrapWrongCachedTypeIsMiss(t *testing.T) {
	ic, cc := newFixture(t)
	cc.AddValue(3, "not a user")
	calls := 0
	get := Wrap1(ic, For("user", 0), func(_ context.Context, id int) (user, error) {
		calls++
		return user{ID: id}, nil
	})

	u, err := get(context.Background(), 3)
	require.NoError(t, err)
	require.Equal(t, user{ID: 3}, u)
	require.Equal(t, 1, calls)
}
