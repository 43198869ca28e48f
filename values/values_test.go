package values

import (
	"encoding/json"
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestFromJSON_PreservesKeyOrder(t *testing.T) {
	v, err := FromJSON(`{"z":1,"a":{"y":2,"b":3},"m":[{"k":1}]}`)
	require.NoError(t, err)
	obj, ok := v.(*Object)
	require.True(t, ok)
	require.Equal(t, []string{"z", "a", "m"}, obj.Keys())

	inner, _ := obj.Get("a")
	require.Equal(t, []string{"y", "b"}, inner.(*Object).Keys())

	out, err := json.Marshal(obj)
	require.NoError(t, err)
	require.Equal(t, `{"z":1,"a":{"y":2,"b":3},"m":[{"k":1}]}`, string(out))
}

func TestFromJSON_Scalars(t *testing.T) {
	for in, want := range map[string]interface{}{
		`42`:      int64(42),
		`2.5`:     2.5,
		`"s"`:     "s",
		`true`:    true,
		`null`:    nil,
		`[1,"a"]`: []interface{}{int64(1), "a"},
	} {
		v, err := FromJSON(in)
		require.NoErrorf(t, err, in)
		require.Equalf(t, want, v, in)
	}
	_, err := FromJSON(`{"a":}`)
	require.Error(t, err)
	_, err = FromJSON(`1 2`)
	require.Error(t, err)
}

func TestFromYAML_PreservesKeyOrder(t *testing.T) {
	v, err := FromYAML([]byte("z: 1\na:\n  y: 2\n  b: 3\nxs:\n  - k: v\n"))
	require.NoError(t, err)
	obj := v.(*Object)
	require.Equal(t, []string{"z", "a", "xs"}, obj.Keys())
	inner, _ := obj.Get("a")
	require.Equal(t, []string{"y", "b"}, inner.(*Object).Keys())
}

func TestToValue(t *testing.T) {
	require.Equal(t, int64(3), ToValue(3))
	require.Equal(t, int64(3), ToValue(uint8(3)))
	require.Equal(t, 2.5, ToValue(float32(2.5)))
	require.Equal(t, int64(7), ToValue(json.Number("7")))
	require.Equal(t, 0.5, ToValue(json.Number("0.5")))
	require.Equal(t, []interface{}{int64(1), int64(2)}, ToValue([]int{1, 2}))

	obj, ok := ToValue(map[string]interface{}{"b": 1, "a": 2}).(*Object)
	require.True(t, ok)
	// Unordered maps sort for determinism.
	require.Equal(t, []string{"a", "b"}, obj.Keys())

	type point struct {
		X int    `json:"x"`
		Y string `json:"y"`
	}
	pv, ok := ToValue(point{X: 1, Y: "up"}).(*Object)
	require.True(t, ok)
	x, _ := pv.Get("x")
	require.Equal(t, int64(1), x)
}

func TestObject_SetKeepsPosition(t *testing.T) {
	obj := NewObject().Set("a", 1).Set("b", 2).Set("a", 3)
	require.Equal(t, []string{"a", "b"}, obj.Keys())
	v, _ := obj.Get("a")
	require.Equal(t, 3, v)
}

var truthyTests = []struct {
	in     interface{}
	truthy bool
}{
	{nil, false},
	{false, false},
	{true, true},
	{int64(0), false},
	{int64(-1), true},
	{0.0, false},
	{"", false},
	{"x", true},
	{[]interface{}{}, false},
	{[]interface{}{1}, true},
	{NewObject(), false},
	{NewObject().Set("k", 1), true},
}

func TestTruthy(t *testing.T) {
	for i, test := range truthyTests {
		testV := test
		t.Run(fmt.Sprint(i+1), func(t *testing.T) {
			require.Equal(t, testV.truthy, Truthy(testV.in))
		})
	}
}

func TestToString(t *testing.T) {
	require.Equal(t, "", ToString(nil))
	require.Equal(t, "42", ToString(int64(42)))
	require.Equal(t, "2.5", ToString(2.5))
	require.Equal(t, "true", ToString(true))
	require.Equal(t, "x", ToString("x"))
	require.Equal(t, `[1,"a"]`, ToString([]interface{}{int64(1), "a"}))
	require.Equal(t, `{"k":1}`, ToString(NewObject().Set("k", 1)))
}

func TestEqualAndCompare(t *testing.T) {
	require.True(t, Equal(int64(1), 1.0))
	require.False(t, Equal(int64(1), "1"))
	require.True(t, Equal("a", "a"))
	require.True(t, Equal([]interface{}{int64(1)}, []interface{}{1.0}))
	require.False(t, Equal(nil, false))

	n, ok := Compare(int64(1), 2.0)
	require.True(t, ok)
	require.Equal(t, -1, n)
	n, ok = Compare("b", "a")
	require.True(t, ok)
	require.Equal(t, 1, n)
	_, ok = Compare("a", int64(1))
	require.False(t, ok)
	_, ok = Compare(true, false)
	require.False(t, ok)
}

func TestLength(t *testing.T) {
	require.Equal(t, 2, Length([]interface{}{1, 2}))
	require.Equal(t, 1, Length(NewObject().Set("k", 1)))
	require.Equal(t, 3, Length("abc"))
	require.Equal(t, 0, Length(int64(9)))
}
