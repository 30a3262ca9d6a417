package expr

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestAnd3(t *testing.T) {
	cases := []struct{ a, b, want Bool3 }{
		{False, False, False},
		{False, True, False},
		{False, Unknown, False},
		{True, False, False},
		{True, True, True},
		{True, Unknown, Unknown},
		{Unknown, False, False},
		{Unknown, True, Unknown},
		{Unknown, Unknown, Unknown},
	}
	for _, c := range cases {
		assert.Equal(t, c.want, And3(c.a, c.b), "%s AND %s", c.a, c.b)
	}
}

func TestOr3(t *testing.T) {
	cases := []struct{ a, b, want Bool3 }{
		{False, False, False},
		{False, True, True},
		{False, Unknown, Unknown},
		{True, False, True},
		{True, True, True},
		{True, Unknown, True},
		{Unknown, False, Unknown},
		{Unknown, True, True},
		{Unknown, Unknown, Unknown},
	}
	for _, c := range cases {
		assert.Equal(t, c.want, Or3(c.a, c.b), "%s OR %s", c.a, c.b)
	}
}

func TestNot3(t *testing.T) {
	assert.Equal(t, False, Not3(True))
	assert.Equal(t, True, Not3(False))
	assert.Equal(t, Unknown, Not3(Unknown))
}

func TestBool3Value(t *testing.T) {
	assert.True(t, True.Value().Bool())
	assert.False(t, False.Value().Bool())
	assert.True(t, Unknown.Value().IsNull())
}
