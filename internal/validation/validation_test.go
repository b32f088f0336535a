package validation

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Additional-Code/brewline/pkg/errorbank"
)

func TestCollectorAccumulatesInOrder(t *testing.T) {
	v := New()
	v.Required("name", " ")
	v.MaxLen("notes", strings.Repeat("a", 6), 5)
	v.Phone("phone", "12345")
	v.Detail("field", "name")

	err := v.Err()
	require.Error(t, err)
	assert.True(t, errorbank.Is(err, errorbank.KindValidation))

	appErr := errorbank.From(err)
	assert.Equal(t, []string{
		"name is required",
		"notes must be at most 5 characters",
		"phone is not a valid phone number",
	}, appErr.Messages())
	assert.Equal(t, "name", appErr.Details()["field"])
}

func TestCollectorValid(t *testing.T) {
	v := New()
	v.Required("name", "latte")
	v.Phone("phone", "")
	v.LenBetween("username", "bob", 3, 50)
	v.Email("email", "bob@example.com")
	assert.True(t, v.Valid())
	assert.NoError(t, v.Err())
}

func TestMaxLenCountsRunes(t *testing.T) {
	v := New()
	assert.True(t, v.MaxLen("name", "拿铁咖啡", 4))
	assert.False(t, v.MaxLen("name", "拿铁咖啡啊", 4))
}

func TestIsPhone(t *testing.T) {
	assert.True(t, IsPhone("13812345678"))
	assert.True(t, IsPhone("19900000000"))
	assert.False(t, IsPhone("12812345678"))
	assert.False(t, IsPhone("1381234567"))
	assert.False(t, IsPhone("138123456789"))
	assert.False(t, IsPhone("+8613812345678"))
}

func TestIsEmail(t *testing.T) {
	assert.True(t, IsEmail("a@b.co"))
	assert.False(t, IsEmail("Bob <bob@example.com>"))
	assert.False(t, IsEmail("nope"))
}
