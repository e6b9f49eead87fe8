package reviews

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalize(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{
			name: "oid query parameter",
			in:   "https://yandex.ru/maps/213/moscow/?ll=37.6%2C55.7&oid=1234567&ol=biz",
			want: "https://yandex.ru/maps/?oid=1234567",
		},
		{
			name: "org path",
			in:   "https://yandex.ru/maps/org/kofeynya_zerno/98765432/reviews/",
			want: "https://yandex.ru/maps/?oid=98765432",
		},
		{
			name: "oid wins over path",
			in:   "https://yandex.com/maps/org/cafe/111/?oid=222",
			want: "https://yandex.ru/maps/?oid=222",
		},
		{
			name: "no identifier passes through",
			in:   "https://example.com/reviews/cafe",
			want: "https://example.com/reviews/cafe",
		},
		{
			name: "non numeric org id passes through",
			in:   "https://yandex.ru/maps/org/cafe/abc/",
			want: "https://yandex.ru/maps/org/cafe/abc/",
		},
		{
			name: "unparseable input passes through",
			in:   "http://[::1:bad",
			want: "http://[::1:bad",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Normalize(tt.in, "yandex.ru"))
		})
	}
}

func TestOrgID(t *testing.T) {
	id, ok := OrgID("https://yandex.ru/maps/org/x/42")
	assert.True(t, ok)
	assert.Equal(t, "42", id)

	_, ok = OrgID("https://yandex.ru/maps/")
	assert.False(t, ok)
}
