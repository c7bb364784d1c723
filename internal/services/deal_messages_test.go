package services

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"ozergarant/internal/models"
)

func TestFormatDeal_ViewerRoleAndEscaping(t *testing.T) {
	participant := int64(2)
	d := &models.Deal{
		Code: "ABCD1234", CreatorID: 1, ParticipantID: &participant, CreatorRole: models.RoleBuyer,
		AmountUSD: 1500, Terms: "<script>x</script> & co", Status: models.DealCreated,
		CreatedAt: t0, ExpiresAt: t0.Add(24 * time.Hour),
	}

	creatorView := FormatDeal(d, 1, t0)
	assert.Contains(t, creatorView, "Ваша роль: 💰 Покупатель")
	assert.Contains(t, creatorView, "$1,500.00")
	assert.Contains(t, creatorView, "&lt;script&gt;x&lt;/script&gt; &amp; co")
	assert.Contains(t, creatorView, "Не выбран")
	assert.Contains(t, creatorView, "⏰ 1д 0ч 0м")
	assert.NotContains(t, creatorView, "<script>")

	participantView := FormatDeal(d, 2, t0)
	assert.Contains(t, participantView, "Ваша роль: 💎 Продавец")
}

func TestFormatProfile(t *testing.T) {
	u := &models.User{ID: 9, Username: "neo", FirstName: "Thomas", LastName: "Anderson",
		Verified: true, DealsCount: 3, SuccessfulDeals: 2, Rating: 4.2, CreatedAt: t0}
	out := FormatProfile(u)
	assert.Contains(t, out, "<code>9</code>")
	assert.Contains(t, out, "@neo")
	assert.Contains(t, out, "Thomas Anderson")
	assert.Contains(t, out, "⭐⭐⭐⭐☆ (4.2/5.0)")
	assert.Contains(t, out, "10.05.2025 12:00")

	anon := FormatProfile(&models.User{ID: 1})
	assert.Contains(t, anon, "Не указан")
	assert.Contains(t, anon, "Верификация: Нет")
}

func TestStatusLabelsCoverEveryStatus(t *testing.T) {
	for s := range DealTransitions {
		assert.False(t, strings.HasPrefix(StatusLabel(s), "❓"), s)
	}
	assert.Equal(t, "❓ Неизвестно", StatusLabel("weird"))
	assert.Equal(t, "уже имеет партнера", StatusReason(models.DealJoined))
}

func TestShorten(t *testing.T) {
	assert.Equal(t, "abc", shorten("abc", 5))
	assert.Equal(t, "аб…", shorten("абвг", 2))
}
