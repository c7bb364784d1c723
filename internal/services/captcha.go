package services

import (
	"fmt"
	"math/rand/v2"
	"strconv"
	"time"

	"ozergarant/internal/models"
)

type vocabEntry struct {
	word  string
	emoji string
}

var (
	colorVocab = []vocabEntry{
		{"красный", "🔴"}, {"синий", "🔵"}, {"зеленый", "🟢"}, {"желтый", "🟡"},
		{"фиолетовый", "🟣"}, {"оранжевый", "🟠"}, {"черный", "⚫"}, {"белый", "⚪"},
	}
	animalVocab = []vocabEntry{
		{"кот", "🐱"}, {"собака", "🐶"}, {"слон", "🐘"}, {"лев", "🦁"}, {"обезьяна", "🐵"},
		{"медведь", "🐻"}, {"лиса", "🦊"}, {"волк", "🐺"}, {"тигр", "🐯"}, {"панда", "🐼"},
	}
	objectVocab = []vocabEntry{
		{"дом", "🏠"}, {"машина", "🚗"}, {"самолет", "✈️"}, {"корабль", "🚢"}, {"велосипед", "🚲"},
		{"поезд", "🚂"}, {"ракета", "🚀"}, {"вертолет", "🚁"}, {"автобус", "🚌"}, {"мотоцикл", "🏍️"},
	}
	numberVocab = []vocabEntry{
		{"один", "1️⃣"}, {"два", "2️⃣"}, {"три", "3️⃣"}, {"четыре", "4️⃣"}, {"пять", "5️⃣"},
		{"шесть", "6️⃣"}, {"семь", "7️⃣"}, {"восемь", "8️⃣"}, {"девять", "9️⃣"}, {"ноль", "0️⃣"},
	}
)

const (
	challengeOptions = 4
	distractorMax    = 50
)

// ChallengeGenerator builds captcha puzzles. Not safe for concurrent use
// because *rand.Rand is not; the verification service serialises access.
type ChallengeGenerator struct {
	rnd     *rand.Rand
	timeout time.Duration
}

func NewChallengeGenerator(rnd *rand.Rand, timeout time.Duration) *ChallengeGenerator {
	if rnd == nil {
		rnd = rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))
	}
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	return &ChallengeGenerator{rnd: rnd, timeout: timeout}
}

func (g *ChallengeGenerator) Generate(now time.Time) models.Challenge {
	category := models.ChallengeCategories[g.rnd.IntN(len(models.ChallengeCategories))]
	return g.GenerateCategory(category, now)
}

// GenerateCategory is Generate with a fixed category.
func (g *ChallengeGenerator) GenerateCategory(category models.ChallengeCategory, now time.Time) models.Challenge {
	var c models.Challenge
	switch category {
	case models.CategoryColor:
		c = g.vocab(colorVocab, "🎨 Выберите %s цвет:")
	case models.CategoryAnimal:
		c = g.vocab(animalVocab, "🐾 Найдите %s:")
	case models.CategoryObject:
		c = g.vocab(objectVocab, "🔍 Выберите %s:")
	case models.CategoryNumber:
		c = g.vocab(numberVocab, "🔢 Найдите число %s:")
	case models.CategoryMath:
		c = g.math()
	default:
		category = models.CategorySequence
		c = g.sequence()
	}
	c.Category = category
	c.CreatedAt = now
	c.ExpiresAt = now.Add(g.timeout)
	return c
}

func (g *ChallengeGenerator) vocab(entries []vocabEntry, question string) models.Challenge {
	perm := g.rnd.Perm(len(entries))[:challengeOptions]
	correct := entries[perm[0]].word

	g.rnd.Shuffle(len(perm), func(i, j int) { perm[i], perm[j] = perm[j], perm[i] })
	c := models.Challenge{
		Question:      fmt.Sprintf(question, correct),
		CorrectAnswer: correct,
		Options:       make([]string, 0, challengeOptions),
		Display:       make([]string, 0, challengeOptions),
	}
	for _, idx := range perm {
		e := entries[idx]
		c.Options = append(c.Options, e.word)
		c.Display = append(c.Display, e.emoji+" "+e.word)
	}
	return c
}

func (g *ChallengeGenerator) math() models.Challenge {
	a := g.rnd.IntN(10) + 1
	b := g.rnd.IntN(10) + 1

	var (
		answer   int
		question string
	)
	switch g.rnd.IntN(3) {
	case 0:
		answer = a + b
		question = fmt.Sprintf("🧮 Сколько будет %d + %d?", a, b)
	case 1:
		if a < b {
			a, b = b, a
		}
		answer = a - b
		question = fmt.Sprintf("🧮 Сколько будет %d - %d?", a, b)
	default:
		answer = a * b
		question = fmt.Sprintf("🧮 Сколько будет %d × %d?", a, b)
	}
	return g.numeric(question, answer, "🔢 ")
}

func (g *ChallengeGenerator) sequence() models.Challenge {
	start := g.rnd.IntN(5) + 1
	step := g.rnd.IntN(3) + 2
	terms := make([]string, 4)
	for i := range terms {
		terms[i] = strconv.Itoa(start + i*step)
	}
	question := fmt.Sprintf("🔢 Продолжите последовательность: %s, %s, %s, %s, ?", terms[0], terms[1], terms[2], terms[3])
	return g.numeric(question, start+4*step, "➡️ ")
}

func (g *ChallengeGenerator) numeric(question string, answer int, prefix string) models.Challenge {
	correct := strconv.Itoa(answer)
	options := []string{correct}
	seen := map[string]bool{correct: true}
	for len(options) < challengeOptions {
		wrong := strconv.Itoa(g.rnd.IntN(distractorMax) + 1)
		if seen[wrong] {
			continue
		}
		seen[wrong] = true
		options = append(options, wrong)
	}
	g.rnd.Shuffle(len(options), func(i, j int) { options[i], options[j] = options[j], options[i] })

	display := make([]string, len(options))
	for i, o := range options {
		display[i] = prefix + o
	}
	return models.Challenge{
		Question:      question,
		CorrectAnswer: correct,
		Options:       options,
		Display:       display,
	}
}
