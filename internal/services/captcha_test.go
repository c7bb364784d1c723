package services

import (
	"math/rand/v2"
	"regexp"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ozergarant/internal/models"
)

func TestChallengeGenerator_OptionsShape(t *testing.T) {
	gen := NewChallengeGenerator(rand.New(rand.NewPCG(42, 7)), time.Minute)
	seen := map[models.ChallengeCategory]int{}

	for i := 0; i < 2000; i++ {
		c := gen.Generate(t0)
		seen[c.Category]++

		require.Len(t, c.Options, 4)
		require.Len(t, c.Display, 4)

		uniq := map[string]bool{}
		hits := 0
		for j, o := range c.Options {
			uniq[o] = true
			if o == c.CorrectAnswer {
				hits++
			}
			assert.Contains(t, c.Display[j], o)
		}
		assert.Len(t, uniq, 4, "options must be distinct: %v", c.Options)
		assert.Equal(t, 1, hits, "correct answer exactly once: %v", c.Options)
		assert.Equal(t, t0.Add(time.Minute), c.ExpiresAt)
		assert.NotEmpty(t, c.Question)
	}

	for _, cat := range models.ChallengeCategories {
		assert.Positive(t, seen[cat], "category %s never drawn", cat)
	}
}

var mathQuestion = regexp.MustCompile(`(\d+) ([+\-×]) (\d+)\?`)

func TestChallengeGenerator_Math(t *testing.T) {
	gen := NewChallengeGenerator(rand.New(rand.NewPCG(3, 4)), 0)
	for i := 0; i < 500; i++ {
		c := gen.GenerateCategory(models.CategoryMath, t0)
		m := mathQuestion.FindStringSubmatch(c.Question)
		require.Len(t, m, 4, c.Question)

		a, _ := strconv.Atoi(m[1])
		b, _ := strconv.Atoi(m[3])
		assert.True(t, a >= 1 && a <= 10 && b >= 1 && b <= 10, c.Question)

		var want int
		switch m[2] {
		case "+":
			want = a + b
		case "-":
			assert.GreaterOrEqual(t, a, b, "subtraction is never negative")
			want = a - b
		case "×":
			want = a * b
		}
		assert.Equal(t, strconv.Itoa(want), c.CorrectAnswer)
		assert.Equal(t, t0.Add(60*time.Second), c.ExpiresAt, "default timeout")

		for _, o := range c.Options {
			if o == c.CorrectAnswer {
				continue
			}
			n, err := strconv.Atoi(o)
			require.NoError(t, err)
			assert.True(t, n >= 1 && n <= 50, "distractor %d out of range", n)
		}
	}
}

var seqQuestion = regexp.MustCompile(`(\d+), (\d+), (\d+), (\d+), \?`)

func TestChallengeGenerator_Sequence(t *testing.T) {
	gen := NewChallengeGenerator(rand.New(rand.NewPCG(5, 6)), time.Minute)
	for i := 0; i < 300; i++ {
		c := gen.GenerateCategory(models.CategorySequence, t0)
		m := seqQuestion.FindStringSubmatch(c.Question)
		require.Len(t, m, 5, c.Question)

		var terms [4]int
		for j := range terms {
			terms[j], _ = strconv.Atoi(m[j+1])
		}
		step := terms[1] - terms[0]
		assert.True(t, terms[0] >= 1 && terms[0] <= 5)
		assert.True(t, step >= 2 && step <= 4)
		assert.Equal(t, strconv.Itoa(terms[3]+step), c.CorrectAnswer)
	}
}

func TestChallengeGenerator_VocabularyFromCategory(t *testing.T) {
	gen := NewChallengeGenerator(rand.New(rand.NewPCG(8, 9)), time.Minute)
	vocab := map[models.ChallengeCategory][]vocabEntry{
		models.CategoryColor:  colorVocab,
		models.CategoryAnimal: animalVocab,
		models.CategoryObject: objectVocab,
		models.CategoryNumber: numberVocab,
	}
	for cat, entries := range vocab {
		words := map[string]bool{}
		for _, e := range entries {
			words[e.word] = true
		}
		for i := 0; i < 50; i++ {
			c := gen.GenerateCategory(cat, t0)
			assert.Equal(t, cat, c.Category)
			assert.Contains(t, c.Question, c.CorrectAnswer)
			for _, o := range c.Options {
				assert.True(t, words[o], "%s not in %s vocabulary", o, cat)
			}
		}
	}
}

func TestChallengeGenerator_Deterministic(t *testing.T) {
	a := NewChallengeGenerator(rand.New(rand.NewPCG(11, 12)), time.Minute)
	b := NewChallengeGenerator(rand.New(rand.NewPCG(11, 12)), time.Minute)
	for i := 0; i < 20; i++ {
		assert.Equal(t, a.Generate(t0), b.Generate(t0))
	}
}
