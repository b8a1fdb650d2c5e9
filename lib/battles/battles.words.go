package battles

import (
	"math/rand"
	"strings"
)

// Corpus of short words for typing passages. Kept at seven characters or less
// so every target word is typeable without hyphenation or punctuation.
var passageWords = []string{
	"the", "cat", "sat", "on", "mat", "hat", "dog", "ran", "over", "hill",
	"river", "stone", "light", "dark", "cloud", "rain", "wind", "storm", "quiet", "loud",
	"paper", "pencil", "letter", "word", "line", "page", "book", "story", "voice", "song",
	"green", "blue", "red", "yellow", "black", "white", "silver", "gold", "copper", "iron",
	"small", "large", "quick", "slow", "sharp", "soft", "warm", "cold", "fresh", "old",
	"house", "door", "window", "floor", "wall", "roof", "garden", "tree", "leaf", "root",
	"water", "fire", "earth", "air", "smoke", "ash", "flame", "spark", "ember", "dust",
	"walk", "run", "jump", "climb", "swim", "dive", "fly", "glide", "drift", "fall",
	"north", "south", "east", "west", "near", "far", "here", "there", "above", "below",
	"one", "two", "three", "four", "five", "six", "seven", "eight", "nine", "ten",
	"morning", "evening", "night", "day", "week", "month", "year", "hour", "minute", "second",
	"friend", "people", "crowd", "city", "town", "street", "road", "path", "bridge", "gate",
}

// randomPassage builds a pseudo-random passage of at least min_words short
// words separated by single spaces.
func randomPassage(rng *rand.Rand, min_words int) string {
	words := make([]string, 0, min_words)
	for len(words) < min_words {
		words = append(words, passageWords[rng.Intn(len(passageWords))])
	}
	return strings.Join(words, " ")
}
