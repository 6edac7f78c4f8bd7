package segment

import "strings"

// DefaultWordsPerMinute is the assumed narration speed.
const DefaultWordsPerMinute = 150

const secondsPerMinute = 60

// WordCount counts whitespace-delimited words.
func WordCount(text string) int {
	return len(strings.Fields(text))
}

// EstimateSeconds returns the spoken duration of text in whole seconds,
// rounded up. A non-positive wordsPerMinute selects DefaultWordsPerMinute.
func EstimateSeconds(text string, wordsPerMinute int) int {
	if wordsPerMinute <= 0 {
		wordsPerMinute = DefaultWordsPerMinute
	}
	words := WordCount(text)
	return (words*secondsPerMinute + wordsPerMinute - 1) / wordsPerMinute
}
