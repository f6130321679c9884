package screener

import (
	"fmt"

	"github.com/glaslos/ssdeep"
)

// Image holds PNG bytes returned by a Session.
type Image []byte

// Fingerprint returns the ssdeep hash of the image.
func (img Image) Fingerprint() (string, error) {
	return ssdeep.FuzzyBytes(img)
}

func validThreshold(similarityThreshold int) error {
	if similarityThreshold < 1 || similarityThreshold > 100 {
		return fmt.Errorf("invalid similarity threshold: %d. Must be between 1 and 100", similarityThreshold)
	}
	return nil
}

// MostSimilar compares hash against others and returns the index and score of
// the best match at or above similarityThreshold. The index is -1 when nothing
// matches.
func MostSimilar(hash string, others []string, similarityThreshold int) (int, int, error) {
	if err := validThreshold(similarityThreshold); err != nil {
		return -1, 0, err
	}

	best, bestScore := -1, 0
	for i, other := range others {
		if other == "" {
			continue
		}

		score, err := ssdeep.Distance(hash, other)
		if err != nil {
			continue
		}

		if score >= similarityThreshold && score > bestScore {
			best, bestScore = i, score
		}
	}
	return best, bestScore, nil
}
