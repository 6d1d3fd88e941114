package tokens

import (
	"fmt"
	"sync"
	"unicode/utf8"

	"github.com/pkoukk/tiktoken-go"
	tiktoken_loader "github.com/pkoukk/tiktoken-go-loader"
)

// DefaultEncoding is the BPE vocabulary the complexity thresholds are
// calibrated against.
const DefaultEncoding = "cl100k_base"

var loaderOnce sync.Once

// TiktokenEstimator counts BPE tokens with a fixed encoding. The vocabulary
// is embedded in the binary, so construction never touches the network.
type TiktokenEstimator struct {
	encoding string
	enc      *tiktoken.Tiktoken
}

// NewTiktokenEstimator loads the named encoding. An empty name selects
// DefaultEncoding.
func NewTiktokenEstimator(encoding string) (*TiktokenEstimator, error) {
	if encoding == "" {
		encoding = DefaultEncoding
	}
	loaderOnce.Do(func() {
		tiktoken.SetBpeLoader(tiktoken_loader.NewOfflineLoader())
	})

	enc, err := tiktoken.GetEncoding(encoding)
	if err != nil {
		return nil, fmt.Errorf("failed to load encoding %q: %w", encoding, err)
	}
	return &TiktokenEstimator{encoding: encoding, enc: enc}, nil
}

// Encoding returns the name of the loaded vocabulary.
func (e *TiktokenEstimator) Encoding() string {
	return e.encoding
}

// EstimateText counts tokens in text. The model is ignored: every model is
// measured with the same vocabulary. Special token markers in user text are
// encoded as ordinary text.
func (e *TiktokenEstimator) EstimateText(text string, model string) (int, error) {
	if text == "" {
		return 0, nil
	}
	if !utf8.ValidString(text) {
		return 0, fmt.Errorf("text is not valid UTF-8")
	}
	return len(e.enc.Encode(text, nil, nil)), nil
}

// EstimateTexts sums EstimateText over texts.
func (e *TiktokenEstimator) EstimateTexts(texts []string, model string) (int, error) {
	total := 0
	for i, text := range texts {
		n, err := e.EstimateText(text, model)
		if err != nil {
			return 0, fmt.Errorf("failed to estimate text %d: %w", i, err)
		}
		total += n
	}
	return total, nil
}
