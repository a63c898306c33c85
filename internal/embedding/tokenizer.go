package embedding

import "hash/fnv"

// BERT special token IDs shared by the MiniLM family.
const (
	tokenCLS   = 101
	tokenSEP   = 102
	vocabSize  = 30522
	firstToken = 1000
)

// Tokenizer produces the three int64 inputs of a BERT-style sentence encoder.
type Tokenizer interface {
	Tokenize(text string, maxTokens int) (inputIDs, attentionMask, tokenTypeIDs []int64)
}

// HashTokenizer maps each word to a stable token ID by hashing it into the model's vocabulary
// range. It does not reproduce WordPiece, so vectors differ from the reference pipeline, but
// they are stable across runs.
type HashTokenizer struct{}

// Tokenize wraps up to maxTokens-2 words in [CLS] ... [SEP] and zero-pads the rest.
func (t *HashTokenizer) Tokenize(text string, maxTokens int) (inputIDs, attentionMask, tokenTypeIDs []int64) {
	if maxTokens < 2 {
		maxTokens = 256
	}
	inputIDs = make([]int64, maxTokens)
	attentionMask = make([]int64, maxTokens)
	tokenTypeIDs = make([]int64, maxTokens)

	inputIDs[0] = tokenCLS
	attentionMask[0] = 1

	pos := 1
	for _, word := range Words(text) {
		if pos >= maxTokens-1 {
			break
		}
		inputIDs[pos] = tokenID(word)
		attentionMask[pos] = 1
		pos++
	}
	inputIDs[pos] = tokenSEP
	attentionMask[pos] = 1
	return inputIDs, attentionMask, tokenTypeIDs
}

func tokenID(word string) int64 {
	h := fnv.New32a()
	_, _ = h.Write([]byte(word))
	return int64(firstToken + h.Sum32()%uint32(vocabSize-firstToken))
}
