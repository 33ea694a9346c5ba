package mosstest

import (
	"math"
	"sort"
	"strings"
	"unicode"
)

// rank scores a snapshot of documents against the query and returns the
// top k hits. The blend follows the documented alpha semantics: 1 is purely
// semantic, 0 purely keyword. Scoring is intentionally simplistic, token
// overlap plus cosine when both sides carry vectors. Enough for
// deterministic tests, in no way a model of the production ranker.
func rank(docs []storedDoc, query string, embedding []float32, topK int, alpha float64) []scoredDoc {
	if topK <= 0 {
		topK = 10
	}
	queryTokens := tokenize(query)

	hits := make([]scoredDoc, 0, len(docs))
	for _, doc := range docs {
		keyword := overlapScore(queryTokens, tokenize(doc.text))
		semantic := keyword
		if len(embedding) > 0 && len(doc.embedding) > 0 {
			semantic = cosine(embedding, doc.embedding)
		}

		score := alpha*semantic + (1-alpha)*keyword
		if score <= 0 {
			continue
		}
		hits = append(hits, scoredDoc{doc: doc, score: score})
	}

	sort.SliceStable(hits, func(i, j int) bool { return hits[i].score > hits[j].score })
	if len(hits) > topK {
		hits = hits[:topK]
	}
	return hits
}

type scoredDoc struct {
	doc   storedDoc
	score float64
}

func tokenize(s string) map[string]struct{} {
	out := make(map[string]struct{})
	for _, tok := range strings.FieldsFunc(strings.ToLower(s), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsNumber(r)
	}) {
		out[tok] = struct{}{}
	}
	return out
}

// overlapScore is the fraction of query tokens present in the document.
func overlapScore(query, doc map[string]struct{}) float64 {
	if len(query) == 0 {
		return 0
	}
	matched := 0
	for tok := range query {
		if _, ok := doc[tok]; ok {
			matched++
		}
	}
	return float64(matched) / float64(len(query))
}

func cosine(a, b []float32) float64 {
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	var dot, na, nb float64
	for i := 0; i < n; i++ {
		dot += float64(a[i]) * float64(b[i])
		na += float64(a[i]) * float64(a[i])
		nb += float64(b[i]) * float64(b[i])
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}
