package compat

import (
	"context"
	"math"
	"strings"

	"github.com/jinzhu/inflection"
	"go.uber.org/zap"

	"github.com/sievedata/sieve-engine/pkg/models"
)

const (
	nameStringThreshold    = 0.75
	nameEmbeddingThreshold = 0.80
)

// synonymGroups lists column-name stems that conventionally refer to
// the same concept across schemas.
var synonymGroups = [][]string{
	{"id", "key", "code", "no", "num", "number"},
	{"name", "title", "label", "caption"},
	{"description", "desc", "comment", "note", "notes", "remark"},
	{"amount", "total", "sum", "price", "cost", "value"},
	{"created", "created_at", "create_date", "creation_date", "inserted"},
	{"updated", "updated_at", "modified", "modified_at", "last_modified"},
	{"date", "time", "timestamp", "datetime"},
	{"user", "person", "customer", "client", "account"},
	{"address", "addr", "location"},
	{"phone", "telephone", "tel", "mobile"},
	{"email", "mail", "email_address"},
	{"status", "state", "stage"},
	{"type", "kind", "category", "class"},
	{"quantity", "qty", "count", "cnt"},
}

var synonymIndex = buildSynonymIndex()

func buildSynonymIndex() map[string]int {
	idx := make(map[string]int)
	for group, words := range synonymGroups {
		for _, w := range words {
			idx[w] = group
		}
	}
	return idx
}

// nameChecker scores pairs by how alike their column names are. The
// string score is a normalized edit-distance ratio over singularized
// name stems, boosted by the synonym table. When an embedding provider
// is configured its cosine similarity is taken as a second signal and
// the better of the two decides.
type nameChecker struct {
	deps Deps
}

func (c *nameChecker) Mode() Mode { return ModeName }

func (c *nameChecker) Check(ctx context.Context, pair models.ColumnPair) (Result, error) {
	leftStem := normalizeColumnName(pair.Left.Column)
	rightStem := normalizeColumnName(pair.Right.Column)

	stringScore := stringSimilarity(leftStem, rightStem)
	if sameSynonymGroup(leftStem, rightStem) {
		stringScore = 1.0
	}

	scores := map[string]float64{"string": stringScore}
	best := stringScore
	compatible := stringScore >= nameStringThreshold

	if c.deps.Embedder != nil {
		embedScore, err := c.embeddingSimilarity(ctx, pair)
		if err != nil {
			// The string signal already produced a verdict; a failing
			// provider only loses the semantic boost.
			if ctx.Err() != nil {
				return Result{}, ctx.Err()
			}
			c.deps.logger().Warn("embedding similarity unavailable",
				zap.String("pair", pair.String()),
				zap.Error(err))
		} else {
			scores["embedding"] = embedScore
			if embedScore > best {
				best = embedScore
			}
			compatible = compatible || embedScore >= nameEmbeddingThreshold
		}
	}

	return Result{Compatible: compatible, Score: best, Scores: scores}, nil
}

func (c *nameChecker) embeddingSimilarity(ctx context.Context, pair models.ColumnPair) (float64, error) {
	vecs, err := c.deps.Embedder.CreateEmbeddings(ctx, []string{
		pair.Left.Table + " " + pair.Left.Column,
		pair.Right.Table + " " + pair.Right.Column,
	})
	if err != nil {
		return 0, err
	}
	if len(vecs) != 2 {
		return 0, nil
	}
	return cosineSimilarity(vecs[0], vecs[1]), nil
}

// normalizeColumnName lowercases, singularizes and strips the common
// key suffixes, so "customer_ids" and "Customer" compare equal.
func normalizeColumnName(name string) string {
	n := strings.ToLower(name)
	n = strings.ReplaceAll(n, "-", "_")
	n = inflection.Singular(n)
	n = strings.TrimSuffix(n, "_id")
	n = strings.TrimSuffix(n, "_key")
	return n
}

func sameSynonymGroup(a, b string) bool {
	ga, ok1 := synonymIndex[a]
	gb, ok2 := synonymIndex[b]
	return ok1 && ok2 && ga == gb
}

// stringSimilarity is 1 - levenshtein/maxLen, in [0,1].
func stringSimilarity(a, b string) float64 {
	if a == b {
		return 1.0
	}
	maxLen := len(a)
	if len(b) > maxLen {
		maxLen = len(b)
	}
	if maxLen == 0 {
		return 0
	}
	return 1.0 - float64(levenshtein(a, b))/float64(maxLen)
}

func levenshtein(a, b string) int {
	ra, rb := []rune(a), []rune(b)
	if len(ra) == 0 {
		return len(rb)
	}
	if len(rb) == 0 {
		return len(ra)
	}

	prev := make([]int, len(rb)+1)
	curr := make([]int, len(rb)+1)
	for j := range prev {
		prev[j] = j
	}
	for i := 1; i <= len(ra); i++ {
		curr[0] = i
		for j := 1; j <= len(rb); j++ {
			cost := 1
			if ra[i-1] == rb[j-1] {
				cost = 0
			}
			curr[j] = min3(prev[j]+1, curr[j-1]+1, prev[j-1]+cost)
		}
		prev, curr = curr, prev
	}
	return prev[len(rb)]
}

func min3(a, b, c int) int {
	if b < a {
		a = b
	}
	if c < a {
		a = c
	}
	return a
}

func cosineSimilarity(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var dot, na, nb float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		na += float64(a[i]) * float64(a[i])
		nb += float64(b[i]) * float64(b[i])
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}
