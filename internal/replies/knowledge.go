package replies

import (
	"sort"
	"strings"

	"github.com/ignite/outreach/internal/domain"
)

// Coverage grades how well the knowledge base covers a reply.
type Coverage string

const (
	CoverageFull    Coverage = "full"
	CoveragePartial Coverage = "partial"
	CoverageNone    Coverage = "none"
)

// maxKnowledgeHits caps how many entries ground one draft.
const maxKnowledgeHits = 3

// KnowledgeHit is one matched entry with its relevance score.
type KnowledgeHit struct {
	Entry domain.KnowledgeEntry `json:"entry"`
	Score int                   `json:"score"`
}

// RankKnowledge scores entries by how many of their keywords appear in the
// reply and returns the best matches, strongest first. Purely lexical and
// deterministic; the same reply always grounds the same way.
func RankKnowledge(entries []domain.KnowledgeEntry, replyBody string) []KnowledgeHit {
	body := strings.ToLower(replyBody)
	var hits []KnowledgeHit
	for _, e := range entries {
		score := 0
		for _, kw := range e.Keywords {
			kw = strings.ToLower(strings.TrimSpace(kw))
			if kw != "" && strings.Contains(body, kw) {
				score++
			}
		}
		if score > 0 {
			hits = append(hits, KnowledgeHit{Entry: e, Score: score})
		}
	}
	sort.SliceStable(hits, func(i, j int) bool {
		if hits[i].Score != hits[j].Score {
			return hits[i].Score > hits[j].Score
		}
		return hits[i].Entry.Confidence > hits[j].Entry.Confidence
	})
	if len(hits) > maxKnowledgeHits {
		hits = hits[:maxKnowledgeHits]
	}
	return hits
}

// CoverageOf grades a hit list: none without any match, full when the top
// match fires on two or more keywords, partial in between.
func CoverageOf(hits []KnowledgeHit) Coverage {
	if len(hits) == 0 {
		return CoverageNone
	}
	if hits[0].Score >= 2 {
		return CoverageFull
	}
	return CoveragePartial
}

// knowledgeText renders hits as the grounding block for the draft prompt.
func knowledgeText(hits []KnowledgeHit) string {
	var b strings.Builder
	for _, h := range hits {
		b.WriteString("Q: " + h.Entry.Question + "\nA: " + h.Entry.Answer + "\n\n")
	}
	return strings.TrimSpace(b.String())
}
