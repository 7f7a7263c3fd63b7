package service

import (
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/cloo-solutions/studyforge/internal/domain"
)

const (
	DefaultTargetChunkSize = 1000
	DefaultChunkOverlap    = 200

	maxHeadingChars = 100
)

// SegmentConfig controls document segmentation.
type SegmentConfig struct {
	TargetChunkSize int
	Overlap         int
}

// DefaultSegmentConfig provides sane defaults for segmentation.
func DefaultSegmentConfig() SegmentConfig {
	return SegmentConfig{
		TargetChunkSize: DefaultTargetChunkSize,
		Overlap:         DefaultChunkOverlap,
	}
}

// normalized clamps the config so every segment (overlap plus owned text) fits
// in TargetChunkSize.
func (c SegmentConfig) normalized() SegmentConfig {
	if c.TargetChunkSize <= 0 {
		c.TargetChunkSize = DefaultTargetChunkSize
	}
	if c.Overlap < 0 {
		c.Overlap = 0
	}
	if c.Overlap > c.TargetChunkSize/2 {
		c.Overlap = c.TargetChunkSize / 2
	}
	return c
}

var (
	listItemPattern = regexp.MustCompile(`^\s*([-*•]|\d+[.)])\s+`)

	topicKeywords = []string{
		"introduction", "conclusion", "summary", "example", "definition",
		"theory", "method", "result", "analysis", "discussion",
	}
)

type block struct {
	start   int
	end     int
	label   domain.SegmentLabel
	heading string
}

type piece struct {
	start       int
	end         int
	label       domain.SegmentLabel
	heading     string
	lastHeading string
}

// Segment splits document text into ordered, unsaved segments.
//
// Blocks are cut at blank lines, page breaks and heading lines, then packed
// greedily. Blocks larger than the budget are split with a sliding window that
// prefers whitespace cuts. Each segment after the first repeats up to overlap
// runes of its predecessor. Whitespace runs longer than the budget may be left
// between owned ranges. Empty or whitespace-only text yields nil.
func Segment(text string, targetChunkSize, overlap int) []domain.Segment {
	if strings.TrimSpace(text) == "" {
		return nil
	}
	cfg := SegmentConfig{TargetChunkSize: targetChunkSize, Overlap: overlap}.normalized()
	budget := cfg.TargetChunkSize - cfg.Overlap

	runes := []rune(text)
	pieces := packBlocks(runes, splitBlocks(runes), budget)
	pieces = absorbBlankPieces(runes, pieces, budget)

	hasPages := strings.ContainsRune(text, '\f')
	segments := make([]domain.Segment, 0, len(pieces))
	topic := ""
	for i, p := range pieces {
		ov := 0
		if i > 0 && pieces[i-1].end == p.start {
			ov = min(cfg.Overlap, pieces[i-1].end-pieces[i-1].start)
		}
		body := string(runes[p.start-ov : p.end])

		segTopic := p.heading
		if segTopic == "" {
			segTopic = topic
		}
		if segTopic == "" {
			segTopic = keywordTopic(string(runes[p.start:p.end]))
		}
		if p.lastHeading != "" {
			topic = p.lastHeading
		}

		page := 0
		if hasPages {
			page = pageAt(runes, p.start, p.end)
		}

		segments = append(segments, domain.Segment{
			SequenceIndex: i,
			Text:          body,
			Label:         p.label,
			Topic:         segTopic,
			PageNumber:    page,
			StartOffset:   p.start,
			EndOffset:     p.end,
			OverlapChars:  ov,
		})
	}
	return segments
}

// splitBlocks tiles [0, len(runes)) with structural blocks. Blank lines belong
// to the block before them; leading whitespace belongs to the first block.
func splitBlocks(runes []rune) []block {
	var blocks []block
	var cur block
	open := false
	sawBreak := false
	curIsHeading := false

	for ls := 0; ls < len(runes); {
		le := ls
		for le < len(runes) && runes[le] != '\n' {
			le++
		}
		if le < len(runes) {
			le++
		}
		line := string(runes[ls:le])
		trimmed := strings.TrimSpace(line)
		pageBreak := strings.ContainsRune(line, '\f')

		if trimmed == "" {
			if open {
				sawBreak = true
			}
			ls = le
			continue
		}

		heading := isHeadingLine(trimmed)
		if open && (sawBreak || pageBreak || heading || curIsHeading) {
			cur.end = ls
			blocks = append(blocks, cur)
			cur = block{start: ls}
			open = false
		}
		if !open {
			open = true
			cur.label = classifyBlock(trimmed, heading)
			if heading {
				cur.heading = headingText(trimmed)
			}
			curIsHeading = heading
		}
		sawBreak = false
		ls = le
	}

	if open {
		cur.end = len(runes)
		blocks = append(blocks, cur)
	}
	return blocks
}

func packBlocks(runes []rune, blocks []block, budget int) []piece {
	var pieces []piece
	var cur piece
	open := false

	flush := func() {
		if open {
			pieces = append(pieces, cur)
			open = false
		}
	}

	for _, b := range blocks {
		size := b.end - b.start
		if size > budget {
			flush()
			pieces = append(pieces, windowSplit(runes, b, budget)...)
			continue
		}
		if open && cur.end-cur.start+size > budget {
			flush()
		}
		if !open {
			cur = piece{start: b.start, end: b.end, label: b.label, heading: b.heading, lastHeading: b.heading}
			open = true
			continue
		}
		cur.end = b.end
		if b.heading != "" {
			if cur.heading == "" {
				cur.heading = b.heading
			}
			cur.lastHeading = b.heading
		}
	}
	flush()
	return pieces
}

// windowSplit cuts an oversized block into pieces of at most budget runes,
// preferring to cut just after whitespace in the second half of each window.
func windowSplit(runes []rune, b block, budget int) []piece {
	var pieces []piece
	start := b.start
	for start < b.end {
		end := start + budget
		if end >= b.end {
			end = b.end
		} else {
			cut := end
			minCut := start + budget/2
			for i := end; i > minCut; i-- {
				if unicode.IsSpace(runes[i-1]) {
					cut = i
					break
				}
			}
			end = cut
		}

		p := piece{start: start, end: end, label: b.label}
		if start == b.start {
			p.heading = b.heading
			p.lastHeading = b.heading
		}
		pieces = append(pieces, p)
		start = end
	}
	return pieces
}

// absorbBlankPieces hands whitespace-only pieces to their neighbours so every
// segment carries content. A blank run first extends the previous piece, then
// the next piece, each only up to budget runes. Whitespace that fits neither
// stays unowned.
func absorbBlankPieces(runes []rune, pieces []piece, budget int) []piece {
	out := pieces[:0]
	carry := -1
	var carryHeading string
	for _, p := range pieces {
		if !isBlank(runes[p.start:p.end]) {
			if carry >= 0 {
				p.start = max(carry, p.end-budget)
				if p.heading == "" {
					p.heading = carryHeading
				}
				if p.lastHeading == "" {
					p.lastHeading = carryHeading
				}
				carry = -1
				carryHeading = ""
			}
			out = append(out, p)
			continue
		}

		from := p.start
		if carry < 0 && len(out) > 0 && out[len(out)-1].end == p.start {
			prev := &out[len(out)-1]
			prev.end = min(p.end, prev.start+budget)
			from = prev.end
		}
		if from < p.end && carry < 0 {
			carry = from
		}
		if carryHeading == "" {
			carryHeading = p.heading
		}
	}
	return out
}

func isBlank(runes []rune) bool {
	for _, r := range runes {
		if !unicode.IsSpace(r) {
			return false
		}
	}
	return true
}

func isHeadingLine(line string) bool {
	if strings.HasPrefix(line, "#") {
		return true
	}
	if utf8.RuneCountInString(line) >= maxHeadingChars || listItemPattern.MatchString(line) {
		return false
	}
	if strings.HasSuffix(line, ":") {
		return true
	}
	letters := 0
	for _, r := range line {
		if unicode.IsLetter(r) {
			if !unicode.IsUpper(r) {
				return false
			}
			letters++
		}
	}
	return letters >= 2
}

func headingText(line string) string {
	line = strings.TrimLeft(line, "#")
	line = strings.TrimSuffix(strings.TrimSpace(line), ":")
	return strings.TrimSpace(line)
}

func classifyBlock(firstLine string, heading bool) domain.SegmentLabel {
	switch {
	case heading:
		return domain.SegmentLabelHeading
	case listItemPattern.MatchString(firstLine):
		return domain.SegmentLabelList
	default:
		return domain.SegmentLabelParagraph
	}
}

func keywordTopic(text string) string {
	lower := strings.ToLower(text)
	for _, kw := range topicKeywords {
		if strings.Contains(lower, kw) {
			return strings.ToUpper(kw[:1]) + kw[1:]
		}
	}
	return "General"
}

// pageAt returns the 1-based page of the first non-space rune in [start, end),
// counting form feeds as page breaks.
func pageAt(runes []rune, start, end int) int {
	first := start
	for first < end && unicode.IsSpace(runes[first]) {
		first++
	}
	page := 1
	for _, r := range runes[:first] {
		if r == '\f' {
			page++
		}
	}
	return page
}
