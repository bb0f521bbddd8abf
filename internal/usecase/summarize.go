package usecase

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"
	"unicode/utf8"

	"TubeDigest/internal/config"
	"TubeDigest/internal/domain"
	"TubeDigest/internal/ports"
)

const defaultSummaryPrompt = `You summarize YouTube video transcripts.
Respond with a single JSON object, no markdown fences, with exactly these keys:
"title" (string, concise video title), "points" (array of 3-7 key takeaway strings),
"summary" (string, one dense paragraph), "noteworthy_mentions" (array of people,
products, companies or works mentioned), "verdict" (string, one-line overall take).`

const defaultPartialPrompt = `You summarize one segment of a longer YouTube video transcript.
Write a compact plain-text summary of this segment: main arguments, facts, and any
people, products or works mentioned. No preamble, no formatting.`

const defaultReducePrompt = `You merge segment summaries of one YouTube video into a final summary.
The segments are given in playback order. Respond with a single JSON object, no
markdown fences, with exactly these keys: "title", "points" (array of 3-7 strings),
"summary" (string), "noteworthy_mentions" (array of strings), "verdict" (string).`

const defaultReportPrompt = `You write a daily digest of YouTube video summaries for a Discord channel.
Given the day's summaries, produce a short readable report: one line per video with
its title and verdict, then a "Themes" section noting overlaps, then a "Worth watching"
pick. Plain text with simple markdown, no code fences.`

const summarizeAttempts = 3

// Summarizer produces structured summaries from transcripts using a chunk +
// reduce strategy over a completion API.
type Summarizer struct {
	completer     ports.Completer
	summaryPrompt string
	reportPrompt  string
	chunkSize     int
	chunkOverlap  int
	logger        *slog.Logger
}

// NewSummarizer builds the summarizer. Prompt templates default to the
// built-in contracts when the config leaves them empty.
func NewSummarizer(completer ports.Completer, cfg config.OpenAIConfig, logger *slog.Logger) *Summarizer {
	summaryPrompt := cfg.SummaryPrompt
	if summaryPrompt == "" {
		summaryPrompt = defaultSummaryPrompt
	}
	reportPrompt := cfg.ReportPrompt
	if reportPrompt == "" {
		reportPrompt = defaultReportPrompt
	}
	chunkSize := cfg.ChunkSize
	if chunkSize <= 0 {
		chunkSize = 8000
	}
	chunkOverlap := cfg.ChunkOverlap
	if chunkOverlap < 0 || chunkOverlap >= chunkSize {
		chunkOverlap = 0
	}
	return &Summarizer{
		completer:     completer,
		summaryPrompt: summaryPrompt,
		reportPrompt:  reportPrompt,
		chunkSize:     chunkSize,
		chunkOverlap:  chunkOverlap,
		logger:        logger,
	}
}

// summaryPayload is the JSON contract the model must honor.
type summaryPayload struct {
	Title    string   `json:"title"`
	Points   []string `json:"points"`
	Summary  string   `json:"summary"`
	Mentions []string `json:"noteworthy_mentions"`
	Verdict  string   `json:"verdict"`
}

// Summarize turns one item's transcript into a structured summary. Transcripts
// over the chunk size are summarized per chunk, then reduced in one pass.
func (s *Summarizer) Summarize(ctx context.Context, item domain.Item) (domain.Summary, error) {
	text := strings.TrimSpace(item.RawText)
	if text == "" {
		return domain.Summary{}, fmt.Errorf("item %s has no transcript text: %w", item.ID, domain.ErrSummarization)
	}

	chunks := SplitChunks(text, s.chunkSize, s.chunkOverlap)

	var payload summaryPayload
	var err error
	if len(chunks) == 1 {
		payload, err = s.completeJSON(ctx, s.summaryPrompt, "Video title: "+item.Title+"\n\nTranscript:\n"+chunks[0])
	} else {
		payload, err = s.mapReduce(ctx, item.Title, chunks)
	}
	if err != nil {
		return domain.Summary{}, fmt.Errorf("summarize %s: %v: %w", item.ID, err, domain.ErrSummarization)
	}

	title := payload.Title
	if title == "" {
		title = item.Title
	}
	return domain.Summary{
		ItemID:    item.ID,
		Title:     title,
		Points:    payload.Points,
		Mentions:  DedupeMentions(payload.Mentions),
		Verdict:   payload.Verdict,
		Text:      payload.Summary,
		CreatedAt: time.Now().UTC(),
	}, nil
}

func (s *Summarizer) mapReduce(ctx context.Context, title string, chunks []string) (summaryPayload, error) {
	partials := make([]string, 0, len(chunks))
	for i, chunk := range chunks {
		user := fmt.Sprintf("Video title: %s\nSegment %d of %d:\n\n%s", title, i+1, len(chunks), chunk)
		partial, err := s.complete(ctx, defaultPartialPrompt, user)
		if err != nil {
			return summaryPayload{}, fmt.Errorf("chunk %d/%d: %w", i+1, len(chunks), err)
		}
		partials = append(partials, partial)
	}

	var b strings.Builder
	b.WriteString("Video title: ")
	b.WriteString(title)
	b.WriteString("\n")
	for i, partial := range partials {
		fmt.Fprintf(&b, "\nSegment %d summary:\n%s\n", i+1, partial)
	}
	return s.completeJSON(ctx, defaultReducePrompt, b.String())
}

func (s *Summarizer) completeJSON(ctx context.Context, system, user string) (summaryPayload, error) {
	var lastErr error
	for attempt := 0; attempt < summarizeAttempts; attempt++ {
		raw, err := s.complete(ctx, system, user)
		if err != nil {
			return summaryPayload{}, err
		}
		var payload summaryPayload
		parseErr := json.Unmarshal([]byte(raw), &payload)
		if parseErr == nil {
			return payload, nil
		}
		lastErr = fmt.Errorf("malformed summary JSON: %w", parseErr)
		if s.logger != nil {
			s.logger.Warn("summary JSON parse failed", "attempt", attempt+1, "error", parseErr)
		}
	}
	return summaryPayload{}, lastErr
}

// complete calls the model with bounded retries and backoff. Empty output
// counts as a failure.
func (s *Summarizer) complete(ctx context.Context, system, user string) (string, error) {
	var lastErr error
	wait := time.Second
	for attempt := 0; attempt < summarizeAttempts; attempt++ {
		if ctx.Err() != nil {
			return "", ctx.Err()
		}
		out, err := s.completer.Complete(ctx, system, user)
		if err == nil {
			out = strings.TrimSpace(out)
			if out != "" {
				return out, nil
			}
			err = errors.New("empty completion")
		}
		lastErr = err
		if attempt < summarizeAttempts-1 {
			select {
			case <-time.After(wait):
			case <-ctx.Done():
				return "", ctx.Err()
			}
			wait *= 2
		}
	}
	return "", lastErr
}

// Digest merges the window's summaries into the daily report text.
func (s *Summarizer) Digest(ctx context.Context, summaries []domain.Summary) (string, error) {
	if len(summaries) == 0 {
		return "", fmt.Errorf("nothing to report: %w", domain.ErrSummarization)
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Summaries of %d videos:\n", len(summaries))
	for i, sum := range summaries {
		fmt.Fprintf(&b, "\n%d. %s\n", i+1, sum.Title)
		if sum.Verdict != "" {
			fmt.Fprintf(&b, "Verdict: %s\n", sum.Verdict)
		}
		for _, p := range sum.Points {
			fmt.Fprintf(&b, "- %s\n", p)
		}
	}

	digest, err := s.complete(ctx, s.reportPrompt, b.String())
	if err != nil {
		return "", fmt.Errorf("digest: %v: %w", err, domain.ErrSummarization)
	}
	return digest, nil
}

// SplitChunks cuts text into chunks of at most size chars, preferring a
// sentence boundary inside the trailing overlap window, then a word boundary,
// never mid-word. Consecutive chunks overlap by up to overlap chars.
func SplitChunks(text string, size, overlap int) []string {
	if size <= 0 || len(text) <= size {
		return []string{text}
	}
	if overlap < 0 || overlap >= size {
		overlap = 0
	}

	var chunks []string
	start := 0
	for start < len(text) {
		end := start + size
		if end >= len(text) {
			chunks = append(chunks, text[start:])
			break
		}

		cut := findBreak(text, start, end, overlap)
		chunks = append(chunks, text[start:cut])

		next := cut - overlap
		for next > start && !utf8.RuneStart(text[next]) {
			next--
		}
		if next <= start {
			next = cut
		}
		start = next
	}
	return chunks
}

// findBreak searches backwards from end for a sentence terminator followed by
// whitespace inside the overlap window, then for any whitespace in the whole
// chunk. A chunk with no whitespace at all is cut at a rune boundary.
func findBreak(text string, start, end, overlap int) int {
	low := end - overlap
	if low < start+1 {
		low = start + 1
	}

	for i := end - 1; i >= low; i-- {
		c := text[i]
		if (c == '.' || c == '!' || c == '?') && i+1 < len(text) && isSpace(text[i+1]) {
			return i + 1
		}
	}
	for i := end - 1; i > start; i-- {
		if isSpace(text[i]) {
			return i
		}
	}
	for end > start+1 && !utf8.RuneStart(text[end]) {
		end--
	}
	return end
}

func isSpace(c byte) bool {
	return c == ' ' || c == '\n' || c == '\t' || c == '\r'
}

// DedupeMentions removes case-insensitive duplicates, keeping the first
// occurrence and its original casing.
func DedupeMentions(mentions []string) []string {
	if len(mentions) == 0 {
		return mentions
	}
	seen := make(map[string]bool, len(mentions))
	out := make([]string, 0, len(mentions))
	for _, m := range mentions {
		m = strings.TrimSpace(m)
		if m == "" {
			continue
		}
		key := strings.ToLower(m)
		if seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, m)
	}
	return out
}
