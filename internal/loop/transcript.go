package loop

import (
	"bufio"
	"encoding/json"
	"os"
	"strings"
)

// transcript JSONL records: one object per line with a type discriminator
// and, for conversation turns, a nested message carrying content blocks.
type transcriptRecord struct {
	Type    string `json:"type"`
	Message struct {
		Role    string `json:"role"`
		Content []struct {
			Type string `json:"type"`
			Text string `json:"text"`
		} `json:"content"`
	} `json:"message"`
}

// maxTranscriptLine bounds a single transcript line; assistant turns with
// large embedded tool results can run long.
const maxTranscriptLine = 4 * 1024 * 1024

// LastAssistantTurn returns the concatenated text blocks of the most
// recent assistant record in a transcript file. Unparseable lines are
// skipped: the log may be appended to concurrently and the final line can
// be partial.
func LastAssistantTurn(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer func() { _ = f.Close() }()

	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 64*1024), maxTranscriptLine)

	var last string
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		var rec transcriptRecord
		if err := json.Unmarshal([]byte(line), &rec); err != nil {
			continue
		}
		if rec.Type != "assistant" && rec.Message.Role != "assistant" {
			continue
		}
		var parts []string
		for _, block := range rec.Message.Content {
			if block.Type == "text" && block.Text != "" {
				parts = append(parts, block.Text)
			}
		}
		if len(parts) > 0 {
			last = strings.Join(parts, "\n")
		}
	}
	if err := scanner.Err(); err != nil {
		return last, err
	}
	return last, nil
}
