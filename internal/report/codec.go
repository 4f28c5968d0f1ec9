package report

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Entry is an (author, content) pair: a note, an attachment, or one side of
// a serialized stance.
type Entry struct {
	Author  string
	Content string
}

// StepSeparator splits the steps field of submit and edit input.
const StepSeparator = " ~ "

// EncodeEntries serializes entries as a JSON array of [author, content]
// tuples. Content may contain any character, including the separators used
// by command input.
func EncodeEntries(entries []Entry) (string, error) {
	tuples := make([][2]string, len(entries))
	for i, e := range entries {
		tuples[i] = [2]string{e.Author, e.Content}
	}
	data, err := json.Marshal(tuples)
	if err != nil {
		return "", fmt.Errorf("encode entries: %w", err)
	}
	return string(data), nil
}

// DecodeEntries is the inverse of EncodeEntries. Empty input decodes to nil.
func DecodeEntries(s string) ([]Entry, error) {
	if strings.TrimSpace(s) == "" {
		return nil, nil
	}
	var tuples [][2]string
	if err := json.Unmarshal([]byte(s), &tuples); err != nil {
		return nil, fmt.Errorf("decode entries: %w", err)
	}
	if len(tuples) == 0 {
		return nil, nil
	}
	entries := make([]Entry, len(tuples))
	for i, t := range tuples {
		entries[i] = Entry{Author: t[0], Content: t[1]}
	}
	return entries, nil
}

// EncodeSteps serializes reproduction steps as a JSON string array.
func EncodeSteps(steps []string) (string, error) {
	if steps == nil {
		steps = []string{}
	}
	data, err := json.Marshal(steps)
	if err != nil {
		return "", fmt.Errorf("encode steps: %w", err)
	}
	return string(data), nil
}

// DecodeSteps is the inverse of EncodeSteps.
func DecodeSteps(s string) ([]string, error) {
	if strings.TrimSpace(s) == "" {
		return nil, nil
	}
	var steps []string
	if err := json.Unmarshal([]byte(s), &steps); err != nil {
		return nil, fmt.Errorf("decode steps: %w", err)
	}
	if len(steps) == 0 {
		return nil, nil
	}
	return steps, nil
}

// SplitSteps splits free-text step input on StepSeparator, dropping empty
// steps.
func SplitSteps(s string) []string {
	var steps []string
	for _, part := range strings.Split(s, StepSeparator) {
		if part = strings.TrimSpace(part); part != "" {
			steps = append(steps, part)
		}
	}
	return steps
}

func encodeStances(stances []Stance) (string, error) {
	entries := make([]Entry, len(stances))
	for i, s := range stances {
		entries[i] = Entry{Author: s.Reviewer, Content: s.Text}
	}
	return EncodeEntries(entries)
}

func decodeStances(s string, p Polarity) ([]Stance, error) {
	entries, err := DecodeEntries(s)
	if err != nil {
		return nil, err
	}
	stances := make([]Stance, len(entries))
	for i, e := range entries {
		stances[i] = Stance{Reviewer: e.Author, Polarity: p, Text: e.Content}
	}
	return stances, nil
}
