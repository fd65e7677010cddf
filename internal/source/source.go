// Package source loads per-subject histories for the timebin pipeline.
package source

import (
	"context"
	"fmt"
	"sort"

	"github.com/saaga0h/jeeves-screentime/internal/timebin"
)

// Source provides complete subject histories
type Source interface {
	// Subjects lists every subject with stored data, sorted
	Subjects(ctx context.Context) ([]string, error)

	// Load returns the full event and liveness history of one subject
	Load(ctx context.Context, subject string) (timebin.SubjectInput, error)
}

// MemorySource serves subject histories that are already in memory
type MemorySource struct {
	inputs map[string]timebin.SubjectInput
}

// NewMemorySource indexes the given inputs by subject
func NewMemorySource(inputs []timebin.SubjectInput) *MemorySource {
	m := &MemorySource{inputs: make(map[string]timebin.SubjectInput, len(inputs))}
	for _, in := range inputs {
		m.inputs[in.Subject] = in
	}
	return m
}

func (m *MemorySource) Subjects(ctx context.Context) ([]string, error) {
	subjects := make([]string, 0, len(m.inputs))
	for s := range m.inputs {
		subjects = append(subjects, s)
	}
	sort.Strings(subjects)
	return subjects, nil
}

func (m *MemorySource) Load(ctx context.Context, subject string) (timebin.SubjectInput, error) {
	in, ok := m.inputs[subject]
	if !ok {
		return timebin.SubjectInput{}, fmt.Errorf("unknown subject %q", subject)
	}
	return in, nil
}

// GroupBySubject splits a mixed record set into one input per subject,
// keeping the input record order within each subject. Subjects are
// returned sorted.
func GroupBySubject(events []timebin.Event, liveness []timebin.LivenessStamp) []timebin.SubjectInput {
	bySubject := make(map[string]*timebin.SubjectInput)
	get := func(subject string) *timebin.SubjectInput {
		in, ok := bySubject[subject]
		if !ok {
			in = &timebin.SubjectInput{Subject: subject}
			bySubject[subject] = in
		}
		return in
	}

	for _, e := range events {
		in := get(e.Subject)
		in.Events = append(in.Events, e)
	}
	for _, l := range liveness {
		in := get(l.Subject)
		in.Liveness = append(in.Liveness, l)
	}

	out := make([]timebin.SubjectInput, 0, len(bySubject))
	for _, in := range bySubject {
		out = append(out, *in)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Subject < out[j].Subject })
	return out
}
