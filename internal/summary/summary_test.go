package summary

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/Usernoise/chatd/internal/store"
)

type fakeSummarizer struct {
	gotInstruction string
	gotText        string
	err            error
}

func (f *fakeSummarizer) Summarize(_ context.Context, instruction, text string) (string, error) {
	f.gotInstruction = instruction
	f.gotText = text
	if f.err != nil {
		return "", f.err
	}
	return "summary of " + instruction, nil
}

func newTestService(t *testing.T, llm Summarizer) (*Service, *store.Store, time.Time) {
	t.Helper()
	loc := time.FixedZone("MSK", 3*60*60)
	st := store.New(loc)
	now := time.Date(2024, 7, 20, 23, 45, 0, 0, loc)
	svc := NewService(st, llm, nil)
	svc.now = func() time.Time { return now }
	return svc, st, now
}

func TestSummarizeLabel(t *testing.T) {
	t.Parallel()

	llm := &fakeSummarizer{}
	svc, st, now := newTestService(t, llm)
	st.Append(store.Message{ChatID: 1, MessageID: 1, Sender: "ann", Text: "hello", Timestamp: now.Add(-time.Hour)})
	st.Append(store.Message{ChatID: 1, MessageID: 2, Sender: "bob", Text: "hi", Timestamp: now.Add(-30 * time.Minute)})

	res, err := svc.SummarizeLabel(context.Background(), "sum", 1, "day", "be brief")
	if err != nil {
		t.Fatalf("SummarizeLabel() error = %v", err)
	}
	if res.Messages != 2 || res.Text != "summary of be brief" {
		t.Errorf("result = %+v", res)
	}
	if !strings.Contains(llm.gotText, "ann: hello\nbob: hi") {
		t.Errorf("summarizer text = %q", llm.gotText)
	}
	if !strings.Contains(llm.gotText, "2024-07-20") {
		t.Errorf("summarizer text should carry the window label: %q", llm.gotText)
	}
}

func TestSummarizeLabel_Errors(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		label   string
		llmErr  error
		seed    bool
		wantErr error
	}{
		{name: "invalid date", label: "2024-13-40", wantErr: ErrInvalidDateFormat},
		{name: "empty window", label: "2024-07-19", wantErr: ErrNoMessages},
		{name: "upstream", label: "day", seed: true, llmErr: errors.New("503 from provider"), wantErr: ErrUpstream},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			llm := &fakeSummarizer{err: tt.llmErr}
			svc, st, now := newTestService(t, llm)
			if tt.seed {
				st.Append(store.Message{ChatID: 1, MessageID: 1, Sender: "a", Text: "b", Timestamp: now})
			}

			_, err := svc.SummarizeLabel(context.Background(), "test", 1, tt.label, "x")
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("error = %v, want %v", err, tt.wantErr)
			}
			if tt.llmErr != nil && strings.Contains(err.Error(), "503") {
				t.Errorf("provider error leaked to caller: %v", err)
			}
		})
	}
}

func TestRender(t *testing.T) {
	t.Parallel()

	svc, st, now := newTestService(t, &fakeSummarizer{})
	w := store.LastHours(now, 2)
	if text, n := svc.Render(1, w); text != "" || n != 0 {
		t.Errorf("Render(empty) = %q, %d", text, n)
	}

	st.Append(store.Message{ChatID: 1, MessageID: 1, Sender: "a", Text: "old", Timestamp: now.Add(-3 * time.Hour)})
	st.Append(store.Message{ChatID: 1, MessageID: 2, Sender: "b", Text: "new", Timestamp: now.Add(-time.Hour)})
	text, n := svc.Render(1, w)
	if n != 1 || !strings.HasSuffix(text, "b: new") {
		t.Errorf("Render() = %q, %d", text, n)
	}
}
