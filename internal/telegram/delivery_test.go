package telegram

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"

	"github.com/Usernoise/chatd/internal/config"
	"github.com/Usernoise/chatd/internal/gemini"
	"github.com/Usernoise/chatd/internal/jobs"
)

type fakeSender struct {
	mu       sync.Mutex
	texts    []string
	audios   []*bot.SendAudioParams
	audioErr error
}

func (f *fakeSender) SendMessage(_ context.Context, p *bot.SendMessageParams) (*models.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.texts = append(f.texts, p.Text)
	return &models.Message{}, nil
}

func (f *fakeSender) SendAudio(_ context.Context, p *bot.SendAudioParams) (*models.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.audioErr != nil {
		return nil, f.audioErr
	}
	f.audios = append(f.audios, p)
	return &models.Message{}, nil
}

func mediaServer(t *testing.T) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/a.mp3", "/a.jpg":
			_, _ = w.Write([]byte("data"))
		case "/big.mp3":
			_, _ = w.Write([]byte(strings.Repeat("x", 4096)))
		default:
			http.NotFound(w, r)
		}
	}))
	t.Cleanup(srv.Close)
	return srv
}

func newTestDelivery(s Sender) *Delivery {
	return NewDelivery(s, config.DefaultMessages, time.Second, 1024, time.UTC, nil)
}

func TestDeliver_SendsAudio(t *testing.T) {
	t.Parallel()

	srv := mediaServer(t)
	sender := &fakeSender{}
	d := newTestDelivery(sender)

	entry := jobs.Entry{JobID: "j", ChatID: 10, Payload: &gemini.Song{Title: "Friday"}}
	outcome := jobs.Outcome{Kind: jobs.OutcomeSucceeded, Tracks: []jobs.Track{
		{AudioURL: srv.URL + "/a.mp3", ImageURL: srv.URL + "/a.jpg"},
	}}
	if err := d.Deliver(context.Background(), entry, outcome); err != nil {
		t.Fatalf("Deliver() error = %v", err)
	}
	if len(sender.audios) != 1 || len(sender.texts) != 0 {
		t.Fatalf("audios=%d texts=%d, want 1 audio", len(sender.audios), len(sender.texts))
	}
	if got := sender.audios[0].Title; got != "Friday - Track 1" {
		t.Errorf("Title = %q", got)
	}
	if sender.audios[0].ChatID != int64(10) {
		t.Errorf("ChatID = %v", sender.audios[0].ChatID)
	}
}

func TestDeliver_FallsBackToLinks(t *testing.T) {
	t.Parallel()

	srv := mediaServer(t)
	tests := []struct {
		name   string
		track  jobs.Track
		sender *fakeSender
	}{
		{name: "missing cover", track: jobs.Track{AudioURL: srv.URL + "/a.mp3", ImageURL: srv.URL + "/missing.jpg"}, sender: &fakeSender{}},
		{name: "too large", track: jobs.Track{AudioURL: srv.URL + "/big.mp3", ImageURL: srv.URL + "/a.jpg"}, sender: &fakeSender{}},
		{name: "no urls", track: jobs.Track{}, sender: &fakeSender{}},
		{name: "send audio fails", track: jobs.Track{AudioURL: srv.URL + "/a.mp3", ImageURL: srv.URL + "/a.jpg"}, sender: &fakeSender{audioErr: errors.New("too big for telegram")}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			d := newTestDelivery(tt.sender)
			err := d.Deliver(context.Background(), jobs.Entry{ChatID: 1},
				jobs.Outcome{Kind: jobs.OutcomeSucceeded, Tracks: []jobs.Track{tt.track}})
			if err != nil {
				t.Fatalf("Deliver() error = %v", err)
			}
			if len(tt.sender.texts) != 1 || !strings.Contains(tt.sender.texts[0], "Track 1") {
				t.Errorf("texts = %v, want one fallback message", tt.sender.texts)
			}
		})
	}
}

func TestDeliver_TerminalMessages(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		outcome jobs.Outcome
		want    string
	}{
		{name: "failed", outcome: jobs.Outcome{Kind: jobs.OutcomeFailed, Tag: jobs.TagSensitiveWordError}, want: jobs.TagSensitiveWordError},
		{name: "abandoned", outcome: jobs.Outcome{Kind: jobs.OutcomeAbandoned}, want: config.DefaultMessages.SongTimedOut},
		{name: "no tracks", outcome: jobs.Outcome{Kind: jobs.OutcomeSucceeded}, want: "Song of the day"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			sender := &fakeSender{}
			if err := newTestDelivery(sender).Deliver(context.Background(), jobs.Entry{ChatID: 1}, tt.outcome); err != nil {
				t.Fatalf("Deliver() error = %v", err)
			}
			if len(sender.texts) != 1 || !strings.Contains(sender.texts[0], tt.want) {
				t.Errorf("texts = %v, want one containing %q", sender.texts, tt.want)
			}
		})
	}
}
