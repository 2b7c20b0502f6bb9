package memory

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"exam-submission-service/internal/domain"
)

func TestQuestionCacheCaches(t *testing.T) {
	store := NewQuestionStore()
	_ = store.CreateQuestion(context.Background(), sampleQuestion())
	loader := &countingLoader{QuestionLoader: store}
	cache := NewQuestionCache(loader, time.Minute)

	if _, err := cache.GetQuestion(context.Background(), "q1"); err != nil {
		t.Fatalf("get question: %v", err)
	}
	if loader.calls != 1 {
		t.Fatalf("expected loader once, got %d", loader.calls)
	}

	if _, err := cache.GetQuestion(context.Background(), "q1"); err != nil {
		t.Fatalf("get question 2: %v", err)
	}
	if loader.calls != 1 {
		t.Fatalf("expected cache hit, loader calls %d", loader.calls)
	}
}

func TestQuestionCacheInvalidate(t *testing.T) {
	ctx := context.Background()
	store := NewQuestionStore()
	q := sampleQuestion()
	_ = store.CreateQuestion(ctx, q)
	cache := NewQuestionCache(store, time.Minute)

	if _, err := cache.GetQuestion(ctx, "q1"); err != nil {
		t.Fatalf("get question: %v", err)
	}
	q.CorrectAnswer = "C"
	_ = store.UpdateQuestion(ctx, q)
	_ = cache.Invalidate(ctx, "q1")

	got, err := cache.GetQuestion(ctx, "q1")
	if err != nil {
		t.Fatalf("get question after invalidate: %v", err)
	}
	if got.CorrectAnswer != "C" {
		t.Fatalf("expected reloaded answer C, got %s", got.CorrectAnswer)
	}
}

func TestQuestionCacheExpires(t *testing.T) {
	ctx := context.Background()
	store := NewQuestionStore()
	_ = store.CreateQuestion(ctx, sampleQuestion())
	loader := &countingLoader{QuestionLoader: store}
	cache := NewQuestionCache(loader, time.Minute)
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	cache.clock = func() time.Time { return now }

	_, _ = cache.GetQuestion(ctx, "q1")
	now = now.Add(2 * time.Minute)
	_, _ = cache.GetQuestion(ctx, "q1")
	if loader.calls != 2 {
		t.Fatalf("expected reload after expiry, loader calls %d", loader.calls)
	}
}

func TestQuestionCacheMissingQuestion(t *testing.T) {
	cache := NewQuestionCache(NewQuestionStore(), time.Minute)
	_, err := cache.GetQuestion(context.Background(), "nope")
	if !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestQuestionCacheDropsFillRacingInvalidate(t *testing.T) {
	ctx := context.Background()
	store := NewQuestionStore()
	q := sampleQuestion()
	_ = store.CreateQuestion(ctx, q)
	loader := newGatedLoader(store)
	cache := NewQuestionCache(loader, time.Minute)

	done := make(chan error, 1)
	go func() {
		_, err := cache.GetQuestion(ctx, "q1")
		done <- err
	}()
	<-loader.loaded

	q.CorrectAnswer = "D"
	_ = store.UpdateQuestion(ctx, q)
	_ = cache.Invalidate(ctx, "q1")
	close(loader.release)
	if err := <-done; err != nil {
		t.Fatalf("first read: %v", err)
	}

	got, err := cache.GetQuestion(ctx, "q1")
	if err != nil {
		t.Fatalf("get question: %v", err)
	}
	if got.CorrectAnswer != "D" {
		t.Fatalf("expected answer key D after invalidate, got %s", got.CorrectAnswer)
	}
}

func TestQuestionCacheForgetsDeletedQuestionDuringFill(t *testing.T) {
	ctx := context.Background()
	store := NewQuestionStore()
	_ = store.CreateQuestion(ctx, sampleQuestion())
	loader := newGatedLoader(store)
	cache := NewQuestionCache(loader, time.Minute)

	done := make(chan error, 1)
	go func() {
		_, err := cache.GetQuestion(ctx, "q1")
		done <- err
	}()
	<-loader.loaded

	_ = store.DeleteQuestion(ctx, "q1")
	_ = cache.Invalidate(ctx, "q1")
	close(loader.release)
	<-done

	if _, err := cache.GetQuestion(ctx, "q1"); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected deleted question to miss, got %v", err)
	}
}

// gatedLoader holds its first load after reading the store until release is closed.
type gatedLoader struct {
	QuestionLoader
	loaded  chan struct{}
	release chan struct{}
	once    sync.Once
}

func newGatedLoader(inner QuestionLoader) *gatedLoader {
	return &gatedLoader{QuestionLoader: inner, loaded: make(chan struct{}), release: make(chan struct{})}
}

func (l *gatedLoader) GetQuestion(ctx context.Context, id string) (domain.Question, error) {
	q, err := l.QuestionLoader.GetQuestion(ctx, id)
	l.once.Do(func() {
		close(l.loaded)
		<-l.release
	})
	return q, err
}

type countingLoader struct {
	QuestionLoader
	calls int
}

func (l *countingLoader) GetQuestion(ctx context.Context, id string) (domain.Question, error) {
	l.calls++
	return l.QuestionLoader.GetQuestion(ctx, id)
}

func sampleQuestion() domain.Question {
	return domain.Question{
		ID:            "q1",
		Type:          domain.QuestionMultipleChoice,
		Content:       "What is 2 + 2?",
		Options:       []string{"3", "4", "5", "6"},
		CorrectAnswer: "B",
		Score:         1,
		Difficulty:    domain.DifficultyEasy,
	}
}
