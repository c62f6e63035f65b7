package queue

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/google/uuid"
)

func TestNewJobConstructors(t *testing.T) {
	t.Parallel()

	userID, sessionID, convID := uuid.New(), uuid.New(), uuid.New()

	summary := NewSessionSummaryJob(userID, sessionID)
	if summary.Type != JobTypeSessionSummary || summary.SessionID == nil || *summary.SessionID != sessionID {
		t.Errorf("session summary job = %+v", summary)
	}
	if summary.ID == uuid.Nil || summary.MaxRetries != DefaultMaxRetries || summary.RetryCount != 0 {
		t.Errorf("unexpected defaults: %+v", summary)
	}

	anchor := NewIntegrityAnchorJob(userID, sessionID, convID, "abc123")
	if anchor.Type != JobTypeIntegrityAnchor || anchor.ConversationID == nil || *anchor.ConversationID != convID {
		t.Errorf("integrity anchor job = %+v", anchor)
	}
	if got := anchor.MetadataString("content_hash"); got != "abc123" {
		t.Errorf("content_hash = %q", got)
	}
	if got := anchor.MetadataString("missing"); got != "" {
		t.Errorf("missing metadata = %q", got)
	}
}

func TestJob_Validate(t *testing.T) {
	t.Parallel()

	id := uuid.New()
	tests := []struct {
		name    string
		job     *Job
		wantErr bool
	}{
		{name: "summary ok", job: &Job{Type: JobTypeSessionSummary, SessionID: &id}},
		{name: "summary without session", job: &Job{Type: JobTypeSessionSummary}, wantErr: true},
		{name: "anchor ok", job: &Job{Type: JobTypeIntegrityAnchor, ConversationID: &id}},
		{name: "anchor without conversation", job: &Job{Type: JobTypeIntegrityAnchor, SessionID: &id}, wantErr: true},
		{name: "unknown type", job: &Job{Type: "task_analysis"}, wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if err := tt.job.Validate(); (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestJob_ShouldProcessAndExpiry(t *testing.T) {
	t.Parallel()

	now := time.Now()
	tests := []struct {
		name        string
		notBefore   *time.Time
		notAfter    *time.Time
		wantProcess bool
		wantExpired bool
	}{
		{name: "no time constraints", wantProcess: true},
		{name: "not before in past", notBefore: timePtr(now.Add(-time.Hour)), wantProcess: true},
		{name: "not before in future", notBefore: timePtr(now.Add(time.Hour))},
		{name: "not after in future", notAfter: timePtr(now.Add(time.Hour)), wantProcess: true},
		{name: "not after in past", notAfter: timePtr(now.Add(-time.Hour)), wantExpired: true},
		{
			name:        "inside window",
			notBefore:   timePtr(now.Add(-time.Hour)),
			notAfter:    timePtr(now.Add(time.Hour)),
			wantProcess: true,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			j := &Job{Type: JobTypeSessionSummary, NotBefore: tt.notBefore, NotAfter: tt.notAfter}
			if got := j.ShouldProcess(); got != tt.wantProcess {
				t.Errorf("ShouldProcess() = %v, want %v", got, tt.wantProcess)
			}
			if got := j.IsExpired(); got != tt.wantExpired {
				t.Errorf("IsExpired() = %v, want %v", got, tt.wantExpired)
			}
		})
	}
}

func TestJob_RetryBackoff(t *testing.T) {
	t.Parallel()

	j := NewSessionSummaryJob(uuid.New(), uuid.New())
	if d := j.RetryDelay(); d != 0 {
		t.Errorf("initial RetryDelay = %v, want 0", d)
	}

	wantDelays := []time.Duration{5 * time.Second, 10 * time.Second, 20 * time.Second}
	for i, want := range wantDelays {
		if !j.CanRetry() {
			t.Fatalf("CanRetry() = false before attempt %d", i+1)
		}
		before := time.Now()
		j.IncrementRetry()
		if j.RetryCount != i+1 {
			t.Errorf("RetryCount = %d, want %d", j.RetryCount, i+1)
		}
		if got := j.RetryDelay(); got != want {
			t.Errorf("RetryDelay after %d retries = %v, want %v", i+1, got, want)
		}
		if j.NotBefore == nil || j.NotBefore.Before(before.Add(want)) {
			t.Errorf("NotBefore = %v, want at least %v", j.NotBefore, before.Add(want))
		}
		if j.ShouldProcess() {
			t.Error("job should wait for its back-off")
		}
	}
	if j.CanRetry() {
		t.Error("CanRetry() = true after exhausting retries")
	}
}

func TestPublishing(t *testing.T) {
	t.Parallel()

	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	job := NewSessionSummaryJob(uuid.New(), uuid.New())
	job.NotBefore = timePtr(now.Add(30 * time.Second))
	job.NotAfter = timePtr(now.Add(time.Hour))

	p, delayed, err := publishing(job, true, now)
	if err != nil {
		t.Fatalf("publishing: %v", err)
	}
	if !delayed {
		t.Error("expected delayed publish")
	}
	if p.Headers["x-delay"] != int64(30000) {
		t.Errorf("x-delay = %v", p.Headers["x-delay"])
	}
	if p.Expiration != "3600000" {
		t.Errorf("Expiration = %q", p.Expiration)
	}
	if p.Type != string(JobTypeSessionSummary) || p.MessageId != job.ID.String() {
		t.Errorf("publishing metadata = %+v", p)
	}
	var decoded Job
	if err := json.Unmarshal(p.Body, &decoded); err != nil || decoded.ID != job.ID {
		t.Errorf("body round trip: %v %+v", err, decoded)
	}

	_, delayed, err = publishing(job, false, now)
	if err != nil || delayed {
		t.Errorf("without plugin: delayed=%v err=%v", delayed, err)
	}

	if got := RoutingKey(JobTypeIntegrityAnchor); got != "jobs.integrity_anchor" {
		t.Errorf("RoutingKey = %q", got)
	}
}

func timePtr(t time.Time) *time.Time {
	return &t
}
