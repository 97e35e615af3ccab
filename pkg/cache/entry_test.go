package cache

import (
	"testing"
	"time"
)

func TestCacheEntry_IsExpired(t *testing.T) {
	tests := []struct {
		name    string
		expires time.Time
		want    bool
	}{
		{name: "expired entry", expires: time.Now().Add(-1 * time.Hour), want: true},
		{name: "valid entry", expires: time.Now().Add(1 * time.Hour), want: false},
		{name: "zero expires", expires: time.Time{}, want: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			entry := &CacheEntry{Expires: tt.expires}
			if got := entry.IsExpired(); got != tt.want {
				t.Errorf("IsExpired() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestCacheEntry_TTL(t *testing.T) {
	entry := &CacheEntry{Expires: time.Now().Add(5 * time.Minute)}
	if got := entry.TTL(); got < 4*time.Minute+59*time.Second || got > 5*time.Minute {
		t.Errorf("TTL() = %v, want about 5m", got)
	}

	expired := &CacheEntry{Expires: time.Now().Add(-1 * time.Minute)}
	if got := expired.TTL(); got != 0 {
		t.Errorf("TTL() of expired entry = %v, want 0", got)
	}
}

func TestCacheEntry_HasValidators(t *testing.T) {
	if (&CacheEntry{}).HasValidators() {
		t.Error("entry without ETag or Last-Modified reports validators")
	}
	if !(&CacheEntry{ETag: `W/"abc"`}).HasValidators() {
		t.Error("entry with ETag reports no validators")
	}
	if !(&CacheEntry{LastModified: time.Now()}).HasValidators() {
		t.Error("entry with Last-Modified reports no validators")
	}
}
