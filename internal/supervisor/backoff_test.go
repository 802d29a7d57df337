package supervisor

import (
	"testing"
	"time"
)

func TestBackoffNext(t *testing.T) {
	tests := []struct {
		name        string
		backoff     Backoff
		consecutive int
		want        time.Duration
	}{
		{"fixed first", DefaultBackoff(), 1, 2 * time.Second},
		{"fixed tenth", DefaultBackoff(), 10, 2 * time.Second},
		{"exponential first", Backoff{Strategy: BackoffExponential, Delay: time.Second, Max: time.Minute}, 1, time.Second},
		{"exponential zero", Backoff{Strategy: BackoffExponential, Delay: time.Second, Max: time.Minute}, 0, time.Second},
		{"exponential third", Backoff{Strategy: BackoffExponential, Delay: time.Second, Max: time.Minute}, 3, 4 * time.Second},
		{"exponential capped", Backoff{Strategy: BackoffExponential, Delay: time.Second, Max: 10 * time.Second}, 5, 10 * time.Second},
		{"exponential large count capped", Backoff{Strategy: BackoffExponential, Delay: time.Second, Max: time.Minute}, 500, time.Minute},
		{"exponential uncapped overflow", Backoff{Strategy: BackoffExponential, Delay: time.Second}, 200, time.Duration(1<<63 - 1)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.backoff.Next(tt.consecutive); got != tt.want {
				t.Errorf("Next(%d) = %v, want %v", tt.consecutive, got, tt.want)
			}
		})
	}
}

func TestBackoffValidate(t *testing.T) {
	tests := []struct {
		name    string
		backoff Backoff
		wantErr bool
	}{
		{"default", DefaultBackoff(), false},
		{"exponential", Backoff{Strategy: BackoffExponential, Delay: time.Second, Max: time.Minute}, false},
		{"unknown strategy", Backoff{Strategy: "linear", Delay: time.Second}, true},
		{"empty strategy", Backoff{Delay: time.Second}, true},
		{"negative delay", Backoff{Strategy: BackoffFixed, Delay: -time.Second}, true},
		{"negative max", Backoff{Strategy: BackoffExponential, Delay: time.Second, Max: -1}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.backoff.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}
