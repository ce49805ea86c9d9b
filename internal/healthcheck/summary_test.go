package healthcheck

import "testing"

func TestSummarize(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name       string
		results    []CheckResult
		wantStatus string
		wantError  int
	}{
		{
			name:       "empty is unknown",
			results:    nil,
			wantStatus: StatusUnknown,
		},
		{
			name: "all ok",
			results: []CheckResult{
				{Status: StatusOK},
				{Status: StatusOK},
			},
			wantStatus: StatusOK,
		},
		{
			name: "warn degrades ok",
			results: []CheckResult{
				{Status: StatusOK},
				{Status: StatusWarn},
			},
			wantStatus: StatusWarn,
		},
		{
			name: "error wins over warn",
			results: []CheckResult{
				{Status: StatusWarn},
				{Status: StatusError},
				{Status: StatusOK},
			},
			wantStatus: StatusError,
			wantError:  1,
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got := Summarize(tt.results)
			if got.Status != tt.wantStatus {
				t.Fatalf("expected status %s, got %s", tt.wantStatus, got.Status)
			}
			if got.Error != tt.wantError {
				t.Fatalf("expected %d errors, got %d", tt.wantError, got.Error)
			}
			if got.Total != len(tt.results) {
				t.Fatalf("expected total %d, got %d", len(tt.results), got.Total)
			}
		})
	}
}
