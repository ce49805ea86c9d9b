package healthcheck

// Summary aggregates check results into counts and an overall status.
type Summary struct {
	Total  int    `json:"total"`
	OK     int    `json:"ok"`
	Warn   int    `json:"warn"`
	Error  int    `json:"error"`
	Status string `json:"status"`
}

// Summarize folds results into a Summary. The overall status is the worst
// individual status; an empty result set is unknown.
func Summarize(results []CheckResult) Summary {
	summary := Summary{Total: len(results), Status: StatusUnknown}
	if len(results) == 0 {
		return summary
	}
	summary.Status = StatusOK
	for _, result := range results {
		switch result.Status {
		case StatusOK:
			summary.OK++
		case StatusWarn:
			summary.Warn++
			if summary.Status == StatusOK {
				summary.Status = StatusWarn
			}
		case StatusError:
			summary.Error++
			summary.Status = StatusError
		}
	}
	return summary
}
